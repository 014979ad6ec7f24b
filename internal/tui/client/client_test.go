package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/taskboard/dashboard/internal/api"
	"github.com/taskboard/dashboard/internal/dbpool"
	"github.com/taskboard/dashboard/internal/hub"
	"github.com/taskboard/dashboard/internal/mock"
	"github.com/taskboard/dashboard/internal/orchestrator"
	"github.com/taskboard/dashboard/internal/ws"
)

type fixture struct {
	srv *httptest.Server
	reg *hub.Registry
	fx  *mock.Fixture
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tasks.db")
	db, err := mock.Create(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	fx, err := mock.Seed(context.Background(), db, false)
	if err != nil {
		t.Fatal(err)
	}

	pool := dbpool.New(path, dbpool.Options{})
	t.Cleanup(func() { pool.Close() })
	reg := hub.NewRegistry(hub.Options{})
	t.Cleanup(reg.Close)
	h := api.New(pool, reg, api.Options{WebSocket: ws.NewServer(reg, ws.Options{})})
	srv := httptest.NewServer(h.Router())
	t.Cleanup(srv.Close)
	return &fixture{srv: srv, reg: reg, fx: fx}
}

func TestHTTPClient(t *testing.T) {
	f := newFixture(t)
	c := NewHTTPClient(f.srv.URL + "/")
	ctx := context.Background()

	tasks, err := c.Tasks(ctx, orchestrator.TaskFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 9 {
		t.Errorf("got %d tasks, want 9", len(tasks))
	}

	pending, err := c.Tasks(ctx, orchestrator.TaskFilter{Status: "pending", Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 2 {
		t.Errorf("got %d pending tasks, want 2", len(pending))
	}

	stats, err := c.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Tasks.Total != 9 || stats.Projects != 2 {
		t.Errorf("stats = %+v", stats)
	}

	id := f.fx.Tasks[3].String()
	task, err := c.Task(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if task.Title == "" {
		t.Error("expected a title")
	}
	deps, err := c.TaskDependencies(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if len(deps) != 2 {
		t.Errorf("got %d dependencies, want 2", len(deps))
	}
}

func TestHTTPClientStatusError(t *testing.T) {
	f := newFixture(t)
	c := NewHTTPClient(f.srv.URL)

	_, err := c.Task(context.Background(), "00000000-0000-0000-0000-000000000000")
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected *StatusError, got %v", err)
	}
	if se.Code != http.StatusNotFound {
		t.Errorf("code = %d, want 404", se.Code)
	}
	if se.Unavailable() {
		t.Error("404 is not unavailable")
	}
}

func TestWebSocketURL(t *testing.T) {
	tests := []struct {
		in, want string
		wantErr  bool
	}{
		{in: "http://127.0.0.1:8888", want: "ws://127.0.0.1:8888/ws"},
		{in: "https://board.example.com/", want: "wss://board.example.com/ws"},
		{in: "http://host/prefix", want: "ws://host/prefix/ws"},
		{in: "ftp://host", wantErr: true},
	}
	for _, tt := range tests {
		got, err := WebSocketURL(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("WebSocketURL(%q) expected error", tt.in)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("WebSocketURL(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}

func TestWSClientReceivesUpdates(t *testing.T) {
	f := newFixture(t)
	url, err := WebSocketURL(f.srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	c := NewWSClient(url)
	defer c.Close()
	if _, ok := c.Listen(ctx)().(WSConnectedMsg); !ok {
		t.Fatal("expected WSConnectedMsg")
	}

	// connection_established arrives first and reports the count.
	msg := c.ReadLoop(ctx)()
	cc, ok := msg.(ConnectionCountMsg)
	if !ok || cc.Count != 1 {
		t.Fatalf("first message = %#v, want count 1", msg)
	}

	f.reg.Broadcast(hub.NewEvent(hub.DatabaseUpdate{Path: "tasks.db", ModifiedAt: time.Now()}))
	for {
		msg = c.ReadLoop(ctx)()
		if _, ok := msg.(ConnectionCountMsg); ok {
			continue
		}
		break
	}
	du, ok := msg.(DatabaseUpdateMsg)
	if !ok {
		t.Fatalf("expected DatabaseUpdateMsg, got %#v", msg)
	}
	if du.Update.Path != "tasks.db" || du.Seq == 0 {
		t.Errorf("update = %+v", du)
	}
	if c.Seq() != du.Seq {
		t.Errorf("Seq() = %d, want %d", c.Seq(), du.Seq)
	}

	if err := c.Ping(); err != nil {
		t.Fatal(err)
	}
	msg = c.ReadLoop(ctx)()
	ev, ok := msg.(WSEventMsg)
	if !ok || ev.Event.Kind() != hub.KindPong {
		t.Fatalf("expected pong, got %#v", msg)
	}
}

func TestWSClientDisconnect(t *testing.T) {
	f := newFixture(t)
	url, _ := WebSocketURL(f.srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	c := NewWSClient(url)
	if _, ok := c.Listen(ctx)().(WSConnectedMsg); !ok {
		t.Fatal("expected WSConnectedMsg")
	}
	c.ReadLoop(ctx)()

	f.reg.Close()
	for {
		msg := c.ReadLoop(ctx)()
		if _, ok := msg.(WSDisconnectedMsg); ok {
			break
		}
		if msg == nil {
			t.Fatal("context ended before disconnect")
		}
	}
	if err := c.Ping(); err == nil {
		t.Error("Ping after disconnect should fail")
	}
}

func TestListenGivesUpWhenContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := NewWSClient("ws://127.0.0.1:1/ws")
	if msg := c.Listen(ctx)(); msg != nil {
		t.Fatalf("expected nil after cancel, got %#v", msg)
	}
}
