package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/taskboard/dashboard/internal/hub"
)

func newTestServer(t *testing.T, max int, opts Options) (*httptest.Server, *Server, *hub.Registry) {
	t.Helper()
	reg := hub.NewRegistry(hub.Options{MaxSessions: max})
	s := NewServer(reg, opts)
	srv := httptest.NewServer(s)
	t.Cleanup(func() {
		reg.Close()
		srv.Close()
	})
	return srv, s, reg
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) hub.Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var ev hub.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return ev
}

// readUntil skips events until one of kind arrives.
func readUntil(t *testing.T, conn *websocket.Conn, kind hub.Kind) hub.Event {
	t.Helper()
	for i := 0; i < 20; i++ {
		if ev := readEvent(t, conn); ev.Kind() == kind {
			return ev
		}
	}
	t.Fatalf("no %s event", kind)
	return hub.Event{}
}

func waitCount(t *testing.T, reg *hub.Registry, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if reg.ConnectedCount() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("ConnectedCount = %d, want %d", reg.ConnectedCount(), want)
}

func TestConnectSendsEstablishedThenCount(t *testing.T) {
	srv, _, _ := newTestServer(t, 0, Options{})
	conn := dial(t, srv)

	first := readEvent(t, conn)
	est, ok := first.Payload.(hub.ConnectionEstablished)
	if !ok {
		t.Fatalf("first event = %s, want connection_established", first.Kind())
	}
	if est.SessionID == "" || est.Connections != 1 {
		t.Fatalf("established = %+v", est)
	}

	second := readEvent(t, conn)
	count, ok := second.Payload.(hub.ConnectionCount)
	if !ok || count.Count != 1 {
		t.Fatalf("second event = %s %+v", second.Kind(), second.Payload)
	}
	if second.Seq <= first.Seq {
		t.Fatalf("seq not increasing: %d then %d", first.Seq, second.Seq)
	}
}

func TestTextPingGetsPong(t *testing.T) {
	srv, _, _ := newTestServer(t, 0, Options{})
	conn := dial(t, srv)
	readUntil(t, conn, hub.KindConnectionCount)

	if err := conn.WriteMessage(websocket.TextMessage, []byte("ping")); err != nil {
		t.Fatal(err)
	}
	readUntil(t, conn, hub.KindPong)
}

func TestBroadcastReachesClient(t *testing.T) {
	srv, _, reg := newTestServer(t, 0, Options{})
	conn := dial(t, srv)
	readUntil(t, conn, hub.KindConnectionCount)

	reg.Broadcast(hub.NewEvent(hub.DatabaseUpdate{Path: "/data/tasks.db"}))
	ev := readUntil(t, conn, hub.KindDatabaseUpdate)
	if ev.Payload.(hub.DatabaseUpdate).Path != "/data/tasks.db" {
		t.Fatalf("payload = %+v", ev.Payload)
	}
}

func TestDisconnectUnregistersAndNotifies(t *testing.T) {
	srv, _, reg := newTestServer(t, 0, Options{})
	a := dial(t, srv)
	readUntil(t, a, hub.KindConnectionCount)
	b := dial(t, srv)
	readUntil(t, b, hub.KindConnectionCount)
	waitCount(t, reg, 2)

	b.Close()
	waitCount(t, reg, 1)

	for {
		ev := readUntil(t, a, hub.KindConnectionCount)
		if ev.Payload.(hub.ConnectionCount).Count == 1 {
			return
		}
	}
}

func TestMaxSessionsRejectsWithClose(t *testing.T) {
	srv, _, reg := newTestServer(t, 1, Options{})
	first := dial(t, srv)
	readUntil(t, first, hub.KindConnectionEstablished)

	second := dial(t, srv)
	second.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := second.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseTryAgainLater) {
		t.Fatalf("err = %v, want close 1013", err)
	}
	if got := reg.ConnectedCount(); got != 1 {
		t.Fatalf("ConnectedCount = %d, want 1", got)
	}
}

func TestInboundRateLimit(t *testing.T) {
	srv, _, _ := newTestServer(t, 0, Options{MessagesPerSecond: 0.001, MessageBurst: 1})
	conn := dial(t, srv)
	readUntil(t, conn, hub.KindConnectionCount)

	for i := 0; i < 2; i++ {
		if err := conn.WriteMessage(websocket.TextMessage, []byte("ping")); err != nil {
			t.Fatal(err)
		}
	}
	readUntil(t, conn, hub.KindPong)
	ev := readUntil(t, conn, hub.KindError)
	if !strings.Contains(ev.Payload.(hub.Error).Message, "rate limit") {
		t.Fatalf("error = %+v", ev.Payload)
	}
}

func TestKeepaliveBroadcastsPing(t *testing.T) {
	srv, s, _ := newTestServer(t, 0, Options{KeepaliveInterval: 20 * time.Millisecond})
	conn := dial(t, srv)
	readUntil(t, conn, hub.KindConnectionCount)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Keepalive(ctx)

	ev := readUntil(t, conn, hub.KindPing)
	if ev.Payload.(hub.Ping).Connections != 1 {
		t.Fatalf("ping = %+v", ev.Payload)
	}
}

func TestCheckOrigin(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		host    string
		want    bool
	}{
		{"no origin", nil, "", "example.com", true},
		{"same host", nil, "http://example.com", "example.com", true},
		{"localhost", nil, "http://localhost:5173", "example.com", true},
		{"loopback v6", nil, "http://[::1]:3000", "example.com", true},
		{"foreign", nil, "http://evil.test", "example.com", false},
		{"listed", []string{"https://dash.test"}, "https://dash.test", "example.com", true},
		{"listed host other scheme", []string{"https://dash.test"}, "http://dash.test", "example.com", true},
		{"not listed", []string{"https://dash.test"}, "http://localhost", "example.com", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewServer(hub.NewRegistry(hub.Options{}), Options{AllowedOrigins: tt.allowed})
			r := httptest.NewRequest(http.MethodGet, "/ws", nil)
			r.Host = tt.host
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			if got := s.checkOrigin(r); got != tt.want {
				t.Fatalf("checkOrigin = %v, want %v", got, tt.want)
			}
		})
	}
}
