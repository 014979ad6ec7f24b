package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/taskboard/dashboard/internal/hub"
	"github.com/taskboard/dashboard/internal/orchestrator"
	"github.com/taskboard/dashboard/internal/tui/client"
	"github.com/taskboard/dashboard/internal/tui/views/status"
)

var sampleTasks = []orchestrator.Task{
	{ID: "t1", Title: "Watcher", Status: "completed", Priority: "HIGH"},
	{ID: "t2", Title: "Push updates", Status: "in-progress", Priority: "HIGH"},
	{ID: "t3", Title: "Board", Status: "pending", Priority: "LOW"},
}

// fakeAPI serves the three endpoints the board reads and counts task fetches.
func fakeAPI(t *testing.T) (*client.HTTPClient, *atomic.Int32) {
	t.Helper()
	var fetches atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tasks", func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		json.NewEncoder(w).Encode(sampleTasks)
	})
	mux.HandleFunc("/api/stats", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(orchestrator.Stats{Projects: 1, Tasks: orchestrator.TaskCounts{Total: 3, Completed: 1}})
	})
	mux.HandleFunc("/api/tasks/t2/dependencies", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]orchestrator.Dependency{{FromTaskID: "t1", ToTaskID: "t2", Type: "BLOCKS", FromTaskTitle: "Watcher"}})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return client.NewHTTPClient(srv.URL), &fetches
}

// run executes cmd and any batched children, returning every message
// they produce except animation ticks.
func run(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, run(c)...)
		}
		return out
	}
	if _, ok := msg.(status.FlashTickMsg); ok {
		return nil
	}
	return []tea.Msg{msg}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestDisconnectedBanner(t *testing.T) {
	m := New(context.Background(), nil, nil, Options{})
	m.width = 80
	m.height = 24

	v := m.View()
	if !strings.Contains(v, "DISCONNECTED") || !strings.Contains(v, "Reconnecting") {
		t.Error("view should show the disconnected banner")
	}

	m, _ = update(t, m, client.WSConnectedMsg{})
	if strings.Contains(m.View(), "DISCONNECTED") {
		t.Error("banner should clear once connected")
	}
}

func TestInitFetchesBoard(t *testing.T) {
	hc, fetches := fakeAPI(t)
	m := New(context.Background(), nil, hc, Options{})

	msgs := run(m.Init())
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	m, _ = update(t, m, msgs[0])
	if fetches.Load() != 1 {
		t.Errorf("fetches = %d, want 1", fetches.Load())
	}
	if got := m.board.Counts()[orchestrator.StatusPending]; got != 1 {
		t.Errorf("pending column has %d cards, want 1", got)
	}
	if m.status.Stats == nil || m.status.Stats.Tasks.Total != 3 {
		t.Errorf("stats not applied: %+v", m.status.Stats)
	}
}

func TestDatabaseUpdateRefetches(t *testing.T) {
	hc, fetches := fakeAPI(t)
	m := New(context.Background(), nil, hc, Options{})

	m, cmd := update(t, m, client.DatabaseUpdateMsg{Update: hub.DatabaseUpdate{ModifiedAt: time.Now()}, Seq: 4})
	if !m.status.Flashing() {
		t.Error("status bar should flash on update")
	}
	for _, msg := range run(cmd) {
		m, _ = update(t, m, msg)
	}
	if fetches.Load() != 1 {
		t.Errorf("fetches = %d, want 1", fetches.Load())
	}
	if len(m.board.Counts()) == 0 || m.board.Counts()[orchestrator.StatusCompleted] != 1 {
		t.Errorf("board not refreshed: %v", m.board.Counts())
	}
	if m.status.Updates != 1 {
		t.Errorf("updates = %d, want 1", m.status.Updates)
	}
}

func TestStaleFetchIgnored(t *testing.T) {
	m := New(context.Background(), nil, nil, Options{})
	m.fetchSeq = 2
	m, _ = update(t, m, dataMsg{seq: 1, tasks: sampleTasks})
	if m.board.Selected() != nil {
		t.Error("stale fetch should not populate the board")
	}
	m, _ = update(t, m, dataMsg{seq: 2, tasks: sampleTasks})
	if m.board.Selected() == nil {
		t.Error("current fetch should populate the board")
	}
}

func TestFetchErrorShown(t *testing.T) {
	m := New(context.Background(), nil, nil, Options{})
	m, _ = update(t, m, dataMsg{err: &client.StatusError{Path: "/api/tasks", Code: 503, Message: "data source unavailable"}})
	if !strings.Contains(m.View(), "data source unavailable") {
		t.Error("fetch error should be visible")
	}
	if m.debug.Errors() != 1 {
		t.Errorf("debug errors = %d, want 1", m.debug.Errors())
	}
}

func TestDetailOverlay(t *testing.T) {
	hc, _ := fakeAPI(t)
	m := New(context.Background(), nil, hc, Options{})
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	m, _ = update(t, m, dataMsg{tasks: sampleTasks})

	m, _ = update(t, m, runes("l")) // in-progress column
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.overlay != overlayDetail {
		t.Fatal("enter should open the detail overlay")
	}
	for _, msg := range run(cmd) {
		m, _ = update(t, m, msg)
	}
	if len(m.detail.Deps) != 1 {
		t.Errorf("deps = %d, want 1", len(m.detail.Deps))
	}
	if !strings.Contains(m.View(), "TASK") {
		t.Error("view should render the task panel")
	}

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.overlay != overlayNone {
		t.Error("esc should close the overlay")
	}
}

func TestDebugOverlayToggle(t *testing.T) {
	m := New(context.Background(), nil, nil, Options{})
	m, _ = update(t, m, client.WSErrorMsg{Message: "rate limit exceeded"})

	m, _ = update(t, m, runes("d"))
	if m.overlay != overlayDebug {
		t.Fatal("d should open the event log")
	}
	if !strings.Contains(m.View(), "rate limit exceeded") {
		t.Error("event log should list the server error")
	}
	m, _ = update(t, m, runes("d"))
	if m.overlay != overlayNone {
		t.Error("d should close the event log")
	}
}

func TestConnectionCount(t *testing.T) {
	m := New(context.Background(), nil, nil, Options{})
	m, _ = update(t, m, client.ConnectionCountMsg{Count: 4})
	if m.status.Viewers != 4 {
		t.Errorf("viewers = %d, want 4", m.status.Viewers)
	}
}

func TestQuit(t *testing.T) {
	m := New(context.Background(), nil, nil, Options{})
	_, cmd := update(t, m, runes("q"))
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should quit")
	}
}
