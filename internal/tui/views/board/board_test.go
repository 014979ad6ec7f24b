package board

import (
	"strings"
	"testing"

	"github.com/taskboard/dashboard/internal/orchestrator"
)

func sample() []orchestrator.Task {
	return []orchestrator.Task{
		{ID: "a", Title: "Write watcher", Status: "completed", Priority: "HIGH"},
		{ID: "b", Title: "Push updates", Status: "in-progress", Priority: "HIGH"},
		{ID: "c", Title: "Board view", Status: "pending", Priority: "LOW"},
		{ID: "d", Title: "Graph view", Status: "pending", Priority: "MEDIUM"},
		{ID: "e", Title: "Old idea", Status: "cancelled"},
		{ID: "f", Title: "Flaky CI", Status: "BLOCKED", Priority: "HIGH"},
	}
}

func TestSetTasksGroupsByStatus(t *testing.T) {
	m := New()
	m.SetTasks(sample())

	got := m.Counts()
	want := map[string]int{
		orchestrator.StatusPending:    2,
		orchestrator.StatusInProgress: 1,
		orchestrator.StatusBlocked:    1,
		orchestrator.StatusCompleted:  1,
		otherStatus:                   1,
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("column %q has %d cards, want %d", k, got[k], v)
		}
	}
	if len(m.Columns) != 5 {
		t.Errorf("expected 5 columns, got %d", len(m.Columns))
	}
}

func TestOtherColumnOnlyWhenNeeded(t *testing.T) {
	m := New()
	if len(m.Columns) != 4 {
		t.Fatalf("empty board has %d columns, want 4", len(m.Columns))
	}
	if m.Selected() != nil {
		t.Error("empty board should have no selection")
	}
}

func TestMoveClamps(t *testing.T) {
	m := New()
	m.SetTasks(sample())

	m.Move(0, 1)
	if sel := m.Selected(); sel == nil || sel.ID != "d" {
		t.Fatalf("selected = %+v, want d", sel)
	}
	m.Move(0, 5)
	if m.Row != 1 {
		t.Errorf("row = %d, want clamp to 1", m.Row)
	}
	m.Move(1, 0)
	if m.Col != 1 || m.Row != 0 {
		t.Errorf("col,row = %d,%d, want 1,0", m.Col, m.Row)
	}
	m.Move(-10, 0)
	if m.Col != 0 {
		t.Errorf("col = %d, want 0", m.Col)
	}
	m.Move(10, 0)
	if m.Col != len(m.Columns)-1 {
		t.Errorf("col = %d, want last", m.Col)
	}
}

func TestSetTasksKeepsSelection(t *testing.T) {
	m := New()
	m.SetTasks(sample())
	m.Move(0, 1) // "d"

	tasks := sample()
	tasks[3].Status = "in-progress"
	m.SetTasks(tasks)

	if sel := m.Selected(); sel == nil || sel.ID != "d" {
		t.Fatalf("selection lost: %+v", sel)
	}
	if m.Col != 1 {
		t.Errorf("col = %d, want 1 after status change", m.Col)
	}
}

func TestViewRendersCards(t *testing.T) {
	m := New()
	m.Width = 160
	m.Height = 20
	m.SetTasks(sample())

	v := m.View()
	for _, want := range []string{"PENDING (2)", "IN PROGRESS (1)", "Write watcher", "OTHER (1)"} {
		if !strings.Contains(v, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("hello", 10); got != "hello" {
		t.Errorf("got %q", got)
	}
	if got := truncate("hello world", 5); got != "hell…" {
		t.Errorf("got %q", got)
	}
}
