package status

import (
	"strings"
	"testing"
	"time"

	"github.com/taskboard/dashboard/internal/orchestrator"
)

func TestFlashSettles(t *testing.T) {
	m := New()
	if m.Step() {
		t.Fatal("Step without Flash should report settled")
	}

	m.Flash(time.Now())
	if !m.Flashing() {
		t.Fatal("expected flashing after Flash")
	}
	frames := 0
	for m.Step() {
		frames++
		if frames > 10*fps {
			t.Fatalf("flash still animating after %d frames", frames)
		}
	}
	if m.Flashing() {
		t.Error("expected flash to be cleared once settled")
	}
	if frames == 0 {
		t.Error("expected at least one animated frame")
	}
	if m.Updates != 1 {
		t.Errorf("Updates = %d, want 1", m.Updates)
	}
}

func TestViewShowsConnectionAndStats(t *testing.T) {
	m := New()
	m.Width = 120
	if v := m.View(); !strings.Contains(v, "Connecting") {
		t.Error("disconnected bar should say Connecting")
	}

	m.Connected = true
	m.Viewers = 3
	m.Stats = &orchestrator.Stats{Projects: 2, Tasks: orchestrator.TaskCounts{Total: 9, Completed: 3, CompletionRate: 33.3}}
	m.Flash(time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC))

	v := m.View()
	for _, want := range []string{"Live", "3 viewing", "9 tasks", "33.3%", "updated 15:04:05"} {
		if !strings.Contains(v, want) {
			t.Errorf("view missing %q:\n%s", want, v)
		}
	}
}
