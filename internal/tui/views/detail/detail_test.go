package detail

import (
	"errors"
	"strings"
	"testing"

	"github.com/taskboard/dashboard/internal/orchestrator"
)

func task() orchestrator.Task {
	c := 5
	return orchestrator.Task{
		ID:          "0f4e6a52-1d7a-4a3c-9d65-2b1f8f6a9c10",
		Title:       "Stream updates",
		Summary:     "Push a **database_update** event to every client.",
		Status:      "in-progress",
		Priority:    "HIGH",
		Complexity:  &c,
		FeatureName: "Live updates",
		ProjectName: "Dashboard",
	}
}

func TestMarkdown(t *testing.T) {
	m := New(task(), 100, 30)
	md := m.Markdown()
	for _, want := range []string{
		"# Stream updates",
		"**Complexity:** 5",
		"**Project:** Dashboard",
		"Push a **database_update** event",
		"_None._",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}
}

func TestSetDependencies(t *testing.T) {
	m := New(task(), 100, 30)
	m.SetDependencies([]orchestrator.Dependency{
		{FromTaskID: "x", ToTaskID: "y", Type: "BLOCKS", FromTaskTitle: "Watcher"},
	}, nil)
	if md := m.Markdown(); !strings.Contains(md, "- Watcher → y (blocks)") {
		t.Errorf("dependency line missing:\n%s", md)
	}

	m.SetDependencies(nil, errors.New("503 data source unavailable"))
	if md := m.Markdown(); !strings.Contains(md, "Could not load") {
		t.Errorf("error line missing:\n%s", md)
	}
}

func TestViewRendersSummary(t *testing.T) {
	m := New(task(), 100, 40)
	v := m.View()
	for _, want := range []string{"TASK", "Stream", "esc:close"} {
		if !strings.Contains(v, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestEmptySummary(t *testing.T) {
	tk := task()
	tk.Summary = ""
	if md := New(tk, 80, 20).Markdown(); !strings.Contains(md, "_No summary._") {
		t.Error("expected placeholder for empty summary")
	}
}
