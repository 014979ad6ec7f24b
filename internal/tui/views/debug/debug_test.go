package debug

import (
	"strings"
	"testing"
)

func TestAddFormats(t *testing.T) {
	m := New()
	m.Add(KindWS, "connected")
	m.Add(KindDB, "update seq=%d", 7)
	if len(m.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(m.Entries))
	}
	if m.Entries[1].Message != "update seq=7" {
		t.Errorf("message = %q", m.Entries[1].Message)
	}
	if m.Entries[0].Kind != KindWS {
		t.Errorf("kind = %q, want ws", m.Entries[0].Kind)
	}
}

func TestEntriesCapped(t *testing.T) {
	m := New()
	for i := 0; i < maxEntries+50; i++ {
		m.Add(KindWS, "msg %d", i)
	}
	if len(m.Entries) != maxEntries {
		t.Fatalf("expected %d entries, got %d", maxEntries, len(m.Entries))
	}
	if m.Entries[0].Message != "msg 50" {
		t.Errorf("oldest kept = %q, want msg 50", m.Entries[0].Message)
	}
}

func TestErrorsCounted(t *testing.T) {
	m := New()
	m.Add(KindErr, "boom")
	m.Add(KindWS, "ok")
	m.Add(KindErr, "again")
	if m.Errors() != 2 {
		t.Errorf("Errors() = %d, want 2", m.Errors())
	}
}

func TestScroll(t *testing.T) {
	m := New()
	for i := 0; i < 20; i++ {
		m.Add(KindWS, "msg")
	}
	m.ScrollUp(5)
	if m.Offset != 5 {
		t.Errorf("offset = %d, want 5", m.Offset)
	}
	m.ScrollDown(3)
	if m.Offset != 2 {
		t.Errorf("offset = %d, want 2", m.Offset)
	}
	m.ScrollDown(10)
	if m.Offset != 0 {
		t.Errorf("offset = %d, want 0", m.Offset)
	}
	m.ScrollUp(100)
	if m.Offset != 19 {
		t.Errorf("offset = %d, want 19", m.Offset)
	}
	m.Add(KindWS, "new")
	if m.Offset != 0 {
		t.Error("Add should reset offset")
	}
}

func TestView(t *testing.T) {
	m := New()
	if v := m.View(80, 20); !strings.Contains(v, "Nothing logged") {
		t.Error("empty view should say nothing is logged")
	}
	m.Add(KindWS, "connected")
	m.Add(KindErr, "timeout")
	v := m.View(80, 20)
	for _, want := range []string{"connected", "timeout", "1 errors"} {
		if !strings.Contains(v, want) {
			t.Errorf("view missing %q", want)
		}
	}
}
