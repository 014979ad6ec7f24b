package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/taskboard/dashboard/internal/config"
	"github.com/taskboard/dashboard/internal/dbpool"
	"github.com/taskboard/dashboard/internal/orchestrator"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestConfigPrintsOverrides(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "none.yaml")
	out, err := execute(t, "config", "--config", missing, "--db", "/tmp/x.db", "--log-level", "debug")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"path: /tmp/x.db", "level: debug", "port: 8888"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestInvalidOverrideRejected(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "none.yaml")
	_, err := execute(t, "config", "--config", missing, "--log-level", "loud")
	if !errors.Is(err, config.ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestMockSeedThenCheck(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "tasks.db")
	cfg := filepath.Join(dir, "none.yaml")

	if _, err := execute(t, "mock", "--config", cfg, "--db", db, "--seed-only", "--log-level", "error"); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "check", "--config", cfg, "--db", db, "--log-level", "error")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"projects", "dependencies", "completion: 33.3%"} {
		if !strings.Contains(out, want) {
			t.Errorf("check output missing %q:\n%s", want, out)
		}
	}

	out, err = execute(t, "check", "--json", "--config", cfg, "--db", db, "--log-level", "error")
	if err != nil {
		t.Fatal(err)
	}
	var stats orchestrator.Stats
	if err := json.Unmarshal([]byte(out), &stats); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if stats.Tasks.Total != 9 || stats.Projects != 2 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestCheckMissingDatabase(t *testing.T) {
	dir := t.TempDir()
	_, err := execute(t, "check", "--config", filepath.Join(dir, "none.yaml"), "--db", filepath.Join(dir, "absent.db"), "--log-level", "error")
	if !errors.Is(err, dbpool.ErrConnectionUnavailable) {
		t.Fatalf("expected ErrConnectionUnavailable, got %v", err)
	}
}
