package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	yaml := `
server:
  port: 9090
  host: "0.0.0.0"
  allowed_origins:
    - "http://dash.local:3000"
database:
  path: /var/lib/orchestrator/tasks.db
watcher:
  poll_interval: 2s
  hash_fallback: true
log:
  level: debug
`
	if err := os.WriteFile(cfgPath, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, "0.0.0.0")
	}
	if len(cfg.Server.AllowedOrigins) != 1 || cfg.Server.AllowedOrigins[0] != "http://dash.local:3000" {
		t.Errorf("Server.AllowedOrigins = %v", cfg.Server.AllowedOrigins)
	}
	if cfg.Database.Path != "/var/lib/orchestrator/tasks.db" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if cfg.Watcher.PollInterval != 2*time.Second {
		t.Errorf("Watcher.PollInterval = %s, want 2s", cfg.Watcher.PollInterval)
	}
	if !cfg.Watcher.HashFallback {
		t.Error("Watcher.HashFallback = false, want true")
	}
	if cfg.Log.ParsedLevel() != slog.LevelDebug {
		t.Errorf("Log level = %v, want debug", cfg.Log.ParsedLevel())
	}

	// Defaults should still be applied for unspecified fields.
	if cfg.WebSocket.SendBuffer != 64 {
		t.Errorf("WebSocket.SendBuffer = %d, want default 64", cfg.WebSocket.SendBuffer)
	}
	if !cfg.Watcher.Enabled {
		t.Error("Watcher.Enabled should default to true")
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("Load() on missing file should return error")
	}
}

func TestLoadOrDefaultMissingFile(t *testing.T) {
	cfg, err := LoadOrDefault("/nonexistent/path/config.yaml")
	if err != nil {
		t.Fatalf("LoadOrDefault() error: %v", err)
	}

	if cfg.Server.Port != 8888 {
		t.Errorf("Server.Port = %d, want default 8888", cfg.Server.Port)
	}
	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Server.Host = %q, want default %q", cfg.Server.Host, "127.0.0.1")
	}
	if cfg.Watcher.PollInterval != time.Second {
		t.Errorf("Watcher.PollInterval = %s, want 1s", cfg.Watcher.PollInterval)
	}
	if cfg.Database.Path != "data/tasks.db" {
		t.Errorf("Database.Path = %q, want data/tasks.db", cfg.Database.Path)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("DASHBOARD_DATABASE_PATH", "/tmp/override.db")
	t.Setenv("DASHBOARD_WATCHER_POLL_INTERVAL", "3s")
	t.Setenv("DASHBOARD_SERVER_PORT", "7000")

	cfg, err := LoadOrDefault("")
	if err != nil {
		t.Fatalf("LoadOrDefault() error: %v", err)
	}
	if cfg.Database.Path != "/tmp/override.db" {
		t.Errorf("Database.Path = %q, want env override", cfg.Database.Path)
	}
	if cfg.Watcher.PollInterval != 3*time.Second {
		t.Errorf("Watcher.PollInterval = %s, want 3s", cfg.Watcher.PollInterval)
	}
	if cfg.Server.Port != 7000 {
		t.Errorf("Server.Port = %d, want 7000", cfg.Server.Port)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("server: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(cfgPath); err == nil {
		t.Fatal("Load() on invalid YAML should return error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero poll interval", func(c *Config) { c.Watcher.PollInterval = 0 }},
		{"negative poll interval", func(c *Config) { c.Watcher.PollInterval = -time.Second }},
		{"empty db path", func(c *Config) { c.Database.Path = "" }},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }},
		{"zero send buffer", func(c *Config) { c.WebSocket.SendBuffer = 0 }},
		{"unknown log level", func(c *Config) { c.Log.Level = "chatty" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("Validate() = %v, want ErrInvalid", err)
			}
		})
	}

	if err := defaultConfig().Validate(); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}
}

func TestYAMLRoundTripsDurations(t *testing.T) {
	out, err := defaultConfig().YAML()
	if err != nil {
		t.Fatalf("YAML() error: %v", err)
	}
	s := string(out)
	if !strings.Contains(s, "poll_interval: 1s") {
		t.Errorf("expected human-readable duration in YAML, got:\n%s", s)
	}
	if !strings.Contains(s, "path: data/tasks.db") {
		t.Errorf("expected database path in YAML, got:\n%s", s)
	}
}

func TestDiffNoChanges(t *testing.T) {
	a := defaultConfig()
	b := defaultConfig()
	if changes := Diff(a, b); len(changes) != 0 {
		t.Errorf("Diff of identical configs = %v, want empty", changes)
	}
}

func TestDiffDetectsChanges(t *testing.T) {
	old := defaultConfig()
	new := defaultConfig()
	new.Watcher.PollInterval = 5 * time.Second
	new.Log.Level = "debug"

	changes := Diff(old, new)
	want := []string{"watcher.poll_interval: 1s -> 5s", "log.level: info -> debug"}
	for _, w := range want {
		found := false
		for _, c := range changes {
			if c == w {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("Missing expected change: %q\nGot: %v", w, changes)
		}
	}
}

func TestNewLoggerJSON(t *testing.T) {
	var b strings.Builder
	logger, lv := LogConfig{Level: "warn", Format: "json"}.NewLogger(&b)
	logger.Info("hidden")
	logger.Warn("shown", "k", 1)
	if strings.Contains(b.String(), "hidden") {
		t.Error("info record should be filtered at warn level")
	}
	if !strings.Contains(b.String(), `"msg":"shown"`) {
		t.Errorf("expected JSON record, got %q", b.String())
	}
	lv.Set(slog.LevelInfo)
	logger.Info("now visible")
	if !strings.Contains(b.String(), "now visible") {
		t.Error("LevelVar change should take effect")
	}
}
