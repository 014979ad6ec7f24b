package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment override, e.g.
// DASHBOARD_DATABASE_PATH or DASHBOARD_WATCHER_POLL_INTERVAL.
const EnvPrefix = "DASHBOARD"

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("invalid config")

type Config struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Database  DatabaseConfig  `mapstructure:"database" yaml:"database"`
	Watcher   WatcherConfig   `mapstructure:"watcher" yaml:"watcher"`
	WebSocket WebSocketConfig `mapstructure:"websocket" yaml:"websocket"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
}

type ServerConfig struct {
	Host              string        `mapstructure:"host" yaml:"host"`
	Port              int           `mapstructure:"port" yaml:"port"`
	AllowedOrigins    []string      `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	StaticDir         string        `mapstructure:"static_dir" yaml:"static_dir"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	Burst             int           `mapstructure:"burst" yaml:"burst"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Path         string        `mapstructure:"path" yaml:"path"`
	BusyTimeout  time.Duration `mapstructure:"busy_timeout" yaml:"busy_timeout"`
	MaxIdle      int           `mapstructure:"max_idle" yaml:"max_idle"`
	CacheSizeKiB int           `mapstructure:"cache_size_kib" yaml:"cache_size_kib"`
}

type WatcherConfig struct {
	Enabled      bool          `mapstructure:"enabled" yaml:"enabled"`
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	HashFallback bool          `mapstructure:"hash_fallback" yaml:"hash_fallback"`
}

type WebSocketConfig struct {
	SendBuffer        int           `mapstructure:"send_buffer" yaml:"send_buffer"`
	MaxSessions       int           `mapstructure:"max_sessions" yaml:"max_sessions"`
	KeepaliveInterval time.Duration `mapstructure:"keepalive_interval" yaml:"keepalive_interval"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	PongTimeout       time.Duration `mapstructure:"pong_timeout" yaml:"pong_timeout"`
	MessagesPerSecond float64       `mapstructure:"messages_per_second" yaml:"messages_per_second"`
	MessageBurst      int           `mapstructure:"message_burst" yaml:"message_burst"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// defaultConfig mirrors the values registered with viper so tests and callers
// that never touch a file still get a usable config.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:              "127.0.0.1",
			Port:              8888,
			RequestsPerSecond: 50,
			Burst:             100,
			ShutdownTimeout:   5 * time.Second,
		},
		Database: DatabaseConfig{
			Path:         "data/tasks.db",
			BusyTimeout:  5 * time.Second,
			MaxIdle:      8,
			CacheSizeKiB: 64000,
		},
		Watcher: WatcherConfig{
			Enabled:      true,
			PollInterval: time.Second,
		},
		WebSocket: WebSocketConfig{
			SendBuffer:        64,
			MaxSessions:       0,
			KeepaliveInterval: 30 * time.Second,
			WriteTimeout:      10 * time.Second,
			PongTimeout:       60 * time.Second,
			MessagesPerSecond: 5,
			MessageBurst:      10,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Default returns a fresh copy of the built-in configuration.
func Default() *Config {
	return defaultConfig()
}

func newViper() *viper.Viper {
	d := defaultConfig()
	v := viper.New()

	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.allowed_origins", d.Server.AllowedOrigins)
	v.SetDefault("server.static_dir", d.Server.StaticDir)
	v.SetDefault("server.requests_per_second", d.Server.RequestsPerSecond)
	v.SetDefault("server.burst", d.Server.Burst)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)

	v.SetDefault("database.path", d.Database.Path)
	v.SetDefault("database.busy_timeout", d.Database.BusyTimeout)
	v.SetDefault("database.max_idle", d.Database.MaxIdle)
	v.SetDefault("database.cache_size_kib", d.Database.CacheSizeKiB)

	v.SetDefault("watcher.enabled", d.Watcher.Enabled)
	v.SetDefault("watcher.poll_interval", d.Watcher.PollInterval)
	v.SetDefault("watcher.hash_fallback", d.Watcher.HashFallback)

	v.SetDefault("websocket.send_buffer", d.WebSocket.SendBuffer)
	v.SetDefault("websocket.max_sessions", d.WebSocket.MaxSessions)
	v.SetDefault("websocket.keepalive_interval", d.WebSocket.KeepaliveInterval)
	v.SetDefault("websocket.write_timeout", d.WebSocket.WriteTimeout)
	v.SetDefault("websocket.pong_timeout", d.WebSocket.PongTimeout)
	v.SetDefault("websocket.messages_per_second", d.WebSocket.MessagesPerSecond)
	v.SetDefault("websocket.message_burst", d.WebSocket.MessageBurst)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)

	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the YAML file at path, applies DASHBOARD_* environment
// overrides on top, and validates the result. A missing file is an error.
func Load(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return decode(v)
}

// LoadOrDefault behaves like Load but falls back to defaults (plus
// environment overrides) when the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return decode(newViper())
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return decode(newViper())
	}
	return Load(path)
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the fields the core cannot run without.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("%w: database.path is empty", ErrInvalid)
	}
	if c.Watcher.PollInterval <= 0 {
		return fmt.Errorf("%w: watcher.poll_interval must be > 0, got %s", ErrInvalid, c.Watcher.PollInterval)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port %d out of range", ErrInvalid, c.Server.Port)
	}
	if c.WebSocket.SendBuffer <= 0 {
		return fmt.Errorf("%w: websocket.send_buffer must be > 0", ErrInvalid)
	}
	if c.WebSocket.MaxSessions < 0 {
		return fmt.Errorf("%w: websocket.max_sessions must be >= 0", ErrInvalid)
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// Addr returns host:port for net/http.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// YAML renders the effective configuration.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}

// Diff returns human-readable descriptions of fields that differ between
// old and new. Only fields that matter for a running server are compared.
func Diff(old, new *Config) []string {
	var changes []string
	add := func(field string, a, b any) {
		if fmt.Sprint(a) != fmt.Sprint(b) {
			changes = append(changes, fmt.Sprintf("%s: %v -> %v", field, a, b))
		}
	}
	add("server.host", old.Server.Host, new.Server.Host)
	add("server.port", old.Server.Port, new.Server.Port)
	add("server.allowed_origins", old.Server.AllowedOrigins, new.Server.AllowedOrigins)
	add("database.path", old.Database.Path, new.Database.Path)
	add("watcher.enabled", old.Watcher.Enabled, new.Watcher.Enabled)
	add("watcher.poll_interval", old.Watcher.PollInterval, new.Watcher.PollInterval)
	add("watcher.hash_fallback", old.Watcher.HashFallback, new.Watcher.HashFallback)
	add("websocket.max_sessions", old.WebSocket.MaxSessions, new.WebSocket.MaxSessions)
	add("websocket.keepalive_interval", old.WebSocket.KeepaliveInterval, new.WebSocket.KeepaliveInterval)
	add("log.level", old.Log.Level, new.Log.Level)
	add("log.format", old.Log.Format, new.Log.Format)
	return changes
}

func parseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log.level %q: %w", s, err)
	}
	return lvl, nil
}

// NewLogger builds the process logger. The returned LevelVar lets a config
// reload change verbosity without rebuilding handlers.
func (l LogConfig) NewLogger(w io.Writer) (*slog.Logger, *slog.LevelVar) {
	lv := new(slog.LevelVar)
	if lvl, err := parseLevel(l.Level); err == nil {
		lv.Set(lvl)
	}
	opts := &slog.HandlerOptions{Level: lv}
	var h slog.Handler
	if strings.EqualFold(l.Format, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h), lv
}

// ParsedLevel parses the configured level, defaulting to Info.
func (l LogConfig) ParsedLevel() slog.Level {
	lvl, err := parseLevel(l.Level)
	if err != nil {
		return slog.LevelInfo
	}
	return lvl
}
