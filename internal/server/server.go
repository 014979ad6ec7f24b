// Package server wires the watcher, pool, registry and HTTP handlers into
// one process.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/taskboard/dashboard/internal/api"
	"github.com/taskboard/dashboard/internal/config"
	"github.com/taskboard/dashboard/internal/dbpool"
	"github.com/taskboard/dashboard/internal/frontend"
	"github.com/taskboard/dashboard/internal/hub"
	"github.com/taskboard/dashboard/internal/watcher"
	"github.com/taskboard/dashboard/internal/ws"
)

type Options struct {
	Logger *slog.Logger
	// Level, when set, is adjusted by Reload.
	Level *slog.LevelVar
}

type Server struct {
	log   *slog.Logger
	level *slog.LevelVar

	mu  sync.Mutex
	cfg *config.Config

	pool    *dbpool.Pool
	reg     *hub.Registry
	ws      *ws.Server
	watcher *watcher.Watcher
	http    *http.Server
}

func New(cfg *config.Config, opts Options) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	log := opts.Logger

	s := &Server{
		log:   log,
		level: opts.Level,
		cfg:   cfg,
	}
	s.pool = dbpool.New(cfg.Database.Path, dbpool.Options{
		BusyTimeout:  cfg.Database.BusyTimeout,
		MaxIdle:      cfg.Database.MaxIdle,
		CacheSizeKiB: cfg.Database.CacheSizeKiB,
		Logger:       log,
	})
	s.reg = hub.NewRegistry(hub.Options{
		MaxSessions: cfg.WebSocket.MaxSessions,
		Logger:      log,
	})
	s.ws = ws.NewServer(s.reg, ws.Options{
		SendBuffer:        cfg.WebSocket.SendBuffer,
		WriteTimeout:      cfg.WebSocket.WriteTimeout,
		PongTimeout:       cfg.WebSocket.PongTimeout,
		KeepaliveInterval: cfg.WebSocket.KeepaliveInterval,
		MessagesPerSecond: cfg.WebSocket.MessagesPerSecond,
		MessageBurst:      cfg.WebSocket.MessageBurst,
		AllowedOrigins:    cfg.Server.AllowedOrigins,
		Logger:            log,
	})

	if cfg.Watcher.Enabled {
		w, err := watcher.New(cfg.Database.Path, watcher.Options{
			Interval:     cfg.Watcher.PollInterval,
			HashFallback: cfg.Watcher.HashFallback,
			Logger:       log,
		})
		if err != nil {
			return nil, fmt.Errorf("server: %w", err)
		}
		s.watcher = w
	}

	handler := api.New(s.pool, s.reg, api.Options{
		RequestsPerSecond: cfg.Server.RequestsPerSecond,
		Burst:             cfg.Server.Burst,
		WebSocket:         s.ws,
		Static:            staticHandler(cfg.Server.StaticDir, log),
		Logger:            log,
	})
	s.http = &http.Server{
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// staticHandler prefers a configured directory, then the embedded page.
func staticHandler(dir string, log *slog.Logger) http.Handler {
	if dir != "" {
		log.Info("server: serving frontend from filesystem", "dir", dir)
		return frontend.Dir(dir)
	}
	if h := frontend.Handler(); h != nil {
		log.Info("server: serving embedded frontend")
		return h
	}
	return nil
}

func (s *Server) Pool() *dbpool.Pool        { return s.pool }
func (s *Server) Registry() *hub.Registry   { return s.reg }
func (s *Server) Handler() http.Handler     { return s.http.Handler }
func (s *Server) Watcher() *watcher.Watcher { return s.watcher }

// onChange turns a detected database change into a broadcast.
func (s *Server) onChange(c watcher.Change) {
	if c.Replaced {
		s.pool.Invalidate(c.Path)
	}
	n := s.reg.Broadcast(hub.NewEvent(hub.DatabaseUpdate{
		Path:       c.Path,
		ModifiedAt: c.ModifiedAt,
		Replaced:   c.Replaced,
	}))
	s.log.Info("server: database changed", "path", c.Path, "replaced", c.Replaced, "sessions", n)
}

// ListenAndServe listens on the configured address and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.mu.Lock()
	addr := s.cfg.Addr()
	s.mu.Unlock()

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve runs the HTTP server, the watcher and the keepalive loop until ctx
// is done, then shuts everything down.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	if s.watcher != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.watcher.Run(ctx, s.onChange)
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.ws.Keepalive(ctx)
	}()

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server: listening", "addr", ln.Addr().String(), "database", s.pool.Path())
		errCh <- s.http.Serve(ln)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = fmt.Errorf("server: %w", err)
		}
	}
	cancel()

	s.mu.Lock()
	timeout := s.cfg.Server.ShutdownTimeout
	s.mu.Unlock()
	shutdownCtx, done := context.WithTimeout(context.Background(), timeout)
	defer done()

	s.log.Info("server: shutting down")
	// Closing sessions first lets hijacked WebSocket connections finish.
	s.reg.Close()
	if err := s.http.Shutdown(shutdownCtx); err != nil && serveErr == nil {
		serveErr = fmt.Errorf("server: shutdown: %w", err)
	}
	wg.Wait()
	if err := s.pool.Close(); err != nil {
		s.log.Warn("server: closing pool", "err", err)
	}
	return serveErr
}

// Reload applies the parts of next that take effect without a restart
// and returns every change it saw.
func (s *Server) Reload(next *config.Config) ([]string, error) {
	if err := next.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	changes := config.Diff(s.cfg, next)
	if s.level != nil {
		s.level.Set(next.Log.ParsedLevel())
	}
	for _, c := range changes {
		s.log.Info("server: config changed", "change", c)
	}
	// Only the log level and shutdown timeout apply live; the rest
	// needs a restart.
	cur := *s.cfg
	cur.Log = next.Log
	cur.Server.ShutdownTimeout = next.Server.ShutdownTimeout
	s.cfg = &cur
	return changes, nil
}
