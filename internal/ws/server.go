// Package ws serves hub events to browsers and terminal clients over
// WebSocket. Each connection is one hub.Session.
package ws

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/taskboard/dashboard/internal/hub"
)

type Options struct {
	SendBuffer        int
	WriteTimeout      time.Duration
	PongTimeout       time.Duration
	KeepaliveInterval time.Duration
	// MessagesPerSecond limits inbound frames per connection. Zero
	// disables the limit.
	MessagesPerSecond float64
	MessageBurst      int
	AllowedOrigins    []string
	Logger            *slog.Logger
}

func (o *Options) defaults() {
	if o.SendBuffer <= 0 {
		o.SendBuffer = hub.DefaultBuffer
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.PongTimeout <= 0 {
		o.PongTimeout = 60 * time.Second
	}
	if o.KeepaliveInterval <= 0 {
		o.KeepaliveInterval = 30 * time.Second
	}
	if o.MessageBurst <= 0 {
		o.MessageBurst = 1
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// pingPeriod must be shorter than PongTimeout so a healthy peer never
// hits the read deadline.
func (o Options) pingPeriod() time.Duration {
	return o.PongTimeout * 9 / 10
}

func (o Options) messageLimit() rate.Limit {
	if o.MessagesPerSecond <= 0 {
		return rate.Inf
	}
	return rate.Limit(o.MessagesPerSecond)
}

type Server struct {
	reg  *hub.Registry
	opts Options
	log  *slog.Logger

	upgrader       websocket.Upgrader
	allowedOrigins map[string]bool
	allowedHosts   map[string]bool
}

func NewServer(reg *hub.Registry, opts Options) *Server {
	opts.defaults()
	s := &Server{
		reg:            reg,
		opts:           opts,
		log:            opts.Logger,
		allowedOrigins: make(map[string]bool),
		allowedHosts:   make(map[string]bool),
	}
	for _, origin := range opts.AllowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		s.allowedOrigins[trimmed] = true
		if parsed, err := url.Parse(trimmed); err == nil && parsed.Host != "" {
			s.allowedHosts[parsed.Host] = true
		}
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// ServeHTTP upgrades the request and registers a session for it.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("ws: upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	sess := hub.NewSession(s.opts.SendBuffer)
	if err := s.reg.Register(sess); err != nil {
		reason := "unavailable"
		if errors.Is(err, hub.ErrTooManySessions) {
			reason = "too many connections"
		}
		s.log.Warn("ws: rejecting connection", "remote", r.RemoteAddr, "err", err)
		msg := websocket.FormatCloseMessage(websocket.CloseTryAgainLater, reason)
		conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(s.opts.WriteTimeout))
		conn.Close()
		return
	}

	n := s.reg.ConnectedCount()
	s.log.Info("ws: client connected", "remote", r.RemoteAddr, "session", sess.ID(), "connections", n)
	s.reg.Send(sess, hub.NewEvent(hub.ConnectionEstablished{SessionID: sess.ID(), Connections: n}))
	s.reg.Broadcast(hub.NewEvent(hub.ConnectionCount{Count: n}))

	c := s.newClient(conn, sess)
	go c.writePump()
	go c.readPump()
}

// drop unregisters c once and tells the remaining sessions.
func (s *Server) drop(c *client) {
	c.dropOnce.Do(func() {
		s.reg.Unregister(c.sess)
		n := s.reg.ConnectedCount()
		s.log.Info("ws: client disconnected", "session", c.sess.ID(), "connections", n)
		s.reg.Broadcast(hub.NewEvent(hub.ConnectionCount{Count: n}))
	})
}

// Keepalive broadcasts a ping event with the connection count every
// KeepaliveInterval until ctx is done.
func (s *Server) Keepalive(ctx context.Context) {
	ticker := time.NewTicker(s.opts.KeepaliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.reg.Broadcast(hub.NewEvent(hub.Ping{Connections: s.reg.ConnectedCount()}))
		}
	}
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	if len(s.allowedOrigins) > 0 {
		if s.allowedOrigins[origin] {
			return true
		}
		if parsed, err := url.Parse(origin); err == nil && parsed.Host != "" {
			return s.allowedHosts[parsed.Host]
		}
		return false
	}

	parsed, err := url.Parse(origin)
	if err != nil || parsed.Host == "" {
		return false
	}
	host := parsed.Host
	if host == r.Host {
		return true
	}
	switch parsed.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}
