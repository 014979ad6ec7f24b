// Package hub fans typed events out to a dynamic set of subscriber sessions.
//
// Delivery is best effort and never blocks the producer: each session owns a
// bounded queue, and a session whose queue is full is dropped from the
// registry instead of stalling everyone else.
package hub

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
)

var (
	// ErrTooManySessions is returned by Register when MaxSessions is reached.
	ErrTooManySessions = errors.New("hub: too many sessions")
	// ErrSessionClosed is returned by Register for a session that was
	// already unregistered.
	ErrSessionClosed = errors.New("hub: session closed")
)

type Options struct {
	// MaxSessions caps concurrent sessions. Zero means unlimited.
	MaxSessions int
	Logger      *slog.Logger
}

// Registry is the set of live sessions. The zero value is not usable; call
// NewRegistry.
type Registry struct {
	mu       sync.RWMutex
	sessions map[*Session]struct{}

	// emitMu serialises Broadcast and Send so that sequence numbers reach
	// every session in increasing order.
	emitMu sync.Mutex
	seq    atomic.Uint64

	dropped atomic.Int64
	max     int
	log     *slog.Logger
}

func NewRegistry(opts Options) *Registry {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Registry{
		sessions: make(map[*Session]struct{}),
		max:      opts.MaxSessions,
		log:      opts.Logger,
	}
}

// Register adds s. Registering a session twice is a no-op.
func (r *Registry) Register(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[s]; ok {
		return nil
	}
	if s.Closed() {
		return ErrSessionClosed
	}
	if r.max > 0 && len(r.sessions) >= r.max {
		return ErrTooManySessions
	}
	r.sessions[s] = struct{}{}
	r.log.Debug("hub: session registered", "session", s.ID(), "sessions", len(r.sessions))
	return nil
}

// Unregister removes s and closes its event channel. It is safe to call
// for sessions that were never registered or were already removed.
func (r *Registry) Unregister(s *Session) {
	r.mu.Lock()
	_, ok := r.sessions[s]
	delete(r.sessions, s)
	n := len(r.sessions)
	s.close()
	r.mu.Unlock()

	if ok {
		r.log.Debug("hub: session unregistered", "session", s.ID(), "sessions", n)
	}
}

// Broadcast delivers ev to every session registered when the call started.
// Sessions that cannot accept the event are unregistered. It returns the
// number of sessions that received the event.
func (r *Registry) Broadcast(ev Event) int {
	r.emitMu.Lock()
	defer r.emitMu.Unlock()

	ev.Seq = r.seq.Add(1)

	var failed []*Session
	delivered := 0

	// Sends are non-blocking, so holding the read lock for the loop only
	// keeps Unregister from closing a channel mid-send.
	r.mu.RLock()
	for s := range r.sessions {
		if s.offer(ev) {
			delivered++
		} else {
			failed = append(failed, s)
		}
	}
	r.mu.RUnlock()

	for _, s := range failed {
		r.dropped.Add(1)
		r.log.Warn("hub: session cannot keep up, dropping", "session", s.ID(), "kind", ev.Kind())
		r.Unregister(s)
	}
	return delivered
}

// Send delivers ev to a single registered session with the same failure
// policy as Broadcast.
func (r *Registry) Send(s *Session, ev Event) bool {
	r.emitMu.Lock()
	defer r.emitMu.Unlock()

	ev.Seq = r.seq.Add(1)

	r.mu.RLock()
	_, ok := r.sessions[s]
	delivered := ok && s.offer(ev)
	r.mu.RUnlock()

	if ok && !delivered {
		r.dropped.Add(1)
		r.log.Warn("hub: session cannot keep up, dropping", "session", s.ID(), "kind", ev.Kind())
		r.Unregister(s)
	}
	return delivered
}

// ConnectedCount returns the number of registered sessions.
func (r *Registry) ConnectedCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Dropped returns how many sessions were removed for failing delivery.
func (r *Registry) Dropped() int64 {
	return r.dropped.Load()
}

// Close unregisters every session.
func (r *Registry) Close() {
	r.mu.Lock()
	all := make([]*Session, 0, len(r.sessions))
	for s := range r.sessions {
		all = append(all, s)
	}
	r.mu.Unlock()

	for _, s := range all {
		r.Unregister(s)
	}
}
