package hub

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// DefaultBuffer is the per-session queue length used when NewSession is
// given a non-positive size.
const DefaultBuffer = 64

// Session is one subscriber. Events are read from Events() until the
// channel is closed by the Registry.
type Session struct {
	id     string
	events chan Event

	closeOnce sync.Once
	closed    atomic.Bool
	lastSeen  atomic.Int64
}

// NewSession creates a session whose queue holds buffer events.
func NewSession(buffer int) *Session {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	s := &Session{
		id:     uuid.NewString(),
		events: make(chan Event, buffer),
	}
	s.Touch()
	return s
}

func (s *Session) ID() string { return s.id }

// Events is closed when the session is unregistered.
func (s *Session) Events() <-chan Event { return s.events }

func (s *Session) Closed() bool { return s.closed.Load() }

// Touch records inbound activity.
func (s *Session) Touch() { s.lastSeen.Store(time.Now().UnixNano()) }

func (s *Session) LastActivity() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}

// offer queues ev without blocking. It reports false when the queue is full
// or the session is closed. Callers hold at least the registry read lock,
// which excludes close.
func (s *Session) offer(ev Event) bool {
	if s.closed.Load() {
		return false
	}
	select {
	case s.events <- ev:
		return true
	default:
		return false
	}
}

func (s *Session) close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.events)
	})
}
