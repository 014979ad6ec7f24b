// Package dbpool hands out read-only SQLite handles to an externally owned
// database file.
//
// Every handle is one pinned connection (*sql.Conn) opened with mode=ro and
// query_only so a handle can never write. Statements on a handle may
// overlap: a query can run while rows from an earlier one are still open. Handles are
// returned to an idle list on release and reused LIFO. Callers that want
// repeated borrows to share one handle attach a scope to their context:
//
//	ctx = dbpool.WithScope(ctx)
//	a, _ := pool.Borrow(ctx)
//	b, _ := pool.Borrow(ctx) // a.ID() == b.ID()
//
// Concurrent borrows from different scopes never share a handle.
package dbpool

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

var (
	// ErrConnectionUnavailable means the database file is missing or cannot
	// be opened. Callers must report it, never substitute an empty result.
	ErrConnectionUnavailable = errors.New("dbpool: connection unavailable")
	// ErrPoolClosed is returned by Borrow after Close.
	ErrPoolClosed = errors.New("dbpool: pool closed")
)

type Options struct {
	// BusyTimeout is how long a read waits on a writer's lock.
	// Default: 5s.
	BusyTimeout time.Duration
	// MaxIdle caps idle handles kept per path. Default: 8.
	MaxIdle int
	// CacheSizeKiB sets PRAGMA cache_size as a KiB budget. Zero keeps the
	// SQLite default.
	CacheSizeKiB int
	Logger       *slog.Logger
}

func (o *Options) defaults() {
	if o.BusyTimeout <= 0 {
		o.BusyTimeout = 5 * time.Second
	}
	if o.MaxIdle <= 0 {
		o.MaxIdle = 8
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// handle is one open read-only connection. Fields other than db, conn, id
// and path are guarded by Pool.mu.
type handle struct {
	id   uint64
	path string
	db   *sql.DB
	conn *sql.Conn

	refs  int
	stale bool
	scope *scope
}

// Pool is safe for concurrent use.
type Pool struct {
	path string
	opts Options

	mu     sync.Mutex
	idle   map[string][]*handle
	inUse  map[*handle]struct{}
	nextID uint64
	opened uint64
	closed bool
}

// New returns a pool for the database at path. Nothing is opened until the
// first Borrow.
func New(path string, opts Options) *Pool {
	opts.defaults()
	return &Pool{
		path:  path,
		opts:  opts,
		idle:  make(map[string][]*handle),
		inUse: make(map[*handle]struct{}),
	}
}

// Path returns the default database path.
func (p *Pool) Path() string { return p.path }

// Borrow returns a lease on a handle for the pool's default path.
func (p *Pool) Borrow(ctx context.Context) (*Lease, error) {
	return p.BorrowPath(ctx, p.path)
}

// BorrowPath returns a lease on a read-only handle for path. A missing or
// unreadable file fails with ErrConnectionUnavailable and leaves the pool
// untouched.
func (p *Pool) BorrowPath(ctx context.Context, path string) (*Lease, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConnectionUnavailable, path, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkReadable(abs); err != nil {
		return nil, err
	}

	sc := scopeFrom(ctx)

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	if sc != nil {
		if h := sc.get(abs); h != nil && !h.stale {
			h.refs++
			p.mu.Unlock()
			return newLease(p, h), nil
		}
	}
	if h := p.popIdleLocked(abs); h != nil {
		h.refs = 1
		h.scope = sc
		p.inUse[h] = struct{}{}
		sc.set(abs, h)
		p.mu.Unlock()
		return newLease(p, h), nil
	}
	p.mu.Unlock()

	db, conn, err := p.open(ctx, abs)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		conn.Close()
		db.Close()
		return nil, ErrPoolClosed
	}
	p.nextID++
	id := p.nextID
	h := &handle{id: id, path: abs, db: db, conn: conn, refs: 1, scope: sc}
	p.opened++
	p.inUse[h] = struct{}{}
	sc.set(abs, h)
	p.mu.Unlock()

	p.opts.Logger.Debug("dbpool: handle opened", "id", id, "path", abs)
	return newLease(p, h), nil
}

func checkReadable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnectionUnavailable, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrConnectionUnavailable, path)
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnectionUnavailable, err)
	}
	return f.Close()
}

// DSN builds the read-only connection string for path.
func (p *Pool) DSN(path string) string {
	u := url.URL{Scheme: "file", Path: path}
	q := url.Values{}
	q.Set("mode", "ro")
	q.Add("_pragma", "query_only(1)")
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", p.opts.BusyTimeout.Milliseconds()))
	if p.opts.CacheSizeKiB > 0 {
		q.Add("_pragma", fmt.Sprintf("cache_size(-%d)", p.opts.CacheSizeKiB))
	}
	return u.String() + "?" + q.Encode()
}

// open pins the only connection of a fresh *sql.DB. Going through the
// Conn rather than the DB lets statements overlap on that one connection
// instead of waiting for it to come back to the DB's free list.
func (p *Pool) open(ctx context.Context, path string) (*sql.DB, *sql.Conn, error) {
	db, err := sql.Open("sqlite", p.DSN(path))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: open %s: %v", ErrConnectionUnavailable, path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("%w: connect %s: %v", ErrConnectionUnavailable, path, err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		db.Close()
		return nil, nil, fmt.Errorf("%w: ping %s: %v", ErrConnectionUnavailable, path, err)
	}
	return db, conn, nil
}

func (h *handle) close() error {
	return errors.Join(h.conn.Close(), h.db.Close())
}

func (p *Pool) popIdleLocked(path string) *handle {
	list := p.idle[path]
	if len(list) == 0 {
		return nil
	}
	h := list[len(list)-1]
	p.idle[path] = list[:len(list)-1]
	return h
}

// release drops one reference. The last reference returns the handle to
// the idle list, or closes it if it went stale or the idle list is full.
func (p *Pool) release(h *handle) {
	p.mu.Lock()
	h.refs--
	if h.refs > 0 {
		p.mu.Unlock()
		return
	}
	delete(p.inUse, h)
	h.scope.clear(h.path, h)
	h.scope = nil

	closeIt := p.closed || h.stale || len(p.idle[h.path]) >= p.opts.MaxIdle
	if !closeIt {
		p.idle[h.path] = append(p.idle[h.path], h)
	}
	p.mu.Unlock()

	if closeIt {
		p.closeHandle(h)
	}
}

func (p *Pool) closeHandle(h *handle) {
	if err := h.close(); err != nil {
		p.opts.Logger.Warn("dbpool: close handle", "id", h.id, "path", h.path, "error", err)
		return
	}
	p.opts.Logger.Debug("dbpool: handle closed", "id", h.id, "path", h.path)
}

// Invalidate drops every handle for path. Idle handles are closed now;
// handles in use are closed when their last lease is released. Use it when
// the file was replaced rather than modified in place.
func (p *Pool) Invalidate(path string) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	p.mu.Lock()
	idle := p.idle[abs]
	delete(p.idle, abs)
	marked := 0
	for h := range p.inUse {
		if h.path == abs {
			h.stale = true
			marked++
		}
	}
	p.mu.Unlock()

	for _, h := range idle {
		p.closeHandle(h)
	}
	p.opts.Logger.Info("dbpool: invalidated", "path", abs, "closed", len(idle), "stale", marked)
}

// Close closes idle handles and makes later borrows fail with
// ErrPoolClosed. Leases still out are closed on release.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	var idle []*handle
	for _, list := range p.idle {
		idle = append(idle, list...)
	}
	p.idle = make(map[string][]*handle)
	p.mu.Unlock()

	var errs []error
	for _, h := range idle {
		if err := h.close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Stats is a point-in-time view of the pool.
type Stats struct {
	Path   string `json:"path"`
	Opened uint64 `json:"opened"`
	Idle   int    `json:"idle"`
	InUse  int    `json:"in_use"`
	Closed bool   `json:"closed"`
}

func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	idle := 0
	for _, list := range p.idle {
		idle += len(list)
	}
	return Stats{
		Path:   p.path,
		Opened: p.opened,
		Idle:   idle,
		InUse:  len(p.inUse),
		Closed: p.closed,
	}
}
