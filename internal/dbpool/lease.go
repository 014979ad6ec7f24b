package dbpool

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
)

// ErrLeaseReleased is returned when a released lease is used.
var ErrLeaseReleased = errors.New("dbpool: lease released")

// Lease is a borrowed handle. It satisfies the Querier interfaces used by
// the read model. Release must be called exactly once per Borrow; extra
// calls are ignored.
type Lease struct {
	p *Pool
	h *handle

	mu       sync.Mutex
	released bool
}

func newLease(p *Pool, h *handle) *Lease {
	return &Lease{p: p, h: h}
}

// ID identifies the underlying handle. Leases sharing a handle share an ID.
func (l *Lease) ID() uint64 { return l.h.id }

// Path is the absolute database path.
func (l *Lease) Path() string { return l.h.path }

func (l *Lease) conn() (*sql.Conn, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.released {
		return nil, ErrLeaseReleased
	}
	return l.h.conn, nil
}

func (l *Lease) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	conn, err := l.conn()
	if err != nil {
		return nil, err
	}
	return conn.QueryContext(ctx, query, args...)
}

// QueryRowContext on a released lease still reaches the handle; the error
// surfaces from Scan once the handle is closed.
func (l *Lease) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return l.h.conn.QueryRowContext(ctx, query, args...)
}

// ReadTx runs fn inside a read transaction so every statement in fn sees
// the same snapshot, even while an external writer commits. The
// transaction is always rolled back.
func (l *Lease) ReadTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	conn, err := l.conn()
	if err != nil {
		return err
	}
	tx, err := conn.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return fmt.Errorf("dbpool: begin read tx: %w", err)
	}
	defer tx.Rollback()
	return fn(tx)
}

// Release returns the handle to the pool.
func (l *Lease) Release() {
	l.mu.Lock()
	if l.released {
		l.mu.Unlock()
		return
	}
	l.released = true
	l.mu.Unlock()
	l.p.release(l.h)
}
