// Package orchestrator is the read model over a task orchestrator SQLite
// database: projects, features, tasks, dependencies, sections and tags.
//
// Every query goes through a Querier, normally a *dbpool.Lease, so the
// package never opens or writes the database itself.
package orchestrator

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("orchestrator: not found")

// Querier is satisfied by *sql.DB, *sql.Tx and *dbpool.Lease.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Reader runs read-model queries against one Querier.
type Reader struct {
	q Querier
}

func NewReader(q Querier) *Reader {
	return &Reader{q: q}
}

// completedSQL lists the stored spellings counted as completed.
const completedSQL = "('COMPLETED','DONE')"

type scanner interface {
	Scan(dest ...any) error
}

func str(ns sql.NullString) string {
	if !ns.Valid {
		return ""
	}
	return ns.String
}

func (r *Reader) count(ctx context.Context, query string, args ...any) (int, error) {
	var n sql.NullInt64
	if err := r.q.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("orchestrator: count: %w", err)
	}
	return int(n.Int64), nil
}

// countOptional is count for tables that older schemas may not have.
func (r *Reader) countOptional(ctx context.Context, query string, args ...any) (int, error) {
	n, err := r.count(ctx, query, args...)
	if missingTable(err) {
		return 0, nil
	}
	return n, err
}

func missingTable(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such table")
}

// resolve finds the stored key of an entity given any textual id form.
func (r *Reader) resolve(ctx context.Context, table, id string) (any, error) {
	var raw any
	err := r.q.QueryRowContext(ctx,
		"SELECT id FROM "+table+" WHERE "+matchID("id")+" LIMIT 1", idArgs(id)...).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s %s", ErrNotFound, strings.TrimSuffix(table, "s"), id)
	}
	if err != nil {
		return nil, fmt.Errorf("orchestrator: resolve %s: %w", table, err)
	}
	return raw, nil
}

func percent(part, whole int) int {
	if whole <= 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(whole) * 100))
}
