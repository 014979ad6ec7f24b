package mock

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// Mutation describes one write the Generator performed.
type Mutation struct {
	TaskID uuid.UUID
	Title  string
	From   string
	To     string
}

// Generator plays the external orchestrator: on every tick it moves one
// task along PENDING -> IN_PROGRESS -> COMPLETED, occasionally parks one
// as BLOCKED, and adds a fresh task once everything is done.
type Generator struct {
	db       *sql.DB
	interval time.Duration
	rng      *rand.Rand
	log      *slog.Logger

	// OnMutation, when set, is called after every committed write.
	OnMutation func(Mutation)
}

func NewGenerator(db *sql.DB, interval time.Duration, logger *slog.Logger) *Generator {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		db:       db,
		interval: interval,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		log:      logger,
	}
}

// Run mutates the database until ctx is cancelled.
func (g *Generator) Run(ctx context.Context) {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	g.log.Info("mock: generator started", "interval", g.interval)
	for {
		select {
		case <-ctx.Done():
			g.log.Info("mock: generator stopped")
			return
		case <-ticker.C:
			m, err := g.Step(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				g.log.Warn("mock: step failed", "error", err)
				continue
			}
			g.log.Info("mock: task moved", "task", m.Title, "from", m.From, "to", m.To)
			if g.OnMutation != nil {
				g.OnMutation(m)
			}
		}
	}
}

// next returns the status a task moves to from status.
func (g *Generator) next(status string) string {
	switch status {
	case "PENDING", "TODO":
		return "IN_PROGRESS"
	case "IN_PROGRESS":
		if g.rng.Intn(5) == 0 {
			return "BLOCKED"
		}
		return "COMPLETED"
	case "BLOCKED":
		return "IN_PROGRESS"
	default:
		return "COMPLETED"
	}
}

// Step performs one mutation and commits it.
func (g *Generator) Step(ctx context.Context) (Mutation, error) {
	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return Mutation{}, fmt.Errorf("mock: begin: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		"SELECT id, title, status FROM tasks WHERE UPPER(status) NOT IN ('COMPLETED','DONE','CANCELLED')")
	if err != nil {
		return Mutation{}, fmt.Errorf("mock: open tasks: %w", err)
	}
	type candidate struct {
		id            []byte
		title, status string
	}
	var open []candidate
	for rows.Next() {
		var c candidate
		if err := rows.Scan(&c.id, &c.title, &c.status); err != nil {
			rows.Close()
			return Mutation{}, err
		}
		open = append(open, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return Mutation{}, err
	}

	now := stamp(time.Now())
	var m Mutation
	if len(open) == 0 {
		m, err = g.addTask(ctx, tx, now)
	} else {
		c := open[g.rng.Intn(len(open))]
		id, perr := uuid.FromBytes(c.id)
		if perr != nil {
			return Mutation{}, fmt.Errorf("mock: task id: %w", perr)
		}
		m = Mutation{TaskID: id, Title: c.title, From: c.status, To: g.next(c.status)}
		_, err = tx.ExecContext(ctx, "UPDATE tasks SET status = ?, modified_at = ? WHERE id = ?", m.To, now, c.id)
	}
	if err != nil {
		return Mutation{}, fmt.Errorf("mock: write: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Mutation{}, fmt.Errorf("mock: commit: %w", err)
	}
	return m, nil
}

var followUps = []string{"Tidy logging", "Add metrics", "Profile queries", "Update docs", "Harden shutdown"}

func (g *Generator) addTask(ctx context.Context, tx *sql.Tx, now string) (Mutation, error) {
	var feature any
	err := tx.QueryRowContext(ctx, "SELECT id FROM features ORDER BY RANDOM() LIMIT 1").Scan(&feature)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return Mutation{}, err
	}
	id := uuid.New()
	title := followUps[g.rng.Intn(len(followUps))]
	_, err = tx.ExecContext(ctx, `INSERT INTO tasks
(id, feature_id, title, status, priority, complexity, created_at, modified_at)
VALUES (?, ?, ?, 'PENDING', 'MEDIUM', ?, ?, ?)`,
		blob(id), feature, title, 1+g.rng.Intn(8), now, now)
	if err != nil {
		return Mutation{}, err
	}
	return Mutation{TaskID: id, Title: title, To: "PENDING"}, nil
}
