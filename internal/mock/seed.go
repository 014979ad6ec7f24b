package mock

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Fixture records the ids Seed inserted.
type Fixture struct {
	Projects     []uuid.UUID
	Features     []uuid.UUID
	Tasks        []uuid.UUID
	Dependencies []uuid.UUID
	// Sessions lists the work session ids, most recently active first.
	Sessions []string
	// Lock is the unexpired task lock; ExpiredLock has lapsed.
	Lock, ExpiredLock uuid.UUID
	// Cycle holds the tasks of the deliberate dependency cycle, if any.
	Cycle []uuid.UUID
}

type seedTask struct {
	title, summary, status, priority string
	complexity                       int
}

type seedFeature struct {
	name, summary, status, priority string
	tasks                           []seedTask
}

type seedProject struct {
	name, summary, status string
	features              []seedFeature
	// loose tasks attach to the project without a feature.
	loose []seedTask
}

var demoProjects = []seedProject{
	{
		name: "Dashboard", summary: "Real-time view of orchestrator state", status: "IN_DEVELOPMENT",
		features: []seedFeature{
			{name: "Change watcher", summary: "Poll the database file for modifications", status: "COMPLETED", priority: "HIGH",
				tasks: []seedTask{
					{"Poll mtime on a ticker", "Compare **mtime** and size each tick.", "COMPLETED", "HIGH", 3},
					{"Watch the WAL sidecar", "Writers in WAL mode append to `-wal` first.", "COMPLETED", "MEDIUM", 4},
				}},
			{name: "Live updates", summary: "Push database_update over WebSocket", status: "IN_DEVELOPMENT", priority: "HIGH",
				tasks: []seedTask{
					{"Session registry", "Non-blocking fan-out with per-session queues.", "IN_PROGRESS", "HIGH", 6},
					{"Keepalive pings", "Broadcast connection counts every 30s.", "PENDING", "LOW", 2},
					{"Reconnect with backoff", "Client side exponential backoff.", "PENDING", "MEDIUM", 5},
				}},
		},
		loose: []seedTask{
			{"Write release notes", "", "TODO", "LOW", 1},
		},
	},
	{
		name: "Orchestrator", summary: "Task planning service", status: "PLANNING",
		features: []seedFeature{
			{name: "Dependency tracking", summary: "Block tasks on other tasks", status: "PLANNING", priority: "MEDIUM",
				tasks: []seedTask{
					{"Model BLOCKS edges", "", "DONE", "MEDIUM", 5},
					{"Detect cycles", "Report circular chains to the user.", "BLOCKED", "HIGH", 8},
					{"Expose graph API", "", "PENDING", "MEDIUM", 4},
				}},
		},
	},
}

// Seed inserts the demo projects. Tasks within a feature block each other
// in order. With cycle set, the last feature's chain is closed into a ring.
func Seed(ctx context.Context, db *sql.DB, cycle bool) (*Fixture, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("mock: seed: %w", err)
	}
	defer tx.Rollback()

	fx := &Fixture{}
	// lastChain holds the dependency chain of the most recent feature.
	var lastChain []uuid.UUID
	base := time.Now().Add(-48 * time.Hour)
	tick := 0
	next := func() string {
		tick++
		return stamp(base.Add(time.Duration(tick) * time.Minute))
	}

	insertTask := func(projectID, featureID *uuid.UUID, t seedTask) (uuid.UUID, error) {
		id := uuid.New()
		var pid, fid any
		if projectID != nil {
			pid = blob(*projectID)
		}
		if featureID != nil {
			fid = blob(*featureID)
		}
		ts := next()
		_, err := tx.ExecContext(ctx, `INSERT INTO tasks
(id, project_id, feature_id, title, summary, status, priority, complexity, created_at, modified_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			blob(id), pid, fid, t.title, t.summary, t.status, t.priority, t.complexity, ts, ts)
		if err != nil {
			return uuid.Nil, fmt.Errorf("mock: insert task %q: %w", t.title, err)
		}
		fx.Tasks = append(fx.Tasks, id)
		return id, nil
	}

	for _, p := range demoProjects {
		pid := uuid.New()
		ts := next()
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO projects (id, name, summary, status, created_at, modified_at) VALUES (?, ?, ?, ?, ?, ?)",
			blob(pid), p.name, p.summary, p.status, ts, ts); err != nil {
			return nil, fmt.Errorf("mock: insert project %q: %w", p.name, err)
		}
		fx.Projects = append(fx.Projects, pid)
		if err := tag(ctx, tx, pid, "PROJECT", "demo"); err != nil {
			return nil, err
		}

		for _, f := range p.features {
			fid := uuid.New()
			ts := next()
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO features (id, project_id, name, summary, status, priority, created_at, modified_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
				blob(fid), blob(pid), f.name, f.summary, f.status, f.priority, ts, ts); err != nil {
				return nil, fmt.Errorf("mock: insert feature %q: %w", f.name, err)
			}
			fx.Features = append(fx.Features, fid)
			if err := tag(ctx, tx, fid, "FEATURE", "backend"); err != nil {
				return nil, err
			}
			if err := section(ctx, tx, fid, "FEATURE", "Requirements", "- "+f.summary, 0, next()); err != nil {
				return nil, err
			}

			lastChain = lastChain[:0]
			var prev *uuid.UUID
			for _, t := range f.tasks {
				tid, err := insertTask(nil, &fid, t)
				if err != nil {
					return nil, err
				}
				if prev != nil {
					if err := depend(ctx, tx, fx, *prev, tid, next()); err != nil {
						return nil, err
					}
				}
				prev = &tid
				lastChain = append(lastChain, tid)
			}
		}

		for _, t := range p.loose {
			if _, err := insertTask(&pid, nil, t); err != nil {
				return nil, err
			}
		}
	}

	if cycle && len(lastChain) >= 3 {
		ring := lastChain[len(lastChain)-3:]
		if err := depend(ctx, tx, fx, ring[2], ring[0], next()); err != nil {
			return nil, err
		}
		fx.Cycle = append([]uuid.UUID{}, ring...)
	}

	if _, err := tx.ExecContext(ctx, "INSERT INTO templates (id, name, is_enabled) VALUES (?, ?, 1), (?, ?, 0)",
		blob(uuid.New()), "Bug fix", blob(uuid.New()), "Retired"); err != nil {
		return nil, fmt.Errorf("mock: insert templates: %w", err)
	}

	if err := lock(ctx, tx, fx, time.Now()); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("mock: seed commit: %w", err)
	}
	return fx, nil
}

func depend(ctx context.Context, tx *sql.Tx, fx *Fixture, from, to uuid.UUID, ts string) error {
	id := uuid.New()
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO dependencies (id, from_task_id, to_task_id, type, created_at) VALUES (?, ?, ?, 'BLOCKS', ?)",
		blob(id), blob(from), blob(to), ts); err != nil {
		return fmt.Errorf("mock: insert dependency: %w", err)
	}
	fx.Dependencies = append(fx.Dependencies, id)
	return nil
}

// lock opens two agent work sessions, each holding a lock on the first
// task. Only the lock of the most recent session is still live at now.
func lock(ctx context.Context, tx *sql.Tx, fx *Fixture, now time.Time) error {
	sessions := []struct {
		id, client, context string
		active              time.Time
	}{
		{"sess-" + uuid.NewString()[:8], "claude-code", "Implementing the session registry", now.Add(-2 * time.Minute)},
		{"sess-" + uuid.NewString()[:8], "cursor", "Reviewing dependency tracking", now.Add(-3 * time.Hour)},
	}
	for _, s := range sessions {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO work_sessions (session_id, client_id, user_context, started_at, last_activity) VALUES (?, ?, ?, ?, ?)",
			s.id, s.client, s.context, stamp(s.active.Add(-time.Hour)), stamp(s.active)); err != nil {
			return fmt.Errorf("mock: insert work session: %w", err)
		}
		fx.Sessions = append(fx.Sessions, s.id)
	}

	fx.Lock, fx.ExpiredLock = uuid.New(), uuid.New()
	for _, l := range []struct {
		id      uuid.UUID
		session string
		at      time.Time
	}{
		{fx.Lock, sessions[0].id, now.Add(-time.Minute)},
		{fx.ExpiredLock, sessions[1].id, now.Add(-3 * time.Hour)},
	} {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO task_locks (id, task_id, session_id, locked_at, expires_at) VALUES (?, ?, ?, ?, ?)",
			blob(l.id), blob(fx.Tasks[0]), l.session, stamp(l.at), stamp(l.at.Add(30*time.Minute))); err != nil {
			return fmt.Errorf("mock: insert task lock: %w", err)
		}
	}
	return nil
}

func tag(ctx context.Context, tx *sql.Tx, entity uuid.UUID, entityType, name string) error {
	_, err := tx.ExecContext(ctx,
		"INSERT INTO entity_tags (id, entity_id, entity_type, tag, created_at) VALUES (?, ?, ?, ?, ?)",
		blob(uuid.New()), blob(entity), entityType, name, stamp(time.Now()))
	if err != nil {
		return fmt.Errorf("mock: insert tag: %w", err)
	}
	return nil
}

func section(ctx context.Context, tx *sql.Tx, entity uuid.UUID, entityType, title, content string, ordinal int, ts string) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO sections
(id, entity_type, entity_id, title, usage_description, content, content_format, ordinal, tags, created_at, modified_at)
VALUES (?, ?, ?, ?, ?, ?, 'MARKDOWN', ?, ?, ?, ?)`,
		blob(uuid.New()), entityType, blob(entity), title, "Context for implementers", content, ordinal, "docs", ts, ts)
	if err != nil {
		return fmt.Errorf("mock: insert section: %w", err)
	}
	return nil
}
