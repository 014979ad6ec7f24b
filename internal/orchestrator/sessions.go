package orchestrator

import (
	"context"
	"database/sql"
	"fmt"
)

// Row is one record of a table whose columns differ between orchestrator
// versions. 16-byte BLOB values are rendered as UUID strings and other
// BLOBs as text.
type Row map[string]any

// Templates returns the enabled templates by name.
func (r *Reader) Templates(ctx context.Context) ([]Row, error) {
	return r.optionalRows(ctx, "templates",
		"SELECT * FROM templates WHERE is_enabled = 1 ORDER BY name")
}

// WorkSessions returns the agent work sessions, most recently active first.
func (r *Reader) WorkSessions(ctx context.Context) ([]Row, error) {
	return r.optionalRows(ctx, "work sessions",
		"SELECT * FROM work_sessions ORDER BY last_activity DESC")
}

// TaskLocks returns the unexpired task locks, newest first, with the
// client and context of the session holding each one.
func (r *Reader) TaskLocks(ctx context.Context) ([]Row, error) {
	return r.optionalRows(ctx, "task locks", `
SELECT l.*, w.client_id, w.user_context
FROM task_locks l
LEFT JOIN work_sessions w ON l.session_id = w.session_id
WHERE l.expires_at > datetime('now')
ORDER BY l.locked_at DESC`)
}

// optionalRows runs query and returns no rows when the schema predates
// the table it reads.
func (r *Reader) optionalRows(ctx context.Context, what, query string) ([]Row, error) {
	rows, err := r.q.QueryContext(ctx, query)
	if missingTable(err) {
		return []Row{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("orchestrator: query %s: %w", what, err)
	}
	defer rows.Close()

	out, err := scanRows(rows)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: scan %s: %w", what, err)
	}
	return out, nil
}

func scanRows(rows *sql.Rows) ([]Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	out := []Row{}
	vals := make([]any, len(cols))
	dest := make([]any, len(cols))
	for i := range vals {
		dest[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		row := make(Row, len(cols))
		for i, col := range cols {
			v := vals[i]
			if b, ok := v.([]byte); ok {
				var id ID
				if err := id.Scan(b); err != nil {
					return nil, err
				}
				v = id.String()
			}
			// Joined columns repeat names; the first occurrence wins.
			if _, dup := row[col]; !dup {
				row[col] = v
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
