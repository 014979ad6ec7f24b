package orchestrator

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const (
	// DefaultTaskLimit bounds Tasks when the filter sets no limit.
	DefaultTaskLimit = 1000
	maxTaskLimit     = 5000
)

const taskSelect = `
SELECT t.id, t.title, t.summary, t.status, t.priority, t.complexity,
       t.created_at, t.modified_at, t.feature_id, f.name,
       COALESCE(t.project_id, f.project_id), p.name
FROM tasks t
LEFT JOIN features f ON t.feature_id = f.id
LEFT JOIN projects p ON COALESCE(t.project_id, f.project_id) = p.id`

func scanTask(s scanner) (Task, error) {
	var (
		t                                Task
		title, summary, status, priority sql.NullString
		created, modified, fname, pname  sql.NullString
		complexity                       sql.NullInt64
	)
	err := s.Scan(&t.ID, &title, &summary, &status, &priority, &complexity,
		&created, &modified, &t.FeatureID, &fname, &t.ProjectID, &pname)
	if err != nil {
		return Task{}, err
	}
	t.Title = str(title)
	t.Summary = str(summary)
	t.RawStatus = str(status)
	t.Status = NormalizeStatus(t.RawStatus)
	t.Priority = strings.ToLower(str(priority))
	if complexity.Valid {
		c := int(complexity.Int64)
		t.Complexity = &c
	}
	t.CreatedAt = str(created)
	t.ModifiedAt = str(modified)
	if t.ModifiedAt == "" {
		t.ModifiedAt = t.CreatedAt
	}
	t.FeatureName = str(fname)
	t.ProjectName = str(pname)
	return t, nil
}

func (r *Reader) queryTasks(ctx context.Context, query string, args ...any) ([]Task, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: query tasks: %w", err)
	}
	defer rows.Close()

	tasks := []Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// TaskFilter narrows Tasks. Zero fields do not filter.
type TaskFilter struct {
	ProjectID string
	FeatureID string
	// Status accepts either the stored or the normalized spelling.
	Status   string
	Priority string
	Limit    int
}

// Tasks lists tasks newest first. A task belongs to a project either
// directly or through its feature.
func (r *Reader) Tasks(ctx context.Context, f TaskFilter) ([]Task, error) {
	var (
		where = []string{"1=1"}
		args  []any
	)
	if f.ProjectID != "" {
		where = append(where, "("+matchID("t.project_id")+" OR "+matchID("f.project_id")+")")
		args = append(args, idArgs(f.ProjectID)...)
		args = append(args, idArgs(f.ProjectID)...)
	}
	if f.FeatureID != "" {
		where = append(where, matchID("t.feature_id"))
		args = append(args, idArgs(f.FeatureID)...)
	}
	if f.Status != "" {
		clause, a := statusIn("t.status", f.Status)
		where = append(where, clause)
		args = append(args, a...)
	}
	if f.Priority != "" {
		where = append(where, "UPPER(t.priority) = UPPER(?)")
		args = append(args, f.Priority)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = DefaultTaskLimit
	}
	if limit > maxTaskLimit {
		limit = maxTaskLimit
	}
	args = append(args, limit)

	q := taskSelect + " WHERE " + strings.Join(where, " AND ") + " ORDER BY t.created_at DESC LIMIT ?"
	return r.queryTasks(ctx, q, args...)
}

// Task returns one task by id.
func (r *Reader) Task(ctx context.Context, id string) (*Task, error) {
	row := r.q.QueryRowContext(ctx, taskSelect+" WHERE "+matchID("t.id"), idArgs(id)...)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: task %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("orchestrator: task %s: %w", id, err)
	}
	return &t, nil
}
