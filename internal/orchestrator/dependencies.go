package orchestrator

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

const dependencySelect = `
SELECT d.id, d.from_task_id, d.to_task_id, d.type, d.created_at, t1.title, t2.title
FROM dependencies d
LEFT JOIN tasks t1 ON d.from_task_id = t1.id
LEFT JOIN tasks t2 ON d.to_task_id = t2.id`

func (r *Reader) queryDependencies(ctx context.Context, query string, args ...any) ([]Dependency, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: query dependencies: %w", err)
	}
	defer rows.Close()

	deps := []Dependency{}
	for rows.Next() {
		var (
			d                      Dependency
			typ, created, from, to sql.NullString
		)
		if err := rows.Scan(&d.ID, &d.FromTaskID, &d.ToTaskID, &typ, &created, &from, &to); err != nil {
			return nil, fmt.Errorf("orchestrator: scan dependency: %w", err)
		}
		d.Type = strings.ToUpper(str(typ))
		if d.Type == "" {
			d.Type = "BLOCKS"
		}
		d.CreatedAt = str(created)
		d.FromTaskTitle = str(from)
		d.ToTaskTitle = str(to)
		deps = append(deps, d)
	}
	return deps, rows.Err()
}

// Dependencies lists every dependency with the titles of both ends.
func (r *Reader) Dependencies(ctx context.Context) ([]Dependency, error) {
	return r.queryDependencies(ctx, dependencySelect+" ORDER BY d.created_at DESC")
}

// TaskDependencies lists dependencies in which the task is either end.
func (r *Reader) TaskDependencies(ctx context.Context, taskID string) ([]Dependency, error) {
	q := dependencySelect + " WHERE " + matchID("d.from_task_id") + " OR " + matchID("d.to_task_id") +
		" ORDER BY d.created_at DESC"
	args := append(idArgs(taskID), idArgs(taskID)...)
	return r.queryDependencies(ctx, q, args...)
}

// DependencyGraph returns the tasks of an optional project or feature as
// nodes, the dependencies touching them as edges, and every dependency
// cycle among them.
func (r *Reader) DependencyGraph(ctx context.Context, projectID, featureID string) (*DependencyGraph, error) {
	var (
		where = []string{"1=1"}
		args  []any
	)
	if projectID != "" {
		where = append(where, "("+matchID("t.project_id")+" OR "+matchID("f.project_id")+")")
		args = append(args, idArgs(projectID)...)
		args = append(args, idArgs(projectID)...)
	}
	if featureID != "" {
		where = append(where, matchID("t.feature_id"))
		args = append(args, idArgs(featureID)...)
	}
	filter := strings.Join(where, " AND ")

	tasks, err := r.queryTasks(ctx, taskSelect+" WHERE "+filter+" ORDER BY t.created_at", args...)
	if err != nil {
		return nil, err
	}
	g := &DependencyGraph{Nodes: []GraphNode{}, Edges: []GraphEdge{}, Cycles: [][]ID{}}
	if len(tasks) == 0 {
		return g, nil
	}
	for _, t := range tasks {
		n := GraphNode{ID: t.ID, Label: t.Title, Status: t.Status, Priority: t.Priority, Complexity: 5}
		if n.Status == "" {
			n.Status = StatusPending
		}
		if n.Priority == "" {
			n.Priority = "medium"
		}
		if t.Complexity != nil {
			n.Complexity = *t.Complexity
		}
		g.Nodes = append(g.Nodes, n)
	}

	inScope := `SELECT t.id FROM tasks t LEFT JOIN features f ON t.feature_id = f.id WHERE ` + filter
	deps, err := r.queryDependencies(ctx,
		dependencySelect+" WHERE d.from_task_id IN ("+inScope+") OR d.to_task_id IN ("+inScope+")",
		append(append([]any{}, args...), args...)...)
	if err != nil {
		return nil, err
	}
	for _, d := range deps {
		g.Edges = append(g.Edges, GraphEdge{Source: d.FromTaskID, Target: d.ToTaskID, Type: d.Type})
	}
	g.Cycles = FindCycles(g.Edges)
	return g, nil
}
