package orchestrator

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// Stats returns database-wide counters.
func (r *Reader) Stats(ctx context.Context) (*Stats, error) {
	s := &Stats{LastUpdated: time.Now()}
	counters := []struct {
		dst      *int
		query    string
		optional bool
	}{
		{&s.Projects, "SELECT COUNT(*) FROM projects", false},
		{&s.Features, "SELECT COUNT(*) FROM features", false},
		{&s.Tasks.Total, "SELECT COUNT(*) FROM tasks", false},
		{&s.Tasks.Completed, "SELECT COUNT(*) FROM tasks WHERE UPPER(status) IN " + completedSQL, false},
		{&s.Tasks.InProgress, "SELECT COUNT(*) FROM tasks WHERE UPPER(status) IN ('IN_PROGRESS','INPROGRESS','DOING')", false},
		{&s.Tasks.Pending, "SELECT COUNT(*) FROM tasks WHERE UPPER(status) IN ('PENDING','TODO')", false},
		{&s.Dependencies, "SELECT COUNT(*) FROM dependencies", false},
		{&s.Sections, "SELECT COUNT(*) FROM sections", false},
		{&s.Templates, "SELECT COUNT(*) FROM templates WHERE is_enabled = 1", true},
	}
	for _, c := range counters {
		var (
			n   int
			err error
		)
		if c.optional {
			n, err = r.countOptional(ctx, c.query)
		} else {
			n, err = r.count(ctx, c.query)
		}
		if err != nil {
			return nil, err
		}
		*c.dst = n
	}
	if s.Tasks.Total > 0 {
		s.Tasks.CompletionRate = math.Round(float64(s.Tasks.Completed)/float64(s.Tasks.Total)*1000) / 10
	}
	return s, nil
}

// ProjectCount is the cheapest query that proves the schema is readable.
func (r *Reader) ProjectCount(ctx context.Context) (int, error) {
	return r.count(ctx, "SELECT COUNT(*) FROM projects")
}

const maxActivity = 100

// RecentActivity merges recently modified projects, features and tasks,
// newest first. With projectID set, projects are omitted and features and
// tasks are limited to that project.
func (r *Reader) RecentActivity(ctx context.Context, projectID string, limit int) ([]Activity, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > maxActivity {
		limit = maxActivity
	}

	type source struct {
		kind  string
		query string
		args  []any
	}
	var sources []source
	if projectID == "" {
		sources = []source{
			{"project", `SELECT id, name, name, COALESCE(modified_at, created_at) FROM projects
ORDER BY COALESCE(modified_at, created_at) DESC LIMIT ?`, []any{limit}},
			{"feature", `SELECT f.id, f.name, p.name, COALESCE(f.modified_at, f.created_at)
FROM features f LEFT JOIN projects p ON f.project_id = p.id
ORDER BY COALESCE(f.modified_at, f.created_at) DESC LIMIT ?`, []any{limit}},
			{"task", `SELECT t.id, t.title, COALESCE(p.name, p2.name), COALESCE(t.modified_at, t.created_at)
FROM tasks t
LEFT JOIN projects p ON t.project_id = p.id
LEFT JOIN features f ON t.feature_id = f.id
LEFT JOIN projects p2 ON f.project_id = p2.id
ORDER BY COALESCE(t.modified_at, t.created_at) DESC LIMIT ?`, []any{limit}},
		}
	} else {
		pid := idArgs(projectID)
		sources = []source{
			{"feature", `SELECT f.id, f.name, p.name, COALESCE(f.modified_at, f.created_at)
FROM features f LEFT JOIN projects p ON f.project_id = p.id
WHERE ` + matchID("f.project_id") + `
ORDER BY COALESCE(f.modified_at, f.created_at) DESC LIMIT ?`, append(append([]any{}, pid...), limit)},
			{"task", `SELECT t.id, t.title, COALESCE(p.name, p2.name), COALESCE(t.modified_at, t.created_at)
FROM tasks t
LEFT JOIN projects p ON t.project_id = p.id
LEFT JOIN features f ON t.feature_id = f.id
LEFT JOIN projects p2 ON f.project_id = p2.id
WHERE ` + matchID("t.project_id") + ` OR ` + matchID("f.project_id") + `
ORDER BY COALESCE(t.modified_at, t.created_at) DESC LIMIT ?`, append(append(append([]any{}, pid...), pid...), limit)},
		}
	}

	activities := []Activity{}
	for _, src := range sources {
		rows, err := r.q.QueryContext(ctx, src.query, src.args...)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: recent %s activity: %w", src.kind, err)
		}
		for rows.Next() {
			var (
				a                       Activity
				name, project, datetime sql.NullString
			)
			if err := rows.Scan(&a.EntityID, &name, &project, &datetime); err != nil {
				rows.Close()
				return nil, fmt.Errorf("orchestrator: scan %s activity: %w", src.kind, err)
			}
			a.EntityType = src.kind
			a.EntityName = str(name)
			if a.EntityName == "" {
				a.EntityName = "Unnamed"
			}
			a.Project = str(project)
			if a.Project == "" {
				a.Project = "Unknown"
			}
			a.Datetime = str(datetime)
			a.Action = "updated"
			activities = append(activities, a)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, err
		}
	}

	sort.SliceStable(activities, func(i, j int) bool {
		return activities[i].Datetime > activities[j].Datetime
	})
	if len(activities) > limit {
		activities = activities[:limit]
	}
	return activities, nil
}

// Analytics returns status and priority distributions, the average
// complexity and the number of blocked tasks, optionally for one project.
func (r *Reader) Analytics(ctx context.Context, projectID string) (*Analytics, error) {
	a := &Analytics{
		StatusDistribution:   map[string]int{},
		PriorityDistribution: map[string]int{},
		ProjectID:            projectID,
		Timestamp:            time.Now(),
	}

	scope := "1=1"
	var args []any
	if projectID != "" {
		scope = "(" + matchID("t.project_id") + " OR " + matchID("f.project_id") + ")"
		args = append(idArgs(projectID), idArgs(projectID)...)
	}
	from := " FROM tasks t LEFT JOIN features f ON t.feature_id = f.id WHERE " + scope

	distributions := []struct {
		col       string
		dst       map[string]int
		normalize func(string) string
	}{
		{"t.status", a.StatusDistribution, NormalizeStatus},
		{"t.priority", a.PriorityDistribution, strings.ToLower},
	}
	for _, d := range distributions {
		rows, err := r.q.QueryContext(ctx, "SELECT "+d.col+", COUNT(*)"+from+" GROUP BY "+d.col, args...)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: analytics: %w", err)
		}
		for rows.Next() {
			var (
				key sql.NullString
				n   int
			)
			if err := rows.Scan(&key, &n); err != nil {
				rows.Close()
				return nil, fmt.Errorf("orchestrator: scan analytics: %w", err)
			}
			k := d.normalize(str(key))
			if k == "" {
				k = "unknown"
			}
			d.dst[k] += n
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, err
		}
	}

	var avg sql.NullFloat64
	if err := r.q.QueryRowContext(ctx, "SELECT AVG(t.complexity)"+from, args...).Scan(&avg); err != nil {
		return nil, fmt.Errorf("orchestrator: average complexity: %w", err)
	}
	a.AverageComplexity = math.Round(avg.Float64*100) / 100

	blocked, err := r.count(ctx, `SELECT COUNT(DISTINCT d.to_task_id) FROM dependencies d
WHERE UPPER(d.type) = 'BLOCKS' AND d.to_task_id IN (SELECT t.id`+from+`)`, args...)
	if err != nil {
		return nil, err
	}
	a.BlockedTasks = blocked
	return a, nil
}
