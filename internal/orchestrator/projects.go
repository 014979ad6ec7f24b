package orchestrator

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const projectColumns = "id, name, summary, status, created_at, modified_at"

func scanProject(s scanner) (Project, error) {
	var (
		p                     Project
		name, summary, status sql.NullString
		created, modified     sql.NullString
	)
	if err := s.Scan(&p.ID, &name, &summary, &status, &created, &modified); err != nil {
		return Project{}, err
	}
	p.Name = str(name)
	p.Summary = str(summary)
	p.Status = NormalizeStatus(str(status))
	p.CreatedAt = str(created)
	p.ModifiedAt = str(modified)
	if p.ModifiedAt == "" {
		p.ModifiedAt = p.CreatedAt
	}
	p.Features = []Feature{}
	return p, nil
}

const featureColumns = "id, project_id, name, summary, status, priority, created_at, modified_at"

func scanFeature(s scanner) (Feature, error) {
	var (
		f                               Feature
		name, summary, status, priority sql.NullString
		created, modified               sql.NullString
	)
	if err := s.Scan(&f.ID, &f.ProjectID, &name, &summary, &status, &priority, &created, &modified); err != nil {
		return Feature{}, err
	}
	f.Name = str(name)
	f.Summary = str(summary)
	f.Status = NormalizeStatus(str(status))
	f.Priority = str(priority)
	f.CreatedAt = str(created)
	f.ModifiedAt = str(modified)
	if f.ModifiedAt == "" {
		f.ModifiedAt = f.CreatedAt
	}
	f.Tasks = []Task{}
	return f, nil
}

// loadFeatures returns the features matching where, each with its tasks.
func (r *Reader) loadFeatures(ctx context.Context, where string, args ...any) ([]Feature, error) {
	rows, err := r.q.QueryContext(ctx,
		"SELECT "+featureColumns+" FROM features WHERE "+where+" ORDER BY created_at DESC", args...)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: query features: %w", err)
	}
	features := []Feature{}
	index := make(map[ID]int)
	for rows.Next() {
		f, err := scanFeature(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("orchestrator: scan feature: %w", err)
		}
		index[f.ID] = len(features)
		features = append(features, f)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(features) == 0 {
		return features, nil
	}

	tasks, err := r.queryTasks(ctx,
		taskSelect+" WHERE t.feature_id IN (SELECT id FROM features WHERE "+where+") ORDER BY t.created_at DESC", args...)
	if err != nil {
		return nil, err
	}
	for _, t := range tasks {
		if i, ok := index[t.FeatureID]; ok {
			features[i].Tasks = append(features[i].Tasks, t)
		}
	}
	return features, nil
}

// Projects returns every project with its features and their tasks.
func (r *Reader) Projects(ctx context.Context) ([]Project, error) {
	rows, err := r.q.QueryContext(ctx, "SELECT "+projectColumns+" FROM projects ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("orchestrator: query projects: %w", err)
	}
	projects := []Project{}
	index := make(map[ID]int)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("orchestrator: scan project: %w", err)
		}
		index[p.ID] = len(projects)
		projects = append(projects, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	features, err := r.loadFeatures(ctx, "project_id IS NOT NULL")
	if err != nil {
		return nil, err
	}
	for _, f := range features {
		if i, ok := index[f.ProjectID]; ok {
			projects[i].Features = append(projects[i].Features, f)
		}
	}
	return projects, nil
}

// Project returns one project with its features and their tasks.
func (r *Reader) Project(ctx context.Context, id string) (*Project, error) {
	raw, err := r.resolve(ctx, "projects", id)
	if err != nil {
		return nil, err
	}
	p, err := scanProject(r.q.QueryRowContext(ctx, "SELECT "+projectColumns+" FROM projects WHERE id = ?", raw))
	if err != nil {
		return nil, fmt.Errorf("orchestrator: project %s: %w", id, err)
	}
	if p.Features, err = r.loadFeatures(ctx, "project_id = ?", raw); err != nil {
		return nil, err
	}
	return &p, nil
}

// Features lists features with their tasks, optionally for one project.
func (r *Reader) Features(ctx context.Context, projectID string) ([]Feature, error) {
	if projectID == "" {
		return r.loadFeatures(ctx, "1=1")
	}
	return r.loadFeatures(ctx, matchID("project_id"), idArgs(projectID)...)
}

// Feature returns one feature with its tasks.
func (r *Reader) Feature(ctx context.Context, id string) (*Feature, error) {
	raw, err := r.resolve(ctx, "features", id)
	if err != nil {
		return nil, err
	}
	features, err := r.loadFeatures(ctx, "id = ?", raw)
	if err != nil {
		return nil, err
	}
	if len(features) == 0 {
		return nil, fmt.Errorf("%w: feature %s", ErrNotFound, id)
	}
	return &features[0], nil
}

// projectTasksSQL selects ids of tasks that belong to a project directly or
// through a feature. It binds the project key twice.
const projectTasksSQL = `SELECT t.id FROM tasks t LEFT JOIN features f ON t.feature_id = f.id
WHERE t.project_id = ? OR f.project_id = ?`

// ProjectSummaries returns every project with completion counters, most
// recently modified first.
func (r *Reader) ProjectSummaries(ctx context.Context) ([]ProjectSummary, error) {
	const q = `
SELECT p.id, p.name, p.status, p.created_at, p.modified_at,
  (SELECT COUNT(*) FROM features f WHERE f.project_id = p.id),
  (SELECT COUNT(*) FROM features f WHERE f.project_id = p.id AND UPPER(f.status) IN ` + completedSQL + `),
  (SELECT COUNT(DISTINCT t.id) FROM tasks t LEFT JOIN features f ON t.feature_id = f.id
     WHERE t.project_id = p.id OR f.project_id = p.id),
  (SELECT COUNT(DISTINCT t.id) FROM tasks t LEFT JOIN features f ON t.feature_id = f.id
     WHERE (t.project_id = p.id OR f.project_id = p.id) AND UPPER(t.status) IN ` + completedSQL + `),
  (SELECT COALESCE(SUM(t.complexity), 0) FROM tasks t LEFT JOIN features f ON t.feature_id = f.id
     WHERE t.project_id = p.id OR f.project_id = p.id),
  (SELECT COALESCE(SUM(t.complexity), 0) FROM tasks t LEFT JOIN features f ON t.feature_id = f.id
     WHERE (t.project_id = p.id OR f.project_id = p.id) AND UPPER(t.status) IN ` + completedSQL + `)
FROM projects p
ORDER BY COALESCE(p.modified_at, p.created_at) DESC, p.created_at DESC`

	rows, err := r.q.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: project summaries: %w", err)
	}
	defer rows.Close()

	out := []ProjectSummary{}
	for rows.Next() {
		var (
			s                               ProjectSummary
			name, status, created, modified sql.NullString
		)
		if err := rows.Scan(&s.ID, &name, &status, &created, &modified,
			&s.FeatureCount, &s.CompletedFeatureCount, &s.TaskCount, &s.CompletedTaskCount,
			&s.TotalComplexity, &s.CompletedComplexity); err != nil {
			return nil, fmt.Errorf("orchestrator: scan project summary: %w", err)
		}
		s.Name = str(name)
		s.Status = NormalizeStatus(str(status))
		s.CreatedAt = str(created)
		s.ModifiedAt = str(modified)
		if s.ModifiedAt == "" {
			s.ModifiedAt = s.CreatedAt
		}
		s.TaskCompletion = percent(s.CompletedTaskCount, s.TaskCount)
		s.ComplexityCompletion = percent(s.CompletedComplexity, s.TotalComplexity)
		s.FeatureCompletion = percent(s.CompletedFeatureCount, s.FeatureCount)
		out = append(out, s)
	}
	return out, rows.Err()
}

// MostRecentProject returns the most recently modified project without
// its features.
func (r *Reader) MostRecentProject(ctx context.Context) (*Project, error) {
	p, err := scanProject(r.q.QueryRowContext(ctx,
		"SELECT "+projectColumns+" FROM projects ORDER BY COALESCE(modified_at, created_at) DESC, created_at DESC LIMIT 1"))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no projects", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("orchestrator: most recent project: %w", err)
	}
	return &p, nil
}

// ProjectOverview returns per-feature progress, the 50 most recently
// modified tasks and project-wide counters. days > 0 limits the task list
// to tasks modified in the last days days.
func (r *Reader) ProjectOverview(ctx context.Context, id string, days int) (*ProjectOverview, error) {
	raw, err := r.resolve(ctx, "projects", id)
	if err != nil {
		return nil, err
	}
	p, err := scanProject(r.q.QueryRowContext(ctx, "SELECT "+projectColumns+" FROM projects WHERE id = ?", raw))
	if err != nil {
		return nil, fmt.Errorf("orchestrator: project %s: %w", id, err)
	}
	p.Features = nil
	ov := &ProjectOverview{Project: p, Features: []FeatureProgress{}}

	rows, err := r.q.QueryContext(ctx, `
SELECT f.id, f.name, f.status, COUNT(t.id),
  COALESCE(SUM(CASE WHEN UPPER(t.status) IN `+completedSQL+` THEN 1 ELSE 0 END), 0),
  COALESCE(SUM(CASE WHEN UPPER(t.status) IN ('IN_PROGRESS','INPROGRESS','DOING') THEN 1 ELSE 0 END), 0)
FROM features f
LEFT JOIN tasks t ON t.feature_id = f.id
WHERE f.project_id = ?
GROUP BY f.id
ORDER BY COALESCE(f.modified_at, f.created_at) DESC`, raw)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: feature progress: %w", err)
	}
	for rows.Next() {
		var (
			fp           FeatureProgress
			name, status sql.NullString
		)
		if err := rows.Scan(&fp.ID, &name, &status, &fp.TaskCount, &fp.CompletedCount, &fp.InProgressCount); err != nil {
			rows.Close()
			return nil, fmt.Errorf("orchestrator: scan feature progress: %w", err)
		}
		fp.Name = str(name)
		fp.Status = NormalizeStatus(str(status))
		ov.Features = append(ov.Features, fp)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	taskQuery := taskSelect + " WHERE (t.project_id = ? OR f.project_id = ?)"
	args := []any{raw, raw}
	if days > 0 {
		taskQuery += " AND datetime(COALESCE(t.modified_at, t.created_at)) >= datetime('now', ?)"
		args = append(args, fmt.Sprintf("-%d days", days))
	}
	taskQuery += " ORDER BY COALESCE(t.modified_at, t.created_at) DESC LIMIT 50"
	if ov.Tasks, err = r.queryTasks(ctx, taskQuery, args...); err != nil {
		return nil, err
	}

	st := &ov.Stats
	st.FeatureCount = len(ov.Features)
	st.TaskCount = len(ov.Tasks)
	for _, t := range ov.Tasks {
		if t.Status == StatusCompleted {
			st.CompletedCount++
		}
	}

	var totalComplexity, completedComplexity, completedFeatures int
	counters := []struct {
		dst   *int
		query string
		args  []any
	}{
		{&st.DependencyCount, "SELECT COUNT(*) FROM dependencies WHERE from_task_id IN (" + projectTasksSQL + ")", []any{raw, raw}},
		{&st.SectionCount, `SELECT COUNT(*) FROM sections
WHERE (UPPER(entity_type) = 'PROJECT' AND entity_id = ?)
   OR (UPPER(entity_type) = 'FEATURE' AND entity_id IN (SELECT id FROM features WHERE project_id = ?))
   OR (UPPER(entity_type) = 'TASK' AND entity_id IN (` + projectTasksSQL + `))`, []any{raw, raw, raw, raw}},
		{&st.TotalTaskCount, "SELECT COUNT(*) FROM tasks WHERE id IN (" + projectTasksSQL + ")", []any{raw, raw}},
		{&st.TotalCompletedCount, "SELECT COUNT(*) FROM tasks WHERE UPPER(status) IN " + completedSQL + " AND id IN (" + projectTasksSQL + ")", []any{raw, raw}},
		{&totalComplexity, "SELECT COALESCE(SUM(complexity), 0) FROM tasks WHERE id IN (" + projectTasksSQL + ")", []any{raw, raw}},
		{&completedComplexity, "SELECT COALESCE(SUM(complexity), 0) FROM tasks WHERE UPPER(status) IN " + completedSQL + " AND id IN (" + projectTasksSQL + ")", []any{raw, raw}},
		{&completedFeatures, "SELECT COUNT(*) FROM features WHERE project_id = ? AND UPPER(status) IN " + completedSQL, []any{raw}},
	}
	for _, c := range counters {
		n, err := r.count(ctx, c.query, c.args...)
		if err != nil {
			return nil, err
		}
		*c.dst = n
	}

	st.TaskCompletion = percent(st.TotalCompletedCount, st.TotalTaskCount)
	st.ComplexityCompletion = percent(completedComplexity, totalComplexity)
	st.FeatureCompletion = percent(completedFeatures, st.FeatureCount)
	return ov, nil
}
