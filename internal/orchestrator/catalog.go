package orchestrator

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyQuery is returned by Search for a blank query.
var ErrEmptyQuery = errors.New("orchestrator: empty search query")

// Tags returns every tag with its usage count, most used first.
func (r *Reader) Tags(ctx context.Context) ([]Tag, error) {
	rows, err := r.q.QueryContext(ctx, `
SELECT tag, COUNT(*) AS n, GROUP_CONCAT(DISTINCT entity_type)
FROM entity_tags
GROUP BY tag
ORDER BY n DESC, tag`)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: query tags: %w", err)
	}
	defer rows.Close()

	tags := []Tag{}
	for rows.Next() {
		var (
			t     Tag
			types sql.NullString
		)
		if err := rows.Scan(&t.Tag, &t.Count, &types); err != nil {
			return nil, fmt.Errorf("orchestrator: scan tag: %w", err)
		}
		t.EntityTypes = []string{}
		if s := str(types); s != "" {
			t.EntityTypes = strings.Split(s, ",")
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

const sectionColumns = `id, entity_type, entity_id, title, usage_description, content,
content_format, ordinal, tags, created_at, modified_at`

// Sections returns the sections attached to one entity in display order.
// With no entity it returns the 100 most recently created sections.
func (r *Reader) Sections(ctx context.Context, entityType, entityID string) ([]Section, error) {
	var (
		q    string
		args []any
	)
	if entityType != "" && entityID != "" {
		q = "SELECT " + sectionColumns + " FROM sections WHERE UPPER(entity_type) = UPPER(?) AND " +
			matchID("entity_id") + " ORDER BY ordinal"
		args = append([]any{entityType}, idArgs(entityID)...)
	} else {
		q = "SELECT " + sectionColumns + " FROM sections ORDER BY created_at DESC LIMIT 100"
	}

	rows, err := r.q.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: query sections: %w", err)
	}
	defer rows.Close()

	sections := []Section{}
	for rows.Next() {
		var (
			s                                          Section
			etype, title, usage, content, format, tags sql.NullString
			created, modified                          sql.NullString
			ordinal                                    sql.NullInt64
		)
		if err := rows.Scan(&s.ID, &etype, &s.EntityID, &title, &usage, &content,
			&format, &ordinal, &tags, &created, &modified); err != nil {
			return nil, fmt.Errorf("orchestrator: scan section: %w", err)
		}
		s.EntityType = strings.ToUpper(str(etype))
		s.Title = str(title)
		s.UsageDescription = str(usage)
		s.Content = str(content)
		s.ContentFormat = str(format)
		s.Ordinal = int(ordinal.Int64)
		s.Tags = str(tags)
		s.CreatedAt = str(created)
		s.ModifiedAt = str(modified)
		sections = append(sections, s)
	}
	return sections, rows.Err()
}

// searchTargets maps an entity type filter to its table and columns.
var searchTargets = []struct {
	kind, filter, query string
}{
	{"project", "projects", "SELECT id, name, summary, status, COALESCE(modified_at, created_at) FROM projects WHERE name LIKE ? OR summary LIKE ? LIMIT 20"},
	{"feature", "features", "SELECT id, name, summary, status, COALESCE(modified_at, created_at) FROM features WHERE name LIKE ? OR summary LIKE ? LIMIT 20"},
	{"task", "tasks", "SELECT id, title, summary, status, COALESCE(modified_at, created_at) FROM tasks WHERE title LIKE ? OR summary LIKE ? LIMIT 20"},
}

// Search matches q as a substring of names, titles and summaries.
// entityType, when set, is one of projects, features or tasks.
func (r *Reader) Search(ctx context.Context, q, entityType string) ([]SearchResult, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, ErrEmptyQuery
	}
	term := "%" + q + "%"

	results := []SearchResult{}
	for _, target := range searchTargets {
		if entityType != "" && !strings.EqualFold(entityType, target.filter) && !strings.EqualFold(entityType, target.kind) {
			continue
		}
		rows, err := r.q.QueryContext(ctx, target.query, term, term)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: search %s: %w", target.filter, err)
		}
		for rows.Next() {
			var (
				res                             SearchResult
				name, summary, status, modified sql.NullString
			)
			if err := rows.Scan(&res.ID, &name, &summary, &status, &modified); err != nil {
				rows.Close()
				return nil, fmt.Errorf("orchestrator: scan %s result: %w", target.kind, err)
			}
			res.Type = target.kind
			res.Name = str(name)
			res.Summary = str(summary)
			res.Status = NormalizeStatus(str(status))
			res.ModifiedAt = str(modified)
			results = append(results, res)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, err
		}
	}
	return results, nil
}
