package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taskboard/dashboard/internal/orchestrator"
)

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, func(ctx context.Context, rd *orchestrator.Reader) (any, error) {
		return rd.Stats(ctx)
	})
}

func (h *Handler) handleProjects(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, func(ctx context.Context, rd *orchestrator.Reader) (any, error) {
		return rd.Projects(ctx)
	})
}

func (h *Handler) handleProjectSummaries(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, func(ctx context.Context, rd *orchestrator.Reader) (any, error) {
		return rd.ProjectSummaries(ctx)
	})
}

func (h *Handler) handleMostRecentProject(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, func(ctx context.Context, rd *orchestrator.Reader) (any, error) {
		return rd.MostRecentProject(ctx)
	})
}

func (h *Handler) handleProject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.serve(w, r, func(ctx context.Context, rd *orchestrator.Reader) (any, error) {
		return rd.Project(ctx, id)
	})
}

func (h *Handler) handleProjectOverview(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	days, err := intParam(r, "days", 0)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.serve(w, r, func(ctx context.Context, rd *orchestrator.Reader) (any, error) {
		return rd.ProjectOverview(ctx, id, days)
	})
}

func (h *Handler) handleFeatures(w http.ResponseWriter, r *http.Request) {
	projectID := r.URL.Query().Get("project_id")
	h.serve(w, r, func(ctx context.Context, rd *orchestrator.Reader) (any, error) {
		return rd.Features(ctx, projectID)
	})
}

func (h *Handler) handleFeature(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.serve(w, r, func(ctx context.Context, rd *orchestrator.Reader) (any, error) {
		return rd.Feature(ctx, id)
	})
}

func (h *Handler) handleTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := intParam(r, "limit", orchestrator.DefaultTaskLimit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	filter := orchestrator.TaskFilter{
		ProjectID: q.Get("project_id"),
		FeatureID: q.Get("feature_id"),
		Status:    q.Get("status"),
		Priority:  q.Get("priority"),
		Limit:     limit,
	}
	h.serve(w, r, func(ctx context.Context, rd *orchestrator.Reader) (any, error) {
		return rd.Tasks(ctx, filter)
	})
}

func (h *Handler) handleTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.serve(w, r, func(ctx context.Context, rd *orchestrator.Reader) (any, error) {
		return rd.Task(ctx, id)
	})
}

func (h *Handler) handleTaskDependencies(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.serve(w, r, func(ctx context.Context, rd *orchestrator.Reader) (any, error) {
		return rd.TaskDependencies(ctx, id)
	})
}

func (h *Handler) handleDependencies(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, func(ctx context.Context, rd *orchestrator.Reader) (any, error) {
		return rd.Dependencies(ctx)
	})
}

func (h *Handler) handleDependencyGraph(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	projectID, featureID := q.Get("project_id"), q.Get("feature_id")
	h.serve(w, r, func(ctx context.Context, rd *orchestrator.Reader) (any, error) {
		return rd.DependencyGraph(ctx, projectID, featureID)
	})
}

func (h *Handler) handleTags(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, func(ctx context.Context, rd *orchestrator.Reader) (any, error) {
		return rd.Tags(ctx)
	})
}

func (h *Handler) handleTemplates(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, func(ctx context.Context, rd *orchestrator.Reader) (any, error) {
		return rd.Templates(ctx)
	})
}

func (h *Handler) handleWorkSessions(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, func(ctx context.Context, rd *orchestrator.Reader) (any, error) {
		return rd.WorkSessions(ctx)
	})
}

func (h *Handler) handleTaskLocks(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, func(ctx context.Context, rd *orchestrator.Reader) (any, error) {
		return rd.TaskLocks(ctx)
	})
}

func (h *Handler) handleSections(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	entityType, entityID := q.Get("entity_type"), q.Get("entity_id")
	h.serve(w, r, func(ctx context.Context, rd *orchestrator.Reader) (any, error) {
		return rd.Sections(ctx, entityType, entityID)
	})
}

type searchResponse struct {
	Query   string                      `json:"query"`
	Results []orchestrator.SearchResult `json:"results"`
	Count   int                         `json:"count"`
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	term, entityType := q.Get("q"), q.Get("entity_type")
	h.serve(w, r, func(ctx context.Context, rd *orchestrator.Reader) (any, error) {
		results, err := rd.Search(ctx, term, entityType)
		if err != nil {
			return nil, err
		}
		return searchResponse{Query: term, Results: results, Count: len(results)}, nil
	})
}

type activityResponse struct {
	Activities []orchestrator.Activity `json:"activities"`
	Count      int                     `json:"count"`
}

func (h *Handler) handleRecentActivity(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", 20)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if limit > 100 {
		h.writeError(w, r, fmt.Errorf("%w: limit must be at most 100", errBadRequest))
		return
	}
	projectID := r.URL.Query().Get("project_id")
	h.serve(w, r, func(ctx context.Context, rd *orchestrator.Reader) (any, error) {
		activities, err := rd.RecentActivity(ctx, projectID, limit)
		if err != nil {
			return nil, err
		}
		return activityResponse{Activities: activities, Count: len(activities)}, nil
	})
}

func (h *Handler) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	projectID := r.URL.Query().Get("project_id")
	h.serve(w, r, func(ctx context.Context, rd *orchestrator.Reader) (any, error) {
		return rd.Analytics(ctx, projectID)
	})
}
