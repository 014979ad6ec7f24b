// Package api serves the read model over HTTP with chi. Every request gets
// a dbpool scope, so handlers that borrow more than once share one handle.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/taskboard/dashboard/internal/dbpool"
	"github.com/taskboard/dashboard/internal/hub"
)

// Version is reported by /api/health.
var Version = "dev"

type Options struct {
	// RequestsPerSecond limits the whole API. Zero disables the limit.
	RequestsPerSecond float64
	Burst             int
	// WebSocket, when set, is mounted at /ws.
	WebSocket http.Handler
	// Static, when set, serves everything outside /api and /ws.
	Static http.Handler
	Logger *slog.Logger
}

type Handler struct {
	pool    *dbpool.Pool
	reg     *hub.Registry
	opts    Options
	log     *slog.Logger
	limiter *rate.Limiter
	started time.Time
}

func New(pool *dbpool.Pool, reg *hub.Registry, opts Options) *Handler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	h := &Handler{
		pool:    pool,
		reg:     reg,
		opts:    opts,
		log:     opts.Logger,
		started: time.Now(),
	}
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = int(opts.RequestsPerSecond) + 1
		}
		h.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	return h
}

// Router builds the HTTP routes.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.logRequests)
	r.Use(middleware.Recoverer)

	if h.opts.WebSocket != nil {
		r.Handle("/ws", h.opts.WebSocket)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(h.rateLimit)
		r.Use(dbScope)
		r.Use(middleware.SetHeader("Cache-Control", "no-store"))

		r.Get("/health", h.handleHealth)
		r.Post("/refresh", h.handleRefresh)
		r.Get("/stats", h.handleStats)

		r.Get("/projects", h.handleProjects)
		r.Get("/projects/summary", h.handleProjectSummaries)
		r.Get("/projects/most-recent", h.handleMostRecentProject)
		r.Get("/projects/{id}", h.handleProject)
		r.Get("/projects/{id}/overview", h.handleProjectOverview)

		r.Get("/features", h.handleFeatures)
		r.Get("/features/{id}", h.handleFeature)

		r.Get("/tasks", h.handleTasks)
		r.Get("/tasks/{id}", h.handleTask)
		r.Get("/tasks/{id}/dependencies", h.handleTaskDependencies)

		r.Get("/dependencies", h.handleDependencies)
		r.Get("/dependency-graph", h.handleDependencyGraph)
		r.Get("/tags", h.handleTags)
		r.Get("/sections", h.handleSections)
		r.Get("/search", h.handleSearch)
		r.Get("/recent-activity", h.handleRecentActivity)
		r.Get("/analytics/overview", h.handleAnalytics)

		r.Get("/templates", h.handleTemplates)
		r.Get("/work-sessions", h.handleWorkSessions)
		r.Get("/task-locks", h.handleTaskLocks)

		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
		})
	})

	if h.opts.Static != nil {
		r.Handle("/*", h.opts.Static)
	}
	return r
}

// dbScope pins pool handles to the request.
func dbScope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(dbpool.WithScope(r.Context())))
	})
}

func (h *Handler) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.limiter != nil && !h.limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.log.Debug("api: request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}
