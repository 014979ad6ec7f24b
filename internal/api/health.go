package api

import (
	"context"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/taskboard/dashboard/internal/dbpool"
	"github.com/taskboard/dashboard/internal/orchestrator"
)

type processStats struct {
	PID        int     `json:"pid"`
	RSSBytes   uint64  `json:"rss_bytes"`
	CPUPercent float64 `json:"cpu_percent"`
	Threads    int32   `json:"threads"`
	Goroutines int     `json:"goroutines"`
}

type healthResponse struct {
	Status               string        `json:"status"`
	Database             string        `json:"database"`
	Error                string        `json:"error,omitempty"`
	WebSocketConnections int           `json:"websocket_connections"`
	Version              string        `json:"version"`
	UptimeSeconds        int64         `json:"uptime_seconds"`
	Pool                 dbpool.Stats  `json:"pool"`
	Process              *processStats `json:"process,omitempty"`
}

// selfStats samples this process. Failures leave fields zero; health
// never fails because of them.
func selfStats(ctx context.Context) *processStats {
	ps := &processStats{PID: os.Getpid(), Goroutines: runtime.NumGoroutine()}
	p, err := process.NewProcessWithContext(ctx, int32(ps.PID))
	if err != nil {
		return ps
	}
	if mem, err := p.MemoryInfoWithContext(ctx); err == nil && mem != nil {
		ps.RSSBytes = mem.RSS
	}
	if cpu, err := p.CPUPercentWithContext(ctx); err == nil {
		ps.CPUPercent = cpu
	}
	if n, err := p.NumThreadsWithContext(ctx); err == nil {
		ps.Threads = n
	}
	return ps
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:               "healthy",
		Database:             "connected",
		WebSocketConnections: h.reg.ConnectedCount(),
		Version:              Version,
		UptimeSeconds:        int64(time.Since(h.started).Seconds()),
		Process:              selfStats(r.Context()),
	}

	status := http.StatusOK
	err := h.ping(r.Context())
	if err != nil {
		h.log.Warn("api: health check failed", "err", err)
		resp.Status = "unhealthy"
		resp.Database = "unavailable"
		resp.Error = "data source unavailable"
		status = http.StatusServiceUnavailable
	}
	resp.Pool = h.pool.Stats()
	writeJSON(w, status, resp)
}

func (h *Handler) ping(ctx context.Context) error {
	lease, err := h.pool.Borrow(ctx)
	if err != nil {
		return err
	}
	defer lease.Release()
	var one int
	return lease.QueryRowContext(ctx, "SELECT 1").Scan(&one)
}

type refreshResponse struct {
	Success       bool      `json:"success"`
	Message       string    `json:"message"`
	ProjectsCount int       `json:"projects_count"`
	Timestamp     time.Time `json:"timestamp"`
}

// handleRefresh drops every pooled handle so the next borrow reopens the
// file, then proves the new handle works.
func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	h.pool.Invalidate(h.pool.Path())
	h.log.Info("api: pool refreshed", "path", h.pool.Path())

	h.serve(w, r, func(ctx context.Context, rd *orchestrator.Reader) (any, error) {
		n, err := rd.ProjectCount(ctx)
		if err != nil {
			return nil, err
		}
		return refreshResponse{
			Success:       true,
			Message:       "Database connections refreshed successfully",
			ProjectsCount: n,
			Timestamp:     time.Now(),
		}, nil
	})
}
