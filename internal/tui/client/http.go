// Package client talks to a running dashboard server: REST for the read
// model and a WebSocket for change notifications.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/taskboard/dashboard/internal/orchestrator"
)

// HTTPClient makes REST calls to the dashboard server.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient creates a client targeting baseURL, e.g. "http://127.0.0.1:8888".
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Tasks fetches /api/tasks. Empty filter fields are omitted.
func (c *HTTPClient) Tasks(ctx context.Context, f orchestrator.TaskFilter) ([]orchestrator.Task, error) {
	q := url.Values{}
	set := func(k, v string) {
		if v != "" {
			q.Set(k, v)
		}
	}
	set("project_id", f.ProjectID)
	set("feature_id", f.FeatureID)
	set("status", f.Status)
	set("priority", f.Priority)
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	path := "/api/tasks"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var out []orchestrator.Task
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Task fetches /api/tasks/{id}.
func (c *HTTPClient) Task(ctx context.Context, id string) (*orchestrator.Task, error) {
	var t orchestrator.Task
	if err := c.get(ctx, "/api/tasks/"+url.PathEscape(id), &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// TaskDependencies fetches /api/tasks/{id}/dependencies.
func (c *HTTPClient) TaskDependencies(ctx context.Context, id string) ([]orchestrator.Dependency, error) {
	var out []orchestrator.Dependency
	if err := c.get(ctx, "/api/tasks/"+url.PathEscape(id)+"/dependencies", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Stats fetches /api/stats.
func (c *HTTPClient) Stats(ctx context.Context) (*orchestrator.Stats, error) {
	var s orchestrator.Stats
	if err := c.get(ctx, "/api/stats", &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Path    string
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: %d %s", e.Path, e.Code, e.Message)
}

// Unavailable reports whether the server could not reach its database.
func (e *StatusError) Unavailable() bool {
	return e.Code == http.StatusServiceUnavailable
}

func (c *HTTPClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var e struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(body))
		if json.Unmarshal(body, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return &StatusError{Path: path, Code: resp.StatusCode, Message: msg}
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
