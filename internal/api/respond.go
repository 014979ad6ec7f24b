package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/taskboard/dashboard/internal/dbpool"
	"github.com/taskboard/dashboard/internal/orchestrator"
)

type errorBody struct {
	Error string `json:"error"`
}

// errBadRequest marks client input errors.
var errBadRequest = errors.New("bad request")

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto status codes. An unavailable data
// source is always a 503, never an empty result.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, dbpool.ErrConnectionUnavailable), errors.Is(err, dbpool.ErrPoolClosed):
		h.log.Warn("api: data source unavailable", "path", r.URL.Path, "err", err)
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "data source unavailable"})
	case errors.Is(err, orchestrator.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
	case errors.Is(err, orchestrator.ErrEmptyQuery), errors.Is(err, errBadRequest):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.Is(err, context.Canceled):
		// Client went away.
	default:
		h.log.Error("api: request failed", "path", r.URL.Path, "err", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

// serve borrows a lease for the request, runs fn against it and writes
// the result as JSON.
func (h *Handler) serve(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, rd *orchestrator.Reader) (any, error)) {
	lease, err := h.pool.Borrow(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	defer lease.Release()

	v, err := fn(r.Context(), orchestrator.NewReader(lease))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// intParam parses an optional integer query parameter.
func intParam(r *http.Request, name string, def int) (int, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", errBadRequest, name)
	}
	return n, nil
}
