package dbpool

import "context"

type scopeKey struct{}

// scope pins one handle per path for the lifetime of a context. Its map is
// guarded by Pool.mu.
type scope struct {
	handles map[string]*handle
}

// WithScope returns a context in which repeated borrows for the same path
// share one handle while any lease on it is outstanding. Scopes do not
// nest: a context that already carries one is returned unchanged.
func WithScope(ctx context.Context) context.Context {
	if scopeFrom(ctx) != nil {
		return ctx
	}
	return context.WithValue(ctx, scopeKey{}, &scope{handles: make(map[string]*handle)})
}

func scopeFrom(ctx context.Context) *scope {
	sc, _ := ctx.Value(scopeKey{}).(*scope)
	return sc
}

func (s *scope) get(path string) *handle {
	if s == nil {
		return nil
	}
	return s.handles[path]
}

func (s *scope) set(path string, h *handle) {
	if s == nil {
		return
	}
	s.handles[path] = h
}

// clear forgets h only if it is still the pinned handle for path.
func (s *scope) clear(path string, h *handle) {
	if s == nil {
		return
	}
	if s.handles[path] == h {
		delete(s.handles, path)
	}
}
