//go:build !embed

package frontend

import "net/http"

// Handler returns nil unless the binary was built with -tags embed. The
// server then serves server.static_dir from disk.
func Handler() http.Handler {
	return nil
}
