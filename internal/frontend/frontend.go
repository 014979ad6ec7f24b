// Package frontend serves the browser board: a single page that lists
// tasks by status and reloads them on every database_update event.
package frontend

import (
	"io/fs"
	"net/http"
	"os"
)

// Dir serves the board from a directory on disk, for editing the page
// without rebuilding.
func Dir(dir string) http.Handler {
	return serve(os.DirFS(dir))
}

// serve wraps a file server so browsers revalidate on every load; the
// page is small and must track the running binary.
func serve(files fs.FS) http.Handler {
	fileServer := http.FileServer(http.FS(files))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache")
		fileServer.ServeHTTP(w, r)
	})
}
