package handlers

import (
	"embed"
	"io/fs"
	"net/http"
	"os"
)

//go:embed static/test.html
var staticFiles embed.FS

// TestPage serves test.html, a small form that posts to the ingredient API.
// When dir is non-empty the page is read from that directory instead of the
// embedded copy, so it can be edited without rebuilding.
func TestPage(dir string) http.HandlerFunc {
	var fsys fs.FS
	if dir != "" {
		fsys = os.DirFS(dir)
	} else {
		sub, err := fs.Sub(staticFiles, "static")
		if err != nil {
			panic(err)
		}
		fsys = sub
	}

	return func(w http.ResponseWriter, r *http.Request) {
		data, err := fs.ReadFile(fsys, "test.html")
		if err != nil {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
