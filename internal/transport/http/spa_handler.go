package http

import (
	"errors"
	"io/fs"
	"net/http"
	"strings"
)

// SPAHandler serves the console UI bundle. Unknown paths fall back to
// index.html so the client router can resolve them.
type SPAHandler struct {
	StaticFS fs.FS
}

func (h SPAHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/")
	if path == "" || !fs.ValidPath(path) {
		h.serveIndex(w, r)
		return
	}

	stat, err := fs.Stat(h.StaticFS, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			h.serveIndex(w, r)
			return
		}
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if stat.IsDir() {
		h.serveIndex(w, r)
		return
	}

	// Hashed build assets never change under the same name.
	if strings.HasPrefix(path, "assets/") {
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	}
	http.FileServerFS(h.StaticFS).ServeHTTP(w, r)
}

func (h SPAHandler) serveIndex(w http.ResponseWriter, r *http.Request) {
	content, err := fs.ReadFile(h.StaticFS, "index.html")
	if err != nil {
		respondError(w, http.StatusNotFound, "index.html not found")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		_, _ = w.Write(content)
	}
}
