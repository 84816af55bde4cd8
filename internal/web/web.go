// Package web embeds the single-page dashboard.
package web

import (
	"embed"
	"io"
	"io/fs"
	"net/http"
	"strings"
)

// Files contains the dashboard assets.
//
//go:embed dist/*
var Files embed.FS

// Handler serves the embedded dashboard, falling back to index.html for
// paths that are not assets.
type Handler struct {
	fsys fs.FS
}

// NewHandler creates a handler for the embedded dashboard.
func NewHandler() *Handler {
	sub, err := fs.Sub(Files, "dist")
	if err != nil {
		panic(err)
	}
	return &Handler{fsys: sub}
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/")
	if name != "" {
		if f, err := h.fsys.Open(name); err == nil {
			_ = f.Close()
			if strings.Contains(name, ".") {
				w.Header().Set("Cache-Control", "public, max-age=3600")
			}
			http.FileServer(http.FS(h.fsys)).ServeHTTP(w, r)
			return
		}
	}

	index, err := h.fsys.Open("index.html")
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer func() { _ = index.Close() }()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	_, _ = io.Copy(w, index)
}
