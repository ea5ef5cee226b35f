package server

import (
	"net/http"
	"path"
	"strings"

	"Rippers/core/library"
)

// TrackFileHandler serves track downloads. Only track files are served; sidecars,
// backups and dot files under the same directory are hidden.
type TrackFileHandler struct {
	layout library.Layout
	files  http.Handler
}

func NewTrackFileHandler(layout library.Layout) *TrackFileHandler {
	return &TrackFileHandler{layout: layout, files: http.FileServer(http.Dir(layout.TrackDir))}
}

// ServeHTTP expects the public prefix to be stripped already.
func (h *TrackFileHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := path.Base(r.URL.Path)
	if strings.Trim(r.URL.Path, "/") != name || !h.layout.IsTrackFile(name) {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Accept-Ranges", "bytes")
	h.files.ServeHTTP(w, r)
}
