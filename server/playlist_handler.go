package server

import (
	"net/http"

	"github.com/gorilla/mux"

	"Rippers/core/merge"
	"Rippers/core/playlist"
	"Rippers/logger"
)

func playlistID(r *http.Request) string {
	return mux.Vars(r)["id"]
}

type playlistRequest struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Tracks      []string `json:"tracks"`
}

// ListPlaylistsHandler GET /api/playlists
func (h *APIHandler) ListPlaylistsHandler(w http.ResponseWriter, r *http.Request) {
	lists, err := h.svc.Playlists.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, map[string]interface{}{"playlists": lists})
}

// CreatePlaylistHandler POST /api/playlists
func (h *APIHandler) CreatePlaylistHandler(w http.ResponseWriter, r *http.Request) {
	var req playlistRequest
	if err := decodeBody(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	var name, desc string
	if req.Name != nil {
		name = *req.Name
	}
	if req.Description != nil {
		desc = *req.Description
	}
	p, err := h.svc.Playlists.Create(r.Context(), name, desc, req.Tracks...)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, map[string]interface{}{"playlist": p})
}

// GetPlaylistHandler GET /api/playlists/{id}. Dangling references are
// reported separately from the resolvable tracks.
func (h *APIHandler) GetPlaylistHandler(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Playlists.Get(r.Context(), playlistID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	playable, err := h.svc.Playlists.Resolve(r.Context(), p.ID, h.svc.Tracks.Exists)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	// playable keeps playlist order, so one pass splits off the dangling names.
	missing := []string{}
	j := 0
	for _, name := range p.Filenames() {
		if j < len(playable) && playable[j] == name {
			j++
			continue
		}
		missing = append(missing, name)
	}
	writeOK(w, map[string]interface{}{"playlist": p, "playable": playable, "missing": missing})
}

// UpdatePlaylistHandler PUT /api/playlists/{id}
func (h *APIHandler) UpdatePlaylistHandler(w http.ResponseWriter, r *http.Request) {
	var req playlistRequest
	if err := decodeBody(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := h.svc.Playlists.Update(r.Context(), playlistID(r), req.Name, req.Description)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, map[string]interface{}{"playlist": p})
}

// DeletePlaylistHandler DELETE /api/playlists/{id}
func (h *APIHandler) DeletePlaylistHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Playlists.Delete(r.Context(), playlistID(r)); err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, nil)
}

// AddPlaylistTrackHandler POST /api/playlists/{id}/tracks {"filename": "..."}
func (h *APIHandler) AddPlaylistTrackHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Filename string `json:"filename"`
	}
	if err := decodeBody(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.svc.Playlists.AddTrack(r.Context(), playlistID(r), req.Filename); err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, nil)
}

// RemovePlaylistTrackHandler DELETE /api/playlists/{id}/tracks/{name}
func (h *APIHandler) RemovePlaylistTrackHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Playlists.RemoveTrack(r.Context(), playlistID(r), trackName(r)); err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, nil)
}

// ReorderPlaylistHandler PUT /api/playlists/{id}/order {"tracks": [...]}
func (h *APIHandler) ReorderPlaylistHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tracks []string `json:"tracks"`
	}
	if err := decodeBody(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.svc.Playlists.Reorder(r.Context(), playlistID(r), req.Tracks); err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, nil)
}

// ScanSilenceHandler GET /api/playlists/{id}/silence
func (h *APIHandler) ScanSilenceHandler(w http.ResponseWriter, r *http.Request) {
	warnings, err := h.svc.Compositor.ScanSilence(r.Context(), playlistID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, map[string]interface{}{"warnings": warnings})
}

// MergePlaylistHandler POST /api/playlists/{id}/merge {"trimSilence": bool}
func (h *APIHandler) MergePlaylistHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TrimSilence bool `json:"trimSilence"`
	}
	if r.ContentLength != 0 {
		if err := decodeBody(r, &req); err != nil {
			h.fail(w, r, err)
			return
		}
	}
	res, err := h.svc.Compositor.Merge(r.Context(), playlistID(r), merge.Options{TrimSilence: req.TrimSilence})
	if err != nil {
		if merge.IsRefusal(err) {
			logger.Info("Merge refused", logger.String("playlist_id", playlistID(r)), logger.ErrorField(err))
		}
		h.fail(w, r, err)
		return
	}
	writeOK(w, map[string]interface{}{"result": res})
}

// ExportPlaylistHandler GET /api/playlists/{id}/export
func (h *APIHandler) ExportPlaylistHandler(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Playlists.Get(r.Context(), playlistID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "audio/x-mpegurl")
	w.Header().Set("Content-Disposition", `attachment; filename="`+playlist.ExportFilename(p.Name)+`"`)
	if err := playlist.ExportM3U(w, p, h.svc.Config.PublicPrefix, h.svc.TrackLookup(r.Context())); err != nil {
		h.fail(w, r, err)
	}
}

// ImportPlaylistHandler POST /api/playlists/import?name=..., body is the M3U text.
func (h *APIHandler) ImportPlaylistHandler(w http.ResponseWriter, r *http.Request) {
	available, err := h.svc.Tracks.Names()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	p, res, err := h.svc.Playlists.ImportM3U(r.Context(), r.Body, available, r.URL.Query().Get("name"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, map[string]interface{}{"playlist": p, "entries": res.Entries})
}

// MixHandler POST /api/mix {"voice": "...", "bed": "...", "volume": 0.2}
func (h *APIHandler) MixHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Voice  string  `json:"voice"`
		Bed    string  `json:"bed"`
		Volume float64 `json:"volume"`
	}
	if err := decodeBody(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	name, err := h.svc.Compositor.MixBackground(r.Context(), req.Voice, req.Bed, merge.MixOptions{BedVolume: req.Volume})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, map[string]interface{}{"filename": name})
}
