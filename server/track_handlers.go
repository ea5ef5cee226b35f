package server

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"Rippers/core/library"
	"Rippers/core/normalize"
	"Rippers/core/trim"
	"Rippers/logger"
	"Rippers/model"
)

func trackName(r *http.Request) string {
	return mux.Vars(r)["name"]
}

// GetTracksHandler GET /api/tracks
func (h *APIHandler) GetTracksHandler(w http.ResponseWriter, r *http.Request) {
	tracks, err := h.svc.Tracks.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, map[string]interface{}{"tracks": tracks, "count": len(tracks)})
}

// GetTrackHandler GET /api/tracks/{name}; ?probe=1 adds duration and peak.
func (h *APIHandler) GetTrackHandler(w http.ResponseWriter, r *http.Request) {
	var (
		t   *model.Track
		err error
	)
	if probe, _ := strconv.ParseBool(r.URL.Query().Get("probe")); probe {
		t, err = h.svc.Tracks.Probe(r.Context(), trackName(r))
	} else {
		t, err = h.svc.Tracks.Get(r.Context(), trackName(r))
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	fields := map[string]interface{}{"track": t}
	if t.PeakDB != nil {
		fields["needsNormalization"] = normalize.NeedsNormalization(*t.PeakDB)
	}
	writeOK(w, fields)
}

// RenameTrackHandler PUT /api/tracks/{name} {"newName": "..."}
func (h *APIHandler) RenameTrackHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		NewName string `json:"newName"`
	}
	if err := decodeBody(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	name, err := h.svc.Tracks.Rename(r.Context(), trackName(r), req.NewName)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, map[string]interface{}{"filename": name})
}

// DeleteTrackHandler DELETE /api/tracks/{name}
func (h *APIHandler) DeleteTrackHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Tracks.Delete(r.Context(), trackName(r)); err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, nil)
}

// UpdateMetadataHandler PUT /api/tracks/{name}/meta; ?tags=0 skips the tag write.
func (h *APIHandler) UpdateMetadataHandler(w http.ResponseWriter, r *http.Request) {
	var update model.MetadataUpdate
	if err := decodeBody(r, &update); err != nil {
		h.fail(w, r, err)
		return
	}
	writeTags := true
	if v := r.URL.Query().Get("tags"); v != "" {
		writeTags, _ = strconv.ParseBool(v)
	}
	sc, err := h.svc.Tracks.UpdateMetadata(r.Context(), trackName(r), update, writeTags)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, map[string]interface{}{"metadata": sc})
}

// PeakHandler GET /api/tracks/{name}/peak
func (h *APIHandler) PeakHandler(w http.ResponseWriter, r *http.Request) {
	peak, err := h.svc.Normalizer.MeasurePeak(r.Context(), trackName(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, map[string]interface{}{
		"peakDb":             peak,
		"needsNormalization": normalize.NeedsNormalization(peak),
	})
}

// NormalizeHandler POST /api/tracks/{name}/normalize
func (h *APIHandler) NormalizeHandler(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Normalizer.Apply(r.Context(), trackName(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, map[string]interface{}{"result": res})
}

// RestoreHandler POST /api/tracks/{name}/restore
func (h *APIHandler) RestoreHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Normalizer.Restore(r.Context(), trackName(r)); err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, nil)
}

// ToggleNormalizeHandler POST /api/tracks/{name}/toggle
func (h *APIHandler) ToggleNormalizeHandler(w http.ResponseWriter, r *http.Request) {
	action, res, err := h.svc.Normalizer.Toggle(r.Context(), trackName(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, map[string]interface{}{"action": action, "result": res})
}

// TrimHandler POST /api/tracks/{name}/trim {"start": "1:30", "end": "200.5"}
func (h *APIHandler) TrimHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Start string `json:"start"`
		End   string `json:"end"`
	}
	if err := decodeBody(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	start, err := trim.ParseTimeSpec(req.Start)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	end, err := trim.ParseTimeSpec(req.End)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.svc.Trimmer.Apply(r.Context(), trackName(r), start, end); err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, nil)
}

// TrimSilenceHandler POST /api/tracks/{name}/trim-silence
func (h *APIHandler) TrimSilenceHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Trimmer.TrimSilence(r.Context(), trackName(r)); err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, nil)
}

// WaveformHandler GET /api/tracks/{name}/waveform renders on first request.
func (h *APIHandler) WaveformHandler(w http.ResponseWriter, r *http.Request) {
	path, err := h.svc.Waveforms.Get(r.Context(), trackName(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeFile(w, r, path)
}

// EvictHandler POST /api/tracks/evict
func (h *APIHandler) EvictHandler(w http.ResponseWriter, r *http.Request) {
	removed, err := h.svc.Tracks.EvictExpired(r.Context(), h.svc.Config.MaxFileAge)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, map[string]interface{}{"removed": removed})
}

// ImportTrackHandler POST /api/tracks/import, multipart:
// - file: the recording (any format the audio tool reads)
// - name: display name (optional)
// - channels: output channel count (optional)
func (h *APIHandler) ImportTrackHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeFail(w, http.StatusBadRequest, fmt.Sprintf("failed to parse multipart form: %v", err))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeFail(w, http.StatusBadRequest, "missing 'file' in form")
		return
	}
	defer file.Close()

	tmp, err := os.CreateTemp(h.svc.Config.TempDir, "upload-*"+filepath.Ext(header.Filename))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		h.fail(w, r, err)
		return
	}
	tmp.Close()

	channels, _ := strconv.Atoi(r.FormValue("channels"))
	name := r.FormValue("name")
	if name == "" {
		name = strings.TrimSuffix(header.Filename, filepath.Ext(header.Filename))
	}
	t, err := h.svc.Tracks.Import(r.Context(), tmp.Name(), library.ImportOptions{
		Name:     name,
		Channels: channels,
		Sidecar:  &model.Sidecar{Recorded: h.now().Format("2006-01-02 15:04:05")},
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	logger.Info("Recording uploaded", logger.Track(t.Name), logger.Int64("size", header.Size))
	writeOK(w, map[string]interface{}{"track": t})
}
