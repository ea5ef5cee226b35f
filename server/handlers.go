package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"Rippers/core/app"
	"Rippers/core/audio"
	"Rippers/logger"
	"Rippers/model"
)

// APIHandler 处理所有API请求
type APIHandler struct {
	svc *app.Services
	now func() time.Time
}

// NewAPIHandler 创建新的API处理器
func NewAPIHandler(svc *app.Services) *APIHandler {
	return &APIHandler{svc: svc, now: time.Now}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("Failed to encode response", logger.ErrorField(err))
	}
}

// writeOK wraps payload fields into {"success": true, ...}.
func writeOK(w http.ResponseWriter, fields map[string]interface{}) {
	body := map[string]interface{}{"success": true}
	for k, v := range fields {
		body[k] = v
	}
	writeJSON(w, http.StatusOK, body)
}

func writeFail(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{"success": false, "error": msg})
}

// statusFor maps the error taxonomy onto HTTP. Tool failures get a generic
// message; their diagnostics only go to the log.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, model.ErrConflict), errors.Is(err, model.ErrAlreadyNormalized):
		return http.StatusConflict, err.Error()
	case errors.Is(err, model.ErrInvalidArgument), errors.Is(err, model.ErrQueryTooShort):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, model.ErrNoBackup), errors.Is(err, model.ErrTrackMissing), errors.Is(err, model.ErrEmptyPlaylist):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, model.ErrConcatenationFailed):
		return http.StatusInternalServerError, "concatenation failed"
	case errors.Is(err, audio.ErrToolFailure):
		return http.StatusInternalServerError, "audio processing failed"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func (h *APIHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		subject, _ := SubjectFromContext(r.Context())
		logger.Error("Request failed",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.String("subject", subject),
			logger.ErrorField(err))
	}
	writeFail(w, status, msg)
}

func decodeBody(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: malformed request body: %v", model.ErrInvalidArgument, err)
	}
	return nil
}

func queryInt(r *http.Request, key string, fallback int) int {
	if v, err := strconv.Atoi(r.URL.Query().Get(key)); err == nil {
		return v
	}
	return fallback
}

// ActivityHandler GET /api/activity?limit=N
func (h *APIHandler) ActivityHandler(w http.ResponseWriter, r *http.Request) {
	entries, err := h.svc.Activity.Recent(r.Context(), queryInt(r, "limit", 20))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, map[string]interface{}{"entries": entries})
}

// FetchHandler POST /api/fetch {"url": "..."}
func (h *APIHandler) FetchHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if err := decodeBody(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.svc.Acquirer.Acquire(r.Context(), req.URL)
	if err != nil {
		status, msg := statusFor(err)
		if errors.Is(err, audio.ErrToolFailure) {
			msg = "conversion failed"
		}
		logger.Warn("Fetch failed", logger.String("url", req.URL), logger.ErrorField(err))
		writeFail(w, status, msg)
		return
	}
	writeOK(w, map[string]interface{}{
		"filename": res.Track,
		"filesize": res.Filesize,
		"metadata": res.Sidecar,
	})
}

// ArchiveSearchHandler GET /api/archive/search?q=
func (h *APIHandler) ArchiveSearchHandler(w http.ResponseWriter, r *http.Request) {
	results, err := h.svc.Archive().Search(r.URL.Query().Get("q"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, map[string]interface{}{"results": results, "count": len(results)})
}

// ArchiveMatchHandler GET /api/archive/match?artist=&title=
func (h *APIHandler) ArchiveMatchHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	entry, ok := h.svc.Archive().MatchByArtistTitle(q.Get("artist"), q.Get("title"))
	if !ok {
		writeOK(w, map[string]interface{}{"found": false})
		return
	}
	writeOK(w, map[string]interface{}{"found": true, "entry": entry})
}

// ArchiveReloadHandler POST /api/archive/reload
func (h *APIHandler) ArchiveReloadHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.ReloadArchive(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, map[string]interface{}{"entries": h.svc.Archive().Len()})
}
