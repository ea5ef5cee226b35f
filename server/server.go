package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"Rippers/core/app"
	"Rippers/logger"
)

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS, HEAD")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Range")
		w.Header().Set("Access-Control-Expose-Headers", "Content-Length, Content-Range, Content-Disposition")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// NewRouter 使用 gorilla/mux 创建路由器
func NewRouter(svc *app.Services) *mux.Router {
	h := NewAPIHandler(svc)
	router := mux.NewRouter()
	router.Use(corsMiddleware)

	api := router.PathPrefix("/api").Subrouter()
	api.Use(AuthMiddleware(svc.Config.APISecret))

	// Tracks
	api.HandleFunc("/tracks", h.GetTracksHandler).Methods(http.MethodGet)
	api.HandleFunc("/tracks/import", h.ImportTrackHandler).Methods(http.MethodPost)
	api.HandleFunc("/tracks/evict", h.EvictHandler).Methods(http.MethodPost)
	api.HandleFunc("/tracks/{name}", h.GetTrackHandler).Methods(http.MethodGet)
	api.HandleFunc("/tracks/{name}", h.RenameTrackHandler).Methods(http.MethodPut)
	api.HandleFunc("/tracks/{name}", h.DeleteTrackHandler).Methods(http.MethodDelete)
	api.HandleFunc("/tracks/{name}/meta", h.UpdateMetadataHandler).Methods(http.MethodPut)
	api.HandleFunc("/tracks/{name}/peak", h.PeakHandler).Methods(http.MethodGet)
	api.HandleFunc("/tracks/{name}/normalize", h.NormalizeHandler).Methods(http.MethodPost)
	api.HandleFunc("/tracks/{name}/restore", h.RestoreHandler).Methods(http.MethodPost)
	api.HandleFunc("/tracks/{name}/toggle", h.ToggleNormalizeHandler).Methods(http.MethodPost)
	api.HandleFunc("/tracks/{name}/trim", h.TrimHandler).Methods(http.MethodPost)
	api.HandleFunc("/tracks/{name}/trim-silence", h.TrimSilenceHandler).Methods(http.MethodPost)
	api.HandleFunc("/tracks/{name}/waveform", h.WaveformHandler).Methods(http.MethodGet)

	// Playlists
	api.HandleFunc("/playlists", h.ListPlaylistsHandler).Methods(http.MethodGet)
	api.HandleFunc("/playlists", h.CreatePlaylistHandler).Methods(http.MethodPost)
	api.HandleFunc("/playlists/import", h.ImportPlaylistHandler).Methods(http.MethodPost)
	api.HandleFunc("/playlists/{id}", h.GetPlaylistHandler).Methods(http.MethodGet)
	api.HandleFunc("/playlists/{id}", h.UpdatePlaylistHandler).Methods(http.MethodPut)
	api.HandleFunc("/playlists/{id}", h.DeletePlaylistHandler).Methods(http.MethodDelete)
	api.HandleFunc("/playlists/{id}/tracks", h.AddPlaylistTrackHandler).Methods(http.MethodPost)
	api.HandleFunc("/playlists/{id}/tracks/{name}", h.RemovePlaylistTrackHandler).Methods(http.MethodDelete)
	api.HandleFunc("/playlists/{id}/order", h.ReorderPlaylistHandler).Methods(http.MethodPut)
	api.HandleFunc("/playlists/{id}/silence", h.ScanSilenceHandler).Methods(http.MethodGet)
	api.HandleFunc("/playlists/{id}/merge", h.MergePlaylistHandler).Methods(http.MethodPost)
	api.HandleFunc("/playlists/{id}/export", h.ExportPlaylistHandler).Methods(http.MethodGet)
	api.HandleFunc("/mix", h.MixHandler).Methods(http.MethodPost)

	// Archive, acquisition
	api.HandleFunc("/archive/search", h.ArchiveSearchHandler).Methods(http.MethodGet)
	api.HandleFunc("/archive/match", h.ArchiveMatchHandler).Methods(http.MethodGet)
	api.HandleFunc("/archive/reload", h.ArchiveReloadHandler).Methods(http.MethodPost)
	api.HandleFunc("/fetch", h.FetchHandler).Methods(http.MethodPost)
	api.HandleFunc("/activity", h.ActivityHandler).Methods(http.MethodGet)

	prefix := "/" + strings.Trim(svc.Config.PublicPrefix, "/") + "/"
	router.PathPrefix(prefix).Handler(http.StripPrefix(prefix, NewTrackFileHandler(svc.Tracks.Layout())))

	return router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, svc *app.Services) error {
	// Long write timeout: merges and fetches run inside the request.
	server := &http.Server{
		Addr:         svc.Config.ServerAddr,
		Handler:      NewRouter(svc),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server starting",
			logger.String("addr", server.Addr),
			logger.Bool("auth", svc.Config.APISecret != ""))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("Server stopped")
	return nil
}
