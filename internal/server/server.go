// Package server exposes the local control API over HTTP. It is the
// daemon's only inbound surface and binds to loopback by default.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gorilla/mux"
	zlog "github.com/rs/zerolog/log"

	"github.com/yskmt/nagara/internal/app/catalog"
	"github.com/yskmt/nagara/internal/app/notify"
	"github.com/yskmt/nagara/internal/app/player"
	"github.com/yskmt/nagara/internal/app/syncer"
	"github.com/yskmt/nagara/internal/domain/playlist"
)

// Server is the control API server.
type Server struct {
	catalog *catalog.Store
	coord   *player.Coordinator
	syncer  *syncer.Syncer
	hub     *notify.Hub
	http    *http.Server
}

// New creates the control server listening on addr.
func New(addr string, cat *catalog.Store, coord *player.Coordinator, sy *syncer.Syncer, hub *notify.Hub) *Server {
	s := &Server{
		catalog: cat,
		coord:   coord,
		syncer:  sy,
		hub:     hub,
	}

	r := mux.NewRouter()
	r.Use(logMiddleware)

	r.HandleFunc("/api/status", s.handleStatus).Methods(http.MethodGet)

	r.HandleFunc("/api/playlists", s.handleListPlaylists).Methods(http.MethodGet)
	r.HandleFunc("/api/playlists", s.handleCreatePlaylist).Methods(http.MethodPost)
	r.HandleFunc("/api/playlists/{id}", s.handleUpdatePlaylist).Methods(http.MethodPatch)
	r.HandleFunc("/api/playlists/{id}", s.handleDeletePlaylist).Methods(http.MethodDelete)
	r.HandleFunc("/api/playlists/{id}/select", s.handleSelectPlaylist).Methods(http.MethodPost)
	r.HandleFunc("/api/playlists/{id}/sync", s.handleSyncPlaylist).Methods(http.MethodPost)

	r.HandleFunc("/api/tracks", s.handleListTracks).Methods(http.MethodGet)
	r.HandleFunc("/api/tracks/{id}/favorite", s.handleToggleFavorite).Methods(http.MethodPost)
	r.HandleFunc("/api/tracks/{id}/skip", s.handleToggleSkip).Methods(http.MethodPost)

	r.HandleFunc("/api/player/play", s.handlePlay).Methods(http.MethodPost)
	r.HandleFunc("/api/player/pause", s.handlePause).Methods(http.MethodPost)
	r.HandleFunc("/api/player/toggle", s.handleToggle).Methods(http.MethodPost)
	r.HandleFunc("/api/player/stop", s.handleStop).Methods(http.MethodPost)
	r.HandleFunc("/api/player/next", s.handleNext).Methods(http.MethodPost)
	r.HandleFunc("/api/player/previous", s.handlePrevious).Methods(http.MethodPost)
	r.HandleFunc("/api/player/seek", s.handleSeek).Methods(http.MethodPost)
	r.HandleFunc("/api/player/volume", s.handleVolume).Methods(http.MethodPost)

	r.HandleFunc("/api/export", s.handleExport).Methods(http.MethodGet)
	r.HandleFunc("/api/import", s.handleImport).Methods(http.MethodPost)

	r.HandleFunc("/api/events", s.handleEvents).Methods(http.MethodGet)

	s.http = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// ListenAndServe runs the server until Shutdown.
func (s *Server) ListenAndServe() error {
	zlog.Info().Str("addr", s.http.Addr).Msg("Control API listening")
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "control server failed")
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		zlog.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("elapsed", time.Since(start)).
			Msg("Request handled")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		if err := json.NewEncoder(w).Encode(v); err != nil {
			zlog.Error().Err(err).Msg("Failed to encode response")
		}
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Wrap(err, "invalid request body")
	}
	return nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.coord.Status()
	isSyncing, syncingID := s.catalog.Syncing()

	resp := struct {
		player.Status
		IsSyncing         bool   `json:"isSyncing"`
		SyncingPlaylistID string `json:"syncingPlaylistId,omitempty"`
	}{
		Status:            status,
		IsSyncing:         isSyncing,
		SyncingPlaylistID: syncingID,
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListPlaylists(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.catalog.Playlists())
}

func (s *Server) handleCreatePlaylist(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		FolderID string `json:"folderId"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	v, err := s.syncer.ValidateFolder(r.Context(), req.FolderID)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	if v == nil {
		// No token; the user was sent to login.
		writeError(w, http.StatusUnauthorized, errors.New("not authenticated"))
		return
	}
	if !v.IsValid {
		msg := v.Message
		if msg == "" {
			msg = "folder is not accessible or has no audio files"
		}
		writeError(w, http.StatusBadRequest, errors.New(msg))
		return
	}

	p, err := s.catalog.CreatePlaylist(req.Name, req.FolderID, "")
	if err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}

	if err := s.syncer.SyncPlaylist(r.Context(), p.ID); err != nil {
		zlog.Warn().Err(err).Str("playlist_id", p.ID).Msg("Initial sync failed")
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleUpdatePlaylist(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req struct {
		Name        *string `json:"name"`
		ShuffleMode *bool   `json:"isShuffleMode"`
		RepeatMode  *bool   `json:"isRepeatMode"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	p, err := s.catalog.UpdatePlaylist(id, playlist.Update{
		Name:        req.Name,
		ShuffleMode: req.ShuffleMode,
		RepeatMode:  req.RepeatMode,
	})
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if req.ShuffleMode != nil || req.RepeatMode != nil {
		s.coord.OnModeChanged()
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeletePlaylist(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	current, hasCurrent := s.catalog.CurrentPlaylist()
	if err := s.catalog.DeletePlaylist(id); err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if hasCurrent && current.ID == id {
		s.coord.Stop()
	}
	s.coord.OnModeChanged()
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleSelectPlaylist(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.catalog.SetCurrentPlaylist(id); err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	s.coord.OnModeChanged()
	writeJSON(w, http.StatusOK, map[string]string{"currentPlaylistId": id})
}

func (s *Server) handleSyncPlaylist(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	err := s.syncer.SyncPlaylist(r.Context(), id)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]int{"fileCount": len(s.catalog.PlayableTracks(id))})
	case errors.Is(err, catalog.ErrPlaylistNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, syncer.ErrSyncInFlight):
		writeError(w, http.StatusConflict, err)
	default:
		writeError(w, http.StatusBadGateway, err)
	}
}

func (s *Server) handleListTracks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.catalog.Files())
}

func (s *Server) handleToggleFavorite(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	now := s.catalog.ToggleFavorite(id)
	writeJSON(w, http.StatusOK, map[string]bool{"favorite": now})
}

func (s *Server) handleToggleSkip(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	now := s.catalog.ToggleSkipped(id)
	s.coord.OnModeChanged()
	writeJSON(w, http.StatusOK, map[string]bool{"skipped": now})
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Index  *int    `json:"index"`
		FileID *string `json:"fileId"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var err error
	switch {
	case req.FileID != nil:
		err = s.coord.PlayTrackID(*req.FileID)
	case req.Index != nil:
		err = s.coord.PlayTrack(*req.Index)
	default:
		writeError(w, http.StatusBadRequest, errors.New("index or fileId is required"))
		return
	}
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, s.coord.Status())
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.coord.Pause()
	writeJSON(w, http.StatusOK, s.coord.Status())
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	s.coord.TogglePlay()
	writeJSON(w, http.StatusOK, s.coord.Status())
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.coord.Stop()
	writeJSON(w, http.StatusOK, s.coord.Status())
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	if err := s.coord.Next(); err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusOK, s.coord.Status())
}

func (s *Server) handlePrevious(w http.ResponseWriter, r *http.Request) {
	if err := s.coord.Previous(); err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusOK, s.coord.Status())
}

func (s *Server) handleSeek(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Position float64 `json:"position"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.coord.SeekTo(req.Position)
	writeJSON(w, http.StatusOK, s.coord.Status())
}

func (s *Server) handleVolume(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Volume float64 `json:"volume"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.coord.SetVolume(req.Volume)
	writeJSON(w, http.StatusOK, map[string]float64{"volume": s.catalog.Volume()})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	data, err := s.catalog.Export()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="nagara-backup.json"`)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(data))
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 10<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.Wrap(err, "failed to read body"))
		return
	}
	if err := s.catalog.Import(string(data)); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.coord.Stop()
	s.coord.OnModeChanged()
	writeJSON(w, http.StatusOK, map[string]int{"playlistCount": len(s.catalog.Playlists())})
}

// sseStream adapts one SSE connection to the notification hub.
type sseStream struct {
	writes chan player.Event
}

func (st *sseStream) Send(ev player.Event) error {
	select {
	case st.writes <- ev:
		return nil
	default:
		return errors.New("subscriber backlog full")
	}
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	fl, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, errors.New("streaming unsupported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	fl.Flush()

	st := &sseStream{writes: make(chan player.Event, 32)}
	id := s.hub.Subscribe(st)
	defer s.hub.Unsubscribe(id)

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-st.writes:
			payload, err := json.Marshal(map[string]any{
				"seq":      s.hub.NextSequenceNo(),
				"type":     ev.Type.String(),
				"state":    ev.State.String(),
				"index":    ev.Index,
				"track":    ev.Track,
				"position": ev.Position,
				"duration": ev.Duration,
				"message":  ev.Message,
			})
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			fl.Flush()
		}
	}
}
