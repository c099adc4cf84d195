// Package syncer reconciles local playlists against the remote folder
// source. A sync is a full replace of the playlist's file entries; it
// never merges.
package syncer

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/yskmt/nagara/internal/app/catalog"
	"github.com/yskmt/nagara/internal/domain/audiofile"
	"github.com/yskmt/nagara/internal/infra/driveapi"
)

// ErrSyncInFlight is returned when a sync is requested while another is
// still running. One sync at a time, globally.
var ErrSyncInFlight = errors.New("a sync is already in progress")

// ErrNoFolderAccess is returned when the remote folder is missing,
// unshared, or contains no audio files.
var ErrNoFolderAccess = errors.New("folder is not accessible or has no audio files")

// Source is the remote API surface the syncer depends on.
type Source interface {
	ValidateFolder(ctx context.Context, folderID, token string) (*driveapi.FolderValidation, error)
	ListAudioFiles(ctx context.Context, folderID, token string) ([]driveapi.FileEntry, error)
	StreamURL(fileID, token string) string
	LoginURL() string
}

// Wiper clears persisted state alongside the in-memory wipe.
type Wiper interface {
	WipeAll() error
}

// Redirector sends the user to an external URL, typically by opening
// the default browser at the login page.
type Redirector func(url string) error

// Syncer coordinates playlist syncs against the remote source.
type Syncer struct {
	catalog  *catalog.Store
	source   Source
	wiper    Wiper
	redirect Redirector
}

// New creates a syncer.
func New(cat *catalog.Store, source Source, wiper Wiper, redirect Redirector) *Syncer {
	return &Syncer{
		catalog:  cat,
		source:   source,
		wiper:    wiper,
		redirect: redirect,
	}
}

// SyncPlaylist refreshes a playlist's file entries from its remote
// folder. Without a token it redirects to login and reports nothing.
// On auth expiry it wipes all local and persisted state before
// redirecting. Any other failure leaves the catalogue untouched.
func (s *Syncer) SyncPlaylist(ctx context.Context, playlistID string) error {
	p, ok := s.catalog.Playlist(playlistID)
	if !ok {
		return catalog.ErrPlaylistNotFound
	}

	token := s.catalog.AuthToken()
	if token == "" {
		zlog.Info().Str("playlist_id", playlistID).Msg("No auth token, redirecting to login")
		s.toLogin()
		return nil
	}

	if !s.catalog.BeginSync(playlistID) {
		return ErrSyncInFlight
	}
	defer s.catalog.SetSyncing(false, "")

	entries, err := s.source.ListAudioFiles(ctx, p.FolderID, token)
	if err != nil {
		if errors.Is(err, driveapi.ErrAuthExpired) {
			s.handleAuthExpired()
			return nil
		}
		return errors.Wrapf(err, "failed to sync playlist %s", p.Name)
	}

	files := make([]audiofile.AudioFile, 0, len(entries))
	for _, e := range entries {
		files = append(files, audiofile.AudioFile{
			ID:         e.ID,
			Name:       e.Name,
			Size:       e.Size,
			StreamURL:  s.source.StreamURL(e.ID, token),
			MIMEType:   e.MIMEType,
			PlaylistID: playlistID,
		})
	}
	s.catalog.ReplaceFiles(playlistID, files)

	zlog.Info().
		Str("playlist_id", playlistID).
		Str("playlist_name", p.Name).
		Int("file_count", len(files)).
		Msg("Playlist synced")
	return nil
}

// ValidateFolder probes a folder before a playlist is created for it.
func (s *Syncer) ValidateFolder(ctx context.Context, folderID string) (*driveapi.FolderValidation, error) {
	token := s.catalog.AuthToken()
	if token == "" {
		s.toLogin()
		return nil, nil
	}

	v, err := s.source.ValidateFolder(ctx, folderID, token)
	if err != nil {
		if errors.Is(err, driveapi.ErrAuthExpired) {
			s.handleAuthExpired()
			return nil, nil
		}
		return nil, errors.Wrap(err, "folder validation failed")
	}
	return v, nil
}

// CheckFolderAudioFiles verifies the folder still yields audio files.
// It never mutates the catalogue; callers decide what to do with a
// negative result.
func (s *Syncer) CheckFolderAudioFiles(ctx context.Context, folderID string) error {
	token := s.catalog.AuthToken()
	if token == "" {
		s.toLogin()
		return nil
	}

	entries, err := s.source.ListAudioFiles(ctx, folderID, token)
	if err != nil {
		if errors.Is(err, driveapi.ErrAuthExpired) {
			s.handleAuthExpired()
			return nil
		}
		return errors.Wrap(err, "folder check failed")
	}
	if len(entries) == 0 {
		return ErrNoFolderAccess
	}
	return nil
}

// handleAuthExpired performs the full auth-expiry recovery: wipe the
// in-memory catalogue, wipe persisted keys, then send the user to
// login. The order matters; a crash between steps must never leave
// stale credentials behind a fresh catalogue.
func (s *Syncer) handleAuthExpired() {
	zlog.Warn().Msg("Authentication expired, wiping local state")

	s.catalog.Wipe()
	if s.wiper != nil {
		if err := s.wiper.WipeAll(); err != nil {
			zlog.Error().Err(err).Msg("Failed to wipe persisted state")
		}
	}
	s.toLogin()
}

func (s *Syncer) toLogin() {
	if s.redirect == nil {
		return
	}
	if err := s.redirect(s.source.LoginURL()); err != nil {
		zlog.Error().Err(err).Msg("Failed to redirect to login")
	}
}
