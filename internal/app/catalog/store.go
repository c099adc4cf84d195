// Package catalog provides the catalogue store: playlists, audio file
// entries, track flags and the persisted player settings, behind a
// single synchronized accessor.
package catalog

import (
	"math/rand"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/yskmt/nagara/internal/domain/audiofile"
	"github.com/yskmt/nagara/internal/domain/playlist"
)

// Errors
var (
	ErrPlaylistNotFound = errors.New("playlist not found")
	ErrEmptyName        = errors.New("playlist name is required")
	ErrEmptyFolderID    = errors.New("folder id is required")
)

// DefaultHistoryLimit bounds the persisted play history.
const DefaultHistoryLimit = 100

// Store holds the catalogue and player settings. All access goes through
// the store's methods; every mutation is applied atomically under the lock.
type Store struct {
	mu sync.RWMutex

	playlists         []playlist.Playlist
	files             []audiofile.AudioFile
	currentPlaylistID string

	favorites map[string]struct{}
	skipped   map[string]struct{}
	history   []string

	volume    float64
	authToken string

	// Global single-flight sync flag. One sync at a time across the
	// whole app; a second caller overwrites the playlist id.
	isSyncing         bool
	syncingPlaylistID string

	historyLimit int
	rng          *rand.Rand
	now          func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithRand sets the random source used for color assignment.
func WithRand(rng *rand.Rand) Option {
	return func(s *Store) { s.rng = rng }
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithHistoryLimit bounds the play history length.
func WithHistoryLimit(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.historyLimit = n
		}
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		favorites:    make(map[string]struct{}),
		skipped:      make(map[string]struct{}),
		volume:       1,
		historyLimit: DefaultHistoryLimit,
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreatePlaylist creates a playlist bound to a remote folder and makes it
// current. Folder IDs are unique across playlists; binding a folder that
// is already used is rejected.
func (s *Store) CreatePlaylist(name, folderID, color string) (playlist.Playlist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if name == "" {
		return playlist.Playlist{}, ErrEmptyName
	}
	if folderID == "" {
		return playlist.Playlist{}, ErrEmptyFolderID
	}
	for _, p := range s.playlists {
		if p.FolderID == folderID {
			return playlist.Playlist{}, errors.Newf("folder is already used by %s", p.Name)
		}
	}

	if color == "" {
		color = playlist.RandomColor(s.rng)
	}
	now := s.now()
	p := playlist.Playlist{
		ID:        uuid.New().String(),
		Name:      name,
		FolderID:  folderID,
		Color:     color,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.playlists = append(s.playlists, p)
	s.currentPlaylistID = p.ID
	return p, nil
}

// UpdatePlaylist applies a partial update and refreshes UpdatedAt.
func (s *Store) UpdatePlaylist(id string, u playlist.Update) (playlist.Playlist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.playlists {
		if s.playlists[i].ID == id {
			s.playlists[i].Apply(u, s.now())
			return s.playlists[i], nil
		}
	}
	return playlist.Playlist{}, ErrPlaylistNotFound
}

// DeletePlaylist removes a playlist and cascades to its audio file
// entries. Track flags are left as-is; orphaned ids are tolerated.
func (s *Store) DeletePlaylist(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	found := false
	kept := s.playlists[:0]
	for _, p := range s.playlists {
		if p.ID == id {
			found = true
			continue
		}
		kept = append(kept, p)
	}
	if !found {
		return ErrPlaylistNotFound
	}
	s.playlists = kept

	files := s.files[:0]
	for _, f := range s.files {
		if f.PlaylistID != id {
			files = append(files, f)
		}
	}
	s.files = files

	if s.currentPlaylistID == id {
		s.currentPlaylistID = ""
	}
	return nil
}

// Playlist returns the playlist with the given id.
func (s *Store) Playlist(id string) (playlist.Playlist, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.playlists {
		if p.ID == id {
			return p, true
		}
	}
	return playlist.Playlist{}, false
}

// Playlists returns a copy of all playlists.
func (s *Store) Playlists() []playlist.Playlist {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]playlist.Playlist, len(s.playlists))
	copy(out, s.playlists)
	return out
}

// SetCurrentPlaylist selects the current playlist.
func (s *Store) SetCurrentPlaylist(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.playlists {
		if p.ID == id {
			s.currentPlaylistID = id
			return nil
		}
	}
	return ErrPlaylistNotFound
}

// CurrentPlaylist returns the currently selected playlist.
func (s *Store) CurrentPlaylist() (playlist.Playlist, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.playlists {
		if p.ID == s.currentPlaylistID {
			return p, true
		}
	}
	return playlist.Playlist{}, false
}

// ReplaceFiles replaces all audio file entries of the playlist with the
// given set. Full replace, never a merge.
func (s *Store) ReplaceFiles(playlistID string, files []audiofile.AudioFile) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.files[:0]
	for _, f := range s.files {
		if f.PlaylistID != playlistID {
			kept = append(kept, f)
		}
	}
	s.files = append(kept, files...)
}

// Files returns a copy of the global audio file list.
func (s *Store) Files() []audiofile.AudioFile {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]audiofile.AudioFile, len(s.files))
	copy(out, s.files)
	return out
}

// FileAt returns the audio file at the given global index.
func (s *Store) FileAt(index int) (audiofile.AudioFile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if index < 0 || index >= len(s.files) {
		return audiofile.AudioFile{}, false
	}
	return s.files[index], true
}

// GlobalIndex locates a file by id in the global list, -1 when absent.
func (s *Store) GlobalIndex(fileID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i, f := range s.files {
		if f.ID == fileID {
			return i
		}
	}
	return -1
}

// PlayableTracks returns the playlist's files minus the skipped set, in
// catalogue order. The underlying file list is never mutated.
func (s *Store) PlayableTracks(playlistID string) []audiofile.AudioFile {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if playlistID == "" {
		playlistID = s.currentPlaylistID
	}
	if playlistID == "" {
		return nil
	}

	var out []audiofile.AudioFile
	for _, f := range s.files {
		if f.PlaylistID != playlistID {
			continue
		}
		if _, skip := s.skipped[f.ID]; skip {
			continue
		}
		out = append(out, f)
	}
	return out
}

// ToggleFavorite toggles favorite membership and returns the new state.
func (s *Store) ToggleFavorite(fileID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.favorites[fileID]; ok {
		delete(s.favorites, fileID)
		return false
	}
	s.favorites[fileID] = struct{}{}
	return true
}

// ToggleSkipped toggles skip membership and returns the new state.
func (s *Store) ToggleSkipped(fileID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.skipped[fileID]; ok {
		delete(s.skipped, fileID)
		return false
	}
	s.skipped[fileID] = struct{}{}
	return true
}

// IsFavorite reports favorite membership.
func (s *Store) IsFavorite(fileID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.favorites[fileID]
	return ok
}

// IsSkipped reports skip membership.
func (s *Store) IsSkipped(fileID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.skipped[fileID]
	return ok
}

// RecordPlay appends a file id to the play history, trimming to the limit.
func (s *Store) RecordPlay(fileID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append(s.history, fileID)
	if len(s.history) > s.historyLimit {
		s.history = s.history[len(s.history)-s.historyLimit:]
	}
}

// PlayHistory returns a copy of the play history, oldest first.
func (s *Store) PlayHistory() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, len(s.history))
	copy(out, s.history)
	return out
}

// SetVolume stores the persisted volume, clamped to [0, 1].
func (s *Store) SetVolume(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	s.volume = v
}

// Volume returns the persisted volume.
func (s *Store) Volume() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.volume
}

// SetAuthToken stores the auth token.
func (s *Store) SetAuthToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authToken = token
}

// AuthToken returns the stored auth token, empty when absent.
func (s *Store) AuthToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authToken
}

// BeginSync atomically raises the global single-flight sync flag. It
// returns false when a sync is already in flight, whichever playlist it
// belongs to.
func (s *Store) BeginSync(playlistID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isSyncing {
		return false
	}
	s.isSyncing = true
	s.syncingPlaylistID = playlistID
	return true
}

// SetSyncing sets or clears the global single-flight sync flag.
func (s *Store) SetSyncing(syncing bool, playlistID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.isSyncing = syncing
	if syncing {
		s.syncingPlaylistID = playlistID
	} else {
		s.syncingPlaylistID = ""
	}
}

// Syncing returns the sync flag and the playlist id being synced.
func (s *Store) Syncing() (bool, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isSyncing, s.syncingPlaylistID
}

// Wipe clears all state: playlists, files, flags, history, volume, auth
// token and sync flags. Used for authentication-expiry recovery; the wipe
// must be exact, never partial.
func (s *Store) Wipe() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.playlists = nil
	s.files = nil
	s.currentPlaylistID = ""
	s.favorites = make(map[string]struct{})
	s.skipped = make(map[string]struct{})
	s.history = nil
	s.volume = 1
	s.authToken = ""
	s.isSyncing = false
	s.syncingPlaylistID = ""
}
