package catalog

import (
	"github.com/yskmt/nagara/internal/domain/playlist"
)

// Snapshot is the persisted subset of store state. Audio file entries and
// transient playback state are deliberately excluded; files are re-synced
// from the remote source after a restart.
type Snapshot struct {
	Playlists         []playlist.Playlist `json:"playlists"`
	CurrentPlaylistID string              `json:"currentPlaylistId,omitempty"`
	Favorites         []string            `json:"favorites"`
	SkippedTracks     []string            `json:"skippedTracks"`
	PlayHistory       []string            `json:"playHistory"`
	Volume            float64             `json:"volume"`
	AuthToken         string              `json:"authToken,omitempty"`
}

// Snapshot captures the persisted subset of the store.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Playlists:         make([]playlist.Playlist, len(s.playlists)),
		CurrentPlaylistID: s.currentPlaylistID,
		Favorites:         setToSlice(s.favorites),
		SkippedTracks:     setToSlice(s.skipped),
		PlayHistory:       make([]string, len(s.history)),
		Volume:            s.volume,
		AuthToken:         s.authToken,
	}
	copy(snap.Playlists, s.playlists)
	copy(snap.PlayHistory, s.history)
	return snap
}

// Restore rehydrates the store from a snapshot. Sync flags and file
// entries start fresh.
func (s *Store) Restore(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.playlists = append([]playlist.Playlist(nil), snap.Playlists...)
	s.files = nil
	s.currentPlaylistID = snap.CurrentPlaylistID
	s.favorites = sliceToSet(snap.Favorites)
	s.skipped = sliceToSet(snap.SkippedTracks)
	s.history = append([]string(nil), snap.PlayHistory...)
	if snap.Volume > 0 {
		s.volume = snap.Volume
	}
	s.authToken = snap.AuthToken
	s.isSyncing = false
	s.syncingPlaylistID = ""
}

func setToSlice(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	return out
}

func sliceToSet(ids []string) map[string]struct{} {
	m := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return m
}
