package catalog

import (
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/mitchellh/mapstructure"

	"github.com/yskmt/nagara/internal/domain/playlist"
)

// ExportVersion is stamped into backup documents.
const ExportVersion = "2.0.0"

// ErrMalformedImport is returned when a backup document cannot be applied.
var ErrMalformedImport = errors.New("malformed backup data")

type backupDocument struct {
	Playlists     []playlist.Playlist `json:"playlists" mapstructure:"playlists"`
	Favorites     []string            `json:"favorites" mapstructure:"favorites"`
	SkippedTracks []string            `json:"skippedTracks" mapstructure:"skippedTracks"`
	PlayHistory   []string            `json:"playHistory" mapstructure:"playHistory"`
	Volume        float64             `json:"volume" mapstructure:"volume"`
	ExportDate    string              `json:"exportDate" mapstructure:"exportDate"`
	Version       string              `json:"version" mapstructure:"version"`
}

// Export serializes playlists, flags, history and volume as a versioned
// JSON backup. The auth token is never exported.
func (s *Store) Export() (string, error) {
	s.mu.RLock()
	doc := backupDocument{
		Playlists:     append([]playlist.Playlist(nil), s.playlists...),
		Favorites:     setToSlice(s.favorites),
		SkippedTracks: setToSlice(s.skipped),
		PlayHistory:   append([]string(nil), s.history...),
		Volume:        s.volume,
		ExportDate:    s.now().Format(time.RFC3339),
		Version:       ExportVersion,
	}
	s.mu.RUnlock()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal backup")
	}
	return string(data), nil
}

// Import applies a backup document. A malformed document is rejected as a
// whole; no partial state is ever applied. The current playlist selection
// and file entries are reset so the next sync starts clean.
func (s *Store) Import(jsonData string) error {
	var raw map[string]any
	if err := json.Unmarshal([]byte(jsonData), &raw); err != nil {
		return errors.WithDetail(ErrMalformedImport, err.Error())
	}
	if _, ok := raw["playlists"].([]any); !ok {
		return ErrMalformedImport
	}

	var doc backupDocument
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:     &doc,
		DecodeHook: mapstructure.StringToTimeHookFunc(time.RFC3339),
	})
	if err != nil {
		return errors.Wrap(err, "failed to build backup decoder")
	}
	if err := dec.Decode(raw); err != nil {
		return errors.WithDetail(ErrMalformedImport, err.Error())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.playlists = doc.Playlists
	s.favorites = sliceToSet(doc.Favorites)
	s.skipped = sliceToSet(doc.SkippedTracks)
	s.history = doc.PlayHistory
	if doc.Volume > 0 {
		s.volume = doc.Volume
	} else {
		s.volume = 1
	}
	s.currentPlaylistID = ""
	s.files = nil
	return nil
}
