// Package playlist provides the Playlist domain entity.
package playlist

import (
	"math/rand"
	"time"
)

// Playlist represents a playlist bound to a remote folder.
// The folder ID is unique across all playlists.
type Playlist struct {
	ID          string    `json:"id" mapstructure:"id"`
	Name        string    `json:"name" mapstructure:"name"`
	FolderID    string    `json:"folderId" mapstructure:"folderId"`
	Color       string    `json:"color" mapstructure:"color"`
	ShuffleMode bool      `json:"isShuffleMode" mapstructure:"isShuffleMode"`
	RepeatMode  bool      `json:"isRepeatMode" mapstructure:"isRepeatMode"`
	CreatedAt   time.Time `json:"createdAt" mapstructure:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt" mapstructure:"updatedAt"`
}

// Colors is the theme color palette assigned to new playlists.
var Colors = []string{
	"#FF3B30", // Red
	"#FF9500", // Orange
	"#FFCC00", // Yellow
	"#34C759", // Green
	"#00C7BE", // Mint
	"#32D74B", // Light Green
	"#007AFF", // Blue
	"#5856D6", // Purple
	"#AF52DE", // Violet
	"#FF2D92", // Pink
	"#A2845E", // Brown
	"#8E8E93", // Gray
}

// RandomColor picks a palette color using the given random source.
func RandomColor(rng *rand.Rand) string {
	return Colors[rng.Intn(len(Colors))]
}

// Update describes a partial playlist update. Nil fields are left unchanged.
type Update struct {
	Name        *string
	ShuffleMode *bool
	RepeatMode  *bool
}

// Apply applies the update to the playlist and refreshes UpdatedAt.
func (p *Playlist) Apply(u Update, now time.Time) {
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.ShuffleMode != nil {
		p.ShuffleMode = *u.ShuffleMode
	}
	if u.RepeatMode != nil {
		p.RepeatMode = *u.RepeatMode
	}
	p.UpdatedAt = now
}
