package playlist

import (
	"encoding/json"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApply_PartialUpdate(t *testing.T) {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	updated := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	p := Playlist{
		Name:      "Original",
		FolderID:  "folder-1",
		CreatedAt: created,
		UpdatedAt: created,
	}

	shuffle := true
	p.Apply(Update{ShuffleMode: &shuffle}, updated)

	assert.Equal(t, "Original", p.Name, "nil fields stay untouched")
	assert.True(t, p.ShuffleMode)
	assert.False(t, p.RepeatMode)
	assert.Equal(t, created, p.CreatedAt)
	assert.Equal(t, updated, p.UpdatedAt)

	name := "Renamed"
	repeat := true
	p.Apply(Update{Name: &name, RepeatMode: &repeat}, updated.Add(time.Hour))
	assert.Equal(t, "Renamed", p.Name)
	assert.True(t, p.RepeatMode)
	assert.True(t, p.ShuffleMode, "earlier updates persist")
}

func TestRandomColor_StaysInPalette(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	palette := make(map[string]bool, len(Colors))
	for _, c := range Colors {
		palette[c] = true
	}

	for i := 0; i < 50; i++ {
		assert.True(t, palette[RandomColor(rng)])
	}
}

func TestPlaylist_JSONKeys(t *testing.T) {
	p := Playlist{ID: "p1", Name: "Mix", FolderID: "folder-1", ShuffleMode: true}

	data, err := json.Marshal(p)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Contains(t, m, "isShuffleMode")
	assert.Contains(t, m, "isRepeatMode")
	assert.Contains(t, m, "folderId")
	assert.Equal(t, true, m["isShuffleMode"])
}
