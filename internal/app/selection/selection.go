// Package selection computes next/previous track choices over the
// playable subset of a playlist.
package selection

import (
	"math/rand"

	"github.com/yskmt/nagara/internal/domain/audiofile"
)

// Next picks the track to play after the current one.
//
// playable is the playlist's files with skipped tracks already excluded,
// in catalogue order. currentGlobal indexes into the global file list;
// the current track is located inside playable by identity, and a miss
// is treated as position -1 so the choice falls on playable[0].
//
// With shuffle enabled the pick is uniformly random and independent of
// the current position; immediate repeats are possible and expected.
// Without shuffle the order wraps at the end of the list.
func Next(files, playable []audiofile.AudioFile, currentGlobal int, shuffle bool, rng *rand.Rand) (audiofile.AudioFile, bool) {
	if len(playable) == 0 {
		return audiofile.AudioFile{}, false
	}
	if shuffle {
		return playable[rng.Intn(len(playable))], true
	}
	pos := playablePosition(files, playable, currentGlobal)
	return playable[(pos+1)%len(playable)], true
}

// Previous picks the track before the current one. Selection is always
// sequential and wraps at the start of the list; shuffle does not apply
// to backwards navigation.
func Previous(files, playable []audiofile.AudioFile, currentGlobal int) (audiofile.AudioFile, bool) {
	if len(playable) == 0 {
		return audiofile.AudioFile{}, false
	}
	pos := playablePosition(files, playable, currentGlobal)
	n := len(playable)
	return playable[((pos-1)%n+n)%n], true
}

// playablePosition locates the current global track inside the playable
// subset, -1 when it is absent (skipped, stale index, or nothing set).
func playablePosition(files, playable []audiofile.AudioFile, currentGlobal int) int {
	if currentGlobal < 0 || currentGlobal >= len(files) {
		return -1
	}
	id := files[currentGlobal].ID
	for i, f := range playable {
		if f.ID == id {
			return i
		}
	}
	return -1
}
