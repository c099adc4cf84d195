// Package audiofile provides the AudioFile domain entity.
package audiofile

import "strings"

// AudioFile represents a single audio file entry in the catalogue.
// Entries are created in bulk by the sync gateway and owned by exactly
// one playlist.
type AudioFile struct {
	ID         string `json:"id"`          // Remote file ID, globally unique
	Name       string `json:"name"`        // File name including extension
	Size       string `json:"size"`        // Human-readable size as reported by the source
	StreamURL  string `json:"downloadUrl"` // Streaming URL, embeds a short-lived auth token
	MIMEType   string `json:"mimeType"`    // Reported MIME type
	PlaylistID string `json:"playlistId"`  // Owning playlist
}

// SupportedFormats maps audio file extensions to their MIME types.
var SupportedFormats = map[string]string{
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".aac":  "audio/aac",
	".wav":  "audio/wav",
	".flac": "audio/flac",
	".ogg":  "audio/ogg",
	".wma":  "audio/x-ms-wma",
}

// DisplayName returns the file name without its extension, suitable for
// media session metadata.
func (f *AudioFile) DisplayName() string {
	name := f.Name
	if idx := strings.LastIndex(name, "."); idx > 0 {
		name = name[:idx]
	}
	return name
}

// IsAudioMIME reports whether the given MIME type is a supported audio type.
func IsAudioMIME(mime string) bool {
	for _, m := range SupportedFormats {
		if strings.EqualFold(m, mime) {
			return true
		}
	}
	return false
}
