package audiofile

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDisplayName(t *testing.T) {
	tests := []struct {
		name string
		file string
		want string
	}{
		{name: "strips extension", file: "track.mp3", want: "track"},
		{name: "keeps inner dots", file: "01. intro.flac", want: "01. intro"},
		{name: "no extension", file: "track", want: "track"},
		{name: "leading dot is not an extension", file: ".hidden", want: ".hidden"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := AudioFile{Name: tt.file}
			assert.Equal(t, tt.want, f.DisplayName())
		})
	}
}

func TestIsAudioMIME(t *testing.T) {
	assert.True(t, IsAudioMIME("audio/mpeg"))
	assert.True(t, IsAudioMIME("AUDIO/FLAC"))
	assert.False(t, IsAudioMIME("video/mp4"))
	assert.False(t, IsAudioMIME(""))
}

func TestSupportedFormats_CoverCommonExtensions(t *testing.T) {
	for _, ext := range []string{".mp3", ".m4a", ".aac", ".wav", ".flac", ".ogg", ".wma"} {
		assert.Contains(t, SupportedFormats, ext)
	}
}
