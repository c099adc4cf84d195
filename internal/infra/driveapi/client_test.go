package driveapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(Config{BaseURL: srv.URL})
	require.NoError(t, err)
	return c
}

func TestNew_RequiresBaseURL(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestValidateFolder_KeyNormalization(t *testing.T) {
	tests := []struct {
		name string
		body string
		want bool
	}{
		{name: "camel case key", body: `{"isValid": true, "audio_count": 3}`, want: true},
		{name: "snake case key", body: `{"is_valid": true, "audio_count": 3}`, want: true},
		{name: "camel wins when both present", body: `{"isValid": true, "is_valid": false}`, want: true},
		{name: "neither key means invalid", body: `{"audio_count": 0}`, want: false},
		{name: "explicit false", body: `{"isValid": false}`, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/validate-folder/folder-1", r.URL.Path)
				assert.Equal(t, "tok", r.URL.Query().Get("token"))
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(tt.body))
			})

			v, err := c.ValidateFolder(context.Background(), "folder-1", "tok")
			require.NoError(t, err)
			assert.Equal(t, tt.want, v.IsValid)
		})
	}
}

func TestValidateFolder_MessageFallsBackToErrorKey(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"is_valid": false, "error": "Folder not found"}`))
	})

	v, err := c.ValidateFolder(context.Background(), "folder-1", "tok")
	require.NoError(t, err)
	assert.False(t, v.IsValid)
	assert.Equal(t, "Folder not found", v.Message)
}

func TestListAudioFiles(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/audio-files/folder-1", r.URL.Path)
		w.Write([]byte(`[
			{"id": "f1", "name": "one.mp3", "size": "3.2 MB", "mime_type": "audio/mpeg"},
			{"id": "f2", "name": "two.flac", "size": "20 MB", "mime_type": "audio/flac"}
		]`))
	})

	files, err := c.ListAudioFiles(context.Background(), "folder-1", "tok")
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "f1", files[0].ID)
	assert.Equal(t, "one.mp3", files[0].Name)
	assert.Equal(t, "audio/flac", files[1].MIMEType)
}

func TestListAudioFiles_Empty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})

	files, err := c.ListAudioFiles(context.Background(), "folder-1", "tok")
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestUnauthorizedMapsToErrAuthExpired(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := c.ListAudioFiles(context.Background(), "folder-1", "tok")
	assert.ErrorIs(t, err, ErrAuthExpired)

	_, err = c.ValidateFolder(context.Background(), "folder-1", "tok")
	assert.ErrorIs(t, err, ErrAuthExpired)
}

func TestServerErrorIsNotAuthExpired(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	})

	_, err := c.ListAudioFiles(context.Background(), "folder-1", "tok")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrAuthExpired)
	assert.Contains(t, err.Error(), "500")
}

func TestStreamURL(t *testing.T) {
	c, err := New(Config{BaseURL: "https://api.example.com/"})
	require.NoError(t, err)

	assert.Equal(t,
		"https://api.example.com/api/stream/f1?token=tok",
		c.StreamURL("f1", "tok"))
	assert.Equal(t, "https://api.example.com/auth/login", c.LoginURL())
}
