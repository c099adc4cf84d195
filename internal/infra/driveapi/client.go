// Package driveapi provides the client for the remote folder-backed
// audio source API.
package driveapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/time/rate"
)

// ErrAuthExpired is returned for 401 responses. The caller is expected
// to wipe local state and redirect to login; the token is not retryable.
var ErrAuthExpired = errors.New("authentication expired")

// Client is a folder source API client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// Config represents API client configuration.
type Config struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
}

// New creates a new API client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("api base url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 5
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 10
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
	}, nil
}

// FileEntry is one audio file as listed by the source.
type FileEntry struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Size     string `json:"size"`
	MIMEType string `json:"mime_type"`
}

// FolderValidation is the normalized folder probe result. The upstream
// API is inconsistent about the casing of its validity flag; both
// spellings are accepted here and never propagated further.
type FolderValidation struct {
	IsValid    bool
	AudioCount int
	FolderName string
	Message    string
}

// folderValidationWire tolerates both key spellings.
type folderValidationWire struct {
	IsValidCamel *bool  `json:"isValid"`
	IsValidSnake *bool  `json:"is_valid"`
	AudioCount   int    `json:"audio_count"`
	FolderName   string `json:"folder_name"`
	Message      string `json:"message"`
	Error        string `json:"error"`
}

// ValidateFolder checks that a folder exists and contains audio files.
func (c *Client) ValidateFolder(ctx context.Context, folderID, token string) (*FolderValidation, error) {
	var wire folderValidationWire
	if err := c.getJSON(ctx, fmt.Sprintf("/api/validate-folder/%s", folderID), token, &wire); err != nil {
		return nil, err
	}

	v := &FolderValidation{
		AudioCount: wire.AudioCount,
		FolderName: wire.FolderName,
		Message:    wire.Message,
	}
	switch {
	case wire.IsValidCamel != nil:
		v.IsValid = *wire.IsValidCamel
	case wire.IsValidSnake != nil:
		v.IsValid = *wire.IsValidSnake
	}
	if v.Message == "" {
		v.Message = wire.Error
	}
	return v, nil
}

// ListAudioFiles lists the audio files in a folder. An empty list means
// the folder contains no audio.
func (c *Client) ListAudioFiles(ctx context.Context, folderID, token string) ([]FileEntry, error) {
	var files []FileEntry
	if err := c.getJSON(ctx, fmt.Sprintf("/api/audio-files/%s", folderID), token, &files); err != nil {
		return nil, err
	}
	return files, nil
}

// StreamURL builds the streaming URL for a file. The token is embedded
// as a query credential, so the URL is only valid for the token's
// lifetime and must not be cached across rotation.
func (c *Client) StreamURL(fileID, token string) string {
	return fmt.Sprintf("%s/api/stream/%s?token=%s", c.baseURL, fileID, token)
}

// LoginURL returns the external login entry point.
func (c *Client) LoginURL() string {
	return c.baseURL + "/auth/login"
}

// getJSON performs a rate-limited GET and decodes the JSON response.
func (c *Client) getJSON(ctx context.Context, path, token string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return errors.Wrap(err, "rate limiter wait failed")
	}

	url := fmt.Sprintf("%s%s?token=%s", c.baseURL, path, token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.Wrap(err, "failed to build request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrAuthExpired
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.Newf("api error: %d - %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "failed to decode response")
	}
	return nil
}
