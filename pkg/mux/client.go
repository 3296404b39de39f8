// Package mux is a thin adapter over the Mux video platform: direct uploads,
// webhook signature verification, webhook event decoding and public URLs.
package mux

import (
	"context"
	"fmt"
	"time"

	muxgo "github.com/muxinc/mux-go/v5"
	"go.uber.org/zap"
)

const (
	createTimeout = 15 * time.Second
	// uploadTimeout is how long, in seconds, a direct-upload URL accepts the file.
	uploadTimeout = 3600
)

// Config holds API credentials.
type Config struct {
	TokenID     string
	TokenSecret string
	CORSOrigin  string
}

// directUploads is the slice of the SDK the client calls.
type directUploads interface {
	CreateDirectUpload(req muxgo.CreateUploadRequest, opts ...muxgo.APIOption) (muxgo.UploadResponse, error)
}

// Client calls the Mux video API.
type Client struct {
	uploads    directUploads
	corsOrigin string
	logger     *zap.Logger
}

// Upload is a direct-upload target returned by the provider.
type Upload struct {
	ID     string
	URL    string
	Status string
}

// NewClient creates a Mux API client.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	api := muxgo.NewAPIClient(muxgo.NewConfiguration(
		muxgo.WithBasicAuth(cfg.TokenID, cfg.TokenSecret),
	))
	return newClient(api.DirectUploadsApi, cfg.CORSOrigin, logger)
}

func newClient(uploads directUploads, corsOrigin string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if corsOrigin == "" {
		corsOrigin = "*"
	}
	return &Client{uploads: uploads, corsOrigin: corsOrigin, logger: logger}
}

// CreateUpload allocates a direct-upload URL. The passthrough value is echoed back on
// asset events; public playback and generated English subtitles are always requested.
func (c *Client) CreateUpload(ctx context.Context, passthrough string) (*Upload, error) {
	ctx, cancel := context.WithTimeout(ctx, createTimeout)
	defer cancel()

	resp, err := c.uploads.CreateDirectUpload(muxgo.CreateUploadRequest{
		CorsOrigin: c.corsOrigin,
		Timeout:    uploadTimeout,
		NewAssetSettings: muxgo.CreateAssetRequest{
			Passthrough:    passthrough,
			PlaybackPolicy: []muxgo.PlaybackPolicy{muxgo.PUBLIC},
			Input: []muxgo.InputSettings{{
				GeneratedSubtitles: []muxgo.AssetGeneratedSubtitleSettings{{LanguageCode: "en", Name: "English"}},
			}},
		},
	}, muxgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("mux create upload: %w", err)
	}
	if resp.Data.Id == "" || resp.Data.Url == "" {
		return nil, fmt.Errorf("mux create upload: response missing id or url")
	}
	c.logger.Debug("mux upload created", zap.String("upload_id", resp.Data.Id))
	return &Upload{ID: resp.Data.Id, URL: resp.Data.Url, Status: resp.Data.Status}, nil
}
