// Package storage copies provider-rendered derivatives (thumbnails, previews)
// into the application's object storage.
package storage

import (
	"context"
	"path"

	"github.com/google/uuid"
)

const (
	// FolderThumbnails is the prefix for thumbnail objects.
	FolderThumbnails = "thumbnails"
	// FolderPreviews is the prefix for animated preview objects.
	FolderPreviews = "previews"
)

// Object is a stored object and its public URL.
type Object struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

// Store is the object upload service used by the webhook and RPC layers.
type Store interface {
	UploadFromURL(ctx context.Context, sourceURL, key string) (*Object, error)
	Delete(ctx context.Context, key string) error
}

// ThumbnailKey returns the object key of a video thumbnail rendered from playbackID.
// Keys are deterministic so a redelivered event overwrites the same object.
func ThumbnailKey(videoID uuid.UUID, playbackID string) string {
	return path.Join(FolderThumbnails, videoID.String(), playbackID+".jpg")
}

// PreviewKey returns the object key of a video preview rendered from playbackID.
func PreviewKey(videoID uuid.UUID, playbackID string) string {
	return path.Join(FolderPreviews, videoID.String(), playbackID+".gif")
}
