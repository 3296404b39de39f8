// Package videos owns the video rows: the Postgres repository and the
// videos.* procedures the studio calls.
package videos

import (
	"context"

	"github.com/google/uuid"

	"github.com/newtube/backend/internal/models"
)

// Store is the video data-access abstraction. Every lookup and mutation is
// scoped by a correlation key (id + owner, upload id or asset id) and returns
// models.ErrNotFound when no row matches.
type Store interface {
	Create(ctx context.Context, v *models.Video) error
	GetOwned(ctx context.Context, id, userID uuid.UUID) (*models.Video, error)
	UpdateOwned(ctx context.Context, id, userID uuid.UUID, u models.VideoUpdate) (*models.Video, error)
	SetThumbnail(ctx context.Context, id, userID uuid.UUID, url, key string) (*models.Video, error)
	DeleteOwned(ctx context.Context, id, userID uuid.UUID) (*models.Video, error)
	ListPage(ctx context.Context, userID uuid.UUID, cursor *models.Cursor, limit int) (*models.VideoPage, error)

	GetByUploadID(ctx context.Context, uploadID string) (*models.Video, error)
	SetAssetCreated(ctx context.Context, uploadID, assetID, status string) (*models.Video, error)
	SetAssetReady(ctx context.Context, uploadID string, a models.AssetReady) (*models.Video, error)
	SetAssetStatus(ctx context.Context, uploadID, status string) (*models.Video, error)
	SetTrackReady(ctx context.Context, assetID, trackID, status string) (*models.Video, error)
	DeleteByAssetID(ctx context.Context, assetID string) (*models.Video, error)
}

var _ Store = (*Repository)(nil)
