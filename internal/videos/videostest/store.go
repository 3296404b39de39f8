// Package videostest provides an in-memory video store with the same semantics
// as the Postgres repository.
package videostest

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/newtube/backend/internal/models"
	"github.com/newtube/backend/internal/videos"
)

// Store is an in-memory videos repository.
type Store struct {
	mu     sync.Mutex
	videos map[uuid.UUID]models.Video
	Now    func() time.Time
}

func NewStore() *Store {
	return &Store{
		videos: make(map[uuid.UUID]models.Video),
		Now:    func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

// Put stores v as-is, replacing any row with the same id.
func (s *Store) Put(v models.Video) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.videos[v.ID] = v
}

// Get returns the row with id regardless of owner.
func (s *Store) Get(id uuid.UUID) (models.Video, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.videos[id]
	return v, ok
}

// Len returns the number of rows.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.videos)
}

func (s *Store) Create(_ context.Context, v *models.Video) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	if v.Visibility == "" {
		v.Visibility = models.VisibilityPrivate
	}
	now := s.Now()
	v.CreatedAt, v.UpdatedAt = now, now
	s.videos[v.ID] = *v
	return nil
}

func (s *Store) GetOwned(_ context.Context, id, userID uuid.UUID) (*models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.videos[id]
	if !ok || v.UserID != userID {
		return nil, models.ErrNotFound
	}
	return &v, nil
}

func (s *Store) findBy(match func(models.Video) bool) (models.Video, bool) {
	for _, v := range s.videos {
		if match(v) {
			return v, true
		}
	}
	return models.Video{}, false
}

func byUpload(uploadID string) func(models.Video) bool {
	return func(v models.Video) bool { return models.Deref(v.MuxUploadID) == uploadID }
}

func byAsset(assetID string) func(models.Video) bool {
	return func(v models.Video) bool { return models.Deref(v.MuxAssetID) == assetID }
}

func (s *Store) GetByUploadID(_ context.Context, uploadID string) (*models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.findBy(byUpload(uploadID))
	if !ok {
		return nil, models.ErrNotFound
	}
	return &v, nil
}

func (s *Store) update(match func(models.Video) bool, apply func(*models.Video)) (*models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.findBy(match)
	if !ok {
		return nil, models.ErrNotFound
	}
	apply(&v)
	s.videos[v.ID] = v
	return &v, nil
}

func owned(id, userID uuid.UUID) func(models.Video) bool {
	return func(v models.Video) bool { return v.ID == id && v.UserID == userID }
}

func (s *Store) UpdateOwned(_ context.Context, id, userID uuid.UUID, u models.VideoUpdate) (*models.Video, error) {
	return s.update(owned(id, userID), func(v *models.Video) {
		if u.Title != nil {
			v.Title = *u.Title
		}
		if u.Description.Set {
			v.Description = u.Description.Ptr()
		}
		if u.CategoryID.Set {
			v.CategoryID = u.CategoryID.Ptr()
		}
		if u.Visibility != nil {
			v.Visibility = *u.Visibility
		}
		v.UpdatedAt = s.Now()
	})
}

func (s *Store) SetThumbnail(_ context.Context, id, userID uuid.UUID, url, key string) (*models.Video, error) {
	return s.update(owned(id, userID), func(v *models.Video) {
		v.ThumbnailURL = models.StringPtr(url)
		v.ThumbnailKey = models.StringPtr(key)
	})
}

func (s *Store) DeleteOwned(_ context.Context, id, userID uuid.UUID) (*models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.videos[id]
	if !ok || v.UserID != userID {
		return nil, models.ErrNotFound
	}
	delete(s.videos, id)
	return &v, nil
}

func (s *Store) ListPage(_ context.Context, userID uuid.UUID, cursor *models.Cursor, limit int) (*models.VideoPage, error) {
	s.mu.Lock()
	var rows []models.Video
	for _, v := range s.videos {
		if v.UserID != userID {
			continue
		}
		if cursor != nil && !before(v, *cursor) {
			continue
		}
		rows = append(rows, v)
	}
	s.mu.Unlock()

	sort.Slice(rows, func(i, j int) bool {
		return before(rows[j], models.Cursor{ID: rows[i].ID, UpdatedAt: rows[i].UpdatedAt})
	})
	if len(rows) > limit+1 {
		rows = rows[:limit+1]
	}
	return videos.Paginate(rows, limit), nil
}

// before reports whether v sorts strictly after c in (updated_at, id) descending order.
func before(v models.Video, c models.Cursor) bool {
	if v.UpdatedAt.Before(c.UpdatedAt) {
		return true
	}
	return v.UpdatedAt.Equal(c.UpdatedAt) && bytes.Compare(v.ID[:], c.ID[:]) < 0
}

func (s *Store) SetAssetCreated(_ context.Context, uploadID, assetID, status string) (*models.Video, error) {
	return s.update(byUpload(uploadID), func(v *models.Video) {
		v.MuxAssetID = models.StringPtr(assetID)
		v.MuxStatus = models.StringPtr(status)
	})
}

func (s *Store) SetAssetReady(_ context.Context, uploadID string, a models.AssetReady) (*models.Video, error) {
	return s.update(byUpload(uploadID), func(v *models.Video) {
		v.MuxStatus = models.StringPtr(a.MuxStatus)
		v.MuxPlaybackID = models.StringPtr(a.MuxPlaybackID)
		v.MuxAssetID = models.StringPtr(a.MuxAssetID)
		v.ThumbnailURL = models.StringPtr(a.ThumbnailURL)
		v.ThumbnailKey = models.StringPtr(a.ThumbnailKey)
		v.PreviewURL = models.StringPtr(a.PreviewURL)
		v.PreviewKey = models.StringPtr(a.PreviewKey)
		v.Duration = a.Duration
	})
}

func (s *Store) SetAssetStatus(_ context.Context, uploadID, status string) (*models.Video, error) {
	return s.update(byUpload(uploadID), func(v *models.Video) {
		v.MuxStatus = models.StringPtr(status)
	})
}

func (s *Store) SetTrackReady(_ context.Context, assetID, trackID, status string) (*models.Video, error) {
	return s.update(byAsset(assetID), func(v *models.Video) {
		v.MuxTrackID = models.StringPtr(trackID)
		v.MuxTrackStatus = models.StringPtr(status)
	})
}

func (s *Store) DeleteByAssetID(_ context.Context, assetID string) (*models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.findBy(byAsset(assetID))
	if !ok {
		return nil, models.ErrNotFound
	}
	delete(s.videos, v.ID)
	return &v, nil
}

var _ videos.Store = (*Store)(nil)
