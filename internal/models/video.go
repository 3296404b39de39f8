package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned by repositories when no row matched the predicate.
var ErrNotFound = errors.New("not found")

// Visibility controls who can watch a video.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// Valid reports whether v is a known visibility.
func (v Visibility) Valid() bool {
	return v == VisibilityPublic || v == VisibilityPrivate
}

// Mux status strings written locally. Everything else comes from the provider verbatim.
const (
	MuxStatusWaiting = "waiting"
)

// DefaultTitle is the placeholder title of a freshly created upload.
const DefaultTitle = "Untitled"

// DefaultDuration is stored when the provider reports no duration for a ready asset.
const DefaultDuration = 0

// Video is a creator upload and the provider state mirrored onto it.
type Video struct {
	ID             uuid.UUID  `json:"id"`
	UserID         uuid.UUID  `json:"userId"`
	Title          string     `json:"title"`
	Description    *string    `json:"description"`
	CategoryID     *uuid.UUID `json:"categoryId"`
	Visibility     Visibility `json:"visibility"`
	MuxStatus      *string    `json:"muxStatus"`
	MuxAssetID     *string    `json:"muxAssetId"`
	MuxUploadID    *string    `json:"muxUploadId"`
	MuxPlaybackID  *string    `json:"muxPlaybackId"`
	MuxTrackID     *string    `json:"muxTrackId"`
	MuxTrackStatus *string    `json:"muxTrackStatus"`
	ThumbnailURL   *string    `json:"thumbnailUrl"`
	ThumbnailKey   *string    `json:"thumbnailKey"`
	PreviewURL     *string    `json:"previewUrl"`
	PreviewKey     *string    `json:"previewKey"`
	Duration       int        `json:"duration"` // milliseconds
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// VideoUpdate is a partial, owner-scoped update. Nil or unset fields are left untouched;
// Description and CategoryID can be cleared with a set null.
type VideoUpdate struct {
	Title       *string
	Description Nullable[string]
	CategoryID  Nullable[uuid.UUID]
	Visibility  *Visibility
}

// Nullable is an optional JSON field that tells an absent key from an explicit null.
type Nullable[T any] struct {
	Set   bool // key present in the input
	Valid bool // value is not null
	Value T
}

// Some returns a set, non-null value.
func Some[T any](v T) Nullable[T] {
	return Nullable[T]{Set: true, Valid: true, Value: v}
}

// Null returns a set null.
func Null[T any]() Nullable[T] {
	return Nullable[T]{Set: true}
}

func (n *Nullable[T]) UnmarshalJSON(b []byte) error {
	n.Set = true
	if string(b) == "null" {
		var zero T
		n.Valid, n.Value = false, zero
		return nil
	}
	if err := json.Unmarshal(b, &n.Value); err != nil {
		return err
	}
	n.Valid = true
	return nil
}

// Ptr returns the value, or nil for null.
func (n Nullable[T]) Ptr() *T {
	if !n.Valid {
		return nil
	}
	v := n.Value
	return &v
}

// AssetReady holds everything written when the provider reports a playable asset.
type AssetReady struct {
	MuxStatus     string
	MuxAssetID    string
	MuxPlaybackID string
	ThumbnailURL  string
	ThumbnailKey  string
	PreviewURL    string
	PreviewKey    string
	Duration      int
}

// Cursor is the keyset position of the last item of a page.
type Cursor struct {
	ID        uuid.UUID `json:"id"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// VideoPage is one page of a keyset-paginated listing.
type VideoPage struct {
	Items      []Video `json:"items"`
	NextCursor *Cursor `json:"nextCursor"`
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string { return &s }

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// FormatDuration renders milliseconds as mm:ss.
func FormatDuration(ms int) string {
	seconds := (ms % 60_000) / 1000
	minutes := ms / 60_000
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}
