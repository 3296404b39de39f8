package mux

import (
	"encoding/json"
	"fmt"
	"math"
)

// Webhook event type tags handled by the studio.
const (
	TypeAssetCreated    = "video.asset.created"
	TypeAssetReady      = "video.asset.ready"
	TypeAssetErrored    = "video.asset.errored"
	TypeAssetDeleted    = "video.asset.deleted"
	TypeAssetTrackReady = "video.asset.track.ready"
)

// Event is one decoded webhook delivery. The concrete type is one of
// AssetCreated, AssetReady, AssetErrored, AssetDeleted, TrackReady or Unknown.
type Event interface {
	Type() string
	sealed()
}

// PlaybackID is a public playback identifier of an asset.
type PlaybackID struct {
	ID     string `json:"id"`
	Policy string `json:"policy"`
}

// assetData is the asset object shared by asset lifecycle events.
type assetData struct {
	ID          string       `json:"id"`
	Status      string       `json:"status"`
	UploadID    string       `json:"upload_id"`
	Passthrough string       `json:"passthrough"`
	PlaybackIDs []PlaybackID `json:"playback_ids"`
	Duration    *float64     `json:"duration"`
}

// trackData is the track object of track events.
type trackData struct {
	ID      string `json:"id"`
	AssetID string `json:"asset_id"`
	Status  string `json:"status"`
	Type    string `json:"type"`
}

// AssetCreated: the provider created an asset from a direct upload.
type AssetCreated struct {
	AssetID  string
	UploadID string
	Status   string
}

// AssetReady: the asset finished transcoding and is playable.
type AssetReady struct {
	AssetID     string
	UploadID    string
	Status      string
	PlaybackIDs []PlaybackID
	Duration    *float64 // seconds
}

// AssetErrored: the asset failed to process.
type AssetErrored struct {
	AssetID  string
	UploadID string
	Status   string
}

// AssetDeleted: the asset was removed on the provider side.
type AssetDeleted struct {
	AssetID  string
	UploadID string
}

// TrackReady: a (generated subtitle) track of an asset is available.
type TrackReady struct {
	TrackID string
	AssetID string
	Status  string
}

// Unknown is any event type the studio does not reconcile.
type Unknown struct {
	EventType string
}

func (AssetCreated) Type() string { return TypeAssetCreated }
func (AssetReady) Type() string { return TypeAssetReady }
func (AssetErrored) Type() string { return TypeAssetErrored }
func (AssetDeleted) Type() string { return TypeAssetDeleted }
func (TrackReady) Type() string { return TypeAssetTrackReady }
func (u Unknown) Type() string { return u.EventType }
func (AssetCreated) sealed() {}
func (AssetReady) sealed() {}
func (AssetErrored) sealed() {}
func (AssetDeleted) sealed() {}
func (TrackReady) sealed() {}
func (Unknown) sealed() {}

// FirstPlaybackID returns the first playback id, or "" when there is none.
func (e AssetReady) FirstPlaybackID() string {
	if len(e.PlaybackIDs) == 0 {
		return ""
	}
	return e.PlaybackIDs[0].ID
}

// DurationMillis converts the reported duration to milliseconds, or returns fallback.
func (e AssetReady) DurationMillis(fallback int) int {
	if e.Duration == nil || *e.Duration <= 0 {
		return fallback
	}
	return int(math.Round(*e.Duration * 1000))
}

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// ParseEvent decodes a webhook body into its variant.
func ParseEvent(body []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode webhook envelope: %w", err)
	}
	if len(env.Data) == 0 {
		env.Data = json.RawMessage("{}")
	}

	switch env.Type {
	case TypeAssetCreated, TypeAssetReady, TypeAssetErrored, TypeAssetDeleted:
		var d assetData
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return nil, fmt.Errorf("decode %s data: %w", env.Type, err)
		}
		switch env.Type {
		case TypeAssetCreated:
			return AssetCreated{AssetID: d.ID, UploadID: d.UploadID, Status: d.Status}, nil
		case TypeAssetReady:
			return AssetReady{AssetID: d.ID, UploadID: d.UploadID, Status: d.Status, PlaybackIDs: d.PlaybackIDs, Duration: d.Duration}, nil
		case TypeAssetErrored:
			return AssetErrored{AssetID: d.ID, UploadID: d.UploadID, Status: d.Status}, nil
		default:
			return AssetDeleted{AssetID: d.ID, UploadID: d.UploadID}, nil
		}
	case TypeAssetTrackReady:
		var d trackData
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return nil, fmt.Errorf("decode %s data: %w", env.Type, err)
		}
		return TrackReady{TrackID: d.ID, AssetID: d.AssetID, Status: d.Status}, nil
	default:
		return Unknown{EventType: env.Type}, nil
	}
}
