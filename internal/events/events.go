// Package events publishes video lifecycle events for other services to consume.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	TypeVideoUpdated = "video.updated"
	TypeVideoDeleted = "video.deleted"
)

// Event is a video lifecycle notification.
type Event struct {
	Type    string          `json:"event"`
	VideoID uuid.UUID       `json:"videoId"`
	UserID  uuid.UUID       `json:"userId"`
	Source  string          `json:"source"` // mux event type or procedure name
	Data    json.RawMessage `json:"data,omitempty"`
	At      int64           `json:"at"`
}

// New builds an event stamped with the current time. data is marshalled when non-nil.
func New(eventType string, videoID, userID uuid.UUID, source string, data any) Event {
	ev := Event{Type: eventType, VideoID: videoID, UserID: userID, Source: source, At: time.Now().Unix()}
	if data != nil {
		if raw, err := json.Marshal(data); err == nil {
			ev.Data = raw
		}
	}
	return ev
}

// Publisher delivers lifecycle events.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }
