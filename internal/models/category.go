package models

import (
	"time"

	"github.com/google/uuid"
)

// Category groups videos by topic. Seeded once, read-only afterwards.
type Category struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
