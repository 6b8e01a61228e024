package models

import (
	"time"

	"github.com/google/uuid"
)

// Location is the last reported position of a user. No history is kept.
type Location struct {
	Longitude float64   `json:"longitude"`
	Latitude  float64   `json:"latitude"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserPresence is a snapshot of a user's live state held by the presence registry.
type UserPresence struct {
	UserID     uuid.UUID `json:"user_id"`
	Online     bool      `json:"online"`
	Location   *Location `json:"location,omitempty"`
	LastActive time.Time `json:"last_active"`
}

// NearbyUser is one entry of a nearby query result. Distance and bearing are
// rounded to whole meters and degrees.
type NearbyUser struct {
	UserID         uuid.UUID  `json:"user_id"`
	DistanceMeters int        `json:"distance_meters"`
	BearingDegrees int        `json:"bearing_degrees"`
	Online         bool       `json:"online"`
	LastActive     *time.Time `json:"last_active,omitempty"`
}
