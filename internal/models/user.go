package models

import (
	"github.com/google/uuid"
)

// Identity is the authenticated caller as resolved from a bearer token.
// Profiles and credentials live in an external store.
type Identity struct {
	UserID uuid.UUID `json:"user_id"`
}
