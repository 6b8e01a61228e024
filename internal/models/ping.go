package models

import (
	"time"

	"github.com/google/uuid"
)

type PingStatus string

const (
	PingStatusPending  PingStatus = "pending"
	PingStatusAccepted PingStatus = "accepted"
	PingStatusDeclined PingStatus = "declined"
	PingStatusExpired  PingStatus = "expired"
)

// IsTerminal reports whether no further transition is allowed from s.
func (s PingStatus) IsTerminal() bool {
	switch s {
	case PingStatusAccepted, PingStatusDeclined, PingStatusExpired:
		return true
	default:
		return false
	}
}

// PingDecision is the recipient's answer to a pending ping.
type PingDecision string

const (
	PingDecisionAccept  PingDecision = "accepted"
	PingDecisionDecline PingDecision = "declined"
)

// Status maps a decision onto the terminal status it produces.
func (d PingDecision) Status() (PingStatus, bool) {
	switch d {
	case PingDecisionAccept:
		return PingStatusAccepted, true
	case PingDecisionDecline:
		return PingStatusDeclined, true
	default:
		return "", false
	}
}

func DecisionFromBool(accepted bool) PingDecision {
	if accepted {
		return PingDecisionAccept
	}
	return PingDecisionDecline
}

type Ping struct {
	ID          uuid.UUID  `json:"id"`
	SenderID    uuid.UUID  `json:"sender_id"`
	RecipientID uuid.UUID  `json:"recipient_id"`
	Status      PingStatus `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   time.Time  `json:"expires_at"`
	RespondedAt *time.Time `json:"responded_at,omitempty"`
}

// IsExpiredAt reports whether a pending ping has outlived its deadline.
func (p *Ping) IsExpiredAt(now time.Time) bool {
	return p.Status == PingStatusPending && !now.Before(p.ExpiresAt)
}

// NormalizeExpiry flips a logically expired pending ping to expired.
// It returns true when the status changed and the change must be persisted.
func (p *Ping) NormalizeExpiry(now time.Time) bool {
	if !p.IsExpiredAt(now) {
		return false
	}
	p.Status = PingStatusExpired
	return true
}

// Involves reports whether userID is the sender or the recipient.
func (p *Ping) Involves(userID uuid.UUID) bool {
	return p.SenderID == userID || p.RecipientID == userID
}

// PairKey orders two user IDs so that (a, b) and (b, a) produce the same key.
type PairKey struct {
	Low  uuid.UUID
	High uuid.UUID
}

func NewPairKey(a, b uuid.UUID) PairKey {
	if a.String() <= b.String() {
		return PairKey{Low: a, High: b}
	}
	return PairKey{Low: b, High: a}
}

func (k PairKey) String() string {
	return k.Low.String() + ":" + k.High.String()
}
