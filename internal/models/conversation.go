package models

import (
	"time"

	"github.com/google/uuid"
)

// MaxMessageLength bounds the content of a single chat message in runes.
const MaxMessageLength = 2000

type Conversation struct {
	ID             uuid.UUID   `json:"id"`
	ParticipantIDs []uuid.UUID `json:"participant_ids"`
	CreatedAt      time.Time   `json:"created_at"`
}

func (c *Conversation) HasParticipant(userID uuid.UUID) bool {
	for _, id := range c.ParticipantIDs {
		if id == userID {
			return true
		}
	}
	return false
}

type Message struct {
	ID             uuid.UUID `json:"id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	SenderID       uuid.UUID `json:"sender_id"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

type AppendMessageParams struct {
	ConversationID uuid.UUID
	SenderID       uuid.UUID
	Content        string
}
