// Package realtime routes ping and chat events to live websocket connections.
package realtime

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/nearby/internal/models"
)

// Inbound events.
const (
	EventUpdateLocation    = "update_location"
	EventSendPing          = "send_ping"
	EventPingResponse      = "ping_response"
	EventJoinConversation  = "join_conversation"
	EventLeaveConversation = "leave_conversation"
	EventSendMessage       = "send_message"
)

// Outbound events.
const (
	EventIncomingPing        = "incoming_ping"
	EventPingSent            = "ping_sent"
	EventPingResolved        = "ping_resolved"
	EventNewMessage          = "new_message"
	EventMessageNotification = "message_notification"
	EventError               = "error"
)

// Frame is the envelope of every websocket message in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type UpdateLocationPayload struct {
	Longitude *float64 `json:"longitude"`
	Latitude  *float64 `json:"latitude"`
}

type SendPingPayload struct {
	RecipientID uuid.UUID `json:"recipientId"`
}

type PingResponsePayload struct {
	PingID   uuid.UUID `json:"pingId"`
	Accepted *bool     `json:"accepted"`
}

type ConversationPayload struct {
	ConversationID uuid.UUID `json:"conversationId"`
}

type SendMessagePayload struct {
	ConversationID uuid.UUID `json:"conversationId"`
	Content        string    `json:"content"`
}

type IncomingPingPayload struct {
	PingID    uuid.UUID `json:"pingId"`
	SenderID  uuid.UUID `json:"senderId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// PingSentPayload acknowledges send_ping to the connection that sent it.
type PingSentPayload struct {
	PingID      uuid.UUID `json:"pingId"`
	RecipientID uuid.UUID `json:"recipientId"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

type PingResolvedPayload struct {
	PingID         uuid.UUID         `json:"pingId"`
	Status         models.PingStatus `json:"status"`
	RespondedAt    *time.Time        `json:"respondedAt"`
	ConversationID *uuid.UUID        `json:"conversationId,omitempty"`
}

type MessagePayload struct {
	ConversationID uuid.UUID       `json:"conversationId"`
	Message        *models.Message `json:"message"`
}

type ErrorPayload struct {
	Event   string       `json:"event"`
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Ping    *models.Ping `json:"ping,omitempty"` // set for already_resolved
}

// Encode wraps data in a frame.
func Encode(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", event, err)
	}
	return json.Marshal(Frame{Event: event, Data: raw})
}

// Decode parses a single inbound frame.
func Decode(payload []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(payload, &f); err != nil {
		return Frame{}, fmt.Errorf("decode frame: %w", err)
	}
	if f.Event == "" {
		return Frame{}, fmt.Errorf("decode frame: missing event name")
	}
	return f, nil
}

func incomingPing(p models.Ping) IncomingPingPayload {
	return IncomingPingPayload{PingID: p.ID, SenderID: p.SenderID, ExpiresAt: p.ExpiresAt}
}

func pingSent(p models.Ping) PingSentPayload {
	return PingSentPayload{PingID: p.ID, RecipientID: p.RecipientID, ExpiresAt: p.ExpiresAt}
}

func pingResolved(p models.Ping, conversationID *uuid.UUID) PingResolvedPayload {
	return PingResolvedPayload{
		PingID:         p.ID,
		Status:         p.Status,
		RespondedAt:    p.RespondedAt,
		ConversationID: conversationID,
	}
}
