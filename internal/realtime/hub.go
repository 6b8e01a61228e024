package realtime

import (
	"sync"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/nearby/internal/logging"
	"github.com/HammerMeetNail/nearby/internal/models"
	"github.com/HammerMeetNail/nearby/internal/presence"
	"github.com/HammerMeetNail/nearby/internal/services"
)

// HandleLookup resolves a user's live connection. The presence registry
// satisfies it; a user who is offline has no handle.
type HandleLookup interface {
	Handle(userID uuid.UUID) (presence.Handle, bool)
}

type member struct {
	userID uuid.UUID
	handle presence.Handle
}

// Hub owns the personal and conversation channels. A personal channel is the
// user's current presence handle; conversation channels hold joined handles.
type Hub struct {
	presence HandleLookup
	logger   *logging.Logger

	mu     sync.RWMutex
	rooms  map[uuid.UUID]map[uuid.UUID]member   // conversation -> handle id -> member
	joined map[uuid.UUID]map[uuid.UUID]struct{} // handle id -> conversations
}

func NewHub(lookup HandleLookup) *Hub {
	return &Hub{
		presence: lookup,
		logger:   logging.Default.WithField("component", "hub"),
		rooms:    make(map[uuid.UUID]map[uuid.UUID]member),
		joined:   make(map[uuid.UUID]map[uuid.UUID]struct{}),
	}
}

// PublishToUser delivers to the user's personal channel. Offline users and
// full queues drop the event.
func (h *Hub) PublishToUser(userID uuid.UUID, event string, data any) bool {
	payload, err := Encode(event, data)
	if err != nil {
		h.logger.Error("Failed to encode event", map[string]interface{}{"event": event, "error": err.Error()})
		return false
	}
	handle, ok := h.presence.Handle(userID)
	if !ok {
		return false
	}
	if !handle.Send(payload) {
		h.logger.Debug("Dropped event", map[string]interface{}{
			"event":   event,
			"user_id": userID.String(),
		})
		return false
	}
	return true
}

// PublishToConversation fans out to every joined handle except those owned
// by excludeUserID. It returns the number of handles that accepted the event.
func (h *Hub) PublishToConversation(conversationID, excludeUserID uuid.UUID, event string, data any) int {
	payload, err := Encode(event, data)
	if err != nil {
		h.logger.Error("Failed to encode event", map[string]interface{}{"event": event, "error": err.Error()})
		return 0
	}

	h.mu.RLock()
	targets := make([]member, 0, len(h.rooms[conversationID]))
	for _, m := range h.rooms[conversationID] {
		if m.userID != excludeUserID {
			targets = append(targets, m)
		}
	}
	h.mu.RUnlock()

	delivered := 0
	for _, m := range targets {
		if m.handle.Send(payload) {
			delivered++
		}
	}
	return delivered
}

// Join subscribes handle to the conversation channel. Callers check
// participation first.
func (h *Hub) Join(conversationID, userID uuid.UUID, handle presence.Handle) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[conversationID]
	if !ok {
		room = make(map[uuid.UUID]member)
		h.rooms[conversationID] = room
	}
	room[handle.ID()] = member{userID: userID, handle: handle}

	convs, ok := h.joined[handle.ID()]
	if !ok {
		convs = make(map[uuid.UUID]struct{})
		h.joined[handle.ID()] = convs
	}
	convs[conversationID] = struct{}{}
}

func (h *Hub) Leave(conversationID uuid.UUID, handle presence.Handle) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(conversationID, handle.ID())
}

// Detach removes handle from every conversation channel.
func (h *Hub) Detach(handle presence.Handle) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conversationID := range h.joined[handle.ID()] {
		h.leaveLocked(conversationID, handle.ID())
	}
	delete(h.joined, handle.ID())
}

func (h *Hub) leaveLocked(conversationID, handleID uuid.UUID) {
	if room, ok := h.rooms[conversationID]; ok {
		delete(room, handleID)
		if len(room) == 0 {
			delete(h.rooms, conversationID)
		}
	}
	if convs, ok := h.joined[handleID]; ok {
		delete(convs, conversationID)
		if len(convs) == 0 {
			delete(h.joined, handleID)
		}
	}
}

// IsJoined reports whether any handle of userID is on the conversation channel.
func (h *Hub) IsJoined(conversationID, userID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, m := range h.rooms[conversationID] {
		if m.userID == userID {
			return true
		}
	}
	return false
}

// PingCreated notifies the recipient.
func (h *Hub) PingCreated(p models.Ping) {
	h.PublishToUser(p.RecipientID, EventIncomingPing, incomingPing(p))
}

// PingResolved notifies the sender and the recipient's personal channel, so
// the responder's view stays in sync as well.
func (h *Hub) PingResolved(p models.Ping, conversationID *uuid.UUID) {
	payload := pingResolved(p, conversationID)
	h.PublishToUser(p.SenderID, EventPingResolved, payload)
	h.PublishToUser(p.RecipientID, EventPingResolved, payload)
}

var _ services.PingPublisher = (*Hub)(nil)
