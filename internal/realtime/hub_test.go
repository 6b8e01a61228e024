package realtime

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/nearby/internal/models"
	"github.com/HammerMeetNail/nearby/internal/presence"
)

type stubHandle struct {
	id uuid.UUID

	mu       sync.Mutex
	payloads [][]byte
	full     bool
}

func newStubHandle() *stubHandle {
	return &stubHandle{id: uuid.New()}
}

func (h *stubHandle) ID() uuid.UUID { return h.id }

func (h *stubHandle) Send(payload []byte) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.full {
		return false
	}
	h.payloads = append(h.payloads, payload)
	return true
}

func (h *stubHandle) frames(t *testing.T) []Frame {
	t.Helper()
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Frame, 0, len(h.payloads))
	for _, p := range h.payloads {
		f, err := Decode(p)
		if err != nil {
			t.Fatalf("bad frame: %v", err)
		}
		out = append(out, f)
	}
	return out
}

type stubLookup map[uuid.UUID]presence.Handle

func (s stubLookup) Handle(userID uuid.UUID) (presence.Handle, bool) {
	h, ok := s[userID]
	return h, ok
}

func TestHub_PublishToUser(t *testing.T) {
	online := uuid.New()
	h := newStubHandle()
	hub := NewHub(stubLookup{online: h})

	if !hub.PublishToUser(online, EventIncomingPing, IncomingPingPayload{}) {
		t.Fatal("expected delivery to online user")
	}
	if hub.PublishToUser(uuid.New(), EventIncomingPing, IncomingPingPayload{}) {
		t.Fatal("expected offline user to be dropped")
	}

	h.full = true
	if hub.PublishToUser(online, EventIncomingPing, IncomingPingPayload{}) {
		t.Fatal("expected full queue to drop")
	}
	if got := len(h.frames(t)); got != 1 {
		t.Fatalf("expected 1 frame, got %d", got)
	}
}

func TestHub_PublishToConversation_ExcludesOrigin(t *testing.T) {
	hub := NewHub(stubLookup{})
	conv := uuid.New()
	alice, bob := uuid.New(), uuid.New()
	ha, hb := newStubHandle(), newStubHandle()

	hub.Join(conv, alice, ha)
	hub.Join(conv, bob, hb)
	hub.Join(uuid.New(), bob, hb)

	if n := hub.PublishToConversation(conv, alice, EventNewMessage, MessagePayload{ConversationID: conv}); n != 1 {
		t.Fatalf("expected 1 delivery, got %d", n)
	}
	if len(ha.frames(t)) != 0 {
		t.Fatal("origin must not receive its own message")
	}
	if frames := hb.frames(t); len(frames) != 1 || frames[0].Event != EventNewMessage {
		t.Fatalf("unexpected frames %v", frames)
	}
}

func TestHub_JoinLeaveDetach(t *testing.T) {
	hub := NewHub(stubLookup{})
	c1, c2 := uuid.New(), uuid.New()
	user := uuid.New()
	h := newStubHandle()

	hub.Join(c1, user, h)
	hub.Join(c2, user, h)
	if !hub.IsJoined(c1, user) || !hub.IsJoined(c2, user) {
		t.Fatal("expected joined to both")
	}

	hub.Leave(c1, h)
	if hub.IsJoined(c1, user) {
		t.Fatal("expected left c1")
	}

	hub.Detach(h)
	if hub.IsJoined(c2, user) {
		t.Fatal("expected detach to leave every conversation")
	}
	if n := hub.PublishToConversation(c2, uuid.Nil, EventNewMessage, MessagePayload{}); n != 0 {
		t.Fatalf("expected no deliveries after detach, got %d", n)
	}
	hub.Detach(h)
}

func TestHub_PingEvents(t *testing.T) {
	sender, recipient := uuid.New(), uuid.New()
	hs, hr := newStubHandle(), newStubHandle()
	hub := NewHub(stubLookup{sender: hs, recipient: hr})

	now := time.Now().UTC()
	p := models.Ping{
		ID:          uuid.New(),
		SenderID:    sender,
		RecipientID: recipient,
		Status:      models.PingStatusPending,
		ExpiresAt:   now.Add(time.Minute),
	}
	hub.PingCreated(p)

	frames := hr.frames(t)
	if len(frames) != 1 || frames[0].Event != EventIncomingPing {
		t.Fatalf("expected incoming_ping for recipient, got %v", frames)
	}
	var in IncomingPingPayload
	if err := json.Unmarshal(frames[0].Data, &in); err != nil {
		t.Fatalf("bad payload: %v", err)
	}
	if in.PingID != p.ID || in.SenderID != sender {
		t.Fatalf("unexpected payload %+v", in)
	}
	if len(hs.frames(t)) != 0 {
		t.Fatal("sender must not get incoming_ping")
	}

	p.Status = models.PingStatusAccepted
	p.RespondedAt = &now
	conv := uuid.New()
	hub.PingResolved(p, &conv)

	for name, h := range map[string]*stubHandle{"sender": hs, "recipient": hr} {
		frames := h.frames(t)
		last := frames[len(frames)-1]
		if last.Event != EventPingResolved {
			t.Fatalf("%s: expected ping_resolved, got %s", name, last.Event)
		}
		var out PingResolvedPayload
		if err := json.Unmarshal(last.Data, &out); err != nil {
			t.Fatalf("bad payload: %v", err)
		}
		if out.Status != models.PingStatusAccepted || out.ConversationID == nil || *out.ConversationID != conv {
			t.Fatalf("%s: unexpected payload %+v", name, out)
		}
	}
}
