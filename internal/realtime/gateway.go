package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/HammerMeetNail/nearby/internal/logging"
	"github.com/HammerMeetNail/nearby/internal/models"
	"github.com/HammerMeetNail/nearby/internal/presence"
	"github.com/HammerMeetNail/nearby/internal/services"
)

// PresenceTracker is the connection side of the presence registry.
type PresenceTracker interface {
	Connect(userID uuid.UUID, h presence.Handle)
	Disconnect(userID uuid.UUID, h presence.Handle)
	Touch(userID uuid.UUID)
}

// Gateway runs websocket sessions: it registers them with presence, routes
// inbound events to the services and reports failures back as error events.
type Gateway struct {
	presence      PresenceTracker
	hub           *Hub
	locations     services.LocationServiceInterface
	pings         services.PingServiceInterface
	conversations services.ConversationServiceInterface
	cfg           ClientConfig
	opTimeout     time.Duration
	logger        *logging.Logger

	mu      sync.Mutex
	clients map[uuid.UUID]*Client
	closing bool
	wg      sync.WaitGroup
}

func NewGateway(
	tracker PresenceTracker,
	hub *Hub,
	locations services.LocationServiceInterface,
	pings services.PingServiceInterface,
	conversations services.ConversationServiceInterface,
	cfg ClientConfig,
) *Gateway {
	return &Gateway{
		presence:      tracker,
		hub:           hub,
		locations:     locations,
		pings:         pings,
		conversations: conversations,
		cfg:           cfg.withDefaults(),
		opTimeout:     5 * time.Second,
		logger:        logging.Default.WithField("component", "gateway"),
		clients:       make(map[uuid.UUID]*Client),
	}
}

// Serve runs the session for an upgraded connection until it closes. The
// connection becomes the user's live presence handle for its lifetime.
func (g *Gateway) Serve(conn *websocket.Conn, userID uuid.UUID) {
	c := newClient(conn, userID, g.cfg, g.logger)

	g.mu.Lock()
	if g.closing {
		g.mu.Unlock()
		_ = conn.Close()
		return
	}
	g.clients[c.ID()] = c
	g.wg.Add(1)
	g.mu.Unlock()
	defer g.wg.Done()

	g.presence.Connect(userID, c)
	c.logger.Info("Websocket connected")

	go c.writePump()
	c.readLoop(func(payload []byte) {
		g.presence.Touch(userID)
		g.handleFrame(c, payload)
	})

	g.hub.Detach(c)
	g.presence.Disconnect(userID, c)

	g.mu.Lock()
	delete(g.clients, c.ID())
	g.mu.Unlock()
	c.logger.Info("Websocket disconnected")
}

// ActiveConnections reports how many sessions are being served.
func (g *Gateway) ActiveConnections() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.clients)
}

// Close closes every session and waits for them to finish or ctx to end.
// Sessions arriving afterwards are refused.
func (g *Gateway) Close(ctx context.Context) error {
	g.mu.Lock()
	g.closing = true
	for _, c := range g.clients {
		c.Close()
	}
	g.mu.Unlock()

	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *Gateway) handleFrame(c *Client, payload []byte) {
	frame, err := Decode(payload)
	if err != nil {
		g.sendError(c, "", fmt.Errorf("%w: %w", services.ErrInvalidInput, err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), g.opTimeout)
	defer cancel()

	if err := g.dispatch(ctx, c, frame); err != nil {
		g.sendError(c, frame.Event, err)
	}
}

func (g *Gateway) dispatch(ctx context.Context, c *Client, frame Frame) error {
	switch frame.Event {
	case EventUpdateLocation:
		var p UpdateLocationPayload
		if err := decodeData(frame, &p); err != nil {
			return err
		}
		if p.Longitude == nil || p.Latitude == nil {
			return fmt.Errorf("%w: longitude and latitude are required", services.ErrInvalidInput)
		}
		return g.locations.Update(ctx, c.UserID(), *p.Longitude, *p.Latitude)

	case EventSendPing:
		var p SendPingPayload
		if err := decodeData(frame, &p); err != nil {
			return err
		}
		ping, err := g.pings.Send(ctx, c.UserID(), p.RecipientID)
		if err != nil {
			return err
		}
		if ack, err := Encode(EventPingSent, pingSent(*ping)); err == nil {
			c.Send(ack)
		}
		return nil

	case EventPingResponse:
		var p PingResponsePayload
		if err := decodeData(frame, &p); err != nil {
			return err
		}
		if p.PingID == uuid.Nil || p.Accepted == nil {
			return fmt.Errorf("%w: pingId and accepted are required", services.ErrInvalidInput)
		}
		_, err := g.pings.Respond(ctx, p.PingID, c.UserID(), models.DecisionFromBool(*p.Accepted))
		return err

	case EventJoinConversation:
		var p ConversationPayload
		if err := decodeData(frame, &p); err != nil {
			return err
		}
		ok, err := g.conversations.IsParticipant(ctx, p.ConversationID, c.UserID())
		if err != nil {
			return err
		}
		if !ok {
			return services.ErrForbidden
		}
		g.hub.Join(p.ConversationID, c.UserID(), c)
		return nil

	case EventLeaveConversation:
		var p ConversationPayload
		if err := decodeData(frame, &p); err != nil {
			return err
		}
		g.hub.Leave(p.ConversationID, c)
		return nil

	case EventSendMessage:
		var p SendMessagePayload
		if err := decodeData(frame, &p); err != nil {
			return err
		}
		return g.sendMessage(ctx, c.UserID(), p)

	default:
		return fmt.Errorf("%w: unknown event %q", services.ErrInvalidInput, frame.Event)
	}
}

// sendMessage stores the message, echoes it to the conversation channel and
// notifies participants who are not watching the conversation.
func (g *Gateway) sendMessage(ctx context.Context, senderID uuid.UUID, p SendMessagePayload) error {
	msg, err := g.conversations.Append(ctx, models.AppendMessageParams{
		ConversationID: p.ConversationID,
		SenderID:       senderID,
		Content:        p.Content,
	})
	if err != nil {
		return err
	}

	out := MessagePayload{ConversationID: msg.ConversationID, Message: msg}
	g.hub.PublishToConversation(msg.ConversationID, senderID, EventNewMessage, out)

	participants, err := g.conversations.Participants(ctx, msg.ConversationID)
	if err != nil {
		g.logger.Warn("Failed to load participants for notification", map[string]interface{}{
			"conversation_id": msg.ConversationID.String(),
			"error":           err.Error(),
		})
		return nil
	}
	for _, id := range participants {
		if id == senderID || g.hub.IsJoined(msg.ConversationID, id) {
			continue
		}
		g.hub.PublishToUser(id, EventMessageNotification, out)
	}
	return nil
}

func (g *Gateway) sendError(c *Client, event string, err error) {
	code := services.ErrorCode(err)
	message := err.Error()
	if code == services.CodeInternal {
		c.logger.Error("Event failed", map[string]interface{}{"event": event, "error": err.Error()})
		message = "internal error"
	}
	out := ErrorPayload{Event: event, Code: code, Message: message}
	var resolved *services.AlreadyResolvedError
	if errors.As(err, &resolved) {
		out.Ping = resolved.Ping
	}
	payload, encErr := Encode(EventError, out)
	if encErr != nil {
		return
	}
	c.Send(payload)
}

func decodeData(frame Frame, dst any) error {
	if len(frame.Data) == 0 {
		return fmt.Errorf("%w: %s requires a payload", services.ErrInvalidInput, frame.Event)
	}
	if err := json.Unmarshal(frame.Data, dst); err != nil {
		return fmt.Errorf("%w: malformed %s payload: %w", services.ErrInvalidInput, frame.Event, err)
	}
	return nil
}
