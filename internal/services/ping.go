package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/nearby/internal/logging"
	"github.com/HammerMeetNail/nearby/internal/models"
)

const DefaultPingTTL = 5 * time.Minute

// PingPublisher is told about every ping transition. Delivery is best effort
// and must not block.
type PingPublisher interface {
	PingCreated(p models.Ping)
	PingResolved(p models.Ping, conversationID *uuid.UUID)
}

// DirectConversations opens the chat two users get once a ping is accepted.
type DirectConversations interface {
	EnsureDirect(ctx context.Context, a, b uuid.UUID) (*models.Conversation, error)
}

type PingService struct {
	store         PingStore
	blocks        BlockChecker
	publisher     PingPublisher
	conversations DirectConversations
	ttl           time.Duration
	now           func() time.Time
	logger        *logging.Logger
}

// NewPingService wires the ping state machine. publisher and conversations may be nil.
func NewPingService(store PingStore, blocks BlockChecker, publisher PingPublisher, conversations DirectConversations, ttl time.Duration) *PingService {
	if ttl <= 0 {
		ttl = DefaultPingTTL
	}
	return &PingService{
		store:         store,
		blocks:        blocks,
		publisher:     publisher,
		conversations: conversations,
		ttl:           ttl,
		now:           time.Now,
		logger:        logging.Default.WithField("component", "ping"),
	}
}

// Send creates a pending ping from senderID to recipientID.
func (s *PingService) Send(ctx context.Context, senderID, recipientID uuid.UUID) (*models.Ping, error) {
	if recipientID == uuid.Nil {
		return nil, fmt.Errorf("%w: recipient is required", ErrInvalidInput)
	}
	if senderID == recipientID {
		return nil, ErrSelfTarget
	}

	blocked, err := EitherBlocked(ctx, s.blocks, senderID, recipientID)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, ErrBlocked
	}

	now := s.now()
	existing, err := s.store.PendingBetween(ctx, senderID, recipientID)
	if err != nil {
		return nil, err
	}
	if existing != nil && !s.expireIfStale(ctx, existing, now) {
		return nil, ErrDuplicateActive
	}

	ping := &models.Ping{
		ID:          uuid.New(),
		SenderID:    senderID,
		RecipientID: recipientID,
		Status:      models.PingStatusPending,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.ttl),
	}
	if err := s.store.Create(ctx, ping); err != nil {
		return nil, err
	}

	if s.publisher != nil {
		s.publisher.PingCreated(*ping)
	}
	return ping, nil
}

// Respond accepts or declines a pending ping on behalf of its recipient.
func (s *PingService) Respond(ctx context.Context, pingID, responderID uuid.UUID, decision models.PingDecision) (*models.Ping, error) {
	status, ok := decision.Status()
	if !ok {
		return nil, fmt.Errorf("%w: unknown decision %q", ErrInvalidInput, decision)
	}

	ping, err := s.store.Get(ctx, pingID)
	if err != nil {
		return nil, err
	}
	if ping.RecipientID != responderID {
		return nil, ErrForbidden
	}
	if err := resolvedError(ping); err != nil {
		return nil, err
	}

	now := s.now()
	if s.expireIfStale(ctx, ping, now) {
		return nil, ErrExpired
	}

	respondedAt := now
	updated, err := s.store.Resolve(ctx, pingID, status, &respondedAt)
	if errors.Is(err, ErrAlreadyResolved) {
		// Lost a race with another responder or the janitor.
		current, getErr := s.store.Get(ctx, pingID)
		if getErr != nil {
			return nil, getErr
		}
		return nil, resolvedError(current)
	}
	if err != nil {
		return nil, err
	}

	var conversationID *uuid.UUID
	if updated.Status == models.PingStatusAccepted && s.conversations != nil {
		conv, err := s.conversations.EnsureDirect(ctx, updated.SenderID, updated.RecipientID)
		if err != nil {
			s.logger.Error("Failed to open conversation for accepted ping", map[string]interface{}{
				"ping_id": updated.ID.String(),
				"error":   err.Error(),
			})
		} else {
			conversationID = &conv.ID
		}
	}

	if s.publisher != nil {
		s.publisher.PingResolved(*updated, conversationID)
	}
	return updated, nil
}

// Cancel lets the sender withdraw a ping that is still pending.
func (s *PingService) Cancel(ctx context.Context, pingID, requesterID uuid.UUID) error {
	ping, err := s.store.Get(ctx, pingID)
	if err != nil {
		return err
	}
	if s.expireIfStale(ctx, ping, s.now()) {
		return ErrForbidden
	}
	if ping.SenderID != requesterID || ping.Status != models.PingStatusPending {
		return ErrForbidden
	}

	if err := s.store.DeletePending(ctx, pingID); err != nil {
		if errors.Is(err, ErrNotFound) {
			// Resolved between the read and the delete.
			return ErrForbidden
		}
		return err
	}
	return nil
}

// ListFor returns every ping userID sent or received, newest first. No
// returned ping is pending past its deadline.
func (s *PingService) ListFor(ctx context.Context, userID uuid.UUID) ([]models.Ping, error) {
	pings, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	for i := range pings {
		s.expireIfStale(ctx, &pings[i], now)
	}
	sortNewestFirst(pings)
	return pings, nil
}

// SweepExpired flips every stale pending ping to expired and reports how many changed.
func (s *PingService) SweepExpired(ctx context.Context) (int, error) {
	expired, err := s.store.ExpireStale(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if s.publisher != nil {
		for _, p := range expired {
			s.publisher.PingResolved(p, nil)
		}
	}
	return len(expired), nil
}

// RunExpirySweeper calls SweepExpired every interval until ctx is done.
// Lazy expiry keeps reads correct without it.
func (s *PingService) RunExpirySweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.SweepExpired(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				s.logger.Error("Ping expiry sweep failed", map[string]interface{}{"error": err.Error()})
				continue
			}
			if n > 0 {
				s.logger.Info("Expired stale pings", map[string]interface{}{"count": n})
			}
		}
	}
}

// expireIfStale flips ping to expired when it is pending past its deadline,
// persists the change and reports whether it did. On return ping holds the
// record as it now stands; persistence failures are logged and ping stays
// expired regardless.
func (s *PingService) expireIfStale(ctx context.Context, ping *models.Ping, now time.Time) bool {
	if !ping.NormalizeExpiry(now) {
		return false
	}

	updated, err := s.store.Resolve(ctx, ping.ID, models.PingStatusExpired, nil)
	switch {
	case err == nil:
		*ping = *updated
		if s.publisher != nil {
			s.publisher.PingResolved(*updated, nil)
		}
	case errors.Is(err, ErrAlreadyResolved):
		if current, getErr := s.store.Get(ctx, ping.ID); getErr == nil {
			*ping = *current
		}
	case !errors.Is(err, ErrNotFound):
		s.logger.Warn("Failed to persist ping expiry", map[string]interface{}{
			"ping_id": ping.ID.String(),
			"error":   err.Error(),
		})
	}
	return true
}

func resolvedError(p *models.Ping) error {
	switch {
	case p.Status == models.PingStatusExpired:
		return ErrExpired
	case p.Status.IsTerminal():
		return &AlreadyResolvedError{Ping: p}
	default:
		return nil
	}
}
