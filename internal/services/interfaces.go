package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/nearby/internal/models"
)

// BlockChecker reports whether blockerID has blocked blockedID.
type BlockChecker interface {
	IsBlocked(ctx context.Context, blockerID, blockedID uuid.UUID) (bool, error)
}

// BlockRelations lists users in a block relation with a user, either direction.
type BlockRelations interface {
	BlockedWith(ctx context.Context, userID uuid.UUID) (map[uuid.UUID]struct{}, error)
}

// DiscoveryFilter reports which users opted out of nearby discovery.
type DiscoveryFilter interface {
	HiddenAmong(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]struct{}, error)
}

// IdentityVerifier resolves a credential to the caller's user id.
type IdentityVerifier interface {
	Verify(token string) (uuid.UUID, error)
}

// PingServiceInterface defines the ping lifecycle used by handlers and the realtime gateway.
type PingServiceInterface interface {
	Send(ctx context.Context, senderID, recipientID uuid.UUID) (*models.Ping, error)
	Respond(ctx context.Context, pingID, responderID uuid.UUID, decision models.PingDecision) (*models.Ping, error)
	Cancel(ctx context.Context, pingID, requesterID uuid.UUID) error
	ListFor(ctx context.Context, userID uuid.UUID) ([]models.Ping, error)
	RunExpirySweeper(ctx context.Context, interval time.Duration)
}

// NearbyServiceInterface defines nearby discovery.
type NearbyServiceInterface interface {
	FindNearby(ctx context.Context, requesterID uuid.UUID, radiusMeters float64) ([]models.NearbyUser, error)
	DefaultRadius() float64
}

// LocationServiceInterface records user positions.
type LocationServiceInterface interface {
	Update(ctx context.Context, userID uuid.UUID, longitude, latitude float64) error
}

// ConversationServiceInterface covers what the realtime gateway needs from chat storage.
type ConversationServiceInterface interface {
	EnsureDirect(ctx context.Context, a, b uuid.UUID) (*models.Conversation, error)
	IsParticipant(ctx context.Context, conversationID, userID uuid.UUID) (bool, error)
	Participants(ctx context.Context, conversationID uuid.UUID) ([]uuid.UUID, error)
	Append(ctx context.Context, params models.AppendMessageParams) (*models.Message, error)
}

var (
	_ PingServiceInterface         = (*PingService)(nil)
	_ NearbyServiceInterface       = (*NearbyService)(nil)
	_ LocationServiceInterface     = (*LocationService)(nil)
	_ ConversationServiceInterface = (*ConversationService)(nil)
	_ BlockChecker                 = (*BlockService)(nil)
	_ BlockRelations               = (*BlockService)(nil)
	_ DiscoveryFilter              = (*PrivacyService)(nil)
	_ IdentityVerifier             = (*TokenVerifier)(nil)
	_ PingStore                    = (*PostgresPingStore)(nil)
	_ PingStore                    = (*MemoryPingStore)(nil)
	_ SpatialIndex                 = (*RedisSpatialIndex)(nil)
	_ SpatialIndex                 = (*MemorySpatialIndex)(nil)
)
