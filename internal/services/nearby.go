package services

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/nearby/internal/geo"
	"github.com/HammerMeetNail/nearby/internal/models"
)

// PresenceReader is the read side of the presence registry.
type PresenceReader interface {
	Get(userID uuid.UUID) (models.UserPresence, bool)
	Location(userID uuid.UUID) (geo.Point, bool)
}

type NearbyService struct {
	presence      PresenceReader
	index         SpatialIndex
	blocks        BlockRelations
	privacy       DiscoveryFilter
	maxRadius     float64
	defaultRadius float64
}

func NewNearbyService(presence PresenceReader, index SpatialIndex, blocks BlockRelations, privacy DiscoveryFilter, defaultRadius, maxRadius float64) *NearbyService {
	return &NearbyService{
		presence:      presence,
		index:         index,
		blocks:        blocks,
		privacy:       privacy,
		defaultRadius: defaultRadius,
		maxRadius:     maxRadius,
	}
}

func (s *NearbyService) DefaultRadius() float64 {
	return s.defaultRadius
}

// FindNearby lists visible users within radiusMeters of the requester,
// nearest first. It does not modify any state.
func (s *NearbyService) FindNearby(ctx context.Context, requesterID uuid.UUID, radiusMeters float64) ([]models.NearbyUser, error) {
	origin, err := s.requesterLocation(ctx, requesterID)
	if err != nil {
		return nil, err
	}

	if math.IsNaN(radiusMeters) || math.IsInf(radiusMeters, 0) || radiusMeters <= 0 {
		return nil, fmt.Errorf("%w: radius must be a positive number of meters", ErrInvalidInput)
	}
	if s.maxRadius > 0 && radiusMeters > s.maxRadius {
		radiusMeters = s.maxRadius
	}

	candidates, err := s.index.QueryWithinRadius(ctx, origin, radiusMeters)
	if err != nil {
		return nil, fmt.Errorf("query spatial index: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(candidates))
	for _, c := range candidates {
		if c.UserID != requesterID {
			ids = append(ids, c.UserID)
		}
	}
	if len(ids) == 0 {
		return []models.NearbyUser{}, nil
	}

	blocked, err := s.blocks.BlockedWith(ctx, requesterID)
	if err != nil {
		return nil, fmt.Errorf("load block relations: %w", err)
	}
	hidden, err := s.privacy.HiddenAmong(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load privacy settings: %w", err)
	}

	results := make([]models.NearbyUser, 0, len(ids))
	for _, c := range candidates {
		if c.UserID == requesterID {
			continue
		}
		if _, ok := blocked[c.UserID]; ok {
			continue
		}
		if _, ok := hidden[c.UserID]; ok {
			continue
		}

		user := models.NearbyUser{
			UserID:         c.UserID,
			DistanceMeters: int(math.Round(geo.DistanceMeters(origin, c.Point))),
			BearingDegrees: roundBearing(geo.BearingDegrees(origin, c.Point)),
		}
		if p, ok := s.presence.Get(c.UserID); ok {
			user.Online = p.Online
			lastActive := p.LastActive
			user.LastActive = &lastActive
		}
		results = append(results, user)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].DistanceMeters != results[j].DistanceMeters {
			return results[i].DistanceMeters < results[j].DistanceMeters
		}
		return results[i].UserID.String() < results[j].UserID.String()
	})
	return results, nil
}

func (s *NearbyService) requesterLocation(ctx context.Context, userID uuid.UUID) (geo.Point, error) {
	if p, ok := s.presence.Location(userID); ok {
		return p, nil
	}
	p, ok, err := s.index.Position(ctx, userID)
	if err != nil {
		return geo.Point{}, fmt.Errorf("lookup requester position: %w", err)
	}
	if !ok {
		return geo.Point{}, ErrLocationUnavailable
	}
	return p, nil
}

// roundBearing rounds to whole degrees, folding 360 back onto 0.
func roundBearing(deg float64) int {
	b := int(math.Round(deg))
	if b >= 360 {
		b -= 360
	}
	return b
}
