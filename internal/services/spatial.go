package services

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/nearby/internal/geo"
)

// Candidate is a user the spatial index reports inside a search radius.
type Candidate struct {
	UserID uuid.UUID
	Point  geo.Point
}

// SpatialIndex stores the latest point per user and answers radius queries.
type SpatialIndex interface {
	Add(ctx context.Context, userID uuid.UUID, p geo.Point) error
	Position(ctx context.Context, userID uuid.UUID) (geo.Point, bool, error)
	QueryWithinRadius(ctx context.Context, center geo.Point, radiusMeters float64) ([]Candidate, error)
}

// geoSearchMargin widens Redis radius searches. Redis measures with an Earth
// radius of 6372797.56 m, larger than geo.EarthRadiusMeters, so points near
// the edge would otherwise be missed; results are re-filtered by haversine.
const geoSearchMargin = 0.001

// RedisSpatialIndex keeps positions in a Redis geo set.
type RedisSpatialIndex struct {
	redis RedisClient
	key   string
}

func NewRedisSpatialIndex(redis RedisClient, key string) *RedisSpatialIndex {
	return &RedisSpatialIndex{redis: redis, key: key}
}

func (s *RedisSpatialIndex) Add(ctx context.Context, userID uuid.UUID, p geo.Point) error {
	err := s.redis.GeoAdd(ctx, s.key, GeoMember{
		Name:      userID.String(),
		Longitude: p.Longitude,
		Latitude:  p.Latitude,
	})
	if err != nil {
		return fmt.Errorf("geoadd: %w", err)
	}
	return nil
}

func (s *RedisSpatialIndex) Position(ctx context.Context, userID uuid.UUID) (geo.Point, bool, error) {
	m, err := s.redis.GeoPos(ctx, s.key, userID.String())
	if err != nil {
		return geo.Point{}, false, fmt.Errorf("geopos: %w", err)
	}
	if m == nil {
		return geo.Point{}, false, nil
	}
	return geo.Point{Latitude: m.Latitude, Longitude: m.Longitude}, true, nil
}

func (s *RedisSpatialIndex) QueryWithinRadius(ctx context.Context, center geo.Point, radiusMeters float64) ([]Candidate, error) {
	members, err := s.redis.GeoSearch(ctx, s.key, center.Longitude, center.Latitude, radiusMeters*(1+geoSearchMargin))
	if err != nil {
		return nil, fmt.Errorf("geosearch: %w", err)
	}

	candidates := make([]Candidate, 0, len(members))
	for _, m := range members {
		id, err := uuid.Parse(m.Name)
		if err != nil {
			// Foreign members in the set are not ours to report.
			continue
		}
		p := geo.Point{Latitude: m.Latitude, Longitude: m.Longitude}
		if geo.DistanceMeters(center, p) > radiusMeters {
			continue
		}
		candidates = append(candidates, Candidate{UserID: id, Point: p})
	}
	return candidates, nil
}

// MemorySpatialIndex is a linear-scan index for single-process deployments and tests.
type MemorySpatialIndex struct {
	mu        sync.RWMutex
	positions map[uuid.UUID]geo.Point
}

func NewMemorySpatialIndex() *MemorySpatialIndex {
	return &MemorySpatialIndex{positions: make(map[uuid.UUID]geo.Point)}
}

func (m *MemorySpatialIndex) Add(ctx context.Context, userID uuid.UUID, p geo.Point) error {
	if err := geo.ValidatePoint(p); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions[userID] = p
	return nil
}

func (m *MemorySpatialIndex) Position(ctx context.Context, userID uuid.UUID) (geo.Point, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.positions[userID]
	return p, ok, nil
}

func (m *MemorySpatialIndex) QueryWithinRadius(ctx context.Context, center geo.Point, radiusMeters float64) ([]Candidate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Candidate
	for id, p := range m.positions {
		if geo.DistanceMeters(center, p) <= radiusMeters {
			out = append(out, Candidate{UserID: id, Point: p})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UserID.String() < out[j].UserID.String()
	})
	return out, nil
}
