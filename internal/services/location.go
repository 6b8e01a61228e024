package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/nearby/internal/geo"
)

// LocationRecorder is the part of the presence registry that stores positions.
type LocationRecorder interface {
	UpdateLocation(userID uuid.UUID, longitude, latitude float64) error
}

type LocationService struct {
	presence LocationRecorder
	index    SpatialIndex
}

func NewLocationService(presence LocationRecorder, index SpatialIndex) *LocationService {
	return &LocationService{presence: presence, index: index}
}

// Update records the user's position in presence and then in the spatial
// index. Invalid coordinates change neither.
func (s *LocationService) Update(ctx context.Context, userID uuid.UUID, longitude, latitude float64) error {
	if err := s.presence.UpdateLocation(userID, longitude, latitude); err != nil {
		if errors.Is(err, geo.ErrNonFinite) || errors.Is(err, geo.ErrOutOfRange) {
			return fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		return err
	}

	if err := s.index.Add(ctx, userID, geo.Point{Latitude: latitude, Longitude: longitude}); err != nil {
		return fmt.Errorf("index location: %w", err)
	}
	return nil
}
