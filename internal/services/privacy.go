package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// PrivacyService reads discovery settings. Users without a settings row are discoverable.
type PrivacyService struct {
	db DB
}

func NewPrivacyService(db DB) *PrivacyService {
	return &PrivacyService{db: db}
}

// HiddenAmong returns the subset of userIDs that opted out of nearby discovery.
func (s *PrivacyService) HiddenAmong(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]struct{}, error) {
	hidden := make(map[uuid.UUID]struct{})
	if len(userIDs) == 0 {
		return hidden, nil
	}

	rows, err := s.db.Query(ctx,
		`SELECT user_id FROM user_privacy_settings
		 WHERE discoverable = false AND user_id = ANY($1)`,
		userIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("query privacy settings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan privacy setting: %w", err)
		}
		hidden[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate privacy settings: %w", err)
	}
	return hidden, nil
}
