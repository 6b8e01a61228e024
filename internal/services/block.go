package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// BlockService reads block relations. Creating and removing blocks belongs to
// the profile service that owns user_blocks.
type BlockService struct {
	db DB
}

func NewBlockService(db DB) *BlockService {
	return &BlockService{db: db}
}

// IsBlocked reports whether blockerID has blocked blockedID. Callers check
// both directions.
func (s *BlockService) IsBlocked(ctx context.Context, blockerID, blockedID uuid.UUID) (bool, error) {
	var blocked bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS(
			SELECT 1 FROM user_blocks
			WHERE blocker_id = $1 AND blocked_id = $2
		)`,
		blockerID, blockedID,
	).Scan(&blocked)
	if err != nil {
		return false, fmt.Errorf("check block status: %w", err)
	}
	return blocked, nil
}

// BlockedWith returns every user in a block relation with userID, in either direction.
func (s *BlockService) BlockedWith(ctx context.Context, userID uuid.UUID) (map[uuid.UUID]struct{}, error) {
	rows, err := s.db.Query(ctx,
		`SELECT blocked_id FROM user_blocks WHERE blocker_id = $1
		 UNION
		 SELECT blocker_id FROM user_blocks WHERE blocked_id = $1`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list block relations: %w", err)
	}
	defer rows.Close()

	out := make(map[uuid.UUID]struct{})
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan block relation: %w", err)
		}
		out[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate block relations: %w", err)
	}
	return out, nil
}

// EitherBlocked checks both directions of the pair.
func EitherBlocked(ctx context.Context, checker BlockChecker, a, b uuid.UUID) (bool, error) {
	blocked, err := checker.IsBlocked(ctx, a, b)
	if err != nil || blocked {
		return blocked, err
	}
	return checker.IsBlocked(ctx, b, a)
}
