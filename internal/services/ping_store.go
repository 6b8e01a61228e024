package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/HammerMeetNail/nearby/internal/models"
)

// PingStore persists pings. Implementations enforce at most one pending ping
// per unordered pair in Create, and make Resolve a conditional transition out
// of pending.
type PingStore interface {
	Create(ctx context.Context, p *models.Ping) error
	Get(ctx context.Context, id uuid.UUID) (*models.Ping, error)
	PendingBetween(ctx context.Context, a, b uuid.UUID) (*models.Ping, error)
	Resolve(ctx context.Context, id uuid.UUID, status models.PingStatus, respondedAt *time.Time) (*models.Ping, error)
	DeletePending(ctx context.Context, id uuid.UUID) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Ping, error)
	ExpireStale(ctx context.Context, now time.Time) ([]models.Ping, error)
}

const (
	pgUniqueViolation         = "23505"
	pendingPairConstraintName = "pings_one_pending_per_pair"
	pingColumns               = "id, sender_id, recipient_id, status, created_at, expires_at, responded_at"
)

type PostgresPingStore struct {
	db DB
}

func NewPostgresPingStore(db DB) *PostgresPingStore {
	return &PostgresPingStore{db: db}
}

func (s *PostgresPingStore) Create(ctx context.Context, p *models.Ping) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO pings (id, sender_id, recipient_id, status, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		p.ID, p.SenderID, p.RecipientID, string(p.Status), p.CreatedAt, p.ExpiresAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation && pgErr.ConstraintName == pendingPairConstraintName {
			return ErrDuplicateActive
		}
		return fmt.Errorf("insert ping: %w", err)
	}
	return nil
}

func (s *PostgresPingStore) Get(ctx context.Context, id uuid.UUID) (*models.Ping, error) {
	p, err := scanPing(s.db.QueryRow(ctx,
		"SELECT "+pingColumns+" FROM pings WHERE id = $1",
		id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get ping: %w", err)
	}
	return p, nil
}

func (s *PostgresPingStore) PendingBetween(ctx context.Context, a, b uuid.UUID) (*models.Ping, error) {
	p, err := scanPing(s.db.QueryRow(ctx,
		"SELECT "+pingColumns+` FROM pings
		 WHERE status = 'pending'
		   AND ((sender_id = $1 AND recipient_id = $2) OR (sender_id = $2 AND recipient_id = $1))
		 LIMIT 1`,
		a, b,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get pending ping: %w", err)
	}
	return p, nil
}

func (s *PostgresPingStore) Resolve(ctx context.Context, id uuid.UUID, status models.PingStatus, respondedAt *time.Time) (*models.Ping, error) {
	p, err := scanPing(s.db.QueryRow(ctx,
		`UPDATE pings SET status = $2, responded_at = $3
		 WHERE id = $1 AND status = 'pending'
		 RETURNING `+pingColumns,
		id, string(status), respondedAt,
	))
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("resolve ping: %w", err)
	}

	// Nothing transitioned: either the ping is gone or it already left pending.
	if _, getErr := s.Get(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, ErrAlreadyResolved
}

func (s *PostgresPingStore) DeletePending(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.Exec(ctx,
		"DELETE FROM pings WHERE id = $1 AND status = 'pending'",
		id,
	)
	if err != nil {
		return fmt.Errorf("delete ping: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresPingStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Ping, error) {
	rows, err := s.db.Query(ctx,
		"SELECT "+pingColumns+` FROM pings
		 WHERE sender_id = $1 OR recipient_id = $1
		 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list pings: %w", err)
	}
	return collectPings(rows)
}

func (s *PostgresPingStore) ExpireStale(ctx context.Context, now time.Time) ([]models.Ping, error) {
	rows, err := s.db.Query(ctx,
		`UPDATE pings SET status = 'expired'
		 WHERE status = 'pending' AND expires_at <= $1
		 RETURNING `+pingColumns,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("expire pings: %w", err)
	}
	return collectPings(rows)
}

func collectPings(rows Rows) ([]models.Ping, error) {
	defer rows.Close()

	pings := []models.Ping{}
	for rows.Next() {
		p, err := scanPing(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ping: %w", err)
		}
		pings = append(pings, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pings: %w", err)
	}
	return pings, nil
}

func scanPing(row Row) (*models.Ping, error) {
	var p models.Ping
	var status string
	if err := row.Scan(&p.ID, &p.SenderID, &p.RecipientID, &status, &p.CreatedAt, &p.ExpiresAt, &p.RespondedAt); err != nil {
		return nil, err
	}
	p.Status = models.PingStatus(status)
	return &p, nil
}
