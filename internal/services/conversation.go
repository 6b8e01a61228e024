package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/HammerMeetNail/nearby/internal/models"
)

type ConversationService struct {
	db  DB
	now func() time.Time
}

func NewConversationService(db DB) *ConversationService {
	return &ConversationService{db: db, now: time.Now}
}

// EnsureDirect returns the one-to-one conversation between a and b, creating it if needed.
func (s *ConversationService) EnsureDirect(ctx context.Context, a, b uuid.UUID) (*models.Conversation, error) {
	if a == b {
		return nil, ErrSelfTarget
	}
	key := models.NewPairKey(a, b)

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin conversation transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	_, err = tx.Exec(ctx,
		`INSERT INTO conversations (id, direct_key, created_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (direct_key) DO NOTHING`,
		uuid.New(), key.String(), s.now(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert conversation: %w", err)
	}

	conv := &models.Conversation{ParticipantIDs: []uuid.UUID{key.Low, key.High}}
	err = tx.QueryRow(ctx,
		"SELECT id, created_at FROM conversations WHERE direct_key = $1",
		key.String(),
	).Scan(&conv.ID, &conv.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO conversation_participants (conversation_id, user_id)
		 VALUES ($1, $2), ($1, $3)
		 ON CONFLICT DO NOTHING`,
		conv.ID, key.Low, key.High,
	)
	if err != nil {
		return nil, fmt.Errorf("insert participants: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit conversation: %w", err)
	}
	committed = true
	return conv, nil
}

func (s *ConversationService) IsParticipant(ctx context.Context, conversationID, userID uuid.UUID) (bool, error) {
	var ok bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS(
			SELECT 1 FROM conversation_participants
			WHERE conversation_id = $1 AND user_id = $2
		)`,
		conversationID, userID,
	).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check participant: %w", err)
	}
	return ok, nil
}

func (s *ConversationService) Participants(ctx context.Context, conversationID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.db.Query(ctx,
		"SELECT user_id FROM conversation_participants WHERE conversation_id = $1 ORDER BY user_id",
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate participants: %w", err)
	}
	if len(ids) == 0 {
		return nil, ErrNotFound
	}
	return ids, nil
}

// Append stores one message as a single insert. The sender must be a participant.
func (s *ConversationService) Append(ctx context.Context, params models.AppendMessageParams) (*models.Message, error) {
	content := strings.TrimSpace(params.Content)
	if content == "" {
		return nil, fmt.Errorf("%w: message content is required", ErrInvalidInput)
	}
	if utf8.RuneCountInString(content) > models.MaxMessageLength {
		return nil, fmt.Errorf("%w: message exceeds %d characters", ErrInvalidInput, models.MaxMessageLength)
	}

	msg := &models.Message{
		ID:             uuid.New(),
		ConversationID: params.ConversationID,
		SenderID:       params.SenderID,
		Content:        content,
	}
	err := s.db.QueryRow(ctx,
		`INSERT INTO messages (id, conversation_id, sender_id, content, created_at)
		 SELECT $1, $2, $3, $4, $5
		 WHERE EXISTS (
			SELECT 1 FROM conversation_participants
			WHERE conversation_id = $2 AND user_id = $3
		 )
		 RETURNING created_at`,
		msg.ID, msg.ConversationID, msg.SenderID, msg.Content, s.now(),
	).Scan(&msg.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrForbidden
	}
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return msg, nil
}
