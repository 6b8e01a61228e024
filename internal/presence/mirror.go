package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const presenceKeyPrefix = "presence:"

// KeyStore is the slice of Redis the mirror writes through.
type KeyStore interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// RedisStatusMirror keeps a presence:{id} key alive while a user is online
// so other instances can observe it.
type RedisStatusMirror struct {
	store KeyStore
	ttl   time.Duration
	now   func() time.Time
}

func NewRedisStatusMirror(store KeyStore, ttl time.Duration) *RedisStatusMirror {
	return &RedisStatusMirror{store: store, ttl: ttl, now: time.Now}
}

func PresenceKey(userID uuid.UUID) string {
	return presenceKeyPrefix + userID.String()
}

func (m *RedisStatusMirror) SetOnline(ctx context.Context, userID uuid.UUID) error {
	if err := m.store.Set(ctx, PresenceKey(userID), m.now().UTC().Format(time.RFC3339), m.ttl); err != nil {
		return fmt.Errorf("set presence key: %w", err)
	}
	return nil
}

func (m *RedisStatusMirror) SetOffline(ctx context.Context, userID uuid.UUID) error {
	if err := m.store.Del(ctx, PresenceKey(userID)); err != nil {
		return fmt.Errorf("delete presence key: %w", err)
	}
	return nil
}
