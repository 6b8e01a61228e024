package services

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/HammerMeetNail/nearby/internal/models"
)

type fakeDB struct {
	ExecFunc     func(ctx context.Context, sql string, args ...any) (CommandTag, error)
	QueryFunc    func(ctx context.Context, sql string, args ...any) (Rows, error)
	QueryRowFunc func(ctx context.Context, sql string, args ...any) Row
	BeginFunc    func(ctx context.Context) (Tx, error)
}

func (f *fakeDB) Exec(ctx context.Context, sql string, args ...any) (CommandTag, error) {
	if f.ExecFunc == nil {
		return fakeCommandTag{}, nil
	}
	return f.ExecFunc(ctx, sql, args...)
}

func (f *fakeDB) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	if f.QueryFunc == nil {
		return &fakeRows{}, nil
	}
	return f.QueryFunc(ctx, sql, args...)
}

func (f *fakeDB) QueryRow(ctx context.Context, sql string, args ...any) Row {
	if f.QueryRowFunc == nil {
		return fakeRow{scanFunc: func(dest ...any) error { return pgx.ErrNoRows }}
	}
	return f.QueryRowFunc(ctx, sql, args...)
}

func (f *fakeDB) Begin(ctx context.Context) (Tx, error) {
	if f.BeginFunc == nil {
		return &fakeTx{}, nil
	}
	return f.BeginFunc(ctx)
}

type fakeTx struct {
	ExecFunc     func(ctx context.Context, sql string, args ...any) (CommandTag, error)
	QueryFunc    func(ctx context.Context, sql string, args ...any) (Rows, error)
	QueryRowFunc func(ctx context.Context, sql string, args ...any) Row
	CommitFunc   func(ctx context.Context) error
	RollbackFunc func(ctx context.Context) error
}

func (f *fakeTx) Exec(ctx context.Context, sql string, args ...any) (CommandTag, error) {
	if f.ExecFunc == nil {
		return fakeCommandTag{}, nil
	}
	return f.ExecFunc(ctx, sql, args...)
}

func (f *fakeTx) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	if f.QueryFunc == nil {
		return &fakeRows{}, nil
	}
	return f.QueryFunc(ctx, sql, args...)
}

func (f *fakeTx) QueryRow(ctx context.Context, sql string, args ...any) Row {
	if f.QueryRowFunc == nil {
		return fakeRow{scanFunc: func(dest ...any) error { return pgx.ErrNoRows }}
	}
	return f.QueryRowFunc(ctx, sql, args...)
}

func (f *fakeTx) Commit(ctx context.Context) error {
	if f.CommitFunc == nil {
		return nil
	}
	return f.CommitFunc(ctx)
}

func (f *fakeTx) Rollback(ctx context.Context) error {
	if f.RollbackFunc == nil {
		return nil
	}
	return f.RollbackFunc(ctx)
}

type fakeRow struct {
	scanFunc func(dest ...any) error
}

func (r fakeRow) Scan(dest ...any) error {
	return r.scanFunc(dest...)
}

func rowFromValues(values ...any) fakeRow {
	return fakeRow{scanFunc: func(dest ...any) error {
		return assignValues(dest, values)
	}}
}

type fakeRows struct {
	rows [][]any
	idx  int
	err  error
}

func (r *fakeRows) Next() bool {
	if r.idx >= len(r.rows) {
		return false
	}
	r.idx++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	return assignValues(dest, r.rows[r.idx-1])
}

func (r *fakeRows) Close() {}

func (r *fakeRows) Err() error {
	return r.err
}

type fakeCommandTag struct {
	rowsAffected int64
}

func (t fakeCommandTag) RowsAffected() int64 {
	return t.rowsAffected
}

func assignValues(dest []any, values []any) error {
	if len(dest) != len(values) {
		return fmt.Errorf("scan: expected %d destinations, got %d", len(values), len(dest))
	}
	for i, d := range dest {
		target := reflect.ValueOf(d).Elem()
		if values[i] == nil {
			target.Set(reflect.Zero(target.Type()))
			continue
		}
		v := reflect.ValueOf(values[i])
		if !v.Type().AssignableTo(target.Type()) {
			return fmt.Errorf("scan: column %d: cannot assign %s to %s", i, v.Type(), target.Type())
		}
		target.Set(v)
	}
	return nil
}

func pingRow(p models.Ping) []any {
	return []any{p.ID, p.SenderID, p.RecipientID, string(p.Status), p.CreatedAt, p.ExpiresAt, p.RespondedAt}
}

type fakeBlocks struct {
	mu    sync.Mutex
	pairs map[[2]uuid.UUID]bool
	err   error
}

func newFakeBlocks() *fakeBlocks {
	return &fakeBlocks{pairs: make(map[[2]uuid.UUID]bool)}
}

func (f *fakeBlocks) block(blocker, blocked uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pairs[[2]uuid.UUID{blocker, blocked}] = true
}

func (f *fakeBlocks) IsBlocked(ctx context.Context, blockerID, blockedID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	return f.pairs[[2]uuid.UUID{blockerID, blockedID}], nil
}

func (f *fakeBlocks) BlockedWith(ctx context.Context, userID uuid.UUID) (map[uuid.UUID]struct{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[uuid.UUID]struct{})
	for pair := range f.pairs {
		if pair[0] == userID {
			out[pair[1]] = struct{}{}
		}
		if pair[1] == userID {
			out[pair[0]] = struct{}{}
		}
	}
	return out, nil
}

type fakePrivacy struct {
	hidden map[uuid.UUID]struct{}
	err    error
}

func (f *fakePrivacy) HiddenAmong(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]struct{}, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[uuid.UUID]struct{})
	for _, id := range userIDs {
		if _, ok := f.hidden[id]; ok {
			out[id] = struct{}{}
		}
	}
	return out, nil
}

type resolvedEvent struct {
	ping           models.Ping
	conversationID *uuid.UUID
}

type fakePublisher struct {
	mu       sync.Mutex
	created  []models.Ping
	resolved []resolvedEvent
}

func (f *fakePublisher) PingCreated(p models.Ping) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, p)
}

func (f *fakePublisher) PingResolved(p models.Ping, conversationID *uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolved = append(f.resolved, resolvedEvent{ping: p, conversationID: conversationID})
}

func (f *fakePublisher) resolvedEvents() []resolvedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]resolvedEvent(nil), f.resolved...)
}

type fakeConversations struct {
	conv *models.Conversation
	err  error
	hits int
}

func (f *fakeConversations) EnsureDirect(ctx context.Context, a, b uuid.UUID) (*models.Conversation, error) {
	f.hits++
	if f.err != nil {
		return nil, f.err
	}
	return f.conv, nil
}
