package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/nearby/internal/models"
)

// MemoryPingStore keeps pings in process. A single mutex makes the pending
// pair check and the insert one atomic step.
type MemoryPingStore struct {
	mu      sync.Mutex
	pings   map[uuid.UUID]models.Ping
	pending map[models.PairKey]uuid.UUID
}

func NewMemoryPingStore() *MemoryPingStore {
	return &MemoryPingStore{
		pings:   make(map[uuid.UUID]models.Ping),
		pending: make(map[models.PairKey]uuid.UUID),
	}
}

func (s *MemoryPingStore) Create(ctx context.Context, p *models.Ping) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := models.NewPairKey(p.SenderID, p.RecipientID)
	if p.Status == models.PingStatusPending {
		if _, exists := s.pending[key]; exists {
			return ErrDuplicateActive
		}
		s.pending[key] = p.ID
	}
	s.pings[p.ID] = *p
	return nil
}

func (s *MemoryPingStore) Get(ctx context.Context, id uuid.UUID) (*models.Ping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pings[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (s *MemoryPingStore) PendingBetween(ctx context.Context, a, b uuid.UUID) (*models.Ping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.pending[models.NewPairKey(a, b)]
	if !ok {
		return nil, nil
	}
	p := s.pings[id]
	return &p, nil
}

func (s *MemoryPingStore) Resolve(ctx context.Context, id uuid.UUID, status models.PingStatus, respondedAt *time.Time) (*models.Ping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pings[id]
	if !ok {
		return nil, ErrNotFound
	}
	if p.Status != models.PingStatusPending {
		return nil, ErrAlreadyResolved
	}

	p.Status = status
	if respondedAt != nil {
		t := *respondedAt
		p.RespondedAt = &t
	}
	s.pings[id] = p
	delete(s.pending, models.NewPairKey(p.SenderID, p.RecipientID))
	return &p, nil
}

func (s *MemoryPingStore) DeletePending(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pings[id]
	if !ok || p.Status != models.PingStatusPending {
		return ErrNotFound
	}
	delete(s.pings, id)
	delete(s.pending, models.NewPairKey(p.SenderID, p.RecipientID))
	return nil
}

func (s *MemoryPingStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Ping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []models.Ping{}
	for _, p := range s.pings {
		if p.Involves(userID) {
			out = append(out, p)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *MemoryPingStore) ExpireStale(ctx context.Context, now time.Time) ([]models.Ping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expired []models.Ping
	for key, id := range s.pending {
		p := s.pings[id]
		if !p.IsExpiredAt(now) {
			continue
		}
		p.Status = models.PingStatusExpired
		s.pings[id] = p
		delete(s.pending, key)
		expired = append(expired, p)
	}
	return expired, nil
}

func sortNewestFirst(pings []models.Ping) {
	sort.SliceStable(pings, func(i, j int) bool {
		if !pings[i].CreatedAt.Equal(pings[j].CreatedAt) {
			return pings[i].CreatedAt.After(pings[j].CreatedAt)
		}
		return pings[i].ID.String() > pings[j].ID.String()
	})
}
