// Package presence tracks which users hold a live connection and where they
// last reported being.
package presence

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/nearby/internal/geo"
	"github.com/HammerMeetNail/nearby/internal/logging"
	"github.com/HammerMeetNail/nearby/internal/models"
)

const DefaultOfflineDebounce = 10 * time.Second

// Handle is a live transport connection owned by the registry.
type Handle interface {
	ID() uuid.UUID
	Send(payload []byte) bool
}

// StatusMirror publishes online/offline transitions outside the process.
type StatusMirror interface {
	SetOnline(ctx context.Context, userID uuid.UUID) error
	SetOffline(ctx context.Context, userID uuid.UUID) error
}

type entry struct {
	online     bool
	handle     Handle
	location   *models.Location
	lastActive time.Time
	generation uint64
	timer      *time.Timer

	mirroredAt  time.Time
	mirrorDirty bool // state changed since the last mirror write started
	mirrorBusy  bool // a mirror worker is running for this user
}

// Registry is safe for concurrent use. All state for a user changes under a
// single mutex so connect, disconnect and location updates never interleave.
type Registry struct {
	mu       sync.Mutex
	users    map[uuid.UUID]*entry
	debounce time.Duration
	now      func() time.Time

	mirror        StatusMirror
	mirrorRefresh time.Duration
	mirrorTimeout time.Duration

	stop     chan struct{}
	stopOnce sync.Once

	logger *logging.Logger
}

type Option func(*Registry)

func WithOfflineDebounce(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.debounce = d
		}
	}
}

// WithMirror reports status changes to m. Online markers are re-sent every
// refresh while a handle is attached, and on activity at most once per refresh.
func WithMirror(m StatusMirror, refresh time.Duration) Option {
	return func(r *Registry) {
		r.mirror = m
		r.mirrorRefresh = refresh
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

func WithLogger(l *logging.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		users:         make(map[uuid.UUID]*entry),
		debounce:      DefaultOfflineDebounce,
		now:           time.Now,
		mirrorTimeout: 3 * time.Second,
		stop:          make(chan struct{}),
		logger:        logging.Default,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.mirror != nil && r.mirrorRefresh > 0 {
		go r.keepalive()
	}
	return r
}

// entryLocked returns the entry for userID, creating it on first use.
func (r *Registry) entryLocked(userID uuid.UUID) *entry {
	e, ok := r.users[userID]
	if !ok {
		e = &entry{}
		r.users[userID] = e
	}
	return e
}

// Connect makes h the live handle for userID, replacing any previous one,
// and cancels a pending offline transition.
func (r *Registry) Connect(userID uuid.UUID, h Handle) {
	r.mu.Lock()
	e := r.entryLocked(userID)
	e.generation++
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	replaced := e.handle != nil && e.handle.ID() != h.ID()
	e.handle = h
	e.online = true
	now := r.now()
	e.lastActive = now
	e.mirroredAt = now
	r.scheduleMirrorLocked(userID, e)
	r.mu.Unlock()

	if replaced {
		r.logger.Debug("Presence handle replaced", map[string]interface{}{"user_id": userID.String()})
	}
}

// Disconnect is a no-op unless h is still the user's current handle. The
// user stays online until the debounce elapses without a reconnect.
func (r *Registry) Disconnect(userID uuid.UUID, h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.users[userID]
	if !ok || e.handle == nil || e.handle.ID() != h.ID() {
		return
	}

	e.handle = nil
	e.generation++
	gen := e.generation
	if e.timer != nil {
		e.timer.Stop()
	}
	e.timer = time.AfterFunc(r.debounce, func() {
		r.expire(userID, gen)
	})
}

func (r *Registry) expire(userID uuid.UUID, gen uint64) {
	r.mu.Lock()
	e, ok := r.users[userID]
	if !ok || e.generation != gen || e.handle != nil {
		r.mu.Unlock()
		return
	}
	e.online = false
	e.timer = nil
	r.scheduleMirrorLocked(userID, e)
	r.mu.Unlock()

	r.logger.Debug("User went offline", map[string]interface{}{"user_id": userID.String()})
}

// UpdateLocation overwrites the user's location. Invalid coordinates leave
// the previous location untouched.
func (r *Registry) UpdateLocation(userID uuid.UUID, longitude, latitude float64) error {
	if err := geo.ValidatePoint(geo.Point{Latitude: latitude, Longitude: longitude}); err != nil {
		return fmt.Errorf("update location: %w", err)
	}

	r.mu.Lock()
	e := r.entryLocked(userID)
	now := r.now()
	e.location = &models.Location{Longitude: longitude, Latitude: latitude, UpdatedAt: now}
	e.lastActive = now
	if r.needsRefreshLocked(e, now) {
		r.scheduleMirrorLocked(userID, e)
	}
	r.mu.Unlock()
	return nil
}

// Touch records inbound activity for a known user.
func (r *Registry) Touch(userID uuid.UUID) {
	r.mu.Lock()
	e, ok := r.users[userID]
	if !ok {
		r.mu.Unlock()
		return
	}
	now := r.now()
	e.lastActive = now
	if r.needsRefreshLocked(e, now) {
		r.scheduleMirrorLocked(userID, e)
	}
	r.mu.Unlock()
}

func (r *Registry) needsRefreshLocked(e *entry, now time.Time) bool {
	if r.mirror == nil || r.mirrorRefresh <= 0 || !e.online {
		return false
	}
	if now.Sub(e.mirroredAt) < r.mirrorRefresh {
		return false
	}
	e.mirroredAt = now
	return true
}

func (r *Registry) IsOnline(userID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.users[userID]
	return ok && e.online
}

func (r *Registry) Get(userID uuid.UUID) (models.UserPresence, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.users[userID]
	if !ok {
		return models.UserPresence{}, false
	}
	p := models.UserPresence{
		UserID:     userID,
		Online:     e.online,
		LastActive: e.lastActive,
	}
	if e.location != nil {
		loc := *e.location
		p.Location = &loc
	}
	return p, true
}

// Location returns the user's last reported point.
func (r *Registry) Location(userID uuid.UUID) (geo.Point, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.users[userID]
	if !ok || e.location == nil {
		return geo.Point{}, false
	}
	return geo.Point{Latitude: e.location.Latitude, Longitude: e.location.Longitude}, true
}

// Handle returns the live handle for userID, if the user is online and connected.
func (r *Registry) Handle(userID uuid.UUID) (Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.users[userID]
	if !ok || !e.online || e.handle == nil {
		return nil, false
	}
	return e.handle, true
}

// OnlineCount reports how many users are currently online.
func (r *Registry) OnlineCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.users {
		if e.online {
			n++
		}
	}
	return n
}

// Stop cancels every pending offline timer and the mirror keepalive. Used on shutdown.
func (r *Registry) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.users {
		if e.timer != nil {
			e.timer.Stop()
			e.timer = nil
		}
		e.generation++
	}
}

// keepalive re-sends the online marker for every user with an attached
// handle so the mirrored key outlives idle but connected sessions.
func (r *Registry) keepalive() {
	ticker := time.NewTicker(r.mirrorRefresh)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.mu.Lock()
			now := r.now()
			for userID, e := range r.users {
				if e.online && e.handle != nil {
					e.mirroredAt = now
					r.scheduleMirrorLocked(userID, e)
				}
			}
			r.mu.Unlock()
		}
	}
}

// scheduleMirrorLocked marks the user's mirrored state stale and starts a
// worker unless one is already running. Each user has at most one worker, and
// it always writes the state current at the time of the write, so a slow
// offline write can never be the last one after a reconnect.
func (r *Registry) scheduleMirrorLocked(userID uuid.UUID, e *entry) {
	if r.mirror == nil {
		return
	}
	e.mirrorDirty = true
	if e.mirrorBusy {
		return
	}
	e.mirrorBusy = true
	go r.runMirror(userID, e)
}

func (r *Registry) runMirror(userID uuid.UUID, e *entry) {
	for {
		r.mu.Lock()
		if !e.mirrorDirty {
			e.mirrorBusy = false
			r.mu.Unlock()
			return
		}
		e.mirrorDirty = false
		online := e.online
		r.mu.Unlock()

		r.writeMirror(userID, online)
	}
}

func (r *Registry) writeMirror(userID uuid.UUID, online bool) {
	ctx, cancel := context.WithTimeout(context.Background(), r.mirrorTimeout)
	defer cancel()

	var err error
	if online {
		err = r.mirror.SetOnline(ctx, userID)
	} else {
		err = r.mirror.SetOffline(ctx, userID)
	}
	if err != nil {
		r.logger.Warn("Failed to mirror presence", map[string]interface{}{
			"user_id": userID.String(),
			"online":  online,
			"error":   err.Error(),
		})
	}
}
