package handlers

import (
	"context"
	"net/http"
	"time"
)

type HealthChecker interface {
	Health(ctx context.Context) error
}

// StatsFunc reports live counters, such as online users, for the health body.
type StatsFunc func() map[string]int

type HealthHandler struct {
	db    HealthChecker
	redis HealthChecker
	stats StatsFunc
}

// NewHealthHandler builds the probes. stats may be nil.
func NewHealthHandler(db, redis HealthChecker, stats StatsFunc) *HealthHandler {
	return &HealthHandler{
		db:    db,
		redis: redis,
		stats: stats,
	}
}

type HealthResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Stats     map[string]int    `json:"stats,omitempty"`
	Timestamp string            `json:"timestamp"`
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	response := HealthResponse{
		Status:    "healthy",
		Checks:    make(map[string]string),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	for name, checker := range map[string]HealthChecker{"postgres": h.db, "redis": h.redis} {
		if err := checker.Health(ctx); err != nil {
			response.Status = "unhealthy"
			response.Checks[name] = "unhealthy: " + err.Error()
		} else {
			response.Checks[name] = "healthy"
		}
	}
	if h.stats != nil {
		response.Stats = h.stats()
	}

	status := http.StatusOK
	if response.Status == "unhealthy" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, response)
}

// Ready reports whether both stores answer; the spatial index lives in Redis.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	dbErr := h.db.Health(ctx)
	redisErr := h.redis.Health(ctx)

	if dbErr != nil || redisErr != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("not ready"))
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ready"))
}

func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("alive"))
}
