package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/HammerMeetNail/nearby/internal/models"
)

type mockPingService struct {
	SendFunc    func(ctx context.Context, senderID, recipientID uuid.UUID) (*models.Ping, error)
	RespondFunc func(ctx context.Context, pingID, responderID uuid.UUID, decision models.PingDecision) (*models.Ping, error)
	CancelFunc  func(ctx context.Context, pingID, requesterID uuid.UUID) error
	ListForFunc func(ctx context.Context, userID uuid.UUID) ([]models.Ping, error)
}

func (m *mockPingService) Send(ctx context.Context, senderID, recipientID uuid.UUID) (*models.Ping, error) {
	if m.SendFunc != nil {
		return m.SendFunc(ctx, senderID, recipientID)
	}
	return nil, nil
}

func (m *mockPingService) Respond(ctx context.Context, pingID, responderID uuid.UUID, decision models.PingDecision) (*models.Ping, error) {
	if m.RespondFunc != nil {
		return m.RespondFunc(ctx, pingID, responderID, decision)
	}
	return nil, nil
}

func (m *mockPingService) Cancel(ctx context.Context, pingID, requesterID uuid.UUID) error {
	if m.CancelFunc != nil {
		return m.CancelFunc(ctx, pingID, requesterID)
	}
	return nil
}

func (m *mockPingService) ListFor(ctx context.Context, userID uuid.UUID) ([]models.Ping, error) {
	if m.ListForFunc != nil {
		return m.ListForFunc(ctx, userID)
	}
	return nil, nil
}

func (m *mockPingService) RunExpirySweeper(ctx context.Context, interval time.Duration) {}

type mockNearbyService struct {
	FindNearbyFunc func(ctx context.Context, requesterID uuid.UUID, radiusMeters float64) ([]models.NearbyUser, error)
	defaultRadius  float64
}

func (m *mockNearbyService) FindNearby(ctx context.Context, requesterID uuid.UUID, radiusMeters float64) ([]models.NearbyUser, error) {
	if m.FindNearbyFunc != nil {
		return m.FindNearbyFunc(ctx, requesterID, radiusMeters)
	}
	return nil, nil
}

func (m *mockNearbyService) DefaultRadius() float64 {
	return m.defaultRadius
}

type mockLocationService struct {
	UpdateFunc func(ctx context.Context, userID uuid.UUID, longitude, latitude float64) error
}

func (m *mockLocationService) Update(ctx context.Context, userID uuid.UUID, longitude, latitude float64) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, userID, longitude, latitude)
	}
	return nil
}

type mockSessionServer struct {
	ServeFunc func(conn *websocket.Conn, userID uuid.UUID)
}

func (m *mockSessionServer) Serve(conn *websocket.Conn, userID uuid.UUID) {
	if m.ServeFunc != nil {
		m.ServeFunc(conn, userID)
	}
}

func withIdentity(req *http.Request, userID uuid.UUID) *http.Request {
	return req.WithContext(SetIdentityInContext(req.Context(), &models.Identity{UserID: userID}))
}
