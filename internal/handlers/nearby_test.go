package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/nearby/internal/models"
	"github.com/HammerMeetNail/nearby/internal/services"
	"github.com/HammerMeetNail/nearby/internal/testutil"
)

func TestNearbyHandler_List_Unauthenticated(t *testing.T) {
	handler := NewNearbyHandler(&mockNearbyService{})

	req := httptest.NewRequest(http.MethodGet, "/api/nearby", nil)
	rr := httptest.NewRecorder()
	handler.List(rr, req)

	assertErrorResponse(t, rr, http.StatusUnauthorized, "Authentication required")
}

func TestNearbyHandler_List_DefaultRadius(t *testing.T) {
	userID := uuid.New()
	other := uuid.New()
	var gotRadius float64
	svc := &mockNearbyService{
		defaultRadius: 1000,
		FindNearbyFunc: func(ctx context.Context, requesterID uuid.UUID, radiusMeters float64) ([]models.NearbyUser, error) {
			if requesterID != userID {
				t.Fatalf("expected requester %s, got %s", userID, requesterID)
			}
			gotRadius = radiusMeters
			return []models.NearbyUser{{UserID: other, DistanceMeters: 12, BearingDegrees: 90, Online: true}}, nil
		},
	}
	handler := NewNearbyHandler(svc)

	req := withIdentity(httptest.NewRequest(http.MethodGet, "/api/nearby", nil), userID)
	rr := httptest.NewRecorder()
	handler.List(rr, req)

	testutil.AssertStatusCode(t, rr, http.StatusOK)
	if gotRadius != 1000 {
		t.Errorf("expected default radius, got %v", gotRadius)
	}
	response := testutil.DecodeJSON[NearbyResponse](t, rr)
	if len(response.Users) != 1 || response.Users[0].UserID != other || response.Users[0].BearingDegrees != 90 {
		t.Fatalf("unexpected users %+v", response.Users)
	}
}

func TestNearbyHandler_List_EmptyIsArray(t *testing.T) {
	handler := NewNearbyHandler(&mockNearbyService{defaultRadius: 500})

	req := withIdentity(httptest.NewRequest(http.MethodGet, "/api/nearby?radius=250", nil), uuid.New())
	rr := httptest.NewRecorder()
	handler.List(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if body := rr.Body.String(); body != "{\"users\":[]}\n" {
		t.Fatalf("expected empty array, got %q", body)
	}
}

func TestNearbyHandler_List_Errors(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		err    error
		status int
	}{
		{"bad radius", "?radius=far", nil, http.StatusBadRequest},
		{"non-positive radius", "?radius=-5", fmt.Errorf("%w: radius must be positive", services.ErrInvalidInput), http.StatusBadRequest},
		{"no location", "", services.ErrLocationUnavailable, http.StatusUnprocessableEntity},
		{"store failure", "", errors.New("redis down"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockNearbyService{
				defaultRadius: 1000,
				FindNearbyFunc: func(ctx context.Context, requesterID uuid.UUID, radiusMeters float64) ([]models.NearbyUser, error) {
					return nil, tt.err
				},
			}
			handler := NewNearbyHandler(svc)

			req := withIdentity(httptest.NewRequest(http.MethodGet, "/api/nearby"+tt.query, nil), uuid.New())
			rr := httptest.NewRecorder()
			handler.List(rr, req)

			if rr.Code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, rr.Code)
			}
		})
	}
}

func TestNearbyHandler_List_InternalErrorHidesDetail(t *testing.T) {
	svc := &mockNearbyService{
		FindNearbyFunc: func(ctx context.Context, requesterID uuid.UUID, radiusMeters float64) ([]models.NearbyUser, error) {
			return nil, errors.New("dial tcp 10.0.0.5:6379: refused")
		},
	}
	handler := NewNearbyHandler(svc)

	req := withIdentity(httptest.NewRequest(http.MethodGet, "/api/nearby", nil), uuid.New())
	rr := httptest.NewRecorder()
	handler.List(rr, req)

	assertErrorResponse(t, rr, http.StatusInternalServerError, "Internal server error")
}
