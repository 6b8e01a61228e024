package handlers

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/nearby/internal/models"
)

func TestSetIdentityInContext(t *testing.T) {
	identity := &models.Identity{UserID: uuid.New()}

	ctx := context.Background()
	newCtx := SetIdentityInContext(ctx, identity)

	if newCtx == ctx {
		t.Error("SetIdentityInContext should return new context")
	}
}

func TestGetIdentityFromContext_WithIdentity(t *testing.T) {
	identity := &models.Identity{UserID: uuid.New()}

	ctx := SetIdentityInContext(context.Background(), identity)
	retrieved := GetIdentityFromContext(ctx)

	if retrieved == nil {
		t.Fatal("expected identity to be retrieved from context")
	}
	if retrieved.UserID != identity.UserID {
		t.Errorf("expected user ID %v, got %v", identity.UserID, retrieved.UserID)
	}
}

func TestGetIdentityFromContext_WithoutIdentity(t *testing.T) {
	if GetIdentityFromContext(context.Background()) != nil {
		t.Error("expected nil identity from empty context")
	}
}

func TestGetIdentityFromContext_WrongType(t *testing.T) {
	ctx := context.WithValue(context.Background(), identityContextKey, "not-an-identity")
	if GetIdentityFromContext(ctx) != nil {
		t.Error("expected nil identity for wrong type in context")
	}
}
