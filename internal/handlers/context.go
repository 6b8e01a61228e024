package handlers

import (
	"context"

	"github.com/HammerMeetNail/nearby/internal/models"
)

type contextKey string

const identityContextKey contextKey = "identity"

func SetIdentityInContext(ctx context.Context, identity *models.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

func GetIdentityFromContext(ctx context.Context) *models.Identity {
	identity, _ := ctx.Value(identityContextKey).(*models.Identity)
	return identity
}
