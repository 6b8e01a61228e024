package middleware

import (
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/HammerMeetNail/nearby/internal/handlers"
	"github.com/HammerMeetNail/nearby/internal/models"
	"github.com/HammerMeetNail/nearby/internal/services"
)

// tokenQueryParam carries the token on websocket handshakes, where browsers
// cannot set headers.
const tokenQueryParam = "token"

type AuthMiddleware struct {
	verifier services.IdentityVerifier
}

func NewAuthMiddleware(verifier services.IdentityVerifier) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier}
}

// Authenticate resolves the bearer token and adds the identity to context if valid.
// Does not reject unauthenticated requests.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" || m.verifier == nil {
			next.ServeHTTP(w, r)
			return
		}

		userID, err := m.verifier.Verify(token)
		if err != nil {
			// Invalid token, continue without identity
			next.ServeHTTP(w, r)
			return
		}

		ctx := handlers.SetIdentityInContext(r.Context(), &models.Identity{UserID: userID})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAuth rejects unauthenticated requests with 401.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if handlers.GetIdentityFromContext(r.Context()) == nil {
			writeError(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func extractToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		scheme, token, ok := strings.Cut(auth, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if websocket.IsWebSocketUpgrade(r) {
		return r.URL.Query().Get(tokenQueryParam)
	}
	return ""
}
