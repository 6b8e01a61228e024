package handlers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/HammerMeetNail/nearby/internal/logging"
)

// SessionServer runs a websocket session for an authenticated user.
type SessionServer interface {
	Serve(conn *websocket.Conn, userID uuid.UUID)
}

type SocketHandler struct {
	sessions SessionServer
	upgrader websocket.Upgrader
}

// NewSocketHandler accepts any Origin when allowedOrigins is empty.
func NewSocketHandler(sessions SessionServer, allowedOrigins []string) *SocketHandler {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[strings.ToLower(strings.TrimRight(o, "/"))] = struct{}{}
	}

	return &SocketHandler{
		sessions: sessions,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if len(allowed) == 0 || origin == "" {
					return true
				}
				_, ok := allowed[strings.ToLower(origin)]
				return ok
			},
		},
	}
}

// Connect handles GET /ws. The connection is served on the request goroutine
// until it closes.
func (h *SocketHandler) Connect(w http.ResponseWriter, r *http.Request) {
	identity := requireIdentity(w, r)
	if identity == nil {
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		logging.Debug("Websocket upgrade failed", map[string]interface{}{
			"user_id": identity.UserID.String(),
			"error":   err.Error(),
		})
		return
	}
	h.sessions.Serve(conn, identity.UserID)
}
