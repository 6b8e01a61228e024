package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/HammerMeetNail/nearby/internal/logging"
	"github.com/HammerMeetNail/nearby/internal/models"
	"github.com/HammerMeetNail/nearby/internal/services"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// ConflictResponse is returned when a ping was already answered, so the
// client can show the final state.
type ConflictResponse struct {
	ErrorResponse
	Ping *models.Ping `json:"ping,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// writeServiceError maps a service error onto an HTTP status and wire code.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	code := services.ErrorCode(err)

	var resolved *services.AlreadyResolvedError
	if errors.As(err, &resolved) {
		writeJSON(w, http.StatusConflict, ConflictResponse{
			ErrorResponse: ErrorResponse{Error: "Ping already resolved", Code: code},
			Ping:          resolved.Ping,
		})
		return
	}

	status := statusForCode(code)
	message := err.Error()
	if status == http.StatusInternalServerError {
		logging.Error("Request failed", map[string]interface{}{
			"method": r.Method,
			"path":   r.URL.Path,
			"error":  err.Error(),
		})
		message = "Internal server error"
	}
	writeJSON(w, status, ErrorResponse{Error: message, Code: code})
}

func statusForCode(code string) int {
	switch code {
	case services.CodeInvalidInput, services.CodeSelfTarget:
		return http.StatusBadRequest
	case services.CodeNotFound:
		return http.StatusNotFound
	case services.CodeForbidden, services.CodeBlocked:
		return http.StatusForbidden
	case services.CodeDuplicateActive, services.CodeAlreadyResolved, services.CodeConflict:
		return http.StatusConflict
	case services.CodeExpired:
		return http.StatusGone
	case services.CodeLocationUnavailable:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// requireIdentity writes a 401 and returns nil when the request is anonymous.
func requireIdentity(w http.ResponseWriter, r *http.Request) *models.Identity {
	identity := GetIdentityFromContext(r.Context())
	if identity == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return nil
	}
	return identity
}
