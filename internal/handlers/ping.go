package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/nearby/internal/models"
	"github.com/HammerMeetNail/nearby/internal/services"
)

type PingHandler struct {
	pingService services.PingServiceInterface
}

func NewPingHandler(pingService services.PingServiceInterface) *PingHandler {
	return &PingHandler{pingService: pingService}
}

type SendPingRequest struct {
	RecipientID string `json:"recipient_id"`
}

type RespondPingRequest struct {
	Accepted *bool `json:"accepted"`
}

type PingResponse struct {
	Ping *models.Ping `json:"ping"`
}

type PingListResponse struct {
	Pings []models.Ping `json:"pings"`
}

func (h *PingHandler) List(w http.ResponseWriter, r *http.Request) {
	identity := requireIdentity(w, r)
	if identity == nil {
		return
	}

	pings, err := h.pingService.ListFor(r.Context(), identity.UserID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if pings == nil {
		pings = []models.Ping{}
	}
	writeJSON(w, http.StatusOK, PingListResponse{Pings: pings})
}

func (h *PingHandler) Send(w http.ResponseWriter, r *http.Request) {
	identity := requireIdentity(w, r)
	if identity == nil {
		return
	}

	var req SendPingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	recipientID, err := uuid.Parse(req.RecipientID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid recipient ID")
		return
	}

	ping, err := h.pingService.Send(r.Context(), identity.UserID, recipientID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, PingResponse{Ping: ping})
}

func (h *PingHandler) Respond(w http.ResponseWriter, r *http.Request) {
	identity := requireIdentity(w, r)
	if identity == nil {
		return
	}

	pingID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid ping ID")
		return
	}

	var req RespondPingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Accepted == nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ping, err := h.pingService.Respond(r.Context(), pingID, identity.UserID, models.DecisionFromBool(*req.Accepted))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, PingResponse{Ping: ping})
}

func (h *PingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	identity := requireIdentity(w, r)
	if identity == nil {
		return
	}

	pingID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid ping ID")
		return
	}

	if err := h.pingService.Cancel(r.Context(), pingID, identity.UserID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
