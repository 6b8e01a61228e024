package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/HammerMeetNail/nearby/internal/services"
)

// LocationHandler is the HTTP counterpart of the update_location event for
// clients that poll instead of holding a socket.
type LocationHandler struct {
	locationService services.LocationServiceInterface
}

func NewLocationHandler(locationService services.LocationServiceInterface) *LocationHandler {
	return &LocationHandler{locationService: locationService}
}

type UpdateLocationRequest struct {
	Longitude *float64 `json:"longitude"`
	Latitude  *float64 `json:"latitude"`
}

func (h *LocationHandler) Update(w http.ResponseWriter, r *http.Request) {
	identity := requireIdentity(w, r)
	if identity == nil {
		return
	}

	var req UpdateLocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Longitude == nil || req.Latitude == nil {
		writeError(w, http.StatusBadRequest, "Longitude and latitude are required")
		return
	}

	if err := h.locationService.Update(r.Context(), identity.UserID, *req.Longitude, *req.Latitude); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
