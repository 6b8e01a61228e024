package handlers

import (
	"net/http"
	"strconv"

	"github.com/HammerMeetNail/nearby/internal/models"
	"github.com/HammerMeetNail/nearby/internal/services"
)

type NearbyHandler struct {
	nearbyService services.NearbyServiceInterface
}

func NewNearbyHandler(nearbyService services.NearbyServiceInterface) *NearbyHandler {
	return &NearbyHandler{nearbyService: nearbyService}
}

type NearbyResponse struct {
	Users []models.NearbyUser `json:"users"`
}

// List handles GET /api/nearby?radius=<meters>.
func (h *NearbyHandler) List(w http.ResponseWriter, r *http.Request) {
	identity := requireIdentity(w, r)
	if identity == nil {
		return
	}

	radius := h.nearbyService.DefaultRadius()
	if raw := r.URL.Query().Get("radius"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid radius", Code: services.CodeInvalidInput})
			return
		}
		radius = parsed
	}

	users, err := h.nearbyService.FindNearby(r.Context(), identity.UserID, radius)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if users == nil {
		users = []models.NearbyUser{}
	}
	writeJSON(w, http.StatusOK, NearbyResponse{Users: users})
}
