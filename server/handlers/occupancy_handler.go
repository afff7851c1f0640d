package handlers

import (
	"net/http"
)

type LiveOccupancy interface {
	LiveOccupancy(cameraID string) map[string]int
}

type LiveOccupancyResponse struct {
	CameraID string         `json:"camera_id"`
	Zones    map[string]int `json:"zones"`
	Total    int            `json:"total"`
}

type OccupancyHandler struct {
	tracker LiveOccupancy
}

func NewOccupancyHandler(tracker LiveOccupancy) *OccupancyHandler {
	return &OccupancyHandler{tracker: tracker}
}

// GetLiveOccupancy handles GET /v1/occupancy/live?camera_id=
func (h *OccupancyHandler) GetLiveOccupancy(w http.ResponseWriter, r *http.Request) {
	cameraID := r.URL.Query().Get(CAMERA_ID_QUERY_ARG)
	if cameraID == "" {
		badRequest(w, "Missing argument "+CAMERA_ID_QUERY_ARG)
		return
	}
	counts := h.tracker.LiveOccupancy(cameraID)
	total := 0
	for _, n := range counts {
		total += n
	}
	writeJSON(w, http.StatusOK, LiveOccupancyResponse{CameraID: cameraID, Zones: counts, Total: total})
}
