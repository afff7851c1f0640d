package handlers

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/gorilla/mux"

	"github.com/mj-112358/winkfinal/models/zone"
	services "github.com/mj-112358/winkfinal/service"
)

const (
	CAMERA_ID_QUERY_ARG        = "camera_id"
	INCLUDE_INACTIVE_QUERY_ARG = "include_inactive"
)

// ZoneRegistry is the registry surface the zone endpoints use.
type ZoneRegistry interface {
	RegisterZone(z zone.Zone) (string, error)
	DeactivateZone(cameraID, zoneID string) error
	ZonesForCamera(cameraID string) []zone.Zone
	AllZonesForCamera(cameraID string) []zone.Zone
	LatestVersion(cameraID, zoneID string) (zone.Zone, bool)
	ZoneHistory(cameraID, zoneID string) []zone.Zone
}

// InsightsRebuilder re-aggregates one zone's buckets from its session log.
type InsightsRebuilder interface {
	RebuildZone(zoneID string) int
}

type RegisterZoneResponse struct {
	ZoneID  string `json:"zone_id"`
	Version int    `json:"version"`
}

type RebuildZoneResponse struct {
	ZoneID   string `json:"zone_id"`
	Sessions int    `json:"sessions"`
}

type ZoneHandler struct {
	registry  ZoneRegistry
	rebuilder InsightsRebuilder
}

func NewZoneHandler(registry ZoneRegistry, rebuilder InsightsRebuilder) *ZoneHandler {
	return &ZoneHandler{registry: registry, rebuilder: rebuilder}
}

// RegisterZone handles POST /v1/zones. Posting an existing zone_id creates
// a new version.
func (h *ZoneHandler) RegisterZone(w http.ResponseWriter, r *http.Request) {
	var z zone.Zone
	if err := decodeBody(r, &z); err != nil {
		badRequest(w, "Invalid zone body: "+err.Error())
		return
	}
	id, err := h.registry.RegisterZone(z)
	if err != nil {
		writeError(w, err)
		return
	}
	stored, _ := h.registry.LatestVersion(z.CameraID, id)
	writeJSON(w, http.StatusCreated, RegisterZoneResponse{ZoneID: id, Version: stored.Version})
}

// ListZones handles GET /v1/zones?camera_id=
func (h *ZoneHandler) ListZones(w http.ResponseWriter, r *http.Request) {
	cameraID, includeInactive, ok := h.parseArgs(r.URL.Query(), w)
	if !ok {
		return
	}
	zones := h.registry.ZonesForCamera(cameraID)
	if includeInactive {
		zones = h.registry.AllZonesForCamera(cameraID)
	}
	if zones == nil {
		zones = []zone.Zone{}
	}
	writeJSON(w, http.StatusOK, zones)
}

// ZoneHistory handles GET /v1/zones/{camera_id}/{zone_id}/versions
func (h *ZoneHandler) ZoneHistory(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	history := h.registry.ZoneHistory(vars["camera_id"], vars["zone_id"])
	if len(history) == 0 {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "zone not found"})
		return
	}
	writeJSON(w, http.StatusOK, history)
}

// DeactivateZone handles DELETE /v1/zones/{camera_id}/{zone_id}
func (h *ZoneHandler) DeactivateZone(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := h.registry.DeactivateZone(vars["camera_id"], vars["zone_id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RebuildZone handles POST /v1/zones/{camera_id}/{zone_id}/rebuild
func (h *ZoneHandler) RebuildZone(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	cameraID, zoneID := vars["camera_id"], vars["zone_id"]
	if _, ok := h.registry.LatestVersion(cameraID, zoneID); !ok {
		writeError(w, fmt.Errorf("%w: %s/%s", services.ErrZoneNotFound, cameraID, zoneID))
		return
	}
	n := h.rebuilder.RebuildZone(zoneID)
	writeJSON(w, http.StatusOK, RebuildZoneResponse{ZoneID: zoneID, Sessions: n})
}

func (h *ZoneHandler) parseArgs(vals url.Values, w http.ResponseWriter) (cameraID string, includeInactive bool, ok bool) {
	cameraID = vals.Get(CAMERA_ID_QUERY_ARG)
	if cameraID == "" {
		badRequest(w, "Missing argument "+CAMERA_ID_QUERY_ARG)
		return
	}
	includeInactive = parseArgBool(vals, INCLUDE_INACTIVE_QUERY_ARG)
	ok = true
	return
}
