package handlers

import (
	"net/http"

	"github.com/mj-112358/winkfinal/models"
	"github.com/mj-112358/winkfinal/models/insights"
)

const LABEL_QUERY_ARG = "label"

type CalendarOverlay interface {
	All() []models.CalendarAnnotation
	Add(annotation models.CalendarAnnotation) error
	Replace(annotations []models.CalendarAnnotation) error
	Annotate(weekKey string) ([]models.CalendarAnnotation, error)
}

type EventImpactAnalyzer interface {
	Analyze(label, zoneID string) (insights.EventImpact, error)
}

type CalendarHandler struct {
	calendar CalendarOverlay
	impact   EventImpactAnalyzer
}

func NewCalendarHandler(calendar CalendarOverlay, impact EventImpactAnalyzer) *CalendarHandler {
	return &CalendarHandler{calendar: calendar, impact: impact}
}

// ListAnnotations handles GET /v1/calendar
func (h *CalendarHandler) ListAnnotations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.calendar.All())
}

// AddAnnotation handles POST /v1/calendar with one annotation.
func (h *CalendarHandler) AddAnnotation(w http.ResponseWriter, r *http.Request) {
	var a models.CalendarAnnotation
	if err := decodeBody(r, &a); err != nil {
		badRequest(w, "Invalid annotation body: "+err.Error())
		return
	}
	if err := h.calendar.Add(a); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// ReplaceAnnotations handles PUT /v1/calendar with the full list.
func (h *CalendarHandler) ReplaceAnnotations(w http.ResponseWriter, r *http.Request) {
	var annotations []models.CalendarAnnotation
	if err := decodeBody(r, &annotations); err != nil {
		badRequest(w, "Invalid calendar body: "+err.Error())
		return
	}
	if err := h.calendar.Replace(annotations); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.calendar.All())
}

// AnnotateWeek handles GET /v1/calendar/annotate?week=YYYY-Www
func (h *CalendarHandler) AnnotateWeek(w http.ResponseWriter, r *http.Request) {
	week := r.URL.Query().Get(WEEK_QUERY_ARG)
	if week == "" {
		badRequest(w, "Missing argument "+WEEK_QUERY_ARG)
		return
	}
	annotations, err := h.calendar.Annotate(week)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, annotations)
}

// GetImpact handles GET /v1/calendar/impact?label=&zone_id=
func (h *CalendarHandler) GetImpact(w http.ResponseWriter, r *http.Request) {
	vals := r.URL.Query()
	label, zoneID := vals.Get(LABEL_QUERY_ARG), vals.Get(ZONE_ID_QUERY_ARG)
	if label == "" || zoneID == "" {
		badRequest(w, "Missing argument "+LABEL_QUERY_ARG+" or "+ZONE_ID_QUERY_ARG)
		return
	}
	impact, err := h.impact.Analyze(label, zoneID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, impact)
}
