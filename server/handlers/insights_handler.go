package handlers

import (
	"bytes"
	"context"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/mj-112358/winkfinal/models"
	"github.com/mj-112358/winkfinal/models/insights"
	"github.com/mj-112358/winkfinal/util"
)

const (
	STORE_ID_QUERY_ARG = "store_id"
	ZONE_ID_QUERY_ARG  = "zone_id"
	WEEK_QUERY_ARG     = "week"
	FROM_QUERY_ARG     = "from"
	TO_QUERY_ARG       = "to"
)

type InsightsQuerier interface {
	Query(ctx context.Context, q insights.InsightsQuery) ([]insights.ZoneWeekInsight, error)
}

type SpikeDetector interface {
	Detect(zoneID, weekKey string) (insights.Spike, error)
	Scan(zoneID string) []insights.Spike
}

type InsightsHandler struct {
	querier InsightsQuerier
	spikes  SpikeDetector
	loc     *time.Location
}

// NewInsightsHandler parses from/to dates in loc.
func NewInsightsHandler(querier InsightsQuerier, spikes SpikeDetector, loc *time.Location) *InsightsHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &InsightsHandler{querier: querier, spikes: spikes, loc: loc}
}

// GetInsights handles GET /v1/insights
// expects store_id or camera_id, optional zone_id, and week=YYYY-Www or
// from=YYYY-MM-DD&to=YYYY-MM-DD (inclusive).
func (h *InsightsHandler) GetInsights(w http.ResponseWriter, r *http.Request) {
	q, ok := h.parseArgs(r.URL.Query(), w)
	if !ok {
		return
	}
	rows, err := h.querier.Query(r.Context(), q)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// GetInsightsChart handles GET /v1/insights/chart with the same arguments
// as GetInsights and returns an HTML chart.
func (h *InsightsHandler) GetInsightsChart(w http.ResponseWriter, r *http.Request) {
	q, ok := h.parseArgs(r.URL.Query(), w)
	if !ok {
		return
	}
	rows, err := h.querier.Query(r.Context(), q)
	if err != nil {
		writeError(w, err)
		return
	}

	title := "Weekly insights"
	if q.StoreID != "" {
		title += " for store " + q.StoreID
	} else {
		title += " for camera " + q.CameraID
	}
	var buf bytes.Buffer
	if err := util.RenderWeeklyInsightsChart(&buf, title, rows); err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		log.Println("Error writing chart:", err)
	}
}

// GetSpikes handles GET /v1/insights/spikes?zone_id=&week=
// Without week every week of the zone is scanned.
func (h *InsightsHandler) GetSpikes(w http.ResponseWriter, r *http.Request) {
	vals := r.URL.Query()
	zoneID := vals.Get(ZONE_ID_QUERY_ARG)
	if zoneID == "" {
		badRequest(w, "Missing argument "+ZONE_ID_QUERY_ARG)
		return
	}
	week := vals.Get(WEEK_QUERY_ARG)
	if week == "" {
		writeJSON(w, http.StatusOK, h.spikes.Scan(zoneID))
		return
	}
	spike, err := h.spikes.Detect(zoneID, week)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, spike)
}

func (h *InsightsHandler) parseArgs(vals url.Values, w http.ResponseWriter) (q insights.InsightsQuery, ok bool) {
	q.StoreID = vals.Get(STORE_ID_QUERY_ARG)
	q.CameraID = vals.Get(CAMERA_ID_QUERY_ARG)
	q.ZoneID = vals.Get(ZONE_ID_QUERY_ARG)
	q.WeekKey = vals.Get(WEEK_QUERY_ARG)
	if q.StoreID == "" && q.CameraID == "" {
		badRequest(w, "Missing argument "+STORE_ID_QUERY_ARG+" or "+CAMERA_ID_QUERY_ARG)
		return
	}

	if q.WeekKey == "" {
		from, err := time.ParseInLocation(models.DATE_LAYOUT, vals.Get(FROM_QUERY_ARG), h.loc)
		if err != nil {
			badRequest(w, "Invalid argument "+FROM_QUERY_ARG)
			return
		}
		to, err := time.ParseInLocation(models.DATE_LAYOUT, vals.Get(TO_QUERY_ARG), h.loc)
		if err != nil {
			badRequest(w, "Invalid argument "+TO_QUERY_ARG)
			return
		}
		q.From = from
		// inclusive end date
		q.To = to.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	ok = true
	return
}
