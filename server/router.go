package server

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mj-112358/winkfinal/server/handlers"
)

type Router struct {
	zoneHandler      *handlers.ZoneHandler
	insightsHandler  *handlers.InsightsHandler
	calendarHandler  *handlers.CalendarHandler
	occupancyHandler *handlers.OccupancyHandler
	metricsHandler   http.Handler
	router           *mux.Router
}

// NewRouter creates a router with the app’s routes. metricsHandler may be
// nil to skip /metrics.
func NewRouter(
	zoneHandler *handlers.ZoneHandler,
	insightsHandler *handlers.InsightsHandler,
	calendarHandler *handlers.CalendarHandler,
	occupancyHandler *handlers.OccupancyHandler,
	metricsHandler http.Handler,
	router *mux.Router) *Router {
	return &Router{
		zoneHandler:      zoneHandler,
		insightsHandler:  insightsHandler,
		calendarHandler:  calendarHandler,
		occupancyHandler: occupancyHandler,
		metricsHandler:   metricsHandler,
		router:           router,
	}
}

func (r *Router) RegisterRoutes() {
	r.router.HandleFunc("/v1/zones", r.zoneHandler.RegisterZone).Methods("POST")
	// expects ?camera_id={camera}&include_inactive={bool}
	r.router.HandleFunc("/v1/zones", r.zoneHandler.ListZones).Methods("GET")
	r.router.HandleFunc("/v1/zones/{camera_id}/{zone_id}", r.zoneHandler.DeactivateZone).Methods("DELETE")
	r.router.HandleFunc("/v1/zones/{camera_id}/{zone_id}/versions", r.zoneHandler.ZoneHistory).Methods("GET")
	r.router.HandleFunc("/v1/zones/{camera_id}/{zone_id}/rebuild", r.zoneHandler.RebuildZone).Methods("POST")

	// expects ?store_id|camera_id&zone_id&week|from&to
	r.router.HandleFunc("/v1/insights", r.insightsHandler.GetInsights).Methods("GET")
	r.router.HandleFunc("/v1/insights/chart", r.insightsHandler.GetInsightsChart).Methods("GET")
	r.router.HandleFunc("/v1/insights/spikes", r.insightsHandler.GetSpikes).Methods("GET")

	r.router.HandleFunc("/v1/calendar", r.calendarHandler.ListAnnotations).Methods("GET")
	r.router.HandleFunc("/v1/calendar", r.calendarHandler.AddAnnotation).Methods("POST")
	r.router.HandleFunc("/v1/calendar", r.calendarHandler.ReplaceAnnotations).Methods("PUT")
	r.router.HandleFunc("/v1/calendar/annotate", r.calendarHandler.AnnotateWeek).Methods("GET")
	r.router.HandleFunc("/v1/calendar/impact", r.calendarHandler.GetImpact).Methods("GET")

	r.router.HandleFunc("/v1/occupancy/live", r.occupancyHandler.GetLiveOccupancy).Methods("GET")

	if r.metricsHandler != nil {
		r.router.Handle("/metrics", r.metricsHandler).Methods("GET")
	}
	r.router.HandleFunc("/ping", handlers.Ping).Methods("GET")
}
