package insights

import (
	"time"

	"github.com/mj-112358/winkfinal/models"
)

// InsightsQuery selects zones and weeks. StoreID or CameraID is required;
// WeekKey wins over From/To when both are given.
type InsightsQuery struct {
	StoreID  string
	CameraID string
	ZoneID   string
	WeekKey  string
	From     time.Time
	To       time.Time
}

// ZoneWeekInsight is one row of the insights response. It reflects the
// latest committed bucket state; sessions sealed while the query runs may
// or may not be included.
type ZoneWeekInsight struct {
	CameraID          string                      `json:"camera_id"`
	ZoneID            string                      `json:"zone_id"`
	ZoneName          string                      `json:"zone_name"`
	WeekKey           string                      `json:"week_key"`
	VisitCount        int64                       `json:"visit_count"`
	TotalDwellSeconds float64                     `json:"total_dwell_seconds"`
	AvgDwellSeconds   float64                     `json:"avg_dwell_seconds"`
	PeakOccupancy     int64                       `json:"peak_occupancy"`
	Saturated         bool                        `json:"saturated,omitempty"`
	Annotations       []models.CalendarAnnotation `json:"annotations"`
}
