// models/insights/insight_bucket.go

package insights

import "time"

// InsightBucket is the weekly aggregate of one zone.
type InsightBucket struct {
	ZoneID        string        `json:"zone_id"`
	WeekKey       string        `json:"week_key"`
	VisitCount    int64         `json:"visit_count"`
	TotalDwell    time.Duration `json:"total_dwell"`
	PeakOccupancy int64         `json:"peak_occupancy"`
	// Saturated is set once any counter hit its maximum representable value.
	Saturated bool `json:"saturated,omitempty"`
}

// AverageDwell is TotalDwell / VisitCount, zero for an empty bucket.
func (b InsightBucket) AverageDwell() time.Duration {
	if b.VisitCount == 0 {
		return 0
	}
	return time.Duration(int64(b.TotalDwell) / b.VisitCount)
}
