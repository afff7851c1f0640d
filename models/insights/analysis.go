package insights

// Impact labels, strongest first.
const (
	IMPACT_HIGH_POSITIVE     = "high_positive"
	IMPACT_MODERATE_POSITIVE = "moderate_positive"
	IMPACT_LOW_POSITIVE      = "low_positive"
	IMPACT_NEGATIVE          = "negative"
	IMPACT_MINIMAL           = "minimal"
)

// Spike severities.
const (
	SEVERITY_CRITICAL = "critical"
	SEVERITY_HIGH     = "high"
	SEVERITY_MEDIUM   = "medium"
	SEVERITY_LOW      = "low"
)

// MetricImpact compares one metric between a baseline and an event period.
type MetricImpact struct {
	BaselineAvg      float64 `json:"baseline_avg"`
	EventAvg         float64 `json:"event_avg"`
	PercentageChange float64 `json:"percentage_change"`
	AbsoluteChange   float64 `json:"absolute_change"`
}

// EventImpact is the impact analysis of one calendar annotation on one zone.
type EventImpact struct {
	Label         string       `json:"label"`
	ZoneID        string       `json:"zone_id"`
	EventWeeks    []string     `json:"event_weeks"`
	BaselineWeeks []string     `json:"baseline_weeks"`
	Visits        MetricImpact `json:"visits_impact"`
	Dwell         MetricImpact `json:"dwell_impact"`
	OverallImpact string       `json:"overall_impact"`
}

// Spike is a weekly visit count compared against its trailing baseline.
type Spike struct {
	ZoneID        string   `json:"zone_id"`
	WeekKey       string   `json:"week_key"`
	Value         float64  `json:"value"`
	BaselineMean  float64  `json:"baseline_mean"`
	BaselineStd   float64  `json:"baseline_std"`
	BaselineWeeks []string `json:"baseline_weeks"`
	IsSpike       bool     `json:"is_spike"`
	Severity      string   `json:"severity"`
	Magnitude     float64  `json:"spike_magnitude"`
}
