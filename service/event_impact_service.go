package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/mj-112358/winkfinal/models"
	"github.com/mj-112358/winkfinal/models/insights"
)

const DEFAULT_IMPACT_BASELINE_WEEKS = 2

var ErrAnnotationNotFound = errors.New("annotation not found")

// AnnotationLookup finds a calendar annotation by label.
type AnnotationLookup interface {
	ByLabel(label string) (models.CalendarAnnotation, bool)
}

// EventImpactService compares a zone's weeks covered by an annotation with
// the weeks right before it.
type EventImpactService struct {
	calendar      AnnotationLookup
	buckets       BucketReader
	baselineWeeks int
	loc           *time.Location
}

func NewEventImpactService(calendar AnnotationLookup, buckets BucketReader, baselineWeeks int, loc *time.Location) *EventImpactService {
	if baselineWeeks <= 0 {
		baselineWeeks = DEFAULT_IMPACT_BASELINE_WEEKS
	}
	if loc == nil {
		loc = time.UTC
	}
	return &EventImpactService{
		calendar:      calendar,
		buckets:       buckets,
		baselineWeeks: baselineWeeks,
		loc:           loc,
	}
}

// Analyze computes the impact of the labelled annotation on one zone. Weeks
// without a bucket are left out of both averages.
func (es *EventImpactService) Analyze(label, zoneID string) (insights.EventImpact, error) {
	annotation, ok := es.calendar.ByLabel(label)
	if !ok {
		return insights.EventImpact{}, fmt.Errorf("%w: %q", ErrAnnotationNotFound, label)
	}
	start, err := time.ParseInLocation(models.DATE_LAYOUT, annotation.StartDate, es.loc)
	if err != nil {
		return insights.EventImpact{}, models.NewConfigError("start_date", "invalid date %q", annotation.StartDate)
	}
	end, err := time.ParseInLocation(models.DATE_LAYOUT, annotation.EndDate, es.loc)
	if err != nil {
		return insights.EventImpact{}, models.NewConfigError("end_date", "invalid date %q", annotation.EndDate)
	}

	eventWeeks := models.WeekKeysBetween(start, end, es.loc)
	if len(eventWeeks) == 0 {
		return insights.EventImpact{}, models.NewConfigError("end_date", "%s is before start_date %s", annotation.EndDate, annotation.StartDate)
	}
	baselineWeeks := make([]string, 0, es.baselineWeeks)
	for i := es.baselineWeeks; i >= 1; i-- {
		key, err := models.ShiftWeekKey(eventWeeks[0], -i)
		if err != nil {
			return insights.EventImpact{}, err
		}
		baselineWeeks = append(baselineWeeks, key)
	}

	baseVisits, baseDwell := es.averages(zoneID, baselineWeeks)
	eventVisits, eventDwell := es.averages(zoneID, eventWeeks)

	impact := insights.EventImpact{
		Label:         annotation.Label,
		ZoneID:        zoneID,
		EventWeeks:    eventWeeks,
		BaselineWeeks: baselineWeeks,
		Visits:        compareMetric(baseVisits, eventVisits),
		Dwell:         compareMetric(baseDwell, eventDwell),
	}
	impact.OverallImpact = classifyImpact(impact.Visits.PercentageChange, impact.Dwell.PercentageChange)
	return impact, nil
}

// averages returns mean weekly visits and mean average dwell in seconds.
func (es *EventImpactService) averages(zoneID string, weeks []string) (float64, float64) {
	var visits, dwell float64
	n := 0
	for _, week := range weeks {
		b, ok := es.buckets.WeeklyInsights(zoneID, week)
		if !ok {
			continue
		}
		visits += float64(b.VisitCount)
		dwell += b.AverageDwell().Seconds()
		n++
	}
	if n == 0 {
		return 0, 0
	}
	return visits / float64(n), dwell / float64(n)
}

func compareMetric(baseline, event float64) insights.MetricImpact {
	denominator := baseline
	if denominator < 1 {
		denominator = 1
	}
	return insights.MetricImpact{
		BaselineAvg:      baseline,
		EventAvg:         event,
		PercentageChange: (event - baseline) / denominator * 100,
		AbsoluteChange:   event - baseline,
	}
}

func classifyImpact(visitsPct, dwellPct float64) string {
	switch {
	case visitsPct > 20 && dwellPct > 15:
		return insights.IMPACT_HIGH_POSITIVE
	case visitsPct > 10 && dwellPct > 10:
		return insights.IMPACT_MODERATE_POSITIVE
	case visitsPct > 5 || dwellPct > 5:
		return insights.IMPACT_LOW_POSITIVE
	case visitsPct < -10 || dwellPct < -10:
		return insights.IMPACT_NEGATIVE
	default:
		return insights.IMPACT_MINIMAL
	}
}
