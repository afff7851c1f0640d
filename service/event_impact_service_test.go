package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mj-112358/winkfinal/models"
	"github.com/mj-112358/winkfinal/models/insights"
)

func ingestVisits(t *testing.T, agg *InsightsAggregatorService, zoneID string, weekStart time.Time, visits int, dwell time.Duration) {
	for i := 0; i < visits; i++ {
		require.NoError(t, agg.IngestSession(sealedSession(zoneID, "o", weekStart.Add(time.Duration(i)*time.Minute), dwell)))
	}
}

func TestEventImpact_Analyze(t *testing.T) {
	agg := NewInsightsAggregatorService(time.UTC, nil)
	overlay := NewCalendarOverlayService(nil)
	// 2024-W12 is 2024-03-18..24.
	require.NoError(t, overlay.Replace([]models.CalendarAnnotation{
		{Label: "Spring sale", Kind: models.ANNOTATION_KIND_SALE, StartDate: "2024-03-18", EndDate: "2024-03-24"},
	}))

	ingestVisits(t, agg, "z1", t0, 10, 10*time.Second)
	ingestVisits(t, agg, "z1", t0.AddDate(0, 0, 7), 10, 10*time.Second)
	ingestVisits(t, agg, "z1", t0.AddDate(0, 0, 14), 15, 12*time.Second)

	impact, err := NewEventImpactService(overlay, agg, 2, time.UTC).Analyze("Spring sale", "z1")
	require.NoError(t, err)

	assert.Equal(t, []string{"2024-W12"}, impact.EventWeeks)
	assert.Equal(t, []string{"2024-W10", "2024-W11"}, impact.BaselineWeeks)
	assert.Equal(t, 10.0, impact.Visits.BaselineAvg)
	assert.Equal(t, 15.0, impact.Visits.EventAvg)
	assert.InDelta(t, 50.0, impact.Visits.PercentageChange, 1e-9)
	assert.InDelta(t, 20.0, impact.Dwell.PercentageChange, 1e-9)
	assert.Equal(t, insights.IMPACT_HIGH_POSITIVE, impact.OverallImpact)
}

func TestEventImpact_UnknownLabel(t *testing.T) {
	svc := NewEventImpactService(NewCalendarOverlayService(nil), NewInsightsAggregatorService(time.UTC, nil), 0, nil)
	_, err := svc.Analyze("nope", "z1")
	assert.ErrorIs(t, err, ErrAnnotationNotFound)
}

type annotationsByLabel map[string]models.CalendarAnnotation

func (a annotationsByLabel) ByLabel(label string) (models.CalendarAnnotation, bool) {
	annotation, ok := a[label]
	return annotation, ok
}

func TestEventImpact_ReversedRangeIsConfigError(t *testing.T) {
	lookup := annotationsByLabel{"Reversed": {Label: "Reversed", StartDate: "2024-03-24", EndDate: "2024-03-18"}}
	svc := NewEventImpactService(lookup, NewInsightsAggregatorService(time.UTC, nil), 2, time.UTC)

	_, err := svc.Analyze("Reversed", "z1")
	var cfgErr *models.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestClassifyImpact(t *testing.T) {
	tests := []struct {
		visits, dwell float64
		want          string
	}{
		{25, 16, insights.IMPACT_HIGH_POSITIVE},
		{25, 12, insights.IMPACT_MODERATE_POSITIVE},
		{6, 0, insights.IMPACT_LOW_POSITIVE},
		{0, 6, insights.IMPACT_LOW_POSITIVE},
		{-11, 0, insights.IMPACT_NEGATIVE},
		{3, -4, insights.IMPACT_MINIMAL},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, classifyImpact(tt.visits, tt.dwell), "visits=%v dwell=%v", tt.visits, tt.dwell)
	}
}

func TestCompareMetric_ZeroBaseline(t *testing.T) {
	m := compareMetric(0, 3)
	assert.Equal(t, 300.0, m.PercentageChange)
	assert.Equal(t, 3.0, m.AbsoluteChange)
}
