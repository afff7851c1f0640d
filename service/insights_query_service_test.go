package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mj-112358/winkfinal/models"
	"github.com/mj-112358/winkfinal/models/insights"
)

type staticStores map[string][]string

func (s staticStores) CamerasForStore(_ context.Context, storeID string) ([]string, error) {
	cameras, ok := s[storeID]
	if !ok {
		return nil, errors.New("unknown store")
	}
	return cameras, nil
}

func newTestQueryService(t *testing.T) (*InsightsQueryService, *InsightsAggregatorService) {
	registry, _ := newTestRegistry()
	_, err := registry.RegisterZone(squareZone("cam-1", "entrance", 0, 0, 50, 50))
	require.NoError(t, err)
	_, err = registry.RegisterZone(squareZone("cam-2", "checkout", 0, 0, 50, 50))
	require.NoError(t, err)

	agg := NewInsightsAggregatorService(time.UTC, nil)
	overlay := NewCalendarOverlayService(nil)
	require.NoError(t, overlay.Replace([]models.CalendarAnnotation{
		{Label: "Holi", Kind: models.ANNOTATION_KIND_FESTIVAL, StartDate: "2024-03-08", EndDate: "2024-03-12"},
	}))

	qs := NewInsightsQueryService(staticStores{"store-1": {"cam-1", "cam-2"}}, registry, agg, overlay, time.UTC)
	return qs, agg
}

func TestInsightsQuery_StoreWeek(t *testing.T) {
	qs, agg := newTestQueryService(t)
	require.NoError(t, agg.IngestSession(sealedSession("entrance", "o1", t0, 4*time.Second)))
	require.NoError(t, agg.IngestSession(sealedSession("entrance", "o2", t0, 6*time.Second)))
	require.NoError(t, agg.IngestSession(sealedSession("checkout", "o3", t0, 30*time.Second)))

	rows, err := qs.Query(context.Background(), insights.InsightsQuery{StoreID: "store-1", WeekKey: "2024-W10"})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "cam-1", rows[0].CameraID)
	assert.Equal(t, "entrance", rows[0].ZoneID)
	assert.Equal(t, int64(2), rows[0].VisitCount)
	assert.Equal(t, 10.0, rows[0].TotalDwellSeconds)
	assert.Equal(t, 5.0, rows[0].AvgDwellSeconds)
	require.Len(t, rows[0].Annotations, 1)
	assert.Equal(t, "Holi", rows[0].Annotations[0].Label)

	assert.Equal(t, "checkout", rows[1].ZoneID)
}

func TestInsightsQuery_RangeOmitsEmptyWeeks(t *testing.T) {
	qs, agg := newTestQueryService(t)
	require.NoError(t, agg.IngestSession(sealedSession("entrance", "o1", t0, time.Second)))
	require.NoError(t, agg.IngestSession(sealedSession("entrance", "o2", t0.AddDate(0, 0, 14), time.Second)))

	rows, err := qs.Query(context.Background(), insights.InsightsQuery{
		CameraID: "cam-1",
		ZoneID:   "entrance",
		From:     t0,
		To:       t0.AddDate(0, 0, 20),
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "2024-W10", rows[0].WeekKey)
	assert.Equal(t, "2024-W12", rows[1].WeekKey)
	assert.Empty(t, rows[1].Annotations)
}

func TestInsightsQuery_Errors(t *testing.T) {
	qs, _ := newTestQueryService(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		query insights.InsightsQuery
		want  error
	}{
		{"no scope", insights.InsightsQuery{WeekKey: "2024-W10"}, ErrInvalidQuery},
		{"no weeks", insights.InsightsQuery{CameraID: "cam-1"}, ErrInvalidQuery},
		{"bad week", insights.InsightsQuery{CameraID: "cam-1", WeekKey: "2024-W60"}, models.ErrInvalidWeekKey},
		{"reversed range", insights.InsightsQuery{CameraID: "cam-1", From: t0, To: t0.Add(-time.Hour)}, ErrInvalidQuery},
		{"range too long", insights.InsightsQuery{CameraID: "cam-1", From: t0, To: t0.AddDate(3, 0, 0)}, ErrInvalidQuery},
		{"zone on other camera", insights.InsightsQuery{CameraID: "cam-1", ZoneID: "checkout", WeekKey: "2024-W10"}, ErrZoneNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := qs.Query(ctx, tt.query)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := qs.Query(ctx, insights.InsightsQuery{StoreID: "nope", WeekKey: "2024-W10"})
	assert.Error(t, err)
}

func TestInsightsQuery_NoDataIsEmptyNotError(t *testing.T) {
	qs, _ := newTestQueryService(t)
	rows, err := qs.Query(context.Background(), insights.InsightsQuery{StoreID: "store-1", WeekKey: "2024-W10"})
	require.NoError(t, err)
	assert.Empty(t, rows)
}
