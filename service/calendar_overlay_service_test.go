package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mj-112358/winkfinal/dao/redis"
	"github.com/mj-112358/winkfinal/db"
	"github.com/mj-112358/winkfinal/models"
)

// 2024-W44 runs from Monday 2024-10-28 to Sunday 2024-11-03.
var testCalendar = []models.CalendarAnnotation{
	{Label: "Diwali", Kind: models.ANNOTATION_KIND_FESTIVAL, StartDate: "2024-10-31", EndDate: "2024-11-03"},
	{Label: "Clearance", Kind: models.ANNOTATION_KIND_SALE, StartDate: "2024-11-03", EndDate: "2024-11-10"},
	{Label: "Back to school", Kind: models.ANNOTATION_KIND_PROMOTION, StartDate: "2024-08-01", EndDate: "2024-08-31"},
}

func TestCalendarOverlay_AnnotateReturnsAllOverlaps(t *testing.T) {
	overlay := NewCalendarOverlayService(nil)
	require.NoError(t, overlay.Replace(testCalendar))

	tests := []struct {
		week string
		want []string
	}{
		{"2024-W44", []string{"Diwali", "Clearance"}},
		{"2024-W45", []string{"Clearance"}},
		{"2024-W46", nil},
		{"2024-W31", []string{"Back to school"}},
		{"2024-W35", []string{"Back to school"}},
	}
	for _, tt := range tests {
		t.Run(tt.week, func(t *testing.T) {
			got, err := overlay.Annotate(tt.week)
			require.NoError(t, err)
			var labels []string
			for _, a := range got {
				labels = append(labels, a.Label)
			}
			assert.Equal(t, tt.want, labels)
		})
	}
}

func TestCalendarOverlay_AnnotateIsIdempotent(t *testing.T) {
	overlay := NewCalendarOverlayService(nil)
	require.NoError(t, overlay.Replace(testCalendar))

	first, err := overlay.Annotate("2024-W44")
	require.NoError(t, err)
	second, err := overlay.Annotate("2024-W44")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, testCalendar, overlay.All())
}

func TestCalendarOverlay_InvalidWeekKey(t *testing.T) {
	overlay := NewCalendarOverlayService(nil)
	_, err := overlay.Annotate("2024-44")
	assert.ErrorIs(t, err, models.ErrInvalidWeekKey)
}

func TestCalendarOverlay_RejectsBadAnnotations(t *testing.T) {
	overlay := NewCalendarOverlayService(nil)
	require.NoError(t, overlay.Replace(testCalendar))

	bad := append([]models.CalendarAnnotation{}, testCalendar...)
	bad = append(bad, models.CalendarAnnotation{Label: "Backwards", StartDate: "2024-12-10", EndDate: "2024-12-01"})

	err := overlay.Replace(bad)
	var cfgErr *models.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "end_date", cfgErr.Field)
	assert.Len(t, overlay.All(), len(testCalendar))

	assert.Error(t, overlay.Add(models.CalendarAnnotation{Label: "x", StartDate: "2024-13-01", EndDate: "2024-13-02"}))
	assert.Error(t, overlay.Add(models.CalendarAnnotation{Label: "x", Kind: "holiday", StartDate: "2024-12-01", EndDate: "2024-12-02"}))
}

func TestCalendarOverlay_AddAndByLabel(t *testing.T) {
	overlay := NewCalendarOverlayService(nil)
	require.NoError(t, overlay.Add(models.CalendarAnnotation{Label: "Single day", StartDate: "2024-11-03", EndDate: "2024-11-03"}))

	a, ok := overlay.ByLabel("Single day")
	require.True(t, ok)
	assert.Equal(t, "2024-11-03", a.StartDate)
	_, ok = overlay.ByLabel("missing")
	assert.False(t, ok)

	got, err := overlay.Annotate("2024-W44")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestCalendarOverlay_LoadPrefersStore(t *testing.T) {
	dao := redis.NewRedisCalendarDAO(db.NewMockRedisClient(context.Background()))

	seeded := NewCalendarOverlayService(dao)
	require.NoError(t, seeded.Load(testCalendar))
	assert.Len(t, seeded.All(), 3)
	require.NoError(t, seeded.Add(models.CalendarAnnotation{Label: "New", StartDate: "2025-01-01", EndDate: "2025-01-02"}))

	reloaded := NewCalendarOverlayService(dao)
	require.NoError(t, reloaded.Load(nil))
	assert.Len(t, reloaded.All(), 4)
}

func TestCalendarOverlay_LoadSkipsInvalidStored(t *testing.T) {
	dao := redis.NewRedisCalendarDAO(db.NewMockRedisClient(context.Background()))
	require.NoError(t, dao.SaveAnnotations([]models.CalendarAnnotation{
		{Label: "Reversed", StartDate: "2024-03-12", EndDate: "2024-03-08"},
		{Label: "", StartDate: "2024-03-08", EndDate: "2024-03-12"},
		testCalendar[0],
	}))

	overlay := NewCalendarOverlayService(dao)
	require.NoError(t, overlay.Load(nil))
	assert.Equal(t, []models.CalendarAnnotation{testCalendar[0]}, overlay.All())
	_, ok := overlay.ByLabel("Reversed")
	assert.False(t, ok)
}
