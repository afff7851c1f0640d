package services

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mj-112358/winkfinal/models"
	"github.com/mj-112358/winkfinal/models/insights"
)

func sealedSession(zoneID, objectID string, enter time.Time, d time.Duration) models.DwellSession {
	s := models.DwellSession{
		CameraID:  "cam-1",
		ZoneID:    zoneID,
		ObjectID:  objectID,
		EnterTime: enter,
		LastSeen:  enter.Add(d),
	}
	s.Seal()
	return s
}

// 2024-03-04 is the Monday of 2024-W10.
func TestInsightsAggregator_AccumulatesPerWeek(t *testing.T) {
	agg := NewInsightsAggregatorService(time.UTC, nil)

	require.NoError(t, agg.IngestSession(sealedSession("z1", "o1", t0, 5*time.Second)))
	require.NoError(t, agg.IngestSession(sealedSession("z1", "o2", t0.Add(time.Hour), 15*time.Second)))
	require.NoError(t, agg.IngestSession(sealedSession("z1", "o3", t0.AddDate(0, 0, 7), 10*time.Second)))

	w10, ok := agg.WeeklyInsights("z1", "2024-W10")
	require.True(t, ok)
	assert.Equal(t, int64(2), w10.VisitCount)
	assert.Equal(t, 20*time.Second, w10.TotalDwell)
	assert.Equal(t, 10*time.Second, w10.AverageDwell())
	assert.Equal(t, int64(1), w10.PeakOccupancy)

	w11, ok := agg.WeeklyInsights("z1", "2024-W11")
	require.True(t, ok)
	assert.Equal(t, int64(1), w11.VisitCount)

	assert.Len(t, agg.Buckets("z1"), 2)
}

func TestInsightsAggregator_AbsentBucketIsNotZero(t *testing.T) {
	agg := NewInsightsAggregatorService(time.UTC, nil)
	_, ok := agg.WeeklyInsights("z1", "2024-W10")
	assert.False(t, ok)

	require.NoError(t, agg.IngestSession(sealedSession("z1", "o1", t0, 0)))
	b, ok := agg.WeeklyInsights("z1", "2024-W10")
	require.True(t, ok)
	assert.Equal(t, int64(1), b.VisitCount)
	assert.Equal(t, time.Duration(0), b.TotalDwell)
	assert.Equal(t, int64(1), b.PeakOccupancy)
}

func TestInsightsAggregator_RejectsOpenOrAnonymousSessions(t *testing.T) {
	agg := NewInsightsAggregatorService(time.UTC, nil)
	open := models.DwellSession{ZoneID: "z1", EnterTime: t0, LastSeen: t0}
	assert.ErrorIs(t, agg.IngestSession(open), ErrSessionNotClosed)
	assert.Error(t, agg.IngestSession(sealedSession("", "o1", t0, time.Second)))
	assert.Empty(t, agg.Snapshot())
}

func TestInsightsAggregator_PeakOccupancy(t *testing.T) {
	tests := []struct {
		name     string
		sessions []models.DwellSession
		want     int64
	}{
		{"disjoint", []models.DwellSession{
			sealedSession("z1", "a", t0, 10*time.Second),
			sealedSession("z1", "b", t0.Add(20*time.Second), 10*time.Second),
		}, 1},
		{"nested", []models.DwellSession{
			sealedSession("z1", "a", t0, time.Minute),
			sealedSession("z1", "b", t0.Add(10*time.Second), 10*time.Second),
			sealedSession("z1", "c", t0.Add(15*time.Second), 10*time.Second),
		}, 3},
		{"touching counts as concurrent", []models.DwellSession{
			sealedSession("z1", "a", t0, 10*time.Second),
			sealedSession("z1", "b", t0.Add(10*time.Second), 10*time.Second),
		}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := NewInsightsAggregatorService(time.UTC, nil)
			// Arrival order must not matter.
			for i := len(tt.sessions) - 1; i >= 0; i-- {
				require.NoError(t, agg.IngestSession(tt.sessions[i]))
			}
			b, ok := agg.WeeklyInsights("z1", "2024-W10")
			require.True(t, ok)
			assert.Equal(t, tt.want, b.PeakOccupancy)
		})
	}
}

func TestInsightsAggregator_PeakCarriesIntoNextWeek(t *testing.T) {
	agg := NewInsightsAggregatorService(time.UTC, nil)
	sunday := time.Date(2024, 3, 10, 23, 0, 0, 0, time.UTC)

	// Enters in W10 and stays into W11; another object enters in W11.
	require.NoError(t, agg.IngestSession(sealedSession("z1", "a", time.Date(2024, 3, 11, 0, 30, 0, 0, time.UTC), time.Minute)))
	require.NoError(t, agg.IngestSession(sealedSession("z1", "b", sunday, 2*time.Hour)))

	w11, ok := agg.WeeklyInsights("z1", "2024-W11")
	require.True(t, ok)
	assert.Equal(t, int64(1), w11.VisitCount)
	assert.Equal(t, int64(2), w11.PeakOccupancy)

	w10, ok := agg.WeeklyInsights("z1", "2024-W10")
	require.True(t, ok)
	assert.Equal(t, int64(1), w10.VisitCount)
	assert.Equal(t, int64(1), w10.PeakOccupancy)
}

func TestInsightsAggregator_TotalEqualsSumOfDurations(t *testing.T) {
	agg := NewInsightsAggregatorService(time.UTC, nil)
	rng := rand.New(rand.NewSource(7))

	var sessions []models.DwellSession
	want := make(map[string]time.Duration)
	for i := 0; i < 200; i++ {
		enter := t0.Add(time.Duration(rng.Intn(21*24*3600)) * time.Second)
		s := sealedSession("z1", fmt.Sprintf("o%d", i), enter, time.Duration(rng.Intn(600))*time.Second)
		sessions = append(sessions, s)
		want[models.WeekKeyFor(enter, time.UTC)] += s.Duration
	}

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := w; i < len(sessions); i += 4 {
				assert.NoError(t, agg.IngestSession(sessions[i]))
			}
		}(w)
	}
	wg.Wait()

	var visits int64
	for _, b := range agg.Buckets("z1") {
		assert.Equal(t, want[b.WeekKey], b.TotalDwell, b.WeekKey)
		visits += b.VisitCount
	}
	assert.Equal(t, int64(len(sessions)), visits)
}

func TestInsightsAggregator_Saturates(t *testing.T) {
	agg := NewInsightsAggregatorService(time.UTC, nil)
	huge := sealedSession("z1", "a", t0, time.Second)
	huge.Duration = time.Duration(math.MaxInt64)

	require.NoError(t, agg.IngestSession(huge))
	require.NoError(t, agg.IngestSession(sealedSession("z1", "b", t0, time.Second)))

	b, ok := agg.WeeklyInsights("z1", "2024-W10")
	require.True(t, ok)
	assert.True(t, b.Saturated)
	assert.Equal(t, time.Duration(math.MaxInt64), b.TotalDwell)
	assert.Equal(t, int64(2), b.VisitCount)
}

func TestInsightsAggregator_RebuildZone(t *testing.T) {
	agg := NewInsightsAggregatorService(time.UTC, nil)
	require.NoError(t, agg.IngestSession(sealedSession("z1", "a", t0, 5*time.Second)))
	require.NoError(t, agg.IngestSession(sealedSession("z1", "b", t0, 7*time.Second)))
	require.NoError(t, agg.IngestSession(sealedSession("z2", "c", t0, 9*time.Second)))
	before := agg.Snapshot()

	assert.Equal(t, 2, agg.RebuildZone("z1"))
	assert.Equal(t, before, agg.Snapshot())
	assert.Len(t, agg.Sessions("z1"), 2)
}

func TestInsightsAggregator_PendingAndRestore(t *testing.T) {
	agg := NewInsightsAggregatorService(time.UTC, nil)
	require.NoError(t, agg.IngestSession(sealedSession("z1", "a", t0, 5*time.Second)))

	pending := agg.DrainPending()
	require.Len(t, pending["z1"], 1)
	assert.Empty(t, agg.DrainPending())

	agg.RequeuePending("z1", pending["z1"])
	assert.Len(t, agg.DrainPending()["z1"], 1)

	restored := NewInsightsAggregatorService(time.UTC, nil)
	snapshot := insights.InsightBucket{ZoneID: "z9", WeekKey: "2024-W01", VisitCount: 4, TotalDwell: time.Minute, PeakOccupancy: 2}
	restored.Restore(pending, append(agg.Snapshot(), snapshot))

	b, ok := restored.WeeklyInsights("z1", "2024-W10")
	require.True(t, ok)
	assert.Equal(t, int64(1), b.VisitCount)
	assert.Equal(t, 5*time.Second, b.TotalDwell)

	z9, ok := restored.WeeklyInsights("z9", "2024-W01")
	require.True(t, ok)
	assert.Equal(t, snapshot, z9)

	assert.Empty(t, restored.DrainPending())
}

func TestInsightsAggregator_WeekInConfiguredZone(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	agg := NewInsightsAggregatorService(loc, nil)

	// Sunday 22:00 UTC is Monday 01:00 at UTC+3.
	require.NoError(t, agg.IngestSession(sealedSession("z1", "a", time.Date(2024, 3, 10, 22, 0, 0, 0, time.UTC), time.Second)))
	_, ok := agg.WeeklyInsights("z1", "2024-W11")
	assert.True(t, ok)
}

func TestInsightsAggregator_PeakOverManySessions(t *testing.T) {
	agg := NewInsightsAggregatorService(time.UTC, nil)

	// 30s visits every 10s: three overlap, and a fourth enters as the
	// first leaves.
	const n = 50000
	for i := 0; i < n; i++ {
		s := sealedSession("z1", fmt.Sprintf("o%d", i), t0.Add(time.Duration(i)*10*time.Second), 30*time.Second)
		require.NoError(t, agg.IngestSession(s))
	}

	b, ok := agg.WeeklyInsights("z1", "2024-W10")
	require.True(t, ok)
	assert.Equal(t, int64(n), b.VisitCount)
	assert.Equal(t, int64(4), b.PeakOccupancy)
	assert.Equal(t, 2*n, agg.timeline("z1").week("2024-W10").events())
}

func TestInsightsAggregator_RebuildDuringIngest(t *testing.T) {
	agg := NewInsightsAggregatorService(time.UTC, nil)
	const writers, perWriter = 4, 250

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				enter := t0.Add(time.Duration(w*perWriter+i) * time.Second)
				_ = agg.IngestSession(sealedSession("z1", fmt.Sprintf("w%d-%d", w, i), enter, time.Second))
			}
		}(w)
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			agg.RebuildZone("z1")
		}
	}()
	wg.Wait()
	<-done

	b, ok := agg.WeeklyInsights("z1", "2024-W10")
	require.True(t, ok)
	assert.Equal(t, int64(writers*perWriter), b.VisitCount)
	assert.Equal(t, time.Duration(writers*perWriter)*time.Second, b.TotalDwell)
	assert.Len(t, agg.Sessions("z1"), writers*perWriter)

	agg.RebuildZone("z1")
	after, _ := agg.WeeklyInsights("z1", "2024-W10")
	assert.Equal(t, b, after)
}

func TestInsightsAggregator_RestoredPeakIsKept(t *testing.T) {
	agg := NewInsightsAggregatorService(time.UTC, nil)
	snapshot := insights.InsightBucket{ZoneID: "z1", WeekKey: "2024-W10", VisitCount: 5, TotalDwell: time.Minute, PeakOccupancy: 5}
	agg.Restore(nil, []insights.InsightBucket{snapshot})

	require.NoError(t, agg.IngestSession(sealedSession("z1", "a", t0, 10*time.Second)))

	b, ok := agg.WeeklyInsights("z1", "2024-W10")
	require.True(t, ok)
	assert.Equal(t, int64(6), b.VisitCount)
	assert.Equal(t, time.Minute+10*time.Second, b.TotalDwell)
	assert.Equal(t, int64(5), b.PeakOccupancy)

	assert.Equal(t, 1, agg.RebuildZone("z1"))
	rebuilt, ok := agg.WeeklyInsights("z1", "2024-W10")
	require.True(t, ok)
	assert.Equal(t, b, rebuilt)
}
