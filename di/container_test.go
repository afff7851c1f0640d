package di

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mj-112358/winkfinal/config"
	"github.com/mj-112358/winkfinal/models"
	"github.com/mj-112358/winkfinal/models/insights"
	"github.com/mj-112358/winkfinal/models/zone"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Stores = map[string][]string{"store-1": {"cam-1"}}
	cfg.Zones = []zone.Zone{{
		ID:              "entrance",
		CameraID:        "cam-1",
		Name:            "Entrance",
		ReferenceWidth:  100,
		ReferenceHeight: 100,
		Vertices:        []zone.Point{{X: 0, Y: 0}, {X: 100, Y: 0}, {X: 100, Y: 100}, {X: 0, Y: 100}},
	}}
	cfg.Calendar = []models.CalendarAnnotation{
		{Label: "Spring Sale", Kind: models.ANNOTATION_KIND_SALE, StartDate: "2024-03-08", EndDate: "2024-03-12"},
	}
	return cfg
}

func TestNewContainer_DevWiring(t *testing.T) {
	c, err := NewContainer(testConfig())
	require.NoError(t, err)
	defer c.Close()

	assert.Nil(t, c.KafkaConsumer)
	assert.Nil(t, c.SessionEmitter)
	assert.Len(t, c.ZoneRegistryService.ZonesForCamera("cam-1"), 1)
	assert.Len(t, c.CalendarOverlayService.All(), 1)
}

func TestNewContainer_DetectionToInsights(t *testing.T) {
	c, err := NewContainer(testConfig())
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	t0 := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	for _, offset := range []time.Duration{0, 5 * time.Second} {
		err := c.OccupancyTrackerService.Ingest(ctx, models.DetectionEvent{
			CameraID: "cam-1", ObjectID: "p1", Timestamp: t0.Add(offset),
			X: 10, Y: 10, DetectionWidth: 50, DetectionHeight: 50,
		})
		require.NoError(t, err)
	}
	assert.Equal(t, map[string]int{"entrance": 1}, c.OccupancyTrackerService.LiveOccupancy("cam-1"))

	require.Equal(t, 1, c.OccupancyTrackerService.Sweep(time.Now().Add(time.Minute)))

	bucket, ok := c.InsightsAggregator.WeeklyInsights("entrance", "2024-W10")
	require.True(t, ok)
	assert.Equal(t, int64(1), bucket.VisitCount)
	assert.Equal(t, 5*time.Second, bucket.TotalDwell)

	require.NoError(t, c.InsightsSnapshotService.Flush())
	stored, err := c.RedisInsightsDao.ListBuckets()
	require.NoError(t, err)
	assert.Len(t, stored, 1)

	req := httptest.NewRequest("GET", "/v1/insights?store_id=store-1&week=2024-W10", nil)
	rr := httptest.NewRecorder()
	c.InsightsHttpServer.Handler().ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var rows []insights.ZoneWeekInsight
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "Entrance", rows[0].ZoneName)
	assert.Equal(t, int64(1), rows[0].VisitCount)
	require.Len(t, rows[0].Annotations, 1)
	assert.Equal(t, "Spring Sale", rows[0].Annotations[0].Label)
}

func TestSeedZones_SkipsKnownZones(t *testing.T) {
	cfg := testConfig()
	c, err := NewContainer(cfg)
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, seedZones(c.ZoneRegistryService, cfg))

	latest, ok := c.ZoneRegistryService.LatestVersion("cam-1", "entrance")
	require.True(t, ok)
	assert.Equal(t, 1, latest.Version)
}

func TestNewContainer_RejectsInvalidSeedZone(t *testing.T) {
	cfg := testConfig()
	cfg.Zones[0].Vertices = cfg.Zones[0].Vertices[:2]

	_, err := NewContainer(cfg)
	require.Error(t, err)
	var cfgErr *models.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}
