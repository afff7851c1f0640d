package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mj-112358/winkfinal/dao/redis"
	"github.com/mj-112358/winkfinal/db"
	"github.com/mj-112358/winkfinal/models"
	"github.com/mj-112358/winkfinal/models/zone"
)

type failingZoneStore struct{}

func (failingZoneStore) UpsertZoneVersion(zone.Zone) error {
	return errors.New("redis unavailable")
}

func (failingZoneStore) ListAllZoneVersions() ([]zone.Zone, error) {
	return nil, errors.New("redis unavailable")
}

func newTestRegistry() (*ZoneRegistryService, *redis.RedisZoneDAO) {
	dao := redis.NewRedisZoneDAO(db.NewMockRedisClient(context.Background()))
	registry := NewZoneRegistryService(dao)
	registry.now = func() time.Time { return t0 }
	return registry, dao
}

func TestZoneRegistry_RegisterAssignsIDAndVersion(t *testing.T) {
	registry, dao := newTestRegistry()
	z := squareZone("cam-1", "", 0, 0, 100, 100)

	id, err := registry.RegisterZone(z)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	zones := registry.ZonesForCamera("cam-1")
	require.Len(t, zones, 1)
	assert.Equal(t, id, zones[0].ID)
	assert.Equal(t, 1, zones[0].Version)
	assert.True(t, zones[0].Active)
	assert.True(t, zones[0].CreatedAt.Equal(t0))

	stored, err := dao.GetZoneVersion("cam-1", id, 1)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, id, stored.ID)
}

func TestZoneRegistry_RejectsInvalidZones(t *testing.T) {
	registry, _ := newTestRegistry()

	tests := []struct {
		name  string
		zone  zone.Zone
		field string
	}{
		{"two vertices", zone.Zone{CameraID: "cam-1", Vertices: []zone.Point{{X: 0, Y: 0}, {X: 1, Y: 1}}, ReferenceWidth: 10, ReferenceHeight: 10}, "vertices"},
		{"zero width", zone.Zone{CameraID: "cam-1", Vertices: []zone.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}}, ReferenceHeight: 10}, "reference"},
		{"negative height", zone.Zone{CameraID: "cam-1", Vertices: []zone.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}}, ReferenceWidth: 10, ReferenceHeight: -1}, "reference"},
		{"no camera", zone.Zone{Vertices: []zone.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}}, ReferenceWidth: 10, ReferenceHeight: 10}, "camera_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := registry.RegisterZone(tt.zone)
			var cfgErr *models.ConfigError
			require.True(t, errors.As(err, &cfgErr), "got %v", err)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
	assert.Empty(t, registry.ZonesForCamera("cam-1"))
}

func TestZoneRegistry_NewVersionRetainsHistory(t *testing.T) {
	registry, _ := newTestRegistry()
	_, err := registry.RegisterZone(squareZone("cam-1", "z1", 0, 0, 50, 50))
	require.NoError(t, err)
	_, err = registry.RegisterZone(squareZone("cam-1", "z1", 0, 0, 80, 80))
	require.NoError(t, err)

	current := registry.ZonesForCamera("cam-1")
	require.Len(t, current, 1)
	assert.Equal(t, 2, current[0].Version)
	assert.Equal(t, 80.0, current[0].Vertices[2].X)

	v1, ok := registry.ZoneVersion("cam-1", "z1", 1)
	require.True(t, ok)
	assert.Equal(t, 50.0, v1.Vertices[2].X)

	_, ok = registry.ZoneVersion("cam-1", "z1", 3)
	assert.False(t, ok)
	assert.Len(t, registry.ZoneHistory("cam-1", "z1"), 2)
}

func TestZoneRegistry_ZoneIDOwnedByAnotherCamera(t *testing.T) {
	registry, _ := newTestRegistry()
	_, err := registry.RegisterZone(squareZone("cam-1", "z1", 0, 0, 50, 50))
	require.NoError(t, err)

	_, err = registry.RegisterZone(squareZone("cam-2", "z1", 0, 0, 50, 50))
	var cfgErr *models.ConfigError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestZoneRegistry_Deactivate(t *testing.T) {
	registry, _ := newTestRegistry()
	_, err := registry.RegisterZone(squareZone("cam-1", "z1", 0, 0, 50, 50))
	require.NoError(t, err)

	require.NoError(t, registry.DeactivateZone("cam-1", "z1"))
	assert.Empty(t, registry.ZonesForCamera("cam-1"))

	latest, ok := registry.LatestVersion("cam-1", "z1")
	require.True(t, ok)
	assert.False(t, latest.Active)

	assert.ErrorIs(t, registry.DeactivateZone("cam-1", "missing"), ErrZoneNotFound)
}

func TestZoneRegistry_UnknownCameraIsEmpty(t *testing.T) {
	registry, _ := newTestRegistry()
	assert.Empty(t, registry.ZonesForCamera("nope"))
	cameraID, ok := registry.CameraForZone("nope")
	assert.False(t, ok)
	assert.Empty(t, cameraID)
}

func TestZoneRegistry_LoadRebuildsIndex(t *testing.T) {
	registry, dao := newTestRegistry()
	_, err := registry.RegisterZone(squareZone("cam-1", "z1", 0, 0, 50, 50))
	require.NoError(t, err)
	_, err = registry.RegisterZone(squareZone("cam-1", "z1", 0, 0, 60, 60))
	require.NoError(t, err)
	_, err = registry.RegisterZone(squareZone("cam-2", "z2", 0, 0, 60, 60))
	require.NoError(t, err)

	reloaded := NewZoneRegistryService(dao)
	require.NoError(t, reloaded.Load())

	assert.Equal(t, []string{"cam-1", "cam-2"}, reloaded.Cameras())
	current := reloaded.ZonesForCamera("cam-1")
	require.Len(t, current, 1)
	assert.Equal(t, 2, current[0].Version)
	owner, ok := reloaded.CameraForZone("z2")
	assert.True(t, ok)
	assert.Equal(t, "cam-2", owner)
}

func TestZoneRegistry_StoreFailureIsNotCommitted(t *testing.T) {
	registry := NewZoneRegistryService(failingZoneStore{})
	_, err := registry.RegisterZone(squareZone("cam-1", "z1", 0, 0, 50, 50))
	assert.Error(t, err)
	assert.Empty(t, registry.ZonesForCamera("cam-1"))
	assert.Error(t, registry.Load())
}

func TestZoneRegistry_AllZonesIncludesInactive(t *testing.T) {
	registry, _ := newTestRegistry()
	_, err := registry.RegisterZone(squareZone("cam-1", "b", 0, 0, 50, 50))
	require.NoError(t, err)
	_, err = registry.RegisterZone(squareZone("cam-1", "a", 0, 0, 50, 50))
	require.NoError(t, err)
	require.NoError(t, registry.DeactivateZone("cam-1", "a"))

	all := registry.AllZonesForCamera("cam-1")
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].ID)
	assert.False(t, all[0].Active)
	assert.Len(t, registry.ZonesForCamera("cam-1"), 1)
}
