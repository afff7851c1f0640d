package redis

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"

	"github.com/mj-112358/winkfinal/db"
	"github.com/mj-112358/winkfinal/models/zone"
)

// ZONE_VERSION_KEY_FORMAT keys one zone version: camera, zone, version.
const ZONE_VERSION_KEY_FORMAT = "zone_v1:%s:%s:%d"
const ZONE_VERSION_KEY_PATTERN = "zone_v1:*"

// RedisZoneDAO persists every zone version so historical insights stay
// reproducible.
type RedisZoneDAO struct {
	client db.RedisClient
}

// NewRedisZoneDAO initializes a RedisZoneDAO with the Redis client.
func NewRedisZoneDAO(client db.RedisClient) *RedisZoneDAO {
	return &RedisZoneDAO{client: client}
}

// UpsertZoneVersion stores one zone version as JSON.
func (dao *RedisZoneDAO) UpsertZoneVersion(z zone.Zone) error {
	key := fmt.Sprintf(ZONE_VERSION_KEY_FORMAT, z.CameraID, z.ID, z.Version)
	data, err := json.Marshal(z)
	if err != nil {
		return fmt.Errorf("failed to marshal zone %s v%d: %w", z.ID, z.Version, err)
	}
	if err := dao.client.Set(key, string(data)); err != nil {
		return fmt.Errorf("failed to set zone %s v%d in redis: %w", z.ID, z.Version, err)
	}
	return nil
}

// GetZoneVersion loads one zone version. A missing key returns (nil, nil).
func (dao *RedisZoneDAO) GetZoneVersion(cameraID, zoneID string, version int) (*zone.Zone, error) {
	key := fmt.Sprintf(ZONE_VERSION_KEY_FORMAT, cameraID, zoneID, version)
	str, err := dao.client.Get(key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get zone %s v%d from redis: %w", zoneID, version, err)
	}
	var z zone.Zone
	if err := json.Unmarshal([]byte(str), &z); err != nil {
		return nil, fmt.Errorf("failed to unmarshal zone JSON: %w", err)
	}
	return &z, nil
}

// ListAllZoneVersions returns every stored version ordered by camera, zone
// and version. Unreadable entries are skipped and logged.
func (dao *RedisZoneDAO) ListAllZoneVersions() ([]zone.Zone, error) {
	keys, err := dao.client.Keys(ZONE_VERSION_KEY_PATTERN)
	if err != nil {
		return nil, fmt.Errorf("failed to list zone keys: %w", err)
	}
	zones := make([]zone.Zone, 0, len(keys))
	for _, k := range keys {
		str, err := dao.client.Get(k)
		if err != nil {
			log.Printf("[RedisZoneDAO] Skipping %s: %v", k, err)
			continue
		}
		var z zone.Zone
		if err := json.Unmarshal([]byte(str), &z); err != nil {
			log.Printf("[RedisZoneDAO] Skipping %s: failed to unmarshal: %v", k, err)
			continue
		}
		zones = append(zones, z)
	}
	sort.Slice(zones, func(i, j int) bool {
		if zones[i].CameraID != zones[j].CameraID {
			return zones[i].CameraID < zones[j].CameraID
		}
		if zones[i].ID != zones[j].ID {
			return zones[i].ID < zones[j].ID
		}
		return zones[i].Version < zones[j].Version
	})
	return zones, nil
}
