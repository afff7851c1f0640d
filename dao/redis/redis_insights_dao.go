package redis

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/mj-112358/winkfinal/db"
	"github.com/mj-112358/winkfinal/models"
	"github.com/mj-112358/winkfinal/models/insights"
)

// INSIGHT_BUCKET_KEY_FORMAT keys a bucket snapshot by zone and week key.
const INSIGHT_BUCKET_KEY_FORMAT = "insight_bucket_v1:%s:%s"
const INSIGHT_BUCKET_KEY_PATTERN = "insight_bucket_v1:*"

// DWELL_SESSIONS_KEY_FORMAT is the per-zone list of sealed sessions.
const DWELL_SESSIONS_KEY_FORMAT = "dwell_sessions_v1:%s"
const DWELL_SESSIONS_KEY_PREFIX = "dwell_sessions_v1:"

// LIVE_COUNT_KEY_FORMAT caches open sessions per zone for one camera.
const LIVE_COUNT_KEY_FORMAT = "live_count_v1:%s"

// RedisInsightsDAO persists bucket snapshots, the session log used for
// re-aggregation and the live occupancy cache.
type RedisInsightsDAO struct {
	client db.RedisClient
}

// NewRedisInsightsDAO initializes a RedisInsightsDAO with the Redis client.
func NewRedisInsightsDAO(client db.RedisClient) *RedisInsightsDAO {
	return &RedisInsightsDAO{client: client}
}

// SaveBuckets overwrites the snapshot of each given bucket.
func (dao *RedisInsightsDAO) SaveBuckets(buckets []insights.InsightBucket) error {
	values := make(map[string]string, len(buckets))
	for _, b := range buckets {
		data, err := json.Marshal(b)
		if err != nil {
			return fmt.Errorf("failed to marshal bucket %s/%s: %w", b.ZoneID, b.WeekKey, err)
		}
		values[fmt.Sprintf(INSIGHT_BUCKET_KEY_FORMAT, b.ZoneID, b.WeekKey)] = string(data)
	}
	if err := dao.client.MSet(values); err != nil {
		return fmt.Errorf("failed to save %d buckets: %w", len(buckets), err)
	}
	return nil
}

// ListBuckets loads every stored bucket snapshot.
func (dao *RedisInsightsDAO) ListBuckets() ([]insights.InsightBucket, error) {
	keys, err := dao.client.Keys(INSIGHT_BUCKET_KEY_PATTERN)
	if err != nil {
		return nil, fmt.Errorf("failed to list bucket keys: %w", err)
	}
	out := make([]insights.InsightBucket, 0, len(keys))
	for _, k := range keys {
		str, err := dao.client.Get(k)
		if err != nil {
			log.Printf("[RedisInsightsDAO] Skipping bucket %s: %v", k, err)
			continue
		}
		var b insights.InsightBucket
		if err := json.Unmarshal([]byte(str), &b); err != nil {
			log.Printf("[RedisInsightsDAO] Skipping bucket %s: failed to unmarshal: %v", k, err)
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

// AppendSessions appends sealed sessions to the zone's session log.
func (dao *RedisInsightsDAO) AppendSessions(zoneID string, sessions []models.DwellSession) error {
	if len(sessions) == 0 {
		return nil
	}
	values := make([]string, 0, len(sessions))
	for _, s := range sessions {
		data, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("failed to marshal session for zone %s: %w", zoneID, err)
		}
		values = append(values, string(data))
	}
	if err := dao.client.RPush(fmt.Sprintf(DWELL_SESSIONS_KEY_FORMAT, zoneID), values...); err != nil {
		return fmt.Errorf("failed to append %d sessions for zone %s: %w", len(sessions), zoneID, err)
	}
	return nil
}

// ListSessions returns the full session log of one zone.
func (dao *RedisInsightsDAO) ListSessions(zoneID string) ([]models.DwellSession, error) {
	raw, err := dao.client.LRange(fmt.Sprintf(DWELL_SESSIONS_KEY_FORMAT, zoneID), 0, -1)
	if err != nil {
		return nil, fmt.Errorf("failed to read session log for zone %s: %w", zoneID, err)
	}
	out := make([]models.DwellSession, 0, len(raw))
	for _, r := range raw {
		var s models.DwellSession
		if err := json.Unmarshal([]byte(r), &s); err != nil {
			log.Printf("[RedisInsightsDAO] Skipping malformed session in zone %s: %v", zoneID, err)
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

// ListSessionZoneIDs returns the zone ids that have a session log.
func (dao *RedisInsightsDAO) ListSessionZoneIDs() ([]string, error) {
	keys, err := dao.client.Keys(DWELL_SESSIONS_KEY_PREFIX + "*")
	if err != nil {
		return nil, fmt.Errorf("failed to list session log keys: %w", err)
	}
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		ids = append(ids, strings.TrimPrefix(k, DWELL_SESSIONS_KEY_PREFIX))
	}
	return ids, nil
}

// SetLiveCounts caches the open sessions per zone for a camera.
func (dao *RedisInsightsDAO) SetLiveCounts(cameraID string, counts map[string]int) error {
	data, err := json.Marshal(counts)
	if err != nil {
		return fmt.Errorf("failed to marshal live counts for camera %s: %w", cameraID, err)
	}
	if err := dao.client.Set(fmt.Sprintf(LIVE_COUNT_KEY_FORMAT, cameraID), string(data)); err != nil {
		return fmt.Errorf("failed to set live counts in redis: %w", err)
	}
	return nil
}

// GetLiveCounts reads the cached live counts. A cache miss returns an empty map.
func (dao *RedisInsightsDAO) GetLiveCounts(cameraID string) (map[string]int, error) {
	str, err := dao.client.Get(fmt.Sprintf(LIVE_COUNT_KEY_FORMAT, cameraID))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return map[string]int{}, nil
		}
		return nil, fmt.Errorf("failed to get live counts from redis: %w", err)
	}
	counts := map[string]int{}
	if err := json.Unmarshal([]byte(str), &counts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal live counts JSON: %w", err)
	}
	return counts, nil
}
