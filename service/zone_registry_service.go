package services

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mj-112358/winkfinal/models"
	"github.com/mj-112358/winkfinal/models/zone"
)

// ErrZoneNotFound is returned when no version exists for (camera, zone).
var ErrZoneNotFound = errors.New("zone not found")

// ZoneStore persists zone versions.
type ZoneStore interface {
	UpsertZoneVersion(z zone.Zone) error
	ListAllZoneVersions() ([]zone.Zone, error)
}

type zoneKey struct {
	cameraID string
	zoneID   string
}

// ZoneRegistryService keeps every version of every zone, keyed by
// (camera, zone, version). Reads serve an immutable per-camera slice that is
// rebuilt on each write.
type ZoneRegistryService struct {
	store ZoneStore
	now   func() time.Time

	mu       sync.RWMutex
	versions map[zoneKey][]zone.Zone // index i holds version i+1
	owners   map[string]string       // zone id -> camera id
	current  map[string][]zone.Zone  // camera id -> active current versions
}

// NewZoneRegistryService constructs a registry backed by store.
func NewZoneRegistryService(store ZoneStore) *ZoneRegistryService {
	return &ZoneRegistryService{
		store:    store,
		now:      time.Now,
		versions: make(map[zoneKey][]zone.Zone),
		owners:   make(map[string]string),
		current:  make(map[string][]zone.Zone),
	}
}

// Load rebuilds the in-memory index from the store.
func (zr *ZoneRegistryService) Load() error {
	all, err := zr.store.ListAllZoneVersions()
	if err != nil {
		return fmt.Errorf("[ZoneRegistryService] failed to load zones: %w", err)
	}

	zr.mu.Lock()
	defer zr.mu.Unlock()
	touched := make(map[string]struct{})
	for _, z := range all {
		key := zoneKey{z.CameraID, z.ID}
		if z.Version != len(zr.versions[key])+1 {
			log.Printf("[ZoneRegistryService] Skipping out-of-sequence version %d of zone %s", z.Version, z.ID)
			continue
		}
		zr.versions[key] = append(zr.versions[key], z)
		zr.owners[z.ID] = z.CameraID
		touched[z.CameraID] = struct{}{}
	}
	for cameraID := range touched {
		zr.rebuildCameraLocked(cameraID)
	}
	log.Printf("[ZoneRegistryService] Loaded %d zone versions for %d cameras", len(all), len(touched))
	return nil
}

// RegisterZone validates and stores a new zone version. An empty id creates
// a zone; an existing (camera, id) pair gets a new version and the previous
// one is retained for historical re-aggregation.
func (zr *ZoneRegistryService) RegisterZone(z zone.Zone) (string, error) {
	if err := z.Validate(); err != nil {
		return "", err
	}

	zr.mu.Lock()
	defer zr.mu.Unlock()

	if z.ID == "" {
		z.ID = uuid.NewString()
	}
	if owner, ok := zr.owners[z.ID]; ok && owner != z.CameraID {
		return "", models.NewConfigError("zone_id", "zone %s already belongs to camera %s", z.ID, owner)
	}

	key := zoneKey{z.CameraID, z.ID}
	stored := z.Clone()
	stored.Version = len(zr.versions[key]) + 1
	stored.Active = true
	stored.CreatedAt = zr.now().UTC()

	if err := zr.store.UpsertZoneVersion(stored); err != nil {
		return "", fmt.Errorf("[ZoneRegistryService] failed to persist zone %s: %w", z.ID, err)
	}

	zr.versions[key] = append(zr.versions[key], stored)
	zr.owners[z.ID] = z.CameraID
	zr.rebuildCameraLocked(z.CameraID)
	log.Printf("[ZoneRegistryService] Registered %s", stored.ToString())
	return stored.ID, nil
}

// DeactivateZone marks the current version inactive. History is kept so
// past insights stay reproducible.
func (zr *ZoneRegistryService) DeactivateZone(cameraID, zoneID string) error {
	zr.mu.Lock()
	defer zr.mu.Unlock()

	key := zoneKey{cameraID, zoneID}
	history := zr.versions[key]
	if len(history) == 0 {
		return fmt.Errorf("%w: camera=%s zone=%s", ErrZoneNotFound, cameraID, zoneID)
	}
	latest := history[len(history)-1].Clone()
	if !latest.Active {
		return nil
	}
	latest.Active = false
	if err := zr.store.UpsertZoneVersion(latest); err != nil {
		return fmt.Errorf("[ZoneRegistryService] failed to persist deactivation of %s: %w", zoneID, err)
	}
	history[len(history)-1] = latest
	zr.rebuildCameraLocked(cameraID)
	log.Printf("[ZoneRegistryService] Deactivated zone %s v%d", zoneID, latest.Version)
	return nil
}

// ZonesForCamera returns the current active version of every zone of the
// camera. Unknown cameras yield an empty slice. The returned zones are
// shared and must not be mutated.
func (zr *ZoneRegistryService) ZonesForCamera(cameraID string) []zone.Zone {
	zr.mu.RLock()
	defer zr.mu.RUnlock()
	return zr.current[cameraID]
}

// AllZonesForCamera returns the newest version of every zone of the camera,
// including deactivated ones, ordered by zone id.
func (zr *ZoneRegistryService) AllZonesForCamera(cameraID string) []zone.Zone {
	zr.mu.RLock()
	defer zr.mu.RUnlock()
	var out []zone.Zone
	for key, history := range zr.versions {
		if key.cameraID == cameraID && len(history) > 0 {
			out = append(out, history[len(history)-1].Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ZoneVersion returns one historical version.
func (zr *ZoneRegistryService) ZoneVersion(cameraID, zoneID string, version int) (zone.Zone, bool) {
	zr.mu.RLock()
	defer zr.mu.RUnlock()
	history := zr.versions[zoneKey{cameraID, zoneID}]
	if version < 1 || version > len(history) {
		return zone.Zone{}, false
	}
	return history[version-1].Clone(), true
}

// LatestVersion returns the newest version, active or not.
func (zr *ZoneRegistryService) LatestVersion(cameraID, zoneID string) (zone.Zone, bool) {
	zr.mu.RLock()
	defer zr.mu.RUnlock()
	history := zr.versions[zoneKey{cameraID, zoneID}]
	if len(history) == 0 {
		return zone.Zone{}, false
	}
	return history[len(history)-1].Clone(), true
}

// ZoneHistory returns every version of a zone, oldest first.
func (zr *ZoneRegistryService) ZoneHistory(cameraID, zoneID string) []zone.Zone {
	zr.mu.RLock()
	defer zr.mu.RUnlock()
	history := zr.versions[zoneKey{cameraID, zoneID}]
	out := make([]zone.Zone, len(history))
	for i, z := range history {
		out[i] = z.Clone()
	}
	return out
}

// CameraForZone returns the camera owning zoneID.
func (zr *ZoneRegistryService) CameraForZone(zoneID string) (string, bool) {
	zr.mu.RLock()
	defer zr.mu.RUnlock()
	cameraID, ok := zr.owners[zoneID]
	return cameraID, ok
}

// Cameras lists every camera with at least one registered zone version.
func (zr *ZoneRegistryService) Cameras() []string {
	zr.mu.RLock()
	defer zr.mu.RUnlock()
	seen := make(map[string]struct{})
	for _, cameraID := range zr.owners {
		seen[cameraID] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for cameraID := range seen {
		out = append(out, cameraID)
	}
	sort.Strings(out)
	return out
}

func (zr *ZoneRegistryService) rebuildCameraLocked(cameraID string) {
	var zones []zone.Zone
	for key, history := range zr.versions {
		if key.cameraID != cameraID || len(history) == 0 {
			continue
		}
		if latest := history[len(history)-1]; latest.Active {
			zones = append(zones, latest)
		}
	}
	sort.Slice(zones, func(i, j int) bool {
		if zones[i].Name != zones[j].Name {
			return zones[i].Name < zones[j].Name
		}
		return zones[i].ID < zones[j].ID
	})
	if len(zones) == 0 {
		delete(zr.current, cameraID)
		return
	}
	zr.current[cameraID] = zones
}
