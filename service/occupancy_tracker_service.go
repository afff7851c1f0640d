package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/mj-112358/winkfinal/metrics"
	"github.com/mj-112358/winkfinal/models"
	"github.com/mj-112358/winkfinal/models/zone"
)

const DEFAULT_DWELL_TIMEOUT = 30 * time.Second

// Recoverable ingest outcomes. The caller logs and moves on.
var (
	ErrUnknownCamera    = errors.New("no zones registered for camera")
	ErrStaleDetection   = errors.New("detection older than last seen")
	ErrInvalidDetection = errors.New("invalid detection")
)

// ZoneLookup resolves the current zones of a camera.
type ZoneLookup interface {
	ZonesForCamera(cameraID string) []zone.Zone
}

// ZoneMatcher classifies a detection against a zone.
type ZoneMatcher interface {
	Resolve(event models.DetectionEvent, z zone.Zone) bool
}

// SessionSink receives every sealed dwell session.
type SessionSink interface {
	IngestSession(session models.DwellSession) error
}

// LiveCountStore caches open sessions per zone for each camera.
type LiveCountStore interface {
	SetLiveCounts(cameraID string, counts map[string]int) error
}

type namedSink struct {
	name string
	sink SessionSink
}

type sessionKey struct {
	zoneID   string
	objectID string
}

// cameraShard holds every dwell state of one camera. Ingest and sweep both
// take mu, so the last-seen compare and update is atomic per object.
type cameraShard struct {
	mu       sync.Mutex
	cameraID string
	sessions map[sessionKey]*models.DwellSession
	lastSeen map[string]time.Time // object id -> newest accepted timestamp

	// watermark is the newest event timestamp; watermarkWall is the wall
	// clock reading when it was observed.
	watermark     time.Time
	watermarkWall time.Time
}

// OccupancyTrackerService turns detections into dwell sessions.
type OccupancyTrackerService struct {
	zones   ZoneLookup
	matcher ZoneMatcher
	timeout time.Duration
	metrics *metrics.Metrics
	clock   func() time.Time

	liveCounts LiveCountStore

	sinksMu sync.RWMutex
	sinks   []namedSink

	shardsMu sync.RWMutex
	shards   map[string]*cameraShard
}

// NewOccupancyTrackerService constructs a tracker. A non-positive timeout
// uses DEFAULT_DWELL_TIMEOUT.
func NewOccupancyTrackerService(
	zones ZoneLookup,
	matcher ZoneMatcher,
	timeout time.Duration,
	m *metrics.Metrics,
) *OccupancyTrackerService {
	if timeout <= 0 {
		timeout = DEFAULT_DWELL_TIMEOUT
	}
	return &OccupancyTrackerService{
		zones:   zones,
		matcher: matcher,
		timeout: timeout,
		metrics: m,
		clock:   time.Now,
		shards:  make(map[string]*cameraShard),
	}
}

// AddSink registers a receiver for sealed sessions.
func (ot *OccupancyTrackerService) AddSink(name string, sink SessionSink) {
	ot.sinksMu.Lock()
	defer ot.sinksMu.Unlock()
	ot.sinks = append(ot.sinks, namedSink{name: name, sink: sink})
}

// SetLiveCountStore enables caching of live counts on every sweep.
func (ot *OccupancyTrackerService) SetLiveCountStore(store LiveCountStore) {
	ot.liveCounts = store
}

// Timeout returns the configured dwell timeout.
func (ot *OccupancyTrackerService) Timeout() time.Duration {
	return ot.timeout
}

// Ingest applies one detection. Returned errors are recoverable drops
// (ErrInvalidDetection, ErrUnknownCamera, ErrStaleDetection) or the context
// error.
func (ot *OccupancyTrackerService) Ingest(ctx context.Context, event models.DetectionEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateDetection(event); err != nil {
		ot.metrics.DetectionDropped(metrics.DROP_INVALID)
		return err
	}
	zones := ot.zones.ZonesForCamera(event.CameraID)
	if len(zones) == 0 {
		ot.metrics.DetectionDropped(metrics.DROP_UNKNOWN_CAMERA)
		return fmt.Errorf("%w: %s", ErrUnknownCamera, event.CameraID)
	}

	shard := ot.shard(event.CameraID)
	ts := event.Timestamp

	shard.mu.Lock()
	if last, ok := shard.lastSeen[event.ObjectID]; ok && ts.Before(last) {
		shard.mu.Unlock()
		ot.metrics.DetectionDropped(metrics.DROP_STALE)
		return fmt.Errorf("%w: camera=%s object=%s t=%s last_seen=%s",
			ErrStaleDetection, event.CameraID, event.ObjectID, ts.Format(time.RFC3339Nano), last.Format(time.RFC3339Nano))
	}
	shard.lastSeen[event.ObjectID] = ts
	if ts.After(shard.watermark) {
		shard.watermark = ts
		shard.watermarkWall = ot.clock()
	}

	var sealed []models.DwellSession
	opened := 0
	for _, z := range zones {
		if !ot.matcher.Resolve(event, z) {
			continue
		}
		key := sessionKey{zoneID: z.ID, objectID: event.ObjectID}
		if s, open := shard.sessions[key]; open {
			if ts.Sub(s.LastSeen) <= ot.timeout {
				s.LastSeen = ts
				continue
			}
			// The gap outlived the timeout before a sweep ran: seal and
			// start over, never merge.
			s.Seal()
			sealed = append(sealed, *s)
			delete(shard.sessions, key)
		}
		shard.sessions[key] = &models.DwellSession{
			CameraID:    event.CameraID,
			ZoneID:      z.ID,
			ZoneVersion: z.Version,
			ObjectID:    event.ObjectID,
			EnterTime:   ts,
			LastSeen:    ts,
		}
		opened++
	}
	shard.mu.Unlock()

	ot.metrics.DetectionIngested()
	for i := 0; i < opened; i++ {
		ot.metrics.SessionOpened(event.CameraID)
	}
	ot.emit(sealed)
	return nil
}

// Sweep seals every session whose last detection is older than the dwell
// timeout and returns how many were sealed. Each shard measures time as its
// newest event timestamp plus the wall time elapsed since it was seen, so
// live streams and accelerated replays both time out correctly.
func (ot *OccupancyTrackerService) Sweep(wallNow time.Time) int {
	var sealed []models.DwellSession
	for _, shard := range ot.shardList() {
		sealed = append(sealed, ot.sweepShard(shard, wallNow)...)
	}
	ot.emit(sealed)
	return len(sealed)
}

func (ot *OccupancyTrackerService) sweepShard(shard *cameraShard, wallNow time.Time) []models.DwellSession {
	shard.mu.Lock()
	defer shard.mu.Unlock()

	if shard.watermark.IsZero() {
		return nil
	}
	now := shard.watermark.Add(wallNow.Sub(shard.watermarkWall))

	var sealed []models.DwellSession
	active := make(map[string]struct{})
	for key, s := range shard.sessions {
		if s == nil {
			// Already gone; treat as absent.
			delete(shard.sessions, key)
			continue
		}
		if now.Sub(s.LastSeen) > ot.timeout {
			s.Seal()
			sealed = append(sealed, *s)
			delete(shard.sessions, key)
			continue
		}
		active[key.objectID] = struct{}{}
	}

	// Forget objects with no open session once they are well past the
	// timeout; a later out-of-order event for them is then accepted.
	horizon := now.Add(-2 * ot.timeout)
	for objectID, seen := range shard.lastSeen {
		if _, open := active[objectID]; !open && seen.Before(horizon) {
			delete(shard.lastSeen, objectID)
		}
	}
	return sealed
}

// StartPeriodicJob launches the sweep loop at the given interval until ctx
// is cancelled.
func (ot *OccupancyTrackerService) StartPeriodicJob(ctx context.Context, interval time.Duration) {
	go ot.startPeriodicJob(ctx, interval)
}

func (ot *OccupancyTrackerService) startPeriodicJob(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[OccupancyTrackerService] Sweep job stopped.")
			return
		case <-ticker.C:
			if n := ot.Sweep(ot.clock()); n > 0 {
				log.Printf("[OccupancyTrackerService] Sweep sealed %d sessions", n)
			}
			ot.publishLiveCounts()
		}
	}
}

// LiveOccupancy returns open sessions per zone for one camera.
func (ot *OccupancyTrackerService) LiveOccupancy(cameraID string) map[string]int {
	ot.shardsMu.RLock()
	shard, ok := ot.shards[cameraID]
	ot.shardsMu.RUnlock()
	counts := make(map[string]int)
	if !ok {
		return counts
	}
	shard.mu.Lock()
	defer shard.mu.Unlock()
	for key := range shard.sessions {
		counts[key.zoneID]++
	}
	return counts
}

// OpenSessions returns copies of the open sessions of a camera, ordered by
// enter time.
func (ot *OccupancyTrackerService) OpenSessions(cameraID string) []models.DwellSession {
	ot.shardsMu.RLock()
	shard, ok := ot.shards[cameraID]
	ot.shardsMu.RUnlock()
	if !ok {
		return nil
	}
	shard.mu.Lock()
	out := make([]models.DwellSession, 0, len(shard.sessions))
	for _, s := range shard.sessions {
		out = append(out, *s)
	}
	shard.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].EnterTime.Equal(out[j].EnterTime) {
			return out[i].EnterTime.Before(out[j].EnterTime)
		}
		return out[i].ObjectID < out[j].ObjectID
	})
	return out
}

func (ot *OccupancyTrackerService) publishLiveCounts() {
	if ot.liveCounts == nil {
		return
	}
	for _, shard := range ot.shardList() {
		counts := ot.LiveOccupancy(shard.cameraID)
		if err := ot.liveCounts.SetLiveCounts(shard.cameraID, counts); err != nil {
			log.Printf("[OccupancyTrackerService] Failed caching live counts for %s: %v", shard.cameraID, err)
		}
	}
}

func (ot *OccupancyTrackerService) emit(sealed []models.DwellSession) {
	if len(sealed) == 0 {
		return
	}
	ot.sinksMu.RLock()
	sinks := ot.sinks
	ot.sinksMu.RUnlock()

	for _, s := range sealed {
		ot.metrics.SessionClosed(s.CameraID, s.Duration.Seconds())
		for _, ns := range sinks {
			if err := ns.sink.IngestSession(s); err != nil {
				ot.metrics.SinkError(ns.name)
				log.Printf("[OccupancyTrackerService] Sink %s rejected session %s: %v", ns.name, s.ToString(), err)
			}
		}
	}
}

func (ot *OccupancyTrackerService) shard(cameraID string) *cameraShard {
	ot.shardsMu.RLock()
	shard, ok := ot.shards[cameraID]
	ot.shardsMu.RUnlock()
	if ok {
		return shard
	}

	ot.shardsMu.Lock()
	defer ot.shardsMu.Unlock()
	if shard, ok := ot.shards[cameraID]; ok {
		return shard
	}
	shard = &cameraShard{
		cameraID: cameraID,
		sessions: make(map[sessionKey]*models.DwellSession),
		lastSeen: make(map[string]time.Time),
	}
	ot.shards[cameraID] = shard
	return shard
}

func (ot *OccupancyTrackerService) shardList() []*cameraShard {
	ot.shardsMu.RLock()
	defer ot.shardsMu.RUnlock()
	out := make([]*cameraShard, 0, len(ot.shards))
	for _, shard := range ot.shards {
		out = append(out, shard)
	}
	return out
}

func validateDetection(e models.DetectionEvent) error {
	switch {
	case e.CameraID == "":
		return fmt.Errorf("%w: missing camera id", ErrInvalidDetection)
	case e.ObjectID == "":
		return fmt.Errorf("%w: missing object id", ErrInvalidDetection)
	case e.Timestamp.IsZero():
		return fmt.Errorf("%w: missing timestamp", ErrInvalidDetection)
	case e.DetectionWidth <= 0 || e.DetectionHeight <= 0:
		return fmt.Errorf("%w: non-positive detection resolution %gx%g", ErrInvalidDetection, e.DetectionWidth, e.DetectionHeight)
	}
	return nil
}
