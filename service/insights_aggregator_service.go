package services

import (
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/mj-112358/winkfinal/metrics"
	"github.com/mj-112358/winkfinal/models"
	"github.com/mj-112358/winkfinal/models/insights"
)

// ErrSessionNotClosed rejects sessions the tracker has not sealed.
var ErrSessionNotClosed = errors.New("session is not closed")

type bucketKey struct {
	zoneID  string
	weekKey string
}

type bucketState struct {
	mu     sync.Mutex
	bucket insights.InsightBucket
}

// zoneTimeline holds the per-week occupancy and the retained session log
// of one zone. pending lists sessions not yet flushed to the store and
// restored the bucket snapshots loaded without a log. mu serialises every
// write to the zone, buckets included.
type zoneTimeline struct {
	mu       sync.Mutex
	weeks    map[string]*weekOccupancy
	sessions []models.DwellSession
	pending  []models.DwellSession
	restored []insights.InsightBucket
}

// InsightsAggregatorService rolls sealed sessions into weekly buckets.
// Writes to one zone are serialised by its timeline lock and bucket fields
// by the bucket's own lock; the maps are only locked to find or create
// entries, so zones accumulate independently.
// Reads return the latest committed state and may miss sessions whose
// ingestion is in flight.
type InsightsAggregatorService struct {
	loc     *time.Location
	metrics *metrics.Metrics

	bucketsMu sync.RWMutex
	buckets   map[bucketKey]*bucketState

	zonesMu sync.RWMutex
	zones   map[string]*zoneTimeline
}

// NewInsightsAggregatorService assigns sessions to ISO weeks in loc.
func NewInsightsAggregatorService(loc *time.Location, m *metrics.Metrics) *InsightsAggregatorService {
	if loc == nil {
		loc = time.UTC
	}
	return &InsightsAggregatorService{
		loc:     loc,
		metrics: m,
		buckets: make(map[bucketKey]*bucketState),
		zones:   make(map[string]*zoneTimeline),
	}
}

// Location returns the time zone used for week assignment.
func (ia *InsightsAggregatorService) Location() *time.Location {
	return ia.loc
}

// IngestSession accumulates one sealed session into the bucket of its
// zone and enter-time week.
func (ia *InsightsAggregatorService) IngestSession(session models.DwellSession) error {
	if session.ZoneID == "" {
		return fmt.Errorf("[InsightsAggregatorService] session without zone id")
	}
	if !session.Closed {
		return fmt.Errorf("%w: %s", ErrSessionNotClosed, session.ToString())
	}
	if session.Duration < 0 {
		session.Duration = 0
	}
	ia.apply(session, true)
	return nil
}

func (ia *InsightsAggregatorService) apply(session models.DwellSession, retain bool) {
	tl := ia.timeline(session.ZoneID)
	tl.mu.Lock()
	defer tl.mu.Unlock()
	ia.applyLocked(tl, session, retain)
}

// applyLocked requires tl.mu.
func (ia *InsightsAggregatorService) applyLocked(tl *zoneTimeline, session models.DwellSession, retain bool) {
	week := models.WeekKeyFor(session.EnterTime, ia.loc)
	state := ia.bucket(session.ZoneID, week)

	state.mu.Lock()
	saturatedBefore := state.bucket.Saturated
	var satVisits, satDwell bool
	state.bucket.VisitCount, satVisits = saturatingAdd(state.bucket.VisitCount, 1)
	var total int64
	total, satDwell = saturatingAdd(int64(state.bucket.TotalDwell), int64(session.Duration))
	state.bucket.TotalDwell = time.Duration(total)
	if satVisits || satDwell {
		state.bucket.Saturated = true
	}
	flagged := state.bucket.Saturated && !saturatedBefore
	state.mu.Unlock()

	if flagged {
		ia.metrics.BucketSaturated()
		log.Printf("[InsightsAggregatorService] Bucket %s/%s saturated", session.ZoneID, week)
	}

	if retain {
		tl.sessions = append(tl.sessions, session)
		tl.pending = append(tl.pending, session)
	}

	enter, exit := session.EnterTime, session.ExitTime()
	for _, wk := range models.WeekKeysBetween(enter, exit, ia.loc) {
		start, end, err := models.WeekBounds(wk, ia.loc)
		if err != nil {
			continue
		}
		occ := tl.week(wk)
		if enter.Before(start) {
			occ.carry++
		} else {
			occ.enter(enter)
		}
		if exit.Before(end) {
			occ.leave(exit)
		}

		ia.bucketsMu.RLock()
		affected, ok := ia.buckets[bucketKey{session.ZoneID, wk}]
		ia.bucketsMu.RUnlock()
		if !ok {
			continue
		}
		peak := occ.peak()
		affected.mu.Lock()
		affected.bucket.PeakOccupancy = peak
		affected.mu.Unlock()
	}
}

// WeeklyInsights returns the bucket of (zone, week). ok is false when no
// session entered the zone that week, which is distinct from zero activity.
func (ia *InsightsAggregatorService) WeeklyInsights(zoneID, weekKey string) (insights.InsightBucket, bool) {
	ia.bucketsMu.RLock()
	state, ok := ia.buckets[bucketKey{zoneID, weekKey}]
	ia.bucketsMu.RUnlock()
	if !ok {
		return insights.InsightBucket{}, false
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	return state.bucket, true
}

// Buckets returns every bucket of a zone ordered by week.
func (ia *InsightsAggregatorService) Buckets(zoneID string) []insights.InsightBucket {
	var out []insights.InsightBucket
	for _, b := range ia.Snapshot() {
		if b.ZoneID == zoneID {
			out = append(out, b)
		}
	}
	return out
}

// Snapshot copies every bucket, ordered by zone then week.
func (ia *InsightsAggregatorService) Snapshot() []insights.InsightBucket {
	ia.bucketsMu.RLock()
	states := make([]*bucketState, 0, len(ia.buckets))
	for _, state := range ia.buckets {
		states = append(states, state)
	}
	ia.bucketsMu.RUnlock()

	out := make([]insights.InsightBucket, 0, len(states))
	for _, state := range states {
		state.mu.Lock()
		out = append(out, state.bucket)
		state.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ZoneID != out[j].ZoneID {
			return out[i].ZoneID < out[j].ZoneID
		}
		return out[i].WeekKey < out[j].WeekKey
	})
	return out
}

// Sessions returns the retained session log of a zone.
func (ia *InsightsAggregatorService) Sessions(zoneID string) []models.DwellSession {
	ia.zonesMu.RLock()
	tl, ok := ia.zones[zoneID]
	ia.zonesMu.RUnlock()
	if !ok {
		return nil
	}
	tl.mu.Lock()
	defer tl.mu.Unlock()
	return append([]models.DwellSession(nil), tl.sessions...)
}

// RebuildZone discards the zone's buckets and occupancy and re-aggregates
// them from restored snapshots and the retained session log. The zone lock
// is held throughout, so a concurrent session is either replayed or applied
// after the rebuild.
func (ia *InsightsAggregatorService) RebuildZone(zoneID string) int {
	tl := ia.timeline(zoneID)
	tl.mu.Lock()
	defer tl.mu.Unlock()

	sessions := tl.sessions
	ia.bucketsMu.Lock()
	for key := range ia.buckets {
		if key.zoneID == zoneID {
			delete(ia.buckets, key)
		}
	}
	ia.bucketsMu.Unlock()
	tl.weeks = nil

	for _, b := range tl.restored {
		ia.loadBucketLocked(tl, b)
	}
	for _, s := range sessions {
		ia.applyLocked(tl, s, false)
	}
	log.Printf("[InsightsAggregatorService] Rebuilt zone %s from %d sessions", zoneID, len(sessions))
	return len(sessions)
}

// Restore replays stored session logs and, for zones without a log, loads
// bucket snapshots as-is. A snapshot's peak stays a lower bound for its week
// since the sessions behind it are gone. Restored sessions are not marked
// pending.
func (ia *InsightsAggregatorService) Restore(sessionsByZone map[string][]models.DwellSession, buckets []insights.InsightBucket) {
	for zoneID, sessions := range sessionsByZone {
		tl := ia.timeline(zoneID)
		tl.mu.Lock()
		tl.sessions = append(tl.sessions, sessions...)
		for _, s := range sessions {
			ia.applyLocked(tl, s, false)
		}
		tl.mu.Unlock()
	}
	for _, b := range buckets {
		if _, replayed := sessionsByZone[b.ZoneID]; replayed {
			continue
		}
		tl := ia.timeline(b.ZoneID)
		tl.mu.Lock()
		tl.restored = append(tl.restored, b)
		ia.loadBucketLocked(tl, b)
		tl.mu.Unlock()
	}
}

// loadBucketLocked installs a snapshot bucket. Requires tl.mu.
func (ia *InsightsAggregatorService) loadBucketLocked(tl *zoneTimeline, b insights.InsightBucket) {
	occ := tl.week(b.WeekKey)
	occ.floor = max(occ.floor, b.PeakOccupancy)
	state := ia.bucket(b.ZoneID, b.WeekKey)
	state.mu.Lock()
	state.bucket = b
	state.mu.Unlock()
}

// DrainPending returns and clears sessions not yet flushed, per zone.
func (ia *InsightsAggregatorService) DrainPending() map[string][]models.DwellSession {
	ia.zonesMu.RLock()
	zones := make(map[string]*zoneTimeline, len(ia.zones))
	for id, tl := range ia.zones {
		zones[id] = tl
	}
	ia.zonesMu.RUnlock()

	out := make(map[string][]models.DwellSession)
	for id, tl := range zones {
		tl.mu.Lock()
		if len(tl.pending) > 0 {
			out[id] = tl.pending
			tl.pending = nil
		}
		tl.mu.Unlock()
	}
	return out
}

// RequeuePending puts sessions back after a failed flush.
func (ia *InsightsAggregatorService) RequeuePending(zoneID string, sessions []models.DwellSession) {
	tl := ia.timeline(zoneID)
	tl.mu.Lock()
	tl.pending = append(sessions, tl.pending...)
	tl.mu.Unlock()
}

func (ia *InsightsAggregatorService) bucket(zoneID, weekKey string) *bucketState {
	key := bucketKey{zoneID, weekKey}
	ia.bucketsMu.RLock()
	state, ok := ia.buckets[key]
	ia.bucketsMu.RUnlock()
	if ok {
		return state
	}
	ia.bucketsMu.Lock()
	defer ia.bucketsMu.Unlock()
	if state, ok := ia.buckets[key]; ok {
		return state
	}
	state = &bucketState{bucket: insights.InsightBucket{ZoneID: zoneID, WeekKey: weekKey}}
	ia.buckets[key] = state
	return state
}

func (ia *InsightsAggregatorService) timeline(zoneID string) *zoneTimeline {
	ia.zonesMu.RLock()
	tl, ok := ia.zones[zoneID]
	ia.zonesMu.RUnlock()
	if ok {
		return tl
	}
	ia.zonesMu.Lock()
	defer ia.zonesMu.Unlock()
	if tl, ok := ia.zones[zoneID]; ok {
		return tl
	}
	tl = &zoneTimeline{}
	ia.zones[zoneID] = tl
	return tl
}

// week returns the occupancy of weekKey, creating it. Requires tl.mu.
func (tl *zoneTimeline) week(weekKey string) *weekOccupancy {
	if tl.weeks == nil {
		tl.weeks = make(map[string]*weekOccupancy)
	}
	occ, ok := tl.weeks[weekKey]
	if !ok {
		occ = &weekOccupancy{}
		tl.weeks[weekKey] = occ
	}
	return occ
}

// saturatingAdd clamps at math.MaxInt64 and reports whether it clamped.
func saturatingAdd(a, b int64) (int64, bool) {
	if b > 0 && a > math.MaxInt64-b {
		return math.MaxInt64, true
	}
	return a + b, false
}
