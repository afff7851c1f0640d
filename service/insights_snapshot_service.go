package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mj-112358/winkfinal/models"
	"github.com/mj-112358/winkfinal/models/insights"
)

// InsightsStore persists bucket snapshots and the per-zone session log.
type InsightsStore interface {
	SaveBuckets(buckets []insights.InsightBucket) error
	ListBuckets() ([]insights.InsightBucket, error)
	AppendSessions(zoneID string, sessions []models.DwellSession) error
	ListSessions(zoneID string) ([]models.DwellSession, error)
	ListSessionZoneIDs() ([]string, error)
}

// InsightsSnapshotService periodically flushes the aggregator to Redis and
// reloads it at startup.
type InsightsSnapshotService struct {
	aggregator *InsightsAggregatorService
	store      InsightsStore
}

func NewInsightsSnapshotService(aggregator *InsightsAggregatorService, store InsightsStore) *InsightsSnapshotService {
	return &InsightsSnapshotService{aggregator: aggregator, store: store}
}

// StartPeriodicJob launches the background flush loop at the given
// interval. A final flush runs when ctx is cancelled.
func (ss *InsightsSnapshotService) StartPeriodicJob(ctx context.Context, interval time.Duration) {
	go ss.startPeriodicJob(ctx, interval)
}

func (ss *InsightsSnapshotService) startPeriodicJob(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[InsightsSnapshotService] Stopping, running final flush.")
			if err := ss.Flush(); err != nil {
				log.Printf("[InsightsSnapshotService] Final flush failed: %v", err)
			}
			return
		case <-ticker.C:
			log.Println("[InsightsSnapshotService] Running periodic insights snapshot job.")
			if err := ss.Flush(); err != nil {
				log.Printf("[InsightsSnapshotService] Flush failed: %v", err)
			}
		}
	}
}

// Flush appends newly sealed sessions to the log and overwrites the bucket
// snapshots. Sessions that fail to append are requeued for the next run.
func (ss *InsightsSnapshotService) Flush() error {
	var firstErr error
	appended := 0
	for zoneID, sessions := range ss.aggregator.DrainPending() {
		if err := ss.store.AppendSessions(zoneID, sessions); err != nil {
			log.Printf("[InsightsSnapshotService] Failed appending %d sessions of zone %s: %v", len(sessions), zoneID, err)
			ss.aggregator.RequeuePending(zoneID, sessions)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		appended += len(sessions)
	}

	buckets := ss.aggregator.Snapshot()
	if err := ss.store.SaveBuckets(buckets); err != nil {
		log.Printf("[InsightsSnapshotService] Failed saving %d buckets: %v", len(buckets), err)
		if firstErr == nil {
			firstErr = err
		}
	} else {
		log.Printf("[InsightsSnapshotService] Flushed %d sessions and %d buckets", appended, len(buckets))
	}
	if firstErr != nil {
		return fmt.Errorf("[InsightsSnapshotService] flush incomplete: %w", firstErr)
	}
	return nil
}

// Restore reloads the aggregator from the store. Zones with a session log
// are re-aggregated from it; other zones load their bucket snapshots.
func (ss *InsightsSnapshotService) Restore() error {
	zoneIDs, err := ss.store.ListSessionZoneIDs()
	if err != nil {
		return fmt.Errorf("[InsightsSnapshotService] failed listing session logs: %w", err)
	}
	sessions := make(map[string][]models.DwellSession, len(zoneIDs))
	for _, zoneID := range zoneIDs {
		zoneLog, err := ss.store.ListSessions(zoneID)
		if err != nil {
			return fmt.Errorf("[InsightsSnapshotService] failed loading sessions of zone %s: %w", zoneID, err)
		}
		sessions[zoneID] = zoneLog
	}
	buckets, err := ss.store.ListBuckets()
	if err != nil {
		return fmt.Errorf("[InsightsSnapshotService] failed loading buckets: %w", err)
	}

	ss.aggregator.Restore(sessions, buckets)
	log.Printf("[InsightsSnapshotService] Restored %d zone logs and %d bucket snapshots", len(sessions), len(buckets))
	return nil
}
