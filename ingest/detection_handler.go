package ingest

import (
	"context"
	"errors"
	"log"

	"github.com/mj-112358/winkfinal/metrics"
	"github.com/mj-112358/winkfinal/models"
)

// DetectionIngester accepts decoded detections.
type DetectionIngester interface {
	Ingest(ctx context.Context, event models.DetectionEvent) error
}

// handleRecord decodes and ingests one record. It returns false when the
// record was dropped; only context errors are returned.
func handleRecord(ctx context.Context, ingester DetectionIngester, m *metrics.Metrics, raw []byte) (bool, error) {
	event, err := DecodeDetection(raw)
	if err != nil {
		m.DetectionDropped(metrics.DROP_DECODE)
		log.Printf("[DetectionIngest] Dropping record: %v", err)
		return false, nil
	}
	if err := ingester.Ingest(ctx, event); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return false, err
		}
		log.Printf("[DetectionIngest] Dropping %s: %v", event.ToString(), err)
		return false, nil
	}
	return true, nil
}
