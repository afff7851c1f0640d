package ingest

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/mj-112358/winkfinal/metrics"
)

// ReplayStats counts the outcome of a replay.
type ReplayStats struct {
	Accepted int
	Dropped  int
}

// Replay feeds JSON-lines detection records from r into the ingester in
// file order. Blank lines and lines starting with # are skipped.
func Replay(ctx context.Context, r io.Reader, ingester DetectionIngester, m *metrics.Metrics) (ReplayStats, error) {
	var stats ReplayStats
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ok, err := handleRecord(ctx, ingester, m, []byte(line))
		if err != nil {
			return stats, err
		}
		if ok {
			stats.Accepted++
		} else {
			stats.Dropped++
		}
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("failed reading detections: %w", err)
	}
	return stats, nil
}

// ReplayFile replays a JSON-lines fixture from disk.
func ReplayFile(ctx context.Context, path string, ingester DetectionIngester, m *metrics.Metrics) (ReplayStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return ReplayStats{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	stats, err := Replay(ctx, f, ingester, m)
	log.Printf("[DetectionIngest] Replayed %s: accepted=%d dropped=%d", path, stats.Accepted, stats.Dropped)
	return stats, err
}
