package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mj-112358/winkfinal/config"
	"github.com/mj-112358/winkfinal/di"
	"github.com/mj-112358/winkfinal/ingest"
)

func main() {
	configPath := flag.String("config", config.GetResourcePath(config.CONFIG_RESOURCE), "path to the YAML config file")
	replayPath := flag.String("replay", "", "JSON-lines detections file to replay at startup")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("[MAIN] Invalid configuration: %v", err)
	}

	container, err := di.NewContainer(cfg)
	if err != nil {
		log.Fatalf("[MAIN] Failed to initialize container: %v", err)
	}
	defer container.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Println("[MAIN] starting periodic jobs")
	container.OccupancyTrackerService.StartPeriodicJob(ctx, cfg.SweepInterval())
	container.InsightsSnapshotService.StartPeriodicJob(ctx, time.Duration(cfg.Insights.SnapshotScheduleMinutes)*time.Minute)

	replay := *replayPath
	if replay == "" {
		replay = cfg.ReplayFile
	}
	if replay != "" {
		if _, err := ingest.ReplayFile(ctx, replay, container.OccupancyTrackerService, container.Metrics); err != nil {
			log.Printf("[MAIN] Replay of %s stopped: %v", replay, err)
		}
	}

	if container.KafkaConsumer != nil {
		go func() {
			log.Printf("[MAIN] consuming detections from %s", container.KafkaConsumer)
			if err := container.KafkaConsumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("[MAIN] Kafka consumer stopped: %v", err)
			}
		}()
	}

	log.Println("[MAIN] starting server")
	if err := container.InsightsHttpServer.Start(ctx); err != nil {
		log.Printf("[MAIN] Server error: %v", err)
	}
	stop()

	// Sessions still open at this point are not sealed.
	if err := container.InsightsSnapshotService.Flush(); err != nil {
		log.Printf("[MAIN] Final insights flush failed: %v", err)
	}
	log.Println("[MAIN] server stopped")
}
