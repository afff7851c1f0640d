package di

import (
	"context"
	"fmt"
	"log"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"

	"github.com/mj-112358/winkfinal/api"
	"github.com/mj-112358/winkfinal/api/stores"
	"github.com/mj-112358/winkfinal/config"
	"github.com/mj-112358/winkfinal/dao/redis"
	"github.com/mj-112358/winkfinal/db"
	"github.com/mj-112358/winkfinal/emitter"
	"github.com/mj-112358/winkfinal/geometry"
	"github.com/mj-112358/winkfinal/ingest"
	"github.com/mj-112358/winkfinal/metrics"
	"github.com/mj-112358/winkfinal/server"
	"github.com/mj-112358/winkfinal/server/handlers"
	services "github.com/mj-112358/winkfinal/service"
	"github.com/mj-112358/winkfinal/util"
)

const PROD_ENV = "prod"

// Container holds all application dependencies.
type Container struct {
	Config                  *config.Config
	RedisClient             db.RedisClient
	RedisZoneDao            *redis.RedisZoneDAO
	RedisInsightsDao        *redis.RedisInsightsDAO
	RedisCalendarDao        *redis.RedisCalendarDAO
	Metrics                 *metrics.Metrics
	StoreDirectory          stores.StoreDirectory
	ZoneRegistryService     *services.ZoneRegistryService
	OccupancyTrackerService *services.OccupancyTrackerService
	InsightsAggregator      *services.InsightsAggregatorService
	CalendarOverlayService  *services.CalendarOverlayService
	InsightsQueryService    *services.InsightsQueryService
	EventImpactService      *services.EventImpactService
	SpikeDetectorService    *services.SpikeDetectorService
	InsightsSnapshotService *services.InsightsSnapshotService
	SessionEmitter          *emitter.MQTTSessionEmitter
	KafkaConsumer           *ingest.KafkaDetectionConsumer
	MuxRouter               *mux.Router
	Router                  *server.Router
	InsightsHttpServer      *server.InsightsHttpServer
}

// NewContainer initializes and wires up all dependencies. Outside prod the
// Redis client and the store directory are in-memory mocks.
func NewContainer(cfg *config.Config) (*Container, error) {
	log.Printf("initializing container - env: %s", cfg.Env)
	ctx := context.Background()

	// Initialize Redis client
	var redisClient db.RedisClient
	if cfg.Env != PROD_ENV {
		log.Printf("Using mock redis client")
		redisClient = db.NewMockRedisClient(ctx)
	} else {
		redisInternalClient := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		redisClient = db.NewGoRedisClient(ctx, redisInternalClient)
	}
	if err := redisClient.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	// Initialize DAOs
	zoneDao := redis.NewRedisZoneDAO(redisClient)
	insightsDao := redis.NewRedisInsightsDAO(redisClient)
	calendarDao := redis.NewRedisCalendarDAO(redisClient)

	m := metrics.NewMetrics()

	// Initialize store directory - static mapping outside prod
	var storeDirectory stores.StoreDirectory
	if cfg.Env != PROD_ENV {
		log.Printf("Using mock store directory")
		storeDirectory = stores.NewStoreDirectoryClientMock(cfg.Stores)
	} else {
		log.Printf("Using store directory at %s", cfg.StoreDirectory.BaseURL)
		storeDirectory = stores.NewStoreDirectoryClient(api.NewHTTPClient(cfg.StoreDirectory.BaseURL))
	}

	// Zone registry, seeded with configured zones it does not know yet
	registry := services.NewZoneRegistryService(zoneDao)
	if err := registry.Load(); err != nil {
		return nil, fmt.Errorf("failed to load zones: %w", err)
	}
	if err := seedZones(registry, cfg); err != nil {
		return nil, err
	}

	calendarSeed := cfg.Calendar
	if cfg.CalendarFile != "" {
		fromFile, err := util.ReadCalendarFromFile(cfg.CalendarFile)
		if err != nil {
			return nil, err
		}
		calendarSeed = append(calendarSeed, fromFile...)
	}
	calendar := services.NewCalendarOverlayService(calendarDao)
	if err := calendar.Load(calendarSeed); err != nil {
		return nil, fmt.Errorf("failed to load calendar: %w", err)
	}

	loc := cfg.Location()
	aggregator := services.NewInsightsAggregatorService(loc, m)
	snapshot := services.NewInsightsSnapshotService(aggregator, insightsDao)
	if err := snapshot.Restore(); err != nil {
		return nil, fmt.Errorf("failed to restore insights: %w", err)
	}

	tracker := services.NewOccupancyTrackerService(registry, geometry.NewResolver(0), cfg.DwellTimeout(), m)
	tracker.AddSink("aggregator", aggregator)
	tracker.SetLiveCountStore(insightsDao)

	var sessionEmitter *emitter.MQTTSessionEmitter
	if cfg.MQTT.Broker != "" {
		client, err := emitter.NewMQTTClient(cfg.MQTT.Broker, cfg.MQTT.ClientID)
		if err != nil {
			log.Printf("[Container] MQTT emitter disabled: %v", err)
		} else {
			sessionEmitter = emitter.NewMQTTSessionEmitter(client, cfg.MQTT.TopicFormat)
			tracker.AddSink("mqtt", sessionEmitter)
		}
	}

	var consumer *ingest.KafkaDetectionConsumer
	if len(cfg.Kafka.Brokers) > 0 {
		c, err := ingest.NewKafkaDetectionConsumer(ingest.KafkaConsumerConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
			GroupID: cfg.Kafka.GroupID,
		}, tracker, m)
		if err != nil {
			return nil, fmt.Errorf("failed to create kafka consumer: %w", err)
		}
		consumer = c
	}

	query := services.NewInsightsQueryService(storeDirectory, registry, aggregator, calendar, loc)
	impact := services.NewEventImpactService(calendar, aggregator, cfg.Insights.ImpactBaselineWeeks, loc)
	spikes := services.NewSpikeDetectorService(aggregator, cfg.Insights.SpikeBaselineWeeks)

	// Initialize handlers
	zoneHandler := handlers.NewZoneHandler(registry, aggregator)
	insightsHandler := handlers.NewInsightsHandler(query, spikes, loc)
	calendarHandler := handlers.NewCalendarHandler(calendar, impact)
	occupancyHandler := handlers.NewOccupancyHandler(tracker)

	// Initialize mux router
	muxRouter := mux.NewRouter()

	// Initialize router
	router := server.NewRouter(zoneHandler, insightsHandler, calendarHandler, occupancyHandler, m.Handler(), muxRouter)

	// Initialize insights server
	httpServer := server.NewInsightsHttpServer(
		router,
		muxRouter,
		cfg.HTTP.Address,
		time.Duration(cfg.HTTP.ShutdownTimeoutSeconds)*time.Second,
	)

	return &Container{
		Config:                  cfg,
		RedisClient:             redisClient,
		RedisZoneDao:            zoneDao,
		RedisInsightsDao:        insightsDao,
		RedisCalendarDao:        calendarDao,
		Metrics:                 m,
		StoreDirectory:          storeDirectory,
		ZoneRegistryService:     registry,
		OccupancyTrackerService: tracker,
		InsightsAggregator:      aggregator,
		CalendarOverlayService:  calendar,
		InsightsQueryService:    query,
		EventImpactService:      impact,
		SpikeDetectorService:    spikes,
		InsightsSnapshotService: snapshot,
		SessionEmitter:          sessionEmitter,
		KafkaConsumer:           consumer,
		MuxRouter:               muxRouter,
		Router:                  router,
		InsightsHttpServer:      httpServer,
	}, nil
}

// Close releases the Kafka reader and the MQTT connection. Call after the
// tracker has been swept and the snapshot flushed.
func (c *Container) Close() {
	if c.KafkaConsumer != nil {
		if err := c.KafkaConsumer.Close(); err != nil {
			log.Printf("[Container] Failed to close kafka consumer: %v", err)
		}
	}
	if c.SessionEmitter != nil {
		c.SessionEmitter.Close()
	}
}

// seedZones registers configured zones the registry has never seen. Zones
// already known are left alone so restarts do not mint new versions.
func seedZones(registry *services.ZoneRegistryService, cfg *config.Config) error {
	seed := cfg.Zones
	if cfg.ZonesFile != "" {
		fromFile, err := util.ReadZonesFromFile(cfg.ZonesFile)
		if err != nil {
			return err
		}
		seed = append(seed, fromFile...)
	}
	for _, z := range seed {
		if z.ID != "" {
			if _, ok := registry.LatestVersion(z.CameraID, z.ID); ok {
				continue
			}
		}
		id, err := registry.RegisterZone(z)
		if err != nil {
			return fmt.Errorf("failed to seed zone %q on camera %q: %w", z.ID, z.CameraID, err)
		}
		log.Printf("[Container] Seeded zone %s on camera %s", id, z.CameraID)
	}
	return nil
}
