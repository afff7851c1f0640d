package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/mj-112358/winkfinal/models"
	"github.com/mj-112358/winkfinal/models/zone"
)

// Redis Config
const REDIS_DB_ADDRESS = "redis:6379"
const REDIS_DB_PASSWORD = ""
const REDIS_DB = 0

// HTTP server
const HTTP_LISTEN_ADDRESS = ":8080"
const HTTP_SHUTDOWN_TIMEOUT_SECONDS = 5

// Occupancy tracker config
const DWELL_TIMEOUT_SECONDS = 30
const SWEEP_INTERVAL_SECONDS = 5

// Insights config
const INSIGHTS_SNAPSHOT_SCHEDULE_MINUTES = 5
const INSIGHTS_TIMEZONE = "UTC"
const IMPACT_BASELINE_WEEKS = 2
const SPIKE_BASELINE_WEEKS = 4

// Detection ingest (Kafka)
const KAFKA_DETECTIONS_TOPIC = "wink.detections"
const KAFKA_CONSUMER_GROUP = "wink-insights"

// Session emitter (MQTT)
const MQTT_CLIENT_ID = "wink-insights"
const MQTT_SESSIONS_TOPIC_FORMAT = "wink/sessions/%s"

// Store directory API
const STORE_DIRECTORY_ENDPOINT_BASE_V1 = "http://store-directory:8000/api/v1"

// Resources file paths
const RESOURCES_PATH_PREFIX = "resources"
const CONFIG_RESOURCE = "wink.yaml"
const DETECTIONS_REPLAY_RESOURCE = "detections.jsonl"

// Config is the runtime configuration. Defaults come from the constants
// above, then the YAML file, then environment variables.
type Config struct {
	Env string `yaml:"env"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	HTTP struct {
		Address                string `yaml:"address"`
		ShutdownTimeoutSeconds int    `yaml:"shutdown_timeout_seconds"`
	} `yaml:"http"`

	Tracker struct {
		DwellTimeoutSeconds  int `yaml:"dwell_timeout_seconds"`
		SweepIntervalSeconds int `yaml:"sweep_interval_seconds"`
	} `yaml:"tracker"`

	Insights struct {
		Timezone                string `yaml:"timezone"`
		SnapshotScheduleMinutes int    `yaml:"snapshot_schedule_minutes"`
		ImpactBaselineWeeks     int    `yaml:"impact_baseline_weeks"`
		SpikeBaselineWeeks      int    `yaml:"spike_baseline_weeks"`
	} `yaml:"insights"`

	Kafka struct {
		Brokers []string `yaml:"brokers"`
		Topic   string   `yaml:"topic"`
		GroupID string   `yaml:"group_id"`
	} `yaml:"kafka"`

	MQTT struct {
		Broker      string `yaml:"broker"`
		ClientID    string `yaml:"client_id"`
		TopicFormat string `yaml:"topic_format"`
	} `yaml:"mqtt"`

	StoreDirectory struct {
		BaseURL string `yaml:"base_url"`
	} `yaml:"store_directory"`

	// Seed data, applied at startup in non-prod environments and whenever
	// the registry is empty.
	Stores   map[string][]string         `yaml:"stores"`
	Zones    []zone.Zone                 `yaml:"zones"`
	Calendar []models.CalendarAnnotation `yaml:"calendar"`

	// Optional JSON or YAML files appended to the inline seeds.
	ZonesFile    string `yaml:"zones_file"`
	CalendarFile string `yaml:"calendar_file"`

	ReplayFile string `yaml:"replay_file"`
}

// Default returns a Config populated from the package constants.
func Default() *Config {
	cfg := &Config{Env: "dev"}
	cfg.Redis.Address = REDIS_DB_ADDRESS
	cfg.Redis.Password = REDIS_DB_PASSWORD
	cfg.Redis.DB = REDIS_DB
	cfg.HTTP.Address = HTTP_LISTEN_ADDRESS
	cfg.HTTP.ShutdownTimeoutSeconds = HTTP_SHUTDOWN_TIMEOUT_SECONDS
	cfg.Tracker.DwellTimeoutSeconds = DWELL_TIMEOUT_SECONDS
	cfg.Tracker.SweepIntervalSeconds = SWEEP_INTERVAL_SECONDS
	cfg.Insights.Timezone = INSIGHTS_TIMEZONE
	cfg.Insights.SnapshotScheduleMinutes = INSIGHTS_SNAPSHOT_SCHEDULE_MINUTES
	cfg.Insights.ImpactBaselineWeeks = IMPACT_BASELINE_WEEKS
	cfg.Insights.SpikeBaselineWeeks = SPIKE_BASELINE_WEEKS
	cfg.Kafka.Topic = KAFKA_DETECTIONS_TOPIC
	cfg.Kafka.GroupID = KAFKA_CONSUMER_GROUP
	cfg.MQTT.ClientID = MQTT_CLIENT_ID
	cfg.MQTT.TopicFormat = MQTT_SESSIONS_TOPIC_FORMAT
	cfg.StoreDirectory.BaseURL = STORE_DIRECTORY_ENDPOINT_BASE_V1
	return cfg
}

// Load reads .env (if present), the YAML file at path (if it exists) and
// environment overrides, then validates the result.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("[Config] No .env file found, using environment variables")
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %q: %w", path, err)
			}
			log.Printf("[Config] Loaded %s", path)
		case os.IsNotExist(err):
			log.Printf("[Config] Config file %s not found, using defaults", path)
		default:
			return nil, fmt.Errorf("failed to read config %q: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("WINK_ENV"); v != "" {
		cfg.Env = v
	}
	if v := os.Getenv("REDIS_ADDRESS"); v != "" {
		cfg.Redis.Address = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("HTTP_ADDRESS"); v != "" {
		cfg.HTTP.Address = v
	}
	if v, ok := envInt("DWELL_TIMEOUT_SECONDS"); ok {
		cfg.Tracker.DwellTimeoutSeconds = v
	}
	if v, ok := envInt("SWEEP_INTERVAL_SECONDS"); ok {
		cfg.Tracker.SweepIntervalSeconds = v
	}
	if v := os.Getenv("INSIGHTS_TIMEZONE"); v != "" {
		cfg.Insights.Timezone = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("MQTT_BROKER"); v != "" {
		cfg.MQTT.Broker = v
	}
	if v := os.Getenv("STORE_DIRECTORY_URL"); v != "" {
		cfg.StoreDirectory.BaseURL = v
	}
}

func envInt(name string) (int, bool) {
	v := os.Getenv(name)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[Config] Ignoring %s=%q: %v", name, v, err)
		return 0, false
	}
	return n, true
}

// Validate rejects settings the engine cannot run with. Seed zones and
// calendar entries are validated by their own registries.
func (c *Config) Validate() error {
	if c.Tracker.DwellTimeoutSeconds <= 0 {
		return models.NewConfigError("tracker.dwell_timeout_seconds", "must be positive, got %d", c.Tracker.DwellTimeoutSeconds)
	}
	if c.Tracker.SweepIntervalSeconds <= 0 {
		return models.NewConfigError("tracker.sweep_interval_seconds", "must be positive, got %d", c.Tracker.SweepIntervalSeconds)
	}
	if c.Insights.SnapshotScheduleMinutes <= 0 {
		return models.NewConfigError("insights.snapshot_schedule_minutes", "must be positive, got %d", c.Insights.SnapshotScheduleMinutes)
	}
	if _, err := time.LoadLocation(c.Insights.Timezone); err != nil {
		return models.NewConfigError("insights.timezone", "%v", err)
	}
	return nil
}

// DwellTimeout returns the tracker timeout as a duration.
func (c *Config) DwellTimeout() time.Duration {
	return time.Duration(c.Tracker.DwellTimeoutSeconds) * time.Second
}

// SweepInterval returns the sweep schedule as a duration.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Tracker.SweepIntervalSeconds) * time.Second
}

// Location returns the time zone used to assign sessions to weeks.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Insights.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// BaseDir returns the absolute path of the project root directory
func BaseDir() string {
	// Check if PROJECT_ROOT is set
	if root := os.Getenv("PROJECT_ROOT"); root != "" {
		return root
	}

	// Default to the current working directory
	wd, err := os.Getwd()
	if err != nil {
		panic("Unable to determine working directory: " + err.Error())
	}

	return wd
}

func GetResourcePath(resource_file string) string {
	return filepath.Join(BaseDir(), RESOURCES_PATH_PREFIX, resource_file)
}
