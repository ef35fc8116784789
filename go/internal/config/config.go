package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full runtime configuration for the engine. Connection
// settings come from the environment; tuning knobs come from an optional
// YAML file overlaid on defaults.
type Config struct {
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	MongoURI        string
	MongoDatabase   string
	NATSURL         string
	ListenAddr      string
	ShutdownTimeout time.Duration

	Tuning Tuning
}

// Tuning holds the cadence and window knobs of the engine. Durations in the
// YAML file use Go notation ("500ms", "10s").
type Tuning struct {
	MirrorInterval     time.Duration
	ReconcileInterval  time.Duration
	TimeTickInterval   time.Duration
	SnapshotInterval   time.Duration
	SnapshotDedup      time.Duration
	AntiSnipingWindow  time.Duration
	AntiSnipingExtend  time.Duration
	AntiSnipingRounds  []int
	DeliveryDelay      time.Duration
	SchedulerWorkers   int
	SchedulerBatchSize int
}

// tuningYAML is the file representation; absent fields keep the values
// already present on the Tuning being unmarshaled into.
type tuningYAML struct {
	MirrorInterval     string `yaml:"mirror_interval"`
	ReconcileInterval  string `yaml:"reconcile_interval"`
	TimeTickInterval   string `yaml:"time_tick_interval"`
	SnapshotInterval   string `yaml:"snapshot_interval"`
	SnapshotDedup      string `yaml:"snapshot_dedup"`
	AntiSnipingWindow  string `yaml:"anti_sniping_window"`
	AntiSnipingExtend  string `yaml:"anti_sniping_extend"`
	AntiSnipingRounds  []int  `yaml:"anti_sniping_rounds"`
	DeliveryDelay      string `yaml:"delivery_delay"`
	SchedulerWorkers   int    `yaml:"scheduler_workers"`
	SchedulerBatchSize int    `yaml:"scheduler_batch_size"`
}

// UnmarshalYAML overlays file values onto the current tuning.
func (t *Tuning) UnmarshalYAML(value *yaml.Node) error {
	var raw tuningYAML
	if err := value.Decode(&raw); err != nil {
		return err
	}

	overlay := func(dst *time.Duration, s string) error {
		if s == "" {
			return nil
		}
		d, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("bad duration %q: %w", s, err)
		}
		*dst = d
		return nil
	}

	for _, item := range []struct {
		dst *time.Duration
		s   string
	}{
		{&t.MirrorInterval, raw.MirrorInterval},
		{&t.ReconcileInterval, raw.ReconcileInterval},
		{&t.TimeTickInterval, raw.TimeTickInterval},
		{&t.SnapshotInterval, raw.SnapshotInterval},
		{&t.SnapshotDedup, raw.SnapshotDedup},
		{&t.AntiSnipingWindow, raw.AntiSnipingWindow},
		{&t.AntiSnipingExtend, raw.AntiSnipingExtend},
		{&t.DeliveryDelay, raw.DeliveryDelay},
	} {
		if err := overlay(item.dst, item.s); err != nil {
			return err
		}
	}
	if raw.AntiSnipingRounds != nil {
		t.AntiSnipingRounds = raw.AntiSnipingRounds
	}
	if raw.SchedulerWorkers > 0 {
		t.SchedulerWorkers = raw.SchedulerWorkers
	}
	if raw.SchedulerBatchSize > 0 {
		t.SchedulerBatchSize = raw.SchedulerBatchSize
	}
	return nil
}

// DefaultTuning returns the production defaults.
func DefaultTuning() Tuning {
	return Tuning{
		MirrorInterval:     500 * time.Millisecond,
		ReconcileInterval:  10 * time.Second,
		TimeTickInterval:   100 * time.Millisecond,
		SnapshotInterval:   100 * time.Millisecond,
		SnapshotDedup:      100 * time.Millisecond,
		AntiSnipingWindow:  60 * time.Second,
		AntiSnipingExtend:  30 * time.Second,
		AntiSnipingRounds:  []int{0},
		DeliveryDelay:      15 * time.Second,
		SchedulerWorkers:   10,
		SchedulerBatchSize: 100,
	}
}

// AntiSnipingEnabledFor reports whether round idx participates in
// anti-sniping extensions.
func (t Tuning) AntiSnipingEnabledFor(idx int) bool {
	for _, r := range t.AntiSnipingRounds {
		if r == idx {
			return true
		}
	}
	return false
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// Load builds the configuration from the environment plus an optional tuning
// file pointed at by GAVEL_TUNING_FILE.
func Load() (*Config, error) {
	cfg := &Config{
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		RedisDB:         getEnvAsInt("REDIS_DB", 0),
		MongoURI:        getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:   getEnv("MONGO_DATABASE", "gavel"),
		NATSURL:         getEnv("NATS_URL", ""),
		ListenAddr:      fmt.Sprintf(":%s", getEnv("PORT", "8080")),
		ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
		Tuning:          DefaultTuning(),
	}

	if path := os.Getenv("GAVEL_TUNING_FILE"); path != "" {
		tuning, err := loadTuning(path, cfg.Tuning)
		if err != nil {
			return nil, err
		}
		cfg.Tuning = tuning
	}

	return cfg, nil
}

func loadTuning(path string, base Tuning) (Tuning, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("failed to read tuning file: %w", err)
	}
	if err := yaml.Unmarshal(data, &base); err != nil {
		return base, fmt.Errorf("failed to parse tuning file: %w", err)
	}
	if len(base.AntiSnipingRounds) == 0 {
		base.AntiSnipingRounds = []int{0}
	}
	return base, nil
}
