package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTuning(t *testing.T) {
	tuning := DefaultTuning()

	assert.Equal(t, 500*time.Millisecond, tuning.MirrorInterval)
	assert.Equal(t, 10*time.Second, tuning.ReconcileInterval)
	assert.Equal(t, 60*time.Second, tuning.AntiSnipingWindow)
	assert.Equal(t, 30*time.Second, tuning.AntiSnipingExtend)
	assert.Equal(t, []int{0}, tuning.AntiSnipingRounds)
}

func TestAntiSnipingEnabledFor(t *testing.T) {
	tuning := DefaultTuning()
	assert.True(t, tuning.AntiSnipingEnabledFor(0))
	assert.False(t, tuning.AntiSnipingEnabledFor(1))

	tuning.AntiSnipingRounds = []int{0, 2}
	assert.True(t, tuning.AntiSnipingEnabledFor(2))
	assert.False(t, tuning.AntiSnipingEnabledFor(1))
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("REDIS_ADDR", "redis.internal:6380")
	t.Setenv("MONGO_URI", "mongodb://mongo.internal:27017")
	t.Setenv("MONGO_DATABASE", "auctions")
	t.Setenv("PORT", "9999")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("GAVEL_TUNING_FILE", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "redis.internal:6380", cfg.RedisAddr)
	assert.Equal(t, "mongodb://mongo.internal:27017", cfg.MongoURI)
	assert.Equal(t, "auctions", cfg.MongoDatabase)
	assert.Equal(t, ":9999", cfg.ListenAddr)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, DefaultTuning(), cfg.Tuning)
}

func TestLoadTuningFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	data := []byte("reconcile_interval: 5s\nanti_sniping_rounds: [0, 1]\n")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	t.Setenv("GAVEL_TUNING_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.Tuning.ReconcileInterval)
	assert.Equal(t, []int{0, 1}, cfg.Tuning.AntiSnipingRounds)
	// Untouched knobs keep their defaults.
	assert.Equal(t, 500*time.Millisecond, cfg.Tuning.MirrorInterval)
}

func TestLoadTuningFileMissing(t *testing.T) {
	t.Setenv("GAVEL_TUNING_FILE", filepath.Join(t.TempDir(), "absent.yaml"))

	_, err := Load()
	assert.Error(t, err)
}
