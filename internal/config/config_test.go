package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ebita-intel/metrics-cli/internal/metric"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, 12, cfg.Fetch.TimeoutSecs)
	assert.Equal(t, 2, cfg.Fetch.RetryAttempts)
	assert.Equal(t, "zscore", cfg.Fetch.OutlierStrategy)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("METRICS_LOG_LEVEL", "debug")
	t.Setenv("METRICS_CACHE_BACKEND", "sqlite")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "sqlite", cfg.Cache.Backend)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	cfg.Log.Level = "verbose"
	assert.Error(t, cfg.Validate())

	cfg.Log.Level = "info"
	cfg.Fetch.OutlierStrategy = "trimmed-mean"
	assert.Error(t, cfg.Validate())

	cfg.Fetch.OutlierStrategy = "iqr"
	cfg.Server.Port = 0
	assert.Error(t, cfg.Validate())
}

func TestSourceSpecsMergeOverDefaults(t *testing.T) {
	cfg := &Config{Sources: map[string]SourceConfig{
		"yahoo": {Weight: 90, Reliability: 82, PerMinute: 10},
	}}

	specs := cfg.SourceSpecs()
	assert.Equal(t, 90, specs[metric.SourceYahoo].Weight)
	assert.Equal(t, 10, specs[metric.SourceYahoo].PerMinute)
	// untouched providers keep their built-in constants.
	assert.Equal(t, 120, specs[metric.SourceFMP].Weight)
}

func TestTTLDurations(t *testing.T) {
	cfg := &Config{Cache: CacheConfig{
		LiveTTLMinutes:     5,
		FundamentalTTLMins: 60,
		StructuralTTLMins:  1440,
	}}
	live, fundamental, structural := cfg.TTLDurations()
	assert.Equal(t, 5*time.Minute, live)
	assert.Equal(t, time.Hour, fundamental)
	assert.Equal(t, 24*time.Hour, structural)
}
