package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "data/atlas.db", cfg.DBPath)
	assert.Equal(t, "data/risk_atlas.geojson", cfg.AtlasPath)
	assert.Equal(t, JoinDrop, cfg.JoinPolicy)
	assert.Equal(t, 40.0, cfg.CloudThreshold)
	assert.Equal(t, 0.85, cfg.MinRSquared)
	assert.Equal(t, 0.5, cfg.FloodWeight)
	assert.Equal(t, 0.5, cfg.GWWeight)
	assert.Equal(t, 0.8, cfg.CriticalQuantile)
	assert.False(t, cfg.RemoteEnabled)
	assert.False(t, cfg.PublishEnabled())
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("JOIN_POLICY", "fill")
	t.Setenv("FLOOD_WEIGHT", "0.7")
	t.Setenv("GW_WEIGHT", "0.3")
	t.Setenv("CRITICAL_QUANTILE", "0.9")
	t.Setenv("KAFKA_BROKERS", "broker1:9092, broker2:9092")
	t.Setenv("REMOTE_TOKEN", "tok-123")
	t.Setenv("EXTRACT_START", "2020-06")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, JoinFill, cfg.JoinPolicy)
	assert.Equal(t, 0.7, cfg.FloodWeight)
	assert.Equal(t, 0.3, cfg.GWWeight)
	assert.Equal(t, 0.9, cfg.CriticalQuantile)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.RemoteEnabled)
	assert.True(t, cfg.PublishEnabled())
	assert.Equal(t, "2020-06", cfg.ExtractStart)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad log level", "LOG_LEVEL", "verbose"},
		{"bad log format", "LOG_FORMAT", "yaml"},
		{"bad join policy", "JOIN_POLICY", "interpolate"},
		{"cloud threshold over 100", "CLOUD_THRESHOLD", "150"},
		{"zero r-squared bound", "MIN_R_SQUARED", "0"},
		{"quantile at 1", "CRITICAL_QUANTILE", "1"},
		{"negative trend epsilon", "TREND_EPSILON", "-0.1"},
		{"bad extract start", "EXTRACT_START", "Jan 2021"},
		{"bad shutdown timeout", "SHUTDOWN_TIMEOUT", "soon"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.Error(t, err)
		})
	}
}

func TestLoad_WeightsMustSumToOne(t *testing.T) {
	t.Setenv("FLOOD_WEIGHT", "0.6")
	t.Setenv("GW_WEIGHT", "0.6")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sum to 1")
}

func TestLoad_RemoteEnabledRequiresToken(t *testing.T) {
	t.Setenv("REMOTE_ENABLED", "true")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REMOTE_TOKEN")
}

func TestParseYearMonth(t *testing.T) {
	ym, err := ParseYearMonth("2023-07")
	require.NoError(t, err)
	assert.Equal(t, 2023, ym.Year)
	assert.Equal(t, 7, ym.Month)

	_, err = ParseYearMonth("2023-13")
	require.Error(t, err)
}
