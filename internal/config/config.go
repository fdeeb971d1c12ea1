package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

// JoinPolicy declares how fusion treats a block-period present in one
// variable table but absent in another.
type JoinPolicy string

const (
	// JoinDrop excludes the block-period from the fused output.
	JoinDrop JoinPolicy = "drop"
	// JoinFill keeps every rainfall block-period and leaves derived
	// features undefined where a secondary variable is missing.
	JoinFill JoinPolicy = "fill"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Input artifacts.
	BoundariesPath   string // block boundary GeoJSON
	CSVDir           string // pre-exported per-variable climate CSVs
	BaselinePath     string // long-term-average rainfall reference CSV
	FloodTargetsPath string // flood-extent proxy training targets
	GWTargetsPath    string // groundwater proxy training targets

	// Intermediate + output artifacts.
	DBPath    string
	AtlasPath string

	// Remote extraction platform (feature-flagged; CSVDir is used when disabled).
	RemoteEnabled   bool
	RemoteBaseURL   string
	RemoteToken     string
	RemoteTimeout   time.Duration
	RemoteCacheSize int
	ExtractStart    string // inclusive, YYYY-MM
	ExtractEnd      string // inclusive, YYYY-MM
	CloudThreshold  float64

	// Fusion policy.
	JoinPolicy JoinPolicy

	// Modeling.
	MinRSquared float64

	// Composite scoring. Weights must sum to 1.
	FloodWeight      float64
	GWWeight         float64
	CriticalQuantile float64
	TrendEpsilon     float64

	// Optional risk-event publishing.
	KafkaBrokers []string
	KafkaTopic   string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	remoteTimeout, err := getEnvDuration("REMOTE_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}

	remoteToken := os.Getenv("REMOTE_TOKEN")
	remoteEnabled := remoteToken != ""
	if v := os.Getenv("REMOTE_ENABLED"); v != "" {
		remoteEnabled = v == "true"
	}

	cfg := &Config{
		HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFormat:       getEnv("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		BoundariesPath:   getEnv("BOUNDARIES_PATH", "data/block_boundaries.geojson"),
		CSVDir:           getEnv("CSV_DIR", "data/extracted"),
		BaselinePath:     getEnv("BASELINE_PATH", "data/rainfall_lta.csv"),
		FloodTargetsPath: getEnv("FLOOD_TARGETS_PATH", "data/flood_proxy.csv"),
		GWTargetsPath:    getEnv("GW_TARGETS_PATH", "data/gw_proxy.csv"),

		DBPath:    getEnv("DB_PATH", "data/atlas.db"),
		AtlasPath: getEnv("ATLAS_PATH", "data/risk_atlas.geojson"),

		RemoteEnabled:   remoteEnabled,
		RemoteBaseURL:   getEnv("REMOTE_BASE_URL", "https://rs.example.com/v1"),
		RemoteToken:     remoteToken,
		RemoteTimeout:   remoteTimeout,
		RemoteCacheSize: getEnvInt("REMOTE_CACHE_SIZE", 1000),
		ExtractStart:    getEnv("EXTRACT_START", "2021-01"),
		ExtractEnd:      getEnv("EXTRACT_END", "2025-12"),
		CloudThreshold:  getEnvFloat("CLOUD_THRESHOLD", 40),

		JoinPolicy: JoinPolicy(getEnv("JOIN_POLICY", string(JoinDrop))),

		MinRSquared: getEnvFloat("MIN_R_SQUARED", 0.85),

		FloodWeight:      getEnvFloat("FLOOD_WEIGHT", 0.5),
		GWWeight:         getEnvFloat("GW_WEIGHT", 0.5),
		CriticalQuantile: getEnvFloat("CRITICAL_QUANTILE", 0.8),
		TrendEpsilon:     getEnvFloat("TREND_EPSILON", 1e-3),

		KafkaBrokers: splitNonEmpty(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "block-risk-scores"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// PublishEnabled reports whether scored blocks should be published to Kafka.
func (c *Config) PublishEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func (c *Config) validate() error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s", c.LogLevel)
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return fmt.Errorf("invalid log format: %s", c.LogFormat)
	}
	if c.JoinPolicy != JoinDrop && c.JoinPolicy != JoinFill {
		return fmt.Errorf("invalid join policy: %s", c.JoinPolicy)
	}
	if c.CloudThreshold < 0 || c.CloudThreshold > 100 {
		return fmt.Errorf("cloud threshold must be a percentage: %g", c.CloudThreshold)
	}
	if c.MinRSquared <= 0 || c.MinRSquared > 1 {
		return fmt.Errorf("R-squared bound must be in (0,1]: %g", c.MinRSquared)
	}
	if c.CriticalQuantile <= 0 || c.CriticalQuantile >= 1 {
		return fmt.Errorf("critical quantile must be in (0,1): %g", c.CriticalQuantile)
	}
	if c.FloodWeight < 0 || c.GWWeight < 0 {
		return errors.New("compound weights must be non-negative")
	}
	if math.Abs(c.FloodWeight+c.GWWeight-1) > 1e-9 {
		return fmt.Errorf("compound weights must sum to 1, got %g + %g", c.FloodWeight, c.GWWeight)
	}
	if c.TrendEpsilon < 0 {
		return fmt.Errorf("trend epsilon must be non-negative: %g", c.TrendEpsilon)
	}
	if _, err := ParseYearMonth(c.ExtractStart); err != nil {
		return fmt.Errorf("invalid EXTRACT_START: %w", err)
	}
	if _, err := ParseYearMonth(c.ExtractEnd); err != nil {
		return fmt.Errorf("invalid EXTRACT_END: %w", err)
	}
	if c.RemoteEnabled && c.RemoteToken == "" {
		return errors.New("REMOTE_ENABLED is true but REMOTE_TOKEN is not set")
	}
	return nil
}

// YearMonth is a parsed YYYY-MM date-range bound.
type YearMonth struct {
	Year  int
	Month int
}

// ParseYearMonth parses a strict YYYY-MM string.
func ParseYearMonth(s string) (YearMonth, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return YearMonth{}, fmt.Errorf("parse year-month %q: %w", s, err)
	}
	return YearMonth{Year: t.Year(), Month: int(t.Month())}, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, val)
	}
	return d, nil
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
