package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ServiceConfig holds environment-driven service wiring.
type ServiceConfig struct {
	Port             string
	ElasticsearchURL string
	LogLevel         string
	DataFiles        []string
	OutputDir        string
	AnalysisConfig   string
	RefreshCron      string

	CouchbaseURL      string
	CouchbaseUsername string
	CouchbasePassword string
	CouchbaseBucket   string
}

// LoadService reads service configuration from the environment.
func LoadService() ServiceConfig {
	return ServiceConfig{
		Port:             GetEnvOrDefault("API_PORT", "8080"),
		ElasticsearchURL: os.Getenv("ELASTICSEARCH_URL"),
		LogLevel:         GetEnvOrDefault("API_LOG_LEVEL", "info"),
		DataFiles:        splitList(GetEnvOrDefault("DATA_FILES", "data/appointments.csv")),
		OutputDir:        GetEnvOrDefault("OUTPUT_DIR", "output"),
		AnalysisConfig:   os.Getenv("ANALYSIS_CONFIG"),
		RefreshCron:      os.Getenv("ANALYSIS_REFRESH_CRON"),

		CouchbaseURL:      os.Getenv("COUCHBASE_URL"),
		CouchbaseUsername: GetEnvOrDefault("COUCHBASE_USERNAME", "network_user"),
		CouchbasePassword: GetEnvOrDefault("COUCHBASE_PASSWORD", "password"),
		CouchbaseBucket:   GetEnvOrDefault("COUCHBASE_BUCKET", "appointment-network"),
	}
}

// SamplingConfig bounds the number of rows entering the pipeline.
type SamplingConfig struct {
	MaxRecords int   `yaml:"max_records"`
	Seed       int64 `yaml:"seed"`
}

// PercentileConfig holds the tiering cutoffs applied to community risk scores.
type PercentileConfig struct {
	High float64 `yaml:"high"`
	Low  float64 `yaml:"low"`
}

// RiskThresholdConfig holds the raw risk-category thresholds applied to
// smoothed patient DNA rates.
type RiskThresholdConfig struct {
	High float64 `yaml:"high"`
	Low  float64 `yaml:"low"`
}

// PartitionerConfig selects the community detection backend.
type PartitionerConfig struct {
	Backend     string    `yaml:"backend"`
	Compare     bool      `yaml:"compare"`
	Backends    []string  `yaml:"backends"`
	Resolutions []float64 `yaml:"resolutions"`
}

// BackboneConfig controls the optional disparity edge filter.
type BackboneConfig struct {
	Enabled bool    `yaml:"enabled"`
	Alpha   float64 `yaml:"alpha"`
}

// AnalysisConfig holds every tunable of the analysis pipeline.
type AnalysisConfig struct {
	Sampling         SamplingConfig      `yaml:"sampling"`
	MinCommunitySize int                 `yaml:"min_community_size"`
	Percentiles      PercentileConfig    `yaml:"percentiles"`
	RiskThresholds   RiskThresholdConfig `yaml:"risk_thresholds"`
	Partitioner      PartitionerConfig   `yaml:"partitioner"`
	Backbone         BackboneConfig      `yaml:"backbone"`
}

// DefaultAnalysis returns the analysis defaults used when no file or
// environment override is present.
func DefaultAnalysis() AnalysisConfig {
	return AnalysisConfig{
		Sampling:         SamplingConfig{MaxRecords: 20000, Seed: 42},
		MinCommunitySize: 10,
		Percentiles:      PercentileConfig{High: 0.75, Low: 0.25},
		RiskThresholds:   RiskThresholdConfig{High: 0.3, Low: 0.1},
		Partitioner:      PartitionerConfig{Backend: "louvain", Resolutions: []float64{0.5, 1.0, 1.5, 2.0}},
		Backbone:         BackboneConfig{Enabled: false, Alpha: 0.05},
	}
}

// LoadAnalysis builds the analysis configuration from defaults, an optional
// YAML file and environment overrides, in that order.
func LoadAnalysis(path string) (AnalysisConfig, error) {
	cfg := DefaultAnalysis()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read analysis config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse analysis config %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects configurations the pipeline cannot honor.
func (c AnalysisConfig) Validate() error {
	if c.Sampling.MaxRecords < 0 {
		return fmt.Errorf("sampling.max_records must not be negative, got %d", c.Sampling.MaxRecords)
	}
	if c.MinCommunitySize < 1 {
		return fmt.Errorf("min_community_size must be at least 1, got %d", c.MinCommunitySize)
	}
	if c.Percentiles.Low < 0 || c.Percentiles.High > 1 || c.Percentiles.Low >= c.Percentiles.High {
		return fmt.Errorf("percentiles must satisfy 0 <= low < high <= 1, got low=%g high=%g",
			c.Percentiles.Low, c.Percentiles.High)
	}
	if c.RiskThresholds.Low >= c.RiskThresholds.High {
		return fmt.Errorf("risk_thresholds must satisfy low < high, got low=%g high=%g",
			c.RiskThresholds.Low, c.RiskThresholds.High)
	}
	if c.Backbone.Alpha <= 0 || c.Backbone.Alpha >= 1 {
		return fmt.Errorf("backbone.alpha must be in (0,1), got %g", c.Backbone.Alpha)
	}
	return nil
}

func applyEnvOverrides(cfg *AnalysisConfig) {
	cfg.Sampling.MaxRecords = getEnvAsInt("ANALYSIS_MAX_RECORDS", cfg.Sampling.MaxRecords)
	cfg.Sampling.Seed = getEnvAsInt64("ANALYSIS_SAMPLE_SEED", cfg.Sampling.Seed)
	cfg.MinCommunitySize = getEnvAsInt("ANALYSIS_MIN_COMMUNITY_SIZE", cfg.MinCommunitySize)
	cfg.Percentiles.High = getEnvAsFloat("ANALYSIS_PERCENTILE_HIGH", cfg.Percentiles.High)
	cfg.Percentiles.Low = getEnvAsFloat("ANALYSIS_PERCENTILE_LOW", cfg.Percentiles.Low)
	cfg.RiskThresholds.High = getEnvAsFloat("ANALYSIS_RISK_HIGH", cfg.RiskThresholds.High)
	cfg.RiskThresholds.Low = getEnvAsFloat("ANALYSIS_RISK_LOW", cfg.RiskThresholds.Low)
	cfg.Partitioner.Backend = GetEnvOrDefault("ANALYSIS_PARTITIONER", cfg.Partitioner.Backend)
	cfg.Backbone.Enabled = getEnvAsBool("ANALYSIS_BACKBONE", cfg.Backbone.Enabled)
	cfg.Backbone.Alpha = getEnvAsFloat("ANALYSIS_BACKBONE_ALPHA", cfg.Backbone.Alpha)

	if backends := os.Getenv("ANALYSIS_COMPARE_BACKENDS"); backends != "" {
		cfg.Partitioner.Compare = true
		cfg.Partitioner.Backends = splitList(backends)
	}
}

// GetEnvOrDefault returns the environment value for key, or defaultValue when
// unset or empty.
func GetEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
