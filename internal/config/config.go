// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Target    TargetConfig    `mapstructure:"target"`
	Search    SearchConfig    `mapstructure:"search"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Snapshot  SnapshotConfig  `mapstructure:"snapshot"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// TargetConfig names the tracked site and seeds its keyword set.
type TargetConfig struct {
	Domain   string   `mapstructure:"domain"`
	Keywords []string `mapstructure:"keywords"`
}

// SearchConfig holds the external search API credentials.
type SearchConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	APIKey         string `mapstructure:"api_key"`
	EngineID       string `mapstructure:"engine_id"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	PageSize       int    `mapstructure:"page_size"`
	PageDelayMs    int    `mapstructure:"page_delay_ms"`
	MaxCompetitors int    `mapstructure:"max_competitors"`
}

// SchedulerConfig governs batch partitioning and pacing.
type SchedulerConfig struct {
	ChunkSize             int `mapstructure:"chunk_size"`
	KeywordDelaySeconds   int `mapstructure:"keyword_delay_seconds"`
	ErrorDelaySeconds     int `mapstructure:"error_delay_seconds"`
	TimeBudgetSeconds     int `mapstructure:"time_budget_seconds"`
	SignificanceThreshold int `mapstructure:"significance_threshold"`
	BatchMaxPosition      int `mapstructure:"batch_max_position"`
	StatusWindowMinutes   int `mapstructure:"status_window_minutes"`
	CleanupMaxAgeDays     int `mapstructure:"cleanup_max_age_days"`
}

// StorageConfig selects the primary store backend.
type StorageConfig struct {
	Provider     string `mapstructure:"provider"`
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

// SnapshotConfig selects where raw observation payloads are archived.
type SnapshotConfig struct {
	Provider  string `mapstructure:"provider"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	LocalDir  string `mapstructure:"local_dir"`
	Prefix    string `mapstructure:"prefix"`
}

// NotifyConfig selects the change-alert sink.
type NotifyConfig struct {
	Provider  string `mapstructure:"provider"`
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// CacheConfig bounds the status response cache.
type CacheConfig struct {
	TTLSeconds int `mapstructure:"ttl_seconds"`
	MaxEntries int `mapstructure:"max_entries"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("RANKTRACKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("search.timeout_seconds", 15)
	v.SetDefault("search.page_size", 10)
	v.SetDefault("search.page_delay_ms", 50)
	v.SetDefault("search.max_competitors", 50)
	v.SetDefault("scheduler.chunk_size", 6)
	v.SetDefault("scheduler.keyword_delay_seconds", 8)
	v.SetDefault("scheduler.error_delay_seconds", 15)
	v.SetDefault("scheduler.time_budget_seconds", 50)
	v.SetDefault("scheduler.significance_threshold", 3)
	v.SetDefault("scheduler.batch_max_position", 30)
	v.SetDefault("scheduler.status_window_minutes", 120)
	v.SetDefault("scheduler.cleanup_max_age_days", 30)
	v.SetDefault("storage.provider", "memory")
	v.SetDefault("storage.max_open_conns", 8)
	v.SetDefault("snapshot.provider", "noop")
	v.SetDefault("snapshot.prefix", "observations")
	v.SetDefault("notify.provider", "log")
	v.SetDefault("cache.ttl_seconds", 15)
	v.SetDefault("cache.max_entries", 128)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if strings.TrimSpace(c.Target.Domain) == "" {
		return fmt.Errorf("target.domain is required")
	}
	if c.Scheduler.ChunkSize <= 0 {
		return fmt.Errorf("scheduler.chunk_size must be > 0")
	}
	if c.Scheduler.TimeBudgetSeconds <= 0 {
		return fmt.Errorf("scheduler.time_budget_seconds must be > 0")
	}
	switch c.Storage.Provider {
	case "memory":
	case "postgres":
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn must be set when storage.provider is postgres")
		}
	default:
		return fmt.Errorf("storage.provider must be memory or postgres")
	}
	switch c.Snapshot.Provider {
	case "noop", "memory":
	case "local":
		if c.Snapshot.LocalDir == "" {
			return fmt.Errorf("snapshot.local_dir must be set when snapshot.provider is local")
		}
	case "gcs":
		if c.Snapshot.GCSBucket == "" {
			return fmt.Errorf("snapshot.gcs_bucket must be set when snapshot.provider is gcs")
		}
	default:
		return fmt.Errorf("snapshot.provider must be noop, memory, local or gcs")
	}
	switch c.Notify.Provider {
	case "log":
	case "pubsub":
		if c.Notify.ProjectID == "" || c.Notify.TopicName == "" {
			return fmt.Errorf("notify.project_id and notify.topic_name must be set when notify.provider is pubsub")
		}
	default:
		return fmt.Errorf("notify.provider must be log or pubsub")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	return nil
}

// TimeBudget converts the scheduler budget into a duration.
func (c Config) TimeBudget() time.Duration {
	return time.Duration(c.Scheduler.TimeBudgetSeconds) * time.Second
}
