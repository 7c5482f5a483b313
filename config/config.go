package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"tickflow/models"
)

type Config struct {
	Tickflow  TickflowConfig  `yaml:"tickflow"`
	Channels  ChannelsConfig  `yaml:"channels"`
	API       APIConfig       `yaml:"api"`
	Feed      FeedConfig      `yaml:"feed"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type TickflowConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type ChannelsConfig struct {
	RawBuffer int `yaml:"raw_buffer"`
}

type APIConfig struct {
	BaseURL         string        `yaml:"base_url"`
	Timeout         time.Duration `yaml:"timeout"`
	HistoricalLimit int           `yaml:"historical_limit"`
	MaxRetries      int           `yaml:"max_retries"`
}

type FeedConfig struct {
	URL                 string          `yaml:"url"`
	PingInterval        time.Duration   `yaml:"ping_interval"`
	Reconnect           ReconnectConfig `yaml:"reconnect"`
	PollInterval        time.Duration   `yaml:"poll_interval"`
	PollRateLimit       RateLimitConfig `yaml:"poll_rate_limit"`
	StreamRetryInterval time.Duration   `yaml:"stream_retry_interval"`
}

type ReconnectConfig struct {
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
	MaxAttempts int           `yaml:"max_attempts"`
	Jitter      float64       `yaml:"jitter"`
}

type RateLimitConfig struct {
	RequestsPerSecond int `yaml:"requests_per_second"`
	BurstSize         int `yaml:"burst_size"`
}

type PipelineConfig struct {
	RollingWindow int           `yaml:"rolling_window"`
	Timeframe     string        `yaml:"timeframe"`
	StatsInterval time.Duration `yaml:"stats_interval"`
	SampleWindow  int           `yaml:"sample_window"`
}

type MetricsConfig struct {
	Prometheus bool             `yaml:"prometheus"`
	CloudWatch CloudWatchConfig `yaml:"cloudwatch"`
}

type CloudWatchConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Region    string `yaml:"region"`
	Namespace string `yaml:"namespace"`
}

type DashboardConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

func LoadConfig(path string) (*Config, error) {
	// Read configuration file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := defaults()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Override settings from environment variables if available
	if v := os.Getenv("TICKFLOW_API_URL"); v != "" {
		config.API.BaseURL = strings.TrimSpace(v)
	}
	if v := os.Getenv("TICKFLOW_FEED_URL"); v != "" {
		config.Feed.URL = strings.TrimSpace(v)
	}
	if config.Metrics.CloudWatch.Enabled {
		if v := os.Getenv("AWS_REGION"); v != "" {
			config.Metrics.CloudWatch.Region = strings.TrimSpace(v)
		}
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

func defaults() *Config {
	return &Config{
		Channels: ChannelsConfig{RawBuffer: 1000},
		API: APIConfig{
			Timeout:         10 * time.Second,
			HistoricalLimit: 1000,
			MaxRetries:      3,
		},
		Feed: FeedConfig{
			PingInterval: 20 * time.Second,
			Reconnect: ReconnectConfig{
				BaseDelay:   time.Second,
				MaxDelay:    30 * time.Second,
				MaxAttempts: 5,
				Jitter:      0.5,
			},
			PollInterval:        2 * time.Second,
			PollRateLimit:       RateLimitConfig{RequestsPerSecond: 5, BurstSize: 5},
			StreamRetryInterval: 30 * time.Second,
		},
		Pipeline: PipelineConfig{
			RollingWindow: 500,
			Timeframe:     "1m",
			StatsInterval: 500 * time.Millisecond,
			SampleWindow:  100,
		},
		Logging: LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Tickflow.Name == "" {
		return fmt.Errorf("tickflow.name is required")
	}

	if cfg.Tickflow.Version == "" {
		return fmt.Errorf("tickflow.version is required")
	}

	if cfg.Channels.RawBuffer <= 0 {
		return fmt.Errorf("channels.raw_buffer must be greater than 0")
	}

	if cfg.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if cfg.API.Timeout <= 0 {
		return fmt.Errorf("api.timeout must be greater than 0")
	}
	if cfg.API.HistoricalLimit <= 0 {
		return fmt.Errorf("api.historical_limit must be greater than 0")
	}

	if cfg.Feed.URL == "" {
		return fmt.Errorf("feed.url is required")
	}
	if cfg.Feed.Reconnect.BaseDelay <= 0 {
		return fmt.Errorf("feed.reconnect.base_delay must be greater than 0")
	}
	if cfg.Feed.Reconnect.MaxDelay < cfg.Feed.Reconnect.BaseDelay {
		return fmt.Errorf("feed.reconnect.max_delay must be at least feed.reconnect.base_delay")
	}
	if cfg.Feed.Reconnect.MaxAttempts <= 0 {
		return fmt.Errorf("feed.reconnect.max_attempts must be greater than 0")
	}
	if cfg.Feed.Reconnect.Jitter < 0 || cfg.Feed.Reconnect.Jitter > 1 {
		return fmt.Errorf("feed.reconnect.jitter must be between 0 and 1")
	}
	if cfg.Feed.PollInterval <= 0 {
		return fmt.Errorf("feed.poll_interval must be greater than 0")
	}
	if cfg.Feed.StreamRetryInterval <= 0 {
		return fmt.Errorf("feed.stream_retry_interval must be greater than 0")
	}

	if cfg.Pipeline.RollingWindow <= 0 {
		return fmt.Errorf("pipeline.rolling_window must be greater than 0")
	}
	if _, err := models.ParseTimeframe(cfg.Pipeline.Timeframe); err != nil {
		return fmt.Errorf("pipeline.timeframe: %w", err)
	}
	if cfg.Pipeline.StatsInterval <= 0 {
		return fmt.Errorf("pipeline.stats_interval must be greater than 0")
	}
	if cfg.Pipeline.SampleWindow <= 0 {
		return fmt.Errorf("pipeline.sample_window must be greater than 0")
	}

	if cfg.Metrics.CloudWatch.Enabled && cfg.Metrics.CloudWatch.Namespace == "" {
		return fmt.Errorf("metrics.cloudwatch.namespace is required when CloudWatch is enabled")
	}

	if cfg.Dashboard.Enabled && cfg.Dashboard.Address == "" {
		return fmt.Errorf("dashboard.address is required when the dashboard is enabled")
	}

	return nil
}
