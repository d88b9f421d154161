package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for our application
type Config struct {
	Grafana  GrafanaConfig  `mapstructure:"grafana"`
	Metrics  []MetricConfig `mapstructure:"metrics"`
	Database DatabaseConfig `mapstructure:"database"`
	Sync     SyncConfig     `mapstructure:"sync"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type GrafanaConfig struct {
	URL            string        `mapstructure:"url"`
	APIKey         string        `mapstructure:"api_key"`
	PageSize       int           `mapstructure:"page_size"`
	Timeout        time.Duration `mapstructure:"timeout"`
	RateLimit      float64       `mapstructure:"rate_limit"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
	CacheSize      int           `mapstructure:"cache_size"`
}

type MetricConfig struct {
	Name           string `mapstructure:"name"`
	DatasourceType string `mapstructure:"datasource_type"`
	DatasourceUID  string `mapstructure:"datasource_uid"`
	OrgID          int64  `mapstructure:"org_id"`
	SQL            string `mapstructure:"sql"`
	TimeColumn     string `mapstructure:"time_column"`
}

type DatabaseConfig struct {
	Host              string `mapstructure:"host"`
	Port              int    `mapstructure:"port"`
	Name              string `mapstructure:"name"`
	User              string `mapstructure:"user"`
	Password          string `mapstructure:"password"`
	SSLMode           string `mapstructure:"ssl_mode"`
	MaxConnections    int    `mapstructure:"max_connections"`
	ConnectionTimeout int    `mapstructure:"connection_timeout"`
}

type SyncConfig struct {
	Schedule    string        `mapstructure:"schedule"`
	Window      time.Duration `mapstructure:"window"`
	BatchSize   int           `mapstructure:"batch_size"`
	MaxRetries  int           `mapstructure:"max_retries"`
	MetricsAddr string        `mapstructure:"metrics_addr"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ConnString builds a lib/pq connection string.
func (d DatabaseConfig) ConnString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s connect_timeout=%d",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode, d.ConnectionTimeout,
	)
}

// Metric returns the configured metric with the given name.
func (c *Config) Metric(name string) (MetricConfig, bool) {
	for _, m := range c.Metrics {
		if m.Name == name {
			return m, true
		}
	}
	return MetricConfig{}, false
}

// Load reads configuration from file and environment variables.
// $VARS in the file are expanded, and APP_ prefixed variables
// (APP_GRAFANA_API_KEY, APP_DATABASE_HOST, ...) override file values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// First unmarshal into a map to reject malformed YAML early
	var rawConfig map[string]interface{}
	if err := yaml.Unmarshal(data, &rawConfig); err != nil {
		return nil, fmt.Errorf("failed to unmarshal raw config: %w", err)
	}

	// Expand environment variables. Unset ones are kept verbatim so that
	// Grafana macros such as $__timeFilter survive.
	expandedData := os.Expand(string(data), func(key string) string {
		if value, ok := os.LookupEnv(key); ok {
			return value
		}
		return "$" + key
	})

	v := viper.New()
	setDefaults(v)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadConfig(bytes.NewBufferString(expandedData)); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	for i := range config.Metrics {
		if config.Metrics[i].TimeColumn == "" {
			config.Metrics[i].TimeColumn = "time"
		}
	}

	return &config, nil
}

// Validate checks the settings every command needs.
func (c *Config) Validate() error {
	if c.Grafana.URL == "" {
		return errors.New("grafana url is required")
	}
	if c.Grafana.PageSize < 1 {
		return errors.New("grafana page size must be at least 1")
	}
	if len(c.Metrics) == 0 {
		return errors.New("at least one metric is required")
	}

	seen := make(map[string]bool)
	for _, m := range c.Metrics {
		if m.Name == "" {
			return errors.New("metric name is required")
		}
		if seen[m.Name] {
			return fmt.Errorf("duplicate metric: %s", m.Name)
		}
		seen[m.Name] = true
		if m.SQL == "" {
			return fmt.Errorf("metric %s: sql is required", m.Name)
		}
		if m.DatasourceUID == "" {
			return fmt.Errorf("metric %s: datasource_uid is required", m.Name)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("grafana.page_size", 50000)
	v.SetDefault("grafana.timeout", 30*time.Second)
	v.SetDefault("grafana.rate_limit", 5.0)
	v.SetDefault("grafana.rate_limit_burst", 10)
	v.SetDefault("grafana.cache_size", 128)
	// Bound so that AutomaticEnv can override it without a file entry.
	v.SetDefault("grafana.api_key", "")

	v.SetDefault("database.port", 5432)
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_connections", 10)
	v.SetDefault("database.connection_timeout", 5)

	v.SetDefault("sync.schedule", "*/5 * * * *")
	v.SetDefault("sync.window", 5*time.Minute)
	v.SetDefault("sync.batch_size", 5000)
	v.SetDefault("sync.max_retries", 3)
	v.SetDefault("sync.metrics_addr", ":9102")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
