// Package config handles loading and validating the monitor configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} placeholders in config values.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// ErrConfigFileNotFound is returned by Load when the specified config file
// does not exist.
var ErrConfigFileNotFound = errors.New("config file not found")

// Config is the top-level configuration.
type Config struct {
	Listen    string `yaml:"listen"`
	DBPath    string `yaml:"db_path"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	Timezone  string `yaml:"timezone"`

	ReadInterval Duration `yaml:"read_interval"`
	ReadTimeout  Duration `yaml:"read_timeout"`

	AggregateInterval Duration `yaml:"aggregate_interval"`
	// Lookback windows are safety margins against ingestion delay; widen
	// them if readings can arrive late, narrow them to cut re-aggregation.
	MinuteLookback Duration `yaml:"minute_lookback"`
	HourlyLookback Duration `yaml:"hourly_lookback"`

	Retention     RetentionConfig      `yaml:"retention"`
	Alarm         AlarmConfig          `yaml:"alarm"`
	Notifications []NotificationConfig `yaml:"notifications"`
}

// RetentionConfig bounds raw-measurement storage.
type RetentionConfig struct {
	DaysToKeep int     `yaml:"days_to_keep"`
	MaxSizeGB  float64 `yaml:"max_size_gb"`
}

// AlarmConfig configures the CO2 alarm.
type AlarmConfig struct {
	Enabled    bool     `yaml:"enabled"`
	Threshold  int      `yaml:"threshold"` // ppm
	Cooldown   Duration `yaml:"cooldown"`
	StaleAfter Duration `yaml:"stale_after"`
}

// NotificationConfig describes a notification target.
type NotificationConfig struct {
	Type    string            `yaml:"type"` // "ntfy" or "webhook"
	URL     string            `yaml:"url"`
	Topic   string            `yaml:"topic,omitempty"`   // ntfy only
	Method  string            `yaml:"method,omitempty"`  // webhook only
	Headers map[string]string `yaml:"headers,omitempty"` // webhook only
}

// Duration wraps time.Duration with YAML string parsing support.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// Load reads configuration from a YAML file. An empty path yields the
// defaults plus environment overrides. A given path that does not exist
// returns ErrConfigFileNotFound.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigFileNotFound, path)
		}
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if len(data) > 0 {
			if err := yaml.Unmarshal(expandEnvVars(data), cfg); err != nil {
				return nil, fmt.Errorf("parsing config: %w", err)
			}
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// Location resolves the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("log_level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.LogFormat] {
		return fmt.Errorf("log_format must be one of: text, json")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.ReadInterval.Duration <= 0 {
		return fmt.Errorf("read_interval must be > 0")
	}
	if c.ReadTimeout.Duration <= 0 {
		return fmt.Errorf("read_timeout must be > 0")
	}
	if c.AggregateInterval.Duration <= 0 {
		return fmt.Errorf("aggregate_interval must be > 0")
	}
	if c.MinuteLookback.Duration <= 0 {
		return fmt.Errorf("minute_lookback must be > 0")
	}
	if c.HourlyLookback.Duration <= 0 {
		return fmt.Errorf("hourly_lookback must be > 0")
	}
	if c.Retention.DaysToKeep < 1 {
		return fmt.Errorf("retention.days_to_keep must be >= 1")
	}
	if c.Retention.MaxSizeGB <= 0 {
		return fmt.Errorf("retention.max_size_gb must be > 0")
	}
	if c.Alarm.Enabled {
		if c.Alarm.Threshold <= 0 {
			return fmt.Errorf("alarm.threshold must be > 0")
		}
		if c.Alarm.Cooldown.Duration <= 0 {
			return fmt.Errorf("alarm.cooldown must be > 0")
		}
	}
	for i, n := range c.Notifications {
		switch n.Type {
		case "ntfy":
			if n.URL == "" {
				return fmt.Errorf("notifications[%d]: url is required for ntfy", i)
			}
			if n.Topic == "" {
				return fmt.Errorf("notifications[%d]: topic is required for ntfy", i)
			}
		case "webhook":
			if n.URL == "" {
				return fmt.Errorf("notifications[%d]: url is required for webhook", i)
			}
		default:
			return fmt.Errorf("notifications[%d]: unknown type %q (expected ntfy or webhook)", i, n.Type)
		}
	}
	return nil
}

func defaults() *Config {
	return &Config{
		Listen:            ":8080",
		DBPath:            "data/co2_data.db",
		LogLevel:          "info",
		LogFormat:         "text",
		Timezone:          "Local",
		ReadInterval:      Duration{60 * time.Second},
		ReadTimeout:       Duration{10 * time.Second},
		AggregateInterval: Duration{5 * time.Minute},
		MinuteLookback:    Duration{2 * time.Hour},
		HourlyLookback:    Duration{3 * time.Hour},
		Retention: RetentionConfig{
			DaysToKeep: 30,
			MaxSizeGB:  5.0,
		},
		Alarm: AlarmConfig{
			Enabled:    false,
			Threshold:  1000,
			Cooldown:   Duration{30 * time.Minute},
			StaleAfter: Duration{10 * time.Minute},
		},
	}
}

// expandEnvVars replaces ${VAR_NAME} placeholders in raw YAML with the
// corresponding environment variable values.
func expandEnvVars(data []byte) []byte {
	return envVarPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		key := string(match[2 : len(match)-1]) // strip ${ and }
		return []byte(os.Getenv(key))
	})
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CO2MON_LISTEN"); v != "" {
		cfg.Listen = v
	}
	if v := os.Getenv("CO2MON_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("CO2MON_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("CO2MON_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("CO2MON_READ_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.ReadInterval = Duration{d}
		}
	}
	if v := os.Getenv("CO2MON_RETENTION_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Retention.DaysToKeep = n
		}
	}
	if v := os.Getenv("CO2MON_MAX_SIZE_GB"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Retention.MaxSizeGB = f
		}
	}

	// Single ntfy target from env vars (only if no YAML notifications).
	if len(cfg.Notifications) == 0 {
		if ntfyURL := os.Getenv("CO2MON_NTFY_URL"); ntfyURL != "" {
			topic := os.Getenv("CO2MON_NTFY_TOPIC")
			if topic == "" {
				topic = "co2-alerts"
			}
			cfg.Notifications = append(cfg.Notifications, NotificationConfig{
				Type:  "ntfy",
				URL:   ntfyURL,
				Topic: topic,
			})
		}
	}
}
