package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	AWS      AWSConfig     `mapstructure:"aws"`
	RuleSets []string      `mapstructure:"rule_sets"`
	Poll     PollConfig    `mapstructure:"poll"`
	Dedup    DedupConfig   `mapstructure:"dedup"`
	NATS     NATSConfig    `mapstructure:"nats"`
	Metrics  MetricsConfig `mapstructure:"metrics"`
	Logging  LoggingConfig `mapstructure:"logging"`
}

type AWSConfig struct {
	Region string `mapstructure:"region"`
	// Endpoint overrides every service endpoint, e.g. for LocalStack.
	Endpoint string `mapstructure:"endpoint"`
}

type PollConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

type DedupConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	RedisURL string        `mapstructure:"redis_url"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type NATSConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	URL           string        `mapstructure:"url"`
	MaxReconnects int           `mapstructure:"max_reconnects"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
	Username      string        `mapstructure:"username"`
	Password      string        `mapstructure:"password"`
	Token         string        `mapstructure:"token"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("aws.region", "eu-west-1")
	v.SetDefault("aws.endpoint", "")
	v.SetDefault("rule_sets", []string{"default-rule-set"})
	v.SetDefault("poll.timeout_seconds", 1800)
	v.SetDefault("dedup.enabled", false)
	v.SetDefault("dedup.redis_url", "redis://localhost:6379/0")
	v.SetDefault("dedup.ttl", "24h")
	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.max_reconnects", -1)
	v.SetDefault("nats.reconnect_wait", "2s")
	v.SetDefault("nats.username", "")
	v.SetDefault("nats.password", "")
	v.SetDefault("nats.token", "")
	v.SetDefault("metrics.addr", "")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Read config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.mailtap")
		v.AddConfigPath("/etc/mailtap")
	}

	// Environment variables override, e.g. MAILTAP_AWS_REGION
	v.SetEnvPrefix("MAILTAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found; use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	if c.AWS.Region == "" {
		return fmt.Errorf("aws.region is required")
	}
	if c.Poll.TimeoutSeconds < 0 {
		return fmt.Errorf("poll.timeout_seconds must not be negative, got %d", c.Poll.TimeoutSeconds)
	}
	if c.Dedup.Enabled && c.Dedup.TTL <= 0 {
		return fmt.Errorf("dedup.ttl must be positive when dedup is enabled")
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("logging.format must be json or text, got %q", c.Logging.Format)
	}
	return nil
}
