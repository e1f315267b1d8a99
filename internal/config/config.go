package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds runtime configuration for the airwatch service.
type Config struct {
	LogLevel   string         `yaml:"log_level"`
	Server     ServerConfig   `yaml:"server"`
	Postgres   PostgresConfig `yaml:"postgres"`
	Kafka      KafkaConfig    `yaml:"kafka"`
	JWT        JWTConfig      `yaml:"jwt"`
	Thresholds Thresholds     `yaml:"thresholds"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
	MaxBodySize  int64         `yaml:"max_body_size"`
}

// PostgresConfig holds the persistence backend settings. An empty DSN
// selects the in-memory store, used for local development and tests.
type PostgresConfig struct {
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"max_conns"`
}

// KafkaConfig holds settings for the alert transition event stream.
// An empty broker list disables publishing.
type KafkaConfig struct {
	Brokers      []string      `yaml:"brokers"`
	Topic        string        `yaml:"topic"`
	BatchSize    int           `yaml:"batch_size"`
	BatchTimeout time.Duration `yaml:"batch_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	MaxRetries   int           `yaml:"max_retries"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
	QueueSize    int           `yaml:"queue_size"`
}

// JWTConfig holds token issuance settings.
type JWTConfig struct {
	Key      string        `yaml:"key"`
	Issuer   string        `yaml:"issuer"`
	Audience string        `yaml:"audience"`
	TTL      time.Duration `yaml:"ttl"`
}

// Thresholds are the sensor limits driving alert evaluation. Loaded once
// at startup and passed by value into the engine; never mutated after load.
type Thresholds struct {
	TemperatureMin       float64 `yaml:"temperature_min"`
	TemperatureMax       float64 `yaml:"temperature_max"`
	HumidityMin          float64 `yaml:"humidity_min"`
	HumidityMax          float64 `yaml:"humidity_max"`
	CarbonMonoxideMin    float64 `yaml:"carbon_monoxide_min"`
	CarbonMonoxideMax    float64 `yaml:"carbon_monoxide_max"`
	CarbonMonoxideDanger float64 `yaml:"carbon_monoxide_danger"`

	// ReconciliationWindowMinutes is the maximum gap between two reports of
	// the same violation type for them to count as the same episode.
	ReconciliationWindowMinutes int `yaml:"reconciliation_window_minutes"`
}

// Window returns the reconciliation window as a duration.
func (t Thresholds) Window() time.Duration {
	return time.Duration(t.ReconciliationWindowMinutes) * time.Minute
}

// Default returns a sensible default config for local dev.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Server: ServerConfig{
			Addr:         ":8080",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
			MaxBodySize:  10 * 1024 * 1024, // 10MB
		},
		Postgres: PostgresConfig{
			MaxConns: 8,
		},
		Kafka: KafkaConfig{
			Topic:        "airwatch.alert-events",
			BatchSize:    100,
			BatchTimeout: 100 * time.Millisecond,
			WriteTimeout: 10 * time.Second,
			MaxRetries:   3,
			RetryBackoff: 100 * time.Millisecond,
			QueueSize:    1000,
		},
		JWT: JWTConfig{
			Issuer:   "airwatch",
			Audience: "airwatch-devices",
			TTL:      180 * 24 * time.Hour,
		},
		Thresholds: Thresholds{
			TemperatureMin:              -30,
			TemperatureMax:              100,
			HumidityMin:                 0,
			HumidityMax:                 100,
			CarbonMonoxideMin:           0,
			CarbonMonoxideMax:           9,
			CarbonMonoxideDanger:        9,
			ReconciliationWindowMinutes: 15,
		},
	}
}

// Load reads configuration from a YAML file, overlaying it on defaults.
// An empty path returns defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if key := os.Getenv("AIRWATCH_JWT_KEY"); key != "" {
		cfg.JWT.Key = key
	}
	if dsn := os.Getenv("AIRWATCH_POSTGRES_DSN"); dsn != "" {
		cfg.Postgres.DSN = dsn
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	t := c.Thresholds

	if t.TemperatureMin > t.TemperatureMax {
		return fmt.Errorf("thresholds: temperature_min %.2f > temperature_max %.2f", t.TemperatureMin, t.TemperatureMax)
	}
	if t.HumidityMin > t.HumidityMax {
		return fmt.Errorf("thresholds: humidity_min %.2f > humidity_max %.2f", t.HumidityMin, t.HumidityMax)
	}
	if t.CarbonMonoxideMin > t.CarbonMonoxideMax {
		return fmt.Errorf("thresholds: carbon_monoxide_min %.2f > carbon_monoxide_max %.2f", t.CarbonMonoxideMin, t.CarbonMonoxideMax)
	}
	if t.ReconciliationWindowMinutes <= 0 {
		return fmt.Errorf("thresholds: reconciliation_window_minutes must be > 0")
	}

	if c.Server.Addr == "" {
		return fmt.Errorf("server: addr is required")
	}

	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		return fmt.Errorf("kafka: topic is required when brokers are configured")
	}

	return nil
}
