// Package config loads and validates the agent configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pranaysuyash/caption-art-sub009/internal/budget"
)

// TransportHTTP and TransportKafka select the batch delivery path.
const (
	TransportHTTP  = "http"
	TransportKafka = "kafka"
)

// Config is the full agent configuration.
type Config struct {
	LogLevel   string `yaml:"log_level"`
	ListenAddr string `yaml:"listen_addr"`

	Delivery DeliveryConfig `yaml:"delivery"`
	Memory   MemoryConfig   `yaml:"memory"`
	Budget   *budget.Budget `yaml:"budget"`

	SpikeThresholdPercent float64 `yaml:"spike_threshold_percent"`
}

// DeliveryConfig configures the outbound pipeline.
type DeliveryConfig struct {
	Endpoint      string        `yaml:"endpoint"`
	Transport     string        `yaml:"transport"`
	MaxQueueSize  int           `yaml:"max_queue_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	SendTimeout   time.Duration `yaml:"send_timeout"`
	UserAgent     string        `yaml:"user_agent"`
	Page          string        `yaml:"page"`
	KafkaBrokers  []string      `yaml:"kafka_brokers"`
	KafkaTopic    string        `yaml:"kafka_topic"`
	RedisAddr     string        `yaml:"redis_addr"`
}

// MemoryConfig configures the memory sampler.
type MemoryConfig struct {
	SampleInterval      time.Duration `yaml:"sample_interval"`
	HeapWarningPercent  float64       `yaml:"heap_warning_percent"`
	HeapCriticalPercent float64       `yaml:"heap_critical_percent"`
	DOMNodeWarning      int64         `yaml:"dom_node_warning"`
	LeakGrowthRate      float64       `yaml:"leak_growth_rate"`
}

// Default returns the stock configuration.
func Default() Config {
	return Config{
		LogLevel:   "info",
		ListenAddr: ":8099",
		Delivery: DeliveryConfig{
			Transport:     TransportHTTP,
			MaxQueueSize:  100,
			FlushInterval: 10 * time.Second,
			SendTimeout:   10 * time.Second,
			KafkaTopic:    "telemetry",
		},
		Memory: MemoryConfig{
			SampleInterval:      5 * time.Second,
			HeapWarningPercent:  75,
			HeapCriticalPercent: 90,
			DOMNodeWarning:      5000,
			LeakGrowthRate:      1 << 20,
		},
		SpikeThresholdPercent: 10,
	}
}

// Load reads a YAML file over the defaults, applies env overrides, and
// validates. An empty path loads defaults plus env overrides only.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse YAML: %w", err)
		}
	}

	if v := os.Getenv("TELEMETRY_ENDPOINT"); v != "" {
		cfg.Delivery.Endpoint = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Delivery.KafkaBrokers = []string{v}
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Delivery.RedisAddr = v
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks invariants and applies defaulting for zero values.
func (c *Config) Validate() error {
	switch c.Delivery.Transport {
	case "", TransportHTTP, TransportKafka:
	default:
		return fmt.Errorf("unknown transport %q", c.Delivery.Transport)
	}
	if c.Delivery.Transport == "" {
		c.Delivery.Transport = TransportHTTP
	}
	if c.Delivery.Transport == TransportKafka && len(c.Delivery.KafkaBrokers) == 0 {
		return fmt.Errorf("kafka transport requires at least one broker")
	}
	if c.Delivery.MaxQueueSize < 0 {
		return fmt.Errorf("max_queue_size must not be negative")
	}
	if c.Delivery.FlushInterval < 0 {
		return fmt.Errorf("flush_interval must not be negative")
	}
	if c.Memory.SampleInterval <= 0 {
		c.Memory.SampleInterval = 5 * time.Second
	}
	if c.SpikeThresholdPercent <= 0 {
		c.SpikeThresholdPercent = 10
	}
	return nil
}
