// Package config provides configuration loading for the opentrail collector
// and SDK defaults.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration structure.
type Config struct {
	Service   ServiceConfig   `mapstructure:"service"`
	Exporter  ExporterConfig  `mapstructure:"exporter"`
	Batch     BatchConfig     `mapstructure:"batch"`
	Collector CollectorConfig `mapstructure:"collector"`
}

// ServiceConfig identifies the instrumented service.
type ServiceConfig struct {
	Name     string `mapstructure:"name"`
	LogLevel string `mapstructure:"log_level"`
}

// ExporterConfig selects and parameterizes the span sink.
type ExporterConfig struct {
	// Kind is one of "console", "otlp" or "elastic".
	Kind    string        `mapstructure:"kind"`
	Otlp    OtlpConfig    `mapstructure:"otlp"`
	Elastic ElasticConfig `mapstructure:"elastic"`
}

type OtlpConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Timeout  string `mapstructure:"timeout"`
}

type ElasticConfig struct {
	Addresses []string `mapstructure:"addresses"`
}

// BatchConfig parameterizes the batch span processor.
type BatchConfig struct {
	QueueSize     int    `mapstructure:"queue_size"`
	BatchSize     int    `mapstructure:"batch_size"`
	FlushInterval string `mapstructure:"flush_interval"`
	MaxRetries    int    `mapstructure:"max_retries"`
	RetryBackoff  string `mapstructure:"retry_backoff"`
}

// CollectorConfig defines the collector's listeners and assembly windows.
type CollectorConfig struct {
	GRPCAddr     string `mapstructure:"grpc_addr"`
	HTTPAddr     string `mapstructure:"http_addr"`
	OrphanWindow string `mapstructure:"orphan_window"`
	MaxSpans     int64  `mapstructure:"max_spans"`
	Retention    string `mapstructure:"retention"`
}

func (c *OtlpConfig) GetTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	if d == 0 {
		return 10 * time.Second
	}
	return d
}

func (c *BatchConfig) GetFlushIntervalDuration() time.Duration {
	d, _ := time.ParseDuration(c.FlushInterval)
	if d == 0 {
		return 5 * time.Second
	}
	return d
}

func (c *BatchConfig) GetRetryBackoffDuration() time.Duration {
	d, _ := time.ParseDuration(c.RetryBackoff)
	if d == 0 {
		return 100 * time.Millisecond
	}
	return d
}

func (c *CollectorConfig) GetOrphanWindowDuration() time.Duration {
	d, _ := time.ParseDuration(c.OrphanWindow)
	if d == 0 {
		return 30 * time.Second
	}
	return d
}

func (c *CollectorConfig) GetRetentionDuration() time.Duration {
	d, _ := time.ParseDuration(c.Retention)
	if d == 0 {
		return 10 * time.Minute
	}
	return d
}

// Load loads configuration from config.yaml or environment variables with the
// OPENTRAIL prefix (for example OPENTRAIL_SERVICE_NAME).
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/opentrail")

	v.SetEnvPrefix("opentrail")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("service.name", "unknown-service")
	v.SetDefault("service.log_level", "info")
	v.SetDefault("exporter.kind", "console")
	v.SetDefault("exporter.otlp.endpoint", "localhost:4317")
	v.SetDefault("exporter.otlp.timeout", "10s")
	v.SetDefault("exporter.elastic.addresses", []string{"http://localhost:9200"})
	v.SetDefault("batch.queue_size", 2048)
	v.SetDefault("batch.batch_size", 512)
	v.SetDefault("batch.flush_interval", "5s")
	v.SetDefault("batch.max_retries", 3)
	v.SetDefault("batch.retry_backoff", "100ms")
	v.SetDefault("collector.grpc_addr", ":4317")
	v.SetDefault("collector.http_addr", ":8081")
	v.SetDefault("collector.orphan_window", "30s")
	v.SetDefault("collector.max_spans", 100000)
	v.SetDefault("collector.retention", "10m")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
