// Package config provides runtime configuration for the enricher service.
//
// Values come from an optional YAML file plus environment overrides with
// defaults, so a bare binary still starts against local paths.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the knobs for the HTTP server, store, reference-service
// client, queue workers and job retry policy.
type Config struct {
	HTTPAddr        string        `yaml:"http_addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	StoreDSN        string        `yaml:"store_dsn"`

	Refdata RefdataConfig `yaml:"refdata"`

	QueueWorkers   int           `yaml:"queue_workers"`
	QueueCapacity  int           `yaml:"queue_capacity"`
	JobMaxAttempts int           `yaml:"job_max_attempts"`
	JobBackoff     time.Duration `yaml:"job_backoff"`

	EnrichWorkers    int `yaml:"enrich_workers"`
	EnrichMaxRetries int `yaml:"enrich_max_retries"`

	CacheCapacity int           `yaml:"cache_capacity"`
	CacheTTL      time.Duration `yaml:"cache_ttl"`
}

// RefdataConfig configures the remote reference-service client.
type RefdataConfig struct {
	BaseURL        string        `yaml:"base_url"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	RateLimitRPS   float64       `yaml:"rate_limit_rps"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoienv(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func durenvs(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func floatenv(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func defaults() Config {
	return Config{
		HTTPAddr:        ":8080",
		ShutdownTimeout: 15 * time.Second,
		StoreDSN:        "catalog.db",
		Refdata: RefdataConfig{
			RateLimitRPS:   5,
			RequestTimeout: 20 * time.Second,
		},
		QueueWorkers:     3,
		QueueCapacity:    256,
		JobMaxAttempts:   3,
		JobBackoff:       15 * time.Second,
		EnrichWorkers:    8,
		EnrichMaxRetries: 2,
		CacheCapacity:    10000,
		CacheTTL:         12 * time.Hour,
	}
}

// Load reads the YAML file at path (skipped when path is empty or the file
// is absent) and applies environment overrides on top of the defaults.
func Load(path string) (Config, error) {
	cfg := defaults()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config YAML: %w", err)
			}
		}
	}

	cfg.HTTPAddr = getenv("HTTP_ADDR", cfg.HTTPAddr)
	cfg.ShutdownTimeout = durenvs("SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	cfg.StoreDSN = getenv("STORE_DSN", cfg.StoreDSN)
	cfg.Refdata.BaseURL = getenv("REFDATA_URL", cfg.Refdata.BaseURL)
	cfg.Refdata.Username = getenv("REFDATA_USERNAME", cfg.Refdata.Username)
	cfg.Refdata.Password = getenv("REFDATA_PASSWORD", cfg.Refdata.Password)
	cfg.Refdata.RateLimitRPS = floatenv("REFDATA_RATE_LIMIT_RPS", cfg.Refdata.RateLimitRPS)
	cfg.Refdata.RequestTimeout = durenvs("REFDATA_REQUEST_TIMEOUT", cfg.Refdata.RequestTimeout)
	cfg.QueueWorkers = atoienv("QUEUE_WORKERS", cfg.QueueWorkers)
	cfg.QueueCapacity = atoienv("QUEUE_CAPACITY", cfg.QueueCapacity)
	cfg.JobMaxAttempts = atoienv("JOB_MAX_ATTEMPTS", cfg.JobMaxAttempts)
	cfg.JobBackoff = durenvs("JOB_BACKOFF", cfg.JobBackoff)
	cfg.EnrichWorkers = atoienv("ENRICH_WORKERS", cfg.EnrichWorkers)
	cfg.EnrichMaxRetries = atoienv("ENRICH_MAX_RETRIES", cfg.EnrichMaxRetries)
	cfg.CacheCapacity = atoienv("CACHE_CAPACITY", cfg.CacheCapacity)
	cfg.CacheTTL = durenvs("CACHE_TTL", cfg.CacheTTL)

	if cfg.QueueWorkers < 1 {
		cfg.QueueWorkers = 1
	}
	if cfg.JobMaxAttempts < 1 {
		cfg.JobMaxAttempts = 1
	}
	return cfg, nil
}
