// Package config loads the engine tuning file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dukex/leadflow/pkg/cache"
	"github.com/dukex/leadflow/pkg/webhooks"
	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid engine configuration")

// Config tunes the evaluation cache, webhook delivery and workers.
type Config struct {
	Cache    CacheConfig    `yaml:"cache"`
	Delivery DeliveryConfig `yaml:"delivery"`
	Worker   WorkerConfig   `yaml:"worker"`
}

type CacheConfig struct {
	Capacity      int           `yaml:"capacity"`
	TTL           time.Duration `yaml:"ttl"`
	SweepSchedule string        `yaml:"sweep_schedule"`
}

type DeliveryConfig struct {
	InitialInterval time.Duration `yaml:"initial_interval"`
	Multiplier      float64       `yaml:"multiplier"`
	MaxInterval     time.Duration `yaml:"max_interval"`
	Concurrency     int           `yaml:"concurrency"`
}

type WorkerConfig struct {
	// Concurrency bounds the runs of one matched event executing at once.
	// Zero means unbounded.
	Concurrency int `yaml:"concurrency"`
}

func Default() Config {
	backoff := webhooks.DefaultBackoff()

	return Config{
		Cache: CacheConfig{
			Capacity:      cache.DefaultCapacity,
			TTL:           cache.DefaultTTL,
			SweepSchedule: cache.DefaultSweepSchedule,
		},
		Delivery: DeliveryConfig{
			InitialInterval: backoff.InitialInterval,
			Multiplier:      backoff.Multiplier,
			MaxInterval:     backoff.MaxInterval,
			Concurrency:     webhooks.DefaultConcurrency,
		},
		Worker: WorkerConfig{
			Concurrency: 0,
		},
	}
}

// Load reads path over the defaults, so missing keys keep their default
// value. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error

	if c.Cache.Capacity <= 0 {
		errs = append(errs, errors.New("cache.capacity must be positive"))
	}

	if c.Cache.TTL <= 0 {
		errs = append(errs, errors.New("cache.ttl must be positive"))
	}

	if c.Delivery.InitialInterval <= 0 || c.Delivery.MaxInterval < c.Delivery.InitialInterval {
		errs = append(errs, errors.New("delivery intervals must be positive and max_interval >= initial_interval"))
	}

	if c.Delivery.Multiplier < 1 {
		errs = append(errs, errors.New("delivery.multiplier must be at least 1"))
	}

	if c.Delivery.Concurrency <= 0 {
		errs = append(errs, errors.New("delivery.concurrency must be positive"))
	}

	if c.Worker.Concurrency < 0 {
		errs = append(errs, errors.New("worker.concurrency must not be negative"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}

	return nil
}

// Backoff returns the delivery retry shape for webhooks.WithBackoff.
func (c Config) Backoff() webhooks.BackoffConfig {
	return webhooks.BackoffConfig{
		InitialInterval: c.Delivery.InitialInterval,
		Multiplier:      c.Delivery.Multiplier,
		MaxInterval:     c.Delivery.MaxInterval,
	}
}
