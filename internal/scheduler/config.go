package scheduler

import (
	"time"

	"github.com/stayloop/stayloop/internal/config"
)

// Config controls sweep cadence and batch sizes.
type Config struct {
	RunInterval      time.Duration
	ListingBatchSize int
	LeaseBatchSize   int
	JobTimeout       time.Duration
	LockTTL          time.Duration
}

func DefaultConfig() Config {
	return Config{
		RunInterval:      24 * time.Hour,
		ListingBatchSize: 500,
		LeaseBatchSize:   500,
		JobTimeout:       5 * time.Minute,
		LockTTL:          10 * time.Minute,
	}
}

func ProvideConfig(cfg config.Config) Config {
	c := Config{RunInterval: cfg.SweepInterval}
	return c.withDefaults()
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.ListingBatchSize <= 0 {
		c.ListingBatchSize = defaults.ListingBatchSize
	}
	if c.LeaseBatchSize <= 0 {
		c.LeaseBatchSize = defaults.LeaseBatchSize
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.LockTTL <= 0 {
		c.LockTTL = defaults.LockTTL
	}
	return c
}
