package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the global ~/.zapbox/config.toml.
type Config struct {
	DefaultProfile string      `toml:"default_profile"`
	Cache          CacheConfig `toml:"cache"`
	Queue          QueueConfig `toml:"queue"`
}

// CacheConfig holds batch-write and staleness tuning.
type CacheConfig struct {
	// ChunkSize is the number of records written per batch transaction.
	ChunkSize int `toml:"chunk_size"`
	// TTLSeconds holds per-entity staleness windows. A value <= 0 means the
	// entity never goes stale and is only refreshed by explicit pulls or
	// push events.
	TTLSeconds TTLConfig `toml:"ttl_seconds"`
}

// TTLConfig is the per-entity staleness window in seconds.
type TTLConfig struct {
	Conversations int `toml:"conversations"`
	Messages      int `toml:"messages"`
	Contacts      int `toml:"contacts"`
	Templates     int `toml:"templates"`
	ContactLists  int `toml:"contact_lists"`
	Lines         int `toml:"lines"`
	Stats         int `toml:"stats"`
	Settings      int `toml:"settings"`
	QuickReplies  int `toml:"quick_replies"`
}

// QueueConfig holds sync-queue retry and maintenance tuning.
type QueueConfig struct {
	MaxRetries           int `toml:"max_retries"`
	FailedRetentionHours int `toml:"failed_retention_hours"`
	PollIntervalMs       int `toml:"poll_interval_ms"`
	CleanupIntervalMin   int `toml:"cleanup_interval_min"`
}

// Default returns the configuration used when config.toml is absent or
// leaves fields unset.
func Default() *Config {
	return &Config{
		DefaultProfile: "main",
		Cache: CacheConfig{
			ChunkSize: 50,
			TTLSeconds: TTLConfig{
				Conversations: 0, // never stale
				Messages:      0,
				Contacts:      0,
				Templates:     6 * 60 * 60,
				ContactLists:  60 * 60,
				Lines:         24 * 60 * 60,
				Stats:         15 * 60,
				Settings:      60 * 60,
				QuickReplies:  6 * 60 * 60,
			},
		},
		Queue: QueueConfig{
			MaxRetries:           5,
			FailedRetentionHours: 7 * 24,
			PollIntervalMs:       2000,
			CleanupIntervalMin:   10,
		},
	}
}

// Load reads config from the given path, layered over defaults.
// Returns an error if the file is missing or malformed.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

// PollInterval returns the worker poll interval as a duration.
func (q QueueConfig) PollInterval() time.Duration {
	if q.PollIntervalMs <= 0 {
		return 2 * time.Second
	}
	return time.Duration(q.PollIntervalMs) * time.Millisecond
}

// CleanupInterval returns the queue cleanup interval as a duration.
func (q QueueConfig) CleanupInterval() time.Duration {
	if q.CleanupIntervalMin <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(q.CleanupIntervalMin) * time.Minute
}

// FailedRetention returns how long terminally failed queue entries are kept.
func (q QueueConfig) FailedRetention() time.Duration {
	if q.FailedRetentionHours <= 0 {
		return 7 * 24 * time.Hour
	}
	return time.Duration(q.FailedRetentionHours) * time.Hour
}
