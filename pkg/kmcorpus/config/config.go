// Package config loads the YAML configuration that drives a kmcorpus
// deployment: where the corpus and index data live, how the job
// concurrency is bounded, and optional external service endpoints.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration document.
type Config struct {
	DataDir string `yaml:"data_dir"`

	Corpus CorpusConfig `yaml:"corpus"`
	Index  IndexConfig  `yaml:"index"`
	Jobs   JobsConfig   `yaml:"jobs"`
	Cache  CacheConfig  `yaml:"cache"`

	// RedisAddr is parsed from the config file but not read by any
	// package; the shared query cache is configured by
	// Cache.SharedCacheDir. Held as a plain string; never logged.
	RedisAddr string `yaml:"redis_addr"`
}

// CorpusConfig configures the document store.
type CorpusConfig struct {
	// Driver is "sqlite" or "memory".
	Driver string `yaml:"driver"`
	// Path is the sqlite database file, relative to DataDir if not absolute.
	Path string `yaml:"path"`
}

// IndexConfig configures the on-disk positional index.
type IndexConfig struct {
	Dir             string `yaml:"dir"`
	UnigramPosition bool   `yaml:"unigram_positions"`
}

// JobsConfig bounds KM/SKiM job execution.
type JobsConfig struct {
	MinCensorYear int `yaml:"min_censor_year"`
	MaxCensorYear int `yaml:"max_censor_year"`
}

// CacheConfig configures the query engine's cache tiers.
type CacheConfig struct {
	TokenPostingCacheBytes int64  `yaml:"token_posting_cache_bytes"`
	SharedCacheDir         string `yaml:"shared_cache_dir"`
}

// Default returns a Config with the same defaults the original deployment
// shipped: a local data directory, sqlite-backed corpus, 1000-2100 as the
// allowed censor year range.
func Default() Config {
	return Config{
		DataDir: "./data",
		Corpus: CorpusConfig{
			Driver: "sqlite",
			Path:   "corpus.db",
		},
		Index: IndexConfig{
			Dir:             "index",
			UnigramPosition: true,
		},
		Jobs: JobsConfig{
			MinCensorYear: 1000,
			MaxCensorYear: 2100,
		},
		Cache: CacheConfig{
			TokenPostingCacheBytes: 256 << 20,
		},
	}
}

// Load reads and parses a YAML config file, filling in unset fields from
// Default().
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.Jobs.MinCensorYear == 0 {
		cfg.Jobs.MinCensorYear = 1000
	}
	if cfg.Jobs.MaxCensorYear == 0 {
		cfg.Jobs.MaxCensorYear = 2100
	}
	return cfg, nil
}
