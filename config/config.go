// Package config provides configuration for wavestore tools.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

var ErrInvalid = errors.New("config: invalid value")

const (
	DefaultDataDir         = "./wavestore-data"
	DefaultLogLevel        = "INFO"
	DefaultCacheSize       = 256
	DefaultLoadConcurrency = 8
	DefaultBoltTimeout     = time.Second
)

// Config holds the settings shared by the store and the command line.
type Config struct {
	// DataDir is the directory holding one database file per trace.
	DataDir string `yaml:"data_dir"`
	// LogLevel is passed to logger.New.
	LogLevel string `yaml:"log_level"`
	// Compress stores puddles zstd compressed.
	Compress bool `yaml:"compress"`
	// CacheSize is the number of decoded puddles kept in memory, 0 disables
	// the cache.
	CacheSize int `yaml:"cache_size"`
	// LoadConcurrency bounds the puddle reads of one signal load.
	LoadConcurrency int `yaml:"load_concurrency"`
	// BoltTimeout is how long to wait for the database file lock.
	BoltTimeout time.Duration `yaml:"bolt_timeout"`
}

func Default() *Config {
	return &Config{
		DataDir:         DefaultDataDir,
		LogLevel:        DefaultLogLevel,
		Compress:        true,
		CacheSize:       DefaultCacheSize,
		LoadConcurrency: DefaultLoadConcurrency,
		BoltTimeout:     DefaultBoltTimeout,
	}
}

// FromEnv creates a Config from WAVESTORE_* environment variables.
func FromEnv() *Config {
	return &Config{
		DataDir:         getEnv("WAVESTORE_DATA", DefaultDataDir),
		LogLevel:        getEnv("WAVESTORE_LOG_LEVEL", DefaultLogLevel),
		Compress:        getEnvBool("WAVESTORE_COMPRESS", true),
		CacheSize:       getEnvInt("WAVESTORE_CACHE_SIZE", DefaultCacheSize),
		LoadConcurrency: getEnvInt("WAVESTORE_LOAD_CONCURRENCY", DefaultLoadConcurrency),
		BoltTimeout:     getEnvDuration("WAVESTORE_BOLT_TIMEOUT", DefaultBoltTimeout),
	}
}

// Load reads a YAML file over the environment configuration. Keys absent
// from the file keep their FromEnv value.
func Load(path string) (*Config, error) {
	cfg := FromEnv()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("%w: data_dir is empty", ErrInvalid)
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("%w: cache_size %d", ErrInvalid, c.CacheSize)
	}
	if c.LoadConcurrency < 0 {
		return fmt.Errorf("%w: load_concurrency %d", ErrInvalid, c.LoadConcurrency)
	}
	if c.BoltTimeout < 0 {
		return fmt.Errorf("%w: bolt_timeout %s", ErrInvalid, c.BoltTimeout)
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
