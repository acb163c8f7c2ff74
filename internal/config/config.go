// Package config provides library-wide defaults for dataset IO: the
// engine variant, compression, row group sizing, task parallelism and the
// storage backend.
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sheppard/dask/internal/dataset"
	"github.com/sheppard/dask/internal/storage"
)

// Config holds the dataset IO defaults. Per-call options on Write and
// Read override these.
type Config struct {
	// Engine is the default file engine variant: legacy or columnar.
	Engine string `json:"engine" yaml:"engine"`

	// Compression is the default chunk compression codec: none, snappy,
	// gzip or zstd.
	Compression string `json:"compression" yaml:"compression"`

	// RowGroupRows caps rows per row group (0 disables splitting).
	RowGroupRows int `json:"row_group_rows" yaml:"row_group_rows"`

	// Workers bounds task parallelism during plan execution.
	Workers int `json:"workers" yaml:"workers"`

	// CatalogPath, when set, enables the SQLite pruning catalog.
	CatalogPath string `json:"catalog_path" yaml:"catalog_path"`

	// Storage selects the object store backend.
	Storage StorageConfig `json:"storage" yaml:"storage"`
}

// StorageConfig selects and configures the object store.
type StorageConfig struct {
	// Type is the storage type: local, s3
	Type string `json:"type" yaml:"type"`

	// Path is the local storage root (for local type)
	Path string `json:"path" yaml:"path"`

	// S3 configuration (for s3 type)
	S3 S3Config `json:"s3" yaml:"s3"`

	// CacheDir, when set, caches immutable data files on local disk.
	CacheDir string `json:"cache_dir" yaml:"cache_dir"`

	// CacheBytes bounds the disk cache size; 0 uses the default 1 GiB.
	CacheBytes int64 `json:"cache_bytes" yaml:"cache_bytes"`
}

// S3Config holds S3 storage configuration.
type S3Config struct {
	// Bucket is the S3 bucket name
	Bucket string `json:"bucket" yaml:"bucket"`

	// Region is the AWS region
	Region string `json:"region" yaml:"region"`

	// Endpoint is the S3 endpoint (for S3-compatible storage)
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// UsePathStyle enables path-style addressing (required for MinIO)
	UsePathStyle bool `json:"use_path_style" yaml:"use_path_style"`
}

// DefaultConfig returns the defaults for local use.
func DefaultConfig() *Config {
	return &Config{
		Engine:       "legacy",
		Compression:  "snappy",
		RowGroupRows: 64 * 1024,
		Workers:      4,
		Storage: StorageConfig{
			Type: "local",
			Path: ".",
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Engine {
	case "", "legacy", "columnar":
	default:
		return fmt.Errorf("invalid engine: %s (must be legacy or columnar)", c.Engine)
	}

	switch c.Compression {
	case "", "none", "snappy", "gzip", "zstd":
	default:
		return fmt.Errorf("invalid compression: %s (must be none, snappy, gzip or zstd)", c.Compression)
	}

	if c.RowGroupRows < 0 {
		return fmt.Errorf("row_group_rows must be non-negative, got %d", c.RowGroupRows)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", c.Workers)
	}

	if c.Storage.Type != "local" && c.Storage.Type != "s3" {
		return fmt.Errorf("invalid storage type: %s (must be local or s3)", c.Storage.Type)
	}
	if c.Storage.Type == "s3" && c.Storage.S3.Bucket == "" {
		return fmt.Errorf("s3.bucket is required when storage type is s3")
	}

	return nil
}

// OpenStore builds the configured object store backend, wrapped in a
// local disk cache when cache_dir is set.
func (c *Config) OpenStore(ctx context.Context) (storage.ObjectStore, error) {
	var store storage.ObjectStore
	var err error
	switch c.Storage.Type {
	case "", "local":
		root := c.Storage.Path
		if root == "" {
			root = "."
		}
		store, err = storage.NewLocalStore(root)
	case "s3":
		store, err = storage.NewS3Store(ctx, c.Storage.S3.Bucket, storage.S3Config{
			Region:       c.Storage.S3.Region,
			Endpoint:     c.Storage.S3.Endpoint,
			UsePathStyle: c.Storage.S3.UsePathStyle,
		})
	default:
		return nil, fmt.Errorf("invalid storage type: %s", c.Storage.Type)
	}
	if err != nil {
		return nil, err
	}
	if c.Storage.CacheDir != "" {
		budget := c.Storage.CacheBytes
		if budget == 0 {
			budget = 1 << 30
		}
		return storage.NewCachedStore(store, c.Storage.CacheDir, budget, dataset.DataFileSuffix)
	}
	return store, nil
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the DASK_ prefix.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("DASK_ENGINE"); v != "" {
		cfg.Engine = v
	}
	if v := os.Getenv("DASK_COMPRESSION"); v != "" {
		cfg.Compression = v
	}
	if v := os.Getenv("DASK_ROW_GROUP_ROWS"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.RowGroupRows)
	}
	if v := os.Getenv("DASK_WORKERS"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Workers)
	}
	if v := os.Getenv("DASK_CATALOG_PATH"); v != "" {
		cfg.CatalogPath = v
	}

	if v := os.Getenv("DASK_STORAGE_TYPE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("DASK_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("DASK_S3_BUCKET"); v != "" {
		cfg.Storage.S3.Bucket = v
	}
	if v := os.Getenv("DASK_S3_REGION"); v != "" {
		cfg.Storage.S3.Region = v
	}
	if v := os.Getenv("DASK_S3_ENDPOINT"); v != "" {
		cfg.Storage.S3.Endpoint = v
	}
	if v := os.Getenv("DASK_S3_USE_PATH_STYLE"); v != "" {
		cfg.Storage.S3.UsePathStyle = v == "true" || v == "1"
	}
	if v := os.Getenv("DASK_CACHE_DIR"); v != "" {
		cfg.Storage.CacheDir = v
	}
	if v := os.Getenv("DASK_CACHE_BYTES"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Storage.CacheBytes)
	}
}

// Load builds the effective configuration: defaults, then an optional
// file, then environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		loaded, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	LoadFromEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
