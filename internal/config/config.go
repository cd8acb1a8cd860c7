// Package config loads and resolves fetch's on-disk configuration
// (data.toml/daemon.toml in the original tool; here a single YAML file)
// rooted at the application data directory.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// placeholderAppDataDir is expanded to the resolved application data
// directory wherever it appears in a loaded config file, matching the
// original tool's "%%AppDataDirectory%%" templating convention.
const placeholderAppDataDir = "%%AppDataDirectory%%"

// Config is the complete fetch configuration.
type Config struct {
	Version int `yaml:"version" json:"version"`

	// Paths configures the on-disk layout rooted at AppDataDir.
	Paths PathsConfig `yaml:"paths" json:"paths"`

	// Store configures the chunk store: compaction cadence and
	// per-provider score cutoffs used when normalizing query results.
	Store StoreConfig `yaml:"store" json:"store"`

	// Sessions configures the embedding session pool.
	Sessions SessionsConfig `yaml:"sessions" json:"sessions"`

	// Cursor configures query cursor TTL.
	Cursor CursorConfig `yaml:"cursor" json:"cursor"`

	// Indexing configures the bounded-parallelism indexing driver.
	Indexing IndexingConfig `yaml:"indexing" json:"indexing"`
}

// PathsConfig resolves every on-disk location fetch reads or writes,
// rooted at <app_data>/fetch/ per the external interface contract.
type PathsConfig struct {
	// AppDataDir is the root application data directory
	// (e.g. ~/.local/share/fetch or %%AppDataDirectory%% expanded).
	AppDataDir string `yaml:"app_data_dir" json:"app_data_dir"`

	// IndexDir holds the columnar chunk store tables.
	IndexDir string `yaml:"index_dir" json:"index_dir"`

	// PreviewDir caches rendered chunk/preview artifacts.
	PreviewDir string `yaml:"preview_dir" json:"preview_dir"`

	// ChunkDir holds materialized chunk artifacts
	// (<chunk_dir>/<hash(path)>/...), owned by the chunkers.
	ChunkDir string `yaml:"chunk_dir" json:"chunk_dir"`
}

// StoreConfig configures the chunk store's maintenance and scoring.
type StoreConfig struct {
	// CompactionPeriod is the number of write operations between
	// best-effort compactions (default 20).
	CompactionPeriod int `yaml:"compaction_period" json:"compaction_period"`

	// ImageMinScore is the image provider's MIN_SCORE cutoff.
	ImageMinScore float64 `yaml:"image_min_score" json:"image_min_score"`

	// PDFMinScore is the PDF provider's MIN_SCORE cutoff.
	PDFMinScore float64 `yaml:"pdf_min_score" json:"pdf_min_score"`
}

// SessionsConfig configures the per-model embedding session pool.
type SessionsConfig struct {
	// PoolSize is the number of concurrent sessions per model (default 1).
	PoolSize int `yaml:"pool_size" json:"pool_size"`

	// ModelDir is the process-wide model base directory.
	ModelDir string `yaml:"model_dir" json:"model_dir"`
}

// CursorConfig configures query cursor lifetime.
type CursorConfig struct {
	// TTL is the cursor's absolute lifetime, refreshed on every touch
	// (default 5 minutes).
	TTL time.Duration `yaml:"ttl" json:"ttl"`
}

// IndexingConfig configures the CLI's bounded-parallelism indexing driver.
type IndexingConfig struct {
	// Jobs is the number of concurrent per-file indexing permits (default 4).
	Jobs int `yaml:"jobs" json:"jobs"`
}

// Default returns the out-of-the-box configuration, rooted at appDataDir.
func Default(appDataDir string) Config {
	return Config{
		Version: 1,
		Paths: PathsConfig{
			AppDataDir: appDataDir,
			IndexDir:   filepath.Join(appDataDir, "index"),
			PreviewDir: filepath.Join(appDataDir, "preview"),
			ChunkDir:   filepath.Join(appDataDir, "chunks"),
		},
		Store: StoreConfig{
			CompactionPeriod: 20,
			ImageMinScore:    0.015,
			PDFMinScore:      0.1,
		},
		Sessions: SessionsConfig{
			PoolSize: 1,
			ModelDir: filepath.Join(appDataDir, "models"),
		},
		Cursor: CursorConfig{
			TTL: 5 * time.Minute,
		},
		Indexing: IndexingConfig{
			Jobs: 4,
		},
	}
}

// DefaultAppDataDir returns the default application data root
// (~/.fetch), falling back to the temp directory if $HOME is unset.
func DefaultAppDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".fetch")
	}
	return filepath.Join(home, ".fetch")
}

// Load reads and parses a YAML config file at path, expanding
// "%%AppDataDirectory%%" placeholders against appDataDir.
// A missing file is not an error: Default(appDataDir) is returned.
func Load(path, appDataDir string) (Config, error) {
	cfg := Default(appDataDir)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	expanded := strings.ReplaceAll(string(data), placeholderAppDataDir, appDataDir)
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path as YAML, creating parent directories as needed.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

// ExpandPlaceholders substitutes "%%AppDataDirectory%%" in s with appDataDir.
func ExpandPlaceholders(s, appDataDir string) string {
	return strings.ReplaceAll(s, placeholderAppDataDir, appDataDir)
}
