package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/chrisle/serato-connect/internal/history"
	"github.com/chrisle/serato-connect/internal/library"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Environment variables that override the file configuration
const (
	EnvSeratoDir = "SERATO_DIR"
	EnvLogLevel  = "SERATO_LOG_LEVEL"
)

// Config represents the application configuration
type Config struct {
	Serato  SeratoConfig  `toml:"serato"`
	Index   IndexConfig   `toml:"index"`
	Watch   WatchConfig   `toml:"watch"`
	Cache   CacheConfig   `toml:"cache"`
	Logging LoggingConfig `toml:"logging"`
}

// SeratoConfig locates the _Serato_ library folder
type SeratoConfig struct {
	RootDir          string   `toml:"root_dir"`
	SupportedFormats []string `toml:"supported_formats"`
}

// IndexConfig contains library index configuration
type IndexConfig struct {
	Path string `toml:"path"`
}

// WatchConfig contains history watcher configuration
type WatchConfig struct {
	Enabled    bool `toml:"enabled"`
	DebounceMs int  `toml:"debounce_ms"`
}

// CacheConfig contains analysis cache configuration
type CacheConfig struct {
	TTLSeconds int `toml:"ttl_seconds"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level      string `toml:"level"`
	Format     string `toml:"format"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Serato: SeratoConfig{
			RootDir:          defaultRootDir(),
			SupportedFormats: []string{".mp3", ".flac", ".wav", ".m4a", ".aiff", ".ogg"},
		},
		Index: IndexConfig{
			Path: "./serato-index.db",
		},
		Watch: WatchConfig{
			Enabled:    true,
			DebounceMs: 250,
		},
		Cache: CacheConfig{
			TTLSeconds: 900,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			File:       "",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

func defaultRootDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "_Serato_"
	}
	return filepath.Join(home, "Music", "_Serato_")
}

// LoadConfig loads configuration from a TOML file, then applies .env and
// environment overrides
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := cfg.SaveToFile(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config file: %w", err)
		}
	} else if _, err := toml.DecodeFile(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.applyEnv(".env"); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// applyEnv loads envFile if it exists and applies overrides from the
// environment
func (c *Config) applyEnv(envFile string) error {
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}
	if dir := os.Getenv(EnvSeratoDir); dir != "" {
		c.Serato.RootDir = dir
	}
	if level := os.Getenv(EnvLogLevel); level != "" {
		c.Logging.Level = level
	}
	return nil
}

// SaveToFile saves the configuration to a TOML file
func (c *Config) SaveToFile(configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	header := `# serato-connect configuration
# root_dir points at the _Serato_ folder. SERATO_DIR overrides it.

`
	if _, err := file.WriteString(header); err != nil {
		return fmt.Errorf("failed to write config header: %w", err)
	}

	encoder := toml.NewEncoder(file)
	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("failed to encode config to TOML: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Serato.RootDir == "" {
		return fmt.Errorf("serato root dir cannot be empty")
	}
	if len(c.Serato.SupportedFormats) == 0 {
		return fmt.Errorf("at least one supported audio format must be specified")
	}
	if c.Index.Path == "" {
		return fmt.Errorf("index path cannot be empty")
	}
	if c.Watch.DebounceMs < 0 {
		return fmt.Errorf("watch debounce must not be negative")
	}
	if c.Cache.TTLSeconds < 0 {
		return fmt.Errorf("cache ttl must not be negative")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	validLogFormats := map[string]bool{
		"text": true, "json": true,
	}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.Logging.Format)
	}

	return nil
}

// CratesDir returns the directory holding crate files
func (c *SeratoConfig) CratesDir() string {
	return filepath.Join(c.RootDir, "Subcrates")
}

// DatabasePath returns the track database path
func (c *SeratoConfig) DatabasePath() string {
	return filepath.Join(c.RootDir, library.DatabaseFileName)
}

// HistoryDir returns the history directory
func (c *SeratoConfig) HistoryDir() string {
	return filepath.Join(c.RootDir, "History")
}

// HistoryPath returns the history index path
func (c *SeratoConfig) HistoryPath() string {
	return filepath.Join(c.HistoryDir(), history.SessionsFileName)
}

// SessionsDir returns the directory of per-session files
func (c *SeratoConfig) SessionsDir() string {
	return filepath.Join(c.HistoryDir(), "Sessions")
}

// SessionPath returns the file path of the session with the given index
func (c *SeratoConfig) SessionPath(index uint32) string {
	return filepath.Join(c.SessionsDir(), history.SessionFileName(index))
}
