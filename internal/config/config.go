package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	berrors "github.com/Aman-CERP/amanbeta/internal/errors"
)

// Config represents the complete amanbeta configuration.
type Config struct {
	Version int           `yaml:"version" json:"version"`
	Index   IndexConfig   `yaml:"index" json:"index"`
	Mapping MappingConfig `yaml:"mapping" json:"mapping"`
	Search  SearchConfig  `yaml:"search" json:"search"`
	Server  ServerConfig  `yaml:"server" json:"server"`
}

// IndexConfig configures the index database and how it is built.
type IndexConfig struct {
	// Path is the index database file.
	Path string `yaml:"path" json:"path"`

	// Tokenizer is the FTS5 tokenizer used when the full-text table is first created.
	// One of porter, unicode61, ascii, trigram, or none for the FTS5 default.
	Tokenizer string `yaml:"tokenizer" json:"tokenizer"`

	// Driver selects the database/sql driver: "sqlite" (modernc, default) or
	// "sqlite3" (mattn, requires a cgo build with -tags sqlite_fts5).
	Driver string `yaml:"driver" json:"driver"`

	// SourceDir resolves relative source ids from the mapping document.
	// Empty means the current directory.
	SourceDir string `yaml:"source_dir" json:"source_dir"`
}

// MappingConfig locates the mapping document.
type MappingConfig struct {
	Path string `yaml:"path" json:"path"`
}

// SearchConfig tunes result assembly.
type SearchConfig struct {
	// EnrichWorkers bounds concurrent display_sql lookups per request.
	EnrichWorkers int `yaml:"enrich_workers" json:"enrich_workers"`

	// TemplateCacheSize is the number of compiled display templates kept.
	TemplateCacheSize int `yaml:"template_cache_size" json:"template_cache_size"`
}

// ServerConfig configures the HTTP adapter and logging.
type ServerConfig struct {
	Addr     string `yaml:"addr" json:"addr"`
	LogLevel string `yaml:"log_level" json:"log_level"`

	// Debug turns render failures into inline diagnostics instead of errors.
	Debug bool `yaml:"debug" json:"debug"`
}

// ValidTokenizers lists the tokenizers accepted for index.tokenizer.
var ValidTokenizers = []string{"porter", "unicode61", "ascii", "trigram", "none"}

// NewConfig returns a configuration with default values.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Index: IndexConfig{
			Path:      "beta.db",
			Tokenizer: "porter",
			Driver:    "sqlite",
		},
		Mapping: MappingConfig{
			Path: "mapping.yaml",
		},
		Search: SearchConfig{
			EnrichWorkers:     8,
			TemplateCacheSize: 128,
		},
		Server: ServerConfig{
			Addr:     "127.0.0.1:8001",
			LogLevel: "info",
		},
	}
}

// GetUserConfigPath returns the user/global configuration file:
//   - $XDG_CONFIG_HOME/amanbeta/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/amanbeta/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "amanbeta", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "amanbeta", "config.yaml")
	}
	return filepath.Join(home, ".config", "amanbeta", "config.yaml")
}

// Load builds the configuration for dir. Precedence, lowest first:
//  1. Defaults
//  2. User config (~/.config/amanbeta/config.yaml)
//  3. Project config (explicit path, else amanbeta.yaml / amanbeta.yml in dir)
//  4. .env in dir (never overrides variables already set)
//  5. Environment variables (AMANBETA_*)
func Load(dir, explicit string) (*Config, error) {
	cfg := NewConfig()

	if userPath := GetUserConfigPath(); fileExists(userPath) {
		if err := cfg.loadYAML(userPath); err != nil {
			return nil, berrors.ConfigError("failed to load user config", err)
		}
	}

	if explicit != "" {
		if err := cfg.loadYAML(explicit); err != nil {
			return nil, berrors.ConfigError("failed to load config", err)
		}
	} else if err := cfg.loadFromDir(dir); err != nil {
		return nil, berrors.ConfigError("failed to load project config", err)
	}

	if envPath := filepath.Join(dir, ".env"); fileExists(envPath) {
		if err := godotenv.Load(envPath); err != nil {
			return nil, berrors.ConfigError("failed to load .env", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, berrors.ConfigError("invalid configuration", err)
	}
	return cfg, nil
}

func (c *Config) loadFromDir(dir string) error {
	for _, name := range []string{"amanbeta.yaml", "amanbeta.yml"} {
		path := filepath.Join(dir, name)
		if fileExists(path) {
			return c.loadYAML(path)
		}
	}
	return nil
}

// loadYAML merges non-zero values from the YAML file at path.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if other.Index.Path != "" {
		c.Index.Path = other.Index.Path
	}
	if other.Index.Tokenizer != "" {
		c.Index.Tokenizer = other.Index.Tokenizer
	}
	if other.Index.Driver != "" {
		c.Index.Driver = other.Index.Driver
	}
	if other.Index.SourceDir != "" {
		c.Index.SourceDir = other.Index.SourceDir
	}

	if other.Mapping.Path != "" {
		c.Mapping.Path = other.Mapping.Path
	}

	if other.Search.EnrichWorkers != 0 {
		c.Search.EnrichWorkers = other.Search.EnrichWorkers
	}
	if other.Search.TemplateCacheSize != 0 {
		c.Search.TemplateCacheSize = other.Search.TemplateCacheSize
	}

	if other.Server.Addr != "" {
		c.Server.Addr = other.Server.Addr
	}
	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}
	if other.Server.Debug {
		c.Server.Debug = true
	}
}

// applyEnvOverrides applies AMANBETA_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("AMANBETA_INDEX"); v != "" {
		c.Index.Path = v
	}
	if v := os.Getenv("AMANBETA_TOKENIZE"); v != "" {
		c.Index.Tokenizer = v
	}
	if v := os.Getenv("AMANBETA_DRIVER"); v != "" {
		c.Index.Driver = v
	}
	if v := os.Getenv("AMANBETA_SOURCE_DIR"); v != "" {
		c.Index.SourceDir = v
	}
	if v := os.Getenv("AMANBETA_MAPPING"); v != "" {
		c.Mapping.Path = v
	}
	if v := os.Getenv("AMANBETA_ENRICH_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Search.EnrichWorkers = n
		}
	}
	if v := os.Getenv("AMANBETA_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("AMANBETA_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("AMANBETA_DEBUG"); v != "" {
		c.Server.Debug = strings.ToLower(v) == "true" || v == "1"
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if !IsValidTokenizer(c.Index.Tokenizer) {
		return fmt.Errorf("index.tokenizer must be one of %s, got %s",
			strings.Join(ValidTokenizers, ", "), c.Index.Tokenizer)
	}

	switch c.Index.Driver {
	case "sqlite", "sqlite3":
	default:
		return fmt.Errorf("index.driver must be 'sqlite' or 'sqlite3', got %s", c.Index.Driver)
	}

	if c.Search.EnrichWorkers < 0 {
		return fmt.Errorf("search.enrich_workers must be non-negative, got %d", c.Search.EnrichWorkers)
	}
	if c.Search.TemplateCacheSize < 0 {
		return fmt.Errorf("search.template_cache_size must be non-negative, got %d", c.Search.TemplateCacheSize)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
	}

	return nil
}

// IsValidTokenizer reports whether name is an accepted tokenizer. Empty means none.
func IsValidTokenizer(name string) bool {
	if name == "" {
		return true
	}
	for _, t := range ValidTokenizers {
		if strings.EqualFold(t, name) {
			return true
		}
	}
	return false
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
