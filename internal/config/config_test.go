package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	berrors "github.com/Aman-CERP/amanbeta/internal/errors"
)

// isolate points the user config at an empty temp dir and clears overrides.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	for _, k := range []string{
		"AMANBETA_INDEX", "AMANBETA_TOKENIZE", "AMANBETA_DRIVER", "AMANBETA_SOURCE_DIR",
		"AMANBETA_MAPPING", "AMANBETA_ENRICH_WORKERS", "AMANBETA_ADDR",
		"AMANBETA_LOG_LEVEL", "AMANBETA_DEBUG",
	} {
		t.Setenv(k, "")
		_ = os.Unsetenv(k)
	}
}

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, "beta.db", cfg.Index.Path)
	assert.Equal(t, "porter", cfg.Index.Tokenizer)
	assert.Equal(t, "sqlite", cfg.Index.Driver)
	assert.Equal(t, "mapping.yaml", cfg.Mapping.Path)
	assert.Equal(t, 8, cfg.Search.EnrichWorkers)
	assert.Equal(t, 128, cfg.Search.TemplateCacheSize)
	assert.Equal(t, "127.0.0.1:8001", cfg.Server.Addr)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_NoFilesUsesDefaults(t *testing.T) {
	// Given: an empty directory and no user config
	isolate(t)
	dir := t.TempDir()

	// When: loading
	cfg, err := Load(dir, "")

	// Then: defaults are returned
	require.NoError(t, err)
	assert.Equal(t, NewConfig(), cfg)
}

func TestLoad_ProjectFileOverridesUserFile(t *testing.T) {
	// Given: a user config and a project config that disagree
	isolate(t)
	userDir := filepath.Join(os.Getenv("XDG_CONFIG_HOME"), "amanbeta")
	require.NoError(t, os.MkdirAll(userDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(userDir, "config.yaml"),
		[]byte("index:\n  tokenizer: none\n  path: user.db\n"), 0o644))

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "amanbeta.yml"),
		[]byte("index:\n  path: project.db\nserver:\n  debug: true\n"), 0o644))

	// When: loading
	cfg, err := Load(dir, "")

	// Then: project wins where set, user config fills the rest
	require.NoError(t, err)
	assert.Equal(t, "project.db", cfg.Index.Path)
	assert.Equal(t, "none", cfg.Index.Tokenizer)
	assert.True(t, cfg.Server.Debug)
}

func TestLoad_ExplicitPathWins(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "amanbeta.yaml"),
		[]byte("index:\n  path: ignored.db\n"), 0o644))
	explicit := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(explicit, []byte("index:\n  path: custom.db\n"), 0o644))

	cfg, err := Load(dir, explicit)

	require.NoError(t, err)
	assert.Equal(t, "custom.db", cfg.Index.Path)
}

func TestLoad_DotEnvAndEnvOverrides(t *testing.T) {
	// Given: a .env file and a real environment variable
	isolate(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("AMANBETA_MAPPING=from-dotenv.yaml\nAMANBETA_ENRICH_WORKERS=3\n"), 0o644))
	t.Setenv("AMANBETA_INDEX", "from-env.db")

	// When: loading
	cfg, err := Load(dir, "")

	// Then: both sources apply
	require.NoError(t, err)
	assert.Equal(t, "from-env.db", cfg.Index.Path)
	assert.Equal(t, "from-dotenv.yaml", cfg.Mapping.Path)
	assert.Equal(t, 3, cfg.Search.EnrichWorkers)
}

func TestLoad_InvalidYAMLIsConfigError(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "amanbeta.yaml"), []byte("index: [oops"), 0o644))

	_, err := Load(dir, "")

	require.Error(t, err)
	assert.True(t, errors.Is(err, berrors.ErrConfigInvalid))
}

func TestLoad_InvalidTokenizerRejected(t *testing.T) {
	isolate(t)
	t.Setenv("AMANBETA_TOKENIZE", "klingon")

	_, err := Load(t.TempDir(), "")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"bad driver", func(c *Config) { c.Index.Driver = "postgres" }, "index.driver"},
		{"negative workers", func(c *Config) { c.Search.EnrichWorkers = -1 }, "enrich_workers"},
		{"negative cache", func(c *Config) { c.Search.TemplateCacheSize = -1 }, "template_cache_size"},
		{"bad level", func(c *Config) { c.Server.LogLevel = "loud" }, "log_level"},
		{"bad tokenizer", func(c *Config) { c.Index.Tokenizer = "x" }, "tokenizer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestIsValidTokenizer(t *testing.T) {
	assert.True(t, IsValidTokenizer("porter"))
	assert.True(t, IsValidTokenizer("NONE"))
	assert.True(t, IsValidTokenizer(""))
	assert.False(t, IsValidTokenizer("snowball"))
}

func TestWriteYAML_RoundTripsThroughLoad(t *testing.T) {
	// Given: a customised config written to disk
	isolate(t)
	dir := t.TempDir()
	cfg := NewConfig()
	cfg.Index.SourceDir = "/data/dogsheep"
	require.NoError(t, cfg.WriteYAML(filepath.Join(dir, "amanbeta.yaml")))

	// When: loading it back
	loaded, err := Load(dir, "")

	// Then: the value survives
	require.NoError(t, err)
	assert.Equal(t, "/data/dogsheep", loaded.Index.SourceDir)
}
