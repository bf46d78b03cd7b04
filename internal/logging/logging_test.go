package logging

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLogPath(t *testing.T) {
	path := DefaultLogPath()
	assert.True(t, strings.HasSuffix(path, filepath.Join(".amanbeta", "logs", "amanbeta.log")))
	assert.Equal(t, DefaultLogDir(), filepath.Dir(path))
}

func TestConfigs(t *testing.T) {
	def := DefaultConfig()
	assert.Equal(t, "warn", def.Level)
	assert.Empty(t, def.FilePath)
	assert.True(t, def.WriteToStderr)

	dbg := DebugConfig()
	assert.Equal(t, "debug", dbg.Level)
	assert.Equal(t, DefaultLogPath(), dbg.FilePath)

	proto := ProtocolConfig("info")
	assert.False(t, proto.WriteToStderr)
	assert.Equal(t, "info", proto.Level)
}

func TestSetup_WritesJSONToFile(t *testing.T) {
	// Given: a file-only config in a temp dir
	path := filepath.Join(t.TempDir(), "logs", "test.log")
	cfg := Config{Level: "debug", FilePath: path, MaxSizeMB: 1, MaxFiles: 2}

	// When: logging through the configured logger
	logger, cleanup, err := Setup(cfg)
	require.NoError(t, err)
	logger.Debug("index_rule_complete", slog.String("type", "emails.db/emails"))
	cleanup()

	// Then: the file holds a JSON line with the attribute
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"index_rule_complete"`)
	assert.Contains(t, string(data), `"type":"emails.db/emails"`)
}

func TestSetup_LevelFilters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	logger, cleanup, err := Setup(Config{Level: "warn", FilePath: path})
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown")
	cleanup()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hidden")
	assert.Contains(t, string(data), "shown")
}

func TestSetup_NoOutputsDiscards(t *testing.T) {
	logger, cleanup, err := Setup(Config{Level: "info"})
	require.NoError(t, err)
	defer cleanup()
	logger.Info("nowhere")
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), in)
	}
}

func TestRotatingWriter_Rotation(t *testing.T) {
	// Given: a writer that rotates at 1MB keeping two old files
	path := filepath.Join(t.TempDir(), "amanbeta.log")
	w, err := NewRotatingWriter(path, 1, 2)
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	// When: writing four chunks of just over half a megabyte
	chunk := []byte(strings.Repeat("x", 600*1024) + "\n")
	for i := 0; i < 4; i++ {
		_, err := w.Write(chunk)
		require.NoError(t, err)
	}

	// Then: current + .1 + .2 exist, .3 never does
	assert.FileExists(t, path)
	assert.FileExists(t, path+".1")
	assert.FileExists(t, path+".2")
	assert.NoFileExists(t, fmt.Sprintf("%s.%d", path, 3))
}

func TestRotatingWriter_AppendsToExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.log")
	require.NoError(t, os.WriteFile(path, []byte("old\n"), 0o644))

	w, err := NewRotatingWriter(path, 1, 1)
	require.NoError(t, err)
	_, err = w.Write([]byte("new\n"))
	require.NoError(t, err)
	require.NoError(t, w.Sync())
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "old\nnew\n", string(data))
}
