package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackupFile_MissingFileIsNoop(t *testing.T) {
	path, err := BackupFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Empty(t, path)
}

func TestBackupFile_CopiesContent(t *testing.T) {
	// Given: an existing mapping file
	path := filepath.Join(t.TempDir(), "mapping.yaml")
	require.NoError(t, os.WriteFile(path, []byte("a: 1\n"), 0o644))

	// When: backing it up
	backup, err := BackupFile(path)

	// Then: the backup holds the same bytes
	require.NoError(t, err)
	data, err := os.ReadFile(backup)
	require.NoError(t, err)
	assert.Equal(t, "a: 1\n", string(data))
}

func TestBackupFile_KeepsNewestOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "amanbeta.yaml")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	for i := 0; i < MaxBackups+2; i++ {
		_, err := BackupFile(path)
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
	}

	backups, err := ListBackups(path)
	require.NoError(t, err)
	assert.Len(t, backups, MaxBackups)
}
