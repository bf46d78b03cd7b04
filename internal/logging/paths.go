package logging

import (
	"os"
	"path/filepath"
)

// DefaultLogDir returns ~/.amanbeta/logs, or a temp directory when there is no home.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".amanbeta", "logs")
	}
	return filepath.Join(home, ".amanbeta", "logs")
}

// DefaultLogPath returns the default log file path.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "amanbeta.log")
}
