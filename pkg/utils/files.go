package utils

import (
	"os"

	"github.com/google/uuid"
)

// MakeDir creates a directory with all parent directories.
func MakeDir(path string) error {
	return os.MkdirAll(path, 0o755)
}

// IsDir reports whether path exists and is a directory.
func IsDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// NewRunID returns a fresh identifier for a scoring run.
func NewRunID() string {
	return uuid.NewString()
}
