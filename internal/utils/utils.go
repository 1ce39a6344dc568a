package utils

import (
	"os"
	"path/filepath"
	"time"
)

func Int64Pointer(b int64) *int64 {
	return &b
}

func TimePointer(t time.Time) *time.Time {
	return &t
}

func PathExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func ExecutableDir() string {
	path, _ := os.Executable()
	return filepath.Dir(path)
}

// DataDir returns ~/.paperlink, creating it when missing. The executable's
// directory is used when the home directory is not writable.
func DataDir() string {
	dir, err := os.UserHomeDir()
	if err != nil {
		return ExecutableDir()
	}
	dir = filepath.Join(dir, ".paperlink")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return ExecutableDir()
	}
	return dir
}
