package util

import (
	"fmt"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
)

// EnsureDirExists creates the given directory path if it doesn't already exist
func EnsureDirExists(path string) error {
	if err := os.MkdirAll(path, os.ModePerm); err != nil {
		return fmt.Errorf("ensure directory exists (%s): %w", path, err)
	}

	return nil
}

// FileExists checks if a file exists and is not a directory before we
// try using it to prevent further errors.
func FileExists(filename string) bool {
	info, err := os.Stat(filename)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

// Linux returns true if we're running on Linux
func Linux() bool {
	return runtime.GOOS == "linux"
}

// SetupCloseHandler creates a 'listener' on a new goroutine which will notify the
// program if it receives an interrupt from the OS
func SetupCloseHandler() chan os.Signal {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	return c
}

// CacheFilePath returns a path for the given file name under the user's cache directory,
// creating the directory if needed. It returns an empty string if there's no usable cache directory
func CacheFilePath(appName string, filename string) string {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}

	appCacheDir := filepath.Join(cacheDir, appName)
	if err := EnsureDirExists(appCacheDir); err != nil {
		return ""
	}

	return filepath.Join(appCacheDir, filename)
}

// SignificantlyDifferent returns true if new differs from old by at least threshold.
// Landing exactly on one of the range's edges always counts, so the ends are never swallowed
func SignificantlyDifferent(old float64, new float64, threshold float64, minimum float64, maximum float64) bool {
	if math.Abs(old-new) >= threshold {
		return true
	}

	// special behavior is needed around the edges - this makes it snap to them
	if (almostEquals(new, maximum) && old != maximum) || (almostEquals(new, minimum) && old != minimum) {
		return true
	}

	// values are close enough to not warrant any action
	return false
}

// a helper to make sure values snap correctly to the range's edges, where appropriate
func almostEquals(a float64, b float64) bool {
	return math.Abs(a-b) < 0.000001
}
