package config

import (
	"os"
	"path/filepath"
	"sync"
)

const envHome = "ROKU_DRIVER_HOME"

var (
	homeOnce sync.Once
	homeDir  string
)

// GetHome returns the roku-driver home directory.
//
// Resolution order:
//  1. $ROKU_DRIVER_HOME environment variable
//  2. Parent of the binary's directory (if binary is in <home>/bin/)
//  3. Current working directory (development fallback)
func GetHome() string {
	homeOnce.Do(func() {
		homeDir = resolveHome()
	})
	return homeDir
}

// GetLogDir returns <home>/logs.
func GetLogDir() string {
	return filepath.Join(GetHome(), "logs")
}

// DefaultLogFile returns the log file used when none is configured.
func DefaultLogFile() string {
	return filepath.Join(GetLogDir(), "roku-driver.log")
}

func resolveHome() string {
	if env := os.Getenv(envHome); env != "" {
		return env
	}

	// Binary-relative: if binary is at <home>/bin/roku-driver, use <home>
	if execPath, err := os.Executable(); err == nil {
		if resolved, err := filepath.EvalSymlinks(execPath); err == nil {
			execPath = resolved
		}
		binDir := filepath.Dir(execPath)
		if filepath.Base(binDir) == "bin" {
			return filepath.Dir(binDir)
		}
	}

	if cwd, err := os.Getwd(); err == nil {
		return cwd
	}

	return "."
}

// ResetHome resets the cached home directory (for testing).
func ResetHome() {
	homeOnce = sync.Once{}
	homeDir = ""
}
