package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// applicationDirectory returns the platform app-data directory, creating it.
func applicationDirectory() (string, error) {
	homeDirectory, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	var dir string
	switch runtime.GOOS {
	case "darwin":
		dir = filepath.Join(homeDirectory, "Library", "Application Support", "Nexora")
	case "windows":
		dir = filepath.Join(homeDirectory, "AppData", "Roaming", "Nexora")
	default: // linux and others
		dir = filepath.Join(homeDirectory, ".local", "share", "Nexora")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create application directory: %w", err)
	}
	return dir, nil
}
