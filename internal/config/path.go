// Package config loads and validates application settings.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const appName = "fintrak"

// ExpandPath resolves a leading ~ to the home directory and then expands
// $VAR references. Paths are returned unchanged when the home directory is
// unknown.
func ExpandPath(path string) string {
	if path == "" {
		return ""
	}
	switch {
	case path == "~", strings.HasPrefix(path, "~/"):
		if home, err := os.UserHomeDir(); err == nil {
			path = home + strings.TrimPrefix(path, "~")
		}
	}
	return filepath.Clean(os.ExpandEnv(path))
}

// ConfigDir returns the directory searched for config.yaml. XDG_CONFIG_HOME
// takes precedence over ~/.config.
func ConfigDir() (string, error) {
	if base := os.Getenv("XDG_CONFIG_HOME"); base != "" {
		return filepath.Join(base, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", appName), nil
}
