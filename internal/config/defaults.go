package config

import (
	"os"
	"path/filepath"
	"strconv"
)

const appName = "gureum"

// PlatformConfigDir returns $XDG_CONFIG_HOME/gureum.
func PlatformConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, appName)
	}
	return filepath.Join(homeDir(), ".config", appName)
}

// PlatformDataDir returns $XDG_DATA_HOME/gureum.
func PlatformDataDir() string {
	return filepath.Join(linuxXDGDataHome(), appName)
}

// PlatformStateDir returns $XDG_STATE_HOME/gureum.
func PlatformStateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, appName)
	}
	return filepath.Join(homeDir(), ".local", "state", appName)
}

// PlatformRuntimeDir returns $XDG_RUNTIME_DIR/gureum, or a per-user
// directory under the system temp dir.
func PlatformRuntimeDir() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, appName)
	}
	return filepath.Join(os.TempDir(), appName+"-"+strconv.Itoa(os.Getuid()))
}

func linuxXDGDataHome() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return dir
	}
	return filepath.Join(homeDir(), ".local", "share")
}

func homeDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return os.TempDir()
}

// SupportedConfigFormats returns the list of supported config file formats.
func SupportedConfigFormats() []string {
	return []string{
		"toml",
		"json",
		"yaml",
		"yml",
	}
}

// FindConfigFile searches the current directory and then the config
// directory. It returns "" when no file exists.
func FindConfigFile() string {
	for _, dir := range []string{".", PlatformConfigDir()} {
		for _, ext := range SupportedConfigFormats() {
			path := filepath.Join(dir, "config."+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}
