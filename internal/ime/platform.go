package ime

import (
	"os"
	"path/filepath"
)

// Platform installs and activates the input method with the system
// framework.
type Platform interface {
	// Name returns the platform name (e.g., "linux").
	Name() string

	// Available returns true if this platform implementation is available.
	Available() bool

	// Install registers the IME for the current user.
	Install() error

	// Uninstall removes the IME registration.
	Uninstall() error

	// IsInstalled returns true if the IME is registered.
	IsInstalled() bool

	// IsActive returns true if the IME is currently the active input method.
	IsActive() bool

	// Activate makes this IME the active input method.
	Activate() error
}

// PlatformConfig contains platform-specific configuration.
type PlatformConfig struct {
	// ExecPath is the binary the framework launches. Empty means the
	// running executable.
	ExecPath string

	// ExecArgs are appended to ExecPath in the launch command.
	ExecArgs []string

	// ComponentDir is where the framework looks for user components.
	ComponentDir string

	// DisplayName is shown to users in system preferences.
	DisplayName string

	Language string
	Layout   string
	Symbol   string
}

// DefaultPlatformConfig returns platform-appropriate defaults.
func DefaultPlatformConfig() PlatformConfig {
	exe, err := os.Executable()
	if err != nil {
		exe = "gureum-ibus"
	}
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, _ := os.UserHomeDir()
		dataDir = filepath.Join(home, ".local", "share")
	}
	return PlatformConfig{
		ExecPath:     exe,
		ExecArgs:     []string{"--ibus"},
		ComponentDir: filepath.Join(dataDir, "ibus", "component"),
		DisplayName:  "Gureum",
		Language:     "en",
		Layout:       "us",
		Symbol:       "G",
	}
}
