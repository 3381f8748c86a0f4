// Package config handles configuration loading, validation, and management for gureum.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"
)

// Version is the current configuration schema version.
const Version = 2

// Config holds the complete input method configuration.
type Config struct {
	// Version is the configuration schema version for migrations.
	Version int `toml:"version" json:"version" yaml:"version"`

	// Input configures how keys are routed.
	Input InputConfig `toml:"input" json:"input" yaml:"input"`

	// CapsLock configures the HID-level Caps Lock override.
	CapsLock CapsLockConfig `toml:"caps_lock" json:"caps_lock" yaml:"caps_lock"`

	// HID selects and tunes the keyboard device backend.
	HID HIDConfig `toml:"hid" json:"hid" yaml:"hid"`

	// Candidates configures the lookup table.
	Candidates CandidatesConfig `toml:"candidates" json:"candidates" yaml:"candidates"`

	// Dictionary configures the abbreviation composer.
	Dictionary DictionaryConfig `toml:"dictionary" json:"dictionary" yaml:"dictionary"`

	// IBus configures the D-Bus connection.
	IBus IBusConfig `toml:"ibus" json:"ibus" yaml:"ibus"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`

	// Instance configures the single-instance lock.
	Instance InstanceConfig `toml:"instance" json:"instance" yaml:"instance"`

	// mu protects concurrent access to the config.
	mu sync.RWMutex `toml:"-" json:"-" yaml:"-"`
}

// InputConfig holds key routing configuration.
type InputConfig struct {
	// OptionKeyBehavior is "default" (Option-modified keys go to the
	// client) or "ignore" (they are composed as if Option were up).
	OptionKeyBehavior string `toml:"option_key_behavior" json:"option_key_behavior" yaml:"option_key_behavior"`

	// OptionKeyIgnored is the version 1 spelling of OptionKeyBehavior.
	// Migration moves it and clears it.
	OptionKeyIgnored *bool `toml:"option_key_ignored,omitempty" json:"option_key_ignored,omitempty" yaml:"option_key_ignored,omitempty"`
}

// CapsLockConfig holds Caps Lock override configuration.
type CapsLockConfig struct {
	// DefaultState is the lock state forced after every Caps Lock event.
	DefaultState bool `toml:"default_state" json:"default_state" yaml:"default_state"`

	// TogglesMode switches the input mode on a Caps Lock press.
	TogglesMode bool `toml:"toggles_mode" json:"toggles_mode" yaml:"toggles_mode"`
}

// HIDConfig holds keyboard device configuration.
type HIDConfig struct {
	// Backend is "evdev" or "virtual".
	Backend string `toml:"backend" json:"backend" yaml:"backend"`

	// Search is the glob of input device nodes to consider.
	Search string `toml:"search" json:"search" yaml:"search"`

	// Bypass is a regular expression of device names to skip.
	Bypass string `toml:"bypass" json:"bypass" yaml:"bypass"`

	// Hotplug attaches keyboards connected after startup.
	Hotplug bool `toml:"hotplug" json:"hotplug" yaml:"hotplug"`
}

// CandidatesConfig holds lookup table configuration.
type CandidatesConfig struct {
	PageSize int `toml:"page_size" json:"page_size" yaml:"page_size"`

	// Orientation is "horizontal", "vertical" or "system".
	Orientation string `toml:"orientation" json:"orientation" yaml:"orientation"`
}

// DictionaryConfig holds abbreviation dictionary configuration.
type DictionaryConfig struct {
	// Path is a TOML or YAML file mapping abbreviations to expansions.
	// Empty disables the dictionary mode.
	Path string `toml:"path" json:"path" yaml:"path"`

	// UsageDB is the SQLite database of candidate selections. Empty
	// keeps usage in memory.
	UsageDB string `toml:"usage_db" json:"usage_db" yaml:"usage_db"`

	MaxCandidates int `toml:"max_candidates" json:"max_candidates" yaml:"max_candidates"`
}

// IBusConfig holds IBus connection configuration.
type IBusConfig struct {
	// Address is the IBus D-Bus address. Empty uses IBUS_ADDRESS, then
	// the session bus.
	Address string `toml:"address" json:"address" yaml:"address"`

	BusName      string `toml:"bus_name" json:"bus_name" yaml:"bus_name"`
	ComponentDir string `toml:"component_dir" json:"component_dir" yaml:"component_dir"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `toml:"level" json:"level" yaml:"level"`

	// Format is the log format: "text" or "json".
	Format string `toml:"format" json:"format" yaml:"format"`

	// Output is "stdout", "stderr", "file" or "both".
	Output string `toml:"output" json:"output" yaml:"output"`

	FilePath   string `toml:"file_path" json:"file_path" yaml:"file_path"`
	MaxSizeMB  int    `toml:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" json:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" json:"max_age_days" yaml:"max_age_days"`
	Compress   bool   `toml:"compress" json:"compress" yaml:"compress"`

	// LogText writes typed text to the log. Debugging only.
	LogText bool `toml:"log_text" json:"log_text" yaml:"log_text"`
}

// InstanceConfig holds single-instance configuration.
type InstanceConfig struct {
	PidFile string `toml:"pid_file" json:"pid_file" yaml:"pid_file"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: Version,
		Input: InputConfig{
			OptionKeyBehavior: "default",
		},
		CapsLock: CapsLockConfig{
			DefaultState: false,
			TogglesMode:  true,
		},
		HID: HIDConfig{
			Backend: "evdev",
			Search:  "/dev/input/event*",
			Bypass:  `(?i)video|camera|keybd_event|power button|sleep button`,
			Hotplug: true,
		},
		Candidates: CandidatesConfig{
			PageSize:    5,
			Orientation: "system",
		},
		Dictionary: DictionaryConfig{
			Path:          filepath.Join(PlatformConfigDir(), "dictionary.toml"),
			UsageDB:       filepath.Join(PlatformDataDir(), "usage.db"),
			MaxCandidates: 9,
		},
		IBus: IBusConfig{
			BusName:      "org.freedesktop.IBus.Gureum",
			ComponentDir: filepath.Join(linuxXDGDataHome(), "ibus", "component"),
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "file",
			FilePath:   filepath.Join(PlatformStateDir(), "gureum.log"),
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 14,
			Compress:   true,
		},
		Instance: InstanceConfig{
			PidFile: filepath.Join(PlatformRuntimeDir(), "gureum.pid"),
		},
	}
}

// ConfigPath returns the default configuration file path.
func ConfigPath() string {
	if p := os.Getenv("GUREUM_CONFIG"); p != "" {
		return p
	}
	return filepath.Join(PlatformConfigDir(), "config.toml")
}

// Load reads configuration from the specified path.
// If the file doesn't exist, returns default configuration.
// Supports TOML, JSON, and YAML formats based on file extension.
// Older versions are migrated in memory.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}
	cfg, err := loadConfigFromFile(path)
	if err != nil {
		return nil, err
	}
	if cfg.Version < Version {
		if _, err := MigrateConfig(cfg, ""); err != nil {
			return nil, fmt.Errorf("migrate config: %w", err)
		}
	}
	cfg.ApplyEnvOverrides()
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	return ValidateConfig(c)
}

// EnsureDirectories creates the directories the configured files live in.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		filepath.Dir(c.Logging.FilePath),
		filepath.Dir(c.Instance.PidFile),
	}
	if c.Dictionary.UsageDB != "" {
		dirs = append(dirs, filepath.Dir(c.Dictionary.UsageDB))
	}
	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables are prefixed with GUREUM_ and use underscores.
func (c *Config) ApplyEnvOverrides() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v := os.Getenv("GUREUM_OPTION_KEY_BEHAVIOR"); v != "" {
		c.Input.OptionKeyBehavior = v
	}
	if v := os.Getenv("GUREUM_HID_BACKEND"); v != "" {
		c.HID.Backend = v
	}
	if v := os.Getenv("GUREUM_DICTIONARY"); v != "" {
		c.Dictionary.Path = v
	}
	if v := os.Getenv("GUREUM_USAGE_DB"); v != "" {
		c.Dictionary.UsageDB = v
	}
	if v := os.Getenv("GUREUM_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("GUREUM_LOG_PATH"); v != "" {
		c.Logging.FilePath = v
	}
	if v := os.Getenv("GUREUM_IBUS_ADDRESS"); v != "" {
		c.IBus.Address = v
	} else if c.IBus.Address == "" {
		c.IBus.Address = os.Getenv("IBUS_ADDRESS")
	}
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	c.mu.RLock()
	defer c.mu.RUnlock()

	clone := &Config{
		Version:    c.Version,
		Input:      c.Input,
		CapsLock:   c.CapsLock,
		HID:        c.HID,
		Candidates: c.Candidates,
		Dictionary: c.Dictionary,
		IBus:       c.IBus,
		Logging:    c.Logging,
		Instance:   c.Instance,
	}
	if c.Input.OptionKeyIgnored != nil {
		v := *c.Input.OptionKeyIgnored
		clone.Input.OptionKeyIgnored = &v
	}
	return clone
}

// OptionKeyBehavior returns the configured option key behavior string.
func (c *Config) OptionKeyBehavior() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Input.OptionKeyBehavior
}

// decodeTOML decodes into cfg, rejecting keys the schema does not know.
func decodeTOML(data []byte, cfg *Config) error {
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("unknown keys: %v", undecoded)
	}
	return nil
}
