package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// MigrationResult contains the result of a configuration migration.
type MigrationResult struct {
	FromVersion int
	ToVersion   int
	Backup      string
	Changes     []string
	Warnings    []string
}

// MigrateConfig migrates a configuration from an older version to the current version.
// When configPath is set, the file is backed up first.
func MigrateConfig(cfg *Config, configPath string) (*MigrationResult, error) {
	if cfg.Version >= Version {
		return nil, nil
	}

	result := &MigrationResult{
		FromVersion: cfg.Version,
		ToVersion:   Version,
	}

	if configPath != "" {
		backup, err := backupConfig(configPath)
		if err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("could not create backup: %v", err))
		} else {
			result.Backup = backup
		}
	}

	for cfg.Version < Version {
		changes, warnings, err := applyMigration(cfg)
		if err != nil {
			return result, fmt.Errorf("migration from v%d to v%d failed: %w", cfg.Version, cfg.Version+1, err)
		}
		result.Changes = append(result.Changes, changes...)
		result.Warnings = append(result.Warnings, warnings...)
	}

	return result, nil
}

// MigrateFile upgrades the file at path in place. It returns nil when the
// file is missing or already current.
func MigrateFile(path string) (*MigrationResult, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}
	cfg, err := loadConfigFromFile(path)
	if err != nil {
		return nil, err
	}
	result, err := MigrateConfig(cfg, path)
	if err != nil || result == nil {
		return result, err
	}
	if err := SaveConfig(cfg, path); err != nil {
		return result, err
	}
	return result, nil
}

// upgrades maps a version to the step that lifts it to the next one.
var upgrades = map[int]func(*Config) (changes, warnings []string){
	1: migrateV1ToV2,
}

func applyMigration(cfg *Config) (changes []string, warnings []string, err error) {
	upgrade, ok := upgrades[cfg.Version]
	if !ok {
		return nil, nil, fmt.Errorf("unknown version %d", cfg.Version)
	}
	changes, warnings = upgrade(cfg)
	cfg.Version++
	return changes, warnings, nil
}

// migrateV1ToV2 replaces the boolean option_key_ignored with
// option_key_behavior.
func migrateV1ToV2(cfg *Config) (changes []string, warnings []string) {
	ignored := cfg.Input.OptionKeyIgnored
	if ignored == nil {
		return nil, nil
	}
	behavior := "default"
	if *ignored {
		behavior = "ignore"
	}
	if cfg.Input.OptionKeyBehavior != "default" && cfg.Input.OptionKeyBehavior != behavior {
		warnings = append(warnings, fmt.Sprintf("input.option_key_ignored overrides option_key_behavior %q", cfg.Input.OptionKeyBehavior))
	}
	cfg.Input.OptionKeyBehavior = behavior
	cfg.Input.OptionKeyIgnored = nil
	changes = append(changes, fmt.Sprintf("input.option_key_ignored=%t -> input.option_key_behavior=%q", *ignored, behavior))
	return changes, warnings
}

// backupConfig creates a backup of the config file.
func backupConfig(configPath string) (string, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("read config: %w", err)
	}

	timestamp := time.Now().Format("20060102-150405")
	backupPath := configPath + ".backup-" + timestamp

	if err := os.WriteFile(backupPath, data, 0o600); err != nil {
		return "", fmt.Errorf("write backup: %w", err)
	}

	return backupPath, nil
}

// SaveConfig saves the configuration to a file.
func SaveConfig(cfg *Config, path string) error {
	cfg.mu.RLock()
	var data []byte
	var err error
	switch filepath.Ext(path) {
	case ".json":
		data, err = json.MarshalIndent(cfg, "", "  ")
	case ".yaml", ".yml":
		data, err = yaml.Marshal(cfg)
	default:
		data, err = encodeToTOML(cfg)
	}
	cfg.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	// Replace atomically; the loader may be watching path.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func encodeToTOML(cfg *Config) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("# gureum configuration\n\n")
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
