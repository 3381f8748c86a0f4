package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Loader keeps the current configuration and, once Watch is called,
// replaces it whenever the file changes on disk.
type Loader struct {
	path     string
	debounce time.Duration

	mu       sync.RWMutex
	config   *Config
	raw      []byte
	onChange []func(*Config)

	watcher *fsnotify.Watcher
	stop    chan struct{}
	once    sync.Once
	errs    chan error
}

// NewLoader creates a loader for path, or for ConfigPath when path is
// empty.
func NewLoader(path string) *Loader {
	if path == "" {
		path = ConfigPath()
	}
	return &Loader{
		path:     path,
		debounce: 100 * time.Millisecond,
		stop:     make(chan struct{}),
		errs:     make(chan error, 1),
	}
}

// Path returns the file the loader reads.
func (l *Loader) Path() string { return l.path }

// Load reads, migrates and validates the configuration file.
func (l *Loader) Load() (*Config, error) {
	raw, cfg, err := l.read()
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.config, l.raw = cfg, raw
	l.mu.Unlock()
	return cfg, nil
}

func (l *Loader) read() ([]byte, *Config, error) {
	raw, err := os.ReadFile(l.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Load(l.path)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("validation failed: %w", err)
	}
	return raw, cfg, nil
}

// Config returns the current configuration. Callers must not modify it.
func (l *Loader) Config() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.config
}

// Watch reloads the file after it changes. A file that fails to load or
// validate is reported on Errors and the previous configuration stays.
func (l *Loader) Watch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	// Editors save by rename, so the directory is watched, not the file.
	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		w.Close()
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	l.watcher = w
	go l.watchLoop(w)
	return nil
}

func (l *Loader) watchLoop(w *fsnotify.Watcher) {
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	name := filepath.Base(l.path)
	for {
		select {
		case <-l.stop:
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != name || !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.AfterFunc(l.debounce, l.reload)
			} else {
				timer.Reset(l.debounce)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			l.report(err)
		}
	}
}

// report drops err when the previous one has not been read.
func (l *Loader) report(err error) {
	select {
	case l.errs <- err:
	default:
	}
}

func (l *Loader) reload() {
	select {
	case <-l.stop:
		return
	default:
	}
	raw, cfg, err := l.read()
	if err != nil {
		l.report(fmt.Errorf("reload config: %w", err))
		return
	}

	l.mu.Lock()
	if bytes.Equal(raw, l.raw) && l.config != nil {
		l.mu.Unlock()
		return
	}
	l.config, l.raw = cfg, raw
	callbacks := append([]func(*Config){}, l.onChange...)
	l.mu.Unlock()

	for _, cb := range callbacks {
		cb(cfg)
	}
}

// OnChange registers cb to run after every successful reload.
func (l *Loader) OnChange(cb func(*Config)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = append(l.onChange, cb)
}

// Errors reports reload and watcher failures.
func (l *Loader) Errors() <-chan error {
	return l.errs
}

// Close stops watching. It is safe to call more than once.
func (l *Loader) Close() error {
	var err error
	l.once.Do(func() {
		close(l.stop)
		if l.watcher != nil {
			err = l.watcher.Close()
		}
	})
	return err
}

// loadConfigFromFile reads path over the defaults. A missing file yields
// the defaults at the current version.
func loadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	// A file without a version predates versioning.
	cfg.Version = 1
	if err := decodeFile(filepath.Ext(path), data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

type codec struct {
	name   string
	decode func(data []byte, v any) error
}

var codecs = map[string]codec{
	".toml": {"TOML", toml.Unmarshal},
	".json": {"JSON", json.Unmarshal},
	".yaml": {"YAML", yaml.Unmarshal},
	".yml":  {"YAML", yaml.Unmarshal},
}

// decodeFile checks the raw document against the schema, then decodes it
// over cfg. Unknown extensions are sniffed without schema checks.
func decodeFile(ext string, data []byte, cfg *Config) error {
	c, ok := codecs[strings.ToLower(ext)]
	if !ok {
		return autoDetectAndParse(data, cfg)
	}
	doc := map[string]any{}
	if err := c.decode(data, &doc); err != nil {
		return fmt.Errorf("decode %s: %w", c.name, err)
	}
	if err := ValidateDocument(doc); err != nil {
		return err
	}
	decode := c.decode
	if c.name == "TOML" {
		decode = func(data []byte, v any) error { return decodeTOML(data, v.(*Config)) }
	}
	if err := decode(data, cfg); err != nil {
		return fmt.Errorf("decode %s: %w", c.name, err)
	}
	return nil
}

func autoDetectAndParse(data []byte, cfg *Config) error {
	if err := decodeTOML(data, cfg); err == nil {
		return nil
	}
	if err := json.Unmarshal(data, cfg); err == nil {
		return nil
	}
	if err := yaml.Unmarshal(data, cfg); err == nil {
		return nil
	}
	return errors.New("parse config: not TOML, JSON or YAML")
}
