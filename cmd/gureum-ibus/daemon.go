//go:build linux

package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/godbus/dbus/v5"

	"gureum/internal/capslock"
	"gureum/internal/composer"
	"gureum/internal/config"
	"gureum/internal/hid"
	"gureum/internal/ime"
	"gureum/internal/instance"
	"gureum/internal/logging"
	"gureum/internal/store"
)

// daemon owns everything the engine process opens. stop releases what
// start managed to open, in reverse dependency order.
type daemon struct {
	cfg        *config.Config
	loader     *config.Loader
	log        *logging.Logger
	logger     *slog.Logger
	virtualHID bool
	debug      bool

	lock    *instance.Lock
	loop    *hid.RunLoop
	watcher *capslock.Watcher
	usage   *store.Store
	conn    *dbus.Conn
	factory *ime.Factory
}

func (d *daemon) start() error {
	var err error
	if d.lock, err = instance.Acquire(d.cfg.Instance.PidFile); err != nil {
		return err
	}

	opener, err := hidOpener(d.cfg.HID, d.virtualHID, d.logger)
	if err != nil {
		return fmt.Errorf("hid: %w", err)
	}
	d.loop = hid.NewRunLoop()
	if err := d.loop.Start(); err != nil {
		return err
	}
	d.watcher, err = capslock.New(opener, d.loop, capslock.Options{
		DefaultState: d.cfg.CapsLock.DefaultState,
		Logger:       d.logger,
	})
	if err != nil {
		return fmt.Errorf("caps lock watcher: %w", err)
	}

	d.usage = openUsage(d.cfg.Dictionary.UsageDB, d.logger)
	lexicon := loadLexicon(d.cfg.Dictionary.Path, d.logger)

	if d.conn, err = ime.ConnectIBus(d.cfg.IBus.Address); err != nil {
		return err
	}
	panel := ime.NewLookupPanel(d.conn, ime.PanelOptions{
		PageSize:    d.cfg.Candidates.PageSize,
		Orientation: ime.ParseOrientation(d.cfg.Candidates.Orientation),
		Logger:      d.logger,
	})
	server, err := ime.NewServer(ime.ServerOptions{
		CapsLock:   d.watcher,
		Candidates: panel,
		OptionKeys: optionKeys(d.loader),
		Logger:     d.logger,
	})
	if err != nil {
		return err
	}
	d.factory, err = ime.NewFactory(d.conn, ime.FactoryOptions{
		Server:          server,
		Panel:           panel,
		NewComposer:     composerFactory(lexicon, d.usage, d.cfg, d.logger),
		CapsLockToggles: func() bool { return d.loader.Config().CapsLock.TogglesMode },
		Logger:          d.logger,
	})
	if err != nil {
		return err
	}
	if err := ime.Publish(d.conn, d.factory, d.cfg.IBus.BusName); err != nil {
		return err
	}

	d.loader.OnChange(d.reconfigure)
	go d.reportConfigErrors()

	d.logger.Info("engine ready",
		"bus_name", d.cfg.IBus.BusName,
		"dictionary", lexicon != nil,
		"virtual_hid", d.virtualHID)
	return nil
}

func (d *daemon) reconfigure(cfg *config.Config) {
	d.watcher.SetDefaultState(cfg.CapsLock.DefaultState)
	if level, err := logging.ParseLevel(cfg.Logging.Level); err == nil && !d.debug {
		d.log.SetLevel(level)
	}
	d.logger.Info("configuration reloaded",
		"caps_lock_default", cfg.CapsLock.DefaultState,
		"option_key_behavior", cfg.OptionKeyBehavior())
}

func (d *daemon) reportConfigErrors() {
	for err := range d.loader.Errors() {
		d.logger.Warn("configuration reload rejected", "error", err)
	}
}

// wait blocks until a termination signal or until the bus drops.
func (d *daemon) wait() {
	sig := waitForSignal(d.conn.Context().Done())
	if sig != nil {
		d.logger.Info("shutting down", "signal", sig.String())
		return
	}
	d.logger.Warn("ibus connection closed")
}

func (d *daemon) stop() {
	if d.factory != nil {
		d.factory.Destroy()
	}
	if d.watcher != nil {
		if err := d.watcher.Close(); err != nil {
			d.logger.Warn("close caps lock watcher", "error", err)
		}
	}
	if d.loop != nil {
		d.loop.Stop()
	}
	if d.conn != nil {
		d.conn.Close()
	}
	if d.usage != nil {
		if err := d.usage.Close(); err != nil {
			d.logger.Warn("close usage store", "error", err)
		}
	}
	if d.lock != nil {
		if err := d.lock.Release(); err != nil {
			d.logger.Warn("release instance lock", "error", err)
		}
	}
}

func hidOpener(c config.HIDConfig, virtual bool, logger *slog.Logger) (hid.Opener, error) {
	if virtual || c.Backend == "virtual" {
		return hid.NewVirtual(), nil
	}
	return hid.NewSystem(hid.SystemOptions{
		Search:  c.Search,
		Bypass:  c.Bypass,
		Hotplug: c.Hotplug,
		Logger:  logger,
	})
}

// openUsage opens the usage database, falling back to memory so that
// a broken database never blocks typing.
func openUsage(path string, logger *slog.Logger) *store.Store {
	if path != "" {
		s, err := store.Open(path)
		if err == nil {
			return s
		}
		logger.Warn("usage database unavailable, keeping usage in memory", "path", path, "error", err)
	}
	s, err := store.Open(":memory:")
	if err != nil {
		logger.Error("in-memory usage store", "error", err)
		return nil
	}
	return s
}

// loadLexicon returns nil when the dictionary is disabled or missing.
func loadLexicon(path string, logger *slog.Logger) *composer.Lexicon {
	if path == "" {
		return nil
	}
	lex, err := composer.LoadLexicon(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		logger.Info("no dictionary file, dictionary mode disabled", "path", path)
		return nil
	case err != nil:
		logger.Warn("dictionary not loaded", "path", path, "error", err)
		return nil
	}
	logger.Info("dictionary loaded", "path", path, "entries", lex.Len())
	return lex
}

func optionKeys(loader *config.Loader) ime.OptionKeySource {
	return ime.OptionKeySourceFunc(func() ime.OptionKeyBehavior {
		b, err := ime.ParseOptionKeyBehavior(loader.Config().OptionKeyBehavior())
		if err != nil {
			return ime.OptionKeyDefault
		}
		return b
	})
}

// composerFactory builds the per-engine composer: plain Roman input, plus
// the dictionary mode when a lexicon is loaded.
func composerFactory(lex *composer.Lexicon, usage *store.Store, cfg *config.Config, logger *slog.Logger) func() ime.Composer {
	return func() ime.Composer {
		modes := []composer.Mode{{Name: "roman", Composer: composer.NewRoman()}}
		if lex != nil {
			opts := composer.DictionaryOptions{
				MaxCandidates: cfg.Dictionary.MaxCandidates,
				PageSize:      cfg.Candidates.PageSize,
				Logger:        logger,
			}
			// A nil *store.Store must not become a non-nil interface.
			if usage != nil {
				opts.Usage = usage
			}
			modes = append(modes, composer.Mode{Name: "dictionary", Composer: composer.NewDictionary(lex, opts)})
		}
		return composer.NewSwitcher(logger, modes...)
	}
}
