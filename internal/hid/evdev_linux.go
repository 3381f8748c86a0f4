//go:build linux

package hid

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	evdev "github.com/holoplot/go-evdev"

	"gureum/internal/logging"
)

// SystemOptions configures the evdev backend.
type SystemOptions struct {
	// Search is the glob of event devices to scan.
	Search string
	// Bypass is a regular expression matched against device names to skip.
	Bypass string
	// Hotplug attaches keyboards connected after the manager opens.
	Hotplug bool
	Logger  *slog.Logger
}

// usageByCode maps evdev key codes to keyboard page usages.
var usageByCode = map[evdev.EvCode]uint16{
	evdev.KEY_CAPSLOCK:   UsageKeyboardCapsLock,
	evdev.KEY_SCROLLLOCK: UsageKeyboardScrollLock,
	evdev.KEY_NUMLOCK:    UsageKeyboardNumLock,
	evdev.KEY_LEFTCTRL:   0xE0,
	evdev.KEY_LEFTSHIFT:  0xE1,
	evdev.KEY_LEFTALT:    0xE2,
	evdev.KEY_LEFTMETA:   0xE3,
	evdev.KEY_RIGHTCTRL:  0xE4,
	evdev.KEY_RIGHTSHIFT: 0xE5,
	evdev.KEY_RIGHTALT:   0xE6,
	evdev.KEY_RIGHTMETA:  0xE7,
}

// UsageForEvdev returns the keyboard page usage of an evdev key code.
func UsageForEvdev(code uint16) (uint16, bool) {
	u, ok := usageByCode[evdev.EvCode(code)]
	return u, ok
}

// NewSystem returns an Opener for the Linux evdev input subsystem.
func NewSystem(opts SystemOptions) (Opener, error) {
	disc, err := NewDiscovery(opts.Search, opts.Bypass)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &evdevSystem{disc: disc, hotplug: opts.Hotplug, logger: logger}, nil
}

type evdevSystem struct {
	disc    *Discovery
	hotplug bool
	logger  *slog.Logger
}

func (s *evdevSystem) Open() (Service, error) {
	kbds, err := s.disc.Keyboards()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(kbds) == 0 {
		return nil, fmt.Errorf("%w: no readable keyboard under %s", ErrUnavailable, s.disc.Search)
	}
	return &evdevService{sys: s}, nil
}

type evdevService struct {
	sys *evdevSystem

	mu       sync.Mutex
	managers []*evdevManager
	closed   bool
}

func (s *evdevService) Connect() (Connection, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}
	conn, err := newLockConnection(s.sys.disc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return conn, nil
}

func (s *evdevService) NewManager() Manager {
	m := &evdevManager{
		disc:    s.sys.disc,
		hotplug: s.sys.hotplug,
		logger:  s.sys.logger.With(logging.SubsystemKey, "hid"),
		readers: make(map[string]*evdev.InputDevice),
	}
	s.mu.Lock()
	s.managers = append(s.managers, m)
	s.mu.Unlock()
	return m
}

func (s *evdevService) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.closed = true
	managers := s.managers
	s.managers = nil
	s.mu.Unlock()

	var errs []error
	for _, m := range managers {
		if err := m.shutdown(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// evdevManager reads key events from every matched keyboard.
type evdevManager struct {
	callbackSet

	disc    *Discovery
	hotplug bool
	logger  *slog.Logger

	devMu    sync.Mutex
	readers  map[string]*evdev.InputDevice
	watcher  *fsnotify.Watcher
	stopChan chan struct{}
	wg       sync.WaitGroup
}

func (m *evdevManager) Open() error {
	if page, usage := m.deviceMatching(); page != PageGenericDesktop || usage != UsageKeyboard {
		return fmt.Errorf("%w: page 0x%02x usage 0x%02x", ErrUnsupportedMatch, page, usage)
	}

	kbds, err := m.disc.Keyboards()
	if err != nil {
		return err
	}

	m.devMu.Lock()
	m.stopChan = make(chan struct{})
	m.devMu.Unlock()

	for _, info := range kbds {
		if err := m.attach(info); err != nil {
			m.logger.Warn("keyboard not attached", "path", info.Path, "name", info.Name, "error", err)
		}
	}

	if m.hotplug {
		if err := m.watch(filepath.Dir(m.disc.Search)); err != nil {
			m.logger.Warn("hotplug disabled", "error", err)
		}
	}

	m.setOpen(true)

	m.devMu.Lock()
	n := len(m.readers)
	m.devMu.Unlock()
	if n == 0 && !m.hotplug {
		return errors.New("no keyboard could be opened")
	}
	return nil
}

func (m *evdevManager) attach(info DeviceInfo) error {
	m.devMu.Lock()
	defer m.devMu.Unlock()
	if _, ok := m.readers[info.Path]; ok {
		return nil
	}
	dev, err := evdev.Open(info.Path)
	if err != nil {
		return err
	}
	m.readers[info.Path] = dev
	m.wg.Add(1)
	go m.read(info, dev)
	m.logger.Info("keyboard attached", "path", info.Path, "name", info.Name)
	return nil
}

func (m *evdevManager) read(info DeviceInfo, dev *evdev.InputDevice) {
	defer m.wg.Done()
	for {
		ev, err := dev.ReadOne()
		if err != nil {
			m.devMu.Lock()
			_, tracked := m.readers[info.Path]
			delete(m.readers, info.Path)
			m.devMu.Unlock()
			if tracked {
				dev.Close()
				m.logger.Info("keyboard detached", "path", info.Path, "error", err)
			}
			return
		}
		// value 2 is autorepeat, not a change of value
		if ev.Type != evdev.EV_KEY || ev.Value == 2 {
			continue
		}
		usage, ok := UsageForEvdev(uint16(ev.Code))
		if !ok {
			continue
		}
		m.deliver(Value{
			Page:    PageKeyboard,
			Usage:   usage,
			Integer: int(ev.Value),
			Device:  info.Name,
			Time:    time.Unix(int64(ev.Time.Sec), int64(ev.Time.Usec)*1000),
		})
	}
}

func (m *evdevManager) watch(dir string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return err
	}
	m.devMu.Lock()
	m.watcher = w
	stop := m.stopChan
	m.devMu.Unlock()

	m.wg.Add(1)
	go m.watchLoop(w, stop)
	return nil
}

func (m *evdevManager) watchLoop(w *fsnotify.Watcher, stop <-chan struct{}) {
	defer m.wg.Done()
	for {
		select {
		case <-stop:
			return
		case event, ok := <-w.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) {
				continue
			}
			if matched, _ := filepath.Match(m.disc.Search, event.Name); !matched {
				continue
			}
			m.probeNew(event.Name, stop)
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			m.logger.Warn("device watcher error", "error", err)
		}
	}
}

// probeNew retries while udev is still applying permissions to the node.
func (m *evdevManager) probeNew(path string, stop <-chan struct{}) {
	delay := 50 * time.Millisecond
	for attempt := 0; attempt < 5; attempt++ {
		info, err := m.disc.Probe(path)
		if err == nil {
			if m.disc.Accept(info) {
				if err := m.attach(info); err != nil {
					m.logger.Warn("keyboard not attached", "path", path, "error", err)
				}
			}
			return
		}
		select {
		case <-stop:
			return
		case <-time.After(delay):
			delay *= 2
		}
	}
	m.logger.Debug("new input device not readable", "path", path)
}

func (m *evdevManager) Close() error {
	m.setOpen(false)
	return m.shutdown()
}

func (m *evdevManager) shutdown() error {
	m.devMu.Lock()
	if m.stopChan != nil {
		close(m.stopChan)
		m.stopChan = nil
	}
	var errs []error
	if m.watcher != nil {
		if err := m.watcher.Close(); err != nil {
			errs = append(errs, err)
		}
		m.watcher = nil
	}
	readers := m.readers
	m.readers = make(map[string]*evdev.InputDevice)
	m.devMu.Unlock()

	for path, dev := range readers {
		if err := dev.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", path, err))
		}
	}
	m.wg.Wait()
	return errors.Join(errs...)
}
