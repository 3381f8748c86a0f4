// Package capslock keeps the system Caps Lock state pinned to a configured
// default while recording that the key was pressed, so the input method
// can treat Caps Lock as an ordinary trigger key.
//
// A Watcher subscribes to Caps Lock value changes on every keyboard. Each
// change, key-down or key-up, forces the system state back to the default;
// key-downs also raise a flag that TestAndClearCapsLockState reads and
// resets.
package capslock

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"gureum/internal/hid"
	"gureum/internal/logging"
)

var (
	// ErrUnavailable is returned by New when the HID service or the
	// system input-event connection cannot be opened.
	ErrUnavailable = errors.New("capslock: HID unavailable")

	// ErrClosed is returned by Close on a watcher that is already closed.
	ErrClosed = errors.New("capslock: watcher closed")
)

// State is the lifecycle state of a Watcher.
type State int

const (
	StateUninitialized State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Options configures a Watcher.
type Options struct {
	// DefaultState is the Caps Lock state the system is held at.
	DefaultState bool
	Logger       *slog.Logger
}

// Watcher owns the HID manager, the system connection and the
// subscription through which HID callbacks reach it.
type Watcher struct {
	logger *slog.Logger
	loop   *hid.RunLoop

	service hid.Service
	conn    hid.Connection
	manager hid.Manager
	sub     *subscription

	// mu guards the flag, the default and every write of the system state.
	mu           sync.Mutex
	state        State
	closing      bool
	pressed      bool
	defaultState bool
}

// subscription is the callback context handed to the HID manager. Its
// reference to the watcher does not own it and is cleared at Close.
type subscription struct {
	mu      sync.Mutex
	watcher *Watcher
}

func (s *subscription) target() *Watcher {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.watcher
}

func (s *subscription) detach() {
	s.mu.Lock()
	s.watcher = nil
	s.mu.Unlock()
}

// New opens the HID service and the system connection and starts watching
// Caps Lock on loop. Either open failing returns an error wrapping
// ErrUnavailable; the input method cannot run without a watcher.
func New(opener hid.Opener, loop *hid.RunLoop, opts Options) (*Watcher, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default().Logger
	}
	w := &Watcher{
		logger:       logger.With(logging.SubsystemKey, "capslock"),
		loop:         loop,
		defaultState: opts.DefaultState,
	}

	svc, err := opener.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: open HID service: %v", ErrUnavailable, err)
	}
	conn, err := svc.Connect()
	if err != nil {
		svc.Close()
		return nil, fmt.Errorf("%w: open input event connection: %v", ErrUnavailable, err)
	}
	w.service = svc
	w.conn = conn

	// Values can arrive as soon as the callback is scheduled and every one
	// of them must be forced back to the default.
	w.mu.Lock()
	w.state = StateOpen
	w.mu.Unlock()

	w.manager = svc.NewManager()
	w.manager.SetDeviceMatching(hid.PageGenericDesktop, hid.UsageKeyboard)
	w.manager.SetInputValueMatching(hid.UsageKeyboardCapsLock, hid.UsageKeyboardCapsLock)

	w.sub = &subscription{watcher: w}
	w.manager.RegisterInputValueCallback(handleInputValue, w.sub)
	w.manager.Schedule(loop)

	if err := w.manager.Open(); err != nil {
		w.logger.Error("HID manager open failed", "error", err)
	}

	w.logger.Info("caps lock watcher open", "default_state", opts.DefaultState)
	return w, nil
}

// handleInputValue runs on the HID run loop.
func handleInputValue(context any, v hid.Value) {
	sub, ok := context.(*subscription)
	if !ok || sub == nil {
		logging.Warn("caps lock callback with unexpected context", "context", fmt.Sprintf("%T", context))
		return
	}
	w := sub.target()
	if w == nil {
		logging.Warn("caps lock callback after watcher closed")
		return
	}
	w.observe(v)
}

func (w *Watcher) observe(v hid.Value) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != StateOpen {
		return
	}
	if v.Pressed() {
		w.pressed = true
	}
	w.logger.Debug("caps lock value", "value", v.Integer, "device", v.Device)
	w.forceDefault()
}

// forceDefault must be called with w.mu held.
func (w *Watcher) forceDefault() {
	if err := w.conn.SetCapsLockState(w.defaultState); err != nil {
		w.logger.Warn("set caps lock state failed", "error", err)
	}
}

// TestAndClearCapsLockState reports whether Caps Lock was pressed since the
// previous call, clears the flag and re-asserts the default system state.
func (w *Watcher) TestAndClearCapsLockState() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	pressed := w.pressed
	w.pressed = false
	if w.state == StateOpen {
		w.forceDefault()
	}
	return pressed
}

// DefaultState returns the state the system Caps Lock is held at.
func (w *Watcher) DefaultState() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.defaultState
}

// SetDefaultState changes the held state and applies it immediately.
func (w *Watcher) SetDefaultState(on bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.defaultState == on {
		return
	}
	w.defaultState = on
	if w.state == StateOpen {
		w.forceDefault()
	}
}

// State returns the lifecycle state.
func (w *Watcher) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Close unschedules and unregisters the callback, closes the manager and
// releases the connection and service. It panics if the manager fails to
// close. Callbacks already queued keep forcing the default until the
// subscription is detached.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.state != StateOpen || w.closing {
		w.mu.Unlock()
		return ErrClosed
	}
	w.closing = true
	w.mu.Unlock()

	w.manager.Unschedule(w.loop)
	w.manager.UnregisterInputValueCallback()
	if err := w.manager.Close(); err != nil {
		panic(fmt.Sprintf("capslock: HID manager close failed: %v", err))
	}
	w.sub.detach()

	w.mu.Lock()
	w.state = StateClosed
	w.mu.Unlock()

	var errs []error
	if err := w.conn.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close connection: %w", err))
	}
	if err := w.service.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close service: %w", err))
	}
	w.logger.Info("caps lock watcher closed")
	return errors.Join(errs...)
}
