// Package hid exposes the subset of a HID event system the input method
// needs: a manager that matches devices and input values and reports value
// changes through a callback scheduled on a run loop, and a connection to
// the system input-event endpoint through which the Caps Lock state is read
// and written.
//
// Two backends exist: Virtual, an in-memory system used in tests and with
// --virtual-hid, and the Linux evdev backend returned by NewSystem.
package hid

import (
	"errors"
	"sync"
	"time"
)

// Usage pages and usages from the USB HID Usage Tables.
const (
	PageGenericDesktop uint16 = 0x01
	PageKeyboard       uint16 = 0x07
	PageLED            uint16 = 0x08

	UsageKeyboard uint16 = 0x06

	UsageKeyboardCapsLock   uint16 = 0x39
	UsageKeyboardScrollLock uint16 = 0x47
	UsageKeyboardNumLock    uint16 = 0x53
)

var (
	// ErrUnavailable is returned when the HID service or the input-event
	// connection cannot be opened.
	ErrUnavailable = errors.New("hid: service unavailable")

	// ErrUnsupportedMatch is returned by Open when the device matching
	// criteria cannot be served by the backend.
	ErrUnsupportedMatch = errors.New("hid: unsupported device matching")

	// ErrClosed is returned for operations on a closed object.
	ErrClosed = errors.New("hid: closed")
)

// Value is one input value change reported by a matched device.
type Value struct {
	Page    uint16
	Usage   uint16
	Integer int
	Device  string
	Time    time.Time
}

// Pressed reports whether the value is a key-down.
func (v Value) Pressed() bool { return v.Integer > 0 }

// InputValueCallback receives value changes. context is the value passed to
// RegisterInputValueCallback and is not interpreted by the manager.
type InputValueCallback func(context any, v Value)

// Manager matches devices and input values and delivers changes to a
// registered callback on the run loop it is scheduled with. Values are only
// delivered while the manager is open, scheduled and has a callback.
type Manager interface {
	SetDeviceMatching(page, usage uint16)
	SetInputValueMatching(min, max uint16)
	RegisterInputValueCallback(cb InputValueCallback, context any)
	UnregisterInputValueCallback()
	Schedule(loop *RunLoop)
	Unschedule(loop *RunLoop)
	Open() error
	Close() error
}

// Connection is the system input-event endpoint.
type Connection interface {
	CapsLockState() (bool, error)
	SetCapsLockState(on bool) error
	Close() error
}

// Service is an opened HID system service.
type Service interface {
	Connect() (Connection, error)
	NewManager() Manager
	Close() error
}

// Opener opens the HID system service.
type Opener interface {
	Open() (Service, error)
}

// callbackSet holds the matching criteria, registration and scheduling that
// every Manager implementation shares.
type callbackSet struct {
	mu        sync.Mutex
	page      uint16
	usage     uint16
	min, max  uint16
	matchSet  bool
	cb        InputValueCallback
	context   any
	loop      *RunLoop
	open      bool
	delivered uint64
}

func (s *callbackSet) SetDeviceMatching(page, usage uint16) {
	s.mu.Lock()
	s.page, s.usage = page, usage
	s.mu.Unlock()
}

func (s *callbackSet) SetInputValueMatching(min, max uint16) {
	s.mu.Lock()
	s.min, s.max, s.matchSet = min, max, true
	s.mu.Unlock()
}

func (s *callbackSet) RegisterInputValueCallback(cb InputValueCallback, context any) {
	s.mu.Lock()
	s.cb, s.context = cb, context
	s.mu.Unlock()
}

func (s *callbackSet) UnregisterInputValueCallback() {
	s.mu.Lock()
	s.cb, s.context = nil, nil
	s.mu.Unlock()
}

func (s *callbackSet) Schedule(loop *RunLoop) {
	s.mu.Lock()
	s.loop = loop
	s.mu.Unlock()
}

func (s *callbackSet) Unschedule(loop *RunLoop) {
	s.mu.Lock()
	if s.loop == loop {
		s.loop = nil
	}
	s.mu.Unlock()
}

func (s *callbackSet) setOpen(open bool) {
	s.mu.Lock()
	s.open = open
	s.mu.Unlock()
}

func (s *callbackSet) matches(v Value) bool {
	if v.Page != PageKeyboard {
		return false
	}
	if !s.matchSet {
		return true
	}
	return v.Usage >= s.min && v.Usage <= s.max
}

func (s *callbackSet) deviceMatching() (page, usage uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page, s.usage
}

func (s *callbackSet) usageRange() (min, max uint16, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.min, s.max, s.matchSet
}

// deliver posts v to the scheduled run loop. It reports whether the value
// was queued.
func (s *callbackSet) deliver(v Value) bool {
	s.mu.Lock()
	if !s.open || s.cb == nil || s.loop == nil || !s.matches(v) {
		s.mu.Unlock()
		return false
	}
	cb, ctx, loop := s.cb, s.context, s.loop
	s.delivered++
	s.mu.Unlock()

	return loop.Perform(func() { cb(ctx, v) })
}
