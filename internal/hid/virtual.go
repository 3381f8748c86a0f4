package hid

import (
	"fmt"
	"sync"
	"time"
)

// Virtual is an in-memory HID system. It holds a simulated system Caps Lock
// state and lets callers inject key values into every open manager.
type Virtual struct {
	mu sync.Mutex

	openErr         error
	connectErr      error
	managerOpenErr  error
	managerCloseErr error

	serviceOpen bool
	conns       int
	managers    []*virtualManager

	capsLock bool
	writes   int
}

// NewVirtual returns a virtual HID system with Caps Lock off.
func NewVirtual() *Virtual {
	return &Virtual{}
}

// FailOpen makes Open return err.
func (v *Virtual) FailOpen(err error) { v.mu.Lock(); v.openErr = err; v.mu.Unlock() }

// FailConnect makes Connect return err.
func (v *Virtual) FailConnect(err error) { v.mu.Lock(); v.connectErr = err; v.mu.Unlock() }

// FailManagerOpen makes Manager.Open return err.
func (v *Virtual) FailManagerOpen(err error) { v.mu.Lock(); v.managerOpenErr = err; v.mu.Unlock() }

// FailManagerClose makes Manager.Close return err.
func (v *Virtual) FailManagerClose(err error) { v.mu.Lock(); v.managerCloseErr = err; v.mu.Unlock() }

// Open implements Opener.
func (v *Virtual) Open() (Service, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.openErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, v.openErr)
	}
	v.serviceOpen = true
	return &virtualService{sys: v}, nil
}

// SystemCapsLock returns the simulated system Caps Lock state.
func (v *Virtual) SystemCapsLock() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.capsLock
}

// SetSystemCapsLock changes the system state without going through a
// Connection, as another program would.
func (v *Virtual) SetSystemCapsLock(on bool) {
	v.mu.Lock()
	v.capsLock = on
	v.mu.Unlock()
}

// Writes returns the number of Connection.SetCapsLockState calls.
func (v *Virtual) Writes() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.writes
}

// ServiceOpen reports whether a service handed out by Open is still open.
func (v *Virtual) ServiceOpen() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.serviceOpen
}

// OpenConnections returns the number of connections not yet closed.
func (v *Virtual) OpenConnections() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.conns
}

// Inject delivers a value to every manager. It returns the number of
// managers that queued it.
func (v *Virtual) Inject(val Value) int {
	if val.Time.IsZero() {
		val.Time = time.Now()
	}
	if val.Device == "" {
		val.Device = "virtual"
	}
	v.mu.Lock()
	managers := append([]*virtualManager(nil), v.managers...)
	v.mu.Unlock()

	n := 0
	for _, m := range managers {
		if m.deliver(val) {
			n++
		}
	}
	return n
}

// Press simulates a physical Caps Lock key-down: the system toggles its
// state and the managers see value 1.
func (v *Virtual) Press() int {
	v.mu.Lock()
	v.capsLock = !v.capsLock
	v.mu.Unlock()
	return v.Inject(Value{Page: PageKeyboard, Usage: UsageKeyboardCapsLock, Integer: 1})
}

// Release simulates the matching key-up.
func (v *Virtual) Release() int {
	return v.Inject(Value{Page: PageKeyboard, Usage: UsageKeyboardCapsLock, Integer: 0})
}

type virtualService struct {
	sys    *Virtual
	closed bool
}

func (s *virtualService) Connect() (Connection, error) {
	s.sys.mu.Lock()
	defer s.sys.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if s.sys.connectErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, s.sys.connectErr)
	}
	s.sys.conns++
	return &virtualConnection{sys: s.sys}, nil
}

func (s *virtualService) NewManager() Manager {
	m := &virtualManager{sys: s.sys}
	s.sys.mu.Lock()
	s.sys.managers = append(s.sys.managers, m)
	s.sys.mu.Unlock()
	return m
}

func (s *virtualService) Close() error {
	s.sys.mu.Lock()
	defer s.sys.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.closed = true
	s.sys.serviceOpen = false
	return nil
}

type virtualManager struct {
	callbackSet
	sys *Virtual
}

func (m *virtualManager) Open() error {
	m.sys.mu.Lock()
	err := m.sys.managerOpenErr
	m.sys.mu.Unlock()
	if err != nil {
		return err
	}
	if page, usage := m.deviceMatching(); page != PageGenericDesktop || usage != UsageKeyboard {
		return fmt.Errorf("%w: page 0x%02x usage 0x%02x", ErrUnsupportedMatch, page, usage)
	}
	m.setOpen(true)
	return nil
}

func (m *virtualManager) Close() error {
	m.sys.mu.Lock()
	err := m.sys.managerCloseErr
	m.sys.mu.Unlock()
	if err != nil {
		return err
	}
	m.setOpen(false)
	return nil
}

type virtualConnection struct {
	sys    *Virtual
	closed bool
}

func (c *virtualConnection) CapsLockState() (bool, error) {
	c.sys.mu.Lock()
	defer c.sys.mu.Unlock()
	if c.closed {
		return false, ErrClosed
	}
	return c.sys.capsLock, nil
}

func (c *virtualConnection) SetCapsLockState(on bool) error {
	c.sys.mu.Lock()
	defer c.sys.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.sys.capsLock = on
	c.sys.writes++
	return nil
}

func (c *virtualConnection) Close() error {
	c.sys.mu.Lock()
	defer c.sys.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.closed = true
	c.sys.conns--
	return nil
}
