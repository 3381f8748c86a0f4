//go:build linux

package hid

import (
	"errors"
	"fmt"
	"sync"
	"time"

	evdev "github.com/holoplot/go-evdev"
	"github.com/micmonay/keybd_event"
)

// lockConnection reads the Caps Lock state from keyboard LEDs and changes
// it by tapping Caps Lock on a uinput keyboard, so the display server's
// lock state follows.
type lockConnection struct {
	mu     sync.Mutex
	kb     keybd_event.KeyBonding
	leds   []*evdev.InputDevice
	tap    tapGuard
	closed bool
}

// ledSettle is how long the kernel may take to reflect a tap on the LED.
const ledSettle = 50 * time.Millisecond

// tapGuard remembers the last tap so a stale LED read does not trigger a
// second tap that would undo the first.
type tapGuard struct {
	settle time.Duration
	want   bool
	at     time.Time
}

// needed reports whether the lock must be tapped to move from led to want.
func (g *tapGuard) needed(led, want bool, now time.Time) bool {
	if led == want {
		return false
	}
	if !g.at.IsZero() && g.want == want && now.Sub(g.at) < g.settle {
		return false
	}
	return true
}

func (g *tapGuard) record(want bool, now time.Time) {
	g.want, g.at = want, now
}

func newLockConnection(disc *Discovery) (*lockConnection, error) {
	kbds, err := disc.Keyboards()
	if err != nil {
		return nil, err
	}
	c := &lockConnection{tap: tapGuard{settle: ledSettle}}
	for _, info := range kbds {
		if !info.HasCapsLockLED() {
			continue
		}
		dev, err := evdev.Open(info.Path)
		if err != nil {
			continue
		}
		c.leds = append(c.leds, dev)
	}
	if len(c.leds) == 0 {
		return nil, errors.New("no keyboard with a caps lock indicator")
	}

	kb, err := keybd_event.NewKeyBonding()
	if err != nil {
		c.closeLEDs()
		return nil, fmt.Errorf("create virtual keyboard: %w", err)
	}
	c.kb = kb
	return c, nil
}

func (c *lockConnection) CapsLockState() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false, ErrClosed
	}
	return c.ledState()
}

func (c *lockConnection) ledState() (bool, error) {
	var lastErr error
	for _, dev := range c.leds {
		state, err := dev.State(evdev.EV_LED)
		if err != nil {
			lastErr = err
			continue
		}
		return state[evdev.LED_CAPSL], nil
	}
	return false, fmt.Errorf("read caps lock indicator: %w", lastErr)
}

func (c *lockConnection) SetCapsLockState(on bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	// The LED lags the uinput tap, so a read right after a tap can still
	// show the old state.
	current, err := c.ledState()
	if err != nil {
		return err
	}
	now := time.Now()
	if !c.tap.needed(current, on, now) {
		return nil
	}

	c.kb.Clear()
	c.kb.SetKeys(keybd_event.VK_CAPSLOCK)
	if err := c.kb.Launching(); err != nil {
		return fmt.Errorf("toggle caps lock: %w", err)
	}
	c.tap.record(on, now)

	value := int32(0)
	if on {
		value = 1
	}
	for _, dev := range c.leds {
		dev.WriteOne(&evdev.InputEvent{Type: evdev.EV_LED, Code: evdev.LED_CAPSL, Value: value})
	}
	return nil
}

func (c *lockConnection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.closed = true
	c.closeLEDs()
	return nil
}

func (c *lockConnection) closeLEDs() {
	for _, dev := range c.leds {
		dev.Close()
	}
	c.leds = nil
}
