//go:build linux

package hid

import (
	"testing"

	evdevlist "github.com/gvalkov/golang-evdev"
	evdev "github.com/holoplot/go-evdev"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keyboardEvents() map[int][]int {
	return map[int][]int{
		evdevlist.EV_SYN: {0},
		evdevlist.EV_KEY: {evdevlist.KEY_ESC, evdevlist.KEY_A, evdevlist.KEY_CAPSLOCK, evdevlist.KEY_ENTER},
		evdevlist.EV_MSC: {4},
		evdevlist.EV_LED: {evdevlist.LED_NUML, evdevlist.LED_CAPSL},
		evdevlist.EV_REP: {0, 1},
	}
}

func TestDeviceInfoIsKeyboard(t *testing.T) {
	tests := []struct {
		name   string
		events map[int][]int
		want   bool
	}{
		{"keyboard", keyboardEvents(), true},
		{"no key events", map[int][]int{evdevlist.EV_SYN: {0}}, false},
		{"media keys only", map[int][]int{evdevlist.EV_KEY: {evdevlist.KEY_VOLUMEUP}}, false},
		{"mouse", map[int][]int{
			evdevlist.EV_KEY: {evdevlist.KEY_A, evdevlist.KEY_CAPSLOCK},
			evdevlist.EV_REL: {0, 1},
		}, false},
		{"tablet", map[int][]int{
			evdevlist.EV_KEY: {evdevlist.KEY_A, evdevlist.KEY_CAPSLOCK},
			evdevlist.EV_ABS: {0},
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeviceInfo{Events: tt.events}.IsKeyboard())
		})
	}
}

func TestDeviceInfoHasCapsLockLED(t *testing.T) {
	assert.True(t, DeviceInfo{Events: keyboardEvents()}.HasCapsLockLED())
	assert.False(t, DeviceInfo{Events: map[int][]int{evdevlist.EV_LED: {evdevlist.LED_NUML}}}.HasCapsLockLED())
}

func TestDiscoveryAcceptAppliesBypass(t *testing.T) {
	disc, err := NewDiscovery("", "")
	require.NoError(t, err)
	assert.Equal(t, DefaultSearch, disc.Search)

	kbd := DeviceInfo{Name: "AT Translated Set 2 keyboard", Events: keyboardEvents()}
	assert.True(t, disc.Accept(kbd))

	kbd.Name = "keybd_event"
	assert.False(t, disc.Accept(kbd))

	kbd.Name = "Integrated Camera: Integrated C"
	assert.False(t, disc.Accept(kbd))
}

func TestNewDiscoveryRejectsBadPattern(t *testing.T) {
	_, err := NewDiscovery("", "([")
	assert.Error(t, err)
}

func TestUsageForEvdev(t *testing.T) {
	u, ok := UsageForEvdev(uint16(evdev.KEY_CAPSLOCK))
	assert.True(t, ok)
	assert.Equal(t, UsageKeyboardCapsLock, u)

	_, ok = UsageForEvdev(uint16(evdev.KEY_A))
	assert.False(t, ok)
}

func TestEvdevManagerRejectsNonKeyboardMatching(t *testing.T) {
	disc, err := NewDiscovery("", "")
	require.NoError(t, err)
	m := &evdevManager{disc: disc, readers: map[string]*evdev.InputDevice{}}
	m.SetDeviceMatching(PageGenericDesktop, 0x02)
	assert.ErrorIs(t, m.Open(), ErrUnsupportedMatch)
}
