//go:build linux

package hid

import (
	"fmt"
	"regexp"
	"sort"

	evdevlist "github.com/gvalkov/golang-evdev"
)

// DefaultSearch is the device glob scanned for keyboards.
const DefaultSearch = "/dev/input/event*"

// DefaultBypass skips devices that report key events but are not
// keyboards, and the uinput device used to toggle Caps Lock.
const DefaultBypass = `(?i)video|camera|keybd_event|power button|sleep button`

// DeviceInfo describes an input device found during discovery.
type DeviceInfo struct {
	Path string
	Name string
	Phys string

	// Events maps event types to the codes the device can emit.
	Events map[int][]int
}

// IsKeyboard reports whether the device emits both letter keys and
// Caps Lock, and nothing a keyboard would not.
func (d DeviceInfo) IsKeyboard() bool {
	keys, ok := d.Events[evdevlist.EV_KEY]
	if !ok {
		return false
	}
	for ev := range d.Events {
		switch ev {
		case evdevlist.EV_ABS, evdevlist.EV_REL:
			return false
		case evdevlist.EV_SYN, evdevlist.EV_KEY, evdevlist.EV_MSC, evdevlist.EV_LED, evdevlist.EV_REP, evdevlist.EV_SND, evdevlist.EV_SW:
		default:
			return false
		}
	}
	var hasA, hasCapsLock bool
	for _, code := range keys {
		switch code {
		case evdevlist.KEY_A:
			hasA = true
		case evdevlist.KEY_CAPSLOCK:
			hasCapsLock = true
		}
	}
	return hasA && hasCapsLock
}

// HasCapsLockLED reports whether the device has a Caps Lock indicator.
func (d DeviceInfo) HasCapsLockLED() bool {
	for _, code := range d.Events[evdevlist.EV_LED] {
		if code == evdevlist.LED_CAPSL {
			return true
		}
	}
	return false
}

// Discovery finds keyboards among the devices matching a glob.
type Discovery struct {
	Search string
	Bypass *regexp.Regexp
}

// NewDiscovery compiles bypass and applies defaults for empty values.
func NewDiscovery(search, bypass string) (*Discovery, error) {
	if search == "" {
		search = DefaultSearch
	}
	if bypass == "" {
		bypass = DefaultBypass
	}
	re, err := regexp.Compile(bypass)
	if err != nil {
		return nil, fmt.Errorf("invalid bypass pattern %q: %w", bypass, err)
	}
	return &Discovery{Search: search, Bypass: re}, nil
}

// Keyboards lists keyboard devices, sorted by path.
func (d *Discovery) Keyboards() ([]DeviceInfo, error) {
	all, err := d.All()
	if err != nil {
		return nil, err
	}
	var kbds []DeviceInfo
	for _, info := range all {
		if d.Accept(info) {
			kbds = append(kbds, info)
		}
	}
	return kbds, nil
}

// All lists every readable device matching the search glob.
func (d *Discovery) All() ([]DeviceInfo, error) {
	devices, err := evdevlist.ListInputDevices(d.Search)
	if err != nil {
		return nil, fmt.Errorf("list input devices: %w", err)
	}
	infos := make([]DeviceInfo, 0, len(devices))
	for _, dev := range devices {
		infos = append(infos, describe(dev))
		dev.File.Close()
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Path < infos[j].Path })
	return infos, nil
}

// Probe describes the device at path.
func (d *Discovery) Probe(path string) (DeviceInfo, error) {
	dev, err := evdevlist.Open(path)
	if err != nil {
		return DeviceInfo{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer dev.File.Close()
	return describe(dev), nil
}

// Accept reports whether info is a keyboard that is not bypassed.
func (d *Discovery) Accept(info DeviceInfo) bool {
	if d.Bypass != nil && d.Bypass.MatchString(info.Name) {
		return false
	}
	return info.IsKeyboard()
}

func describe(dev *evdevlist.InputDevice) DeviceInfo {
	return DeviceInfo{
		Path:   dev.Fn,
		Name:   dev.Name,
		Phys:   dev.Phys,
		Events: dev.CapabilitiesFlat,
	}
}
