//go:build linux

package ime

import (
	"github.com/godbus/dbus/v5"
)

// IBus serializes its objects as D-Bus structs whose first two fields are
// the type name and an attachment dictionary.

type ibusAttrList struct {
	Name        string
	Attachments map[string]dbus.Variant
	Attributes  []dbus.Variant
}

type ibusText struct {
	Name        string
	Attachments map[string]dbus.Variant
	Text        string
	AttrList    dbus.Variant
}

type ibusLookupTable struct {
	Name          string
	Attachments   map[string]dbus.Variant
	PageSize      uint32
	CursorPos     uint32
	CursorVisible bool
	Round         bool
	Orientation   int32
	Candidates    []dbus.Variant
	Labels        []dbus.Variant
}

// Lookup table orientations understood by the IBus panel.
const (
	OrientationHorizontal int32 = 0
	OrientationVertical   int32 = 1
	OrientationSystem     int32 = 2
)

// ParseOrientation maps a config value to an IBus orientation.
func ParseOrientation(s string) int32 {
	switch s {
	case "horizontal":
		return OrientationHorizontal
	case "vertical":
		return OrientationVertical
	default:
		return OrientationSystem
	}
}

func textVariant(s string) dbus.Variant {
	return dbus.MakeVariant(ibusText{
		Name:        "IBusText",
		Attachments: map[string]dbus.Variant{},
		Text:        s,
		AttrList: dbus.MakeVariant(ibusAttrList{
			Name:        "IBusAttrList",
			Attachments: map[string]dbus.Variant{},
			Attributes:  []dbus.Variant{},
		}),
	})
}

func lookupTableVariant(candidates []string, cursor, pageSize int, orientation int32) dbus.Variant {
	t := ibusLookupTable{
		Name:          "IBusLookupTable",
		Attachments:   map[string]dbus.Variant{},
		PageSize:      uint32(pageSize),
		CursorPos:     uint32(max(cursor, 0)),
		CursorVisible: true,
		Orientation:   orientation,
		Candidates:    make([]dbus.Variant, 0, len(candidates)),
		Labels:        make([]dbus.Variant, 0, pageSize),
	}
	for _, c := range candidates {
		t.Candidates = append(t.Candidates, textVariant(c))
	}
	for i := 1; i <= pageSize && i <= 9; i++ {
		t.Labels = append(t.Labels, textVariant(string(rune('0'+i))))
	}
	return dbus.MakeVariant(t)
}

// keyvalToRune converts an X11 keysym to the character it produces, or 0.
func keyvalToRune(keyval uint32) rune {
	// Latin-1
	if keyval >= 0x20 && keyval <= 0x7e {
		return rune(keyval)
	}
	if keyval >= 0xa0 && keyval <= 0xff {
		return rune(keyval)
	}

	// Unicode keysyms (0x01000000 + codepoint)
	if keyval >= 0x01000100 && keyval <= 0x0110ffff {
		return rune(keyval - 0x01000000)
	}

	return 0
}

// IBus key event state masks
const (
	IBusShiftMask   uint32 = 1 << 0
	IBusLockMask    uint32 = 1 << 1
	IBusControlMask uint32 = 1 << 2
	IBusMod1Mask    uint32 = 1 << 3 // Alt
	IBusMod4Mask    uint32 = 1 << 6 // Super
	IBusSuperMask   uint32 = 1 << 26
	IBusReleaseMask uint32 = 1 << 30
)

// modifiersFromState maps IBus state bits onto router modifiers. Alt plays
// the part of Option and Super the part of Command.
func modifiersFromState(state uint32) Modifiers {
	var m Modifiers
	if state&IBusShiftMask != 0 {
		m |= ModShift
	}
	if state&IBusLockMask != 0 {
		m |= ModCapsLock
	}
	if state&IBusControlMask != 0 {
		m |= ModControl
	}
	if state&IBusMod1Mask != 0 {
		m |= ModOption
	}
	if state&(IBusMod4Mask|IBusSuperMask) != 0 {
		m |= ModCommand
	}
	return m
}
