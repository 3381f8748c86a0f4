package keymap

import evdev "github.com/holoplot/go-evdev"

// evdevScanCodes places Linux input key codes on the scan code grid.
var evdevScanCodes = map[evdev.EvCode]uint16{
	evdev.KEY_A: 0x00, evdev.KEY_S: 0x01, evdev.KEY_D: 0x02, evdev.KEY_F: 0x03,
	evdev.KEY_H: 0x04, evdev.KEY_G: 0x05, evdev.KEY_Z: 0x06, evdev.KEY_X: 0x07,
	evdev.KEY_C: 0x08, evdev.KEY_V: 0x09, evdev.KEY_102ND: 0x0A, evdev.KEY_B: 0x0B,
	evdev.KEY_Q: 0x0C, evdev.KEY_W: 0x0D, evdev.KEY_E: 0x0E, evdev.KEY_R: 0x0F,
	evdev.KEY_Y: 0x10, evdev.KEY_T: 0x11,

	evdev.KEY_1: 0x12, evdev.KEY_2: 0x13, evdev.KEY_3: 0x14, evdev.KEY_4: 0x15,
	evdev.KEY_6: 0x16, evdev.KEY_5: 0x17, evdev.KEY_EQUAL: 0x18, evdev.KEY_9: 0x19,
	evdev.KEY_7: 0x1A, evdev.KEY_MINUS: 0x1B, evdev.KEY_8: 0x1C, evdev.KEY_0: 0x1D,

	evdev.KEY_RIGHTBRACE: 0x1E, evdev.KEY_O: 0x1F, evdev.KEY_U: 0x20,
	evdev.KEY_LEFTBRACE: 0x21, evdev.KEY_I: 0x22, evdev.KEY_P: 0x23,
	evdev.KEY_ENTER: Return,
	evdev.KEY_L:     0x25, evdev.KEY_J: 0x26, evdev.KEY_APOSTROPHE: 0x27,
	evdev.KEY_K: 0x28, evdev.KEY_SEMICOLON: 0x29, evdev.KEY_BACKSLASH: 0x2A,
	evdev.KEY_COMMA: 0x2B, evdev.KEY_SLASH: 0x2C, evdev.KEY_N: 0x2D,
	evdev.KEY_M: 0x2E, evdev.KEY_DOT: 0x2F,
	evdev.KEY_TAB:   Tab,
	evdev.KEY_SPACE: Space,
	evdev.KEY_GRAVE: 0x32,

	evdev.KEY_BACKSPACE: Delete,
	evdev.KEY_ESC:       Escape,
	evdev.KEY_CAPSLOCK:  CapsLock,
	evdev.KEY_KPENTER:   KeypadEnter,
	evdev.KEY_HOME:      Home,
	evdev.KEY_PAGEUP:    PageUp,
	evdev.KEY_DELETE:    ForwardDelete,
	evdev.KEY_END:       End,
	evdev.KEY_PAGEDOWN:  PageDown,
	evdev.KEY_LEFT:      Left,
	evdev.KEY_RIGHT:     Right,
	evdev.KEY_DOWN:      Down,
	evdev.KEY_UP:        Up,
}

// FromEvdev translates a Linux input key code (as reported by evdev and
// IBus) to a scan code. Keys without a position return Unmapped, false.
func FromEvdev(code uint32) (uint16, bool) {
	sc, ok := evdevScanCodes[evdev.EvCode(code)]
	if !ok {
		return Unmapped, false
	}
	return sc, true
}
