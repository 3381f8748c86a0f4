// Package keymap holds the US-ANSI scan-code tables used to recover the
// character a physical key produces regardless of the active layout.
//
// Scan codes follow the macOS virtual key order (0x00 is A, 0x01 is S, ...).
// Hosts that speak another code space translate into it first; see
// FromEvdev.
package keymap

// Size is the number of scan codes covered by a Table.
const Size = 0x33

// Unmapped is the scan code given to keys that have no position in the
// scan code space. It is never below Size.
const Unmapped uint16 = 0xFF

// Table maps scan codes 0x00..0x32 to the character printed on the key.
// An empty entry means the position is not a printable character.
type Table [Size]string

// Lower is the unshifted US-ANSI table.
var Lower = Table{
	"a", "s", "d", "f", "h", "g", "z", "x", "c", "v",
	"", // 0x0A: ISO section key
	"b", "q", "w", "e", "r", "y", "t",
	"1", "2", "3", "4", "6", "5", "=", "9", "7", "-", "8", "0",
	"]", "o", "u", "[", "i", "p",
	"", // 0x24: return
	"l", "j", "'", "k", ";", "\\", ",", "/", "n", "m", ".",
	"", "", // 0x30: tab, 0x31: space
	"`",
}

// Upper is the shifted US-ANSI table.
var Upper = Table{
	"A", "S", "D", "F", "H", "G", "Z", "X", "C", "V",
	"",
	"B", "Q", "W", "E", "R", "Y", "T",
	"!", "@", "#", "$", "^", "%", "+", "(", "&", "_", "*", ")",
	"}", "O", "U", "{", "I", "P",
	"",
	"L", "J", "\"", "K", ":", "|", "<", "?", "N", "M", ">",
	"", "",
	"~",
}

// Lookup returns the character at scanCode. ok is false when scanCode is
// outside the table or the position holds no character.
func Lookup(t *Table, scanCode uint16) (text string, ok bool) {
	if int(scanCode) >= len(t) {
		return "", false
	}
	text = t[scanCode]
	return text, text != ""
}

// Select returns Upper when shifted and Lower otherwise.
func Select(shifted bool) *Table {
	if shifted {
		return &Upper
	}
	return &Lower
}

// Non-printable scan codes that composers react to.
const (
	Return        uint16 = 0x24
	Tab           uint16 = 0x30
	Space         uint16 = 0x31
	Delete        uint16 = 0x33
	Escape        uint16 = 0x35
	CapsLock      uint16 = 0x39
	KeypadEnter   uint16 = 0x4C
	Home          uint16 = 0x73
	PageUp        uint16 = 0x74
	ForwardDelete uint16 = 0x75
	End           uint16 = 0x77
	PageDown      uint16 = 0x79
	Left          uint16 = 0x7B
	Right         uint16 = 0x7C
	Down          uint16 = 0x7D
	Up            uint16 = 0x7E
)
