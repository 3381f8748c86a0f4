package ime

import (
	"fmt"
	"strings"
)

// Modifiers is the set of modifier keys held during a key event.
type Modifiers uint8

const (
	ModShift Modifiers = 1 << iota
	ModCapsLock
	ModOption // Alt on PC keyboards
	ModCommand
	ModControl
)

// Has reports whether every modifier in f is held.
func (m Modifiers) Has(f Modifiers) bool { return m&f == f }

// Any reports whether at least one modifier in f is held.
func (m Modifiers) Any(f Modifiers) bool { return m&f != 0 }

func (m Modifiers) String() string {
	if m == 0 {
		return "none"
	}
	names := []struct {
		mod  Modifiers
		name string
	}{
		{ModShift, "shift"},
		{ModCapsLock, "capslock"},
		{ModOption, "option"},
		{ModCommand, "command"},
		{ModControl, "control"},
	}
	var parts []string
	for _, n := range names {
		if m.Has(n.mod) {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "+")
}

// KeyEvent is one physical key press delivered by the host.
type KeyEvent struct {
	// ScanCode identifies the physical key (see package keymap).
	ScanCode uint16

	// Text is the text the host decoded for the key under the active
	// layout. Empty means the host decoded nothing.
	Text string

	Modifiers Modifiers
}

// HasText reports whether the host decoded text for the key.
func (e KeyEvent) HasText() bool { return e.Text != "" }

// RouteResult is the outcome of routing one key event.
type RouteResult int

const (
	// NotProcessed passes the key to the client unchanged.
	NotProcessed RouteResult = iota

	// Processed means the composer consumed the key.
	Processed

	// NotProcessedAndNeedsCommit passes the key through after the host
	// commits any pending composition.
	NotProcessedAndNeedsCommit
)

func (r RouteResult) String() string {
	switch r {
	case NotProcessed:
		return "not-processed"
	case Processed:
		return "processed"
	case NotProcessedAndNeedsCommit:
		return "not-processed-needs-commit"
	default:
		return fmt.Sprintf("RouteResult(%d)", int(r))
	}
}
