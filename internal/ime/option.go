package ime

import "fmt"

// OptionKeyBehavior selects how keys typed with Option held are routed.
type OptionKeyBehavior uint8

const (
	// OptionKeyDefault leaves Option-modified keys to the client.
	OptionKeyDefault OptionKeyBehavior = iota

	// OptionKeyIgnore routes Option-modified keys as if Option were not
	// held, recovering the character from the scan code.
	OptionKeyIgnore
)

// ParseOptionKeyBehavior accepts "default" and "ignore".
func ParseOptionKeyBehavior(s string) (OptionKeyBehavior, error) {
	switch s {
	case "default", "":
		return OptionKeyDefault, nil
	case "ignore":
		return OptionKeyIgnore, nil
	default:
		return OptionKeyDefault, fmt.Errorf("unknown option key behavior %q", s)
	}
}

func (b OptionKeyBehavior) String() string {
	switch b {
	case OptionKeyDefault:
		return "default"
	case OptionKeyIgnore:
		return "ignore"
	default:
		return fmt.Sprintf("OptionKeyBehavior(%d)", uint8(b))
	}
}

// OptionKeySource returns the current behavior. It is consulted on every
// Option-modified key so configuration changes apply immediately.
type OptionKeySource interface {
	OptionKeyBehavior() OptionKeyBehavior
}

// OptionKeySourceFunc adapts a function to OptionKeySource.
type OptionKeySourceFunc func() OptionKeyBehavior

func (f OptionKeySourceFunc) OptionKeyBehavior() OptionKeyBehavior { return f() }

// FixedOptionKeys is an OptionKeySource that never changes.
type FixedOptionKeys OptionKeyBehavior

func (f FixedOptionKeys) OptionKeyBehavior() OptionKeyBehavior { return OptionKeyBehavior(f) }
