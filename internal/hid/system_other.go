//go:build !linux

package hid

import (
	"fmt"
	"log/slog"
	"runtime"
)

// SystemOptions configures the platform backend.
type SystemOptions struct {
	Search  string
	Bypass  string
	Hotplug bool
	Logger  *slog.Logger
}

// NewSystem reports that no HID backend exists for this platform.
func NewSystem(SystemOptions) (Opener, error) {
	return nil, fmt.Errorf("%w: no HID backend for %s", ErrUnavailable, runtime.GOOS)
}
