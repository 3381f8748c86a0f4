//go:build !linux

package ime

import "errors"

var errUnsupported = errors.New("IME not supported on this platform")

// OtherPlatform is a stub for unsupported platforms.
type OtherPlatform struct{}

func NewPlatform(config PlatformConfig) *OtherPlatform {
	return &OtherPlatform{}
}

func (p *OtherPlatform) Name() string      { return "unsupported" }
func (p *OtherPlatform) Available() bool   { return false }
func (p *OtherPlatform) Install() error    { return errUnsupported }
func (p *OtherPlatform) Uninstall() error  { return errUnsupported }
func (p *OtherPlatform) IsInstalled() bool { return false }
func (p *OtherPlatform) IsActive() bool    { return false }
func (p *OtherPlatform) Activate() error   { return errUnsupported }

var _ Platform = (*OtherPlatform)(nil)
