//go:build linux

package ime

import (
	"log/slog"
	"sync"

	"github.com/godbus/dbus/v5"

	"gureum/internal/logging"
)

// PanelOptions configures a LookupPanel.
type PanelOptions struct {
	PageSize    int
	Orientation int32
	Logger      *slog.Logger
}

// LookupPanel drives the IBus lookup table of the focused engine.
type LookupPanel struct {
	bus         signalEmitter
	pageSize    int
	orientation int32
	logger      *slog.Logger

	mu      sync.Mutex
	path    dbus.ObjectPath
	source  CandidateSource
	visible bool
}

// NewLookupPanel returns a panel emitting on bus.
func NewLookupPanel(bus signalEmitter, opts PanelOptions) *LookupPanel {
	p := &LookupPanel{
		bus:         bus,
		pageSize:    opts.PageSize,
		orientation: opts.Orientation,
		logger:      opts.Logger,
	}
	if p.pageSize <= 0 {
		p.pageSize = 5
	}
	if p.logger == nil {
		p.logger = logging.Default().Logger
	}
	p.logger = p.logger.With(logging.SubsystemKey, "candidates")
	return p
}

// PageSize returns the number of candidates per page.
func (p *LookupPanel) PageSize() int { return p.pageSize }

// Retarget points the panel at the engine at path. A table left visible on
// the previous engine is hidden first.
func (p *LookupPanel) Retarget(path dbus.ObjectPath, source CandidateSource) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.path == path {
		p.source = source
		return
	}
	if p.visible {
		p.emit("HideLookupTable")
		p.visible = false
	}
	p.path = path
	p.source = source
}

// Release detaches the panel from path if it is the current target.
func (p *LookupPanel) Release(path dbus.ObjectPath) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.path != path {
		return
	}
	p.path = ""
	p.source = nil
	p.visible = false
}

func (p *LookupPanel) Show(hint Hint) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.path == "" {
		return
	}
	p.emit("ShowLookupTable")
	p.visible = true
	p.logger.Debug("show", "hint", hint.String())
}

func (p *LookupPanel) Hide() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.path == "" {
		return
	}
	p.emit("HideLookupTable")
	p.visible = false
}

func (p *LookupPanel) Update() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.path == "" || p.source == nil {
		return
	}
	table := lookupTableVariant(p.source.Candidates(), p.source.CandidateCursor(), p.pageSize, p.orientation)
	p.emit("UpdateLookupTable", table, true)
}

func (p *LookupPanel) IsVisible() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.visible
}

// emit is called with mu held.
func (p *LookupPanel) emit(signal string, values ...interface{}) {
	if err := p.bus.Emit(p.path, IBusEngineInterface+"."+signal, values...); err != nil {
		p.logger.Warn("emit failed", "signal", signal, "error", err)
	}
}
