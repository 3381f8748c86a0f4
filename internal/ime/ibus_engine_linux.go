//go:build linux

package ime

import (
	"log/slog"
	"sync"
	"unicode/utf8"

	"github.com/godbus/dbus/v5"

	"gureum/internal/keymap"
)

// IBus D-Bus constants
const (
	IBusService          = "org.freedesktop.IBus"
	IBusFactoryPath      = "/org/freedesktop/IBus/Factory"
	IBusFactoryInterface = "org.freedesktop.IBus.Factory"
	IBusEngineInterface  = "org.freedesktop.IBus.Engine"
	IBusEngineBasePath   = "/org/freedesktop/IBus/Engine/"
	GureumBusName        = "org.freedesktop.IBus.Gureum"
	GureumEngineName     = "gureum"
)

// signalEmitter is the part of *dbus.Conn used to talk back to IBus.
type signalEmitter interface {
	Emit(path dbus.ObjectPath, name string, values ...interface{}) error
}

// busClient is the text field behind one IBus engine object.
type busClient struct {
	bus    signalEmitter
	path   dbus.ObjectPath
	logger *slog.Logger
}

func (c *busClient) emit(signal string, values ...interface{}) {
	if err := c.bus.Emit(c.path, IBusEngineInterface+"."+signal, values...); err != nil {
		c.logger.Warn("emit failed", "signal", signal, "error", err)
	}
}

func (c *busClient) InsertText(text string) {
	c.emit("CommitText", textVariant(text))
}

func (c *busClient) SetMarkedText(text string) {
	c.emit("UpdatePreeditText", textVariant(text), uint32(utf8.RuneCountInString(text)), text != "", uint32(0))
}

// Engine is one IBus input context. Every engine of a process shares the
// Server and routes under the same lock.
type Engine struct {
	path     dbus.ObjectPath
	server   *Server
	panel    *LookupPanel
	composer Composer
	client   *busClient
	ctrl     Controller
	route    *sync.Mutex
	toggles  func() bool
	// release is set by the factory that exported the engine.
	release func(dbus.ObjectPath)
	logger  *slog.Logger
}

func (e *Engine) Path() dbus.ObjectPath { return e.path }

// Composer returns the composer serving this engine.
func (e *Engine) Composer() Composer { return e.composer }

// ProcessKeyEvent handles key press/release events from IBus.
// Returns true if the key was consumed, false to pass through.
func (e *Engine) ProcessKeyEvent(keyval, keycode, state uint32) (bool, *dbus.Error) {
	if state&IBusReleaseMask != 0 {
		return false, nil
	}

	scanCode, _ := keymap.FromEvdev(keycode)
	ev := KeyEvent{ScanCode: scanCode, Modifiers: modifiersFromState(state)}
	if r := keyvalToRune(keyval); r != 0 {
		ev.Text = string(r)
	}

	e.route.Lock()
	defer e.route.Unlock()

	if scanCode == keymap.CapsLock {
		return e.capsLock(), nil
	}
	return e.handle(ev) == Processed, nil
}

// capsLock toggles the input mode when the watcher saw a press. The flag
// is cleared even when toggling is disabled.
func (e *Engine) capsLock() bool {
	if !e.server.TestAndClearCapsLock() {
		return false
	}
	if e.toggles != nil && !e.toggles() {
		return false
	}
	t, ok := e.composer.(ModeToggler)
	if !ok {
		return false
	}
	t.ToggleMode(e.client)
	e.server.NotifyCommit(e.ctrl)
	return true
}

// handle routes ev and flushes the composition when the router asks for it.
// The caller holds the route lock.
func (e *Engine) handle(ev KeyEvent) RouteResult {
	result := e.server.Handle(e.ctrl, ev)
	if result == NotProcessedAndNeedsCommit {
		e.commit()
	}
	return result
}

func (e *Engine) commit() {
	if c, ok := e.composer.(CompositionCommitter); ok {
		c.CommitComposition(e.client)
	}
	e.server.NotifyCommit(e.ctrl)
}

func (e *Engine) FocusIn() *dbus.Error {
	e.route.Lock()
	defer e.route.Unlock()
	e.panel.Retarget(e.path, e.candidateSource())
	e.server.NotifyCommit(e.ctrl)
	e.logger.Debug("focus in")
	return nil
}

func (e *Engine) FocusOut() *dbus.Error {
	e.route.Lock()
	defer e.route.Unlock()
	e.commit()
	e.logger.Debug("focus out")
	return nil
}

func (e *Engine) Reset() *dbus.Error {
	e.route.Lock()
	defer e.route.Unlock()
	e.commit()
	return nil
}

func (e *Engine) Enable() *dbus.Error {
	e.logger.Debug("enable")
	return nil
}

func (e *Engine) Disable() *dbus.Error {
	e.route.Lock()
	defer e.route.Unlock()
	e.commit()
	e.logger.Debug("disable")
	return nil
}

func (e *Engine) Destroy() *dbus.Error {
	e.route.Lock()
	defer e.route.Unlock()
	e.commit()
	e.panel.Release(e.path)
	if e.release != nil {
		e.release(e.path)
	}
	return nil
}

func (e *Engine) SetCapabilities(caps uint32) *dbus.Error { return nil }

func (e *Engine) SetContentType(purpose, hints uint32) *dbus.Error { return nil }

func (e *Engine) SetCursorLocation(x, y, w, h int32) *dbus.Error { return nil }

func (e *Engine) SetSurroundingText(text dbus.Variant, cursorPos, anchorPos uint32) *dbus.Error {
	return nil
}

func (e *Engine) PropertyActivate(propName string, state uint32) *dbus.Error { return nil }

func (e *Engine) PropertyShow(propName string) *dbus.Error { return nil }

func (e *Engine) PropertyHide(propName string) *dbus.Error { return nil }

// Candidate navigation from the panel is replayed as the matching key.

func (e *Engine) PageUp() *dbus.Error     { return e.navigate(keymap.PageUp) }
func (e *Engine) PageDown() *dbus.Error   { return e.navigate(keymap.PageDown) }
func (e *Engine) CursorUp() *dbus.Error   { return e.navigate(keymap.Up) }
func (e *Engine) CursorDown() *dbus.Error { return e.navigate(keymap.Down) }

func (e *Engine) navigate(scanCode uint16) *dbus.Error {
	e.route.Lock()
	defer e.route.Unlock()
	e.handle(KeyEvent{ScanCode: scanCode})
	return nil
}

// CandidateClicked selects a candidate by its index within the visible page.
func (e *Engine) CandidateClicked(index, button, state uint32) *dbus.Error {
	e.route.Lock()
	defer e.route.Unlock()

	sel, ok := e.composer.(CandidateSelector)
	if !ok {
		return nil
	}
	cursor := 0
	if src := e.candidateSource(); src != nil {
		cursor = src.CandidateCursor()
	}
	size := e.panel.PageSize()
	abs := cursor/size*size + int(index)
	if !sel.SelectCandidate(abs, e.client) {
		e.logger.Debug("candidate out of range", "index", abs)
	}
	e.server.NotifyCommit(e.ctrl)
	return nil
}

func (e *Engine) candidateSource() CandidateSource {
	src, _ := e.composer.(CandidateSource)
	return src
}
