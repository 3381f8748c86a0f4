package ime

import (
	"errors"
	"log/slog"

	"gureum/internal/keymap"
	"gureum/internal/logging"
)

// CapsLockWatcher reports Caps Lock presses observed at the HID level.
type CapsLockWatcher interface {
	TestAndClearCapsLockState() bool
}

// ErrNoCapsLockWatcher is returned by NewServer without a watcher.
var ErrNoCapsLockWatcher = errors.New("ime: caps lock watcher required")

// ServerOptions holds the collaborators of a Server.
type ServerOptions struct {
	// CapsLock is required.
	CapsLock CapsLockWatcher

	// Candidates may be nil when no candidate UI exists.
	Candidates CandidatePanel

	// OptionKeys defaults to OptionKeyDefault when nil.
	OptionKeys OptionKeySource

	Logger *slog.Logger
}

// Server routes key events from the host to composers and keeps the
// candidate panel in step with them. One Server serves every client of
// the process.
type Server struct {
	capsLock   CapsLockWatcher
	candidates CandidatePanel
	optionKeys OptionKeySource
	logger     *slog.Logger
}

// NewServer builds a Server.
func NewServer(opts ServerOptions) (*Server, error) {
	if opts.CapsLock == nil {
		return nil, ErrNoCapsLockWatcher
	}
	s := &Server{
		capsLock:   opts.CapsLock,
		candidates: opts.Candidates,
		optionKeys: opts.OptionKeys,
		logger:     opts.Logger,
	}
	if s.optionKeys == nil {
		s.optionKeys = FixedOptionKeys(OptionKeyDefault)
	}
	if s.logger == nil {
		s.logger = logging.Default().Logger
	}
	s.logger = s.logger.With(logging.SubsystemKey, "router")
	return s, nil
}

// Candidates returns the candidate panel.
func (s *Server) Candidates() CandidatePanel { return s.candidates }

// TestAndClearCapsLock reports whether Caps Lock was pressed since the last
// call.
func (s *Server) TestAndClearCapsLock() bool {
	return s.capsLock.TestAndClearCapsLockState()
}

// Handle routes one key press.
//
// The composer first sees the raw event as a potential command. If it
// declines, the router settles on the text for the key: Option-modified
// keys either go back to the client or, when Option is ignored, are read
// from the scan code tables; unmodified keys in the table range are read
// from the tables so the composer sees US-ANSI characters whatever the
// active layout. Keys still carrying Command, Option or Control, and keys
// without text, are passed through with a commit request. Candidate
// visibility is synced on every path.
func (s *Server) Handle(c Controller, ev KeyEvent) RouteResult {
	composer, client := c.Composer(), c.Client()

	result := composer.TryCommand(ev, client)
	if result != Processed && result != NotProcessedAndNeedsCommit {
		result = s.routeText(composer, client, ev)
	}

	SyncCandidates(composer.HasCandidates(), s.candidates)
	s.logger.Debug("key routed",
		"scan_code", ev.ScanCode,
		"modifiers", ev.Modifiers.String(),
		"text", ev.Text,
		"result", result.String())
	return result
}

func (s *Server) routeText(composer Composer, client Client, ev KeyEvent) RouteResult {
	text := ev.Text
	mods := ev.Modifiers
	// Caps Lock selects the upper table like Shift.
	table := keymap.Select(mods.Any(ModShift | ModCapsLock))

	if mods.Has(ModOption) {
		switch s.optionKeys.OptionKeyBehavior() {
		case OptionKeyIgnore:
			if t, ok := keymap.Lookup(table, ev.ScanCode); ok {
				text = t
			}
		default:
			return NotProcessedAndNeedsCommit
		}
	} else if t, ok := keymap.Lookup(table, ev.ScanCode); ok {
		text = t
	}

	if mods.Any(ModCommand | ModOption | ModControl) {
		return NotProcessedAndNeedsCommit
	}
	if text == "" {
		return NotProcessedAndNeedsCommit
	}
	return composer.TryText(ev, text, client)
}

// NotifyCommit tells the server a composition was committed outside of
// Handle, so candidate visibility is re-evaluated.
func (s *Server) NotifyCommit(c Controller) {
	SyncCandidates(c.Composer().HasCandidates(), s.candidates)
}
