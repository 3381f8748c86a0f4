package composer

import (
	"log/slog"
	"sync/atomic"

	"gureum/internal/ime"
	"gureum/internal/logging"
)

// Mode is a named composer the Switcher can activate.
type Mode struct {
	Name     string
	Composer ime.Composer
}

// Switcher delegates to one of several composers and moves to the next
// when ToggleMode is called.
type Switcher struct {
	modes  []Mode
	active atomic.Int32
	logger *slog.Logger
}

// NewSwitcher returns a Switcher starting at the first mode. It panics
// without modes.
func NewSwitcher(logger *slog.Logger, modes ...Mode) *Switcher {
	if len(modes) == 0 {
		panic("composer: switcher needs at least one mode")
	}
	if logger == nil {
		logger = logging.Default().Logger
	}
	return &Switcher{modes: modes, logger: logger.With(logging.SubsystemKey, "switcher")}
}

func (s *Switcher) current() ime.Composer {
	return s.modes[s.active.Load()].Composer
}

// Active returns the name of the active mode.
func (s *Switcher) Active() string {
	return s.modes[s.active.Load()].Name
}

// SetActive activates the named mode and reports whether it exists.
func (s *Switcher) SetActive(name string) bool {
	for i, m := range s.modes {
		if m.Name == name {
			s.active.Store(int32(i))
			return true
		}
	}
	return false
}

// ToggleMode commits the active composition and activates the next mode.
func (s *Switcher) ToggleMode(client ime.Client) {
	s.CommitComposition(client)
	next := (int(s.active.Load()) + 1) % len(s.modes)
	s.active.Store(int32(next))
	s.logger.Info("input mode changed", "mode", s.modes[next].Name)
}

func (s *Switcher) TryCommand(ev ime.KeyEvent, client ime.Client) ime.RouteResult {
	return s.current().TryCommand(ev, client)
}

func (s *Switcher) TryText(ev ime.KeyEvent, text string, client ime.Client) ime.RouteResult {
	return s.current().TryText(ev, text, client)
}

func (s *Switcher) HasCandidates() bool { return s.current().HasCandidates() }

func (s *Switcher) Candidates() []string {
	if src, ok := s.current().(ime.CandidateSource); ok {
		return src.Candidates()
	}
	return nil
}

func (s *Switcher) CandidateCursor() int {
	if src, ok := s.current().(ime.CandidateSource); ok {
		return src.CandidateCursor()
	}
	return 0
}

func (s *Switcher) SelectCandidate(index int, client ime.Client) bool {
	if sel, ok := s.current().(ime.CandidateSelector); ok {
		return sel.SelectCandidate(index, client)
	}
	return false
}

func (s *Switcher) CommitComposition(client ime.Client) {
	if c, ok := s.current().(ime.CompositionCommitter); ok {
		c.CommitComposition(client)
	}
}
