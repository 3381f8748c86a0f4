package ime

// Client is the text field receiving input.
type Client interface {
	// InsertText commits text at the insertion point.
	InsertText(text string)

	// SetMarkedText replaces the uncommitted composition shown inline.
	// An empty string clears it.
	SetMarkedText(text string)
}

// Composer turns routed key events into text. Implementations decide what
// commands and text mean; the router only decides which of the two a key
// is offered as.
type Composer interface {
	// TryCommand offers the raw event before any text interpretation.
	TryCommand(ev KeyEvent, client Client) RouteResult

	// TryText offers the event with the text the router settled on.
	TryText(ev KeyEvent, text string, client Client) RouteResult

	// HasCandidates reports whether a candidate list should be visible.
	HasCandidates() bool
}

// CandidateSource is implemented by composers that expose candidates.
type CandidateSource interface {
	Candidates() []string
	// CandidateCursor is the index of the highlighted candidate.
	CandidateCursor() int
}

// CandidateSelector is implemented by composers whose candidates can be
// chosen by index, as when the user clicks one.
type CandidateSelector interface {
	SelectCandidate(index int, client Client) bool
}

// CompositionCommitter is implemented by composers that hold pending
// input which the host must flush before passing a key through.
type CompositionCommitter interface {
	CommitComposition(client Client)
}

// ModeToggler is implemented by composers that switch input modes when
// Caps Lock is pressed.
type ModeToggler interface {
	ToggleMode(client Client)
}

// Controller is the per-client object the host routes events through.
type Controller interface {
	Composer() Composer
	Client() Client
}

// NewController pairs a composer with a client.
func NewController(c Composer, cl Client) Controller {
	return staticController{composer: c, client: cl}
}

type staticController struct {
	composer Composer
	client   Client
}

func (s staticController) Composer() Composer { return s.composer }
func (s staticController) Client() Client     { return s.client }
