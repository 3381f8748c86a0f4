package composer

import "gureum/internal/ime"

// Roman commits routed text as-is.
type Roman struct{}

// NewRoman returns a Roman composer.
func NewRoman() *Roman { return &Roman{} }

func (*Roman) TryCommand(ime.KeyEvent, ime.Client) ime.RouteResult { return ime.NotProcessed }

func (*Roman) TryText(_ ime.KeyEvent, text string, client ime.Client) ime.RouteResult {
	client.InsertText(text)
	return ime.Processed
}

func (*Roman) HasCandidates() bool { return false }
