package ime

// Hint suggests where the candidate panel should appear relative to the
// insertion point.
type Hint int

const (
	HintBelow Hint = iota
	HintAbove
	HintLeft
	HintRight
)

func (h Hint) String() string {
	switch h {
	case HintBelow:
		return "below"
	case HintAbove:
		return "above"
	case HintLeft:
		return "left"
	case HintRight:
		return "right"
	default:
		return "unknown"
	}
}

// CandidatePanel is the candidate list UI.
type CandidatePanel interface {
	Show(hint Hint)
	Hide()
	// Update refreshes the panel contents from the composer.
	Update()
	IsVisible() bool
}

// SyncCandidates makes panel visibility follow hasCandidates. A visible
// list is refreshed and re-shown; a hidden panel is left alone.
func SyncCandidates(hasCandidates bool, panel CandidatePanel) {
	if panel == nil {
		return
	}
	if hasCandidates {
		panel.Update()
		panel.Show(HintLeft)
		return
	}
	if panel.IsVisible() {
		panel.Hide()
	}
}
