package ime

import "strings"

type fakeClient struct {
	inserted []string
	marked   string
}

func (c *fakeClient) InsertText(text string)    { c.inserted = append(c.inserted, text) }
func (c *fakeClient) SetMarkedText(text string) { c.marked = text }

type fakeComposer struct {
	command      RouteResult
	text         RouteResult
	candidates   bool
	commandCalls int
	textCalls    int
	lastText     string
	committed    int
	toggled      int
	selected     []int
}

func (f *fakeComposer) TryCommand(ev KeyEvent, client Client) RouteResult {
	f.commandCalls++
	return f.command
}

func (f *fakeComposer) TryText(ev KeyEvent, text string, client Client) RouteResult {
	f.textCalls++
	f.lastText = text
	return f.text
}

func (f *fakeComposer) HasCandidates() bool { return f.candidates }

func (f *fakeComposer) CommitComposition(client Client) {
	f.committed++
	f.candidates = false
}

func (f *fakeComposer) ToggleMode(client Client) { f.toggled++ }

func (f *fakeComposer) Candidates() []string {
	if !f.candidates {
		return nil
	}
	return []string{"alpha", "beta", "gamma"}
}

func (f *fakeComposer) CandidateCursor() int { return 1 }

func (f *fakeComposer) SelectCandidate(index int, client Client) bool {
	f.selected = append(f.selected, index)
	f.candidates = false
	return true
}

type fakePanel struct {
	visible bool
	calls   []string
	hint    Hint
}

func (p *fakePanel) Show(hint Hint) {
	p.visible = true
	p.hint = hint
	p.calls = append(p.calls, "show")
}

func (p *fakePanel) Hide() {
	p.visible = false
	p.calls = append(p.calls, "hide")
}

func (p *fakePanel) Update()         { p.calls = append(p.calls, "update") }
func (p *fakePanel) IsVisible() bool { return p.visible }
func (p *fakePanel) trace() string   { return strings.Join(p.calls, ",") }

type fakeWatcher struct{ pressed bool }

func (w *fakeWatcher) TestAndClearCapsLockState() bool {
	p := w.pressed
	w.pressed = false
	return p
}
