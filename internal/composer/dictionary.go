package composer

import (
	"log/slog"
	"sort"
	"strings"
	"unicode"

	"github.com/rivo/uniseg"
	"golang.org/x/text/unicode/norm"

	"gureum/internal/ime"
	"gureum/internal/keymap"
	"gureum/internal/logging"
)

// UsageStore records and reports how often candidates are chosen.
type UsageStore interface {
	RecordSelection(reading, candidate string) error
	Counts(reading string) (map[string]int64, error)
}

// DictionaryOptions configures a Dictionary composer.
type DictionaryOptions struct {
	// Usage may be nil; candidates are then ranked by dictionary order.
	Usage UsageStore
	// MaxCandidates bounds the candidate list. Zero means 9.
	MaxCandidates int
	// PageSize is how far PageUp and PageDown move the cursor. Digit keys
	// select within the page holding the cursor.
	PageSize int
	Logger   *slog.Logger
}

// Dictionary composes letters into an abbreviation and offers the
// expansions of every abbreviation it prefixes.
type Dictionary struct {
	lexicon  *Lexicon
	usage    UsageStore
	max      int
	pageSize int
	logger   *slog.Logger

	buffer     string
	candidates []entry
	cursor     int
}

// NewDictionary returns a Dictionary over lexicon.
func NewDictionary(lexicon *Lexicon, opts DictionaryOptions) *Dictionary {
	d := &Dictionary{
		lexicon:  lexicon,
		usage:    opts.Usage,
		max:      opts.MaxCandidates,
		pageSize: opts.PageSize,
		logger:   opts.Logger,
	}
	if d.max <= 0 {
		d.max = 9
	}
	if d.pageSize <= 0 {
		d.pageSize = 5
	}
	if d.logger == nil {
		d.logger = logging.Default().Logger
	}
	d.logger = d.logger.With(logging.SubsystemKey, "dictionary")
	return d
}

// Buffer returns the uncommitted abbreviation.
func (d *Dictionary) Buffer() string { return d.buffer }

func (d *Dictionary) TryCommand(ev ime.KeyEvent, client ime.Client) ime.RouteResult {
	if d.buffer == "" {
		return ime.NotProcessed
	}
	if ev.Modifiers.Any(ime.ModCommand | ime.ModControl) {
		return ime.NotProcessedAndNeedsCommit
	}

	switch ev.ScanCode {
	case keymap.Return, keymap.KeypadEnter:
		d.CommitComposition(client)
		return ime.Processed
	case keymap.Escape:
		d.reset(client)
		return ime.Processed
	case keymap.Delete:
		d.backspace(client)
		return ime.Processed
	case keymap.Space:
		if !d.SelectCandidate(d.cursor, client) {
			d.CommitComposition(client)
		}
		return ime.Processed
	case keymap.Up:
		d.moveCursor(-1)
		return ime.Processed
	case keymap.Down:
		d.moveCursor(1)
		return ime.Processed
	case keymap.PageUp:
		d.moveCursor(-d.pageSize)
		return ime.Processed
	case keymap.PageDown:
		d.moveCursor(d.pageSize)
		return ime.Processed
	case keymap.Tab, keymap.Left, keymap.Right, keymap.Home, keymap.End, keymap.ForwardDelete:
		return ime.NotProcessedAndNeedsCommit
	}

	if n, ok := digitAt(ev); ok && len(d.candidates) > 0 {
		page := d.cursor / d.pageSize * d.pageSize
		if d.SelectCandidate(page+n-1, client) {
			return ime.Processed
		}
	}
	return ime.NotProcessed
}

// digitAt returns 1-9 for unshifted digit keys.
func digitAt(ev ime.KeyEvent) (int, bool) {
	if ev.Modifiers.Any(ime.ModShift) {
		return 0, false
	}
	s, ok := keymap.Lookup(&keymap.Lower, ev.ScanCode)
	if !ok || len(s) != 1 || s[0] < '1' || s[0] > '9' {
		return 0, false
	}
	return int(s[0] - '0'), true
}

func (d *Dictionary) TryText(_ ime.KeyEvent, text string, client ime.Client) ime.RouteResult {
	if isWordText(text) {
		d.buffer = norm.NFC.String(d.buffer + text)
		d.refresh()
		client.SetMarkedText(d.buffer)
		return ime.Processed
	}
	d.CommitComposition(client)
	client.InsertText(text)
	return ime.Processed
}

func isWordText(text string) bool {
	if text == "" {
		return false
	}
	for _, r := range text {
		if !unicode.IsLetter(r) && !unicode.Is(unicode.Mn, r) {
			return false
		}
	}
	return true
}

func (d *Dictionary) HasCandidates() bool { return len(d.candidates) > 0 }

// Candidates returns the expansion texts in display order.
func (d *Dictionary) Candidates() []string {
	out := make([]string, len(d.candidates))
	for i, c := range d.candidates {
		out[i] = c.text
	}
	return out
}

func (d *Dictionary) CandidateCursor() int { return d.cursor }

// SelectCandidate commits candidate index and records the choice.
func (d *Dictionary) SelectCandidate(index int, client ime.Client) bool {
	if index < 0 || index >= len(d.candidates) {
		return false
	}
	c := d.candidates[index]
	client.InsertText(c.text)
	client.SetMarkedText("")
	if d.usage != nil {
		if err := d.usage.RecordSelection(c.reading, c.text); err != nil {
			d.logger.Warn("record selection failed", "error", err)
		}
	}
	d.clear()
	return true
}

// CommitComposition commits the typed abbreviation unexpanded.
func (d *Dictionary) CommitComposition(client ime.Client) {
	if d.buffer == "" {
		return
	}
	client.InsertText(d.buffer)
	client.SetMarkedText("")
	d.clear()
}

func (d *Dictionary) reset(client ime.Client) {
	client.SetMarkedText("")
	d.clear()
}

func (d *Dictionary) clear() {
	d.buffer = ""
	d.candidates = nil
	d.cursor = 0
}

// backspace removes the last grapheme cluster of the buffer.
func (d *Dictionary) backspace(client ime.Client) {
	var clusters []string
	g := uniseg.NewGraphemes(d.buffer)
	for g.Next() {
		clusters = append(clusters, g.Str())
	}
	if len(clusters) > 0 {
		clusters = clusters[:len(clusters)-1]
	}
	d.buffer = strings.Join(clusters, "")
	d.refresh()
	client.SetMarkedText(d.buffer)
}

func (d *Dictionary) moveCursor(delta int) {
	if len(d.candidates) == 0 {
		return
	}
	d.cursor += delta
	if d.cursor < 0 {
		d.cursor = 0
	}
	if d.cursor >= len(d.candidates) {
		d.cursor = len(d.candidates) - 1
	}
}

// refresh recomputes candidates for the buffer: most chosen first, exact
// abbreviations before longer ones, then dictionary order.
func (d *Dictionary) refresh() {
	d.cursor = 0
	if d.buffer == "" {
		d.candidates = nil
		return
	}
	found := d.lexicon.prefixed(d.buffer)
	counts := make(map[string]map[string]int64)
	if d.usage != nil {
		for _, e := range found {
			if _, ok := counts[e.reading]; ok {
				continue
			}
			c, err := d.usage.Counts(e.reading)
			if err != nil {
				d.logger.Warn("read usage failed", "error", err)
			}
			counts[e.reading] = c
		}
	}
	sort.SliceStable(found, func(i, j int) bool {
		a, b := found[i], found[j]
		ca, cb := counts[a.reading][a.text], counts[b.reading][b.text]
		if ca != cb {
			return ca > cb
		}
		if ea, eb := a.reading == d.buffer, b.reading == d.buffer; ea != eb {
			return ea
		}
		if len(a.reading) != len(b.reading) {
			return len(a.reading) < len(b.reading)
		}
		if a.reading != b.reading {
			return a.reading < b.reading
		}
		return a.order < b.order
	})
	if len(found) > d.max {
		found = found[:d.max]
	}
	d.candidates = found
}
