package composer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gureum/internal/ime"
	"gureum/internal/keymap"
	"gureum/internal/store"
)

func testLexicon() *Lexicon {
	return NewLexicon(map[string][]string{
		"bt":  {"bluetooth"},
		"btw": {"by the way", "between"},
		"brb": {"be right back"},
	})
}

func typeText(d *Dictionary, c ime.Client, s string) {
	for _, r := range s {
		d.TryText(ime.KeyEvent{}, string(r), c)
	}
}

func key(code uint16) ime.KeyEvent { return ime.KeyEvent{ScanCode: code} }

func TestDictionaryBuffersLetters(t *testing.T) {
	d := NewDictionary(testLexicon(), DictionaryOptions{})
	c := &recordingClient{}

	typeText(d, c, "bt")
	assert.Equal(t, "bt", d.Buffer())
	assert.Equal(t, "bt", c.marked)
	assert.Empty(t, c.inserted)
	assert.True(t, d.HasCandidates())
	assert.Equal(t, []string{"bluetooth", "by the way", "between"}, d.Candidates())
	assert.Equal(t, 0, d.CandidateCursor())
}

func TestDictionaryNonLetterCommitsBuffer(t *testing.T) {
	d := NewDictionary(testLexicon(), DictionaryOptions{})
	c := &recordingClient{}

	typeText(d, c, "btw")
	res := d.TryText(ime.KeyEvent{}, ",", c)
	assert.Equal(t, ime.Processed, res)
	assert.Equal(t, []string{"btw", ","}, c.inserted)
	assert.Empty(t, c.marked)
	assert.False(t, d.HasCandidates())
}

func TestDictionaryEmptyBufferPassesCommands(t *testing.T) {
	d := NewDictionary(testLexicon(), DictionaryOptions{})
	c := &recordingClient{}
	for _, code := range []uint16{keymap.Return, keymap.Space, keymap.Delete, keymap.Escape} {
		assert.Equal(t, ime.NotProcessed, d.TryCommand(key(code), c))
	}
}

func TestDictionaryCommands(t *testing.T) {
	tests := []struct {
		name     string
		ev       ime.KeyEvent
		want     ime.RouteResult
		inserted []string
		buffer   string
	}{
		{"return commits raw", key(keymap.Return), ime.Processed, []string{"btw"}, ""},
		{"keypad enter commits raw", key(keymap.KeypadEnter), ime.Processed, []string{"btw"}, ""},
		{"escape cancels", key(keymap.Escape), ime.Processed, nil, ""},
		{"delete removes last", key(keymap.Delete), ime.Processed, nil, "bt"},
		{"space picks cursor", key(keymap.Space), ime.Processed, []string{"by the way"}, ""},
		{"digit picks index", key(0x13), ime.Processed, []string{"between"}, ""},
		{"digit past end", key(0x14), ime.NotProcessed, nil, "btw"},
		{"tab needs commit", key(keymap.Tab), ime.NotProcessedAndNeedsCommit, nil, "btw"},
		{"arrow needs commit", key(keymap.Left), ime.NotProcessedAndNeedsCommit, nil, "btw"},
		{"command needs commit", ime.KeyEvent{ScanCode: 0x08, Modifiers: ime.ModCommand}, ime.NotProcessedAndNeedsCommit, nil, "btw"},
		{"letter is not a command", key(0x00), ime.NotProcessed, nil, "btw"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDictionary(testLexicon(), DictionaryOptions{})
			c := &recordingClient{}
			typeText(d, c, "btw")

			assert.Equal(t, tt.want, d.TryCommand(tt.ev, c))
			assert.Equal(t, tt.inserted, c.inserted)
			assert.Equal(t, tt.buffer, d.Buffer())
		})
	}
}

func TestDictionaryDeleteGrapheme(t *testing.T) {
	lex := NewLexicon(map[string][]string{"née": {"née"}})
	d := NewDictionary(lex, DictionaryOptions{})
	c := &recordingClient{}

	d.TryText(ime.KeyEvent{}, "n", c)
	d.TryText(ime.KeyEvent{}, "é", c)
	require.Equal(t, "né", d.Buffer())

	d.TryCommand(key(keymap.Delete), c)
	assert.Equal(t, "n", d.Buffer())
	assert.Equal(t, "n", c.marked)

	d.TryCommand(key(keymap.Delete), c)
	assert.Empty(t, d.Buffer())
	assert.False(t, d.HasCandidates())
}

func TestDictionaryCursorMovement(t *testing.T) {
	d := NewDictionary(testLexicon(), DictionaryOptions{PageSize: 2})
	c := &recordingClient{}
	typeText(d, c, "b")
	require.Len(t, d.Candidates(), 4)

	d.TryCommand(key(keymap.Up), c)
	assert.Equal(t, 0, d.CandidateCursor())
	d.TryCommand(key(keymap.Down), c)
	assert.Equal(t, 1, d.CandidateCursor())
	d.TryCommand(key(keymap.PageDown), c)
	assert.Equal(t, 3, d.CandidateCursor())
	d.TryCommand(key(keymap.PageDown), c)
	assert.Equal(t, 3, d.CandidateCursor())
	d.TryCommand(key(keymap.PageUp), c)
	assert.Equal(t, 1, d.CandidateCursor())

	d.TryCommand(key(keymap.Space), c)
	assert.Equal(t, []string{"be right back"}, c.inserted)
}

func TestDictionaryNoMatchSpaceCommitsBuffer(t *testing.T) {
	d := NewDictionary(testLexicon(), DictionaryOptions{})
	c := &recordingClient{}
	typeText(d, c, "xyz")
	assert.False(t, d.HasCandidates())

	assert.Equal(t, ime.Processed, d.TryCommand(key(keymap.Space), c))
	assert.Equal(t, []string{"xyz"}, c.inserted)
}

func TestDictionaryMaxCandidates(t *testing.T) {
	d := NewDictionary(testLexicon(), DictionaryOptions{MaxCandidates: 2})
	typeText(d, &recordingClient{}, "b")
	assert.Len(t, d.Candidates(), 2)
}

func TestDictionaryRanksByUsage(t *testing.T) {
	usage := newMemoryUsage()
	d := NewDictionary(testLexicon(), DictionaryOptions{Usage: usage})
	c := &recordingClient{}

	typeText(d, c, "btw")
	require.True(t, d.SelectCandidate(1, c))
	assert.Equal(t, int64(1), usage.counts["btw"]["between"])

	typeText(d, c, "bt")
	assert.Equal(t, []string{"between", "bluetooth", "by the way"}, d.Candidates())
}

func TestDictionaryUsageErrorsAreIgnored(t *testing.T) {
	usage := newMemoryUsage()
	usage.fail = true
	d := NewDictionary(testLexicon(), DictionaryOptions{Usage: usage})
	c := &recordingClient{}

	typeText(d, c, "btw")
	assert.Equal(t, []string{"by the way", "between"}, d.Candidates())
	assert.True(t, d.SelectCandidate(0, c))
	assert.Equal(t, []string{"by the way"}, c.inserted)
}

func TestDictionarySelectOutOfRange(t *testing.T) {
	d := NewDictionary(testLexicon(), DictionaryOptions{})
	c := &recordingClient{}
	typeText(d, c, "btw")
	assert.False(t, d.SelectCandidate(-1, c))
	assert.False(t, d.SelectCandidate(5, c))
	assert.Equal(t, "btw", d.Buffer())
}

func TestDictionaryWithSQLiteStore(t *testing.T) {
	s, err := store.Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	d := NewDictionary(testLexicon(), DictionaryOptions{Usage: s})
	c := &recordingClient{}
	for i := 0; i < 2; i++ {
		typeText(d, c, "brb")
		require.True(t, d.SelectCandidate(0, c))
	}
	counts, err := s.Counts("brb")
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts["be right back"])
}

func TestDictionaryDigitSelectsWithinPage(t *testing.T) {
	d := NewDictionary(testLexicon(), DictionaryOptions{PageSize: 2})
	c := &recordingClient{}
	typeText(d, c, "b")
	d.TryCommand(key(keymap.PageDown), c)
	require.Equal(t, 2, d.CandidateCursor())

	assert.Equal(t, ime.Processed, d.TryCommand(key(0x13), c))
	assert.Equal(t, []string{"between"}, c.inserted)
}
