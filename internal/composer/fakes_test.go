package composer

import "errors"

type recordingClient struct {
	inserted []string
	marked   string
}

func (c *recordingClient) InsertText(text string)    { c.inserted = append(c.inserted, text) }
func (c *recordingClient) SetMarkedText(text string) { c.marked = text }

type memoryUsage struct {
	counts map[string]map[string]int64
	fail   bool
}

var errUsage = errors.New("usage unavailable")

func newMemoryUsage() *memoryUsage {
	return &memoryUsage{counts: make(map[string]map[string]int64)}
}

func (m *memoryUsage) RecordSelection(reading, candidate string) error {
	if m.fail {
		return errUsage
	}
	if m.counts[reading] == nil {
		m.counts[reading] = make(map[string]int64)
	}
	m.counts[reading][candidate]++
	return nil
}

func (m *memoryUsage) Counts(reading string) (map[string]int64, error) {
	if m.fail {
		return nil, errUsage
	}
	return m.counts[reading], nil
}
