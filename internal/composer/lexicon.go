package composer

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

// Lexicon maps abbreviations to their expansions. Keys and expansions are
// stored in NFC.
type Lexicon struct {
	keys    []string
	entries map[string][]string
}

// NewLexicon builds a lexicon from a map, dropping empty expansions and
// duplicates while keeping order.
func NewLexicon(m map[string][]string) *Lexicon {
	l := &Lexicon{entries: make(map[string][]string, len(m))}
	for k, exps := range m {
		key := norm.NFC.String(strings.TrimSpace(k))
		if key == "" {
			continue
		}
		seen := make(map[string]bool)
		for _, e := range l.entries[key] {
			seen[e] = true
		}
		for _, e := range exps {
			e = norm.NFC.String(e)
			if e == "" || seen[e] {
				continue
			}
			seen[e] = true
			l.entries[key] = append(l.entries[key], e)
		}
	}
	for k := range l.entries {
		l.keys = append(l.keys, k)
	}
	sort.Strings(l.keys)
	return l
}

// LoadLexicon reads a TOML or YAML file of `abbreviation = [expansions]`.
func LoadLexicon(path string) (*Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dictionary: %w", err)
	}
	m := make(map[string][]string)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &m)
	default:
		err = toml.Unmarshal(data, &m)
	}
	if err != nil {
		return nil, fmt.Errorf("parse dictionary %s: %w", path, err)
	}
	return NewLexicon(m), nil
}

// Len returns the number of abbreviations.
func (l *Lexicon) Len() int { return len(l.keys) }

// Lookup returns the expansions of key.
func (l *Lexicon) Lookup(key string) []string {
	return l.entries[norm.NFC.String(key)]
}

// entry is one expansion together with the abbreviation it belongs to.
type entry struct {
	reading string
	text    string
	order   int
}

// prefixed returns expansions of every key that starts with prefix, in
// key order.
func (l *Lexicon) prefixed(prefix string) []entry {
	prefix = norm.NFC.String(prefix)
	i := sort.SearchStrings(l.keys, prefix)
	var out []entry
	for ; i < len(l.keys) && strings.HasPrefix(l.keys[i], prefix); i++ {
		k := l.keys[i]
		for n, e := range l.entries[k] {
			out = append(out, entry{reading: k, text: e, order: n})
		}
	}
	return out
}
