// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package grammar

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// ErrStaleMatcher is returned when a matcher is used with a store whose
// version no longer matches the one it was compiled from.
var ErrStaleMatcher = errors.New("symbol matcher is stale")

// Counter reference suffixes.
const (
	CounterNext   = '+'
	CounterRecall = '#'
)

// Match is one symbol occurrence located in text.
type Match struct {
	// Start and End delimit the occurrence, including any counter suffix.
	Start, End int

	// Symbol is the symbol or counter name.
	Symbol string

	// Counter is CounterNext or CounterRecall for counter references, zero
	// for plain symbols.
	Counter byte
}

// Matcher locates symbol occurrences. It is a pure function of the key set
// of the store it was compiled from.
type Matcher struct {
	re          *regexp.Regexp
	version     uint64
	hasCounters bool
}

// Compile builds a matcher for the current keys and counters of s. Longer
// names are tried first so that SYSNAME wins over SYS.
func Compile(s *Store) (*Matcher, error) {
	keys := s.Keys()
	counters := s.Counters()
	m := &Matcher{version: s.Version(), hasCounters: len(counters) > 0}
	if len(keys) == 0 && len(counters) == 0 {
		return m, nil
	}

	var parts []string
	if len(counters) > 0 {
		parts = append(parts, `(`+alternation(counters)+`)([+#])`)
	}
	if len(keys) > 0 {
		parts = append(parts, `(`+alternation(keys)+`)\b`)
	}
	re, err := regexp.Compile(`\b(?:` + strings.Join(parts, "|") + `)`)
	if err != nil {
		return nil, fmt.Errorf("compiling symbol matcher over %d keys: %w", len(keys), err)
	}
	m.re = re
	return m, nil
}

func alternation(names []string) string {
	sorted := make([]string, len(names))
	copy(sorted, names)
	sort.SliceStable(sorted, func(i, j int) bool {
		if len(sorted[i]) != len(sorted[j]) {
			return len(sorted[i]) > len(sorted[j])
		}
		return sorted[i] < sorted[j]
	})
	quoted := make([]string, len(sorted))
	for i, n := range sorted {
		quoted[i] = regexp.QuoteMeta(n)
	}
	return strings.Join(quoted, "|")
}

// Version returns the store version the matcher was compiled from.
func (m *Matcher) Version() uint64 { return m.version }

// Current reports whether m was compiled from the present state of s.
func (m *Matcher) Current(s *Store) bool {
	return m != nil && m.version == s.Version()
}

// Check returns ErrStaleMatcher unless m is current for s.
func (m *Matcher) Check(s *Store) error {
	if m == nil {
		return fmt.Errorf("%w: no matcher compiled", ErrStaleMatcher)
	}
	if !m.Current(s) {
		return fmt.Errorf("%w: compiled for version %d, store is at %d", ErrStaleMatcher, m.version, s.Version())
	}
	return nil
}

// Find returns the leftmost symbol occurrence in text.
func (m *Matcher) Find(text string) (Match, bool) {
	if m.re == nil {
		return Match{}, false
	}
	loc := m.re.FindStringSubmatchIndex(text)
	if loc == nil {
		return Match{}, false
	}
	key := 2
	if m.hasCounters {
		if loc[2] >= 0 {
			return Match{
				Start:   loc[0],
				End:     loc[1],
				Symbol:  text[loc[2]:loc[3]],
				Counter: text[loc[4]],
			}, true
		}
		key = 6
	}
	return Match{Start: loc[0], End: loc[1], Symbol: text[loc[key]:loc[key+1]]}, true
}

// Contains reports whether text holds any symbol occurrence.
func (m *Matcher) Contains(text string) bool {
	_, ok := m.Find(text)
	return ok
}

// FindAll returns every non-overlapping occurrence, left to right.
func (m *Matcher) FindAll(text string) []Match {
	var out []Match
	offset := 0
	for offset <= len(text) {
		mt, ok := m.Find(text[offset:])
		if !ok {
			break
		}
		mt.Start += offset
		mt.End += offset
		out = append(out, mt)
		offset = mt.End
	}
	return out
}
