// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package grammar holds the weighted production rules that drive document
// generation: the rule store, the rule-source loader, and the matcher that
// finds symbol occurrences in partially expanded text.
//
// A Store moves through two phases. During setup it is mutated by loads,
// merges, and overrides; Freeze ends that phase and any later mutation
// returns ErrFrozen. Temporary bindings over a frozen store are made with
// Bind, which returns a child layer that shadows the parent.
//
// Implements: docs/ARCHITECTURE § Rule Store, § Rule Loader, § Symbol Matcher.
package grammar

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"sync/atomic"
)

var (
	// ErrFrozen is returned by mutators called after Freeze.
	ErrFrozen = errors.New("rule store is frozen")

	// ErrNotFrozen is returned by Bind on a store still in its mutation
	// phase.
	ErrNotFrozen = errors.New("rule store is not frozen")

	// ErrEmptySymbol is returned when a symbol is drawn from but has no
	// productions.
	ErrEmptySymbol = errors.New("symbol has no productions")
)

// versions hands out store versions. They are unique across stores so a
// matcher compiled for one layer can never pass as current for another.
var versions atomic.Uint64

// Production is one possible expansion of a symbol.
type Production struct {
	// Text is the template; it may reference other symbols unless Verbatim is set.
	Text string

	// Weight is the number of duplicate entries this production stands for.
	Weight int

	// Verbatim marks values injected from configuration. They are never
	// scanned for symbols and are escaped by the render mode.
	Verbatim bool
}

// Sequence is the weighted list of productions bound to one symbol.
type Sequence struct {
	prods []Production
	total int
}

func (q *Sequence) add(p Production) {
	if n := len(q.prods); n > 0 {
		last := &q.prods[n-1]
		if last.Text == p.Text && last.Verbatim == p.Verbatim {
			last.Weight += p.Weight
			q.total += p.Weight
			return
		}
	}
	q.prods = append(q.prods, p)
	q.total += p.Weight
}

// Len returns the total weight: the number of entries the sequence would
// have if every production were duplicated Weight times.
func (q *Sequence) Len() int {
	if q == nil {
		return 0
	}
	return q.total
}

// Productions returns a copy of the weighted productions in load order.
func (q *Sequence) Productions() []Production {
	if q == nil {
		return nil
	}
	out := make([]Production, len(q.prods))
	copy(out, q.prods)
	return out
}

// Weight returns the combined weight of every production whose text is text.
func (q *Sequence) Weight(text string) int {
	if q == nil {
		return 0
	}
	w := 0
	for _, p := range q.prods {
		if p.Text == text {
			w += p.Weight
		}
	}
	return w
}

// Pick draws one production uniformly over the total weight. It consumes
// exactly one value from r.
func (q *Sequence) Pick(r *rand.Rand) (Production, error) {
	if q.Len() == 0 {
		return Production{}, ErrEmptySymbol
	}
	n := r.IntN(q.total)
	for _, p := range q.prods {
		if n < p.Weight {
			return p, nil
		}
		n -= p.Weight
	}
	// Unreachable while total equals the sum of weights.
	return q.prods[len(q.prods)-1], nil
}

// Store maps symbol names to weighted production sequences.
type Store struct {
	parent   *Store
	rules    map[string]*Sequence
	counters map[string]bool
	version  uint64
	frozen   bool
}

// NewStore returns an empty store in its mutation phase.
func NewStore() *Store {
	return &Store{
		rules:    make(map[string]*Sequence),
		counters: make(map[string]bool),
		version:  versions.Add(1),
	}
}

func (s *Store) touch() {
	s.version = versions.Add(1)
}

// Version identifies the current key set and contents. It changes on
// every mutation.
func (s *Store) Version() uint64 { return s.version }

// Frozen reports whether Freeze has been called.
func (s *Store) Frozen() bool { return s.frozen }

// Freeze ends the mutation phase.
func (s *Store) Freeze() { s.frozen = true }

// Append adds text to name's sequence with the given weight, creating the
// symbol if needed.
func (s *Store) Append(name, text string, weight int) error {
	return s.append(name, Production{Text: text, Weight: weight})
}

// AppendVerbatim is Append for a configuration value that must not be
// scanned for symbols.
func (s *Store) AppendVerbatim(name, text string, weight int) error {
	return s.append(name, Production{Text: text, Weight: weight, Verbatim: true})
}

func (s *Store) append(name string, p Production) error {
	if s.frozen {
		return fmt.Errorf("appending to %s: %w", name, ErrFrozen)
	}
	if p.Weight < 1 {
		return fmt.Errorf("appending to %s: weight %d must be at least 1", name, p.Weight)
	}
	q, ok := s.rules[name]
	if !ok {
		q = s.inherited(name)
		s.rules[name] = q
	}
	q.add(p)
	s.touch()
	return nil
}

// inherited copies the parent's sequence for name so a child layer can
// extend it without touching the parent.
func (s *Store) inherited(name string) *Sequence {
	q := &Sequence{}
	if s.parent != nil {
		if pq, ok := s.parent.Lookup(name); ok {
			q.prods = pq.Productions()
			q.total = pq.total
		}
	}
	return q
}

// Replace discards name's sequence and installs prods in its place.
func (s *Store) Replace(name string, prods ...Production) error {
	if s.frozen {
		return fmt.Errorf("replacing %s: %w", name, ErrFrozen)
	}
	q := &Sequence{}
	for _, p := range prods {
		if p.Weight < 1 {
			return fmt.Errorf("replacing %s: weight %d must be at least 1", name, p.Weight)
		}
		q.add(p)
	}
	s.rules[name] = q
	s.touch()
	return nil
}

// Set replaces name with verbatim values, one entry each.
func (s *Store) Set(name string, values ...string) error {
	prods := make([]Production, len(values))
	for i, v := range values {
		prods[i] = Production{Text: v, Weight: 1, Verbatim: true}
	}
	return s.Replace(name, prods...)
}

// DeclareCounter registers name as a counter usable as NAME+ and NAME#.
func (s *Store) DeclareCounter(name string) error {
	if s.frozen {
		return fmt.Errorf("declaring counter %s: %w", name, ErrFrozen)
	}
	s.counters[name] = true
	s.touch()
	return nil
}

// Lookup returns the sequence bound to name, searching parent layers.
func (s *Store) Lookup(name string) (*Sequence, bool) {
	for l := s; l != nil; l = l.parent {
		if q, ok := l.rules[name]; ok {
			return q, true
		}
	}
	return nil, false
}

// Count returns the total weight bound to name, or zero if undefined.
func (s *Store) Count(name string) int {
	q, _ := s.Lookup(name)
	return q.Len()
}

// Keys returns every defined symbol name, sorted.
func (s *Store) Keys() []string {
	seen := make(map[string]bool)
	for l := s; l != nil; l = l.parent {
		for k := range l.rules {
			seen[k] = true
		}
	}
	return sortedKeys(seen)
}

// Counters returns every declared counter name, sorted.
func (s *Store) Counters() []string {
	seen := make(map[string]bool)
	for l := s; l != nil; l = l.parent {
		for k := range l.counters {
			seen[k] = true
		}
	}
	return sortedKeys(seen)
}

// IsCounter reports whether name was declared as a counter.
func (s *Store) IsCounter(name string) bool {
	for l := s; l != nil; l = l.parent {
		if l.counters[name] {
			return true
		}
	}
	return false
}

// Bind returns a child layer in which each name is bound to a single
// verbatim value. The receiver must be frozen: the child's version only
// covers its own bindings. The child is frozen too.
func (s *Store) Bind(pairs ...string) (*Store, error) {
	if !s.frozen {
		return nil, fmt.Errorf("bind: %w", ErrNotFrozen)
	}
	if len(pairs)%2 != 0 {
		return nil, fmt.Errorf("bind: odd number of arguments (%d)", len(pairs))
	}
	child := &Store{
		parent:   s,
		rules:    make(map[string]*Sequence),
		counters: make(map[string]bool),
		version:  versions.Add(1),
	}
	for i := 0; i < len(pairs); i += 2 {
		if err := child.Set(pairs[i], pairs[i+1]); err != nil {
			return nil, err
		}
	}
	child.frozen = true
	return child, nil
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
