// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package grammar

import (
	"regexp"
	"sort"
)

// symbolLike matches upper-snake tokens with at least one underscore, the
// naming convention for symbols. Tokens that look like symbols but are not
// defined are almost always typos.
var symbolLike = regexp.MustCompile(`\b[A-Z][A-Z0-9]*(?:_[A-Z0-9]+)+\b`)

// LintReport lists problems found in a store.
type LintReport struct {
	// Undefined maps a symbol-like token to the symbols whose productions use it.
	Undefined map[string][]string

	// Unreachable lists symbols no start symbol can reach.
	Unreachable []string
}

// Clean reports whether the store has no problems.
func (r LintReport) Clean() bool {
	return len(r.Undefined) == 0 && len(r.Unreachable) == 0
}

// Lint checks s for undefined symbol-like tokens and for symbols that cannot
// be reached from any of starts. Names in reserved count as defined; they
// are bound at generation time.
func Lint(s *Store, m *Matcher, starts []string, reserved []string) LintReport {
	known := make(map[string]bool)
	for _, k := range s.Keys() {
		known[k] = true
	}
	for _, k := range s.Counters() {
		known[k] = true
	}
	for _, k := range reserved {
		known[k] = true
	}

	undefined := make(map[string]map[string]bool)
	edges := make(map[string][]string)
	for _, name := range s.Keys() {
		q, _ := s.Lookup(name)
		for _, p := range q.Productions() {
			if p.Verbatim {
				continue
			}
			for _, mt := range m.FindAll(p.Text) {
				edges[name] = append(edges[name], mt.Symbol)
			}
			for _, tok := range symbolLike.FindAllString(p.Text, -1) {
				if known[tok] {
					continue
				}
				if undefined[tok] == nil {
					undefined[tok] = make(map[string]bool)
				}
				undefined[tok][name] = true
			}
		}
	}

	report := LintReport{Undefined: make(map[string][]string)}
	for tok, users := range undefined {
		report.Undefined[tok] = sortedKeys(users)
	}

	reached := make(map[string]bool)
	queue := append([]string(nil), starts...)
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if reached[n] {
			continue
		}
		reached[n] = true
		queue = append(queue, edges[n]...)
	}
	for _, name := range s.Keys() {
		if !reached[name] {
			report.Unreachable = append(report.Unreachable, name)
		}
	}
	sort.Strings(report.Unreachable)
	return report
}
