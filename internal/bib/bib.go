// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package bib scans generated body text for citation markers and fabricates
// one bibliography entry per distinct marker, so that every \cite in the
// body resolves against the generated .bib file.
// Implements: docs/ARCHITECTURE § Bibliography.
package bib

import (
	"fmt"
	"math/rand/v2"
	"regexp"
	"strings"

	"github.com/pdiddy/scigen/internal/expand"
	"github.com/pdiddy/scigen/internal/grammar"
)

const (
	// EntrySymbol is the start symbol for one bibliography entry.
	EntrySymbol = "BIBTEX_ENTRY"

	// LabelSymbol is bound to the citation label of the entry being generated.
	LabelSymbol = "CITE_LABEL_GIVEN"
)

// citationPattern matches cite:N followed by the comma or brace that ends
// it inside \cite{...}.
var citationPattern = regexp.MustCompile(`cite:(\d+)[,}]`)

// Citations returns the distinct citation labels in body ("cite:N"), in
// order of first appearance.
func Citations(body string) []string {
	seen := make(map[string]bool)
	var labels []string
	for _, m := range citationPattern.FindAllStringSubmatch(body, -1) {
		label := "cite:" + m[1]
		if seen[label] {
			continue
		}
		seen[label] = true
		labels = append(labels, label)
	}
	return labels
}

// Synthesize generates the bibliography for body. For every distinct
// citation label it binds LabelSymbol over store, compiles a matcher for
// that layer, and expands EntrySymbol. Entries are separated by a blank line.
// store must be frozen.
func Synthesize(body string, store *grammar.Store, rng *rand.Rand, mode expand.Mode, opts expand.Options) (string, error) {
	var b strings.Builder
	for _, label := range Citations(body) {
		layer, err := store.Bind(LabelSymbol, label)
		if err != nil {
			return "", err
		}
		matcher, err := grammar.Compile(layer)
		if err != nil {
			return "", err
		}
		entry, err := expand.Expand(layer, EntrySymbol, matcher, mode, rng, opts)
		if err != nil {
			return "", fmt.Errorf("generating bibliography entry %s: %w", label, err)
		}
		b.WriteString(entry)
		b.WriteString("\n\n")
	}
	return b.String(), nil
}
