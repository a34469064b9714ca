// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package expand

import (
	"bytes"
	"errors"
	"log/slog"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/scigen/internal/grammar"
)

func load(t *testing.T, src string) (*grammar.Store, *grammar.Matcher) {
	t.Helper()
	s := grammar.NewStore()
	_, err := (&grammar.Loader{}).Parse(strings.NewReader(src), "test.in", s)
	require.NoError(t, err)
	s.Freeze()
	m, err := grammar.Compile(s)
	require.NoError(t, err)
	return s, m
}

func rng(seed uint64) *rand.Rand { return rand.New(rand.NewPCG(seed, 0)) }

const sentences = `
START SUBJECT VERB OBJECT.
START+2 OBJECT is VERB by SUBJECT.
SUBJECT the ADJ NOUN
SUBJECT NOUN
OBJECT NOUN
ADJ fast
ADJ robust
NOUN compiler
NOUN kernel
NOUN hash table
VERB eats
VERB improves
`

func TestExpand_Deterministic(t *testing.T) {
	s, m := load(t, sentences)
	for seed := uint64(0); seed < 50; seed++ {
		a, err := Expand(s, "START", m, ModePlain, rng(seed), Options{})
		require.NoError(t, err)
		b, err := Expand(s, "START", m, ModePlain, rng(seed), Options{})
		require.NoError(t, err)
		assert.Equal(t, a, b)
	}
}

func TestExpand_NoSymbolsRemain(t *testing.T) {
	s, m := load(t, sentences)
	for seed := uint64(0); seed < 200; seed++ {
		out, err := Expand(s, "START", m, ModeLaTeX, rng(seed), Options{})
		require.NoError(t, err)
		assert.False(t, m.Contains(out), out)
	}
}

func TestExpand_WeightFidelity(t *testing.T) {
	s, m := load(t, "COIN+3 A\nCOIN B\n")
	e, err := New(s, m, rng(7), ModePlain, Options{})
	require.NoError(t, err)

	const draws = 10000
	hits := 0
	for range draws {
		out, err := e.Expand("COIN")
		require.NoError(t, err)
		if strings.TrimSpace(out) == "A" {
			hits++
		}
	}
	assert.InDelta(t, 0.75, float64(hits)/draws, 0.02)
	assert.Equal(t, draws, e.Resolved())
}

func TestExpand_DepthExceeded(t *testing.T) {
	s, m := load(t, "LOOP again LOOP\n")
	_, err := Expand(s, "LOOP", m, ModePlain, rng(1), Options{MaxDepth: 50})
	var de *DepthExceededError
	require.True(t, errors.As(err, &de), "got %v", err)
	assert.Equal(t, "LOOP", de.Symbol)
	assert.Equal(t, "depth", de.Limit)
	assert.Equal(t, 50, de.Depth)
}

func TestExpand_DefaultDepthGuard(t *testing.T) {
	s, m := load(t, "A B\nB A\n")
	_, err := Expand(s, "A", m, ModePlain, rng(1), Options{})
	var de *DepthExceededError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, defaultMaxDepth, de.Depth)
}

func TestExpand_BudgetExceeded(t *testing.T) {
	// Shallow but wide: 4^6 leaves.
	s, m := load(t, `L0 L1 L1 L1 L1
L1 L2 L2 L2 L2
L2 L3 L3 L3 L3
L3 L4 L4 L4 L4
L4 L5 L5 L5 L5
L5 L6 L6 L6 L6
L6 x
`)
	_, err := Expand(s, "L0", m, ModePlain, rng(1), Options{MaxExpansions: 1000})
	var de *DepthExceededError
	require.True(t, errors.As(err, &de), "got %v", err)
	assert.Equal(t, "expansions", de.Limit)

	_, err = Expand(s, "L0", m, ModePlain, rng(1), Options{})
	assert.NoError(t, err)
}

func TestExpand_Errors(t *testing.T) {
	s, m := load(t, "A B\n")

	_, err := Expand(s, "MISSING", m, ModePlain, rng(1), Options{})
	var ue *UndefinedSymbolError
	assert.True(t, errors.As(err, &ue))

	_, err = Expand(s, "A", m, "troff", rng(1), Options{})
	assert.Error(t, err)

	empty := grammar.NewStore()
	require.NoError(t, empty.Replace("NOTHING"))
	em, err := grammar.Compile(empty)
	require.NoError(t, err)
	_, err = Expand(empty, "NOTHING", em, ModePlain, rng(1), Options{})
	assert.ErrorIs(t, err, grammar.ErrEmptySymbol)
	assert.Contains(t, err.Error(), "NOTHING")
}

func TestExpand_StaleMatcher(t *testing.T) {
	s := grammar.NewStore()
	require.NoError(t, s.Append("A", "a", 1))
	m, err := grammar.Compile(s)
	require.NoError(t, err)
	require.NoError(t, s.Append("B", "b", 1))

	_, err = Expand(s, "A", m, ModePlain, rng(1), Options{})
	assert.ErrorIs(t, err, grammar.ErrStaleMatcher)
}

func TestExpand_Counters(t *testing.T) {
	s, m := load(t, `%counter N
DOC ref:N+ ref:N+ ref:N+ again:N#
`)
	out, err := Expand(s, "DOC", m, ModePlain, rng(3), Options{})
	require.NoError(t, err)
	fields := strings.Fields(out)
	require.Len(t, fields, 4)
	assert.Equal(t, []string{"Ref:0", "ref:1", "ref:2"}, fields[:3])
	assert.Contains(t, []string{"again:0", "again:1", "again:2"}, fields[3])
}

func TestExpand_CounterRecallBeforeIssue(t *testing.T) {
	s, m := load(t, "%counter N\nDOC x:N#\n")
	out, err := Expand(s, "DOC", m, ModePlain, rng(3), Options{})
	require.NoError(t, err)
	assert.Equal(t, "X:0\n", out)
}

func TestExpand_VerbatimNotScanned(t *testing.T) {
	s := grammar.NewStore()
	require.NoError(t, s.Append("DOC", "title: TITLE", 1))
	require.NoError(t, s.Set("TITLE", "TITLE & DOC_50%"))
	require.NoError(t, s.Append("DOC_50", "never", 1))
	s.Freeze()
	m, err := grammar.Compile(s)
	require.NoError(t, err)

	out, err := Expand(s, "DOC", m, ModeLaTeX, rng(1), Options{})
	require.NoError(t, err)
	assert.Equal(t, `Title: TITLE \& DOC\_50\%`, out)

	out, err = Expand(s, "DOC", m, ModePlain, rng(1), Options{})
	require.NoError(t, err)
	assert.Equal(t, "Title: TITLE & DOC_50%\n", out)
}

func TestExpand_VerbatimKeepsCase(t *testing.T) {
	s := grammar.NewStore()
	require.NoError(t, s.Append("DOC", "\\section{on NAME} a NAME and a idea.\nwhen NAME wrote it. a OTHER left.", 1))
	require.NoError(t, s.Set("NAME", "alpha a. omega"))
	require.NoError(t, s.Set("OTHER", "Jane A Evans"))
	s.Freeze()
	m, err := grammar.Compile(s)
	require.NoError(t, err)

	out, err := Expand(s, "DOC", m, ModeLaTeX, rng(1), Options{})
	require.NoError(t, err)
	assert.Equal(t, `\section{On alpha a. omega} an alpha a. omega and an idea.`+"\n"+
		`When alpha a. omega wrote it. A Jane A Evans left.`, out)

	out, err = Expand(s, "DOC", m, ModePlain, rng(1), Options{})
	require.NoError(t, err)
	assert.Equal(t, `\section{on alpha a. omega} an alpha a. omega and an idea. When alpha a. omega wrote it. A Jane A Evans left.`,
		strings.Join(strings.Fields(out), " "))
}

func TestExpand_VerbatimInBibTeXTitle(t *testing.T) {
	s := grammar.NewStore()
	require.NoError(t, s.Append("ENTRY", "@misc{LABEL, title = {{the NAME in practice}}}", 1))
	require.NoError(t, s.Set("LABEL", "cite:0"))
	require.NoError(t, s.Set("NAME", "alpha a. omega\uE000"))
	s.Freeze()
	m, err := grammar.Compile(s)
	require.NoError(t, err)

	out, err := Expand(s, "ENTRY", m, ModeBibTeX, rng(1), Options{})
	require.NoError(t, err)
	assert.Equal(t, "@misc{cite:0, title = {{The alpha a. omega in Practice}}}", out)
}

func TestExpand_DebugLogging(t *testing.T) {
	s, m := load(t, sentences)
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	_, err := Expand(s, "START", m, ModePlain, rng(1), Options{Logger: logger})
	require.NoError(t, err)
	assert.Empty(t, logs.String(), "quiet unless debug is set")

	_, err = Expand(s, "START", m, ModePlain, rng(1), Options{Logger: logger, Debug: true})
	require.NoError(t, err)
	assert.Contains(t, logs.String(), "symbol=START")
}
