// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package expand turns a start symbol into finished text by recursively
// replacing symbol occurrences with productions drawn from a rule store.
//
// Expansion is depth-first and leftmost-first. Each resolved symbol draws
// exactly one value from the random stream, so the same seed and the same
// store always give byte-identical output. The render mode only escapes
// verbatim values and post-processes the finished text; it never touches
// the random stream.
//
// Implements: docs/ARCHITECTURE § Expansion.
package expand

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/pdiddy/scigen/internal/grammar"
)

const (
	defaultMaxDepth      = 200
	defaultMaxExpansions = 200000
)

// Options bounds and instruments an expansion.
type Options struct {
	// MaxDepth limits recursion depth (default 200).
	MaxDepth int

	// MaxExpansions limits the total number of symbols resolved by one
	// engine (default 200000). It catches grammars that grow without
	// bound while staying shallow.
	MaxExpansions int

	// Debug logs every resolution at debug level.
	Debug bool

	Logger *slog.Logger
}

// DepthExceededError reports a grammar that does not terminate.
type DepthExceededError struct {
	// Symbol is the symbol being resolved when the limit was hit.
	Symbol string

	// Depth is the recursion depth or expansion count reached.
	Depth int

	// Limit names the bound that was exceeded: "depth" or "expansions".
	Limit string
}

func (e *DepthExceededError) Error() string {
	return fmt.Sprintf("expansion of %s exceeded %s limit (%d); grammar may be cyclic with no terminating production",
		e.Symbol, e.Limit, e.Depth)
}

// UndefinedSymbolError reports a start symbol missing from the store.
type UndefinedSymbolError struct {
	Symbol string
}

func (e *UndefinedSymbolError) Error() string {
	return fmt.Sprintf("start symbol %s is not defined", e.Symbol)
}

// Engine expands symbols against one store. Counter state is kept for the
// lifetime of the engine, so one engine should produce one document.
type Engine struct {
	store    *grammar.Store
	matcher  *grammar.Matcher
	rng      *rand.Rand
	render   Renderer
	opts     Options
	log      *slog.Logger
	counters map[string]int
	resolved int
}

// New returns an engine. The matcher must be current for store.
func New(store *grammar.Store, matcher *grammar.Matcher, rng *rand.Rand, mode Mode, opts Options) (*Engine, error) {
	if err := matcher.Check(store); err != nil {
		return nil, err
	}
	r, err := RendererFor(mode)
	if err != nil {
		return nil, err
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = defaultMaxDepth
	}
	if opts.MaxExpansions <= 0 {
		opts.MaxExpansions = defaultMaxExpansions
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Engine{
		store:    store,
		matcher:  matcher,
		rng:      rng,
		render:   r,
		opts:     opts,
		log:      log,
		counters: make(map[string]int),
	}, nil
}

// Expand is the one-shot form of New followed by Engine.Expand.
func Expand(store *grammar.Store, start string, matcher *grammar.Matcher, mode Mode, rng *rand.Rand, opts Options) (string, error) {
	e, err := New(store, matcher, rng, mode, opts)
	if err != nil {
		return "", err
	}
	return e.Expand(start)
}

// Expand resolves start and renders the result.
func (e *Engine) Expand(start string) (string, error) {
	if _, ok := e.store.Lookup(start); !ok {
		return "", &UndefinedSymbolError{Symbol: start}
	}
	var b strings.Builder
	if err := e.symbol(&b, start, 0); err != nil {
		return "", err
	}
	return e.render.Finish(b.String()), nil
}

func (e *Engine) symbol(b *strings.Builder, name string, depth int) error {
	if depth >= e.opts.MaxDepth {
		return &DepthExceededError{Symbol: name, Depth: depth, Limit: "depth"}
	}
	e.resolved++
	if e.resolved > e.opts.MaxExpansions {
		return &DepthExceededError{Symbol: name, Depth: e.resolved - 1, Limit: "expansions"}
	}

	q, _ := e.store.Lookup(name)
	p, err := q.Pick(e.rng)
	if err != nil {
		return fmt.Errorf("expanding %s: %w", name, err)
	}
	if e.opts.Debug {
		e.log.Debug("expand", "symbol", name, "depth", depth, "production", p.Text)
	}
	if p.Verbatim {
		b.WriteRune(verbatimOpen)
		b.WriteString(e.render.Verbatim(unmark(p.Text)))
		b.WriteRune(verbatimClose)
		return nil
	}
	return e.text(b, p.Text, depth+1)
}

// text writes tmpl to b, expanding every symbol occurrence left to right.
func (e *Engine) text(b *strings.Builder, tmpl string, depth int) error {
	for {
		m, ok := e.matcher.Find(tmpl)
		if !ok {
			b.WriteString(tmpl)
			return nil
		}
		b.WriteString(tmpl[:m.Start])
		if m.Counter != 0 {
			b.WriteString(strconv.Itoa(e.counter(m.Symbol, m.Counter)))
		} else if err := e.symbol(b, m.Symbol, depth); err != nil {
			return err
		}
		tmpl = tmpl[m.End:]
	}
}

// counter returns the next value of name for CounterNext, or a random
// previously issued value for CounterRecall.
func (e *Engine) counter(name string, kind byte) int {
	n := e.counters[name]
	if kind == grammar.CounterNext {
		e.counters[name] = n + 1
		return n
	}
	if n == 0 {
		return 0
	}
	return e.rng.IntN(n)
}

// Resolved returns how many symbols the engine has resolved so far.
func (e *Engine) Resolved() int { return e.resolved }
