// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package paper composes the rule store for one generation run and drives
// body and bibliography expansion.
//
// Composition order is fixed: base grammar, topic overlays (additive),
// reserved symbols, the year distribution, the AUTHOR override, and finally
// the custom title. The store is frozen afterwards, so a Generator is a
// read-only view of the grammar for the rest of the run.
//
// Implements: docs/ARCHITECTURE § Composition.
package paper

import (
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"math/rand/v2"
	"regexp"
	"strconv"
	"strings"

	"github.com/pdiddy/scigen/internal/bib"
	"github.com/pdiddy/scigen/internal/expand"
	"github.com/pdiddy/scigen/internal/grammar"
	"github.com/pdiddy/scigen/internal/rules"
	"github.com/pdiddy/scigen/pkg/types"
)

// Start symbols per product.
const (
	StartArticle = "SCIPAPER_LATEX"
	StartBook    = "SCIBOOK_LATEX"
	StartBlurb   = "SCI_BLURB"
)

// Symbols bound or overridden at generation time.
const (
	SymbolSeed      = "SCIGEN_SEED"
	SymbolAuthor    = "SCIGEN_AUTHOR"
	SymbolAuthors   = "SCIGEN_AUTHORS"
	SymbolYear      = "SCIGEN_YEAR"
	SymbolTitle     = "SCI_TITLE"
	SymbolBibTitle  = "BIB_TITLE"
	SymbolYears     = "YEAR"
	SymbolBibAuthor = "AUTHOR"
	SymbolFamous    = "FAMOUS_AUTHOR"
	SymbolGeneric   = "GENERIC_AUTHOR"
	SymbolSysname   = "SYSNAME"
	SymbolSysGen    = "SYSNAME_GEN"
)

// AUTHOR pool weights.
const (
	FamousWeight  = 10
	GenericWeight = 20
	OwnWeight     = 4
)

// Year distribution: YearSpan years before the generation year, the newest
// about YearRatio times as likely as the oldest.
const (
	YearSpan  = 100
	YearRatio = 35
)

// Random streams derived from the run seed.
const (
	streamSetup uint64 = iota
	streamBody
	streamBib
)

// Reserved lists the symbols a grammar may reference without defining.
var Reserved = []string{
	SymbolSeed, SymbolAuthor, SymbolAuthors, SymbolYear, SymbolSysname,
	SymbolYears, bib.LabelSymbol,
}

// StartSymbols lists every symbol generation starts from.
func StartSymbols() []string {
	return []string{StartArticle, StartBook, StartBlurb, bib.EntrySymbol}
}

// Start returns the start symbol and render mode for product.
func Start(product types.Product) (string, expand.Mode, error) {
	switch product {
	case types.ProductArticle:
		return StartArticle, expand.ModeLaTeX, nil
	case types.ProductBook:
		return StartBook, expand.ModeLaTeXBook, nil
	case types.ProductBlurb:
		return StartBlurb, expand.ModePlain, nil
	default:
		return "", "", &types.ConfigError{Field: "product", Value: string(product), Allowed: []string{"article", "book", "blurb"}}
	}
}

// ResolveSeed returns *seed, or a freshly drawn seed when seed is nil.
func ResolveSeed(seed *int64) int64 {
	if seed != nil {
		return *seed
	}
	return rand.Int64()
}

// Generator holds the composed, frozen store for one run.
type Generator struct {
	cfg     types.GenerationConfig
	seed    int64
	year    int
	store   *grammar.Store
	slot    grammar.Slot
	topics  []string
	authors []string
	log     *slog.Logger
	opts    expand.Options
}

// NewGenerator validates cfg, loads the grammar from fsys, and applies the
// overlays. A missing base grammar is fatal; missing topics are skipped.
func NewGenerator(fsys fs.FS, cfg types.GenerationConfig, logger *slog.Logger) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	g := &Generator{
		cfg:  cfg,
		seed: ResolveSeed(cfg.Seed),
		year: cfg.GenerationYear(),
		log:  logger,
		opts: expand.Options{Debug: cfg.Debug, Logger: logger},
	}
	g.cfg.Seed = &g.seed
	g.cfg.Year = g.year

	g.store = grammar.NewStore()
	loader := &grammar.Loader{Logger: logger, Debug: cfg.Debug}
	if err := loader.Load(fsys, rules.Base, g.store, nil); err != nil {
		return nil, fmt.Errorf("loading base grammar: %w", err)
	}
	for _, topic := range cfg.Topics {
		ok, err := loader.LoadOptional(fsys, rules.TopicPath(topic), g.store, nil)
		if err != nil {
			return nil, fmt.Errorf("loading topic %s: %w", topic, err)
		}
		if ok {
			g.topics = append(g.topics, topic)
		}
	}
	if err := g.slot.Refresh(g.store); err != nil {
		return nil, err
	}

	if err := g.compose(); err != nil {
		return nil, err
	}
	g.store.Freeze()
	if err := g.slot.Refresh(g.store); err != nil {
		return nil, err
	}

	logger.Info("grammar composed",
		"seed", g.seed,
		"year", g.year,
		"topics", g.topics,
		"symbols", len(g.store.Keys()),
	)
	return g, nil
}

// compose applies the programmatic overlays in priority order.
func (g *Generator) compose() error {
	setup := rand.New(rand.NewPCG(uint64(g.seed), streamSetup))

	g.authors = g.cfg.Authors
	if len(g.authors) == 0 {
		name, err := g.draw(setup, SymbolGeneric)
		if err != nil {
			return fmt.Errorf("drawing default author: %w", err)
		}
		g.authors = []string{name}
	}
	if _, ok := g.store.Lookup(SymbolSysname); !ok {
		if _, ok := g.store.Lookup(SymbolSysGen); ok {
			name, err := g.draw(setup, SymbolSysGen)
			if err != nil {
				return fmt.Errorf("drawing system name: %w", err)
			}
			if err := g.store.Set(SymbolSysname, name); err != nil {
				return err
			}
		}
	}

	if err := g.store.Set(SymbolSeed, strconv.FormatInt(g.seed, 10)); err != nil {
		return err
	}
	if err := g.store.Set(SymbolAuthor, g.authors...); err != nil {
		return err
	}
	if err := g.store.Set(SymbolAuthors, Byline(g.authors)); err != nil {
		return err
	}
	if err := g.store.Set(SymbolYear, strconv.Itoa(g.year)); err != nil {
		return err
	}
	if err := g.store.Replace(SymbolYears, YearDistribution(g.year)...); err != nil {
		return err
	}
	if err := g.store.Replace(SymbolBibAuthor, g.authorPools()...); err != nil {
		return err
	}
	if g.cfg.Title != "" {
		if err := g.store.Set(SymbolTitle, SanitizeTitle(g.cfg.Title)); err != nil {
			return err
		}
	}
	return nil
}

// draw expands symbol as plain text with the setup stream.
func (g *Generator) draw(r *rand.Rand, symbol string) (string, error) {
	if err := g.slot.Refresh(g.store); err != nil {
		return "", err
	}
	s, err := expand.Expand(g.store, symbol, g.slot.Matcher(), expand.ModePlain, r, g.opts)
	if err != nil {
		return "", err
	}
	return strings.Join(strings.Fields(s), " "), nil
}

// authorPools builds the AUTHOR override. Absent pools are omitted rather
// than given zero weight.
func (g *Generator) authorPools() []grammar.Production {
	var prods []grammar.Production
	famous := g.cfg.Famous == types.FamousAll ||
		(g.cfg.Famous == types.FamousTopic && len(g.topics) > 0)
	if famous && g.store.Count(SymbolFamous) > 0 {
		prods = append(prods, grammar.Production{Text: SymbolFamous, Weight: FamousWeight})
	}
	prods = append(prods, grammar.Production{Text: SymbolGeneric, Weight: GenericWeight})
	if g.cfg.IncludeAuthors {
		prods = append(prods, grammar.Production{Text: SymbolAuthor, Weight: OwnWeight})
	}
	return prods
}

// Body expands the product's start symbol.
func (g *Generator) Body() (string, error) {
	start, mode, err := Start(g.cfg.Product)
	if err != nil {
		return "", err
	}
	r := rand.New(rand.NewPCG(uint64(g.seed), streamBody))
	body, err := expand.Expand(g.store, start, g.slot.Matcher(), mode, r, g.opts)
	if err != nil {
		return "", fmt.Errorf("generating %s: %w", g.cfg.Product, err)
	}
	return body, nil
}

// Bibliography generates one entry per distinct citation in body. It uses
// its own random stream, so the result depends only on body and the
// configuration.
func (g *Generator) Bibliography(body string) (string, error) {
	r := rand.New(rand.NewPCG(uint64(g.seed), streamBib))
	out, err := bib.Synthesize(body, g.store, r, expand.ModeBibTeX, g.opts)
	if err != nil {
		return "", fmt.Errorf("generating bibliography: %w", err)
	}
	return out, nil
}

// Seed returns the resolved seed.
func (g *Generator) Seed() int64 { return g.seed }

// Year returns the resolved generation year.
func (g *Generator) Year() int { return g.year }

// Config returns the configuration with Seed and Year resolved. Replaying
// it reproduces the run.
func (g *Generator) Config() types.GenerationConfig { return g.cfg }

// Topics returns the topics that were found and loaded.
func (g *Generator) Topics() []string { return g.topics }

// Authors returns the paper's authors, including a drawn default.
func (g *Generator) Authors() []string { return g.authors }

// Store returns the frozen store.
func (g *Generator) Store() *grammar.Store { return g.store }

// Matcher returns the matcher for the frozen store.
func (g *Generator) Matcher() *grammar.Matcher { return g.slot.Matcher() }

// GenerateBody composes the grammar for cfg and expands the body.
func GenerateBody(fsys fs.FS, cfg types.GenerationConfig, logger *slog.Logger) (string, error) {
	g, err := NewGenerator(fsys, cfg, logger)
	if err != nil {
		return "", err
	}
	return g.Body()
}

// GenerateBibliography composes the grammar for cfg and generates the
// bibliography for body.
func GenerateBibliography(fsys fs.FS, body string, cfg types.GenerationConfig, logger *slog.Logger) (string, error) {
	g, err := NewGenerator(fsys, cfg, logger)
	if err != nil {
		return "", err
	}
	return g.Bibliography(body)
}

// LintGrammar loads the base grammar and topics, every topic in fsys when
// topics is empty, and lints the merged store.
func LintGrammar(fsys fs.FS, topics []string, logger *slog.Logger) (grammar.LintReport, error) {
	if len(topics) == 0 {
		var err error
		if topics, err = rules.Topics(fsys); err != nil {
			return grammar.LintReport{}, err
		}
	}
	store := grammar.NewStore()
	loader := &grammar.Loader{Logger: logger}
	if err := loader.Load(fsys, rules.Base, store, nil); err != nil {
		return grammar.LintReport{}, fmt.Errorf("loading base grammar: %w", err)
	}
	for _, topic := range topics {
		if err := loader.Load(fsys, rules.TopicPath(topic), store, nil); err != nil {
			return grammar.LintReport{}, fmt.Errorf("loading topic %s: %w", topic, err)
		}
	}
	m, err := grammar.Compile(store)
	if err != nil {
		return grammar.LintReport{}, err
	}
	return grammar.Lint(store, m, StartSymbols(), Reserved), nil
}

// Byline joins authors as "A", "A and B", or "A, B, and C".
func Byline(authors []string) string {
	switch len(authors) {
	case 0:
		return ""
	case 1:
		return authors[0]
	case 2:
		return authors[0] + " and " + authors[1]
	default:
		return strings.Join(authors[:len(authors)-1], ", ") + ", and " + authors[len(authors)-1]
	}
}

var titleSpace = regexp.MustCompile(`\s+`)

// SanitizeTitle collapses escaped line breaks (\\) and whitespace runs to a
// single space and trims the result. The title is plain text; the renderer
// escapes it.
func SanitizeTitle(title string) string {
	title = strings.ReplaceAll(title, `\\`, " ")
	return strings.TrimSpace(titleSpace.ReplaceAllString(title, " "))
}

// YearDistribution returns the weighted YEAR productions for the YearSpan
// years before year. Offset i (0 = oldest) has weight round(YearRatio^(i/YearSpan)).
func YearDistribution(year int) []grammar.Production {
	prods := make([]grammar.Production, YearSpan)
	oldest := year - YearSpan
	for i := range prods {
		w := int(math.Round(math.Pow(YearRatio, float64(i)/YearSpan)))
		prods[i] = grammar.Production{Text: strconv.Itoa(oldest + i), Weight: w, Verbatim: true}
	}
	return prods
}
