// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the scigen pipeline:
// generation settings consumed by the grammar core, toolchain settings
// consumed by the typesetting stage, and the run record kept in history.
// Implements: docs/ARCHITECTURE § Configuration.
package types

import (
	"fmt"
	"strings"
	"time"
)

// Product selects the kind of document to generate.
type Product string

const (
	ProductArticle Product = "article"
	ProductBook    Product = "book"
	ProductBlurb   Product = "blurb"
)

// OutputMode selects what the run delivers.
type OutputMode string

const (
	ModePDF  OutputMode = "pdf"
	ModeZip  OutputMode = "zip"
	ModeDir  OutputMode = "dir"
	ModeView OutputMode = "view"
	ModeRaw  OutputMode = "raw"
)

// FamousMode controls whether famous authors appear in fabricated references.
type FamousMode string

const (
	FamousAll   FamousMode = "all"
	FamousTopic FamousMode = "topic"
	FamousNone  FamousMode = "none"
)

var (
	validProducts = map[Product]bool{ProductArticle: true, ProductBook: true, ProductBlurb: true}
	validModes    = map[OutputMode]bool{ModePDF: true, ModeZip: true, ModeDir: true, ModeView: true, ModeRaw: true}
	validFamous   = map[FamousMode]bool{FamousAll: true, FamousTopic: true, FamousNone: true}
)

// ConfigError reports an invalid configuration value. It is returned before
// any generation work begins.
type ConfigError struct {
	Field   string
	Value   string
	Allowed []string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s %q: use one of %s", e.Field, e.Value, strings.Join(e.Allowed, ", "))
}

// GenerationConfig holds the settings for one generation run.
type GenerationConfig struct {
	// Authors lists the paper's own authors. Empty means a random author is used.
	Authors []string `json:"authors" yaml:"authors"`

	// Title replaces the generated document title when non-empty. It is
	// plain text: LaTeX special characters are escaped.
	Title string `json:"title,omitempty" yaml:"title,omitempty"`

	// Topics names topic rule files layered on the base grammar.
	Topics []string `json:"topics,omitempty" yaml:"topics,omitempty"`

	// Product selects article, book, or blurb.
	Product Product `json:"product" yaml:"product"`

	// Mode selects pdf, zip, dir, view, or raw output.
	Mode OutputMode `json:"mode" yaml:"mode"`

	// Seed fixes the random stream. Nil means a seed is drawn at startup.
	Seed *int64 `json:"seed,omitempty" yaml:"seed,omitempty"`

	// IncludeAuthors lets the paper's own authors appear in the bibliography.
	IncludeAuthors bool `json:"include_authors" yaml:"include_authors"`

	// Famous controls the famous-author pool: all, topic, or none.
	Famous FamousMode `json:"famous" yaml:"famous"`

	// Year is the generation year. Zero means the current year.
	Year int `json:"year,omitempty" yaml:"year,omitempty"`

	// Debug turns on per-symbol expansion logging.
	Debug bool `json:"debug,omitempty" yaml:"debug,omitempty"`

	// Output is the destination path for the final artifact.
	Output string `json:"output,omitempty" yaml:"output,omitempty"`

	// RulesDir overrides the embedded grammar with a directory on disk.
	RulesDir string `json:"rules_dir,omitempty" yaml:"rules_dir,omitempty"`
}

// DefaultGenerationConfig returns the configuration used when nothing is set.
func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{
		Product:        ProductArticle,
		Mode:           ModePDF,
		IncludeAuthors: true,
		Famous:         FamousAll,
	}
}

// Validate checks enumerated fields.
func (c GenerationConfig) Validate() error {
	if !validProducts[c.Product] {
		return &ConfigError{Field: "product", Value: string(c.Product), Allowed: []string{"article", "book", "blurb"}}
	}
	if !validModes[c.Mode] {
		return &ConfigError{Field: "mode", Value: string(c.Mode), Allowed: []string{"pdf", "zip", "dir", "view", "raw"}}
	}
	if !validFamous[c.Famous] {
		return &ConfigError{Field: "bib-famous", Value: string(c.Famous), Allowed: []string{"all", "topic", "none"}}
	}
	if c.Year < 0 {
		return &ConfigError{Field: "year", Value: fmt.Sprint(c.Year), Allowed: []string{"0 (current year)", "a positive year"}}
	}
	return nil
}

// GenerationYear returns Year, or the current year when Year is zero.
func (c GenerationConfig) GenerationYear() int {
	if c.Year > 0 {
		return c.Year
	}
	return time.Now().Year()
}

// ToolchainConfig holds the external binaries used to typeset and package
// a document.
type ToolchainConfig struct {
	LaTeX     string `json:"latex" yaml:"latex"`
	BibTeX    string `json:"bibtex" yaml:"bibtex"`
	MakeIndex string `json:"makeindex" yaml:"makeindex"`
	Zip       string `json:"zip" yaml:"zip"`
	Viewer    string `json:"viewer" yaml:"viewer"`

	// Timeout bounds each tool invocation. Zero disables the bound.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// DefaultToolchainConfig returns the standard TeX Live binaries.
func DefaultToolchainConfig() ToolchainConfig {
	return ToolchainConfig{
		LaTeX:     "pdflatex",
		BibTeX:    "bibtex",
		MakeIndex: "makeindex",
		Zip:       "zip",
		Viewer:    "xdg-open",
		Timeout:   2 * time.Minute,
	}
}
