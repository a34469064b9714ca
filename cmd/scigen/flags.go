// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/scigen/internal/runlog"
	"github.com/pdiddy/scigen/pkg/types"
)

// envKeys maps flag names to environment names: bib-famous reads
// SCIGEN_BIB_FAMOUS.
var envKeys = strings.NewReplacer("-", "_")

// addGenerationFlags registers the flags that shape the document.
func addGenerationFlags(cmd *cobra.Command) {
	def := types.DefaultGenerationConfig()
	f := cmd.Flags()
	f.StringArray("author", nil, "author of the paper (repeat for several authors)")
	f.String("title", "", "use this title instead of a generated one")
	f.StringSlice("topic", nil, "topic rule sets to layer on the base grammar (repeat or comma-separate)")
	f.String("product", string(def.Product), "document kind: article, book, or blurb")
	f.Int64("seed", 0, "random seed (default: drawn at startup)")
	f.Bool("bib-authors", def.IncludeAuthors, "let the authors appear in the bibliography")
	f.String("bib-famous", string(def.Famous), "famous authors in references: all, topic, or none")
	f.Int("year", 0, "generation year for copyright and references (0 = current year)")
	f.String("rules-dir", "", "load grammar files from this directory instead of the built-in grammar")
}

// addDeliveryFlags registers the flags that control output and typesetting.
func addDeliveryFlags(cmd *cobra.Command) {
	def := types.DefaultGenerationConfig()
	tc := types.DefaultToolchainConfig()
	f := cmd.Flags()
	f.String("mode", string(def.Mode), "output: pdf, zip, dir, view, or raw")
	f.StringP("output", "o", "", "destination path (default: derived from product and seed)")
	f.Duration("timeout", tc.Timeout, "limit for each toolchain step (0 = no limit)")
	f.String("latex", tc.LaTeX, "LaTeX binary")
	f.String("bibtex", tc.BibTeX, "BibTeX binary")
	f.String("makeindex", tc.MakeIndex, "makeindex binary")
	f.String("zip", tc.Zip, "zip binary")
	f.String("viewer", tc.Viewer, "PDF viewer")
}

// bindFlags binds cmd's local flags into viper. Commands share flag names,
// so binding happens when the command runs rather than at init.
func bindFlags(cmd *cobra.Command, args []string) error {
	return viper.BindPFlags(cmd.LocalFlags())
}

// generationConfig reads the generation settings from viper.
func generationConfig() types.GenerationConfig {
	cfg := types.DefaultGenerationConfig()
	cfg.Authors = viper.GetStringSlice("author")
	cfg.Title = viper.GetString("title")
	cfg.Topics = splitList(viper.GetStringSlice("topic"))
	cfg.Product = types.Product(viper.GetString("product"))
	cfg.Mode = types.OutputMode(viper.GetString("mode"))
	cfg.IncludeAuthors = viper.GetBool("bib-authors")
	cfg.Famous = types.FamousMode(viper.GetString("bib-famous"))
	cfg.Year = viper.GetInt("year")
	cfg.Debug = viper.GetBool("debug")
	cfg.Output = viper.GetString("output")
	cfg.RulesDir = viper.GetString("rules-dir")
	if viper.IsSet("seed") {
		seed := viper.GetInt64("seed")
		cfg.Seed = &seed
	}
	return cfg
}

// toolchainConfig reads the toolchain settings from viper.
func toolchainConfig() types.ToolchainConfig {
	return types.ToolchainConfig{
		LaTeX:     viper.GetString("latex"),
		BibTeX:    viper.GetString("bibtex"),
		MakeIndex: viper.GetString("makeindex"),
		Zip:       viper.GetString("zip"),
		Viewer:    viper.GetString("viewer"),
		Timeout:   viper.GetDuration("timeout"),
	}
}

// historyPath returns the configured history database, or the default.
func historyPath() (string, error) {
	if p := viper.GetString("history-db"); p != "" {
		return p, nil
	}
	return runlog.DefaultPath()
}

// splitList flattens comma-separated entries and drops empty ones.
func splitList(in []string) []string {
	var out []string
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// reproduceCommand returns a generate command line that regenerates the
// document described by cfg. cfg must carry a resolved seed.
func reproduceCommand(cfg types.GenerationConfig) string {
	def := types.DefaultGenerationConfig()
	args := []string{"scigen", "generate"}
	if cfg.Seed != nil {
		args = append(args, "--seed", strconv.FormatInt(*cfg.Seed, 10))
	}
	if cfg.Year != 0 {
		args = append(args, "--year", strconv.Itoa(cfg.Year))
	}
	if cfg.Product != def.Product {
		args = append(args, "--product", string(cfg.Product))
	}
	for _, a := range cfg.Authors {
		args = append(args, "--author", shellQuote(a))
	}
	for _, t := range cfg.Topics {
		args = append(args, "--topic", shellQuote(t))
	}
	if cfg.Title != "" {
		args = append(args, "--title", shellQuote(cfg.Title))
	}
	if cfg.Famous != def.Famous {
		args = append(args, "--bib-famous", string(cfg.Famous))
	}
	if cfg.IncludeAuthors != def.IncludeAuthors {
		args = append(args, fmt.Sprintf("--bib-authors=%t", cfg.IncludeAuthors))
	}
	if cfg.RulesDir != "" {
		args = append(args, "--rules-dir", shellQuote(cfg.RulesDir))
	}
	return strings.Join(args, " ")
}

// shellQuote single-quotes s unless it is made only of safe characters.
func shellQuote(s string) string {
	safe := s != "" && strings.IndexFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || strings.ContainsRune("-_./:=@,", r))
	}) < 0
	if safe {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
