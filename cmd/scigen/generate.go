// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"
	"io/fs"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/scigen/internal/assemble"
	"github.com/pdiddy/scigen/internal/paper"
	"github.com/pdiddy/scigen/internal/rules"
	"github.com/pdiddy/scigen/internal/runlog"
	"github.com/pdiddy/scigen/internal/toolchain"
	"github.com/pdiddy/scigen/pkg/types"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a paper, book, or blurb",
	Long: `Generate expands the grammar from the product's start symbol, synthesizes
a bibliography for every citation in the body, and delivers the result.

Modes: pdf typesets and writes the PDF; zip bundles sources, PDF, and
README; dir writes all files into a directory; view typesets and opens the
PDF; raw prints the LaTeX and BibTeX without running the toolchain.
Blurbs are plain text and always skip the toolchain.`,
	PreRunE: bindFlags,
	RunE:    runGenerate,
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg := generationConfig()
	if err := cfg.Validate(); err != nil {
		return err
	}
	fsys, err := rules.Open(cfg.RulesDir)
	if err != nil {
		return err
	}
	return generate(cmd.Context(), fsys, cfg, toolchainConfig(), cmd.OutOrStdout())
}

// generate runs one document end to end and records it in history.
func generate(ctx context.Context, fsys fs.FS, cfg types.GenerationConfig, tc types.ToolchainConfig, w io.Writer) error {
	g, err := paper.NewGenerator(fsys, cfg, logger)
	if err != nil {
		return err
	}
	cfg = g.Config()

	hist := openHistory()
	if hist == nil {
		_, err := produce(ctx, g, tc, w)
		return err
	}
	defer hist.Close()

	run, err := hist.Start(ctx, cfg)
	if err != nil {
		logger.Warn("run not recorded", "error", err)
		_, err := produce(ctx, g, tc, w)
		return err
	}
	logger.Info("run started", "run", run.ID, "seed", run.Seed, "product", cfg.Product)

	artifact, err := produce(ctx, g, tc, w)
	if ferr := hist.Finish(ctx, run.ID, artifact, err); ferr != nil {
		logger.Warn("run status not recorded", "run", run.ID, "error", ferr)
	}
	return err
}

// produce generates the body and bibliography and hands them to the
// assembler. It returns the artifact path, if any.
func produce(ctx context.Context, g *paper.Generator, tc types.ToolchainConfig, w io.Writer) (string, error) {
	cfg := g.Config()
	body, err := g.Body()
	if err != nil {
		return "", err
	}
	var bibliography string
	if cfg.Product != types.ProductBlurb {
		if bibliography, err = g.Bibliography(body); err != nil {
			return "", err
		}
	}

	doc := assemble.Document{
		Base:         fmt.Sprintf("scigen-%s-%d", cfg.Product, g.Seed()),
		Product:      cfg.Product,
		Body:         body,
		Bibliography: bibliography,
		Title:        paper.SanitizeTitle(cfg.Title),
		Seed:         g.Seed(),
		Reproduce:    reproduceCommand(cfg),
	}
	a := assemble.New(toolchain.New(tc, logger), w, logger)
	return a.Deliver(ctx, doc, cfg.Mode, cfg.Output)
}

// openHistory opens the run history, or returns nil when history is off or
// cannot be opened.
func openHistory() *runlog.Log {
	if viper.GetBool("no-history") {
		return nil
	}
	path, err := historyPath()
	if err != nil {
		logger.Warn("history disabled", "error", err)
		return nil
	}
	hist, err := runlog.Open(path)
	if err != nil {
		logger.Warn("history disabled", "path", path, "error", err)
		return nil
	}
	return hist
}

func init() {
	addGenerationFlags(generateCmd)
	addDeliveryFlags(generateCmd)

	rootCmd.AddCommand(generateCmd)
}
