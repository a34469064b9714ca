// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package assemble writes a generated document to a scratch directory,
// typesets it, and promotes the requested artifact to its destination.
// Nothing reaches the destination unless every step succeeded.
// Implements: docs/ARCHITECTURE § Assembly.
package assemble

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/russross/blackfriday/v2"

	"github.com/pdiddy/scigen/pkg/types"
)

const (
	// BibFile is the bibliography name the LaTeX grammar refers to.
	BibFile = "scigenbibfile.bib"

	readmeFile = "README.md"
	readmeHTML = "README.html"
)

// Typesetter runs the external toolchain. *toolchain.Runner implements it.
type Typesetter interface {
	Check(mode types.OutputMode, book bool) error
	Typeset(ctx context.Context, dir, base string, book bool) (string, error)
	Zip(ctx context.Context, dir, archive string, files ...string) error
	View(ctx context.Context, path string) error
}

// Document is one generated document ready for delivery.
type Document struct {
	// Base names the output files: <Base>.tex, <Base>.pdf.
	Base string

	Product      types.Product
	Body         string
	Bibliography string

	// Title and Seed are recorded in the README.
	Title string
	Seed  int64

	// Reproduce is the command that regenerates the document.
	Reproduce string
}

// Assembler delivers documents.
type Assembler struct {
	tools Typesetter
	log   *slog.Logger
	w     io.Writer

	// TempRoot is where scratch directories are created; empty means the
	// system default.
	TempRoot string
}

// New returns an Assembler. Progress lines and raw output go to w.
func New(tools Typesetter, w io.Writer, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Assembler{tools: tools, log: logger, w: w}
}

// Deliver produces doc in the given mode and returns the artifact path, or
// "" when the result was written to the progress writer. output overrides
// the default destination.
func (a *Assembler) Deliver(ctx context.Context, doc Document, mode types.OutputMode, output string) (string, error) {
	if doc.Product == types.ProductBlurb {
		return a.writeText(doc.Body, output)
	}
	if mode == types.ModeRaw {
		return a.writeText(doc.Body+"\n\n"+doc.Bibliography, output)
	}

	book := doc.Product == types.ProductBook
	if err := a.tools.Check(mode, book); err != nil {
		return "", err
	}

	work, err := os.MkdirTemp(a.TempRoot, "scigen-*")
	if err != nil {
		return "", fmt.Errorf("creating work dir: %w", err)
	}
	defer os.RemoveAll(work)

	files, err := writeSources(work, doc)
	if err != nil {
		return "", err
	}
	a.log.Debug("wrote sources", "dir", work, "files", files)

	pdf, err := a.tools.Typeset(ctx, work, doc.Base, book)
	if err != nil {
		return "", fmt.Errorf("typesetting %s: %w", doc.Base, err)
	}
	files = append(files, filepath.Base(pdf))

	switch mode {
	case types.ModePDF:
		return a.promote(pdf, defaultPath(output, doc.Base+".pdf"))
	case types.ModeView:
		dst, err := a.promote(pdf, defaultPath(output, doc.Base+".pdf"))
		if err != nil {
			return "", err
		}
		if err := a.tools.View(ctx, dst); err != nil {
			return dst, fmt.Errorf("opening viewer: %w", err)
		}
		return dst, nil
	case types.ModeZip:
		archive := filepath.Join(work, doc.Base+".zip")
		if err := a.tools.Zip(ctx, work, archive, files...); err != nil {
			return "", fmt.Errorf("bundling %s: %w", doc.Base, err)
		}
		return a.promote(archive, defaultPath(output, doc.Base+".zip"))
	case types.ModeDir:
		return a.promoteDir(work, files, defaultPath(output, doc.Base))
	default:
		return "", &types.ConfigError{Field: "mode", Value: string(mode), Allowed: []string{"pdf", "zip", "dir", "view", "raw"}}
	}
}

// writeText prints text to the progress writer, or to output when set.
func (a *Assembler) writeText(text, output string) (string, error) {
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	if output == "" {
		_, err := io.WriteString(a.w, text)
		return "", err
	}
	if err := writeAtomic(output, []byte(text)); err != nil {
		return "", err
	}
	fmt.Fprintf(a.w, "wrote %s\n", output)
	return output, nil
}

// writeSources writes the LaTeX source, bibliography, and READMEs into dir
// and returns their names.
func writeSources(dir string, doc Document) ([]string, error) {
	md := Readme(doc)
	contents := []struct {
		name string
		data []byte
	}{
		{doc.Base + ".tex", []byte(doc.Body)},
		{BibFile, []byte(doc.Bibliography)},
		{readmeFile, []byte(md)},
		{readmeHTML, blackfriday.Run([]byte(md))},
	}
	names := make([]string, 0, len(contents))
	for _, c := range contents {
		if err := os.WriteFile(filepath.Join(dir, c.name), c.data, 0o644); err != nil {
			return nil, fmt.Errorf("writing %s: %w", c.name, err)
		}
		names = append(names, c.name)
	}
	return names, nil
}

func (a *Assembler) promote(src, dst string) (string, error) {
	data, err := os.ReadFile(src)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", filepath.Base(src), err)
	}
	if err := writeAtomic(dst, data); err != nil {
		return "", err
	}
	fmt.Fprintf(a.w, "wrote %s\n", dst)
	return dst, nil
}

// promoteDir copies files from work into a staging directory beside dst
// and renames it into place.
func (a *Assembler) promoteDir(work string, files []string, dst string) (string, error) {
	if _, err := os.Stat(dst); err == nil {
		return "", fmt.Errorf("output directory %s already exists", dst)
	}
	parent := filepath.Dir(dst)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return "", fmt.Errorf("creating %s: %w", parent, err)
	}
	stage, err := os.MkdirTemp(parent, ".scigen-stage-*")
	if err != nil {
		return "", fmt.Errorf("creating staging dir: %w", err)
	}
	for _, name := range files {
		data, err := os.ReadFile(filepath.Join(work, name))
		if err != nil {
			os.RemoveAll(stage)
			return "", fmt.Errorf("reading %s: %w", name, err)
		}
		if err := os.WriteFile(filepath.Join(stage, name), data, 0o644); err != nil {
			os.RemoveAll(stage)
			return "", fmt.Errorf("writing %s: %w", name, err)
		}
	}
	if err := os.Chmod(stage, 0o755); err != nil {
		os.RemoveAll(stage)
		return "", fmt.Errorf("setting permissions on %s: %w", dst, err)
	}
	if err := os.Rename(stage, dst); err != nil {
		os.RemoveAll(stage)
		return "", fmt.Errorf("moving output into %s: %w", dst, err)
	}
	fmt.Fprintf(a.w, "wrote %s/\n", dst)
	return dst, nil
}

// writeAtomic writes data to a temporary file beside path and renames it.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	f, err := os.CreateTemp(dir, ".scigen-*")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", path, err)
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Chmod(tmp, 0o644); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("moving %s into place: %w", path, err)
	}
	return nil
}

func defaultPath(output, fallback string) string {
	if output != "" {
		return output
	}
	return fallback
}

// Readme returns the Markdown README shipped with a document.
func Readme(doc Document) string {
	title := doc.Title
	if title == "" {
		title = "Generated " + string(doc.Product)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "This %s was generated by scigen with seed `%d`.\n\n", doc.Product, doc.Seed)
	b.WriteString("## Rebuilding the PDF\n\n")
	b.WriteString("Run these commands in this directory:\n\n")
	fmt.Fprintf(&b, "    pdflatex %s.tex\n", doc.Base)
	fmt.Fprintf(&b, "    bibtex %s\n", doc.Base)
	if doc.Product == types.ProductBook {
		fmt.Fprintf(&b, "    makeindex %s.idx\n", doc.Base)
	}
	fmt.Fprintf(&b, "    pdflatex %s.tex\n", doc.Base)
	fmt.Fprintf(&b, "    pdflatex %s.tex\n", doc.Base)
	b.WriteString("\n## Files\n\n")
	fmt.Fprintf(&b, "- `%s.tex`: LaTeX source\n", doc.Base)
	fmt.Fprintf(&b, "- `%s`: bibliography\n", BibFile)
	fmt.Fprintf(&b, "- `%s.pdf`: typeset output\n", doc.Base)
	if doc.Reproduce != "" {
		b.WriteString("\n## Regenerating\n\n")
		fmt.Fprintf(&b, "    %s\n", doc.Reproduce)
	}
	return b.String()
}
