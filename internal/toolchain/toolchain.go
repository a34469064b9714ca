// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package toolchain runs the external binaries that turn generated LaTeX
// into a PDF, bundle the result, and open it in a viewer.
//
// Every step is synchronous and runs under the configured timeout. A
// nonzero exit or a timeout aborts the sequence with *FailureError; steps
// are never retried.
//
// Implements: docs/ARCHITECTURE § Toolchain.
package toolchain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/pdiddy/scigen/pkg/types"
)

// ErrTimeout is wrapped by a FailureError whose step ran past the timeout.
var ErrTimeout = errors.New("toolchain step timed out")

// outputTail is the number of output lines kept in a FailureError.
const outputTail = 20

// FailureError reports a toolchain step that exited nonzero or timed out.
type FailureError struct {
	// Tool is the binary that failed.
	Tool string

	Args []string

	// Output holds the last lines the tool printed.
	Output string

	Err error
}

func (e *FailureError) Error() string {
	msg := fmt.Sprintf("%s %s: %v", e.Tool, strings.Join(e.Args, " "), e.Err)
	if e.Output != "" {
		msg += "\n" + e.Output
	}
	return msg
}

func (e *FailureError) Unwrap() error { return e.Err }

// executor abstracts command execution for testing.
type executor interface {
	LookPath(file string) (string, error)
	Run(ctx context.Context, dir, name string, args []string, out io.Writer) error
}

// osExecutor is the production executor backed by os/exec.
type osExecutor struct{}

func (o *osExecutor) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (o *osExecutor) Run(ctx context.Context, dir, name string, args []string, out io.Writer) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stdout = out
	cmd.Stderr = out
	return cmd.Run()
}

var defaultExec = &osExecutor{}

// Runner invokes the configured binaries.
type Runner struct {
	cfg  types.ToolchainConfig
	exec executor
	log  *slog.Logger
}

// New returns a Runner for cfg.
func New(cfg types.ToolchainConfig, logger *slog.Logger) *Runner {
	return newRunner(cfg, defaultExec, logger)
}

func newRunner(cfg types.ToolchainConfig, exec executor, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Runner{cfg: cfg, exec: exec, log: logger}
}

// Check verifies that the binaries for mode are on PATH. Book products
// also need makeindex.
func (r *Runner) Check(mode types.OutputMode, book bool) error {
	var bins []string
	switch mode {
	case types.ModeRaw:
		return nil
	case types.ModeZip:
		bins = append(bins, r.cfg.Zip)
	case types.ModeView:
		bins = append(bins, r.cfg.Viewer)
	}
	bins = append(bins, r.cfg.LaTeX, r.cfg.BibTeX)
	if book {
		bins = append(bins, r.cfg.MakeIndex)
	}
	var missing []string
	for _, b := range bins {
		if _, err := r.exec.LookPath(b); err != nil {
			missing = append(missing, b)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("required tools not found on PATH: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Typeset runs the fixed pass sequence over dir/base.tex: latex, bibtex,
// makeindex (book only), then latex twice. It returns the path of the PDF.
func (r *Runner) Typeset(ctx context.Context, dir, base string, book bool) (string, error) {
	tex := base + ".tex"
	steps := [][]string{
		{r.cfg.LaTeX, "-interaction=nonstopmode", "-halt-on-error", tex},
		{r.cfg.BibTeX, base},
	}
	if book {
		steps = append(steps, []string{r.cfg.MakeIndex, base + ".idx"})
	}
	steps = append(steps,
		[]string{r.cfg.LaTeX, "-interaction=nonstopmode", "-halt-on-error", tex},
		[]string{r.cfg.LaTeX, "-interaction=nonstopmode", "-halt-on-error", tex},
	)
	for _, s := range steps {
		if err := r.step(ctx, dir, s[0], s[1:]...); err != nil {
			return "", err
		}
	}
	return filepath.Join(dir, base+".pdf"), nil
}

// Zip bundles files, relative to dir, into archive.
func (r *Runner) Zip(ctx context.Context, dir, archive string, files ...string) error {
	args := append([]string{"-q", archive}, files...)
	return r.step(ctx, dir, r.cfg.Zip, args...)
}

// View opens path with the configured viewer.
func (r *Runner) View(ctx context.Context, path string) error {
	return r.step(ctx, filepath.Dir(path), r.cfg.Viewer, path)
}

func (r *Runner) step(ctx context.Context, dir, tool string, args ...string) error {
	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}
	r.log.Debug("running toolchain step", "tool", tool, "args", args, "dir", dir)

	var out bytes.Buffer
	err := r.exec.Run(ctx, dir, tool, args, &out)
	if err == nil {
		return nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("%w after %s", ErrTimeout, r.cfg.Timeout)
	}
	return &FailureError{Tool: tool, Args: args, Output: tail(out.String(), outputTail), Err: err}
}

// tail returns the last n lines of s.
func tail(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
