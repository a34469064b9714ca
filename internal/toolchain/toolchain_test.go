// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package toolchain

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/pdiddy/scigen/pkg/types"
)

// mockExecutor records calls and returns configured responses.
type mockExecutor struct {
	availableBins map[string]bool // binary -> whether LookPath succeeds
	failTools     map[string]bool // binary -> whether Run fails
	hangTools     map[string]bool // binary -> whether Run blocks until ctx is done
	calls         []string
}

func (m *mockExecutor) LookPath(file string) (string, error) {
	if m.availableBins[file] {
		return "/usr/bin/" + file, nil
	}
	return "", errors.New("not found: " + file)
}

func (m *mockExecutor) Run(ctx context.Context, dir, name string, args []string, out io.Writer) error {
	m.calls = append(m.calls, name+" "+strings.Join(args, " "))
	if m.hangTools[name] {
		<-ctx.Done()
		return ctx.Err()
	}
	if m.failTools[name] {
		_, _ = io.WriteString(out, "line one\n! LaTeX Error: something broke\n")
		return errors.New("exit status 1")
	}
	return nil
}

func testConfig() types.ToolchainConfig {
	cfg := types.DefaultToolchainConfig()
	cfg.Timeout = time.Second
	return cfg
}

func TestTypeset_PassSequence(t *testing.T) {
	tests := []struct {
		name string
		book bool
		want []string
	}{
		{
			name: "article",
			want: []string{
				"pdflatex -interaction=nonstopmode -halt-on-error paper.tex",
				"bibtex paper",
				"pdflatex -interaction=nonstopmode -halt-on-error paper.tex",
				"pdflatex -interaction=nonstopmode -halt-on-error paper.tex",
			},
		},
		{
			name: "book runs makeindex",
			book: true,
			want: []string{
				"pdflatex -interaction=nonstopmode -halt-on-error paper.tex",
				"bibtex paper",
				"makeindex paper.idx",
				"pdflatex -interaction=nonstopmode -halt-on-error paper.tex",
				"pdflatex -interaction=nonstopmode -halt-on-error paper.tex",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := &mockExecutor{}
			r := newRunner(testConfig(), exec, nil)
			pdf, err := r.Typeset(context.Background(), "/tmp/work", "paper", tt.book)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if pdf != "/tmp/work/paper.pdf" {
				t.Errorf("got pdf %q, want %q", pdf, "/tmp/work/paper.pdf")
			}
			if strings.Join(exec.calls, "\n") != strings.Join(tt.want, "\n") {
				t.Errorf("got calls:\n%s\nwant:\n%s", strings.Join(exec.calls, "\n"), strings.Join(tt.want, "\n"))
			}
		})
	}
}

func TestTypeset_FailureStopsSequence(t *testing.T) {
	exec := &mockExecutor{failTools: map[string]bool{"bibtex": true}}
	r := newRunner(testConfig(), exec, nil)
	_, err := r.Typeset(context.Background(), t.TempDir(), "paper", false)

	var fe *FailureError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FailureError, got %v", err)
	}
	if fe.Tool != "bibtex" {
		t.Errorf("got tool %q, want bibtex", fe.Tool)
	}
	if !strings.Contains(fe.Output, "LaTeX Error") {
		t.Errorf("output should carry the tool's messages, got %q", fe.Output)
	}
	if len(exec.calls) != 2 {
		t.Errorf("got %d calls, want 2 (no steps after the failure)", len(exec.calls))
	}
	if errors.Is(err, ErrTimeout) {
		t.Error("a plain failure must not report a timeout")
	}
}

func TestTypeset_Timeout(t *testing.T) {
	cfg := testConfig()
	cfg.Timeout = 10 * time.Millisecond
	exec := &mockExecutor{hangTools: map[string]bool{"pdflatex": true}}
	r := newRunner(cfg, exec, nil)

	_, err := r.Typeset(context.Background(), t.TempDir(), "paper", false)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	var fe *FailureError
	if !errors.As(err, &fe) || fe.Tool != "pdflatex" {
		t.Errorf("timeout should be reported as a pdflatex failure, got %v", err)
	}
}

func TestZipAndView(t *testing.T) {
	exec := &mockExecutor{}
	r := newRunner(testConfig(), exec, nil)
	ctx := context.Background()

	if err := r.Zip(ctx, "/tmp/work", "/tmp/out.zip", "paper.tex", "paper.pdf"); err != nil {
		t.Fatalf("zip: %v", err)
	}
	if err := r.View(ctx, "/tmp/work/paper.pdf"); err != nil {
		t.Fatalf("view: %v", err)
	}
	want := []string{"zip -q /tmp/out.zip paper.tex paper.pdf", "xdg-open /tmp/work/paper.pdf"}
	if strings.Join(exec.calls, "\n") != strings.Join(want, "\n") {
		t.Errorf("got calls %q, want %q", exec.calls, want)
	}
}

func TestCheck(t *testing.T) {
	all := map[string]bool{"pdflatex": true, "bibtex": true, "makeindex": true, "zip": true, "xdg-open": true}
	tests := []struct {
		name    string
		bins    map[string]bool
		mode    types.OutputMode
		book    bool
		wantErr string
	}{
		{name: "all present", bins: all, mode: types.ModeZip, book: true},
		{name: "raw needs nothing", bins: map[string]bool{}, mode: types.ModeRaw},
		{name: "missing latex", bins: map[string]bool{"bibtex": true}, mode: types.ModePDF, wantErr: "pdflatex"},
		{name: "book needs makeindex", bins: map[string]bool{"pdflatex": true, "bibtex": true}, mode: types.ModePDF, book: true, wantErr: "makeindex"},
		{name: "zip mode needs zip", bins: map[string]bool{"pdflatex": true, "bibtex": true}, mode: types.ModeZip, wantErr: "zip"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRunner(testConfig(), &mockExecutor{availableBins: tt.bins}, nil)
			err := r.Check(tt.mode, tt.book)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error should mention %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestTail(t *testing.T) {
	in := strings.Repeat("x\n", 30) + "last\n"
	got := tail(in, 3)
	if got != "x\nx\nlast" {
		t.Errorf("got %q", got)
	}
	if tail("", 3) != "" {
		t.Error("empty input should give empty tail")
	}
}
