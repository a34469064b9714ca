// Package main contains Mage build targets for scigen developer tooling.
// Implements: docs/ARCHITECTURE § Developer Tooling.
package main

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binDir   = "bin"
	binName  = "scigen"
	cmdPkg   = "./cmd/scigen"
	rulesDir = "internal/rules"
)

var binPath = filepath.Join(binDir, binName)

// Build compiles the CLI binary into bin/.
func Build() error {
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", binDir, err)
	}
	version, err := sh.Output("git", "describe", "--tags", "--always", "--dirty")
	if err != nil {
		version = "dev"
	}
	ldflags := "-X main.version=" + version
	if err := sh.RunV("go", "build", "-ldflags", ldflags, "-o", binPath, cmdPkg); err != nil {
		return fmt.Errorf("go build: %w", err)
	}
	fmt.Printf("Built %s\n", binPath)
	return nil
}

// Test runs the unit tests.
func Test() error {
	return sh.RunV("go", "test", "./...")
}

// Lint runs go vet and checks the built-in grammar for undefined and
// unreachable symbols.
func Lint() error {
	mg.Deps(Build)
	if err := sh.RunV("go", "vet", "./..."); err != nil {
		return err
	}
	return sh.RunV(binPath, "lint", "--no-history")
}

// Sample prints a raw paper for seed 1 without typesetting it.
func Sample() error {
	mg.Deps(Build)
	return sh.RunV(binPath, "generate", "--mode", "raw", "--seed", "1", "--no-history")
}

// Clean removes build output.
func Clean() error {
	fmt.Println("Removing", binDir)
	return sh.Rm(binDir)
}

// Stats prints project metrics: Go production/test LOC and grammar size.
func Stats() error {
	prodLines, err := countGoLines(".", false)
	if err != nil {
		return err
	}
	testLines, err := countGoLines(".", true)
	if err != nil {
		return err
	}
	sources, rules, err := countRules(rulesDir)
	if err != nil {
		return err
	}

	fmt.Printf("Lines of code (Go, production): %d\n", prodLines)
	fmt.Printf("Lines of code (Go, tests):      %d\n", testLines)
	fmt.Printf("Grammar rules:                  %d in %d files\n", rules, sources)
	return nil
}

// countGoLines walks the tree and counts non-blank lines in Go files.
// If testOnly is true, count only _test.go files; otherwise count non-test
// .go files. Directories starting with _ or . are skipped, as go build does.
func countGoLines(root string, testOnly bool) (int, error) {
	total := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && (strings.HasPrefix(d.Name(), "_") || strings.HasPrefix(d.Name(), ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".go" {
			return nil
		}
		if strings.HasSuffix(path, "_test.go") != testOnly {
			return nil
		}
		n, err := countLines(path, func(line string) bool { return line != "" })
		total += n
		return err
	})
	return total, err
}

// countRules counts rule lines and blocks in .in files under root.
// Comments, directives, and block bodies are not counted.
func countRules(root string) (sources, rules int, err error) {
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || filepath.Ext(path) != ".in" {
			return err
		}
		sources++
		inBlock := false
		n, err := countLines(path, func(line string) bool {
			switch {
			case inBlock:
				inBlock = line != "}"
				return false
			case line == "", strings.HasPrefix(line, "#"), strings.HasPrefix(line, "%"):
				return false
			case strings.HasSuffix(line, "{"):
				inBlock = true
			}
			return true
		})
		rules += n
		return err
	})
	return sources, rules, err
}

// countLines counts the trimmed lines of path that keep accepts.
func countLines(path string, keep func(string) bool) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", path, err)
	}
	defer f.Close()
	n := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if keep(strings.TrimSpace(sc.Text())) {
			n++
		}
	}
	return n, sc.Err()
}
