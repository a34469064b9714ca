// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package grammar

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
)

// SyntaxError reports a malformed rule entry.
type SyntaxError struct {
	Source string
	Line   int
	Text   string
	Reason string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s:%d: %s: %q", e.Source, e.Line, e.Reason, e.Text)
}

// SourceMissingError reports a rule source that does not exist.
type SourceMissingError struct {
	Source string
	Err    error
}

func (e *SourceMissingError) Error() string {
	return fmt.Sprintf("rule source %s not found", e.Source)
}

func (e *SourceMissingError) Unwrap() error { return e.Err }

// Slot holds the matcher derived from a store and refreshes it on demand.
type Slot struct {
	m *Matcher
}

// Matcher returns the last compiled matcher, or nil.
func (s *Slot) Matcher() *Matcher { return s.m }

// Refresh recompiles the matcher from store.
func (s *Slot) Refresh(store *Store) error {
	m, err := Compile(store)
	if err != nil {
		return err
	}
	s.m = m
	return nil
}

// headPattern matches the symbol part of a rule line: NAME, NAME+N, or NAME!.
var headPattern = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)(?:\+([^\s!]*)|(!))?$`)

// namePattern matches a bare symbol name.
var namePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Loader parses rule sources into a Store.
type Loader struct {
	// Logger receives warnings for skipped optional sources and, when Debug
	// is set, one line per loaded source.
	Logger *slog.Logger

	Debug bool
}

func (l *Loader) logger() *slog.Logger {
	if l.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return l.Logger
}

// Load reads the rule source name from fsys into store. When slot is not
// nil the matcher is recompiled afterwards; batch loaders pass nil and
// refresh once at the end. A missing source returns *SourceMissingError.
func (l *Loader) Load(fsys fs.FS, name string, into *Store, slot *Slot) error {
	f, err := fsys.Open(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &SourceMissingError{Source: name, Err: err}
		}
		return fmt.Errorf("opening rule source %s: %w", name, err)
	}
	defer f.Close()

	n, err := l.Parse(f, name, into)
	if err != nil {
		return err
	}
	if l.Debug {
		l.logger().Debug("loaded rule source", "source", name, "rules", n)
	}
	if slot != nil {
		return slot.Refresh(into)
	}
	return nil
}

// LoadOptional is Load for sources whose absence is not fatal. It logs a
// warning and reports false when the source does not exist.
func (l *Loader) LoadOptional(fsys fs.FS, name string, into *Store, slot *Slot) (bool, error) {
	err := l.Load(fsys, name, into, slot)
	var missing *SourceMissingError
	if errors.As(err, &missing) {
		l.logger().Warn("skipping missing rule source", "source", name)
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Parse reads rule definitions from r and appends them to into. source
// names the input in error messages. It returns the number of rules read.
func (l *Loader) Parse(r io.Reader, source string, into *Store) (int, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)

	replaced := make(map[string]bool)
	count := 0
	lineNo := 0

	// Open multi-line block, if any.
	var (
		block      []string
		blockName  string
		blockW     int
		blockOver  bool
		blockStart int
		inBlock    bool
	)

	add := func(name, text string, weight int, override bool) error {
		count++
		if override && !replaced[name] {
			replaced[name] = true
			return into.Replace(name, Production{Text: text, Weight: weight})
		}
		return into.Append(name, text, weight)
	}

	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), " \t\r")

		if inBlock {
			if strings.TrimSpace(line) == "}" {
				inBlock = false
				if err := add(blockName, strings.Join(block, "\n"), blockW, blockOver); err != nil {
					return count, fmt.Errorf("%s:%d: %w", source, blockStart, err)
				}
				block = nil
				continue
			}
			block = append(block, line)
			continue
		}

		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		if strings.HasPrefix(trimmed, "%") {
			if err := directive(trimmed, into); err != nil {
				return count, &SyntaxError{Source: source, Line: lineNo, Text: trimmed, Reason: err.Error()}
			}
			continue
		}

		head, rest, _ := strings.Cut(trimmed, " ")
		if h, r, ok := strings.Cut(trimmed, "\t"); ok && len(h) < len(head) {
			head, rest = h, r
		}
		rest = strings.TrimLeft(rest, " \t")

		name, weight, override, err := parseHead(head)
		if err != nil {
			return count, &SyntaxError{Source: source, Line: lineNo, Text: trimmed, Reason: err.Error()}
		}

		if rest == "{" {
			inBlock = true
			blockName, blockW, blockOver, blockStart = name, weight, override, lineNo
			continue
		}

		if err := add(name, rest, weight, override); err != nil {
			return count, fmt.Errorf("%s:%d: %w", source, lineNo, err)
		}
	}
	if err := sc.Err(); err != nil {
		return count, fmt.Errorf("reading rule source %s: %w", source, err)
	}
	if inBlock {
		return count, &SyntaxError{Source: source, Line: blockStart, Text: blockName + " {", Reason: "unterminated block"}
	}
	return count, nil
}

func parseHead(head string) (name string, weight int, override bool, err error) {
	m := headPattern.FindStringSubmatch(head)
	if m == nil {
		return "", 0, false, fmt.Errorf("invalid symbol name")
	}
	name, weight, override = m[1], 1, m[3] == "!"
	if strings.Contains(head, "+") {
		weight, err = strconv.Atoi(m[2])
		if err != nil || weight < 1 {
			return "", 0, false, fmt.Errorf("invalid weight %q", m[2])
		}
	}
	return name, weight, override, nil
}

func directive(line string, into *Store) error {
	fields := strings.Fields(line)
	switch fields[0] {
	case "%counter":
		if len(fields) < 2 {
			return fmt.Errorf("%%counter needs at least one name")
		}
		for _, name := range fields[1:] {
			if !namePattern.MatchString(name) {
				return fmt.Errorf("invalid counter name %q", name)
			}
			if err := into.DeclareCounter(name); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown directive %s", fields[0])
	}
}
