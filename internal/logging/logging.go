// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package logging builds the process logger: text on stderr, and JSON in a
// log file when one is configured.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	slogmulti "github.com/samber/slog-multi"
)

// Options configures New.
type Options struct {
	// Debug lowers the level from info to debug.
	Debug bool

	// LogFile, when set, receives every record as JSON. The file is
	// appended to and created with its parent directories if needed.
	LogFile string

	// Stderr receives text records. Nil means os.Stderr.
	Stderr io.Writer
}

// New returns the logger, its level, and a function that closes the log
// file. The close function is never nil.
func New(opts Options) (*slog.Logger, *slog.LevelVar, func() error, error) {
	level := new(slog.LevelVar)
	if opts.Debug {
		level.Set(slog.LevelDebug)
	}
	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	handlers := []slog.Handler{
		slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}),
	}
	closer := func() error { return nil }

	if opts.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(opts.LogFile), 0o755); err != nil {
			return nil, nil, nil, fmt.Errorf("creating log directory: %w", err)
		}
		f, err := os.OpenFile(opts.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("opening log file: %w", err)
		}
		handlers = append(handlers, slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level}))
		closer = f.Close
	}

	return slog.New(slogmulti.Fanout(handlers...)), level, closer, nil
}
