// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package rules carries the built-in grammar: the base rule source and the
// topic overlays. A rules directory on disk with the same layout can stand
// in for it.
// Implements: docs/ARCHITECTURE § Grammar Files.
package rules

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
)

const (
	// Base is the mandatory base grammar.
	Base = "scirules.in"

	// TopicDir holds one overlay per topic, named <topic>.in.
	TopicDir = "topics"

	topicExt = ".in"
)

//go:embed scirules.in topics/*.in
var builtin embed.FS

// Builtin returns the embedded grammar.
func Builtin() fs.FS { return builtin }

// Open returns the rules filesystem rooted at dir, or the embedded grammar
// when dir is empty.
func Open(dir string) (fs.FS, error) {
	if dir == "" {
		return builtin, nil
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("opening rules dir %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("rules dir %s is not a directory", dir)
	}
	return os.DirFS(dir), nil
}

// TopicPath returns the source name for topic.
func TopicPath(topic string) string {
	return path.Join(TopicDir, topic+topicExt)
}

// Topics lists the topic names available in fsys, sorted. A missing topic
// directory yields an empty list.
func Topics(fsys fs.FS) ([]string, error) {
	entries, err := fs.ReadDir(fsys, TopicDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing topics: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), topicExt) {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), topicExt))
	}
	sort.Strings(names)
	return names, nil
}
