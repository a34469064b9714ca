// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package grammar

import (
	"bytes"
	"errors"
	"io/fs"
	"log/slog"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, src string) (*Store, int) {
	t.Helper()
	s := NewStore()
	n, err := (&Loader{}).Parse(strings.NewReader(src), "test.in", s)
	require.NoError(t, err)
	return s, n
}

func TestParse_Forms(t *testing.T) {
	s, n := parse(t, `
# comment
   # indented comment

GREETING hello world
GREETING+3 hi there
EMPTY
TABBED	tab separated
`)
	assert.Equal(t, 4, n)
	assert.Equal(t, 4, s.Count("GREETING"))

	q, _ := s.Lookup("GREETING")
	assert.Equal(t, 1, q.Weight("hello world"))
	assert.Equal(t, 3, q.Weight("hi there"))

	q, ok := s.Lookup("EMPTY")
	require.True(t, ok)
	assert.Equal(t, 1, q.Weight(""))

	q, _ = s.Lookup("TABBED")
	assert.Equal(t, 1, q.Weight("tab separated"))
}

func TestParse_Block(t *testing.T) {
	s, n := parse(t, `DOC {
\begin{document}
  BODY

\end{document}
}
DOC+2 {
short
}
`)
	assert.Equal(t, 2, n)
	q, _ := s.Lookup("DOC")
	prods := q.Productions()
	require.Len(t, prods, 2)
	assert.Equal(t, "\\begin{document}\n  BODY\n\n\\end{document}", prods[0].Text)
	assert.Equal(t, 2, prods[1].Weight)
}

func TestParse_Override(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Append("NAME", "base one", 1))
	require.NoError(t, s.Append("NAME", "base two", 1))

	_, err := (&Loader{}).Parse(strings.NewReader("NAME! first\nNAME! second\nNAME third\n"), "o.in", s)
	require.NoError(t, err)

	q, _ := s.Lookup("NAME")
	assert.Equal(t, 3, q.Len())
	assert.Zero(t, q.Weight("base one"))
	assert.Equal(t, 1, q.Weight("first"))
	assert.Equal(t, 1, q.Weight("second"))
	assert.Equal(t, 1, q.Weight("third"))
}

func TestParse_Counter(t *testing.T) {
	s, n := parse(t, "%counter CITE_ID FIG_ID\n")
	assert.Zero(t, n)
	assert.Equal(t, []string{"CITE_ID", "FIG_ID"}, s.Counters())
	assert.Empty(t, s.Keys())
}

func TestParse_SyntaxErrors(t *testing.T) {
	tests := []struct {
		name   string
		src    string
		line   int
		reason string
	}{
		{"bad name", "1BAD text\n", 1, "invalid symbol name"},
		{"zero weight", "\nSYM+0 text\n", 2, "invalid weight"},
		{"non-numeric weight", "SYM+x text\n", 1, "invalid weight"},
		{"empty weight", "SYM+ text\n", 1, "invalid weight"},
		{"unknown directive", "%include other.in\n", 1, "unknown directive"},
		{"counter without name", "%counter\n", 1, "needs at least one name"},
		{"bad counter name", "%counter 9X\n", 1, "invalid counter name"},
		{"unterminated block", "A a\nB {\nline\n", 2, "unterminated block"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := (&Loader{}).Parse(strings.NewReader(tt.src), "bad.in", NewStore())
			var syn *SyntaxError
			require.True(t, errors.As(err, &syn), "got %v", err)
			assert.Equal(t, "bad.in", syn.Source)
			assert.Equal(t, tt.line, syn.Line)
			assert.Contains(t, syn.Reason, tt.reason)
			assert.Contains(t, err.Error(), "bad.in:")
		})
	}
}

func TestParse_FrozenStore(t *testing.T) {
	s := NewStore()
	s.Freeze()
	_, err := (&Loader{}).Parse(strings.NewReader("A a\n"), "f.in", s)
	assert.ErrorIs(t, err, ErrFrozen)
}

func TestLoad(t *testing.T) {
	fsys := fstest.MapFS{
		"base.in":  {Data: []byte("A a\nB b\n")},
		"extra.in": {Data: []byte("A more\nC c\n")},
	}
	s := NewStore()
	var slot Slot
	l := &Loader{}

	require.NoError(t, l.Load(fsys, "base.in", s, &slot))
	require.True(t, slot.Matcher().Current(s))
	assert.True(t, slot.Matcher().Contains("B"))

	require.NoError(t, l.Load(fsys, "extra.in", s, nil))
	assert.False(t, slot.Matcher().Current(s), "batch loads defer the refresh")
	require.NoError(t, slot.Refresh(s))
	assert.True(t, slot.Matcher().Contains("C"))
	assert.Equal(t, 2, s.Count("A"))
}

func TestLoad_Missing(t *testing.T) {
	err := (&Loader{}).Load(fstest.MapFS{}, "scirules.in", NewStore(), nil)
	var missing *SourceMissingError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "scirules.in", missing.Source)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestLoadOptional(t *testing.T) {
	var logs bytes.Buffer
	l := &Loader{Logger: slog.New(slog.NewTextHandler(&logs, nil))}
	fsys := fstest.MapFS{"topics/net.in": {Data: []byte("A a\n")}}
	s := NewStore()

	ok, err := l.LoadOptional(fsys, "topics/net.in", s, nil)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.LoadOptional(fsys, "topics/none.in", s, nil)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Contains(t, logs.String(), "skipping missing rule source")
	assert.Contains(t, logs.String(), "topics/none.in")

	_, err = l.LoadOptional(fstest.MapFS{"bad.in": {Data: []byte("+ nope\n")}}, "bad.in", s, nil)
	assert.Error(t, err, "syntax errors are still fatal")
}
