// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package expand

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Mode selects the escaping and formatting discipline for expanded text.
type Mode string

const (
	ModeLaTeX     Mode = "latex"
	ModeLaTeXBook Mode = "latex-book"
	ModeBibTeX    Mode = "bibtex"
	ModePlain     Mode = "plain"
)

// PlainWidth is the column width plain text is wrapped to.
const PlainWidth = 72

// Verbatim values are written between these marks during expansion so the
// finishing pass can leave them untouched. Finish removes the marks.
const (
	verbatimOpen  = '\uE000'
	verbatimClose = '\uE001'
)

// Renderer escapes verbatim values during substitution and formats the
// finished text. Implementations must be deterministic.
type Renderer interface {
	Verbatim(s string) string
	Finish(s string) string
}

// RendererFor returns the renderer for mode.
func RendererFor(mode Mode) (Renderer, error) {
	switch mode {
	case ModeLaTeX:
		return latexRenderer{}, nil
	case ModeLaTeXBook:
		return latexRenderer{book: true}, nil
	case ModeBibTeX:
		return bibtexRenderer{}, nil
	case ModePlain:
		return plainRenderer{}, nil
	default:
		return nil, fmt.Errorf("unknown render mode %q", mode)
	}
}

var (
	spaceBeforePunct   = regexp.MustCompile(`[ \t]+([.,?;:])`)
	articleBeforeVowel = regexp.MustCompile(`\b([Aa]) (\x{E000}\d+\x{E001}|[aeiouAEIOU])`)
	markedValue        = regexp.MustCompile(`\x{E000}([^\x{E001}]*)\x{E001}`)
	valueSlot          = regexp.MustCompile(`\x{E000}(\d+)\x{E001}`)
	sentenceStart      = regexp.MustCompile(`([.?!][ \t]+)(\p{Ll})`)
	headingLine        = regexp.MustCompile(`^(\s*)\\(title|chapter|section|subsection|subsubsection)(\*?)\{(.*)\}(.*)$`)
	bibTitleField      = regexp.MustCompile(`(\btitle = \{\{)([^}]*)(\}\})`)
	whitespaceRun      = regexp.MustCompile(`\s+`)
	paragraphBreak     = regexp.MustCompile(`\n[ \t]*\n`)
)

var latexEscaper = strings.NewReplacer(
	`\`, `\textbackslash{}`,
	`&`, `\&`,
	`%`, `\%`,
	`$`, `\$`,
	`#`, `\#`,
	`_`, `\_`,
	`{`, `\{`,
	`}`, `\}`,
	`~`, `\textasciitilde{}`,
	`^`, `\textasciicircum{}`,
)

// bookHeadings promotes each sectioning command one level.
var bookHeadings = map[string]string{
	"section":       "chapter",
	"subsection":    "section",
	"subsubsection": "subsection",
}

// smallWords stay lower case inside titles.
var smallWords = map[string]bool{
	"a": true, "an": true, "and": true, "as": true, "at": true, "by": true,
	"for": true, "from": true, "in": true, "of": true, "on": true, "or": true,
	"the": true, "to": true, "via": true, "with": true,
}

type latexRenderer struct {
	book bool
}

func (latexRenderer) Verbatim(s string) string { return latexEscaper.Replace(s) }

func (r latexRenderer) Finish(s string) string {
	s, vals := protect(s)
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = r.line(line, vals)
	}
	return restore(strings.Join(lines, "\n"), vals)
}

func (r latexRenderer) line(line string, vals []string) string {
	line = tidy(line, vals)
	if m := headingLine.FindStringSubmatch(line); m != nil {
		cmd := m[2]
		if r.book {
			if promoted, ok := bookHeadings[cmd]; ok {
				cmd = promoted
			}
		}
		return m[1] + `\` + cmd + m[3] + "{" + titleCase(m[4]) + "}" + m[5]
	}
	if strings.HasPrefix(strings.TrimSpace(line), `\`) {
		return line
	}
	return sentenceCase(line)
}

type bibtexRenderer struct{}

func (bibtexRenderer) Verbatim(s string) string { return latexEscaper.Replace(s) }

func (bibtexRenderer) Finish(s string) string {
	s = strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
	s, vals := protect(s)
	s = tidy(s, vals)
	s = bibTitleField.ReplaceAllStringFunc(s, func(field string) string {
		m := bibTitleField.FindStringSubmatch(field)
		return m[1] + titleCase(m[2]) + m[3]
	})
	return restore(s, vals)
}

type plainRenderer struct{}

func (plainRenderer) Verbatim(s string) string { return s }

func (plainRenderer) Finish(s string) string {
	s, vals := protect(s)
	var paras []string
	for _, p := range paragraphBreak.Split(s, -1) {
		p = strings.TrimSpace(whitespaceRun.ReplaceAllString(p, " "))
		if p == "" {
			continue
		}
		paras = append(paras, wrap(restore(sentenceCase(tidy(p, vals)), vals), PlainWidth))
	}
	return strings.Join(paras, "\n\n") + "\n"
}

// protect replaces each marked verbatim value with a numbered slot and
// returns the values in slot order.
func protect(s string) (string, []string) {
	var vals []string
	s = markedValue.ReplaceAllStringFunc(s, func(m string) string {
		vals = append(vals, markedValue.FindStringSubmatch(m)[1])
		return string(verbatimOpen) + strconv.Itoa(len(vals)-1) + string(verbatimClose)
	})
	return s, vals
}

// restore puts protected values back in place of their slots.
func restore(s string, vals []string) string {
	return valueSlot.ReplaceAllStringFunc(s, func(m string) string {
		return vals[slotIndex(m)]
	})
}

func slotIndex(slot string) int {
	n, _ := strconv.Atoi(valueSlot.FindStringSubmatch(slot)[1])
	return n
}

// isSlot reports whether w holds a protected value.
func isSlot(w string) bool {
	return strings.ContainsRune(w, verbatimOpen)
}

// unmark strips verbatim marks from a value so it cannot forge a slot.
func unmark(s string) string {
	return strings.Map(func(r rune) rune {
		if r == verbatimOpen || r == verbatimClose {
			return -1
		}
		return r
	}, s)
}

// tidy removes space before punctuation and fixes "a" before a vowel,
// including before a protected value that starts with one.
func tidy(s string, vals []string) string {
	s = spaceBeforePunct.ReplaceAllString(s, "$1")
	return articleBeforeVowel.ReplaceAllStringFunc(s, func(m string) string {
		next := m[2:]
		if isSlot(next) {
			r, _ := utf8.DecodeRuneInString(vals[slotIndex(next)])
			if !strings.ContainsRune("aeiouAEIOU", r) {
				return m
			}
		}
		return m[:1] + "n " + next
	})
}

// sentenceCase capitalizes the first letter of the text and of every
// sentence after it.
func sentenceCase(s string) string {
	s = upperFirst(s)
	return sentenceStart.ReplaceAllStringFunc(s, func(m string) string {
		r, size := utf8.DecodeLastRuneInString(m)
		return m[:len(m)-size] + string(unicode.ToUpper(r))
	})
}

func upperFirst(s string) string {
	for i, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		if unicode.IsLower(r) {
			return s[:i] + string(unicode.ToUpper(r)) + s[i+utf8.RuneLen(r):]
		}
		return s
	}
	return s
}

// titleCase capitalizes every word except small words that do not start
// the title or follow a colon. Existing capitals and protected values are
// kept.
func titleCase(s string) string {
	caser := cases.Title(language.English, cases.NoLower)
	words := strings.Split(s, " ")
	for i, w := range words {
		if w == "" || strings.HasPrefix(w, `\`) || isSlot(w) {
			continue
		}
		lower := strings.ToLower(w)
		if i > 0 && smallWords[lower] && !strings.HasSuffix(words[i-1], ":") {
			words[i] = lower
			continue
		}
		words[i] = caser.String(w)
	}
	return strings.Join(words, " ")
}

// wrap fills text to width display columns.
func wrap(text string, width int) string {
	var b strings.Builder
	col := 0
	for i, w := range strings.Fields(text) {
		ww := runewidth.StringWidth(w)
		if i > 0 {
			if col+1+ww > width {
				b.WriteByte('\n')
				col = 0
			} else {
				b.WriteByte(' ')
				col++
			}
		}
		b.WriteString(w)
		col += ww
	}
	return b.String()
}
