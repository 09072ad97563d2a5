package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// tone is how a summary line should read at a glance.
type tone int

const (
	toneInfo tone = iota
	toneGood
	toneNotice
	toneBad
)

const ansiReset = "\x1b[0m"

var toneStyles = map[tone]struct{ tag, color string }{
	toneInfo:   {"[INFO]", "\x1b[34m"},
	toneGood:   {"[OK]", "\x1b[32m"},
	toneNotice: {"[WARN]", "\x1b[33m"},
	toneBad:    {"[ERROR]", "\x1b[31m"},
}

// countTone reports zero as good and any other count with whenSet.
func countTone(n int, whenSet tone) tone {
	if n == 0 {
		return toneGood
	}
	return whenSet
}

type summaryLine struct {
	label  string
	tone   tone
	detail string
}

// summary is a titled block of label/detail lines with the labels aligned.
type summary struct {
	title string
	lines []summaryLine
}

func newSummary(title string) *summary {
	return &summary{title: title}
}

func (s *summary) add(label string, t tone, detail string) *summary {
	s.lines = append(s.lines, summaryLine{label: label, tone: t, detail: detail})
	return s
}

// count adds a line for a tally of plan actions, failures, or leftovers.
func (s *summary) count(label string, n int, whenSet tone, detail string) *summary {
	if detail == "" {
		detail = fmt.Sprint(n)
	}
	return s.add(label, countTone(n, whenSet), detail)
}

func (s *summary) write(w io.Writer, colorize bool) {
	if s.title != "" {
		writeHeading(w, s.title, colorize)
	}
	width := 0
	for _, line := range s.lines {
		width = max(width, len(line.label)+1)
	}
	for _, line := range s.lines {
		fmt.Fprintln(w, line.render(width, colorize))
	}
}

func (l summaryLine) render(width int, colorize bool) string {
	style := toneStyles[l.tone]
	text := strings.TrimRight(fmt.Sprintf("  %-*s %s %s", width, l.label+":", style.tag, l.detail), " ")
	if colorize {
		return style.color + text + ansiReset
	}
	return text
}

func writeHeading(w io.Writer, title string, colorize bool) {
	title = strings.TrimSpace(title)
	rule := strings.Repeat("=", len(title))
	if colorize {
		title = toneStyles[toneInfo].color + title + ansiReset
	}
	fmt.Fprintln(w, title)
	fmt.Fprintln(w, rule)
}

// shouldColorize is true for terminals unless NO_COLOR is set.
func shouldColorize(writer io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
