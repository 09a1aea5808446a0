// Package highlight marks find-in-results matches inside already rendered,
// ANSI-styled text.
package highlight

import (
	"regexp"
	"strings"
)

var ansiCSI = regexp.MustCompile(`\x1b\[[0-?]*[ -/]*[@-~]`)

type Result struct {
	Text  string
	Count int
	// Lines holds the indexes of lines containing at least one match.
	Lines []int
}

// Mark wraps every case-insensitive occurrence of term. Escape sequences are
// copied through untouched and a match never spans one.
func Mark(rendered, term string, wrap func(string) string) Result {
	term = strings.TrimSpace(term)
	if term == "" {
		return Result{Text: rendered}
	}
	if wrap == nil {
		wrap = func(s string) string { return s }
	}
	re := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(term))

	lines := strings.Split(rendered, "\n")
	res := Result{}
	for i, line := range lines {
		marked, n := markLine(line, re, wrap)
		lines[i] = marked
		if n > 0 {
			res.Count += n
			res.Lines = append(res.Lines, i)
		}
	}
	res.Text = strings.Join(lines, "\n")
	return res
}

func markLine(line string, re *regexp.Regexp, wrap func(string) string) (string, int) {
	var b strings.Builder
	total := 0
	plain := func(seg string) {
		n := 0
		b.WriteString(re.ReplaceAllStringFunc(seg, func(m string) string {
			n++
			return wrap(m)
		}))
		total += n
	}

	pos := 0
	for _, loc := range ansiCSI.FindAllStringIndex(line, -1) {
		plain(line[pos:loc[0]])
		b.WriteString(line[loc[0]:loc[1]])
		pos = loc[1]
	}
	plain(line[pos:])
	return b.String(), total
}

// Next returns the first match line after from, wrapping to the top.
func (r Result) Next(from int) (int, bool) {
	if len(r.Lines) == 0 {
		return 0, false
	}
	for _, l := range r.Lines {
		if l > from {
			return l, true
		}
	}
	return r.Lines[0], true
}

// Prev returns the last match line before from, wrapping to the bottom.
func (r Result) Prev(from int) (int, bool) {
	if len(r.Lines) == 0 {
		return 0, false
	}
	for i := len(r.Lines) - 1; i >= 0; i-- {
		if r.Lines[i] < from {
			return r.Lines[i], true
		}
	}
	return r.Lines[len(r.Lines)-1], true
}
