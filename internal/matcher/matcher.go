// Package matcher locates the lines of a source text where a rule's textual
// pattern applies.
package matcher

import (
	"sort"
	"strings"
)

// Match is one place where a pattern applies.
type Match struct {
	Line int    `json:"line"` // 1-based
	Text string `json:"text"` // matched text, or the trimmed line for line-scan hits
}

// FindMatches returns every location in text where p applies.
//
// Two passes are made. The full-text pass keeps every non-overlapping
// occurrence, so a line may appear more than once. The line pass tests each
// line on its own and adds lines the full-text pass did not cover; it catches
// patterns whose anchors only bind per line. The result is not sorted by line.
//
// A nil pattern never matches. Errors from p are returned unchanged so the
// caller can decide how to degrade.
func FindMatches(text string, p Pattern) ([]Match, error) {
	if p == nil {
		return nil, nil
	}

	spans, err := p.FindAll(text)
	if err != nil {
		return nil, err
	}

	idx := newLineIndex(text)
	covered := make(map[int]struct{}, len(spans))
	matches := make([]Match, 0, len(spans))
	for _, s := range spans {
		line := idx.lineOf(s.Offset)
		covered[line] = struct{}{}
		matches = append(matches, Match{Line: line, Text: s.Text})
	}

	for i, line := range strings.Split(text, "\n") {
		ok, err := p.MatchString(line)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		n := i + 1
		if _, seen := covered[n]; seen {
			continue
		}
		covered[n] = struct{}{}
		matches = append(matches, Match{Line: n, Text: strings.TrimSpace(line)})
	}

	return matches, nil
}

// lineIndex holds the rune offsets of every newline in a text.
type lineIndex []int

func newLineIndex(text string) lineIndex {
	var idx lineIndex
	i := 0
	for _, r := range text {
		if r == '\n' {
			idx = append(idx, i)
		}
		i++
	}
	return idx
}

// lineOf maps a rune offset to a 1-based line number by counting the
// newlines that precede it.
func (l lineIndex) lineOf(offset int) int {
	return sort.SearchInts(l, offset) + 1
}
