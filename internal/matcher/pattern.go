package matcher

import (
	"errors"
	"fmt"
	"time"

	"github.com/dlclark/regexp2"
)

// ErrUnknownFlag is returned by Compile for a flag other than g, i, m or s.
var ErrUnknownFlag = errors.New("unknown pattern flag")

// Span is one occurrence found by a full-text scan. Offset counts runes from
// the start of the scanned text.
type Span struct {
	Offset int
	Text   string
}

// Pattern is a compiled textual pattern. Implementations must be safe for
// concurrent use, since a catalog's patterns are shared by every analysis.
type Pattern interface {
	// FindAll returns every non-overlapping occurrence in text, in order.
	FindAll(text string) ([]Span, error)
	// MatchString reports whether s contains an occurrence.
	MatchString(s string) (bool, error)
	// String returns the pattern source.
	String() string
}

// Regexp is a Pattern backed by regexp2, which supports the lookahead and
// backreference constructs used by the rule catalog.
type Regexp struct {
	re    *regexp2.Regexp
	flags string
}

// Compile compiles expr with the given flags:
//
//	m  ^ and $ match at line boundaries
//	s  . matches newline
//	i  case-insensitive
//	g  accepted and ignored; FindAll always scans globally
//
// A positive timeout bounds every single match attempt; a pattern that
// exceeds it returns an error from FindAll or MatchString.
func Compile(expr, flags string, timeout time.Duration) (*Regexp, error) {
	opts := regexp2.None
	for _, f := range flags {
		switch f {
		case 'm':
			opts |= regexp2.Multiline
		case 's':
			opts |= regexp2.Singleline
		case 'i':
			opts |= regexp2.IgnoreCase
		case 'g':
		default:
			return nil, fmt.Errorf("%w %q in /%s/%s", ErrUnknownFlag, f, expr, flags)
		}
	}

	re, err := regexp2.Compile(expr, opts)
	if err != nil {
		return nil, fmt.Errorf("compiling /%s/%s: %w", expr, flags, err)
	}
	if timeout > 0 {
		re.MatchTimeout = timeout
	}
	return &Regexp{re: re, flags: flags}, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(expr, flags string) *Regexp {
	r, err := Compile(expr, flags, 0)
	if err != nil {
		panic(err)
	}
	return r
}

// FindAll implements Pattern.
func (r *Regexp) FindAll(text string) ([]Span, error) {
	var spans []Span
	m, err := r.re.FindStringMatch(text)
	for err == nil && m != nil {
		spans = append(spans, Span{Offset: m.Index, Text: m.String()})
		m, err = r.re.FindNextMatch(m)
	}
	if err != nil {
		return nil, fmt.Errorf("scanning with %s: %w", r, err)
	}
	return spans, nil
}

// MatchString implements Pattern.
func (r *Regexp) MatchString(s string) (bool, error) {
	ok, err := r.re.MatchString(s)
	if err != nil {
		return false, fmt.Errorf("matching with %s: %w", r, err)
	}
	return ok, nil
}

// String returns the pattern in /source/flags form.
func (r *Regexp) String() string {
	return "/" + r.Source() + "/" + r.flags
}

// Source returns the pattern source without delimiters or flags.
func (r *Regexp) Source() string {
	return r.re.String()
}

// Flags returns the flags the pattern was compiled with.
func (r *Regexp) Flags() string {
	return r.flags
}
