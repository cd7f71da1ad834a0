package catalog

import (
	"encoding/json"
	"strings"

	"github.com/dejo1307/pydiag/internal/matcher"
)

// Category classifies what kind of problem a rule detects.
type Category string

// Rule categories.
const (
	CategorySyntax      Category = "syntax"
	CategoryIndentation Category = "indentation"
	CategoryLogic       Category = "logic"
	CategoryStyle       Category = "style"
	CategoryPerformance Category = "performance"
)

// Valid reports whether c is a known rule category.
func (c Category) Valid() bool {
	switch c {
	case CategorySyntax, CategoryIndentation, CategoryLogic, CategoryStyle, CategoryPerformance:
		return true
	}
	return false
}

// Priority ranks findings. Higher priorities sort first.
type Priority string

// Rule priorities.
const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Rank returns 3 for high, 2 for medium, 1 for low and 0 otherwise.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	return p.Rank() > 0
}

// Rewrite names a transformation applied to the matched text when building
// a suggestion.
type Rewrite string

// Supported rewrites.
const (
	RewriteNone      Rewrite = ""
	RewriteSnakeCase Rewrite = "snake_case" // append the snake_case form of the matched identifier
)

// Rule is one diagnostic rule. Rules are immutable once loaded.
type Rule struct {
	ID          string          `json:"id"`
	Category    Category        `json:"category"`
	Head        string          `json:"head"` // e.g. error(missing_colon_if, Line, "Add ':' ...")
	Body        []string        `json:"body,omitempty"`
	Description string          `json:"description"`
	Priority    Priority        `json:"priority"`
	Pattern     matcher.Pattern `json:"-"` // nil when the rule has nothing to match
	Suggestion  string          `json:"suggestion,omitempty"`
	Rewrite     Rewrite         `json:"rewrite,omitempty"`
}

// Label returns the head with its argument list removed, e.g. "error".
func (r Rule) Label() string {
	if i := strings.IndexByte(r.Head, '('); i >= 0 {
		return strings.TrimSpace(r.Head[:i])
	}
	return strings.TrimSpace(r.Head)
}

// MarshalJSON renders the pattern as its /source/flags string.
func (r Rule) MarshalJSON() ([]byte, error) {
	type plain Rule
	out := struct {
		plain
		Pattern string `json:"pattern,omitempty"`
	}{plain: plain(r)}
	if r.Pattern != nil {
		out.Pattern = r.Pattern.String()
	}
	return json.Marshal(out)
}

// FactCategory classifies reference facts.
type FactCategory string

// Fact categories.
const (
	FactSyntaxError      FactCategory = "syntax_error"
	FactIndentationError FactCategory = "indentation_error"
	FactLogicError       FactCategory = "logic_error"
	FactStyleWarning     FactCategory = "style_warning"
	FactPerformanceIssue FactCategory = "performance_issue"
	FactPriority         FactCategory = "priority"
)

// Valid reports whether c is a known fact category.
func (c FactCategory) Valid() bool {
	switch c {
	case FactSyntaxError, FactIndentationError, FactLogicError,
		FactStyleWarning, FactPerformanceIssue, FactPriority:
		return true
	}
	return false
}

// Fact is a descriptive knowledge-base record. Facts are never consulted by
// the analysis; they exist for browsing.
type Fact struct {
	ID          string       `json:"id"`
	Category    FactCategory `json:"category"`
	Predicate   string       `json:"predicate"`
	Args        []string     `json:"args"`
	Description string       `json:"description"`
}
