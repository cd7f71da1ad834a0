// Package diagnostic turns a rule match into a user-facing finding.
package diagnostic

import (
	"strings"
	"unicode"

	"github.com/dejo1307/pydiag/internal/catalog"
	"github.com/dejo1307/pydiag/internal/matcher"
)

// Kind is the severity class of a finding.
type Kind string

const (
	KindError   Kind = "error"
	KindWarning Kind = "warning"
)

// DefaultMessage is used when a rule head carries no quoted message.
const DefaultMessage = "Code issue detected"

// Finding is one diagnostic produced by one rule at one location.
type Finding struct {
	Kind       Kind             `json:"kind"`
	Category   catalog.Category `json:"category"`
	Line       int              `json:"line"`
	Message    string           `json:"message"`
	RuleID     string           `json:"rule_id"`
	Priority   catalog.Priority `json:"priority"`
	Suggestion string           `json:"suggestion"`
}

var identifier = matcher.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`, "")

// Build creates the finding for rule r at match m.
func Build(r catalog.Rule, m matcher.Match) Finding {
	return Finding{
		Kind:       KindFor(r.Category),
		Category:   r.Category,
		Line:       m.Line,
		Message:    Message(r.Head),
		RuleID:     r.ID,
		Priority:   r.Priority,
		Suggestion: suggestion(r, m),
	}
}

// KindFor maps a rule category to a finding kind. Style and performance
// issues are warnings; everything else is an error.
func KindFor(c catalog.Category) Kind {
	switch c {
	case catalog.CategoryStyle, catalog.CategoryPerformance:
		return KindWarning
	}
	return KindError
}

// Message returns the first non-empty double-quoted substring of head, or
// DefaultMessage.
func Message(head string) string {
	for i := 0; i < len(head); i++ {
		if head[i] != '"' || i+1 >= len(head) || head[i+1] == '"' {
			continue
		}
		if end := strings.IndexByte(head[i+1:], '"'); end > 0 {
			return head[i+1 : i+1+end]
		}
		break
	}
	return DefaultMessage
}

func suggestion(r catalog.Rule, m matcher.Match) string {
	s := r.Suggestion
	if s == "" {
		s = r.Description
	}
	if r.Rewrite == catalog.RewriteSnakeCase {
		if name := firstIdentifier(m.Text); name != "" {
			s += ": " + SnakeCase(name)
		}
	}
	return s
}

func firstIdentifier(text string) string {
	spans, err := identifier.FindAll(text)
	if err != nil || len(spans) == 0 {
		return ""
	}
	return spans[0].Text
}

// SnakeCase converts a mixed-case identifier to snake_case. Acronyms stay
// together: HTTPServer becomes http_server.
func SnakeCase(name string) string {
	runes := []rune(name)
	var b strings.Builder
	b.Grow(len(name) + 4)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				b.WriteByte('_')
			}
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
