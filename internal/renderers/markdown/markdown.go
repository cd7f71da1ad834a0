package markdown

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dejo1307/pydiag/internal/diagnostic"
	"github.com/dejo1307/pydiag/internal/renderers"
)

// Renderer produces a compact markdown report sized for LLM consumption.
type Renderer struct {
	maxTokens int
}

// New creates a Renderer with the given token budget.
func New(maxTokens int) *Renderer {
	if maxTokens <= 0 {
		maxTokens = 4000
	}
	return &Renderer{maxTokens: maxTokens}
}

func (r *Renderer) Name() string {
	return "markdown"
}

// section holds a rendered section with its display name.
type section struct {
	name    string
	content string
}

// Render produces report.md. Sections are ordered by priority; the trace
// comes last so it is the first thing cut when the token budget is tight.
func (r *Renderer) Render(ctx context.Context, outcome *diagnostic.Outcome) ([]renderers.Artifact, error) {
	sections := []section{
		{"Summary", renderSummary(outcome)},
		{"Findings", renderFindings(outcome)},
		{"Trace", renderTrace(outcome)},
	}

	header := "# Diagnostic Report\n\n"
	maxChars := r.maxTokens * 4 // rough estimate: 1 token ~= 4 chars
	remaining := maxChars - len(header)

	var sb strings.Builder
	sb.WriteString(header)

	for i, sec := range sections {
		if sec.content == "" {
			continue
		}
		if len(sec.content) <= remaining {
			sb.WriteString(sec.content)
			remaining -= len(sec.content)
			continue
		}
		if remaining > 200 {
			sb.WriteString(cut(sec.content, remaining-100))
			fmt.Fprintf(&sb, "\n\n---\n*[Truncated in: %s]*\n", sec.name)
			break
		}
		var omitted []string
		for _, s := range sections[i:] {
			if s.content != "" {
				omitted = append(omitted, s.name)
			}
		}
		fmt.Fprintf(&sb, "\n\n---\n*[Omitted: %s]*\n", strings.Join(omitted, ", "))
		break
	}

	return []renderers.Artifact{
		{
			Name:    "report.md",
			Content: []byte(sb.String()),
			Type:    "text/markdown",
		},
	}, nil
}

func renderSummary(o *diagnostic.Outcome) string {
	errs, warnings := o.CountByKind()
	return fmt.Sprintf("## Summary\n\n%d findings (%d errors, %d warnings). %d rules fired in %.2f ms.\n\n",
		len(o.Findings), errs, warnings, o.RulesFired, o.ElapsedMs)
}

func renderFindings(o *diagnostic.Outcome) string {
	var sb strings.Builder
	sb.WriteString("## Findings\n\n")

	if len(o.Findings) == 0 {
		sb.WriteString("_No issues found._\n\n")
		return sb.String()
	}

	sb.WriteString("| Line | Kind | Priority | Category | Message | Suggestion | Rule |\n")
	sb.WriteString("|------|------|----------|----------|---------|------------|------|\n")
	for _, f := range o.Findings {
		fmt.Fprintf(&sb, "| %d | %s | %s | %s | %s | %s | `%s` |\n",
			f.Line, f.Kind, f.Priority, f.Category, cell(f.Message), cell(f.Suggestion), f.RuleID)
	}
	sb.WriteString("\n")
	return sb.String()
}

func renderTrace(o *diagnostic.Outcome) string {
	if len(o.Trace) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("## Trace\n\n")
	for _, s := range o.Trace {
		fmt.Fprintf(&sb, "%d. `%s` (%s) %s: %s\n", s.Step, s.Rule, s.RuleID, s.Action, s.Result)
	}
	sb.WriteString("\n")
	return sb.String()
}

func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

// cut shortens s to at most n bytes without splitting a rune.
func cut(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if n >= len(s) {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
