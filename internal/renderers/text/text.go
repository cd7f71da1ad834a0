package text

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/dejo1307/pydiag/internal/catalog"
	"github.com/dejo1307/pydiag/internal/diagnostic"
	"github.com/dejo1307/pydiag/internal/renderers"
)

var (
	titleStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	lineStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	warningStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	suggestionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	traceStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	okStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
)

// Renderer writes a colored terminal report.
type Renderer struct {
	showTrace bool
}

// New creates a Renderer. With showTrace the evaluation trace follows the
// findings.
func New(showTrace bool) *Renderer {
	return &Renderer{showTrace: showTrace}
}

func (r *Renderer) Name() string {
	return "text"
}

func (r *Renderer) Render(ctx context.Context, outcome *diagnostic.Outcome) ([]renderers.Artifact, error) {
	var b strings.Builder

	errs, warnings := outcome.CountByKind()
	b.WriteString(titleStyle.Render(fmt.Sprintf("%d findings (%d errors, %d warnings)", len(outcome.Findings), errs, warnings)))
	fmt.Fprintf(&b, "  %d rules fired in %.2f ms\n\n", outcome.RulesFired, outcome.ElapsedMs)

	if len(outcome.Findings) == 0 {
		b.WriteString(okStyle.Render("No issues found."))
		b.WriteString("\n")
	}
	for _, f := range outcome.Findings {
		b.WriteString(renderFinding(f))
	}

	if r.showTrace && len(outcome.Trace) > 0 {
		b.WriteString("\n")
		b.WriteString(titleStyle.Render("Trace"))
		b.WriteString("\n")
		for _, s := range outcome.Trace {
			b.WriteString(traceStyle.Render(fmt.Sprintf("%3d %-8s %-4s %-15s %s", s.Step, s.Rule, s.RuleID, s.Action, s.Result)))
			b.WriteString("\n")
		}
	}

	return []renderers.Artifact{
		{
			Name:    "report.txt",
			Content: []byte(b.String()),
			Type:    "text/plain",
		},
	}, nil
}

func renderFinding(f diagnostic.Finding) string {
	var b strings.Builder
	b.WriteString(badge(f))
	b.WriteString(" ")
	b.WriteString(lineStyle.Render(fmt.Sprintf("line %d", f.Line)))
	fmt.Fprintf(&b, " %s (%s, %s)\n", f.Message, f.Category, f.RuleID)
	if f.Suggestion != "" {
		b.WriteString("    ")
		b.WriteString(suggestionStyle.Render("-> " + f.Suggestion))
		b.WriteString("\n")
	}
	return b.String()
}

func badge(f diagnostic.Finding) string {
	label := "[" + strings.ToUpper(string(f.Kind)) + "]"
	switch {
	case f.Kind == diagnostic.KindWarning:
		return warningStyle.Render(label)
	case f.Priority == catalog.PriorityHigh:
		return errorStyle.Render(label)
	default:
		return errorStyle.UnsetBold().Render(label)
	}
}
