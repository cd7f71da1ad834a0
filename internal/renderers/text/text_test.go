package text

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dejo1307/pydiag/internal/catalog"
	"github.com/dejo1307/pydiag/internal/diagnostic"
	"github.com/dejo1307/pydiag/internal/trace"
)

func TestRender(t *testing.T) {
	o := &diagnostic.Outcome{
		Findings: []diagnostic.Finding{
			{Kind: diagnostic.KindError, Category: catalog.CategorySyntax, Line: 1, Message: "Add ':' at end of if statement", RuleID: "r1", Priority: catalog.PriorityHigh, Suggestion: "Add a colon"},
			{Kind: diagnostic.KindWarning, Category: catalog.CategoryStyle, Line: 2, Message: "Variable names should be lowercase", RuleID: "r34", Priority: catalog.PriorityLow},
		},
		Trace:      []trace.Step{{Step: 1, Rule: "error", RuleID: "r1", Action: trace.ActionFired, Result: "Applied to line 1"}},
		RulesFired: 2,
	}

	artifacts, err := New(true).Render(context.Background(), o)
	require.NoError(t, err)
	require.Len(t, artifacts, 1)
	assert.Equal(t, "report.txt", artifacts[0].Name)

	content := string(artifacts[0].Content)
	assert.Contains(t, content, "2 findings (1 errors, 1 warnings)")
	assert.Contains(t, content, "[ERROR]")
	assert.Contains(t, content, "[WARNING]")
	assert.Contains(t, content, "Add ':' at end of if statement (syntax, r1)")
	assert.Contains(t, content, "-> Add a colon")
	assert.Contains(t, content, "Applied to line 1")
}

func TestRender_NoTrace(t *testing.T) {
	o := &diagnostic.Outcome{
		Trace: []trace.Step{{Step: 1, Rule: "error", RuleID: "r1", Action: trace.ActionNoMatch, Result: "Pattern not found"}},
	}

	artifacts, err := New(false).Render(context.Background(), o)
	require.NoError(t, err)

	content := string(artifacts[0].Content)
	assert.Contains(t, content, "No issues found.")
	assert.NotContains(t, content, "Pattern not found")
}
