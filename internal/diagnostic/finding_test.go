package diagnostic

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dejo1307/pydiag/internal/catalog"
	"github.com/dejo1307/pydiag/internal/matcher"
)

func TestBuild_MissingColon(t *testing.T) {
	r := catalog.Rule{
		ID:          "r1",
		Category:    catalog.CategorySyntax,
		Head:        `error(missing_colon_if, Line, "Add ':' at end of if statement")`,
		Description: "Detects missing colon after if statement",
		Priority:    catalog.PriorityHigh,
		Suggestion:  "Add a colon (:) at the end of the if statement",
	}

	got := Build(r, matcher.Match{Line: 1, Text: "if x > 5"})

	assert.Equal(t, Finding{
		Kind:       KindError,
		Category:   catalog.CategorySyntax,
		Line:       1,
		Message:    "Add ':' at end of if statement",
		RuleID:     "r1",
		Priority:   catalog.PriorityHigh,
		Suggestion: "Add a colon (:) at the end of the if statement",
	}, got)
}

func TestBuild_SnakeCaseSuggestion(t *testing.T) {
	r := catalog.Rule{
		ID:         "r34",
		Category:   catalog.CategoryStyle,
		Head:       `warning(uppercase_variable_name, Line, "Variable names should be lowercase with underscores")`,
		Priority:   catalog.PriorityLow,
		Suggestion: "Use snake_case naming",
		Rewrite:    catalog.RewriteSnakeCase,
	}

	got := Build(r, matcher.Match{Line: 1, Text: "MyVariable ="})

	assert.Equal(t, KindWarning, got.Kind)
	assert.Equal(t, "Variable names should be lowercase with underscores", got.Message)
	assert.Equal(t, "Use snake_case naming: my_variable", got.Suggestion)
}

func TestBuild_SuggestionFallsBackToDescription(t *testing.T) {
	r := catalog.Rule{
		ID:          "r30",
		Category:    catalog.CategoryLogic,
		Head:        `error(unreachable_code, Line, "Code after return is unreachable")`,
		Description: "Detects code after return",
		Priority:    catalog.PriorityMedium,
	}

	got := Build(r, matcher.Match{Line: 4})
	assert.Equal(t, "Detects code after return", got.Suggestion)
}

func TestBuild_SnakeCaseWithoutIdentifier(t *testing.T) {
	r := catalog.Rule{
		Category:   catalog.CategoryStyle,
		Head:       `warning(x, Line, "x")`,
		Priority:   catalog.PriorityLow,
		Suggestion: "Use snake_case naming",
		Rewrite:    catalog.RewriteSnakeCase,
	}

	got := Build(r, matcher.Match{Line: 1, Text: " = 3"})
	assert.Equal(t, "Use snake_case naming", got.Suggestion)
}

func TestKindFor(t *testing.T) {
	tests := []struct {
		category catalog.Category
		want     Kind
	}{
		{catalog.CategorySyntax, KindError},
		{catalog.CategoryIndentation, KindError},
		{catalog.CategoryLogic, KindError},
		{catalog.CategoryStyle, KindWarning},
		{catalog.CategoryPerformance, KindWarning},
	}
	for _, tt := range tests {
		t.Run(string(tt.category), func(t *testing.T) {
			assert.Equal(t, tt.want, KindFor(tt.category))
		})
	}
}

func TestMessage(t *testing.T) {
	tests := []struct {
		name string
		head string
		want string
	}{
		{"quoted", `error(x, Line, "Use 'is None'")`, "Use 'is None'"},
		{"first of two", `error(x, "one", "two")`, "one"},
		{"adjacent empty quotes", `error(x, ""abc")`, "abc"},
		{"unterminated", `error(x, "open`, DefaultMessage},
		{"no quotes", `error(x, Line)`, DefaultMessage},
		{"empty head", ``, DefaultMessage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Message(tt.head))
		})
	}
}

func TestSnakeCase(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"MyVariable", "my_variable"},
		{"HTTPServer", "http_server"},
		{"X", "x"},
		{"Total2Count", "total2_count"},
		{"Already_Snake", "already_snake"},
		{"lower", "lower"},
		{"ParseURL", "parse_url"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SnakeCase(tt.in))
		})
	}
}
