package catalog

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadBuiltin(t *testing.T) *Catalog {
	t.Helper()
	c, err := Load(LoadOptions{})
	require.NoError(t, err)
	return c
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Builtin(t *testing.T) {
	c := loadBuiltin(t)

	assert.Equal(t, 45, c.RuleCount())
	assert.Equal(t, 48, c.FactCount())

	rules := c.Rules()
	assert.Equal(t, "r1", rules[0].ID)
	assert.Equal(t, "r45", rules[len(rules)-1].ID)
	for _, r := range rules {
		assert.NotNil(t, r.Pattern, "rule %s has no pattern", r.ID)
	}

	r1, ok := c.Rule("r1")
	require.True(t, ok)
	assert.Equal(t, CategorySyntax, r1.Category)
	assert.Equal(t, PriorityHigh, r1.Priority)
	assert.Equal(t, "Add a colon (:) at the end of the if statement", r1.Suggestion)

	r34, ok := c.Rule("r34")
	require.True(t, ok)
	assert.Equal(t, RewriteSnakeCase, r34.Rewrite)

	assert.Equal(t, []Category{
		CategorySyntax, CategoryIndentation, CategoryLogic, CategoryStyle, CategoryPerformance,
	}, c.Categories())
}

func TestLoad_RulesAreCopies(t *testing.T) {
	c := loadBuiltin(t)

	rules := c.Rules()
	rules[0].ID = "mutated"
	rules[0].Body[0] = "mutated"

	again := c.Rules()
	assert.Equal(t, "r1", again[0].ID)
	assert.NotEqual(t, "mutated", again[0].Body[0])
}

func TestLoad_InvalidDefinitions(t *testing.T) {
	tests := []struct {
		name  string
		rules string
	}{
		{"unknown category", `
rules:
  - id: x1
    category: grammar
    head: 'error(x, Line, "x")'
    priority: high
`},
		{"unknown priority", `
rules:
  - id: x1
    category: syntax
    head: 'error(x, Line, "x")'
    priority: urgent
`},
		{"duplicate id", `
rules:
  - id: x1
    category: syntax
    head: 'error(x, Line, "x")'
    priority: high
  - id: x1
    category: syntax
    head: 'error(y, Line, "y")'
    priority: high
`},
		{"malformed pattern", `
rules:
  - id: x1
    category: syntax
    head: 'error(x, Line, "x")'
    priority: high
    pattern: '(unclosed'
    flags: m
`},
		{"flags without pattern", `
rules:
  - id: x1
    category: syntax
    head: 'error(x, Line, "x")'
    priority: high
    flags: m
`},
		{"unknown rewrite", `
rules:
  - id: x1
    category: style
    head: 'warning(x, Line, "x")'
    priority: low
    rewrite: camel_case
`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "rules.yaml", tt.rules)
			c, err := Load(LoadOptions{RulesFile: path})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidDefinition)
			assert.Nil(t, c)
		})
	}
}

func TestLoad_UnknownKeyRejected(t *testing.T) {
	path := writeFile(t, "rules.yaml", `
rules:
  - id: x1
    category: syntax
    head: 'error(x, Line, "x")'
    priority: high
    patern: 'typo'
`)
	_, err := Load(LoadOptions{RulesFile: path})
	assert.ErrorContains(t, err, "patern")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(LoadOptions{RulesFile: filepath.Join(t.TempDir(), "nope.yaml")})
	assert.Error(t, err)
}

func TestLoad_ReportsEveryProblem(t *testing.T) {
	path := writeFile(t, "rules.yaml", `
rules:
  - id: x1
    category: grammar
    head: 'error(x, Line, "x")'
    priority: urgent
`)
	_, err := Load(LoadOptions{RulesFile: path})
	require.Error(t, err)
	assert.ErrorContains(t, err, "unknown category")
	assert.ErrorContains(t, err, "unknown priority")
}

func TestLoad_FactsJSONL(t *testing.T) {
	c := loadBuiltin(t)

	var buf bytes.Buffer
	require.NoError(t, c.WriteFactsJSONL(&buf))
	path := writeFile(t, "facts.jsonl", buf.String())

	reloaded, err := Load(LoadOptions{FactsFile: path})
	require.NoError(t, err)
	assert.Equal(t, c.Facts(), reloaded.Facts())
}

func TestMustLoad_Panics(t *testing.T) {
	path := writeFile(t, "rules.yaml", "rules: [{id: x}]")
	assert.Panics(t, func() { MustLoad(LoadOptions{RulesFile: path}) })
}

func TestSearchRules(t *testing.T) {
	c := loadBuiltin(t)

	tests := []struct {
		query string
		want  []string
	}{
		{"bare", []string{"r39"}},
		{"BARE", []string{"r39"}},
		{"performance", []string{"r43", "r44", "r45"}},
		{"no such thing", nil},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			var got []string
			for _, r := range c.SearchRules(tt.query) {
				got = append(got, r.ID)
			}
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Len(t, c.SearchRules(""), 45)
}

func TestSearchFacts(t *testing.T) {
	c := loadBuiltin(t)

	got := c.SearchFacts("colon")
	assert.Len(t, got, 12)

	got = c.SearchFacts("except exception")
	require.Len(t, got, 1)
	assert.Equal(t, "f39", got[0].ID)

	assert.Len(t, c.SearchFacts(""), 48)
}

func TestQueryFacts(t *testing.T) {
	c := loadBuiltin(t)

	got, total := c.QueryFacts(FactQuery{Category: FactPriority})
	assert.Equal(t, 5, total)
	assert.Len(t, got, 5)

	got, total = c.QueryFacts(FactQuery{Category: FactPriority, Offset: 1, Limit: 2})
	assert.Equal(t, 5, total)
	require.Len(t, got, 2)
	assert.Equal(t, "f45", got[0].ID)
	assert.Equal(t, "f46", got[1].ID)

	got, total = c.QueryFacts(FactQuery{Predicate: "logic_error", Text: "infinite"})
	assert.Equal(t, 1, total)
	require.Len(t, got, 1)
	assert.Equal(t, "f29", got[0].ID)

	got, total = c.QueryFacts(FactQuery{Category: FactPriority, Offset: 10})
	assert.Equal(t, 5, total)
	assert.Nil(t, got)
}

func TestRuleLabel(t *testing.T) {
	tests := []struct {
		head string
		want string
	}{
		{`error(missing_colon_if, Line, "Add ':'")`, "error"},
		{`warning (bare_except, Line, "x")`, "warning"},
		{`standalone`, "standalone"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Rule{Head: tt.head}.Label())
	}
}

func TestRuleMarshalJSON(t *testing.T) {
	c := loadBuiltin(t)
	r, _ := c.Rule("r29")

	data, err := json.Marshal(r)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "r29", out["id"])
	assert.Equal(t, `/while\s+True\s*:/m`, out["pattern"])
	assert.Equal(t, "medium", out["priority"])
}

func TestPriorityRank(t *testing.T) {
	assert.Greater(t, PriorityHigh.Rank(), PriorityMedium.Rank())
	assert.Greater(t, PriorityMedium.Rank(), PriorityLow.Rank())
	assert.False(t, Priority("urgent").Valid())
}
