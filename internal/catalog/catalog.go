// Package catalog holds the immutable rule and fact knowledge base that the
// analysis engine evaluates.
package catalog

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidDefinition is wrapped by every validation failure.
var ErrInvalidDefinition = errors.New("invalid catalog definition")

// Catalog is an ordered, read-only set of rules and facts. It is safe for
// concurrent use because nothing mutates it after New returns.
type Catalog struct {
	rules []Rule
	facts []Fact
	index *Index
}

// New validates rules and facts and returns a catalog that owns copies of
// them. Rule order is preserved; it determines evaluation order. Every
// problem found is reported, joined into one error.
func New(rules []Rule, facts []Fact) (*Catalog, error) {
	if err := validate(rules, facts); err != nil {
		return nil, err
	}

	c := &Catalog{
		rules: make([]Rule, len(rules)),
		facts: make([]Fact, len(facts)),
	}
	for i, r := range rules {
		r.Body = append([]string(nil), r.Body...)
		c.rules[i] = r
	}
	for i, f := range facts {
		f.Args = append([]string(nil), f.Args...)
		c.facts[i] = f
	}
	c.index = NewIndex(c.facts)
	return c, nil
}

func validate(rules []Rule, facts []Fact) error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidDefinition}, args...)...))
	}

	seen := make(map[string]bool, len(rules))
	for i, r := range rules {
		switch {
		case r.ID == "":
			invalid("rule #%d: missing id", i+1)
		case seen[r.ID]:
			invalid("rule %s: duplicate id", r.ID)
		}
		seen[r.ID] = true

		if !r.Category.Valid() {
			invalid("rule %s: unknown category %q", r.ID, r.Category)
		}
		if !r.Priority.Valid() {
			invalid("rule %s: unknown priority %q", r.ID, r.Priority)
		}
		if strings.TrimSpace(r.Head) == "" {
			invalid("rule %s: missing head", r.ID)
		}
		if r.Rewrite != RewriteNone && r.Rewrite != RewriteSnakeCase {
			invalid("rule %s: unknown rewrite %q", r.ID, r.Rewrite)
		}
	}

	seen = make(map[string]bool, len(facts))
	for i, f := range facts {
		switch {
		case f.ID == "":
			invalid("fact #%d: missing id", i+1)
		case seen[f.ID]:
			invalid("fact %s: duplicate id", f.ID)
		}
		seen[f.ID] = true

		if !f.Category.Valid() {
			invalid("fact %s: unknown category %q", f.ID, f.Category)
		}
		if f.Predicate == "" {
			invalid("fact %s: missing predicate", f.ID)
		}
	}

	return errors.Join(errs...)
}

// Rules returns the rules in evaluation order. The result is a deep copy.
func (c *Catalog) Rules() []Rule {
	out := make([]Rule, len(c.rules))
	for i, r := range c.rules {
		r.Body = append([]string(nil), r.Body...)
		out[i] = r
	}
	return out
}

// Facts returns all facts in definition order. The result is a deep copy.
func (c *Catalog) Facts() []Fact {
	out := make([]Fact, len(c.facts))
	for i, f := range c.facts {
		f.Args = append([]string(nil), f.Args...)
		out[i] = f
	}
	return out
}

// RuleCount returns the number of rules.
func (c *Catalog) RuleCount() int {
	return len(c.rules)
}

// FactCount returns the number of facts.
func (c *Catalog) FactCount() int {
	return len(c.facts)
}

// Rule returns the rule with the given id.
func (c *Catalog) Rule(id string) (Rule, bool) {
	for _, r := range c.rules {
		if r.ID == id {
			return r, true
		}
	}
	return Rule{}, false
}

// SearchRules returns the rules whose head or description contains query
// (case-insensitive) or whose category contains it. An empty query returns
// every rule.
func (c *Catalog) SearchRules(query string) []Rule {
	q := strings.ToLower(strings.TrimSpace(query))
	var result []Rule
	for _, r := range c.rules {
		if q == "" ||
			strings.Contains(strings.ToLower(r.Head), q) ||
			strings.Contains(strings.ToLower(r.Description), q) ||
			strings.Contains(string(r.Category), q) {
			result = append(result, r)
		}
	}
	return result
}

// SearchFacts returns the facts whose predicate, description or any argument
// contains query (case-insensitive). An empty query returns every fact.
func (c *Catalog) SearchFacts(query string) []Fact {
	facts, _ := c.index.Query(FactQuery{Text: query, Limit: len(c.facts)})
	return facts
}

// QueryFacts runs an indexed fact query. It returns the page of matches and
// the total number of matches before paging.
func (c *Catalog) QueryFacts(q FactQuery) ([]Fact, int) {
	return c.index.Query(q)
}

// Categories returns the distinct rule categories in first-seen order.
func (c *Catalog) Categories() []Category {
	seen := make(map[Category]bool)
	var out []Category
	for _, r := range c.rules {
		if !seen[r.Category] {
			seen[r.Category] = true
			out = append(out, r.Category)
		}
	}
	return out
}
