package diagnostic

import (
	"sort"

	"github.com/dejo1307/pydiag/internal/trace"
)

// Outcome is the result of analyzing one source text.
type Outcome struct {
	Findings   []Finding    `json:"findings"`
	Trace      []trace.Step `json:"trace"`
	ElapsedMs  float64      `json:"elapsed_ms"`
	RulesFired int          `json:"rules_fired"`
}

// SortFindings orders findings by priority (high first), then by line.
// The sort is stable, so findings that tie keep their evaluation order.
func SortFindings(findings []Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		ri, rj := findings[i].Priority.Rank(), findings[j].Priority.Rank()
		if ri != rj {
			return ri > rj
		}
		return findings[i].Line < findings[j].Line
	})
}

// CountByKind returns how many findings are errors and how many warnings.
func (o *Outcome) CountByKind() (errs, warnings int) {
	for _, f := range o.Findings {
		if f.Kind == KindWarning {
			warnings++
		} else {
			errs++
		}
	}
	return errs, warnings
}

// Categories returns the distinct categories of the findings in order of
// first appearance.
func (o *Outcome) Categories() []string {
	seen := make(map[string]bool)
	var out []string
	for _, f := range o.Findings {
		c := string(f.Category)
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}
