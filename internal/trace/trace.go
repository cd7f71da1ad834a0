// Package trace records the step-by-step evaluation log of one analysis.
package trace

import (
	"fmt"
	"time"

	"github.com/dejo1307/pydiag/internal/catalog"
)

// Action is what happened to a rule at a step.
type Action string

const (
	ActionEvaluating     Action = "evaluating"
	ActionPatternMatched Action = "pattern_matched"
	ActionFired          Action = "fired"
	ActionNoMatch        Action = "no_match"
)

// Step is one trace entry.
type Step struct {
	Step      int       `json:"step"`
	Rule      string    `json:"rule"` // rule head without its argument list
	RuleID    string    `json:"rule_id"`
	Action    Action    `json:"action"`
	Result    string    `json:"result"`
	Timestamp time.Time `json:"timestamp"`
}

// Recorder accumulates steps for a single analysis. It is not safe for
// concurrent use; concurrent evaluators each use their own and Merge them.
type Recorder struct {
	steps []Step
	now   func() time.Time
}

// NewRecorder returns an empty recorder stamped with the wall clock.
func NewRecorder() *Recorder {
	return &Recorder{now: time.Now}
}

// WithClock replaces the timestamp source.
func (r *Recorder) WithClock(now func() time.Time) *Recorder {
	r.now = now
	return r
}

// Record appends one step for rule.
func (r *Recorder) Record(step int, rule catalog.Rule, action Action, result string) {
	r.steps = append(r.steps, Step{
		Step:      step,
		Rule:      rule.Label(),
		RuleID:    rule.ID,
		Action:    action,
		Result:    result,
		Timestamp: r.now(),
	})
}

// Evaluating records the start of a rule's evaluation.
func (r *Recorder) Evaluating(step int, rule catalog.Rule) {
	r.Record(step, rule, ActionEvaluating, "checking pattern match")
}

// Matched records that rule's pattern matched n times.
func (r *Recorder) Matched(step int, rule catalog.Rule, n int) {
	r.Record(step, rule, ActionPatternMatched, fmt.Sprintf("Found %d matches", n))
}

// Fired records one finding produced at line.
func (r *Recorder) Fired(step int, rule catalog.Rule, line int) {
	r.Record(step, rule, ActionFired, fmt.Sprintf("Applied to line %d", line))
}

// NoMatch records that rule produced nothing.
func (r *Recorder) NoMatch(step int, rule catalog.Rule) {
	r.Record(step, rule, ActionNoMatch, "Pattern not found")
}

// Merge appends other's steps in order.
func (r *Recorder) Merge(other *Recorder) {
	r.steps = append(r.steps, other.steps...)
}

// Len returns the number of recorded steps.
func (r *Recorder) Len() int {
	return len(r.steps)
}

// Steps returns a copy of the recorded steps in insertion order.
func (r *Recorder) Steps() []Step {
	out := make([]Step, len(r.steps))
	copy(out, r.steps)
	return out
}
