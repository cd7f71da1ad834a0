package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dejo1307/pydiag/internal/catalog"
	"github.com/dejo1307/pydiag/internal/config"
	"github.com/dejo1307/pydiag/internal/diagnostic"
	"github.com/dejo1307/pydiag/internal/matcher"
	"github.com/dejo1307/pydiag/internal/renderers"
	"github.com/dejo1307/pydiag/internal/trace"
)

// Outcome is the result of one Analyze call.
type Outcome = diagnostic.Outcome

// Engine evaluates a rule catalog against source text. It holds no
// per-call state, so Analyze may be called concurrently.
type Engine struct {
	cfg       *config.Config
	catalog   *catalog.Catalog
	renderers *renderers.Registry
	logger    *zap.Logger
	now       func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l.Named("engine") }
}

// WithClock replaces the time source used for trace timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an Engine over cat. Renderers must be registered after
// creation.
func New(cfg *config.Config, cat *catalog.Catalog, opts ...Option) (*Engine, error) {
	if cat == nil {
		return nil, errors.New("engine: nil catalog")
	}
	if cfg == nil {
		cfg = config.Default()
	}
	e := &Engine{
		cfg:       cfg,
		catalog:   cat,
		renderers: renderers.NewRegistry(),
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// RegisterRenderer adds a renderer to the engine.
func (e *Engine) RegisterRenderer(rnd renderers.Renderer) {
	e.renderers.Register(rnd)
}

// Catalog returns the rule catalog.
func (e *Engine) Catalog() *catalog.Catalog {
	return e.catalog
}

// Config returns the engine config.
func (e *Engine) Config() *config.Config {
	return e.cfg
}

// Analyze evaluates every rule against text and returns the ranked findings
// and the evaluation trace. It always completes; a rule whose pattern fails
// is recorded as no_match and evaluation moves on.
func (e *Engine) Analyze(text string) *Outcome {
	start := time.Now()
	text = e.normalize(text)
	rules := e.catalog.Rules()

	var segments []segment
	if workers := e.cfg.Analysis.Workers; workers > 1 && len(rules) > 1 {
		segments = e.evaluateParallel(rules, text, workers)
	} else {
		segments = make([]segment, len(rules))
		for i, r := range rules {
			segments[i] = e.evaluate(i+1, r, text)
		}
	}

	rec := trace.NewRecorder()
	findings := []diagnostic.Finding{}
	fired := 0
	for _, s := range segments {
		rec.Merge(s.trace)
		findings = append(findings, s.findings...)
		if s.fired {
			fired++
		}
	}
	diagnostic.SortFindings(findings)

	out := &Outcome{
		Findings:   findings,
		Trace:      rec.Steps(),
		ElapsedMs:  float64(time.Since(start).Microseconds()) / 1000,
		RulesFired: fired,
	}
	e.logger.Debug("analysis complete",
		zap.Int("rules", len(rules)),
		zap.Int("rules_fired", fired),
		zap.Int("findings", len(findings)),
		zap.Float64("elapsed_ms", out.ElapsedMs))
	return out
}

// normalize maps blank input and the editor placeholder to the empty string.
func (e *Engine) normalize(text string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ""
	}
	if p := strings.TrimSpace(e.cfg.Analysis.Placeholder); p != "" && trimmed == p {
		return ""
	}
	return text
}

// segment is the contribution of one rule to an outcome.
type segment struct {
	findings []diagnostic.Finding
	trace    *trace.Recorder
	fired    bool
}

func (e *Engine) evaluate(step int, r catalog.Rule, text string) segment {
	rec := trace.NewRecorder().WithClock(e.now)
	rec.Evaluating(step, r)
	seg := segment{trace: rec}

	if r.Pattern == nil {
		return seg
	}

	matches, err := matcher.FindMatches(text, r.Pattern)
	if err != nil {
		e.logger.Debug("pattern failed, treating as no match",
			zap.String("rule", r.ID),
			zap.String("pattern", r.Pattern.String()),
			zap.Error(err))
		rec.NoMatch(step, r)
		return seg
	}
	if len(matches) == 0 {
		rec.NoMatch(step, r)
		return seg
	}

	seg.fired = true
	rec.Matched(step, r, len(matches))
	seg.findings = make([]diagnostic.Finding, 0, len(matches))
	for _, m := range matches {
		seg.findings = append(seg.findings, diagnostic.Build(r, m))
		rec.Fired(step, r, m.Line)
	}
	return seg
}

// evaluateParallel evaluates rules on up to workers goroutines. Each rule
// writes only its own slot, so the merged result matches sequential order.
func (e *Engine) evaluateParallel(rules []catalog.Rule, text string, workers int) []segment {
	segments := make([]segment, len(rules))
	var g errgroup.Group
	g.SetLimit(workers)
	for i, r := range rules {
		g.Go(func() error {
			segments[i] = e.evaluate(i+1, r, text)
			return nil
		})
	}
	_ = g.Wait() // evaluate never fails
	return segments
}

// Render runs the named renderer, or every enabled renderer when name is
// empty.
func (e *Engine) Render(ctx context.Context, outcome *Outcome, name string) ([]renderers.Artifact, error) {
	if name != "" {
		rnd := e.renderers.Get(name)
		if rnd == nil {
			return nil, fmt.Errorf("unknown renderer %q (available: %s)", name, strings.Join(e.renderers.Names(), ", "))
		}
		return rnd.Render(ctx, outcome)
	}

	var artifacts []renderers.Artifact
	for _, rnd := range e.renderers.All() {
		if !e.cfg.IsRendererEnabled(rnd.Name()) {
			continue
		}

		out, err := rnd.Render(ctx, outcome)
		if err != nil {
			e.logger.Warn("renderer failed", zap.String("renderer", rnd.Name()), zap.Error(err))
			continue
		}
		artifacts = append(artifacts, out...)
	}
	return artifacts, nil
}
