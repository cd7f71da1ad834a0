package catalog

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dejo1307/pydiag/internal/matcher"
	"gopkg.in/yaml.v3"
)

//go:embed definitions/*.yaml
var definitions embed.FS

// LoadOptions selects where definitions come from. Empty paths use the
// built-in definitions.
type LoadOptions struct {
	RulesFile    string        // YAML file with a top-level "rules" list
	FactsFile    string        // YAML file with a top-level "facts" list, or a .jsonl file
	MatchTimeout time.Duration // per-attempt pattern timeout; 0 disables it
}

// ruleDef is the on-disk form of a Rule.
type ruleDef struct {
	ID          string   `yaml:"id"`
	Category    string   `yaml:"category"`
	Head        string   `yaml:"head"`
	Body        []string `yaml:"body"`
	Description string   `yaml:"description"`
	Priority    string   `yaml:"priority"`
	Pattern     string   `yaml:"pattern"`
	Flags       string   `yaml:"flags"`
	Suggestion  string   `yaml:"suggestion"`
	Rewrite     string   `yaml:"rewrite"`
}

type factDef struct {
	ID          string   `yaml:"id"`
	Category    string   `yaml:"category"`
	Predicate   string   `yaml:"predicate"`
	Args        []string `yaml:"args"`
	Description string   `yaml:"description"`
}

// Load reads, compiles and validates the rule and fact definitions. Any
// malformed definition fails the whole load; a partial catalog is never
// returned.
func Load(opts LoadOptions) (*Catalog, error) {
	rulesData, rulesName, err := readDefinition(opts.RulesFile, "definitions/rules.yaml")
	if err != nil {
		return nil, err
	}
	rules, err := decodeRules(rulesData, rulesName, opts.MatchTimeout)
	if err != nil {
		return nil, err
	}

	var facts []Fact
	if strings.EqualFold(filepath.Ext(opts.FactsFile), ".jsonl") {
		f, err := os.Open(opts.FactsFile)
		if err != nil {
			return nil, fmt.Errorf("opening facts %s: %w", opts.FactsFile, err)
		}
		defer f.Close()
		if facts, err = ReadFactsJSONL(f); err != nil {
			return nil, fmt.Errorf("loading facts %s: %w", opts.FactsFile, err)
		}
	} else {
		factsData, factsName, err := readDefinition(opts.FactsFile, "definitions/facts.yaml")
		if err != nil {
			return nil, err
		}
		if facts, err = decodeFacts(factsData, factsName); err != nil {
			return nil, err
		}
	}

	c, err := New(rules, facts)
	if err != nil {
		return nil, fmt.Errorf("validating catalog: %w", err)
	}
	return c, nil
}

// MustLoad is like Load but panics on error. It suits package-level
// initialization where a broken catalog must stop the process.
func MustLoad(opts LoadOptions) *Catalog {
	c, err := Load(opts)
	if err != nil {
		panic(err)
	}
	return c
}

func readDefinition(path, builtin string) ([]byte, string, error) {
	if path == "" {
		data, err := definitions.ReadFile(builtin)
		if err != nil {
			return nil, "", fmt.Errorf("reading built-in %s: %w", builtin, err)
		}
		return data, builtin, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("reading %s: %w", path, err)
	}
	return data, path, nil
}

func decodeRules(data []byte, name string, timeout time.Duration) ([]Rule, error) {
	var doc struct {
		Rules []ruleDef `yaml:"rules"`
	}
	if err := decodeStrict(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", name, err)
	}

	var errs []error
	rules := make([]Rule, 0, len(doc.Rules))
	for _, d := range doc.Rules {
		r := Rule{
			ID:          d.ID,
			Category:    Category(d.Category),
			Head:        d.Head,
			Body:        d.Body,
			Description: d.Description,
			Priority:    Priority(d.Priority),
			Suggestion:  d.Suggestion,
			Rewrite:     Rewrite(d.Rewrite),
		}
		if d.Pattern != "" {
			p, err := matcher.Compile(d.Pattern, d.Flags, timeout)
			if err != nil {
				errs = append(errs, fmt.Errorf("%w: rule %s: %w", ErrInvalidDefinition, d.ID, err))
				continue
			}
			r.Pattern = p
		} else if d.Flags != "" {
			errs = append(errs, fmt.Errorf("%w: rule %s: flags without a pattern", ErrInvalidDefinition, d.ID))
		}
		rules = append(rules, r)
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("compiling %s: %w", name, errors.Join(errs...))
	}
	return rules, nil
}

func decodeFacts(data []byte, name string) ([]Fact, error) {
	var doc struct {
		Facts []factDef `yaml:"facts"`
	}
	if err := decodeStrict(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", name, err)
	}

	facts := make([]Fact, 0, len(doc.Facts))
	for _, d := range doc.Facts {
		facts = append(facts, Fact{
			ID:          d.ID,
			Category:    FactCategory(d.Category),
			Predicate:   d.Predicate,
			Args:        d.Args,
			Description: d.Description,
		})
	}
	return facts, nil
}

// decodeStrict rejects unknown keys so a typo in a definition file fails the
// load instead of silently dropping a field.
func decodeStrict(data []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
