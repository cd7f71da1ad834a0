package config

import (
	"fmt"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPlaceholder is the editor prompt treated as empty input.
const DefaultPlaceholder = "# Enter your Python code here..."

// Config represents the pydiag.yaml configuration.
type Config struct {
	Catalog   CatalogConfig  `yaml:"catalog"`
	Analysis  AnalysisConfig `yaml:"analysis"`
	Sessions  SessionsConfig `yaml:"sessions"`
	Renderers []string       `yaml:"renderers"`
	Output    OutputConfig   `yaml:"output"`
	Log       LogConfig      `yaml:"log"`
}

// CatalogConfig points at replacement definition files. Empty paths use the
// built-in rules and facts.
type CatalogConfig struct {
	RulesFile string `yaml:"rules_file"`
	FactsFile string `yaml:"facts_file"`
}

// AnalysisConfig tunes rule evaluation.
type AnalysisConfig struct {
	Workers      int           `yaml:"workers"`       // 1 evaluates rules sequentially
	MatchTimeout time.Duration `yaml:"match_timeout"` // per pattern attempt, 0 disables
	CallTimeout  time.Duration `yaml:"call_timeout"`  // per MCP analyze call
	Placeholder  string        `yaml:"placeholder"`
}

// SessionsConfig controls the analysis history store.
type SessionsConfig struct {
	DBPath      string `yaml:"db_path"` // empty disables persistence
	RecentLimit int    `yaml:"recent_limit"`
}

// OutputConfig controls how reports are rendered.
type OutputConfig struct {
	Format          string `yaml:"format"`
	MaxReportTokens int    `yaml:"max_report_tokens"`
}

// LogConfig selects the log level (debug, info, warn, error).
type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Analysis: AnalysisConfig{
			Workers:      1,
			MatchTimeout: 250 * time.Millisecond,
			CallTimeout:  10 * time.Second,
			Placeholder:  DefaultPlaceholder,
		},
		Sessions: SessionsConfig{
			DBPath:      ".pydiag/sessions.db",
			RecentLimit: 5,
		},
		Renderers: []string{"text", "markdown", "json"},
		Output: OutputConfig{
			Format:          "text",
			MaxReportTokens: 4000,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads a configuration file from the given path.
// Missing fields are filled with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	// Ensure required defaults
	if cfg.Analysis.Workers < 1 {
		cfg.Analysis.Workers = 1
	}
	if cfg.Analysis.CallTimeout <= 0 {
		cfg.Analysis.CallTimeout = 10 * time.Second
	}
	if cfg.Analysis.MatchTimeout < 0 {
		cfg.Analysis.MatchTimeout = 0
	}
	if cfg.Sessions.RecentLimit <= 0 {
		cfg.Sessions.RecentLimit = 5
	}
	if cfg.Output.Format == "" {
		cfg.Output.Format = "text"
	}
	if cfg.Output.MaxReportTokens == 0 {
		cfg.Output.MaxReportTokens = 4000
	}

	return cfg, nil
}

// IsRendererEnabled returns true if the named renderer is enabled.
func (c *Config) IsRendererEnabled(name string) bool {
	return slices.Contains(c.Renderers, name)
}
