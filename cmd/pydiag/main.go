package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dejo1307/pydiag/internal/catalog"
	"github.com/dejo1307/pydiag/internal/config"
	"github.com/dejo1307/pydiag/internal/engine"
	"github.com/dejo1307/pydiag/internal/renderers/jsonreport"
	"github.com/dejo1307/pydiag/internal/renderers/markdown"
	"github.com/dejo1307/pydiag/internal/renderers/text"
	"github.com/dejo1307/pydiag/internal/sessions"
)

var (
	// Global flags
	cfgPath string
	verbose bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "pydiag",
	Short: "Rule-based diagnostics for Python source",
	Long: `pydiag checks Python source text against a knowledge base of textual
rules and reports ranked errors and warnings with an evaluation trace.

Run "pydiag serve" to expose the analyzer as an MCP server on stdio.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			// If config file doesn't exist, use defaults
			if !errors.Is(err, os.ErrNotExist) || cmd.Flags().Changed("config") {
				return err
			}
			fmt.Fprintf(os.Stderr, "warning: %v, using defaults\n", err)
			cfg = config.Default()
		}

		logger, err = newLogger(cfg.Log.Level, verbose)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// newLogger builds a production zap logger writing to stderr; stdout belongs
// to reports and the MCP transport.
func newLogger(level string, verbose bool) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	zcfg.OutputPaths = []string{"stderr"}
	if level != "" {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
		zcfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	if verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	l, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return l, nil
}

// newEngine loads the catalog and builds an engine with every renderer
// registered. A broken catalog is fatal.
func newEngine(showTrace bool) (*engine.Engine, error) {
	cat, err := catalog.Load(catalog.LoadOptions{
		RulesFile:    cfg.Catalog.RulesFile,
		FactsFile:    cfg.Catalog.FactsFile,
		MatchTimeout: cfg.Analysis.MatchTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}
	logger.Debug("catalog loaded", zap.Int("rules", cat.RuleCount()), zap.Int("facts", cat.FactCount()))

	eng, err := engine.New(cfg, cat, engine.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	eng.RegisterRenderer(text.New(showTrace))
	eng.RegisterRenderer(markdown.New(cfg.Output.MaxReportTokens))
	eng.RegisterRenderer(jsonreport.New())
	return eng, nil
}

// openSessions opens the configured session store.
func openSessions() (*sessions.Store, error) {
	if strings.TrimSpace(cfg.Sessions.DBPath) == "" {
		return nil, errors.New("session history is disabled (sessions.db_path is empty)")
	}
	return sessions.Open(cfg.Sessions.DBPath)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "pydiag.yaml", "Path to the config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(rulesCmd)
	rootCmd.AddCommand(factsCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(statsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
