package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dejo1307/pydiag/internal/sessions"
)

var (
	analyzeFormat   string
	analyzeSave     bool
	analyzeUser     string
	analyzeUserType string
	analyzeTrace    bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [file|-]",
	Short: "Analyze a Python file (or stdin) and print a report",
	Long: `Evaluates every rule against the source and prints the findings, highest
priority first. With no argument, or "-", the source is read from stdin.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeFormat, "format", "f", "", "Report format: text, markdown or json (default from config)")
	analyzeCmd.Flags().BoolVar(&analyzeSave, "save", false, "Save the analysis to session history")
	analyzeCmd.Flags().StringVar(&analyzeUser, "user", "local", "Anonymous user id stored with a saved session")
	analyzeCmd.Flags().StringVar(&analyzeUserType, "user-type", "anonymous", "User type stored with a saved session")
	analyzeCmd.Flags().BoolVar(&analyzeTrace, "trace", false, "Include the evaluation trace in text reports")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	code, err := readSource(cmd, args)
	if err != nil {
		return err
	}

	eng, err := newEngine(analyzeTrace)
	if err != nil {
		return err
	}

	out := eng.Analyze(code)

	format := analyzeFormat
	if format == "" {
		format = cfg.Output.Format
	}
	artifacts, err := eng.Render(cmd.Context(), out, format)
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	for _, a := range artifacts {
		if _, err := w.Write(a.Content); err != nil {
			return err
		}
	}

	if analyzeSave {
		store, err := openSessions()
		if err != nil {
			return err
		}
		defer store.Close()

		id, err := store.Save(cmd.Context(), sessions.FromOutcome(analyzeUser, analyzeUserType, code, out))
		if err != nil {
			return fmt.Errorf("saving session: %w", err)
		}
		logger.Info("session saved", zap.String("id", id), zap.String("user", analyzeUser))
	}
	return nil
}

func readSource(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", args[0], err)
	}
	return string(data), nil
}
