package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

var (
	historyUser  string
	historyLimit int
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Show a user's most recent saved analyses",
	Args:  cobra.NoArgs,
	RunE:  runSessions,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show dashboard statistics for a user",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	for _, c := range []*cobra.Command{sessionsCmd, statsCmd} {
		c.Flags().StringVar(&historyUser, "user", "local", "Anonymous user id")
	}
	sessionsCmd.Flags().IntVarP(&historyLimit, "limit", "n", 0, "Maximum sessions (default from config)")
}

func runSessions(cmd *cobra.Command, args []string) error {
	store, err := openSessions()
	if err != nil {
		return err
	}
	defer store.Close()

	limit := historyLimit
	if limit <= 0 {
		limit = cfg.Sessions.RecentLimit
	}
	recent, err := store.Recent(cmd.Context(), historyUser, limit)
	if err != nil {
		return err
	}
	return writeJSON(cmd, recent)
}

func runStats(cmd *cobra.Command, args []string) error {
	cat, err := loadCatalog()
	if err != nil {
		return err
	}
	store, err := openSessions()
	if err != nil {
		return err
	}
	defer store.Close()

	d, err := store.Dashboard(cmd.Context(), historyUser, cat.RuleCount(), cat.FactCount())
	if err != nil {
		return err
	}
	return writeJSON(cmd, d)
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
