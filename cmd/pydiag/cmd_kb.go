package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dejo1307/pydiag/internal/catalog"
)

var (
	factsCategory  string
	factsPredicate string
	factsJSONL     bool
	factsOffset    int
	factsLimit     int
)

var rulesCmd = &cobra.Command{
	Use:   "rules [query]",
	Short: "List or search the diagnostic rules",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRules,
}

var factsCmd = &cobra.Command{
	Use:   "facts [query]",
	Short: "List or search the knowledge-base facts",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runFacts,
}

func init() {
	factsCmd.Flags().StringVar(&factsCategory, "category", "", "Filter by fact category")
	factsCmd.Flags().StringVar(&factsPredicate, "predicate", "", "Filter by predicate")
	factsCmd.Flags().BoolVar(&factsJSONL, "jsonl", false, "Print matching facts as JSONL")
	factsCmd.Flags().IntVar(&factsOffset, "offset", 0, "Number of results to skip")
	factsCmd.Flags().IntVar(&factsLimit, "limit", 0, "Maximum results (default 100, max 500)")
}

func loadCatalog() (*catalog.Catalog, error) {
	cat, err := catalog.Load(catalog.LoadOptions{
		RulesFile: cfg.Catalog.RulesFile,
		FactsFile: cfg.Catalog.FactsFile,
	})
	if err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}
	return cat, nil
}

func runRules(cmd *cobra.Command, args []string) error {
	cat, err := loadCatalog()
	if err != nil {
		return err
	}

	query := ""
	if len(args) == 1 {
		query = args[0]
	}
	w := cmd.OutOrStdout()
	rules := cat.SearchRules(query)
	for _, r := range rules {
		fmt.Fprintf(w, "%-4s %-12s %-7s %s\n", r.ID, r.Category, r.Priority, r.Head)
	}
	fmt.Fprintf(w, "%d of %d rules\n", len(rules), cat.RuleCount())
	return nil
}

func runFacts(cmd *cobra.Command, args []string) error {
	cat, err := loadCatalog()
	if err != nil {
		return err
	}

	category := catalog.FactCategory(factsCategory)
	if category != "" && !category.Valid() {
		return fmt.Errorf("unknown fact category %q", factsCategory)
	}
	q := catalog.FactQuery{
		Category:  category,
		Predicate: factsPredicate,
		Offset:    factsOffset,
		Limit:     factsLimit,
	}
	if len(args) == 1 {
		q.Text = args[0]
	}

	facts, total := cat.QueryFacts(q)
	w := cmd.OutOrStdout()
	if factsJSONL {
		return catalog.NewIndex(facts).WriteJSONL(w)
	}
	for _, f := range facts {
		fmt.Fprintf(w, "%-4s %-18s %s%v  %s\n", f.ID, f.Category, f.Predicate, f.Args, f.Description)
	}
	fmt.Fprintf(w, "%d of %d matching facts\n", len(facts), total)
	return nil
}
