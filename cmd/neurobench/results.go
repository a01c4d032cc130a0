package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/neurobench/neurobench/internal/analysis"
	"github.com/neurobench/neurobench/internal/results"
	"github.com/neurobench/neurobench/internal/storage"
)

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Show and aggregate stored scores",
	Long: `Inspect the scores a benchmark run produced. Results are stored per
context, named after the paradigm and evaluation scheme, for example
MotorImagery_WithinSession.`,
}

var resultsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print stored result rows",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openResults(cmd)
		if err != nil {
			return err
		}

		filter := results.Filter{}
		filter.Dataset, _ = cmd.Flags().GetString("dataset")
		filter.Pipeline, _ = cmd.Flags().GetString("pipeline")
		filter.Subject, _ = cmd.Flags().GetInt("subject")

		rows := store.Results(filter)
		if len(rows) == 0 {
			fmt.Println("No results found.")
			return nil
		}

		fmt.Println(results.ToTable(rows))
		fmt.Printf("Total rows: %d\n", len(rows))
		return nil
	},
}

var resultsSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Aggregate scores per pipeline and dataset",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openResults(cmd)
		if err != nil {
			return err
		}

		ds, _ := cmd.Flags().GetString("dataset")
		rows := store.Results(results.Filter{Dataset: ds})
		if len(rows) == 0 {
			fmt.Println("No results found.")
			return nil
		}

		fmt.Printf("%-28s %-24s %6s %12s %10s %10s\n",
			"dataset", "pipeline", "n", "mean score", "std", "fit time")
		for _, s := range analysis.Summarize(rows) {
			fmt.Printf("%-28s %-24s %6d %12.4f %10.4f %9.3fs\n",
				s.Dataset, s.Pipeline, s.N, s.MeanScore, s.StdScore, s.MeanTime)
		}
		return nil
	},
}

var resultsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the stored results of one context",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openResults(cmd)
		if err != nil {
			return err
		}

		n := store.Len()
		if err := store.Clear(); err != nil {
			return err
		}
		fmt.Printf("Removed %d result(s)\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(resultsCmd)
	resultsCmd.AddCommand(resultsShowCmd, resultsSummaryCmd, resultsClearCmd)

	resultsCmd.PersistentFlags().String("context", "", "results context, e.g. MotorImagery_WithinSession (required)")
	resultsShowCmd.Flags().String("dataset", "", "filter by dataset code")
	resultsShowCmd.Flags().String("pipeline", "", "filter by pipeline name")
	resultsShowCmd.Flags().Int("subject", 0, "filter by subject number")
	resultsSummaryCmd.Flags().String("dataset", "", "filter by dataset code")
}

func openResults(cmd *cobra.Command) (*results.Store, error) {
	context, _ := cmd.Flags().GetString("context")
	if context == "" {
		return nil, fmt.Errorf("--context is required, e.g. --context MotorImagery_WithinSession")
	}

	paths, err := storage.NewPaths()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage paths: %w", err)
	}
	if err := paths.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	return results.Open(paths.ResultsPath(context))
}
