package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/neurobench/neurobench/internal/analysis"
	"github.com/neurobench/neurobench/internal/results"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Compare pipelines statistically",
	Long: `Run paired statistical tests over stored results: one-sided Wilcoxon
signed-rank tests per dataset, combined across datasets with Stouffer's
method, plus average pipeline rankings.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openResults(cmd)
		if err != nil {
			return err
		}

		rows := store.Results(results.Filter{})
		if len(rows) == 0 {
			fmt.Println("No results found.")
			return nil
		}

		comps, err := analysis.Pairwise(rows)
		if err != nil {
			return err
		}

		fmt.Println("Pairwise comparisons (A > B, per dataset):")
		fmt.Printf("%-28s %-20s %-20s %6s %10s %10s\n",
			"dataset", "pipeline A", "pipeline B", "n", "effect", "p-value")
		for _, c := range comps {
			fmt.Printf("%-28s %-20s %-20s %6d %10.3f %10.4f\n",
				c.Dataset, c.PipelineA, c.PipelineB, c.NSubjects, c.Effect, c.PValue)
		}

		combined := analysis.Combine(comps)
		if len(combined) > 0 {
			fmt.Println()
			fmt.Println("Combined across datasets:")
			fmt.Printf("%-20s %-20s %10s %10s\n", "pipeline A", "pipeline B", "effect", "p-value")
			for _, c := range combined {
				fmt.Printf("%-20s %-20s %10.3f %10.4f\n",
					c.PipelineA, c.PipelineB, c.Effect, c.PValue)
			}
		}

		fmt.Println()
		fmt.Println("Average rankings (lower is better):")
		for _, r := range analysis.Rankings(rows) {
			fmt.Printf("  %-28s %-24s %6.2f\n", r.Dataset, r.Pipeline, r.MeanRank)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().String("context", "", "results context, e.g. MotorImagery_WithinSession (required)")
}
