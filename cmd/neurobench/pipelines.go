package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/neurobench/neurobench/internal/pipeline"
	"github.com/neurobench/neurobench/internal/storage"
)

var pipelinesCmd = &cobra.Command{
	Use:   "pipelines",
	Short: "Inspect the loaded pipeline definitions",
}

var pipelinesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pipeline definitions",
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, dir, err := loadPipelines(cmd)
		if err != nil {
			return err
		}

		defs := registry.All()
		if len(defs) == 0 {
			fmt.Printf("No pipeline definitions found in %s\n", dir)
			return nil
		}

		fmt.Printf("Pipelines in %s:\n\n", dir)
		for _, def := range defs {
			paradigms := "all paradigms"
			if len(def.Paradigms) > 0 {
				paradigms = strings.Join(def.Paradigms, ", ")
			}
			fmt.Printf("  %s (%d steps, %s)\n", def.Name, len(def.Steps), paradigms)
		}
		fmt.Printf("\nTotal pipelines: %d\n", len(defs))
		return nil
	},
}

var pipelinesShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show one pipeline definition in full",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, _, err := loadPipelines(cmd)
		if err != nil {
			return err
		}

		def, err := registry.Get(args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Pipeline: %s\n", def.Name)
		if len(def.Paradigms) > 0 {
			fmt.Printf("  Paradigms: %s\n", strings.Join(def.Paradigms, ", "))
		}
		fmt.Println("  Steps:")
		for i, step := range def.Steps {
			fmt.Printf("    %d. %s", i+1, step.Name)
			if len(step.Parameters) > 0 {
				fmt.Printf(" %v", step.Parameters)
			}
			fmt.Println()
		}
		if len(def.ParamGrid) > 0 {
			fmt.Println("  Hyperparameter grid:")
			for step, params := range def.ParamGrid {
				for param, values := range params {
					fmt.Printf("    %s.%s: %v\n", step, param, values)
				}
			}
		}
		if digest, err := def.Digest(); err == nil {
			fmt.Printf("  Digest: %s\n", digest)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pipelinesCmd)
	pipelinesCmd.AddCommand(pipelinesListCmd, pipelinesShowCmd)

	pipelinesCmd.PersistentFlags().String("dir", "", "directory of pipeline YAML files (default: the configured pipelines dir)")
}

func loadPipelines(cmd *cobra.Command) (*pipeline.Registry, string, error) {
	dir, _ := cmd.Flags().GetString("dir")
	if dir == "" {
		paths, err := storage.NewPaths()
		if err != nil {
			return nil, "", fmt.Errorf("failed to resolve storage paths: %w", err)
		}
		if err := paths.Initialize(); err != nil {
			return nil, "", fmt.Errorf("failed to initialize storage: %w", err)
		}
		dir = paths.PipelinesDir()
	}

	registry := pipeline.NewRegistry()
	if _, err := registry.LoadDir(dir); err != nil {
		return nil, "", fmt.Errorf("failed to load pipelines from %s: %w", dir, err)
	}
	return registry, dir, nil
}
