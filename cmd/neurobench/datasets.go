package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/neurobench/neurobench/internal/config"
	"github.com/neurobench/neurobench/internal/dataset"
	"github.com/neurobench/neurobench/internal/storage"
	"github.com/neurobench/neurobench/internal/ui"
)

var datasetsCmd = &cobra.Command{
	Use:   "datasets",
	Short: "Inspect the available datasets",
}

var datasetsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered datasets",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, registry, store, err := openLocalRegistry()
		if err != nil {
			return err
		}

		all := registry.All()
		fmt.Println("Registered datasets:")
		fmt.Println()
		for _, d := range all {
			info := d.Info()
			fmt.Printf("  %s\n", info.Code)
			fmt.Printf("    Paradigm: %s | Subjects: %d | Sessions: %d | Events: %v\n",
				info.Paradigm, info.NSubjects, info.NSessions, info.Events)
			if len(info.Archives) > 0 {
				cached := 0
				for _, a := range info.Archives {
					if store.HasSubject(info.Code, a.Subject) {
						cached++
					}
				}
				fmt.Printf("    Remote: %s total, %d/%d subjects cached\n",
					ui.FormatBytes(info.TotalSize()), cached, len(info.Archives))
			}
		}
		fmt.Printf("\nTotal datasets: %d\n", len(all))
		return nil
	},
}

var datasetsInfoCmd = &cobra.Command{
	Use:   "info <code>",
	Short: "Show one dataset in detail",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, registry, store, err := openLocalRegistry()
		if err != nil {
			return err
		}

		d, err := registry.Get(args[0])
		if err != nil {
			return err
		}

		info := d.Info()
		interval := d.Interval()
		fmt.Printf("Dataset: %s\n", info.Code)
		fmt.Printf("  Paradigm: %s\n", info.Paradigm)
		fmt.Printf("  Subjects: %v\n", d.Subjects())
		fmt.Printf("  Sessions per subject: %d\n", info.NSessions)
		fmt.Printf("  Events: %v\n", info.Events)
		fmt.Printf("  Trial interval: [%g, %g] s\n", interval[0], interval[1])
		if len(info.Archives) > 0 {
			fmt.Printf("  Archives: %d (%s)\n", len(info.Archives), ui.FormatBytes(info.TotalSize()))
			for _, a := range info.Archives {
				state := "not cached"
				if store.HasSubject(info.Code, a.Subject) {
					state = "cached"
				}
				fmt.Printf("    subject %d: %s (%s)\n", a.Subject, ui.FormatBytes(a.Size), state)
			}
		}
		return nil
	},
}

var datasetsEvictCmd = &cobra.Command{
	Use:   "evict <code>",
	Short: "Remove a dataset's cached archives",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, registry, store, err := openLocalRegistry()
		if err != nil {
			return err
		}

		if _, err := registry.Get(args[0]); err != nil {
			return err
		}
		if err := store.Evict(args[0]); err != nil {
			return err
		}
		fmt.Printf("Evicted cached archives for %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(datasetsCmd)
	datasetsCmd.AddCommand(datasetsListCmd, datasetsInfoCmd, datasetsEvictCmd)
}

// openLocalRegistry builds the dataset registry and archive store the same
// way the daemon does, for commands that work without one.
func openLocalRegistry() (*storage.Paths, *dataset.Registry, *dataset.Store, error) {
	cfg := config.Get()

	paths, err := storage.NewPaths()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to resolve storage paths: %w", err)
	}
	if err := paths.Initialize(); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	registry := dataset.NewRegistry()
	registry.RegisterBuiltins()

	store := dataset.NewStore(paths)
	store.RateLimit = cfg.Download.RateLimit
	store.Retries = cfg.Download.Retries
	store.Verify = cfg.Download.VerifyHashes
	store.Progress = cfg.UI.ProgressBar

	if err := registry.RegisterCatalog(paths.CatalogPath(), store); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to register catalog datasets: %w", err)
	}

	return paths, registry, store, nil
}
