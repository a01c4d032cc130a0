package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var downloadCmd = &cobra.Command{
	Use:   "download <code>",
	Short: "Fetch a dataset's archives ahead of a run",
	Long: `Download the subject archives of a remote dataset into the local
cache so benchmark runs do not have to fetch them on demand.`,
	Args: cobra.ExactArgs(1),
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
		if len(info.Archives) == 0 {
			return fmt.Errorf("dataset %s has no downloadable archives", info.Code)
		}

		subjects, _ := cmd.Flags().GetIntSlice("subjects")
		want := make(map[int]bool, len(subjects))
		for _, s := range subjects {
			want[s] = true
		}

		fetched := 0
		for _, a := range info.Archives {
			if len(want) > 0 && !want[a.Subject] {
				continue
			}
			if store.HasSubject(info.Code, a.Subject) {
				fmt.Printf("subject %d already cached\n", a.Subject)
				continue
			}
			if _, err := store.EnsureSubject(cmd.Context(), info, a.Subject); err != nil {
				return fmt.Errorf("failed to fetch subject %d: %w", a.Subject, err)
			}
			fetched++
		}

		fmt.Printf("Downloaded %d archive(s) for %s\n", fetched, info.Code)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(downloadCmd)
	downloadCmd.Flags().IntSlice("subjects", nil, "only fetch these subjects")
}
