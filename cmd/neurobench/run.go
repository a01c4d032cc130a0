package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/neurobench/neurobench/internal/api/client"
	"github.com/neurobench/neurobench/internal/benchmark"
	"github.com/neurobench/neurobench/internal/config"
	"github.com/neurobench/neurobench/internal/evaluation"
	"github.com/neurobench/neurobench/internal/pipeline"
	"github.com/neurobench/neurobench/internal/results"
	"github.com/neurobench/neurobench/internal/ui"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Evaluate pipelines on datasets",
	Long: `Run a benchmark: every selected pipeline is trained and scored on
every selected dataset under the chosen cross-validation scheme.

Scores are cached per subject, so re-running a benchmark only evaluates
what changed. Use --force to re-evaluate everything.`,
	RunE: runBenchmark,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("evaluation", "WithinSession", "evaluation scheme: WithinSession, CrossSession or CrossSubject")
	runCmd.Flags().String("paradigm", "MotorImagery", "paradigm to decode")
	runCmd.Flags().StringSlice("datasets", nil, "dataset codes (default: all compatible datasets)")
	runCmd.Flags().String("pipelines", "", "directory of pipeline YAML files (default: the configured pipelines dir)")
	runCmd.Flags().StringSlice("pipeline", nil, "run only these pipelines by name")
	runCmd.Flags().IntSlice("subjects", nil, "subject numbers (default: all)")
	runCmd.Flags().Int("folds", 0, "cross-validation folds for WithinSession")
	runCmd.Flags().Int64("seed", 0, "random seed (default: from config)")
	runCmd.Flags().Bool("grid-search", false, "tune hyperparameter grids with an inner cross-validation")
	runCmd.Flags().Bool("save-models", false, "dump fitted models under the models directory")
	runCmd.Flags().Bool("force", false, "re-evaluate cached results")
	runCmd.Flags().Bool("daemon", false, "submit the run to the daemon instead of executing locally")
	runCmd.Flags().String("output", "", "write the result table to a file")

	runCmd.Flags().String("curve-policy", "", "learning curve policy: ratio or per_class")
	runCmd.Flags().Float64Slice("curve-values", nil, "learning curve training set sizes, strictly increasing")
	runCmd.Flags().IntSlice("curve-perms", nil, "permutations per learning curve size")
}

func specFromFlags(cmd *cobra.Command) (*benchmark.Spec, error) {
	cfg := config.Get()

	spec := &benchmark.Spec{}
	spec.Evaluation, _ = cmd.Flags().GetString("evaluation")
	spec.Paradigm, _ = cmd.Flags().GetString("paradigm")
	spec.Datasets, _ = cmd.Flags().GetStringSlice("datasets")
	spec.Pipelines, _ = cmd.Flags().GetStringSlice("pipeline")
	spec.Subjects, _ = cmd.Flags().GetIntSlice("subjects")
	spec.GridSearch, _ = cmd.Flags().GetBool("grid-search")
	spec.SaveModels, _ = cmd.Flags().GetBool("save-models")
	spec.Force, _ = cmd.Flags().GetBool("force")

	spec.Folds, _ = cmd.Flags().GetInt("folds")
	if spec.Folds == 0 {
		spec.Folds = cfg.Evaluation.Folds
	}
	spec.Seed, _ = cmd.Flags().GetInt64("seed")
	if spec.Seed == 0 {
		spec.Seed = cfg.Evaluation.Seed
	}

	policy, _ := cmd.Flags().GetString("curve-policy")
	if policy != "" {
		values, _ := cmd.Flags().GetFloat64Slice("curve-values")
		perms, _ := cmd.Flags().GetIntSlice("curve-perms")
		spec.Curve = &evaluation.LearningCurve{
			Policy: policy,
			Values: values,
			NPerms: perms,
		}
	}

	return spec, nil
}

func runBenchmark(cmd *cobra.Command, args []string) error {
	spec, err := specFromFlags(cmd)
	if err != nil {
		return err
	}

	viaDaemon, _ := cmd.Flags().GetBool("daemon")
	if viaDaemon {
		return submitToDaemon(spec)
	}

	cfg := config.Get()
	paths, datasets, _, err := openLocalRegistry()
	if err != nil {
		return err
	}

	pipelines := pipeline.NewRegistry()
	dir, _ := cmd.Flags().GetString("pipelines")
	if dir == "" {
		dir = paths.PipelinesDir()
	}
	n, err := pipelines.LoadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to load pipelines from %s: %w", dir, err)
	}
	if n == 0 {
		return fmt.Errorf("no pipeline definitions found in %s", dir)
	}

	store, err := results.Open(paths.ResultsPath(spec.Context()))
	if err != nil {
		return fmt.Errorf("failed to open results store: %w", err)
	}

	var bar *ui.EvalProgress
	runner := &benchmark.Runner{
		Datasets:  datasets,
		Pipelines: pipelines,
		Store:     store,
		ModelDir:  paths.ModelsDir(),
		Progress: func(done, total int) {
			if !cfg.UI.ProgressBar {
				return
			}
			if bar == nil {
				bar = ui.NewEvalProgress(total, "Evaluating")
			}
			bar.Step("")
		},
	}

	rows, err := runner.Run(cmd.Context(), spec)
	if err != nil {
		return err
	}
	if bar != nil {
		bar.Finish()
	}

	if len(rows) == 0 {
		fmt.Println("Nothing to evaluate: all results are cached. Use --force to re-run.")
		return nil
	}

	table := results.ToTable(rows)
	fmt.Println()
	fmt.Println(table)

	if out, _ := cmd.Flags().GetString("output"); out != "" {
		if err := os.WriteFile(out, []byte(table), 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", out, err)
		}
		fmt.Printf("Results written to %s\n", out)
	}

	fmt.Printf("Evaluated %d result(s), stored in %s\n", len(rows), paths.ResultsPath(spec.Context()))
	return nil
}

func submitToDaemon(spec *benchmark.Spec) error {
	if err := ensureDaemonRunning(); err != nil {
		return err
	}

	apiClient := client.NewClient(getDaemonURL())
	result, err := apiClient.SubmitRun(spec)
	if err != nil {
		return err
	}

	run, ok := result["run"].(map[string]interface{})
	if !ok {
		return fmt.Errorf("unexpected daemon response")
	}
	fmt.Printf("Run submitted: %v\n", run["id"])
	fmt.Println("Check progress with: neurobench results --context", spec.Context())
	return nil
}
