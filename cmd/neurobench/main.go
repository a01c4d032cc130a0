package main

import (
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/neurobench/neurobench/internal/api/client"
	"github.com/neurobench/neurobench/internal/config"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "neurobench",
		Short: "EEG decoding benchmark runner",
		Long: `Neurobench benchmarks EEG decoding pipelines across datasets with
reproducible cross-validation.

Key Commands:
  run       - Evaluate pipelines on datasets and store the scores
  datasets  - Inspect the available datasets
  download  - Fetch dataset archives ahead of a run
  results   - Show and aggregate stored scores
  analyze   - Compare pipelines statistically
  daemon    - Manage the background benchmark daemon`,
	}
)

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/neurobench/config.yaml)")
	rootCmd.PersistentFlags().Bool("verbose", false, "enable verbose output")
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

func initConfig() {
	if err := config.Initialize(); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing config: %v\n", err)
		os.Exit(1)
	}

	if err := config.CreateAllDirs(); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating directories: %v\n", err)
		os.Exit(1)
	}

	if cfgFile != "" {
		v := config.GetViper()
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
			os.Exit(1)
		}
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// ensureDaemonRunning checks if the daemon is running and starts it if not
func ensureDaemonRunning() error {
	apiClient := client.NewClient(getDaemonURL())
	if err := apiClient.Health(); err == nil {
		return nil
	}

	if viper.IsSet("daemon.auto_start") && !viper.GetBool("daemon.auto_start") {
		return fmt.Errorf("daemon is not running. Start it with: neurobench daemon start")
	}

	fmt.Println("Starting daemon...")
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	cmd := exec.Command(exe, "daemon", "start")
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	if err := cmd.Process.Release(); err != nil {
		return fmt.Errorf("failed to detach daemon process: %w", err)
	}

	for i := 0; i < 10; i++ {
		time.Sleep(1 * time.Second)
		if err := apiClient.Health(); err == nil {
			fmt.Println("Daemon started successfully")
			return nil
		}
	}

	return fmt.Errorf("daemon failed to start within timeout")
}
