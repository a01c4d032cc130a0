package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/neurobench/neurobench/internal/api"
	"github.com/neurobench/neurobench/internal/api/client"
	"github.com/neurobench/neurobench/internal/config"
	"github.com/neurobench/neurobench/internal/daemon"
	"github.com/neurobench/neurobench/internal/storage"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Manage the neurobench daemon",
	Long: `Control the background daemon that executes benchmark runs.

The daemon runs evaluations one at a time, tracks their progress and
serves results over a local HTTP API.`,
}

var daemonStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the neurobench daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		if isDaemonRunning() {
			fmt.Println("Daemon is already running")
			return nil
		}

		foreground, _ := cmd.Flags().GetBool("foreground")
		port, _ := cmd.Flags().GetInt("port")

		if port == 0 {
			port = viper.GetInt("daemon.port")
			if port == 0 {
				port = 7624
			}
		}

		if foreground {
			return runDaemonForeground(port)
		}

		return startDaemonBackground(port)
	},
}

var daemonStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the neurobench daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !isDaemonRunning() {
			fmt.Println("Daemon is not running")
			return nil
		}

		// Try API shutdown first
		apiClient := client.NewClient(getDaemonURL())
		if err := apiClient.Shutdown(); err == nil {
			fmt.Println("Daemon shutdown initiated via API")
			time.Sleep(2 * time.Second)
			if !isDaemonRunning() {
				fmt.Println("Daemon stopped successfully")
				return nil
			}
		}

		// Fall back to PID-based shutdown
		pidData, err := os.ReadFile(getPIDFile())
		if err != nil {
			return fmt.Errorf("failed to read PID file: %w", err)
		}

		pid, err := strconv.Atoi(string(pidData))
		if err != nil {
			return fmt.Errorf("invalid PID in file: %w", err)
		}

		process, err := os.FindProcess(pid)
		if err != nil {
			return fmt.Errorf("failed to find process: %w", err)
		}

		if err := process.Signal(syscall.SIGTERM); err != nil {
			return fmt.Errorf("failed to stop daemon: %w", err)
		}

		fmt.Println("Sent shutdown signal to daemon")

		for i := 0; i < 10; i++ {
			time.Sleep(1 * time.Second)
			if !isDaemonRunning() {
				fmt.Println("Daemon stopped successfully")
				return nil
			}
		}

		return fmt.Errorf("daemon did not stop within timeout")
	},
}

var daemonStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check daemon status",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !isDaemonRunning() {
			fmt.Println("Daemon is not running")
			return nil
		}

		apiClient := client.NewClient(getDaemonURL())
		status, err := apiClient.GetStatus()
		if err != nil {
			fmt.Println("Daemon is running but API is not responding")
			return nil
		}

		fmt.Println("Daemon Status:")
		fmt.Printf("  PID: %v\n", status["pid"])
		fmt.Printf("  Uptime: %v\n", status["uptime"])
		fmt.Printf("  Active Runs: %v\n", status["active_runs"])
		fmt.Printf("  Datasets: %v\n", status["datasets"])
		fmt.Printf("  Pipelines: %v\n", status["pipelines"])

		return nil
	},
}

var daemonRestartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Restart the neurobench daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		if isDaemonRunning() {
			fmt.Println("Stopping daemon...")
			if err := daemonStopCmd.RunE(cmd, args); err != nil {
				return err
			}
			time.Sleep(2 * time.Second)
		}

		fmt.Println("Starting daemon...")
		return daemonStartCmd.RunE(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(daemonCmd)
	daemonCmd.AddCommand(daemonStartCmd, daemonStopCmd, daemonStatusCmd, daemonRestartCmd)

	daemonStartCmd.Flags().Bool("foreground", false, "Run daemon in foreground")
	daemonStartCmd.Flags().Int("port", 0, "API port (default: 7624)")

	daemonRestartCmd.Flags().Bool("foreground", false, "Run daemon in foreground after restart")
	daemonRestartCmd.Flags().Int("port", 0, "API port (default: 7624)")
}

func isDaemonRunning() bool {
	pidData, err := os.ReadFile(getPIDFile())
	if err != nil {
		return false
	}

	pid, err := strconv.Atoi(string(pidData))
	if err != nil {
		return false
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	// Signal 0 checks the process is alive
	return process.Signal(syscall.Signal(0)) == nil
}

func runDaemonForeground(port int) error {
	cfg := config.Get()
	d, err := daemon.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create daemon: %w", err)
	}

	d.SetAPIHandler(api.SetupRoutes(d))

	if err := d.Start(port); err != nil {
		return err
	}

	d.Wait()
	return d.Shutdown()
}

func startDaemonBackground(port int) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	cmd := exec.Command(exe, "daemon", "start", "--foreground", "--port", strconv.Itoa(port))
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	if err := cmd.Process.Release(); err != nil {
		return fmt.Errorf("failed to detach daemon process: %w", err)
	}

	fmt.Printf("Starting daemon on port %d...\n", port)

	for i := 0; i < 10; i++ {
		time.Sleep(1 * time.Second)
		if isDaemonRunning() {
			apiClient := client.NewClient(fmt.Sprintf("http://127.0.0.1:%d", port))
			if _, err := apiClient.GetStatus(); err == nil {
				fmt.Println("Daemon started successfully")
				return nil
			}
		}
	}

	return fmt.Errorf("daemon failed to start within timeout")
}

func getPIDFile() string {
	return filepath.Join(storage.GetBaseDir(), "daemon", "daemon.pid")
}

func getDaemonURL() string {
	port := viper.GetInt("daemon.port")
	if port == 0 {
		port = 7624
	}
	return fmt.Sprintf("http://127.0.0.1:%d", port)
}
