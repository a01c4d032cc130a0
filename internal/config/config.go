package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/viper"
)

// Config represents the neurobench configuration
type Config struct {
	// Storage paths
	Storage StorageConfig `mapstructure:"storage"`

	// Dataset download settings
	Download DownloadConfig `mapstructure:"download"`

	// Evaluation settings
	Evaluation EvaluationConfig `mapstructure:"evaluation"`

	// Daemon settings
	Daemon DaemonConfig `mapstructure:"daemon"`

	// UI settings
	UI UIConfig `mapstructure:"ui"`
}

type StorageConfig struct {
	BaseDir      string `mapstructure:"base_dir"`
	DatasetsDir  string `mapstructure:"datasets_dir"`
	ResultsDir   string `mapstructure:"results_dir"`
	PipelinesDir string `mapstructure:"pipelines_dir"`
}

type DownloadConfig struct {
	RateLimit    int64 `mapstructure:"rate_limit"` // bytes/s, 0 for unlimited
	Retries      int   `mapstructure:"retries"`
	TimeoutSecs  int   `mapstructure:"timeout"`
	VerifyHashes bool  `mapstructure:"verify_hashes"`
}

type EvaluationConfig struct {
	Folds   int   `mapstructure:"folds"`
	Seed    int64 `mapstructure:"seed"`
	Workers int   `mapstructure:"workers"`
}

type DaemonConfig struct {
	Port      int  `mapstructure:"port"`
	AutoStart bool `mapstructure:"auto_start"`
}

type UIConfig struct {
	ProgressBar  bool   `mapstructure:"progress_bar"`
	Verbose      bool   `mapstructure:"verbose"`
	OutputFormat string `mapstructure:"output_format"`
}

var (
	cfg *Config
	v   *viper.Viper
)

// Initialize sets up the configuration
func Initialize() error {
	v = viper.New()

	// Set config name and type
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// Add config paths
	// 1. Current working directory
	v.AddConfigPath(".")

	// 2. User config directory
	if configDir := getUserConfigDir(); configDir != "" {
		v.AddConfigPath(configDir)
	}

	// Set defaults
	setDefaults(v)

	// Bind environment variables
	v.SetEnvPrefix("NEUROBENCH")
	v.AutomaticEnv()

	// Read config file if exists
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is ok, we'll use defaults
	}

	// Unmarshal into struct
	cfg = &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Expand paths
	expandPaths(cfg)

	return nil
}

// setDefaults sets all default values
func setDefaults(v *viper.Viper) {
	// Storage defaults
	v.SetDefault("storage.base_dir", getDefaultBaseDir())
	v.SetDefault("storage.datasets_dir", "")  // Will be set to base_dir/datasets
	v.SetDefault("storage.results_dir", "")   // Will be set to base_dir/results
	v.SetDefault("storage.pipelines_dir", "") // Will be set to base_dir/pipelines

	// Download defaults
	v.SetDefault("download.rate_limit", 0) // Unlimited
	v.SetDefault("download.retries", 3)
	v.SetDefault("download.timeout", 1800) // 30 minutes
	v.SetDefault("download.verify_hashes", true)

	// Evaluation defaults
	v.SetDefault("evaluation.folds", 5)
	v.SetDefault("evaluation.seed", 42)
	v.SetDefault("evaluation.workers", runtime.NumCPU())

	// Daemon defaults
	v.SetDefault("daemon.port", 7624)
	v.SetDefault("daemon.auto_start", false)

	// UI defaults
	v.SetDefault("ui.progress_bar", true)
	v.SetDefault("ui.verbose", false)
	v.SetDefault("ui.output_format", "text") // text or json
}

// getDefaultBaseDir returns the default base directory
func getDefaultBaseDir() string {
	if dir := os.Getenv("NEUROBENCH_HOME"); dir != "" {
		return dir
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ".neurobench"
	}

	return filepath.Join(home, ".neurobench")
}

// getUserConfigDir returns the user's config directory
func getUserConfigDir() string {
	// Use XDG_CONFIG_HOME if set
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "neurobench")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "neurobench")
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "neurobench")
		}
		return filepath.Join(home, "AppData", "Roaming", "neurobench")
	default:
		return filepath.Join(home, ".config", "neurobench")
	}
}

// expandPaths expands relative paths and sets defaults
func expandPaths(cfg *Config) {
	if cfg.Storage.BaseDir != "" {
		cfg.Storage.BaseDir = expandPath(cfg.Storage.BaseDir)
	}

	if cfg.Storage.DatasetsDir == "" {
		cfg.Storage.DatasetsDir = filepath.Join(cfg.Storage.BaseDir, "datasets")
	} else {
		cfg.Storage.DatasetsDir = expandPath(cfg.Storage.DatasetsDir)
	}

	if cfg.Storage.ResultsDir == "" {
		cfg.Storage.ResultsDir = filepath.Join(cfg.Storage.BaseDir, "results")
	} else {
		cfg.Storage.ResultsDir = expandPath(cfg.Storage.ResultsDir)
	}

	if cfg.Storage.PipelinesDir == "" {
		cfg.Storage.PipelinesDir = filepath.Join(cfg.Storage.BaseDir, "pipelines")
	} else {
		cfg.Storage.PipelinesDir = expandPath(cfg.Storage.PipelinesDir)
	}
}

// expandPath expands ~ and environment variables
func expandPath(path string) string {
	if path == "" {
		return path
	}

	// Expand ~
	if path[0] == '~' {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[1:])
		}
	}

	// Expand environment variables
	return os.ExpandEnv(path)
}

// Get returns the current configuration
func Get() *Config {
	if cfg == nil {
		panic("config not initialized")
	}
	return cfg
}

// GetViper returns the viper instance
func GetViper() *viper.Viper {
	if v == nil {
		panic("config not initialized")
	}
	return v
}

// SaveConfig saves the current configuration to file
func SaveConfig(path string) error {
	return v.WriteConfigAs(path)
}

// CreateAllDirs creates all configured directories
func CreateAllDirs() error {
	dirs := []string{
		cfg.Storage.BaseDir,
		cfg.Storage.DatasetsDir,
		cfg.Storage.ResultsDir,
		cfg.Storage.PipelinesDir,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
