package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// Paths manages all storage locations for neurobench
type Paths struct {
	baseDir      string
	datasetsDir  string
	resultsDir   string
	pipelinesDir string
	modelsDir    string
	configDir    string
	daemonDir    string
}

// NewPaths creates a new Paths instance
func NewPaths() (*Paths, error) {
	baseDir, err := getBaseDir()
	if err != nil {
		return nil, err
	}

	p := &Paths{
		baseDir:      baseDir,
		datasetsDir:  filepath.Join(baseDir, "datasets"),
		resultsDir:   filepath.Join(baseDir, "results"),
		pipelinesDir: filepath.Join(baseDir, "pipelines"),
		modelsDir:    filepath.Join(baseDir, "models"),
		daemonDir:    filepath.Join(baseDir, "daemon"),
	}

	// Config dir is separate
	configDir, err := getConfigDir()
	if err != nil {
		return nil, err
	}
	p.configDir = configDir

	return p, nil
}

// GetBaseDir returns the base directory without constructing a Paths value.
func GetBaseDir() string {
	dir, err := getBaseDir()
	if err != nil {
		return ".neurobench"
	}
	return dir
}

// getBaseDir returns the base directory for neurobench data
func getBaseDir() (string, error) {
	// Check environment variable first
	if dir := os.Getenv("NEUROBENCH_HOME"); dir != "" {
		return dir, nil
	}

	// Default to ~/.neurobench
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	return filepath.Join(home, ".neurobench"), nil
}

// getConfigDir returns the configuration directory
func getConfigDir() (string, error) {
	// Check environment variable first
	if dir := os.Getenv("NEUROBENCH_CONFIG"); dir != "" {
		return dir, nil
	}

	// Use XDG_CONFIG_HOME if set
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "neurobench"), nil
	}

	// Platform-specific defaults
	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, "Library", "Application Support", "neurobench"), nil

	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "neurobench"), nil
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, "AppData", "Roaming", "neurobench"), nil

	default: // Linux and others
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".config", "neurobench"), nil
	}
}

// Initialize creates all necessary directories
func (p *Paths) Initialize() error {
	dirs := []string{
		p.datasetsDir,
		p.resultsDir,
		p.pipelinesDir,
		p.modelsDir,
		p.configDir,
		p.daemonDir,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// BaseDir returns the base directory
func (p *Paths) BaseDir() string {
	return p.baseDir
}

// DatasetsDir returns the datasets cache directory
func (p *Paths) DatasetsDir() string {
	return p.datasetsDir
}

// DatasetPath returns the cache path for a specific dataset
func (p *Paths) DatasetPath(code string) string {
	return filepath.Join(p.datasetsDir, code)
}

// SubjectArchivePath returns the cache path of one subject archive
func (p *Paths) SubjectArchivePath(code string, subject int) string {
	return filepath.Join(p.datasetsDir, code, fmt.Sprintf("subject_%d.nbz", subject))
}

// ResultsDir returns the results directory
func (p *Paths) ResultsDir() string {
	return p.resultsDir
}

// ResultsPath returns the results file for an evaluation/paradigm context
func (p *Paths) ResultsPath(context string) string {
	return filepath.Join(p.resultsDir, context+".json")
}

// PipelinesDir returns the pipeline definitions directory
func (p *Paths) PipelinesDir() string {
	return p.pipelinesDir
}

// ModelsDir returns the fitted model dump directory
func (p *Paths) ModelsDir() string {
	return p.modelsDir
}

// ConfigDir returns the config directory
func (p *Paths) ConfigDir() string {
	return p.configDir
}

// ConfigPath returns the main config file path
func (p *Paths) ConfigPath() string {
	return filepath.Join(p.configDir, "config.yaml")
}

// DaemonDir returns the daemon state directory
func (p *Paths) DaemonDir() string {
	return p.daemonDir
}

// CatalogPath returns the dataset catalog file path
func (p *Paths) CatalogPath() string {
	return filepath.Join(p.datasetsDir, "catalog.yaml")
}

// DiskUsage represents disk space usage
type DiskUsage struct {
	Total    int64
	Datasets int64
	Results  int64
}

// GetDiskUsage returns disk usage statistics for neurobench
func (p *Paths) GetDiskUsage() (DiskUsage, error) {
	usage := DiskUsage{
		Datasets: getDirSize(p.datasetsDir),
		Results:  getDirSize(p.resultsDir),
	}
	usage.Total = usage.Datasets + usage.Results

	return usage, nil
}

// getDirSize calculates the total size of a directory
func getDirSize(path string) int64 {
	var size int64

	filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})

	return size
}
