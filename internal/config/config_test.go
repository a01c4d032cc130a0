package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetDefaultBaseDir(t *testing.T) {
	tests := []struct {
		name     string
		envVar   string
		expected string
	}{
		{
			name:     "with environment variable",
			envVar:   "/custom/path",
			expected: "/custom/path",
		},
		{
			name:     "without environment variable",
			envVar:   "",
			expected: filepath.Join(os.Getenv("HOME"), ".neurobench"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Save original env
			originalEnv := os.Getenv("NEUROBENCH_HOME")
			defer os.Setenv("NEUROBENCH_HOME", originalEnv)

			os.Setenv("NEUROBENCH_HOME", tt.envVar)
			result := getDefaultBaseDir()

			if tt.envVar != "" {
				assert.Equal(t, tt.expected, result)
			} else {
				assert.Contains(t, result, ".neurobench")
			}
		})
	}
}

func TestExpandPath(t *testing.T) {
	home := os.Getenv("HOME")
	if home == "" {
		home = os.Getenv("USERPROFILE") // Windows
	}

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "expand tilde",
			input:    "~/test",
			expected: filepath.Join(home, "test"),
		},
		{
			name:     "expand environment variable",
			input:    "$HOME/test",
			expected: filepath.Join(home, "test"),
		},
		{
			name:     "no expansion needed",
			input:    "/absolute/path",
			expected: "/absolute/path",
		},
		{
			name:     "empty path",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := expandPath(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestSetDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	// Test storage defaults
	assert.NotEmpty(t, v.Get("storage.base_dir"))
	assert.Empty(t, v.Get("storage.datasets_dir"))
	assert.Empty(t, v.Get("storage.results_dir"))

	// Test download defaults
	assert.Equal(t, int64(0), v.GetInt64("download.rate_limit"))
	assert.Equal(t, 3, v.GetInt("download.retries"))
	assert.Equal(t, 1800, v.GetInt("download.timeout"))
	assert.True(t, v.GetBool("download.verify_hashes"))

	// Test evaluation defaults
	assert.Equal(t, 5, v.GetInt("evaluation.folds"))
	assert.Equal(t, int64(42), v.GetInt64("evaluation.seed"))
	assert.Greater(t, v.GetInt("evaluation.workers"), 0)

	// Test daemon defaults
	assert.Equal(t, 7624, v.GetInt("daemon.port"))
	assert.False(t, v.GetBool("daemon.auto_start"))

	// Test UI defaults
	assert.True(t, v.GetBool("ui.progress_bar"))
	assert.False(t, v.GetBool("ui.verbose"))
	assert.Equal(t, "text", v.GetString("ui.output_format"))
}

func TestInitializeWithDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	originalEnv := os.Getenv("NEUROBENCH_HOME")
	defer os.Setenv("NEUROBENCH_HOME", originalEnv)
	os.Setenv("NEUROBENCH_HOME", tmpDir)

	require.NoError(t, Initialize())

	c := Get()
	assert.Equal(t, tmpDir, c.Storage.BaseDir)
	assert.Equal(t, filepath.Join(tmpDir, "datasets"), c.Storage.DatasetsDir)
	assert.Equal(t, filepath.Join(tmpDir, "results"), c.Storage.ResultsDir)
	assert.Equal(t, filepath.Join(tmpDir, "pipelines"), c.Storage.PipelinesDir)
	assert.Equal(t, 5, c.Evaluation.Folds)

	require.NoError(t, CreateAllDirs())
	info, err := os.Stat(c.Storage.DatasetsDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
