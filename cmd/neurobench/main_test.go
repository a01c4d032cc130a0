package main

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestHome(t *testing.T) {
	t.Helper()
	tmpDir := t.TempDir()
	os.Setenv("NEUROBENCH_HOME", tmpDir)
	t.Cleanup(func() {
		os.Unsetenv("NEUROBENCH_HOME")
	})
}

// TestCLIHelp tests the help output of each command
func TestCLIHelp(t *testing.T) {
	setupTestHome(t)

	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{
			name: "root help",
			args: []string{"--help"},
			expected: []string{
				"Neurobench benchmarks EEG decoding pipelines",
				"Available Commands:",
				"run",
				"datasets",
				"download",
				"results",
				"analyze",
				"daemon",
			},
		},
		{
			name: "run help",
			args: []string{"run", "--help"},
			expected: []string{
				"every selected pipeline is trained and scored",
				"--evaluation",
				"--paradigm",
				"--grid-search",
				"--force",
				"--curve-policy",
			},
		},
		{
			name: "results help",
			args: []string{"results", "--help"},
			expected: []string{
				"Results are stored per",
				"show",
				"summary",
				"clear",
			},
		},
		{
			name: "datasets help",
			args: []string{"datasets", "--help"},
			expected: []string{
				"list",
				"info",
				"evict",
			},
		},
		{
			name: "daemon help",
			args: []string{"daemon", "--help"},
			expected: []string{
				"background daemon that executes benchmark runs",
				"start",
				"stop",
				"status",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rootCmd.SetArgs(tt.args)

			var buf bytes.Buffer
			rootCmd.SetOut(&buf)
			rootCmd.SetErr(&buf)

			err := rootCmd.Execute()
			require.NoError(t, err)

			output := buf.String()
			for _, expected := range tt.expected {
				assert.Contains(t, output, expected)
			}
		})
	}
}

func TestVersionCommand(t *testing.T) {
	setupTestHome(t)

	rootCmd.SetArgs([]string{"version"})

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, buf.String(), "neurobench 0.5.0")
	assert.Contains(t, buf.String(), "BSD-3-Clause")
}
