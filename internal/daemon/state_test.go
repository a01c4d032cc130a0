package daemon

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateLoadMissingFile(t *testing.T) {
	s := NewState(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, s.Load())

	stats := s.GetStatistics()
	assert.Equal(t, 1, stats.DaemonStartCount)
	assert.False(t, stats.LastStartTime.IsZero())
}

func TestStateSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s := NewState(path)
	require.NoError(t, s.Load())

	now := time.Now()
	s.AddRun(&Run{ID: "run-1", Status: RunStatusCompleted, Spec: testSpec(), CompletedAt: &now, Rows: 4})
	require.NoError(t, s.Save())

	s2 := NewState(path)
	require.NoError(t, s2.Load())

	run, ok := s2.Runs["run-1"]
	require.True(t, ok)
	assert.Equal(t, RunStatusCompleted, run.Status)
	assert.Equal(t, 4, run.Rows)
	assert.Equal(t, "MotorImagery", run.Spec.Paradigm)
	assert.Equal(t, 2, s2.GetStatistics().DaemonStartCount)
}

func TestStateLoadMarksActiveRunsFailed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s := NewState(path)
	require.NoError(t, s.Load())
	s.AddRun(&Run{ID: "run-1", Status: RunStatusRunning, Spec: testSpec()})
	require.NoError(t, s.Save())

	s2 := NewState(path)
	require.NoError(t, s2.Load())

	run := s2.Runs["run-1"]
	assert.Equal(t, RunStatusFailed, run.Status)
	assert.NotEmpty(t, run.Error)
}

func TestStateLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))

	s := NewState(path)
	require.Error(t, s.Load())
}

func TestStateCleanupOldRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s := NewState(path)
	require.NoError(t, s.Load())

	old := time.Now().Add(-8 * 24 * time.Hour)
	recent := time.Now()
	s.AddRun(&Run{ID: "old", Status: RunStatusCompleted, CompletedAt: &old})
	s.AddRun(&Run{ID: "recent", Status: RunStatusCompleted, CompletedAt: &recent})
	require.NoError(t, s.Save())

	s2 := NewState(path)
	require.NoError(t, s2.Load())
	assert.NotContains(t, s2.Runs, "old")
	assert.Contains(t, s2.Runs, "recent")
}

func TestStateStatistics(t *testing.T) {
	s := NewState(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, s.Load())

	s.AddRun(&Run{ID: "a", Status: RunStatusPending})
	s.UpdateRun(&Run{ID: "a", Status: RunStatusCompleted, Rows: 10})

	stats := s.GetStatistics()
	assert.Equal(t, 1, stats.TotalRuns)
	assert.Equal(t, 10, stats.TotalRows)
}
