package daemon

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/neurobench/neurobench/internal/benchmark"
	"github.com/neurobench/neurobench/internal/dataset"
	"github.com/neurobench/neurobench/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testState(t *testing.T) *State {
	t.Helper()
	return NewState(filepath.Join(t.TempDir(), "state.json"))
}

func testSpec() *benchmark.Spec {
	return &benchmark.Spec{Evaluation: "WithinSession", Paradigm: "MotorImagery", Seed: 42}
}

// realRunner wires a manager to an in-memory dataset and pipeline so runs
// exercise the full benchmark path.
func realRunner(t *testing.T, state *State) *RunManager {
	t.Helper()

	datasets := dataset.NewRegistry()
	datasets.Register(dataset.NewFakeDataset(dataset.FakeConfig{
		Paradigm:  "imagery",
		NSubjects: 1,
		NSessions: 1,
		NRuns:     1,
	}))

	pipes := pipeline.NewRegistry()
	def, err := pipeline.ParseDefinition([]byte(`
name: cov+mdm
pipeline:
  - name: Covariances
  - name: MDM
    parameters:
      metric: logeuclid
`))
	require.NoError(t, err)
	require.NoError(t, pipes.Register(def))

	var m *RunManager
	m = NewRunManager(state, func(run *Run) *benchmark.Runner {
		return &benchmark.Runner{
			Datasets:  datasets,
			Pipelines: pipes,
			Progress: func(done, total int) {
				m.UpdateProgress(run.ID, done, total)
			},
		}
	})
	return m
}

func waitForStatus(t *testing.T, m *RunManager, id string, want RunStatus) *Run {
	t.Helper()
	require.Eventually(t, func() bool {
		run, ok := m.Get(id)
		return ok && run.Status == want
	}, 30*time.Second, 10*time.Millisecond)
	run, _ := m.Get(id)
	return run
}

func TestRunManagerCompletesRun(t *testing.T) {
	m := realRunner(t, testState(t))

	run := m.Submit(testSpec())
	assert.NotEmpty(t, run.ID)

	done := waitForStatus(t, m, run.ID, RunStatusCompleted)
	assert.Equal(t, 1, done.Rows)
	assert.Equal(t, done.UnitsTotal, done.UnitsDone)
	assert.NotNil(t, done.CompletedAt)
	assert.Empty(t, done.Error)
}

func TestRunManagerFailedRun(t *testing.T) {
	m := realRunner(t, testState(t))

	run := m.Submit(&benchmark.Spec{Evaluation: "WithinSession", Paradigm: "Bogus"})
	done := waitForStatus(t, m, run.ID, RunStatusFailed)
	assert.Contains(t, done.Error, "unknown paradigm")
}

func TestRunManagerCancel(t *testing.T) {
	state := testState(t)
	m := NewRunManager(state, nil)
	block := make(chan struct{})
	m.runner = func(ctx context.Context, run *Run) (int, error) {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-block:
			return 1, nil
		}
	}

	run := m.Submit(testSpec())
	waitForStatus(t, m, run.ID, RunStatusRunning)

	require.NoError(t, m.Cancel(run.ID))
	done := waitForStatus(t, m, run.ID, RunStatusCancelled)
	assert.NotNil(t, done.CompletedAt)

	require.Error(t, m.Cancel(run.ID))
	require.Error(t, m.Cancel("missing"))
	close(block)
}

func TestRunManagerSerializesRuns(t *testing.T) {
	state := testState(t)
	m := NewRunManager(state, nil)
	release := make(chan struct{})
	m.runner = func(ctx context.Context, run *Run) (int, error) {
		<-release
		return 0, nil
	}

	first := m.Submit(testSpec())
	waitForStatus(t, m, first.ID, RunStatusRunning)
	second := m.Submit(testSpec())

	// the second run waits for the first to release the slot
	time.Sleep(20 * time.Millisecond)
	secondRun, _ := m.Get(second.ID)
	assert.Equal(t, RunStatusPending, secondRun.Status)
	assert.Equal(t, 2, m.ActiveCount())

	close(release)
	waitForStatus(t, m, first.ID, RunStatusCompleted)
	waitForStatus(t, m, second.ID, RunStatusCompleted)
	assert.Equal(t, 0, m.ActiveCount())
}

func TestRunManagerAllNewestFirst(t *testing.T) {
	state := testState(t)
	m := NewRunManager(state, nil)
	m.runner = func(ctx context.Context, run *Run) (int, error) { return 0, nil }

	a := m.Submit(testSpec())
	waitForStatus(t, m, a.ID, RunStatusCompleted)
	time.Sleep(5 * time.Millisecond)
	b := m.Submit(testSpec())
	waitForStatus(t, m, b.ID, RunStatusCompleted)

	all := m.All()
	require.Len(t, all, 2)
	assert.Equal(t, b.ID, all[0].ID)
}

func TestRunManagerCleanup(t *testing.T) {
	state := testState(t)
	m := NewRunManager(state, nil)
	m.runner = func(ctx context.Context, run *Run) (int, error) { return 0, errors.New("boom") }

	run := m.Submit(testSpec())
	waitForStatus(t, m, run.ID, RunStatusFailed)

	m.CleanupOldRuns(time.Hour)
	_, ok := m.Get(run.ID)
	assert.True(t, ok)

	m.CleanupOldRuns(0)
	_, ok = m.Get(run.ID)
	assert.False(t, ok)
}
