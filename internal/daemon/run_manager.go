package daemon

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/neurobench/neurobench/internal/benchmark"
)

type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// Run is one benchmark execution tracked by the daemon.
type Run struct {
	ID          string          `json:"id"`
	Status      RunStatus       `json:"status"`
	Spec        *benchmark.Spec `json:"spec"`
	UnitsDone   int             `json:"units_done"`
	UnitsTotal  int             `json:"units_total"`
	Rows        int             `json:"rows"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	Error       string          `json:"error,omitempty"`

	cancel context.CancelFunc
}

// RunManager owns benchmark runs and executes them one at a time so a
// heavy evaluation cannot be doubled up by a second API call.
type RunManager struct {
	mu     sync.RWMutex
	runs   map[string]*Run
	state  *State
	runner func(ctx context.Context, run *Run) (int, error)
	sem    chan struct{}
}

// NewRunManager creates a manager that executes specs with the given
// runner factory. The factory builds a fresh benchmark.Runner per run so
// progress callbacks stay bound to the right Run.
func NewRunManager(state *State, newRunner func(run *Run) *benchmark.Runner) *RunManager {
	m := &RunManager{
		runs:  make(map[string]*Run),
		state: state,
		sem:   make(chan struct{}, 1),
	}
	m.runner = func(ctx context.Context, run *Run) (int, error) {
		rows, err := newRunner(run).Run(ctx, run.Spec)
		return len(rows), err
	}
	return m
}

// Submit registers a run and starts it in the background.
func (m *RunManager) Submit(spec *benchmark.Spec) *Run {
	ctx, cancel := context.WithCancel(context.Background())
	run := &Run{
		ID:        uuid.New().String(),
		Status:    RunStatusPending,
		Spec:      spec,
		StartedAt: time.Now(),
		cancel:    cancel,
	}

	m.mu.Lock()
	m.runs[run.ID] = run
	m.mu.Unlock()
	m.state.AddRun(run)

	go m.execute(ctx, run)
	return run
}

func (m *RunManager) execute(ctx context.Context, run *Run) {
	m.sem <- struct{}{}
	defer func() { <-m.sem }()

	if ctx.Err() != nil {
		m.finish(run, 0, ctx.Err())
		return
	}

	m.setStatus(run.ID, RunStatusRunning)
	rows, err := m.runner(ctx, run)
	m.finish(run, rows, err)
}

func (m *RunManager) finish(run *Run, rows int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	run.CompletedAt = &now
	run.Rows = rows
	switch {
	case err == nil:
		run.Status = RunStatusCompleted
	case run.Status == RunStatusCancelled || err == context.Canceled:
		run.Status = RunStatusCancelled
	default:
		run.Status = RunStatusFailed
		run.Error = err.Error()
	}
	m.state.UpdateRun(run)
}

func (m *RunManager) setStatus(id string, status RunStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if run, ok := m.runs[id]; ok {
		run.Status = status
		m.state.UpdateRun(run)
	}
}

// UpdateProgress records evaluation progress on a run.
func (m *RunManager) UpdateProgress(id string, done, total int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if run, ok := m.runs[id]; ok {
		run.UnitsDone = done
		run.UnitsTotal = total
	}
}

// Get returns a run by id.
func (m *RunManager) Get(id string) (*Run, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[id]
	return run, ok
}

// All returns every run, newest first.
func (m *RunManager) All() []*Run {
	m.mu.RLock()
	defer m.mu.RUnlock()
	runs := make([]*Run, 0, len(m.runs))
	for _, r := range m.runs {
		runs = append(runs, r)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].StartedAt.After(runs[j].StartedAt) })
	return runs
}

// ActiveCount counts pending and running runs.
func (m *RunManager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, r := range m.runs {
		if r.Status == RunStatusPending || r.Status == RunStatusRunning {
			n++
		}
	}
	return n
}

// Cancel stops a pending or running run.
func (m *RunManager) Cancel(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	run, ok := m.runs[id]
	if !ok {
		return fmt.Errorf("run not found: %s", id)
	}
	if run.Status != RunStatusPending && run.Status != RunStatusRunning {
		return fmt.Errorf("run is not active")
	}

	run.Status = RunStatusCancelled
	run.cancel()
	m.state.UpdateRun(run)
	return nil
}

// CleanupOldRuns drops finished runs older than the cutoff.
func (m *RunManager) CleanupOldRuns(olderThan time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-olderThan)
	for id, run := range m.runs {
		if run.Status == RunStatusPending || run.Status == RunStatusRunning {
			continue
		}
		if run.CompletedAt != nil && run.CompletedAt.Before(cutoff) {
			delete(m.runs, id)
			m.state.RemoveRun(id)
		}
	}
}
