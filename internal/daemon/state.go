package daemon

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// State is the daemon's persisted view of past and current runs. It is
// saved periodically and on shutdown so a restarted daemon can report the
// history of completed benchmarks.
type State struct {
	mu       sync.RWMutex
	filePath string

	StartTime  time.Time       `json:"start_time"`
	Runs       map[string]*Run `json:"runs"`
	Statistics Statistics      `json:"statistics"`
	LastSave   time.Time       `json:"last_save"`
}

type Statistics struct {
	TotalRuns        int       `json:"total_runs"`
	TotalRows        int       `json:"total_rows"`
	DaemonStartCount int       `json:"daemon_start_count"`
	LastStartTime    time.Time `json:"last_start_time"`
}

func NewState(filePath string) *State {
	return &State{
		filePath:  filePath,
		StartTime: time.Now(),
		Runs:      make(map[string]*Run),
	}
}

func (s *State) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			// no previous state, start fresh
			s.Statistics.DaemonStartCount = 1
			s.Statistics.LastStartTime = time.Now()
			return nil
		}
		return fmt.Errorf("failed to read state file: %w", err)
	}

	var loaded State
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("failed to unmarshal state: %w", err)
	}

	currentStartTime := s.StartTime
	s.Runs = loaded.Runs
	if s.Runs == nil {
		s.Runs = make(map[string]*Run)
	}
	s.Statistics = loaded.Statistics

	s.StartTime = currentStartTime
	s.Statistics.DaemonStartCount++
	s.Statistics.LastStartTime = currentStartTime

	// runs that were active when the daemon died cannot resume
	for _, run := range s.Runs {
		if run.Status == RunStatusPending || run.Status == RunStatusRunning {
			run.Status = RunStatusFailed
			run.Error = "daemon stopped before the run finished"
		}
	}
	s.cleanupOldRuns()

	return nil
}

func (s *State) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.LastSave = time.Now()

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	tempFile := s.filePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tempFile, s.filePath); err != nil {
		return fmt.Errorf("failed to rename state file: %w", err)
	}

	return nil
}

func (s *State) AddRun(run *Run) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Runs[run.ID] = run
	s.Statistics.TotalRuns++
}

func (s *State) UpdateRun(run *Run) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Runs[run.ID] = run
	if run.Status == RunStatusCompleted {
		s.Statistics.TotalRows += run.Rows
	}
}

func (s *State) RemoveRun(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.Runs, id)
}

func (s *State) cleanupOldRuns() {
	cutoff := time.Now().Add(-7 * 24 * time.Hour)

	for id, run := range s.Runs {
		if run.Status == RunStatusPending || run.Status == RunStatusRunning {
			continue
		}
		if run.CompletedAt != nil && run.CompletedAt.Before(cutoff) {
			delete(s.Runs, id)
		}
	}
}

func (s *State) GetStatistics() Statistics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.Statistics
}
