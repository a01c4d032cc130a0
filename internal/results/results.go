package results

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/neurobench/neurobench/pkg/types"
)

// Store persists evaluation results for one benchmark context (a
// paradigm/evaluation pair) as a single JSON file. Rows are keyed by
// pipeline digest so edited pipeline definitions invalidate their cached
// scores. Writes go through a temp file rename.
type Store struct {
	mu   sync.Mutex
	path string
	data fileData
}

type fileData struct {
	Version int               `json:"version"`
	Digests map[string]string `json:"digests"` // pipeline name -> definition digest
	Rows    []types.Result    `json:"rows"`
}

const storeVersion = 1

// Open loads the store at path, starting empty if the file does not exist.
func Open(path string) (*Store, error) {
	s := &Store{
		path: path,
		data: fileData{Version: storeVersion, Digests: make(map[string]string)},
	}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read results: %w", err)
	}
	if err := json.Unmarshal(raw, &s.data); err != nil {
		return nil, fmt.Errorf("failed to parse results: %w", err)
	}
	if s.data.Digests == nil {
		s.data.Digests = make(map[string]string)
	}
	return s, nil
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Add merges new rows into the store and saves it. A changed digest for a
// pipeline drops that pipeline's previous rows first; unchanged pipelines
// have rows for the same (dataset, subject, session) replaced.
func (s *Store) Add(rows []types.Result, digests map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for name, digest := range digests {
		if prev, ok := s.data.Digests[name]; ok && prev != digest {
			s.dropPipeline(name)
		}
		s.data.Digests[name] = digest
	}

	for _, row := range rows {
		s.replaceRow(row)
	}
	return s.save()
}

func (s *Store) dropPipeline(name string) {
	kept := s.data.Rows[:0]
	for _, r := range s.data.Rows {
		if r.Pipeline != name {
			kept = append(kept, r)
		}
	}
	s.data.Rows = kept
}

func (s *Store) replaceRow(row types.Result) {
	for i, r := range s.data.Rows {
		if r.Pipeline == row.Pipeline && r.Dataset == row.Dataset &&
			r.Subject == row.Subject && r.Session == row.Session &&
			r.DataSize == row.DataSize && r.Permutation == row.Permutation {
			s.data.Rows[i] = row
			return
		}
	}
	s.data.Rows = append(s.data.Rows, row)
}

// Filter selects rows. Zero values match everything.
type Filter struct {
	Dataset  string
	Pipeline string
	Subject  int
}

// Results returns matching rows in a stable order.
func (s *Store) Results(f Filter) []types.Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []types.Result
	for _, r := range s.data.Rows {
		if f.Dataset != "" && r.Dataset != f.Dataset {
			continue
		}
		if f.Pipeline != "" && r.Pipeline != f.Pipeline {
			continue
		}
		if f.Subject != 0 && r.Subject != f.Subject {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Dataset != b.Dataset {
			return a.Dataset < b.Dataset
		}
		if a.Pipeline != b.Pipeline {
			return a.Pipeline < b.Pipeline
		}
		if a.Subject != b.Subject {
			return a.Subject < b.Subject
		}
		return a.Session < b.Session
	})
	return out
}

// NotYetComputed returns, per candidate pipeline, the subjects that still
// need evaluating on a dataset. Pipelines whose digest changed since the
// cached rows were written count as entirely uncomputed.
func (s *Store) NotYetComputed(candidates map[string]string, dataset string, subjects []int) map[string][]int {
	s.mu.Lock()
	defer s.mu.Unlock()

	done := make(map[string]map[int]bool)
	for _, r := range s.data.Rows {
		if r.Dataset != dataset {
			continue
		}
		if done[r.Pipeline] == nil {
			done[r.Pipeline] = make(map[int]bool)
		}
		done[r.Pipeline][r.Subject] = true
	}

	out := make(map[string][]int)
	for name, digest := range candidates {
		stale := s.data.Digests[name] != digest
		var missing []int
		for _, subj := range subjects {
			if stale || !done[name][subj] {
				missing = append(missing, subj)
			}
		}
		if len(missing) > 0 {
			out[name] = missing
		}
	}
	return out
}

// Len returns the stored row count.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data.Rows)
}

// Clear removes all rows and digests and saves the empty store.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Rows = nil
	s.data.Digests = make(map[string]string)
	return s.save()
}

func (s *Store) save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create results directory: %w", err)
	}
	data, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to save results: %w", err)
	}
	return nil
}

// ToTable renders rows as an aligned text table.
func ToTable(rows []types.Result) string {
	if len(rows) == 0 {
		return "no results\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-24s %-28s %7s %-10s %8s %8s\n",
		"DATASET", "PIPELINE", "SUBJECT", "SESSION", "SCORE", "TIME")
	for _, r := range rows {
		fmt.Fprintf(&b, "%-24s %-28s %7d %-10s %8.3f %7.2fs\n",
			r.Dataset, r.Pipeline, r.Subject, r.Session, r.Score, r.Time)
	}
	return b.String()
}
