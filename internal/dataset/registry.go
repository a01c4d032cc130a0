package dataset

import (
	"fmt"
	"sort"
	"sync"
)

// Registry is the named catalog of datasets known to this installation.
type Registry struct {
	mu       sync.RWMutex
	datasets map[string]Dataset
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		datasets: make(map[string]Dataset),
	}
}

// Register adds a dataset. Re-registering a code replaces the entry.
func (r *Registry) Register(d Dataset) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.datasets[d.Code()] = d
}

// Get retrieves a dataset by code.
func (r *Registry) Get(code string) (Dataset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.datasets[code]
	if !ok {
		return nil, fmt.Errorf("dataset %s not found in registry", code)
	}
	return d, nil
}

// List returns all registered dataset codes, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	codes := make([]string, 0, len(r.datasets))
	for code := range r.datasets {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// All returns every registered dataset, sorted by code.
func (r *Registry) All() []Dataset {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Dataset, 0, len(r.datasets))
	for _, d := range r.datasets {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code() < out[j].Code() })
	return out
}

// RegisterBuiltins adds the synthetic datasets that ship with the tool, one
// per paradigm family.
func (r *Registry) RegisterBuiltins() {
	r.Register(NewFakeDataset(FakeConfig{Paradigm: "imagery", Events: []string{"left_hand", "right_hand"}}))
	r.Register(NewFakeDataset(FakeConfig{Paradigm: "p300", Events: []string{"Target", "NonTarget"}}))
	r.Register(NewFakeDataset(FakeConfig{Paradigm: "ssvep", Events: []string{"13", "15", "17"}}))
}
