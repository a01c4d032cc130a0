package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/neurobench/neurobench/pkg/types"
)

// Registry holds pipeline definitions by name.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]*Definition
}

func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]*Definition)}
}

// Register adds a definition, rejecting duplicate names.
func (r *Registry) Register(def *Definition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.defs[def.Name]; exists {
		return fmt.Errorf("pipeline %s already registered", def.Name)
	}
	r.defs[def.Name] = def
	return nil
}

// Get returns a definition by name.
func (r *Registry) Get(name string) (*Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[name]
	if !ok {
		return nil, fmt.Errorf("pipeline %s not found", name)
	}
	return def, nil
}

// List returns registered pipeline names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.defs))
	for n := range r.defs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// All returns all definitions, sorted by name.
func (r *Registry) All() []*Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]*Definition, 0, len(r.defs))
	for _, d := range r.defs {
		defs = append(defs, d)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// ForParadigm returns the definitions that apply to a paradigm, sorted.
func (r *Registry) ForParadigm(name string) []*Definition {
	var out []*Definition
	for _, d := range r.All() {
		if d.SupportsParadigm(name) {
			out = append(out, d)
		}
	}
	return out
}

// LoadDir registers every .yml/.yaml file in a directory. Returns the
// number of pipelines loaded.
func (r *Registry) LoadDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read pipeline directory: %w", err)
	}

	loaded := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".yml" && ext != ".yaml" {
			continue
		}
		def, err := LoadDefinition(filepath.Join(dir, e.Name()))
		if err != nil {
			return loaded, err
		}
		if err := r.Register(def); err != nil {
			return loaded, err
		}
		loaded++
	}
	return loaded, nil
}

// Digest returns a stable content hash of a definition, used to detect
// configuration changes when deciding whether cached results still apply.
func (d *Definition) Digest() (string, error) {
	return types.DigestJSON(d)
}
