package processor

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds registered processors keyed by name.
type Registry struct {
	mu         sync.RWMutex
	processors map[string]Processor
}

// NewRegistry creates an empty processor registry.
func NewRegistry() *Registry {
	return &Registry{
		processors: make(map[string]Processor),
	}
}

// Register adds a processor to the registry under the given name.
func (r *Registry) Register(name string, p Processor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.processors[name] = p
}

// Resolve returns the processor registered under name.
func (r *Registry) Resolve(name string) (Processor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.processors[name]
	if !ok {
		return nil, fmt.Errorf("processor %q is not registered", name)
	}
	return p, nil
}

// List returns information about all registered processors, sorted by name
// for a stable API response.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]Info, 0, len(r.processors))
	for _, p := range r.processors {
		infos = append(infos, p.Describe())
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Name < infos[j].Name
	})
	return infos
}
