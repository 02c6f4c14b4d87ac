package providers

import (
	"fmt"
	"sort"
)

// Registry maps provider names to backends. Populate it before serving;
// lookups are read-only and safe for concurrent use afterwards.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry creates a registry holding ps.
func NewRegistry(ps ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(ps))}
	for _, p := range ps {
		r.Register(p)
	}
	return r
}

// Register adds p, replacing any backend with the same name.
func (r *Registry) Register(p Provider) {
	r.providers[p.Name()] = p
}

// Get returns a provider by name and whether it was found.
func (r *Registry) Get(name string) (Provider, bool) {
	p, ok := r.providers[name]
	return p, ok
}

// MustGet returns a provider by name or panics if not found.
func (r *Registry) MustGet(name string) Provider {
	p, ok := r.providers[name]
	if !ok {
		panic(fmt.Sprintf("provider not found: %s", name))
	}
	return p
}

// List returns the registered provider names, sorted.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
