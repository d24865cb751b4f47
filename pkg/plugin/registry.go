package plugin

import (
	"fmt"
	"sync"

	"github.com/kiosk404/pluginkit/pkg/apperr"
)

// Factory constructs a fresh Plugin instance attached to host.
type Factory func(host Host) Plugin

// Descriptor is the process-wide identity of a registered plugin type
// (spec.md §3 "Plugin descriptor"): name, factory, and declared
// dependency names.
type Descriptor struct {
	Name         string
	Dependencies []string
	Factory      Factory
}

// Registry is a process-wide, thread-safe directory of plugin
// descriptors. It is read-only after the embedder finishes calling
// Register (spec.md §5: "the registry is read-only after initialize
// returns; registration should happen before any application exists").
//
// Grounded on echoryn/internal/hivemind/service/llm/provider/registry.go's
// Registry{mu sync.RWMutex; registry map[string]Factory}.
type Registry struct {
	mu          sync.RWMutex
	descriptors map[string]*Descriptor
}

// NewRegistry returns an empty registry. Most embedders should use the
// process-wide default registry (Register/Find/MustRegister below)
// rather than constructing their own, but a private Registry is useful
// in tests that want a clean slate per test case.
func NewRegistry() *Registry {
	return &Registry{descriptors: make(map[string]*Descriptor)}
}

// Register idempotently records a plugin descriptor: registering the
// same name twice is a no-op as long as the dependency list matches,
// since appbase-style frameworks re-register the same plugin types
// across sequentially-constructed applications in the same process
// (spec.md §4.3, §9 "registrations must be idempotent").
func (r *Registry) Register(name string, dependencies []string, factory Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.descriptors[name]; ok {
		if !sameDeps(existing.Dependencies, dependencies) {
			return apperr.Wrap(apperr.KindConfig, "plugin.Register",
				fmt.Errorf("plugin %q already registered with different dependencies", name))
		}
		return nil
	}
	r.descriptors[name] = &Descriptor{
		Name:         name,
		Dependencies: append([]string(nil), dependencies...),
		Factory:      factory,
	}
	return nil
}

// MustRegister panics if Register returns an error.
func (r *Registry) MustRegister(name string, dependencies []string, factory Factory) {
	if err := r.Register(name, dependencies, factory); err != nil {
		panic(err)
	}
}

// Find looks up a descriptor by name.
func (r *Registry) Find(name string) (*Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.descriptors[name]
	return d, ok
}

// All returns every registered descriptor, used by the options
// aggregator (C5) to collect option contributions from every
// registered — not just activated — plugin.
func (r *Registry) All() []*Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Descriptor, 0, len(r.descriptors))
	for _, d := range r.descriptors {
		out = append(out, d)
	}
	return out
}

func sameDeps(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// global is the process-wide registry used by Register/Find/MustRegister.
var global = NewRegistry()

// Register records a plugin descriptor in the process-wide registry.
// Safe to call before any application exists (spec.md §4.3).
func Register(name string, dependencies []string, factory Factory) error {
	return global.Register(name, dependencies, factory)
}

// MustRegister panics if Register returns an error.
func MustRegister(name string, dependencies []string, factory Factory) {
	global.MustRegister(name, dependencies, factory)
}

// Find looks up a descriptor in the process-wide registry.
func Find(name string) (*Descriptor, bool) {
	return global.Find(name)
}

// All returns every descriptor in the process-wide registry.
func All() []*Descriptor {
	return global.All()
}

// Default returns the process-wide registry, for embedders that want to
// pass it explicitly to an Engine rather than rely on package-level
// Register/Find.
func Default() *Registry {
	return global
}
