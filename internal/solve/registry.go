package solve

import (
	"fmt"
	"sort"
	"sync"
)

// Factory builds a Solver configured with engine-specific options from the
// run settings.
type Factory func(options map[string]any) (Solver, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register makes an engine available under the given name. It panics if
// the name is already taken or the factory is nil, mirroring how database
// drivers register: both are wiring bugs, not runtime conditions.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if factory == nil {
		panic("solve: Register factory is nil")
	}
	if _, dup := registry[name]; dup {
		panic("solve: Register called twice for engine " + name)
	}
	registry[name] = factory
}

// New builds the named engine. Unknown names report the registered
// alternatives, which is usually the whole story when a config names an
// engine the build does not carry.
func New(name string, options map[string]any) (Solver, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("solve: unknown engine %q (registered: %v)", name, Engines())
	}
	return factory(options)
}

// Engines returns the sorted names of all registered engines.
func Engines() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// unregister removes an engine. Tests use it to keep the global registry
// clean between cases.
func unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(registry, name)
}
