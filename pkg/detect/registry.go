package detect

import (
	"fmt"
	"log"
	"sync"
)

// Factory constructs a detector. Factories run at most once per process;
// the registry is the single owner of every instance it creates.
type Factory func() (Detector, error)

// Registry holds all detector instances and answers capability-filtered,
// deterministic selection. It is constructed once at process start and
// shared read-only across concurrent scans; registration happens during
// startup, before any scan runs.
type Registry struct {
	mu     sync.RWMutex
	names  []string // registration order, drives selection order
	byName map[string]Detector
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Detector)}
}

// Register instantiates the detector via its factory and records it under
// name. Registering the same name twice is a programming error.
func (r *Registry) Register(name string, factory Factory) error {
	det, err := factory()
	if err != nil {
		return fmt.Errorf("construct detector %q: %w", name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.byName[name]; dup {
		return fmt.Errorf("detector %q already registered", name)
	}
	r.names = append(r.names, name)
	r.byName[name] = det
	log.Printf("[REGISTRY] Registered detector: %s (%v)", name, capsList(det.Capabilities()))
	return nil
}

// MustRegister panics on registration failure; used for built-in detectors
// wired at startup.
func (r *Registry) MustRegister(name string, factory Factory) {
	if err := r.Register(name, factory); err != nil {
		panic(err)
	}
}

// Get returns the detector registered under name, or nil.
func (r *Registry) Get(name string) Detector {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byName[name]
}

// Len returns the number of registered detectors.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.names)
}

// SelectFor returns, in registration order, every detector whose
// capability set intersects the requested set and whose name is in
// enabled (an empty enabled set means "all"). Selection is deterministic:
// identical arguments always yield the identical slice.
func (r *Registry) SelectFor(requested CapabilitySet, enabled map[string]bool) []Detector {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Detector
	for _, name := range r.names {
		det := r.byName[name]
		if !det.Capabilities().Intersects(requested) {
			continue
		}
		if len(enabled) > 0 && !enabled[name] {
			continue
		}
		out = append(out, det)
	}
	return out
}

func capsList(s CapabilitySet) []Capability {
	var out []Capability
	for _, c := range []Capability{CapabilityVisual, CapabilityAudio, CapabilityText} {
		if s[c] {
			out = append(out, c)
		}
	}
	return out
}
