package executor

import "fmt"

// Constructor builds a fresh, unstarted Executor for a given backend name.
type Constructor func() Executor

// Registry maps backend names ("inprocess", "subprocess", "container")
// to constructors, so the session orchestrator can select a backend by
// configuration alone (spec.md §3, §4.G).
type Registry struct {
	ctors map[string]Constructor
}

func NewRegistry() *Registry {
	return &Registry{ctors: map[string]Constructor{}}
}

func (r *Registry) Register(name string, ctor Constructor) {
	r.ctors[name] = ctor
}

func (r *Registry) New(name string) (Executor, error) {
	ctor, ok := r.ctors[name]
	if !ok {
		return nil, fmt.Errorf("unknown executor backend: %s", name)
	}
	return ctor(), nil
}
