package service

import "fmt"

// ServiceSet maps ServiceType to its Definition. It is the Registry from
// spec.md §4.3 — graph validation rule 2 resolves every node's
// service_type against one of these before a task can run.
type ServiceSet struct {
	defs map[Type]Definition
}

// NewServiceSet creates an empty registry.
func NewServiceSet() *ServiceSet {
	return &ServiceSet{defs: make(map[Type]Definition)}
}

// Register adds one service Definition, overwriting any prior
// registration for the same Type.
func (s *ServiceSet) Register(d Definition) error {
	if err := d.Validate(); err != nil {
		return err
	}
	s.defs[d.Type] = d
	return nil
}

// MustRegister is Register but panics on error — for use in package-level
// var initializers where a malformed built-in Definition is a programming
// error, not a runtime one.
func (s *ServiceSet) MustRegister(d Definition) {
	if err := s.Register(d); err != nil {
		panic(err)
	}
}

// Get resolves a ServiceType to its Definition.
func (s *ServiceSet) Get(t Type) (Definition, error) {
	d, ok := s.defs[t]
	if !ok {
		return Definition{}, fmt.Errorf("service: unknown service type %q", t)
	}
	return d, nil
}

// Has reports whether t is registered, without the error-construction
// cost of Get — graph validation calls this once per node.
func (s *ServiceSet) Has(t Type) bool {
	_, ok := s.defs[t]
	return ok
}

// Types lists every registered ServiceType, in no particular order.
func (s *ServiceSet) Types() []Type {
	out := make([]Type, 0, len(s.defs))
	for t := range s.defs {
		out = append(out, t)
	}
	return out
}

// Layer merges another ServiceSet's definitions into this one, returning
// s for chaining: registry.Layer(core).Layer(plugins). Later layers
// overwrite earlier ones for the same Type, so a caller can shadow a
// built-in with a test double by layering it last.
func (s *ServiceSet) Layer(other *ServiceSet) *ServiceSet {
	for t, d := range other.defs {
		s.defs[t] = d
	}
	return s
}
