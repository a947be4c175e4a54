package testkit

import "github.com/toy-run/toy/service"

// ServiceSet returns a fresh *service.ServiceSet with every testkit
// service type registered — the minimal registry the executor-level
// integration tests in spec.md §8 drive their six scenarios against.
func ServiceSet() *service.ServiceSet {
	s := service.NewServiceSet()
	s.MustRegister(tickDefinition())
	s.MustRegister(stdoutDefinition())
	s.MustRegister(stdinDefinition())
	s.MustRegister(countDefinition())
	s.MustRegister(broadcastDefinition())
	s.MustRegister(filterDefinition())
	return s
}
