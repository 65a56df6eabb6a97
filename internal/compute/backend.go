package compute

import "fmt"

// Backend executes one pass of independent per-element tasks. Dispatch calls
// fn over disjoint [start, end) chunks covering [0, n) and returns only after
// every chunk has finished, which is the barrier between solver passes.
type Backend interface {
	Name() string
	Workers() int
	Dispatch(n int, fn func(start, end int))
	Close()
}

// AutoSelectBackend picks the goroutine backend when more than one worker is
// usable. workers <= 0 means one worker per CPU.
func AutoSelectBackend(workers int) Backend {
	cpu := NewCPUBackend(workers)
	if cpu.Workers() > 1 {
		return cpu
	}
	return NewSerialBackend()
}

// ByName resolves a backend by its CLI/config name.
func ByName(name string, workers int) (Backend, error) {
	switch name {
	case "", "auto":
		return AutoSelectBackend(workers), nil
	case "cpu":
		return NewCPUBackend(workers), nil
	case "serial":
		return NewSerialBackend(), nil
	}
	return nil, fmt.Errorf("unknown backend: %s", name)
}

type SerialBackend struct{}

func NewSerialBackend() *SerialBackend { return &SerialBackend{} }

func (s *SerialBackend) Name() string { return "serial" }
func (s *SerialBackend) Workers() int { return 1 }
func (s *SerialBackend) Close()       {}

func (s *SerialBackend) Dispatch(n int, fn func(start, end int)) {
	if n <= 0 {
		return
	}
	fn(0, n)
}
