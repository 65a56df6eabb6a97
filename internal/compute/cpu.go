package compute

import (
	"runtime"
	"sync"
)

// DefaultMinChunk is the smallest chunk handed to a worker; passes shorter
// than this run inline.
const DefaultMinChunk = 64

type CPUBackend struct {
	workers  int
	minChunk int
}

func NewCPUBackend(workers int) *CPUBackend {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &CPUBackend{
		workers:  workers,
		minChunk: DefaultMinChunk,
	}
}

// WithMinChunk overrides the inline threshold, mostly so tests can force
// small passes onto several goroutines.
func (c *CPUBackend) WithMinChunk(n int) *CPUBackend {
	if n < 1 {
		n = 1
	}
	c.minChunk = n
	return c
}

func (c *CPUBackend) Name() string { return "cpu" }
func (c *CPUBackend) Workers() int { return c.workers }
func (c *CPUBackend) Close()       {}

func (c *CPUBackend) Dispatch(n int, fn func(start, end int)) {
	if n <= 0 {
		return
	}
	if n <= c.minChunk || c.workers <= 1 {
		fn(0, n)
		return
	}

	workers := c.workers
	if n/c.minChunk < workers {
		workers = n / c.minChunk
	}
	if workers < 1 {
		workers = 1
	}

	chunkSize := (n + workers - 1) / workers

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		start := w * chunkSize
		if start >= n {
			break
		}
		end := start + chunkSize
		if end > n {
			end = n
		}

		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}

	wg.Wait()
}
