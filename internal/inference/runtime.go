package inference

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/ironsheep/ocr-engine/internal/logger"
)

// The process-wide worker pool is created on first use and torn down by
// Shutdown. A later call to ForEach after Shutdown creates a fresh pool.
var (
	poolMu      sync.Mutex
	workerPool  *ants.Pool
	poolSize    = runtime.NumCPU()
	hooksMu     sync.Mutex
	shutdownFns []func()
)

// SetWorkers sets the pool size. A running pool is resized in place.
// Values <= 0 select runtime.NumCPU().
func SetWorkers(n int) {
	if n <= 0 {
		n = runtime.NumCPU()
	}
	poolMu.Lock()
	defer poolMu.Unlock()
	resize(n)
}

// EnsureWorkers grows the pool to at least n workers and never shrinks it,
// so engines created with different sizes end up sharing the largest one.
// Values <= 0 select runtime.NumCPU().
func EnsureWorkers(n int) {
	if n <= 0 {
		n = runtime.NumCPU()
	}
	poolMu.Lock()
	defer poolMu.Unlock()
	if n > poolSize {
		resize(n)
	}
}

// Workers reports the configured pool size.
func Workers() int {
	poolMu.Lock()
	defer poolMu.Unlock()
	return poolSize
}

// resize must be called with poolMu held.
func resize(n int) {
	poolSize = n
	if workerPool != nil && !workerPool.IsClosed() {
		workerPool.Tune(n)
	}
}

func getPool() (*ants.Pool, error) {
	poolMu.Lock()
	defer poolMu.Unlock()
	if workerPool != nil && !workerPool.IsClosed() {
		return workerPool, nil
	}
	p, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, fmt.Errorf("create inference pool: %w", err)
	}
	workerPool = p

	log := logger.WithComponent("inference")
	log.Debug().Int("workers", poolSize).Msg("worker pool created")
	return p, nil
}

// ForEach calls fn(i) for i in [0, n) on the worker pool and waits for all
// calls to finish. Each call owns index i, so callers write results into
// a pre-sized slice and keep input order. A task that cannot be submitted
// runs on the calling goroutine. The error of the lowest failing index is
// returned; panics in fn are reported as errors.
func ForEach(n int, fn func(i int) error) error {
	if n == 0 {
		return nil
	}
	errs := make([]error, n)
	run := func(i int) {
		defer func() {
			if r := recover(); r != nil {
				errs[i] = fmt.Errorf("task %d panicked: %v", i, r)
			}
		}()
		errs[i] = fn(i)
	}

	p, err := getPool()
	if err != nil || n == 1 {
		for i := 0; i < n; i++ {
			run(i)
		}
		return firstError(errs)
	}

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		idx := i
		wg.Add(1)
		task := func() {
			defer wg.Done()
			run(idx)
		}
		if err := p.Submit(task); err != nil {
			task()
		}
	}
	wg.Wait()
	return firstError(errs)
}

func firstError(errs []error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// OnShutdown registers fn to run on every Shutdown call. Hooks release
// backend state owned by other packages and must be idempotent.
func OnShutdown(fn func()) {
	hooksMu.Lock()
	shutdownFns = append(shutdownFns, fn)
	hooksMu.Unlock()
}

// Shutdown releases the worker pool and runs the registered hooks. It is
// safe to call repeatedly and before any pool exists.
func Shutdown() {
	poolMu.Lock()
	p := workerPool
	workerPool = nil
	poolMu.Unlock()

	if p != nil && !p.IsClosed() {
		p.Release()
		log := logger.WithComponent("inference")
		log.Debug().Msg("worker pool released")
	}

	hooksMu.Lock()
	fns := make([]func(), len(shutdownFns))
	copy(fns, shutdownFns)
	hooksMu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// Running reports whether the worker pool currently exists.
func Running() bool {
	poolMu.Lock()
	defer poolMu.Unlock()
	return workerPool != nil && !workerPool.IsClosed()
}
