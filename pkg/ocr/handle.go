package ocr

import (
	"sync"

	"github.com/ironsheep/ocr-engine/internal/engine"
)

// Handle identifies an engine created by one of the Create functions.
type Handle uint64

// NullHandle is returned when engine creation fails. No call accepts it.
const NullHandle Handle = 0

// Handles are never reused, so a destroyed handle stays invalid even after
// new engines are created.
var (
	registryMu sync.Mutex
	registry   = make(map[Handle]*engine.Engine)
	lastHandle Handle
)

func register(e *engine.Engine) Handle {
	registryMu.Lock()
	defer registryMu.Unlock()
	lastHandle++
	registry[lastHandle] = e
	return lastHandle
}

func lookup(h Handle) (*engine.Engine, bool) {
	registryMu.Lock()
	defer registryMu.Unlock()
	e, ok := registry[h]
	return e, ok
}

func unregister(h Handle) (*engine.Engine, bool) {
	registryMu.Lock()
	defer registryMu.Unlock()
	e, ok := registry[h]
	if ok {
		delete(registry, h)
	}
	return e, ok
}

// liveEngines reports how many handles are currently registered.
func liveEngines() int {
	registryMu.Lock()
	defer registryMu.Unlock()
	return len(registry)
}
