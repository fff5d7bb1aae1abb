package database

import "sync"

// BusyHandler is invoked from the statement retry loop whenever a driver
// error classifies as KindBusy. It may sleep, log, or signal abort by
// returning false.
type BusyHandler func(attempt int) bool

// ProgressHandler is invoked periodically during a long-running statement.
// Returning false aborts the statement with KindInterrupted.
type ProgressHandler func() bool

// handlerRegistry is a Node-scoped list of handlers, guarded by its own
// lock so it can be mutated while SQL runs concurrently on the same Node.
// Registrations are not deduplicated.
type handlerRegistry struct {
	mu       sync.Mutex
	busy     []BusyHandler
	progress []ProgressHandler
}

func newHandlerRegistry() *handlerRegistry {
	return &handlerRegistry{}
}

// AddBusyHandler appends h to the busy handlers. It does not check for an
// earlier registration of the same handler: one added twice runs twice.
func (r *handlerRegistry) AddBusyHandler(h BusyHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.busy = append(r.busy, h)
}

// AddProgressHandler registers h.
func (r *handlerRegistry) AddProgressHandler(h ProgressHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.progress = append(r.progress, h)
}

// runBusy invokes every registered busy handler in order, short-circuiting
// to false (abort) as soon as one returns false.
func (r *handlerRegistry) runBusy(attempt int) bool {
	r.mu.Lock()
	handlers := append([]BusyHandler(nil), r.busy...)
	r.mu.Unlock()

	for _, h := range handlers {
		if !h(attempt) {
			return false
		}
	}

	return true
}

// runProgress invokes every registered progress handler, returning false
// (interrupt) as soon as one does.
func (r *handlerRegistry) runProgress() bool {
	r.mu.Lock()
	handlers := append([]ProgressHandler(nil), r.progress...)
	r.mu.Unlock()

	for _, h := range handlers {
		if !h() {
			return false
		}
	}

	return true
}
