package database

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/torsten-rupp/bardb/config"
	"golang.org/x/sync/semaphore"
)

// Handle is a per-caller reference to a Node: the database/sql pool and
// lock coordinator shared by every Handle opened for the same Specifier.
// A Handle is not safe for concurrent use by multiple goroutines beyond
// the locking semantics its own methods provide — callers coordinate
// through Lock/Unlock, not by sharing a *Handle across goroutines without
// synchronization of their own.
type Handle struct {
	registry *Registry
	node     *Node

	locks handleLocks

	pgCache *pgStatementCache

	cancelMu sync.Mutex
	cancelFn context.CancelFunc

	closeOnce sync.Once
}

// setCancel records the cancel function of the context guarding the
// statement currently executing on this Handle, so Interrupt can reach it.
// Passing nil clears it once the statement completes.
func (h *Handle) setCancel(cancel context.CancelFunc) {
	h.cancelMu.Lock()
	h.cancelFn = cancel
	h.cancelMu.Unlock()
}

func newHandle(r *Registry, n *Node) *Handle {
	h := &Handle{registry: r, node: n}
	if n.specifier.Kind == PostgreSQL {
		h.pgCache = newPgStatementCache(64, 5*time.Minute)
	}
	return h
}

// Backend reports which backend this Handle's Node talks to.
func (h *Handle) Backend() BackendKind {
	return h.node.specifier.Kind
}

// DB returns the underlying connection pool, for operations (ops.go,
// copy.go, schema.go) that need to issue statements directly.
func (h *Handle) DB() *sql.DB {
	return h.node.db
}

// Options returns the connection-pool and bulk-streaming tunables this
// Handle's Node was opened with.
func (h *Handle) Options() config.DatabaseOptions {
	return h.node.opts
}

// tableSemaphore returns the semaphore bounding concurrent bulk-streaming
// connections against table, shared by every Handle on this Handle's Node
// and sized from Options().MaxConnectionsPerTable.
func (h *Handle) tableSemaphore(table string) *semaphore.Weighted {
	return h.node.tableSemaphore(table)
}

// AddBusyHandler registers a handler consulted by the statement retry loop
// whenever a driver error classifies as KindBusy, for every Handle sharing
// this Handle's Node.
func (h *Handle) AddBusyHandler(handler BusyHandler) {
	h.node.handlers.AddBusyHandler(handler)
}

// AddProgressHandler registers a handler polled periodically during
// long-running statements, for every Handle sharing this Handle's Node.
func (h *Handle) AddProgressHandler(handler ProgressHandler) {
	h.node.handlers.AddProgressHandler(handler)
}

// Lock acquires kind for the lifetime the caller chooses, to be released
// with a matching Unlock. timeout is WaitForever or a positive duration.
func (h *Handle) Lock(ctx context.Context, kind LockKind, timeout time.Duration) error {
	return h.node.lock.Lock(ctx, &h.locks, kind, timeout)
}

// Unlock releases kind acquired by a prior Lock call. Safe to call on any
// exit path, including after an error.
func (h *Handle) Unlock(kind LockKind) {
	h.node.lock.Unlock(&h.locks, kind)
}

// hasWaiters reports whether another Handle sharing this Handle's Node is
// currently blocked waiting for a lock.
func (h *Handle) hasWaiters() bool {
	return h.node.lock.hasWaiters()
}

// Interrupt cancels the context of the statement currently executing on
// this Handle (the one registered through setCancel), on every backend.
// The driver aborts the statement once it observes the cancellation;
// Interrupt returns without waiting for that. With no statement in flight
// it does nothing.
func (h *Handle) Interrupt() {
	h.cancelMu.Lock()
	cancel := h.cancelFn
	h.cancelMu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Close releases the Handle's reference on its Node, closing the
// underlying pool once the last Handle referencing it is gone.
func (h *Handle) Close() error {
	var err error
	h.closeOnce.Do(func() {
		if h.pgCache != nil {
			err = h.pgCache.Close()
		}
		if releaseErr := h.registry.release(h.node); releaseErr != nil && err == nil {
			err = releaseErr
		}
	})
	return err
}
