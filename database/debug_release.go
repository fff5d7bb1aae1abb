//go:build !database_debug

package database

// lockDebug is the release-build stand-in for the debug lock-history ring
// buffer and owner-goroutine bookkeeping: every method is a no-op, so
// lockCoordinator pays nothing for the debug instrumentation when the
// database_debug build tag isn't set.
type lockDebug struct{}

func newLockDebug() *lockDebug { return &lockDebug{} }

func (lh *lockDebug) recordAcquire(h *handleLocks, kind LockKind)              {}
func (lh *lockDebug) recordRelease(h *handleLocks, kind LockKind, held bool)   {}
