package database

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// TxKind selects the begin-mode requested from the backend.
type TxKind int

const (
	TxDeferred TxKind = iota
	TxImmediate
	TxExclusive
)

func (k TxKind) beginSQL(backend BackendKind) string {
	switch backend {
	case Sqlite:
		switch k {
		case TxImmediate:
			return "BEGIN IMMEDIATE TRANSACTION"
		case TxExclusive:
			return "BEGIN EXCLUSIVE TRANSACTION"
		default:
			return "BEGIN DEFERRED TRANSACTION"
		}
	case PostgreSQL:
		return "START TRANSACTION READ WRITE"
	default:
		return "START TRANSACTION"
	}
}

// walCheckpointInterval bounds how often End opportunistically runs a WAL
// checkpoint on sqlite.
const walCheckpointInterval = 10 * time.Minute

// Tx is an in-flight transaction: the write lock it holds plus the
// underlying connection it was begun on.
type Tx struct {
	handle *Handle
	kind   TxKind
	done   bool
}

var (
	walCheckpointMu   sync.Mutex
	lastWalCheckpoint = map[*Node]time.Time{}
)

// Begin acquires the Node's write lock (waiting up to a quarter second of
// politeness for outstanding requests to drain before applying the
// caller's own timeout), issues the backend's begin statement, and bumps
// the Node's transaction counter. Nested transactions on the same Node are
// forbidden by the lock coordinator's invariant that transactionCount is 0
// or 1; a second caller simply blocks on the write lock like any other
// ReadWrite request.
func Begin(ctx context.Context, h *Handle, kind TxKind, timeout time.Duration) (*Tx, error) {
	if err := h.node.lock.Lock(ctx, &h.locks, LockTransaction, 250*time.Millisecond); err != nil {
		if err := h.node.lock.Lock(ctx, &h.locks, LockTransaction, timeout); err != nil {
			return nil, err
		}
	}

	if _, _, execErr := Prepare(h, kind.beginSQL(h.Backend()), nil).Exec(ctx, timeout, nil); execErr != nil {
		h.node.lock.Unlock(&h.locks, LockTransaction)
		return nil, execErr
	}

	return &Tx{handle: h, kind: kind}, nil
}

// End commits the transaction, always releasing the write lock — even when
// the commit itself fails — per the unlock-on-every-exit-path contract.
func (tx *Tx) End(ctx context.Context, timeout time.Duration) error {
	if tx.done {
		return nil
	}
	tx.done = true

	commitSQL := "COMMIT"
	if tx.handle.Backend() == Sqlite {
		commitSQL = "END TRANSACTION"
	}

	_, _, err := Prepare(tx.handle, commitSQL, nil).Exec(ctx, timeout, nil)
	tx.handle.node.lock.Unlock(&tx.handle.locks, LockTransaction)

	if err != nil {
		return errors.WithStack(err)
	}

	if tx.handle.Backend() == Sqlite {
		tx.maybeCheckpoint(ctx, timeout)
	}

	return nil
}

// Rollback aborts the transaction, always releasing the write lock.
func (tx *Tx) Rollback(ctx context.Context, timeout time.Duration) error {
	if tx.done {
		return nil
	}
	tx.done = true

	_, _, err := Prepare(tx.handle, "ROLLBACK", nil).Exec(ctx, timeout, nil)
	tx.handle.node.lock.Unlock(&tx.handle.locks, LockTransaction)

	return errors.WithStack(err)
}

// maybeCheckpoint runs a WAL checkpoint under a fresh write lock if more
// than walCheckpointInterval has elapsed since the last one on this Node.
// Best-effort: a failure here is not propagated to the caller of End.
func (tx *Tx) maybeCheckpoint(ctx context.Context, timeout time.Duration) {
	node := tx.handle.node

	walCheckpointMu.Lock()
	last, ok := lastWalCheckpoint[node]
	due := !ok || time.Since(last) >= walCheckpointInterval
	walCheckpointMu.Unlock()

	if !due {
		return
	}

	if err := tx.handle.node.lock.Lock(ctx, &tx.handle.locks, LockReadWrite, timeout); err != nil {
		return
	}
	defer tx.handle.node.lock.Unlock(&tx.handle.locks, LockReadWrite)

	_, _, _ = Prepare(tx.handle, "PRAGMA wal_checkpoint(TRUNCATE)", nil).Exec(ctx, timeout, nil)

	walCheckpointMu.Lock()
	lastWalCheckpoint[node] = time.Now()
	walCheckpointMu.Unlock()
}
