//go:build database_debug

package database

import (
	"fmt"
	"runtime"
	"sync"
	"time"
)

// lockEventKind distinguishes the two kinds of entry a debug build appends
// to a Node's lock history.
type lockEventKind int

const (
	lockEventAcquire lockEventKind = iota
	lockEventRelease
)

// lockEvent is one entry of a Node's debug lock history: who touched the
// lock, what kind, when, and from where.
type lockEvent struct {
	Time  time.Time
	Kind  LockKind
	Event lockEventKind
	Owner uint64 // goroutine id
	File  string
	Line  int
}

func (e lockEvent) String() string {
	action := "acquire"
	if e.Event == lockEventRelease {
		action = "release"
	}
	return fmt.Sprintf("%s %s by goroutine %d at %s:%d (%s)", action, lockKindName(e.Kind), e.Owner, e.File, e.Line, e.Time.Format(time.RFC3339Nano))
}

func lockKindName(k LockKind) string {
	switch k {
	case LockRead:
		return "Read"
	case LockReadWrite:
		return "ReadWrite"
	case LockTransaction:
		return "Transaction"
	default:
		return "Unknown"
	}
}

// lockHistorySize bounds the ring buffer kept per Node.
const lockHistorySize = 256

// lockDebug is the debug-build ring buffer of lock/unlock events for one
// Node, plus the owner-goroutine bookkeeping used to flag a Handle touched
// from two goroutines at once. Every lockCoordinator carries one; in a
// release build it is the zero-cost stub in debug_release.go instead.
type lockDebug struct {
	mu     sync.Mutex
	events []lockEvent
	next   int

	owners map[*handleLocks]uint64
}

func newLockDebug() *lockDebug {
	return &lockDebug{
		events: make([]lockEvent, 0, lockHistorySize),
		owners: make(map[*handleLocks]uint64),
	}
}

func (lh *lockDebug) record(kind LockKind, event lockEventKind) {
	_, file, line, _ := runtime.Caller(2)

	e := lockEvent{Time: time.Now(), Kind: kind, Event: event, Owner: goroutineID(), File: file, Line: line}

	lh.mu.Lock()
	defer lh.mu.Unlock()

	if len(lh.events) < lockHistorySize {
		lh.events = append(lh.events, e)
	} else {
		lh.events[lh.next] = e
		lh.next = (lh.next + 1) % lockHistorySize
	}
}

// recordAcquire appends an acquire event and enforces the single-owner-goroutine
// invariant for h, panicking if another goroutine already owns it.
func (lh *lockDebug) recordAcquire(h *handleLocks, kind LockKind) {
	lh.record(kind, lockEventAcquire)

	gid := goroutineID()

	lh.mu.Lock()
	defer lh.mu.Unlock()

	if owner, ok := lh.owners[h]; ok && owner != gid {
		panic(fmt.Sprintf("database: Handle used from goroutine %d while owned by goroutine %d", gid, owner))
	}
	lh.owners[h] = gid
}

// recordRelease appends a release event, and — once h holds no more locks of
// any kind — forgets its owner so a later acquire from a different goroutine
// is not mistaken for concurrent misuse.
func (lh *lockDebug) recordRelease(h *handleLocks, kind LockKind, stillHeld bool) {
	lh.record(kind, lockEventRelease)

	if stillHeld {
		return
	}

	lh.mu.Lock()
	defer lh.mu.Unlock()
	delete(lh.owners, h)
}

// Snapshot returns a copy of the ring buffer's contents, oldest first.
func (lh *lockDebug) Snapshot() []lockEvent {
	lh.mu.Lock()
	defer lh.mu.Unlock()

	// Once the buffer is full, lh.next indexes the oldest event.
	out := make([]lockEvent, 0, len(lh.events))
	out = append(out, lh.events[lh.next:]...)
	return append(out, lh.events[:lh.next]...)
}

// goroutineID extracts the calling goroutine's id by parsing the header
// line of its own stack trace ("goroutine 123 [running]:"), same trick
// used throughout the Go ecosystem wherever a debug build wants a
// lightweight identity for "which goroutine is this" without a runtime API
// for it.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for _, c := range buf[len("goroutine "):n] {
		if c < '0' || c > '9' {
			break
		}
		id = id*10 + uint64(c-'0')
	}
	return id
}
