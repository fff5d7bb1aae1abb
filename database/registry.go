package database

import (
	"database/sql"
	"sync"

	"github.com/pkg/errors"
	"github.com/torsten-rupp/bardb/config"
	"golang.org/x/sync/semaphore"
)

// Node is the process-wide, shared state for one physical database: its
// *sql.DB pool, its lock coordinator, and an open-reference count.
//
// Every Handle obtained for Specifiers of equal Identity() shares the same
// Node, so concurrent callers contend on one lock coordinator per database
// rather than one per connection.
type Node struct {
	specifier Specifier
	db        *sql.DB
	lock      *lockCoordinator
	handlers  *handlerRegistry
	opts      config.DatabaseOptions

	mu    sync.Mutex
	count int // number of live Handles referencing this Node

	tableSemMu sync.Mutex
	tableSem   map[string]*semaphore.Weighted
}

// tableSemaphore returns the semaphore bounding concurrent bulk-streaming
// connections against table for this Node, creating it on first use sized
// from opts.MaxConnectionsPerTable.
func (n *Node) tableSemaphore(table string) *semaphore.Weighted {
	n.tableSemMu.Lock()
	defer n.tableSemMu.Unlock()

	if n.tableSem == nil {
		n.tableSem = make(map[string]*semaphore.Weighted)
	}

	sem, ok := n.tableSem[table]
	if !ok {
		max := int64(n.opts.MaxConnectionsPerTable)
		if max <= 0 {
			max = 8
		}
		sem = semaphore.NewWeighted(max)
		n.tableSem[table] = sem
	}

	return sem
}

// Registry deduplicates connections: repeated Open calls for Specifiers
// that resolve to the same Identity() are served from the same Node.
type Registry struct {
	mu    sync.Mutex
	nodes map[string]*Node
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{nodes: make(map[string]*Node)}
}

// defaultRegistry is the Registry returned by DefaultRegistry, for callers
// that don't need more than one registry per process.
var defaultRegistry = NewRegistry()

// DefaultRegistry returns the package-wide default Registry.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// Open returns a Handle for spec, opening and registering a new Node the
// first time spec's Identity() is seen, or attaching to the existing Node
// otherwise.
func (r *Registry) Open(spec Specifier, mode OpenMode, opts config.DatabaseOptions) (*Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := spec.Identity()
	node, ok := r.nodes[key]
	if !ok {
		var err error
		node, err = openNode(spec, mode, opts)
		if err != nil {
			return nil, err
		}
		r.nodes[key] = node
	}

	node.mu.Lock()
	node.count++
	node.mu.Unlock()

	return newHandle(r, node), nil
}

// release is called by Handle.Close. When the last Handle referencing node
// is released, the underlying *sql.DB is closed and node is dropped from
// the registry.
func (r *Registry) release(node *Node) error {
	node.mu.Lock()
	node.count--
	remaining := node.count
	node.mu.Unlock()

	if remaining > 0 {
		return nil
	}

	r.mu.Lock()
	delete(r.nodes, node.specifier.Identity())
	r.mu.Unlock()

	return errors.WithStack(node.db.Close())
}

// openNode dials the *sql.DB pool for spec and wires up its lock coordinator.
func openNode(spec Specifier, mode OpenMode, opts config.DatabaseOptions) (*Node, error) {
	db, err := openSQLDB(spec, mode, opts)
	if err != nil {
		return nil, err
	}

	return &Node{
		specifier: spec,
		db:        db,
		lock:      newLockCoordinator(),
		handlers:  newHandlerRegistry(),
		opts:      opts,
	}, nil
}
