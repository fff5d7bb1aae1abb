package database

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/torsten-rupp/bardb/periodic"
)

// pgCacheEntry is one cached prepared statement: the *sql.Stmt itself, a
// use counter, and the last time it was borrowed.
type pgCacheEntry struct {
	stmt     *sql.Stmt
	useCount int
	lastUsed time.Time
}

// pgStatementCache is a per-Handle (per-connection) cache of prepared
// statements keyed by SQL text, used only for the PostgreSQL backend where
// re-preparing identical statements on every call is wasteful. Entries with
// a zero use count older than idleThreshold are evicted; the cache is also
// size-bounded, evicting the least-recently-used entry when full.
type pgStatementCache struct {
	mu            sync.Mutex
	entries       map[string]*pgCacheEntry
	maxSize       int
	idleThreshold time.Duration

	sweep periodic.Stopper
}

// newPgStatementCache returns a cache that also runs a background sweep,
// ticking every idleThreshold, so idle entries are reclaimed even on a
// connection that never issues another acquire to trigger eviction inline.
func newPgStatementCache(maxSize int, idleThreshold time.Duration) *pgStatementCache {
	c := &pgStatementCache{
		entries:       make(map[string]*pgCacheEntry),
		maxSize:       maxSize,
		idleThreshold: idleThreshold,
	}

	c.sweep = periodic.Start(context.Background(), idleThreshold, func(periodic.Tick) {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.evictIdleLocked()
	})

	return c
}

// acquire returns a prepared statement for sqlText, preparing and caching a
// new one via prepare if none is cached yet. The caller must call release
// once done with the returned statement.
func (c *pgStatementCache) acquire(sqlText string, prepare func() (*sql.Stmt, error)) (*sql.Stmt, error) {
	c.mu.Lock()
	if e, ok := c.entries[sqlText]; ok {
		e.useCount++
		e.lastUsed = time.Now()
		c.mu.Unlock()
		return e.stmt, nil
	}
	c.mu.Unlock()

	stmt, err := prepare()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[sqlText]; ok {
		// Lost a race with a concurrent prepare of the same text; keep the
		// winner already installed and discard ours.
		_ = stmt.Close()
		e.useCount++
		e.lastUsed = time.Now()
		return e.stmt, nil
	}

	c.evictLocked()
	c.entries[sqlText] = &pgCacheEntry{stmt: stmt, useCount: 1, lastUsed: time.Now()}

	return stmt, nil
}

// release decrements sqlText's use count, making it eligible for eviction.
func (c *pgStatementCache) release(sqlText string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[sqlText]; ok {
		e.useCount = max0(e.useCount - 1)
	}
}

// evictIdleLocked drops every entry whose use count is zero and whose
// lastUsed is older than idleThreshold. Must be called with c.mu held.
func (c *pgStatementCache) evictIdleLocked() {
	now := time.Now()
	for key, e := range c.entries {
		if e.useCount == 0 && now.Sub(e.lastUsed) > c.idleThreshold {
			_ = e.stmt.Close()
			delete(c.entries, key)
		}
	}
}

// evictLocked runs evictIdleLocked, then — if still over maxSize — evicts
// the single least-recently-used idle entry. Must be called with c.mu held.
func (c *pgStatementCache) evictLocked() {
	c.evictIdleLocked()

	for len(c.entries) >= c.maxSize {
		var oldestKey string
		var oldest *pgCacheEntry
		for key, e := range c.entries {
			if e.useCount > 0 {
				continue
			}
			if oldest == nil || e.lastUsed.Before(oldest.lastUsed) {
				oldestKey, oldest = key, e
			}
		}
		if oldest == nil {
			return // everything in use; let the cache exceed maxSize rather than evict a live entry
		}
		_ = oldest.stmt.Close()
		delete(c.entries, oldestKey)
	}
}

// Close stops the background sweep and releases every cached prepared
// statement.
func (c *pgStatementCache) Close() error {
	c.sweep.Stop()

	c.mu.Lock()
	defer c.mu.Unlock()

	var firstErr error
	for key, e := range c.entries {
		if err := e.stmt.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(c.entries, key)
	}

	return firstErr
}
