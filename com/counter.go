package com

import "sync/atomic"

// Counter is a simple atomic uint64 counter, safe for concurrent use.
type Counter struct {
	total uint64
}

// Add adds delta to the counter.
func (c *Counter) Add(delta uint64) {
	atomic.AddUint64(&c.total, delta)
}

// Val returns the counter's current value.
func (c *Counter) Val() uint64 {
	return atomic.LoadUint64(&c.total)
}

// Total is an alias for Val, for call sites that read better that way.
func (c *Counter) Total() uint64 {
	return c.Val()
}

// Reset sets the counter back to zero and returns its value just before the reset.
func (c *Counter) Reset() uint64 {
	return atomic.SwapUint64(&c.total, 0)
}
