package com

import (
	"context"
	"sync"
)

// Cond is a minimal broadcast condition variable, usable from select
// statements (unlike sync.Cond, whose Wait cannot be combined with a
// channel or a context deadline). Each Broadcast call wakes every
// goroutine blocked on a Wait channel obtained before that Broadcast;
// goroutines that call Wait afterwards get a fresh channel for the next
// round.
type Cond struct {
	mu sync.Mutex
	ch chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
}

// NewCond returns a Cond tied to ctx: Done reports ctx's own cancellation,
// independent of Broadcast/Wait rounds.
func NewCond(ctx context.Context) *Cond {
	ctx, cancel := context.WithCancel(ctx)
	return &Cond{ch: make(chan struct{}), ctx: ctx, cancel: cancel}
}

// Wait returns the channel for the current round, closed by the next
// Broadcast call.
func (c *Cond) Wait() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.ch
}

// Broadcast closes the current round's channel, waking every waiter, and
// starts a new round.
func (c *Cond) Broadcast() {
	c.mu.Lock()
	defer c.mu.Unlock()

	close(c.ch)
	c.ch = make(chan struct{})
}

// Done returns a channel closed once the Cond's context is cancelled.
func (c *Cond) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Close cancels the Cond's context, closing Done.
func (c *Cond) Close() error {
	c.cancel()
	return nil
}
