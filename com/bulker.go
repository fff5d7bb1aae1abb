package com

import (
	"context"
	"time"
)

// bulkDebounce bounds how long Bulk waits for another item to arrive before
// flushing a partial chunk — long enough to absorb normal per-item jitter,
// short enough that a producer stalling between bursts doesn't stall chunk
// delivery.
const bulkDebounce = 150 * time.Millisecond

// BulkChunkSplitPolicy decides, for each item offered to the current chunk
// (after the first), whether the chunk so far must be flushed before the
// item is added to a new one.
type BulkChunkSplitPolicy[T any] func(newItem T) (splitBefore bool)

// BulkChunkSplitPolicyFactory constructs a fresh BulkChunkSplitPolicy,
// called once per Bulk invocation so per-chunk-run state (e.g. a seen-ids
// set) starts empty each time.
type BulkChunkSplitPolicyFactory[T any] func() BulkChunkSplitPolicy[T]

// NeverSplit is a BulkChunkSplitPolicyFactory whose policy never forces an
// early flush; chunks are bounded purely by count and by idle timeout.
func NeverSplit[T any]() BulkChunkSplitPolicy[T] {
	return func(T) bool { return false }
}

// Bulk groups items from in into chunks of up to count items (count <= 0
// means no count-based cap), flushing early whenever splitPolicyFactory's
// policy says to split before an item, or whenever in goes idle for
// bulkDebounce — so a slow trickle of items still gets delivered instead of
// waiting forever to fill a chunk. The returned channel is closed once in
// is closed (after a final, possibly short, chunk) or ctx is done (chunks
// not yet flushed are dropped).
func Bulk[T any](ctx context.Context, in <-chan T, count int, splitPolicyFactory BulkChunkSplitPolicyFactory[T]) <-chan []T {
	out := make(chan []T)

	go func() {
		defer close(out)

		splitPolicy := splitPolicyFactory()
		var buf []T

		flush := func() bool {
			if len(buf) == 0 {
				return true
			}

			select {
			case out <- buf:
				buf = nil
				return true
			case <-ctx.Done():
				return false
			}
		}

		for {
			if count > 0 && len(buf) >= count {
				if !flush() {
					return
				}
			}

			var idle <-chan time.Time
			if len(buf) > 0 {
				idle = time.After(bulkDebounce)
			}

			select {
			case v, ok := <-in:
				if !ok {
					flush()
					return
				}

				if len(buf) > 0 && splitPolicy(v) {
					if !flush() {
						return
					}
				}

				buf = append(buf, v)
			case <-idle:
				if !flush() {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}
