package database

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/torsten-rupp/bardb/backoff"
	"github.com/torsten-rupp/bardb/com"
	"github.com/torsten-rupp/bardb/retry"
	"golang.org/x/sync/errgroup"
)

// BulkRow is one row offered to a streaming bulk operation, its Values
// positional and aligned with the Columns given to the Stream* call.
type BulkRow []Value

// chunkSize returns how many rows of width columns may share one
// statement without exceeding maxPlaceholders, always at least 1.
func chunkSize(columns int, maxPlaceholders int) int {
	if columns <= 0 {
		columns = 1
	}
	n := maxPlaceholders / columns
	if n < 1 {
		n = 1
	}
	return n
}

func bulkRetrySettings() (retry.Settings, backoff.Backoff) {
	return retry.Settings{Timeout: retry.DefaultTimeout}, backoff.NewExponentialWithJitter(1*time.Millisecond, time.Second)
}

// streamChunks fans rows out into chunks of at most maxPlaceholders worth
// of bound parameters (and never more than maxRowsPerTx rows), then runs
// exec once per chunk, retrying transient failures and bounding
// concurrency against table by h's per-table semaphore.
func streamChunks(ctx context.Context, h *Handle, table string, rows <-chan BulkRow, maxRowsPerChunk int, splitPolicy com.BulkChunkSplitPolicyFactory[BulkRow], onChunk func(context.Context, []BulkRow) error) (int64, error) {
	var total int64
	sem := h.tableSemaphore(table)

	g, gctx := errgroup.WithContext(ctx)
	chunks := com.Bulk(gctx, rows, maxRowsPerChunk, splitPolicy)

	for {
		select {
		case chunk, ok := <-chunks:
			if !ok {
				if err := g.Wait(); err != nil {
					return total, err
				}
				return total, nil
			}

			if err := sem.Acquire(gctx, 1); err != nil {
				_ = g.Wait()
				return total, errors.WithStack(err)
			}

			n := int64(len(chunk))
			g.Go(func() error {
				defer sem.Release(1)

				settings, backoffFn := bulkRetrySettings()
				return retry.WithBackoff(gctx, func(ctx context.Context) error {
					return onChunk(ctx, chunk)
				}, retry.Retryable, backoffFn, settings)
			})
			total += n

		case <-gctx.Done():
			_ = g.Wait()
			return total, gctx.Err()
		}
	}
}

// StreamInsert inserts every row from rows into table, batching rows into
// multi-row INSERT statements sized from h.Options().MaxPlaceholdersPerStatement
// and h.Options().MaxRowsPerTransaction, with up to
// h.Options().MaxConnectionsPerTable chunks in flight against table at once.
func StreamInsert(ctx context.Context, h *Handle, table string, columns []Column, rows <-chan BulkRow, timeout time.Duration) (int64, error) {
	return streamInsertLike(ctx, h, table, columns, rows, InsertNormal, nil, timeout)
}

// StreamUpsert is StreamInsert, adapted per backend to update the row in
// place on a primary-key conflict instead of failing (conflictCols names
// the destination's uniqueness constraint, required on PostgreSQL).
func StreamUpsert(ctx context.Context, h *Handle, table string, columns []Column, rows <-chan BulkRow, conflictCols []string, timeout time.Duration) (int64, error) {
	return streamInsertLike(ctx, h, table, columns, rows, InsertReplace, conflictCols, timeout)
}

func streamInsertLike(ctx context.Context, h *Handle, table string, columns []Column, rows <-chan BulkRow, mode InsertMode, conflictCols []string, timeout time.Duration) (int64, error) {
	opts := h.Options()
	maxRows := chunkSize(len(columns), opts.MaxPlaceholdersPerStatement)
	if opts.MaxRowsPerTransaction > 0 && maxRows > opts.MaxRowsPerTransaction {
		maxRows = opts.MaxRowsPerTransaction
	}

	builder := NewBuilder(h.Backend())

	return streamChunks(ctx, h, table, rows, maxRows, com.NeverSplit[BulkRow], func(ctx context.Context, chunk []BulkRow) error {
		rowValues := make([][]Value, len(chunk))
		for i, r := range chunk {
			rowValues[i] = []Value(r)
		}

		sqlText, args, err := builder.InsertMulti(table, columns, rowValues, mode, conflictCols)
		if err != nil {
			return err
		}

		_, _, err = Prepare(h, sqlText, nil).Exec(ctx, timeout, args)
		return CantPerformQuery(err, sqlText)
	})
}

// StreamDelete deletes rows whose idColumn value arrives on ids, batching
// into `IN (?, ?, …)` statements the same way StreamInsert batches rows.
func StreamDelete(ctx context.Context, h *Handle, table string, idColumn string, ids <-chan int64, timeout time.Duration) (int64, error) {
	opts := h.Options()
	maxRows := chunkSize(1, opts.MaxPlaceholdersPerStatement)
	if opts.MaxRowsPerTransaction > 0 && maxRows > opts.MaxRowsPerTransaction {
		maxRows = opts.MaxRowsPerTransaction
	}

	rows := make(chan BulkRow)
	go func() {
		defer close(rows)
		for {
			select {
			case id, ok := <-ids:
				if !ok {
					return
				}
				select {
				case rows <- BulkRow{NewKey(id)}:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return streamChunks(ctx, h, table, rows, maxRows, com.NeverSplit[BulkRow], func(ctx context.Context, chunk []BulkRow) error {
		chunkIds := make([]int64, len(chunk))
		for i, r := range chunk {
			chunkIds[i] = r[0].Int64()
		}

		_, err := DeleteByIds(ctx, h, table, idColumn, chunkIds, timeout)
		return err
	})
}

// BulkUpdate is one row's worth of work for StreamUpdate: Filter selects the
// row(s) to update and Values supplies the new column values, positional
// and aligned with the Columns given to StreamUpdate.
type BulkUpdate struct {
	Filter Filter
	Values []Value
}

// StreamUpdate runs one UPDATE per item received on updates, bounding how
// many run concurrently against table by h's per-table semaphore. Unlike
// StreamInsert/StreamDelete, updates cannot share one multi-row statement
// across different filters, so this trades statement batching for
// connection-count batching.
func StreamUpdate(ctx context.Context, h *Handle, table string, columns []Column, updates <-chan BulkUpdate, timeout time.Duration) (int64, error) {
	sem := h.tableSemaphore(table)
	g, gctx := errgroup.WithContext(ctx)

	var total int64

	for {
		select {
		case u, ok := <-updates:
			if !ok {
				if err := g.Wait(); err != nil {
					return total, err
				}
				return total, nil
			}

			if err := sem.Acquire(gctx, 1); err != nil {
				_ = g.Wait()
				return total, errors.WithStack(err)
			}

			total++
			g.Go(func() error {
				defer sem.Release(1)

				settings, backoffFn := bulkRetrySettings()
				return retry.WithBackoff(gctx, func(ctx context.Context) error {
					_, err := Update(ctx, h, table, columns, u.Values, u.Filter, timeout)
					return err
				}, retry.Retryable, backoffFn, settings)
			})

		case <-gctx.Done():
			_ = g.Wait()
			return total, gctx.Err()
		}
	}
}
