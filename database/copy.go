package database

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// CopySource describes where rows are read from.
type CopySource struct {
	Handle  *Handle
	Table   string
	Columns []Column
	Filter  Filter
	GroupBy string
	OrderBy string
	Offset  int
	Limit   int
}

// CopyDest describes where rows are written to.
type CopyDest struct {
	Handle  *Handle
	Table   string
	Columns []Column
}

// RowHook is invoked once per copied row with the row's column info and the
// current destination values (addressable by destination column name); an
// error aborts the copy.
type RowHook func(src, dst map[string]Value) error

// CopyOptions configures one Copy call.
type CopyOptions struct {
	WithTransaction bool
	PreRow          RowHook
	PostRow         RowHook
	// Pause, if set, is called after every row. When it returns true, and
	// also every yieldEvery rows whenever Pause is set, Copy ends the
	// destination transaction (or releases the destination's write lock),
	// calls Pause every 10s for as long as it returns true, then re-begins
	// the transaction (or reacquires the lock) and resumes. The source's
	// read lock stays held throughout.
	Pause func() bool
	// Progress, if set, is invoked after every row with the number of
	// rows copied so far.
	Progress func(copied int64)
	// Elapsed, if set, accumulates the wall-clock time spent copying.
	Elapsed *time.Duration
	Timeout time.Duration
}

// yieldEvery is how often Copy checks whether another thread is waiting on
// the destination's locks and, if so, briefly yields them.
const yieldEvery = 128

// Copy streams rows from src to dst, remapping columns by case-insensitive
// name, never forwarding the source's primary-key value, and letting the
// destination backend assign a fresh one. PreRow/PostRow hooks can inspect
// and mutate the row, including observing the freshly assigned primary key
// via dst[pkColumnName] after the insert.
func Copy(ctx context.Context, src CopySource, dst CopyDest, opts CopyOptions) (copied int64, err error) {
	start := time.Now()
	if opts.Elapsed != nil {
		defer func() { *opts.Elapsed += time.Since(start) }()
	}

	fromColumnMap := make(map[string]Column) // destCol(lower) -> srcCol
	for _, dc := range dst.Columns {
		for _, sc := range src.Columns {
			if strings.EqualFold(dc.Name, sc.Name) {
				fromColumnMap[strings.ToLower(dc.Name)] = sc
				break
			}
		}
	}

	var pk *Column
	for i := range dst.Columns {
		if dst.Columns[i].IsPrimaryKey() {
			pk = &dst.Columns[i]
			break
		}
	}

	var paramCols []Column
	for _, dc := range dst.Columns {
		if pk != nil && dc.Name == pk.Name {
			continue
		}
		if _, ok := fromColumnMap[strings.ToLower(dc.Name)]; ok {
			paramCols = append(paramCols, dc)
		}
	}

	// A zero Limit copies every row rather than emitting LIMIT 0.
	limit := src.Limit
	if limit == 0 {
		limit = Unlimited
	}

	builder := NewBuilder(src.Handle.Backend())
	selectSQL, selectValues := builder.Select([]SelectSpec{{
		Table:      src.Table,
		Projection: src.Columns,
		Filter:     src.Filter,
	}}, SelectOptions{GroupBy: src.GroupBy, OrderBy: src.OrderBy, Offset: src.Offset, Limit: limit})

	insertBuilder := NewBuilder(dst.Handle.Backend())

	if err := src.Handle.Lock(ctx, LockRead, opts.Timeout); err != nil {
		return 0, err
	}
	defer src.Handle.Unlock(LockRead)

	var tx *Tx
	if opts.WithTransaction {
		// Begin acquires the destination's write lock itself (as a
		// LockTransaction); acquiring LockReadWrite here too would just
		// double this Handle's re-entrant count without a matching Unlock.
		tx, err = Begin(ctx, dst.Handle, TxDeferred, opts.Timeout)
		if err != nil {
			return 0, err
		}
	} else if err := dst.Handle.Lock(ctx, LockReadWrite, opts.Timeout); err != nil {
		return 0, err
	}

	abort := func(cause error) (int64, error) {
		if tx != nil {
			_ = tx.Rollback(ctx, opts.Timeout)
		} else {
			dst.Handle.Unlock(LockReadWrite)
		}
		return copied, cause
	}

	sinceYield := 0

	queryErr := Prepare(src.Handle, selectSQL, src.Columns).Query(ctx, opts.Timeout, selectValues, FetchOptions{}, func(row *Row) error {
		srcVals := make(map[string]Value, len(row.Columns()))
		for _, c := range row.Columns() {
			srcVals[strings.ToLower(c)] = row.Column(c)
		}

		dstVals := make(map[string]Value, len(dst.Columns))
		for lowerDest, srcCol := range fromColumnMap {
			dstVals[lowerDest] = srcVals[strings.ToLower(srcCol.Name)]
		}
		if pk != nil {
			dstVals[strings.ToLower(pk.Name)] = NewNone() // assign new
		}

		if opts.PreRow != nil {
			if err := opts.PreRow(srcVals, dstVals); err != nil {
				return err
			}
		}

		insertValues := make([]Value, len(paramCols))
		for i, c := range paramCols {
			v := dstVals[strings.ToLower(c.Name)]
			if v.Kind == ValueString || v.Kind == ValueCString {
				v = v.WithColumn(c.Name)
				v = repairUTF8(v)
			}
			insertValues[i] = v
		}

		insertSQL, insertArgs, buildErr := insertBuilder.Insert(InsertSpec{
			Table:   dst.Table,
			Columns: paramCols,
			Values:  insertValues,
		})
		if buildErr != nil {
			return buildErr
		}

		_, newID, execErr := Prepare(dst.Handle, insertSQL, nil).Exec(ctx, opts.Timeout, insertArgs)
		if execErr != nil {
			return execErr
		}

		if pk != nil {
			dstVals[strings.ToLower(pk.Name)] = NewKey(newID)
		}

		if opts.PostRow != nil {
			if err := opts.PostRow(srcVals, dstVals); err != nil {
				return err
			}
		}

		copied++
		if opts.Progress != nil {
			opts.Progress(copied)
		}

		sinceYield++
		if sinceYield >= yieldEvery || (opts.Pause != nil && opts.Pause()) {
			sinceYield = 0
			if err := yieldForFairness(ctx, dst.Handle, &tx, opts); err != nil {
				return err
			}
		}

		return nil
	})

	if queryErr != nil {
		return abort(queryErr)
	}

	if tx != nil {
		if err := tx.End(ctx, opts.Timeout); err != nil {
			return copied, errors.WithStack(err)
		}
	} else {
		dst.Handle.Unlock(LockReadWrite)
	}

	return copied, nil
}

// yieldForFairness ends and re-begins the destination transaction (or
// simply releases and reacquires the write lock when not transactional) if
// another thread is waiting on it, or — when opts.Pause is set — releases
// the destination's lock or transaction, polls Pause every 10s until it
// returns false, then reacquires it. The source's read lock is not touched.
func yieldForFairness(ctx context.Context, dst *Handle, tx **Tx, opts CopyOptions) error {
	if opts.Pause == nil && !dst.hasWaiters() {
		// Nobody is blocked on this Node's lock; ending and re-beginning
		// the transaction would only add round-trips for no fairness gain.
		return nil
	}

	if opts.Pause != nil {
		if *tx != nil {
			if err := (*tx).End(ctx, opts.Timeout); err != nil {
				return err
			}
		} else {
			dst.Unlock(LockReadWrite)
		}

		for opts.Pause() {
			select {
			case <-time.After(10 * time.Second):
			case <-ctx.Done():
				return ErrInterrupted
			}
		}

		if opts.WithTransaction {
			newTx, err := Begin(ctx, dst, TxDeferred, opts.Timeout)
			if err != nil {
				return err
			}
			*tx = newTx
		} else if err := dst.Lock(ctx, LockReadWrite, opts.Timeout); err != nil {
			return err
		}

		return nil
	}

	// No explicit pause request: briefly yield the write lock so any
	// pending reader/writer on this Node gets a chance, then resume.
	if *tx != nil {
		if err := (*tx).End(ctx, opts.Timeout); err != nil {
			return err
		}
		newTx, err := Begin(ctx, dst, TxDeferred, opts.Timeout)
		if err != nil {
			return err
		}
		*tx = newTx
	} else {
		dst.Unlock(LockReadWrite)
		if err := dst.Lock(ctx, LockReadWrite, opts.Timeout); err != nil {
			return err
		}
	}

	return nil
}

// repairUTF8 replaces invalid UTF-8 sequences in a String/CString Value
// with the Unicode replacement character, so a source row's malformed text
// never poisons a prepared-statement bind on the destination.
func repairUTF8(v Value) Value {
	if v.Kind != ValueString && v.Kind != ValueCString {
		return v
	}
	if utf8.ValidString(v.String()) {
		return v
	}

	return NewString(strings.ToValidUTF8(v.String(), string(utf8.RuneError))).WithColumn(v.Column)
}
