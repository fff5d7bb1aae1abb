package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
)

// maxBusySleep bounds a single retry-loop backoff, per the statement retry
// contract: sleep up to 500ms, bounded by whatever of the caller's timeout
// remains.
const maxBusySleep = 500 * time.Millisecond

// Row is one result row, addressable by column name as well as by index.
type Row struct {
	values  []Value
	columns []string
	index   map[string]int
}

// Value returns the i'th column of the row.
func (r *Row) Value(i int) Value { return r.values[i] }

// Column returns the row's value for name, or the zero Value if name is
// not one of its columns.
func (r *Row) Column(name string) Value {
	if i, ok := r.index[name]; ok {
		return r.values[i]
	}
	return Value{}
}

// Columns returns the row's column names in order.
func (r *Row) Columns() []string { return r.columns }

// RowFunc is called once per row by Query. Returning an error aborts
// iteration and is propagated to the caller of Query.
type RowFunc func(*Row) error

// FetchOptions controls how Query materialises rows.
type FetchOptions struct {
	// FetchAll forces every row to be read up-front instead of streamed.
	// On PostgreSQL this matters: without it, rows are effectively
	// consumed in single-row fashion as database/sql's Rows iterator
	// already does; FetchAll is provided for callers that need the whole
	// result set available before releasing the underlying connection
	// (e.g. to issue a nested query on the same Handle).
	FetchAll bool
}

// Statement is a portable prepared statement bound to one Handle.
type Statement struct {
	handle  *Handle
	sqlText string
	columns []Column // expected column kinds, for result decoding; nil for write statements
}

// Prepare readies sqlText for repeated execution against h. columns
// describes the expected result projection for row-returning statements (pass
// nil for INSERT/UPDATE/DELETE). The statement text must already be in its
// final, backend-adapted and placeholder-renumbered form (see Builder).
func Prepare(h *Handle, sqlText string, columns []Column) *Statement {
	return &Statement{handle: h, sqlText: sqlText, columns: columns}
}

// Exec runs a modification statement (INSERT/UPDATE/DELETE) with values,
// returning the number of changed rows and, where the backend reports one,
// the last inserted row id.
func (s *Statement) Exec(ctx context.Context, timeout time.Duration, values []Value) (changed int64, lastInsertID int64, err error) {
	args := driverArgs(values, s.handle.Backend())

	err = s.retry(ctx, timeout, func(ctx context.Context) error {
		if s.handle.Backend() == PostgreSQL {
			c, id, execErr := s.execPostgreSQL(ctx, args)
			changed, lastInsertID = c, id
			return execErr
		}

		result, execErr := s.handle.DB().ExecContext(ctx, s.sqlText, args...)
		if execErr != nil {
			return execErr
		}

		changed, _ = result.RowsAffected()
		lastInsertID, _ = result.LastInsertId()

		return nil
	})

	return changed, lastInsertID, err
}

// execPostgreSQL runs sqlText and reads back the id of the row it inserted
// via SELECT LASTVAL(), per the statement façade's last-insert-id contract
// (lib/pq's sql.Result.LastInsertId always errors: PostgreSQL has no
// protocol-level equivalent). LASTVAL reports the most recently generated
// sequence value for the calling session, so the insert and the read-back
// must share one physical connection; database/sql's pool gives no such
// guarantee across two independent DB-level calls, so both run against a
// single checked-out *sql.Conn instead of going through pgCache, which is
// keyed by SQL text across the whole pool and cannot pin a connection.
func (s *Statement) execPostgreSQL(ctx context.Context, args []interface{}) (changed int64, lastInsertID int64, err error) {
	conn, err := s.handle.DB().Conn(ctx)
	if err != nil {
		return 0, 0, err
	}
	defer conn.Close()

	result, err := conn.ExecContext(ctx, s.sqlText, args...)
	if err != nil {
		return 0, 0, err
	}

	changed, _ = result.RowsAffected()

	if changed > 0 {
		// No sequence is touched by a statement with no auto-assigned
		// column, so tolerate LASTVAL erroring ("lastval is not yet
		// defined in this session") by leaving lastInsertID at 0.
		_ = conn.QueryRowContext(ctx, "SELECT LASTVAL()").Scan(&lastInsertID)
	}

	return changed, lastInsertID, nil
}

// Query runs a row-returning statement with values, invoking fn once per
// row in order. If opts.FetchAll is set, every row is read and decoded
// up-front before fn is invoked for any of them, releasing the underlying
// connection (and, on PostgreSQL, the pgCache entry) sooner, so a caller
// may safely issue a nested query against the same Handle from within fn.
func (s *Statement) Query(ctx context.Context, timeout time.Duration, values []Value, opts FetchOptions, fn RowFunc) error {
	args := driverArgs(values, s.handle.Backend())

	return s.retry(ctx, timeout, func(ctx context.Context) error {
		rows, queryErr := s.query(ctx, args)
		if queryErr != nil {
			return queryErr
		}
		defer rows.Close()

		cols, colErr := rows.Columns()
		if colErr != nil {
			return colErr
		}

		index := make(map[string]int, len(cols))
		for i, c := range cols {
			index[c] = i
		}

		scratch := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range scratch {
			ptrs[i] = &scratch[i]
		}

		if opts.FetchAll {
			var buffered []*Row
			for rows.Next() {
				if scanErr := rows.Scan(ptrs...); scanErr != nil {
					return scanErr
				}
				buffered = append(buffered, &Row{
					values:  decodeRow(scratch, s.columns),
					columns: cols,
					index:   index,
				})
			}
			if err := rows.Err(); err != nil {
				return err
			}
			rows.Close()

			for _, row := range buffered {
				if err := fn(row); err != nil {
					return err
				}
				if !s.handle.node.handlers.runProgress() {
					return ErrInterrupted
				}
			}

			return nil
		}

		for rows.Next() {
			if scanErr := rows.Scan(ptrs...); scanErr != nil {
				return scanErr
			}

			row := &Row{
				values:  decodeRow(scratch, s.columns),
				columns: cols,
				index:   index,
			}

			if err := fn(row); err != nil {
				return err
			}

			if !s.handle.node.handlers.runProgress() {
				return ErrInterrupted
			}
		}

		return rows.Err()
	})
}

// query issues sqlText, routing through the Handle's PostgreSQL prepared
// statement cache when one is configured (every non-PostgreSQL Handle
// leaves pgCache nil, falling back to the plain pool path below).
func (s *Statement) query(ctx context.Context, args []interface{}) (*sql.Rows, error) {
	if s.handle.pgCache == nil {
		return s.handle.DB().QueryContext(ctx, s.sqlText, args...)
	}

	stmt, err := s.handle.pgCache.acquire(s.sqlText, func() (*sql.Stmt, error) {
		return s.handle.DB().PrepareContext(ctx, s.sqlText)
	})
	if err != nil {
		return nil, err
	}
	defer s.handle.pgCache.release(s.sqlText)

	return stmt.QueryContext(ctx, args...)
}

// retry drives fn, classifying its error and invoking busy handlers between
// attempts while a KindBusy condition persists, per the statement retry
// contract. It aborts immediately on KindInterrupted, and on timeout
// elapsing returns KindTimeout.
func (s *Statement) retry(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	var deadline time.Time
	hasDeadline := timeout != WaitForever
	if hasDeadline {
		deadline = time.Now().Add(timeout)
	}

	execCtx, cancel := context.WithCancel(ctx)
	s.handle.setCancel(cancel)
	defer func() {
		s.handle.setCancel(nil)
		cancel()
	}()

	for attempt := 0; ; attempt++ {
		err := fn(execCtx)
		if err == nil {
			return nil
		}

		cerr := classify(err)

		if IsKind(cerr, KindInterrupted) {
			return cerr
		}
		if !IsKind(cerr, KindBusy) {
			return errors.WithStack(cerr)
		}
		if hasDeadline && time.Now().After(deadline) {
			return ErrTimeout
		}
		if !s.handle.node.handlers.runBusy(attempt) {
			return cerr
		}

		sleep := maxBusySleep
		if hasDeadline {
			if remaining := time.Until(deadline); remaining < sleep {
				sleep = remaining
			}
		}
		if sleep <= 0 {
			return ErrTimeout
		}

		select {
		case <-time.After(sleep):
		case <-ctx.Done():
			return ErrInterrupted
		}
	}
}

// driverArgs converts Values into database/sql bind arguments.
func driverArgs(values []Value, backend BackendKind) []interface{} {
	args := make([]interface{}, 0, len(values))
	for _, v := range values {
		if v.IsExpr() {
			continue
		}
		args = append(args, v.driverArg(backend))
	}
	return args
}

// decodeRow converts a scanned row's raw driver values back into Values,
// applying the converse of the bind coercions for columns whose expected
// kind is known.
func decodeRow(raw []interface{}, columns []Column) []Value {
	out := make([]Value, len(raw))

	for i, v := range raw {
		var kind ValueKind
		if i < len(columns) {
			kind = columns[i].Type
		}

		out[i] = decodeValue(v, kind)
	}

	return out
}

func decodeValue(v interface{}, kind ValueKind) Value {
	if v == nil {
		return NewNone()
	}

	switch kind {
	case ValueDateTime:
		switch t := v.(type) {
		case int64:
			return NewDateTime(t)
		case []byte:
			return NewDateTime(parseInt64(string(t)))
		default:
			return NewDateTime(0)
		}
	case ValueBool:
		switch t := v.(type) {
		case bool:
			return NewBool(t)
		case int64:
			return NewBool(t != 0)
		case []byte:
			return NewBool(len(t) > 0 && t[0] != '0')
		}
	}

	switch t := v.(type) {
	case int64:
		return NewInt64(t)
	case float64:
		return NewDouble(t)
	case bool:
		return NewBool(t)
	case []byte:
		return NewString(string(t))
	case string:
		return NewString(t)
	default:
		return NewString("")
	}
}

func parseInt64(s string) int64 {
	var n int64
	var sign int64 = 1
	for i, c := range s {
		if i == 0 && c == '-' {
			sign = -1
			continue
		}
		if c < '0' || c > '9' {
			break
		}
		n = n*10 + int64(c-'0')
	}
	return n * sign
}
