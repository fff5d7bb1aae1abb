package database

import (
	"context"
	"time"
)

// Get runs a SELECT across one or more tables (UNION'd when more than one
// SelectSpec is given), invoking fn once per row.
func Get(ctx context.Context, h *Handle, specs []SelectSpec, opts SelectOptions, timeout time.Duration, fn RowFunc) error {
	builder := NewBuilder(h.Backend())
	sql, values := builder.Select(specs, opts)

	var columns []Column
	if len(specs) > 0 {
		columns = specs[0].Projection
	}

	return Prepare(h, sql, columns).Query(ctx, timeout, values, FetchOptions{}, fn)
}

// Insert inserts one row, returning the assigned row id (for tables with an
// auto-assigned primary key; 0 otherwise).
func Insert(ctx context.Context, h *Handle, table string, columns []Column, values []Value, mode InsertMode, conflictCols []string, timeout time.Duration) (int64, error) {
	builder := NewBuilder(h.Backend())
	sql, args, err := builder.Insert(InsertSpec{Table: table, Columns: columns, Values: values, Mode: mode, ConflictCols: conflictCols})
	if err != nil {
		return 0, err
	}

	_, id, err := Prepare(h, sql, nil).Exec(ctx, timeout, args)
	return id, err
}

// InsertSelect inserts the result of a SELECT into table.
func InsertSelect(ctx context.Context, h *Handle, table string, columns []Column, specs []SelectSpec, selOpts SelectOptions, timeout time.Duration) error {
	builder := NewBuilder(h.Backend())
	selSQL, selValues := builder.Select(specs, selOpts)
	sql, args := builder.InsertSelect(table, columns, selSQL, selValues)

	_, _, err := Prepare(h, sql, nil).Exec(ctx, timeout, args)
	return err
}

// Update updates rows matching filter (every row, if filter is the zero
// Filter), returning the number of rows changed.
func Update(ctx context.Context, h *Handle, table string, columns []Column, values []Value, filter Filter, timeout time.Duration) (int64, error) {
	builder := NewBuilder(h.Backend())
	sql, args := builder.Update(table, columns, values, filter)

	changed, _, err := Prepare(h, sql, nil).Exec(ctx, timeout, args)
	return changed, err
}

// Delete deletes rows matching filter, returning the number of rows
// changed. limit applies only on sqlite; pass Unlimited elsewhere.
func Delete(ctx context.Context, h *Handle, table string, filter Filter, limit int, timeout time.Duration) (int64, error) {
	builder := NewBuilder(h.Backend())
	sql, args := builder.Delete(table, filter, limit)

	changed, _, err := Prepare(h, sql, nil).Exec(ctx, timeout, args)
	return changed, err
}

// DeleteByIds deletes rows whose idColumn value is in ids, coalesced into a
// single `IN (?)`-shaped statement rather than one delete per id.
func DeleteByIds(ctx context.Context, h *Handle, table string, idColumn string, ids []int64, timeout time.Duration) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	filter := NewFilter(idColumn+" IN ("+inPlaceholders(len(ids))+")", keysToValues(ids)...)

	return Delete(ctx, h, table, filter, Unlimited, timeout)
}

func inPlaceholders(n int) string {
	s := make([]byte, 0, n*2)
	for i := 0; i < n; i++ {
		if i > 0 {
			s = append(s, ',')
		}
		s = append(s, '?')
	}
	return string(s)
}

func keysToValues(ids []int64) []Value {
	values := make([]Value, len(ids))
	for i, id := range ids {
		values[i] = NewKey(id)
	}
	return values
}

// ExistsValue reports whether a row matching filter exists, via a
// `SELECT … LIMIT 1`.
func ExistsValue(ctx context.Context, h *Handle, table string, projection []Column, filter Filter, timeout time.Duration) (bool, error) {
	found := false

	err := Get(ctx, h, []SelectSpec{{Table: table, Projection: projection, Filter: filter}}, SelectOptions{Limit: 1}, timeout, func(*Row) error {
		found = true
		return nil
	})

	return found, err
}

func firstValue(ctx context.Context, h *Handle, table string, col Column, filter Filter, timeout time.Duration) (Value, bool, error) {
	var v Value
	found := false

	err := Get(ctx, h, []SelectSpec{{Table: table, Projection: []Column{col}, Filter: filter}}, SelectOptions{Limit: 1}, timeout, func(row *Row) error {
		v = row.Value(0)
		found = true
		return nil
	})

	return v, found, err
}

// GetId returns idColumn's first matching value, or 0 if no row matches.
func GetId(ctx context.Context, h *Handle, table, idColumn string, filter Filter, timeout time.Duration) (int64, error) {
	v, found, err := firstValue(ctx, h, table, NewColumn(idColumn, ValueKey), filter, timeout)
	if err != nil || !found {
		return 0, err
	}
	return v.Int64(), nil
}

// GetIds returns every value of idColumn matching filter.
func GetIds(ctx context.Context, h *Handle, table, idColumn string, filter Filter, timeout time.Duration) ([]int64, error) {
	var ids []int64

	err := Get(ctx, h, []SelectSpec{{Table: table, Projection: []Column{NewColumn(idColumn, ValueKey)}, Filter: filter}}, SelectOptions{Limit: Unlimited}, timeout, func(row *Row) error {
		ids = append(ids, row.Value(0).Int64())
		return nil
	})

	return ids, err
}

// GetMaxId returns the maximum idColumn value matching filter, or 0 if no
// row matches.
func GetMaxId(ctx context.Context, h *Handle, table, idColumn string, filter Filter, timeout time.Duration) (int64, error) {
	col := NewColumn("MAX("+idColumn+")", ValueKey).As("max_id")
	v, found, err := firstValue(ctx, h, table, col, filter, timeout)
	if err != nil || !found || v.IsNone() {
		return 0, err
	}
	return v.Int64(), nil
}

func GetInt(ctx context.Context, h *Handle, table, column string, filter Filter, timeout time.Duration) (int32, error) {
	v, found, err := firstValue(ctx, h, table, NewColumn(column, ValueInt32), filter, timeout)
	if err != nil || !found {
		return 0, err
	}
	return v.Int32(), nil
}

func GetUInt(ctx context.Context, h *Handle, table, column string, filter Filter, timeout time.Duration) (uint32, error) {
	v, found, err := firstValue(ctx, h, table, NewColumn(column, ValueUInt32), filter, timeout)
	if err != nil || !found {
		return 0, err
	}
	return v.UInt32(), nil
}

func GetInt64(ctx context.Context, h *Handle, table, column string, filter Filter, timeout time.Duration) (int64, error) {
	v, found, err := firstValue(ctx, h, table, NewColumn(column, ValueInt64), filter, timeout)
	if err != nil || !found {
		return 0, err
	}
	return v.Int64(), nil
}

func GetUInt64(ctx context.Context, h *Handle, table, column string, filter Filter, timeout time.Duration) (uint64, error) {
	v, found, err := firstValue(ctx, h, table, NewColumn(column, ValueUInt64), filter, timeout)
	if err != nil || !found {
		return 0, err
	}
	return v.UInt64(), nil
}

func GetDouble(ctx context.Context, h *Handle, table, column string, filter Filter, timeout time.Duration) (float64, error) {
	v, found, err := firstValue(ctx, h, table, NewColumn(column, ValueDouble), filter, timeout)
	if err != nil || !found {
		return 0, err
	}
	return v.Double(), nil
}

func GetString(ctx context.Context, h *Handle, table, column string, filter Filter, timeout time.Duration) (string, error) {
	v, found, err := firstValue(ctx, h, table, NewColumn(column, ValueString), filter, timeout)
	if err != nil || !found {
		return "", err
	}
	return v.String(), nil
}

func GetCString(ctx context.Context, h *Handle, table, column string, filter Filter, timeout time.Duration) (string, error) {
	v, found, err := firstValue(ctx, h, table, NewColumn(column, ValueCString), filter, timeout)
	if err != nil || !found {
		return "", err
	}
	return v.String(), nil
}

func setScalar(ctx context.Context, h *Handle, table, column string, v Value, filter Filter, timeout time.Duration) error {
	_, err := Update(ctx, h, table, []Column{NewColumn(column, v.Kind)}, []Value{v}, filter, timeout)
	return err
}

func SetInt(ctx context.Context, h *Handle, table, column string, v int32, filter Filter, timeout time.Duration) error {
	return setScalar(ctx, h, table, column, NewInt32(v), filter, timeout)
}

func SetUInt(ctx context.Context, h *Handle, table, column string, v uint32, filter Filter, timeout time.Duration) error {
	return setScalar(ctx, h, table, column, NewUInt32(v), filter, timeout)
}

func SetInt64(ctx context.Context, h *Handle, table, column string, v int64, filter Filter, timeout time.Duration) error {
	return setScalar(ctx, h, table, column, NewInt64(v), filter, timeout)
}

func SetUInt64(ctx context.Context, h *Handle, table, column string, v uint64, filter Filter, timeout time.Duration) error {
	return setScalar(ctx, h, table, column, NewUInt64(v), filter, timeout)
}

func SetString(ctx context.Context, h *Handle, table, column string, v string, filter Filter, timeout time.Duration) error {
	return setScalar(ctx, h, table, column, NewString(v), filter, timeout)
}
