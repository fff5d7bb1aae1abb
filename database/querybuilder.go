package database

import (
	"strconv"
	"strings"
)

// Unlimited is the limit value meaning "no LIMIT clause".
const Unlimited = -1

// reservedWords is the set of identifiers this package always quotes,
// since they collide with a keyword on at least one of the three
// backends — most notably "offset" on PostgreSQL.
var reservedWords = map[string]struct{}{
	"offset": {}, "limit": {}, "user": {}, "group": {}, "order": {},
	"column": {}, "table": {}, "key": {}, "default": {}, "check": {},
}

// Builder assembles portable SELECT/INSERT/UPDATE/DELETE statements for a
// target backend, renumbering placeholders and quoting reserved names the
// way each backend requires.
type Builder struct {
	Backend BackendKind
	Debug   bool
}

// NewBuilder returns a Builder targeting kind.
func NewBuilder(kind BackendKind) *Builder {
	return &Builder{Backend: kind}
}

func (b *Builder) quote(name string) string {
	if _, reserved := reservedWords[strings.ToLower(name)]; reserved {
		return `"` + name + `"`
	}
	return name
}

// projectColumn renders one projection entry, wrapping DateTime columns so
// their value comes back as UNIX seconds regardless of backend.
func (b *Builder) projectColumn(c Column) string {
	name := b.quote(c.Name)

	if c.Type == ValueDateTime {
		switch b.Backend {
		case PostgreSQL:
			name = "EXTRACT(EPOCH FROM " + name + ")"
		default:
			name = "UNIX_TIMESTAMP(" + name + ")"
		}
	}

	if c.Alias != "" {
		return name + " AS " + b.quote(c.Alias)
	}

	return name
}

// renumberPlaceholders rewrites every unescaped, unquoted `?` in sql as
// $1, $2, … in left-to-right order, for PostgreSQL. sqlite and MariaDB
// pass sql through unchanged.
func (b *Builder) renumberPlaceholders(sql string) string {
	if b.Backend != PostgreSQL {
		return sql
	}

	var out strings.Builder
	out.Grow(len(sql) + 8)

	inString := false
	n := 0

	for i := 0; i < len(sql); i++ {
		c := sql[i]

		switch {
		case inString:
			out.WriteByte(c)
			if c == '\\' && i+1 < len(sql) {
				i++
				out.WriteByte(sql[i])
			} else if c == '\'' {
				inString = false
			}
		case c == '\'':
			inString = true
			out.WriteByte(c)
		case c == '?':
			n++
			out.WriteByte('$')
			out.WriteString(strconv.Itoa(n))
		default:
			out.WriteByte(c)
		}
	}

	return out.String()
}

// SelectSpec describes one SELECT, or one branch of a UNION SELECT when
// Select is called with several.
type SelectSpec struct {
	Table      string
	Projection []Column
	Filter     Filter
}

// SelectOptions configures the tail of a (possibly UNION'd) SELECT.
type SelectOptions struct {
	GroupBy string
	OrderBy string
	Offset  int
	Limit   int // Unlimited for none
}

// Select builds one or more SELECTs joined with UNION SELECT, returning the
// final statement text and its positional bind values in left-to-right
// order (placeholders already renumbered for PostgreSQL).
func (b *Builder) Select(specs []SelectSpec, opts SelectOptions) (string, []Value) {
	var branches []string
	var values []Value

	for _, spec := range specs {
		cols := make([]string, len(spec.Projection))
		for i, c := range spec.Projection {
			cols[i] = b.projectColumn(c)
		}

		stmt := "SELECT " + strings.Join(cols, ", ") + " FROM " + b.quote(spec.Table)
		if !spec.Filter.IsZero() {
			stmt += " WHERE " + spec.Filter.Expr
			values = append(values, spec.Filter.Values...)
		}

		branches = append(branches, stmt)
	}

	sql := strings.Join(branches, " UNION ")

	if opts.GroupBy != "" {
		sql += " GROUP BY " + opts.GroupBy
	}
	if opts.OrderBy != "" {
		sql += " ORDER BY " + opts.OrderBy
	}
	if opts.Limit != Unlimited && opts.Limit >= 0 {
		sql += " LIMIT " + strconv.Itoa(opts.Limit)
	}
	if opts.Offset > 0 {
		sql += " OFFSET " + strconv.Itoa(opts.Offset)
	}

	return b.renumberPlaceholders(sql), values
}

// InsertMode selects how Insert reacts to a conflicting row.
type InsertMode int

const (
	InsertNormal InsertMode = iota
	InsertIgnore
	InsertReplace
)

// InsertSpec describes one row to insert.
type InsertSpec struct {
	Table        string
	Columns      []Column
	Values       []Value
	Mode         InsertMode
	ConflictCols []string // required for InsertReplace on PostgreSQL
}

// Insert builds an INSERT statement adapted to spec.Mode and the target
// backend, returning the statement text and positional bind values (only
// the non-expression Values are bound; expression Values are spliced).
func (b *Builder) Insert(spec InsertSpec) (string, []Value, error) {
	names := make([]string, len(spec.Columns))
	placeholders := make([]string, len(spec.Columns))
	var values []Value

	for i, c := range spec.Columns {
		names[i] = b.quote(c.Name)
		if i < len(spec.Values) && spec.Values[i].IsExpr() {
			placeholders[i] = spec.Values[i].Expr()
		} else {
			placeholders[i] = "?"
			if i < len(spec.Values) {
				values = append(values, spec.Values[i])
			}
		}
	}

	base := "INSERT"
	suffix := ""

	switch spec.Mode {
	case InsertIgnore:
		switch b.Backend {
		case Sqlite:
			base = "INSERT OR IGNORE"
		case MariaDB:
			base = "INSERT IGNORE"
		case PostgreSQL:
			suffix = " ON CONFLICT DO NOTHING"
		}

	case InsertReplace:
		switch b.Backend {
		case Sqlite:
			base = "INSERT OR REPLACE"
		case MariaDB:
			base = "REPLACE"
		case PostgreSQL:
			if len(spec.ConflictCols) == 0 {
				return "", nil, newError(KindInvalid, nil, "InsertReplace on postgresql requires ConflictCols")
			}
			var set []string
			for _, c := range spec.Columns {
				set = append(set, b.quote(c.Name)+" = EXCLUDED."+b.quote(c.Name))
			}
			quotedConflict := make([]string, len(spec.ConflictCols))
			for i, c := range spec.ConflictCols {
				quotedConflict[i] = b.quote(c)
			}
			suffix = " ON CONFLICT (" + strings.Join(quotedConflict, ", ") + ") DO UPDATE SET " + strings.Join(set, ", ")
		}
	}

	sql := base + " INTO " + b.quote(spec.Table) +
		" (" + strings.Join(names, ", ") + ") VALUES (" + strings.Join(placeholders, ", ") + ")" + suffix

	return b.renumberPlaceholders(sql), values, nil
}

// InsertMulti builds a single multi-row INSERT statement for rows (each a
// positional slice of Values aligned with columns), adapted to mode the
// same way Insert adapts a single row. It is the statement shape the bulk
// streaming layer uses to amortise round-trips across many rows.
func (b *Builder) InsertMulti(table string, columns []Column, rows [][]Value, mode InsertMode, conflictCols []string) (string, []Value, error) {
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = b.quote(c.Name)
	}

	rowPlaceholder := "(" + strings.Join(repeatPlaceholder(len(columns)), ", ") + ")"
	rowGroups := make([]string, len(rows))
	var values []Value
	for i, row := range rows {
		rowGroups[i] = rowPlaceholder
		values = append(values, row...)
	}

	base := "INSERT"
	suffix := ""

	switch mode {
	case InsertIgnore:
		switch b.Backend {
		case Sqlite:
			base = "INSERT OR IGNORE"
		case MariaDB:
			base = "INSERT IGNORE"
		case PostgreSQL:
			suffix = " ON CONFLICT DO NOTHING"
		}

	case InsertReplace:
		switch b.Backend {
		case Sqlite:
			base = "INSERT OR REPLACE"
		case MariaDB:
			base = "REPLACE"
		case PostgreSQL:
			if len(conflictCols) == 0 {
				return "", nil, newError(KindInvalid, nil, "InsertReplace on postgresql requires ConflictCols")
			}
			var set []string
			for _, c := range columns {
				set = append(set, b.quote(c.Name)+" = EXCLUDED."+b.quote(c.Name))
			}
			quotedConflict := make([]string, len(conflictCols))
			for i, c := range conflictCols {
				quotedConflict[i] = b.quote(c)
			}
			suffix = " ON CONFLICT (" + strings.Join(quotedConflict, ", ") + ") DO UPDATE SET " + strings.Join(set, ", ")
		}
	}

	sql := base + " INTO " + b.quote(table) +
		" (" + strings.Join(names, ", ") + ") VALUES " + strings.Join(rowGroups, ", ") + suffix

	return b.renumberPlaceholders(sql), values, nil
}

func repeatPlaceholder(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = "?"
	}
	return out
}

// InsertSelect builds `INSERT INTO table (cols) <select>`.
func (b *Builder) InsertSelect(table string, columns []Column, selectSQL string, selectValues []Value) (string, []Value) {
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = b.quote(c.Name)
	}

	sql := "INSERT INTO " + b.quote(table) + " (" + strings.Join(names, ", ") + ") " + selectSQL

	return sql, selectValues
}

// Update builds `UPDATE table SET col = ?, … [WHERE filter]`. An empty
// filter updates every row; callers that mean to scope the update must
// supply one.
func (b *Builder) Update(table string, columns []Column, values []Value, filter Filter) (string, []Value) {
	var set []string
	var bind []Value

	for i, c := range columns {
		if i < len(values) && values[i].IsExpr() {
			set = append(set, b.quote(c.Name)+" = "+values[i].Expr())
		} else {
			set = append(set, b.quote(c.Name)+" = ?")
			if i < len(values) {
				bind = append(bind, values[i])
			}
		}
	}

	sql := "UPDATE " + b.quote(table) + " SET " + strings.Join(set, ", ")
	if !filter.IsZero() {
		sql += " WHERE " + filter.Expr
		bind = append(bind, filter.Values...)
	}

	return b.renumberPlaceholders(sql), bind
}

// Delete builds `DELETE FROM table [WHERE filter] [LIMIT n]`. LIMIT is only
// honoured on sqlite; servers require the caller to pre-restrict via the
// filter instead, per this package's portability contract.
func (b *Builder) Delete(table string, filter Filter, limit int) (string, []Value) {
	sql := "DELETE FROM " + b.quote(table)
	var bind []Value

	if !filter.IsZero() {
		sql += " WHERE " + filter.Expr
		bind = filter.Values
	}

	if b.Backend == Sqlite && limit != Unlimited && limit >= 0 {
		sql += " LIMIT " + strconv.Itoa(limit)
	}

	return b.renumberPlaceholders(sql), bind
}
