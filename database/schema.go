package database

import (
	"context"
	"strings"
	"time"
)

// TableColumn describes one column of a table as reported by schema
// introspection: its name and the backend-native type text (not mapped to
// a ValueKind, since compare only ever needs to compare two such strings
// for equality).
type TableColumn struct {
	Name string
	Type string
}

// TableSchema is one table's columns, keyed by name as reported by the
// backend (case preserved; compare matches case-insensitively).
type TableSchema struct {
	Name    string
	Columns []TableColumn
}

// GetTableList returns every user table name visible on h.
func GetTableList(ctx context.Context, h *Handle, timeout time.Duration) ([]string, error) {
	switch h.Backend() {
	case Sqlite:
		return listNames(ctx, h, timeout, "SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'")
	case MariaDB:
		return listNames(ctx, h, timeout, "SHOW FULL TABLES WHERE Table_type = 'BASE TABLE'")
	default:
		return listNames(ctx, h, timeout, "SELECT table_name FROM information_schema.tables WHERE table_schema = current_schema() AND table_type = 'BASE TABLE'")
	}
}

// GetViewList returns every view name visible on h.
func GetViewList(ctx context.Context, h *Handle, timeout time.Duration) ([]string, error) {
	switch h.Backend() {
	case Sqlite:
		return listNames(ctx, h, timeout, "SELECT name FROM sqlite_master WHERE type='view'")
	case MariaDB:
		return listNames(ctx, h, timeout, "SHOW FULL TABLES WHERE Table_type = 'VIEW'")
	default:
		return listNames(ctx, h, timeout, "SELECT table_name FROM information_schema.views WHERE table_schema = current_schema()")
	}
}

// GetIndexList returns every index name defined on table.
func GetIndexList(ctx context.Context, h *Handle, table string, timeout time.Duration) ([]string, error) {
	switch h.Backend() {
	case Sqlite:
		return listNames(ctx, h, timeout, "SELECT name FROM pragma_index_list(?)", NewString(table))
	case MariaDB:
		var names []string
		err := Prepare(h, "SHOW INDEX FROM "+quoteIdent(h.Backend(), table), nil).Query(ctx, timeout, nil, FetchOptions{}, func(row *Row) error {
			names = append(names, row.Column("Key_name").String())
			return nil
		})
		return dedupe(names), err
	default:
		return listNames(ctx, h, timeout,
			"SELECT indexname FROM pg_indexes WHERE schemaname = current_schema() AND tablename = ?", NewString(table))
	}
}

// GetTriggerList returns every trigger name defined on table.
func GetTriggerList(ctx context.Context, h *Handle, table string, timeout time.Duration) ([]string, error) {
	switch h.Backend() {
	case Sqlite:
		return listNames(ctx, h, timeout, "SELECT name FROM sqlite_master WHERE type='trigger' AND tbl_name = ?", NewString(table))
	case MariaDB:
		return listNames(ctx, h, timeout, "SHOW TRIGGERS WHERE `Table` = ?", NewString(table))
	default:
		return listNames(ctx, h, timeout,
			"SELECT trigger_name FROM information_schema.triggers WHERE event_object_schema = current_schema() AND event_object_table = ?", NewString(table))
	}
}

func listNames(ctx context.Context, h *Handle, timeout time.Duration, sqlText string, args ...Value) ([]string, error) {
	var names []string
	err := Prepare(h, sqlText, nil).Query(ctx, timeout, args, FetchOptions{}, func(row *Row) error {
		names = append(names, row.Value(0).String())
		return nil
	})
	return names, err
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// GetTableSchema returns table's columns and their backend-native type text.
func GetTableSchema(ctx context.Context, h *Handle, table string, timeout time.Duration) (TableSchema, error) {
	schema := TableSchema{Name: table}

	switch h.Backend() {
	case Sqlite:
		err := Prepare(h, "SELECT name, type FROM pragma_table_info(?)", nil).
			Query(ctx, timeout, []Value{NewString(table)}, FetchOptions{}, func(row *Row) error {
				schema.Columns = append(schema.Columns, TableColumn{Name: row.Value(0).String(), Type: row.Value(1).String()})
				return nil
			})
		return schema, err
	case MariaDB:
		err := Prepare(h, "SHOW COLUMNS FROM "+quoteIdent(h.Backend(), table), nil).
			Query(ctx, timeout, nil, FetchOptions{}, func(row *Row) error {
				schema.Columns = append(schema.Columns, TableColumn{Name: row.Column("Field").String(), Type: row.Column("Type").String()})
				return nil
			})
		return schema, err
	default:
		err := Prepare(h, "SELECT column_name, data_type FROM information_schema.columns WHERE table_schema = current_schema() AND table_name = ? ORDER BY ordinal_position", nil).
			Query(ctx, timeout, []Value{NewString(table)}, FetchOptions{}, func(row *Row) error {
				schema.Columns = append(schema.Columns, TableColumn{Name: row.Value(0).String(), Type: row.Value(1).String()})
				return nil
			})
		return schema, err
	}
}

func quoteIdent(backend BackendKind, name string) string {
	if backend == PostgreSQL {
		return `"` + name + `"`
	}
	return "`" + name + "`"
}

// AddColumn adds column of the given backend-native type text to table,
// with defaultExpr spliced verbatim as the DEFAULT clause (empty for none).
func AddColumn(ctx context.Context, h *Handle, table, column, typeText, defaultExpr string, timeout time.Duration) error {
	sqlText := "ALTER TABLE " + quoteIdent(h.Backend(), table) + " ADD COLUMN " + quoteIdent(h.Backend(), column) + " " + typeText
	if defaultExpr != "" {
		sqlText += " DEFAULT " + defaultExpr
	}

	_, _, err := Prepare(h, sqlText, nil).Exec(ctx, timeout, nil)
	return err
}

// RemoveColumn drops column from table. On sqlite, which has no native
// DROP COLUMN before the column-rebuild-free 3.35, it rebuilds the table
// under its own write lock via CREATE temp / COPY / DROP / RENAME; on the
// server backends it issues a native ALTER TABLE DROP COLUMN.
func RemoveColumn(ctx context.Context, h *Handle, table, column string, timeout time.Duration) error {
	if h.Backend() != Sqlite {
		sqlText := "ALTER TABLE " + quoteIdent(h.Backend(), table) + " DROP COLUMN " + quoteIdent(h.Backend(), column)
		_, _, err := Prepare(h, sqlText, nil).Exec(ctx, timeout, nil)
		return err
	}

	return rebuildTableWithoutColumn(ctx, h, table, column, timeout)
}

func rebuildTableWithoutColumn(ctx context.Context, h *Handle, table, column string, timeout time.Duration) error {
	schema, err := GetTableSchema(ctx, h, table, timeout)
	if err != nil {
		return err
	}

	var kept []string
	for _, c := range schema.Columns {
		if strings.EqualFold(c.Name, column) {
			continue
		}
		kept = append(kept, quoteIdent(Sqlite, c.Name))
	}

	tmpTable := table + "__bardb_tmp"
	colList := strings.Join(kept, ", ")

	tx, err := Begin(ctx, h, TxExclusive, timeout)
	if err != nil {
		return err
	}

	run := func(sqlText string) error {
		_, _, err := Prepare(h, sqlText, nil).Exec(ctx, timeout, nil)
		return err
	}

	if err := run("CREATE TABLE " + quoteIdent(Sqlite, tmpTable) + " AS SELECT " + colList + " FROM " + quoteIdent(Sqlite, table)); err != nil {
		_ = tx.Rollback(ctx, timeout)
		return err
	}
	if err := run("DROP TABLE " + quoteIdent(Sqlite, table)); err != nil {
		_ = tx.Rollback(ctx, timeout)
		return err
	}
	if err := run("ALTER TABLE " + quoteIdent(Sqlite, tmpTable) + " RENAME TO " + quoteIdent(Sqlite, table)); err != nil {
		_ = tx.Rollback(ctx, timeout)
		return err
	}

	return tx.End(ctx, timeout)
}

// CompareOptions configures Compare.
type CompareOptions struct {
	// IgnoreObsolete suppresses ObsoleteTable/ObsoleteColumn findings:
	// only MissingTable/MissingColumn/TypeMismatch are reported.
	IgnoreObsolete bool
}

// Compare cross-checks target against reference column-by-column, matching
// table and column names case-insensitively, and returns every mismatch as
// a *Error of the matching Kind (MissingTable, MissingColumn, TypeMismatch,
// and — unless opts.IgnoreObsolete — ObsoleteTable, ObsoleteColumn).
func Compare(ctx context.Context, reference, target *Handle, opts CompareOptions, timeout time.Duration) ([]error, error) {
	refTables, err := GetTableList(ctx, reference, timeout)
	if err != nil {
		return nil, err
	}
	targetTables, err := GetTableList(ctx, target, timeout)
	if err != nil {
		return nil, err
	}

	refSet := foldSet(refTables)
	targetSet := foldSet(targetTables)

	var problems []error

	for _, t := range refTables {
		if _, ok := targetSet[strings.ToLower(t)]; !ok {
			problems = append(problems, newError(KindMissingTable, nil, "table %q is missing", t))
			continue
		}

		refSchema, err := GetTableSchema(ctx, reference, t, timeout)
		if err != nil {
			return nil, err
		}
		targetSchema, err := GetTableSchema(ctx, target, t, timeout)
		if err != nil {
			return nil, err
		}

		problems = append(problems, compareColumns(t, refSchema, targetSchema, opts)...)
	}

	if !opts.IgnoreObsolete {
		for _, t := range targetTables {
			if _, ok := refSet[strings.ToLower(t)]; !ok {
				problems = append(problems, newError(KindObsoleteTable, nil, "table %q is obsolete", t))
			}
		}
	}

	return problems, nil
}

func compareColumns(table string, ref, target TableSchema, opts CompareOptions) []error {
	refByName := make(map[string]TableColumn, len(ref.Columns))
	for _, c := range ref.Columns {
		refByName[strings.ToLower(c.Name)] = c
	}
	targetByName := make(map[string]TableColumn, len(target.Columns))
	for _, c := range target.Columns {
		targetByName[strings.ToLower(c.Name)] = c
	}

	var problems []error

	for _, rc := range ref.Columns {
		tc, ok := targetByName[strings.ToLower(rc.Name)]
		if !ok {
			problems = append(problems, newError(KindMissingColumn, nil, "column %q.%q is missing", table, rc.Name))
			continue
		}
		if !strings.EqualFold(tc.Type, rc.Type) {
			problems = append(problems, newError(KindTypeMismatch, nil, "column %q.%q has type %q, expected %q", table, rc.Name, tc.Type, rc.Type))
		}
	}

	if !opts.IgnoreObsolete {
		for _, tc := range target.Columns {
			if _, ok := refByName[strings.ToLower(tc.Name)]; !ok {
				problems = append(problems, newError(KindObsoleteColumn, nil, "column %q.%q is obsolete", table, tc.Name))
			}
		}
	}

	return problems
}

func foldSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[strings.ToLower(n)] = struct{}{}
	}
	return set
}
