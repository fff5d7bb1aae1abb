package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuilder_Select(t *testing.T) {
	cols := []Column{NewColumn("id", ValueInt64), NewColumn("name", ValueString)}

	tests := []struct {
		name    string
		backend BackendKind
		specs   []SelectSpec
		opts    SelectOptions
		wantSQL string
	}{{
		name:    "sqlite_simple",
		backend: Sqlite,
		specs:   []SelectSpec{{Table: "host", Projection: cols, Filter: NewFilter("id = ?", NewKey(1))}},
		opts:    SelectOptions{Limit: Unlimited},
		wantSQL: "SELECT id, name FROM host WHERE id = ?",
	}, {
		name:    "postgresql_renumbers_placeholders",
		backend: PostgreSQL,
		specs:   []SelectSpec{{Table: "host", Projection: cols, Filter: NewFilter("id = ? AND name = ?", NewKey(1), NewString("x"))}},
		opts:    SelectOptions{Limit: Unlimited},
		wantSQL: `SELECT id, name FROM host WHERE id = $1 AND name = $2`,
	}, {
		name:    "limit_and_offset",
		backend: Sqlite,
		specs:   []SelectSpec{{Table: "host", Projection: cols}},
		opts:    SelectOptions{Limit: 10, Offset: 20},
		wantSQL: "SELECT id, name FROM host LIMIT 10 OFFSET 20",
	}, {
		name:    "union",
		backend: Sqlite,
		specs: []SelectSpec{
			{Table: "host", Projection: cols},
			{Table: "service", Projection: cols},
		},
		opts:    SelectOptions{Limit: Unlimited},
		wantSQL: "SELECT id, name FROM host UNION SELECT id, name FROM service",
	}}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b := NewBuilder(tc.backend)
			sql, _ := b.Select(tc.specs, tc.opts)
			assert.Equal(t, tc.wantSQL, sql)
		})
	}
}

func TestBuilder_Select_reservedWordQuoted(t *testing.T) {
	b := NewBuilder(PostgreSQL)
	sql, _ := b.Select([]SelectSpec{{Table: "event", Projection: []Column{NewColumn("offset", ValueInt64)}}}, SelectOptions{Limit: Unlimited})
	assert.Contains(t, sql, `"offset"`)
}

func TestBuilder_Select_dateTimeProjection(t *testing.T) {
	col := NewColumn("created", ValueDateTime)

	sqliteSQL, _ := NewBuilder(Sqlite).Select([]SelectSpec{{Table: "t", Projection: []Column{col}}}, SelectOptions{Limit: Unlimited})
	assert.Contains(t, sqliteSQL, "UNIX_TIMESTAMP(created)")

	pgSQL, _ := NewBuilder(PostgreSQL).Select([]SelectSpec{{Table: "t", Projection: []Column{col}}}, SelectOptions{Limit: Unlimited})
	assert.Contains(t, pgSQL, "EXTRACT(EPOCH FROM created)")
}

func TestBuilder_Insert_modes(t *testing.T) {
	cols := []Column{NewColumn("id", ValueInt64), NewColumn("name", ValueString)}
	values := []Value{NewKey(1), NewString("x")}

	tests := []struct {
		name         string
		backend      BackendKind
		mode         InsertMode
		conflictCols []string
		wantSQL      string
		wantErr      bool
	}{
		{name: "sqlite_normal", backend: Sqlite, mode: InsertNormal, wantSQL: "INSERT INTO host (id, name) VALUES (?, ?)"},
		{name: "sqlite_ignore", backend: Sqlite, mode: InsertIgnore, wantSQL: "INSERT OR IGNORE INTO host (id, name) VALUES (?, ?)"},
		{name: "mariadb_ignore", backend: MariaDB, mode: InsertIgnore, wantSQL: "INSERT IGNORE INTO host (id, name) VALUES (?, ?)"},
		{name: "mariadb_replace", backend: MariaDB, mode: InsertReplace, wantSQL: "REPLACE INTO host (id, name) VALUES (?, ?)"},
		{name: "postgresql_ignore", backend: PostgreSQL, mode: InsertIgnore, wantSQL: "INSERT INTO host (id, name) VALUES ($1, $2) ON CONFLICT DO NOTHING"},
		{name: "postgresql_replace_needs_conflict_cols", backend: PostgreSQL, mode: InsertReplace, wantErr: true},
		{
			name: "postgresql_replace", backend: PostgreSQL, mode: InsertReplace, conflictCols: []string{"id"},
			wantSQL: `INSERT INTO host (id, name) VALUES ($1, $2) ON CONFLICT (id) DO UPDATE SET id = EXCLUDED.id, name = EXCLUDED.name`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b := NewBuilder(tc.backend)
			sql, args, err := b.Insert(InsertSpec{Table: "host", Columns: cols, Values: values, Mode: tc.mode, ConflictCols: tc.conflictCols})
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.wantSQL, sql)
			assert.Len(t, args, 2)
		})
	}
}

func TestBuilder_Insert_expressionValueIsSplicedNotBound(t *testing.T) {
	cols := []Column{NewColumn("id", ValueInt64), NewColumn("created", ValueDateTime)}
	values := []Value{NewKey(1), NewExpr("NOW()")}

	b := NewBuilder(Sqlite)
	sql, args, err := b.Insert(InsertSpec{Table: "host", Columns: cols, Values: values, Mode: InsertNormal})
	assert.NoError(t, err)
	assert.Equal(t, "INSERT INTO host (id, created) VALUES (?, NOW())", sql)
	assert.Len(t, args, 1)
}

func TestBuilder_InsertMulti(t *testing.T) {
	cols := []Column{NewColumn("id", ValueInt64), NewColumn("name", ValueString)}
	rows := [][]Value{
		{NewKey(1), NewString("a")},
		{NewKey(2), NewString("b")},
	}

	b := NewBuilder(PostgreSQL)
	sql, args, err := b.InsertMulti("host", cols, rows, InsertNormal, nil)
	assert.NoError(t, err)
	assert.Equal(t, "INSERT INTO host (id, name) VALUES ($1, $2), ($3, $4)", sql)
	assert.Len(t, args, 4)
}

func TestBuilder_Update(t *testing.T) {
	cols := []Column{NewColumn("name", ValueString)}
	values := []Value{NewString("renamed")}
	filter := NewFilter("id = ?", NewKey(1))

	b := NewBuilder(PostgreSQL)
	sql, args := b.Update("host", cols, values, filter)
	assert.Equal(t, "UPDATE host SET name = $1 WHERE id = $2", sql)
	assert.Len(t, args, 2)
}

func TestBuilder_Delete(t *testing.T) {
	filter := NewFilter("id = ?", NewKey(1))

	sqliteSQL, _ := NewBuilder(Sqlite).Delete("host", filter, 5)
	assert.Equal(t, "DELETE FROM host WHERE id = ? LIMIT 5", sqliteSQL)

	// LIMIT is only honoured on sqlite; server backends ignore it entirely.
	pgSQL, _ := NewBuilder(PostgreSQL).Delete("host", filter, 5)
	assert.Equal(t, "DELETE FROM host WHERE id = $1", pgSQL)
}

func TestBuilder_renumberPlaceholders_ignoresQuestionMarksInStrings(t *testing.T) {
	b := NewBuilder(PostgreSQL)
	sql := b.renumberPlaceholders(`SELECT * FROM host WHERE name = 'literal?' AND id = ?`)
	assert.Equal(t, `SELECT * FROM host WHERE name = 'literal?' AND id = $1`, sql)
}
