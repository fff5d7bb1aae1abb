package database

import (
	"database/sql/driver"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSqliteUnixTimestamp(t *testing.T) {
	got, err := sqliteUnixTimestamp(nil, []driver.Value{"2024-01-02 03:04:05"})
	assert.NoError(t, err)
	want := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC).Unix()
	assert.Equal(t, want, got)

	got, err = sqliteUnixTimestamp(nil, []driver.Value{int64(42)})
	assert.NoError(t, err)
	assert.Equal(t, int64(42), got)

	_, err = sqliteUnixTimestamp(nil, nil)
	assert.NoError(t, err)
}

func TestSqliteFromUnixtime(t *testing.T) {
	got, err := sqliteFromUnixtime(nil, []driver.Value{int64(0)})
	assert.NoError(t, err)
	assert.Equal(t, "1970-01-01 00:00:00", got)
}

func TestSqliteRegexp(t *testing.T) {
	tests := []struct {
		name          string
		pattern       string
		caseSensitive driver.Value
		text          string
		want          int64
	}{
		{"matches", "^foo", int64(1), "foobar", 1},
		{"no_match", "^foo", int64(1), "barfoo", 0},
		{"case_insensitive_matches", "FOO", int64(0), "foobar", 1},
		{"case_sensitive_rejects", "FOO", int64(1), "foobar", 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := sqliteRegexp(nil, []driver.Value{tc.pattern, tc.caseSensitive, tc.text})
			assert.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	got, err := sqliteRegexp(nil, []driver.Value{"["})
	assert.NoError(t, err)
	assert.Equal(t, int64(0), got, "wrong arity returns 0 rather than erroring")
}

func TestSqliteRegexp_invalidPattern(t *testing.T) {
	got, err := sqliteRegexp(nil, []driver.Value{"[", int64(1), "x"})
	assert.NoError(t, err)
	assert.Equal(t, int64(0), got)
}

func TestSqliteDirname(t *testing.T) {
	got, err := sqliteDirname(nil, []driver.Value{"/a/b/c.txt"})
	assert.NoError(t, err)
	assert.Equal(t, "/a/b", got)
}

func TestSqliteNow_returnsParsableTimestamp(t *testing.T) {
	got, err := sqliteNow(nil, nil)
	assert.NoError(t, err)
	s, ok := got.(string)
	assert.True(t, ok)
	_, err = time.Parse("2006-01-02 15:04:05", s)
	assert.NoError(t, err)
}

func TestParseSQLiteDateTime(t *testing.T) {
	assert.Equal(t, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC).Unix(), parseSQLiteDateTime("2024-01-02 03:04:05"))
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC).Unix(), parseSQLiteDateTime("2024-01-02"))
	assert.Equal(t, int64(12345), parseSQLiteDateTime("12345"))
	assert.Equal(t, int64(0), parseSQLiteDateTime("not a date"))
}
