package database

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkSize(t *testing.T) {
	assert.Equal(t, 100, chunkSize(1, 100))
	assert.Equal(t, 25, chunkSize(4, 100))
	assert.Equal(t, 1, chunkSize(0, 100))
	assert.Equal(t, 1, chunkSize(1000, 100), "always at least one row per statement")
}

func TestStreamInsert(t *testing.T) {
	h := openMemoryHandle(t)
	execDDL(t, h, `CREATE TABLE host (id INTEGER PRIMARY KEY, name TEXT)`)

	rows := make(chan BulkRow)
	go func() {
		defer close(rows)
		for i := 1; i <= 50; i++ {
			rows <- BulkRow{NewKey(int64(i)), NewString("h")}
		}
	}()

	cols := []Column{NewColumn("id", ValueKey), NewColumn("name", ValueString)}
	n, err := StreamInsert(context.Background(), h, "host", cols, rows, time.Second)
	require.NoError(t, err)
	assert.EqualValues(t, 50, n)

	ids, err := GetIds(context.Background(), h, "host", "id", Filter{}, time.Second)
	require.NoError(t, err)
	assert.Len(t, ids, 50)
}

func TestStreamUpsert(t *testing.T) {
	h := openMemoryHandle(t)
	execDDL(t, h, `CREATE TABLE host (id INTEGER PRIMARY KEY, name TEXT)`)
	execDDL(t, h, `INSERT INTO host (id, name) VALUES (1, 'old')`)

	rows := make(chan BulkRow, 2)
	rows <- BulkRow{NewKey(1), NewString("new")}
	rows <- BulkRow{NewKey(2), NewString("fresh")}
	close(rows)

	cols := []Column{NewColumn("id", ValueKey), NewColumn("name", ValueString)}
	_, err := StreamUpsert(context.Background(), h, "host", cols, rows, []string{"id"}, time.Second)
	require.NoError(t, err)

	name, err := GetString(context.Background(), h, "host", "name", NewFilter("id = ?", NewKey(1)), time.Second)
	require.NoError(t, err)
	assert.Equal(t, "new", name, "an upsert on an existing id must replace its row, not fail or duplicate it")

	ids, err := GetIds(context.Background(), h, "host", "id", Filter{}, time.Second)
	require.NoError(t, err)
	assert.Len(t, ids, 2)
}

func TestStreamDelete(t *testing.T) {
	h := openMemoryHandle(t)
	execDDL(t, h, `CREATE TABLE host (id INTEGER PRIMARY KEY, name TEXT)`)
	for i := 1; i <= 10; i++ {
		execDDL(t, h, "INSERT INTO host (id, name) VALUES ("+strconv.Itoa(i)+", 'h')")
	}

	ids := make(chan int64)
	go func() {
		defer close(ids)
		for i := 1; i <= 10; i++ {
			ids <- int64(i)
		}
	}()

	n, err := StreamDelete(context.Background(), h, "host", "id", ids, time.Second)
	require.NoError(t, err)
	assert.EqualValues(t, 10, n)

	remaining, err := GetIds(context.Background(), h, "host", "id", Filter{}, time.Second)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestStreamUpdate(t *testing.T) {
	h := openMemoryHandle(t)
	execDDL(t, h, `CREATE TABLE host (id INTEGER PRIMARY KEY, age INTEGER)`)
	for i := 1; i <= 5; i++ {
		execDDL(t, h, "INSERT INTO host (id, age) VALUES ("+strconv.Itoa(i)+", 0)")
	}

	updates := make(chan BulkUpdate)
	go func() {
		defer close(updates)
		for i := 1; i <= 5; i++ {
			updates <- BulkUpdate{Filter: NewFilter("id = ?", NewKey(int64(i))), Values: []Value{NewInt32(int32(i * 10))}}
		}
	}()

	cols := []Column{NewColumn("age", ValueInt32)}
	n, err := StreamUpdate(context.Background(), h, "host", cols, updates, time.Second)
	require.NoError(t, err)
	assert.EqualValues(t, 5, n)

	age, err := GetInt(context.Background(), h, "host", "age", NewFilter("id = ?", NewKey(3)), time.Second)
	require.NoError(t, err)
	assert.EqualValues(t, 30, age)
}
