package database

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/torsten-rupp/bardb/config"
)

// openMemoryHandle returns a fresh private in-memory sqlite Handle for a
// test, closed automatically via t.Cleanup. Each call gets its own Node
// (an unnamed in-memory database is never shared), so tests never
// interfere with one another.
func openMemoryHandle(t *testing.T) *Handle {
	t.Helper()

	opts := config.DatabaseOptions{MaxConnectionsPerTable: 4, MaxPlaceholdersPerStatement: 64, MaxRowsPerTransaction: 64}
	h, err := NewRegistry().Open(Specifier{Kind: Sqlite}, ModeMemory, opts)
	require.NoError(t, err)

	t.Cleanup(func() { _ = h.Close() })

	return h
}

func execDDL(t *testing.T, h *Handle, ddl string) {
	t.Helper()
	_, err := h.DB().Exec(ddl)
	require.NoError(t, err)
}
