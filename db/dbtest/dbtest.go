// Package dbtest поднимает Storage на SQLite в памяти с применёнными миграциями.
package dbtest

import (
	"context"
	"testing"

	"compras/db"
	"compras/db/migrations"

	"github.com/stretchr/testify/require"
)

func Open(t testing.TB) *db.Storage {
	t.Helper()

	conn, err := db.Connect(context.Background(), "sqlite3", ":memory:", 0)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.NoError(t, migrations.Run(conn.DB, "sqlite3"))
	return db.NewStorage(conn)
}
