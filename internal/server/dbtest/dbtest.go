// Package dbtest opens migrated in-memory SQLite databases for tests.
package dbtest

import (
	"context"
	"database/sql"
	"testing"

	"github.com/dmitrijs2005/members/internal/dbx"
	"github.com/dmitrijs2005/members/internal/server/migrations"
	"github.com/stretchr/testify/require"
)

// Open returns a fresh in-memory SQLite database with the members schema
// applied. It is closed when the test ends.
func Open(t testing.TB) *sql.DB {
	t.Helper()

	ctx := context.Background()
	db, err := dbx.Open(ctx, dbx.SQLite, ":memory:", dbx.PoolOptions{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, migrations.Up(ctx, db, dbx.SQLite))
	return db
}
