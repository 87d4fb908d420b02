package migrations

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/dmitrijs2005/members/internal/dbx"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUp_SQLiteCreatesSchemaIdempotently(t *testing.T) {
	ctx := context.Background()
	db, err := dbx.Open(ctx, dbx.SQLite, ":memory:", dbx.PoolOptions{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, Up(ctx, db, dbx.SQLite))
	require.NoError(t, Up(ctx, db, dbx.SQLite), "second run must be a no-op")

	for _, table := range []string{"users", "cookie_logins", "email_accounts", "steam_accounts"} {
		var name string
		err := db.QueryRowContext(ctx, `SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		require.NoError(t, err, "table %s missing", table)
	}
}

func TestUp_UsesDialectDirectory(t *testing.T) {
	orig := gooseUpContext
	t.Cleanup(func() { gooseUpContext = orig })

	var dirs []string
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		dirs = append(dirs, dir)
		return nil
	}

	require.NoError(t, Up(context.Background(), nil, dbx.SQLite))
	require.NoError(t, Up(context.Background(), nil, dbx.Postgres))
	assert.Equal(t, []string{"sqlite", "postgres"}, dirs)
}

func TestUp_Error(t *testing.T) {
	orig := gooseUpContext
	t.Cleanup(func() { gooseUpContext = orig })

	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return errors.New("boom")
	}

	err := Up(context.Background(), nil, dbx.SQLite)
	require.EqualError(t, err, "boom")
}

func TestEmbeddedFiles(t *testing.T) {
	for _, dir := range []string{"sqlite", "postgres"} {
		entries, err := Migrations.ReadDir(dir)
		require.NoError(t, err)
		assert.NotEmpty(t, entries)
	}
}
