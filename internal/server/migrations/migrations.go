// Package migrations embeds the goose SQL migrations of the members schema,
// one directory per SQL dialect, and applies them.
package migrations

import (
	"context"
	"database/sql"
	"embed"

	"github.com/dmitrijs2005/members/internal/dbx"
	"github.com/pressly/goose/v3"
)

//go:embed sqlite/*.sql postgres/*.sql
var Migrations embed.FS

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// Up applies all pending migrations of the dialect. Applied versions are
// recorded by goose, so running Up again is a no-op.
func Up(ctx context.Context, db *sql.DB, d dbx.Dialect) error {
	goose.SetBaseFS(Migrations)
	if err := goose.SetDialect(d.GooseDialect()); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, d.MigrationsDir())
}
