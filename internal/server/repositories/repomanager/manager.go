// Package repomanager vends the SQL-backed row mappers of the members schema
// for a dialect and applies the schema migrations.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/members/internal/dbx"
	"github.com/dmitrijs2005/members/internal/server/migrations"
	"github.com/dmitrijs2005/members/internal/server/repositories/cookielogins"
	"github.com/dmitrijs2005/members/internal/server/repositories/emailaccounts"
	"github.com/dmitrijs2005/members/internal/server/repositories/steamaccounts"
	"github.com/dmitrijs2005/members/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	CookieLogins(db dbx.DBTX) cookielogins.Repository
	EmailAccounts(db dbx.DBTX) emailaccounts.Repository
	SteamAccounts(db dbx.DBTX) steamaccounts.Repository
}

// SQLRepositoryManager binds repositories to one SQL dialect.
type SQLRepositoryManager struct {
	dialect dbx.Dialect
}

func NewSQLRepositoryManager(d dbx.Dialect) *SQLRepositoryManager {
	return &SQLRepositoryManager{dialect: d}
}

func (m *SQLRepositoryManager) Dialect() dbx.Dialect {
	return m.dialect
}

func (m *SQLRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewSQLRepository(db, m.dialect)
}

func (m *SQLRepositoryManager) CookieLogins(db dbx.DBTX) cookielogins.Repository {
	return cookielogins.NewSQLRepository(db, m.dialect)
}

func (m *SQLRepositoryManager) EmailAccounts(db dbx.DBTX) emailaccounts.Repository {
	return emailaccounts.NewSQLRepository(db, m.dialect)
}

func (m *SQLRepositoryManager) SteamAccounts(db dbx.DBTX) steamaccounts.Repository {
	return steamaccounts.NewSQLRepository(db, m.dialect)
}

// RunMigrations applies the embedded migrations of the manager's dialect.
func (m *SQLRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	return migrations.Up(ctx, db, m.dialect)
}
