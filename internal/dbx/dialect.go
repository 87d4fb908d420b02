package dbx

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Dialect identifies the SQL flavour a repository talks to.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "pgx"
)

// ParseDialect maps a configured driver name onto a Dialect.
func ParseDialect(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "pgx", "postgres", "postgresql":
		return Postgres, nil
	}
	return "", fmt.Errorf("unsupported database driver %q", name)
}

// DriverName is the database/sql driver registered for the dialect.
func (d Dialect) DriverName() string {
	return string(d)
}

// GooseDialect is the dialect name understood by goose.
func (d Dialect) GooseDialect() string {
	if d == Postgres {
		return "pgx"
	}
	return "sqlite3"
}

// MigrationsDir is the directory of the embedded migrations for the dialect.
func (d Dialect) MigrationsDir() string {
	if d == Postgres {
		return "postgres"
	}
	return "sqlite"
}

// Rebind rewrites the '?' placeholders of query into the dialect's form.
// Queries are written with '?' and must not contain literal question marks.
func (d Dialect) Rebind(query string) string {
	if d != Postgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// IsUniqueViolation reports whether err is a unique or primary key constraint
// failure from either supported driver.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	var se *sqlite.Error
	if errors.As(err, &se) {
		code := se.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}

	var pe *pgconn.PgError
	if errors.As(err, &pe) {
		return pe.Code == "23505"
	}

	return false
}
