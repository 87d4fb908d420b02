package dbx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/members/internal/common"
	"github.com/dmitrijs2005/members/internal/timex"
)

// Scanner is implemented by *sql.Row and *sql.Rows.
type Scanner interface {
	Scan(dest ...any) error
}

// QueryUnique runs a query that must match at most one row. The query should
// carry a "LIMIT 2" guard so a second row can be detected: zero rows yield
// common.ErrorNotFound, more than one yields common.ErrAmbiguous.
func QueryUnique(ctx context.Context, db DBTX, query string, args []any, scan func(Scanner) error) error {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return WrapError(err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return WrapError(err)
		}
		return common.ErrorNotFound
	}

	if err := scan(rows); err != nil {
		return WrapError(err)
	}

	if rows.Next() {
		return common.ErrAmbiguous
	}

	if err := rows.Err(); err != nil {
		return WrapError(err)
	}
	return nil
}

// WrapError annotates a driver error, mapping unique constraint violations
// onto common.ErrConflict and sql.ErrNoRows onto common.ErrorNotFound.
func WrapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return common.ErrorNotFound
	case IsUniqueViolation(err):
		return fmt.Errorf("db error: %w: %v", common.ErrConflict, err)
	}
	return fmt.Errorf("db error: %w", err)
}

// NullTime converts an optional timestamp into a query argument.
func NullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: timex.Normalize(*t), Valid: true}
}

// TimePtr converts a scanned nullable timestamp back into an optional one.
func TimePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := timex.Normalize(nt.Time)
	return &t
}

// NullInt64 converts an optional id into a query argument.
func NullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

// Int64Ptr converts a scanned nullable integer back into an optional one.
func Int64Ptr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

// NullString converts an optional string into a query argument.
func NullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// StringPtr converts a scanned nullable string back into an optional one.
func StringPtr(n sql.NullString) *string {
	if !n.Valid {
		return nil
	}
	v := n.String
	return &v
}

// CheckAffected turns the result of an UPDATE or DELETE by primary key into
// common.ErrorNotFound when no row was touched.
func CheckAffected(res sql.Result, err error) error {
	if err != nil {
		return WrapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return WrapError(err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
