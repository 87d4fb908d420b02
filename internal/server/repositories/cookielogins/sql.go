package cookielogins

import (
	"context"
	"database/sql"
	"time"

	"github.com/dmitrijs2005/members/internal/dbx"
	"github.com/dmitrijs2005/members/internal/server/models"
	"github.com/dmitrijs2005/members/internal/timex"
)

const columns = `id, user_id, token, creation, last_usage, last_useragent`

type SQLRepository struct {
	db      dbx.DBTX
	dialect dbx.Dialect
}

func NewSQLRepository(db dbx.DBTX, dialect dbx.Dialect) *SQLRepository {
	return &SQLRepository{db: db, dialect: dialect}
}

func (r *SQLRepository) Load(ctx context.Context, id int64) (*models.CookieLogin, error) {
	query := `SELECT ` + columns + ` FROM cookie_logins
		 WHERE id = ?
		 LIMIT 2`

	return r.queryOne(ctx, query, id)
}

func (r *SQLRepository) LatestByUser(ctx context.Context, userID int64) (*models.CookieLogin, error) {
	query := `SELECT ` + columns + ` FROM cookie_logins
		 WHERE user_id = ?
		 ORDER BY last_usage DESC NULLS LAST, id DESC
		 LIMIT 1`

	return r.queryOne(ctx, query, userID)
}

func (r *SQLRepository) ListByUser(ctx context.Context, userID int64) ([]*models.CookieLogin, error) {
	query := `SELECT ` + columns + ` FROM cookie_logins
		 WHERE user_id = ?
		 ORDER BY id`

	rows, err := r.db.QueryContext(ctx, r.dialect.Rebind(query), userID)
	if err != nil {
		return nil, dbx.WrapError(err)
	}
	defer rows.Close()

	var result []*models.CookieLogin
	for rows.Next() {
		c := &models.CookieLogin{}
		if err := scanCookieLogin(rows, c); err != nil {
			return nil, dbx.WrapError(err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, dbx.WrapError(err)
	}

	return result, nil
}

func (r *SQLRepository) Store(ctx context.Context, c *models.CookieLogin) error {
	if c.ID == 0 {
		query :=
			`INSERT INTO cookie_logins (user_id, token, creation, last_usage, last_useragent)
			 VALUES (?, ?, ?, ?, ?)
			 RETURNING id`

		var id int64
		err := r.db.QueryRowContext(ctx, r.dialect.Rebind(query),
			c.UserID, c.Token, timex.Normalize(c.Creation),
			dbx.NullTime(c.LastUsage), dbx.NullString(c.LastUserAgent)).Scan(&id)
		if err != nil {
			return dbx.WrapError(err)
		}
		c.ID = id
		return nil
	}

	query :=
		`UPDATE cookie_logins SET user_id = ?, token = ?, creation = ?, last_usage = ?, last_useragent = ?
		 WHERE id = ?`

	res, err := r.db.ExecContext(ctx, r.dialect.Rebind(query),
		c.UserID, c.Token, timex.Normalize(c.Creation),
		dbx.NullTime(c.LastUsage), dbx.NullString(c.LastUserAgent), c.ID)
	return dbx.CheckAffected(res, err)
}

func (r *SQLRepository) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM cookie_logins WHERE id = ?`

	res, err := r.db.ExecContext(ctx, r.dialect.Rebind(query), id)
	return dbx.CheckAffected(res, err)
}

func (r *SQLRepository) queryOne(ctx context.Context, query string, arg any) (*models.CookieLogin, error) {
	c := &models.CookieLogin{}
	err := dbx.QueryUnique(ctx, r.db, r.dialect.Rebind(query), []any{arg}, func(s dbx.Scanner) error {
		return scanCookieLogin(s, c)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func scanCookieLogin(s dbx.Scanner, c *models.CookieLogin) error {
	var (
		creation  time.Time
		lastUsage sql.NullTime
		userAgent sql.NullString
	)

	if err := s.Scan(&c.ID, &c.UserID, &c.Token, &creation, &lastUsage, &userAgent); err != nil {
		return err
	}

	c.Creation = timex.Normalize(creation)
	c.LastUsage = dbx.TimePtr(lastUsage)
	c.LastUserAgent = dbx.StringPtr(userAgent)
	return nil
}
