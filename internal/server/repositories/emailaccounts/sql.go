package emailaccounts

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/members/internal/dbx"
	"github.com/dmitrijs2005/members/internal/server/models"
)

const columns = `id, user_id, email, token, token_user, token_creation, token_consumption`

type SQLRepository struct {
	db      dbx.DBTX
	dialect dbx.Dialect
}

func NewSQLRepository(db dbx.DBTX, dialect dbx.Dialect) *SQLRepository {
	return &SQLRepository{db: db, dialect: dialect}
}

func (r *SQLRepository) Load(ctx context.Context, id int64) (*models.EmailAccount, error) {
	query := `SELECT ` + columns + ` FROM email_accounts
		 WHERE id = ?
		 LIMIT 2`

	return r.queryOne(ctx, query, id)
}

func (r *SQLRepository) FindByEmail(ctx context.Context, email string) (*models.EmailAccount, error) {
	query := `SELECT ` + columns + ` FROM email_accounts
		 WHERE email = ?
		 LIMIT 2`

	return r.queryOne(ctx, query, models.NormalizeEmail(email))
}

func (r *SQLRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]*models.EmailAccount, error) {
	if limit <= 0 || limit > MaxAccountsPerUser {
		limit = MaxAccountsPerUser
	}

	query := `SELECT ` + columns + ` FROM email_accounts
		 WHERE user_id = ?
		 ORDER BY id
		 LIMIT ?`

	rows, err := r.db.QueryContext(ctx, r.dialect.Rebind(query), userID, limit)
	if err != nil {
		return nil, dbx.WrapError(err)
	}
	defer rows.Close()

	var result []*models.EmailAccount
	for rows.Next() {
		e := &models.EmailAccount{}
		if err := scanEmailAccount(rows, e); err != nil {
			return nil, dbx.WrapError(err)
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, dbx.WrapError(err)
	}

	return result, nil
}

// Store normalizes the address before writing it; a duplicate address
// yields common.ErrConflict.
func (r *SQLRepository) Store(ctx context.Context, e *models.EmailAccount) error {
	e.Email = models.NormalizeEmail(e.Email)

	args := []any{
		dbx.NullInt64(e.UserID), e.Email, dbx.NullString(e.Token), dbx.NullInt64(e.TokenUserID),
		dbx.NullTime(e.TokenCreation), dbx.NullTime(e.TokenConsumption),
	}

	if e.ID == 0 {
		query :=
			`INSERT INTO email_accounts (user_id, email, token, token_user, token_creation, token_consumption)
			 VALUES (?, ?, ?, ?, ?, ?)
			 RETURNING id`

		var id int64
		if err := r.db.QueryRowContext(ctx, r.dialect.Rebind(query), args...).Scan(&id); err != nil {
			return dbx.WrapError(err)
		}
		e.ID = id
		return nil
	}

	query :=
		`UPDATE email_accounts SET user_id = ?, email = ?, token = ?, token_user = ?, token_creation = ?, token_consumption = ?
		 WHERE id = ?`

	res, err := r.db.ExecContext(ctx, r.dialect.Rebind(query), append(args, e.ID)...)
	return dbx.CheckAffected(res, err)
}

func (r *SQLRepository) queryOne(ctx context.Context, query string, arg any) (*models.EmailAccount, error) {
	e := &models.EmailAccount{}
	err := dbx.QueryUnique(ctx, r.db, r.dialect.Rebind(query), []any{arg}, func(s dbx.Scanner) error {
		return scanEmailAccount(s, e)
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

func scanEmailAccount(s dbx.Scanner, e *models.EmailAccount) error {
	var (
		userID, tokenUser          sql.NullInt64
		token                      sql.NullString
		tokenCreation, consumption sql.NullTime
	)

	if err := s.Scan(&e.ID, &userID, &e.Email, &token, &tokenUser, &tokenCreation, &consumption); err != nil {
		return err
	}

	e.UserID = dbx.Int64Ptr(userID)
	e.Token = dbx.StringPtr(token)
	e.TokenUserID = dbx.Int64Ptr(tokenUser)
	e.TokenCreation = dbx.TimePtr(tokenCreation)
	e.TokenConsumption = dbx.TimePtr(consumption)
	return nil
}
