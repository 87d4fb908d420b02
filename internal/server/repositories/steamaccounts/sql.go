package steamaccounts

import (
	"context"
	"database/sql"
	"time"

	"github.com/dmitrijs2005/members/internal/dbx"
	"github.com/dmitrijs2005/members/internal/server/models"
	"github.com/dmitrijs2005/members/internal/timex"
)

const columns = `id, user_id, steam_id, creation, last_login`

type SQLRepository struct {
	db      dbx.DBTX
	dialect dbx.Dialect
}

func NewSQLRepository(db dbx.DBTX, dialect dbx.Dialect) *SQLRepository {
	return &SQLRepository{db: db, dialect: dialect}
}

func (r *SQLRepository) Load(ctx context.Context, id int64) (*models.SteamAccount, error) {
	query := `SELECT ` + columns + ` FROM steam_accounts
		 WHERE id = ?
		 LIMIT 2`

	return r.queryOne(ctx, query, id)
}

func (r *SQLRepository) FindBySteamID(ctx context.Context, steamID string) (*models.SteamAccount, error) {
	query := `SELECT ` + columns + ` FROM steam_accounts
		 WHERE steam_id = ?
		 LIMIT 2`

	return r.queryOne(ctx, query, steamID)
}

// Store never rewrites steam_id of an existing row.
func (r *SQLRepository) Store(ctx context.Context, s *models.SteamAccount) error {
	if s.ID == 0 {
		query :=
			`INSERT INTO steam_accounts (user_id, steam_id, creation, last_login)
			 VALUES (?, ?, ?, ?)
			 RETURNING id`

		var id int64
		err := r.db.QueryRowContext(ctx, r.dialect.Rebind(query),
			dbx.NullInt64(s.UserID), s.SteamID, timex.Normalize(s.Creation), dbx.NullTime(s.LastLogin)).Scan(&id)
		if err != nil {
			return dbx.WrapError(err)
		}
		s.ID = id
		return nil
	}

	query :=
		`UPDATE steam_accounts SET user_id = ?, creation = ?, last_login = ?
		 WHERE id = ?`

	res, err := r.db.ExecContext(ctx, r.dialect.Rebind(query),
		dbx.NullInt64(s.UserID), timex.Normalize(s.Creation), dbx.NullTime(s.LastLogin), s.ID)
	return dbx.CheckAffected(res, err)
}

func (r *SQLRepository) queryOne(ctx context.Context, query string, arg any) (*models.SteamAccount, error) {
	s := &models.SteamAccount{}
	err := dbx.QueryUnique(ctx, r.db, r.dialect.Rebind(query), []any{arg}, func(sc dbx.Scanner) error {
		return scanSteamAccount(sc, s)
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func scanSteamAccount(sc dbx.Scanner, s *models.SteamAccount) error {
	var (
		userID    sql.NullInt64
		creation  time.Time
		lastLogin sql.NullTime
	)

	if err := sc.Scan(&s.ID, &userID, &s.SteamID, &creation, &lastLogin); err != nil {
		return err
	}

	s.UserID = dbx.Int64Ptr(userID)
	s.Creation = timex.Normalize(creation)
	s.LastLogin = dbx.TimePtr(lastLogin)
	return nil
}
