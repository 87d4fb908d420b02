package users

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/members/internal/dbx"
	"github.com/dmitrijs2005/members/internal/server/models"
)

type SQLRepository struct {
	db      dbx.DBTX
	dialect dbx.Dialect
}

func NewSQLRepository(db dbx.DBTX, dialect dbx.Dialect) *SQLRepository {
	return &SQLRepository{db: db, dialect: dialect}
}

func (r *SQLRepository) Load(ctx context.Context, id int64) (*models.User, error) {
	query :=
		`SELECT id, name, promotion, promotion_authority, last_lap, last_login FROM users
		 WHERE id = ?
		 LIMIT 2`

	user := &models.User{}
	err := dbx.QueryUnique(ctx, r.db, r.dialect.Rebind(query), []any{id}, func(s dbx.Scanner) error {
		return scanUser(s, user)
	})
	if err != nil {
		return nil, err
	}

	return user, nil
}

func (r *SQLRepository) Store(ctx context.Context, user *models.User) error {
	if user.ID == 0 {
		return r.insert(ctx, user)
	}
	return r.update(ctx, user)
}

func (r *SQLRepository) insert(ctx context.Context, user *models.User) error {
	query :=
		`INSERT INTO users (name, promotion, promotion_authority, last_lap, last_login)
		 VALUES (?, ?, ?, ?, ?)
		 RETURNING id`

	var id int64
	err := r.db.QueryRowContext(ctx, r.dialect.Rebind(query),
		user.Name, int(user.Promotion), int(user.PromotionAuthority),
		dbx.NullTime(user.LastLap), dbx.NullTime(user.LastLogin)).Scan(&id)
	if err != nil {
		return dbx.WrapError(err)
	}

	user.ID = id
	return nil
}

func (r *SQLRepository) update(ctx context.Context, user *models.User) error {
	query :=
		`UPDATE users SET name = ?, promotion = ?, promotion_authority = ?, last_lap = ?, last_login = ?
		 WHERE id = ?`

	res, err := r.db.ExecContext(ctx, r.dialect.Rebind(query),
		user.Name, int(user.Promotion), int(user.PromotionAuthority),
		dbx.NullTime(user.LastLap), dbx.NullTime(user.LastLogin), user.ID)
	return dbx.CheckAffected(res, err)
}

func scanUser(s dbx.Scanner, user *models.User) error {
	var (
		promotion, authority int
		lastLap, lastLogin   sql.NullTime
	)

	if err := s.Scan(&user.ID, &user.Name, &promotion, &authority, &lastLap, &lastLogin); err != nil {
		return err
	}

	p, err := models.ParsePromotion(promotion)
	if err != nil {
		return fmt.Errorf("user %d: %w", user.ID, err)
	}
	a, err := models.ParsePromotionAuthority(authority)
	if err != nil {
		return fmt.Errorf("user %d: %w", user.ID, err)
	}

	user.Promotion = p
	user.PromotionAuthority = a
	user.LastLap = dbx.TimePtr(lastLap)
	user.LastLogin = dbx.TimePtr(lastLogin)
	return nil
}
