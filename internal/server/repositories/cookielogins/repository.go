// Package cookielogins maps rows of the cookie_logins table.
package cookielogins

import (
	"context"

	"github.com/dmitrijs2005/members/internal/server/models"
)

type Repository interface {
	Load(ctx context.Context, id int64) (*models.CookieLogin, error)
	Store(ctx context.Context, login *models.CookieLogin) error
	Delete(ctx context.Context, id int64) error
	// LatestByUser returns the user's cookie login with the most recent
	// last usage.
	LatestByUser(ctx context.Context, userID int64) (*models.CookieLogin, error)
	ListByUser(ctx context.Context, userID int64) ([]*models.CookieLogin, error)
}
