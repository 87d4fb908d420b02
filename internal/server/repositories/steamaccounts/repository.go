// Package steamaccounts maps rows of the steam_accounts table.
package steamaccounts

import (
	"context"

	"github.com/dmitrijs2005/members/internal/server/models"
)

type Repository interface {
	Load(ctx context.Context, id int64) (*models.SteamAccount, error)
	Store(ctx context.Context, account *models.SteamAccount) error
	FindBySteamID(ctx context.Context, steamID string) (*models.SteamAccount, error)
}
