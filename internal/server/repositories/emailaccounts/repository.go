// Package emailaccounts maps rows of the email_accounts table. Addresses are
// stored and looked up in normalized form (trimmed, lower case).
package emailaccounts

import (
	"context"

	"github.com/dmitrijs2005/members/internal/server/models"
)

// MaxAccountsPerUser caps ListByUser.
const MaxAccountsPerUser = 100

type Repository interface {
	Load(ctx context.Context, id int64) (*models.EmailAccount, error)
	Store(ctx context.Context, account *models.EmailAccount) error
	FindByEmail(ctx context.Context, email string) (*models.EmailAccount, error)
	ListByUser(ctx context.Context, userID int64, limit int) ([]*models.EmailAccount, error)
}
