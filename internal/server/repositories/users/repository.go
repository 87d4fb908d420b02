// Package users maps rows of the users table.
package users

import (
	"context"

	"github.com/dmitrijs2005/members/internal/server/models"
)

// Repository loads and stores user rows.
type Repository interface {
	// Load returns the user with the given id, common.ErrorNotFound if there
	// is none and common.ErrAmbiguous if the id is not unique.
	Load(ctx context.Context, id int64) (*models.User, error)
	// Store inserts the user when its ID is 0 (writing the new id back)
	// and updates it otherwise.
	Store(ctx context.Context, user *models.User) error
}
