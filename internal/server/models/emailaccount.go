package models

import (
	"fmt"
	"strings"
	"time"
)

// EmailAccount is a row of the email_accounts table.
//
// Token is the hash of the pending login token. TokenUserID, when set, is
// the user the account gets linked to once that token is consumed.
type EmailAccount struct {
	ID               int64
	UserID           *int64
	Email            string
	Token            *string
	TokenUserID      *int64
	TokenCreation    *time.Time
	TokenConsumption *time.Time
}

// NormalizeEmail is the canonical form stored and looked up.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsVerified reports whether a token was created and later consumed, with
// consistent timestamps.
func (e *EmailAccount) IsVerified(now time.Time) bool {
	if e.TokenCreation == nil || e.TokenConsumption == nil {
		return false
	}
	if e.TokenConsumption.After(now) {
		return false
	}
	return !e.TokenConsumption.Before(*e.TokenCreation)
}

func (e *EmailAccount) Display() string {
	if e.UserID == nil {
		return fmt.Sprintf("email_accounts(id=%d;email=%s;user-id=None)", e.ID, e.Email)
	}
	return fmt.Sprintf("email_accounts(id=%d;email=%s;user-id=%d)", e.ID, e.Email, *e.UserID)
}
