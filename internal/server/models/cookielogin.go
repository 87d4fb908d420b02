package models

import (
	"fmt"
	"time"
)

// CookieLogin is a row of the cookie_logins table. Token holds the argon2
// hash of the cookie secret, never the secret itself.
type CookieLogin struct {
	ID            int64
	UserID        int64
	Token         string
	Creation      time.Time
	LastUsage     *time.Time
	LastUserAgent *string
}

func (c *CookieLogin) Display() string {
	return fmt.Sprintf("cookie_logins(id=%d;user-id=%d)", c.ID, c.UserID)
}
