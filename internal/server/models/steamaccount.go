package models

import (
	"fmt"
	"time"
)

// SteamAccount is a row of the steam_accounts table. SteamID is immutable
// once stored.
type SteamAccount struct {
	ID        int64
	UserID    *int64
	SteamID   string
	Creation  time.Time
	LastLogin *time.Time
}

func (s *SteamAccount) Display() string {
	if s.UserID == nil {
		return fmt.Sprintf("steam_accounts(id=%d;user-id=None;steam-id=%s)", s.ID, s.SteamID)
	}
	return fmt.Sprintf("steam_accounts(id=%d;user-id=%d;steam-id=%s)", s.ID, *s.UserID, s.SteamID)
}
