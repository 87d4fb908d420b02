package members

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dmitrijs2005/members/internal/common"
	"github.com/dmitrijs2005/members/internal/server/models"
	"github.com/dmitrijs2005/members/internal/server/repositories/steamaccounts"
	"github.com/dmitrijs2005/members/internal/timex"
)

// SteamAccountItem is the shared in-memory representative of one
// steam_accounts row.
type SteamAccountItem struct {
	mu    sync.RWMutex
	row   models.SteamAccount
	table *SteamAccountTable
}

func (s *SteamAccountItem) ID() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.row.ID
}

func (s *SteamAccountItem) SteamID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.row.SteamID
}

func (s *SteamAccountItem) Creation() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.row.Creation
}

func (s *SteamAccountItem) LastLogin() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyTime(s.row.LastLogin)
}

func (s *SteamAccountItem) HasUser() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.row.UserID != nil
}

func (s *SteamAccountItem) Display() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.row.Display()
}

// User returns the linked user. The first call on an unlinked account creates
// a new user and links it; use HasUser to test without side effects.
func (s *SteamAccountItem) User(ctx context.Context) (*UserItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return linkedUser(ctx, &s.table.table, s.row.Display(), s.row.UserID, func(userID *int64) error {
		row := s.row
		row.UserID = userID
		if err := s.table.repo.Store(ctx, &row); err != nil {
			return err
		}
		s.row = row
		return nil
	})
}

// SetUser links the account to user. Linking to the current user is a no-op.
func (s *SteamAccountItem) SetUser(ctx context.Context, user *UserItem) error {
	id := user.ID()
	if id <= 0 {
		return common.ErrDummyUser
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.row.UserID != nil && *s.row.UserID == id {
		return nil
	}
	return s.store(ctx, func(row *models.SteamAccount) { row.UserID = &id })
}

func (s *SteamAccountItem) SetLastLogin(ctx context.Context, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.store(ctx, func(row *models.SteamAccount) { row.LastLogin = timex.NormalizePtr(&t) })
}

// store persists a mutated copy of the row. The caller holds the write lock.
func (s *SteamAccountItem) store(ctx context.Context, mutate func(*models.SteamAccount)) error {
	row := s.row
	mutate(&row)
	if err := s.table.repo.Store(ctx, &row); err != nil {
		s.table.logger.Error(ctx, "failed to store steam account", "account", s.row.Display(), "error", err)
		return err
	}
	s.row = row
	return nil
}

// SteamAccountTable is the registry of Steam accounts, indexed by id and by
// Steam id.
type SteamAccountTable struct {
	table
	repo      steamaccounts.Repository
	cache     *cache[int64, *SteamAccountItem]
	bySteamID *cache[string, *SteamAccountItem]
}

func newSteamAccountTable(t table, repo steamaccounts.Repository) *SteamAccountTable {
	return &SteamAccountTable{
		table:     t,
		repo:      repo,
		cache:     newCache[int64, *SteamAccountItem](),
		bySteamID: newCache[string, *SteamAccountItem](),
	}
}

func (t *SteamAccountTable) ByID(ctx context.Context, id int64) (*SteamAccountItem, bool) {
	if item, ok := t.cache.Load(id); ok {
		return item, true
	}

	row, err := t.repo.Load(ctx, id)
	if err != nil {
		t.logLookup(ctx, err, "table", "steam_accounts", "id", id)
		return nil, false
	}
	return t.adopt(row), true
}

// BySteamID returns the account of a Steam id. If there is none and
// allowCreation is set, a new unlinked account is inserted.
func (t *SteamAccountTable) BySteamID(ctx context.Context, steamID string, allowCreation bool) (*SteamAccountItem, bool) {
	if item, ok := t.bySteamID.Load(steamID); ok {
		return item, true
	}

	row, err := t.repo.FindBySteamID(ctx, steamID)
	if err == nil {
		return t.adopt(row), true
	}
	if !isNotFound(err) || !allowCreation {
		t.logLookup(ctx, err, "table", "steam_accounts", "steam_id", steamID)
		return nil, false
	}

	row = &models.SteamAccount{SteamID: steamID, Creation: t.now()}
	if err := t.repo.Store(ctx, row); err != nil {
		if !errors.Is(err, common.ErrConflict) {
			t.logger.Error(ctx, "failed to create steam account", "steam_id", steamID, "error", err)
			return nil, false
		}
		// Another writer inserted the same Steam id first.
		if row, err = t.repo.FindBySteamID(ctx, steamID); err != nil {
			t.logLookup(ctx, err, "table", "steam_accounts", "steam_id", steamID)
			return nil, false
		}
		return t.adopt(row), true
	}

	t.logger.Info(ctx, "steam account created", "account", row.Display())
	return t.adopt(row), true
}

func (t *SteamAccountTable) adopt(row *models.SteamAccount) *SteamAccountItem {
	item, _ := t.cache.LoadOrStore(row.ID, &SteamAccountItem{row: *row, table: t})
	t.bySteamID.LoadOrStore(item.SteamID(), item)
	return item
}

// linkedUser returns the user referenced by userID. Without a reference a new
// user is created and handed to link for persisting; the two stores are
// independent, so a failed link leaves an orphaned user behind. The caller
// holds the item's write lock.
func linkedUser(ctx context.Context, t *table, owner string, userID *int64, link func(*int64) error) (*UserItem, error) {
	d, err := t.database(ctx, owner)
	if err != nil {
		return nil, err
	}

	if userID != nil {
		user, ok := d.Users().ByID(ctx, *userID)
		if !ok {
			return nil, common.ErrorNotFound
		}
		return user, nil
	}

	user, err := d.Users().CreateUser(ctx)
	if err != nil {
		return nil, err
	}
	id := user.ID()
	if err := link(&id); err != nil {
		t.logger.Error(ctx, "failed to link new user", "item", owner, "user_id", id, "error", err)
		return nil, err
	}
	t.logger.Info(ctx, "new user linked", "item", owner, "user_id", id)
	return user, nil
}
