package members

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/members/internal/common"
	"github.com/dmitrijs2005/members/internal/server/models"
	"github.com/dmitrijs2005/members/internal/server/repositories/users"
	"github.com/dmitrijs2005/members/internal/timex"
)

// UserItem is the shared in-memory representative of one users row.
type UserItem struct {
	mu    sync.RWMutex
	row   models.User
	table *UserTable
}

func (u *UserItem) ID() int64 {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.row.ID
}

func (u *UserItem) Name() string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.row.Name
}

func (u *UserItem) HTMLName() string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.row.HTMLName()
}

func (u *UserItem) Promotion() (models.Promotion, models.PromotionAuthority) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.row.Promotion, u.row.PromotionAuthority
}

func (u *UserItem) LastLap() *time.Time {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return copyTime(u.row.LastLap)
}

func (u *UserItem) LastLogin() *time.Time {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return copyTime(u.row.LastLogin)
}

// IsDummy reports whether u stands for an anonymous caller.
func (u *UserItem) IsDummy() bool {
	return u.ID() == 0
}

// Row returns a copy of the underlying row.
func (u *UserItem) Row() models.User {
	u.mu.RLock()
	defer u.mu.RUnlock()
	row := u.row
	row.LastLap = copyTime(row.LastLap)
	row.LastLogin = copyTime(row.LastLogin)
	return row
}

func (u *UserItem) Display() string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.row.Display()
}

// Grade computes the user's grade with the table's rules at the current time.
func (u *UserItem) Grade() models.UserGrade {
	row := u.Row()
	return models.GradeOf(&row, u.table.rules, u.table.now())
}

// SetName stores a new, trimmed display name.
func (u *UserItem) SetName(ctx context.Context, name string) error {
	return u.update(ctx, func(row *models.User) {
		row.Name = strings.TrimSpace(name)
	})
}

func (u *UserItem) SetPromotion(ctx context.Context, p models.Promotion, a models.PromotionAuthority) error {
	return u.update(ctx, func(row *models.User) {
		row.Promotion = p
		row.PromotionAuthority = a
	})
}

func (u *UserItem) SetLastLap(ctx context.Context, t time.Time) error {
	return u.update(ctx, func(row *models.User) {
		row.LastLap = timex.NormalizePtr(&t)
	})
}

func (u *UserItem) SetLastLogin(ctx context.Context, t time.Time) error {
	return u.update(ctx, func(row *models.User) {
		row.LastLogin = timex.NormalizePtr(&t)
	})
}

// update applies mutate to a copy of the row and keeps it only once it has
// been persisted.
func (u *UserItem) update(ctx context.Context, mutate func(*models.User)) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.row.ID == 0 {
		return common.ErrDummyUser
	}

	row := u.row
	mutate(&row)
	if err := u.table.repo.Store(ctx, &row); err != nil {
		u.table.logger.Error(ctx, "failed to store user", "user", u.row.Display(), "error", err)
		return err
	}
	u.row = row
	return nil
}

// UserTable is the registry of users.
type UserTable struct {
	table
	repo  users.Repository
	rules models.GradeRules
	cache *cache[int64, *UserItem]
}

func newUserTable(t table, repo users.Repository, rules models.GradeRules) *UserTable {
	return &UserTable{table: t, repo: repo, rules: rules, cache: newCache[int64, *UserItem]()}
}

// CreateUser inserts a new, unnamed user.
func (t *UserTable) CreateUser(ctx context.Context) (*UserItem, error) {
	row := models.User{}
	if err := t.repo.Store(ctx, &row); err != nil {
		t.logger.Error(ctx, "failed to create user", "error", err)
		return nil, err
	}

	item, _ := t.cache.LoadOrStore(row.ID, &UserItem{row: row, table: t})
	t.logger.Info(ctx, "user created", "user", row.Display())
	return item, nil
}

// ByID returns the user with the given id. Ids below 1 never match.
func (t *UserTable) ByID(ctx context.Context, id int64) (*UserItem, bool) {
	if id <= 0 {
		t.logger.Warn(ctx, "refusing user lookup", "id", id)
		return nil, false
	}

	if item, ok := t.cache.Load(id); ok {
		return item, true
	}

	row, err := t.repo.Load(ctx, id)
	if err != nil {
		t.logLookup(ctx, err, "table", "users", "id", id)
		return nil, false
	}

	item, _ := t.cache.LoadOrStore(id, &UserItem{row: *row, table: t})
	return item, true
}

// Dummy returns a fresh anonymous user. It is never cached and refuses to
// be stored.
func (t *UserTable) Dummy() *UserItem {
	return &UserItem{row: models.DummyUser(), table: t}
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
