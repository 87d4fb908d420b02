package members

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/members/internal/common"
	"github.com/dmitrijs2005/members/internal/cryptox"
	"github.com/dmitrijs2005/members/internal/server/models"
	"github.com/dmitrijs2005/members/internal/server/repositories/emailaccounts"
)

var emailPattern = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,6}$`)

// MagicLink is the URL mailed to the owner of account id.
func MagicLink(baseURL string, id int64, token string) string {
	return fmt.Sprintf("%s/login/email/verify/%d/%s", strings.TrimRight(baseURL, "/"), id, url.PathEscape(token))
}

// EmailAccountItem is the shared in-memory representative of one
// email_accounts row.
type EmailAccountItem struct {
	mu    sync.RWMutex
	row   models.EmailAccount
	table *EmailAccountTable
}

func (e *EmailAccountItem) ID() int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.row.ID
}

func (e *EmailAccountItem) Email() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.row.Email
}

func (e *EmailAccountItem) HasUser() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.row.UserID != nil
}

// TokenConsumption is the time the last token was consumed, if any.
func (e *EmailAccountItem) TokenConsumption() *time.Time {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return copyTime(e.row.TokenConsumption)
}

func (e *EmailAccountItem) Display() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.row.Display()
}

// IsVerified reports whether a token was issued and consumed. Inconsistent
// timestamps are logged and count as unverified.
func (e *EmailAccountItem) IsVerified(ctx context.Context) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	now := e.table.now()
	if e.row.TokenConsumption != nil && !e.row.IsVerified(now) {
		e.table.logger.Error(ctx, "token creation/consumption time mismatch",
			"account", e.row.Display(), "creation", e.row.TokenCreation, "consumption", e.row.TokenConsumption)
		return false
	}
	return e.row.IsVerified(now)
}

// CreateToken issues a new login token and returns its plaintext. While an
// earlier token is younger than common.EmailTokenValidity and unconsumed, no
// new token is issued and common.ErrTokenPending is returned. If forUser is
// given, the account is linked to that user when the token is consumed.
func (e *EmailAccountItem) CreateToken(ctx context.Context, forUser *UserItem) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.table.now()
	if e.pending(now) {
		e.table.logger.Warn(ctx, "not generating email token, last token is still active", "account", e.row.Display())
		return "", common.ErrTokenPending
	}

	plain, hash, err := cryptox.GenerateToken(cryptox.Strong)
	if err != nil {
		e.table.logger.Error(ctx, "could not generate email token", "account", e.row.Display(), "error", err)
		return "", err
	}

	row := e.row
	row.Token = &hash
	row.TokenUserID = nil
	if forUser != nil && !forUser.IsDummy() {
		id := forUser.ID()
		row.TokenUserID = &id
	}
	row.TokenCreation = &now
	row.TokenConsumption = nil
	if err := e.table.repo.Store(ctx, &row); err != nil {
		e.table.logger.Error(ctx, "failed to store email token", "account", e.row.Display(), "error", err)
		return "", err
	}
	e.row = row

	e.table.logger.Info(ctx, "email token generated", "account", row.Display())
	return plain, nil
}

// ConsumeToken verifies a mailed token and returns the user the account is
// linked to, creating and linking a new user if there is none yet.
func (e *EmailAccountItem) ConsumeToken(ctx context.Context, token string) (*UserItem, error) {
	if err := e.consume(ctx, token); err != nil {
		return nil, err
	}
	return e.User(ctx)
}

func (e *EmailAccountItem) consume(ctx context.Context, token string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	display := e.row.Display()
	now := e.table.now()

	switch {
	case e.row.TokenConsumption != nil:
		e.table.logger.Warn(ctx, "deny email token, already consumed", "account", display, "consumption", *e.row.TokenConsumption)
		return common.ErrTokenConsumed
	case e.row.Token == nil:
		e.table.logger.Warn(ctx, "deny email token, none issued", "account", display)
		return common.ErrInvalidToken
	case e.row.TokenCreation == nil:
		e.table.logger.Error(ctx, "deny email token, no creation time", "account", display)
		return common.ErrInvalidToken
	case !now.Before(e.row.TokenCreation.Add(common.EmailTokenValidity)):
		e.table.logger.Warn(ctx, "deny email token, outdated", "account", display, "creation", *e.row.TokenCreation)
		return common.ErrTokenExpired
	}

	if !cryptox.VerifyToken(token, *e.row.Token) {
		e.table.logger.Warn(ctx, "deny email token, verification failed", "account", display)
		return common.ErrInvalidToken
	}

	row := e.row
	row.Token = nil
	if row.TokenUserID != nil {
		row.UserID = row.TokenUserID
	}
	row.TokenConsumption = &now
	if err := e.table.repo.Store(ctx, &row); err != nil {
		e.table.logger.Error(ctx, "failed to store consumed email token", "account", display, "error", err)
		return err
	}
	e.row = row

	e.table.logger.Info(ctx, "email token verified", "account", row.Display())
	return nil
}

// pending reports whether an unconsumed token is still within its validity.
func (e *EmailAccountItem) pending(now time.Time) bool {
	if e.row.TokenCreation == nil || e.row.TokenConsumption != nil {
		return false
	}
	return now.Before(e.row.TokenCreation.Add(common.EmailTokenValidity))
}

// User returns the linked user. An account without a user gets a new one,
// which is linked and persisted; use HasUser to test without side effects.
func (e *EmailAccountItem) User(ctx context.Context) (*UserItem, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return linkedUser(ctx, &e.table.table, e.row.Display(), e.row.UserID, func(userID *int64) error {
		row := e.row
		row.UserID = userID
		if err := e.table.repo.Store(ctx, &row); err != nil {
			return err
		}
		e.row = row
		return nil
	})
}

// SetUser links the account to user. Linking to the current user is a no-op.
func (e *EmailAccountItem) SetUser(ctx context.Context, user *UserItem) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := user.ID()
	if id <= 0 {
		return common.ErrDummyUser
	}
	if e.row.UserID != nil && *e.row.UserID == id {
		return nil
	}

	row := e.row
	row.UserID = &id
	if err := e.table.repo.Store(ctx, &row); err != nil {
		e.table.logger.Error(ctx, "failed to set user", "account", e.row.Display(), "error", err)
		return err
	}
	e.row = row
	return nil
}

// EmailAccountTable is the registry of email accounts, indexed by id and by
// normalized address.
type EmailAccountTable struct {
	table
	repo    emailaccounts.Repository
	cache   *cache[int64, *EmailAccountItem]
	byEmail *cache[string, *EmailAccountItem]
}

func newEmailAccountTable(t table, repo emailaccounts.Repository) *EmailAccountTable {
	return &EmailAccountTable{
		table:   t,
		repo:    repo,
		cache:   newCache[int64, *EmailAccountItem](),
		byEmail: newCache[string, *EmailAccountItem](),
	}
}

// Create inserts a new, unverified account. Invalid addresses yield
// common.ErrInvalidEmail, an address already in use common.ErrConflict.
func (t *EmailAccountTable) Create(ctx context.Context, email string) (*EmailAccountItem, error) {
	email = strings.TrimSpace(email)
	if !emailPattern.MatchString(email) {
		t.logger.Warn(ctx, "ignoring account with invalid email", "email", email)
		return nil, common.ErrInvalidEmail
	}

	row := models.EmailAccount{Email: email}
	if err := t.repo.Store(ctx, &row); err != nil {
		if errors.Is(err, common.ErrConflict) {
			t.logger.Warn(ctx, "email account already exists", "email", row.Email)
		} else {
			t.logger.Error(ctx, "failed to create email account", "email", row.Email, "error", err)
		}
		return nil, err
	}

	item := t.adopt(&row)
	t.logger.Info(ctx, "email account created", "account", row.Display())
	return item, nil
}

// ByID returns the account with the given id, verified or not.
func (t *EmailAccountTable) ByID(ctx context.Context, id int64) (*EmailAccountItem, bool) {
	if item, ok := t.cache.Load(id); ok {
		return item, true
	}

	row, err := t.repo.Load(ctx, id)
	if err != nil {
		t.logLookup(ctx, err, "table", "email_accounts", "id", id)
		return nil, false
	}
	return t.adopt(row), true
}

// ByEmail returns the account of an address, verified or not.
func (t *EmailAccountTable) ByEmail(ctx context.Context, email string) (*EmailAccountItem, bool) {
	email = models.NormalizeEmail(email)
	if item, ok := t.byEmail.Load(email); ok {
		return item, true
	}

	row, err := t.repo.FindByEmail(ctx, email)
	if err != nil {
		t.logLookup(ctx, err, "table", "email_accounts", "email", email)
		return nil, false
	}
	return t.adopt(row), true
}

// VerifiedByEmail is ByEmail restricted to verified accounts.
func (t *EmailAccountTable) VerifiedByEmail(ctx context.Context, email string) (*EmailAccountItem, bool) {
	item, ok := t.ByEmail(ctx, email)
	if !ok || !item.IsVerified(ctx) {
		return nil, false
	}
	return item, true
}

// ByUser lists the accounts linked to user.
func (t *EmailAccountTable) ByUser(ctx context.Context, user *UserItem) []*EmailAccountItem {
	rows, err := t.repo.ListByUser(ctx, user.ID(), emailaccounts.MaxAccountsPerUser)
	if err != nil {
		t.logger.Error(ctx, "failed to list email accounts", "user_id", user.ID(), "error", err)
		return nil
	}
	if len(rows) >= emailaccounts.MaxAccountsPerUser {
		t.logger.Warn(ctx, "user has too many email accounts, list truncated", "user_id", user.ID())
	}

	items := make([]*EmailAccountItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, t.adopt(row))
	}
	return items
}

// adopt returns the cached item for row, caching a new one under both keys
// if there is none.
func (t *EmailAccountTable) adopt(row *models.EmailAccount) *EmailAccountItem {
	item, _ := t.cache.LoadOrStore(row.ID, &EmailAccountItem{row: *row, table: t})
	t.byEmail.LoadOrStore(item.Email(), item)
	return item
}
