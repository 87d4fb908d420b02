package members

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/dmitrijs2005/members/internal/common"
	"github.com/dmitrijs2005/members/internal/cryptox"
	"github.com/dmitrijs2005/members/internal/server/models"
	"github.com/dmitrijs2005/members/internal/server/repositories/cookielogins"
)

const cookieName = "cookie_login"

// LogoutCookie instructs the client to drop its session cookie.
const LogoutCookie = cookieName + `=""; HttpOnly; Max-Age=-1; SameSite=Strict; Secure; Path=/;`

// The name must start a cookie pair so that names merely ending in
// cookie_login are skipped.
var cookiePattern = regexp.MustCompile(`(?:^|;\s*)` + cookieName + `=([0-9]+):([a-f0-9]+)\s*(?:;|$)`)

// ParseCookie extracts the cookie login id and token from a Cookie request
// header. Malformed input is reported through ok, never as an error.
func ParseCookie(header string) (id int64, token string, ok bool) {
	m := cookiePattern.FindStringSubmatch(header)
	if m == nil {
		return 0, "", false
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil || id <= 0 {
		return 0, "", false
	}
	return id, m[2], true
}

// FormatCookie renders the Set-Cookie value of a session.
func FormatCookie(id int64, token string) string {
	return fmt.Sprintf("%s=%d:%s; HttpOnly; Max-Age=%d; SameSite=Strict; Secure; Path=/;",
		cookieName, id, token, common.CookieMaxAge)
}

// CookieLoginItem is the shared in-memory representative of one
// cookie_logins row.
type CookieLoginItem struct {
	mu    sync.RWMutex
	row   models.CookieLogin
	table *CookieLoginTable
	// plaintext of a freshly created token until Cookie hands it out
	staged string
}

func (c *CookieLoginItem) ID() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.row.ID
}

func (c *CookieLoginItem) UserID() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.row.UserID
}

func (c *CookieLoginItem) Creation() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.row.Creation
}

func (c *CookieLoginItem) LastUsage() *time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return copyTime(c.row.LastUsage)
}

func (c *CookieLoginItem) LastUserAgent() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.row.LastUserAgent == nil {
		return ""
	}
	return *c.row.LastUserAgent
}

func (c *CookieLoginItem) Display() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.row.Display()
}

// Cookie returns the Set-Cookie header of a newly created login. The secret
// is handed out once; later calls report false.
func (c *CookieLoginItem) Cookie() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.staged == "" {
		c.table.logger.Warn(context.Background(), "cookie secret no longer available", "cookie", c.row.Display())
		return "", false
	}
	header := FormatCookie(c.row.ID, c.staged)
	c.staged = ""
	return header, true
}

// Verify checks token against the stored hash. On success the usage time and
// user agent are updated and persisted; the usage time strictly increases
// across successful verifications. A failed check changes nothing.
func (c *CookieLoginItem) Verify(ctx context.Context, token, userAgent string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !cryptox.VerifyToken(token, c.row.Token) {
		c.table.logger.Warn(ctx, "cookie verification failed", "cookie", c.row.Display())
		return false
	}

	now := c.table.now()
	if last := c.row.LastUsage; last != nil && !now.After(*last) {
		now = last.Add(time.Microsecond)
	}

	row := c.row
	row.LastUsage = &now
	row.LastUserAgent = &userAgent
	if err := c.table.repo.Store(ctx, &row); err != nil {
		c.table.logger.Error(ctx, "failed to update cookie usage", "cookie", c.row.Display(), "error", err)
		return false
	}
	c.row = row
	return true
}

// User resolves the owner of the login through the members database.
func (c *CookieLoginItem) User(ctx context.Context) (*UserItem, error) {
	c.mu.RLock()
	userID, display := c.row.UserID, c.row.Display()
	c.mu.RUnlock()

	d, err := c.table.database(ctx, display)
	if err != nil {
		return nil, err
	}
	user, ok := d.Users().ByID(ctx, userID)
	if !ok {
		return nil, common.ErrorNotFound
	}
	return user, nil
}

// CookieLoginTable is the registry of cookie logins.
type CookieLoginTable struct {
	table
	repo  cookielogins.Repository
	cache *cache[int64, *CookieLoginItem]
}

func newCookieLoginTable(t table, repo cookielogins.Repository) *CookieLoginTable {
	return &CookieLoginTable{table: t, repo: repo, cache: newCache[int64, *CookieLoginItem]()}
}

// Create issues a new cookie login for user. The returned item holds the
// secret until Cookie is called.
func (t *CookieLoginTable) Create(ctx context.Context, user *UserItem) (*CookieLoginItem, error) {
	userID := user.ID()
	if userID <= 0 {
		return nil, common.ErrDummyUser
	}

	plain, hash, err := cryptox.GenerateToken(cryptox.Quick)
	if err != nil {
		t.logger.Error(ctx, "could not generate cookie token", "error", err)
		return nil, err
	}

	row := models.CookieLogin{UserID: userID, Token: hash, Creation: t.now()}
	if err := t.repo.Store(ctx, &row); err != nil {
		t.logger.Error(ctx, "failed to store new cookie", "user_id", userID, "error", err)
		return nil, err
	}

	item := &CookieLoginItem{row: row, table: t, staged: plain}
	t.cache.LoadOrStore(row.ID, item)
	t.logger.Info(ctx, "cookie login created", "cookie", row.Display())
	return item, nil
}

func (t *CookieLoginTable) ByID(ctx context.Context, id int64) (*CookieLoginItem, bool) {
	if item, ok := t.cache.Load(id); ok {
		return item, true
	}

	row, err := t.repo.Load(ctx, id)
	if err != nil {
		t.logLookup(ctx, err, "table", "cookie_logins", "id", id)
		return nil, false
	}
	return t.adopt(row), true
}

// ByCookie parses a Cookie request header and returns the login it names if
// its token verifies.
func (t *CookieLoginTable) ByCookie(ctx context.Context, header, userAgent string) (*CookieLoginItem, bool) {
	id, token, ok := ParseCookie(header)
	if !ok {
		t.logger.Debug(ctx, "no cookie login in header")
		return nil, false
	}

	item, ok := t.ByID(ctx, id)
	if !ok {
		return nil, false
	}
	if !item.Verify(ctx, token, userAgent) {
		return nil, false
	}
	return item, true
}

// LatestUsage returns the login of user that was used most recently.
func (t *CookieLoginTable) LatestUsage(ctx context.Context, user *UserItem) (*CookieLoginItem, bool) {
	row, err := t.repo.LatestByUser(ctx, user.ID())
	if err != nil {
		t.logLookup(ctx, err, "table", "cookie_logins", "user_id", user.ID())
		return nil, false
	}
	return t.adopt(row), true
}

// ByUser lists all logins of user.
func (t *CookieLoginTable) ByUser(ctx context.Context, user *UserItem) []*CookieLoginItem {
	rows, err := t.repo.ListByUser(ctx, user.ID())
	if err != nil {
		t.logger.Error(ctx, "failed to list cookie logins", "user_id", user.ID(), "error", err)
		return nil
	}

	items := make([]*CookieLoginItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, t.adopt(row))
	}
	return items
}

// Delete removes the login and returns the header that expires the cookie
// on the client, whether or not the row could be deleted.
func (t *CookieLoginTable) Delete(ctx context.Context, item *CookieLoginItem) string {
	id := item.ID()

	if user, err := item.User(ctx); err == nil {
		t.logger.Info(ctx, "logout", "user_id", user.ID(), "cookie_id", id)
	} else {
		t.logger.Warn(ctx, "cookie deletion without associated user", "cookie_id", id)
	}

	if err := t.repo.Delete(ctx, id); err != nil {
		t.logger.Error(ctx, "failed to delete cookie", "cookie_id", id, "error", err)
	}
	t.cache.Delete(id)

	return LogoutCookie
}

// adopt returns the cached item for row, caching a new one if there is none.
func (t *CookieLoginTable) adopt(row *models.CookieLogin) *CookieLoginItem {
	item, _ := t.cache.LoadOrStore(row.ID, &CookieLoginItem{row: *row, table: t})
	return item
}
