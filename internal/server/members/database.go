// Package members is the cached data layer of the members service: one table
// registry per entity with shared in-memory items, plus the cookie session,
// email magic-link and Steam linking protocols built on top of them.
//
// Items reach sibling tables through a weak reference to the Database that
// created them, so the Database never has to track the items it handed out.
package members

import (
	"context"
	"time"
	"weak"

	"github.com/dmitrijs2005/members/internal/common"
	"github.com/dmitrijs2005/members/internal/dbx"
	"github.com/dmitrijs2005/members/internal/logging"
	"github.com/dmitrijs2005/members/internal/server/models"
	"github.com/dmitrijs2005/members/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/members/internal/timex"
)

// Options tune a Database. The zero value is usable.
type Options struct {
	Grade  models.GradeRules
	Logger logging.Logger
	// Now is the clock used for every persisted timestamp. Defaults to
	// timex.Now.
	Now func() time.Time
}

// Database composes the four table registries. Migrations must have been
// applied to db before it is constructed.
type Database struct {
	users         *UserTable
	cookieLogins  *CookieLoginTable
	emailAccounts *EmailAccountTable
	steamAccounts *SteamAccountTable
}

// NewDatabase builds the registries in two phases: the Database is allocated
// first so the tables can be handed a weak reference to it.
func NewDatabase(db dbx.DBTX, rm repomanager.RepositoryManager, opts Options) *Database {
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	if opts.Now == nil {
		opts.Now = timex.Now
	}

	d := &Database{}
	ref := weak.Make(d)

	base := func(name string) table {
		return table{
			ref:    ref,
			now:    func() time.Time { return timex.Normalize(opts.Now()) },
			logger: opts.Logger.With("module", name),
		}
	}

	d.users = newUserTable(base("users"), rm.Users(db), opts.Grade)
	d.cookieLogins = newCookieLoginTable(base("cookie_logins"), rm.CookieLogins(db))
	d.emailAccounts = newEmailAccountTable(base("email_accounts"), rm.EmailAccounts(db))
	d.steamAccounts = newSteamAccountTable(base("steam_accounts"), rm.SteamAccounts(db))

	return d
}

func (d *Database) Users() *UserTable                 { return d.users }
func (d *Database) CookieLogins() *CookieLoginTable   { return d.cookieLogins }
func (d *Database) EmailAccounts() *EmailAccountTable { return d.emailAccounts }
func (d *Database) SteamAccounts() *SteamAccountTable { return d.steamAccounts }

// table carries what every registry and its items share.
type table struct {
	ref    weak.Pointer[Database]
	now    func() time.Time
	logger logging.Logger
}

// database resolves the back-reference. An expired reference is a hard
// failure: it is logged and reported as common.ErrBackReferenceExpired.
func (t *table) database(ctx context.Context, owner string) (*Database, error) {
	d := t.ref.Value()
	if d == nil {
		t.logger.Error(ctx, "cannot resolve members database", "item", owner)
		return nil, common.ErrBackReferenceExpired
	}
	return d, nil
}

// logLookup reports a failed row lookup: a missing row is a warning, every
// other failure (ambiguous keys included) is an error.
func (t *table) logLookup(ctx context.Context, err error, args ...any) {
	args = append(args, "error", err)
	switch {
	case isNotFound(err):
		t.logger.Warn(ctx, "row not found", args...)
	case isAmbiguous(err):
		t.logger.Error(ctx, "integrity violation: key matches more than one row", args...)
	default:
		t.logger.Error(ctx, "row lookup failed", args...)
	}
}
