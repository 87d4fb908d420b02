package members

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/members/internal/dbx"
	"github.com/dmitrijs2005/members/internal/logging"
	"github.com/dmitrijs2005/members/internal/server/dbtest"
	"github.com/dmitrijs2005/members/internal/server/models"
	"github.com/dmitrijs2005/members/internal/server/repositories/repomanager"
	"github.com/stretchr/testify/require"
)

// testClock is a manually advanced clock.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	sqlDB *sql.DB
	clock *testClock
	db    *Database
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{sqlDB: dbtest.Open(t), clock: newTestClock()}
	f.db = f.open(logging.Nop())
	return f
}

// open builds another Database over the same store, with empty caches.
func (f *fixture) open(logger logging.Logger) *Database {
	return NewDatabase(f.sqlDB, repomanager.NewSQLRepositoryManager(dbx.SQLite), Options{
		Logger: logger,
		Now:    f.clock.Now,
		Grade: models.GradeRules{
			RootUserID:    1,
			LoginWindow:   30 * 24 * time.Hour,
			DrivingWindow: 30 * 24 * time.Hour,
		},
	})
}

func (f *fixture) newUser(t *testing.T) *UserItem {
	t.Helper()
	u, err := f.db.Users().CreateUser(context.Background())
	require.NoError(t, err)
	return u
}
