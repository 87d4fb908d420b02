package members

import (
	"context"
	"runtime"
	"testing"

	"github.com/dmitrijs2005/members/internal/common"
	"github.com/dmitrijs2005/members/internal/logging"
	"github.com/dmitrijs2005/members/internal/server/models"
	"github.com/dmitrijs2005/members/internal/server/repositories/steamaccounts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSteam_Idempotence(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	table := f.db.SteamAccounts()

	a, ok := table.BySteamID(ctx, "76561198000000001", true)
	require.True(t, ok)
	b, ok := table.BySteamID(ctx, "76561198000000001", true)
	require.True(t, ok)
	assert.Equal(t, a.ID(), b.ID())
	assert.True(t, f.clock.Now().Equal(a.Creation()))

	cold, ok := f.open(logging.Nop()).SteamAccounts().BySteamID(ctx, "76561198000000001", true)
	require.True(t, ok)
	assert.Equal(t, a.ID(), cold.ID())

	_, ok = table.BySteamID(ctx, "76561198000000002", false)
	assert.False(t, ok)
}

// lateSteamRepo hides rows from the first lookup, as if another writer
// inserted them right after it ran.
type lateSteamRepo struct {
	steamaccounts.Repository
	hidden bool
}

func (r *lateSteamRepo) FindBySteamID(ctx context.Context, steamID string) (*models.SteamAccount, error) {
	if !r.hidden {
		r.hidden = true
		return nil, common.ErrorNotFound
	}
	return r.Repository.FindBySteamID(ctx, steamID)
}

func TestSteam_InsertRaceReloads(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	winner, ok := f.open(logging.Nop()).SteamAccounts().BySteamID(ctx, "42", true)
	require.True(t, ok)

	table := f.db.SteamAccounts()
	table.repo = &lateSteamRepo{Repository: table.repo}

	got, ok := table.BySteamID(ctx, "42", true)
	require.True(t, ok)
	assert.Equal(t, winner.ID(), got.ID())
}

func TestSteam_UserIsCreatedLazily(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	acc, ok := f.db.SteamAccounts().BySteamID(ctx, "7", true)
	require.True(t, ok)
	assert.False(t, acc.HasUser())

	first, err := acc.User(ctx)
	require.NoError(t, err)
	assert.True(t, acc.HasUser())

	second, err := acc.User(ctx)
	require.NoError(t, err)
	assert.Same(t, first, second)

	require.NoError(t, acc.SetLastLogin(ctx, f.clock.Now()))

	cold, ok := f.open(logging.Nop()).SteamAccounts().BySteamID(ctx, "7", false)
	require.True(t, ok)
	assert.True(t, cold.HasUser())
	require.NotNil(t, cold.LastLogin())
	u, err := cold.User(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.ID(), u.ID())
}

func TestSteam_SetUserIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.newUser(t)

	acc, ok := f.db.SteamAccounts().BySteamID(ctx, "8", true)
	require.True(t, ok)

	require.NoError(t, acc.SetUser(ctx, user))
	require.NoError(t, acc.SetUser(ctx, user))

	got, err := acc.User(ctx)
	require.NoError(t, err)
	assert.Same(t, user, got)

	byID, ok := f.db.SteamAccounts().ByID(ctx, acc.ID())
	require.True(t, ok)
	assert.Same(t, acc, byID)
}

// orphanedItems returns items whose Database is no longer referenced.
func orphanedItems(t *testing.T, f *fixture) (*CookieLoginItem, *SteamAccountItem) {
	ctx := context.Background()
	d := f.open(logging.Nop())

	user, err := d.Users().CreateUser(ctx)
	require.NoError(t, err)
	login, err := d.CookieLogins().Create(ctx, user)
	require.NoError(t, err)
	steam, ok := d.SteamAccounts().BySteamID(ctx, "9", true)
	require.True(t, ok)
	return login, steam
}

func TestBackReferenceExpired(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	login, steam := orphanedItems(t, f)
	for i := 0; i < 10 && login.table.ref.Value() != nil; i++ {
		runtime.GC()
	}
	require.Nil(t, login.table.ref.Value())

	_, err := login.User(ctx)
	require.ErrorIs(t, err, common.ErrBackReferenceExpired)

	_, err = steam.User(ctx)
	require.ErrorIs(t, err, common.ErrBackReferenceExpired)
	assert.False(t, steam.HasUser())

	// deletion still expires the client cookie
	assert.Equal(t, LogoutCookie, login.table.Delete(ctx, login))
}
