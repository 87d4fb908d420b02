package members

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/members/internal/common"
	"github.com/dmitrijs2005/members/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmail_CreateValidatesAndNormalizes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	table := f.db.EmailAccounts()

	for _, bad := range []string{"", "no-at-sign", "a@b", "a b@example.com", "x@example.toolongtld"} {
		_, err := table.Create(ctx, bad)
		assert.ErrorIs(t, err, common.ErrInvalidEmail, bad)
	}

	acc, err := table.Create(ctx, "  Driver@Example.COM ")
	require.NoError(t, err)
	assert.Equal(t, "driver@example.com", acc.Email())
	assert.False(t, acc.HasUser())

	_, err = table.Create(ctx, "DRIVER@example.com")
	require.ErrorIs(t, err, common.ErrConflict)

	byEmail, ok := table.ByEmail(ctx, " driver@EXAMPLE.com")
	require.True(t, ok)
	assert.Same(t, acc, byEmail)

	byID, ok := table.ByID(ctx, acc.ID())
	require.True(t, ok)
	assert.Same(t, acc, byID)

	_, ok = table.ByEmail(ctx, "nobody@example.com")
	assert.False(t, ok)
}

func TestEmail_TokenGating(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	acc, err := f.db.EmailAccounts().Create(ctx, "gate@example.com")
	require.NoError(t, err)

	token, err := acc.CreateToken(ctx, nil)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	f.clock.Advance(30 * time.Minute)
	_, err = acc.CreateToken(ctx, nil)
	require.ErrorIs(t, err, common.ErrTokenPending)

	// the first token survives the refused request
	user, err := acc.ConsumeToken(ctx, token)
	require.NoError(t, err)
	assert.True(t, acc.HasUser())
	assert.Greater(t, user.ID(), int64(0))
	assert.True(t, acc.IsVerified(ctx))

	_, err = acc.ConsumeToken(ctx, token)
	require.ErrorIs(t, err, common.ErrTokenConsumed)

	// a consumed token does not block a new one
	_, err = acc.CreateToken(ctx, nil)
	require.NoError(t, err)
}

func TestEmail_ExpiredToken(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	acc, err := f.db.EmailAccounts().Create(ctx, "late@example.com")
	require.NoError(t, err)
	token, err := acc.CreateToken(ctx, nil)
	require.NoError(t, err)

	f.clock.Advance(common.EmailTokenValidity)

	_, err = acc.ConsumeToken(ctx, token)
	require.ErrorIs(t, err, common.ErrTokenExpired)
	assert.False(t, acc.HasUser())
	assert.False(t, acc.IsVerified(ctx))

	// an expired token no longer blocks a new one
	fresh, err := acc.CreateToken(ctx, nil)
	require.NoError(t, err)
	assert.NotEqual(t, token, fresh)
}

func TestEmail_WrongTokenLeavesTokenUsable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	acc, err := f.db.EmailAccounts().Create(ctx, "typo@example.com")
	require.NoError(t, err)

	_, err = acc.ConsumeToken(ctx, "deadbeef")
	require.ErrorIs(t, err, common.ErrInvalidToken, "no token issued yet")

	token, err := acc.CreateToken(ctx, nil)
	require.NoError(t, err)

	_, err = acc.ConsumeToken(ctx, token+"00")
	require.ErrorIs(t, err, common.ErrInvalidToken)
	assert.Nil(t, acc.TokenConsumption())

	_, err = acc.ConsumeToken(ctx, token)
	require.NoError(t, err)
}

func TestEmail_TokenForExistingUserLinksOnConsumption(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.newUser(t)

	acc, err := f.db.EmailAccounts().Create(ctx, "second@example.com")
	require.NoError(t, err)

	token, err := acc.CreateToken(ctx, owner)
	require.NoError(t, err)
	assert.False(t, acc.HasUser())

	user, err := acc.ConsumeToken(ctx, token)
	require.NoError(t, err)
	assert.Same(t, owner, user)

	list := f.db.EmailAccounts().ByUser(ctx, owner)
	require.Len(t, list, 1)
	assert.Same(t, acc, list[0])
}

func TestEmail_StatePersists(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	acc, err := f.db.EmailAccounts().Create(ctx, "persist@example.com")
	require.NoError(t, err)
	token, err := acc.CreateToken(ctx, nil)
	require.NoError(t, err)

	// a cold cache sees the pending token
	cold := f.open(logging.Nop()).EmailAccounts()
	_, ok := cold.VerifiedByEmail(ctx, "persist@example.com")
	assert.False(t, ok)

	again, ok := cold.ByEmail(ctx, "persist@example.com")
	require.True(t, ok)
	_, err = again.CreateToken(ctx, nil)
	require.ErrorIs(t, err, common.ErrTokenPending)

	user, err := again.ConsumeToken(ctx, token)
	require.NoError(t, err)

	verified, ok := f.open(logging.Nop()).EmailAccounts().VerifiedByEmail(ctx, "PERSIST@example.com")
	require.True(t, ok)
	linked, err := verified.User(ctx)
	require.NoError(t, err)
	assert.Equal(t, user.ID(), linked.ID())
}

func TestEmail_SetUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a, b := f.newUser(t), f.newUser(t)

	acc, err := f.db.EmailAccounts().Create(ctx, "move@example.com")
	require.NoError(t, err)

	require.NoError(t, acc.SetUser(ctx, a))
	require.NoError(t, acc.SetUser(ctx, a))
	require.NoError(t, acc.SetUser(ctx, b))

	got, err := acc.User(ctx)
	require.NoError(t, err)
	assert.Same(t, b, got)

	require.ErrorIs(t, acc.SetUser(ctx, f.db.Users().Dummy()), common.ErrDummyUser)
}

func TestMagicLink(t *testing.T) {
	assert.Equal(t, "https://league.example/login/email/verify/5/abc123",
		MagicLink("https://league.example/", 5, "abc123"))
}
