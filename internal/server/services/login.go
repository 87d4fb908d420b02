// Package services contains server-side business logic. LoginService composes
// the members protocols with the outbound collaborators (mail, Steam, throttle)
// into complete login flows.
package services

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/url"
	"time"

	"github.com/dmitrijs2005/members/internal/common"
	"github.com/dmitrijs2005/members/internal/logging"
	"github.com/dmitrijs2005/members/internal/server/auth"
	"github.com/dmitrijs2005/members/internal/server/config"
	"github.com/dmitrijs2005/members/internal/server/mailer"
	"github.com/dmitrijs2005/members/internal/server/members"
	"github.com/dmitrijs2005/members/internal/server/models"
	"github.com/dmitrijs2005/members/internal/server/steam"
	"github.com/dmitrijs2005/members/internal/server/throttle"
	"github.com/dmitrijs2005/members/internal/timex"
)

// Session is the result of a successful login: the user, the Set-Cookie
// header of the new cookie login and a short-lived access assertion.
type Session struct {
	User        *members.UserItem
	SetCookie   string
	AccessToken string
}

// LoginService provides the login flows:
// - ResolveUser: cookie header to user (anonymous when there is none)
// - RequestEmailLogin / VerifyEmailLogin: magic link by mail
// - SteamLogin / LinkSteamAccount: Steam OpenID
// - Logout: drop a cookie login
type LoginService struct {
	db       *members.Database
	mailer   mailer.Mailer
	verifier steam.Verifier
	limiter  throttle.Limiter
	logger   logging.Logger

	baseURL                     string
	jwtSecret                   []byte
	accessTokenValidityDuration time.Duration
	now                         func() time.Time
}

// NewLoginService constructs a LoginService using the members database,
// its collaborators and server config.
func NewLoginService(db *members.Database, m mailer.Mailer, v steam.Verifier, l throttle.Limiter, logger logging.Logger, cfg *config.Config) *LoginService {
	return &LoginService{
		db:                          db,
		mailer:                      m,
		verifier:                    v,
		limiter:                     l,
		logger:                      logger.With("module", "login_service"),
		baseURL:                     cfg.BaseURL,
		jwtSecret:                   []byte(cfg.SecretKey),
		accessTokenValidityDuration: cfg.AccessTokenValidityDuration,
		now:                         timex.Now,
	}
}

// ResolveUser returns the user a Cookie header belongs to, or the dummy user
// when the header carries no valid cookie login.
func (s *LoginService) ResolveUser(ctx context.Context, cookieHeader, userAgent string) *members.UserItem {
	login, ok := s.db.CookieLogins().ByCookie(ctx, cookieHeader, userAgent)
	if !ok {
		return s.db.Users().Dummy()
	}

	user, err := login.User(ctx)
	if err != nil {
		s.logger.Warn(ctx, "cookie login without usable user", "cookie", login.Display(), "error", err)
		return s.db.Users().Dummy()
	}

	if err := user.SetLastLogin(ctx, s.now()); err != nil {
		s.logger.Error(ctx, "failed to update last login", "user", user.Display(), "error", err)
	}
	return user
}

// UserByAccessToken returns the user an access assertion was minted for.
func (s *LoginService) UserByAccessToken(ctx context.Context, token string) (*members.UserItem, error) {
	id, err := auth.GetUserIDFromToken(token, s.jwtSecret)
	if err != nil {
		return nil, err
	}
	return s.UserByID(ctx, id)
}

// UserByID returns a stored user; unknown ids yield common.ErrorUnauthorized.
func (s *LoginService) UserByID(ctx context.Context, id int64) (*members.UserItem, error) {
	user, ok := s.db.Users().ByID(ctx, id)
	if !ok {
		return nil, common.ErrorUnauthorized
	}
	return user, nil
}

// RequestEmailLogin mails a magic link for email, creating the account on
// first use. With a non-dummy forUser the address gets linked to that user
// once the link is followed. Mail delivery failures are only logged.
func (s *LoginService) RequestEmailLogin(ctx context.Context, email string, forUser *members.UserItem) error {
	allowed, err := s.limiter.Allow(ctx, models.NormalizeEmail(email))
	if err != nil {
		s.logger.Error(ctx, "throttle unavailable", "error", err)
	} else if !allowed {
		s.logger.Warn(ctx, "email login request throttled", "email", email)
		return common.ErrThrottled
	}

	acc, err := s.emailAccount(ctx, email)
	if err != nil {
		return err
	}

	token, err := acc.CreateToken(ctx, forUser)
	if err != nil {
		return err
	}

	link := members.MagicLink(s.baseURL, acc.ID(), token)
	body := fmt.Sprintf(`<p>Follow this link within one hour to log in:</p><p><a href="%s">%s</a></p>`,
		html.EscapeString(link), html.EscapeString(link))
	if err := s.mailer.Send(ctx, acc.Email(), "Your login link", body); err != nil {
		s.logger.Error(ctx, "failed to send login mail", "account", acc.Display(), "error", err)
	}
	return nil
}

func (s *LoginService) emailAccount(ctx context.Context, email string) (*members.EmailAccountItem, error) {
	if acc, ok := s.db.EmailAccounts().ByEmail(ctx, email); ok {
		return acc, nil
	}

	acc, err := s.db.EmailAccounts().Create(ctx, email)
	if errors.Is(err, common.ErrConflict) {
		// created concurrently
		if acc, ok := s.db.EmailAccounts().ByEmail(ctx, email); ok {
			return acc, nil
		}
	}
	return acc, err
}

// VerifyEmailLogin consumes a magic link token and starts a session for the
// linked user.
func (s *LoginService) VerifyEmailLogin(ctx context.Context, accountID int64, token, userAgent string) (*Session, error) {
	acc, ok := s.db.EmailAccounts().ByID(ctx, accountID)
	if !ok {
		return nil, common.ErrorUnauthorized
	}

	user, err := acc.ConsumeToken(ctx, token)
	if err != nil {
		return nil, err
	}
	return s.startSession(ctx, user, userAgent)
}

// SteamLogin verifies a Steam OpenID callback and starts a session for the
// user behind the Steam account, creating both on first login.
func (s *LoginService) SteamLogin(ctx context.Context, params url.Values, userAgent string) (*Session, error) {
	acc, err := s.steamAccount(ctx, params)
	if err != nil {
		return nil, err
	}

	user, err := acc.User(ctx)
	if err != nil {
		return nil, err
	}
	if err := acc.SetLastLogin(ctx, s.now()); err != nil {
		s.logger.Error(ctx, "failed to update steam last login", "account", acc.Display(), "error", err)
	}
	return s.startSession(ctx, user, userAgent)
}

// LinkSteamAccount attaches a verified Steam account to an existing user.
func (s *LoginService) LinkSteamAccount(ctx context.Context, user *members.UserItem, params url.Values) error {
	if user.IsDummy() {
		return common.ErrorUnauthorized
	}
	acc, err := s.steamAccount(ctx, params)
	if err != nil {
		return err
	}
	return acc.SetUser(ctx, user)
}

func (s *LoginService) steamAccount(ctx context.Context, params url.Values) (*members.SteamAccountItem, error) {
	steamID, err := s.verifier.Verify(ctx, params)
	if err != nil {
		s.logger.Warn(ctx, "steam login rejected", "error", err)
		return nil, fmt.Errorf("%w: %v", common.ErrorUnauthorized, err)
	}

	acc, ok := s.db.SteamAccounts().BySteamID(ctx, steamID, true)
	if !ok {
		return nil, common.ErrorInternal
	}
	return acc, nil
}

// Logout deletes the cookie login named by the header and returns the header
// expiring it on the client.
func (s *LoginService) Logout(ctx context.Context, cookieHeader, userAgent string) string {
	login, ok := s.db.CookieLogins().ByCookie(ctx, cookieHeader, userAgent)
	if !ok {
		return members.LogoutCookie
	}
	return s.db.CookieLogins().Delete(ctx, login)
}

func (s *LoginService) startSession(ctx context.Context, user *members.UserItem, userAgent string) (*Session, error) {
	login, err := s.db.CookieLogins().Create(ctx, user)
	if err != nil {
		return nil, common.ErrorInternal
	}
	cookie, ok := login.Cookie()
	if !ok {
		return nil, common.ErrorInternal
	}

	if err := user.SetLastLogin(ctx, s.now()); err != nil {
		s.logger.Error(ctx, "failed to update last login", "user", user.Display(), "error", err)
	}

	row := user.Row()
	access, err := auth.GenerateToken(&row, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return nil, common.ErrorInternal
	}

	s.logger.Info(ctx, "login", "user", row.Display(), "cookie_id", login.ID(), "user_agent", userAgent)
	return &Session{User: user, SetCookie: cookie, AccessToken: access}, nil
}
