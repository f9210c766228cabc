/*
Package auth holds the signed-in identity used by the plan engine.

PURPOSE:
  The plan service authenticates every plan call with a bearer token
  obtained from /auth/login or /auth/register. Session keeps that token
  and the user it belongs to, and hands the token to the HTTP client.

FLOW:
  Login/Register ──▶ {token, user} ──▶ Session ──▶ Token() ──▶ remote.Client
                                          │
                          Logout ─────────┘ (token dropped, Token() fails)

  When the service omits the user object, a local user is synthesized
  from the e-mail ("local-<email>").

EXPIRY:
  Tokens are JWTs. Their exp claim is read without verifying the
  signature (the service verifies it); an expired token is treated as
  no session so callers fail fast instead of getting a 401 mid-update.

SEE ALSO:
  - remote/client.go: Backend implementation and TokenSource consumer
  - planstore/store.go: Checks Authorized() before mutating
*/
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/perugo/reservation-engine/wire"
)

var (
	// ErrNoSession is returned when an operation needs a signed-in user.
	ErrNoSession = errors.New("no active session")

	// ErrSessionExpired is an ErrNoSession whose token has passed its exp claim.
	ErrSessionExpired = fmt.Errorf("%w: token expired", ErrNoSession)

	// ErrMissingCredentials is returned before any network call for blank input.
	ErrMissingCredentials = errors.New("email and password are required")
)

// Backend is the part of the plan service the session talks to.
type Backend interface {
	Login(ctx context.Context, req wire.LoginRequest) (wire.AuthResponse, error)
	Register(ctx context.Context, req wire.RegisterRequest) (wire.AuthResponse, error)
	UpdateProfile(ctx context.Context, req wire.ProfileRequest) (wire.ProfileResponse, error)
}

type User struct {
	ID       string
	Email    string
	Username string
}

type Session struct {
	Backend Backend
	Now     func() time.Time

	mu    sync.RWMutex
	token string
	user  *User
}

func NewSession(b Backend) *Session {
	return &Session{Backend: b, Now: time.Now}
}

// =============================================================================
// SIGN IN / OUT
// =============================================================================

func (s *Session) Login(ctx context.Context, email, password string) (User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return User{}, ErrMissingCredentials
	}
	resp, err := s.Backend.Login(ctx, wire.LoginRequest{Email: email, Password: password})
	if err != nil {
		return User{}, err
	}
	return s.adopt(resp, User{ID: "local-" + email, Email: email}), nil
}

func (s *Session) Register(ctx context.Context, username, email, password string) (User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return User{}, ErrMissingCredentials
	}
	resp, err := s.Backend.Register(ctx, wire.RegisterRequest{Username: username, Email: email, Password: password})
	if err != nil {
		return User{}, err
	}
	return s.adopt(resp, User{ID: "local-" + email, Email: email, Username: username}), nil
}

func (s *Session) adopt(resp wire.AuthResponse, fallback User) User {
	u := fallback
	if resp.User != nil {
		u = userFrom(*resp.User)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	// An empty token signs the previous account out too.
	s.token = resp.Token
	s.user = &u
	return u
}

// Logout forgets the token and user. Subsequent plan calls fail fast.
func (s *Session) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.user = nil
}

// UpdateUsername changes the display name on the service and locally.
func (s *Session) UpdateUsername(ctx context.Context, username string) (User, error) {
	if _, err := s.Token(); err != nil {
		return User{}, err
	}
	resp, err := s.Backend.UpdateProfile(ctx, wire.ProfileRequest{Username: username})
	if err != nil {
		return User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case resp.User != nil && s.user != nil:
		s.user.Username = resp.User.Username
	case resp.User != nil:
		u := userFrom(*resp.User)
		s.user = &u
	case s.user != nil:
		s.user.Username = username
	}
	if s.user == nil {
		return User{}, nil
	}
	return *s.user, nil
}

// =============================================================================
// ACCESSORS
// =============================================================================

// Token implements remote.TokenSource.
func (s *Session) Token() (string, error) {
	s.mu.RLock()
	token := s.token
	s.mu.RUnlock()

	if token == "" {
		return "", ErrNoSession
	}
	if exp, ok := expiry(token); ok && !exp.After(s.now()) {
		return "", ErrSessionExpired
	}
	return token, nil
}

func (s *Session) User() (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return User{}, false
	}
	return *s.user, true
}

func (s *Session) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// expiry reads the exp claim of a JWT without verifying it.
// Opaque (non-JWT) tokens have no known expiry.
func expiry(token string) (time.Time, bool) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

func userFrom(r wire.UserRecord) User {
	return User{ID: string(r.ID), Email: r.Email, Username: r.Username}
}
