package session

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mingyuchen/activity-tracker-go/password"
	"github.com/mingyuchen/activity-tracker-go/registry"
	"github.com/mingyuchen/activity-tracker-go/token"
	"github.com/mingyuchen/activity-tracker-go/user"
)

var (
	// ErrUserNotFound is returned by Login for an unknown email.
	ErrUserNotFound = errors.New("unknown email")
	// ErrBadCredentials is returned by Login on a password mismatch.
	ErrBadCredentials = errors.New("bad credentials")
	// ErrTokenInvalid is returned by Refresh when the presented token fails
	// signature or claim checks.
	ErrTokenInvalid = errors.New("invalid refresh token claim or expired")
	// ErrTokenExpired is returned by Refresh for a token past its own expiry;
	// the client must log in again.
	ErrTokenExpired = errors.New("refresh token expired, login again")
	// ErrTokenRevoked is returned by Refresh when the registry has no live
	// entry bound to the presenting subject (rotated, revoked or evicted).
	ErrTokenRevoked = errors.New("invalid or revoked refresh token")
)

// TokenPair is what login and refresh hand back to the transport layer.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	UserID       string
}

// Issuer implements the session state machine over the token codec, the
// refresh-token registry and the credential store.
type Issuer struct {
	users    user.Store
	hasher   *password.Hasher
	tokens   *token.Manager
	registry registry.Registry
	log      *zap.Logger
}

// NewIssuer wires an Issuer. A nil logger falls back to zap.NewNop.
func NewIssuer(users user.Store, hasher *password.Hasher, tokens *token.Manager, reg registry.Registry, log *zap.Logger) *Issuer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Issuer{users: users, hasher: hasher, tokens: tokens, registry: reg, log: log}
}

// Login verifies credentials, mints an access/refresh pair with the user's
// email as subject, and registers the refresh token for its full lifetime.
func (i *Issuer) Login(ctx context.Context, email, pass string) (TokenPair, error) {
	u, err := i.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return TokenPair{}, ErrUserNotFound
		}
		return TokenPair{}, fmt.Errorf("lookup user: %w", err)
	}

	ok, err := i.hasher.Verify(pass, u.PasswordHash)
	if err != nil {
		return TokenPair{}, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		i.log.Info("login rejected", zap.String("email", email))
		return TokenPair{}, ErrBadCredentials
	}

	access, err := i.tokens.IssueAccess(u.Email)
	if err != nil {
		return TokenPair{}, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := i.tokens.IssueRefresh(u.Email)
	if err != nil {
		return TokenPair{}, fmt.Errorf("issue refresh token: %w", err)
	}
	if err := i.registry.Put(ctx, u.Email, refresh, i.tokens.RefreshTTL()); err != nil {
		return TokenPair{}, fmt.Errorf("register refresh token: %w", err)
	}

	i.log.Info("login", zap.String("email", email))
	return TokenPair{AccessToken: access, RefreshToken: refresh, UserID: u.ID.String()}, nil
}

// Refresh rotates the presented refresh token. The presented token is
// consumed exactly once: the registry's Rotate is atomic, so a replayed or
// concurrent duplicate observes the entry already gone and fails with
// ErrTokenRevoked.
func (i *Issuer) Refresh(ctx context.Context, presented string) (TokenPair, error) {
	subject, err := i.tokens.ParseSubject(presented)
	if err != nil {
		if errors.Is(err, token.ErrExpired) {
			// Best-effort cleanup: the token fails its own expiry check from
			// now on even if this delete is lost.
			if err := i.registry.Delete(ctx, presented); err != nil {
				i.log.Warn("revoke of expired refresh token failed", zap.Error(err))
			}
			return TokenPair{}, ErrTokenExpired
		}
		i.log.Info("refresh rejected", zap.NamedError("reason", err))
		return TokenPair{}, ErrTokenInvalid
	}

	next, err := i.tokens.IssueRefresh(subject)
	if err != nil {
		return TokenPair{}, fmt.Errorf("issue refresh token: %w", err)
	}
	if err := i.registry.Rotate(ctx, presented, subject, next, i.tokens.RefreshTTL()); err != nil {
		if errors.Is(err, registry.ErrNotFound) || errors.Is(err, registry.ErrSubjectMismatch) {
			i.log.Info("refresh rejected", zap.String("subject", subject), zap.NamedError("reason", err))
			return TokenPair{}, ErrTokenRevoked
		}
		return TokenPair{}, fmt.Errorf("rotate refresh token: %w", err)
	}

	access, err := i.tokens.IssueAccess(subject)
	if err != nil {
		return TokenPair{}, fmt.Errorf("issue access token: %w", err)
	}

	i.log.Info("refresh", zap.String("subject", subject))
	return TokenPair{AccessToken: access, RefreshToken: next}, nil
}

// Logout revokes the presented refresh token. It never fails from the
// caller's point of view: an empty, unknown or already-revoked token is a
// no-op.
func (i *Issuer) Logout(ctx context.Context, presented string) error {
	if presented == "" {
		return nil
	}
	if err := i.registry.Delete(ctx, presented); err != nil {
		i.log.Warn("logout revoke failed", zap.Error(err))
	}
	return nil
}
