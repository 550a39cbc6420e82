package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken is the umbrella failure reported across the package
// boundary. Every parse or verification failure satisfies
// errors.Is(err, ErrInvalidToken); the finer kinds below exist so callers
// can distinguish expiry from forgery without exposing the difference to
// clients.
var ErrInvalidToken = errors.New("invalid token")

var (
	// ErrMalformed marks tokens that cannot be decoded at all.
	ErrMalformed = fmt.Errorf("%w: malformed", ErrInvalidToken)
	// ErrBadSignature marks tokens whose signature does not verify.
	ErrBadSignature = fmt.Errorf("%w: bad signature", ErrInvalidToken)
	// ErrExpired marks tokens whose exp claim has passed.
	ErrExpired = fmt.Errorf("%w: expired", ErrInvalidToken)
)

// Config holds the signing secret and the two token lifetimes.
type Config struct {
	Secret     []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Manager creates and parses signed tokens. It is stateless and safe for
// concurrent use.
type Manager struct {
	config Config
}

// NewManager validates cfg and returns a Manager. Both TTLs must be positive
// and the secret non-empty.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("token: empty signing secret")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("token: invalid TTL configuration")
	}
	return &Manager{config: cfg}, nil
}

// AccessTTL reports the configured access-token lifetime.
func (m *Manager) AccessTTL() time.Duration { return m.config.AccessTTL }

// RefreshTTL reports the configured refresh-token lifetime.
func (m *Manager) RefreshTTL() time.Duration { return m.config.RefreshTTL }

// IssueAccess mints a short-lived access token for subject.
func (m *Manager) IssueAccess(subject string) (string, error) {
	return m.issue(subject, m.config.AccessTTL)
}

// IssueRefresh mints a long-lived refresh token for subject.
func (m *Manager) IssueRefresh(subject string) (string, error) {
	return m.issue(subject, m.config.RefreshTTL)
}

func (m *Manager) issue(subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		// The jti makes every issued token distinct even when two are minted
		// for the same subject within the same second (exp and iat only have
		// second precision). Refresh rotation relies on the replacement never
		// colliding with the token it replaces.
		ID:        uuid.NewString(),
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.config.Secret)
}

// ParseSubject verifies the token and returns its subject. Failures map to
// ErrMalformed, ErrBadSignature or ErrExpired; all satisfy ErrInvalidToken.
func (m *Manager) ParseSubject(tokenStr string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	parsed, err := parser.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
		return m.config.Secret, nil
	})
	if err != nil {
		return "", normalizeParseError(err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return "", ErrMalformed
	}
	return claims.Subject, nil
}

// IsExpired reports whether the token's exp claim has passed. It does not
// verify the signature; use it only on tokens that already parsed.
func (m *Manager) IsExpired(tokenStr string) bool {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims); err != nil {
		return true
	}
	if claims.ExpiresAt == nil {
		return true
	}
	return !claims.ExpiresAt.Time.After(time.Now())
}

// Validate reports whether the token verifies, is unexpired, and carries
// expectedSubject.
func (m *Manager) Validate(tokenStr, expectedSubject string) bool {
	subject, err := m.ParseSubject(tokenStr)
	if err != nil {
		return false
	}
	return subject == expectedSubject
}

func normalizeParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrBadSignature
	default:
		return ErrMalformed
	}
}
