package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrNotFound is returned when no live entry exists for a token.
	ErrNotFound = errors.New("refresh token not registered")
	// ErrSubjectMismatch is returned when an entry exists but is bound to a
	// different subject than the one presented.
	ErrSubjectMismatch = errors.New("refresh token subject mismatch")
	// ErrUnavailable wraps Redis transport failures.
	ErrUnavailable = errors.New("registry unavailable")
)

const defaultKeyPrefix = "rt"

const (
	rotateStatusNotFound int64 = 0
	rotateStatusRotated  int64 = 1
	rotateStatusMismatch int64 = 2
)

// rotateScript is the atomic compare-and-delete-then-put used during refresh
// rotation. Two concurrent callers presenting the same token serialize on the
// script: the loser observes the entry already gone.
const rotateScript = `
local stored = redis.call("GET", KEYS[1])
if not stored then
  return 0
end
if stored ~= ARGV[1] then
  return 2
end
redis.call("DEL", KEYS[1])
redis.call("SET", KEYS[2], ARGV[1], "PX", ARGV[2])
return 1
`

var rotateLua = redis.NewScript(rotateScript)

// Registry is the server-side source of truth for which refresh tokens are
// still usable. All operations are keyed by the raw refresh-token string.
type Registry interface {
	Put(ctx context.Context, subject, token string, ttl time.Duration) error
	Get(ctx context.Context, token string) (string, error)
	Delete(ctx context.Context, token string) error
	Rotate(ctx context.Context, oldToken, subject, newToken string, ttl time.Duration) error
}

// Redis implements Registry on a redis client.
type Redis struct {
	client redis.Cmdable
	prefix string
}

// NewRedis returns a Registry backed by client. An empty prefix falls back to
// the package default.
func NewRedis(client redis.Cmdable, prefix string) *Redis {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) key(token string) string {
	return r.prefix + ":" + token
}

// Put registers token for subject with the given ttl. It is an upsert: a
// colliding key is overwritten, which cannot happen for honestly issued
// tokens since each carries a fresh iat.
func (r *Redis) Put(ctx context.Context, subject, token string, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.key(token), subject, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Get returns the subject bound to token, or ErrNotFound.
func (r *Redis) Get(ctx context.Context, token string) (string, error) {
	subject, err := r.client.Get(ctx, r.key(token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return subject, nil
}

// Delete revokes token. Deleting an absent key is a no-op.
func (r *Redis) Delete(ctx context.Context, token string) error {
	if err := r.client.Del(ctx, r.key(token)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Rotate atomically revokes oldToken and registers newToken for subject.
// It fails with ErrNotFound when oldToken has no live entry (already rotated,
// revoked, or evicted) and with ErrSubjectMismatch when the entry belongs to
// a different subject; in both cases nothing is written.
func (r *Redis) Rotate(ctx context.Context, oldToken, subject, newToken string, ttl time.Duration) error {
	status, err := rotateLua.Run(ctx, r.client,
		[]string{r.key(oldToken), r.key(newToken)},
		subject, ttl.Milliseconds(),
	).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	switch status {
	case rotateStatusRotated:
		return nil
	case rotateStatusNotFound:
		return ErrNotFound
	case rotateStatusMismatch:
		return ErrSubjectMismatch
	default:
		return fmt.Errorf("%w: unexpected rotate status %d", ErrUnavailable, status)
	}
}
