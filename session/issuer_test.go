package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/mingyuchen/activity-tracker-go/password"
	"github.com/mingyuchen/activity-tracker-go/registry"
	"github.com/mingyuchen/activity-tracker-go/token"
	"github.com/mingyuchen/activity-tracker-go/user"
)

type memUserStore struct {
	mu      sync.RWMutex
	byEmail map[string]*user.User
}

func newMemUserStore() *memUserStore {
	return &memUserStore{byEmail: make(map[string]*user.User)}
}

func (s *memUserStore) Create(_ context.Context, u *user.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byEmail[u.Email]; ok {
		return user.ErrDuplicateEmail
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	s.byEmail[u.Email] = u
	return nil
}

func (s *memUserStore) GetByID(_ context.Context, id uuid.UUID) (*user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, user.ErrNotFound
}

func (s *memUserStore) GetByEmail(_ context.Context, email string) (*user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byEmail[email]
	if !ok {
		return nil, user.ErrNotFound
	}
	return u, nil
}

func newTestIssuer(t *testing.T) (*Issuer, *token.Manager, registry.Registry) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	reg := registry.NewRedis(client, "rt")

	tokens, err := token.NewManager(token.Config{
		Secret:     []byte("issuer-test-secret-issuer-test"),
		AccessTTL:  time.Minute,
		RefreshTTL: time.Hour,
	})
	if err != nil {
		t.Fatalf("new token manager: %v", err)
	}

	hasher := password.NewHasher(password.Config{
		Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32,
	})

	users := newMemUserStore()
	hash, err := hasher.Hash("Secret1!")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := users.Create(context.Background(), &user.User{
		Email:        "a@b.com",
		PasswordHash: hash,
		CreatedAt:    time.Now(),
	}); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	return NewIssuer(users, hasher, tokens, reg, nil), tokens, reg
}

func TestLoginIssuesRegisteredPair(t *testing.T) {
	issuer, tokens, reg := newTestIssuer(t)
	ctx := context.Background()

	pair, err := issuer.Login(ctx, "a@b.com", "Secret1!")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" || pair.UserID == "" {
		t.Fatalf("incomplete pair: %+v", pair)
	}

	if subject, err := tokens.ParseSubject(pair.AccessToken); err != nil || subject != "a@b.com" {
		t.Fatalf("access subject = %q, %v", subject, err)
	}
	if subject, err := reg.Get(ctx, pair.RefreshToken); err != nil || subject != "a@b.com" {
		t.Fatalf("registry entry = %q, %v", subject, err)
	}
}

func TestLoginUnknownEmail(t *testing.T) {
	issuer, _, _ := newTestIssuer(t)

	_, err := issuer.Login(context.Background(), "nobody@b.com", "Secret1!")
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestLoginBadPassword(t *testing.T) {
	issuer, _, _ := newTestIssuer(t)

	_, err := issuer.Login(context.Background(), "a@b.com", "not-the-password")
	if !errors.Is(err, ErrBadCredentials) {
		t.Fatalf("expected ErrBadCredentials, got %v", err)
	}
}

func TestRefreshRotates(t *testing.T) {
	issuer, _, reg := newTestIssuer(t)
	ctx := context.Background()

	pair, err := issuer.Login(ctx, "a@b.com", "Secret1!")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	next, err := issuer.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if next.AccessToken == "" || next.RefreshToken == "" {
		t.Fatalf("incomplete refreshed pair: %+v", next)
	}
	if next.RefreshToken == pair.RefreshToken {
		t.Fatal("rotation must issue a different refresh token")
	}

	if _, err := reg.Get(ctx, pair.RefreshToken); !errors.Is(err, registry.ErrNotFound) {
		t.Fatalf("rotated-out token still registered: %v", err)
	}
	if subject, err := reg.Get(ctx, next.RefreshToken); err != nil || subject != "a@b.com" {
		t.Fatalf("replacement not registered: %q, %v", subject, err)
	}
}

func TestRefreshIsSingleUse(t *testing.T) {
	issuer, _, _ := newTestIssuer(t)
	ctx := context.Background()

	pair, err := issuer.Login(ctx, "a@b.com", "Secret1!")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := issuer.Refresh(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("first refresh: %v", err)
	}

	// The token still carries a valid signature and unexpired claim; only the
	// registry knows it was consumed.
	_, err = issuer.Refresh(ctx, pair.RefreshToken)
	if !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected ErrTokenRevoked on replay, got %v", err)
	}
}

func TestRefreshForeignToken(t *testing.T) {
	issuer, _, reg := newTestIssuer(t)
	ctx := context.Background()

	foreignManager, err := token.NewManager(token.Config{
		Secret:     []byte("some-other-service-signing-key"),
		AccessTTL:  time.Minute,
		RefreshTTL: time.Hour,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	foreign, err := foreignManager.IssueRefresh("a@b.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := issuer.Refresh(ctx, foreign); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
	// The registry must be untouched by a token we never verified.
	if _, err := reg.Get(ctx, foreign); !errors.Is(err, registry.ErrNotFound) {
		t.Fatalf("foreign token leaked into registry: %v", err)
	}
}

func TestRefreshExpiredTokenRevokesEntry(t *testing.T) {
	issuer, _, reg := newTestIssuer(t)
	ctx := context.Background()

	shortLived, err := token.NewManager(token.Config{
		Secret:     []byte("issuer-test-secret-issuer-test"),
		AccessTTL:  time.Minute,
		RefreshTTL: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	refresh, err := shortLived.IssueRefresh("a@b.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if err := reg.Put(ctx, "a@b.com", refresh, time.Hour); err != nil {
		t.Fatalf("put: %v", err)
	}

	time.Sleep(5 * time.Millisecond)

	_, err = issuer.Refresh(ctx, refresh)
	if !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
	// Defensive cleanup removed the registry entry.
	if _, err := reg.Get(ctx, refresh); !errors.Is(err, registry.ErrNotFound) {
		t.Fatalf("expired token entry not cleaned up: %v", err)
	}
}

func TestLogoutIsIdempotent(t *testing.T) {
	issuer, _, _ := newTestIssuer(t)
	ctx := context.Background()

	pair, err := issuer.Login(ctx, "a@b.com", "Secret1!")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if err := issuer.Logout(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if err := issuer.Logout(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("second logout: %v", err)
	}
	if err := issuer.Logout(ctx, ""); err != nil {
		t.Fatalf("empty logout: %v", err)
	}
	if err := issuer.Logout(ctx, "never-issued"); err != nil {
		t.Fatalf("unknown-token logout: %v", err)
	}

	if _, err := issuer.Refresh(ctx, pair.RefreshToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected revoked token after logout, got %v", err)
	}
}

func TestConcurrentRefreshSingleWinner(t *testing.T) {
	issuer, _, _ := newTestIssuer(t)
	ctx := context.Background()

	pair, err := issuer.Login(ctx, "a@b.com", "Secret1!")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	const n = 16
	var wg sync.WaitGroup
	wg.Add(n)

	results := make(chan error, n)
	for range n {
		go func() {
			defer wg.Done()
			_, err := issuer.Refresh(ctx, pair.RefreshToken)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	success := 0
	revoked := 0
	for err := range results {
		switch {
		case err == nil:
			success++
		case errors.Is(err, ErrTokenRevoked):
			revoked++
		default:
			t.Fatalf("unexpected refresh error: %v", err)
		}
	}

	if success != 1 {
		t.Fatalf("expected exactly one refresh success, got %d", success)
	}
	if revoked != n-1 {
		t.Fatalf("expected %d revoked failures, got %d", n-1, revoked)
	}
}
