package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRegistry(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedis(client, "rt"), mr
}

func TestPutGetDelete(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	if err := reg.Put(ctx, "a@b.com", "tok-1", time.Hour); err != nil {
		t.Fatalf("put: %v", err)
	}

	subject, err := reg.Get(ctx, "tok-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if subject != "a@b.com" {
		t.Fatalf("subject = %q, want %q", subject, "a@b.com")
	}

	if err := reg.Delete(ctx, "tok-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := reg.Get(ctx, "tok-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestDeleteAbsentIsNoop(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	if err := reg.Delete(ctx, "never-registered"); err != nil {
		t.Fatalf("delete absent: %v", err)
	}
	if err := reg.Delete(ctx, "never-registered"); err != nil {
		t.Fatalf("repeated delete absent: %v", err)
	}
}

func TestEntryEvictsAfterTTL(t *testing.T) {
	reg, mr := newTestRegistry(t)
	ctx := context.Background()

	if err := reg.Put(ctx, "a@b.com", "tok-ttl", time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}

	mr.FastForward(time.Minute + time.Second)

	if _, err := reg.Get(ctx, "tok-ttl"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected eviction after TTL, got %v", err)
	}
}

func TestRotateReplacesEntry(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	if err := reg.Put(ctx, "a@b.com", "old", time.Hour); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := reg.Rotate(ctx, "old", "a@b.com", "new", time.Hour); err != nil {
		t.Fatalf("rotate: %v", err)
	}

	if _, err := reg.Get(ctx, "old"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("old entry must be gone, got %v", err)
	}
	subject, err := reg.Get(ctx, "new")
	if err != nil {
		t.Fatalf("get new: %v", err)
	}
	if subject != "a@b.com" {
		t.Fatalf("rotated subject = %q, want %q", subject, "a@b.com")
	}
}

func TestRotateMissingEntry(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	err := reg.Rotate(ctx, "ghost", "a@b.com", "new", time.Hour)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := reg.Get(ctx, "new"); !errors.Is(err, ErrNotFound) {
		t.Fatal("failed rotate must not register the replacement")
	}
}

func TestRotateSubjectMismatch(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	if err := reg.Put(ctx, "owner@b.com", "tok", time.Hour); err != nil {
		t.Fatalf("put: %v", err)
	}

	err := reg.Rotate(ctx, "tok", "attacker@b.com", "new", time.Hour)
	if !errors.Is(err, ErrSubjectMismatch) {
		t.Fatalf("expected ErrSubjectMismatch, got %v", err)
	}

	// The original entry survives an ownership mismatch untouched.
	subject, err := reg.Get(ctx, "tok")
	if err != nil || subject != "owner@b.com" {
		t.Fatalf("entry damaged by failed rotate: %q, %v", subject, err)
	}
	if _, err := reg.Get(ctx, "new"); !errors.Is(err, ErrNotFound) {
		t.Fatal("mismatched rotate must not register the replacement")
	}
}

func TestRotateIsSingleUse(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	if err := reg.Put(ctx, "a@b.com", "once", time.Hour); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := reg.Rotate(ctx, "once", "a@b.com", "next-1", time.Hour); err != nil {
		t.Fatalf("first rotate: %v", err)
	}

	err := reg.Rotate(ctx, "once", "a@b.com", "next-2", time.Hour)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("replayed rotate must fail with ErrNotFound, got %v", err)
	}
}
