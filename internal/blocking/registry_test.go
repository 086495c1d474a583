package blocking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/HammerMeetNail/ficarchive-web/internal/models"
)

func TestRegistry_MountGetUnmount(t *testing.T) {
	r := NewRegistry(&mockAPI{}, "Blocked via profile")

	id, c, err := r.Mount("owner-a", reader, Options{})
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}
	if id == "" || c == nil {
		t.Fatal("expected id and control")
	}
	if c.opts.DefaultReason != "Blocked via profile" {
		t.Fatalf("expected registry default reason, got %q", c.opts.DefaultReason)
	}

	got, err := r.Get("owner-a", id)
	if err != nil || got != c {
		t.Fatalf("Get: %v", err)
	}
	if _, err := r.Get("owner-b", id); !errors.Is(err, ErrNotMounted) {
		t.Fatalf("expected other owners to be refused, got %v", err)
	}
	if err := r.Unmount("owner-b", id); !errors.Is(err, ErrNotMounted) {
		t.Fatalf("expected other owners to be refused, got %v", err)
	}
	if err := r.Unmount("owner-a", id); err != nil {
		t.Fatalf("Unmount: %v", err)
	}
	if _, err := r.Get("owner-a", id); !errors.Is(err, ErrNotMounted) {
		t.Fatalf("expected ErrNotMounted after unmount, got %v", err)
	}
	if r.Len() != 0 {
		t.Fatalf("expected empty registry, got %d", r.Len())
	}
}

func TestRegistry_MountValidation(t *testing.T) {
	r := NewRegistry(&mockAPI{}, "")
	if _, _, err := r.Mount("", reader, Options{}); err == nil {
		t.Fatal("expected error without owner")
	}
	if _, _, err := r.Mount("owner", models.BlockTarget{}, Options{}); !errors.Is(err, models.ErrMissingUsername) {
		t.Fatalf("expected ErrMissingUsername, got %v", err)
	}
}

func TestRegistry_RemountStartsFresh(t *testing.T) {
	r := NewRegistry(&mockAPI{}, "")
	id, c, _ := r.Mount("owner", reader, Options{})
	_, _ = c.Trigger(context.Background(), cred)
	_ = c.Select(context.Background(), cred, models.BlockContent, "")
	if c.State() != Blocked {
		t.Fatalf("expected Blocked, got %s", c.State())
	}
	_ = r.Unmount("owner", id)

	_, fresh, _ := r.Mount("owner", reader, Options{})
	if fresh.State() != Idle {
		t.Fatalf("remounted control should start Idle, got %s", fresh.State())
	}
}

func TestRegistry_Sweep(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	r := NewRegistry(&mockAPI{}, "")
	r.now = func() time.Time { return now }

	stale, _, _ := r.Mount("owner", reader, Options{})
	now = now.Add(20 * time.Minute)
	fresh, _, _ := r.Mount("owner", reader, Options{})
	now = now.Add(15 * time.Minute)

	if removed := r.Sweep(30 * time.Minute); removed != 1 {
		t.Fatalf("expected one control swept, got %d", removed)
	}
	if _, err := r.Get("owner", stale); !errors.Is(err, ErrNotMounted) {
		t.Fatal("expected stale control to be gone")
	}
	if _, err := r.Get("owner", fresh); err != nil {
		t.Fatalf("expected fresh control to survive: %v", err)
	}
}

func TestRegistry_SweepSkipsPending(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	started := make(chan struct{})
	release := make(chan struct{})
	api := &mockAPI{
		BlockFunc: func(ctx context.Context, token string, target models.BlockTarget, kind models.BlockKind, reason string) error {
			close(started)
			<-release
			return nil
		},
	}
	r := NewRegistry(api, "")
	r.now = func() time.Time { return now }

	_, c, _ := r.Mount("owner", reader, Options{})
	_, _ = c.Trigger(context.Background(), cred)
	done := make(chan error, 1)
	go func() { done <- c.Select(context.Background(), cred, models.BlockContent, "") }()
	<-started

	now = now.Add(time.Hour)
	if removed := r.Sweep(time.Minute); removed != 0 {
		t.Fatalf("pending control must not be swept, removed %d", removed)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Len() != 1 {
		t.Fatalf("expected control still mounted, got %d", r.Len())
	}
}
