package redis

import (
	"context"
	"testing"
	"time"
)

func TestRateLimitStore_RecordAndCount(t *testing.T) {
	client, _ := newTestRedis(t)
	store := NewRateLimitStore(client, SlidingWindowConfig{TTL: time.Hour})

	ctx := context.Background()
	now := time.Now().UTC()

	for i := 0; i < 3; i++ {
		if err := store.RecordAttempt(ctx, "login:awa@example.com", now.Add(time.Duration(i)*time.Second)); err != nil {
			t.Fatalf("RecordAttempt returned error: %v", err)
		}
	}

	count, err := store.CountAttempts(ctx, "login:awa@example.com", time.Minute, now.Add(3*time.Second))
	if err != nil {
		t.Fatalf("CountAttempts returned error: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 attempts in the window, got %d", count)
	}

	count, err = store.CountAttempts(ctx, "login:other@example.com", time.Minute, now)
	if err != nil {
		t.Fatalf("CountAttempts returned error: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no attempts for a different identifier, got %d", count)
	}
}

func TestRateLimitStore_WindowExcludesOldAttempts(t *testing.T) {
	client, _ := newTestRedis(t)
	store := NewRateLimitStore(client, SlidingWindowConfig{})

	ctx := context.Background()
	now := time.Now().UTC()

	if err := store.RecordAttempt(ctx, "otp:+221771234567", now.Add(-10*time.Minute)); err != nil {
		t.Fatalf("RecordAttempt returned error: %v", err)
	}
	if err := store.RecordAttempt(ctx, "otp:+221771234567", now); err != nil {
		t.Fatalf("RecordAttempt returned error: %v", err)
	}

	count, err := store.CountAttempts(ctx, "otp:+221771234567", 5*time.Minute, now)
	if err != nil {
		t.Fatalf("CountAttempts returned error: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected only the recent attempt inside the window, got %d", count)
	}
}

func TestRateLimitStore_TrimWindow(t *testing.T) {
	client, _ := newTestRedis(t)
	store := NewRateLimitStore(client, SlidingWindowConfig{})

	ctx := context.Background()
	now := time.Now().UTC()

	if err := store.RecordAttempt(ctx, "login:awa@example.com", now.Add(-10*time.Minute)); err != nil {
		t.Fatalf("RecordAttempt returned error: %v", err)
	}
	if err := store.RecordAttempt(ctx, "login:awa@example.com", now); err != nil {
		t.Fatalf("RecordAttempt returned error: %v", err)
	}

	if err := store.TrimWindow(ctx, "login:awa@example.com", 5*time.Minute, now); err != nil {
		t.Fatalf("TrimWindow returned error: %v", err)
	}

	count, err := store.CountAttempts(ctx, "login:awa@example.com", time.Hour, now)
	if err != nil {
		t.Fatalf("CountAttempts returned error: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected trimmed set to hold one attempt, got %d", count)
	}
}

func TestRateLimitStore_OldestAttempt(t *testing.T) {
	client, _ := newTestRedis(t)
	store := NewRateLimitStore(client, SlidingWindowConfig{})

	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	_, found, err := store.OldestAttempt(ctx, "login:awa@example.com", time.Minute, now)
	if err != nil {
		t.Fatalf("OldestAttempt returned error: %v", err)
	}
	if found {
		t.Fatalf("expected no attempt before recording")
	}

	first := now.Add(-30 * time.Second)
	if err := store.RecordAttempt(ctx, "login:awa@example.com", first); err != nil {
		t.Fatalf("RecordAttempt returned error: %v", err)
	}
	if err := store.RecordAttempt(ctx, "login:awa@example.com", now); err != nil {
		t.Fatalf("RecordAttempt returned error: %v", err)
	}

	oldest, found, err := store.OldestAttempt(ctx, "login:awa@example.com", time.Minute, now)
	if err != nil {
		t.Fatalf("OldestAttempt returned error: %v", err)
	}
	if !found {
		t.Fatalf("expected an attempt inside the window")
	}
	if !oldest.Equal(first) {
		t.Fatalf("expected oldest %v, got %v", first, oldest)
	}
}
