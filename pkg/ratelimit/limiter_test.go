package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestTokenBucket(t *testing.T) {
	tb := NewTokenBucket(3, time.Hour)

	for i := 0; i < 3; i++ {
		if !tb.Allow() {
			t.Fatalf("request %d should be allowed", i)
		}
	}
	if tb.Allow() {
		t.Fatal("request beyond capacity should be denied")
	}

	tb.Reset()
	if !tb.Allow() {
		t.Fatal("request after reset should be allowed")
	}
}

func TestTokenBucketRefill(t *testing.T) {
	tb := NewTokenBucket(1, 20*time.Millisecond)

	if !tb.Allow() {
		t.Fatal("first request should be allowed")
	}
	if tb.Allow() {
		t.Fatal("second immediate request should be denied")
	}

	time.Sleep(30 * time.Millisecond)
	if !tb.Allow() {
		t.Fatal("request after refill period should be allowed")
	}
}

func TestTokenBucketWaitCancellation(t *testing.T) {
	tb := NewTokenBucket(1, time.Hour)
	tb.Allow()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := tb.Wait(ctx); err == nil {
		t.Fatal("wait on an empty bucket should fail when the context ends")
	}
}

func TestSlidingWindow(t *testing.T) {
	sw := NewSlidingWindow(2, 50*time.Millisecond)

	if !sw.Allow() || !sw.Allow() {
		t.Fatal("requests within limit should be allowed")
	}
	if sw.Allow() {
		t.Fatal("request beyond window limit should be denied")
	}

	time.Sleep(60 * time.Millisecond)
	if !sw.Allow() {
		t.Fatal("request after the window slid should be allowed")
	}
}

func TestSlidingWindowWait(t *testing.T) {
	sw := NewSlidingWindow(1, 20*time.Millisecond)
	sw.Allow()

	start := time.Now()
	if err := sw.Wait(context.Background()); err != nil {
		t.Fatalf("wait failed: %v", err)
	}
	if time.Since(start) < 10*time.Millisecond {
		t.Fatal("wait should have blocked until the window slid")
	}
}

func TestSlidingWindowReset(t *testing.T) {
	sw := NewSlidingWindow(1, time.Hour)
	sw.Allow()

	if sw.Allow() {
		t.Fatal("request beyond limit should be denied")
	}
	sw.Reset()
	if !sw.Allow() {
		t.Fatal("request after reset should be allowed")
	}
}
