package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-tracking/core"
)

func fixedNow(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func TestAdaptivePolicy_PassesUntilProviderPushesBack(t *testing.T) {
	ctx := context.Background()
	policy := NewAdaptivePolicy(NewMemoryStateStore())
	key := Key{ProviderID: core.ProviderSeventeenTrack, BucketKey: "register"}

	if err := policy.BeforeCall(ctx, key); err != nil {
		t.Fatalf("expected unknown bucket to pass, got %v", err)
	}
	if err := policy.AfterCall(ctx, key, ResponseMeta{StatusCode: 200}); err != nil {
		t.Fatalf("after clean call: %v", err)
	}
	if err := policy.BeforeCall(ctx, key); err != nil {
		t.Fatalf("expected clean bucket to pass, got %v", err)
	}
}

func TestAdaptivePolicy_ThrottlesOn429WithRetryAfter(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	policy := NewAdaptivePolicy(NewMemoryStateStore())
	policy.Now = fixedNow(now)
	key := Key{ProviderID: core.ProviderSeventeenTrack, BucketKey: "register"}

	err := policy.AfterCall(ctx, key, ResponseMeta{
		StatusCode: 429,
		Headers:    map[string]string{"Retry-After": "30"},
	})
	if err != nil {
		t.Fatalf("after throttled call: %v", err)
	}

	err = policy.BeforeCall(ctx, key)
	if err == nil {
		t.Fatalf("expected throttled bucket to reject")
	}
	if !core.IsRetryable(err) {
		t.Fatalf("throttling must stay retryable, got %v", err)
	}

	// Past the window the bucket opens again.
	policy.Now = fixedNow(now.Add(31 * time.Second))
	if err := policy.BeforeCall(ctx, key); err != nil {
		t.Fatalf("expected bucket to reopen, got %v", err)
	}
}

func TestAdaptivePolicy_ExhaustedQuotaBlocksUntilReset(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	policy := NewAdaptivePolicy(NewMemoryStateStore())
	policy.Now = fixedNow(now)
	key := Key{ProviderID: core.ProviderSeventeenTrack, BucketKey: "register"}

	err := policy.AfterCall(ctx, key, ResponseMeta{
		StatusCode: 200,
		Headers: map[string]string{
			"X-RateLimit-Limit":     "100",
			"X-RateLimit-Remaining": "0",
			"X-RateLimit-Reset":     "1787565660",
		},
	})
	if err != nil {
		t.Fatalf("after exhausted call: %v", err)
	}

	if err := policy.BeforeCall(ctx, key); err == nil {
		t.Fatalf("expected exhausted quota to block")
	}
}

func TestAdaptivePolicy_BackoffGrowsWithoutRetryHint(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	store := NewMemoryStateStore()
	policy := NewAdaptivePolicy(store)
	policy.Now = fixedNow(now)
	policy.InitialBackoff = time.Second
	policy.MaxBackoff = 4 * time.Second
	key := Key{ProviderID: core.ProviderSeventeenTrack, BucketKey: "register"}

	for attempt, want := range []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 4 * time.Second} {
		if err := policy.AfterCall(ctx, key, ResponseMeta{StatusCode: 429}); err != nil {
			t.Fatalf("attempt %d: %v", attempt+1, err)
		}
		state, err := store.Get(ctx, key)
		if err != nil {
			t.Fatalf("get state: %v", err)
		}
		if state.ThrottledUntil == nil {
			t.Fatalf("attempt %d: expected throttle window", attempt+1)
		}
		if got := state.ThrottledUntil.Sub(now); got != want {
			t.Fatalf("attempt %d: expected backoff %s, got %s", attempt+1, want, got)
		}
	}

	// A clean response resets the backoff ladder.
	if err := policy.AfterCall(ctx, key, ResponseMeta{StatusCode: 200}); err != nil {
		t.Fatalf("clean call: %v", err)
	}
	state, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if state.Attempts != 0 || state.ThrottledUntil != nil {
		t.Fatalf("expected reset state, got %+v", state)
	}
}

func TestAdaptivePolicy_ServerErrorIsNotThrottling(t *testing.T) {
	ctx := context.Background()
	policy := NewAdaptivePolicy(NewMemoryStateStore())
	key := Key{ProviderID: core.ProviderSeventeenTrack, BucketKey: "register"}

	if err := policy.AfterCall(ctx, key, ResponseMeta{StatusCode: 503}); err != nil {
		t.Fatalf("after server error: %v", err)
	}
	if err := policy.BeforeCall(ctx, key); err != nil {
		t.Fatalf("a 5xx must not close the bucket, got %v", err)
	}
}

func TestNormalizeKeyFoldsCaseAndSpace(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStateStore()
	policy := NewAdaptivePolicy(store)

	if err := policy.AfterCall(ctx, Key{ProviderID: " 17TRACK ", BucketKey: "Register"}, ResponseMeta{StatusCode: 429}); err != nil {
		t.Fatalf("after call: %v", err)
	}
	if err := policy.BeforeCall(ctx, Key{ProviderID: "17track", BucketKey: "register"}); err == nil {
		t.Fatalf("expected normalized keys to share one bucket")
	}
}
