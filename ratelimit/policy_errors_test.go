package ratelimit

import (
	"net/http"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-tracking/core"
)

func TestThrottledErrorEnvelope(t *testing.T) {
	err := ThrottledError{
		ProviderID: core.ProviderSeventeenTrack,
		BucketKey:  "register",
		RetryAfter: 30 * time.Second,
	}.ToTrackingError()

	if err.Category != goerrors.CategoryRateLimit {
		t.Fatalf("expected rate limit category, got %q", err.Category)
	}
	if err.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", err.Code)
	}
	if err.TextCode != core.TrackingErrorRateLimited {
		t.Fatalf("expected %q, got %q", core.TrackingErrorRateLimited, err.TextCode)
	}
	if err.Metadata["retry_after_ms"] != int64(30000) {
		t.Fatalf("expected retry hint metadata, got %v", err.Metadata)
	}
	if err.Metadata["provider_id"] != core.ProviderSeventeenTrack {
		t.Fatalf("expected provider metadata, got %v", err.Metadata)
	}
}

func TestThrottledErrorIsRetryable(t *testing.T) {
	err := ThrottledError{ProviderID: "17track", BucketKey: "register"}.ToTrackingError()
	if !core.IsRetryable(err) {
		t.Fatalf("throttled calls must be retried after the window")
	}
}
