package services

import (
	"errors"
	"fmt"
	"time"
)

// ErrUpstreamFailure marks a failed or timed-out LLM call. The request is
// retryable by the caller; this service performs no automatic retries, does
// not charge quota for it, and never caches it.
var ErrUpstreamFailure = errors.New("upstream generation failed")

// QuotaExceededError is the billing-limit rejection. Not retryable until the
// quota period resets at ResetTime.
type QuotaExceededError struct {
	Limit     int
	ResetTime time.Time
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("generation quota of %d exhausted, resets at %s", e.Limit, e.ResetTime.Format(time.RFC3339))
}

// RateLimitedError is the abuse-guard rejection, retryable after ResetTime.
// Kept distinct from QuotaExceededError: a paying user hitting a transient
// burst limit must not be told their plan is exhausted.
type RateLimitedError struct {
	Limit     int
	ResetTime time.Time
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limit of %d requests per window exceeded, retry after %s", e.Limit, e.ResetTime.Format(time.RFC3339))
}
