package entitlement

import (
	"math"
	"time"
)

// DefaultTrialDuration is the standard trial window.
const DefaultTrialDuration = 14 * 24 * time.Hour

// TrialStanding is the derived trial state for a user at an instant.
type TrialStanding struct {
	IsEligible    bool       `json:"is_eligible"`
	IsActive      bool       `json:"is_active"`
	DaysRemaining int        `json:"days_remaining"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

// TrialInfo derives the trial standing from the persisted ledger fields.
// Pure function of (used, startedAt, now, duration).
//
// A trial is eligible only while never used; expiry is automatic once the
// window elapses, with no explicit transition. DaysRemaining rounds up, so a
// trial one second into its last day still reports a full day remaining.
func TrialInfo(used bool, startedAt *time.Time, now time.Time, duration time.Duration) TrialStanding {
	standing := TrialStanding{IsEligible: !used}
	if !used || startedAt == nil {
		return standing
	}

	expiry := startedAt.Add(duration)
	if !now.Before(expiry) {
		return standing
	}

	standing.IsActive = true
	standing.DaysRemaining = int(math.Ceil(expiry.Sub(now).Hours() / 24))
	standing.ExpiresAt = &expiry
	return standing
}
