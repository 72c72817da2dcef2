package entitlement

import "time"

// Granularity selects the quota reset cycle for an actor class.
type Granularity string

const (
	// Daily is the reset cycle for anonymous actors.
	Daily Granularity = "daily"
	// Monthly is the reset cycle for registered actors.
	Monthly Granularity = "monthly"
)

// PeriodKey returns the quota period key for the given instant: "2006-01-02"
// for Daily, "2006-01" for Monthly. Keys are computed in UTC so that counters
// roll over at the same wall-clock moment regardless of server timezone.
func PeriodKey(now time.Time, g Granularity) string {
	now = now.UTC()
	if g == Daily {
		return now.Format("2006-01-02")
	}
	return now.Format("2006-01")
}

// PeriodEnd returns the instant at which the period containing now rolls
// over, i.e. the earliest time a fresh quota becomes available. Used to
// populate reset times on quota-exceeded responses.
func PeriodEnd(now time.Time, g Granularity) time.Time {
	now = now.UTC()
	if g == Daily {
		return time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, time.UTC)
	}
	return time.Date(now.Year(), now.Month()+1, 1, 0, 0, 0, 0, time.UTC)
}

// GranularityFor returns the reset cycle for an actor class.
func GranularityFor(anonymous bool) Granularity {
	if anonymous {
		return Daily
	}
	return Monthly
}
