package entitlement

// Source records which rule produced an entitlement decision.
type Source string

const (
	SourcePro        Source = "pro"
	SourceTrial      Source = "trial"
	SourceRegistered Source = "registered"
	SourceAnonymous  Source = "anonymous"
)

// Decision is the resolved permission for one generation attempt. It is
// derived state and is never persisted. When Unlimited is true the Remaining
// and Limit fields are meaningless and must be ignored by callers.
type Decision struct {
	Allowed   bool
	Unlimited bool
	Remaining int
	Limit     int
	Source    Source
}

// Resolve combines subscription tier, trial state and the current period
// counter into a Decision. It is a pure function of its inputs.
//
// Precedence, highest first: an unlimited tier wins, then an active trial,
// then the numeric quota comparison. The counter is deliberately not
// consulted once tier or trial grants unlimited access — a user upgrading
// mid-period sees unlimited immediately, however large the counter got.
func Resolve(tier Tier, trialActive bool, anonymous bool, periodCount, limit int) Decision {
	if tier.Unlimited() {
		return Decision{Allowed: true, Unlimited: true, Source: SourcePro}
	}
	if trialActive {
		return Decision{Allowed: true, Unlimited: true, Source: SourceTrial}
	}

	source := SourceRegistered
	if anonymous {
		source = SourceAnonymous
	}

	remaining := limit - periodCount
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   periodCount < limit,
		Remaining: remaining,
		Limit:     limit,
		Source:    source,
	}
}
