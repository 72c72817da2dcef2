package entitlement

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve_ProTierIsUnlimited(t *testing.T) {
	dec := Resolve(TierPro, false, false, 3, 10)

	assert.True(t, dec.Allowed)
	assert.True(t, dec.Unlimited)
	assert.Equal(t, SourcePro, dec.Source)
}

func TestResolve_ProTierIgnoresHugeCounter(t *testing.T) {
	// Upgrading mid-period must short-circuit before the counter is
	// considered, no matter how much was consumed on the free tier.
	dec := Resolve(TierPro, false, false, 999999, 10)

	assert.True(t, dec.Allowed)
	assert.True(t, dec.Unlimited)
}

func TestResolve_EnterpriseTierIsUnlimited(t *testing.T) {
	dec := Resolve(TierEnterprise, false, false, 42, 10)

	assert.True(t, dec.Allowed)
	assert.True(t, dec.Unlimited)
	assert.Equal(t, SourcePro, dec.Source)
}

func TestResolve_ActiveTrialIsUnlimited(t *testing.T) {
	dec := Resolve(TierFree, true, false, 999999, 10)

	assert.True(t, dec.Allowed)
	assert.True(t, dec.Unlimited)
	assert.Equal(t, SourceTrial, dec.Source)
}

func TestResolve_TierOutranksTrial(t *testing.T) {
	dec := Resolve(TierPro, true, false, 0, 10)

	assert.Equal(t, SourcePro, dec.Source)
}

func TestResolve_RegisteredFreeUnderLimit(t *testing.T) {
	dec := Resolve(TierFree, false, false, 4, 10)

	assert.True(t, dec.Allowed)
	assert.False(t, dec.Unlimited)
	assert.Equal(t, 6, dec.Remaining)
	assert.Equal(t, 10, dec.Limit)
	assert.Equal(t, SourceRegistered, dec.Source)
}

func TestResolve_RegisteredFreeAtLimit(t *testing.T) {
	dec := Resolve(TierFree, false, false, 10, 10)

	assert.False(t, dec.Allowed)
	assert.Equal(t, 0, dec.Remaining)
}

func TestResolve_AnonymousAtLimit(t *testing.T) {
	dec := Resolve(TierFree, false, true, 5, 5)

	assert.False(t, dec.Allowed)
	assert.Equal(t, SourceAnonymous, dec.Source)
}

func TestResolve_RemainingNeverNegative(t *testing.T) {
	// A counter past the limit (concurrent double-submit race) must not
	// produce a negative remaining value.
	dec := Resolve(TierFree, false, true, 7, 5)

	assert.False(t, dec.Allowed)
	assert.Equal(t, 0, dec.Remaining)
}
