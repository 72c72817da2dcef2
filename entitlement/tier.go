package entitlement

// Tier identifies a subscription level. The zero value is not valid; use
// ParseTier to normalize untrusted input.
type Tier string

const (
	TierFree       Tier = "free"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

// Feature identifies a gated product capability.
type Feature string

const (
	FeatureUnlimitedGenerations Feature = "unlimited_generations"
	FeatureAPIAccess            Feature = "api_access"
	FeatureIntegrations         Feature = "integrations"
	FeatureAdvancedExports      Feature = "advanced_exports"
	FeaturePrioritySupport      Feature = "priority_support"
)

// tierFeatures is the single capability table for the whole application.
// Entitlement checks must go through CanUseFeature rather than comparing
// tier strings at call sites.
var tierFeatures = map[Tier]map[Feature]bool{
	TierFree: {},
	TierPro: {
		FeatureUnlimitedGenerations: true,
		FeatureAPIAccess:            true,
		FeatureIntegrations:         true,
		FeatureAdvancedExports:      true,
	},
	TierEnterprise: {
		FeatureUnlimitedGenerations: true,
		FeatureAPIAccess:            true,
		FeatureIntegrations:         true,
		FeatureAdvancedExports:      true,
		FeaturePrioritySupport:      true,
	},
}

// ParseTier maps a stored tier string to a known Tier. Unknown values fall
// back to the free tier so a bad row can never grant paid capabilities.
func ParseTier(s string) Tier {
	switch Tier(s) {
	case TierPro:
		return TierPro
	case TierEnterprise:
		return TierEnterprise
	default:
		return TierFree
	}
}

// CanUseFeature reports whether the given tier grants the feature.
func CanUseFeature(tier Tier, feature Feature) bool {
	return tierFeatures[tier][feature]
}

// Features returns the sorted-stable list of features granted to a tier.
func Features(tier Tier) []Feature {
	all := []Feature{
		FeatureUnlimitedGenerations,
		FeatureAPIAccess,
		FeatureIntegrations,
		FeatureAdvancedExports,
		FeaturePrioritySupport,
	}
	var granted []Feature
	for _, f := range all {
		if tierFeatures[tier][f] {
			granted = append(granted, f)
		}
	}
	return granted
}

// Unlimited reports whether the tier grants unlimited generations.
func (t Tier) Unlimited() bool {
	return CanUseFeature(t, FeatureUnlimitedGenerations)
}
