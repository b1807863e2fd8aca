// Package domain contains core business types and interfaces.
//
// This file defines the subscription plan catalog: tiers and the
// per-resource limits each tier grants for a billing period.
package domain

import "math"

// PlanTier identifies a subscription plan.
type PlanTier string

const (
	PlanTierFree     PlanTier = "Free"
	PlanTierPremium  PlanTier = "Premium"
	PlanTierPro      PlanTier = "Pro"
	PlanTierBusiness PlanTier = "Business"
)

// Unlimited is the sentinel limit for tiers without a cap on a resource.
// Using the max representable value keeps comparison arithmetic uniform;
// there is no "unlimited" boolean anywhere in the engine.
const Unlimited int64 = math.MaxInt64

// PlanLimits defines the per-billing-period ceilings for a tier.
type PlanLimits struct {
	TranslationChars int64 // max translatable characters
	CallMinutes      int64 // max call minutes
	StorageBytes     int64 // max cumulative stored bytes
}

// planCatalog maps subscription tiers to their limits.
// Values mirror the published pricing table.
var planCatalog = map[PlanTier]PlanLimits{
	PlanTierFree: {
		TranslationChars: 2_000_000,
		CallMinutes:      100,
		StorageBytes:     500 * 1024 * 1024,
	},
	PlanTierPremium: {
		TranslationChars: 5_000_000,
		CallMinutes:      5_000,
		StorageBytes:     5_000 * 1024 * 1024,
	},
	PlanTierPro: {
		TranslationChars: Unlimited,
		CallMinutes:      Unlimited,
		StorageBytes:     20_000 * 1024 * 1024,
	},
	PlanTierBusiness: {
		TranslationChars: Unlimited,
		CallMinutes:      Unlimited,
		StorageBytes:     100_000 * 1024 * 1024,
	},
}

// LimitsFor returns the limits for a tier, defaulting to the free tier
// for unknown values so a corrupt subscription row can never grant more
// than the free allowance.
func LimitsFor(tier PlanTier) PlanLimits {
	if limits, ok := planCatalog[tier]; ok {
		return limits
	}
	return planCatalog[PlanTierFree]
}
