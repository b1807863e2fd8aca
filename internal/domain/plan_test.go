package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLimitsFor_Catalog(t *testing.T) {
	tests := []struct {
		name  string
		tier  PlanTier
		chars int64
		mins  int64
		bytes int64
	}{
		{"free tier", PlanTierFree, 2_000_000, 100, 500 * 1024 * 1024},
		{"premium tier", PlanTierPremium, 5_000_000, 5_000, 5_000 * 1024 * 1024},
		{"pro tier", PlanTierPro, Unlimited, Unlimited, 20_000 * 1024 * 1024},
		{"business tier", PlanTierBusiness, Unlimited, Unlimited, 100_000 * 1024 * 1024},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limits := LimitsFor(tt.tier)
			assert.Equal(t, tt.chars, limits.TranslationChars)
			assert.Equal(t, tt.mins, limits.CallMinutes)
			assert.Equal(t, tt.bytes, limits.StorageBytes)
		})
	}
}

func TestLimitsFor_UnknownTierFallsBackToFree(t *testing.T) {
	free := LimitsFor(PlanTierFree)

	assert.Equal(t, free, LimitsFor(PlanTier("Platinum")))
	assert.Equal(t, free, LimitsFor(PlanTier("")))
}

func TestMeterFor_MapsActionsToCounters(t *testing.T) {
	usage := UserUsage{
		TranslationChars: 11,
		CallMinutes:      22,
		StorageBytes:     33,
	}
	limits := PlanLimits{
		TranslationChars: 100,
		CallMinutes:      200,
		StorageBytes:     300,
	}

	tests := []struct {
		name        string
		action      QuotaAction
		wantCounter Counter
		wantCurrent int64
		wantLimit   int64
	}{
		{"translation", ActionTranslation, CounterTranslationChars, 11, 100},
		{"call", ActionCall, CounterCallMinutes, 22, 200},
		{"storage", ActionStorage, CounterStorageBytes, 33, 300},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			counter, current, limit, err := MeterFor(tt.action)
			assert.NoError(t, err)
			assert.Equal(t, tt.wantCounter, counter)
			assert.Equal(t, tt.wantCurrent, current(usage))
			assert.Equal(t, tt.wantLimit, limit(limits))
		})
	}
}

func TestMeterFor_UnknownAction(t *testing.T) {
	_, _, _, err := MeterFor(QuotaAction("video"))

	assert.Error(t, err)
	assert.Equal(t, EINVALID, ErrorCode(err))
}

func TestQuotaExceeded_MessageNamesTheAction(t *testing.T) {
	err := QuotaExceeded("quota.check", ActionTranslation)

	assert.Equal(t, EPAYMENT, ErrorCode(err))
	assert.Equal(t, "You have reached your translation limit. Please upgrade your plan.", ErrorMessage(err))
}
