package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mwilcek/fluentbridge/internal/auth"
	"github.com/mwilcek/fluentbridge/internal/domain"
	"github.com/mwilcek/fluentbridge/internal/service"
	"github.com/mwilcek/fluentbridge/internal/store"
)

func TestUsageShow_ReportsSummary(t *testing.T) {
	mem := store.NewMemoryStore()
	userID := uuid.New()
	mem.Provision(userID, domain.PlanTierFree)
	mem.SetUsage(userID, domain.UserUsage{
		TranslationChars: 1_000_000, // 50% of the Free 2M limit
		CallMinutes:      90,        // 90% of the Free 100 limit
		LastResetDate:    time.Now(),
	})

	h := NewUsageHandler(service.NewQuotaService(mem, testLogger()), testLogger())

	req := httptest.NewRequest("GET", "/api/usage", nil)
	req = req.WithContext(auth.SetUserID(req.Context(), userID))
	rec := httptest.NewRecorder()
	h.Show(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}

	var summary domain.UsageSummary
	if err := json.NewDecoder(rec.Body).Decode(&summary); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if summary.Tier != domain.PlanTierFree {
		t.Errorf("tier = %q, want Free", summary.Tier)
	}
	if summary.Translation.Percentage != 50.0 {
		t.Errorf("translation percentage = %v, want 50.0", summary.Translation.Percentage)
	}
	if summary.Calls.Status != domain.UsageWarning {
		t.Errorf("calls status = %q, want warning", summary.Calls.Status)
	}
	if summary.Overall != domain.UsageWarning {
		t.Errorf("overall = %q, want warning", summary.Overall)
	}
}

func TestUsageShow_Unauthenticated(t *testing.T) {
	mem := store.NewMemoryStore()
	h := NewUsageHandler(service.NewQuotaService(mem, testLogger()), testLogger())

	rec := httptest.NewRecorder()
	h.Show(rec, httptest.NewRequest("GET", "/api/usage", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestUsageShow_UnprovisionedUserIs404(t *testing.T) {
	mem := store.NewMemoryStore()
	h := NewUsageHandler(service.NewQuotaService(mem, testLogger()), testLogger())

	req := httptest.NewRequest("GET", "/api/usage", nil)
	req = req.WithContext(auth.SetUserID(req.Context(), uuid.New()))
	rec := httptest.NewRecorder()
	h.Show(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
