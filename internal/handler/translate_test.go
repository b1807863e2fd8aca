package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/mwilcek/fluentbridge/internal/auth"
	"github.com/mwilcek/fluentbridge/internal/domain"
	"github.com/mwilcek/fluentbridge/internal/service"
	"github.com/mwilcek/fluentbridge/internal/store"
	"github.com/mwilcek/fluentbridge/internal/translate"
	translatemock "github.com/mwilcek/fluentbridge/internal/translate/mock"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func translateFixture(t *testing.T) (*TranslateHandler, *translatemock.Provider, *store.MemoryStore, uuid.UUID) {
	t.Helper()
	mem := store.NewMemoryStore()
	userID := uuid.New()
	mem.Provision(userID, domain.PlanTierFree)

	provider := translatemock.New(testLogger())
	h := NewTranslateHandler(provider, service.NewQuotaService(mem, testLogger()), testLogger())
	return h, provider, mem, userID
}

func translateRequest(t *testing.T, userID uuid.UUID, body interface{}) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if s, ok := body.(string); ok {
		buf.WriteString(s)
	} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
		t.Fatalf("encode body: %v", err)
	}
	req := httptest.NewRequest("POST", "/api/translate", &buf)
	req.Header.Set("Content-Type", "application/json")
	return req.WithContext(auth.SetUserID(req.Context(), userID))
}

// =============================================================================
// POST /api/translate
// =============================================================================

func TestTranslate_Success(t *testing.T) {
	h, _, mem, userID := translateFixture(t)

	req := translateRequest(t, userID, TranslateRequest{Text: "hello world", Source: "en", Target: "es"})
	rec := httptest.NewRecorder()
	h.Translate(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}

	var resp TranslateResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if resp.TranslatedText != "hello world" {
		t.Errorf("translatedText = %q (mock echoes input)", resp.TranslatedText)
	}
	if resp.CharsProcessed != 11 {
		t.Errorf("charsProcessed = %d, want 11", resp.CharsProcessed)
	}

	// The processed characters must be booked.
	usage, _, err := mem.UsageAndTier(context.Background(), userID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if usage.TranslationChars != 11 {
		t.Errorf("booked chars = %d, want 11", usage.TranslationChars)
	}
}

func TestTranslate_CountsRunesNotBytes(t *testing.T) {
	h, _, mem, userID := translateFixture(t)

	// 4 runes, 12 UTF-8 bytes
	req := translateRequest(t, userID, TranslateRequest{Text: "日本語で", Source: "ja", Target: "en"})
	rec := httptest.NewRecorder()
	h.Translate(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	usage, _, _ := mem.UsageAndTier(context.Background(), userID)
	if usage.TranslationChars != 4 {
		t.Errorf("booked chars = %d, want 4 (runes, not bytes)", usage.TranslationChars)
	}
}

func TestTranslate_RejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name string
		body interface{}
	}{
		{"malformed json", `{"text": `},
		{"empty text", TranslateRequest{Text: "", Source: "en", Target: "es"}},
		{"bad source tag", TranslateRequest{Text: "hi", Source: "not a tag!", Target: "es"}},
		{"bad target tag", TranslateRequest{Text: "hi", Source: "en", Target: "!!"}},
		{"identical source and target", TranslateRequest{Text: "hi", Source: "en", Target: "en"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, provider, _, userID := translateFixture(t)

			rec := httptest.NewRecorder()
			h.Translate(rec, translateRequest(t, userID, tt.body))

			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			if provider.TranslateCalls != 0 {
				t.Error("provider must not be called for invalid input")
			}
		})
	}
}

func TestTranslate_ProviderErrorsMapToStatuses(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"unsupported pair", translate.ErrUnsupportedPair, http.StatusBadRequest},
		{"provider down", translate.ErrProviderUnavailable, http.StatusServiceUnavailable},
		{"unknown failure", io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, provider, mem, userID := translateFixture(t)
			provider.TranslateError = tt.err

			rec := httptest.NewRecorder()
			h.Translate(rec, translateRequest(t, userID, TranslateRequest{Text: "hi", Source: "en", Target: "es"}))

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}

			// Failed translations bill nothing.
			usage, _, _ := mem.UsageAndTier(context.Background(), userID)
			if usage.TranslationChars != 0 {
				t.Errorf("booked chars = %d, want 0 on failure", usage.TranslationChars)
			}
		})
	}
}

func TestTranslate_Unauthenticated(t *testing.T) {
	h, _, _, _ := translateFixture(t)

	var buf bytes.Buffer
	_ = json.NewEncoder(&buf).Encode(TranslateRequest{Text: "hi", Source: "en", Target: "es"})
	req := httptest.NewRequest("POST", "/api/translate", &buf)

	rec := httptest.NewRecorder()
	h.Translate(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

// =============================================================================
// TranslateAmount
// =============================================================================

func TestTranslateAmount_SizesByRuneCount(t *testing.T) {
	req := httptest.NewRequest("POST", "/api/translate",
		strings.NewReader(`{"text":"héllo","source":"en","target":"fr"}`))

	if got := TranslateAmount(req); got != 5 {
		t.Errorf("amount = %d, want 5", got)
	}
}

func TestTranslateAmount_RestoresBody(t *testing.T) {
	req := httptest.NewRequest("POST", "/api/translate",
		strings.NewReader(`{"text":"hello","source":"en","target":"fr"}`))

	_ = TranslateAmount(req)

	body, err := io.ReadAll(req.Body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var decoded TranslateRequest
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("body not restored as valid JSON: %v", err)
	}
	if decoded.Text != "hello" {
		t.Errorf("restored text = %q, want %q", decoded.Text, "hello")
	}
}

func TestTranslateAmount_MalformedBodySizesToOne(t *testing.T) {
	req := httptest.NewRequest("POST", "/api/translate", strings.NewReader(`not json`))

	if got := TranslateAmount(req); got != 1 {
		t.Errorf("amount = %d, want 1", got)
	}
}
