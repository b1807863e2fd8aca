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

func callFixture(t *testing.T) (*CallHandler, *service.CallController, uuid.UUID) {
	t.Helper()
	mem := store.NewMemoryStore()
	userID := uuid.New()
	mem.Provision(userID, domain.PlanTierFree)

	// A long tick keeps the meter loop idle for the duration of the test.
	calls := service.NewCallController(service.NewQuotaService(mem, testLogger()), time.Hour, testLogger())
	t.Cleanup(calls.Shutdown)

	h := NewCallHandler(calls, testLogger())
	return h, calls, userID
}

func callRoutes(h *CallHandler) *http.ServeMux {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux, func(next http.Handler) http.Handler { return next })
	return mux
}

func asUser(req *http.Request, userID uuid.UUID) *http.Request {
	return req.WithContext(auth.SetUserID(req.Context(), userID))
}

func TestCallStart_CreatesSession(t *testing.T) {
	h, calls, userID := callFixture(t)
	mux := callRoutes(h)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, asUser(httptest.NewRequest("POST", "/api/calls", nil), userID))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201; body: %s", rec.Code, rec.Body.String())
	}

	var resp CallResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if resp.State != string(service.CallStateActive) {
		t.Errorf("state = %q, want active", resp.State)
	}
	if _, ok := calls.Session(resp.SessionID); !ok {
		t.Error("controller does not know the returned session ID")
	}
}

func TestCallStart_DeniedWhenExhausted(t *testing.T) {
	mem := store.NewMemoryStore()
	userID := uuid.New()
	mem.Provision(userID, domain.PlanTierFree)
	mem.SetUsage(userID, domain.UserUsage{
		CallMinutes:   domain.LimitsFor(domain.PlanTierFree).CallMinutes,
		LastResetDate: time.Now(),
	})

	calls := service.NewCallController(service.NewQuotaService(mem, testLogger()), time.Hour, testLogger())
	t.Cleanup(calls.Shutdown)
	mux := callRoutes(NewCallHandler(calls, testLogger()))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, asUser(httptest.NewRequest("POST", "/api/calls", nil), userID))

	if rec.Code != http.StatusPaymentRequired {
		t.Errorf("status = %d, want 402; body: %s", rec.Code, rec.Body.String())
	}
}

func TestCallShow_ReportsState(t *testing.T) {
	h, calls, userID := callFixture(t)
	mux := callRoutes(h)

	session, err := calls.Start(httptest.NewRequest("POST", "/", nil).Context(), userID, nil)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, asUser(httptest.NewRequest("GET", "/api/calls/"+session.ID.String(), nil), userID))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp CallResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if resp.SessionID != session.ID {
		t.Errorf("sessionId = %s, want %s", resp.SessionID, session.ID)
	}
}

func TestCallShow_OtherUsersSessionIsNotFound(t *testing.T) {
	h, calls, userID := callFixture(t)
	mux := callRoutes(h)

	session, err := calls.Start(httptest.NewRequest("POST", "/", nil).Context(), userID, nil)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, asUser(httptest.NewRequest("GET", "/api/calls/"+session.ID.String(), nil), uuid.New()))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestCallShow_MalformedID(t *testing.T) {
	h, _, userID := callFixture(t)
	mux := callRoutes(h)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, asUser(httptest.NewRequest("GET", "/api/calls/not-a-uuid", nil), userID))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestCallHangup_EndsSession(t *testing.T) {
	h, calls, userID := callFixture(t)
	mux := callRoutes(h)

	session, err := calls.Start(httptest.NewRequest("POST", "/", nil).Context(), userID, nil)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, asUser(httptest.NewRequest("DELETE", "/api/calls/"+session.ID.String(), nil), userID))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}
	if state := session.State(); state != service.CallStateTerminated {
		t.Errorf("state after hangup = %q, want terminated", state)
	}
}

func TestCallHangup_UnknownSession(t *testing.T) {
	h, _, userID := callFixture(t)
	mux := callRoutes(h)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, asUser(httptest.NewRequest("DELETE", "/api/calls/"+uuid.NewString(), nil), userID))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
