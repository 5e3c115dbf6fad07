package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/resellhub/backend/internal/ledger"
	"github.com/resellhub/backend/internal/middleware"
)

// ---------------------------------------------------------------------------
// Stub ledger. Each method records its input and returns a canned response.
// ---------------------------------------------------------------------------

type stubLedger struct {
	err error

	addParams    *ledger.AddCreditsParams
	deductParams *ledger.DeductCreditsParams
	adjustDelta  decimal.Decimal
	adjustActor  string
	filters      *ledger.MovementFilters

	lowBalance []ledger.LowBalancePlatform
}

func (s *stubLedger) result(platformID uuid.UUID, kind string) *ledger.OperationResult {
	return &ledger.OperationResult{
		PlatformID:      platformID,
		PlatformName:    "supplier-a",
		MovementID:      uuid.New(),
		MovementType:    kind,
		PreviousBalance: decimal.NewFromInt(100),
		NewBalance:      decimal.NewFromInt(150),
	}
}

func (s *stubLedger) AddCredits(_ context.Context, p ledger.AddCreditsParams) (*ledger.OperationResult, error) {
	s.addParams = &p
	if s.err != nil {
		return nil, s.err
	}
	return s.result(p.PlatformID, "credit_added"), nil
}

func (s *stubLedger) DeductCredits(_ context.Context, p ledger.DeductCreditsParams) (*ledger.DeductResult, error) {
	s.deductParams = &p
	if s.err != nil {
		return nil, s.err
	}
	return &ledger.DeductResult{OperationResult: *s.result(p.PlatformID, "credit_deducted"), IsLowBalance: true}, nil
}

func (s *stubLedger) AdjustBalance(_ context.Context, platformID uuid.UUID, delta decimal.Decimal, reason, actor string) (*ledger.OperationResult, error) {
	s.adjustDelta = delta
	s.adjustActor = actor
	if s.err != nil {
		return nil, s.err
	}
	return s.result(platformID, "adjustment"), nil
}

func (s *stubLedger) GetBalance(_ context.Context, platformID uuid.UUID) (*ledger.BalanceInfo, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &ledger.BalanceInfo{
		PlatformID:    platformID,
		PlatformName:  "supplier-a",
		Balance:       decimal.NewFromInt(150),
		Threshold:     decimal.NewFromInt(100),
		BalanceStatus: "normal",
	}, nil
}

func (s *stubLedger) GetCreditMovements(_ context.Context, platformID uuid.UUID, f ledger.MovementFilters) (*ledger.MovementPage, error) {
	s.filters = &f
	if s.err != nil {
		return nil, s.err
	}
	return &ledger.MovementPage{Limit: 50}, nil
}

func (s *stubLedger) GetPlatformsWithLowBalance(_ context.Context) ([]ledger.LowBalancePlatform, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.lowBalance, nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func authedRequest(method, target, body string, platformID uuid.UUID) *http.Request {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	r.SetPathValue("id", platformID.String())
	actor := &middleware.Actor{ID: uuid.New(), Email: "ops@example.com"}
	return r.WithContext(middleware.WithActor(r.Context(), actor))
}

// ---------------------------------------------------------------------------
// Mutations
// ---------------------------------------------------------------------------

func TestAddCreditsHandler(t *testing.T) {
	stub := &stubLedger{}
	h := &LedgerHandler{Ledger: stub, Logger: discardLogger()}
	platformID := uuid.New()

	req := authedRequest(http.MethodPost, "/api/v1/platforms/x/credits/add",
		`{"amount":"250.50","description":"top-up","reference_type":"bank_transfer"}`, platformID)
	rec := httptest.NewRecorder()
	h.AddCredits(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200, body %s", rec.Code, rec.Body.String())
	}
	if stub.addParams == nil {
		t.Fatal("service not called")
	}
	if stub.addParams.PlatformID != platformID {
		t.Errorf("platform id: got %s", stub.addParams.PlatformID)
	}
	if !stub.addParams.Amount.Equal(decimal.NewFromFloat(250.50)) {
		t.Errorf("amount: got %s", stub.addParams.Amount)
	}
	if stub.addParams.Actor != "ops@example.com" {
		t.Errorf("actor: got %q", stub.addParams.Actor)
	}

	var body ledger.OperationResult
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !body.NewBalance.Equal(decimal.NewFromInt(150)) {
		t.Errorf("new balance in response: got %s", body.NewBalance)
	}
}

func TestAddCreditsHandler_Unauthorized(t *testing.T) {
	h := &LedgerHandler{Ledger: &stubLedger{}, Logger: discardLogger()}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/platforms/x/credits/add", strings.NewReader(`{}`))
	req.SetPathValue("id", uuid.New().String())
	rec := httptest.NewRecorder()
	h.AddCredits(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status without actor: got %d, want 401", rec.Code)
	}
}

func TestAddCreditsHandler_BadInput(t *testing.T) {
	h := &LedgerHandler{Ledger: &stubLedger{}, Logger: discardLogger()}

	// Malformed platform id.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/platforms/nope/credits/add", strings.NewReader(`{}`))
	req.SetPathValue("id", "nope")
	actor := &middleware.Actor{ID: uuid.New(), Email: "ops@example.com"}
	req = req.WithContext(middleware.WithActor(req.Context(), actor))
	rec := httptest.NewRecorder()
	h.AddCredits(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad platform id: got %d, want 400", rec.Code)
	}

	// Malformed body.
	req = authedRequest(http.MethodPost, "/api/v1/platforms/x/credits/add", `{"amount":`, uuid.New())
	rec = httptest.NewRecorder()
	h.AddCredits(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad JSON: got %d, want 400", rec.Code)
	}
}

func TestDeductCreditsHandler(t *testing.T) {
	stub := &stubLedger{}
	h := &LedgerHandler{Ledger: stub, Logger: discardLogger()}
	platformID := uuid.New()
	refID := uuid.New()

	req := authedRequest(http.MethodPost, "/api/v1/platforms/x/credits/deduct",
		fmt.Sprintf(`{"amount":"60","reference_type":"sale","reference_id":%q}`, refID), platformID)
	rec := httptest.NewRecorder()
	h.DeductCredits(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rec.Code, rec.Body.String())
	}
	if stub.deductParams.ReferenceType != "sale" {
		t.Errorf("reference type: got %q", stub.deductParams.ReferenceType)
	}
	if stub.deductParams.ReferenceID == nil || *stub.deductParams.ReferenceID != refID {
		t.Error("reference id not forwarded")
	}

	var body ledger.DeductResult
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !body.IsLowBalance {
		t.Error("is_low_balance flag lost in response")
	}
}

func TestAdjustBalanceHandler(t *testing.T) {
	stub := &stubLedger{}
	h := &LedgerHandler{Ledger: stub, Logger: discardLogger()}

	req := authedRequest(http.MethodPost, "/api/v1/platforms/x/credits/adjust",
		`{"delta":"-75","reason":"reconciliation"}`, uuid.New())
	rec := httptest.NewRecorder()
	h.AdjustBalance(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rec.Code, rec.Body.String())
	}
	if !stub.adjustDelta.Equal(decimal.NewFromInt(-75)) {
		t.Errorf("delta: got %s, want -75", stub.adjustDelta)
	}
	if stub.adjustActor != "ops@example.com" {
		t.Errorf("actor: got %q", stub.adjustActor)
	}
}

// ---------------------------------------------------------------------------
// Error mapping
// ---------------------------------------------------------------------------

func TestLedgerErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"invalid argument", fmt.Errorf("amount: %w", ledger.ErrInvalidArgument), http.StatusBadRequest},
		{"not found", fmt.Errorf("platform x: %w", ledger.ErrNotFound), http.StatusNotFound},
		{"inactive", fmt.Errorf("platform x: %w", ledger.ErrPlatformInactive), http.StatusConflict},
		{"insufficient funds", fmt.Errorf("platform x: %w", ledger.ErrInsufficientFunds), http.StatusPaymentRequired},
		{"lock timeout", &pgconn.PgError{Code: "55P03"}, http.StatusServiceUnavailable},
		{"serialization failure", &pgconn.PgError{Code: "40001"}, http.StatusServiceUnavailable},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := &LedgerHandler{Ledger: &stubLedger{err: tc.err}, Logger: discardLogger()}
			req := authedRequest(http.MethodPost, "/api/v1/platforms/x/credits/add",
				`{"amount":"10"}`, uuid.New())
			rec := httptest.NewRecorder()
			h.AddCredits(rec, req)
			if rec.Code != tc.want {
				t.Errorf("status: got %d, want %d", rec.Code, tc.want)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("content type: got %q", ct)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Reads
// ---------------------------------------------------------------------------

func TestGetBalanceHandler(t *testing.T) {
	h := &LedgerHandler{Ledger: &stubLedger{}, Logger: discardLogger()}
	platformID := uuid.New()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/platforms/x/balance", nil)
	req.SetPathValue("id", platformID.String())
	rec := httptest.NewRecorder()
	h.GetBalance(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	var body ledger.BalanceInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.PlatformID != platformID || body.BalanceStatus != "normal" {
		t.Errorf("body: %+v", body)
	}
}

func TestGetMovementsHandler_QueryParams(t *testing.T) {
	stub := &stubLedger{}
	h := &LedgerHandler{Ledger: stub, Logger: discardLogger()}
	refID := uuid.New()

	target := fmt.Sprintf("/api/v1/platforms/x/movements?kind=credit_added&from=2026-03-01&to=2026-04-01T00:00:00Z&limit=10&offset=20&reference_id=%s", refID)
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.SetPathValue("id", uuid.New().String())
	rec := httptest.NewRecorder()
	h.GetMovements(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	f := stub.filters
	if f == nil {
		t.Fatal("service not called")
	}
	if f.Kind != "credit_added" || f.Limit != 10 || f.Offset != 20 {
		t.Errorf("filters: %+v", f)
	}
	if f.From == nil || f.From.Format("2006-01-02") != "2026-03-01" {
		t.Errorf("from: %v", f.From)
	}
	if f.To == nil {
		t.Error("to not parsed")
	}
	if f.ReferenceID == nil || *f.ReferenceID != refID {
		t.Error("reference_id not parsed")
	}
}

func TestGetMovementsHandler_BadReferenceID(t *testing.T) {
	h := &LedgerHandler{Ledger: &stubLedger{}, Logger: discardLogger()}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/platforms/x/movements?reference_id=nope", nil)
	req.SetPathValue("id", uuid.New().String())
	rec := httptest.NewRecorder()
	h.GetMovements(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", rec.Code)
	}
}

func TestLowBalanceHandler(t *testing.T) {
	stub := &stubLedger{
		lowBalance: []ledger.LowBalancePlatform{
			{PlatformID: uuid.New(), Name: "supplier-a", Balance: decimal.NewFromInt(10), Threshold: decimal.NewFromInt(100), Deficit: decimal.NewFromInt(90)},
		},
	}
	h := &LedgerHandler{Ledger: stub, Logger: discardLogger()}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/platforms/low-balance", nil)
	rec := httptest.NewRecorder()
	h.LowBalance(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	var body struct {
		Platforms []ledger.LowBalancePlatform `json:"platforms"`
		Count     int                         `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Count != 1 || len(body.Platforms) != 1 {
		t.Errorf("body: %+v", body)
	}
}
