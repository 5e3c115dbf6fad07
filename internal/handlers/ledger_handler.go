package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/resellhub/backend/internal/ledger"
	"github.com/resellhub/backend/internal/middleware"
)

// LedgerService abstracts the credit ledger for the handler and its tests.
type LedgerService interface {
	AddCredits(ctx context.Context, p ledger.AddCreditsParams) (*ledger.OperationResult, error)
	DeductCredits(ctx context.Context, p ledger.DeductCreditsParams) (*ledger.DeductResult, error)
	AdjustBalance(ctx context.Context, platformID uuid.UUID, delta decimal.Decimal, reason, actor string) (*ledger.OperationResult, error)
	GetBalance(ctx context.Context, platformID uuid.UUID) (*ledger.BalanceInfo, error)
	GetCreditMovements(ctx context.Context, platformID uuid.UUID, f ledger.MovementFilters) (*ledger.MovementPage, error)
	GetPlatformsWithLowBalance(ctx context.Context) ([]ledger.LowBalancePlatform, error)
}

// LedgerHandler serves the platform credit endpoints.
type LedgerHandler struct {
	Ledger LedgerService
	Logger *slog.Logger
}

type creditRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description"`
	ReferenceType string          `json:"reference_type"`
	ReferenceID   *uuid.UUID      `json:"reference_id"`
	AllowNegative bool            `json:"allow_negative"`
}

type adjustRequest struct {
	Delta  decimal.Decimal `json:"delta"`
	Reason string          `json:"reason"`
}

// AddCredits handles POST /api/v1/platforms/{id}/credits/add.
func (h *LedgerHandler) AddCredits(w http.ResponseWriter, r *http.Request) {
	platformID, actor, ok := h.mutationPrelude(w, r)
	if !ok {
		return
	}
	var req creditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	res, err := h.Ledger.AddCredits(r.Context(), ledger.AddCreditsParams{
		PlatformID:    platformID,
		Amount:        req.Amount,
		Description:   req.Description,
		ReferenceType: req.ReferenceType,
		ReferenceID:   req.ReferenceID,
		Actor:         actor,
	})
	if err != nil {
		h.writeLedgerError(w, "add credits", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// DeductCredits handles POST /api/v1/platforms/{id}/credits/deduct.
func (h *LedgerHandler) DeductCredits(w http.ResponseWriter, r *http.Request) {
	platformID, actor, ok := h.mutationPrelude(w, r)
	if !ok {
		return
	}
	var req creditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	res, err := h.Ledger.DeductCredits(r.Context(), ledger.DeductCreditsParams{
		PlatformID:    platformID,
		Amount:        req.Amount,
		Description:   req.Description,
		ReferenceType: req.ReferenceType,
		ReferenceID:   req.ReferenceID,
		Actor:         actor,
		AllowNegative: req.AllowNegative,
	})
	if err != nil {
		h.writeLedgerError(w, "deduct credits", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// AdjustBalance handles POST /api/v1/platforms/{id}/credits/adjust.
func (h *LedgerHandler) AdjustBalance(w http.ResponseWriter, r *http.Request) {
	platformID, actor, ok := h.mutationPrelude(w, r)
	if !ok {
		return
	}
	var req adjustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	res, err := h.Ledger.AdjustBalance(r.Context(), platformID, req.Delta, req.Reason, actor)
	if err != nil {
		h.writeLedgerError(w, "adjust balance", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GetBalance handles GET /api/v1/platforms/{id}/balance.
func (h *LedgerHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	platformID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid platform id"}`, http.StatusBadRequest)
		return
	}
	info, err := h.Ledger.GetBalance(r.Context(), platformID)
	if err != nil {
		h.writeLedgerError(w, "get balance", err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// GetMovements handles GET /api/v1/platforms/{id}/movements.
func (h *LedgerHandler) GetMovements(w http.ResponseWriter, r *http.Request) {
	platformID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid platform id"}`, http.StatusBadRequest)
		return
	}
	q := r.URL.Query()
	f := ledger.MovementFilters{
		Kind:   q.Get("kind"),
		From:   parseTimeParam(q.Get("from")),
		To:     parseTimeParam(q.Get("to")),
		Limit:  parseIntParam(q.Get("limit")),
		Offset: parseIntParam(q.Get("offset")),
	}
	if ref := q.Get("reference_id"); ref != "" {
		id, err := uuid.Parse(ref)
		if err != nil {
			http.Error(w, `{"error":"invalid reference_id"}`, http.StatusBadRequest)
			return
		}
		f.ReferenceID = &id
	}
	page, err := h.Ledger.GetCreditMovements(r.Context(), platformID, f)
	if err != nil {
		h.writeLedgerError(w, "get movements", err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// LowBalance handles GET /api/v1/platforms/low-balance.
func (h *LedgerHandler) LowBalance(w http.ResponseWriter, r *http.Request) {
	list, err := h.Ledger.GetPlatformsWithLowBalance(r.Context())
	if err != nil {
		h.writeLedgerError(w, "low balance", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"platforms": list, "count": len(list)})
}

func (h *LedgerHandler) mutationPrelude(w http.ResponseWriter, r *http.Request) (uuid.UUID, string, bool) {
	actor := middleware.ActorFromCtx(r.Context())
	if actor == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return uuid.Nil, "", false
	}
	platformID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid platform id"}`, http.StatusBadRequest)
		return uuid.Nil, "", false
	}
	return platformID, actor.Email, true
}

// writeLedgerError maps ledger sentinels to HTTP statuses so callers can
// tell fixable business failures from retryable ones.
func (h *LedgerHandler) writeLedgerError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ledger.ErrInvalidArgument):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, ledger.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, ledger.ErrPlatformInactive):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, ledger.ErrInsufficientFunds):
		writeJSON(w, http.StatusPaymentRequired, map[string]string{"error": err.Error()})
	case ledger.IsTransient(err):
		h.Logger.Error(op, "error", err, "transient", true)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "temporary store failure, retry later"})
	default:
		h.Logger.Error(op, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// parseTimeParam accepts RFC3339 or a plain date.
func parseTimeParam(s string) *time.Time {
	if s == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return &t
	}
	return nil
}

func parseIntParam(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
