package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/resellhub/backend/internal/models"
)

// PlatformStore is the minimal provisioning surface; balance mutation stays
// with the ledger.
type PlatformStore interface {
	Create(ctx context.Context, p *models.Platform) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Platform, error)
	List(ctx context.Context, activeOnly bool) ([]*models.Platform, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
}

type PlatformHandler struct {
	Platforms PlatformStore
	Logger    *slog.Logger
}

type createPlatformRequest struct {
	Name                string          `json:"name"`
	ContactName         string          `json:"contact_name"`
	ContactEmail        string          `json:"contact_email"`
	ContactPhone        string          `json:"contact_phone"`
	Metadata            json.RawMessage `json:"metadata"`
	LowBalanceThreshold decimal.Decimal `json:"low_balance_threshold"`
}

// Create handles POST /api/v1/platforms. New platforms open at balance 0;
// funding goes through the ledger.
func (h *PlatformHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createPlatformRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		http.Error(w, `{"error":"name is required"}`, http.StatusBadRequest)
		return
	}
	if req.LowBalanceThreshold.IsNegative() {
		http.Error(w, `{"error":"low_balance_threshold must be >= 0"}`, http.StatusBadRequest)
		return
	}
	p := &models.Platform{
		ID:                  uuid.New(),
		Name:                req.Name,
		ContactName:         req.ContactName,
		ContactEmail:        req.ContactEmail,
		ContactPhone:        req.ContactPhone,
		Metadata:            req.Metadata,
		CreditBalance:       decimal.Zero,
		LowBalanceThreshold: req.LowBalanceThreshold,
		IsActive:            true,
	}
	if err := h.Platforms.Create(r.Context(), p); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			http.Error(w, `{"error":"platform name already exists"}`, http.StatusConflict)
			return
		}
		h.Logger.Error("create platform", "error", err)
		http.Error(w, `{"error":"failed to create platform"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// List handles GET /api/v1/platforms.
func (h *PlatformHandler) List(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "1"
	list, err := h.Platforms.List(r.Context(), activeOnly)
	if err != nil {
		h.Logger.Error("list platforms", "error", err)
		http.Error(w, `{"error":"failed to list platforms"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"platforms": list, "count": len(list)})
}

// Get handles GET /api/v1/platforms/{id}.
func (h *PlatformHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid platform id"}`, http.StatusBadRequest)
		return
	}
	p, err := h.Platforms.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			http.Error(w, `{"error":"platform not found"}`, http.StatusNotFound)
			return
		}
		h.Logger.Error("get platform", "error", err)
		http.Error(w, `{"error":"failed to get platform"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// SetActive handles PATCH /api/v1/platforms/{id}/active. Deactivation is the
// safe alternative to deletion while movements reference the platform.
func (h *PlatformHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid platform id"}`, http.StatusBadRequest)
		return
	}
	var req struct {
		Active *bool `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Active == nil {
		http.Error(w, `{"error":"active is required"}`, http.StatusBadRequest)
		return
	}
	if err := h.Platforms.SetActive(r.Context(), id, *req.Active); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			http.Error(w, `{"error":"platform not found"}`, http.StatusNotFound)
			return
		}
		h.Logger.Error("set platform active", "error", err)
		http.Error(w, `{"error":"failed to update platform"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "active": *req.Active})
}
