package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/resellhub/backend/internal/ledger"
	"github.com/resellhub/backend/internal/middleware"
	"github.com/resellhub/backend/internal/models"
)

// TxBeginner abstracts transaction creation so tests don't need a pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// SaleStore persists sales.
type SaleStore interface {
	CreateTx(ctx context.Context, tx pgx.Tx, s *models.Sale) error
}

// ProductStore resolves the sold product.
type ProductStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.DigitalProduct, error)
}

// LedgerTx is the tx-composing slice of the credit ledger the sale flow uses.
type LedgerTx interface {
	DeductCreditsTx(ctx context.Context, tx pgx.Tx, p ledger.DeductCreditsParams) (*ledger.DeductResult, error)
}

// SaleHandler serves POST /api/v1/sales. A sale against a platform commits
// together with its sale_deduction movement: both or neither.
type SaleHandler struct {
	Pool     TxBeginner
	Sales    SaleStore
	Products ProductStore
	Ledger   LedgerTx
	Logger   *slog.Logger
}

type createSaleRequest struct {
	ProductID           *uuid.UUID      `json:"product_id"`
	PlatformID          *uuid.UUID      `json:"platform_id"`
	Quantity            int             `json:"quantity"`
	UnitPrice           decimal.Decimal `json:"unit_price"`
	PlatformBuyingPrice decimal.Decimal `json:"platform_buying_price"`
	PaymentType         string          `json:"payment_type"`
	Status              string          `json:"status"`
	SaleDate            *time.Time      `json:"sale_date"`
}

type createSaleResponse struct {
	Sale      *models.Sale         `json:"sale"`
	Deduction *ledger.DeductResult `json:"deduction,omitempty"`
}

// CreateSale records the sale and, when a platform funds it, deducts
// quantity * buying price from that platform's credit in the same transaction.
func (h *SaleHandler) CreateSale(w http.ResponseWriter, r *http.Request) {
	actor := middleware.ActorFromCtx(r.Context())
	if actor == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	var req createSaleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if req.Quantity <= 0 {
		http.Error(w, `{"error":"quantity must be > 0"}`, http.StatusBadRequest)
		return
	}
	if req.UnitPrice.IsNegative() || req.PlatformBuyingPrice.IsNegative() {
		http.Error(w, `{"error":"prices must be >= 0"}`, http.StatusBadRequest)
		return
	}
	status := req.Status
	if status == "" {
		status = models.SaleStatusPending
	}
	if status != models.SaleStatusPaid && status != models.SaleStatusPending {
		http.Error(w, `{"error":"status must be paid or pending"}`, http.StatusBadRequest)
		return
	}

	sale := &models.Sale{
		ID:                  uuid.New(),
		ProductID:           req.ProductID,
		PlatformID:          req.PlatformID,
		Quantity:            req.Quantity,
		UnitPrice:           req.UnitPrice,
		PlatformBuyingPrice: req.PlatformBuyingPrice,
		PaymentType:         req.PaymentType,
		Status:              status,
		SaleDate:            time.Now(),
		CreatedBy:           actor.Email,
	}
	if req.SaleDate != nil {
		sale.SaleDate = *req.SaleDate
	}

	description := "Stock sale"
	if req.ProductID != nil {
		product, err := h.Products.GetByID(r.Context(), *req.ProductID)
		if err != nil {
			http.Error(w, `{"error":"product not found"}`, http.StatusBadRequest)
			return
		}
		sale.IsRecurring = product.IsRecurring
		description = fmt.Sprintf("Sale of %d x %s", req.Quantity, product.Name)
	}
	qty := decimal.NewFromInt(int64(req.Quantity))
	sale.TotalPrice = req.UnitPrice.Mul(qty)
	sale.Profit = sale.TotalPrice.Sub(sale.PlatformCost())

	tx, err := h.Pool.Begin(r.Context())
	if err != nil {
		h.Logger.Error("begin tx", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	defer tx.Rollback(r.Context())

	if err := h.Sales.CreateTx(r.Context(), tx, sale); err != nil {
		h.Logger.Error("create sale", "error", err)
		http.Error(w, `{"error":"failed to create sale"}`, http.StatusInternalServerError)
		return
	}

	var deduction *ledger.DeductResult
	if sale.PlatformID != nil && sale.PlatformCost().IsPositive() {
		deduction, err = h.Ledger.DeductCreditsTx(r.Context(), tx, ledger.DeductCreditsParams{
			PlatformID:    *sale.PlatformID,
			Amount:        sale.PlatformCost(),
			Description:   description,
			ReferenceType: "sale",
			ReferenceID:   &sale.ID,
			Actor:         actor.Email,
		})
		if err != nil {
			// Rolls back the sale insert too.
			lh := LedgerHandler{Logger: h.Logger}
			lh.writeLedgerError(w, "sale deduction", err)
			return
		}
	}

	if err := tx.Commit(r.Context()); err != nil {
		h.Logger.Error("commit sale", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, createSaleResponse{Sale: sale, Deduction: deduction})
}
