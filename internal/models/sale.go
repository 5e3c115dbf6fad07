package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Sale statuses and the subset of payment types the reports care about.
const (
	SaleStatusPaid    = "paid"
	SaleStatusPending = "pending"
)

// Sale is one stock sale. When PlatformID is set the sale consumed platform
// credit (PlatformBuyingPrice * Quantity) and a sale_deduction movement
// references it.
type Sale struct {
	ID                  uuid.UUID       `json:"id"`
	ProductID           *uuid.UUID      `json:"product_id,omitempty"`
	PlatformID          *uuid.UUID      `json:"platform_id,omitempty"`
	Quantity            int             `json:"quantity"`
	UnitPrice           decimal.Decimal `json:"unit_price"`
	TotalPrice          decimal.Decimal `json:"total_price"`
	PlatformBuyingPrice decimal.Decimal `json:"platform_buying_price"`
	Profit              decimal.Decimal `json:"profit"`
	PaymentType         string          `json:"payment_type,omitempty"`
	Status              string          `json:"status"`
	IsRecurring         bool            `json:"is_recurring"`
	SaleDate            time.Time       `json:"sale_date"`
	CreatedBy           string          `json:"created_by,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
}

// PlatformCost is the credit the sale consumed from its platform.
func (s *Sale) PlatformCost() decimal.Decimal {
	return s.PlatformBuyingPrice.Mul(decimal.NewFromInt(int64(s.Quantity)))
}

// SaleDetail is a sale joined with the names the reporting engine groups by.
type SaleDetail struct {
	Sale
	ProductName     string `json:"product_name,omitempty"`
	ProductCategory string `json:"product_category,omitempty"`
	PlatformName    string `json:"platform_name,omitempty"`
}
