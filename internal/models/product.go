package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DigitalProduct is the catalog entry a sale references. Only the fields the
// reporting engine reads are modeled here.
type DigitalProduct struct {
	ID           uuid.UUID       `json:"id"`
	Name         string          `json:"name"`
	Category     string          `json:"category,omitempty"`
	SellingPrice decimal.Decimal `json:"selling_price"`
	IsRecurring  bool            `json:"is_recurring"`
	IsActive     bool            `json:"is_active"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}
