package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Balance status tiers returned by the ledger's GetBalance.
const (
	BalanceStatusEmpty  = "empty"
	BalanceStatusLow    = "low"
	BalanceStatusNormal = "normal"
)

// Platform is a pre-funded upstream supplier account. Its credit_balance is
// owned by the ledger service: nothing else writes it, and at any instant it
// equals the signed sum of the platform's credit movements.
type Platform struct {
	ID                  uuid.UUID       `json:"id"`
	Name                string          `json:"name"`
	ContactName         string          `json:"contact_name,omitempty"`
	ContactEmail        string          `json:"contact_email,omitempty"`
	ContactPhone        string          `json:"contact_phone,omitempty"`
	Metadata            json.RawMessage `json:"metadata,omitempty"`
	CreditBalance       decimal.Decimal `json:"credit_balance"`
	LowBalanceThreshold decimal.Decimal `json:"low_balance_threshold"`
	IsActive            bool            `json:"is_active"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// IsLowBalance reports whether the platform sits at or below its threshold.
func (p *Platform) IsLowBalance() bool {
	return p.CreditBalance.Cmp(p.LowBalanceThreshold) <= 0
}

// BalanceStatus classifies the balance: empty (<= 0), low (<= threshold),
// normal otherwise. A zero balance is "empty" even when the threshold is 0.
func (p *Platform) BalanceStatus() string {
	switch {
	case p.CreditBalance.Sign() <= 0:
		return BalanceStatusEmpty
	case p.IsLowBalance():
		return BalanceStatusLow
	default:
		return BalanceStatusNormal
	}
}
