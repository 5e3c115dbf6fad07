package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Credit movement kinds. Amounts are always stored positive; the kind implies
// the sign (adjustments carry either sign, recoverable from the balance
// snapshot).
const (
	MovementCreditAdded    = "credit_added"
	MovementCreditDeducted = "credit_deducted"
	MovementSaleDeduction  = "sale_deduction"
	MovementAdjustment     = "adjustment"
)

// CreditMovement is one immutable, append-only audit record of a balance
// change. previous_balance/new_balance are snapshotted at write time so the
// full balance history can be reconstructed without re-deriving it.
type CreditMovement struct {
	ID              uuid.UUID       `json:"id"`
	PlatformID      uuid.UUID       `json:"platform_id"`
	MovementType    string          `json:"movement_type"`
	Amount          decimal.Decimal `json:"amount"`
	PreviousBalance decimal.Decimal `json:"previous_balance"`
	NewBalance      decimal.Decimal `json:"new_balance"`
	ReferenceType   string          `json:"reference_type,omitempty"`
	ReferenceID     *uuid.UUID      `json:"reference_id,omitempty"`
	Description     string          `json:"description,omitempty"`
	CreatedBy       string          `json:"created_by,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// SignedAmount returns the movement's contribution to the balance: positive
// for credit_added, negative for deductions, and for adjustments the sign of
// the snapshotted balance delta. Replaying SignedAmount over a platform's
// movements in order yields its current balance.
func (m *CreditMovement) SignedAmount() decimal.Decimal {
	switch m.MovementType {
	case MovementCreditAdded:
		return m.Amount
	case MovementCreditDeducted, MovementSaleDeduction:
		return m.Amount.Neg()
	case MovementAdjustment:
		if m.NewBalance.Cmp(m.PreviousBalance) < 0 {
			return m.Amount.Neg()
		}
		return m.Amount
	default:
		return m.Amount
	}
}
