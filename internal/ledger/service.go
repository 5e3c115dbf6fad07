package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/resellhub/backend/internal/models"
	"github.com/resellhub/backend/internal/repository"
)

// Default page size for movement listings.
const defaultMovementLimit = 50

// TxBeginner abstracts transaction creation so tests don't need a pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PlatformStore is the subset of the platform repository the ledger needs.
type PlatformStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Platform, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Platform, error)
	UpdateBalanceTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, balance decimal.Decimal) error
	ListLowBalance(ctx context.Context) ([]*models.Platform, error)
}

// MovementStore appends and lists credit movements.
type MovementStore interface {
	CreateTx(ctx context.Context, tx pgx.Tx, m *models.CreditMovement) error
	List(ctx context.Context, q repository.MovementQuery) ([]*models.CreditMovement, int, error)
}

// Service is the sole writer of platform balances and the sole producer of
// credit movements. Every mutation is one atomic unit: lock the platform row,
// validate, compute, write balance, append movement, commit — or roll back
// everything.
type Service struct {
	db        TxBeginner
	platforms PlatformStore
	movements MovementStore
	log       *slog.Logger
}

func NewService(db TxBeginner, platforms PlatformStore, movements MovementStore, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{db: db, platforms: platforms, movements: movements, log: log}
}

// AddCreditsParams describes a top-up.
type AddCreditsParams struct {
	PlatformID    uuid.UUID
	Amount        decimal.Decimal
	Description   string
	ReferenceType string
	ReferenceID   *uuid.UUID
	Actor         string
}

// DeductCreditsParams describes a deduction. AllowNegative permits the
// balance to go below zero (adjustments use this; normal deductions don't).
type DeductCreditsParams struct {
	PlatformID    uuid.UUID
	Amount        decimal.Decimal
	Description   string
	ReferenceType string
	ReferenceID   *uuid.UUID
	Actor         string
	AllowNegative bool
}

// OperationResult reports a committed balance mutation.
type OperationResult struct {
	PlatformID      uuid.UUID       `json:"platform_id"`
	PlatformName    string          `json:"platform_name"`
	MovementID      uuid.UUID       `json:"movement_id"`
	MovementType    string          `json:"movement_type"`
	PreviousBalance decimal.Decimal `json:"previous_balance"`
	NewBalance      decimal.Decimal `json:"new_balance"`
	Timestamp       time.Time       `json:"timestamp"`
}

// DeductResult adds the post-write low-balance flag to a deduction result.
type DeductResult struct {
	OperationResult
	IsLowBalance bool `json:"is_low_balance"`
}

// BalanceInfo is the read-only balance view.
type BalanceInfo struct {
	PlatformID    uuid.UUID       `json:"platform_id"`
	PlatformName  string          `json:"platform_name"`
	Balance       decimal.Decimal `json:"balance"`
	Threshold     decimal.Decimal `json:"low_balance_threshold"`
	IsLowBalance  bool            `json:"is_low_balance"`
	BalanceStatus string          `json:"balance_status"`
}

// MovementFilters narrows GetCreditMovements. Zero values mean "no filter".
type MovementFilters struct {
	Kind        string
	ReferenceID *uuid.UUID
	From        *time.Time
	To          *time.Time
	Limit       int
	Offset      int
}

// MovementPage is one page of movements, newest first.
type MovementPage struct {
	Movements []*models.CreditMovement `json:"movements"`
	Total     int                      `json:"total"`
	Limit     int                      `json:"limit"`
	Offset    int                      `json:"offset"`
}

// LowBalancePlatform annotates a platform below threshold with its deficit.
type LowBalancePlatform struct {
	PlatformID uuid.UUID       `json:"platform_id"`
	Name       string          `json:"name"`
	Balance    decimal.Decimal `json:"balance"`
	Threshold  decimal.Decimal `json:"low_balance_threshold"`
	Deficit    decimal.Decimal `json:"deficit"`
}

// movementSpec is the validated, normalized form of one balance mutation.
type movementSpec struct {
	platformID    uuid.UUID
	amount        decimal.Decimal // always positive
	debit         bool
	kind          string
	description   string
	referenceType string
	referenceID   *uuid.UUID
	actor         string
	allowNegative bool
}

// AddCredits tops up a platform in its own transaction.
func (s *Service) AddCredits(ctx context.Context, p AddCreditsParams) (*OperationResult, error) {
	spec, err := addSpec(p)
	if err != nil {
		return nil, err
	}
	res, _, err := s.inTx(ctx, spec)
	return res, err
}

// AddCreditsTx is AddCredits inside the caller's transaction.
func (s *Service) AddCreditsTx(ctx context.Context, tx pgx.Tx, p AddCreditsParams) (*OperationResult, error) {
	spec, err := addSpec(p)
	if err != nil {
		return nil, err
	}
	res, _, err := s.applyTx(ctx, tx, spec)
	return res, err
}

func addSpec(p AddCreditsParams) (movementSpec, error) {
	if err := validateAmount(p.PlatformID, p.Amount); err != nil {
		return movementSpec{}, err
	}
	return movementSpec{
		platformID:    p.PlatformID,
		amount:        p.Amount,
		kind:          models.MovementCreditAdded,
		description:   p.Description,
		referenceType: p.ReferenceType,
		referenceID:   p.ReferenceID,
		actor:         p.Actor,
	}, nil
}

// DeductCredits consumes platform credit in its own transaction. The movement
// kind is sale_deduction when the reference type is "sale".
func (s *Service) DeductCredits(ctx context.Context, p DeductCreditsParams) (*DeductResult, error) {
	spec, err := deductSpec(p)
	if err != nil {
		return nil, err
	}
	res, pl, err := s.inTx(ctx, spec)
	if err != nil {
		return nil, err
	}
	return deductResult(res, pl), nil
}

// DeductCreditsTx is DeductCredits inside the caller's transaction. Sale
// capture uses it so the sale insert and its deduction commit together.
func (s *Service) DeductCreditsTx(ctx context.Context, tx pgx.Tx, p DeductCreditsParams) (*DeductResult, error) {
	spec, err := deductSpec(p)
	if err != nil {
		return nil, err
	}
	res, pl, err := s.applyTx(ctx, tx, spec)
	if err != nil {
		return nil, err
	}
	return deductResult(res, pl), nil
}

func deductSpec(p DeductCreditsParams) (movementSpec, error) {
	if err := validateAmount(p.PlatformID, p.Amount); err != nil {
		return movementSpec{}, err
	}
	kind := models.MovementCreditDeducted
	if p.ReferenceType == "sale" {
		kind = models.MovementSaleDeduction
	}
	return movementSpec{
		platformID:    p.PlatformID,
		amount:        p.Amount,
		debit:         true,
		kind:          kind,
		description:   p.Description,
		referenceType: p.ReferenceType,
		referenceID:   p.ReferenceID,
		actor:         p.Actor,
		allowNegative: p.AllowNegative,
	}, nil
}

func deductResult(res *OperationResult, pl *models.Platform) *DeductResult {
	return &DeductResult{
		OperationResult: *res,
		IsLowBalance:    res.NewBalance.Cmp(pl.LowBalanceThreshold) <= 0,
	}
}

// AdjustBalance applies a signed correction. Negative adjustments always
// succeed, even when they take the balance below zero.
func (s *Service) AdjustBalance(ctx context.Context, platformID uuid.UUID, delta decimal.Decimal, reason, actor string) (*OperationResult, error) {
	if platformID == uuid.Nil {
		rejectionsTotal.WithLabelValues("invalid_argument").Inc()
		return nil, fmt.Errorf("%w: platform id is required", ErrInvalidArgument)
	}
	if delta.IsZero() {
		rejectionsTotal.WithLabelValues("invalid_argument").Inc()
		return nil, fmt.Errorf("%w: adjustment delta must be non-zero", ErrInvalidArgument)
	}
	spec := movementSpec{
		platformID:    platformID,
		amount:        delta.Abs(),
		debit:         delta.IsNegative(),
		kind:          models.MovementAdjustment,
		description:   reason,
		referenceType: "adjustment",
		actor:         actor,
		allowNegative: true,
	}
	res, _, err := s.inTx(ctx, spec)
	return res, err
}

// GetBalance returns the current balance, threshold and classification.
func (s *Service) GetBalance(ctx context.Context, platformID uuid.UUID) (*BalanceInfo, error) {
	if platformID == uuid.Nil {
		return nil, fmt.Errorf("%w: platform id is required", ErrInvalidArgument)
	}
	pl, err := s.platforms.GetByID(ctx, platformID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("platform %s: %w", platformID, ErrNotFound)
		}
		return nil, err
	}
	return &BalanceInfo{
		PlatformID:    pl.ID,
		PlatformName:  pl.Name,
		Balance:       pl.CreditBalance,
		Threshold:     pl.LowBalanceThreshold,
		IsLowBalance:  pl.IsLowBalance(),
		BalanceStatus: pl.BalanceStatus(),
	}, nil
}

// GetCreditMovements lists a platform's movements newest first, paginated.
func (s *Service) GetCreditMovements(ctx context.Context, platformID uuid.UUID, f MovementFilters) (*MovementPage, error) {
	if platformID == uuid.Nil {
		return nil, fmt.Errorf("%w: platform id is required", ErrInvalidArgument)
	}
	if _, err := s.platforms.GetByID(ctx, platformID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("platform %s: %w", platformID, ErrNotFound)
		}
		return nil, err
	}
	limit := f.Limit
	if limit <= 0 {
		limit = defaultMovementLimit
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	movements, total, err := s.movements.List(ctx, repository.MovementQuery{
		PlatformID:  platformID,
		Kind:        f.Kind,
		ReferenceID: f.ReferenceID,
		From:        f.From,
		To:          f.To,
		Limit:       limit,
		Offset:      offset,
	})
	if err != nil {
		return nil, err
	}
	return &MovementPage{Movements: movements, Total: total, Limit: limit, Offset: offset}, nil
}

// GetPlatformsWithLowBalance returns active platforms at or below their own
// threshold, lowest balance first, each annotated with its deficit.
func (s *Service) GetPlatformsWithLowBalance(ctx context.Context) ([]LowBalancePlatform, error) {
	platforms, err := s.platforms.ListLowBalance(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]LowBalancePlatform, 0, len(platforms))
	for _, pl := range platforms {
		out = append(out, LowBalancePlatform{
			PlatformID: pl.ID,
			Name:       pl.Name,
			Balance:    pl.CreditBalance,
			Threshold:  pl.LowBalanceThreshold,
			Deficit:    pl.LowBalanceThreshold.Sub(pl.CreditBalance),
		})
	}
	return out, nil
}

func validateAmount(platformID uuid.UUID, amount decimal.Decimal) error {
	if platformID == uuid.Nil {
		rejectionsTotal.WithLabelValues("invalid_argument").Inc()
		return fmt.Errorf("%w: platform id is required", ErrInvalidArgument)
	}
	if !amount.IsPositive() {
		rejectionsTotal.WithLabelValues("invalid_argument").Inc()
		return fmt.Errorf("%w: amount must be positive, got %s", ErrInvalidArgument, amount)
	}
	return nil
}

// inTx runs one mutation in its own transaction, rolling everything back on
// any failure so a balance write never commits without its movement.
func (s *Service) inTx(ctx context.Context, spec movementSpec) (*OperationResult, *models.Platform, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback(ctx)

	res, pl, err := s.applyTx(ctx, tx, spec)
	if err != nil {
		return nil, nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, nil, err
	}
	return res, pl, nil
}

// applyTx performs the locked read-modify-write inside tx: exclusive row lock
// on the platform, balance write, movement append. The lock is held until the
// caller commits, which serializes concurrent mutations per platform.
func (s *Service) applyTx(ctx context.Context, tx pgx.Tx, spec movementSpec) (*OperationResult, *models.Platform, error) {
	pl, err := s.platforms.GetByIDForUpdate(ctx, tx, spec.platformID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			rejectionsTotal.WithLabelValues("not_found").Inc()
			return nil, nil, fmt.Errorf("platform %s: %w", spec.platformID, ErrNotFound)
		}
		return nil, nil, err
	}
	if !pl.IsActive {
		rejectionsTotal.WithLabelValues("inactive").Inc()
		return nil, nil, fmt.Errorf("platform %s: %w", pl.Name, ErrPlatformInactive)
	}

	prev := pl.CreditBalance
	var newBalance decimal.Decimal
	if spec.debit {
		newBalance = prev.Sub(spec.amount)
		if newBalance.IsNegative() && !spec.allowNegative {
			rejectionsTotal.WithLabelValues("insufficient_funds").Inc()
			return nil, nil, fmt.Errorf("platform %s: balance %s, requested %s: %w",
				pl.Name, prev, spec.amount, ErrInsufficientFunds)
		}
	} else {
		newBalance = prev.Add(spec.amount)
	}

	if err := s.platforms.UpdateBalanceTx(ctx, tx, pl.ID, newBalance); err != nil {
		return nil, nil, err
	}

	description := spec.description
	if spec.referenceType != "" {
		description = fmt.Sprintf("[%s] %s", spec.referenceType, description)
	}
	m := &models.CreditMovement{
		ID:              uuid.New(),
		PlatformID:      pl.ID,
		MovementType:    spec.kind,
		Amount:          spec.amount,
		PreviousBalance: prev,
		NewBalance:      newBalance,
		ReferenceType:   spec.referenceType,
		ReferenceID:     spec.referenceID,
		Description:     description,
		CreatedBy:       spec.actor,
	}
	if err := s.movements.CreateTx(ctx, tx, m); err != nil {
		return nil, nil, err
	}
	movementsTotal.WithLabelValues(spec.kind).Inc()

	s.log.Info("credit movement",
		"platform", pl.Name,
		"type", spec.kind,
		"amount", spec.amount.String(),
		"previous_balance", prev.String(),
		"new_balance", newBalance.String(),
		"actor", spec.actor)

	return &OperationResult{
		PlatformID:      pl.ID,
		PlatformName:    pl.Name,
		MovementID:      m.ID,
		MovementType:    spec.kind,
		PreviousBalance: prev,
		NewBalance:      newBalance,
		Timestamp:       m.CreatedAt,
	}, pl, nil
}
