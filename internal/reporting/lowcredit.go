package reporting

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/resellhub/backend/internal/models"
	"github.com/resellhub/backend/internal/repository"
)

// Urgency tiers for platforms below the report threshold.
const (
	UrgencyCritical = "critical"
	UrgencyHigh     = "high"
	UrgencyMedium   = "medium"
)

// trailingUsageDays is the window for the usage-rate estimate.
const trailingUsageDays = 30

var (
	defaultLowCreditThreshold = decimal.NewFromInt(100)
	criticalFraction          = decimal.NewFromFloat(0.2)
	highFraction              = decimal.NewFromFloat(0.5)
	two                       = decimal.NewFromInt(2)
)

// LowCreditPlatform annotates a platform at or below the report threshold
// with its trailing usage and replenishment guidance.
type LowCreditPlatform struct {
	PlatformID         uuid.UUID        `json:"platform_id"`
	PlatformName       string           `json:"platform_name"`
	Balance            decimal.Decimal  `json:"balance"`
	UsageLast30Days    decimal.Decimal  `json:"usage_last_30_days"`
	DailyUsageRate     decimal.Decimal  `json:"daily_usage_rate"`
	DaysUntilDepletion *decimal.Decimal `json:"days_until_depletion,omitempty"`
	UrgencyLevel       string           `json:"urgency_level"`
	RecommendedTopUp   decimal.Decimal  `json:"recommended_top_up"`
}

type LowCreditSummary struct {
	PlatformCount    int             `json:"platform_count"`
	CriticalCount    int             `json:"critical_count"`
	HighCount        int             `json:"high_count"`
	MediumCount      int             `json:"medium_count"`
	TotalRecommended decimal.Decimal `json:"total_recommended_top_up"`
}

type LowCreditReport struct {
	Summary     LowCreditSummary    `json:"summary"`
	Platforms   []LowCreditPlatform `json:"platforms"`
	Threshold   decimal.Decimal     `json:"threshold"`
	GeneratedAt time.Time           `json:"generated_at"`
}

// LowCreditPlatforms lists active platforms at or below threshold (default
// 100), lowest balance first, each with a 30-day usage rate, an estimated
// time to depletion (absent when usage is zero), an urgency tier and a
// recommended top-up of max(2*threshold - balance, 0).
func (s *Service) LowCreditPlatforms(ctx context.Context, threshold decimal.Decimal) (*LowCreditReport, error) {
	if !threshold.IsPositive() {
		threshold = defaultLowCreditThreshold
	}
	key := cacheKey("low_credit_platforms", threshold.String())
	return cached(s, "low_credit_platforms", key, func() (*LowCreditReport, error) {
		return s.computeLowCredit(ctx, threshold)
	})
}

func (s *Service) computeLowCredit(ctx context.Context, threshold decimal.Decimal) (*LowCreditReport, error) {
	platforms, err := s.platforms.List(ctx, true)
	if err != nil {
		return nil, err
	}

	since := s.now().AddDate(0, 0, -trailingUsageDays)
	movements, _, err := s.movements.List(ctx, repository.MovementQuery{From: &since})
	if err != nil {
		return nil, err
	}
	usage := make(map[uuid.UUID]decimal.Decimal)
	for _, m := range movements {
		switch m.MovementType {
		case models.MovementCreditDeducted, models.MovementSaleDeduction:
			usage[m.PlatformID] = usage[m.PlatformID].Add(m.Amount)
		}
	}

	criticalAt := threshold.Mul(criticalFraction)
	highAt := threshold.Mul(highFraction)
	days := decimal.NewFromInt(trailingUsageDays)

	report := &LowCreditReport{Threshold: threshold, GeneratedAt: s.now()}
	for _, pl := range platforms {
		if pl.CreditBalance.Cmp(threshold) > 0 {
			continue
		}
		used := usage[pl.ID]
		item := LowCreditPlatform{
			PlatformID:      pl.ID,
			PlatformName:    pl.Name,
			Balance:         pl.CreditBalance,
			UsageLast30Days: used,
			DailyUsageRate:  used.Div(days),
		}
		if used.IsPositive() {
			d := item.Balance.Div(item.DailyUsageRate)
			if d.IsNegative() {
				d = decimal.Zero
			}
			item.DaysUntilDepletion = &d
		}
		switch {
		case pl.CreditBalance.Cmp(criticalAt) <= 0:
			item.UrgencyLevel = UrgencyCritical
			report.Summary.CriticalCount++
		case pl.CreditBalance.Cmp(highAt) <= 0:
			item.UrgencyLevel = UrgencyHigh
			report.Summary.HighCount++
		default:
			item.UrgencyLevel = UrgencyMedium
			report.Summary.MediumCount++
		}
		if topUp := threshold.Mul(two).Sub(pl.CreditBalance); topUp.IsPositive() {
			item.RecommendedTopUp = topUp
		}
		report.Platforms = append(report.Platforms, item)
		report.Summary.TotalRecommended = report.Summary.TotalRecommended.Add(item.RecommendedTopUp)
	}

	sort.SliceStable(report.Platforms, func(i, j int) bool {
		return report.Platforms[i].Balance.Cmp(report.Platforms[j].Balance) < 0
	})
	report.Summary.PlatformCount = len(report.Platforms)
	return report, nil
}
