package reporting

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/shopspring/decimal"
)

// DashboardFilters is the shared date range for all four sub-reports.
type DashboardFilters struct {
	From *time.Time `json:"from,omitempty"`
	To   *time.Time `json:"to,omitempty"`
}

// DashboardReport combines the four reports computed against the same inputs.
type DashboardReport struct {
	Profitability     *ProfitabilityReport `json:"profitability"`
	CreditUtilization *UtilizationReport   `json:"credit_utilization"`
	SalesProfit       *SalesProfitReport   `json:"sales_profit"`
	LowCredit         *LowCreditReport     `json:"low_credit"`
	Filters           DashboardFilters     `json:"filters"`
	GeneratedAt       time.Time            `json:"generated_at"`
}

// FinancialDashboard fans out the four sibling reports concurrently and joins
// all-or-nothing: if any sub-report fails, the whole call fails rather than
// returning partial data.
func (s *Service) FinancialDashboard(ctx context.Context, f DashboardFilters) (*DashboardReport, error) {
	g, ctx := errgroup.WithContext(ctx)
	out := &DashboardReport{Filters: f}

	g.Go(func() error {
		r, err := s.PlatformProfitability(ctx, ProfitabilityFilters{From: f.From, To: f.To})
		out.Profitability = r
		return err
	})
	g.Go(func() error {
		r, err := s.CreditUtilization(ctx, UtilizationFilters{From: f.From, To: f.To})
		out.CreditUtilization = r
		return err
	})
	g.Go(func() error {
		r, err := s.SalesProfitReport(ctx, SalesReportFilters{From: f.From, To: f.To, GroupBy: GroupByPlatform})
		out.SalesProfit = r
		return err
	})
	g.Go(func() error {
		r, err := s.LowCreditPlatforms(ctx, decimal.Zero) // default threshold
		out.LowCredit = r
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	out.GeneratedAt = s.now()
	return out, nil
}
