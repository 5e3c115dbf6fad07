package reporting

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/resellhub/backend/internal/repository"
)

// ProfitabilityFilters narrows PlatformProfitability. Nil fields match
// everything.
type ProfitabilityFilters struct {
	PlatformID *uuid.UUID `json:"platform_id,omitempty"`
	From       *time.Time `json:"from,omitempty"`
	To         *time.Time `json:"to,omitempty"`
}

// PlatformProfitability is one platform's line item.
type PlatformProfitability struct {
	PlatformID       uuid.UUID       `json:"platform_id"`
	PlatformName     string          `json:"platform_name"`
	TotalSales       int             `json:"total_sales"`
	TotalQuantity    int             `json:"total_quantity"`
	TotalRevenue     decimal.Decimal `json:"total_revenue"`
	TotalCost        decimal.Decimal `json:"total_cost"`
	TotalProfit      decimal.Decimal `json:"total_profit"`
	AvgProfitPerSale decimal.Decimal `json:"avg_profit_per_sale"`
	AvgBuyingPrice   decimal.Decimal `json:"avg_buying_price"`
	AvgSellingPrice  decimal.Decimal `json:"avg_selling_price"`
	ProfitMarginPct  decimal.Decimal `json:"profit_margin_percentage"`
	ROIPct           decimal.Decimal `json:"roi_percentage"`
	RecurringSales   int             `json:"recurring_sales"`
	OneTimeSales     int             `json:"one_time_sales"`
	FirstSaleDate    *time.Time      `json:"first_sale_date,omitempty"`
	LastSaleDate     *time.Time      `json:"last_sale_date,omitempty"`
}

// ProfitabilitySummary aggregates across all matched platforms.
type ProfitabilitySummary struct {
	PlatformCount   int                    `json:"platform_count"`
	TotalSales      int                    `json:"total_sales"`
	TotalRevenue    decimal.Decimal        `json:"total_revenue"`
	TotalCost       decimal.Decimal        `json:"total_cost"`
	TotalProfit     decimal.Decimal        `json:"total_profit"`
	ProfitMarginPct decimal.Decimal        `json:"profit_margin_percentage"`
	MostProfitable  *PlatformProfitability `json:"most_profitable,omitempty"`
	LeastProfitable *PlatformProfitability `json:"least_profitable,omitempty"`
}

// ProfitabilityReport is the full payload: summary, line items ordered by
// revenue descending, echoed filters, generation timestamp.
type ProfitabilityReport struct {
	Summary     ProfitabilitySummary    `json:"summary"`
	Platforms   []PlatformProfitability `json:"platforms"`
	Filters     ProfitabilityFilters    `json:"filters"`
	GeneratedAt time.Time               `json:"generated_at"`
}

// PlatformProfitability reports revenue, cost, profit, margins and ROI per
// platform. Ratios with a zero denominator are 0, never an error.
func (s *Service) PlatformProfitability(ctx context.Context, f ProfitabilityFilters) (*ProfitabilityReport, error) {
	key := cacheKey("platform_profitability", keyUUID(f.PlatformID), keyTime(f.From), keyTime(f.To))
	return cached(s, "platform_profitability", key, func() (*ProfitabilityReport, error) {
		return s.computeProfitability(ctx, f)
	})
}

func (s *Service) computeProfitability(ctx context.Context, f ProfitabilityFilters) (*ProfitabilityReport, error) {
	platforms, err := s.platforms.List(ctx, false)
	if err != nil {
		return nil, err
	}
	sales, err := s.sales.List(ctx, repository.SaleQuery{PlatformID: f.PlatformID, From: f.From, To: f.To})
	if err != nil {
		return nil, err
	}

	items := make(map[uuid.UUID]*PlatformProfitability)
	var order []uuid.UUID
	for _, pl := range platforms {
		if f.PlatformID != nil && pl.ID != *f.PlatformID {
			continue
		}
		items[pl.ID] = &PlatformProfitability{PlatformID: pl.ID, PlatformName: pl.Name}
		order = append(order, pl.ID)
	}

	for _, sale := range sales {
		if sale.PlatformID == nil {
			continue
		}
		item, ok := items[*sale.PlatformID]
		if !ok {
			continue
		}
		item.TotalSales++
		item.TotalQuantity += sale.Quantity
		item.TotalRevenue = item.TotalRevenue.Add(sale.TotalPrice)
		item.TotalCost = item.TotalCost.Add(sale.PlatformCost())
		item.TotalProfit = item.TotalProfit.Add(sale.Profit)
		if sale.IsRecurring {
			item.RecurringSales++
		} else {
			item.OneTimeSales++
		}
		d := sale.SaleDate
		if item.FirstSaleDate == nil || d.Before(*item.FirstSaleDate) {
			item.FirstSaleDate = &d
		}
		if item.LastSaleDate == nil || d.After(*item.LastSaleDate) {
			item.LastSaleDate = &d
		}
	}

	report := &ProfitabilityReport{Filters: f, GeneratedAt: s.now()}
	for _, id := range order {
		item := items[id]
		item.AvgProfitPerSale = avgOver(item.TotalProfit, item.TotalSales)
		item.AvgBuyingPrice = avgOver(item.TotalCost, item.TotalQuantity)
		item.AvgSellingPrice = avgOver(item.TotalRevenue, item.TotalQuantity)
		item.ProfitMarginPct = pct(item.TotalProfit, item.TotalRevenue)
		item.ROIPct = pct(item.TotalProfit, item.TotalCost)
		report.Platforms = append(report.Platforms, *item)

		report.Summary.TotalSales += item.TotalSales
		report.Summary.TotalRevenue = report.Summary.TotalRevenue.Add(item.TotalRevenue)
		report.Summary.TotalCost = report.Summary.TotalCost.Add(item.TotalCost)
		report.Summary.TotalProfit = report.Summary.TotalProfit.Add(item.TotalProfit)
	}

	sort.SliceStable(report.Platforms, func(i, j int) bool {
		return report.Platforms[i].TotalRevenue.Cmp(report.Platforms[j].TotalRevenue) > 0
	})

	report.Summary.PlatformCount = len(report.Platforms)
	report.Summary.ProfitMarginPct = pct(report.Summary.TotalProfit, report.Summary.TotalRevenue)
	if n := len(report.Platforms); n > 0 {
		report.Summary.MostProfitable = &report.Platforms[0]
		report.Summary.LeastProfitable = &report.Platforms[n-1]
	}
	return report, nil
}
