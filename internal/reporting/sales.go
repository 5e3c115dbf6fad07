package reporting

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/resellhub/backend/internal/models"
	"github.com/resellhub/backend/internal/repository"
)

// Grouping dimensions for SalesProfitReport.
const (
	GroupByPlatform = "platform"
	GroupByProduct  = "product"
	GroupByCategory = "category"
	GroupByMonth    = "month"
	GroupByTotal    = "total"
)

// ErrInvalidGroupBy is returned for a grouping mode outside the set above.
var ErrInvalidGroupBy = errors.New("unsupported group_by")

// SalesReportFilters narrows and shapes SalesProfitReport. An empty GroupBy
// means GroupByTotal.
type SalesReportFilters struct {
	PlatformID  *uuid.UUID `json:"platform_id,omitempty"`
	ProductID   *uuid.UUID `json:"product_id,omitempty"`
	Category    string     `json:"category,omitempty"`
	PaymentType string     `json:"payment_type,omitempty"`
	From        *time.Time `json:"from,omitempty"`
	To          *time.Time `json:"to,omitempty"`
	GroupBy     string     `json:"group_by,omitempty"`
}

// SalesGroup is one aggregate bucket along the chosen dimension.
type SalesGroup struct {
	Key             string          `json:"key"`
	Label           string          `json:"label"`
	TotalSales      int             `json:"total_sales"`
	TotalQuantity   int             `json:"total_quantity"`
	Revenue         decimal.Decimal `json:"revenue"`
	Cost            decimal.Decimal `json:"cost"`
	Profit          decimal.Decimal `json:"profit"`
	ProfitMarginPct decimal.Decimal `json:"profit_margin_percentage"`
	ROIPct          decimal.Decimal `json:"roi_percentage"`
	PaidSales       int             `json:"paid_sales"`
	PendingSales    int             `json:"pending_sales"`
}

// SalesSummary aggregates across groups and names the best/worst group by
// revenue.
type SalesSummary struct {
	GroupCount      int             `json:"group_count"`
	TotalSales      int             `json:"total_sales"`
	Revenue         decimal.Decimal `json:"revenue"`
	Cost            decimal.Decimal `json:"cost"`
	Profit          decimal.Decimal `json:"profit"`
	ProfitMarginPct decimal.Decimal `json:"profit_margin_percentage"`
	BestGroup       *SalesGroup     `json:"best_group,omitempty"`
	WorstGroup      *SalesGroup     `json:"worst_group,omitempty"`
}

type SalesProfitReport struct {
	Summary     SalesSummary       `json:"summary"`
	Groups      []SalesGroup       `json:"groups"`
	Filters     SalesReportFilters `json:"filters"`
	GeneratedAt time.Time          `json:"generated_at"`
}

// dimension maps a sale to its group key and human label. Each grouping mode
// is a pure function pair; the aggregation pass is shared.
type dimension struct {
	key   func(*models.SaleDetail) string
	label func(*models.SaleDetail) string
}

func dimensionFor(groupBy string) (dimension, error) {
	switch groupBy {
	case "", GroupByTotal:
		return dimension{
			key:   func(*models.SaleDetail) string { return "total" },
			label: func(*models.SaleDetail) string { return "All sales" },
		}, nil
	case GroupByPlatform:
		return dimension{
			key: func(d *models.SaleDetail) string {
				if d.PlatformID == nil {
					return "unassigned"
				}
				return d.PlatformID.String()
			},
			label: func(d *models.SaleDetail) string {
				if d.PlatformName == "" {
					return "Unassigned"
				}
				return d.PlatformName
			},
		}, nil
	case GroupByProduct:
		return dimension{
			key: func(d *models.SaleDetail) string {
				if d.ProductID == nil {
					return "unassigned"
				}
				return d.ProductID.String()
			},
			label: func(d *models.SaleDetail) string {
				if d.ProductName == "" {
					return "Unassigned"
				}
				return d.ProductName
			},
		}, nil
	case GroupByCategory:
		return dimension{
			key: func(d *models.SaleDetail) string {
				if d.ProductCategory == "" {
					return "uncategorized"
				}
				return d.ProductCategory
			},
			label: func(d *models.SaleDetail) string {
				if d.ProductCategory == "" {
					return "Uncategorized"
				}
				return d.ProductCategory
			},
		}, nil
	case GroupByMonth:
		month := func(d *models.SaleDetail) string { return d.SaleDate.Format("2006-01") }
		return dimension{key: month, label: month}, nil
	default:
		return dimension{}, fmt.Errorf("%w %q", ErrInvalidGroupBy, groupBy)
	}
}

// SalesProfitReport aggregates sales into groups along one dimension, each
// group carrying the same revenue/cost/profit/margin/ROI shape.
func (s *Service) SalesProfitReport(ctx context.Context, f SalesReportFilters) (*SalesProfitReport, error) {
	dim, err := dimensionFor(f.GroupBy)
	if err != nil {
		return nil, err
	}
	key := cacheKey("sales_profit",
		keyUUID(f.PlatformID), keyUUID(f.ProductID), f.Category, f.PaymentType,
		keyTime(f.From), keyTime(f.To), f.GroupBy)
	return cached(s, "sales_profit", key, func() (*SalesProfitReport, error) {
		return s.computeSalesProfit(ctx, f, dim)
	})
}

func (s *Service) computeSalesProfit(ctx context.Context, f SalesReportFilters, dim dimension) (*SalesProfitReport, error) {
	sales, err := s.sales.List(ctx, repository.SaleQuery{
		PlatformID:  f.PlatformID,
		ProductID:   f.ProductID,
		Category:    f.Category,
		PaymentType: f.PaymentType,
		From:        f.From,
		To:          f.To,
	})
	if err != nil {
		return nil, err
	}

	groups := make(map[string]*SalesGroup)
	var order []string
	for _, sale := range sales {
		k := dim.key(sale)
		g, ok := groups[k]
		if !ok {
			g = &SalesGroup{Key: k, Label: dim.label(sale)}
			groups[k] = g
			order = append(order, k)
		}
		g.TotalSales++
		g.TotalQuantity += sale.Quantity
		g.Revenue = g.Revenue.Add(sale.TotalPrice)
		g.Cost = g.Cost.Add(sale.PlatformCost())
		g.Profit = g.Profit.Add(sale.Profit)
		if sale.Status == models.SaleStatusPaid {
			g.PaidSales++
		} else {
			g.PendingSales++
		}
	}

	report := &SalesProfitReport{Filters: f, GeneratedAt: s.now()}
	for _, k := range order {
		g := groups[k]
		g.ProfitMarginPct = pct(g.Profit, g.Revenue)
		g.ROIPct = pct(g.Profit, g.Cost)
		report.Groups = append(report.Groups, *g)

		report.Summary.TotalSales += g.TotalSales
		report.Summary.Revenue = report.Summary.Revenue.Add(g.Revenue)
		report.Summary.Cost = report.Summary.Cost.Add(g.Cost)
		report.Summary.Profit = report.Summary.Profit.Add(g.Profit)
	}

	sort.SliceStable(report.Groups, func(i, j int) bool {
		return report.Groups[i].Revenue.Cmp(report.Groups[j].Revenue) > 0
	})

	report.Summary.GroupCount = len(report.Groups)
	report.Summary.ProfitMarginPct = pct(report.Summary.Profit, report.Summary.Revenue)
	if n := len(report.Groups); n > 0 {
		report.Summary.BestGroup = &report.Groups[0]
		report.Summary.WorstGroup = &report.Groups[n-1]
	}
	return report, nil
}
