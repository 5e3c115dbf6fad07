package reporting

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/resellhub/backend/internal/models"
	"github.com/resellhub/backend/internal/repository"
)

// ---------------------------------------------------------------------------
// In-memory sources. Each counts its List calls so the cache tests can prove
// a hit never re-queries the stores.
// ---------------------------------------------------------------------------

type stubPlatforms struct {
	mu        sync.Mutex
	platforms []*models.Platform
	calls     int
	err       error
}

func (s *stubPlatforms) List(_ context.Context, activeOnly bool) ([]*models.Platform, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	var out []*models.Platform
	for _, p := range s.platforms {
		if activeOnly && !p.IsActive {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (s *stubPlatforms) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type stubSales struct {
	mu    sync.Mutex
	sales []*models.SaleDetail
	calls int
	err   error
}

func (s *stubSales) List(_ context.Context, q repository.SaleQuery) ([]*models.SaleDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	var out []*models.SaleDetail
	for _, d := range s.sales {
		if q.PlatformID != nil && (d.PlatformID == nil || *d.PlatformID != *q.PlatformID) {
			continue
		}
		if q.ProductID != nil && (d.ProductID == nil || *d.ProductID != *q.ProductID) {
			continue
		}
		if q.Category != "" && d.ProductCategory != q.Category {
			continue
		}
		if q.PaymentType != "" && d.PaymentType != q.PaymentType {
			continue
		}
		if q.From != nil && d.SaleDate.Before(*q.From) {
			continue
		}
		if q.To != nil && d.SaleDate.After(*q.To) {
			continue
		}
		cp := *d
		out = append(out, &cp)
	}
	return out, nil
}

func (s *stubSales) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type stubMovements struct {
	mu        sync.Mutex
	movements []*models.CreditMovement
	calls     int
	err       error
}

func (s *stubMovements) List(_ context.Context, q repository.MovementQuery) ([]*models.CreditMovement, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, 0, s.err
	}
	var out []*models.CreditMovement
	for _, m := range s.movements {
		if q.PlatformID != uuid.Nil && m.PlatformID != q.PlatformID {
			continue
		}
		if q.From != nil && m.CreatedAt.Before(*q.From) {
			continue
		}
		if q.To != nil && m.CreatedAt.After(*q.To) {
			continue
		}
		cp := *m
		out = append(out, &cp)
	}
	return out, len(out), nil
}

// ---------------------------------------------------------------------------
// Fixtures
// ---------------------------------------------------------------------------

var reportEpoch = time.Date(2026, 4, 15, 12, 0, 0, 0, time.UTC)

func activePlatform(name string, balance int64) *models.Platform {
	return &models.Platform{
		ID:                  uuid.New(),
		Name:                name,
		CreditBalance:       decimal.NewFromInt(balance),
		LowBalanceThreshold: decimal.NewFromInt(100),
		IsActive:            true,
	}
}

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

type testEnv struct {
	svc       *Service
	platforms *stubPlatforms
	sales     *stubSales
	movements *stubMovements
	clock     time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		platforms: &stubPlatforms{},
		sales:     &stubSales{},
		movements: &stubMovements{},
		clock:     reportEpoch,
	}
	env.svc = NewService(env.platforms, env.sales, env.movements, DefaultTTL, nil)
	env.svc.now = func() time.Time { return env.clock }
	env.svc.cache.now = func() time.Time { return env.clock }
	return env
}

func (e *testEnv) advance(by time.Duration) { e.clock = e.clock.Add(by) }

// saleFor builds a SaleDetail attributed to a platform.
func saleFor(pl *models.Platform, product, category string, qty int, total, buying, profit int64, status string, date time.Time) *models.SaleDetail {
	productID := uuid.New()
	sd := &models.SaleDetail{
		Sale: models.Sale{
			ID:                  uuid.New(),
			ProductID:           &productID,
			Quantity:            qty,
			TotalPrice:          d(total),
			PlatformBuyingPrice: d(buying),
			Profit:              d(profit),
			Status:              status,
			SaleDate:            date,
		},
		ProductName:     product,
		ProductCategory: category,
	}
	if pl != nil {
		sd.PlatformID = &pl.ID
		sd.PlatformName = pl.Name
	}
	return sd
}

func movementFor(pl *models.Platform, kind string, amount int64, at time.Time) *models.CreditMovement {
	return &models.CreditMovement{
		ID:           uuid.New(),
		PlatformID:   pl.ID,
		MovementType: kind,
		Amount:       d(amount),
		CreatedAt:    at,
	}
}

// ---------------------------------------------------------------------------
// Caching through the service
// ---------------------------------------------------------------------------

func TestReportCaching(t *testing.T) {
	env := newTestEnv(t)
	env.platforms.platforms = []*models.Platform{activePlatform("supplier-a", 500)}
	ctx := context.Background()

	first, err := env.svc.PlatformProfitability(ctx, ProfitabilityFilters{})
	if err != nil {
		t.Fatalf("PlatformProfitability: %v", err)
	}
	second, err := env.svc.PlatformProfitability(ctx, ProfitabilityFilters{})
	if err != nil {
		t.Fatalf("PlatformProfitability (cached): %v", err)
	}
	if first != second {
		t.Error("a cache hit must return the stored report, not a recomputation")
	}
	if got := env.platforms.callCount(); got != 1 {
		t.Errorf("platform store queried %d times, want 1", got)
	}

	// Different parameters are a different cache key.
	other := uuid.New()
	if _, err := env.svc.PlatformProfitability(ctx, ProfitabilityFilters{PlatformID: &other}); err != nil {
		t.Fatalf("PlatformProfitability (other filter): %v", err)
	}
	if got := env.platforms.callCount(); got != 2 {
		t.Errorf("platform store queried %d times, want 2", got)
	}
}

func TestReportCacheExpiry(t *testing.T) {
	env := newTestEnv(t)
	env.platforms.platforms = []*models.Platform{activePlatform("supplier-a", 500)}
	ctx := context.Background()

	if _, err := env.svc.PlatformProfitability(ctx, ProfitabilityFilters{}); err != nil {
		t.Fatalf("PlatformProfitability: %v", err)
	}

	// Just inside the TTL: still served from cache.
	env.advance(DefaultTTL - time.Second)
	if _, err := env.svc.PlatformProfitability(ctx, ProfitabilityFilters{}); err != nil {
		t.Fatalf("PlatformProfitability: %v", err)
	}
	if got := env.platforms.callCount(); got != 1 {
		t.Errorf("platform store queried %d times before expiry, want 1", got)
	}

	// Past the TTL: recomputed.
	env.advance(2 * time.Second)
	if _, err := env.svc.PlatformProfitability(ctx, ProfitabilityFilters{}); err != nil {
		t.Fatalf("PlatformProfitability: %v", err)
	}
	if got := env.platforms.callCount(); got != 2 {
		t.Errorf("platform store queried %d times after expiry, want 2", got)
	}
}

func TestClearCache(t *testing.T) {
	env := newTestEnv(t)
	env.platforms.platforms = []*models.Platform{activePlatform("supplier-a", 500)}
	ctx := context.Background()

	if _, err := env.svc.PlatformProfitability(ctx, ProfitabilityFilters{}); err != nil {
		t.Fatalf("PlatformProfitability: %v", err)
	}
	if _, err := env.svc.CreditUtilization(ctx, UtilizationFilters{}); err != nil {
		t.Fatalf("CreditUtilization: %v", err)
	}

	// Pattern eviction touches only matching keys.
	if n := env.svc.ClearCache("platform_profitability"); n != 1 {
		t.Errorf("evicted %d entries, want 1", n)
	}
	if _, err := env.svc.CreditUtilization(ctx, UtilizationFilters{}); err != nil {
		t.Fatalf("CreditUtilization (should still be cached): %v", err)
	}
	if got := env.svc.cache.Len(); got != 1 {
		t.Errorf("cache entries after pattern clear: got %d, want 1", got)
	}

	// Empty pattern evicts everything.
	if n := env.svc.ClearCache(""); n != 1 {
		t.Errorf("evicted %d entries, want 1", n)
	}
	if got := env.svc.cache.Len(); got != 0 {
		t.Errorf("cache entries after full clear: got %d, want 0", got)
	}
}

func TestReportErrorNotCached(t *testing.T) {
	env := newTestEnv(t)
	env.platforms.err = errors.New("connection reset")
	ctx := context.Background()

	if _, err := env.svc.PlatformProfitability(ctx, ProfitabilityFilters{}); err == nil {
		t.Fatal("expected store error to propagate")
	}
	if got := env.svc.cache.Len(); got != 0 {
		t.Errorf("failed computations must not be cached, found %d entries", got)
	}

	env.platforms.err = nil
	env.platforms.platforms = []*models.Platform{activePlatform("supplier-a", 500)}
	if _, err := env.svc.PlatformProfitability(ctx, ProfitabilityFilters{}); err != nil {
		t.Fatalf("retry after store recovery: %v", err)
	}
}

// ---------------------------------------------------------------------------
// Dashboard fan-out
// ---------------------------------------------------------------------------

func TestFinancialDashboard(t *testing.T) {
	env := newTestEnv(t)
	a := activePlatform("supplier-a", 50) // below default low-credit threshold
	env.platforms.platforms = []*models.Platform{a}
	env.sales.sales = []*models.SaleDetail{
		saleFor(a, "vpn-basic", "security", 1, 100, 60, 40, models.SaleStatusPaid, reportEpoch.AddDate(0, 0, -3)),
	}
	env.movements.movements = []*models.CreditMovement{
		movementFor(a, models.MovementCreditAdded, 500, reportEpoch.AddDate(0, 0, -10)),
		movementFor(a, models.MovementSaleDeduction, 60, reportEpoch.AddDate(0, 0, -3)),
	}

	report, err := env.svc.FinancialDashboard(context.Background(), DashboardFilters{})
	if err != nil {
		t.Fatalf("FinancialDashboard: %v", err)
	}
	if report.Profitability == nil || report.CreditUtilization == nil || report.SalesProfit == nil || report.LowCredit == nil {
		t.Fatal("all four sub-reports must be present")
	}
	if report.SalesProfit.Summary.GroupCount != 1 {
		t.Errorf("sales sub-report groups: got %d, want 1", report.SalesProfit.Summary.GroupCount)
	}
	if report.LowCredit.Summary.PlatformCount != 1 {
		t.Errorf("low-credit sub-report platforms: got %d, want 1", report.LowCredit.Summary.PlatformCount)
	}
	if !report.GeneratedAt.Equal(reportEpoch) {
		t.Errorf("generated_at: got %s, want %s", report.GeneratedAt, reportEpoch)
	}
}

func TestFinancialDashboard_SubReportFailure(t *testing.T) {
	env := newTestEnv(t)
	env.platforms.platforms = []*models.Platform{activePlatform("supplier-a", 500)}
	env.sales.err = errors.New("query timeout")

	report, err := env.svc.FinancialDashboard(context.Background(), DashboardFilters{})
	if err == nil {
		t.Fatal("a failing sub-report must fail the whole dashboard")
	}
	if report != nil {
		t.Error("no partial dashboard on failure")
	}
}

// ---------------------------------------------------------------------------
// Zero-denominator helpers
// ---------------------------------------------------------------------------

func TestRatioHelpers(t *testing.T) {
	if got := pct(d(50), decimal.Zero); !got.IsZero() {
		t.Errorf("pct with zero denominator: got %s, want 0", got)
	}
	if got := pct(d(25), d(100)); !got.Equal(d(25)) {
		t.Errorf("pct(25, 100): got %s, want 25", got)
	}
	if got := ratio(d(10), decimal.Zero); !got.IsZero() {
		t.Errorf("ratio with zero denominator: got %s, want 0", got)
	}
	if got := avgOver(d(90), 0); !got.IsZero() {
		t.Errorf("avgOver with zero count: got %s, want 0", got)
	}
	if got := avgOver(d(90), 3); !got.Equal(d(30)) {
		t.Errorf("avgOver(90, 3): got %s, want 30", got)
	}
}
