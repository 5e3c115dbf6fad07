package reporting

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/resellhub/backend/internal/models"
	"github.com/resellhub/backend/internal/repository"
)

// DefaultTTL bounds how stale a cached report may be.
const DefaultTTL = 5 * time.Minute

// PlatformSource lists platforms for aggregation.
type PlatformSource interface {
	List(ctx context.Context, activeOnly bool) ([]*models.Platform, error)
}

// SaleSource lists sales joined with product/platform names.
type SaleSource interface {
	List(ctx context.Context, q repository.SaleQuery) ([]*models.SaleDetail, error)
}

// MovementSource lists credit movements.
type MovementSource interface {
	List(ctx context.Context, q repository.MovementQuery) ([]*models.CreditMovement, int, error)
}

// Service is the read-only reporting engine. It never mutates any entity and
// owns a single process-local cache shared by all report methods; staleness up
// to the TTL is an accepted trade-off, never a data-integrity risk.
type Service struct {
	platforms PlatformSource
	sales     SaleSource
	movements MovementSource
	cache     *Cache
	log       *slog.Logger
	now       func() time.Time
}

func NewService(platforms PlatformSource, sales SaleSource, movements MovementSource, ttl time.Duration, log *slog.Logger) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		platforms: platforms,
		sales:     sales,
		movements: movements,
		cache:     NewCache(ttl),
		log:       log,
		now:       time.Now,
	}
}

// ClearCache evicts every entry whose key contains pattern, or all entries
// when pattern is empty. This is the only way to force a fresh computation
// before the TTL expires. Returns the number of entries removed.
func (s *Service) ClearCache(pattern string) int {
	n := s.cache.Clear(pattern)
	s.log.Debug("report cache cleared", "pattern", pattern, "evicted", n)
	return n
}

// cached returns the live cache entry for key or computes, stores and
// returns a fresh report. Cached payloads are treated as immutable by
// callers and returned as-is.
func cached[T any](s *Service, report, key string, compute func() (*T, error)) (*T, error) {
	if v, ok := s.cache.Get(key); ok {
		if r, ok := v.(*T); ok {
			cacheHits.WithLabelValues(report).Inc()
			return r, nil
		}
	}
	cacheMisses.WithLabelValues(report).Inc()
	r, err := compute()
	if err != nil {
		return nil, err
	}
	s.cache.Set(key, r)
	return r, nil
}

// cacheKey joins the report method name with its normalized parameters.
func cacheKey(report string, parts ...string) string {
	return report + "|" + strings.Join(parts, "|")
}

func keyUUID(id *uuid.UUID) string {
	if id == nil {
		return "-"
	}
	return id.String()
}

func keyTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

var hundred = decimal.NewFromInt(100)

// pct returns num/den as a percentage, 0 when the denominator is zero.
func pct(num, den decimal.Decimal) decimal.Decimal {
	if den.IsZero() {
		return decimal.Zero
	}
	return num.Div(den).Mul(hundred)
}

// ratio returns num/den, 0 when the denominator is zero.
func ratio(num, den decimal.Decimal) decimal.Decimal {
	if den.IsZero() {
		return decimal.Zero
	}
	return num.Div(den)
}

// avgOver returns sum/n, 0 when n is zero.
func avgOver(sum decimal.Decimal, n int) decimal.Decimal {
	if n == 0 {
		return decimal.Zero
	}
	return sum.Div(decimal.NewFromInt(int64(n)))
}
