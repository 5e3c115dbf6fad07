package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/resellhub/backend/internal/auth"
	"github.com/resellhub/backend/internal/handlers"
	"github.com/resellhub/backend/internal/middleware"
)

type routeDeps struct {
	Auth      *auth.Handler
	AuthSvc   auth.Service
	Platforms *handlers.PlatformHandler
	Ledger    *handlers.LedgerHandler
	Sales     *handlers.SaleHandler
	Reports   *handlers.ReportHandler
}

// RegisterRoutes adds all /api/v1/ endpoints to the given mux.
// Everything except auth and /metrics sits behind BearerAuth.
func RegisterRoutes(mux *http.ServeMux, d routeDeps) {
	mux.HandleFunc("POST /api/v1/auth/register", d.Auth.Register)
	mux.HandleFunc("POST /api/v1/auth/login", d.Auth.Login)

	authn := middleware.BearerAuth(d.AuthSvc)
	protect := func(h http.HandlerFunc) http.Handler {
		return authn(h)
	}

	// Platforms
	mux.Handle("POST /api/v1/platforms", protect(d.Platforms.Create))
	mux.Handle("GET /api/v1/platforms", protect(d.Platforms.List))
	mux.Handle("GET /api/v1/platforms/low-balance", protect(d.Ledger.LowBalance))
	mux.Handle("GET /api/v1/platforms/{id}", protect(d.Platforms.Get))
	mux.Handle("PATCH /api/v1/platforms/{id}/active", protect(d.Platforms.SetActive))

	// Credit ledger
	mux.Handle("POST /api/v1/platforms/{id}/credits/add", protect(d.Ledger.AddCredits))
	mux.Handle("POST /api/v1/platforms/{id}/credits/deduct", protect(d.Ledger.DeductCredits))
	mux.Handle("POST /api/v1/platforms/{id}/credits/adjust", protect(d.Ledger.AdjustBalance))
	mux.Handle("GET /api/v1/platforms/{id}/balance", protect(d.Ledger.GetBalance))
	mux.Handle("GET /api/v1/platforms/{id}/movements", protect(d.Ledger.GetMovements))

	// Sales (each paid sale deducts platform cost in the same transaction)
	mux.Handle("POST /api/v1/sales", protect(d.Sales.CreateSale))

	// Reports
	mux.Handle("GET /api/v1/reports/profitability", protect(d.Reports.Profitability))
	mux.Handle("GET /api/v1/reports/credit-utilization", protect(d.Reports.CreditUtilization))
	mux.Handle("GET /api/v1/reports/sales-profit", protect(d.Reports.SalesProfit))
	mux.Handle("GET /api/v1/reports/low-credit", protect(d.Reports.LowCredit))
	mux.Handle("GET /api/v1/reports/dashboard", protect(d.Reports.Dashboard))

	mux.Handle("GET /metrics", promhttp.Handler())
}
