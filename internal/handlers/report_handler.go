package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/resellhub/backend/internal/reporting"
)

// ReportHandler serves GET /api/v1/reports/*. Every endpoint accepts
// ?noCache=1, which evicts the matching cache entries before computing.
type ReportHandler struct {
	Reports *reporting.Service
	Logger  *slog.Logger
}

func (h *ReportHandler) Profitability(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := reporting.ProfitabilityFilters{
		From: parseTimeParam(q.Get("from")),
		To:   parseTimeParam(q.Get("to")),
	}
	var ok bool
	if f.PlatformID, ok = parseUUIDParam(w, q.Get("platform_id")); !ok {
		return
	}
	if noCacheRequested(r) {
		h.Reports.ClearCache("platform_profitability")
	}
	rep, err := h.Reports.PlatformProfitability(r.Context(), f)
	if err != nil {
		h.reportError(w, "profitability report", err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (h *ReportHandler) CreditUtilization(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := reporting.UtilizationFilters{
		From: parseTimeParam(q.Get("from")),
		To:   parseTimeParam(q.Get("to")),
	}
	var ok bool
	if f.PlatformID, ok = parseUUIDParam(w, q.Get("platform_id")); !ok {
		return
	}
	if noCacheRequested(r) {
		h.Reports.ClearCache("credit_utilization")
	}
	rep, err := h.Reports.CreditUtilization(r.Context(), f)
	if err != nil {
		h.reportError(w, "utilization report", err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (h *ReportHandler) SalesProfit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := reporting.SalesReportFilters{
		Category:    q.Get("category"),
		PaymentType: q.Get("payment_type"),
		From:        parseTimeParam(q.Get("from")),
		To:          parseTimeParam(q.Get("to")),
		GroupBy:     q.Get("group_by"),
	}
	var ok bool
	if f.PlatformID, ok = parseUUIDParam(w, q.Get("platform_id")); !ok {
		return
	}
	if f.ProductID, ok = parseUUIDParam(w, q.Get("product_id")); !ok {
		return
	}
	if noCacheRequested(r) {
		h.Reports.ClearCache("sales_profit")
	}
	rep, err := h.Reports.SalesProfitReport(r.Context(), f)
	if err != nil {
		if errors.Is(err, reporting.ErrInvalidGroupBy) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		h.reportError(w, "sales profit report", err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (h *ReportHandler) LowCredit(w http.ResponseWriter, r *http.Request) {
	threshold := decimal.Zero
	if raw := r.URL.Query().Get("threshold"); raw != "" {
		var err error
		threshold, err = decimal.NewFromString(raw)
		if err != nil {
			http.Error(w, `{"error":"invalid threshold"}`, http.StatusBadRequest)
			return
		}
	}
	if noCacheRequested(r) {
		h.Reports.ClearCache("low_credit_platforms")
	}
	rep, err := h.Reports.LowCreditPlatforms(r.Context(), threshold)
	if err != nil {
		h.reportError(w, "low credit report", err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (h *ReportHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := reporting.DashboardFilters{
		From: parseTimeParam(q.Get("from")),
		To:   parseTimeParam(q.Get("to")),
	}
	if noCacheRequested(r) {
		h.Reports.ClearCache("")
	}
	rep, err := h.Reports.FinancialDashboard(r.Context(), f)
	if err != nil {
		h.reportError(w, "dashboard report", err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (h *ReportHandler) reportError(w http.ResponseWriter, op string, err error) {
	h.Logger.Error(op, "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "report computation failed"})
}

func noCacheRequested(r *http.Request) bool {
	v := r.URL.Query().Get("noCache")
	return v == "1" || v == "true"
}

func parseUUIDParam(w http.ResponseWriter, raw string) (*uuid.UUID, bool) {
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		http.Error(w, `{"error":"invalid id parameter"}`, http.StatusBadRequest)
		return nil, false
	}
	return &id, true
}
