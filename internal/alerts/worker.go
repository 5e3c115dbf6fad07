// Package alerts runs the periodic low-balance scan. A river job walks the
// platforms the ledger flags and emits a structured alert per platform so
// operators see replenishment needs without polling the dashboard.
package alerts

import (
	"context"
	"log/slog"

	"github.com/riverqueue/river"

	"github.com/resellhub/backend/internal/ledger"
)

// LowBalanceScanArgs is the periodic job payload. The scan takes no
// parameters; each run reads current state.
type LowBalanceScanArgs struct{}

func (LowBalanceScanArgs) Kind() string { return "low_balance_scan" }

// LowBalanceLister is the slice of the ledger the scan needs.
type LowBalanceLister interface {
	GetPlatformsWithLowBalance(ctx context.Context) ([]ledger.LowBalancePlatform, error)
}

type LowBalanceScanWorker struct {
	river.WorkerDefaults[LowBalanceScanArgs]
	Ledger LowBalanceLister
	Log    *slog.Logger
}

func NewLowBalanceScanWorker(l LowBalanceLister, log *slog.Logger) *LowBalanceScanWorker {
	if log == nil {
		log = slog.Default()
	}
	return &LowBalanceScanWorker{Ledger: l, Log: log}
}

func (w *LowBalanceScanWorker) Work(ctx context.Context, job *river.Job[LowBalanceScanArgs]) error {
	platforms, err := w.Ledger.GetPlatformsWithLowBalance(ctx)
	if err != nil {
		return err
	}
	for _, pl := range platforms {
		w.Log.Warn("platform balance below threshold",
			"platform", pl.Name,
			"balance", pl.Balance.String(),
			"threshold", pl.Threshold.String(),
			"deficit", pl.Deficit.String())
	}
	w.Log.Info("low balance scan complete", "flagged", len(platforms))
	return nil
}
