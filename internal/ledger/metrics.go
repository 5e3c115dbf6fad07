package ledger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	movementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "credit_ledger_movements_total",
		Help: "Credit movements written, by movement type.",
	}, []string{"type"})

	rejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "credit_ledger_rejections_total",
		Help: "Ledger mutations rejected by a business rule.",
	}, []string{"reason"})
)

