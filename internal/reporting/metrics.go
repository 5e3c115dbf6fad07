package reporting

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "report_cache_hits_total",
		Help: "Report invocations served from the TTL cache.",
	}, []string{"report"})

	cacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "report_cache_misses_total",
		Help: "Report invocations that recomputed the payload.",
	}, []string{"report"})
)
