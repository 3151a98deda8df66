package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	evaluationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "posting",
			Name:      "evaluations_total",
			Help:      "Template evaluations by outcome",
		},
		[]string{"outcome"},
	)
	templateCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "posting",
			Name:      "template_cache_requests_total",
			Help:      "Compiled template cache lookups by result",
		},
		[]string{"result"},
	)
	compilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "posting",
			Name:      "template_compiles_total",
			Help:      "Template compilations by outcome",
		},
		[]string{"outcome"},
	)
)
