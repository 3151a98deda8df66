package journal

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var transitionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "posting",
		Name:      "entry_transitions_total",
		Help:      "Journal entries entering each status",
	},
	[]string{"status"},
)
