package mirror

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var mutations = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "recordmirror",
	Subsystem: "store",
	Name:      "mutations_total",
	Help:      "Store mutations by operation, record origin and result.",
}, []string{"op", "origin", "result"})

var storeSize = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "recordmirror",
	Subsystem: "store",
	Name:      "records",
	Help:      "Records currently held by the store.",
})

func observeMutation(op string, origin Origin, err error) {
	result := "committed"
	if err != nil {
		result = "rejected"
	}
	mutations.WithLabelValues(op, origin.String(), result).Inc()
}
