package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var remoteRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "recordmirror",
	Subsystem: "gateway",
	Name:      "requests_total",
	Help:      "Remote collection calls by operation and outcome.",
}, []string{"op", "outcome"})

func observe(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	remoteRequests.WithLabelValues(op, outcome).Inc()
}
