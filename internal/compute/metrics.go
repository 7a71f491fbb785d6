package compute

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var computeExecutions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "evidence",
	Subsystem: "compute",
	Name:      "executions_total",
	Help:      "Executions by provider, verification method and verification result.",
}, []string{"provider", "method", "verified"})

func recordExecution(provider, method string, verified bool) {
	computeExecutions.WithLabelValues(provider, method, strconv.FormatBool(verified)).Inc()
}
