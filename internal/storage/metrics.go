package storage

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	storageAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "evidence",
		Subsystem: "storage",
		Name:      "attempts_total",
		Help:      "Backend put attempts by provider and outcome.",
	}, []string{"provider", "outcome"})

	storageVerifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "evidence",
		Subsystem: "storage",
		Name:      "verify_total",
		Help:      "Integrity verifications by provider and result.",
	}, []string{"provider", "result"})
)

func outcome(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

func verifyResult(ok bool) string {
	if ok {
		return "valid"
	}
	return "invalid"
}
