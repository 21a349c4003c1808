package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AdmissionDecisions counts budget gate outcomes by decision
	// ("allowed" or the denial reason).
	AdmissionDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taskrouter_admission_decisions_total",
		Help: "Budget gate admission decisions by outcome.",
	}, []string{"decision"})

	// ModelAttempts counts executor attempts by model and outcome.
	ModelAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taskrouter_model_attempts_total",
		Help: "Fallback executor attempts by model and outcome.",
	}, []string{"model", "outcome"})

	// RecordedSpend accumulates ledger-recorded spend per model.
	RecordedSpend = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taskrouter_recorded_spend_usd_total",
		Help: "Actual recorded spend in USD by model.",
	}, []string{"model"})
)
