package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики оркестратора. Экспортируются на /metrics командой `mrot schedule`.
var (
	// WorkflowTriggers — вызовы dispatch по результату (accepted, rejected, error).
	WorkflowTriggers = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mrot_workflow_triggers_total",
		Help: "Total workflow_dispatch calls by result",
	}, []string{"result"})

	// WorkflowPolls — опросы статуса по результату (success, failure, pending, rate_limited).
	WorkflowPolls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mrot_workflow_polls_total",
		Help: "Total workflow status polls by outcome",
	}, []string{"outcome"})

	// StepDuration — длительность шага от trigger до финального состояния.
	StepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mrot_step_duration_seconds",
		Help:    "Duration of orchestration steps from trigger to terminal state",
		Buckets: []float64{10, 30, 60, 120, 300, 600, 1200, 1800, 3600},
	}, []string{"status"})

	// Orchestrations — завершённые оркестрации по итоговому статусу.
	Orchestrations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mrot_orchestrations_total",
		Help: "Total finished orchestrations by status",
	}, []string{"status"})

	// StepsInFlight — шаги, запущенные и ещё не завершённые.
	StepsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mrot_steps_in_flight",
		Help: "Number of steps currently between trigger and terminal state",
	})
)
