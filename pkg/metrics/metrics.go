// Copyright 2025 Certen Protocol
//
// Prometheus instrumentation for the batch pipeline: batches formed and
// closed, opinions received and rejected, threshold waits, and PoEx resets.
// Collector shape (CounterVec/SummaryVec keyed by contract, a single
// collectors slice registered together) follows the worker-node metrics
// pattern the pack's executor-committee code uses.

package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds one instance's collectors. A contract-executor process
// constructs exactly one and registers it against its own prometheus
// registry (or prometheus.DefaultRegisterer in production); tests construct
// their own against a throwaway *prometheus.Registry so repeated test runs
// never collide on global registration state.
type Metrics struct {
	BatchesFormed    *prometheus.CounterVec
	BatchesClosed    *prometheus.CounterVec
	CallsExecuted    *prometheus.CounterVec
	CallFailures     *prometheus.CounterVec
	OpinionsReceived *prometheus.CounterVec
	OpinionsRejected *prometheus.CounterVec
	ThresholdWaits   *prometheus.SummaryVec
	PoexResets       *prometheus.CounterVec
	VMRetries        *prometheus.CounterVec

	collectors []prometheus.Collector
}

// New constructs the collector set. Call Register to attach it to a
// registry; New alone never touches global state.
func New() *Metrics {
	m := &Metrics{
		BatchesFormed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "certen_executor_batches_formed_total",
				Help: "Number of batches formed by the batches manager.",
			},
			[]string{"contract"},
		),
		BatchesClosed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "certen_executor_batches_closed_total",
				Help: "Number of batches that reached a terminal outcome, by outcome.",
			},
			[]string{"contract", "outcome"},
		),
		CallsExecuted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "certen_executor_calls_executed_total",
				Help: "Number of call requests dispatched to the virtual machine.",
			},
			[]string{"contract"},
		),
		CallFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "certen_executor_call_failures_total",
				Help: "Number of call requests the virtual machine reported as failed.",
			},
			[]string{"contract"},
		),
		OpinionsReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "certen_executor_opinions_received_total",
				Help: "Number of peer opinions received, by kind.",
			},
			[]string{"contract", "kind"},
		),
		OpinionsRejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "certen_executor_opinions_rejected_total",
				Help: "Number of peer opinions rejected, by reason.",
			},
			[]string{"contract", "reason"},
		),
		ThresholdWaits: prometheus.NewSummaryVec(
			prometheus.SummaryOpts{
				Name: "certen_executor_threshold_wait_seconds",
				Help: "Time from entering SHARE_OPINIONS to threshold being met.",
			},
			[]string{"contract"},
		),
		PoexResets: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "certen_executor_poex_resets_total",
				Help: "Number of times a proof-of-execution accumulator was reset to a checkpoint.",
			},
			[]string{"contract"},
		),
		VMRetries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "certen_executor_vm_retries_total",
				Help: "Number of virtual machine call retries after a transient failure.",
			},
			[]string{"contract"},
		),
	}
	m.collectors = []prometheus.Collector{
		m.BatchesFormed, m.BatchesClosed, m.CallsExecuted, m.CallFailures,
		m.OpinionsReceived, m.OpinionsRejected, m.ThresholdWaits,
		m.PoexResets, m.VMRetries,
	}
	return m
}

// Register attaches every collector to reg. Registering the same Metrics
// instance twice against the same registry returns the AlreadyRegistered
// error prometheus itself defines; callers that might retry should treat
// that as non-fatal.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.collectors {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}
