// Copyright 2025 Certen Protocol

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestRegister_AttachesAllCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New()

	if err := m.Register(reg); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	// A vec with no label combination yet is left out of Gather, so give
	// each collector one child before counting families.
	m.BatchesFormed.WithLabelValues("c")
	m.BatchesClosed.WithLabelValues("c", "successful")
	m.CallsExecuted.WithLabelValues("c")
	m.CallFailures.WithLabelValues("c")
	m.OpinionsReceived.WithLabelValues("c", "successful")
	m.OpinionsRejected.WithLabelValues("c", "signature")
	m.ThresholdWaits.WithLabelValues("c")
	m.PoexResets.WithLabelValues("c")
	m.VMRetries.WithLabelValues("c")

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather returned error: %v", err)
	}
	if len(families) != 9 {
		t.Fatalf("expected 9 registered metric families, got %d", len(families))
	}
}

func TestRegister_IsIdempotentForSameInstance(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New()

	if err := m.Register(reg); err != nil {
		t.Fatalf("first Register returned error: %v", err)
	}
	if err := m.Register(reg); err != nil {
		t.Fatalf("second Register on the same instance should be a no-op, got: %v", err)
	}
}

func TestBatchesClosed_IncrementsByOutcomeLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New()
	if err := m.Register(reg); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	m.BatchesClosed.WithLabelValues("contract-a", "successful").Inc()
	m.BatchesClosed.WithLabelValues("contract-a", "successful").Inc()
	m.BatchesClosed.WithLabelValues("contract-a", "unsuccessful").Inc()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather returned error: %v", err)
	}

	var found *dto.MetricFamily
	for _, f := range families {
		if f.GetName() == "certen_executor_batches_closed_total" {
			found = f
		}
	}
	if found == nil {
		t.Fatalf("expected certen_executor_batches_closed_total family to be present")
	}
	if len(found.Metric) != 2 {
		t.Fatalf("expected 2 label combinations, got %d", len(found.Metric))
	}
}
