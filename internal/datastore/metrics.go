// Package datastore provides type aliases and integration with the observability metrics package
package datastore

import (
	"sync/atomic"

	"github.com/pavewatch/pavewatch-go/internal/observability/metrics"
)

// Metrics is a type alias for the metrics.DatastoreMetrics
// This allows us to use the metrics throughout the datastore package
type Metrics = metrics.DatastoreMetrics

var storeMetrics atomic.Pointer[Metrics]

// SetMetrics wires the shared datastore metrics instance. Recording is a
// no-op until this is called.
func SetMetrics(m *Metrics) {
	storeMetrics.Store(m)
}

func recordDbOperation(operation, status string, durationSeconds float64) {
	if m := storeMetrics.Load(); m != nil {
		m.RecordDbOperation(operation, status, durationSeconds)
	}
}

func recordDbOperationError(operation, errorType string) {
	if m := storeMetrics.Load(); m != nil {
		m.RecordDbOperationError(operation, errorType)
	}
}

func recordQueryRows(rows int) {
	if m := storeMetrics.Load(); m != nil {
		m.RecordQueryRows(rows)
	}
}

func recordRejectedQuery(reason string) {
	if m := storeMetrics.Load(); m != nil {
		m.RecordRejectedQuery(reason)
	}
}
