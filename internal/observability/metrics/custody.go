// Package metrics provides custom Prometheus metrics for the custody workflows.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CustodyMetrics contains Prometheus metrics for custody workflow operations.
type CustodyMetrics struct {
	registry *prometheus.Registry

	operationsTotal        *prometheus.CounterVec
	operationDuration      *prometheus.HistogramVec
	componentsTransitioned *prometheus.CounterVec
	reportFailuresTotal    *prometheus.CounterVec
	auditWriteFailures     prometheus.Counter

	collectors []prometheus.Collector
}

// NewCustodyMetrics creates and registers new custody metrics.
func NewCustodyMetrics(registry *prometheus.Registry) (*CustodyMetrics, error) {
	m := &CustodyMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register custody metrics: %w", err)
	}
	return m, nil
}

func (m *CustodyMetrics) initMetrics() {
	m.operationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evmtrack_workflow_operations_total",
			Help: "Total number of custody workflow operations",
		},
		[]string{"operation", "outcome"},
	)

	m.operationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "evmtrack_workflow_duration_seconds",
			Help:    "Time taken by custody workflow operations",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount15),
		},
		[]string{"operation"},
	)

	m.componentsTransitioned = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evmtrack_components_transitioned_total",
			Help: "Total number of component status transitions by target status",
		},
		[]string{"to"},
	)

	m.reportFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evmtrack_report_failures_total",
			Help: "Total number of report rendering failures by document",
		},
		[]string{"document"},
	)

	m.auditWriteFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "evmtrack_audit_write_failures_total",
		Help: "Total number of audit sink write failures",
	})

	m.collectors = []prometheus.Collector{
		m.operationsTotal,
		m.operationDuration,
		m.componentsTransitioned,
		m.reportFailuresTotal,
		m.auditWriteFailures,
	}
}

// RecordOperation records the outcome and duration of one workflow call.
func (m *CustodyMetrics) RecordOperation(operation, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.operationsTotal.WithLabelValues(operation, outcome).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordTransitions counts n components moved to status.
func (m *CustodyMetrics) RecordTransitions(status string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.componentsTransitioned.WithLabelValues(status).Add(float64(n))
}

// RecordReportFailure counts a failed document render.
func (m *CustodyMetrics) RecordReportFailure(document string) {
	if m == nil {
		return
	}
	m.reportFailuresTotal.WithLabelValues(document).Inc()
}

// RecordAuditFailure counts a failed audit sink write.
func (m *CustodyMetrics) RecordAuditFailure() {
	if m == nil {
		return
	}
	m.auditWriteFailures.Inc()
}

// Describe implements the Collector interface
func (m *CustodyMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.collectors {
		collector.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *CustodyMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.collectors {
		collector.Collect(ch)
	}
}
