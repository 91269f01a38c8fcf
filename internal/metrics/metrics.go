// Package metrics provides Prometheus metrics for dns-syncer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metric names use the dnssyncer_ prefix.
const (
	Namespace = "dnssyncer"
)

var (
	// BuildInfo carries version labels with a constant value of 1.
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "build_info",
		Help:      "Build information.",
	}, []string{"version", "go_version"})

	// CyclesTotal counts reconciliation cycles by outcome status.
	CyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "cycles_total",
		Help:      "Reconciliation cycles by status (success, partial_failure).",
	}, []string{"status"})

	// CycleDuration observes how long full cycles take.
	CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "cycle_duration_seconds",
		Help:      "Duration of reconciliation cycles.",
		Buckets:   prometheus.DefBuckets,
	})

	// TargetsGauge tracks how many targets the last cycle reconciled.
	TargetsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "targets",
		Help:      "Number of resolved targets in the last cycle.",
	})

	// RecordsCreatedTotal counts records created, per provider.
	RecordsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "records_created_total",
		Help:      "DNS records created.",
	}, []string{"provider"})

	// RecordsUpdatedTotal counts records updated, per provider.
	RecordsUpdatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "records_updated_total",
		Help:      "DNS records updated.",
	}, []string{"provider"})

	// RecordsDeletedTotal counts records deleted, per provider.
	RecordsDeletedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "records_deleted_total",
		Help:      "DNS records deleted.",
	}, []string{"provider"})

	// RecordsFailedTotal counts failed targets, per provider and
	// failure class (auth, transient, permanent).
	RecordsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "records_failed_total",
		Help:      "Targets that failed to reconcile.",
	}, []string{"provider", "class"})

	// FetchesTotal counts public-IP lookups by fetcher and outcome.
	FetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "public_ip_fetches_total",
		Help:      "Public IP lookups by fetcher and result.",
	}, []string{"fetcher", "result"})
)

// SetBuildInfo records the build metadata gauge.
func SetBuildInfo(version, goVersion string) {
	BuildInfo.WithLabelValues(version, goVersion).Set(1)
}
