package operations

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the Prometheus collectors updated by the backup operations.
type Metrics struct {
	backups         *prometheus.CounterVec
	duration        *prometheus.HistogramVec
	lastSize        *prometheus.GaugeVec
	lastSuccess     *prometheus.GaugeVec
	restores        *prometheus.CounterVec
	verifications   *prometheus.CounterVec
	evictions       prometheus.Counter
	cleanupFailures *prometheus.CounterVec
	scheduledRuns   *prometheus.CounterVec
}

// NewMetrics registers the collectors with reg. A nil reg yields working but
// unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		backups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "backupctl_backups_total",
			Help: "Backup creation attempts by type and outcome.",
		}, []string{"type", "outcome"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "backupctl_operation_duration_seconds",
			Help:    "Duration of dump and restore operations.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 15),
		}, []string{"operation"}),
		lastSize: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "backupctl_backup_size_bytes",
			Help: "Size of the most recent backup artifact by type.",
		}, []string{"type"}),
		lastSuccess: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "backupctl_backup_last_success_timestamp_seconds",
			Help: "Unix time of the most recent successful backup by type.",
		}, []string{"type"}),
		restores: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "backupctl_restores_total",
			Help: "Restore attempts by outcome.",
		}, []string{"outcome"}),
		verifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "backupctl_verifications_total",
			Help: "Verification results by resulting status.",
		}, []string{"status"}),
		evictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "backupctl_retention_evictions_total",
			Help: "Backup records removed by the retention policy.",
		}),
		cleanupFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "backupctl_retention_failures_total",
			Help: "Failed retention steps by step.",
		}, []string{"step"}),
		scheduledRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "backupctl_scheduled_runs_total",
			Help: "Automatic backup runs by outcome.",
		}, []string{"outcome"}),
	}
}

func outcome(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
