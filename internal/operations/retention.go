package operations

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/kebairia/backupctl/internal/backup"
	"github.com/kebairia/backupctl/internal/logger"
)

// Cleanup steps, in the order they run for each evicted record.
const (
	StepFile    = "file"
	StepOffsite = "offsite"
	StepRecord  = "record"
)

// Retention keeps the newest maxBackups records and evicts the rest.
type Retention struct {
	store   backup.Store
	mirror  Mirror
	log     logger.Logger
	metrics *Metrics
}

// CleanupFailure is a retention step that did not succeed.
type CleanupFailure struct {
	BackupID string
	Step     string
	Err      error
}

func (f CleanupFailure) Error() string {
	return fmt.Sprintf("retention %s step for backup %s: %v", f.Step, f.BackupID, f.Err)
}

type CleanupReport struct {
	// Evicted holds the ids whose record was deleted.
	Evicted  []string
	Failures []CleanupFailure
}

func (r CleanupReport) Failed() bool { return len(r.Failures) > 0 }

// Err joins every failure, or returns nil.
func (r CleanupReport) Err() error {
	errs := make([]error, 0, len(r.Failures))
	for _, f := range r.Failures {
		errs = append(errs, f)
	}
	return errors.Join(errs...)
}

func NewRetention(store backup.Store, mirror Mirror, log logger.Logger, metrics *Metrics) *Retention {
	if log == nil {
		log = logger.Nop()
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Retention{store: store, mirror: mirror, log: log, metrics: metrics}
}

// Cleanup never returns an error. Each failed step is logged and reported,
// and the remaining records are still processed. A maxBackups <= 0 disables
// eviction.
func (r *Retention) Cleanup(ctx context.Context, maxBackups int) CleanupReport {
	var report CleanupReport
	if maxBackups <= 0 {
		return report
	}

	recs, err := r.store.List(ctx, 0, maxBackups)
	if err != nil {
		r.fail(&report, "", StepRecord, fmt.Errorf("failed to list backups: %w", err))
		return report
	}

	for _, rec := range recs {
		log := r.log.With("id", rec.ID, "file", rec.FileName)

		if err := os.Remove(rec.FilePath); err != nil && !errors.Is(err, os.ErrNotExist) {
			r.fail(&report, rec.ID, StepFile, err)
		}

		if rec.Offsite != "" && r.mirror != nil {
			if err := r.mirror.Remove(ctx, rec.Offsite); err != nil {
				r.fail(&report, rec.ID, StepOffsite, err)
			}
		}

		if err := r.store.Delete(ctx, rec.ID); err != nil {
			r.fail(&report, rec.ID, StepRecord, err)
			continue
		}
		report.Evicted = append(report.Evicted, rec.ID)
		r.metrics.evictions.Inc()
		log.Info("old backup removed")
	}
	return report
}

func (r *Retention) fail(report *CleanupReport, id, step string, err error) {
	report.Failures = append(report.Failures, CleanupFailure{BackupID: id, Step: step, Err: err})
	r.metrics.cleanupFailures.WithLabelValues(step).Inc()
	r.log.Error("retention step failed", "id", id, "step", step, "error", err)
}
