package operations

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kebairia/backupctl/internal/backup"
)

// Restorer replays backup artifacts into the database, taking a full safety
// snapshot first.
type Restorer struct {
	m *Manager
}

func NewRestorer(m *Manager) *Restorer {
	return &Restorer{m: m}
}

func SafetyDescription(id string) string {
	return fmt.Sprintf("Pre-restore backup for %s", id)
}

func (r *Restorer) RestoreBackup(ctx context.Context, id string) (*backup.RestoreResult, error) {
	const op = "restore backup"
	m := r.m
	log := m.log.With("id", id)

	rec, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, lookupError(op, id, err)
	}
	if _, err := os.Stat(rec.FilePath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, backup.NewError(backup.ErrFileMissing, op, id, err)
		}
		return nil, backup.NewError(backup.ErrRestoreFailed, op, id, err)
	}
	if rec.Status == backup.StatusCorrupted {
		return nil, backup.NewError(backup.ErrInvalidArgument, op, id,
			errors.New("backup failed verification and cannot be restored"))
	}

	safety, err := m.createFull(ctx, SafetyDescription(id))
	if err != nil {
		r.m.metrics.restores.WithLabelValues(outcome(err)).Inc()
		return nil, err
	}
	log.Info("safety snapshot created", "safety_id", safety.ID)

	// retention runs once the source artifact is no longer needed
	defer m.enforceRetention(context.WithoutCancel(ctx))

	began := time.Now()
	err = r.replay(ctx, rec)
	m.metrics.duration.WithLabelValues("restore").Observe(time.Since(began).Seconds())
	m.metrics.restores.WithLabelValues(outcome(err)).Inc()
	if err != nil {
		log.Error("restore failed", "error", err, "safety_id", safety.ID)
		return nil, restoreError(op, id, err)
	}

	restoredAt := m.clock()
	if err := m.store.UpdateStatus(ctx, id, backup.StatusRestored); err != nil {
		log.Error("database restored but status update failed", "error", err)
	}
	log.Info("backup restored", "safety_id", safety.ID)

	return &backup.RestoreResult{
		BackupID:       id,
		RestoredAt:     restoredAt,
		SafetyBackupID: safety.ID,
	}, nil
}

func (r *Restorer) replay(ctx context.Context, rec *backup.Record) error {
	m := r.m
	release, err := m.locker.Acquire(ctx, m.exec.Target())
	if err != nil {
		return err
	}
	defer release()

	source := rec.FilePath
	if rec.Compressed {
		tmp, err := DecompressZstd(rec.FilePath, m.cfg.Directory)
		if err != nil {
			return err
		}
		defer removeArtifact(m.log, tmp)
		source = tmp
	}
	return m.exec.Restore(ctx, source)
}
