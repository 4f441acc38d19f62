package operations

import (
	"context"
	"errors"
	"os"

	"github.com/kebairia/backupctl/internal/backup"
)

// Verifier performs a shallow integrity check: an artifact is valid when it
// exists and is not empty. The content is not parsed.
type Verifier struct {
	m *Manager
}

func NewVerifier(m *Manager) *Verifier {
	return &Verifier{m: m}
}

func (v *Verifier) VerifyBackup(ctx context.Context, id string) (*backup.VerifyResult, error) {
	const op = "verify backup"
	m := v.m

	rec, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, lookupError(op, id, err)
	}

	info, err := os.Stat(rec.FilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, backup.NewError(backup.ErrFileMissing, op, id, err)
		}
		return nil, backup.NewError(backup.ErrVerificationInconclusive, op, id, err)
	}

	valid := info.Mode().IsRegular() && info.Size() > 0
	status := backup.StatusVerified
	if !valid {
		status = backup.StatusCorrupted
	}
	if err := m.store.UpdateStatus(ctx, id, status); err != nil {
		return nil, backup.NewError(backup.ErrVerificationInconclusive, op, id, err)
	}
	m.metrics.verifications.WithLabelValues(string(status)).Inc()
	m.log.Info("backup verified", "id", id, "status", status, "size", info.Size())

	return &backup.VerifyResult{
		BackupID:   id,
		IsValid:    valid,
		Size:       info.Size(),
		Status:     status,
		VerifiedAt: m.clock(),
	}, nil
}
