package operations

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kebairia/backupctl/internal/backup"
)

func TestVerifyBackup(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	verifier := NewVerifier(h.manager)

	rec, err := h.manager.CreateFullBackup(ctx, "")
	require.NoError(t, err)

	res, err := verifier.VerifyBackup(ctx, rec.ID)
	require.NoError(t, err)
	assert.True(t, res.IsValid)
	assert.Equal(t, backup.StatusVerified, res.Status)
	assert.Equal(t, rec.Size, res.Size)
	assert.Equal(t, rec.ID, res.BackupID)

	stored, err := h.store.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, backup.StatusVerified, stored.Status)

	again, err := verifier.VerifyBackup(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, res.Status, again.Status)
	assert.Equal(t, res.IsValid, again.IsValid)
}

func TestVerifyBackupEmptyFile(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	rec, err := h.manager.CreateFullBackup(ctx, "")
	require.NoError(t, err)
	require.NoError(t, os.Truncate(rec.FilePath, 0))

	res, err := NewVerifier(h.manager).VerifyBackup(ctx, rec.ID)
	require.NoError(t, err)
	assert.False(t, res.IsValid)
	assert.Equal(t, backup.StatusCorrupted, res.Status)
	assert.Zero(t, res.Size)

	stored, err := h.store.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, backup.StatusCorrupted, stored.Status)
}

func TestVerifyBackupFileMissing(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	rec, err := h.manager.CreateFullBackup(ctx, "")
	require.NoError(t, err)
	require.NoError(t, os.Remove(rec.FilePath))

	_, err = NewVerifier(h.manager).VerifyBackup(ctx, rec.ID)
	assert.ErrorIs(t, err, backup.ErrFileMissing)

	stored, err := h.store.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, backup.StatusCompleted, stored.Status)
}

func TestVerifyBackupNotFound(t *testing.T) {
	h := newHarness(t, nil)

	_, err := NewVerifier(h.manager).VerifyBackup(context.Background(), "no-such-id")
	assert.ErrorIs(t, err, backup.ErrNotFound)
}
