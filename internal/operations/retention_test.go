package operations

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kebairia/backupctl/internal/backup"
	"github.com/kebairia/backupctl/internal/config"
	"github.com/kebairia/backupctl/internal/logger"
)

func TestRetentionKeepsNewest(t *testing.T) {
	h := newHarness(t, func(c *config.BackupConfig) { c.MaxBackups = 3 })
	ctx := context.Background()

	var recs []*backup.Record
	for i := 0; i < 3; i++ {
		rec, err := h.manager.CreateFullBackup(ctx, "")
		require.NoError(t, err)
		recs = append(recs, rec)
	}
	for _, tables := range [][]string{{"users"}, {"orders"}} {
		rec, err := h.manager.CreateTableBackup(ctx, tables, "")
		require.NoError(t, err)
		recs = append(recs, rec)
	}

	assert.Equal(t, int64(3), h.count(t))
	assert.Len(t, h.artifacts(t), 3)

	for _, rec := range recs[:2] {
		_, err := h.store.Get(ctx, rec.ID)
		assert.ErrorIs(t, err, backup.ErrNotFound)
		assert.NoFileExists(t, rec.FilePath)
	}
	for _, rec := range recs[2:] {
		_, err := h.store.Get(ctx, rec.ID)
		assert.NoError(t, err)
		assert.FileExists(t, rec.FilePath)
	}
}

func TestRetentionMissingFileStillEvicts(t *testing.T) {
	h := newHarness(t, func(c *config.BackupConfig) { c.MaxBackups = 1 })
	ctx := context.Background()

	old, err := h.manager.CreateFullBackup(ctx, "")
	require.NoError(t, err)
	require.NoError(t, os.Remove(old.FilePath))

	_, err = h.manager.CreateFullBackup(ctx, "")
	require.NoError(t, err)

	_, err = h.store.Get(ctx, old.ID)
	assert.ErrorIs(t, err, backup.ErrNotFound)
	assert.Equal(t, int64(1), h.count(t))
}

func TestRetentionRemovesOffsiteCopies(t *testing.T) {
	mirror := newFakeMirror()
	h := newHarness(t, func(c *config.BackupConfig) { c.MaxBackups = 1 }, WithMirror(mirror))
	ctx := context.Background()

	old, err := h.manager.CreateFullBackup(ctx, "")
	require.NoError(t, err)
	current, err := h.manager.CreateFullBackup(ctx, "")
	require.NoError(t, err)

	assert.Equal(t, []string{old.Offsite}, mirror.removed)
	assert.Contains(t, mirror.objects, current.Offsite)
	assert.NotContains(t, mirror.objects, old.Offsite)
}

func TestRetentionReportsFailuresWithoutAborting(t *testing.T) {
	mirror := newFakeMirror()
	h := newHarness(t, func(c *config.BackupConfig) { c.MaxBackups = 0 }, WithMirror(mirror))
	ctx := context.Background()

	var recs []*backup.Record
	for i := 0; i < 3; i++ {
		rec, err := h.manager.CreateFullBackup(ctx, "")
		require.NoError(t, err)
		recs = append(recs, rec)
	}
	require.Equal(t, int64(3), h.count(t))

	mirror.removeErr = errors.New("access denied")
	report := NewRetention(h.store, mirror, logger.Nop(), nil).Cleanup(ctx, 1)

	assert.True(t, report.Failed())
	require.Len(t, report.Failures, 2)
	for _, f := range report.Failures {
		assert.Equal(t, StepOffsite, f.Step)
	}
	assert.ElementsMatch(t, []string{recs[0].ID, recs[1].ID}, report.Evicted)
	assert.Equal(t, int64(1), h.count(t))
	assert.ErrorContains(t, report.Err(), "access denied")
}

func TestRetentionDisabled(t *testing.T) {
	h := newHarness(t, func(c *config.BackupConfig) { c.MaxBackups = 0 })
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := h.manager.CreateFullBackup(ctx, "")
		require.NoError(t, err)
	}

	report := NewRetention(h.store, nil, nil, nil).Cleanup(ctx, 0)
	assert.Empty(t, report.Evicted)
	assert.False(t, report.Failed())
	assert.NoError(t, report.Err())
	assert.Equal(t, int64(4), h.count(t))
}

func TestRetentionAtLimitIsNoop(t *testing.T) {
	h := newHarness(t, func(c *config.BackupConfig) { c.MaxBackups = 2 })
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := h.manager.CreateFullBackup(ctx, "")
		require.NoError(t, err)
	}

	report := NewRetention(h.store, nil, nil, nil).Cleanup(ctx, 2)
	assert.Empty(t, report.Evicted)
	assert.Equal(t, int64(2), h.count(t))
}
