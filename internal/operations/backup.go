package operations

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/kebairia/backupctl/internal/backup"
	"github.com/kebairia/backupctl/internal/config"
	"github.com/kebairia/backupctl/internal/database"
	"github.com/kebairia/backupctl/internal/lock"
	"github.com/kebairia/backupctl/internal/logger"
)

const (
	DefaultFullDescription        = "Full backup"
	DefaultIncrementalDescription = "Incremental backup"
	DefaultTableDescription       = "Table backup"

	// incrementalFallback is how far back an incremental dump reaches when no
	// previous backup exists.
	incrementalFallback = 24 * time.Hour
)

// Mirror copies finished artifacts to offsite storage.
type Mirror interface {
	Upload(ctx context.Context, fileName, localPath string) (string, error)
	Remove(ctx context.Context, key string) error
}

// Manager creates and queries backups of a single database.
type Manager struct {
	cfg       config.BackupConfig
	exec      database.Executor
	store     backup.Store
	locker    *lock.Locker
	mirror    Mirror
	retention *Retention
	metrics   *Metrics
	log       logger.Logger
	now       func() time.Time
	newID     func() string
}

type Option func(*Manager)

func WithMirror(m Mirror) Option {
	return func(mg *Manager) { mg.mirror = m }
}

func WithLocker(l *lock.Locker) Option {
	return func(mg *Manager) { mg.locker = l }
}

func WithMetrics(m *Metrics) Option {
	return func(mg *Manager) { mg.metrics = m }
}

// WithClock replaces time.Now. Returned times are converted to UTC.
func WithClock(now func() time.Time) Option {
	return func(mg *Manager) { mg.now = now }
}

func WithIDGenerator(fn func() string) Option {
	return func(mg *Manager) { mg.newID = fn }
}

func NewManager(
	cfg config.BackupConfig,
	exec database.Executor,
	store backup.Store,
	log logger.Logger,
	opts ...Option,
) *Manager {
	m := &Manager{
		cfg:   cfg,
		exec:  exec,
		store: store,
		log:   log,
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.log == nil {
		m.log = logger.Nop()
	}
	if m.metrics == nil {
		m.metrics = NewMetrics(nil)
	}
	if m.locker == nil {
		dir := cfg.LockDirectory
		if dir == "" {
			dir = cfg.Directory
		}
		m.locker = lock.New(dir)
	}
	m.retention = NewRetention(store, m.mirror, m.log, m.metrics)
	return m
}

func (m *Manager) clock() time.Time {
	return m.now().UTC()
}

// plan describes one dump. It is built while the target lock is held.
type plan struct {
	typ         backup.Type
	description string
	tables      []string
	since       *time.Time
	dump        func(ctx context.Context, path string) error
}

func (m *Manager) CreateFullBackup(ctx context.Context, description string) (*backup.Record, error) {
	rec, err := m.createFull(ctx, description)
	if err != nil {
		return nil, err
	}
	m.enforceRetention(ctx)
	return rec, nil
}

// createFull writes a full backup without running retention.
func (m *Manager) createFull(ctx context.Context, description string) (*backup.Record, error) {
	return m.create(ctx, "create full backup", func(context.Context, time.Time) (plan, error) {
		return plan{
			typ:         backup.TypeFull,
			description: orDefault(description, DefaultFullDescription),
			dump:        m.exec.DumpFull,
		}, nil
	})
}

func (m *Manager) CreateIncrementalBackup(ctx context.Context, description string) (*backup.Record, error) {
	rec, err := m.create(ctx, "create incremental backup", func(ctx context.Context, now time.Time) (plan, error) {
		since, err := m.incrementalSince(ctx, now)
		if err != nil {
			return plan{}, err
		}
		return plan{
			typ:         backup.TypeIncremental,
			description: orDefault(description, DefaultIncrementalDescription),
			since:       &since,
			dump: func(ctx context.Context, path string) error {
				return m.exec.DumpIncremental(ctx, path, since)
			},
		}, nil
	})
	if err != nil {
		return nil, err
	}
	m.enforceRetention(ctx)
	return rec, nil
}

// incrementalSince is the creation time of the newest backup of any type.
func (m *Manager) incrementalSince(ctx context.Context, now time.Time) (time.Time, error) {
	last, err := m.store.Latest(ctx)
	switch {
	case errors.Is(err, backup.ErrNotFound):
		return now.Add(-incrementalFallback), nil
	case err != nil:
		return time.Time{}, fmt.Errorf("failed to look up last backup: %w", err)
	}
	return last.CreatedAt.UTC(), nil
}

func (m *Manager) CreateTableBackup(ctx context.Context, tables []string, description string) (*backup.Record, error) {
	const op = "create table backup"
	if err := backup.ValidateTables(tables); err != nil {
		return nil, backup.NewError(backup.ErrInvalidArgument, op, "", err)
	}
	tables = append([]string(nil), tables...)

	rec, err := m.create(ctx, op, func(context.Context, time.Time) (plan, error) {
		return plan{
			typ:         backup.TypeTable,
			description: orDefault(description, DefaultTableDescription),
			tables:      tables,
			dump: func(ctx context.Context, path string) error {
				return m.exec.DumpTables(ctx, path, tables)
			},
		}, nil
	})
	if err != nil {
		return nil, err
	}
	m.enforceRetention(ctx)
	return rec, nil
}

func (m *Manager) create(
	ctx context.Context,
	op string,
	build func(ctx context.Context, now time.Time) (plan, error),
) (*backup.Record, error) {
	if err := backup.EnsureDirectoryExist(m.cfg.Directory); err != nil {
		return nil, creationError(op, "", err)
	}

	rec, err := m.dumpLocked(ctx, op, build)
	if err != nil {
		return nil, err
	}

	if m.mirror != nil {
		m.upload(ctx, rec)
	}
	return rec, nil
}

func (m *Manager) dumpLocked(
	ctx context.Context,
	op string,
	build func(ctx context.Context, now time.Time) (plan, error),
) (*backup.Record, error) {
	release, err := m.locker.Acquire(ctx, m.exec.Target())
	if err != nil {
		return nil, creationError(op, "", err)
	}
	defer release()

	// read under the lock so a waiting incremental never starts before the
	// backup it follows
	start := m.clock()

	p, err := build(ctx, start)
	if err != nil {
		return nil, creationError(op, "", err)
	}

	name, path, err := backup.UniquePath(m.cfg.Directory, backup.FileName(p.typ, p.tables, start))
	if err != nil {
		return nil, creationError(op, "", err)
	}
	log := m.log.With("type", p.typ, "file", name)

	began := time.Now()
	err = p.dump(ctx, path)
	m.metrics.duration.WithLabelValues("dump").Observe(time.Since(began).Seconds())
	if err != nil {
		removeArtifact(log, path)
		m.metrics.backups.WithLabelValues(string(p.typ), outcome(err)).Inc()
		return nil, creationError(op, "", err)
	}

	rec, err := m.finish(ctx, p, name, path, start)
	m.metrics.backups.WithLabelValues(string(p.typ), outcome(err)).Inc()
	if err != nil {
		return nil, creationError(op, "", err)
	}

	m.metrics.lastSize.WithLabelValues(string(rec.Type)).Set(float64(rec.Size))
	m.metrics.lastSuccess.WithLabelValues(string(rec.Type)).Set(float64(rec.CreatedAt.Unix()))
	log.Info("backup created", "id", rec.ID, "size", rec.Size, "compressed", rec.Compressed)
	return rec, nil
}

// finish turns a dump file into a persisted record. The artifact is removed
// on any failure.
func (m *Manager) finish(ctx context.Context, p plan, name, path string, start time.Time) (*backup.Record, error) {
	info, err := os.Stat(path)
	if err != nil {
		removeArtifact(m.log, path)
		return nil, fmt.Errorf("dump produced no artifact: %w", err)
	}
	if info.Size() == 0 {
		removeArtifact(m.log, path)
		return nil, errors.New("dump produced an empty artifact")
	}

	compressed := false
	if m.cfg.Compress {
		zpath, err := CompressZstd(path)
		if err != nil {
			removeArtifact(m.log, path)
			return nil, err
		}
		path, name, compressed = zpath, name+zstdExt, true
	}

	sum, size, err := backup.FileChecksum(path)
	if err != nil {
		removeArtifact(m.log, path)
		return nil, err
	}

	rec := &backup.Record{
		ID:          m.newID(),
		Type:        p.typ,
		FileName:    name,
		FilePath:    path,
		Description: p.description,
		Size:        size,
		Status:      backup.StatusCompleted,
		Tables:      p.tables,
		SinceDate:   p.since,
		Compressed:  compressed,
		Checksum:    sum,
		CreatedAt:   start,
		UpdatedAt:   start,
	}
	if err := m.store.Create(ctx, rec); err != nil {
		removeArtifact(m.log, path)
		return nil, fmt.Errorf("failed to save backup record: %w", err)
	}
	return rec, nil
}

// upload mirrors the artifact offsite. Failures leave the local backup intact.
func (m *Manager) upload(ctx context.Context, rec *backup.Record) {
	key, err := m.mirror.Upload(ctx, rec.FileName, rec.FilePath)
	if err != nil {
		m.log.Warn("offsite upload failed", "id", rec.ID, "error", err)
		return
	}
	if err := m.store.SetOffsite(ctx, rec.ID, key); err != nil {
		m.log.Warn("failed to record offsite location", "id", rec.ID, "key", key, "error", err)
		return
	}
	rec.Offsite = key
	m.log.Debug("backup mirrored offsite", "id", rec.ID, "key", key)
}

func (m *Manager) enforceRetention(ctx context.Context) {
	report := m.retention.Cleanup(ctx, m.cfg.MaxBackups)
	if report.Failed() {
		m.log.Warn("retention cleanup incomplete", "evicted", len(report.Evicted), "failures", len(report.Failures))
	}
}

func (m *Manager) GetBackup(ctx context.Context, id string) (*backup.Record, error) {
	rec, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, lookupError("get backup", id, err)
	}
	return rec, nil
}

// GetLastBackup returns nil without error when no backup exists.
func (m *Manager) GetLastBackup(ctx context.Context) (*backup.Record, error) {
	rec, err := m.store.Latest(ctx)
	if errors.Is(err, backup.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get last backup: %w", err)
	}
	return rec, nil
}

// ListBackups returns records newest first. A limit of 0 returns all of them.
func (m *Manager) ListBackups(ctx context.Context, limit, offset int) ([]backup.Record, error) {
	const op = "list backups"
	if limit < 0 || offset < 0 {
		return nil, backup.NewError(backup.ErrInvalidArgument, op, "",
			fmt.Errorf("limit and offset must not be negative (got %d, %d)", limit, offset))
	}
	recs, err := m.store.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return recs, nil
}

func (m *Manager) GetStats(ctx context.Context) (*backup.Stats, error) {
	total, err := m.store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("get stats: %w", err)
	}
	byType, err := m.store.CountByType(ctx)
	if err != nil {
		return nil, fmt.Errorf("get stats: %w", err)
	}
	size, err := m.store.TotalSize(ctx)
	if err != nil {
		return nil, fmt.Errorf("get stats: %w", err)
	}
	last, err := m.GetLastBackup(ctx)
	if err != nil {
		return nil, fmt.Errorf("get stats: %w", err)
	}
	return &backup.Stats{Total: total, ByType: byType, TotalSize: size, LastBackup: last}, nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func removeArtifact(log logger.Logger, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("failed to remove partial artifact", "path", path, "error", err)
	}
}
