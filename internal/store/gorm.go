// Package store persists backup records with gorm.
package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/kebairia/backupctl/internal/backup"
)

// GormStore implements backup.Store on top of a gorm connection.
type GormStore struct {
	db *gorm.DB
}

var _ backup.Store = (*GormStore)(nil)

// Open connects to the metadata database and migrates the backup_records table.
// driver is "sqlite" (dsn is a file path) or "mysql" (dsn is a go-sql-driver DSN).
func Open(driver, dsn string) (*GormStore, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		if dir := filepath.Dir(dsn); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create metadata directory %q: %w", dir, err)
			}
		}
		dialector = sqlite.Open(dsn)
	case "mysql":
		dialector = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported metadata driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s metadata store: %w", driver, err)
	}
	return New(db)
}

// New wraps an existing gorm connection.
func New(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&backup.Record{}); err != nil {
		return nil, fmt.Errorf("migrate backup_records: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) Create(ctx context.Context, rec *backup.Record) error {
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("insert backup record: %w", err)
	}
	return nil
}

func (s *GormStore) Get(ctx context.Context, id string) (*backup.Record, error) {
	var rec backup.Record
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, backup.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load backup record %s: %w", id, err)
	}
	return &rec, nil
}

func (s *GormStore) newestFirst(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Order("created_at DESC").Order("id DESC")
}

func (s *GormStore) List(ctx context.Context, limit, offset int) ([]backup.Record, error) {
	q := s.newestFirst(ctx)
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		// neither sqlite nor mysql accept OFFSET without LIMIT
		if limit <= 0 {
			q = q.Limit(math.MaxInt32)
		}
		q = q.Offset(offset)
	}

	var records []backup.Record
	if err := q.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list backup records: %w", err)
	}
	return records, nil
}

func (s *GormStore) Latest(ctx context.Context) (*backup.Record, error) {
	var rec backup.Record
	err := s.newestFirst(ctx).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, backup.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load latest backup record: %w", err)
	}
	return &rec, nil
}

func (s *GormStore) update(ctx context.Context, id, column string, value any) error {
	res := s.db.WithContext(ctx).Model(&backup.Record{}).Where("id = ?", id).Update(column, value)
	if res.Error != nil {
		return fmt.Errorf("update %s of backup record %s: %w", column, id, res.Error)
	}
	if res.RowsAffected == 0 {
		return backup.ErrNotFound
	}
	return nil
}

func (s *GormStore) UpdateStatus(ctx context.Context, id string, status backup.Status) error {
	return s.update(ctx, id, "status", status)
}

func (s *GormStore) SetOffsite(ctx context.Context, id, location string) error {
	return s.update(ctx, id, "offsite", location)
}

func (s *GormStore) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&backup.Record{})
	if res.Error != nil {
		return fmt.Errorf("delete backup record %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return backup.ErrNotFound
	}
	return nil
}

func (s *GormStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&backup.Record{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count backup records: %w", err)
	}
	return n, nil
}

func (s *GormStore) CountByType(ctx context.Context) (map[backup.Type]int64, error) {
	var rows []struct {
		Type  backup.Type
		Total int64
	}
	err := s.db.WithContext(ctx).Model(&backup.Record{}).
		Select("type, COUNT(*) AS total").
		Group("type").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count backup records by type: %w", err)
	}

	counts := make(map[backup.Type]int64, len(backup.Types))
	for _, t := range backup.Types {
		counts[t] = 0
	}
	for _, r := range rows {
		counts[r.Type] = r.Total
	}
	return counts, nil
}

func (s *GormStore) TotalSize(ctx context.Context) (int64, error) {
	var total int64
	err := s.db.WithContext(ctx).Model(&backup.Record{}).
		Select("COALESCE(SUM(size), 0)").
		Row().Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum backup sizes: %w", err)
	}
	return total, nil
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
