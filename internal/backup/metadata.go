package backup

import "context"

// Store persists backup records. Implementations return ErrNotFound
// (possibly wrapped) when a record does not exist.
type Store interface {
	Create(ctx context.Context, rec *Record) error
	Get(ctx context.Context, id string) (*Record, error)
	// List returns records newest first. A limit <= 0 returns every record.
	List(ctx context.Context, limit, offset int) ([]Record, error)
	// Latest returns the most recent record, or ErrNotFound when the store is empty.
	Latest(ctx context.Context) (*Record, error)
	UpdateStatus(ctx context.Context, id string, status Status) error
	SetOffsite(ctx context.Context, id, location string) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int64, error)
	CountByType(ctx context.Context) (map[Type]int64, error)
	TotalSize(ctx context.Context) (int64, error)
	Close() error
}
