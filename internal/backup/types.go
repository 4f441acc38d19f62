// Package backup holds the backup record model, its persistence contract,
// artifact naming and the error taxonomy shared by the orchestration layer.
package backup

import (
	"time"
)

// Type is the kind of dump an artifact contains.
type Type string

const (
	TypeFull        Type = "FULL"
	TypeIncremental Type = "INCREMENTAL"
	TypeTable       Type = "TABLE"
)

// Types lists every backup type in display order.
var Types = []Type{TypeFull, TypeIncremental, TypeTable}

// Status is the lifecycle state of a backup record.
type Status string

const (
	StatusCompleted Status = "COMPLETED"
	StatusVerified  Status = "VERIFIED"
	StatusCorrupted Status = "CORRUPTED"
	StatusRestored  Status = "RESTORED"
)

// Record is the persisted description of one backup artifact.
type Record struct {
	ID          string     `gorm:"primaryKey;size:36" json:"id" yaml:"id"`
	Type        Type       `gorm:"size:16;index;not null" json:"type" yaml:"type"`
	FileName    string     `gorm:"size:255;not null" json:"file_name" yaml:"file_name"`
	FilePath    string     `gorm:"size:1024;not null" json:"file_path" yaml:"file_path"`
	Description string     `gorm:"size:512" json:"description" yaml:"description"`
	Size        int64      `gorm:"not null" json:"size" yaml:"size"`
	Status      Status     `gorm:"size:16;not null" json:"status" yaml:"status"`
	Tables      []string   `gorm:"serializer:json" json:"tables,omitempty" yaml:"tables,omitempty"`
	SinceDate   *time.Time `json:"since_date,omitempty" yaml:"since_date,omitempty"`
	Compressed  bool       `gorm:"not null;default:false" json:"compressed" yaml:"compressed"`
	Checksum    string     `gorm:"size:64" json:"checksum,omitempty" yaml:"checksum,omitempty"`
	Offsite     string     `gorm:"size:1024" json:"offsite,omitempty" yaml:"offsite,omitempty"` // object key when mirrored
	CreatedAt   time.Time  `gorm:"index" json:"created_at" yaml:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" yaml:"updated_at"`
}

func (Record) TableName() string {
	return "backup_records"
}

// Stats aggregates the retained backup set.
type Stats struct {
	Total      int64          `json:"total"       yaml:"total"`
	ByType     map[Type]int64 `json:"by_type"     yaml:"by_type"`
	TotalSize  int64          `json:"total_size"  yaml:"total_size"`
	LastBackup *Record        `json:"last_backup" yaml:"last_backup"`
}

type RestoreResult struct {
	BackupID       string    `json:"backup_id"        yaml:"backup_id"`
	RestoredAt     time.Time `json:"restored_at"      yaml:"restored_at"`
	SafetyBackupID string    `json:"safety_backup_id" yaml:"safety_backup_id"`
}

type VerifyResult struct {
	BackupID   string    `json:"backup_id"   yaml:"backup_id"`
	IsValid    bool      `json:"is_valid"    yaml:"is_valid"`
	Size       int64     `json:"size"        yaml:"size"`
	Status     Status    `json:"status"      yaml:"status"`
	VerifiedAt time.Time `json:"verified_at" yaml:"verified_at"`
}
