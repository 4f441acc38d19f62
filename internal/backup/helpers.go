package backup

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const (
	sqlExt  = ".sql"
	zstdExt = ".zst"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z0-9_$][A-Za-z0-9_$.-]*$`)

func EnsureDirectoryExist(dirPath string) error {
	if err := os.MkdirAll(dirPath, 0o755); err != nil {
		return fmt.Errorf("failed to create backup directory %q: %w", dirPath, err)
	}
	return nil
}

// Timestamp renders t as an ISO-8601 UTC instant with ':' and '.' replaced by
// '-', e.g. 2026-10-19T08-30-00-123Z.
func Timestamp(t time.Time) string {
	iso := t.UTC().Format("2006-01-02T15:04:05.000Z")
	return strings.NewReplacer(":", "-", ".", "-").Replace(iso)
}

// FileName returns the artifact name for a backup of the given type.
func FileName(typ Type, tables []string, at time.Time) string {
	ts := Timestamp(at)
	switch typ {
	case TypeIncremental:
		return "incremental_backup_" + ts + sqlExt
	case TypeTable:
		return "table_backup_" + strings.Join(tables, ",") + "_" + ts + sqlExt
	default:
		return "full_backup_" + ts + sqlExt
	}
}

// UniquePath joins dir and name, inserting a _<n> counter before the
// extension while the path is already taken.
func UniquePath(dir, name string) (string, string, error) {
	base := strings.TrimSuffix(name, sqlExt)
	candidate := name
	for n := 1; ; n++ {
		path := filepath.Join(dir, candidate)
		_, err := os.Stat(path)
		if errors.Is(err, os.ErrNotExist) {
			if _, err := os.Stat(path + zstdExt); errors.Is(err, os.ErrNotExist) {
				return candidate, path, nil
			}
		} else if err != nil {
			return "", "", fmt.Errorf("stat %q: %w", path, err)
		}
		candidate = fmt.Sprintf("%s_%d%s", base, n, sqlExt)
	}
}

// ValidateTables rejects empty lists and names that are not plain
// identifiers, optionally schema-qualified.
func ValidateTables(tables []string) error {
	if len(tables) == 0 {
		return errors.New("at least one table name is required")
	}
	for _, t := range tables {
		if !tableNamePattern.MatchString(t) {
			return fmt.Errorf("invalid table name %q", t)
		}
	}
	return nil
}

// FileChecksum returns the sha256 hex digest and the byte length of path.
func FileChecksum(path string) (string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer file.Close()

	hash := sha256.New()
	size, err := io.Copy(hash, file)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(hash.Sum(nil)), size, nil
}
