package operations

import (
	"errors"
	"fmt"

	"github.com/kebairia/backupctl/internal/backup"
	"github.com/kebairia/backupctl/internal/database"
)

func creationError(op, id string, err error) error {
	if errors.Is(err, database.ErrTimeout) {
		return backup.NewError(backup.ErrTimeout, op, id, err)
	}
	return backup.NewError(backup.ErrCreationFailed, op, id, err)
}

func restoreError(op, id string, err error) error {
	if errors.Is(err, database.ErrTimeout) {
		return backup.NewError(backup.ErrTimeout, op, id, err)
	}
	return backup.NewError(backup.ErrRestoreFailed, op, id, err)
}

func lookupError(op, id string, err error) error {
	if errors.Is(err, backup.ErrNotFound) {
		return backup.NewError(backup.ErrNotFound, op, id, nil)
	}
	return fmt.Errorf("%s: %w", op, err)
}
