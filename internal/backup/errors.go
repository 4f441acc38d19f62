package backup

import (
	"errors"
	"fmt"
)

var (
	ErrCreationFailed           = errors.New("backup creation failed")
	ErrNotFound                 = errors.New("backup not found")
	ErrFileMissing              = errors.New("backup file missing")
	ErrRestoreFailed            = errors.New("restore failed")
	ErrVerificationInconclusive = errors.New("verification inconclusive")
	ErrTimeout                  = errors.New("operation timed out")
	ErrInvalidArgument          = errors.New("invalid argument")
)

// Error is returned by every backup operation. Kind is one of the sentinel
// errors above, so callers can branch with errors.Is(err, backup.ErrNotFound).
type Error struct {
	Kind     error
	Op       string
	BackupID string
	Err      error
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.BackupID != "" {
		msg = fmt.Sprintf("%s (backup %s)", msg, e.BackupID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewError builds an *Error. A nil cause is allowed.
func NewError(kind error, op, backupID string, cause error) *Error {
	return &Error{Kind: kind, Op: op, BackupID: backupID, Err: cause}
}

// KindOf returns the sentinel kind carried by err, or nil when err did not
// originate from this package.
func KindOf(err error) error {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return nil
}
