package database

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/kebairia/backupctl/internal/logger"
)

var (
	ErrTimeout       = errors.New("operation timed out")
	ErrBackupFailed  = errors.New("backup failed")
	ErrRestoreFailed = errors.New("restore failed")
)

// Executor produces and consumes dump artifacts for one target database.
// Every method blocks until the external tool exits.
type Executor interface {
	Engine() string
	// Target identifies the database without credentials. It is used as the
	// key that serializes dumps and restores.
	Target() string
	DumpFull(ctx context.Context, outputPath string) error
	// DumpIncremental dumps rows changed since the given instant when the
	// engine can filter rows, and falls back to a data-only dump otherwise.
	DumpIncremental(ctx context.Context, outputPath string, since time.Time) error
	DumpTables(ctx context.Context, outputPath string, tables []string) error
	Restore(ctx context.Context, inputPath string) error
}

// stderrLimit caps how much of a tool's stderr is carried in errors.
const stderrLimit = 4 << 10

// waitDelay bounds how long Wait blocks on I/O after the process is killed.
const waitDelay = 5 * time.Second

type command struct {
	binary string
	args   []string
	env    []string
	stdin  io.Reader
}

// runCommand executes c under timeout. On expiry the process is killed and
// the returned error wraps ErrTimeout. A zero timeout means no limit.
func runCommand(ctx context.Context, timeout time.Duration, c command) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, timeout, ErrTimeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, c.binary, c.args...)
	cmd.Env = append(os.Environ(), c.env...)
	cmd.Stdin = c.stdin
	cmd.Stdout = io.Discard
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay

	if err := cmd.Run(); err != nil {
		if errors.Is(context.Cause(ctx), ErrTimeout) {
			return fmt.Errorf("%s killed after %s: %w", c.binary, timeout, ErrTimeout)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%s interrupted: %w", c.binary, ctxErr)
		}
		return fmt.Errorf("%s failed: %w%s", c.binary, err, formatStderr(stderr.Bytes()))
	}
	return nil
}

func formatStderr(b []byte) string {
	out := strings.TrimSpace(string(b))
	if out == "" {
		return ""
	}
	if len(out) > stderrLimit {
		out = "..." + out[len(out)-stderrLimit:]
	}
	return ": " + out
}

// wrapRestore marks a failed restore with ErrRestoreFailed. A timeout keeps
// ErrTimeout in its chain.
func wrapRestore(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrRestoreFailed, err)
}

// timed runs fn and logs its start, completion and duration.
func timed(log logger.Logger, msg string, kv []any, fn func() error) error {
	log.Info(msg+" started", kv...)
	start := time.Now()
	if err := fn(); err != nil {
		log.Error(msg+" failed", append(kv, "error", err.Error())...)
		return err
	}
	log.Info(msg+" completed", append(kv, "duration", time.Since(start).String())...)
	return nil
}
