package database

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/kebairia/backupctl/internal/logger"
)

const EngineMySQL = "mysql"

// sinceLayout is the literal format MySQL accepts for DATETIME comparisons.
const sinceLayout = "2006-01-02 15:04:05"

// MySQLOption lets you override default settings on a MySQL.
type MySQLOption func(*MySQL)

// MySQL dumps with mysqldump and restores by piping the file into mysql.
type MySQL struct {
	Username      string
	Password      string
	Database      string
	Host          string
	Port          string
	DumpBinary    string
	RestoreBinary string
	// IncrementalColumn names a timestamp column present in every table. When
	// set, incremental dumps only include rows where it is >= since.
	IncrementalColumn string
	Timeout           time.Duration
	Logger            logger.Logger
}

var _ Executor = (*MySQL)(nil)

// NewMySQL returns a MySQL for conn plus any overrides.
func NewMySQL(conn Connection, opts ...MySQLOption) *MySQL {
	m := &MySQL{
		Username:      conn.Username,
		Password:      conn.Password,
		Database:      conn.Database,
		Host:          conn.Host,
		Port:          conn.Port,
		DumpBinary:    "mysqldump",
		RestoreBinary: "mysql",
		Logger:        logger.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// WithMySQLCredentials sets username and password.
func WithMySQLCredentials(user, pass string) MySQLOption {
	return func(m *MySQL) {
		if user != "" {
			m.Username = user
		}
		if pass != "" {
			m.Password = pass
		}
	}
}

// WithMySQLBinaries overrides the mysqldump and mysql executables.
func WithMySQLBinaries(dump, restore string) MySQLOption {
	return func(m *MySQL) {
		if dump != "" {
			m.DumpBinary = dump
		}
		if restore != "" {
			m.RestoreBinary = restore
		}
	}
}

func WithMySQLIncrementalColumn(column string) MySQLOption {
	return func(m *MySQL) {
		m.IncrementalColumn = column
	}
}

// WithMySQLTimeout bounds every mysqldump/mysql invocation.
func WithMySQLTimeout(timeout time.Duration) MySQLOption {
	return func(m *MySQL) {
		m.Timeout = timeout
	}
}

func WithMySQLLogger(log logger.Logger) MySQLOption {
	return func(m *MySQL) {
		if log != nil {
			m.Logger = log
		}
	}
}

func (m *MySQL) connArgs() []string {
	var args []string
	if m.Host != "" {
		args = append(args, "-h", m.Host)
	}
	if m.Port != "" {
		args = append(args, "-P", m.Port)
	}
	if m.Username != "" {
		args = append(args, "-u", m.Username)
	}
	return args
}

// dumpArgs places options before the database name; tables follow it.
func (m *MySQL) dumpArgs(outputPath string, opts []string, tables []string) []string {
	args := m.connArgs()
	args = append(args, "--single-transaction", "--result-file="+outputPath)
	args = append(args, opts...)
	args = append(args, m.Database)
	return append(args, tables...)
}

func (m *MySQL) incrementalArgs(outputPath string, since time.Time) []string {
	opts := []string{"--no-create-info"}
	if m.IncrementalColumn != "" {
		where := fmt.Sprintf("`%s` >= '%s'", m.IncrementalColumn, since.UTC().Format(sinceLayout))
		opts = append(opts, "--where="+where)
	}
	return m.dumpArgs(outputPath, opts, nil)
}

func (m *MySQL) run(ctx context.Context, binary string, args []string, stdin *os.File) error {
	c := command{
		binary: binary,
		args:   args,
		// Pass MYSQL_PWD for non-interactive auth
		env: []string{"MYSQL_PWD=" + m.Password},
	}
	if stdin != nil {
		c.stdin = stdin
	}
	return runCommand(ctx, m.Timeout, c)
}

// DumpFull runs mysqldump against the whole database.
func (m *MySQL) DumpFull(ctx context.Context, outputPath string) error {
	kv := []any{"database", m.Database, "engine", EngineMySQL, "path", outputPath}
	return timed(m.Logger, "full dump", kv, func() error {
		return m.run(ctx, m.DumpBinary, m.dumpArgs(outputPath, nil, nil), nil)
	})
}

// DumpIncremental dumps data only, filtered on IncrementalColumn when one is
// configured.
func (m *MySQL) DumpIncremental(ctx context.Context, outputPath string, since time.Time) error {
	if m.IncrementalColumn == "" {
		m.Logger.Warn("no incremental column configured, dumping all data",
			"database", m.Database,
			"since", since.UTC().Format(time.RFC3339),
		)
	}
	kv := []any{"database", m.Database, "engine", EngineMySQL, "path", outputPath}
	return timed(m.Logger, "incremental dump", kv, func() error {
		return m.run(ctx, m.DumpBinary, m.incrementalArgs(outputPath, since), nil)
	})
}

// DumpTables runs mysqldump restricted to tables.
func (m *MySQL) DumpTables(ctx context.Context, outputPath string, tables []string) error {
	if len(tables) == 0 {
		return fmt.Errorf("%w: no tables given", ErrBackupFailed)
	}
	kv := []any{"database", m.Database, "engine", EngineMySQL, "path", outputPath, "tables", tables}
	return timed(m.Logger, "table dump", kv, func() error {
		return m.run(ctx, m.DumpBinary, m.dumpArgs(outputPath, nil, tables), nil)
	})
}

// Restore pipes a dump file into the mysql client.
func (m *MySQL) Restore(ctx context.Context, inputPath string) error {
	file, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("%w: open backup file: %w", ErrRestoreFailed, err)
	}
	defer file.Close()

	args := append(m.connArgs(), m.Database)
	kv := []any{"database", m.Database, "engine", EngineMySQL, "source", inputPath}
	return timed(m.Logger, "restore", kv, func() error {
		return wrapRestore(m.run(ctx, m.RestoreBinary, args, file))
	})
}

func (m *MySQL) Engine() string { return EngineMySQL }

func (m *MySQL) Target() string {
	return Connection{Engine: EngineMySQL, Host: m.Host, Port: m.Port, Database: m.Database}.Redacted()
}
