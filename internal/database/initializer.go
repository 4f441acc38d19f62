package database

import (
	"context"
	"fmt"

	"github.com/kebairia/backupctl/internal/config"
	"github.com/kebairia/backupctl/internal/logger"
	"github.com/kebairia/backupctl/internal/vault"
)

// CredentialSource issues database credentials at startup.
type CredentialSource interface {
	GetDynamicCredentials(ctx context.Context, path string) (vault.DynamicCredentials, error)
}

// NewExecutor builds the Executor for cfg.Database.URL. When creds is non-nil
// the URL's user and password are overridden by credentials read from
// cfg.Vault.CredentialsPath.
func NewExecutor(
	ctx context.Context,
	cfg config.Config,
	creds CredentialSource,
	log logger.Logger,
) (Executor, error) {
	conn, err := ParseURL(cfg.Database.URL)
	if err != nil {
		return nil, err
	}

	var user, pass string
	if creds != nil {
		dyn, err := creds.GetDynamicCredentials(ctx, cfg.Vault.CredentialsPath)
		if err != nil {
			return nil, fmt.Errorf("vault read: %w", err)
		}
		user, pass = dyn.Username, dyn.Password
		log.Info("using vault issued database credentials",
			"path", cfg.Vault.CredentialsPath,
			"ttl", dyn.TTL.String(),
		)
	}

	log = log.With("engine", conn.Engine, "target", conn.Redacted())
	switch conn.Engine {
	case EnginePostgres:
		return NewPostgres(conn,
			WithPostgresCredentials(user, pass),
			WithPostgresBinaries(cfg.Database.DumpBinary, cfg.Database.RestoreBinary),
			WithPostgresTimeout(cfg.Backup.Timeout),
			WithPostgresLogger(log),
		), nil
	case EngineMySQL:
		return NewMySQL(conn,
			WithMySQLCredentials(user, pass),
			WithMySQLBinaries(cfg.Database.DumpBinary, cfg.Database.RestoreBinary),
			WithMySQLIncrementalColumn(cfg.Database.IncrementalColumn),
			WithMySQLTimeout(cfg.Backup.Timeout),
			WithMySQLLogger(log),
		), nil
	case EngineMongoDB:
		return NewMongoDB(conn,
			WithMongoCredentials(user, pass),
			WithMongoBinaries(cfg.Database.DumpBinary, cfg.Database.RestoreBinary),
			WithMongoTimeout(cfg.Backup.Timeout),
			WithMongoLogger(log),
		), nil
	default:
		return nil, fmt.Errorf("unsupported engine %q", conn.Engine)
	}
}
