// Package operations wires the backup lifecycle together: creation,
// retention, restore, verification and scheduling.
package operations

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kebairia/backupctl/internal/backup"
	"github.com/kebairia/backupctl/internal/config"
	"github.com/kebairia/backupctl/internal/database"
	"github.com/kebairia/backupctl/internal/lock"
	"github.com/kebairia/backupctl/internal/logger"
	"github.com/kebairia/backupctl/internal/storage"
	"github.com/kebairia/backupctl/internal/store"
	"github.com/kebairia/backupctl/internal/vault"
)

// OperationManager holds every component built from a Config.
type OperationManager struct {
	Config    config.Config
	Store     backup.Store
	Executor  database.Executor
	Metrics   *Metrics
	Manager   *Manager
	Restorer  *Restorer
	Verifier  *Verifier
	Scheduler *Scheduler
	log       logger.Logger
}

// NewOperationManager opens the metadata store, resolves database
// credentials (through Vault when configured) and builds the components.
// reg may be nil.
func NewOperationManager(
	ctx context.Context,
	cfg config.Config,
	log logger.Logger,
	reg prometheus.Registerer,
) (*OperationManager, error) {
	st, err := store.Open(cfg.Metadata.Driver, cfg.Metadata.DSN)
	if err != nil {
		return nil, fmt.Errorf("open metadata store: %w", err)
	}

	om, err := build(ctx, cfg, st, log, reg)
	if err != nil {
		st.Close()
		return nil, err
	}
	return om, nil
}

func build(
	ctx context.Context,
	cfg config.Config,
	st backup.Store,
	log logger.Logger,
	reg prometheus.Registerer,
) (*OperationManager, error) {
	var creds database.CredentialSource
	if cfg.Vault.Enabled() {
		client, err := vault.NewClient(ctx,
			vault.WithAddress(cfg.Vault.Address),
			vault.WithToken(cfg.Vault.Token),
			vault.WithAppRole(cfg.Vault.RoleID, cfg.Vault.RoleName),
		)
		if err != nil {
			return nil, fmt.Errorf("vault: %w", err)
		}
		creds = client
	}

	exec, err := database.NewExecutor(ctx, cfg, creds, log)
	if err != nil {
		return nil, fmt.Errorf("database executor: %w", err)
	}

	metrics := NewMetrics(reg)
	opts := []Option{
		WithMetrics(metrics),
		WithLocker(lock.New(cfg.Backup.LockDirectory)),
	}
	if cfg.Offsite.Enabled {
		mirror, err := storage.NewStorage(cfg.Offsite)
		if err != nil {
			return nil, fmt.Errorf("offsite storage: %w", err)
		}
		opts = append(opts, WithMirror(mirror))
	}

	mgr := NewManager(cfg.Backup, exec, st, log, opts...)
	return &OperationManager{
		Config:    cfg,
		Store:     st,
		Executor:  exec,
		Metrics:   metrics,
		Manager:   mgr,
		Restorer:  NewRestorer(mgr),
		Verifier:  NewVerifier(mgr),
		Scheduler: NewScheduler(mgr, log, metrics),
		log:       log,
	}, nil
}

// Close stops the scheduler, waiting for a running backup within ctx, and
// closes the metadata store.
func (om *OperationManager) Close(ctx context.Context) error {
	return errors.Join(
		om.Scheduler.Stop(ctx),
		om.Store.Close(),
	)
}
