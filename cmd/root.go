package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/kebairia/backupctl/internal/backup"
	"github.com/kebairia/backupctl/internal/config"
	"github.com/kebairia/backupctl/internal/logger"
	"github.com/kebairia/backupctl/internal/operations"
)

var (
	// ConfigFile is the path to the YAML configuration.
	ConfigFile string
	// OutputFormat is yaml or json.
	OutputFormat string

	cfg config.Config
	log logger.Logger = logger.Nop()

	// rootCmd is the base command for backupctl.
	rootCmd = &cobra.Command{
		Use:   "backupctl",
		Short: "Manage database backups",
		Long: `backupctl creates, lists, verifies and restores backups of a PostgreSQL or
MySQL database, enforces a retention limit and can run on a schedule.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(OutputFormat); err != nil {
				return err
			}
			if err := cfg.Load(ConfigFile); err != nil {
				return err
			}
			l, err := logger.Init(cfg.Log.Level, cfg.Log.Format)
			if err != nil {
				return err
			}
			log = l
			return nil
		},
	}
)

// Execute runs the root command.
func Execute() {
	err := rootCmd.Execute()
	_ = log.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps backup error kinds to process exit statuses.
func exitCode(err error) int {
	switch backup.KindOf(err) {
	case backup.ErrInvalidArgument:
		return 2
	case backup.ErrNotFound, backup.ErrFileMissing:
		return 3
	case backup.ErrTimeout:
		return 4
	default:
		return 1
	}
}

// withOperations builds the components for one command and closes them
// afterwards. reg may be nil.
func withOperations(
	ctx context.Context,
	reg prometheus.Registerer,
	fn func(context.Context, *operations.OperationManager) error,
) error {
	om, err := operations.NewOperationManager(ctx, cfg, log, reg)
	if err != nil {
		return err
	}
	defer func() {
		if err := om.Close(context.WithoutCancel(ctx)); err != nil {
			log.Warn("shutdown incomplete", "error", err)
		}
	}()
	return fn(ctx, om)
}

func init() {
	rootCmd.PersistentFlags().
		StringVarP(&ConfigFile, "config", "c", "./configs/config.yaml", "path to YAML config file")
	rootCmd.PersistentFlags().
		StringVarP(&OutputFormat, "output", "o", "yaml", "output format (yaml or json)")

	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(serveCmd)
}
