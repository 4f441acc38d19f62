package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/kebairia/backupctl/internal/backup"
	"github.com/kebairia/backupctl/internal/operations"
)

var description string

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Create a backup of the configured database",
}

var backupFullCmd = &cobra.Command{
	Use:   "full",
	Short: "Dump the whole database",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBackup(cmd, func(ctx context.Context, m *operations.Manager) (*backup.Record, error) {
			return m.CreateFullBackup(ctx, description)
		})
	},
}

var backupIncrementalCmd = &cobra.Command{
	Use:   "incremental",
	Short: "Dump changes since the most recent backup",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBackup(cmd, func(ctx context.Context, m *operations.Manager) (*backup.Record, error) {
			return m.CreateIncrementalBackup(ctx, description)
		})
	},
}

var backupTableCmd = &cobra.Command{
	Use:   "table TABLE...",
	Short: "Dump the named tables",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBackup(cmd, func(ctx context.Context, m *operations.Manager) (*backup.Record, error) {
			return m.CreateTableBackup(ctx, args, description)
		})
	},
}

func runBackup(
	cmd *cobra.Command,
	create func(context.Context, *operations.Manager) (*backup.Record, error),
) error {
	return withOperations(cmd.Context(), nil, func(ctx context.Context, om *operations.OperationManager) error {
		rec, err := create(ctx, om.Manager)
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), OutputFormat, rec)
	})
}

func init() {
	for _, c := range []*cobra.Command{backupFullCmd, backupIncrementalCmd, backupTableCmd} {
		c.Flags().StringVarP(&description, "description", "d", "", "free-form description stored with the backup")
		backupCmd.AddCommand(c)
	}
}
