package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/kebairia/backupctl/internal/operations"
)

var restoreCmd = &cobra.Command{
	Use:   "restore BACKUP_ID",
	Short: "Restore the database from a backup",
	Long: `restore takes a full safety backup of the current database, then replays
the given backup into it. The safety backup id is printed with the result.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withOperations(cmd.Context(), nil, func(ctx context.Context, om *operations.OperationManager) error {
			res, err := om.Restorer.RestoreBackup(ctx, args[0])
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), OutputFormat, res)
		})
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify BACKUP_ID",
	Short: "Check that a backup artifact exists and is not empty",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withOperations(cmd.Context(), nil, func(ctx context.Context, om *operations.OperationManager) error {
			res, err := om.Verifier.VerifyBackup(ctx, args[0])
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), OutputFormat, res)
		})
	},
}
