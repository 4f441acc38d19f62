package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/kebairia/backupctl/internal/operations"
)

var listLimit, listOffset int

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List backups, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withOperations(cmd.Context(), nil, func(ctx context.Context, om *operations.OperationManager) error {
			recs, err := om.Manager.ListBackups(ctx, listLimit, listOffset)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), OutputFormat, recs)
		})
	},
}

var showCmd = &cobra.Command{
	Use:   "show [BACKUP_ID]",
	Short: "Show one backup, or the most recent one",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withOperations(cmd.Context(), nil, func(ctx context.Context, om *operations.OperationManager) error {
			if len(args) == 0 {
				rec, err := om.Manager.GetLastBackup(ctx)
				if err != nil {
					return err
				}
				if rec == nil {
					cmd.PrintErrln("no backups yet")
					return nil
				}
				return render(cmd.OutOrStdout(), OutputFormat, rec)
			}
			rec, err := om.Manager.GetBackup(ctx, args[0])
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), OutputFormat, rec)
		})
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize stored backups",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withOperations(cmd.Context(), nil, func(ctx context.Context, om *operations.OperationManager) error {
			stats, err := om.Manager.GetStats(ctx)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), OutputFormat, stats)
		})
	},
}

func init() {
	listCmd.Flags().IntVarP(&listLimit, "limit", "n", 0, "maximum number of backups to show (0 for all)")
	listCmd.Flags().IntVar(&listOffset, "offset", 0, "number of backups to skip")
}
