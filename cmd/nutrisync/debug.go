package nutrisync

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var debugCmd = &cobra.Command{
	Use:   "debug",
	Short: "Inspect and reset local data",
}

var debugYes bool

var debugTablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "List record tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(ctx context.Context, rt *runtime) error {
			for _, name := range rt.svc.TableNames() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		})
	},
}

var debugClearCmd = &cobra.Command{
	Use:   "clear <table>",
	Short: "Delete every row of one table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(ctx context.Context, rt *runtime) error {
			if err := rt.svc.ClearTable(ctx, args[0], debugYes); err != nil {
				return confirmHint(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %s\n", args[0])
			return nil
		})
	},
}

var debugNukeCmd = &cobra.Command{
	Use:   "nuke",
	Short: "Delete every record in the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(ctx context.Context, rt *runtime) error {
			if err := rt.svc.NukeDatabase(ctx, debugYes); err != nil {
				return confirmHint(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "All records deleted")
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(debugCmd)
	debugCmd.AddCommand(debugTablesCmd, debugClearCmd, debugNukeCmd)
	debugCmd.PersistentFlags().BoolVar(&debugYes, "yes", false, "Confirm the destructive operation")
}
