package nutrisync

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var initSeedFoods bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the local nutrisync database",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(ctx context.Context, rt *runtime) error {
			fmt.Fprintf(cmd.OutOrStdout(), "Initialized nutrisync database at %s\n", rt.dbPath)
			if !initSeedFoods {
				return nil
			}
			n, err := rt.svc.SeedDefaultFoods(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d foods\n", n)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initSeedFoods, "seed-foods", false, "Load the starter food catalog into an empty database")
}
