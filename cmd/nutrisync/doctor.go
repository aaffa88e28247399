package nutrisync

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var doctorFix bool

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run data integrity checks",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(ctx context.Context, rt *runtime) error {
			report, err := rt.svc.RunDoctor(ctx, doctorFix)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Orphan diary entries: %d\n", report.OrphanDiaryEntries)
			fmt.Fprintf(out, "Orphan weight entries: %d\n", report.OrphanWeightEntries)
			fmt.Fprintf(out, "Diary rows with deleted food: %d\n", report.MissingFoodRefs)
			fmt.Fprintf(out, "Users with stale goals: %d\n", len(report.StaleGoalUsers))
			if doctorFix {
				fmt.Fprintf(out, "Removed orphans: %d\n", report.RemovedOrphans)
				fmt.Fprintf(out, "Recomputed users: %d\n", report.RecomputedUsers)
				// Re-check after fixes so exit status reflects final state.
				report, err = rt.svc.RunDoctor(ctx, false)
				if err != nil {
					return err
				}
			}
			// rows pointing at deleted foods keep their snapshot and are informational
			if report.OrphanDiaryEntries > 0 || report.OrphanWeightEntries > 0 || len(report.StaleGoalUsers) > 0 {
				return fmt.Errorf("doctor found integrity issues")
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.Flags().BoolVar(&doctorFix, "fix", false, "Remove orphans and recompute stale goals")
}
