package nutrisync

import (
	"context"
	"fmt"

	"github.com/saadjs/nutrisync/internal/service"
	"github.com/spf13/cobra"
)

var weightCmd = &cobra.Command{
	Use:   "weight",
	Short: "Log weight and review history",
}

var (
	weightValue float64
	weightUnit  string
	weightDate  string
	weightNotes string
	weightLimit int
)

var weightLogCmd = &cobra.Command{
	Use:   "log",
	Short: "Log or update the weight for a day",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(ctx context.Context, rt *runtime) error {
			id, err := rt.userID(ctx)
			if err != nil {
				return err
			}
			date, err := dateOrToday(rt, weightDate)
			if err != nil {
				return err
			}
			unit := weightUnit
			if unit == "" {
				unit = rt.weightUnit(ctx)
			}
			res, err := rt.svc.LogOrUpdateWeight(ctx, service.LogWeightInput{
				UserID: id,
				Weight: weightValue,
				Unit:   unit,
				Date:   date,
				Notes:  weightNotes,
			})
			if err != nil {
				return err
			}
			verb := "Updated"
			if res.Created {
				verb = "Logged"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s weight %.1f %s for %s\n", verb, weightValue, unit, date)
			if res.GoalsRecalculated {
				u, err := rt.svc.GetUser(ctx, id)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Goals recalculated")
				printGoals(cmd.OutOrStdout(), u)
			}
			return nil
		})
	},
}

var weightHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Show weight history, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(ctx context.Context, rt *runtime) error {
			id, err := rt.userID(ctx)
			if err != nil {
				return err
			}
			entries, err := rt.svc.WeightHistory(ctx, id, weightLimit)
			if err != nil {
				return err
			}
			unit := rt.weightUnit(ctx)
			fmt.Fprintln(cmd.OutOrStdout(), "DATE\tWEIGHT\tUNIT\tNOTES")
			for _, e := range entries {
				w, err := service.FromKg(e.WeightKg, unit)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%.1f\t%s\t%s\n", e.Date, w, unit, e.Notes)
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(weightCmd)
	weightCmd.AddCommand(weightLogCmd, weightHistoryCmd)

	weightLogCmd.Flags().Float64Var(&weightValue, "weight", 0, "Weight value")
	weightLogCmd.Flags().StringVar(&weightUnit, "unit", "", "kg|lb (default: configured weight_unit)")
	weightLogCmd.Flags().StringVar(&weightDate, "date", "", "Date YYYY-MM-DD (default today)")
	weightLogCmd.Flags().StringVar(&weightNotes, "notes", "", "Optional notes")
	weightHistoryCmd.Flags().IntVar(&weightLimit, "limit", 0, "Max entries (default: history cap)")
}
