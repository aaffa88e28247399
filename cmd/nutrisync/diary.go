package nutrisync

import (
	"context"
	"fmt"

	"github.com/saadjs/nutrisync/internal/service"
	"github.com/saadjs/nutrisync/internal/state"
	"github.com/spf13/cobra"
)

var diaryCmd = &cobra.Command{
	Use:   "diary",
	Short: "Log and review food diary entries",
}

var (
	diaryFood     string
	diaryMeal     string
	diaryServings float64
	diaryDate     string
)

var diaryLogCmd = &cobra.Command{
	Use:   "log",
	Short: "Log a food to the diary",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(ctx context.Context, rt *runtime) error {
			id, err := rt.userID(ctx)
			if err != nil {
				return err
			}
			date, err := dateOrToday(rt, diaryDate)
			if err != nil {
				return err
			}
			e, err := rt.svc.LogFoodToDiary(ctx, service.LogFoodInput{
				UserID:   id,
				FoodID:   diaryFood,
				Date:     date,
				MealType: diaryMeal,
				Servings: diaryServings,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged %s: %.0f kcal (%s)\n", e.MealType, e.Calories, e.ID)
			return nil
		})
	},
}

var diaryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List one day's diary in meal order",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(ctx context.Context, rt *runtime) error {
			id, err := rt.userID(ctx)
			if err != nil {
				return err
			}
			date, err := dateOrToday(rt, diaryDate)
			if err != nil {
				return err
			}
			entries, err := rt.svc.ListDiary(ctx, id, date)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ID\tMEAL\tFOOD\tSERVINGS\tKCAL\tP\tC\tF")
			for _, e := range entries {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%g\t%.0f\t%.1f\t%.1f\t%.1f\n",
					e.ID, e.MealType, e.FoodID, e.Servings, e.Calories, e.ProteinG, e.CarbsG, e.FatG)
			}
			t := state.SumDiary(entries)
			fmt.Fprintf(cmd.OutOrStdout(), "Total: %.0f kcal | P %.1fg | C %.1fg | F %.1fg\n", t.Calories, t.ProteinG, t.CarbsG, t.FatG)
			return nil
		})
	},
}

var diaryDeleteCmd = &cobra.Command{
	Use:   "delete <entry-id>",
	Short: "Remove a diary entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(ctx context.Context, rt *runtime) error {
			if err := rt.svc.DeleteDiaryEntry(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted diary entry %s\n", args[0])
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(diaryCmd)
	diaryCmd.AddCommand(diaryLogCmd, diaryListCmd, diaryDeleteCmd)

	diaryLogCmd.Flags().StringVar(&diaryFood, "food", "", "Food id")
	diaryLogCmd.Flags().StringVar(&diaryMeal, "meal", "", "breakfast|lunch|dinner|snacks")
	diaryLogCmd.Flags().Float64Var(&diaryServings, "servings", 1, "Number of servings")
	for _, c := range []*cobra.Command{diaryLogCmd, diaryListCmd} {
		c.Flags().StringVar(&diaryDate, "date", "", "Date YYYY-MM-DD (default today)")
	}
}
