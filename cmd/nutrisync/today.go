package nutrisync

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var todayDate string

var todayCmd = &cobra.Command{
	Use:   "today",
	Short: "Show the day's intake against goals",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(ctx context.Context, rt *runtime) error {
			id, err := rt.userID(ctx)
			if err != nil {
				return err
			}
			date, err := dateOrToday(rt, todayDate)
			if err != nil {
				return err
			}
			bridge := rt.svc.NewBridge()
			if err := bridge.Start(ctx, id, date); err != nil {
				return err
			}
			defer bridge.Stop()

			st := rt.svc.State()
			u, ok := st.CurrentUser()
			if !ok {
				return fmt.Errorf("user %s not found", id)
			}
			p := st.TodayProgress()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Date: %s (%s)\n", date, u.Name)
			fmt.Fprintf(out, "Intake: %.0f kcal from %d entries\n", p.Totals.Calories, p.Totals.Entries)
			fmt.Fprintf(out, "Macros: P %.1fg | C %.1fg | F %.1fg\n", p.Totals.ProteinG, p.Totals.CarbsG, p.Totals.FatG)
			if p.CalorieGoal > 0 {
				fmt.Fprintf(out, "Goal: %d kcal | P %dg | C %dg | F %dg\n", p.CalorieGoal, p.ProteinGoalG, p.CarbsGoalG, p.FatGoalG)
				fmt.Fprintf(out, "Remaining: %.0f kcal (%.1f%% eaten)\n", p.CaloriesLeft, p.CaloriePercent)
			} else {
				fmt.Fprintln(out, "Goal: not set")
			}
			if hist := st.WeightHistory(); len(hist) > 0 {
				fmt.Fprintf(out, "Latest weight: %.1f kg on %s\n", hist[0].WeightKg, hist[0].Date)
			}
			return nil
		})
	},
}

var weekDate string

var weekCmd = &cobra.Command{
	Use:   "week",
	Short: "Summarize the seven days ending on --date",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(ctx context.Context, rt *runtime) error {
			id, err := rt.userID(ctx)
			if err != nil {
				return err
			}
			date, err := dateOrToday(rt, weekDate)
			if err != nil {
				return err
			}
			w, err := rt.svc.WeeklyProgress(ctx, id, date)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Week: %s to %s\n", w.From, w.To)
			fmt.Fprintln(out, "DATE\tKCAL\tENTRIES")
			for _, d := range w.Days {
				fmt.Fprintf(out, "%s\t%.0f\t%d\n", d.Date, d.Totals.Calories, d.Totals.Entries)
			}
			fmt.Fprintf(out, "Days logged: %d | Average: %.0f kcal | On target: %d\n", w.DaysLogged, w.AverageCalories, w.DaysOnTarget)
			if w.StartWeightKg > 0 {
				fmt.Fprintf(out, "Weight: %.1f -> %.1f kg (%+.2f)\n", w.StartWeightKg, w.EndWeightKg, w.WeightChangeKg)
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(todayCmd, weekCmd)
	todayCmd.Flags().StringVar(&todayDate, "date", "", "Date YYYY-MM-DD (default today)")
	weekCmd.Flags().StringVar(&weekDate, "date", "", "Last day of the week YYYY-MM-DD (default today)")
}
