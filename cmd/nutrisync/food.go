package nutrisync

import (
	"context"
	"fmt"

	"github.com/saadjs/nutrisync/internal/service"
	"github.com/spf13/cobra"
)

var foodCmd = &cobra.Command{
	Use:   "food",
	Short: "Manage the food catalog",
}

var (
	foodName        string
	foodBrand       string
	foodCalories    float64
	foodProtein     float64
	foodCarbs       float64
	foodFat         float64
	foodFiber       float64
	foodServingSize float64
	foodServingUnit string
	foodSearchLimit int
)

var foodAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a food, nutrition per serving",
	RunE: func(cmd *cobra.Command, args []string) error {
		in := service.CreateFoodInput{
			Name:        foodName,
			Brand:       foodBrand,
			Calories:    foodCalories,
			ProteinG:    foodProtein,
			CarbsG:      foodCarbs,
			FatG:        foodFat,
			FiberG:      foodFiber,
			ServingSize: foodServingSize,
			ServingUnit: foodServingUnit,
		}
		return withService(cmd, func(ctx context.Context, rt *runtime) error {
			f, err := rt.svc.CreateFood(ctx, in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added food %s (%s)\n", f.Name, f.ID)
			return nil
		})
	},
}

var foodSearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search foods by name or brand",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := ""
		if len(args) == 1 {
			query = args[0]
		}
		return withService(cmd, func(ctx context.Context, rt *runtime) error {
			foods, err := rt.svc.SearchFoods(ctx, query, foodSearchLimit)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ID\tNAME\tBRAND\tSERVING\tKCAL\tP\tC\tF")
			for _, f := range foods {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%g %s\t%.0f\t%.1f\t%.1f\t%.1f\n",
					f.ID, f.Name, f.Brand, f.ServingSize, f.ServingUnit, f.Calories, f.ProteinG, f.CarbsG, f.FatG)
			}
			return nil
		})
	},
}

var foodSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the starter catalog into an empty catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(ctx context.Context, rt *runtime) error {
			n, err := rt.svc.SeedDefaultFoods(ctx)
			if err != nil {
				return err
			}
			if n == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Catalog already has foods; nothing seeded")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d foods\n", n)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(foodCmd)
	foodCmd.AddCommand(foodAddCmd, foodSearchCmd, foodSeedCmd)

	foodAddCmd.Flags().StringVar(&foodName, "name", "", "Food name")
	foodAddCmd.Flags().StringVar(&foodBrand, "brand", "", "Brand")
	foodAddCmd.Flags().Float64Var(&foodCalories, "calories", 0, "Calories per serving")
	foodAddCmd.Flags().Float64Var(&foodProtein, "protein", 0, "Protein grams per serving")
	foodAddCmd.Flags().Float64Var(&foodCarbs, "carbs", 0, "Carb grams per serving")
	foodAddCmd.Flags().Float64Var(&foodFat, "fat", 0, "Fat grams per serving")
	foodAddCmd.Flags().Float64Var(&foodFiber, "fiber", 0, "Fiber grams per serving")
	foodAddCmd.Flags().Float64Var(&foodServingSize, "serving-size", 1, "Serving size")
	foodAddCmd.Flags().StringVar(&foodServingUnit, "serving-unit", "serving", "Serving unit")
	foodSearchCmd.Flags().IntVar(&foodSearchLimit, "limit", 0, "Max results (default: catalog cap)")
}
