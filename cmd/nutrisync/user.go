package nutrisync

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/saadjs/nutrisync/internal/model"
	"github.com/saadjs/nutrisync/internal/service"
	"github.com/spf13/cobra"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage user profiles and goals",
}

var (
	userName       string
	userEmail      string
	userDOB        string
	userGender     string
	userHeight     float64
	userHeightUnit string
	userWeight     float64
	userWeightUnit string
	userGoalWeight float64
	userActivity   string
	userGoal       string
	userSelect     bool
	userYes        bool
)

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a user and compute initial goals",
	RunE: func(cmd *cobra.Command, args []string) error {
		heightCm, err := service.ToCm(userHeight, userHeightUnit)
		if err != nil {
			return err
		}
		weightKg, err := service.ToKg(userWeight, userWeightUnit)
		if err != nil {
			return err
		}
		goalKg := 0.0
		if userGoalWeight > 0 {
			if goalKg, err = service.ToKg(userGoalWeight, userWeightUnit); err != nil {
				return err
			}
		}
		in := service.CreateUserInput{
			Name:          userName,
			Email:         userEmail,
			DateOfBirth:   userDOB,
			Gender:        userGender,
			HeightCm:      heightCm,
			WeightKg:      weightKg,
			GoalWeightKg:  goalKg,
			ActivityLevel: userActivity,
			GoalType:      userGoal,
		}
		return withService(cmd, func(ctx context.Context, rt *runtime) error {
			u, err := rt.svc.CreateUser(ctx, in)
			if err != nil {
				return err
			}
			u, err = rt.svc.SetupInitialGoals(ctx, u.ID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created user %s (%s)\n", u.Name, u.ID)
			if userSelect {
				if _, err := rt.svc.SelectUser(ctx, u.ID); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Selected as current user")
			}
			printGoals(cmd.OutOrStdout(), u)
			return nil
		})
	},
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List users",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(ctx context.Context, rt *runtime) error {
			users, err := rt.svc.ListUsers(ctx)
			if err != nil {
				return err
			}
			current, _ := rt.svc.CurrentUser(ctx)
			fmt.Fprintln(cmd.OutOrStdout(), "ID\tNAME\tGOAL\tKCAL\tCURRENT")
			for _, u := range users {
				mark := ""
				if current != nil && current.ID == u.ID {
					mark = "*"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%d\t%s\n", u.ID, u.Name, u.GoalType, u.DailyCalorieGoal, mark)
			}
			return nil
		})
	},
}

var userSelectCmd = &cobra.Command{
	Use:   "select <id>",
	Short: "Select the current user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(ctx context.Context, rt *runtime) error {
			u, err := rt.svc.SelectUser(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Current user: %s (%s)\n", u.Name, u.ID)
			return nil
		})
	},
}

var userSignOutCmd = &cobra.Command{
	Use:   "signout",
	Short: "Forget the current user",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(ctx context.Context, rt *runtime) error {
			if err := rt.svc.SignOut(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		})
	},
}

var userShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the profile and goals",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(ctx context.Context, rt *runtime) error {
			id, err := rt.userID(ctx)
			if err != nil {
				return err
			}
			u, err := rt.svc.GetUser(ctx, id)
			if err != nil {
				return err
			}
			unit := rt.weightUnit(ctx)
			weight, err := service.FromKg(u.CurrentWeightKg, unit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "User: %s (%s)\n", u.Name, u.ID)
			if age, ok := u.Age(time.Now()); ok {
				fmt.Fprintf(out, "Age: %d\n", age)
			}
			fmt.Fprintf(out, "Gender: %s | Height: %.1f cm | Weight: %.1f %s\n", u.Gender, u.HeightCm, weight, unit)
			fmt.Fprintf(out, "Activity: %s | Goal: %s\n", u.ActivityLevel, u.GoalType)
			printGoals(out, u)
			return nil
		})
	},
}

var userUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update profile fields and recompute goals",
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		in := service.UpdateProfileInput{}
		if flags.Changed("name") {
			in.Name = &userName
		}
		if flags.Changed("email") {
			in.Email = &userEmail
		}
		if flags.Changed("dob") {
			in.DateOfBirth = &userDOB
		}
		if flags.Changed("gender") {
			in.Gender = &userGender
		}
		if flags.Changed("activity") {
			in.ActivityLevel = &userActivity
		}
		if flags.Changed("goal") {
			in.GoalType = &userGoal
		}
		if flags.Changed("height") {
			cm, err := service.ToCm(userHeight, userHeightUnit)
			if err != nil {
				return err
			}
			in.HeightCm = &cm
		}
		if flags.Changed("weight") {
			kg, err := service.ToKg(userWeight, userWeightUnit)
			if err != nil {
				return err
			}
			in.WeightKg = &kg
		}
		if flags.Changed("goal-weight") {
			kg, err := service.ToKg(userGoalWeight, userWeightUnit)
			if err != nil {
				return err
			}
			in.GoalWeightKg = &kg
		}
		return withService(cmd, func(ctx context.Context, rt *runtime) error {
			id, err := rt.userID(ctx)
			if err != nil {
				return err
			}
			in.UserID = id
			u, err := rt.svc.UpdateProfile(ctx, in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated user %s\n", u.ID)
			printGoals(cmd.OutOrStdout(), u)
			return nil
		})
	},
}

var userDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a user with their diary and weight history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(ctx context.Context, rt *runtime) error {
			if err := rt.svc.DeleteUser(ctx, args[0], userYes); err != nil {
				return confirmHint(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted user %s\n", args[0])
			return nil
		})
	},
}

func printGoals(w io.Writer, u *model.User) {
	if !u.HasGoals() {
		fmt.Fprintln(w, "Goals: not set")
		return
	}
	fmt.Fprintf(w, "TDEE: %d kcal | Goal: %d kcal/day\n", u.TDEE, u.DailyCalorieGoal)
	fmt.Fprintf(w, "Macros: P %dg | C %dg | F %dg | Fiber %dg\n", u.ProteinGoalG, u.CarbsGoalG, u.FatGoalG, u.FiberGoalG)
}

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userCreateCmd, userListCmd, userSelectCmd, userSignOutCmd, userShowCmd, userUpdateCmd, userDeleteCmd)

	for _, c := range []*cobra.Command{userCreateCmd, userUpdateCmd} {
		c.Flags().StringVar(&userName, "name", "", "Display name")
		c.Flags().StringVar(&userEmail, "email", "", "Email address")
		c.Flags().StringVar(&userDOB, "dob", "", "Date of birth YYYY-MM-DD")
		c.Flags().StringVar(&userGender, "gender", "", "male|female|other")
		c.Flags().Float64Var(&userHeight, "height", 0, "Height")
		c.Flags().StringVar(&userHeightUnit, "height-unit", "cm", "cm|in")
		c.Flags().Float64Var(&userWeight, "weight", 0, "Current weight")
		c.Flags().StringVar(&userWeightUnit, "weight-unit", "kg", "kg|lb")
		c.Flags().Float64Var(&userGoalWeight, "goal-weight", 0, "Target weight")
		c.Flags().StringVar(&userActivity, "activity", "", "sedentary|lightly_active|moderately_active|very_active")
		c.Flags().StringVar(&userGoal, "goal", "", "lose|maintain|gain")
	}
	userCreateCmd.Flags().BoolVar(&userSelect, "select", false, "Select the new user as current")
	userDeleteCmd.Flags().BoolVar(&userYes, "yes", false, "Confirm deletion")
}
