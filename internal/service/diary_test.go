package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/saadjs/nutrisync/internal/model"
	"github.com/saadjs/nutrisync/internal/service"
	"github.com/saadjs/nutrisync/internal/store"
)

func TestLogFoodSnapshotsNutrition(t *testing.T) {
	t.Parallel()
	svc := newTestService(t)
	ctx := context.Background()
	u := newOnboardedUser(t, svc)
	food := newFood(t, svc, "Oats", 150)

	entry, err := svc.LogFoodToDiary(ctx, service.LogFoodInput{UserID: u.ID, FoodID: food.ID, Date: "2024-06-15", MealType: "Breakfast", Servings: 2})
	if err != nil {
		t.Fatalf("log food: %v", err)
	}
	if entry.Calories != 300 || entry.ProteinG != 15 || entry.CarbsG != 30 || entry.FatG != 7.5 {
		t.Fatalf("unexpected nutrition %+v", entry)
	}
	if entry.MealType != model.Breakfast {
		t.Fatalf("expected normalized meal type, got %q", entry.MealType)
	}

	// later edits to the food never reach logged entries
	foods := store.NewCollection[model.Food](svc.Store())
	err = svc.Store().Write(ctx, func(w *store.Writer) error {
		f, err := foods.FindIn(w, food.ID)
		if err != nil {
			return err
		}
		return foods.Update(w, f, func(f *model.Food) { f.Calories = 999 })
	})
	if err != nil {
		t.Fatalf("edit food: %v", err)
	}
	entries, err := svc.ListDiary(ctx, u.ID, "2024-06-15")
	if err != nil {
		t.Fatalf("list diary: %v", err)
	}
	if len(entries) != 1 || entries[0].Calories != 300 {
		t.Fatalf("expected snapshot of 300 kcal, got %+v", entries)
	}
}

func TestLogFoodRejectsBadInputWithoutWriting(t *testing.T) {
	t.Parallel()
	svc := newTestService(t)
	ctx := context.Background()
	u := newOnboardedUser(t, svc)
	food := newFood(t, svc, "Oats", 150)

	bad := []service.LogFoodInput{
		{UserID: u.ID, FoodID: food.ID, Date: "2024-06-15", MealType: "lunch", Servings: 0},
		{UserID: u.ID, FoodID: food.ID, Date: "2024-06-15", MealType: "lunch", Servings: -1},
		{UserID: u.ID, FoodID: food.ID, Date: "2024-06-15", MealType: "brunch", Servings: 1},
		{UserID: u.ID, FoodID: food.ID, Date: "15-06-2024", MealType: "lunch", Servings: 1},
	}
	for _, in := range bad {
		_, err := svc.LogFoodToDiary(ctx, in)
		var verr *service.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("expected validation error for %+v, got %v", in, err)
		}
	}
	_, err := svc.LogFoodToDiary(ctx, service.LogFoodInput{UserID: u.ID, FoodID: "missing", Date: "2024-06-15", MealType: "lunch", Servings: 1})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found for unknown food, got %v", err)
	}
	entries, err := svc.ListDiary(ctx, u.ID, "2024-06-15")
	if err != nil || len(entries) != 0 {
		t.Fatalf("expected empty diary, got %d %v", len(entries), err)
	}
}

func TestDiaryIsAppendOnlyAndOrderedByMeal(t *testing.T) {
	t.Parallel()
	svc := newTestService(t)
	ctx := context.Background()
	u := newOnboardedUser(t, svc)
	food := newFood(t, svc, "Toast", 100)

	meals := []string{"dinner", "snacks", "breakfast", "lunch", "breakfast"}
	for _, meal := range meals {
		if _, err := svc.LogFoodToDiary(ctx, service.LogFoodInput{UserID: u.ID, FoodID: food.ID, Date: "2024-06-15", MealType: meal, Servings: 1}); err != nil {
			t.Fatalf("log %s: %v", meal, err)
		}
	}
	// same food and meal twice makes two entries
	entries, err := svc.ListDiary(ctx, u.ID, "2024-06-15")
	if err != nil {
		t.Fatalf("list diary: %v", err)
	}
	if len(entries) != len(meals) {
		t.Fatalf("expected %d entries, got %d", len(meals), len(entries))
	}
	want := []model.MealType{model.Breakfast, model.Breakfast, model.Lunch, model.Dinner, model.Snacks}
	for i, m := range want {
		if entries[i].MealType != m {
			t.Fatalf("entry %d: expected %s, got %s", i, m, entries[i].MealType)
		}
	}

	if err := svc.DeleteDiaryEntry(ctx, entries[0].ID); err != nil {
		t.Fatalf("delete entry: %v", err)
	}
	if err := svc.DeleteDiaryEntry(ctx, entries[0].ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
	entries, err = svc.ListDiary(ctx, u.ID, "2024-06-15")
	if err != nil || len(entries) != len(meals)-1 {
		t.Fatalf("expected %d entries after delete, got %d %v", len(meals)-1, len(entries), err)
	}
}

func TestDailyTotalsAgainstGoals(t *testing.T) {
	t.Parallel()
	svc := newTestService(t)
	ctx := context.Background()
	u := newOnboardedUser(t, svc)
	food := newFood(t, svc, "Pasta", 400)

	for _, in := range []service.LogFoodInput{
		{UserID: u.ID, FoodID: food.ID, Date: "2024-06-15", MealType: "lunch", Servings: 1.5},
		{UserID: u.ID, FoodID: food.ID, Date: "2024-06-15", MealType: "dinner", Servings: 1},
		{UserID: u.ID, FoodID: food.ID, Date: "2024-06-14", MealType: "dinner", Servings: 1},
	} {
		if _, err := svc.LogFoodToDiary(ctx, in); err != nil {
			t.Fatalf("log food: %v", err)
		}
	}

	p, err := svc.DailyTotals(ctx, u.ID, "2024-06-15")
	if err != nil {
		t.Fatalf("daily totals: %v", err)
	}
	if p.Totals.Calories != 1000 || p.Totals.Entries != 2 {
		t.Fatalf("expected 1000 kcal over 2 entries, got %+v", p.Totals)
	}
	if p.CalorieGoal != 2259 || p.CaloriesLeft != 1259 {
		t.Fatalf("expected goal 2259 with 1259 left, got %+v", p)
	}

	empty, err := svc.DailyTotals(ctx, u.ID, "2024-06-01")
	if err != nil {
		t.Fatalf("daily totals: %v", err)
	}
	if empty.Totals.Calories != 0 || empty.Totals.Entries != 0 {
		t.Fatalf("expected zero totals for an empty day, got %+v", empty.Totals)
	}
}

func TestWeeklyProgress(t *testing.T) {
	t.Parallel()
	svc := newTestService(t)
	ctx := context.Background()
	u := newOnboardedUser(t, svc)
	food := newFood(t, svc, "Meal", 1000)

	logs := map[string]float64{
		"2024-06-08": 5, // outside the window
		"2024-06-09": 1,
		"2024-06-10": 2.2,
		"2024-06-12": 1.5,
		"2024-06-15": 3,
	}
	for date, servings := range logs {
		if _, err := svc.LogFoodToDiary(ctx, service.LogFoodInput{UserID: u.ID, FoodID: food.ID, Date: date, MealType: "dinner", Servings: servings}); err != nil {
			t.Fatalf("log food: %v", err)
		}
	}
	logWeight(t, svc, u.ID, "2024-06-09", 80.2)
	logWeight(t, svc, u.ID, "2024-06-10", 80.1)
	logWeight(t, svc, u.ID, "2024-06-14", 79.6)

	week, err := svc.WeeklyProgress(ctx, u.ID, "2024-06-15")
	if err != nil {
		t.Fatalf("weekly progress: %v", err)
	}
	if week.From != "2024-06-09" || week.To != "2024-06-15" || len(week.Days) != 7 {
		t.Fatalf("unexpected window %s..%s with %d days", week.From, week.To, len(week.Days))
	}
	if week.DaysLogged != 4 {
		t.Fatalf("expected 4 logged days, got %d", week.DaysLogged)
	}
	// (1000 + 2200 + 1500 + 3000) / 4
	if week.AverageCalories != 1925 {
		t.Fatalf("expected average 1925, got %v", week.AverageCalories)
	}
	// only 2200 is within 10% of 2259
	if week.DaysOnTarget != 1 {
		t.Fatalf("expected 1 day on target, got %d", week.DaysOnTarget)
	}
	if week.StartWeightKg != 80.2 || week.EndWeightKg != 79.6 || week.WeightChangeKg != -0.6 {
		t.Fatalf("unexpected weight summary %+v", week)
	}

	if _, err := svc.WeeklyProgress(ctx, u.ID, "last week"); err == nil {
		t.Fatalf("expected invalid end date to fail")
	}
}
