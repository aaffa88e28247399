package service_test

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"

	"github.com/saadjs/nutrisync/internal/db"
	"github.com/saadjs/nutrisync/internal/service"
	"github.com/saadjs/nutrisync/internal/store"
)

func logWeight(t *testing.T, svc *service.Service, userID, date string, kg float64) service.WeightLogResult {
	t.Helper()
	res, err := svc.LogOrUpdateWeight(context.Background(), service.LogWeightInput{UserID: userID, Weight: kg, Date: date})
	if err != nil {
		t.Fatalf("log weight %.1f on %s: %v", kg, date, err)
	}
	return res
}

func TestLogWeightUpsertsOneEntryPerDay(t *testing.T) {
	t.Parallel()
	svc := newTestService(t)
	ctx := context.Background()
	u := newOnboardedUser(t, svc)

	first := logWeight(t, svc, u.ID, "2024-06-15", 79.9)
	if !first.Created {
		t.Fatalf("expected first log to create an entry")
	}
	second := logWeight(t, svc, u.ID, "2024-06-15", 79.8)
	if second.Created {
		t.Fatalf("expected second log on the same day to update")
	}
	if second.Entry.ID != first.Entry.ID {
		t.Fatalf("expected same entry id, got %s and %s", first.Entry.ID, second.Entry.ID)
	}

	history, err := svc.WeightHistory(ctx, u.ID, 0)
	if err != nil {
		t.Fatalf("weight history: %v", err)
	}
	if len(history) != 1 || history[0].WeightKg != 79.8 {
		t.Fatalf("expected one entry at 79.8, got %+v", history)
	}
	got, err := svc.GetUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if got.CurrentWeightKg != 79.8 {
		t.Fatalf("expected current weight 79.8, got %v", got.CurrentWeightKg)
	}
}

func TestLogWeightRecomputesGoalsOnSignificantChange(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name       string
		weights    []float64
		recomputed []bool
		basis      float64
	}{
		{name: "below threshold", weights: []float64{79.8}, recomputed: []bool{false}, basis: 80},
		{name: "above threshold", weights: []float64{79.4}, recomputed: []bool{true}, basis: 79.4},
		{name: "exactly threshold", weights: []float64{80.5}, recomputed: []bool{true}, basis: 80.5},
		{name: "cumulative drift", weights: []float64{79.7, 79.4}, recomputed: []bool{false, true}, basis: 79.4},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			svc := newTestService(t)
			u := newOnboardedUser(t, svc)
			dates := []string{"2024-06-14", "2024-06-15"}
			for i, kg := range tc.weights {
				res := logWeight(t, svc, u.ID, dates[i], kg)
				if res.GoalsRecalculated != tc.recomputed[i] {
					t.Fatalf("log %.1f: expected recalculated=%v", kg, tc.recomputed[i])
				}
			}
			got, err := svc.GetUser(context.Background(), u.ID)
			if err != nil {
				t.Fatalf("get user: %v", err)
			}
			if got.GoalsBasisWeightKg != tc.basis {
				t.Fatalf("expected basis %.1f, got %.1f", tc.basis, got.GoalsBasisWeightKg)
			}
			if tc.basis == 80 && got.DailyCalorieGoal != u.DailyCalorieGoal {
				t.Fatalf("expected goals untouched, got %d", got.DailyCalorieGoal)
			}
			if tc.basis != 80 && got.DailyCalorieGoal == u.DailyCalorieGoal {
				t.Fatalf("expected calorie goal to move from %d", u.DailyCalorieGoal)
			}
		})
	}
}

func TestLogWeightConvertsPounds(t *testing.T) {
	t.Parallel()
	svc := newTestService(t)
	u := newOnboardedUser(t, svc)

	res, err := svc.LogOrUpdateWeight(context.Background(), service.LogWeightInput{UserID: u.ID, Weight: 176, Unit: "LB", Date: "2024-06-15"})
	if err != nil {
		t.Fatalf("log weight: %v", err)
	}
	if math.Abs(res.Entry.WeightKg-79.832) > 0.001 {
		t.Fatalf("expected ~79.832 kg, got %v", res.Entry.WeightKg)
	}
}

func TestLogWeightValidation(t *testing.T) {
	t.Parallel()
	svc := newTestService(t)
	ctx := context.Background()
	u := newOnboardedUser(t, svc)

	bad := []service.LogWeightInput{
		{UserID: u.ID, Weight: 0, Date: "2024-06-15"},
		{UserID: u.ID, Weight: -3, Date: "2024-06-15"},
		{UserID: u.ID, Weight: 80, Date: "June 15"},
		{UserID: u.ID, Weight: 80, Unit: "stone", Date: "2024-06-15"},
		{UserID: "", Weight: 80, Date: "2024-06-15"},
	}
	for _, in := range bad {
		_, err := svc.LogOrUpdateWeight(ctx, in)
		var verr *service.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("expected validation error for %+v, got %v", in, err)
		}
	}
	if _, err := svc.LogOrUpdateWeight(ctx, service.LogWeightInput{UserID: "ghost", Weight: 80, Date: "2024-06-15"}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found for unknown user, got %v", err)
	}
	history, err := svc.WeightHistory(ctx, u.ID, 0)
	if err != nil || len(history) != 0 {
		t.Fatalf("expected no entries after rejected logs, got %d %v", len(history), err)
	}
}

func TestLogWeightIsAtomic(t *testing.T) {
	t.Parallel()
	var armed atomic.Bool
	boom := errors.New("user update rejected")
	svc := newTestService(t, store.WithChangeHook(func(_ context.Context, c store.Change) error {
		if armed.Load() && c.Table == db.UsersTable && c.Kind == store.Updated {
			return boom
		}
		return nil
	}))
	ctx := context.Background()
	u := newOnboardedUser(t, svc)
	armed.Store(true)

	_, err := svc.LogOrUpdateWeight(ctx, service.LogWeightInput{UserID: u.ID, Weight: 78, Date: "2024-06-15"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected hook failure, got %v", err)
	}
	history, err := svc.WeightHistory(ctx, u.ID, 0)
	if err != nil {
		t.Fatalf("weight history: %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("expected weight entry rolled back, got %d entries", len(history))
	}
	got, err := svc.GetUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if got.CurrentWeightKg != 80 || got.DailyCalorieGoal != u.DailyCalorieGoal {
		t.Fatalf("expected user unchanged, got weight %v goal %d", got.CurrentWeightKg, got.DailyCalorieGoal)
	}
}

func TestLogWeightRefreshesCachedUser(t *testing.T) {
	t.Parallel()
	svc := newTestService(t)
	ctx := context.Background()
	u := newOnboardedUser(t, svc)
	if _, err := svc.SelectUser(ctx, u.ID); err != nil {
		t.Fatalf("select user: %v", err)
	}

	logWeight(t, svc, u.ID, "2024-06-15", 78)
	cached, ok := svc.State().CurrentUser()
	if !ok {
		t.Fatalf("expected cached user")
	}
	if cached.CurrentWeightKg != 78 || cached.GoalsBasisWeightKg != 78 {
		t.Fatalf("expected cache to carry new weight and basis, got %+v", cached)
	}
	if cached.DailyCalorieGoal == u.DailyCalorieGoal {
		t.Fatalf("expected cache to carry recomputed goals")
	}
}

func TestWeightHistoryNewestFirstAndCapped(t *testing.T) {
	t.Parallel()
	svc := newTestService(t)
	ctx := context.Background()
	u := newOnboardedUser(t, svc)
	for _, d := range []string{"2024-06-12", "2024-06-15", "2024-06-13", "2024-06-14"} {
		logWeight(t, svc, u.ID, d, 80)
	}

	history, err := svc.WeightHistory(ctx, u.ID, 3)
	if err != nil {
		t.Fatalf("weight history: %v", err)
	}
	want := []string{"2024-06-15", "2024-06-14", "2024-06-13"}
	if len(history) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(history))
	}
	for i, d := range want {
		if history[i].Date != d {
			t.Fatalf("entry %d: expected %s, got %s", i, d, history[i].Date)
		}
	}
}
