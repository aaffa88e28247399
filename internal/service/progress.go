package service

import (
	"context"
	"math"
	"time"

	"github.com/saadjs/nutrisync/internal/model"
	"github.com/saadjs/nutrisync/internal/state"
	"github.com/saadjs/nutrisync/internal/store"
	"github.com/sirupsen/logrus"
)

// DailyTotals sums one day's diary against the user's goals.
func (s *Service) DailyTotals(ctx context.Context, userID, date string) (model.Progress, error) {
	if !validDate(date) {
		return model.Progress{}, invalid("invalid date %q, expected YYYY-MM-DD", date)
	}
	user, err := s.users.Find(ctx, userID)
	if err != nil {
		return model.Progress{}, s.fail("daily totals", logrus.Fields{"user_id": userID}, err)
	}
	entries, err := s.diary.Query(store.Eq("user_id", userID), store.Eq("date", date)).Fetch(ctx)
	if err != nil {
		return model.Progress{}, s.fail("daily totals", logrus.Fields{"user_id": userID, "date": date}, err)
	}
	return model.NewProgress(state.SumDiary(entries), user), nil
}

type DayTotals struct {
	Date   string       `json:"date"`
	Totals model.Totals `json:"totals"`
}

type WeekProgress struct {
	From            string      `json:"from"`
	To              string      `json:"to"`
	Days            []DayTotals `json:"days"`
	DaysLogged      int         `json:"days_logged"`
	AverageCalories float64     `json:"average_calories"`
	CalorieGoal     int         `json:"calorie_goal"`
	DaysOnTarget    int         `json:"days_on_target"`
	StartWeightKg   float64     `json:"start_weight_kg,omitempty"`
	EndWeightKg     float64     `json:"end_weight_kg,omitempty"`
	WeightChangeKg  float64     `json:"weight_change_kg"`
}

// onTargetTolerance is the fraction of the calorie goal a logged day may miss by.
const onTargetTolerance = 0.10

// WeeklyProgress covers the seven days ending on endDate, oldest first. The
// average counts only days with at least one entry.
func (s *Service) WeeklyProgress(ctx context.Context, userID, endDate string) (WeekProgress, error) {
	end, err := time.Parse(model.DateLayout, endDate)
	if err != nil {
		return WeekProgress{}, invalid("invalid date %q, expected YYYY-MM-DD", endDate)
	}
	start := end.AddDate(0, 0, -6)
	out := WeekProgress{From: start.Format(model.DateLayout), To: endDate}
	fields := logrus.Fields{"user_id": userID, "from": out.From, "to": out.To}

	user, err := s.users.Find(ctx, userID)
	if err != nil {
		return WeekProgress{}, s.fail("weekly progress", fields, err)
	}
	out.CalorieGoal = user.DailyCalorieGoal

	entries, err := s.diary.Query(
		store.Eq("user_id", userID),
		store.Gte("date", out.From),
		store.Lte("date", out.To),
	).Fetch(ctx)
	if err != nil {
		return WeekProgress{}, s.fail("weekly progress", fields, err)
	}
	byDate := map[string][]*model.DiaryEntry{}
	for _, e := range entries {
		byDate[e.Date] = append(byDate[e.Date], e)
	}

	var sum float64
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		key := d.Format(model.DateLayout)
		day := DayTotals{Date: key, Totals: state.SumDiary(byDate[key])}
		out.Days = append(out.Days, day)
		if day.Totals.Entries == 0 {
			continue
		}
		out.DaysLogged++
		sum += day.Totals.Calories
		if out.CalorieGoal > 0 && math.Abs(day.Totals.Calories-float64(out.CalorieGoal)) <= onTargetTolerance*float64(out.CalorieGoal) {
			out.DaysOnTarget++
		}
	}
	if out.DaysLogged > 0 {
		out.AverageCalories = math.Round(sum/float64(out.DaysLogged)*10) / 10
	}

	weights, err := s.weights.Query(
		store.Eq("user_id", userID),
		store.Gte("date", out.From),
		store.Lte("date", out.To),
	).SortBy("date", store.Asc).Fetch(ctx)
	if err != nil {
		return WeekProgress{}, s.fail("weekly progress", fields, err)
	}
	if len(weights) > 0 {
		out.StartWeightKg = weights[0].WeightKg
		out.EndWeightKg = weights[len(weights)-1].WeightKg
		out.WeightChangeKg = math.Round((out.EndWeightKg-out.StartWeightKg)*100) / 100
	}
	return out, nil
}
