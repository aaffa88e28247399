package service

import (
	"context"
	"sort"
	"strings"

	"github.com/saadjs/nutrisync/internal/model"
	"github.com/saadjs/nutrisync/internal/store"
	"github.com/sirupsen/logrus"
)

type LogFoodInput struct {
	UserID   string  `json:"user_id" validate:"required"`
	FoodID   string  `json:"food_id" validate:"required"`
	Date     string  `json:"date" validate:"required,datetime=2006-01-02"`
	MealType string  `json:"meal_type" validate:"required,oneof=breakfast lunch dinner snacks"`
	Servings float64 `json:"servings" validate:"gt=0,lte=100"`
}

// LogFoodToDiary appends one entry. Its nutrition is the food's current values
// times servings and is never recomputed afterwards.
func (s *Service) LogFoodToDiary(ctx context.Context, in LogFoodInput) (*model.DiaryEntry, error) {
	in.MealType = strings.ToLower(strings.TrimSpace(in.MealType))
	if in.Servings <= 0 {
		return nil, invalid("servings must be > 0")
	}
	if err := s.check(in); err != nil {
		return nil, err
	}

	var entry *model.DiaryEntry
	err := s.store.Write(ctx, func(w *store.Writer) error {
		if _, err := s.users.FindIn(w, in.UserID); err != nil {
			return err
		}
		food, err := s.foods.FindIn(w, in.FoodID)
		if err != nil {
			return err
		}
		entry, err = s.diary.Create(w, func(e *model.DiaryEntry) {
			e.UserID = in.UserID
			e.FoodID = food.ID
			e.Date = in.Date
			e.MealType = model.MealType(in.MealType)
			e.Servings = in.Servings
			e.Calories = food.Calories * in.Servings
			e.ProteinG = food.ProteinG * in.Servings
			e.CarbsG = food.CarbsG * in.Servings
			e.FatG = food.FatG * in.Servings
		})
		return err
	})
	if err != nil {
		return nil, s.fail("log food", logrus.Fields{"user_id": in.UserID, "food_id": in.FoodID, "date": in.Date}, err)
	}
	return entry, nil
}

func (s *Service) DeleteDiaryEntry(ctx context.Context, id string) error {
	err := s.store.Write(ctx, func(w *store.Writer) error {
		e, err := s.diary.FindIn(w, id)
		if err != nil {
			return err
		}
		return s.diary.Destroy(w, e)
	})
	if err != nil {
		return s.fail("delete diary entry", logrus.Fields{"entry_id": id}, err)
	}
	return nil
}

// ListDiary returns one day's entries in meal order, then logging order.
func (s *Service) ListDiary(ctx context.Context, userID, date string) ([]*model.DiaryEntry, error) {
	if !validDate(date) {
		return nil, invalid("invalid date %q, expected YYYY-MM-DD", date)
	}
	entries, err := s.diary.Query(store.Eq("user_id", userID), store.Eq("date", date)).
		SortBy("created_at", store.Asc).
		SortBy("id", store.Asc).
		Fetch(ctx)
	if err != nil {
		return nil, s.fail("list diary", logrus.Fields{"user_id": userID, "date": date}, err)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].MealType.Rank() < entries[j].MealType.Rank()
	})
	return entries, nil
}
