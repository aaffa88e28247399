package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/saadjs/nutrisync/internal/model"
	"github.com/saadjs/nutrisync/internal/store"
	"github.com/sirupsen/logrus"
)

type CreateFoodInput struct {
	Name        string  `json:"name" validate:"required,max=200"`
	Brand       string  `json:"brand" validate:"max=200"`
	Calories    float64 `json:"calories" validate:"gte=0"`
	ProteinG    float64 `json:"protein_g" validate:"gte=0"`
	CarbsG      float64 `json:"carbs_g" validate:"gte=0"`
	FatG        float64 `json:"fat_g" validate:"gte=0"`
	FiberG      float64 `json:"fiber_g" validate:"gte=0"`
	ServingSize float64 `json:"serving_size" validate:"gte=0"`
	ServingUnit string  `json:"serving_unit" validate:"max=40"`
}

func (in *CreateFoodInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Brand = strings.TrimSpace(in.Brand)
	in.ServingUnit = strings.ToLower(strings.TrimSpace(in.ServingUnit))
	if in.ServingSize == 0 {
		in.ServingSize = 1
	}
	if in.ServingUnit == "" {
		in.ServingUnit = "serving"
	}
}

func (in CreateFoodInput) apply(f *model.Food) {
	f.Name = in.Name
	f.Brand = in.Brand
	f.Calories = in.Calories
	f.ProteinG = in.ProteinG
	f.CarbsG = in.CarbsG
	f.FatG = in.FatG
	f.FiberG = in.FiberG
	f.ServingSize = in.ServingSize
	f.ServingUnit = in.ServingUnit
}

func (s *Service) CreateFood(ctx context.Context, in CreateFoodInput) (*model.Food, error) {
	in.normalize()
	if err := s.check(in); err != nil {
		return nil, err
	}
	var food *model.Food
	err := s.store.Write(ctx, func(w *store.Writer) error {
		var err error
		food, err = s.foods.Create(w, in.apply)
		return err
	})
	if err != nil {
		return nil, s.fail("create food", logrus.Fields{"name": in.Name}, err)
	}
	return food, nil
}

// SeedFoods inserts every food in one write. Nothing is written if any input is invalid.
func (s *Service) SeedFoods(ctx context.Context, foods []CreateFoodInput) (int, error) {
	for i := range foods {
		foods[i].normalize()
		if err := s.check(foods[i]); err != nil {
			return 0, fmt.Errorf("food %d (%q): %w", i+1, foods[i].Name, err)
		}
	}
	err := s.store.Write(ctx, func(w *store.Writer) error {
		for _, in := range foods {
			if _, err := s.foods.Create(w, in.apply); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, s.fail("seed foods", logrus.Fields{"count": len(foods)}, err)
	}
	return len(foods), nil
}

// SeedDefaultFoods loads the starter catalog into an empty foods table.
func (s *Service) SeedDefaultFoods(ctx context.Context) (int, error) {
	n, err := s.foods.Query().Count(ctx)
	if err != nil {
		return 0, s.fail("count foods", nil, err)
	}
	if n > 0 {
		return 0, nil
	}
	return s.SeedFoods(ctx, DefaultFoods())
}

func (s *Service) GetFood(ctx context.Context, id string) (*model.Food, error) {
	f, err := s.foods.Find(ctx, id)
	if err != nil {
		return nil, s.fail("get food", logrus.Fields{"food_id": id}, err)
	}
	return f, nil
}

// SearchFoods matches name or brand, case-insensitively, ordered by name. An empty
// query lists the catalog. limit <= 0 or above the catalog cap uses the cap.
func (s *Service) SearchFoods(ctx context.Context, query string, limit int) ([]*model.Food, error) {
	if limit <= 0 || limit > s.catalogCap {
		limit = s.catalogCap
	}
	q := s.foods.Query()
	if term := strings.TrimSpace(query); term != "" {
		q = q.Where(store.Or(store.Like("name", term), store.Like("brand", term)))
	}
	foods, err := q.SortBy("name", store.Asc).SortBy("id", store.Asc).Take(limit).Fetch(ctx)
	if err != nil {
		return nil, s.fail("search foods", logrus.Fields{"query": query}, err)
	}
	return foods, nil
}

// DefaultFoods is the starter catalog, per serving.
func DefaultFoods() []CreateFoodInput {
	return []CreateFoodInput{
		{Name: "Apple", Calories: 95, ProteinG: 0.5, CarbsG: 25, FatG: 0.3, FiberG: 4.4, ServingSize: 1, ServingUnit: "medium"},
		{Name: "Banana", Calories: 105, ProteinG: 1.3, CarbsG: 27, FatG: 0.4, FiberG: 3.1, ServingSize: 1, ServingUnit: "medium"},
		{Name: "Brown rice, cooked", Calories: 216, ProteinG: 5, CarbsG: 45, FatG: 1.8, FiberG: 3.5, ServingSize: 1, ServingUnit: "cup"},
		{Name: "Chicken breast, grilled", Calories: 165, ProteinG: 31, CarbsG: 0, FatG: 3.6, ServingSize: 100, ServingUnit: "g"},
		{Name: "Egg, large", Calories: 72, ProteinG: 6.3, CarbsG: 0.4, FatG: 4.8, ServingSize: 1, ServingUnit: "egg"},
		{Name: "Greek yogurt, plain nonfat", Calories: 100, ProteinG: 17, CarbsG: 6, FatG: 0.7, ServingSize: 170, ServingUnit: "g"},
		{Name: "Oats, rolled", Calories: 150, ProteinG: 5, CarbsG: 27, FatG: 3, FiberG: 4, ServingSize: 40, ServingUnit: "g"},
		{Name: "Olive oil", Calories: 119, FatG: 13.5, ServingSize: 1, ServingUnit: "tbsp"},
		{Name: "Peanut butter", Calories: 188, ProteinG: 8, CarbsG: 6, FatG: 16, FiberG: 1.9, ServingSize: 2, ServingUnit: "tbsp"},
		{Name: "Salmon, baked", Calories: 206, ProteinG: 22, CarbsG: 0, FatG: 12, ServingSize: 100, ServingUnit: "g"},
		{Name: "Spinach, raw", Calories: 7, ProteinG: 0.9, CarbsG: 1.1, FatG: 0.1, FiberG: 0.7, ServingSize: 1, ServingUnit: "cup"},
		{Name: "Whole wheat bread", Calories: 81, ProteinG: 4, CarbsG: 14, FatG: 1.1, FiberG: 1.9, ServingSize: 1, ServingUnit: "slice"},
	}
}
