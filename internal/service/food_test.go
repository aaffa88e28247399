package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/saadjs/nutrisync/internal/service"
	"github.com/saadjs/nutrisync/internal/store"
)

func TestCreateFoodDefaultsServing(t *testing.T) {
	t.Parallel()
	svc := newTestService(t)
	ctx := context.Background()

	f, err := svc.CreateFood(ctx, service.CreateFoodInput{Name: " Greek Yogurt ", Brand: "Fage", Calories: 100, ProteinG: 18})
	if err != nil {
		t.Fatalf("create food: %v", err)
	}
	if f.Name != "Greek Yogurt" || f.ServingSize != 1 || f.ServingUnit != "serving" {
		t.Fatalf("unexpected defaults %+v", f)
	}
	got, err := svc.GetFood(ctx, f.ID)
	if err != nil {
		t.Fatalf("get food: %v", err)
	}
	if got.Brand != "Fage" || got.ProteinG != 18 {
		t.Fatalf("unexpected stored food %+v", got)
	}

	_, err = svc.CreateFood(ctx, service.CreateFoodInput{Name: "Bad", Calories: -1})
	var verr *service.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error for negative calories, got %v", err)
	}
	if _, err := svc.GetFood(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSearchFoods(t *testing.T) {
	t.Parallel()
	svc := newTestService(t)
	ctx := context.Background()
	n, err := svc.SeedDefaultFoods(ctx)
	if err != nil {
		t.Fatalf("seed default foods: %v", err)
	}
	if n != len(service.DefaultFoods()) {
		t.Fatalf("expected %d seeded, got %d", len(service.DefaultFoods()), n)
	}
	if _, err := svc.CreateFood(ctx, service.CreateFoodInput{Name: "Protein bar", Brand: "Bananaland", Calories: 200}); err != nil {
		t.Fatalf("create food: %v", err)
	}

	all, err := svc.SearchFoods(ctx, "", 0)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(all) != n+1 {
		t.Fatalf("expected whole catalog, got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i-1].Name > all[i].Name {
			t.Fatalf("expected name order, got %q before %q", all[i-1].Name, all[i].Name)
		}
	}

	hits, err := svc.SearchFoods(ctx, "BANANA", 0)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 2 || hits[0].Name != "Banana" || hits[1].Name != "Protein bar" {
		t.Fatalf("expected name and brand matches, got %+v", hits)
	}

	capped, err := svc.SearchFoods(ctx, "", 3)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(capped) != 3 || capped[0].ID != all[0].ID {
		t.Fatalf("expected first 3 of the catalog, got %d", len(capped))
	}

	none, err := svc.SearchFoods(ctx, "100%_", 0)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected wildcards to match literally, got %d", len(none))
	}
}

func TestSearchFoodsHonorsCatalogCap(t *testing.T) {
	t.Parallel()
	s := service.NewStore(newTestDB(t), nil)
	svc := service.New(s, service.Options{CatalogCap: 2})
	ctx := context.Background()
	if _, err := svc.SeedDefaultFoods(ctx); err != nil {
		t.Fatalf("seed: %v", err)
	}
	foods, err := svc.SearchFoods(ctx, "", 100)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(foods) != 2 {
		t.Fatalf("expected cap of 2, got %d", len(foods))
	}
}

func TestSeedFoodsIsAllOrNothing(t *testing.T) {
	t.Parallel()
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.SeedFoods(ctx, []service.CreateFoodInput{
		{Name: "Good", Calories: 10},
		{Name: "", Calories: 10},
	})
	var verr *service.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	foods, err := svc.SearchFoods(ctx, "", 0)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(foods) != 0 {
		t.Fatalf("expected nothing written, got %d foods", len(foods))
	}

	if _, err := svc.SeedDefaultFoods(ctx); err != nil {
		t.Fatalf("seed: %v", err)
	}
	again, err := svc.SeedDefaultFoods(ctx)
	if err != nil {
		t.Fatalf("reseed: %v", err)
	}
	if again != 0 {
		t.Fatalf("expected reseed to skip a populated catalog, got %d", again)
	}
}
