package service_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/saadjs/nutrisync/internal/db"
	"github.com/saadjs/nutrisync/internal/model"
	"github.com/saadjs/nutrisync/internal/service"
	"github.com/saadjs/nutrisync/internal/store"
)

var fixedNow = time.Date(2024, time.June, 15, 9, 30, 0, 0, time.UTC)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nutrisync.db")
	sqldb, err := db.Open(path)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.ApplyMigrations(sqldb); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	t.Cleanup(func() { _ = sqldb.Close() })
	return sqldb
}

func newTestService(t *testing.T, storeOpts ...store.Option) *service.Service {
	t.Helper()
	s := service.NewStore(newTestDB(t), nil, storeOpts...)
	return service.New(s, service.Options{Now: func() time.Time { return fixedNow }})
}

// newOnboardedUser is the worked example: male, 30, 180 cm, 80 kg, moderately
// active, losing weight.
func newOnboardedUser(t *testing.T, svc *service.Service) *model.User {
	t.Helper()
	ctx := context.Background()
	u, err := svc.CreateUser(ctx, service.CreateUserInput{
		Name:          "Alex",
		DateOfBirth:   "1994-01-10",
		Gender:        "male",
		HeightCm:      180,
		WeightKg:      80,
		GoalWeightKg:  75,
		ActivityLevel: "moderately_active",
		GoalType:      "lose",
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	u, err = svc.SetupInitialGoals(ctx, u.ID)
	if err != nil {
		t.Fatalf("setup goals: %v", err)
	}
	return u
}

func newFood(t *testing.T, svc *service.Service, name string, calories float64) *model.Food {
	t.Helper()
	f, err := svc.CreateFood(context.Background(), service.CreateFoodInput{
		Name:     name,
		Calories: calories,
		ProteinG: calories / 20,
		CarbsG:   calories / 10,
		FatG:     calories / 40,
	})
	if err != nil {
		t.Fatalf("create food %q: %v", name, err)
	}
	return f
}
