package model

import (
	"github.com/saadjs/nutrisync/internal/db"
	"github.com/saadjs/nutrisync/internal/store"
)

type Gender string

const (
	Male   Gender = "male"
	Female Gender = "female"
	Other  Gender = "other"
)

type ActivityLevel string

const (
	Sedentary        ActivityLevel = "sedentary"
	LightlyActive    ActivityLevel = "lightly_active"
	ModeratelyActive ActivityLevel = "moderately_active"
	VeryActive       ActivityLevel = "very_active"
)

type GoalType string

const (
	GoalLose     GoalType = "lose"
	GoalMaintain GoalType = "maintain"
	GoalGain     GoalType = "gain"
)

type MealType string

const (
	Breakfast MealType = "breakfast"
	Lunch     MealType = "lunch"
	Dinner    MealType = "dinner"
	Snacks    MealType = "snacks"
)

// MealTypes is the display order of meals within a day.
var MealTypes = []MealType{Breakfast, Lunch, Dinner, Snacks}

func (m MealType) Valid() bool {
	for _, known := range MealTypes {
		if m == known {
			return true
		}
	}
	return false
}

// Rank orders meals within a day; unknown meals sort last.
func (m MealType) Rank() int {
	for i, known := range MealTypes {
		if m == known {
			return i
		}
	}
	return len(MealTypes)
}

type User struct {
	store.Meta
	RemoteID           string        `db:"remote_id" json:"remote_id,omitempty"`
	Email              string        `db:"email" json:"email,omitempty"`
	Name               string        `db:"name" json:"name"`
	DateOfBirth        string        `db:"date_of_birth" json:"date_of_birth,omitempty"`
	Gender             Gender        `db:"gender" json:"gender"`
	HeightCm           float64       `db:"height_cm" json:"height_cm"`
	CurrentWeightKg    float64       `db:"current_weight_kg" json:"current_weight_kg"`
	GoalWeightKg       float64       `db:"goal_weight_kg" json:"goal_weight_kg"`
	ActivityLevel      ActivityLevel `db:"activity_level" json:"activity_level"`
	GoalType           GoalType      `db:"goal_type" json:"goal_type"`
	GoalRateKgPerWeek  float64       `db:"goal_rate_kg_per_week" json:"goal_rate_kg_per_week"`
	TDEE               int           `db:"tdee" json:"tdee"`
	DailyCalorieGoal   int           `db:"daily_calorie_goal" json:"daily_calorie_goal"`
	ProteinGoalG       int           `db:"protein_goal_g" json:"protein_goal_g"`
	CarbsGoalG         int           `db:"carbs_goal_g" json:"carbs_goal_g"`
	FatGoalG           int           `db:"fat_goal_g" json:"fat_goal_g"`
	FiberGoalG         int           `db:"fiber_goal_g" json:"fiber_goal_g"`
	GoalsBasisWeightKg float64       `db:"goals_basis_weight_kg" json:"goals_basis_weight_kg"`
}

func (User) TableName() string { return db.UsersTable }

type Food struct {
	store.Meta
	Name        string  `db:"name" json:"name"`
	Brand       string  `db:"brand" json:"brand,omitempty"`
	Calories    float64 `db:"calories" json:"calories"`
	ProteinG    float64 `db:"protein_g" json:"protein_g"`
	CarbsG      float64 `db:"carbs_g" json:"carbs_g"`
	FatG        float64 `db:"fat_g" json:"fat_g"`
	FiberG      float64 `db:"fiber_g" json:"fiber_g"`
	ServingSize float64 `db:"serving_size" json:"serving_size"`
	ServingUnit string  `db:"serving_unit" json:"serving_unit"`
}

func (Food) TableName() string { return db.FoodsTable }

// DiaryEntry nutrition is the food's value times servings at logging time. Later
// edits to the food do not touch it.
type DiaryEntry struct {
	store.Meta
	Date     string   `db:"date" json:"date"`
	MealType MealType `db:"meal_type" json:"meal_type"`
	Servings float64  `db:"servings" json:"servings"`
	UserID   string   `db:"user_id" json:"user_id"`
	FoodID   string   `db:"food_id" json:"food_id"`
	Calories float64  `db:"calories" json:"calories"`
	ProteinG float64  `db:"protein_g" json:"protein_g"`
	CarbsG   float64  `db:"carbs_g" json:"carbs_g"`
	FatG     float64  `db:"fat_g" json:"fat_g"`
}

func (DiaryEntry) TableName() string { return db.DiaryEntriesTable }

type WeightEntry struct {
	store.Meta
	WeightKg float64 `db:"weight_kg" json:"weight_kg"`
	Date     string  `db:"date" json:"date"`
	UserID   string  `db:"user_id" json:"user_id"`
	Notes    string  `db:"notes" json:"notes,omitempty"`
}

func (WeightEntry) TableName() string { return db.WeightEntriesTable }

// Totals sums diary nutrition.
type Totals struct {
	Calories float64 `json:"calories"`
	ProteinG float64 `json:"protein_g"`
	CarbsG   float64 `json:"carbs_g"`
	FatG     float64 `json:"fat_g"`
	Entries  int     `json:"entries"`
}

func (t *Totals) Add(e *DiaryEntry) {
	t.Calories += e.Calories
	t.ProteinG += e.ProteinG
	t.CarbsG += e.CarbsG
	t.FatG += e.FatG
	t.Entries++
}
