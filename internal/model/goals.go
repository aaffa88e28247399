package model

import (
	"math"
	"time"
)

// DateLayout is the day key shared by diary and weight entries.
const DateLayout = "2006-01-02"

// GoalPolicy holds the tunables of the goal computation.
type GoalPolicy struct {
	// CalorieAdjustment is subtracted from TDEE to lose and added to gain.
	CalorieAdjustment int
	// RateKgPerWeek is the planned weekly change for lose and gain goals.
	RateKgPerWeek float64
}

func DefaultGoalPolicy() GoalPolicy {
	return GoalPolicy{CalorieAdjustment: 500, RateKgPerWeek: 0.5}
}

// Profile is the subset of a user the derived goals depend on.
type Profile struct {
	Gender        Gender
	DateOfBirth   string
	HeightCm      float64
	WeightKg      float64
	ActivityLevel ActivityLevel
	GoalType      GoalType
}

type Goals struct {
	BMR               int     `json:"bmr"`
	TDEE              int     `json:"tdee"`
	DailyCalorieGoal  int     `json:"daily_calorie_goal"`
	ProteinG          int     `json:"protein_goal_g"`
	CarbsG            int     `json:"carbs_goal_g"`
	FatG              int     `json:"fat_goal_g"`
	FiberG            int     `json:"fiber_goal_g"`
	GoalRateKgPerWeek float64 `json:"goal_rate_kg_per_week"`
	BasisWeightKg     float64 `json:"basis_weight_kg"`
}

var activityMultipliers = map[ActivityLevel]float64{
	Sedentary:        1.20,
	LightlyActive:    1.375,
	ModeratelyActive: 1.55,
	VeryActive:       1.725,
}

// ActivityMultiplier falls back to sedentary for unknown levels.
func ActivityMultiplier(level ActivityLevel) float64 {
	if m, ok := activityMultipliers[level]; ok {
		return m
	}
	return activityMultipliers[Sedentary]
}

// AgeOn returns whole years between dob and now. ok is false when dob is empty,
// unparseable, or in the future.
func AgeOn(dob string, now time.Time) (age int, ok bool) {
	if dob == "" {
		return 0, false
	}
	born, err := time.Parse(DateLayout, dob)
	if err != nil {
		return 0, false
	}
	age = now.Year() - born.Year()
	if now.Month() < born.Month() || (now.Month() == born.Month() && now.Day() < born.Day()) {
		age--
	}
	if age < 0 {
		return 0, false
	}
	return age, true
}

// BMR is the Mifflin-St Jeor estimate, or 0 when age, height, or weight is missing.
func BMR(gender Gender, age int, heightCm, weightKg float64) int {
	if age <= 0 || heightCm <= 0 || weightKg <= 0 {
		return 0
	}
	base := 10*weightKg + 6.25*heightCm - 5*float64(age)
	if gender == Male {
		return int(math.Round(base + 5))
	}
	return int(math.Round(base - 161))
}

func TDEE(bmr int, level ActivityLevel) int {
	return int(math.Round(float64(bmr) * ActivityMultiplier(level)))
}

// ComputeGoals derives the full goal set. It has no side effects.
func ComputeGoals(p Profile, now time.Time, policy GoalPolicy) Goals {
	age, _ := AgeOn(p.DateOfBirth, now)
	bmr := BMR(p.Gender, age, p.HeightCm, p.WeightKg)
	tdee := TDEE(bmr, p.ActivityLevel)

	calories := tdee
	rate := policy.RateKgPerWeek
	switch p.GoalType {
	case GoalLose:
		calories -= policy.CalorieAdjustment
	case GoalGain:
		calories += policy.CalorieAdjustment
	default:
		rate = 0
	}
	if calories < 0 {
		calories = 0
	}

	fiber := 25
	if p.Gender == Male {
		fiber = 38
	}
	return Goals{
		BMR:               bmr,
		TDEE:              tdee,
		DailyCalorieGoal:  calories,
		ProteinG:          int(math.Round(0.30 * float64(calories) / 4)),
		CarbsG:            int(math.Round(0.40 * float64(calories) / 4)),
		FatG:              int(math.Round(0.30 * float64(calories) / 9)),
		FiberG:            fiber,
		GoalRateKgPerWeek: rate,
		BasisWeightKg:     p.WeightKg,
	}
}

func (u *User) Profile() Profile {
	return Profile{
		Gender:        u.Gender,
		DateOfBirth:   u.DateOfBirth,
		HeightCm:      u.HeightCm,
		WeightKg:      u.CurrentWeightKg,
		ActivityLevel: u.ActivityLevel,
		GoalType:      u.GoalType,
	}
}

// ApplyGoals overwrites every derived field of u.
func (u *User) ApplyGoals(g Goals) {
	u.TDEE = g.TDEE
	u.DailyCalorieGoal = g.DailyCalorieGoal
	u.ProteinGoalG = g.ProteinG
	u.CarbsGoalG = g.CarbsG
	u.FatGoalG = g.FatG
	u.FiberGoalG = g.FiberG
	u.GoalRateKgPerWeek = g.GoalRateKgPerWeek
	u.GoalsBasisWeightKg = g.BasisWeightKg
}

// Age is the user's age today, if known.
func (u *User) Age(now time.Time) (int, bool) { return AgeOn(u.DateOfBirth, now) }

// HasGoals reports whether goals were ever computed for u.
func (u *User) HasGoals() bool { return u.GoalsBasisWeightKg > 0 || u.DailyCalorieGoal > 0 }

// Progress compares totals against a user's goals.
type Progress struct {
	Totals         Totals  `json:"totals"`
	CalorieGoal    int     `json:"calorie_goal"`
	ProteinGoalG   int     `json:"protein_goal_g"`
	CarbsGoalG     int     `json:"carbs_goal_g"`
	FatGoalG       int     `json:"fat_goal_g"`
	CaloriesLeft   float64 `json:"calories_left"`
	CaloriePercent float64 `json:"calorie_percent"`
}

func NewProgress(t Totals, u *User) Progress {
	p := Progress{Totals: t}
	if u == nil {
		return p
	}
	p.CalorieGoal = u.DailyCalorieGoal
	p.ProteinGoalG = u.ProteinGoalG
	p.CarbsGoalG = u.CarbsGoalG
	p.FatGoalG = u.FatGoalG
	p.CaloriesLeft = float64(u.DailyCalorieGoal) - t.Calories
	if u.DailyCalorieGoal > 0 {
		p.CaloriePercent = math.Round(t.Calories/float64(u.DailyCalorieGoal)*1000) / 10
	}
	return p
}
