package state_test

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/saadjs/nutrisync/internal/db"
	"github.com/saadjs/nutrisync/internal/model"
	"github.com/saadjs/nutrisync/internal/state"
	"github.com/saadjs/nutrisync/internal/store"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store *store.Store
	src   state.Sources
	state *state.AppState
	user  *model.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	sqldb, err := db.Open(filepath.Join(t.TempDir(), "bridge.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqldb.Close() })
	require.NoError(t, db.ApplyMigrations(sqldb))

	s := store.New(sqldb)
	f := &fixture{
		store: s,
		src: state.Sources{
			Users:   store.NewCollection[model.User](s),
			Diary:   store.NewCollection[model.DiaryEntry](s),
			Weights: store.NewCollection[model.WeightEntry](s),
		},
		state: state.New(),
	}
	require.NoError(t, s.Write(context.Background(), func(w *store.Writer) error {
		f.user, err = f.src.Users.Create(w, func(u *model.User) {
			u.Name = "Sam"
			u.CurrentWeightKg = 80
			u.DailyCalorieGoal = 2000
		})
		return err
	}))
	return f
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// writeFood logs a lunch entry without failing the test, for use off the test goroutine.
func (f *fixture) writeFood(userID, date string, calories float64) error {
	return f.store.Write(context.Background(), func(w *store.Writer) error {
		_, err := f.src.Diary.Create(w, func(e *model.DiaryEntry) {
			e.UserID = userID
			e.FoodID = "f1"
			e.Date = date
			e.MealType = model.Lunch
			e.Servings = 1
			e.Calories = calories
		})
		return err
	})
}

func (f *fixture) logFood(t *testing.T, userID, date string, calories float64) *model.DiaryEntry {
	t.Helper()
	var out *model.DiaryEntry
	require.NoError(t, f.store.Write(context.Background(), func(w *store.Writer) error {
		var err error
		out, err = f.src.Diary.Create(w, func(e *model.DiaryEntry) {
			e.UserID = userID
			e.FoodID = "f1"
			e.Date = date
			e.MealType = model.Lunch
			e.Servings = 1
			e.Calories = calories
			e.ProteinG = calories / 10
		})
		return err
	}))
	return out
}

func TestSumDiaryIsPureReduction(t *testing.T) {
	t.Parallel()
	entries := []*model.DiaryEntry{
		{Calories: 100, ProteinG: 10, CarbsG: 5, FatG: 1},
		{Calories: 250.5, ProteinG: 2, CarbsG: 30, FatG: 9},
	}
	first := state.SumDiary(entries)
	second := state.SumDiary(entries)
	assert.Equal(t, first, second)
	assert.Equal(t, model.Totals{Calories: 350.5, ProteinG: 12, CarbsG: 35, FatG: 10, Entries: 2}, first)
	assert.Equal(t, model.Totals{}, state.SumDiary(nil))
}

func TestBridgeTracksTodayAndUser(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	f.logFood(t, f.user.ID, "2024-05-01", 300)

	b := state.NewBridge(f.src, f.state, quietLogger(), 10)
	require.NoError(t, b.Start(ctx, f.user.ID, "2024-05-01"))
	defer b.Stop()

	u, ok := f.state.CurrentUser()
	require.True(t, ok)
	assert.Equal(t, "Sam", u.Name)
	assert.Equal(t, 300.0, f.state.Today().Totals.Calories)

	var events []state.Event
	unsubscribe := f.state.Subscribe(func(ev state.Event) { events = append(events, ev) })
	defer unsubscribe()

	f.logFood(t, f.user.ID, "2024-05-01", 200)
	f.logFood(t, f.user.ID, "2024-05-02", 999)
	f.logFood(t, "someone-else", "2024-05-01", 999)

	today := f.state.Today()
	assert.Equal(t, 500.0, today.Totals.Calories)
	assert.Equal(t, 2, today.Totals.Entries)
	assert.Equal(t, []state.Event{state.EventToday}, events)
	assert.Equal(t, 1500.0, f.state.TodayProgress().CaloriesLeft)

	require.NoError(t, f.store.Write(ctx, func(w *store.Writer) error {
		return f.src.Users.Update(w, f.user, func(u *model.User) { u.DailyCalorieGoal = 2500 })
	}))
	assert.Equal(t, 2000.0, f.state.TodayProgress().CaloriesLeft)

	require.NoError(t, b.SetDate(ctx, "2024-05-02"))
	assert.Equal(t, "2024-05-02", f.state.Today().Date)
	assert.Equal(t, 999.0, f.state.Today().Totals.Calories)
}

func TestBridgeWeightHistoryNewestFirstAndCapped(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	b := state.NewBridge(f.src, f.state, quietLogger(), 2)
	require.NoError(t, b.Start(ctx, f.user.ID, "2024-05-01"))
	defer b.Stop()
	assert.Empty(t, f.state.WeightHistory())

	for _, d := range []string{"2024-05-01", "2024-05-03", "2024-05-02"} {
		date := d
		require.NoError(t, f.store.Write(ctx, func(w *store.Writer) error {
			_, err := f.src.Weights.Create(w, func(e *model.WeightEntry) {
				e.UserID = f.user.ID
				e.Date = date
				e.WeightKg = 80
			})
			return err
		}))
	}
	history := f.state.WeightHistory()
	require.Len(t, history, 2)
	assert.Equal(t, "2024-05-03", history[0].Date)
	assert.Equal(t, "2024-05-02", history[1].Date)
}

func TestBridgeStopFreezesCache(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	b := state.NewBridge(f.src, f.state, quietLogger(), 0)
	require.NoError(t, b.Start(ctx, f.user.ID, "2024-05-01"))
	b.Stop()

	f.logFood(t, f.user.ID, "2024-05-01", 400)
	assert.Zero(t, f.state.Today().Totals.Calories)
	require.Error(t, b.SetDate(ctx, "2024-05-02"))
}

func TestBridgeClearsUserWhenRowDeleted(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	b := state.NewBridge(f.src, f.state, quietLogger(), 0)
	require.NoError(t, b.Start(ctx, f.user.ID, "2024-05-01"))
	defer b.Stop()

	require.NoError(t, f.store.Write(ctx, func(w *store.Writer) error {
		return f.src.Users.Destroy(w, f.user)
	}))
	_, ok := f.state.CurrentUser()
	assert.False(t, ok)
}

func TestBridgeFailedStartLeavesItStopped(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	b := state.NewBridge(f.src, f.state, quietLogger(), 0)
	require.NoError(t, b.Start(context.Background(), f.user.ID, "2024-05-01"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, b.Start(ctx, f.user.ID, "2024-05-02"))
	assert.Empty(t, b.Date())
	require.Error(t, b.SetDate(context.Background(), "2024-05-03"))

	f.logFood(t, f.user.ID, "2024-05-01", 400)
	assert.Zero(t, f.state.Today().Totals.Calories)
}

func TestStateSubscriberMayCallBackIntoStore(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	b := state.NewBridge(f.src, f.state, quietLogger(), 0)
	require.NoError(t, b.Start(ctx, f.user.ID, "2024-05-01"))
	defer b.Stop()

	// a presentation handler that logs a side dish the first time today changes
	added := false
	var sideErr error
	unsubscribe := f.state.Subscribe(func(ev state.Event) {
		if ev != state.EventToday || added {
			return
		}
		added = true
		sideErr = f.writeFood(f.user.ID, "2024-05-01", 50)
	})
	defer unsubscribe()

	done := make(chan error, 1)
	go func() { done <- f.writeFood(f.user.ID, "2024-05-01", 300) }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("write from a state subscriber never returned")
	}
	require.NoError(t, sideErr)
	assert.Equal(t, 350.0, f.state.Today().Totals.Calories)
	assert.Equal(t, 2, f.state.Today().Totals.Entries)
}

func TestAppStateCopiesAndUnsubscribe(t *testing.T) {
	t.Parallel()
	st := state.New()
	calls := 0
	unsubscribe := st.Subscribe(func(state.Event) { calls++ })

	u := &model.User{Name: "A"}
	st.SetCurrentUser(u)
	u.Name = "B"
	got, ok := st.CurrentUser()
	require.True(t, ok)
	assert.Equal(t, "A", got.Name)

	unsubscribe()
	unsubscribe()
	st.ClearCurrentUser()
	assert.Equal(t, 1, calls)
	_, ok = st.CurrentUser()
	assert.False(t, ok)
}
