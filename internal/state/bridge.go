package state

import (
	"context"
	"fmt"
	"sync"

	"github.com/saadjs/nutrisync/internal/model"
	"github.com/saadjs/nutrisync/internal/store"
	"github.com/sirupsen/logrus"
)

// Sources are the collections the bridge observes.
type Sources struct {
	Users   *store.Collection[model.User, *model.User]
	Diary   *store.Collection[model.DiaryEntry, *model.DiaryEntry]
	Weights *store.Collection[model.WeightEntry, *model.WeightEntry]
}

const defaultHistoryCap = 30

// Bridge keeps an AppState in step with live store queries for one user.
type Bridge struct {
	src        Sources
	state      *AppState
	log        logrus.FieldLogger
	historyCap int

	mu      sync.Mutex
	userID  string
	date    string
	userSub *store.Subscription
	daySub  *store.Subscription
	histSub *store.Subscription
}

func NewBridge(src Sources, st *AppState, log logrus.FieldLogger, historyCap int) *Bridge {
	if historyCap <= 0 {
		historyCap = defaultHistoryCap
	}
	return &Bridge{src: src, state: st, log: log, historyCap: historyCap}
}

// SumDiary reduces entries to totals. The result depends only on entries.
func SumDiary(entries []*model.DiaryEntry) model.Totals {
	var t model.Totals
	for _, e := range entries {
		t.Add(e)
	}
	return t
}

// Start observes userID's row, diary for date, and weight history. Any previous
// observation is stopped first. The cache is populated before Start returns. On
// error the bridge is left stopped.
func (b *Bridge) Start(ctx context.Context, userID, date string) error {
	b.Stop()

	b.mu.Lock()
	b.userID = userID
	b.date = date
	b.mu.Unlock()

	userSub, err := b.src.Users.Query(store.Eq("id", userID)).Observe(ctx, func(rows []*model.User, err error) {
		if err != nil {
			b.log.WithError(err).WithField("user_id", userID).Warn("refresh current user")
			return
		}
		if !b.current(userID, "") {
			return
		}
		if len(rows) == 0 {
			b.state.ClearCurrentUser()
			return
		}
		b.state.SetCurrentUser(rows[0])
	})
	if err != nil {
		b.Stop()
		return fmt.Errorf("observe user: %w", err)
	}

	histSub, err := b.src.Weights.Query(store.Eq("user_id", userID)).
		SortBy("date", store.Desc).
		Take(b.historyCap).
		Observe(ctx, func(rows []*model.WeightEntry, err error) {
			if err != nil {
				b.log.WithError(err).WithField("user_id", userID).Warn("refresh weight history")
				return
			}
			if !b.current(userID, "") {
				return
			}
			entries := make([]model.WeightEntry, len(rows))
			for i, r := range rows {
				entries[i] = *r
			}
			b.state.SetWeightHistory(entries)
		})
	if err != nil {
		userSub.Unsubscribe()
		b.Stop()
		return fmt.Errorf("observe weight history: %w", err)
	}

	b.mu.Lock()
	b.userSub, b.histSub = userSub, histSub
	b.mu.Unlock()

	if err := b.SetDate(ctx, date); err != nil {
		b.Stop()
		return err
	}
	return nil
}

// SetDate moves the diary observation to another day.
func (b *Bridge) SetDate(ctx context.Context, date string) error {
	b.mu.Lock()
	userID := b.userID
	old := b.daySub
	b.date = date
	b.daySub = nil
	b.mu.Unlock()
	old.Unsubscribe()

	if userID == "" {
		return fmt.Errorf("bridge not started")
	}
	sub, err := b.src.Diary.Query(store.Eq("date", date), store.Eq("user_id", userID)).Observe(ctx, func(rows []*model.DiaryEntry, err error) {
		if err != nil {
			b.log.WithError(err).WithFields(logrus.Fields{"user_id": userID, "date": date}).Warn("refresh diary totals")
			return
		}
		if !b.current(userID, date) {
			return
		}
		b.state.SetToday(Today{UserID: userID, Date: date, Totals: SumDiary(rows)})
	})
	if err != nil {
		return fmt.Errorf("observe diary: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.userID != userID || b.date != date {
		sub.Unsubscribe()
		return nil
	}
	b.daySub = sub
	return nil
}

func (b *Bridge) Date() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.date
}

// Stop ends every observation. The cache keeps its last values.
func (b *Bridge) Stop() {
	b.mu.Lock()
	subs := []*store.Subscription{b.userSub, b.daySub, b.histSub}
	b.userSub, b.daySub, b.histSub = nil, nil, nil
	b.userID, b.date = "", ""
	b.mu.Unlock()
	for _, s := range subs {
		s.Unsubscribe()
	}
}

// current drops deliveries for a user or day the bridge has moved away from.
func (b *Bridge) current(userID, date string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.userID == userID && (date == "" || b.date == date)
}
