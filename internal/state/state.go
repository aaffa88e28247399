// Package state is the in-process cache presentation code reads from: the current
// user, today's diary totals, and recent weight history.
package state

import (
	"sort"
	"sync"

	"github.com/saadjs/nutrisync/internal/model"
)

type Event string

const (
	EventUser          Event = "user"
	EventToday         Event = "today"
	EventWeightHistory Event = "weight_history"
)

// Today is the reduced diary of one user and day.
type Today struct {
	UserID string       `json:"user_id"`
	Date   string       `json:"date"`
	Totals model.Totals `json:"totals"`
}

// AppState is safe for concurrent use. Getters return copies.
type AppState struct {
	mu      sync.RWMutex
	user    *model.User
	today   Today
	weights []model.WeightEntry

	subMu  sync.Mutex
	subs   map[uint64]func(Event)
	nextID uint64
}

func New() *AppState {
	return &AppState{subs: map[uint64]func(Event){}}
}

// Subscribe registers fn for every change; the returned func removes it.
func (s *AppState) Subscribe(fn func(Event)) func() {
	s.subMu.Lock()
	s.nextID++
	id := s.nextID
	s.subs[id] = fn
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

func (s *AppState) publish(ev Event) {
	s.subMu.Lock()
	ids := make([]uint64, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	handlers := make([]func(Event), 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, s.subs[id])
	}
	s.subMu.Unlock()

	for _, h := range handlers {
		h(ev)
	}
}

func (s *AppState) SetCurrentUser(u *model.User) {
	if u == nil {
		s.ClearCurrentUser()
		return
	}
	cp := *u
	s.mu.Lock()
	s.user = &cp
	s.mu.Unlock()
	s.publish(EventUser)
}

func (s *AppState) CurrentUser() (model.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return model.User{}, false
	}
	return *s.user, true
}

// ClearCurrentUser drops the user and everything derived from them.
func (s *AppState) ClearCurrentUser() {
	s.mu.Lock()
	s.user = nil
	s.today = Today{}
	s.weights = nil
	s.mu.Unlock()
	s.publish(EventUser)
}

func (s *AppState) SetToday(t Today) {
	s.mu.Lock()
	s.today = t
	s.mu.Unlock()
	s.publish(EventToday)
}

func (s *AppState) Today() Today {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.today
}

// TodayProgress compares today's totals with the cached user's goals.
func (s *AppState) TodayProgress() model.Progress {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return model.NewProgress(s.today.Totals, s.user)
}

func (s *AppState) SetWeightHistory(entries []model.WeightEntry) {
	cp := append([]model.WeightEntry(nil), entries...)
	s.mu.Lock()
	s.weights = cp
	s.mu.Unlock()
	s.publish(EventWeightHistory)
}

func (s *AppState) WeightHistory() []model.WeightEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.WeightEntry(nil), s.weights...)
}
