package store

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
)

type observer struct {
	id       uint64
	affected func(Change) bool
	refresh  func(ctx context.Context)
}

// Subscription is a live query registration. Its handler stops being called once
// Unsubscribe returns, except for a delivery already running on another goroutine.
type Subscription struct {
	store  *Store
	id     uint64
	closed atomic.Bool

	mu      sync.Mutex
	running bool
	pending bool
}

func (sub *Subscription) Unsubscribe() {
	if sub == nil || sub.closed.Swap(true) {
		return
	}
	sub.store.mu.Lock()
	delete(sub.store.observers, sub.id)
	sub.store.mu.Unlock()
}

func (sub *Subscription) Active() bool { return sub != nil && !sub.closed.Load() }

// deliver runs fn unless the subscription was closed meanwhile. Deliveries for one
// subscription never overlap: a request arriving while fn runs, including one from
// a write made inside fn, is folded into a single extra run after fn returns.
func (sub *Subscription) deliver(fn func()) {
	sub.mu.Lock()
	if sub.running {
		sub.pending = true
		sub.mu.Unlock()
		return
	}
	sub.running = true
	sub.mu.Unlock()

	for {
		if !sub.closed.Load() {
			fn()
		}
		sub.mu.Lock()
		if !sub.pending || sub.closed.Load() {
			sub.running = false
			sub.pending = false
			sub.mu.Unlock()
			return
		}
		sub.pending = false
		sub.mu.Unlock()
	}
}

// Observe delivers the query's current result now and again after every committed
// write that could have changed it. A failed refetch is delivered as an error; the
// subscription stays open.
func (q *Query[T, P]) Observe(ctx context.Context, fn func([]P, error)) (*Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, _, err := q.build(); err != nil {
		return nil, err
	}
	s := q.coll.store
	query := q.clone()

	s.mu.Lock()
	s.nextObsID++
	sub := &Subscription{store: s, id: s.nextObsID}
	s.mu.Unlock()

	refresh := func(ctx context.Context) {
		sub.deliver(func() {
			rows, err := query.Fetch(ctx)
			fn(rows, err)
		})
	}

	// register before the first fetch so a commit landing in between still reaches us
	s.mu.Lock()
	s.observers[sub.id] = &observer{id: sub.id, affected: query.affectedBy, refresh: refresh}
	s.mu.Unlock()

	refresh(ctx)
	return sub, nil
}

// notify refreshes, in subscription order, every observer that one of changes
// could affect. Each observer is refreshed at most once per commit.
func (s *Store) notify(ctx context.Context, changes []Change) {
	s.mu.Lock()
	pending := make([]*observer, 0, len(s.observers))
	for _, o := range s.observers {
		pending = append(pending, o)
	}
	s.mu.Unlock()
	sort.Slice(pending, func(i, j int) bool { return pending[i].id < pending[j].id })

	for _, o := range pending {
		for _, c := range changes {
			if o.affected(c) {
				o.refresh(ctx)
				break
			}
		}
	}
}
