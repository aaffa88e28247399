// Package store is the observable record store behind the diary: typed collections
// over sqlite tables, a serialized write transaction, and live queries that
// re-deliver their results after every relevant commit.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrNoTransaction = errors.New("mutation outside a write transaction")
	ErrWriteTimeout  = errors.New("timed out waiting for the writer")
	ErrNestedWrite   = errors.New("write transaction already open on this context")
	ErrUnknownTable  = errors.New("unknown table")
)

// NotFoundError reports a Find on a missing id. It matches ErrNotFound.
type NotFoundError struct {
	Table string
	ID    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q: %s", e.Table, e.ID, ErrNotFound)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// TxError wraps a failure inside a write transaction. The batch was rolled back.
type TxError struct {
	Op  string
	Err error
}

func (e *TxError) Error() string { return fmt.Sprintf("write transaction %s: %v", e.Op, e.Err) }

func (e *TxError) Unwrap() error { return e.Err }

type ChangeKind string

const (
	Created   ChangeKind = "created"
	Updated   ChangeKind = "updated"
	Destroyed ChangeKind = "destroyed"
	Cleared   ChangeKind = "cleared"
)

// Change describes one row mutation. Before is nil for creates, After is nil for
// destroys, and both are nil when a whole table is cleared.
type Change struct {
	Table  string
	Kind   ChangeKind
	ID     string
	Before map[string]any
	After  map[string]any
}

// ChangeHook runs before a change is applied; an error aborts the transaction.
type ChangeHook func(ctx context.Context, c Change) error

type Option func(*Store)

// WithWriteTimeout bounds how long Write waits for the writer slot. Zero waits forever.
func WithWriteTimeout(d time.Duration) Option {
	return func(s *Store) { s.writeTimeout = d }
}

func WithChangeHook(h ChangeHook) Option {
	return func(s *Store) { s.hooks = append(s.hooks, h) }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Store) { s.log = log }
}

type Store struct {
	db           *sqlx.DB
	writeSlot    chan struct{}
	writeTimeout time.Duration
	hooks        []ChangeHook
	now          func() time.Time
	newID        func() string
	log          logrus.FieldLogger

	mu        sync.Mutex
	tables    map[string]bool
	observers map[uint64]*observer
	nextObsID uint64
}

const defaultWriteTimeout = 10 * time.Second

func New(sqldb *sql.DB, opts ...Option) *Store {
	discard := logrus.New()
	discard.SetOutput(io.Discard)
	s := &Store{
		db:           sqlx.NewDb(sqldb, "sqlite"),
		writeSlot:    make(chan struct{}, 1),
		writeTimeout: defaultWriteTimeout,
		now:          time.Now,
		newID:        func() string { return uuid.NewString() },
		log:          discard,
		tables:       map[string]bool{},
		observers:    map[uint64]*observer{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) DB() *sqlx.DB { return s.db }

func (s *Store) registerTable(name string) {
	s.mu.Lock()
	s.tables[name] = true
	s.mu.Unlock()
}

// TableNames lists every table with a registered collection, sorted.
func (s *Store) TableNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.tables))
	for name := range s.tables {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

type writerKey struct{}

// Writer is the handle to an open write transaction. It is only valid inside the
// function passed to Store.Write.
type Writer struct {
	ctx     context.Context
	store   *Store
	tx      *sqlx.Tx
	changes []Change
	done    bool
}

// Context returns a context bound to this transaction; reads made with it see the
// transaction's uncommitted writes.
func (w *Writer) Context() context.Context { return w.ctx }

func (w *Writer) active(s *Store) error {
	if w == nil || w.done {
		return ErrNoTransaction
	}
	if w.store != s {
		return fmt.Errorf("writer belongs to another store: %w", ErrNoTransaction)
	}
	return nil
}

func (w *Writer) runHooks(c Change) error {
	for _, h := range w.store.hooks {
		if err := h(w.ctx, c); err != nil {
			return fmt.Errorf("%s %s %s: %w", c.Kind, c.Table, c.ID, err)
		}
	}
	return nil
}

func (w *Writer) track(c Change) { w.changes = append(w.changes, c) }

// queryer picks the open transaction when ctx belongs to one of this store's writers.
func (s *Store) queryer(ctx context.Context) sqlx.QueryerContext {
	if w, ok := ctx.Value(writerKey{}).(*Writer); ok && w.store == s && !w.done {
		return w.tx
	}
	return s.db
}

func (s *Store) acquire(ctx context.Context) error {
	if s.writeTimeout <= 0 {
		select {
		case s.writeSlot <- struct{}{}:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	timer := time.NewTimer(s.writeTimeout)
	defer timer.Stop()
	select {
	case s.writeSlot <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrWriteTimeout
	}
}

func (s *Store) release() { <-s.writeSlot }

// Write runs fn inside a single write transaction. Every mutation made through the
// writer commits together or not at all; observers are notified after the commit.
func (s *Store) Write(ctx context.Context, fn func(w *Writer) error) error {
	if w, ok := ctx.Value(writerKey{}).(*Writer); ok && w.store == s && !w.done {
		return ErrNestedWrite
	}
	if err := s.acquire(ctx); err != nil {
		return err
	}
	changes, err := func() ([]Change, error) {
		defer s.release()
		return s.runWrite(ctx, fn)
	}()
	if err != nil {
		s.log.WithError(err).Debug("write transaction rolled back")
		return err
	}
	if len(changes) > 0 {
		s.log.WithField("changes", len(changes)).Debug("write transaction committed")
		s.notify(context.WithoutCancel(ctx), changes)
	}
	return nil
}

func (s *Store) runWrite(ctx context.Context, fn func(w *Writer) error) (changes []Change, err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, &TxError{Op: "begin", Err: err}
	}
	w := &Writer{store: s, tx: tx}
	w.ctx = context.WithValue(ctx, writerKey{}, w)
	defer func() {
		w.done = true
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(w); err != nil {
		_ = tx.Rollback()
		return nil, &TxError{Op: "apply", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return nil, &TxError{Op: "commit", Err: err}
	}
	return w.changes, nil
}

// ClearTable deletes every row of table in one transaction.
func (s *Store) ClearTable(ctx context.Context, table string) error {
	return s.Write(ctx, func(w *Writer) error {
		return s.clear(w, table)
	})
}

// Nuke clears every registered table in one transaction.
func (s *Store) Nuke(ctx context.Context) error {
	return s.Write(ctx, func(w *Writer) error {
		for _, table := range s.TableNames() {
			if err := s.clear(w, table); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) clear(w *Writer, table string) error {
	if err := w.active(s); err != nil {
		return err
	}
	s.mu.Lock()
	known := s.tables[table]
	s.mu.Unlock()
	if !known {
		return fmt.Errorf("%w: %q", ErrUnknownTable, table)
	}
	c := Change{Table: table, Kind: Cleared}
	if err := w.runHooks(c); err != nil {
		return err
	}
	if _, err := w.tx.ExecContext(w.ctx, "DELETE FROM "+table); err != nil {
		return fmt.Errorf("clear %s: %w", table, err)
	}
	w.track(c)
	return nil
}
