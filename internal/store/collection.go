package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/jmoiron/sqlx"
)

// Collection is the typed accessor for one table.
type Collection[T any, P RecordPtr[T]] struct {
	store   *Store
	table   string
	columns []string

	selectSQL string
	insertSQL string
	updateSQL string
}

func NewCollection[T any, P RecordPtr[T]](s *Store) *Collection[T, P] {
	table := P(new(T)).TableName()
	cols := columnsOf(s.db.Mapper, reflect.TypeOf((*T)(nil)).Elem())

	named := make([]string, len(cols))
	sets := make([]string, 0, len(cols)-1)
	for i, col := range cols {
		named[i] = ":" + col
		if col != "id" {
			sets = append(sets, col+" = :"+col)
		}
	}

	s.registerTable(table)
	return &Collection[T, P]{
		store:     s,
		table:     table,
		columns:   cols,
		selectSQL: fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), table),
		insertSQL: fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(cols, ", "), strings.Join(named, ", ")),
		updateSQL: fmt.Sprintf("UPDATE %s SET %s WHERE id = :id", table, strings.Join(sets, ", ")),
	}
}

func (c *Collection[T, P]) Table() string { return c.table }

func (c *Collection[T, P]) image(rec P) map[string]any {
	return imageOf(c.store.db.Mapper, c.columns, rec)
}

// Find returns the record with id or a *NotFoundError.
func (c *Collection[T, P]) Find(ctx context.Context, id string) (P, error) {
	var rec T
	err := sqlx.GetContext(ctx, c.store.queryer(ctx), &rec, c.selectSQL+" WHERE id = ?", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &NotFoundError{Table: c.table, ID: id}
		}
		return nil, fmt.Errorf("find %s %q: %w", c.table, id, err)
	}
	return P(&rec), nil
}

// FindIn reads through w's transaction and so sees its uncommitted writes.
func (c *Collection[T, P]) FindIn(w *Writer, id string) (P, error) {
	if err := w.active(c.store); err != nil {
		return nil, err
	}
	return c.Find(w.ctx, id)
}

// Query starts a lazy query; nothing runs until Fetch, Count, or Observe.
func (c *Collection[T, P]) Query(clauses ...Clause) *Query[T, P] {
	return &Query[T, P]{coll: c, where: append([]Clause(nil), clauses...)}
}

// Create builds a record with init and inserts it. The store assigns the id (unless
// init sets one) and both timestamps.
func (c *Collection[T, P]) Create(w *Writer, init func(P)) (P, error) {
	if err := w.active(c.store); err != nil {
		return nil, err
	}
	rec := P(new(T))
	if init != nil {
		init(rec)
	}
	meta := rec.RecordMeta()
	if meta.ID == "" {
		meta.ID = c.store.newID()
	}
	now := c.store.now().UnixMilli()
	meta.CreatedAt = now
	meta.UpdatedAt = now

	change := Change{Table: c.table, Kind: Created, ID: meta.ID, After: c.image(rec)}
	if err := w.runHooks(change); err != nil {
		return nil, err
	}
	if _, err := w.tx.NamedExecContext(w.ctx, c.insertSQL, rec); err != nil {
		return nil, fmt.Errorf("insert %s: %w", c.table, err)
	}
	w.track(change)
	return rec, nil
}

// Update applies fn to a copy of rec and persists it. id and created_at cannot be
// changed by fn. rec is overwritten only when the row was written.
func (c *Collection[T, P]) Update(w *Writer, rec P, fn func(P)) error {
	if err := w.active(c.store); err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("update %s: nil record", c.table)
	}
	before := c.image(rec)
	next := new(T)
	*next = *rec
	if fn != nil {
		fn(P(next))
	}
	meta, orig := P(next).RecordMeta(), rec.RecordMeta()
	meta.ID = orig.ID
	meta.CreatedAt = orig.CreatedAt
	meta.UpdatedAt = c.store.now().UnixMilli()

	change := Change{Table: c.table, Kind: Updated, ID: meta.ID, Before: before, After: c.image(P(next))}
	if err := w.runHooks(change); err != nil {
		return err
	}
	res, err := w.tx.NamedExecContext(w.ctx, c.updateSQL, next)
	if err != nil {
		return fmt.Errorf("update %s %q: %w", c.table, meta.ID, err)
	}
	if err := expectOneRow(res, c.table, meta.ID); err != nil {
		return err
	}
	*rec = *next
	w.track(change)
	return nil
}

// Destroy deletes rec's row.
func (c *Collection[T, P]) Destroy(w *Writer, rec P) error {
	if err := w.active(c.store); err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("destroy %s: nil record", c.table)
	}
	id := rec.RecordMeta().ID
	change := Change{Table: c.table, Kind: Destroyed, ID: id, Before: c.image(rec)}
	if err := w.runHooks(change); err != nil {
		return err
	}
	res, err := w.tx.ExecContext(w.ctx, "DELETE FROM "+c.table+" WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete %s %q: %w", c.table, id, err)
	}
	if err := expectOneRow(res, c.table, id); err != nil {
		return err
	}
	w.track(change)
	return nil
}

func expectOneRow(res sql.Result, table, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("read rows affected: %w", err)
	}
	if affected == 0 {
		return &NotFoundError{Table: table, ID: id}
	}
	return nil
}
