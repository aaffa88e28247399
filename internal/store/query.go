package store

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/jmoiron/sqlx"
)

// Clause is a predicate that renders to SQL and can also test a changed row.
type Clause interface {
	sql() (string, []any, error)
	match(row map[string]any) bool
}

type compareOp string

const (
	opEq    compareOp = "="
	opNotEq compareOp = "!="
	opGt    compareOp = ">"
	opGte   compareOp = ">="
	opLt    compareOp = "<"
	opLte   compareOp = "<="
)

type compare struct {
	column string
	op     compareOp
	value  any
}

func Eq(column string, value any) Clause    { return compare{column, opEq, value} }
func NotEq(column string, value any) Clause { return compare{column, opNotEq, value} }
func Gt(column string, value any) Clause    { return compare{column, opGt, value} }
func Gte(column string, value any) Clause   { return compare{column, opGte, value} }
func Lt(column string, value any) Clause    { return compare{column, opLt, value} }
func Lte(column string, value any) Clause   { return compare{column, opLte, value} }

func (c compare) sql() (string, []any, error) {
	if !validIdent(c.column) {
		return "", nil, fmt.Errorf("invalid column %q", c.column)
	}
	return c.column + " " + string(c.op) + " ?", []any{c.value}, nil
}

func (c compare) match(row map[string]any) bool {
	v, ok := row[c.column]
	if !ok {
		return true
	}
	cmp, ok := compareValues(v, c.value)
	if !ok {
		return true
	}
	switch c.op {
	case opEq:
		return cmp == 0
	case opNotEq:
		return cmp != 0
	case opGt:
		return cmp > 0
	case opGte:
		return cmp >= 0
	case opLt:
		return cmp < 0
	case opLte:
		return cmp <= 0
	}
	return true
}

type like struct {
	column string
	substr string
}

// Like matches rows whose column contains substr, ignoring case.
func Like(column, substr string) Clause { return like{column, substr} }

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (l like) sql() (string, []any, error) {
	if !validIdent(l.column) {
		return "", nil, fmt.Errorf("invalid column %q", l.column)
	}
	pattern := "%" + likeEscaper.Replace(strings.ToLower(l.substr)) + "%"
	return "LOWER(" + l.column + `) LIKE ? ESCAPE '\'`, []any{pattern}, nil
}

func (l like) match(row map[string]any) bool {
	v, ok := row[l.column]
	if !ok {
		return true
	}
	s, ok := asString(v)
	if !ok {
		return true
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(l.substr))
}

type in struct {
	column string
	values []any
}

func In(column string, values ...any) Clause { return in{column, values} }

func (c in) sql() (string, []any, error) {
	if !validIdent(c.column) {
		return "", nil, fmt.Errorf("invalid column %q", c.column)
	}
	if len(c.values) == 0 {
		return "0", nil, nil
	}
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(c.values)), ", ")
	return c.column + " IN (" + marks + ")", append([]any(nil), c.values...), nil
}

func (c in) match(row map[string]any) bool {
	v, ok := row[c.column]
	if !ok {
		return true
	}
	for _, want := range c.values {
		cmp, ok := compareValues(v, want)
		if !ok || cmp == 0 {
			return true
		}
	}
	return false
}

type group struct {
	joiner  string
	clauses []Clause
}

func And(clauses ...Clause) Clause { return group{"AND", clauses} }
func Or(clauses ...Clause) Clause  { return group{"OR", clauses} }

func (g group) sql() (string, []any, error) {
	if len(g.clauses) == 0 {
		if g.joiner == "AND" {
			return "1", nil, nil
		}
		return "0", nil, nil
	}
	parts := make([]string, 0, len(g.clauses))
	args := make([]any, 0)
	for _, c := range g.clauses {
		s, a, err := c.sql()
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, "("+s+")")
		args = append(args, a...)
	}
	return strings.Join(parts, " "+g.joiner+" "), args, nil
}

func (g group) match(row map[string]any) bool {
	if g.joiner == "AND" {
		for _, c := range g.clauses {
			if !c.match(row) {
				return false
			}
		}
		return true
	}
	for _, c := range g.clauses {
		if c.match(row) {
			return true
		}
	}
	return false
}

// compareValues orders two column values. ok is false when the kinds differ in a
// way the store cannot decide, in which case callers assume a possible match.
func compareValues(a, b any) (int, bool) {
	if fa, ok := asFloat(a); ok {
		fb, ok := asFloat(b)
		if !ok {
			return 0, false
		}
		switch {
		case fa < fb:
			return -1, true
		case fa > fb:
			return 1, true
		}
		return 0, true
	}
	if sa, ok := asString(a); ok {
		sb, ok := asString(b)
		if !ok {
			return 0, false
		}
		return strings.Compare(sa, sb), true
	}
	if ba, ok := a.(bool); ok {
		bb, ok := b.(bool)
		if !ok {
			return 0, false
		}
		if ba == bb {
			return 0, true
		}
		if !ba {
			return -1, true
		}
		return 1, true
	}
	return 0, false
}

func asFloat(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}

func asString(v any) (string, bool) {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.String {
		return rv.String(), true
	}
	return "", false
}

type Direction string

const (
	Asc  Direction = "ASC"
	Desc Direction = "DESC"
)

type sortSpec struct {
	column string
	dir    Direction
}

// Query is a composable, lazily evaluated filter over one collection. Each builder
// method returns a new query. Without SortBy the row order is unspecified.
type Query[T any, P RecordPtr[T]] struct {
	coll  *Collection[T, P]
	where []Clause
	sorts []sortSpec
	limit int
}

func (q *Query[T, P]) clone() *Query[T, P] {
	return &Query[T, P]{
		coll:  q.coll,
		where: append([]Clause(nil), q.where...),
		sorts: append([]sortSpec(nil), q.sorts...),
		limit: q.limit,
	}
}

// Where narrows the query; clauses are ANDed with the existing ones.
func (q *Query[T, P]) Where(clauses ...Clause) *Query[T, P] {
	out := q.clone()
	out.where = append(out.where, clauses...)
	return out
}

func (q *Query[T, P]) SortBy(column string, dir Direction) *Query[T, P] {
	out := q.clone()
	if dir != Desc {
		dir = Asc
	}
	out.sorts = append(out.sorts, sortSpec{column: column, dir: dir})
	return out
}

// Take caps the number of rows; n <= 0 removes the cap.
func (q *Query[T, P]) Take(n int) *Query[T, P] {
	out := q.clone()
	out.limit = n
	return out
}

func (q *Query[T, P]) whereSQL() (string, []any, error) {
	if len(q.where) == 0 {
		return "", nil, nil
	}
	s, args, err := And(q.where...).sql()
	if err != nil {
		return "", nil, err
	}
	return " WHERE " + s, args, nil
}

func (q *Query[T, P]) build() (string, []any, error) {
	where, args, err := q.whereSQL()
	if err != nil {
		return "", nil, fmt.Errorf("query %s: %w", q.coll.table, err)
	}
	var b strings.Builder
	b.WriteString(q.coll.selectSQL)
	b.WriteString(where)
	if len(q.sorts) > 0 {
		parts := make([]string, 0, len(q.sorts))
		for _, s := range q.sorts {
			if !validIdent(s.column) {
				return "", nil, fmt.Errorf("query %s: invalid sort column %q", q.coll.table, s.column)
			}
			parts = append(parts, s.column+" "+string(s.dir))
		}
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(parts, ", "))
	}
	if q.limit > 0 {
		b.WriteString(" LIMIT ?")
		args = append(args, q.limit)
	}
	return b.String(), args, nil
}

// Fetch materializes the query once.
func (q *Query[T, P]) Fetch(ctx context.Context) ([]P, error) {
	query, args, err := q.build()
	if err != nil {
		return nil, err
	}
	var rows []T
	if err := sqlx.SelectContext(ctx, q.coll.store.queryer(ctx), &rows, query, args...); err != nil {
		return nil, fmt.Errorf("fetch %s: %w", q.coll.table, err)
	}
	out := make([]P, len(rows))
	for i := range rows {
		out[i] = P(&rows[i])
	}
	return out, nil
}

func (q *Query[T, P]) FetchIn(w *Writer) ([]P, error) {
	if err := w.active(q.coll.store); err != nil {
		return nil, err
	}
	return q.Fetch(w.ctx)
}

// Count returns the number of matching rows, ignoring Take.
func (q *Query[T, P]) Count(ctx context.Context) (int, error) {
	where, args, err := q.whereSQL()
	if err != nil {
		return 0, fmt.Errorf("query %s: %w", q.coll.table, err)
	}
	var n int
	if err := sqlx.GetContext(ctx, q.coll.store.queryer(ctx), &n, "SELECT COUNT(1) FROM "+q.coll.table+where, args...); err != nil {
		return 0, fmt.Errorf("count %s: %w", q.coll.table, err)
	}
	return n, nil
}

// affectedBy reports whether c could change this query's result.
func (q *Query[T, P]) affectedBy(c Change) bool {
	if c.Table != q.coll.table {
		return false
	}
	if c.Kind == Cleared {
		return true
	}
	all := And(q.where...)
	return (c.Before != nil && all.match(c.Before)) || (c.After != nil && all.match(c.After))
}
