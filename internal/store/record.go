package store

import (
	"reflect"
	"regexp"
	"sort"

	"github.com/jmoiron/sqlx/reflectx"
)

// Meta carries the columns every record table shares. CreatedAt and UpdatedAt are
// unix milliseconds owned by the store; initializers cannot set them.
type Meta struct {
	ID        string `db:"id" json:"id"`
	CreatedAt int64  `db:"created_at" json:"created_at"`
	UpdatedAt int64  `db:"updated_at" json:"updated_at"`
}

func (m *Meta) RecordMeta() *Meta { return m }

// Record is a typed row. Models embed Meta and name their table.
type Record interface {
	TableName() string
	RecordMeta() *Meta
}

// RecordPtr constrains collection type parameters to pointers of record structs.
type RecordPtr[T any] interface {
	*T
	Record
}

var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

func validIdent(name string) bool { return identPattern.MatchString(name) }

// columnsOf lists the db-tagged leaf fields of t, sorted, with "id" first.
func columnsOf(mapper *reflectx.Mapper, t reflect.Type) []string {
	tm := mapper.TypeMap(t)
	cols := make([]string, 0, len(tm.Names))
	for name, fi := range tm.Names {
		if name == "id" || len(fi.Children) > 0 {
			continue
		}
		cols = append(cols, name)
	}
	sort.Strings(cols)
	return append([]string{"id"}, cols...)
}

// imageOf snapshots the column values of rec for observer matching.
func imageOf(mapper *reflectx.Mapper, columns []string, rec any) map[string]any {
	fields := mapper.FieldMap(reflect.ValueOf(rec))
	out := make(map[string]any, len(columns))
	for _, col := range columns {
		if v, ok := fields[col]; ok && v.CanInterface() {
			out[col] = v.Interface()
		}
	}
	return out
}
