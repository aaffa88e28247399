package db

import (
	"fmt"
	"strings"
)

// Record table names.
const (
	UsersTable         = "users"
	FoodsTable         = "foods"
	DiaryEntriesTable  = "diary_entries"
	WeightEntriesTable = "weight_entries"

	// ConfigTable holds per-install settings; it is not a record table.
	ConfigTable = "app_config"
)

// Column declares one column. Default is a raw SQL literal.
type Column struct {
	Name       string
	Type       string
	PrimaryKey bool
	NotNull    bool
	Default    string
	Check      string
}

type Index struct {
	Name    string
	Columns []string
	Unique  bool
}

type TableSchema struct {
	Name    string
	Columns []Column
	Indexes []Index
}

// Schema is the full column set of every table at Version.
type Schema struct {
	Version int
	Tables  []TableSchema
}

// AddColumn adds Column to Table. Column must match the declared schema.
type AddColumn struct {
	Table  string
	Column Column
}

// Step upgrades an on-disk database to ToVersion.
type Step struct {
	ToVersion  int
	AddColumns []AddColumn
}

func (s Schema) table(name string) (TableSchema, bool) {
	for _, t := range s.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return TableSchema{}, false
}

func (t TableSchema) column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// TableNames lists the declared tables in declaration order.
func (s Schema) TableNames() []string {
	out := make([]string, 0, len(s.Tables))
	for _, t := range s.Tables {
		out = append(out, t.Name)
	}
	return out
}

func (c Column) definition() string {
	var b strings.Builder
	b.WriteString(c.Name)
	b.WriteString(" ")
	b.WriteString(c.Type)
	if c.PrimaryKey {
		b.WriteString(" PRIMARY KEY")
	}
	if c.NotNull {
		b.WriteString(" NOT NULL")
	}
	if c.Default != "" {
		b.WriteString(" DEFAULT ")
		b.WriteString(c.Default)
	}
	if c.Check != "" {
		b.WriteString(" CHECK(")
		b.WriteString(c.Check)
		b.WriteString(")")
	}
	return b.String()
}

func (t TableSchema) createSQL() string {
	defs := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		defs = append(defs, "  "+c.definition())
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n%s\n);", t.Name, strings.Join(defs, ",\n"))
}

func (i Index) createSQL(table string) string {
	unique := ""
	if i.Unique {
		unique = "UNIQUE "
	}
	return fmt.Sprintf("CREATE %sINDEX IF NOT EXISTS %s ON %s(%s);", unique, i.Name, table, strings.Join(i.Columns, ", "))
}

var (
	idColumn        = Column{Name: "id", Type: "TEXT", PrimaryKey: true}
	createdAtColumn = Column{Name: "created_at", Type: "INTEGER", NotNull: true, Default: "0"}
	updatedAtColumn = Column{Name: "updated_at", Type: "INTEGER", NotNull: true, Default: "0"}

	foodFiberColumn      = Column{Name: "fiber_g", Type: "REAL", NotNull: true, Default: "0", Check: "fiber_g >= 0"}
	userFiberGoalColumn  = Column{Name: "fiber_goal_g", Type: "INTEGER", NotNull: true, Default: "0"}
	weightNotesColumn    = Column{Name: "notes", Type: "TEXT", NotNull: true, Default: "''"}
	userGoalsBasisColumn = Column{Name: "goals_basis_weight_kg", Type: "REAL", NotNull: true, Default: "0"}
)

// AppSchema is the declared on-disk layout of the record store.
var AppSchema = Schema{
	Version: 3,
	Tables: []TableSchema{
		{
			Name: UsersTable,
			Columns: []Column{
				idColumn,
				{Name: "remote_id", Type: "TEXT", NotNull: true, Default: "''"},
				{Name: "email", Type: "TEXT", NotNull: true, Default: "''"},
				{Name: "name", Type: "TEXT", NotNull: true},
				{Name: "date_of_birth", Type: "TEXT", NotNull: true, Default: "''"},
				{Name: "gender", Type: "TEXT", NotNull: true, Default: "''"},
				{Name: "height_cm", Type: "REAL", NotNull: true, Default: "0", Check: "height_cm >= 0"},
				{Name: "current_weight_kg", Type: "REAL", NotNull: true, Default: "0", Check: "current_weight_kg >= 0"},
				{Name: "goal_weight_kg", Type: "REAL", NotNull: true, Default: "0"},
				{Name: "activity_level", Type: "TEXT", NotNull: true, Default: "'sedentary'"},
				{Name: "goal_type", Type: "TEXT", NotNull: true, Default: "'maintain'"},
				{Name: "goal_rate_kg_per_week", Type: "REAL", NotNull: true, Default: "0"},
				{Name: "tdee", Type: "INTEGER", NotNull: true, Default: "0"},
				{Name: "daily_calorie_goal", Type: "INTEGER", NotNull: true, Default: "0"},
				{Name: "protein_goal_g", Type: "INTEGER", NotNull: true, Default: "0"},
				{Name: "carbs_goal_g", Type: "INTEGER", NotNull: true, Default: "0"},
				{Name: "fat_goal_g", Type: "INTEGER", NotNull: true, Default: "0"},
				userFiberGoalColumn,
				userGoalsBasisColumn,
				createdAtColumn,
				updatedAtColumn,
			},
			Indexes: []Index{{Name: "idx_users_remote_id", Columns: []string{"remote_id"}}},
		},
		{
			Name: FoodsTable,
			Columns: []Column{
				idColumn,
				{Name: "name", Type: "TEXT", NotNull: true},
				{Name: "brand", Type: "TEXT", NotNull: true, Default: "''"},
				{Name: "calories", Type: "REAL", NotNull: true, Default: "0", Check: "calories >= 0"},
				{Name: "protein_g", Type: "REAL", NotNull: true, Default: "0", Check: "protein_g >= 0"},
				{Name: "carbs_g", Type: "REAL", NotNull: true, Default: "0", Check: "carbs_g >= 0"},
				{Name: "fat_g", Type: "REAL", NotNull: true, Default: "0", Check: "fat_g >= 0"},
				foodFiberColumn,
				{Name: "serving_size", Type: "REAL", NotNull: true, Default: "1", Check: "serving_size > 0"},
				{Name: "serving_unit", Type: "TEXT", NotNull: true, Default: "'serving'"},
				createdAtColumn,
				updatedAtColumn,
			},
			Indexes: []Index{{Name: "idx_foods_name", Columns: []string{"name"}}},
		},
		{
			Name: DiaryEntriesTable,
			Columns: []Column{
				idColumn,
				{Name: "date", Type: "TEXT", NotNull: true},
				{Name: "meal_type", Type: "TEXT", NotNull: true, Check: "meal_type IN ('breakfast', 'lunch', 'dinner', 'snacks')"},
				{Name: "servings", Type: "REAL", NotNull: true, Check: "servings > 0"},
				{Name: "user_id", Type: "TEXT", NotNull: true},
				{Name: "food_id", Type: "TEXT", NotNull: true},
				{Name: "calories", Type: "REAL", NotNull: true, Default: "0"},
				{Name: "protein_g", Type: "REAL", NotNull: true, Default: "0"},
				{Name: "carbs_g", Type: "REAL", NotNull: true, Default: "0"},
				{Name: "fat_g", Type: "REAL", NotNull: true, Default: "0"},
				createdAtColumn,
				updatedAtColumn,
			},
			Indexes: []Index{{Name: "idx_diary_entries_user_date", Columns: []string{"user_id", "date"}}},
		},
		{
			Name: WeightEntriesTable,
			Columns: []Column{
				idColumn,
				{Name: "weight_kg", Type: "REAL", NotNull: true, Check: "weight_kg > 0"},
				{Name: "date", Type: "TEXT", NotNull: true},
				{Name: "user_id", Type: "TEXT", NotNull: true},
				weightNotesColumn,
				createdAtColumn,
				updatedAtColumn,
			},
			Indexes: []Index{{Name: "idx_weight_entries_user_date", Columns: []string{"user_id", "date"}, Unique: true}},
		},
		{
			Name: ConfigTable,
			Columns: []Column{
				{Name: "key", Type: "TEXT", PrimaryKey: true},
				{Name: "value", Type: "TEXT", NotNull: true},
				updatedAtColumn,
			},
		},
	},
}

// AppMigrations upgrade databases created by earlier releases.
var AppMigrations = []Step{
	{
		ToVersion: 2,
		AddColumns: []AddColumn{
			{Table: FoodsTable, Column: foodFiberColumn},
			{Table: UsersTable, Column: userFiberGoalColumn},
			{Table: WeightEntriesTable, Column: weightNotesColumn},
		},
	},
	{
		ToVersion: 3,
		AddColumns: []AddColumn{
			{Table: UsersTable, Column: userGoalsBasisColumn},
		},
	},
}
