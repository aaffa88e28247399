package db

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
)

// MigrationError means the on-disk schema cannot reach the declared version.
// Callers must treat it as fatal.
type MigrationError struct {
	Version int
	Reason  string
	Err     error
}

func (e *MigrationError) Error() string {
	msg := fmt.Sprintf("migration to schema version %d: %s", e.Version, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MigrationError) Unwrap() error { return e.Err }

type Migrator struct {
	schema Schema
	steps  []Step
}

// NewMigrator checks that steps form a strictly increasing sequence ending at the
// schema version and that every added column is part of the declared schema.
func NewMigrator(schema Schema, steps []Step) (*Migrator, error) {
	if schema.Version < 1 {
		return nil, &MigrationError{Version: schema.Version, Reason: "schema version must be >= 1"}
	}
	if len(schema.Tables) == 0 {
		return nil, &MigrationError{Version: schema.Version, Reason: "schema declares no tables"}
	}
	prev := 1
	for i, step := range steps {
		if step.ToVersion <= prev {
			if i > 0 && step.ToVersion == steps[i-1].ToVersion {
				return nil, &MigrationError{Version: step.ToVersion, Reason: "duplicate migration version"}
			}
			return nil, &MigrationError{Version: step.ToVersion, Reason: fmt.Sprintf("migration versions out of order (after %d)", prev)}
		}
		if len(step.AddColumns) == 0 {
			return nil, &MigrationError{Version: step.ToVersion, Reason: "migration step has no operations"}
		}
		for _, op := range step.AddColumns {
			if err := validateAddColumn(schema, step.ToVersion, op); err != nil {
				return nil, err
			}
		}
		prev = step.ToVersion
	}
	if len(steps) > 0 && prev != schema.Version {
		return nil, &MigrationError{
			Version: schema.Version,
			Reason:  fmt.Sprintf("latest migration targets version %d but schema declares %d", prev, schema.Version),
		}
	}
	return &Migrator{schema: schema, steps: steps}, nil
}

func validateAddColumn(schema Schema, version int, op AddColumn) error {
	t, ok := schema.table(op.Table)
	if !ok {
		return &MigrationError{Version: version, Reason: fmt.Sprintf("add column to undeclared table %q", op.Table)}
	}
	declared, ok := t.column(op.Column.Name)
	if !ok {
		return &MigrationError{Version: version, Reason: fmt.Sprintf("column %s.%s is not in the declared schema", op.Table, op.Column.Name)}
	}
	if declared != op.Column {
		return &MigrationError{Version: version, Reason: fmt.Sprintf("column %s.%s differs from the declared schema", op.Table, op.Column.Name)}
	}
	if op.Column.PrimaryKey {
		return &MigrationError{Version: version, Reason: fmt.Sprintf("cannot add primary key column %s.%s", op.Table, op.Column.Name)}
	}
	if op.Column.NotNull && op.Column.Default == "" {
		return &MigrationError{Version: version, Reason: fmt.Sprintf("added column %s.%s is NOT NULL without a default", op.Table, op.Column.Name)}
	}
	return nil
}

// SchemaVersion returns the declared version.
func (m *Migrator) SchemaVersion() int { return m.schema.Version }

// Version reads the version recorded on disk; 0 means a fresh database.
func (m *Migrator) Version(ctx context.Context, db *sql.DB) (int, error) {
	if err := ensureMigrationsTable(ctx, db); err != nil {
		return 0, err
	}
	var version int
	if err := db.QueryRowContext(ctx, `SELECT IFNULL(MAX(version), 0) FROM schema_migrations`).Scan(&version); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}

// Apply brings db to the declared schema version.
func (m *Migrator) Apply(ctx context.Context, db *sql.DB) error {
	onDisk, err := m.Version(ctx, db)
	if err != nil {
		return &MigrationError{Version: m.schema.Version, Reason: "read on-disk version", Err: err}
	}
	switch {
	case onDisk == 0:
		if err := m.create(ctx, db); err != nil {
			return err
		}
	case onDisk > m.schema.Version:
		return &MigrationError{
			Version: m.schema.Version,
			Reason:  fmt.Sprintf("database is at version %d, newer than this build", onDisk),
		}
	case onDisk < m.schema.Version:
		pending := make([]Step, 0, len(m.steps))
		for _, step := range m.steps {
			if step.ToVersion > onDisk {
				pending = append(pending, step)
			}
		}
		sort.SliceStable(pending, func(i, j int) bool { return pending[i].ToVersion < pending[j].ToVersion })
		for _, step := range pending {
			if err := m.applyStep(ctx, db, step); err != nil {
				return err
			}
		}
	}

	if err := m.ensureIndexes(ctx, db); err != nil {
		return err
	}

	final, err := m.Version(ctx, db)
	if err != nil {
		return &MigrationError{Version: m.schema.Version, Reason: "read final version", Err: err}
	}
	if final != m.schema.Version {
		return &MigrationError{
			Version: m.schema.Version,
			Reason:  fmt.Sprintf("no migration path from version %d (reached %d)", onDisk, final),
		}
	}
	return nil
}

func ensureMigrationsTable(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS schema_migrations (
  version INTEGER PRIMARY KEY,
  name TEXT NOT NULL,
  applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`); err != nil {
		return fmt.Errorf("ensure schema_migrations table: %w", err)
	}
	return nil
}

func (m *Migrator) create(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return &MigrationError{Version: m.schema.Version, Reason: "begin create tx", Err: err}
	}
	for _, t := range m.schema.Tables {
		if _, err := tx.ExecContext(ctx, t.createSQL()); err != nil {
			_ = tx.Rollback()
			return &MigrationError{Version: m.schema.Version, Reason: fmt.Sprintf("create table %s", t.Name), Err: err}
		}
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations(version, name) VALUES(?, ?)`, m.schema.Version, "create_schema"); err != nil {
		_ = tx.Rollback()
		return &MigrationError{Version: m.schema.Version, Reason: "record schema version", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return &MigrationError{Version: m.schema.Version, Reason: "commit create tx", Err: err}
	}
	return nil
}

func (m *Migrator) applyStep(ctx context.Context, db *sql.DB, step Step) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return &MigrationError{Version: step.ToVersion, Reason: "begin migration tx", Err: err}
	}
	for _, op := range step.AddColumns {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM pragma_table_info(?) WHERE name = ?`, op.Table, op.Column.Name).Scan(&exists)
		if err != nil {
			_ = tx.Rollback()
			return &MigrationError{Version: step.ToVersion, Reason: fmt.Sprintf("inspect %s.%s", op.Table, op.Column.Name), Err: err}
		}
		if exists > 0 {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s;", op.Table, op.Column.definition())
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return &MigrationError{Version: step.ToVersion, Reason: fmt.Sprintf("add column %s.%s", op.Table, op.Column.Name), Err: err}
		}
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations(version, name) VALUES(?, ?)`, step.ToVersion, "add_columns"); err != nil {
		_ = tx.Rollback()
		return &MigrationError{Version: step.ToVersion, Reason: "record migration version", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return &MigrationError{Version: step.ToVersion, Reason: "commit migration tx", Err: err}
	}
	return nil
}

func (m *Migrator) ensureIndexes(ctx context.Context, db *sql.DB) error {
	for _, t := range m.schema.Tables {
		for _, idx := range t.Indexes {
			if _, err := db.ExecContext(ctx, idx.createSQL(t.Name)); err != nil {
				return &MigrationError{Version: m.schema.Version, Reason: fmt.Sprintf("create index %s", idx.Name), Err: err}
			}
		}
	}
	return nil
}

// ApplyMigrations brings db to AppSchema.
func ApplyMigrations(db *sql.DB) error {
	m, err := NewMigrator(AppSchema, AppMigrations)
	if err != nil {
		return err
	}
	return m.Apply(context.Background(), db)
}
