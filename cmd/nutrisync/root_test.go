package nutrisync

import (
	"bytes"
	"database/sql"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/saadjs/nutrisync/internal/db"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// resetFlags puts every flag back to its default; the command tree is package
// state shared by all runs.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	buf := &bytes.Buffer{}
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := run(t, args...)
	if err != nil {
		t.Fatalf("%v failed: %v\n%s", args, err, out)
	}
	return out
}

func testArgs(t *testing.T) (path string, base []string) {
	t.Helper()
	dir := t.TempDir()
	path = filepath.Join(dir, "nutrisync.db")
	return path, []string{"--db", path, "--config-dir", dir}
}

var idPattern = regexp.MustCompile(`\(([0-9a-f-]{36})\)`)

func lastID(t *testing.T, out string) string {
	t.Helper()
	m := idPattern.FindAllStringSubmatch(out, -1)
	if len(m) == 0 {
		t.Fatalf("no id in output %q", out)
	}
	return m[len(m)-1][1]
}

func TestRootHelp(t *testing.T) {
	out, err := run(t, "--help")
	if err != nil {
		t.Fatalf("execute root help: %v", err)
	}
	if out == "" {
		t.Fatalf("expected help output")
	}
}

func TestInitCommandIdempotent(t *testing.T) {
	_, base := testArgs(t)
	for i := 0; i < 2; i++ {
		if _, err := run(t, append(base, "init", "--seed-foods")...); err != nil {
			t.Fatalf("init run %d failed: %v", i+1, err)
		}
	}
	out := mustRun(t, append(base, "food", "search", "banana")...)
	if strings.Count(out, "Banana") != 1 {
		t.Fatalf("expected the catalog seeded once, got:\n%s", out)
	}
}

func TestDayInTheLife(t *testing.T) {
	_, base := testArgs(t)
	cmd := func(args ...string) string { return mustRun(t, append(base, args...)...) }

	out := cmd("user", "create", "--name", "Alex", "--dob", "1994-01-10", "--gender", "male",
		"--height", "180", "--weight", "80", "--activity", "moderately_active", "--goal", "lose", "--select")
	if !strings.Contains(out, "Selected as current user") {
		t.Fatalf("expected selection, got:\n%s", out)
	}
	userID := lastID(t, out)

	foodID := lastID(t, cmd("food", "add", "--name", "Oats", "--calories", "150", "--protein", "5", "--carbs", "27", "--fat", "3"))
	cmd("diary", "log", "--food", foodID, "--meal", "breakfast", "--servings", "2", "--date", "2024-06-15")

	today := cmd("today", "--date", "2024-06-15")
	if !strings.Contains(today, "Intake: 300 kcal from 1 entries") {
		t.Fatalf("unexpected today output:\n%s", today)
	}

	out = cmd("weight", "log", "--weight", "78", "--date", "2024-06-15")
	if !strings.Contains(out, "Goals recalculated") {
		t.Fatalf("expected recalculation on a 2 kg drop, got:\n%s", out)
	}
	out = cmd("weight", "log", "--weight", "77.9", "--date", "2024-06-15")
	if !strings.Contains(out, "Updated weight") || strings.Contains(out, "Goals recalculated") {
		t.Fatalf("expected a plain update, got:\n%s", out)
	}

	cmd("config", "set", "weight_unit", "lb")
	hist := cmd("weight", "history")
	if !strings.Contains(hist, "171.7\tlb") {
		t.Fatalf("expected history in pounds, got:\n%s", hist)
	}

	week := cmd("week", "--date", "2024-06-15")
	if !strings.Contains(week, "Days logged: 1") {
		t.Fatalf("unexpected week output:\n%s", week)
	}

	if _, err := run(t, append(base, "user", "delete", userID)...); err == nil || !strings.Contains(err.Error(), "--yes") {
		t.Fatalf("expected delete without --yes to fail, got %v", err)
	}
	cmd("user", "delete", userID, "--yes")
	if _, err := run(t, append(base, "today")...); err == nil {
		t.Fatalf("expected today to fail with no user selected")
	}
	cmd("doctor")
}

func TestDebugCommandsNeedConfirmation(t *testing.T) {
	_, base := testArgs(t)
	mustRun(t, append(base, "init", "--seed-foods")...)

	tables := mustRun(t, append(base, "debug", "tables")...)
	if !strings.Contains(tables, "diary_entries") || !strings.Contains(tables, "weight_entries") {
		t.Fatalf("unexpected tables:\n%s", tables)
	}
	if _, err := run(t, append(base, "debug", "nuke")...); err == nil {
		t.Fatalf("expected nuke without --yes to fail")
	}
	mustRun(t, append(base, "debug", "clear", "foods", "--yes")...)
	out := mustRun(t, append(base, "food", "search")...)
	if strings.Count(out, "\n") != 1 {
		t.Fatalf("expected only the header after clearing, got:\n%s", out)
	}
}

func TestBackupCreateAndRestore(t *testing.T) {
	path, base := testArgs(t)
	mustRun(t, append(base, "init", "--seed-foods")...)
	out := mustRun(t, append(base, "backup", "create")...)
	if !strings.Contains(out, "Checksum:") {
		t.Fatalf("unexpected backup output:\n%s", out)
	}
	list := mustRun(t, append(base, "backup", "list")...)
	lines := strings.Split(strings.TrimSpace(list), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected one backup listed, got:\n%s", list)
	}
	backupFile := strings.Split(lines[1], "\t")[0]

	if _, err := run(t, append(base, "backup", "restore", "--file", backupFile)...); err == nil {
		t.Fatalf("expected restore over an existing db to need --force")
	}
	target := filepath.Join(filepath.Dir(path), "restored.db")
	mustRun(t, "--db", target, "--config-dir", filepath.Dir(path), "backup", "restore", "--file", backupFile)
	out = mustRun(t, "--db", target, "--config-dir", filepath.Dir(path), "food", "search", "apple")
	if !strings.Contains(out, "Apple") {
		t.Fatalf("expected restored catalog, got:\n%s", out)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	path, base := testArgs(t)
	mustRun(t, append(base, "init", "--seed-foods")...)
	dir := filepath.Dir(path)
	snapshot := filepath.Join(dir, "export.json")
	mustRun(t, append(base, "export", "--out", snapshot)...)
	mustRun(t, append(base, "export", "--format", "csv", "--out", filepath.Join(dir, "diary.csv"))...)

	other := []string{"--db", filepath.Join(dir, "other.db"), "--config-dir", dir}
	out := mustRun(t, append(other, "import", "--in", snapshot, "--dry-run")...)
	if !strings.Contains(out, "Dry run: inserted=12") {
		t.Fatalf("unexpected dry run output:\n%s", out)
	}
	mustRun(t, append(other, "import", "--in", snapshot)...)
	if _, err := run(t, append(other, "import", "--in", snapshot)...); err == nil {
		t.Fatalf("expected a second fail-mode import to conflict")
	}
	out = mustRun(t, append(other, "import", "--in", snapshot, "--mode", "skip")...)
	if !strings.Contains(out, "skipped=12") {
		t.Fatalf("unexpected skip output:\n%s", out)
	}
	if _, err := run(t, append(other, "import", "--in", snapshot, "--mode", "replace")...); err == nil || !strings.Contains(err.Error(), "--yes") {
		t.Fatalf("expected replace without --yes to fail, got %v", err)
	}
	out = mustRun(t, append(other, "food", "search", "banana")...)
	if strings.Count(out, "Banana") != 1 {
		t.Fatalf("expected one imported Banana, got:\n%s", out)
	}
}

func TestNewerSchemaBlocksCommands(t *testing.T) {
	path, base := testArgs(t)
	sqldb, err := db.Open(path)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.ApplyMigrations(sqldb); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	bumpVersion(t, sqldb, db.AppSchema.Version+1)
	_ = sqldb.Close()

	_, err = run(t, append(base, "food", "search")...)
	if err == nil || !strings.Contains(err.Error(), "newer than this build") {
		t.Fatalf("expected migration failure, got %v", err)
	}
}

func bumpVersion(t *testing.T, sqldb *sql.DB, version int) {
	t.Helper()
	if _, err := sqldb.Exec(`INSERT INTO schema_migrations(version, name) VALUES(?, 'future')`, version); err != nil {
		t.Fatalf("bump version: %v", err)
	}
}
