package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/saadjs/nutrisync/internal/db"
	"github.com/saadjs/nutrisync/internal/model"
	"github.com/saadjs/nutrisync/internal/store"
	"github.com/sirupsen/logrus"
)

// ExportData is a full snapshot of the record tables. Per-install settings such as
// the current user are not part of it.
type ExportData struct {
	SchemaVersion int                  `json:"schema_version"`
	ExportedAt    time.Time            `json:"exported_at"`
	Users         []*model.User        `json:"users"`
	Foods         []*model.Food        `json:"foods"`
	DiaryEntries  []*model.DiaryEntry  `json:"diary_entries"`
	WeightEntries []*model.WeightEntry `json:"weight_entries"`
}

type ImportMode string

const (
	ImportModeFail    ImportMode = "fail"
	ImportModeSkip    ImportMode = "skip"
	ImportModeMerge   ImportMode = "merge"
	ImportModeReplace ImportMode = "replace"
)

type ImportOptions struct {
	Mode   ImportMode
	DryRun bool
	// Confirm is required by ImportModeReplace, which drops every existing record.
	Confirm bool
}

type ImportReport struct {
	Inserted  int      `json:"inserted"`
	Updated   int      `json:"updated"`
	Skipped   int      `json:"skipped"`
	Removed   int      `json:"removed"`
	Conflicts int      `json:"conflicts"`
	Warnings  []string `json:"warnings,omitempty"`
}

var (
	ErrImportConflict = errors.New("import conflicts with existing records")
	errDryRun         = errors.New("dry run")
)

// Export reads every record table, oldest first.
func (s *Service) Export(ctx context.Context) (*ExportData, error) {
	out := &ExportData{SchemaVersion: db.AppSchema.Version, ExportedAt: s.now().UTC()}
	var err error
	if out.Users, err = s.users.Query().SortBy("created_at", store.Asc).SortBy("id", store.Asc).Fetch(ctx); err != nil {
		return nil, s.fail("export users", nil, err)
	}
	if out.Foods, err = s.foods.Query().SortBy("created_at", store.Asc).SortBy("id", store.Asc).Fetch(ctx); err != nil {
		return nil, s.fail("export foods", nil, err)
	}
	if out.DiaryEntries, err = s.diary.Query().SortBy("date", store.Asc).SortBy("created_at", store.Asc).SortBy("id", store.Asc).Fetch(ctx); err != nil {
		return nil, s.fail("export diary", nil, err)
	}
	if out.WeightEntries, err = s.weights.Query().SortBy("date", store.Asc).SortBy("id", store.Asc).Fetch(ctx); err != nil {
		return nil, s.fail("export weights", nil, err)
	}
	return out, nil
}

// Import loads data in a single write. Records keep their ids; created_at and
// updated_at are reassigned. Entries whose user is in neither the payload nor the
// database are skipped with a warning. With DryRun the write is rolled back and the
// report describes what would have happened.
func (s *Service) Import(ctx context.Context, data *ExportData, opts ImportOptions) (ImportReport, error) {
	var report ImportReport
	if data == nil {
		return report, invalid("import data is required")
	}
	mode := normalizeImportMode(opts.Mode)
	if mode == "" {
		return report, invalid("unsupported import mode %q (use fail, skip, merge, or replace)", opts.Mode)
	}
	if mode == ImportModeReplace && !opts.Confirm && !opts.DryRun {
		return report, ErrConfirmationRequired
	}
	if data.SchemaVersion > db.AppSchema.Version {
		return report, invalid("export schema version %d is newer than this build (%d)", data.SchemaVersion, db.AppSchema.Version)
	}
	if err := s.checkImport(data); err != nil {
		return report, err
	}

	// Imported users carry their stored goals.
	err := s.store.Write(withGoalPipeline(ctx), func(w *store.Writer) error {
		report = ImportReport{}
		if mode == ImportModeReplace {
			n, err := s.dropAll(w)
			if err != nil {
				return err
			}
			report.Removed = n
		}
		if err := importRecords(w, s.users, data.Users, mode, &report, nil); err != nil {
			return err
		}
		if err := importRecords(w, s.foods, data.Foods, mode, &report, nil); err != nil {
			return err
		}
		diary, err := keepOwned(w, s.users, data.DiaryEntries, "diary entry", &report)
		if err != nil {
			return err
		}
		if err := importRecords(w, s.diary, diary, mode, &report, nil); err != nil {
			return err
		}
		weights, err := keepOwned(w, s.users, data.WeightEntries, "weight entry", &report)
		if err != nil {
			return err
		}
		if err := importRecords(w, s.weights, weights, mode, &report, s.weightOnSameDay); err != nil {
			return err
		}
		if report.Conflicts > 0 {
			return fmt.Errorf("%d records: %w", report.Conflicts, ErrImportConflict)
		}
		if opts.DryRun {
			return errDryRun
		}
		return nil
	})
	if errors.Is(err, errDryRun) {
		return report, nil
	}
	if err != nil {
		return report, s.fail("import", logrus.Fields{"mode": mode}, err)
	}
	s.log.WithFields(logrus.Fields{
		"mode":     mode,
		"inserted": report.Inserted,
		"updated":  report.Updated,
		"skipped":  report.Skipped,
		"removed":  report.Removed,
	}).Info("import complete")

	if cached, ok := s.state.CurrentUser(); ok {
		if _, err := s.users.Find(ctx, cached.ID); errors.Is(err, store.ErrNotFound) {
			s.forgetCurrentUser(ctx)
		} else {
			s.refreshCachedUser(ctx, cached.ID)
		}
	}
	return report, nil
}

func normalizeImportMode(mode ImportMode) ImportMode {
	switch ImportMode(strings.ToLower(strings.TrimSpace(string(mode)))) {
	case "", ImportModeFail:
		return ImportModeFail
	case ImportModeSkip:
		return ImportModeSkip
	case ImportModeMerge:
		return ImportModeMerge
	case ImportModeReplace:
		return ImportModeReplace
	}
	return ""
}

// checkImport rejects payloads the diary actions could never have written.
func (s *Service) checkImport(data *ExportData) error {
	for i, u := range data.Users {
		switch {
		case u == nil || u.ID == "":
			return invalid("user %d: id is required", i+1)
		case strings.TrimSpace(u.Name) == "":
			return invalid("user %s: name is required", u.ID)
		case u.DateOfBirth != "" && !validDate(u.DateOfBirth):
			return invalid("user %s: date_of_birth must be a date in YYYY-MM-DD form", u.ID)
		}
	}
	for i, f := range data.Foods {
		switch {
		case f == nil || f.ID == "":
			return invalid("food %d: id is required", i+1)
		case strings.TrimSpace(f.Name) == "":
			return invalid("food %s: name is required", f.ID)
		case f.Calories < 0 || f.ProteinG < 0 || f.CarbsG < 0 || f.FatG < 0 || f.FiberG < 0:
			return invalid("food %s: nutrition values must be >= 0", f.ID)
		}
	}
	for i, e := range data.DiaryEntries {
		switch {
		case e == nil || e.ID == "":
			return invalid("diary entry %d: id is required", i+1)
		case !validDate(e.Date):
			return invalid("diary entry %s: date must be a date in YYYY-MM-DD form", e.ID)
		case !e.MealType.Valid():
			return invalid("diary entry %s: unknown meal type %q", e.ID, e.MealType)
		case e.Servings <= 0:
			return invalid("diary entry %s: servings must be > 0", e.ID)
		}
	}
	for i, e := range data.WeightEntries {
		switch {
		case e == nil || e.ID == "":
			return invalid("weight entry %d: id is required", i+1)
		case !validDate(e.Date):
			return invalid("weight entry %s: date must be a date in YYYY-MM-DD form", e.ID)
		case e.WeightKg <= 0:
			return invalid("weight entry %s: weight must be > 0", e.ID)
		}
	}
	return nil
}

type ownedRecord interface {
	*model.DiaryEntry | *model.WeightEntry
	store.Record
}

func ownerOf[P ownedRecord](rec P) string {
	switch r := any(rec).(type) {
	case *model.DiaryEntry:
		return r.UserID
	case *model.WeightEntry:
		return r.UserID
	}
	return ""
}

// keepOwned drops records whose user does not exist inside w. Users from the
// payload are already written by the time this runs.
func keepOwned[P ownedRecord](w *store.Writer, users *store.Collection[model.User, *model.User], recs []P, kind string, report *ImportReport) ([]P, error) {
	known := map[string]bool{}
	out := make([]P, 0, len(recs))
	for _, rec := range recs {
		userID := ownerOf(rec)
		exists, seen := known[userID]
		if !seen {
			_, err := users.FindIn(w, userID)
			switch {
			case err == nil:
				exists = true
			case errors.Is(err, store.ErrNotFound):
				exists = false
			default:
				return nil, err
			}
			known[userID] = exists
		}
		if !exists {
			report.Skipped++
			report.Warnings = append(report.Warnings, fmt.Sprintf("%s %s: unknown user %q", kind, rec.RecordMeta().ID, userID))
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// importRecords writes recs, matching existing rows by id. sameRow, when set, also
// finds the row a record would collide with under a unique key other than id; such
// a row counts as existing and, on merge, is overwritten in place.
func importRecords[T any, P store.RecordPtr[T]](w *store.Writer, coll *store.Collection[T, P], recs []P, mode ImportMode, report *ImportReport, sameRow func(*store.Writer, P) (P, error)) error {
	for _, rec := range recs {
		id := rec.RecordMeta().ID
		existing, err := coll.FindIn(w, id)
		switch {
		case errors.Is(err, store.ErrNotFound):
			existing = nil
		case err != nil:
			return err
		}
		var clash P
		if sameRow != nil {
			if clash, err = sameRow(w, rec); err != nil {
				return err
			}
			if clash != nil && clash.RecordMeta().ID == id {
				clash = nil
			}
		}

		if existing == nil && clash == nil {
			if _, err := coll.Create(w, func(p P) { *p = *rec }); err != nil {
				return err
			}
			report.Inserted++
			continue
		}
		switch mode {
		case ImportModeSkip:
			report.Skipped++
		case ImportModeMerge:
			if existing != nil && clash != nil {
				// overwriting existing would take clash's key
				report.Conflicts++
				continue
			}
			target := existing
			if target == nil {
				target = clash
			}
			if err := coll.Update(w, target, func(p P) { *p = *rec }); err != nil {
				return err
			}
			report.Updated++
		default:
			report.Conflicts++
		}
	}
	return nil
}

// weightOnSameDay finds the entry holding e's (user, date) slot.
func (s *Service) weightOnSameDay(w *store.Writer, e *model.WeightEntry) (*model.WeightEntry, error) {
	rows, err := s.weights.Query(store.Eq("user_id", e.UserID), store.Eq("date", e.Date)).Take(1).FetchIn(w)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

// dropAll destroys every record in w, dependents first.
func (s *Service) dropAll(w *store.Writer) (int, error) {
	removed := 0
	n, err := destroyAll(w, s.diary)
	removed += n
	if err != nil {
		return removed, err
	}
	n, err = destroyAll(w, s.weights)
	removed += n
	if err != nil {
		return removed, err
	}
	n, err = destroyAll(w, s.foods)
	removed += n
	if err != nil {
		return removed, err
	}
	n, err = destroyAll(w, s.users)
	return removed + n, err
}

func destroyAll[T any, P store.RecordPtr[T]](w *store.Writer, coll *store.Collection[T, P]) (int, error) {
	recs, err := coll.Query().FetchIn(w)
	if err != nil {
		return 0, err
	}
	for i, rec := range recs {
		if err := coll.Destroy(w, rec); err != nil {
			return i, err
		}
	}
	return len(recs), nil
}
