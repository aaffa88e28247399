package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/saadjs/nutrisync/internal/model"
	"github.com/saadjs/nutrisync/internal/store"
	"github.com/sirupsen/logrus"
)

type BackupInfo struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	CreatedAt time.Time `json:"created_at"`
	SizeBytes int64     `json:"size_bytes"`
}

type DoctorReport struct {
	OrphanDiaryEntries  int      `json:"orphan_diary_entries"`
	OrphanWeightEntries int      `json:"orphan_weight_entries"`
	MissingFoodRefs     int      `json:"missing_food_refs"`
	StaleGoalUsers      []string `json:"stale_goal_users,omitempty"`
	RemovedOrphans      int      `json:"removed_orphans,omitempty"`
	RecomputedUsers     int      `json:"recomputed_users,omitempty"`
}

func (r DoctorReport) Healthy() bool {
	return r.OrphanDiaryEntries == 0 && r.OrphanWeightEntries == 0 && r.MissingFoodRefs == 0 && len(r.StaleGoalUsers) == 0
}

// RunDoctor reports entries whose user no longer exists, diary rows pointing at
// deleted foods, and users whose stored goals differ from a fresh computation.
// With fix, orphans are removed and stale goals recomputed. Diary rows with a
// missing food keep their snapshot nutrition and are left alone.
func (s *Service) RunDoctor(ctx context.Context, fix bool) (DoctorReport, error) {
	var report DoctorReport
	db := s.store.DB()

	var orphanDiary, orphanWeights []string
	if err := db.SelectContext(ctx, &orphanDiary, `SELECT d.id FROM diary_entries d LEFT JOIN users u ON u.id = d.user_id WHERE u.id IS NULL`); err != nil {
		return report, fmt.Errorf("doctor orphan diary check: %w", err)
	}
	if err := db.SelectContext(ctx, &orphanWeights, `SELECT w.id FROM weight_entries w LEFT JOIN users u ON u.id = w.user_id WHERE u.id IS NULL`); err != nil {
		return report, fmt.Errorf("doctor orphan weight check: %w", err)
	}
	report.OrphanDiaryEntries = len(orphanDiary)
	report.OrphanWeightEntries = len(orphanWeights)

	if err := db.GetContext(ctx, &report.MissingFoodRefs, `SELECT COUNT(1) FROM diary_entries d LEFT JOIN foods f ON f.id = d.food_id WHERE f.id IS NULL`); err != nil {
		return report, fmt.Errorf("doctor food reference check: %w", err)
	}

	users, err := s.users.Query().SortBy("created_at", store.Asc).Fetch(ctx)
	if err != nil {
		return report, fmt.Errorf("doctor goal check: %w", err)
	}
	for _, u := range users {
		if !u.HasGoals() {
			continue
		}
		// goals are judged against the weight they were computed from
		profile := u.Profile()
		if u.GoalsBasisWeightKg > 0 {
			profile.WeightKg = u.GoalsBasisWeightKg
		}
		want := *u
		want.ApplyGoals(model.ComputeGoals(profile, s.now(), s.policy))
		if want != *u {
			report.StaleGoalUsers = append(report.StaleGoalUsers, u.ID)
		}
	}

	if !fix {
		return report, nil
	}

	if len(orphanDiary)+len(orphanWeights) > 0 {
		err := s.store.Write(ctx, func(w *store.Writer) error {
			entries, err := s.diary.Query(store.In("id", toAny(orphanDiary)...)).FetchIn(w)
			if err != nil {
				return err
			}
			for _, e := range entries {
				if err := s.diary.Destroy(w, e); err != nil {
					return err
				}
			}
			weights, err := s.weights.Query(store.In("id", toAny(orphanWeights)...)).FetchIn(w)
			if err != nil {
				return err
			}
			for _, e := range weights {
				if err := s.weights.Destroy(w, e); err != nil {
					return err
				}
			}
			report.RemovedOrphans = len(entries) + len(weights)
			return nil
		})
		if err != nil {
			return report, s.fail("doctor remove orphans", nil, err)
		}
	}
	for _, id := range report.StaleGoalUsers {
		if _, err := s.recomputeGoals(ctx, id, nil); err != nil {
			return report, s.fail("doctor recompute goals", logrus.Fields{"user_id": id}, err)
		}
		s.refreshCachedUser(ctx, id)
		report.RecomputedUsers++
	}
	return report, nil
}

func toAny(ids []string) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}

// CreateBackup writes a consistent copy of the open database to outPath with a
// sha256 sidecar file.
func (s *Service) CreateBackup(ctx context.Context, outPath string) (BackupInfo, error) {
	if strings.TrimSpace(outPath) == "" {
		return BackupInfo{}, invalid("backup output path is required")
	}
	if _, err := os.Stat(outPath); err == nil {
		return BackupInfo{}, fmt.Errorf("backup %s already exists", outPath)
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return BackupInfo{}, fmt.Errorf("create backup directory: %w", err)
	}
	if _, err := s.store.DB().ExecContext(ctx, `VACUUM INTO ?`, outPath); err != nil {
		return BackupInfo{}, s.fail("create backup", logrus.Fields{"path": outPath}, err)
	}
	checksum, err := fileSHA256(outPath)
	if err != nil {
		return BackupInfo{}, err
	}
	if err := os.WriteFile(outPath+".sha256", []byte(checksum+"\n"), 0o644); err != nil {
		return BackupInfo{}, fmt.Errorf("write checksum file: %w", err)
	}
	st, err := os.Stat(outPath)
	if err != nil {
		return BackupInfo{}, fmt.Errorf("stat backup: %w", err)
	}
	return BackupInfo{Path: outPath, Checksum: checksum, CreatedAt: st.ModTime(), SizeBytes: st.Size()}, nil
}

// RestoreBackup copies a verified backup over dbPath. The database must not be open.
func RestoreBackup(backupPath, dbPath string, force bool) error {
	if strings.TrimSpace(backupPath) == "" || strings.TrimSpace(dbPath) == "" {
		return invalid("backup path and db path are required")
	}
	if !force {
		if _, err := os.Stat(dbPath); err == nil {
			return fmt.Errorf("target db already exists; use --force to overwrite: %w", ErrConfirmationRequired)
		}
	}
	if expected, err := os.ReadFile(backupPath + ".sha256"); err == nil {
		actual, err := fileSHA256(backupPath)
		if err != nil {
			return err
		}
		if strings.TrimSpace(string(expected)) != actual {
			return fmt.Errorf("backup checksum mismatch")
		}
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("create db directory: %w", err)
	}
	return copyFile(backupPath, dbPath)
}

// ListBackups returns the .db files in dir, newest first.
func ListBackups(dir string) ([]BackupInfo, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read backup dir: %w", err)
	}
	out := make([]BackupInfo, 0)
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".db") {
			continue
		}
		full := filepath.Join(dir, f.Name())
		info, err := f.Info()
		if err != nil {
			continue
		}
		checksum := ""
		if b, err := os.ReadFile(full + ".sha256"); err == nil {
			checksum = strings.TrimSpace(string(b))
		}
		out = append(out, BackupInfo{Path: full, Checksum: checksum, CreatedAt: info.ModTime(), SizeBytes: info.Size()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source file: %w", err)
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create destination file: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy file: %w", err)
	}
	if err := out.Sync(); err != nil {
		_ = out.Close()
		return fmt.Errorf("sync destination file: %w", err)
	}
	return out.Close()
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open file for checksum: %w", err)
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash file: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
