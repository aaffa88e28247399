package nutrisync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/saadjs/nutrisync/internal/app"
	"github.com/saadjs/nutrisync/internal/db"
	"github.com/saadjs/nutrisync/internal/model"
	"github.com/saadjs/nutrisync/internal/service"
	"github.com/saadjs/nutrisync/internal/store"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// runtime is what a command body gets: an opened, migrated database wrapped in
// the service layer.
type runtime struct {
	cfg    app.Config
	dbPath string
	log    *logrus.Logger
	svc    *service.Service
}

func loadConfig() (app.Config, error) {
	cfg, err := app.LoadConfig(configDir)
	if err != nil {
		return app.Config{}, err
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	return cfg, nil
}

func resolveDBPath() (string, error) {
	cfg, err := loadConfig()
	if err != nil {
		return "", err
	}
	return cfg.DBPath, nil
}

func withService(cmd *cobra.Command, run func(ctx context.Context, rt *runtime) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := app.EnsureDBDir(cfg.DBPath); err != nil {
		return err
	}
	logger, closeLog, err := app.NewLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer closeLog()

	sqldb, err := db.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer sqldb.Close()

	if err := db.ApplyMigrations(sqldb); err != nil {
		var merr *db.MigrationError
		if errors.As(err, &merr) {
			logger.WithError(err).WithField("db", cfg.DBPath).Error("schema migration failed")
			return fmt.Errorf("database %s cannot be used: %w", cfg.DBPath, err)
		}
		return err
	}

	s := service.NewStore(sqldb, logger, store.WithWriteTimeout(cfg.WriteTimeout))
	svc := service.New(s, service.Options{
		Policy: &model.GoalPolicy{
			CalorieAdjustment: cfg.GoalAdjustmentKcal,
			RateKgPerWeek:     cfg.GoalRateKgPerWeek,
		},
		SignificantChangeKg: cfg.SignificantChangeKg,
		CatalogCap:          cfg.CatalogCap,
		HistoryCap:          cfg.HistoryCap,
		Logger:              logger,
	})
	return run(cmd.Context(), &runtime{cfg: cfg, dbPath: cfg.DBPath, log: logger, svc: svc})
}

// userID is --user when given, otherwise the selected user.
func (rt *runtime) userID(ctx context.Context) (string, error) {
	if id := strings.TrimSpace(userFlag); id != "" {
		return id, nil
	}
	u, err := rt.svc.CurrentUser(ctx)
	if errors.Is(err, service.ErrNoCurrentUser) {
		return "", fmt.Errorf("no user selected; run `nutrisync user select <id>` or pass --user")
	}
	if err != nil {
		return "", err
	}
	return u.ID, nil
}

// weightUnit is the display unit saved with `config set weight_unit`.
func (rt *runtime) weightUnit(ctx context.Context) string {
	unit, ok, err := rt.svc.GetConfig(ctx, service.ConfigWeightUnit)
	if err != nil || !ok {
		return "kg"
	}
	return unit
}

func dateOrToday(rt *runtime, date string) (string, error) {
	date = strings.TrimSpace(date)
	if date == "" {
		return rt.svc.Today(), nil
	}
	if _, err := time.ParseInLocation(model.DateLayout, date, time.Local); err != nil {
		return "", fmt.Errorf("invalid --date %q (expected YYYY-MM-DD)", date)
	}
	return date, nil
}

func confirmHint(err error) error {
	if errors.Is(err, service.ErrConfirmationRequired) {
		return fmt.Errorf("%w; re-run with --yes", err)
	}
	return err
}
