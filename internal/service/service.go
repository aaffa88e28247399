// Package service holds the diary actions. Every mutation goes through one
// store write transaction; validation happens before the transaction opens.
package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/saadjs/nutrisync/internal/db"
	"github.com/saadjs/nutrisync/internal/model"
	"github.com/saadjs/nutrisync/internal/state"
	"github.com/saadjs/nutrisync/internal/store"
	"github.com/sirupsen/logrus"
)

var (
	ErrConfirmationRequired = errors.New("destructive operation requires confirmation")
	ErrNoCurrentUser        = errors.New("no current user selected")
	ErrDerivedGoalWrite     = errors.New("derived goal fields can only be written by goal recomputation")
)

// ValidationError rejects malformed input before any transaction opens.
type ValidationError struct {
	Msg string
	Err error
}

func (e *ValidationError) Error() string { return e.Msg }

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

type Options struct {
	// Policy nil means model.DefaultGoalPolicy. A set policy is used as given.
	Policy              *model.GoalPolicy
	SignificantChangeKg float64
	CatalogCap          int
	HistoryCap          int
	Logger              logrus.FieldLogger
	State               *state.AppState
	Now                 func() time.Time
}

const (
	defaultSignificantChangeKg = 0.5
	defaultCatalogCap          = 50
	defaultHistoryCap          = 30
)

type Service struct {
	store   *store.Store
	users   *store.Collection[model.User, *model.User]
	foods   *store.Collection[model.Food, *model.Food]
	diary   *store.Collection[model.DiaryEntry, *model.DiaryEntry]
	weights *store.Collection[model.WeightEntry, *model.WeightEntry]

	state               *state.AppState
	log                 logrus.FieldLogger
	policy              model.GoalPolicy
	significantChangeKg float64
	catalogCap          int
	historyCap          int
	now                 func() time.Time
	validate            *validator.Validate
}

func New(s *store.Store, opts Options) *Service {
	policy := model.DefaultGoalPolicy()
	if opts.Policy != nil {
		policy = *opts.Policy
	}
	if opts.SignificantChangeKg <= 0 {
		opts.SignificantChangeKg = defaultSignificantChangeKg
	}
	if opts.CatalogCap <= 0 {
		opts.CatalogCap = defaultCatalogCap
	}
	if opts.HistoryCap <= 0 {
		opts.HistoryCap = defaultHistoryCap
	}
	if opts.Logger == nil {
		opts.Logger = discardLogger()
	}
	if opts.State == nil {
		opts.State = state.New()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		store:               s,
		users:               store.NewCollection[model.User](s),
		foods:               store.NewCollection[model.Food](s),
		diary:               store.NewCollection[model.DiaryEntry](s),
		weights:             store.NewCollection[model.WeightEntry](s),
		state:               opts.State,
		log:                 opts.Logger,
		policy:              policy,
		significantChangeKg: opts.SignificantChangeKg,
		catalogCap:          opts.CatalogCap,
		historyCap:          opts.HistoryCap,
		now:                 opts.Now,
		validate:            newValidator(),
	}
}

// NewStore wraps sqldb in a record store carrying the hooks the actions rely on.
func NewStore(sqldb *sql.DB, log logrus.FieldLogger, extra ...store.Option) *store.Store {
	if log == nil {
		log = discardLogger()
	}
	opts := []store.Option{
		store.WithLogger(log),
		store.WithChangeHook(logChanges(log)),
		store.WithChangeHook(guardDerivedGoals),
	}
	return store.New(sqldb, append(opts, extra...)...)
}

func (s *Service) Store() *store.Store      { return s.store }
func (s *Service) State() *state.AppState   { return s.state }
func (s *Service) Policy() model.GoalPolicy { return s.policy }

// Sources exposes the collections a state.Bridge observes.
func (s *Service) Sources() state.Sources {
	return state.Sources{Users: s.users, Diary: s.diary, Weights: s.weights}
}

// NewBridge builds a bridge feeding this service's application state.
func (s *Service) NewBridge() *state.Bridge {
	return state.NewBridge(s.Sources(), s.state, s.log, s.historyCap)
}

// Today is the current day key in local time.
func (s *Service) Today() string { return s.now().Format(model.DateLayout) }

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// check runs struct-tag validation and folds failures into one ValidationError.
func (s *Service) check(in any) error {
	err := s.validate.Struct(in)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &ValidationError{Msg: err.Error(), Err: err}
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, describeFieldError(fe))
	}
	return &ValidationError{Msg: strings.Join(msgs, "; "), Err: err}
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "gt":
		return fmt.Sprintf("%s must be > %s", fe.Field(), fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be >= %s", fe.Field(), fe.Param())
	case "lt", "lte", "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	case "datetime":
		return fmt.Sprintf("%s must be a date in YYYY-MM-DD form", fe.Field())
	case "email":
		return fe.Field() + " must be an email address"
	}
	return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
}

// fail logs an infrastructure failure and returns it wrapped.
func (s *Service) fail(op string, fields logrus.Fields, err error) error {
	var verr *ValidationError
	if !errors.As(err, &verr) && !errors.Is(err, store.ErrNotFound) {
		s.log.WithFields(fields).WithError(err).Error(op + " failed")
	}
	return fmt.Errorf("%s: %w", op, err)
}

type goalPipelineKey struct{}

// withGoalPipeline marks writes allowed to change derived goal columns.
func withGoalPipeline(ctx context.Context) context.Context {
	return context.WithValue(ctx, goalPipelineKey{}, true)
}

var derivedGoalColumns = []string{
	"tdee", "daily_calorie_goal", "protein_goal_g", "carbs_goal_g", "fat_goal_g",
	"fiber_goal_g", "goal_rate_kg_per_week", "goals_basis_weight_kg",
}

func guardDerivedGoals(ctx context.Context, c store.Change) error {
	if c.Table != db.UsersTable || c.Kind != store.Updated {
		return nil
	}
	if allowed, _ := ctx.Value(goalPipelineKey{}).(bool); allowed {
		return nil
	}
	for _, col := range derivedGoalColumns {
		if c.Before[col] != c.After[col] {
			return fmt.Errorf("%s: %w", col, ErrDerivedGoalWrite)
		}
	}
	return nil
}

func logChanges(log logrus.FieldLogger) store.ChangeHook {
	return func(_ context.Context, c store.Change) error {
		log.WithFields(logrus.Fields{"table": c.Table, "kind": c.Kind, "id": c.ID}).Debug("record change")
		return nil
	}
}

func validDate(value string) bool {
	_, err := time.Parse(model.DateLayout, value)
	return err == nil
}
