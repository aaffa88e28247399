package service

import (
	"context"
	"errors"
	"math"
	"strings"

	"github.com/saadjs/nutrisync/internal/model"
	"github.com/saadjs/nutrisync/internal/store"
	"github.com/sirupsen/logrus"
)

type CreateUserInput struct {
	Name          string  `json:"name" validate:"required,max=100"`
	Email         string  `json:"email" validate:"omitempty,email"`
	RemoteID      string  `json:"remote_id" validate:"max=100"`
	DateOfBirth   string  `json:"date_of_birth" validate:"omitempty,datetime=2006-01-02"`
	Gender        string  `json:"gender" validate:"required,oneof=male female other"`
	HeightCm      float64 `json:"height_cm" validate:"gt=0,lt=300"`
	WeightKg      float64 `json:"weight_kg" validate:"gt=0,lt=700"`
	GoalWeightKg  float64 `json:"goal_weight_kg" validate:"gte=0,lt=700"`
	ActivityLevel string  `json:"activity_level" validate:"omitempty,oneof=sedentary lightly_active moderately_active very_active"`
	GoalType      string  `json:"goal_type" validate:"required,oneof=lose maintain gain"`
}

// UpdateProfileInput changes only the non-nil fields.
type UpdateProfileInput struct {
	UserID        string   `json:"user_id" validate:"required"`
	Name          *string  `json:"name" validate:"omitempty,min=1,max=100"`
	Email         *string  `json:"email" validate:"omitempty,email"`
	DateOfBirth   *string  `json:"date_of_birth" validate:"omitempty,datetime=2006-01-02"`
	Gender        *string  `json:"gender" validate:"omitempty,oneof=male female other"`
	HeightCm      *float64 `json:"height_cm" validate:"omitempty,gt=0,lt=300"`
	WeightKg      *float64 `json:"weight_kg" validate:"omitempty,gt=0,lt=700"`
	GoalWeightKg  *float64 `json:"goal_weight_kg" validate:"omitempty,gte=0,lt=700"`
	ActivityLevel *string  `json:"activity_level" validate:"omitempty,oneof=sedentary lightly_active moderately_active very_active"`
	GoalType      *string  `json:"goal_type" validate:"omitempty,oneof=lose maintain gain"`
}

// CreateUser persists a profile. Goals stay unset until SetupInitialGoals.
func (s *Service) CreateUser(ctx context.Context, in CreateUserInput) (*model.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.Gender = strings.ToLower(strings.TrimSpace(in.Gender))
	in.GoalType = strings.ToLower(strings.TrimSpace(in.GoalType))
	in.ActivityLevel = strings.ToLower(strings.TrimSpace(in.ActivityLevel))
	if err := s.check(in); err != nil {
		return nil, err
	}
	if in.ActivityLevel == "" {
		in.ActivityLevel = string(model.Sedentary)
	}
	if in.DateOfBirth != "" {
		if _, ok := model.AgeOn(in.DateOfBirth, s.now()); !ok {
			return nil, invalid("date_of_birth cannot be in the future")
		}
	}

	var user *model.User
	err := s.store.Write(ctx, func(w *store.Writer) error {
		var err error
		user, err = s.users.Create(w, func(u *model.User) {
			u.Name = in.Name
			u.Email = in.Email
			u.RemoteID = in.RemoteID
			u.DateOfBirth = in.DateOfBirth
			u.Gender = model.Gender(in.Gender)
			u.HeightCm = in.HeightCm
			u.CurrentWeightKg = in.WeightKg
			u.GoalWeightKg = in.GoalWeightKg
			u.ActivityLevel = model.ActivityLevel(in.ActivityLevel)
			u.GoalType = model.GoalType(in.GoalType)
		})
		return err
	})
	if err != nil {
		return nil, s.fail("create user", logrus.Fields{"name": in.Name}, err)
	}
	s.log.WithField("user_id", user.ID).Info("user created")
	return user, nil
}

// SetupInitialGoals computes and stores the goal set from the current profile.
func (s *Service) SetupInitialGoals(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.recomputeGoals(ctx, userID, nil)
	if err != nil {
		return nil, s.fail("setup initial goals", logrus.Fields{"user_id": userID}, err)
	}
	s.refreshCachedUser(ctx, userID)
	return user, nil
}

// UpdateProfile applies profile edits and recomputes goals in the same write.
func (s *Service) UpdateProfile(ctx context.Context, in UpdateProfileInput) (*model.User, error) {
	if err := s.check(in); err != nil {
		return nil, err
	}
	if in.DateOfBirth != nil && *in.DateOfBirth != "" {
		if _, ok := model.AgeOn(*in.DateOfBirth, s.now()); !ok {
			return nil, invalid("date_of_birth cannot be in the future")
		}
	}
	user, err := s.recomputeGoals(ctx, in.UserID, func(u *model.User) {
		if in.Name != nil {
			u.Name = strings.TrimSpace(*in.Name)
		}
		if in.Email != nil {
			u.Email = strings.TrimSpace(*in.Email)
		}
		if in.DateOfBirth != nil {
			u.DateOfBirth = *in.DateOfBirth
		}
		if in.Gender != nil {
			u.Gender = model.Gender(*in.Gender)
		}
		if in.HeightCm != nil {
			u.HeightCm = *in.HeightCm
		}
		if in.WeightKg != nil {
			u.CurrentWeightKg = *in.WeightKg
		}
		if in.GoalWeightKg != nil {
			u.GoalWeightKg = *in.GoalWeightKg
		}
		if in.ActivityLevel != nil {
			u.ActivityLevel = model.ActivityLevel(*in.ActivityLevel)
		}
		if in.GoalType != nil {
			u.GoalType = model.GoalType(*in.GoalType)
		}
	})
	if err != nil {
		return nil, s.fail("update profile", logrus.Fields{"user_id": in.UserID}, err)
	}
	s.refreshCachedUser(ctx, in.UserID)
	return user, nil
}

// recomputeGoals is the goal pipeline: edit, if any, then a full recompute, as one update.
func (s *Service) recomputeGoals(ctx context.Context, userID string, edit func(*model.User)) (*model.User, error) {
	var user *model.User
	err := s.store.Write(withGoalPipeline(ctx), func(w *store.Writer) error {
		u, err := s.users.FindIn(w, userID)
		if err != nil {
			return err
		}
		err = s.users.Update(w, u, func(u *model.User) {
			if edit != nil {
				edit(u)
			}
			u.ApplyGoals(model.ComputeGoals(u.Profile(), s.now(), s.policy))
		})
		user = u
		return err
	})
	return user, err
}

func (s *Service) GetUser(ctx context.Context, userID string) (*model.User, error) {
	u, err := s.users.Find(ctx, userID)
	if err != nil {
		return nil, s.fail("get user", logrus.Fields{"user_id": userID}, err)
	}
	return u, nil
}

func (s *Service) ListUsers(ctx context.Context) ([]*model.User, error) {
	users, err := s.users.Query().SortBy("created_at", store.Asc).Fetch(ctx)
	if err != nil {
		return nil, s.fail("list users", nil, err)
	}
	return users, nil
}

// SelectUser makes userID the current user for this install and the cache.
func (s *Service) SelectUser(ctx context.Context, userID string) (*model.User, error) {
	u, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.SetConfig(ctx, ConfigCurrentUser, u.ID); err != nil {
		return nil, s.fail("select user", logrus.Fields{"user_id": userID}, err)
	}
	s.state.SetCurrentUser(u)
	return u, nil
}

// CurrentUser resolves the selected user, loading it into the cache when needed.
func (s *Service) CurrentUser(ctx context.Context) (*model.User, error) {
	if u, ok := s.state.CurrentUser(); ok {
		return &u, nil
	}
	id, ok, err := s.GetConfig(ctx, ConfigCurrentUser)
	if err != nil {
		return nil, err
	}
	if !ok || id == "" {
		return nil, ErrNoCurrentUser
	}
	u, err := s.users.Find(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNoCurrentUser
	}
	if err != nil {
		return nil, s.fail("load current user", logrus.Fields{"user_id": id}, err)
	}
	s.state.SetCurrentUser(u)
	return u, nil
}

// SignOut forgets the current user and everything cached for them.
func (s *Service) SignOut(ctx context.Context) error {
	if err := s.UnsetConfig(ctx, ConfigCurrentUser); err != nil {
		return err
	}
	s.state.ClearCurrentUser()
	return nil
}

// DeleteUser removes the user with their diary and weight entries in one write.
func (s *Service) DeleteUser(ctx context.Context, userID string, confirm bool) error {
	if !confirm {
		return ErrConfirmationRequired
	}
	removed := 0
	err := s.store.Write(ctx, func(w *store.Writer) error {
		u, err := s.users.FindIn(w, userID)
		if err != nil {
			return err
		}
		entries, err := s.diary.Query(store.Eq("user_id", userID)).FetchIn(w)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if err := s.diary.Destroy(w, e); err != nil {
				return err
			}
		}
		weights, err := s.weights.Query(store.Eq("user_id", userID)).FetchIn(w)
		if err != nil {
			return err
		}
		for _, e := range weights {
			if err := s.weights.Destroy(w, e); err != nil {
				return err
			}
		}
		removed = len(entries) + len(weights)
		return s.users.Destroy(w, u)
	})
	if err != nil {
		return s.fail("delete user", logrus.Fields{"user_id": userID}, err)
	}
	s.log.WithFields(logrus.Fields{"user_id": userID, "dependents": removed}).Warn("user deleted")

	if id, ok, err := s.GetConfig(ctx, ConfigCurrentUser); err == nil && ok && id == userID {
		if err := s.UnsetConfig(ctx, ConfigCurrentUser); err != nil {
			s.log.WithError(err).Warn("clear current user setting")
		}
	}
	if cached, ok := s.state.CurrentUser(); ok && cached.ID == userID {
		s.state.ClearCurrentUser()
	}
	return nil
}

// refreshCachedUser re-reads userID after a commit and pushes it into the cache if
// the cache holds that user. Failures are logged only.
func (s *Service) refreshCachedUser(ctx context.Context, userID string) {
	cached, ok := s.state.CurrentUser()
	if !ok || cached.ID != userID {
		return
	}
	u, err := s.users.Find(ctx, userID)
	if err != nil {
		s.log.WithError(err).WithField("user_id", userID).Warn("refresh cached user")
		return
	}
	s.state.SetCurrentUser(u)
}

func absDiff(a, b float64) float64 { return math.Abs(a - b) }
