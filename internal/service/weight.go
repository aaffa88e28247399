package service

import (
	"context"
	"strings"

	"github.com/saadjs/nutrisync/internal/model"
	"github.com/saadjs/nutrisync/internal/store"
	"github.com/sirupsen/logrus"
)

type LogWeightInput struct {
	UserID string  `json:"user_id" validate:"required"`
	Weight float64 `json:"weight" validate:"gt=0"`
	Unit   string  `json:"unit" validate:"omitempty,oneof=kg lb lbs"`
	Date   string  `json:"date" validate:"required,datetime=2006-01-02"`
	Notes  string  `json:"notes" validate:"max=500"`
}

type WeightLogResult struct {
	Entry             model.WeightEntry `json:"entry"`
	Created           bool              `json:"created"`
	GoalsRecalculated bool              `json:"goals_recalculated"`
}

// float noise guard for the significance threshold
const driftEpsilon = 1e-9

// LogOrUpdateWeight upserts the user's weight for a day and updates the current
// weight in the same write. When the weight moved at least the significance
// threshold away from the weight the goals were computed from, the goals are
// recomputed too. The cached user is refreshed after the commit.
func (s *Service) LogOrUpdateWeight(ctx context.Context, in LogWeightInput) (WeightLogResult, error) {
	in.Unit = strings.ToLower(strings.TrimSpace(in.Unit))
	in.Notes = strings.TrimSpace(in.Notes)
	if in.Weight <= 0 {
		return WeightLogResult{}, invalid("weight must be > 0")
	}
	if err := s.check(in); err != nil {
		return WeightLogResult{}, err
	}
	weightKg, err := ToKg(in.Weight, in.Unit)
	if err != nil {
		return WeightLogResult{}, err
	}

	var res WeightLogResult
	err = s.store.Write(withGoalPipeline(ctx), func(w *store.Writer) error {
		user, err := s.users.FindIn(w, in.UserID)
		if err != nil {
			return err
		}

		existing, err := s.weights.Query(store.Eq("user_id", in.UserID), store.Eq("date", in.Date)).Take(1).FetchIn(w)
		if err != nil {
			return err
		}
		var entry *model.WeightEntry
		if len(existing) > 0 {
			entry = existing[0]
			err = s.weights.Update(w, entry, func(e *model.WeightEntry) {
				e.WeightKg = weightKg
				if in.Notes != "" {
					e.Notes = in.Notes
				}
			})
		} else {
			res.Created = true
			entry, err = s.weights.Create(w, func(e *model.WeightEntry) {
				e.UserID = in.UserID
				e.Date = in.Date
				e.WeightKg = weightKg
				e.Notes = in.Notes
			})
		}
		if err != nil {
			return err
		}
		res.Entry = *entry

		basis := user.GoalsBasisWeightKg
		if basis <= 0 {
			basis = user.CurrentWeightKg
		}
		res.GoalsRecalculated = absDiff(weightKg, basis)+driftEpsilon >= s.significantChangeKg
		return s.users.Update(w, user, func(u *model.User) {
			u.CurrentWeightKg = weightKg
			if res.GoalsRecalculated {
				u.ApplyGoals(model.ComputeGoals(u.Profile(), s.now(), s.policy))
			}
		})
	})
	if err != nil {
		return WeightLogResult{}, s.fail("log weight", logrus.Fields{"user_id": in.UserID, "date": in.Date}, err)
	}
	s.log.WithFields(logrus.Fields{
		"user_id":     in.UserID,
		"date":        in.Date,
		"weight_kg":   weightKg,
		"recalculate": res.GoalsRecalculated,
	}).Debug("weight logged")

	s.refreshCachedUser(ctx, in.UserID)
	return res, nil
}

// WeightHistory lists entries newest first. limit <= 0 uses the history cap.
func (s *Service) WeightHistory(ctx context.Context, userID string, limit int) ([]*model.WeightEntry, error) {
	if limit <= 0 {
		limit = s.historyCap
	}
	entries, err := s.weights.Query(store.Eq("user_id", userID)).SortBy("date", store.Desc).Take(limit).Fetch(ctx)
	if err != nil {
		return nil, s.fail("weight history", logrus.Fields{"user_id": userID}, err)
	}
	return entries, nil
}
