package service

import (
	"context"

	"github.com/sirupsen/logrus"
)

// TableNames lists the record tables.
func (s *Service) TableNames() []string { return s.store.TableNames() }

// ClearTable deletes every row of one record table. Irreversible.
func (s *Service) ClearTable(ctx context.Context, table string, confirm bool) error {
	if !confirm {
		return ErrConfirmationRequired
	}
	if err := s.store.ClearTable(ctx, table); err != nil {
		return s.fail("clear table", logrus.Fields{"table": table}, err)
	}
	s.log.WithField("table", table).Warn("table cleared")
	if table == s.users.Table() {
		s.forgetCurrentUser(ctx)
	}
	return nil
}

// NukeDatabase clears every record table in one write. Irreversible.
func (s *Service) NukeDatabase(ctx context.Context, confirm bool) error {
	if !confirm {
		return ErrConfirmationRequired
	}
	if err := s.store.Nuke(ctx); err != nil {
		return s.fail("nuke database", nil, err)
	}
	s.log.Warn("database nuked")
	s.forgetCurrentUser(ctx)
	return nil
}

func (s *Service) forgetCurrentUser(ctx context.Context) {
	if err := s.UnsetConfig(ctx, ConfigCurrentUser); err != nil {
		s.log.WithError(err).Warn("clear current user setting")
	}
	s.state.ClearCurrentUser()
}
