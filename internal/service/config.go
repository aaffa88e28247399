package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

const (
	ConfigCurrentUser = "current_user_id"
	ConfigWeightUnit  = "weight_unit"
)

// SetConfig stores a per-install setting in app_config.
func (s *Service) SetConfig(ctx context.Context, key, value string) error {
	key = strings.TrimSpace(strings.ToLower(key))
	if key == "" {
		return invalid("config key is required")
	}
	_, err := s.store.DB().ExecContext(ctx, `
INSERT INTO app_config(key, value, updated_at)
VALUES(?, ?, ?)
ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at
`, key, strings.TrimSpace(value), s.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("set config %q: %w", key, err)
	}
	return nil
}

func (s *Service) GetConfig(ctx context.Context, key string) (string, bool, error) {
	key = strings.TrimSpace(strings.ToLower(key))
	if key == "" {
		return "", false, invalid("config key is required")
	}
	var value string
	err := s.store.DB().GetContext(ctx, &value, `SELECT value FROM app_config WHERE key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get config %q: %w", key, err)
	}
	return value, true, nil
}

func (s *Service) UnsetConfig(ctx context.Context, key string) error {
	key = strings.TrimSpace(strings.ToLower(key))
	if _, err := s.store.DB().ExecContext(ctx, `DELETE FROM app_config WHERE key = ?`, key); err != nil {
		return fmt.Errorf("unset config %q: %w", key, err)
	}
	return nil
}

func (s *Service) ListConfig(ctx context.Context) (map[string]string, error) {
	var rows []struct {
		Key   string `db:"key"`
		Value string `db:"value"`
	}
	if err := sqlx.SelectContext(ctx, s.store.DB(), &rows, `SELECT key, value FROM app_config ORDER BY key ASC`); err != nil {
		return nil, fmt.Errorf("list config: %w", err)
	}
	out := make(map[string]string, len(rows))
	for _, r := range rows {
		out[r.Key] = r.Value
	}
	return out, nil
}
