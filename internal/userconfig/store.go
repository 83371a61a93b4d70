// Package userconfig implements the L1 user-configuration fan-out: a
// Postgres-backed UserConfigStore plus the TTL-invalidated cache layer
// sitting in front of it. The cache is an in-process map with TTL
// expiry; an expired entry is replaced on its next read, and there is no
// background cleanup.
package userconfig

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/peter0524/service-fabric/internal/domain"
)

// PostgresStore is the canonical UserConfigStore backed by a connection
// pool constructed once in main (see internal/adapter/repo/postgres.Conn).
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an already-constructed pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Schema (informational; applied via migration tooling, not at runtime):
//
//	CREATE TABLE user_configs (
//	  user_id           TEXT PRIMARY KEY,
//	  phone             TEXT UNIQUE,
//	  watched_tickers   JSONB NOT NULL DEFAULT '[]',
//	  thresholds        JSONB NOT NULL,
//	  llm_choice        TEXT NOT NULL,
//	  enabled_services  JSONB NOT NULL,
//	  notify            JSONB NOT NULL,
//	  created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
//	  updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
//	);

func (s *PostgresStore) GetUserConfig(ctx context.Context, userID string) (domain.UserConfig, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT user_id, phone, watched_tickers, thresholds, llm_choice, enabled_services, notify
		FROM user_configs WHERE user_id = $1`, userID)

	var cfg domain.UserConfig
	var tickersRaw, thresholdsRaw, servicesRaw, notifyRaw []byte
	var llmChoice string
	err := row.Scan(&cfg.UserID, &cfg.Phone, &tickersRaw, &thresholdsRaw, &llmChoice, &servicesRaw, &notifyRaw)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.UserConfig{}, fmt.Errorf("user %q: %w", userID, domain.ErrNotFound)
		}
		return domain.UserConfig{}, fmt.Errorf("get user config: %w", err)
	}
	cfg.LLMChoice = domain.LLMKind(llmChoice)
	if err := json.Unmarshal(tickersRaw, &cfg.WatchedTickers); err != nil {
		return domain.UserConfig{}, fmt.Errorf("decode watched_tickers: %w", err)
	}
	if err := json.Unmarshal(thresholdsRaw, &cfg.Thresholds); err != nil {
		return domain.UserConfig{}, fmt.Errorf("decode thresholds: %w", err)
	}
	var services map[string]bool
	if err := json.Unmarshal(servicesRaw, &services); err != nil {
		return domain.UserConfig{}, fmt.Errorf("decode enabled_services: %w", err)
	}
	cfg.EnabledServices = make(map[domain.ServiceKind]bool, len(services))
	for k, v := range services {
		cfg.EnabledServices[domain.ServiceKind(k)] = v
	}
	if err := json.Unmarshal(notifyRaw, &cfg.Notify); err != nil {
		return domain.UserConfig{}, fmt.Errorf("decode notify: %w", err)
	}
	return cfg, nil
}

func (s *PostgresStore) RegisterProfile(ctx context.Context, cfg domain.UserConfig) error {
	tickers, _ := json.Marshal(cfg.WatchedTickers)
	thresholds, _ := json.Marshal(cfg.Thresholds)
	services := make(map[string]bool, len(cfg.EnabledServices))
	for k, v := range cfg.EnabledServices {
		services[string(k)] = v
	}
	servicesRaw, _ := json.Marshal(services)
	notify, _ := json.Marshal(cfg.Notify)

	_, err := s.pool.Exec(ctx, `
		INSERT INTO user_configs (user_id, phone, watched_tickers, thresholds, llm_choice, enabled_services, notify)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		cfg.UserID, cfg.Phone, tickers, thresholds, string(cfg.LLMChoice), servicesRaw, notify)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("phone already registered: %w", domain.ErrConflict)
		}
		return fmt.Errorf("register profile: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateUserConfig(ctx context.Context, userID string, patch domain.UserConfigPatch) error {
	if patch.Phone != nil {
		if _, err := s.pool.Exec(ctx, `UPDATE user_configs SET phone = $2, updated_at = now() WHERE user_id = $1`, userID, *patch.Phone); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("phone already registered: %w", domain.ErrConflict)
			}
			return err
		}
	}
	if patch.Thresholds != nil {
		raw, _ := json.Marshal(*patch.Thresholds)
		if _, err := s.pool.Exec(ctx, `UPDATE user_configs SET thresholds = $2, updated_at = now() WHERE user_id = $1`, userID, raw); err != nil {
			return err
		}
	}
	if patch.LLMChoice != nil {
		if _, err := s.pool.Exec(ctx, `UPDATE user_configs SET llm_choice = $2, updated_at = now() WHERE user_id = $1`, userID, string(*patch.LLMChoice)); err != nil {
			return err
		}
	}
	if patch.Notify != nil {
		raw, _ := json.Marshal(*patch.Notify)
		if _, err := s.pool.Exec(ctx, `UPDATE user_configs SET notify = $2, updated_at = now() WHERE user_id = $1`, userID, raw); err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresStore) GetUserStocks(ctx context.Context, userID string) ([]domain.TickerCode, error) {
	cfg, err := s.GetUserConfig(ctx, userID)
	if err != nil {
		return nil, err
	}
	return cfg.WatchedTickers, nil
}

func (s *PostgresStore) SetUserStocks(ctx context.Context, userID string, tickers []domain.TickerCode) error {
	raw, _ := json.Marshal(tickers)
	_, err := s.pool.Exec(ctx, `UPDATE user_configs SET watched_tickers = $2, updated_at = now() WHERE user_id = $1`, userID, raw)
	return err
}

func (s *PostgresStore) GetModelChoice(ctx context.Context, userID string) (domain.LLMKind, error) {
	cfg, err := s.GetUserConfig(ctx, userID)
	if err != nil {
		return "", err
	}
	return cfg.LLMChoice, nil
}

func (s *PostgresStore) SetModelChoice(ctx context.Context, userID string, kind domain.LLMKind) error {
	_, err := s.pool.Exec(ctx, `UPDATE user_configs SET llm_choice = $2, updated_at = now() WHERE user_id = $1`, userID, string(kind))
	return err
}

func (s *PostgresStore) SetWantedServices(ctx context.Context, userID string, enabled map[domain.ServiceKind]bool) error {
	services := make(map[string]bool, len(enabled))
	for k, v := range enabled {
		services[string(k)] = v
	}
	raw, _ := json.Marshal(services)
	_, err := s.pool.Exec(ctx, `UPDATE user_configs SET enabled_services = $2, updated_at = now() WHERE user_id = $1`, userID, raw)
	return err
}

func isUniqueViolation(err error) bool {
	return err != nil && (contains(err.Error(), "SQLSTATE 23505") || contains(err.Error(), "duplicate key"))
}

func contains(haystack, needle string) bool {
	return len(haystack) >= len(needle) && (func() bool {
		for i := 0; i+len(needle) <= len(haystack); i++ {
			if haystack[i:i+len(needle)] == needle {
				return true
			}
		}
		return false
	})()
}
