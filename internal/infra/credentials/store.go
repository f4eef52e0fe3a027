package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"spatia/internal/infra"
	"spatia/internal/sqlinline"
)

const (
	ProviderWorldLabs = "worldlabs"
)

// Store reads and writes provider tokens in integration_tokens.
type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

func (s *Store) WorldLabsAPIKey(ctx context.Context) (string, error) {
	return s.Token(ctx, ProviderWorldLabs)
}

// Token returns the stored token for provider, or "" when none is stored.
func (s *Store) Token(ctx context.Context, provider string) (string, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectIntegrationToken, provider)
	var token string
	if err := row.Scan(&token); err != nil {
		if infra.IsNoRows(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(token), nil
}

func (s *Store) SetWorldLabsAPIKey(ctx context.Context, key string, props map[string]any) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("world labs api key is required")
	}
	return s.upsert(ctx, ProviderWorldLabs, key, props)
}

// ResolveAPIKey prefers the configured key and falls back to the store.
func ResolveAPIKey(ctx context.Context, configured string, store *Store) (string, error) {
	if key := strings.TrimSpace(configured); key != "" || store == nil {
		return key, nil
	}
	return store.WorldLabsAPIKey(ctx)
}

func (s *Store) upsert(ctx context.Context, provider, token string, props map[string]any) error {
	payload := props
	if payload == nil {
		payload = map[string]any{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = s.sql.Exec(ctx, sqlinline.QUpsertIntegrationToken, provider, token, raw)
	return err
}
