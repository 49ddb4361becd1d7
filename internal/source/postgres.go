package source

import (
	"context"
	"database/sql"
	"errors"

	"millwright/api/internal/content"
	"millwright/api/internal/store"
)

// PostgresBackend serves content from the primary document store.
type PostgresBackend struct {
	store *store.PostgresStore
}

func NewPostgresBackend(dataStore *store.PostgresStore) *PostgresBackend {
	return &PostgresBackend{store: dataStore}
}

func (b *PostgresBackend) FetchBySlug(ctx context.Context, typ content.Type, slug string, draft bool) (map[string]any, error) {
	raw, err := b.store.GetBySlug(ctx, string(typ), slug, draft)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return raw, err
}

func (b *PostgresBackend) FetchList(ctx context.Context, typ content.Type, category string, limit int, draft bool) ([]map[string]any, error) {
	if category == "" {
		return b.store.ListByType(ctx, string(typ), limit, draft)
	}
	return b.store.ListByCategory(ctx, string(typ), category, limit, draft)
}

func (b *PostgresBackend) FetchSingleton(ctx context.Context, typ content.Type, draft bool) (map[string]any, error) {
	raw, err := b.store.GetSingleton(ctx, string(typ), draft)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return raw, err
}
