package source

import (
	"context"
	"errors"

	"millwright/api/internal/content"
	"millwright/api/internal/contentapi"
)

// StructuredBackend serves content from the hosted structured-content API.
type StructuredBackend struct {
	client *contentapi.Client
}

func NewStructuredBackend(client *contentapi.Client) *StructuredBackend {
	return &StructuredBackend{client: client}
}

func (b *StructuredBackend) FetchBySlug(ctx context.Context, typ content.Type, slug string, draft bool) (map[string]any, error) {
	raw, err := b.client.GetDocument(ctx, string(typ), slug, draft)
	if errors.Is(err, contentapi.ErrNotFound) {
		return nil, ErrNotFound
	}
	return raw, err
}

func (b *StructuredBackend) FetchList(ctx context.Context, typ content.Type, category string, limit int, draft bool) ([]map[string]any, error) {
	return b.client.ListDocuments(ctx, string(typ), category, limit, draft)
}

func (b *StructuredBackend) FetchSingleton(ctx context.Context, typ content.Type, draft bool) (map[string]any, error) {
	raw, err := b.client.GetGlobal(ctx, string(typ), draft)
	if errors.Is(err, contentapi.ErrNotFound) {
		return nil, ErrNotFound
	}
	return raw, err
}
