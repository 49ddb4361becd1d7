// Package source resolves content reads against the configured backends.
// Which backend serves a content type is fixed at composition time; callers
// never branch on backend identity. Reads are best-effort: backend failures
// degrade to not-found, empty lists or the documented singleton defaults,
// never to an error the caller must handle.
package source

import (
	"context"
	"errors"

	"millwright/api/internal/content"
)

// ErrNotFound indicates a backend holds no document at the requested
// address. It is the only error adapters are expected to distinguish.
var ErrNotFound = errors.New("source: document not found")

// Options controls the freshness of a read. Draft selects the latest
// unpublished revision and bypasses the cache entirely.
type Options struct {
	Draft bool
}

// Backend fetches raw documents from one storage system. Implementations
// return ErrNotFound for absent documents and real errors for everything
// else; shaping and degradation happen above them.
type Backend interface {
	FetchBySlug(ctx context.Context, typ content.Type, slug string, draft bool) (map[string]any, error)
	FetchList(ctx context.Context, typ content.Type, category string, limit int, draft bool) ([]map[string]any, error)
	FetchSingleton(ctx context.Context, typ content.Type, draft bool) (map[string]any, error)
}
