package source

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strconv"

	"millwright/api/internal/content"
)

// Resolver is the one fetch surface the rest of the application uses. It
// routes each content type to its assigned backend, normalizes the raw
// documents, and caches published reads. Singleton reads always produce a
// usable value.
type Resolver struct {
	backends map[content.Type]Backend
	fallback Backend
	cache    *Cache
}

// NewResolver creates a resolver with a default backend for every type.
// cache may be nil, in which case every read goes to the backend.
func NewResolver(fallback Backend, cache *Cache) *Resolver {
	return &Resolver{
		backends: make(map[content.Type]Backend),
		fallback: fallback,
		cache:    cache,
	}
}

// Assign routes a content type to a specific backend. Called during
// composition only; the routing table is read-only afterwards.
func (r *Resolver) Assign(typ content.Type, backend Backend) {
	r.backends[typ] = backend
}

func (r *Resolver) backendFor(typ content.Type) Backend {
	if backend, ok := r.backends[typ]; ok {
		return backend
	}
	return r.fallback
}

// GetBySlug resolves one document. The second return is false when the
// document is absent, unpublished outside draft mode, or the backend failed.
func (r *Resolver) GetBySlug(ctx context.Context, typ content.Type, slug string, opts Options) (content.Document, bool) {
	key := Key(string(typ), "doc", slug)
	if doc, ok := r.cachedDocument(ctx, key, opts); ok {
		return doc, true
	}

	raw, err := r.backendFor(typ).FetchBySlug(ctx, typ, slug, opts.Draft)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			log.Printf("source: get %s/%s: %v", typ, slug, err)
		}
		return content.Document{}, false
	}

	doc := content.Normalize(typ, raw)
	if !opts.Draft && !doc.Published() {
		return content.Document{}, false
	}

	r.cacheDocument(ctx, key, doc, opts)
	return doc, true
}

// List returns up to limit documents of a type, newest first. category may
// be empty. Failures degrade to an empty slice.
func (r *Resolver) List(ctx context.Context, typ content.Type, category string, limit int, opts Options) []content.Document {
	key := Key(string(typ), "list", category, strconv.Itoa(limit))
	if !opts.Draft && r.cache != nil {
		if cached, ok := r.cache.Get(ctx, key); ok {
			var docs []content.Document
			if err := json.Unmarshal(cached, &docs); err == nil {
				return docs
			}
		}
	}

	raws, err := r.backendFor(typ).FetchList(ctx, typ, category, limit, opts.Draft)
	if err != nil {
		log.Printf("source: list %s category=%q: %v", typ, category, err)
		return []content.Document{}
	}

	docs := make([]content.Document, 0, len(raws))
	for _, raw := range raws {
		doc := content.Normalize(typ, raw)
		if !opts.Draft && !doc.Published() {
			continue
		}
		docs = append(docs, doc)
	}

	if !opts.Draft && r.cache != nil {
		if encoded, err := json.Marshal(docs); err == nil {
			r.cache.Set(ctx, key, encoded)
		}
	}
	return docs
}

// Navigation returns the navigation singleton, or its default when the
// backend cannot serve it. Never nil members.
func (r *Resolver) Navigation(ctx context.Context, opts Options) content.Navigation {
	raw, ok := r.singleton(ctx, content.TypeNavigation, opts)
	if !ok {
		return content.DefaultNavigation()
	}
	return content.NormalizeNavigation(raw)
}

// Footer returns the footer singleton, or its default.
func (r *Resolver) Footer(ctx context.Context, opts Options) content.Footer {
	raw, ok := r.singleton(ctx, content.TypeFooter, opts)
	if !ok {
		return content.DefaultFooter()
	}
	return content.NormalizeFooter(raw)
}

// Settings returns the site settings singleton, or its default. SiteTitle
// and SiteDescription are always non-empty.
func (r *Resolver) Settings(ctx context.Context, opts Options) content.Settings {
	raw, ok := r.singleton(ctx, content.TypeSettings, opts)
	if !ok {
		return content.DefaultSettings()
	}
	return content.NormalizeSettings(raw)
}

// InvalidateType drops every cached read for a content type. Called by the
// admin write path after a mutation.
func (r *Resolver) InvalidateType(ctx context.Context, typ content.Type) {
	if r.cache == nil {
		return
	}
	r.cache.Invalidate(ctx, string(typ)+":")
}

func (r *Resolver) singleton(ctx context.Context, typ content.Type, opts Options) (map[string]any, bool) {
	key := Key(string(typ), "global")
	if !opts.Draft && r.cache != nil {
		if cached, ok := r.cache.Get(ctx, key); ok {
			var raw map[string]any
			if err := json.Unmarshal(cached, &raw); err == nil {
				return raw, true
			}
		}
	}

	raw, err := r.backendFor(typ).FetchSingleton(ctx, typ, opts.Draft)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			log.Printf("source: singleton %s: %v", typ, err)
		}
		return nil, false
	}

	if !opts.Draft && r.cache != nil {
		if encoded, err := json.Marshal(raw); err == nil {
			r.cache.Set(ctx, key, encoded)
		}
	}
	return raw, true
}

func (r *Resolver) cachedDocument(ctx context.Context, key string, opts Options) (content.Document, bool) {
	if opts.Draft || r.cache == nil {
		return content.Document{}, false
	}
	cached, ok := r.cache.Get(ctx, key)
	if !ok {
		return content.Document{}, false
	}
	var doc content.Document
	if err := json.Unmarshal(cached, &doc); err != nil {
		return content.Document{}, false
	}
	return doc, true
}

func (r *Resolver) cacheDocument(ctx context.Context, key string, doc content.Document, opts Options) {
	if opts.Draft || r.cache == nil {
		return
	}
	if encoded, err := json.Marshal(doc); err == nil {
		r.cache.Set(ctx, key, encoded)
	}
}
