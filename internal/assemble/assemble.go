// Package assemble joins resolved documents into page view models.
package assemble

import (
	"context"
	"errors"
	"sort"

	"millwright/api/internal/content"
	"millwright/api/internal/source"
)

// ErrNotFound is returned when a page cannot be assembled because the
// document is missing, unpublished outside draft mode, or requested under
// the wrong category.
var ErrNotFound = errors.New("page not found")

// Fetcher is the slice of the source resolver the assembler needs.
type Fetcher interface {
	GetBySlug(ctx context.Context, typ content.Type, slug string, opts source.Options) (content.Document, bool)
	List(ctx context.Context, typ content.Type, category string, limit int, opts source.Options) []content.Document
	Navigation(ctx context.Context, opts source.Options) content.Navigation
	Footer(ctx context.Context, opts source.Options) content.Footer
	Settings(ctx context.Context, opts source.Options) content.Settings
}

// Globals carries the layout singletons every page shares.
type Globals struct {
	Navigation content.Navigation `json:"navigation"`
	Footer     content.Footer     `json:"footer"`
	Settings   content.Settings   `json:"settings"`
}

// HomePage is the view model for the landing page.
type HomePage struct {
	Page             content.Document   `json:"page"`
	FeaturedServices []content.Document `json:"featuredServices"`
	RecentResources  []content.Document `json:"recentResources"`
	SEO              content.SEO        `json:"seo"`
}

// ServicePage is the view model for a single service.
type ServicePage struct {
	Service           content.Document   `json:"service"`
	RelatedIndustries []content.Document `json:"relatedIndustries"`
	SEO               content.SEO        `json:"seo"`
}

// IndustryPage is the view model for a single industry.
type IndustryPage struct {
	Industry        content.Document   `json:"industry"`
	RelatedServices []content.Document `json:"relatedServices"`
	SEO             content.SEO        `json:"seo"`
}

// ResourcePage is the view model for a resource article.
type ResourcePage struct {
	Resource content.Document   `json:"resource"`
	Related  []content.Document `json:"related"`
	SEO      content.SEO        `json:"seo"`
}

// StandardPage is the view model for free-form pages (about, contact, ...).
type StandardPage struct {
	Page content.Document `json:"page"`
	SEO  content.SEO      `json:"seo"`
}

const defaultRelatedLimit = 3

// Assembler builds page view models from resolved documents.
type Assembler struct {
	fetch        Fetcher
	relatedLimit int
}

func New(fetch Fetcher, relatedLimit int) *Assembler {
	if relatedLimit <= 0 {
		relatedLimit = defaultRelatedLimit
	}
	return &Assembler{fetch: fetch, relatedLimit: relatedLimit}
}

// Globals resolves the layout singletons. Never fails; each singleton falls
// back to its default independently.
func (a *Assembler) Globals(ctx context.Context, opts source.Options) Globals {
	return Globals{
		Navigation: a.fetch.Navigation(ctx, opts),
		Footer:     a.fetch.Footer(ctx, opts),
		Settings:   a.fetch.Settings(ctx, opts),
	}
}

// Home assembles the landing page: the "home" page document plus featured
// services and the most recent resources.
func (a *Assembler) Home(ctx context.Context, opts source.Options) (HomePage, error) {
	page, ok := a.fetch.GetBySlug(ctx, content.TypePage, "home", opts)
	if !ok {
		return HomePage{}, ErrNotFound
	}
	settings := a.fetch.Settings(ctx, opts)
	return HomePage{
		Page:             page,
		FeaturedServices: a.fetch.List(ctx, content.TypeService, "", a.relatedLimit, opts),
		RecentResources:  a.fetch.List(ctx, content.TypeResource, "", a.relatedLimit, opts),
		SEO:              resolveSEO(page, settings),
	}, nil
}

// Service assembles a service detail page with related industries.
func (a *Assembler) Service(ctx context.Context, slug string, opts source.Options) (ServicePage, error) {
	doc, ok := a.fetch.GetBySlug(ctx, content.TypeService, slug, opts)
	if !ok {
		return ServicePage{}, ErrNotFound
	}
	settings := a.fetch.Settings(ctx, opts)
	return ServicePage{
		Service:           doc,
		RelatedIndustries: a.fetch.List(ctx, content.TypeIndustry, "", a.relatedLimit, opts),
		SEO:               resolveSEO(doc, settings),
	}, nil
}

// Industry assembles an industry detail page with related services.
func (a *Assembler) Industry(ctx context.Context, slug string, opts source.Options) (IndustryPage, error) {
	doc, ok := a.fetch.GetBySlug(ctx, content.TypeIndustry, slug, opts)
	if !ok {
		return IndustryPage{}, ErrNotFound
	}
	settings := a.fetch.Settings(ctx, opts)
	return IndustryPage{
		Industry:        doc,
		RelatedServices: a.fetch.List(ctx, content.TypeService, "", a.relatedLimit, opts),
		SEO:             resolveSEO(doc, settings),
	}, nil
}

// Resource assembles a resource article. The category in the request path
// must match the document's own category or the page does not exist.
func (a *Assembler) Resource(ctx context.Context, category, slug string, opts source.Options) (ResourcePage, error) {
	doc, ok := a.fetch.GetBySlug(ctx, content.TypeResource, slug, opts)
	if !ok {
		return ResourcePage{}, ErrNotFound
	}
	if doc.Category != category {
		return ResourcePage{}, ErrNotFound
	}
	settings := a.fetch.Settings(ctx, opts)
	return ResourcePage{
		Resource: doc,
		Related:  a.related(ctx, doc, opts),
		SEO:      resolveSEO(doc, settings),
	}, nil
}

// Page assembles a free-form standard page by slug.
func (a *Assembler) Page(ctx context.Context, slug string, opts source.Options) (StandardPage, error) {
	doc, ok := a.fetch.GetBySlug(ctx, content.TypePage, slug, opts)
	if !ok {
		return StandardPage{}, ErrNotFound
	}
	settings := a.fetch.Settings(ctx, opts)
	return StandardPage{
		Page: doc,
		SEO:  resolveSEO(doc, settings),
	}, nil
}

// related returns up to the configured number of resources sharing the
// document's category, excluding the document itself, newest first with
// ties broken by slug.
func (a *Assembler) related(ctx context.Context, doc content.Document, opts source.Options) []content.Document {
	// Over-fetch by one so the article itself can be dropped.
	candidates := a.fetch.List(ctx, content.TypeResource, doc.Category, a.relatedLimit+1, opts)

	related := make([]content.Document, 0, a.relatedLimit)
	for _, c := range candidates {
		if c.Slug == doc.Slug {
			continue
		}
		related = append(related, c)
	}

	sort.SliceStable(related, func(i, j int) bool {
		if !related[i].UpdatedAt.Equal(related[j].UpdatedAt) {
			return related[i].UpdatedAt.After(related[j].UpdatedAt)
		}
		return related[i].Slug < related[j].Slug
	})

	if len(related) > a.relatedLimit {
		related = related[:a.relatedLimit]
	}
	return related
}

// resolveSEO applies the fallback chain per field: explicit seo value, then
// the document's own title and excerpt, then the site defaults.
func resolveSEO(doc content.Document, settings content.Settings) content.SEO {
	seo := content.SEO{}
	if doc.SEO != nil {
		seo = *doc.SEO
	}
	if seo.Title == "" {
		seo.Title = doc.Title
	}
	if seo.Title == "" {
		seo.Title = settings.SiteTitle
	}
	if seo.Description == "" {
		seo.Description = doc.Excerpt
	}
	if seo.Description == "" {
		seo.Description = settings.SiteDescription
	}
	return seo
}
