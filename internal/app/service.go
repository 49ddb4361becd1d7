package app

import (
	"context"
	"strings"
	"time"

	"millwright/api/internal/assemble"
	"millwright/api/internal/auth"
	"millwright/api/internal/authpw"
	"millwright/api/internal/config"
	"millwright/api/internal/content"
	"millwright/api/internal/contentapi"
	"millwright/api/internal/rbac"
	"millwright/api/internal/search"
	"millwright/api/internal/session"
	"millwright/api/internal/source"
	"millwright/api/internal/store"
	"millwright/api/internal/util"
)

// Session is an authenticated operator session.
type Session struct {
	Token        string
	RefreshToken string
	OperatorID   string
	Email        string
	DisplayName  string
	Role         string
	JTI          string
	ExpiresAt    time.Time
}

type dataStore interface {
	Ping(ctx context.Context) error
	CountDocuments(ctx context.Context) (int, error)
	ListCollection(ctx context.Context, typ string) ([]store.DocumentRecord, error)
	GetByID(ctx context.Context, typ, id string) (map[string]any, error)
	InsertDocument(ctx context.Context, record store.DocumentRecord) error
	UpdateDocument(ctx context.Context, record store.DocumentRecord) error
	PublishDocument(ctx context.Context, typ, id string) error
	DeleteDocument(ctx context.Context, typ, id string) error
	GetOperatorByEmail(ctx context.Context, email string) (store.Operator, error)
	GetOperatorByID(ctx context.Context, id string) (store.Operator, error)
	InsertOperator(ctx context.Context, op store.Operator) error
}

// contentSource is the resolver facade plus cache invalidation.
type contentSource interface {
	assemble.Fetcher
	InvalidateType(ctx context.Context, typ content.Type)
}

type sessionStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash string, sess session.Session, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (session.Session, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
}

type searchService interface {
	Search(q search.Query) search.Response
	IndexResource(rec search.ResourceRecord)
	DeleteResource(id string)
	ReindexAllFromPG(ctx context.Context)
	Healthy() bool
}

type pinger interface {
	Ping(ctx context.Context) error
}

type healthChecker interface {
	Healthy() bool
}

type Service struct {
	cfg       config.Config
	store     dataStore
	source    contentSource
	assembler *assemble.Assembler
	passwords *authpw.Service
	sessions  sessionStore
	search    searchService
	cache     pinger
	capi      healthChecker
}

func New(cfg config.Config, dataStore *store.PostgresStore, src *source.Resolver, searchService *search.Service) *Service {
	s := &Service{
		cfg:       cfg,
		store:     dataStore,
		source:    src,
		assembler: assemble.New(src, cfg.RelatedLimit),
	}
	if dataStore != nil {
		s.passwords = authpw.NewService(dataStore)
	}
	if searchService != nil {
		s.search = searchService
	}
	return s
}

func NewWithSessionStore(cfg config.Config, dataStore *store.PostgresStore, src *source.Resolver, sessions *session.RedisStore, searchService *search.Service) *Service {
	s := New(cfg, dataStore, src, searchService)
	if sessions != nil {
		s.sessions = sessions
	}
	return s
}

// AttachCache registers the content cache for readiness reporting.
func (s *Service) AttachCache(c *source.Cache) {
	if c != nil {
		s.cache = c
	}
}

// AttachContentAPI registers the content API client for readiness reporting.
func (s *Service) AttachContentAPI(c *contentapi.Client) {
	if c != nil {
		s.capi = c
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// ReadyCheck is one dependency's readiness status.
type ReadyCheck struct {
	Status    string `json:"status"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// Ready probes each dependency. Only the database gates readiness: the
// cache, content API, and search index all degrade at request time.
func (s *Service) Ready(ctx context.Context) (bool, map[string]ReadyCheck) {
	checks := map[string]ReadyCheck{}
	ready := true

	started := time.Now()
	if err := s.store.Ping(ctx); err != nil {
		ready = false
		checks["database"] = ReadyCheck{Status: "error", LatencyMS: since(started), Error: err.Error()}
	} else {
		checks["database"] = ReadyCheck{Status: "ok", LatencyMS: since(started)}
	}

	if s.cache != nil {
		started = time.Now()
		if err := s.cache.Ping(ctx); err != nil {
			checks["cache"] = ReadyCheck{Status: "degraded", LatencyMS: since(started), Error: err.Error()}
		} else {
			checks["cache"] = ReadyCheck{Status: "ok", LatencyMS: since(started)}
		}
	} else {
		checks["cache"] = ReadyCheck{Status: "disabled"}
	}

	if s.capi != nil {
		status := "ok"
		if !s.capi.Healthy() {
			status = "degraded"
		}
		checks["content_api"] = ReadyCheck{Status: status}
	} else {
		checks["content_api"] = ReadyCheck{Status: "disabled"}
	}

	if s.search != nil {
		status := "ok"
		if !s.search.Healthy() {
			status = "degraded"
		}
		checks["search"] = ReadyCheck{Status: status}
	} else {
		checks["search"] = ReadyCheck{Status: "disabled"}
	}

	return ready, checks
}

func since(started time.Time) int64 {
	return time.Since(started).Milliseconds()
}

// ── Content reads ──

func (s *Service) Globals(ctx context.Context, draft bool) assemble.Globals {
	return s.assembler.Globals(ctx, source.Options{Draft: draft})
}

func (s *Service) HomePage(ctx context.Context, draft bool) (assemble.HomePage, error) {
	return s.assembler.Home(ctx, source.Options{Draft: draft})
}

func (s *Service) StandardPage(ctx context.Context, slug string, draft bool) (assemble.StandardPage, error) {
	return s.assembler.Page(ctx, slug, source.Options{Draft: draft})
}

func (s *Service) ServiceList(ctx context.Context, draft bool) []content.Document {
	return s.source.List(ctx, content.TypeService, "", 0, source.Options{Draft: draft})
}

func (s *Service) ServicePage(ctx context.Context, slug string, draft bool) (assemble.ServicePage, error) {
	return s.assembler.Service(ctx, slug, source.Options{Draft: draft})
}

func (s *Service) IndustryList(ctx context.Context, draft bool) []content.Document {
	return s.source.List(ctx, content.TypeIndustry, "", 0, source.Options{Draft: draft})
}

func (s *Service) IndustryPage(ctx context.Context, slug string, draft bool) (assemble.IndustryPage, error) {
	return s.assembler.Industry(ctx, slug, source.Options{Draft: draft})
}

func (s *Service) ResourceList(ctx context.Context, category string, limit int, draft bool) []content.Document {
	return s.source.List(ctx, content.TypeResource, category, limit, source.Options{Draft: draft})
}

func (s *Service) ResourcePage(ctx context.Context, category, slug string, draft bool) (assemble.ResourcePage, error) {
	return s.assembler.Resource(ctx, category, slug, source.Options{Draft: draft})
}

func (s *Service) Team(ctx context.Context, draft bool) []content.Document {
	return s.source.List(ctx, content.TypeTeamMember, "", 0, source.Options{Draft: draft})
}

// Search runs a resource search. Returns empty results when no search
// backend is configured.
func (s *Service) Search(q search.Query) search.Response {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: q.Text}
	}
	return s.search.Search(q)
}

// ── Operator sessions ──

func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	op, err := s.passwords.SignIn(ctx, authpw.SignInRequest{Email: email, Password: password})
	if err != nil {
		return Session{}, domainError(401, "INVALID_CREDENTIALS", "Invalid email or password", nil)
	}
	return s.issueSession(ctx, op)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	if s.sessions == nil || refreshToken == "" {
		return Session{}, domainError(401, "UNAUTHORIZED", "Refresh token invalid", nil)
	}
	tokenHash := auth.HashToken(refreshToken)
	sess, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, domainError(401, "UNAUTHORIZED", "Refresh token invalid", nil)
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	// Re-read the operator so a role change takes effect on rotation.
	op, err := s.store.GetOperatorByID(ctx, sess.OperatorID)
	if err != nil {
		return Session{}, domainError(401, "UNAUTHORIZED", "Refresh token invalid", nil)
	}
	return s.issueSession(ctx, op)
}

func (s *Service) issueSession(ctx context.Context, op store.Operator) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.AuthSecret), auth.Claims{
		Sub:   op.ID,
		Email: op.Email,
		Role:  op.Role,
		JTI:   jti,
		Exp:   expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	var refresh string
	if s.sessions != nil {
		refresh, err = authpw.NewRefreshToken()
		if err != nil {
			return Session{}, err
		}
		err = s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), session.Session{
			OperatorID: op.ID,
			Email:      op.Email,
			Role:       op.Role,
		}, now.Add(s.cfg.RefreshTTL))
		if err != nil {
			return Session{}, err
		}
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		OperatorID:   op.ID,
		Email:        op.Email,
		DisplayName:  op.DisplayName,
		Role:         op.Role,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.AuthSecret), token)
	if err != nil {
		return Session{}, err
	}
	return Session{
		Token:      token,
		OperatorID: claims.Sub,
		Email:      claims.Email,
		Role:       string(rbac.Normalize(claims.Role)),
		JTI:        claims.JTI,
		ExpiresAt:  time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if s.sessions != nil && refreshToken != "" {
		_ = s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
	return nil
}

func (s *Service) Can(role string, action rbac.Action) bool {
	return rbac.Can(rbac.Normalize(role), action)
}

// ── Admin collection writes ──
//
// Write failures propagate to the caller: the admin panel needs the real
// error, unlike the public read path which degrades.

func (s *Service) ListCollection(ctx context.Context, typ string) ([]store.DocumentRecord, error) {
	if !content.KnownType(content.Type(typ)) {
		return nil, domainError(422, "VALIDATION_ERROR", "unknown content type", map[string]any{"type": typ})
	}
	return s.store.ListCollection(ctx, typ)
}

func (s *Service) CreateDocument(ctx context.Context, typ string, payload map[string]any) (store.DocumentRecord, error) {
	contentType := content.Type(typ)
	if !content.KnownType(contentType) {
		return store.DocumentRecord{}, domainError(422, "VALIDATION_ERROR", "unknown content type", map[string]any{"type": typ})
	}
	if payload == nil {
		payload = map[string]any{}
	}

	doc := content.Normalize(contentType, payload)
	slug := doc.Slug
	if content.IsSingleton(contentType) {
		slug = typ
	}
	if slug == "" {
		return store.DocumentRecord{}, domainError(422, "VALIDATION_ERROR", "slug is required", nil)
	}
	// The stored revision carries the normalized slug so a later publish
	// promotes exactly this identity; singletons stay pinned to their type.
	payload["slug"] = slug

	record := store.DocumentRecord{
		ID:       util.NewID("doc"),
		Type:     typ,
		Slug:     slug,
		Status:   string(content.StatusDraft),
		Title:    doc.Title,
		Category: doc.Category,
		Payload:  payload,
	}
	if err := s.store.InsertDocument(ctx, record); err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return store.DocumentRecord{}, domainError(409, "SLUG_EXISTS", "a document with this slug already exists", nil)
		}
		return store.DocumentRecord{}, err
	}

	s.source.InvalidateType(ctx, contentType)
	return record, nil
}

func (s *Service) UpdateDocument(ctx context.Context, typ, id string, payload map[string]any) error {
	contentType := content.Type(typ)
	if !content.KnownType(contentType) {
		return domainError(422, "VALIDATION_ERROR", "unknown content type", map[string]any{"type": typ})
	}
	if payload == nil {
		payload = map[string]any{}
	}

	doc := content.Normalize(contentType, payload)
	slug := doc.Slug
	if content.IsSingleton(contentType) {
		slug = typ
	}
	if slug == "" {
		return domainError(422, "VALIDATION_ERROR", "slug is required", nil)
	}
	payload["slug"] = slug

	err := s.store.UpdateDocument(ctx, store.DocumentRecord{
		ID:       id,
		Type:     typ,
		Slug:     slug,
		Title:    doc.Title,
		Category: doc.Category,
		Payload:  payload,
	})
	if err != nil {
		return err
	}

	// Draft edits are only visible in preview mode, which bypasses the
	// cache, but the updated_at bump reorders published lists.
	s.source.InvalidateType(ctx, contentType)
	return nil
}

func (s *Service) PublishDocument(ctx context.Context, typ, id string) error {
	contentType := content.Type(typ)
	if !content.KnownType(contentType) {
		return domainError(422, "VALIDATION_ERROR", "unknown content type", map[string]any{"type": typ})
	}
	if err := s.store.PublishDocument(ctx, typ, id); err != nil {
		// A draft slug rename collides with an existing slug at publish time.
		if strings.Contains(err.Error(), "duplicate key") {
			return domainError(409, "SLUG_EXISTS", "a document with this slug already exists", nil)
		}
		return err
	}
	s.source.InvalidateType(ctx, contentType)
	if contentType == content.TypeResource && s.search != nil {
		if raw, err := s.store.GetByID(ctx, typ, id); err == nil {
			doc := content.Normalize(contentType, raw)
			s.search.IndexResource(search.ResourceRecord{
				ID:       doc.ID,
				Slug:     doc.Slug,
				Title:    doc.Title,
				Excerpt:  doc.Excerpt,
				Category: doc.Category,
				Status:   string(content.StatusPublished),
			})
		}
	}
	return nil
}

func (s *Service) DeleteDocument(ctx context.Context, typ, id string) error {
	contentType := content.Type(typ)
	if !content.KnownType(contentType) {
		return domainError(422, "VALIDATION_ERROR", "unknown content type", map[string]any{"type": typ})
	}
	if err := s.store.DeleteDocument(ctx, typ, id); err != nil {
		return err
	}
	s.source.InvalidateType(ctx, contentType)
	if contentType == content.TypeResource && s.search != nil {
		s.search.DeleteResource(id)
	}
	return nil
}

// ── Bootstrap ──

// Bootstrap seeds demo content and a default admin operator when the
// database is empty.
func (s *Service) Bootstrap(ctx context.Context) error {
	count, err := s.store.CountDocuments(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	if err := s.seedOperator(ctx); err != nil {
		return err
	}

	for _, seed := range bootstrapSeeds() {
		record := store.DocumentRecord{
			ID:       util.NewID("doc"),
			Type:     seed.Type,
			Slug:     seed.Slug,
			Title:    seed.Title,
			Category: seed.Category,
			Payload:  seed.Payload,
		}
		if err := s.store.InsertDocument(ctx, record); err != nil {
			return err
		}
		if err := s.store.PublishDocument(ctx, record.Type, record.ID); err != nil {
			return err
		}
	}

	if s.search != nil {
		s.search.ReindexAllFromPG(ctx)
	}
	return nil
}

func (s *Service) seedOperator(ctx context.Context) error {
	hash, err := authpw.HashPassword("millwright-admin")
	if err != nil {
		return err
	}
	return s.store.InsertOperator(ctx, store.Operator{
		ID:           util.NewID("op"),
		Email:        "admin@millwrightprecision.com",
		DisplayName:  "Site Admin",
		PasswordHash: hash,
		Role:         string(rbac.RoleAdmin),
	})
}

type seedDocument struct {
	Type     string
	Slug     string
	Title    string
	Category string
	Payload  map[string]any
}

func richText(paragraphs ...string) map[string]any {
	blocks := make([]any, 0, len(paragraphs))
	for _, p := range paragraphs {
		blocks = append(blocks, map[string]any{"type": "paragraph", "text": p})
	}
	return map[string]any{"blocks": blocks}
}

func bootstrapSeeds() []seedDocument {
	return []seedDocument{
		{
			Type: "settings", Slug: "settings", Title: "Millwright Precision",
			Payload: map[string]any{
				"siteTitle":       "Millwright Precision",
				"siteDescription": "Precision machining and fabrication for regulated industries.",
				"contactEmail":    "quotes@millwrightprecision.com",
				"phone":           "+1 (555) 014-2200",
				"address":         "418 Foundry Road, Erie, PA",
			},
		},
		{
			Type: "navigation", Slug: "navigation", Title: "Main Navigation",
			Payload: map[string]any{
				"items": []any{
					map[string]any{"label": "Home", "path": "/"},
					map[string]any{"label": "Services", "path": "/services"},
					map[string]any{"label": "Industries", "path": "/industries"},
					map[string]any{"label": "Resources", "path": "/resources"},
					map[string]any{"label": "About", "path": "/about"},
					map[string]any{"label": "Contact", "path": "/contact"},
				},
			},
		},
		{
			Type: "footer", Slug: "footer", Title: "Footer",
			Payload: map[string]any{
				"tagline": "Tight tolerances. On-time delivery.",
				"columns": []any{
					map[string]any{
						"heading": "Capabilities",
						"links": []any{
							map[string]any{"label": "CNC Machining", "path": "/services/cnc-machining"},
							map[string]any{"label": "Welding & Fabrication", "path": "/services/welding-fabrication"},
						},
					},
					map[string]any{
						"heading": "Company",
						"links": []any{
							map[string]any{"label": "About", "path": "/about"},
							map[string]any{"label": "Contact", "path": "/contact"},
						},
					},
				},
				"legal": "© Millwright Precision. All rights reserved.",
			},
		},
		{
			Type: "page", Slug: "home", Title: "Precision Machining Partners",
			Payload: map[string]any{
				"excerpt": "CNC machining, fabrication, and finishing under one roof.",
				"body": richText(
					"Millwright Precision delivers machined components for aerospace, energy, and medical programs.",
					"ISO 9001 and AS9100 certified, with in-house inspection on every order.",
				),
			},
		},
		{
			Type: "page", Slug: "about", Title: "About Millwright Precision",
			Payload: map[string]any{
				"excerpt": "Three decades of contract manufacturing in Erie, Pennsylvania.",
				"body": richText(
					"Founded in 1993, Millwright Precision has grown from a two-machine job shop into a 40,000 square foot contract manufacturer.",
				),
			},
		},
		{
			Type: "page", Slug: "contact", Title: "Contact Us",
			Payload: map[string]any{
				"excerpt": "Request a quote or talk to an engineer.",
				"body":    richText("Send prints to quotes@millwrightprecision.com or call +1 (555) 014-2200."),
			},
		},
		{
			Type: "service", Slug: "cnc-machining", Title: "CNC Machining",
			Payload: map[string]any{
				"excerpt":  "3, 4, and 5-axis milling and turning to ±0.0002\" tolerances.",
				"body":     richText("Our machining cell runs 24/5 across twelve CNC centers, with lights-out turning for production volumes."),
				"features": []any{"5-axis simultaneous milling", "Live-tool turning", "Lights-out production"},
				"specs":    []any{"Envelope 60\" x 30\" x 30\"", "Tolerance ±0.0002\"", "Materials: aluminum, titanium, Inconel"},
			},
		},
		{
			Type: "service", Slug: "welding-fabrication", Title: "Welding & Fabrication",
			Payload: map[string]any{
				"excerpt":  "AWS-certified TIG and MIG welding for structural and pressure applications.",
				"body":     richText("Certified welders and fixtured assembly keep distortion in check on weldments up to two tons."),
				"features": []any{"AWS D1.1 certified", "Pressure vessel code work", "In-house stress relief"},
			},
		},
		{
			Type: "service", Slug: "precision-grinding", Title: "Precision Grinding",
			Payload: map[string]any{
				"excerpt": "Surface and cylindrical grinding to sub-micron finishes.",
				"body":    richText("Climate-controlled grinding room with in-process gauging for bearing journals and sealing faces."),
			},
		},
		{
			Type: "industry", Slug: "aerospace", Title: "Aerospace",
			Payload: map[string]any{
				"excerpt": "Flight hardware machined under AS9100 with full traceability.",
				"body":    richText("Structural fittings, actuation components, and ground support tooling for tier-one suppliers."),
			},
		},
		{
			Type: "industry", Slug: "energy", Title: "Energy",
			Payload: map[string]any{
				"excerpt": "Components for turbines, compressors, and downhole tooling.",
				"body":    richText("High-nickel alloys and overlay welding for hot-section and corrosive service."),
			},
		},
		{
			Type: "resource", Slug: "tolerance-stackup-basics", Title: "Tolerance Stack-Up Basics", Category: "guides",
			Payload: map[string]any{
				"excerpt":  "How to budget tolerances across an assembly without over-constraining your prints.",
				"category": "guides",
				"body":     richText("Worst-case stack analysis is the place to start for assemblies under ten parts."),
			},
		},
		{
			Type: "resource", Slug: "choosing-surface-finishes", Title: "Choosing Surface Finishes", Category: "guides",
			Payload: map[string]any{
				"excerpt":  "Ra targets, measurement methods, and what they cost.",
				"category": "guides",
				"body":     richText("A 32 Ra finish comes off the mill; an 8 Ra finish means grinding and a second setup."),
			},
		},
		{
			Type: "resource", Slug: "turbine-seal-ring-case-study", Title: "Turbine Seal Ring Case Study", Category: "case-studies",
			Payload: map[string]any{
				"excerpt":  "Cutting lead time from twelve weeks to four on an Inconel seal ring.",
				"category": "case-studies",
				"body":     richText("Switching from wire EDM to hard turning removed two vendor handoffs."),
			},
		},
		{
			Type: "team-member", Slug: "rosa-delgado", Title: "Rosa Delgado",
			Payload: map[string]any{
				"excerpt": "General Manager",
				"body":    richText("Rosa has led the shop floor since 2011 and owns our on-time delivery record."),
			},
		},
		{
			Type: "team-member", Slug: "pete-kowalski", Title: "Pete Kowalski",
			Payload: map[string]any{
				"excerpt": "Head of Quality",
				"body":    richText("Pete built our AS9100 quality system and runs the CMM lab."),
			},
		},
	}
}
