package app

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"millwright/api/internal/assemble"
	"millwright/api/internal/auth"
	"millwright/api/internal/authpw"
	"millwright/api/internal/config"
	"millwright/api/internal/content"
	"millwright/api/internal/rbac"
	"millwright/api/internal/search"
	"millwright/api/internal/session"
	"millwright/api/internal/source"
	"millwright/api/internal/store"
)

type fakeDataStore struct {
	pingFn               func(context.Context) error
	countDocumentsFn     func(context.Context) (int, error)
	listCollectionFn     func(context.Context, string) ([]store.DocumentRecord, error)
	getByIDFn            func(context.Context, string, string) (map[string]any, error)
	insertDocumentFn     func(context.Context, store.DocumentRecord) error
	updateDocumentFn     func(context.Context, store.DocumentRecord) error
	publishDocumentFn    func(context.Context, string, string) error
	deleteDocumentFn     func(context.Context, string, string) error
	getOperatorByEmailFn func(context.Context, string) (store.Operator, error)
	getOperatorByIDFn    func(context.Context, string) (store.Operator, error)
	insertOperatorFn     func(context.Context, store.Operator) error
}

func (f *fakeDataStore) Ping(ctx context.Context) error {
	if f.pingFn != nil {
		return f.pingFn(ctx)
	}
	return nil
}
func (f *fakeDataStore) CountDocuments(ctx context.Context) (int, error) {
	if f.countDocumentsFn != nil {
		return f.countDocumentsFn(ctx)
	}
	return 0, nil
}
func (f *fakeDataStore) ListCollection(ctx context.Context, typ string) ([]store.DocumentRecord, error) {
	if f.listCollectionFn != nil {
		return f.listCollectionFn(ctx, typ)
	}
	return nil, nil
}
func (f *fakeDataStore) GetByID(ctx context.Context, typ, id string) (map[string]any, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, typ, id)
	}
	return nil, sql.ErrNoRows
}
func (f *fakeDataStore) InsertDocument(ctx context.Context, record store.DocumentRecord) error {
	if f.insertDocumentFn != nil {
		return f.insertDocumentFn(ctx, record)
	}
	return nil
}
func (f *fakeDataStore) UpdateDocument(ctx context.Context, record store.DocumentRecord) error {
	if f.updateDocumentFn != nil {
		return f.updateDocumentFn(ctx, record)
	}
	return nil
}
func (f *fakeDataStore) PublishDocument(ctx context.Context, typ, id string) error {
	if f.publishDocumentFn != nil {
		return f.publishDocumentFn(ctx, typ, id)
	}
	return nil
}
func (f *fakeDataStore) DeleteDocument(ctx context.Context, typ, id string) error {
	if f.deleteDocumentFn != nil {
		return f.deleteDocumentFn(ctx, typ, id)
	}
	return nil
}
func (f *fakeDataStore) GetOperatorByEmail(ctx context.Context, email string) (store.Operator, error) {
	if f.getOperatorByEmailFn != nil {
		return f.getOperatorByEmailFn(ctx, email)
	}
	return store.Operator{}, sql.ErrNoRows
}
func (f *fakeDataStore) GetOperatorByID(ctx context.Context, id string) (store.Operator, error) {
	if f.getOperatorByIDFn != nil {
		return f.getOperatorByIDFn(ctx, id)
	}
	return store.Operator{}, sql.ErrNoRows
}
func (f *fakeDataStore) InsertOperator(ctx context.Context, op store.Operator) error {
	if f.insertOperatorFn != nil {
		return f.insertOperatorFn(ctx, op)
	}
	return nil
}

type fakeContentSource struct {
	getBySlugFn   func(context.Context, content.Type, string, source.Options) (content.Document, bool)
	listFn        func(context.Context, content.Type, string, int, source.Options) []content.Document
	invalidated   []content.Type
	settingsValue content.Settings
}

func (f *fakeContentSource) GetBySlug(ctx context.Context, typ content.Type, slug string, opts source.Options) (content.Document, bool) {
	if f.getBySlugFn != nil {
		return f.getBySlugFn(ctx, typ, slug, opts)
	}
	return content.Document{}, false
}
func (f *fakeContentSource) List(ctx context.Context, typ content.Type, category string, limit int, opts source.Options) []content.Document {
	if f.listFn != nil {
		return f.listFn(ctx, typ, category, limit, opts)
	}
	return nil
}
func (f *fakeContentSource) Navigation(ctx context.Context, opts source.Options) content.Navigation {
	return content.Navigation{}
}
func (f *fakeContentSource) Footer(ctx context.Context, opts source.Options) content.Footer {
	return content.Footer{}
}
func (f *fakeContentSource) Settings(ctx context.Context, opts source.Options) content.Settings {
	if f.settingsValue != (content.Settings{}) {
		return f.settingsValue
	}
	return content.Settings{SiteTitle: "Millwright Precision", SiteDescription: "Precision machining."}
}
func (f *fakeContentSource) InvalidateType(ctx context.Context, typ content.Type) {
	f.invalidated = append(f.invalidated, typ)
}

type fakeSessionStore struct {
	sessions map[string]session.Session
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: map[string]session.Session{}}
}

func (f *fakeSessionStore) SaveRefreshSession(ctx context.Context, tokenHash string, sess session.Session, expiresAt time.Time) error {
	f.sessions[tokenHash] = sess
	return nil
}
func (f *fakeSessionStore) LookupRefreshSession(ctx context.Context, tokenHash string) (session.Session, error) {
	sess, ok := f.sessions[tokenHash]
	if !ok {
		return session.Session{}, errors.New("session not found")
	}
	return sess, nil
}
func (f *fakeSessionStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	delete(f.sessions, tokenHash)
	return nil
}

type fakeSearchService struct {
	searchFn  func(search.Query) search.Response
	indexed   []search.ResourceRecord
	reindexed int
	deleted   []string
	healthy   bool
}

func (f *fakeSearchService) Search(q search.Query) search.Response {
	if f.searchFn != nil {
		return f.searchFn(q)
	}
	return search.Response{Results: []search.Result{}, Query: q.Text}
}
func (f *fakeSearchService) IndexResource(rec search.ResourceRecord) {
	f.indexed = append(f.indexed, rec)
}
func (f *fakeSearchService) DeleteResource(id string)               { f.deleted = append(f.deleted, id) }
func (f *fakeSearchService) ReindexAllFromPG(ctx context.Context)   { f.reindexed++ }
func (f *fakeSearchService) Healthy() bool                          { return f.healthy }

func testConfig() config.Config {
	return config.Config{
		AuthSecret:   "test-secret",
		AccessTTL:    15 * time.Minute,
		RefreshTTL:   30 * 24 * time.Hour,
		RelatedLimit: 3,
	}
}

func newTestService(data *fakeDataStore, src *fakeContentSource) *Service {
	if data == nil {
		data = &fakeDataStore{}
	}
	if src == nil {
		src = &fakeContentSource{}
	}
	return &Service{
		cfg:       testConfig(),
		store:     data,
		source:    src,
		assembler: assemble.New(src, 3),
		passwords: authpw.NewService(data),
	}
}

func mustHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := authpw.HashPassword(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return hash
}

func TestLogin(t *testing.T) {
	hash := mustHash(t, "correct horse battery")
	data := &fakeDataStore{
		getOperatorByEmailFn: func(_ context.Context, email string) (store.Operator, error) {
			if email == "rosa@millwrightprecision.com" {
				return store.Operator{ID: "op_1", Email: email, Role: "admin", PasswordHash: hash}, nil
			}
			return store.Operator{}, sql.ErrNoRows
		},
	}
	svc := newTestService(data, nil)
	svc.sessions = newFakeSessionStore()

	sess, err := svc.Login(context.Background(), "rosa@millwrightprecision.com", "correct horse battery")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if sess.Token == "" || sess.RefreshToken == "" {
		t.Fatalf("expected access and refresh tokens, got %+v", sess)
	}
	if sess.Role != "admin" {
		t.Fatalf("expected admin role, got %q", sess.Role)
	}

	claims, err := auth.ParseToken([]byte("test-secret"), sess.Token)
	if err != nil {
		t.Fatalf("parse issued token: %v", err)
	}
	if claims.Sub != "op_1" || claims.Role != "admin" {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	_, err = svc.Login(context.Background(), "rosa@millwrightprecision.com", "wrong password")
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Status != 401 || domainErr.Code != "INVALID_CREDENTIALS" {
		t.Fatalf("expected 401 INVALID_CREDENTIALS, got %v", err)
	}

	_, err = svc.Login(context.Background(), "nobody@millwrightprecision.com", "correct horse battery")
	if !errors.As(err, &domainErr) || domainErr.Code != "INVALID_CREDENTIALS" {
		t.Fatalf("expected INVALID_CREDENTIALS for unknown email, got %v", err)
	}
}

func TestRefreshRotatesToken(t *testing.T) {
	data := &fakeDataStore{
		getOperatorByIDFn: func(_ context.Context, id string) (store.Operator, error) {
			return store.Operator{ID: id, Email: "rosa@millwrightprecision.com", Role: "editor"}, nil
		},
	}
	svc := newTestService(data, nil)
	sessions := newFakeSessionStore()
	svc.sessions = sessions

	first, err := svc.issueSession(context.Background(), store.Operator{ID: "op_1", Email: "rosa@millwrightprecision.com", Role: "editor"})
	if err != nil {
		t.Fatalf("issue session: %v", err)
	}

	second, err := svc.Refresh(context.Background(), first.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if second.RefreshToken == first.RefreshToken {
		t.Fatal("expected refresh token to rotate")
	}

	// The first token is single use.
	if _, err := svc.Refresh(context.Background(), first.RefreshToken); err == nil {
		t.Fatal("expected reused refresh token to be rejected")
	}
}

func TestRefreshPicksUpRoleChange(t *testing.T) {
	role := "editor"
	data := &fakeDataStore{
		getOperatorByIDFn: func(_ context.Context, id string) (store.Operator, error) {
			return store.Operator{ID: id, Email: "rosa@millwrightprecision.com", Role: role}, nil
		},
	}
	svc := newTestService(data, nil)
	svc.sessions = newFakeSessionStore()

	first, err := svc.issueSession(context.Background(), store.Operator{ID: "op_1", Email: "rosa@millwrightprecision.com", Role: "editor"})
	if err != nil {
		t.Fatalf("issue session: %v", err)
	}

	role = "viewer"
	second, err := svc.Refresh(context.Background(), first.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if second.Role != "viewer" {
		t.Fatalf("expected demoted role on rotation, got %q", second.Role)
	}
}

func TestCreateDocumentValidation(t *testing.T) {
	svc := newTestService(nil, nil)

	var domainErr *DomainError
	_, err := svc.CreateDocument(context.Background(), "blog-post", map[string]any{"title": "Hello"})
	if !errors.As(err, &domainErr) || domainErr.Status != 422 {
		t.Fatalf("expected 422 for unknown type, got %v", err)
	}

	_, err = svc.CreateDocument(context.Background(), "service", map[string]any{})
	if !errors.As(err, &domainErr) || domainErr.Status != 422 {
		t.Fatalf("expected 422 for missing slug, got %v", err)
	}
}

func TestCreateDocument(t *testing.T) {
	var inserted store.DocumentRecord
	data := &fakeDataStore{
		insertDocumentFn: func(_ context.Context, record store.DocumentRecord) error {
			inserted = record
			return nil
		},
	}
	src := &fakeContentSource{}
	svc := newTestService(data, src)

	record, err := svc.CreateDocument(context.Background(), "service", map[string]any{
		"title": "Heat Treating",
		"slug":  "heat-treating",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if record.Status != "draft" {
		t.Fatalf("expected new document to start as draft, got %q", record.Status)
	}
	if inserted.Slug != "heat-treating" || inserted.Type != "service" {
		t.Fatalf("unexpected inserted record: %+v", inserted)
	}
	if len(src.invalidated) != 1 || src.invalidated[0] != content.TypeService {
		t.Fatalf("expected service cache invalidation, got %v", src.invalidated)
	}
}

func TestCreateDocumentSingletonSlug(t *testing.T) {
	var inserted store.DocumentRecord
	data := &fakeDataStore{
		insertDocumentFn: func(_ context.Context, record store.DocumentRecord) error {
			inserted = record
			return nil
		},
	}
	svc := newTestService(data, nil)

	if _, err := svc.CreateDocument(context.Background(), "settings", map[string]any{"siteTitle": "X"}); err != nil {
		t.Fatalf("create singleton: %v", err)
	}
	if inserted.Slug != "settings" {
		t.Fatalf("expected singleton slug pinned to type, got %q", inserted.Slug)
	}
}

func TestCreateDocumentDuplicateSlug(t *testing.T) {
	data := &fakeDataStore{
		insertDocumentFn: func(context.Context, store.DocumentRecord) error {
			return errors.New(`pq: duplicate key value violates unique constraint "documents_type_slug_key"`)
		},
	}
	svc := newTestService(data, nil)

	_, err := svc.CreateDocument(context.Background(), "service", map[string]any{"title": "CNC", "slug": "cnc-machining"})
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Status != 409 || domainErr.Code != "SLUG_EXISTS" {
		t.Fatalf("expected 409 SLUG_EXISTS, got %v", err)
	}
}

func TestUpdateDocumentStoresDraftRevision(t *testing.T) {
	var updated store.DocumentRecord
	data := &fakeDataStore{
		updateDocumentFn: func(_ context.Context, record store.DocumentRecord) error {
			updated = record
			return nil
		},
	}
	svc := newTestService(data, nil)

	err := svc.UpdateDocument(context.Background(), "service", "doc_1", map[string]any{
		"title": "New Draft Title",
		"slug":  "new-slug",
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	// The revision carries its own identity so publish promotes exactly it.
	if updated.Payload["slug"] != "new-slug" {
		t.Fatalf("draft payload must carry the normalized slug, got %v", updated.Payload["slug"])
	}

	err = svc.UpdateDocument(context.Background(), "settings", "doc_2", map[string]any{
		"siteTitle": "Millwright Precision",
		"slug":      "anything",
	})
	if err != nil {
		t.Fatalf("update singleton: %v", err)
	}
	if updated.Payload["slug"] != "settings" {
		t.Fatalf("singleton draft slug must stay pinned to the type, got %v", updated.Payload["slug"])
	}
}

func TestPublishResourceIndexesRecord(t *testing.T) {
	data := &fakeDataStore{
		getByIDFn: func(_ context.Context, typ, id string) (map[string]any, error) {
			return map[string]any{
				"id":       id,
				"slug":     "tolerance-stackup-basics",
				"title":    "Tolerance Stack-Up Basics",
				"excerpt":  "Budgeting tolerances across an assembly.",
				"category": "guides",
				"status":   "published",
			}, nil
		},
	}
	searchSvc := &fakeSearchService{}
	svc := newTestService(data, nil)
	svc.search = searchSvc

	if err := svc.PublishDocument(context.Background(), "resource", "doc_1"); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(searchSvc.indexed) != 1 {
		t.Fatalf("expected one indexed record, got %d", len(searchSvc.indexed))
	}
	rec := searchSvc.indexed[0]
	if rec.ID != "doc_1" || rec.Slug != "tolerance-stackup-basics" || rec.Category != "guides" {
		t.Fatalf("unexpected indexed record: %+v", rec)
	}
	if rec.Status != "published" {
		t.Fatalf("indexed record must be published, got %q", rec.Status)
	}
	if searchSvc.reindexed != 0 {
		t.Fatal("publishing one resource must not trigger a full reindex")
	}

	if err := svc.PublishDocument(context.Background(), "page", "doc_2"); err != nil {
		t.Fatalf("publish page: %v", err)
	}
	if len(searchSvc.indexed) != 1 {
		t.Fatal("publishing a page must not index a resource")
	}
}

func TestPublishDuplicateSlug(t *testing.T) {
	data := &fakeDataStore{
		publishDocumentFn: func(context.Context, string, string) error {
			return errors.New(`pq: duplicate key value violates unique constraint "documents_type_slug_key"`)
		},
	}
	svc := newTestService(data, nil)

	err := svc.PublishDocument(context.Background(), "service", "doc_1")
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Status != 409 || domainErr.Code != "SLUG_EXISTS" {
		t.Fatalf("expected 409 SLUG_EXISTS, got %v", err)
	}
}

func TestDeleteResourceRemovesFromIndex(t *testing.T) {
	searchSvc := &fakeSearchService{}
	svc := newTestService(nil, nil)
	svc.search = searchSvc

	if err := svc.DeleteDocument(context.Background(), "resource", "doc_9"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(searchSvc.deleted) != 1 || searchSvc.deleted[0] != "doc_9" {
		t.Fatalf("expected doc_9 removed from index, got %v", searchSvc.deleted)
	}
}

func TestCan(t *testing.T) {
	svc := newTestService(nil, nil)

	if !svc.Can("admin", rbac.ActionPublish) {
		t.Fatal("admin should publish")
	}
	if svc.Can("editor", rbac.ActionPublish) {
		t.Fatal("editor should not publish")
	}
	if !svc.Can("editor", rbac.ActionWrite) {
		t.Fatal("editor should write")
	}
	if svc.Can("", rbac.ActionWrite) {
		t.Fatal("unknown role should fall back to viewer")
	}
}

func TestSearchWithoutBackend(t *testing.T) {
	svc := newTestService(nil, nil)
	resp := svc.Search(search.Query{Text: "anodizing"})
	if len(resp.Results) != 0 || resp.Query != "anodizing" {
		t.Fatalf("expected empty response, got %+v", resp)
	}
}

func TestBootstrapSkipsNonEmptyDatabase(t *testing.T) {
	inserts := 0
	data := &fakeDataStore{
		countDocumentsFn: func(context.Context) (int, error) { return 12, nil },
		insertDocumentFn: func(context.Context, store.DocumentRecord) error {
			inserts++
			return nil
		},
	}
	svc := newTestService(data, nil)

	if err := svc.Bootstrap(context.Background()); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if inserts != 0 {
		t.Fatalf("expected no seeding on a populated database, got %d inserts", inserts)
	}
}

func TestBootstrapSeeds(t *testing.T) {
	var (
		operators []store.Operator
		inserted  []store.DocumentRecord
		published []string
	)
	data := &fakeDataStore{
		insertOperatorFn: func(_ context.Context, op store.Operator) error {
			operators = append(operators, op)
			return nil
		},
		insertDocumentFn: func(_ context.Context, record store.DocumentRecord) error {
			inserted = append(inserted, record)
			return nil
		},
		publishDocumentFn: func(_ context.Context, typ, id string) error {
			published = append(published, id)
			return nil
		},
	}
	searchSvc := &fakeSearchService{}
	svc := newTestService(data, nil)
	svc.search = searchSvc

	if err := svc.Bootstrap(context.Background()); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	if len(operators) != 1 || operators[0].Role != "admin" {
		t.Fatalf("expected one admin operator, got %+v", operators)
	}
	if len(inserted) == 0 {
		t.Fatal("expected seed documents")
	}
	if len(published) != len(inserted) {
		t.Fatalf("every seed should be published, inserted=%d published=%d", len(inserted), len(published))
	}
	if searchSvc.reindexed != 1 {
		t.Fatalf("expected one reindex after seeding, got %d", searchSvc.reindexed)
	}

	types := map[string]bool{}
	for _, record := range inserted {
		types[record.Type] = true
	}
	for _, required := range []string{"settings", "navigation", "footer", "page", "service", "industry", "resource", "team-member"} {
		if !types[required] {
			t.Fatalf("seeds missing type %q", required)
		}
	}
}

func TestReady(t *testing.T) {
	t.Run("database down", func(t *testing.T) {
		data := &fakeDataStore{
			pingFn: func(context.Context) error { return errors.New("connection refused") },
		}
		svc := newTestService(data, nil)

		ready, checks := svc.Ready(context.Background())
		if ready {
			t.Fatal("expected not ready when the database is down")
		}
		if checks["database"].Status != "error" {
			t.Fatalf("expected database error check, got %+v", checks["database"])
		}
	})

	t.Run("search degraded does not gate", func(t *testing.T) {
		svc := newTestService(nil, nil)
		svc.search = &fakeSearchService{healthy: false}

		ready, checks := svc.Ready(context.Background())
		if !ready {
			t.Fatal("search health must not gate readiness")
		}
		if checks["search"].Status != "degraded" {
			t.Fatalf("expected degraded search, got %+v", checks["search"])
		}
		if checks["cache"].Status != "disabled" {
			t.Fatalf("expected disabled cache, got %+v", checks["cache"])
		}
	})
}
