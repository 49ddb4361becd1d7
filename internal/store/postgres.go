package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// revisionExpr selects the revision a read should see. Draft reads layer the
// draft revision over the published payload and ignore status; published
// reads see only published payloads.
const (
	draftRevision     = `COALESCE(draft, payload)`
	publishedRevision = `payload`
)

// GetBySlug returns the raw document for (type, slug), or sql.ErrNoRows.
func (s *PostgresStore) GetBySlug(ctx context.Context, typ, slug string, draft bool) (map[string]any, error) {
	revision, statusFilter := readClauses(draft)
	query := fmt.Sprintf(`
		SELECT id, slug, status, title, category, %s, updated_at
		FROM documents
		WHERE type=$1 AND slug=$2%s
	`, revision, statusFilter)
	return s.scanRawDocument(s.db.QueryRowContext(ctx, query, typ, slug))
}

// GetByID returns the raw document for (type, id), draft revision included.
// Used by the admin read path, which always sees the latest revision.
func (s *PostgresStore) GetByID(ctx context.Context, typ, id string) (map[string]any, error) {
	query := `
		SELECT id, slug, status, title, category, COALESCE(draft, payload), updated_at
		FROM documents
		WHERE type=$1 AND id=$2
	`
	return s.scanRawDocument(s.db.QueryRowContext(ctx, query, typ, id))
}

// ListByType returns raw documents of a type, newest first, slug ascending
// on equal timestamps.
func (s *PostgresStore) ListByType(ctx context.Context, typ string, limit int, draft bool) ([]map[string]any, error) {
	revision, statusFilter := readClauses(draft)
	query := fmt.Sprintf(`
		SELECT id, slug, status, title, category, %s, updated_at
		FROM documents
		WHERE type=$1%s
		ORDER BY updated_at DESC, slug ASC
		LIMIT $2
	`, revision, statusFilter)
	return s.queryRawDocuments(ctx, query, typ, normalizeLimit(limit))
}

// ListByCategory returns raw documents of a type within a category, newest
// first, slug ascending on equal timestamps.
func (s *PostgresStore) ListByCategory(ctx context.Context, typ, category string, limit int, draft bool) ([]map[string]any, error) {
	revision, statusFilter := readClauses(draft)
	query := fmt.Sprintf(`
		SELECT id, slug, status, title, category, %s, updated_at
		FROM documents
		WHERE type=$1 AND category=$2%s
		ORDER BY updated_at DESC, slug ASC
		LIMIT $3
	`, revision, statusFilter)
	return s.queryRawDocuments(ctx, query, typ, category, normalizeLimit(limit))
}

// GetSingleton returns the raw singleton document for a type, or
// sql.ErrNoRows. Singletons are stored with slug equal to their type.
func (s *PostgresStore) GetSingleton(ctx context.Context, typ string, draft bool) (map[string]any, error) {
	revision := publishedRevision
	if draft {
		revision = draftRevision
	}
	query := fmt.Sprintf(`
		SELECT id, slug, status, title, category, %s, updated_at
		FROM documents
		WHERE type=$1 AND slug=$1
	`, revision)
	return s.scanRawDocument(s.db.QueryRowContext(ctx, query, typ))
}

// ListCollection returns every record of a type for the admin panel, drafts
// included.
func (s *PostgresStore) ListCollection(ctx context.Context, typ string) ([]DocumentRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, slug, status, title, category, payload, draft, updated_at
		FROM documents
		WHERE type=$1
		ORDER BY updated_at DESC, slug ASC
	`, typ)
	if err != nil {
		return nil, fmt.Errorf("list collection %s: %w", typ, err)
	}
	defer rows.Close()

	items := make([]DocumentRecord, 0)
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate collection %s: %w", typ, err)
	}
	return items, nil
}

// InsertDocument creates a new document. The payload is stored as the draft
// revision until the document is published.
func (s *PostgresStore) InsertDocument(ctx context.Context, record DocumentRecord) error {
	payload, err := json.Marshal(record.Payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (id, type, slug, status, title, category, payload, draft)
		VALUES ($1, $2, $3, 'draft', $4, $5, $6, $6)
	`, record.ID, record.Type, record.Slug, record.Title, record.Category, payload)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

// UpdateDocument stores a new draft revision. Only the draft column moves:
// the published payload and the indexed identity columns (slug, title,
// category) keep serving the published site until PublishDocument promotes
// the draft. The draft's own identity fields live inside its JSON.
func (s *PostgresStore) UpdateDocument(ctx context.Context, record DocumentRecord) error {
	draft, err := json.Marshal(record.Payload)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE documents
		SET draft=$3, updated_at=NOW()
		WHERE type=$1 AND id=$2
	`, record.Type, record.ID, draft)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	return requireRow(result)
}

// PublishDocument promotes the draft revision to the published payload and
// clears it, promoting the identity columns from the same revision so they
// mirror the published JSON. Publishing a document with no pending draft
// republishes the current payload, which keeps the operation idempotent.
// A draft that renames its slug into a taken one fails the (type, slug)
// unique constraint here, at publish time.
func (s *PostgresStore) PublishDocument(ctx context.Context, typ, id string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE documents
		SET payload=COALESCE(draft, payload),
			slug=COALESCE(NULLIF(COALESCE(draft, payload)->>'slug', ''), slug),
			title=COALESCE(NULLIF(COALESCE(draft, payload)->>'title', ''), title),
			category=COALESCE(COALESCE(draft, payload)->>'category', category),
			draft=NULL,
			status='published',
			updated_at=NOW()
		WHERE type=$1 AND id=$2
	`, typ, id)
	if err != nil {
		return fmt.Errorf("publish document: %w", err)
	}
	return requireRow(result)
}

// DeleteDocument removes a document.
func (s *PostgresStore) DeleteDocument(ctx context.Context, typ, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE type=$1 AND id=$2`, typ, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return requireRow(result)
}

// GetOperatorByEmail returns an admin operator account, or sql.ErrNoRows.
func (s *PostgresStore) GetOperatorByEmail(ctx context.Context, email string) (Operator, error) {
	var op Operator
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, display_name, password_hash, role, created_at
		FROM operators
		WHERE email=$1
	`, email).Scan(&op.ID, &op.Email, &op.DisplayName, &op.PasswordHash, &op.Role, &op.CreatedAt)
	if err != nil {
		return Operator{}, err
	}
	return op, nil
}

// GetOperatorByID returns an admin operator account, or sql.ErrNoRows.
func (s *PostgresStore) GetOperatorByID(ctx context.Context, id string) (Operator, error) {
	var op Operator
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, display_name, password_hash, role, created_at
		FROM operators
		WHERE id=$1
	`, id).Scan(&op.ID, &op.Email, &op.DisplayName, &op.PasswordHash, &op.Role, &op.CreatedAt)
	if err != nil {
		return Operator{}, err
	}
	return op, nil
}

// InsertOperator creates an admin operator account.
func (s *PostgresStore) InsertOperator(ctx context.Context, op Operator) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO operators (id, email, display_name, password_hash, role)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (email) DO NOTHING
	`, op.ID, op.Email, op.DisplayName, op.PasswordHash, op.Role)
	if err != nil {
		return fmt.Errorf("insert operator: %w", err)
	}
	return nil
}

// CountDocuments reports how many documents exist. Used to decide whether
// the bootstrap seed should run.
func (s *PostgresStore) CountDocuments(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM documents`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return count, nil
}

func readClauses(draft bool) (revision, statusFilter string) {
	if draft {
		return draftRevision, ""
	}
	return publishedRevision, " AND status='published'"
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 100
	}
	return limit
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanRawDocument decodes a revision row into the raw map shape the
// normalizer consumes. Title and category come from the revision JSON when
// it carries them, so a draft read sees the draft's own identity; the
// indexed columns only backfill documents whose payload omits them. Slug
// and status always come from the columns: the routing identity of a
// document is its published slug until a publish promotes the rename.
func (s *PostgresStore) scanRawDocument(row rowScanner) (map[string]any, error) {
	var (
		id, slug, status, title, category string
		payload                           []byte
		updatedAt                         time.Time
	)
	if err := row.Scan(&id, &slug, &status, &title, &category, &payload, &updatedAt); err != nil {
		return nil, err
	}

	raw := map[string]any{}
	if len(payload) > 0 {
		// A payload that fails to decode is not fatal: the indexed columns
		// still produce a minimal valid document.
		_ = json.Unmarshal(payload, &raw)
	}
	raw["id"] = id
	raw["slug"] = slug
	raw["status"] = status
	if _, ok := raw["title"]; !ok && title != "" {
		raw["title"] = title
	}
	if _, ok := raw["category"]; !ok && category != "" {
		raw["category"] = category
	}
	raw["updatedAt"] = updatedAt
	return raw, nil
}

func (s *PostgresStore) queryRawDocuments(ctx context.Context, query string, args ...any) ([]map[string]any, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	items := make([]map[string]any, 0)
	for rows.Next() {
		raw, err := s.scanRawDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		items = append(items, raw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return items, nil
}

func scanRecord(rows *sql.Rows) (DocumentRecord, error) {
	var (
		record         DocumentRecord
		payload, draft []byte
	)
	if err := rows.Scan(&record.ID, &record.Type, &record.Slug, &record.Status,
		&record.Title, &record.Category, &payload, &draft, &record.UpdatedAt); err != nil {
		return DocumentRecord{}, fmt.Errorf("scan record: %w", err)
	}
	if len(payload) > 0 {
		_ = json.Unmarshal(payload, &record.Payload)
	}
	if len(draft) > 0 {
		_ = json.Unmarshal(draft, &record.Draft)
	}
	return record, nil
}

func requireRow(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
