package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// The tsvector expression must match the one in the idx_documents_fts
// index definition or Postgres falls back to a sequential scan.
const ftsVector = `to_tsvector('english', title || ' ' || COALESCE(payload->>'excerpt', ''))`

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true. If Postgres is down the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search runs plainto_tsquery over published resources with ts_rank ordering
// and ts_headline snippets.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	tsQuery := "plainto_tsquery('english', $1)"
	args := []any{q.Text}

	where := fmt.Sprintf("type = 'resource' AND status = 'published' AND %s @@ %s", ftsVector, tsQuery)
	if q.Category != "" {
		where += " AND category = $2"
		args = append(args, q.Category)
	}

	countSQL := fmt.Sprintf("SELECT count(*) FROM documents WHERE %s", where)

	dataSQL := fmt.Sprintf(`
		SELECT id, slug, title, category,
			ts_headline('english', COALESCE(payload->>'excerpt', ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet
		FROM documents
		WHERE %s
		ORDER BY ts_rank(%s, %s) DESC, slug ASC
		LIMIT %d OFFSET %d`,
		tsQuery, where, ftsVector, tsQuery, limit, offset)

	ctx := context.Background()

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.Slug, &r.Title, &r.Category, &r.Snippet); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadAllRecords returns all resource records for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]ResourceRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, slug, title, category, status, COALESCE(payload->>'excerpt', '')
		FROM documents
		WHERE type = 'resource'
	`)
	if err != nil {
		return nil, fmt.Errorf("load resources: %w", err)
	}
	defer rows.Close()

	records := make([]ResourceRecord, 0)
	for rows.Next() {
		var rec ResourceRecord
		if err := rows.Scan(&rec.ID, &rec.Slug, &rec.Title, &rec.Category, &rec.Status, &rec.Excerpt); err != nil {
			return nil, fmt.Errorf("scan resource: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate resources: %w", err)
	}

	return records, nil
}
