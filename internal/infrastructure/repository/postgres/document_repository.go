package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/Beaudoin0zach/benefits-navigator-sub000/internal/core/domain"
	"github.com/Beaudoin0zach/benefits-navigator-sub000/internal/core/ports"
)

// DocumentRepository persists document lifecycle state. Extracted text never
// reaches this layer; extraction outcomes are stored as status plus length.
type DocumentRepository struct {
	db *sql.DB
}

var _ ports.DocumentRepository = (*DocumentRepository)(nil)

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

const documentsDDL = `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	filename TEXT NOT NULL,
	mime_type TEXT NOT NULL,
	storage_path TEXT NOT NULL,
	analysis_kind TEXT NOT NULL,
	status TEXT NOT NULL,
	extraction_status TEXT NOT NULL DEFAULT 'pending',
	extraction_length INTEGER NOT NULL DEFAULT 0,
	failure_reason TEXT,
	analysis JSONB,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);
CREATE INDEX IF NOT EXISTS idx_documents_created_at ON documents(created_at DESC);
`

func (r *DocumentRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082101)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	if _, err := tx.ExecContext(ctx, documentsDDL); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO documents (
	id, filename, mime_type, storage_path, analysis_kind, status, extraction_status, extraction_length, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
`,
		doc.ID, doc.Filename, doc.MimeType, doc.StoragePath, string(doc.AnalysisKind),
		string(doc.Status), string(doc.ExtractionStatus), doc.ExtractionLength, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, filename, mime_type, storage_path, analysis_kind, status, extraction_status, extraction_length, failure_reason, analysis, created_at, updated_at
FROM documents
WHERE id = $1
`, id)

	var (
		doc              domain.Document
		kind             string
		status           string
		extractionStatus string
		failureReason    sql.NullString
		analysisRaw      []byte
	)

	err := row.Scan(
		&doc.ID, &doc.Filename, &doc.MimeType, &doc.StoragePath, &kind, &status,
		&extractionStatus, &doc.ExtractionLength, &failureReason, &analysisRaw, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id %s", id))
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}

	doc.AnalysisKind = domain.AnalysisKind(kind)
	doc.Status = domain.DocumentStatus(status)
	doc.ExtractionStatus = domain.ExtractionStatus(extractionStatus)
	doc.FailureReason = domain.FailureReason(failureReason.String)

	if len(analysisRaw) > 0 {
		var analysis domain.AnalysisResult
		if err := json.Unmarshal(analysisRaw, &analysis); err != nil {
			return nil, fmt.Errorf("unmarshal analysis: %w", err)
		}
		doc.Analysis = &analysis
	}
	return &doc, nil
}

func (r *DocumentRepository) MarkExtracting(ctx context.Context, id string) error {
	return r.guardedExec(ctx, "mark extracting", id, `
UPDATE documents
SET status = $2, extraction_status = $3, updated_at = $4
WHERE id = $1 AND status NOT IN ('completed','failed')
`, id, string(domain.StatusExtracting), string(domain.ExtractionPending), time.Now().UTC())
}

func (r *DocumentRepository) MarkAnalyzing(ctx context.Context, id string) error {
	return r.guardedExec(ctx, "mark analyzing", id, `
UPDATE documents
SET status = $2, updated_at = $3
WHERE id = $1 AND status NOT IN ('completed','failed')
`, id, string(domain.StatusAnalyzing), time.Now().UTC())
}

func (r *DocumentRepository) RecordExtraction(ctx context.Context, id string, length int) error {
	return r.guardedExec(ctx, "record extraction", id, `
UPDATE documents
SET extraction_status = $2, extraction_length = $3, updated_at = $4
WHERE id = $1 AND status NOT IN ('completed','failed')
`, id, string(domain.ExtractionCompleted), length, time.Now().UTC())
}

func (r *DocumentRepository) RecordExtractionFailed(ctx context.Context, id string) error {
	return r.guardedExec(ctx, "record extraction failed", id, `
UPDATE documents
SET extraction_status = $2, updated_at = $3
WHERE id = $1 AND status NOT IN ('completed','failed')
`, id, string(domain.ExtractionFailed), time.Now().UTC())
}

func (r *DocumentRepository) SaveAnalysis(ctx context.Context, id string, analysis domain.AnalysisResult) error {
	analysisJSON, err := json.Marshal(analysis)
	if err != nil {
		return fmt.Errorf("marshal analysis: %w", err)
	}
	return r.guardedExec(ctx, "save analysis", id, `
UPDATE documents
SET analysis = $2, updated_at = $3
WHERE id = $1 AND status NOT IN ('completed','failed')
`, id, analysisJSON, time.Now().UTC())
}

func (r *DocumentRepository) MarkCompleted(ctx context.Context, id string) error {
	return r.guardedExec(ctx, "mark completed", id, `
UPDATE documents
SET status = $2, failure_reason = NULL, updated_at = $3
WHERE id = $1 AND status NOT IN ('completed','failed')
`, id, string(domain.StatusCompleted), time.Now().UTC())
}

func (r *DocumentRepository) MarkFailed(ctx context.Context, id string, reason domain.FailureReason) error {
	return r.guardedExec(ctx, "mark failed", id, `
UPDATE documents
SET status = $2, failure_reason = $3, updated_at = $4
WHERE id = $1 AND status NOT IN ('completed','failed')
`, id, string(domain.StatusFailed), string(reason), time.Now().UTC())
}

// guardedExec runs a lifecycle update that refuses to touch terminal
// documents, then explains a zero-row result as either a missing document or
// a terminal one.
func (r *DocumentRepository) guardedExec(ctx context.Context, operation, id, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", operation, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", operation, err)
	}
	if affected == 0 {
		return r.resolveZeroRows(ctx, operation, id)
	}
	return nil
}

func (r *DocumentRepository) resolveZeroRows(ctx context.Context, operation, id string) error {
	var status string
	err := r.db.QueryRowContext(ctx, `SELECT status FROM documents WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.WrapError(domain.ErrDocumentNotFound, operation, fmt.Errorf("id %s", id))
	}
	if err != nil {
		return fmt.Errorf("%s: resolve zero rows: %w", operation, err)
	}
	return domain.WrapError(domain.ErrTerminalState, operation, fmt.Errorf("document %s is %s", id, status))
}
