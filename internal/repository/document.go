package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kaikaijiang/Instant-RAG/internal/domain"
)

type DocumentRepository struct {
	db dbtx
}

func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{db: pool}
}

func NewDocumentRepositoryWithTx(tx dbtx) *DocumentRepository {
	return &DocumentRepository{db: tx}
}

func (r *DocumentRepository) Create(ctx context.Context, d *domain.Document) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO documents (id, project_id, name, size_bytes, mime_type, source_type, status, page_count, uploaded_at, processed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		d.ID, d.ProjectID, d.Name, d.Size, nullableString(d.MimeType), d.SourceType, d.Status, d.PageCount, d.UploadedAt, d.ProcessedAt,
	)
	return err
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	var d domain.Document
	var mimeType *string
	err := r.db.QueryRow(ctx,
		`SELECT id, project_id, name, size_bytes, mime_type, source_type, status, page_count, uploaded_at, processed_at
		 FROM documents WHERE id = $1`,
		id,
	).Scan(&d.ID, &d.ProjectID, &d.Name, &d.Size, &mimeType, &d.SourceType, &d.Status, &d.PageCount, &d.UploadedAt, &d.ProcessedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, err
	}
	if mimeType != nil {
		d.MimeType = *mimeType
	}
	return &d, nil
}

func (r *DocumentRepository) ListByProject(ctx context.Context, projectID string) ([]*domain.Document, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, project_id, name, size_bytes, mime_type, source_type, status, page_count, uploaded_at, processed_at
		 FROM documents WHERE project_id = $1 ORDER BY uploaded_at DESC`,
		projectID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDocumentRows(rows)
}

// FindByName returns the project's document with the given name, or
// ErrDocumentNotFound. Used to deduplicate web re-ingestion by normalized URL.
func (r *DocumentRepository) FindByName(ctx context.Context, projectID, name string) (*domain.Document, error) {
	var d domain.Document
	var mimeType *string
	err := r.db.QueryRow(ctx,
		`SELECT id, project_id, name, size_bytes, mime_type, source_type, status, page_count, uploaded_at, processed_at
		 FROM documents WHERE project_id = $1 AND name = $2
		 ORDER BY uploaded_at DESC LIMIT 1`,
		projectID, name,
	).Scan(&d.ID, &d.ProjectID, &d.Name, &d.Size, &mimeType, &d.SourceType, &d.Status, &d.PageCount, &d.UploadedAt, &d.ProcessedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, err
	}
	if mimeType != nil {
		d.MimeType = *mimeType
	}
	return &d, nil
}

func (r *DocumentRepository) UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus) error {
	var processedAt *time.Time
	if status == domain.DocumentStatusCompleted || status == domain.DocumentStatusError {
		now := time.Now().UTC()
		processedAt = &now
	}

	cmdTag, err := r.db.Exec(ctx,
		`UPDATE documents SET status = $1, processed_at = COALESCE($2, processed_at) WHERE id = $3`,
		status, processedAt, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func (r *DocumentRepository) UpdatePageCount(ctx context.Context, id string, pageCount int) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE documents SET page_count = $1 WHERE id = $2`,
		pageCount, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx,
		`DELETE FROM documents WHERE id = $1`,
		id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

// MarkStaleProcessing flips documents stuck in processing longer than maxAge
// to error and returns how many were flipped. The janitor calls this on a
// schedule; a crash mid-ingestion otherwise leaves the document processing
// forever.
func (r *DocumentRepository) MarkStaleProcessing(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-maxAge)
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE documents SET status = $1, processed_at = $2
		 WHERE status = $3 AND uploaded_at < $4`,
		domain.DocumentStatusError, time.Now().UTC(), domain.DocumentStatusProcessing, cutoff,
	)
	if err != nil {
		return 0, err
	}
	return cmdTag.RowsAffected(), nil
}

func scanDocumentRows(rows pgx.Rows) ([]*domain.Document, error) {
	var results []*domain.Document
	for rows.Next() {
		var d domain.Document
		var mimeType *string
		if err := rows.Scan(&d.ID, &d.ProjectID, &d.Name, &d.Size, &mimeType, &d.SourceType, &d.Status, &d.PageCount, &d.UploadedAt, &d.ProcessedAt); err != nil {
			return nil, err
		}
		if mimeType != nil {
			d.MimeType = *mimeType
		}
		results = append(results, &d)
	}
	return results, rows.Err()
}
