package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/kaikaijiang/Instant-RAG/internal/domain"
)

// ChunkRepository persists the (vector, text, metadata) tuples of the chunk
// store. Embeddings are written but never read back; retrieval returns only
// text and metadata ranked by vector distance.
type ChunkRepository struct {
	db dbtx
}

func NewChunkRepository(pool *pgxpool.Pool) *ChunkRepository {
	return &ChunkRepository{db: pool}
}

func NewChunkRepositoryWithTx(tx dbtx) *ChunkRepository {
	return &ChunkRepository{db: tx}
}

func (r *ChunkRepository) Insert(ctx context.Context, c *domain.Chunk) error {
	if err := domain.ValidateChunk(c); err != nil {
		return err
	}

	var embedding any
	if len(c.Embedding) > 0 {
		embedding = pgvector.NewVector(c.Embedding)
	}

	var images any
	if len(c.Images) > 0 {
		encoded, err := json.Marshal(c.Images)
		if err != nil {
			return err
		}
		images = encoded
	}

	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO rag_chunks (id, project_id, document_id, chunk_id, chunk_text, embedding, page_number, doc_name, source_type, images, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		c.ID, c.ProjectID, c.DocumentID, c.ChunkID, c.Text, embedding, c.PageNumber, c.DocName, c.Type, images, createdAt,
	)
	return err
}

// QueryNearest returns the k chunks of the project with a non-null embedding,
// ranked by ascending cosine distance to the query vector.
func (r *ChunkRepository) QueryNearest(ctx context.Context, projectID string, vector []float32, k int) ([]*domain.Chunk, error) {
	if k <= 0 {
		k = 5
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, project_id, document_id, chunk_id, chunk_text, page_number, doc_name, source_type, images, created_at
		 FROM rag_chunks
		 WHERE project_id = $2 AND embedding IS NOT NULL
		 ORDER BY embedding <=> $1, id
		 LIMIT $3`,
		pgvector.NewVector(vector), projectID, k,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChunkRows(rows)
}

// QueryByPage returns the project's embedding-less chunks (page screenshots,
// image-only chunks) whose (document_id, page_number) matches any of the
// given pairs. This is the page-correlation read that pulls a screenshot in
// behind its page's text hits.
func (r *ChunkRepository) QueryByPage(ctx context.Context, projectID string, docIDs []string, pages []int) ([]*domain.Chunk, error) {
	if len(docIDs) == 0 || len(docIDs) != len(pages) {
		return nil, nil
	}

	rows, err := r.db.Query(ctx,
		`SELECT c.id, c.project_id, c.document_id, c.chunk_id, c.chunk_text, c.page_number, c.doc_name, c.source_type, c.images, c.created_at
		 FROM rag_chunks c
		 JOIN unnest($2::uuid[], $3::int[]) AS p(document_id, page_number)
		   ON c.document_id = p.document_id AND c.page_number = p.page_number
		 WHERE c.project_id = $1 AND c.embedding IS NULL
		 ORDER BY c.document_id, c.page_number, c.chunk_id`,
		projectID, docIDs, pages,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChunkRows(rows)
}

// QueryByChunkIDs returns chunks of the project matching the given chunk ids.
func (r *ChunkRepository) QueryByChunkIDs(ctx context.Context, projectID string, chunkIDs []string) ([]*domain.Chunk, error) {
	if len(chunkIDs) == 0 {
		return nil, nil
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, project_id, document_id, chunk_id, chunk_text, page_number, doc_name, source_type, images, created_at
		 FROM rag_chunks
		 WHERE project_id = $1 AND chunk_id = ANY($2)
		 ORDER BY chunk_id`,
		projectID, chunkIDs,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChunkRows(rows)
}

// ListBySourceType returns the project's chunks of one source type, oldest
// first. The email surface uses this to list summary chunks.
func (r *ChunkRepository) ListBySourceType(ctx context.Context, projectID string, sourceType domain.SourceType) ([]*domain.Chunk, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, project_id, document_id, chunk_id, chunk_text, page_number, doc_name, source_type, images, created_at
		 FROM rag_chunks
		 WHERE project_id = $1 AND source_type = $2
		 ORDER BY created_at`,
		projectID, sourceType,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChunkRows(rows)
}

func (r *ChunkRepository) CountByProject(ctx context.Context, projectID string) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM rag_chunks WHERE project_id = $1`,
		projectID,
	).Scan(&count)
	return count, err
}

func (r *ChunkRepository) DeleteByDocument(ctx context.Context, documentID string) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM rag_chunks WHERE document_id = $1`,
		documentID,
	)
	return err
}

func scanChunkRows(rows pgx.Rows) ([]*domain.Chunk, error) {
	var results []*domain.Chunk
	for rows.Next() {
		var c domain.Chunk
		var images []byte
		if err := rows.Scan(&c.ID, &c.ProjectID, &c.DocumentID, &c.ChunkID, &c.Text, &c.PageNumber, &c.DocName, &c.Type, &images, &c.CreatedAt); err != nil {
			return nil, err
		}
		if len(images) > 0 {
			if err := json.Unmarshal(images, &c.Images); err != nil {
				return nil, err
			}
		}
		results = append(results, &c)
	}
	return results, rows.Err()
}
