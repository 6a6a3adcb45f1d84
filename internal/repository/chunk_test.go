//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaikaijiang/Instant-RAG/internal/domain"
	"github.com/kaikaijiang/Instant-RAG/internal/testutil"
)

func setupProjectWithDocument(ctx context.Context, t *testing.T, projectRepo *ProjectRepository, documentRepo *DocumentRepository) (*domain.Project, *domain.Document) {
	project := &domain.Project{
		ID:        uuid.NewString(),
		Name:      "Test Project for Chunks",
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, projectRepo.Create(ctx, project))

	doc := domain.NewDocument(uuid.NewString(), project.ID, "report.pdf", "application/pdf", 1024, domain.SourceTypePDF)
	require.NoError(t, documentRepo.Create(ctx, doc))

	return project, doc
}

// testVector fills a 384-dim embedding with a constant so nearest-neighbor
// ordering in tests is deterministic.
func testVector(fill float32) []float32 {
	v := make([]float32, 384)
	for i := range v {
		v[i] = fill
	}
	return v
}

func intPtr(n int) *int { return &n }

func TestChunkRepository_InsertAndQueryNearest(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	projectRepo := NewProjectRepository(pool)
	documentRepo := NewDocumentRepository(pool)
	chunkRepo := NewChunkRepository(pool)

	project, doc := setupProjectWithDocument(ctx, t, projectRepo, documentRepo)

	near := &domain.Chunk{
		ID:         uuid.NewString(),
		ProjectID:  project.ID,
		DocumentID: doc.ID,
		ChunkID:    "report_p1_c0",
		Text:       "quarterly revenue grew",
		Embedding:  testVector(0.9),
		PageNumber: intPtr(1),
		DocName:    doc.Name,
		Type:       domain.SourceTypePDF,
		CreatedAt:  time.Now().UTC().Truncate(time.Microsecond),
	}
	far := &domain.Chunk{
		ID:         uuid.NewString(),
		ProjectID:  project.ID,
		DocumentID: doc.ID,
		ChunkID:    "report_p2_c0",
		Text:       "appendix and legal notes",
		Embedding:  testVector(-0.9),
		PageNumber: intPtr(2),
		DocName:    doc.Name,
		Type:       domain.SourceTypePDF,
		CreatedAt:  time.Now().UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, chunkRepo.Insert(ctx, near))
	require.NoError(t, chunkRepo.Insert(ctx, far))

	results, err := chunkRepo.QueryNearest(ctx, project.ID, testVector(1.0), 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "report_p1_c0", results[0].ChunkID)
	assert.Equal(t, "quarterly revenue grew", results[0].Text)
	require.NotNil(t, results[0].PageNumber)
	assert.Equal(t, 1, *results[0].PageNumber)
}

func TestChunkRepository_QueryNearest_SkipsImageChunks(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	projectRepo := NewProjectRepository(pool)
	documentRepo := NewDocumentRepository(pool)
	chunkRepo := NewChunkRepository(pool)

	project, doc := setupProjectWithDocument(ctx, t, projectRepo, documentRepo)

	// Screenshot chunks carry no embedding and must never come back from a
	// similarity query.
	screenshot := &domain.Chunk{
		ID:         uuid.NewString(),
		ProjectID:  project.ID,
		DocumentID: doc.ID,
		ChunkID:    "report_p1_screenshot",
		Text:       "[Page 1 screenshot]",
		PageNumber: intPtr(1),
		DocName:    doc.Name,
		Type:       domain.SourceTypePDF,
		Images: []domain.ChunkImage{
			{ID: "img-1", Base64: "data:image/png;base64,iVBORw0KGgo=", MimeType: "image/png"},
		},
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, chunkRepo.Insert(ctx, screenshot))

	results, err := chunkRepo.QueryNearest(ctx, project.ID, testVector(1.0), 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestChunkRepository_QueryByPage(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	projectRepo := NewProjectRepository(pool)
	documentRepo := NewDocumentRepository(pool)
	chunkRepo := NewChunkRepository(pool)

	project, doc := setupProjectWithDocument(ctx, t, projectRepo, documentRepo)

	screenshot := &domain.Chunk{
		ID:         uuid.NewString(),
		ProjectID:  project.ID,
		DocumentID: doc.ID,
		ChunkID:    "report_p3_screenshot",
		Text:       "[Page 3 screenshot]",
		PageNumber: intPtr(3),
		DocName:    doc.Name,
		Type:       domain.SourceTypePDF,
		Images: []domain.ChunkImage{
			{ID: "img-3", Base64: "data:image/png;base64,iVBORw0KGgo=", MimeType: "image/png"},
		},
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	otherPage := &domain.Chunk{
		ID:         uuid.NewString(),
		ProjectID:  project.ID,
		DocumentID: doc.ID,
		ChunkID:    "report_p4_screenshot",
		Text:       "[Page 4 screenshot]",
		PageNumber: intPtr(4),
		DocName:    doc.Name,
		Type:       domain.SourceTypePDF,
		CreatedAt:  time.Now().UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, chunkRepo.Insert(ctx, screenshot))
	require.NoError(t, chunkRepo.Insert(ctx, otherPage))

	results, err := chunkRepo.QueryByPage(ctx, project.ID, []string{doc.ID}, []int{3})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "report_p3_screenshot", results[0].ChunkID)
	require.Len(t, results[0].Images, 1)
	assert.Equal(t, "image/png", results[0].Images[0].MimeType)
}

func TestChunkRepository_ListBySourceType(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	projectRepo := NewProjectRepository(pool)
	documentRepo := NewDocumentRepository(pool)
	chunkRepo := NewChunkRepository(pool)

	project, doc := setupProjectWithDocument(ctx, t, projectRepo, documentRepo)

	email := &domain.Chunk{
		ID:         uuid.NewString(),
		ProjectID:  project.ID,
		DocumentID: doc.ID,
		ChunkID:    "email_42",
		Text:       "Email from bo@example.com",
		Embedding:  testVector(0.1),
		DocName:    "Q3 planning",
		Type:       domain.SourceTypeEmail,
		CreatedAt:  time.Now().UTC().Truncate(time.Microsecond),
	}
	pdf := &domain.Chunk{
		ID:         uuid.NewString(),
		ProjectID:  project.ID,
		DocumentID: doc.ID,
		ChunkID:    "report_p1_c0",
		Text:       "body text",
		Embedding:  testVector(0.2),
		PageNumber: intPtr(1),
		DocName:    doc.Name,
		Type:       domain.SourceTypePDF,
		CreatedAt:  time.Now().UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, chunkRepo.Insert(ctx, email))
	require.NoError(t, chunkRepo.Insert(ctx, pdf))

	results, err := chunkRepo.ListBySourceType(ctx, project.ID, domain.SourceTypeEmail)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "email_42", results[0].ChunkID)
	assert.Equal(t, "Q3 planning", results[0].DocName)
}

func TestChunkRepository_DeleteByDocument(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	projectRepo := NewProjectRepository(pool)
	documentRepo := NewDocumentRepository(pool)
	chunkRepo := NewChunkRepository(pool)

	project, doc := setupProjectWithDocument(ctx, t, projectRepo, documentRepo)

	chunk := &domain.Chunk{
		ID:         uuid.NewString(),
		ProjectID:  project.ID,
		DocumentID: doc.ID,
		ChunkID:    "report_p1_c0",
		Text:       "body text",
		Embedding:  testVector(0.2),
		PageNumber: intPtr(1),
		DocName:    doc.Name,
		Type:       domain.SourceTypePDF,
		CreatedAt:  time.Now().UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, chunkRepo.Insert(ctx, chunk))

	count, err := chunkRepo.CountByProject(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	require.NoError(t, chunkRepo.DeleteByDocument(ctx, doc.ID))

	count, err = chunkRepo.CountByProject(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}
