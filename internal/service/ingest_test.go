package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kaikaijiang/Instant-RAG/internal/domain"
	"github.com/kaikaijiang/Instant-RAG/internal/segment"
)

func intPtr(n int) *int { return &n }

func vec(fill float32) []float32 {
	v := make([]float32, 384)
	for i := range v {
		v[i] = fill
	}
	return v
}

func newIngestFixture(uuids ...string) (*IngestService, *MockDocumentStore, *MockChunkStore, *MockSegmenter, *MockEmbedder, *MockPageFetcher, *MockTxRunner) {
	documents := new(MockDocumentStore)
	chunks := new(MockChunkStore)
	segmenter := new(MockSegmenter)
	embedder := new(MockEmbedder)
	fetcher := new(MockPageFetcher)
	tx := NewMockTxRunner(documents, chunks)

	svc := NewIngestServiceWithUUIDGen(documents, chunks, tx, segmenter, embedder, fetcher, nil, NewMockUUIDGen(uuids...))
	return svc, documents, chunks, segmenter, embedder, fetcher, tx
}

func TestIngestService_UploadFiles_Success(t *testing.T) {
	ctx := context.Background()
	svc, documents, chunks, segmenter, embedder, _, tx := newIngestFixture("doc-1", "chunk-row-1", "chunk-row-2")

	file := UploadFile{Name: "notes.md", MimeType: "text/markdown", Data: []byte("# Notes\n\nBody text.")}

	pieces := []segment.Piece{
		{ChunkID: "notes_c0", Text: "# Notes", DocName: "notes.md", SourceType: domain.SourceTypeMarkdown},
		{ChunkID: "notes_c1", Text: "Body text.", DocName: "notes.md", SourceType: domain.SourceTypeMarkdown},
	}

	documents.On("Create", ctx, mock.MatchedBy(func(d *domain.Document) bool {
		return d.ID == "doc-1" && d.Status == domain.DocumentStatusPending
	})).Return(nil)
	documents.On("UpdateStatus", ctx, "doc-1", domain.DocumentStatusProcessing).Return(nil)
	segmenter.On("Segment", file.Data, "notes.md", "text/markdown").Return(pieces, 1, nil)
	embedder.On("EmbedBatch", ctx, []string{"# Notes", "Body text."}).
		Return([][]float32{vec(0.1), vec(0.2)}, nil)
	chunks.On("Insert", ctx, mock.MatchedBy(func(c *domain.Chunk) bool {
		return c.DocumentID == "doc-1" && c.Embedding != nil
	})).Return(nil).Twice()
	documents.On("UpdatePageCount", ctx, "doc-1", 1).Return(nil)
	documents.On("UpdateStatus", ctx, "doc-1", domain.DocumentStatusCompleted).Return(nil)

	report, err := svc.UploadFiles(ctx, "proj-1", []UploadFile{file})

	require.NoError(t, err)
	require.Len(t, report.Processed, 1)
	assert.Empty(t, report.Failed)
	assert.Equal(t, domain.DocumentStatusCompleted, report.Processed[0].Status)
	assert.Equal(t, 1, tx.calls)
	documents.AssertExpectations(t)
	chunks.AssertExpectations(t)
}

func TestIngestService_UploadFiles_CorruptFileIsIsolated(t *testing.T) {
	ctx := context.Background()
	svc, documents, chunks, segmenter, embedder, _, _ := newIngestFixture("doc-bad", "doc-good", "row-1")

	bad := UploadFile{Name: "broken.pdf", MimeType: "application/pdf", Data: []byte{0x00}}
	good := UploadFile{Name: "fine.txt", MimeType: "text/plain", Data: []byte("fine text")}

	documents.On("Create", ctx, mock.Anything).Return(nil)
	documents.On("UpdateStatus", ctx, mock.Anything, domain.DocumentStatusProcessing).Return(nil)

	segmenter.On("Segment", bad.Data, "broken.pdf", "application/pdf").
		Return(nil, 0, errors.New("not a PDF"))
	documents.On("UpdateStatus", ctx, "doc-bad", domain.DocumentStatusError).Return(nil)

	segmenter.On("Segment", good.Data, "fine.txt", "text/plain").
		Return([]segment.Piece{{ChunkID: "fine_c0", Text: "fine text", DocName: "fine.txt", SourceType: domain.SourceTypeText}}, 1, nil)
	embedder.On("EmbedBatch", ctx, []string{"fine text"}).Return([][]float32{vec(0.3)}, nil)
	chunks.On("Insert", ctx, mock.Anything).Return(nil)
	documents.On("UpdatePageCount", ctx, "doc-good", 1).Return(nil)
	documents.On("UpdateStatus", ctx, "doc-good", domain.DocumentStatusCompleted).Return(nil)

	report, err := svc.UploadFiles(ctx, "proj-1", []UploadFile{bad, good})

	require.NoError(t, err)
	require.Len(t, report.Failed, 1)
	require.Len(t, report.Processed, 1)
	assert.Equal(t, "broken.pdf", report.Failed[0].Name)
	assert.Equal(t, "fine.txt", report.Processed[0].Name)
	documents.AssertCalled(t, "UpdateStatus", ctx, "doc-bad", domain.DocumentStatusError)
}

func TestIngestService_UploadFiles_EmbedFailureMarksError(t *testing.T) {
	ctx := context.Background()
	svc, documents, chunks, segmenter, embedder, _, _ := newIngestFixture("doc-1")

	file := UploadFile{Name: "a.txt", MimeType: "text/plain", Data: []byte("text")}

	documents.On("Create", ctx, mock.Anything).Return(nil)
	documents.On("UpdateStatus", ctx, "doc-1", domain.DocumentStatusProcessing).Return(nil)
	segmenter.On("Segment", file.Data, "a.txt", "text/plain").
		Return([]segment.Piece{{ChunkID: "a_c0", Text: "text", DocName: "a.txt", SourceType: domain.SourceTypeText}}, 1, nil)
	embedder.On("EmbedBatch", ctx, []string{"text"}).Return(nil, errors.New("backend down"))
	documents.On("UpdateStatus", ctx, "doc-1", domain.DocumentStatusError).Return(nil)

	report, err := svc.UploadFiles(ctx, "proj-1", []UploadFile{file})

	require.NoError(t, err)
	assert.Empty(t, report.Processed)
	require.Len(t, report.Failed, 1)
	chunks.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
	documents.AssertCalled(t, "UpdateStatus", ctx, "doc-1", domain.DocumentStatusError)
}

func TestIngestService_UploadFiles_ScreenshotPiecesSkipEmbedding(t *testing.T) {
	ctx := context.Background()
	svc, documents, chunks, segmenter, embedder, _, _ := newIngestFixture("doc-1")

	file := UploadFile{Name: "scan.pdf", MimeType: "application/pdf", Data: []byte("%PDF-")}
	pieces := []segment.Piece{
		{ChunkID: "scan_p1_c0", Text: "page one text", PageNumber: intPtr(1), DocName: "scan.pdf", SourceType: domain.SourceTypePDF},
		{
			ChunkID: "scan_p1_screenshot", Text: "[Screenshot of page 1]", PageNumber: intPtr(1),
			DocName: "scan.pdf", SourceType: domain.SourceTypePDF, IsScreenshot: true,
			Images: []domain.ChunkImage{{ID: "img1", Base64: "data:image/png;base64,AAA", MimeType: "image/png"}},
		},
	}

	documents.On("Create", ctx, mock.Anything).Return(nil)
	documents.On("UpdateStatus", ctx, "doc-1", domain.DocumentStatusProcessing).Return(nil)
	segmenter.On("Segment", file.Data, "scan.pdf", "application/pdf").Return(pieces, 1, nil)
	// Only the text piece reaches the embedder.
	embedder.On("EmbedBatch", ctx, []string{"page one text"}).Return([][]float32{vec(0.4)}, nil)
	chunks.On("Insert", ctx, mock.MatchedBy(func(c *domain.Chunk) bool {
		return c.ChunkID == "scan_p1_c0" && c.Embedding != nil
	})).Return(nil)
	chunks.On("Insert", ctx, mock.MatchedBy(func(c *domain.Chunk) bool {
		return c.ChunkID == "scan_p1_screenshot" && c.Embedding == nil && len(c.Images) == 1
	})).Return(nil)
	documents.On("UpdatePageCount", ctx, "doc-1", 1).Return(nil)
	documents.On("UpdateStatus", ctx, "doc-1", domain.DocumentStatusCompleted).Return(nil)

	report, err := svc.UploadFiles(ctx, "proj-1", []UploadFile{file})

	require.NoError(t, err)
	require.Len(t, report.Processed, 1)
	chunks.AssertExpectations(t)
	embedder.AssertExpectations(t)
}

func TestIngestService_IngestWebPage_Success(t *testing.T) {
	ctx := context.Background()
	svc, documents, chunks, _, embedder, fetcher, _ := newIngestFixture("doc-web")

	normalized := "https://example.com/article"
	pieces := []segment.Piece{
		{ChunkID: "https_example.com_article_c0", Text: "Article body.", DocName: normalized, SourceType: domain.SourceTypeWeb},
	}

	documents.On("FindByName", ctx, "proj-1", normalized).Return(nil, domain.ErrDocumentNotFound)
	fetcher.On("Fetch", ctx, "https://example.com/article").Return(pieces, "Article", normalized, nil)
	documents.On("Create", ctx, mock.MatchedBy(func(d *domain.Document) bool {
		return d.Name == normalized && d.SourceType == domain.SourceTypeWeb
	})).Return(nil)
	documents.On("UpdateStatus", ctx, "doc-web", domain.DocumentStatusProcessing).Return(nil)
	embedder.On("EmbedBatch", ctx, []string{"Article body."}).Return([][]float32{vec(0.5)}, nil)
	chunks.On("Insert", ctx, mock.Anything).Return(nil)
	documents.On("UpdatePageCount", ctx, "doc-web", 1).Return(nil)
	documents.On("UpdateStatus", ctx, "doc-web", domain.DocumentStatusCompleted).Return(nil)

	doc, err := svc.IngestWebPage(ctx, "proj-1", "https://example.com/article")

	require.NoError(t, err)
	assert.Equal(t, domain.DocumentStatusCompleted, doc.Status)
	assert.Equal(t, normalized, doc.Name)
}

func TestIngestService_IngestWebPage_DedupeReturnsExisting(t *testing.T) {
	ctx := context.Background()
	svc, documents, _, _, _, fetcher, _ := newIngestFixture()

	existing := &domain.Document{
		ID: "doc-old", ProjectID: "proj-1", Name: "https://example.com/page",
		Status: domain.DocumentStatusCompleted, SourceType: domain.SourceTypeWeb,
	}
	documents.On("FindByName", ctx, "proj-1", "https://example.com/page").Return(existing, nil)

	doc, err := svc.IngestWebPage(ctx, "proj-1", "http://example.com/page#section")

	require.NoError(t, err)
	assert.Same(t, existing, doc)
	fetcher.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
}

func TestIngestService_IngestWebPage_InvalidURL(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _, _, _, _ := newIngestFixture()

	doc, err := svc.IngestWebPage(ctx, "proj-1", "not a url")

	assert.Nil(t, doc)
	assert.Error(t, err)
}

func TestIngestService_DeleteDocument(t *testing.T) {
	ctx := context.Background()
	svc, documents, chunks, _, _, _, _ := newIngestFixture()

	chunks.On("DeleteByDocument", ctx, "doc-1").Return(nil)
	documents.On("Delete", ctx, "doc-1").Return(nil)

	assert.NoError(t, svc.DeleteDocument(ctx, "doc-1"))
	chunks.AssertExpectations(t)
	documents.AssertExpectations(t)
}

func TestIngestService_CommitFailureMarksError(t *testing.T) {
	ctx := context.Background()
	documents := new(MockDocumentStore)
	chunks := new(MockChunkStore)
	segmenter := new(MockSegmenter)
	embedder := new(MockEmbedder)
	tx := NewMockTxRunner(documents, chunks)
	tx.failWith = errors.New("serialization failure")

	svc := NewIngestServiceWithUUIDGen(documents, chunks, tx, segmenter, embedder, nil, nil, NewMockUUIDGen("doc-1"))

	file := UploadFile{Name: "a.txt", MimeType: "text/plain", Data: []byte("text")}

	documents.On("Create", ctx, mock.Anything).Return(nil)
	documents.On("UpdateStatus", ctx, "doc-1", domain.DocumentStatusProcessing).Return(nil)
	segmenter.On("Segment", file.Data, "a.txt", "text/plain").
		Return([]segment.Piece{{ChunkID: "a_c0", Text: "text", DocName: "a.txt", SourceType: domain.SourceTypeText}}, 1, nil)
	embedder.On("EmbedBatch", ctx, []string{"text"}).Return([][]float32{vec(0.6)}, nil)
	documents.On("UpdateStatus", ctx, "doc-1", domain.DocumentStatusError).Return(nil)

	report, err := svc.UploadFiles(ctx, "proj-1", []UploadFile{file})

	require.NoError(t, err)
	require.Len(t, report.Failed, 1)
	documents.AssertCalled(t, "UpdateStatus", ctx, "doc-1", domain.DocumentStatusError)
}
