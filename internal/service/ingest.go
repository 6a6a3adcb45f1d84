package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/kaikaijiang/Instant-RAG/internal/domain"
	"github.com/kaikaijiang/Instant-RAG/internal/segment"
	"github.com/kaikaijiang/Instant-RAG/internal/telemetry"
)

// UploadFile is one file of an upload batch.
type UploadFile struct {
	Name     string
	MimeType string
	Data     []byte
}

// BatchReport collects per-file outcomes of one upload batch. A failed file
// never aborts the batch.
type BatchReport struct {
	Processed []*domain.Document
	Failed    []FailedFile
}

// FailedFile records a file that could not be ingested.
type FailedFile struct {
	Name  string
	Error string
}

// IngestService runs the ingestion pipeline: segment, embed in one batch,
// commit the document's chunk set atomically.
type IngestService struct {
	documents DocumentStore
	chunks    ChunkStore
	tx        TxRunner
	segmenter Segmenter
	embedder  Embedder
	fetcher   PageFetcher
	archiver  Archiver // nil disables raw-upload archiving
	uuidGen   UUIDGenerator
}

func NewIngestService(
	documents DocumentStore,
	chunks ChunkStore,
	tx TxRunner,
	segmenter Segmenter,
	embedder Embedder,
	fetcher PageFetcher,
	archiver Archiver,
) *IngestService {
	return &IngestService{
		documents: documents,
		chunks:    chunks,
		tx:        tx,
		segmenter: segmenter,
		embedder:  embedder,
		fetcher:   fetcher,
		archiver:  archiver,
		uuidGen:   &DefaultUUIDGenerator{},
	}
}

// NewIngestServiceWithUUIDGen creates an IngestService with a custom UUID
// generator (for testing).
func NewIngestServiceWithUUIDGen(
	documents DocumentStore,
	chunks ChunkStore,
	tx TxRunner,
	segmenter Segmenter,
	embedder Embedder,
	fetcher PageFetcher,
	archiver Archiver,
	uuidGen UUIDGenerator,
) *IngestService {
	s := NewIngestService(documents, chunks, tx, segmenter, embedder, fetcher, archiver)
	s.uuidGen = uuidGen
	return s
}

// UploadFiles ingests a batch of files sequentially. Files are isolated from
// each other: one corrupt file is reported and skipped, the rest proceed.
func (s *IngestService) UploadFiles(ctx context.Context, projectID string, files []UploadFile) (*BatchReport, error) {
	ctx, span := telemetry.StartSpan(ctx, "IngestService.UploadFiles", telemetry.SpanAttributes{
		ProjectID: projectID,
		Operation: "upload",
	})
	defer span.End()

	report := &BatchReport{}
	for _, file := range files {
		doc, err := s.ingestFile(ctx, projectID, file)
		if err != nil {
			log.Printf("ingest: file %s failed: %v", file.Name, err)
			telemetry.CaptureError(ctx, err)
			report.Failed = append(report.Failed, FailedFile{Name: file.Name, Error: err.Error()})
			continue
		}
		report.Processed = append(report.Processed, doc)
	}
	return report, nil
}

func (s *IngestService) ingestFile(ctx context.Context, projectID string, file UploadFile) (*domain.Document, error) {
	sourceType := segment.DetectSourceType(file.Name, file.MimeType)
	doc := domain.NewDocument(s.uuidGen.NewString(), projectID, file.Name, file.MimeType, int64(len(file.Data)), sourceType)

	if err := s.documents.Create(ctx, doc); err != nil {
		return nil, err
	}
	if err := s.documents.UpdateStatus(ctx, doc.ID, domain.DocumentStatusProcessing); err != nil {
		return nil, err
	}
	doc.Status = domain.DocumentStatusProcessing

	s.archive(ctx, projectID, doc.ID, file)

	pieces, pageCount, err := s.segmenter.Segment(file.Data, file.Name, file.MimeType)
	if err != nil {
		s.markError(ctx, doc.ID)
		return nil, err
	}

	if err := s.commitPieces(ctx, doc, pieces, pageCount); err != nil {
		s.markError(ctx, doc.ID)
		return nil, err
	}

	doc.Status = domain.DocumentStatusCompleted
	doc.PageCount = pageCount
	return doc, nil
}

// IngestWebPage fetches and ingests one web page. Re-ingesting a URL that
// normalizes to an already-completed document is a no-op returning the
// existing document.
func (s *IngestService) IngestWebPage(ctx context.Context, projectID, rawURL string) (*domain.Document, error) {
	ctx, span := telemetry.StartSpan(ctx, "IngestService.IngestWebPage", telemetry.SpanAttributes{
		ProjectID: projectID,
		Operation: "ingest_web",
	})
	defer span.End()

	normalized, err := segment.NormalizeURL(rawURL)
	if err != nil {
		return nil, err
	}

	existing, err := s.documents.FindByName(ctx, projectID, normalized)
	if err == nil && existing.Status == domain.DocumentStatusCompleted {
		return existing, nil
	}

	pieces, title, normalized, err := s.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	doc := domain.NewDocument(s.uuidGen.NewString(), projectID, normalized, "text/html", 0, domain.SourceTypeWeb)
	if err := s.documents.Create(ctx, doc); err != nil {
		return nil, err
	}
	if err := s.documents.UpdateStatus(ctx, doc.ID, domain.DocumentStatusProcessing); err != nil {
		return nil, err
	}

	log.Printf("ingest: fetched %q (%s), %d pieces", title, normalized, len(pieces))

	if err := s.commitPieces(ctx, doc, pieces, 1); err != nil {
		s.markError(ctx, doc.ID)
		span.SetError(err)
		return nil, err
	}

	doc.Status = domain.DocumentStatusCompleted
	doc.PageCount = 1
	return doc, nil
}

// DeleteDocument removes a document together with its chunks.
func (s *IngestService) DeleteDocument(ctx context.Context, documentID string) error {
	if err := s.chunks.DeleteByDocument(ctx, documentID); err != nil {
		return err
	}
	return s.documents.Delete(ctx, documentID)
}

func (s *IngestService) ListDocuments(ctx context.Context, projectID string) ([]*domain.Document, error) {
	return s.documents.ListByProject(ctx, projectID)
}

// commitPieces embeds every embeddable piece in one batched call, then writes
// the chunk set, page count, and completed status as a single transaction.
func (s *IngestService) commitPieces(ctx context.Context, doc *domain.Document, pieces []segment.Piece, pageCount int) error {
	chunks, err := s.buildChunks(ctx, doc, pieces)
	if err != nil {
		return err
	}

	return s.tx.WithTx(ctx, func(repos TxRepositories) error {
		for _, c := range chunks {
			if err := repos.Chunks().Insert(ctx, c); err != nil {
				return err
			}
		}
		if err := repos.Documents().UpdatePageCount(ctx, doc.ID, pageCount); err != nil {
			return err
		}
		return repos.Documents().UpdateStatus(ctx, doc.ID, domain.DocumentStatusCompleted)
	})
}

func (s *IngestService) buildChunks(ctx context.Context, doc *domain.Document, pieces []segment.Piece) ([]*domain.Chunk, error) {
	var texts []string
	var embeddable []int
	for i, piece := range pieces {
		if !piece.IsScreenshot {
			texts = append(texts, piece.Text)
			embeddable = append(embeddable, i)
		}
	}

	var vectors [][]float32
	if len(texts) > 0 {
		var err error
		vectors, err = s.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("failed to embed %s: %w", doc.Name, err)
		}
	}

	embeddingFor := make(map[int][]float32, len(embeddable))
	for pos, pieceIdx := range embeddable {
		embeddingFor[pieceIdx] = vectors[pos]
	}

	now := time.Now().UTC()
	chunks := make([]*domain.Chunk, 0, len(pieces))
	for i, piece := range pieces {
		chunks = append(chunks, &domain.Chunk{
			ID:         s.uuidGen.NewString(),
			ProjectID:  doc.ProjectID,
			DocumentID: doc.ID,
			ChunkID:    piece.ChunkID,
			Text:       piece.Text,
			Embedding:  embeddingFor[i],
			PageNumber: piece.PageNumber,
			DocName:    piece.DocName,
			Type:       piece.SourceType,
			Images:     piece.Images,
			CreatedAt:  now,
		})
	}
	return chunks, nil
}

// archive stores the raw upload in object storage; failures are logged, not
// fatal.
func (s *IngestService) archive(ctx context.Context, projectID, documentID string, file UploadFile) {
	if s.archiver == nil {
		return
	}
	key := fmt.Sprintf("uploads/%s/%s/%s", projectID, documentID, file.Name)
	if err := s.archiver.Store(ctx, key, file.Data, file.MimeType); err != nil {
		log.Printf("ingest: failed to archive %s: %v", file.Name, err)
	}
}

func (s *IngestService) markError(ctx context.Context, documentID string) {
	if err := s.documents.UpdateStatus(ctx, documentID, domain.DocumentStatusError); err != nil {
		log.Printf("ingest: failed to mark document %s as errored: %v", documentID, err)
	}
}
