package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/kaikaijiang/Instant-RAG/internal/domain"
	"github.com/kaikaijiang/Instant-RAG/internal/pagination"
	"github.com/kaikaijiang/Instant-RAG/internal/segment"
)

// ProjectStore defines the repository interface for project persistence
type ProjectStore interface {
	Create(ctx context.Context, p *domain.Project) error
	GetByID(ctx context.Context, id string) (*domain.Project, error)
	List(ctx context.Context) ([]*domain.Project, error)
	ListPage(ctx context.Context, cursor *pagination.Cursor, limit int) ([]*domain.Project, error)
	Delete(ctx context.Context, id string) error
}

// DocumentStore defines the repository interface for document persistence
type DocumentStore interface {
	Create(ctx context.Context, d *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	ListByProject(ctx context.Context, projectID string) ([]*domain.Document, error)
	FindByName(ctx context.Context, projectID, name string) (*domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus) error
	UpdatePageCount(ctx context.Context, id string, pageCount int) error
	Delete(ctx context.Context, id string) error
	MarkStaleProcessing(ctx context.Context, maxAge time.Duration) (int64, error)
}

// ChunkStore defines the repository interface for the chunk store
type ChunkStore interface {
	Insert(ctx context.Context, c *domain.Chunk) error
	QueryNearest(ctx context.Context, projectID string, vector []float32, k int) ([]*domain.Chunk, error)
	QueryByPage(ctx context.Context, projectID string, docIDs []string, pages []int) ([]*domain.Chunk, error)
	QueryByChunkIDs(ctx context.Context, projectID string, chunkIDs []string) ([]*domain.Chunk, error)
	ListBySourceType(ctx context.Context, projectID string, sourceType domain.SourceType) ([]*domain.Chunk, error)
	CountByProject(ctx context.Context, projectID string) (int64, error)
	DeleteByDocument(ctx context.Context, documentID string) error
}

// ChatStore defines the repository interface for chat history persistence
type ChatStore interface {
	Create(ctx context.Context, m *domain.ChatMessage) error
	ListByProject(ctx context.Context, projectID string) ([]*domain.ChatMessage, error)
	ListRecent(ctx context.Context, projectID string, limit int) ([]*domain.ChatMessage, error)
	DeleteByProject(ctx context.Context, projectID string) error
}

// EmailSettingsStore defines the repository interface for mail settings
type EmailSettingsStore interface {
	Upsert(ctx context.Context, s *domain.EmailSettings) error
	GetByProject(ctx context.Context, projectID string) (*domain.EmailSettings, error)
	Delete(ctx context.Context, projectID string) error
}

// TxRepositories provides transaction-bound repositories.
type TxRepositories interface {
	Documents() DocumentStore
	Chunks() ChunkStore
}

// TxRunner executes a function within a transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(repos TxRepositories) error) error
}

// Embedder produces normalized 384-dimension vectors.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Segmenter decomposes raw source bytes into pieces plus a page count.
type Segmenter interface {
	Segment(raw []byte, name, declaredMime string) ([]segment.Piece, int, error)
}

// PageFetcher downloads a web page and returns its pieces, title, and
// normalized URL.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]segment.Piece, string, string, error)
}

// MailSource produces decoded message records for a project's mail account.
// Protocol I/O lives behind this interface.
type MailSource interface {
	FetchMessages(ctx context.Context, settings *domain.EmailSettings, password string) ([]domain.MailMessage, error)
}

// SecretSealer encrypts mail passwords at rest.
type SecretSealer interface {
	Seal(plaintext string) (sealed, salt string, err error)
	Open(sealed, salt string) (string, error)
}

// Archiver keeps a copy of raw uploads in object storage. Optional; a nil
// archiver disables archiving.
type Archiver interface {
	Store(ctx context.Context, key string, data []byte, contentType string) error
}

// UUIDGenerator defines interface for UUID generation (for testing)
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

// NewString generates a new UUID string
func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}
