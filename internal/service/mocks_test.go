package service

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/kaikaijiang/Instant-RAG/internal/domain"
	"github.com/kaikaijiang/Instant-RAG/internal/llm"
	"github.com/kaikaijiang/Instant-RAG/internal/pagination"
	"github.com/kaikaijiang/Instant-RAG/internal/segment"
)

// MockProjectStore is a mock implementation of ProjectStore
type MockProjectStore struct {
	mock.Mock
}

func (m *MockProjectStore) Create(ctx context.Context, p *domain.Project) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockProjectStore) GetByID(ctx context.Context, id string) (*domain.Project, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Project), args.Error(1)
}

func (m *MockProjectStore) List(ctx context.Context) ([]*domain.Project, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Project), args.Error(1)
}

func (m *MockProjectStore) ListPage(ctx context.Context, cursor *pagination.Cursor, limit int) ([]*domain.Project, error) {
	args := m.Called(ctx, cursor, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Project), args.Error(1)
}

func (m *MockProjectStore) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockDocumentStore is a mock implementation of DocumentStore
type MockDocumentStore struct {
	mock.Mock
}

func (m *MockDocumentStore) Create(ctx context.Context, d *domain.Document) error {
	args := m.Called(ctx, d)
	return args.Error(0)
}

func (m *MockDocumentStore) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentStore) ListByProject(ctx context.Context, projectID string) ([]*domain.Document, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Document), args.Error(1)
}

func (m *MockDocumentStore) FindByName(ctx context.Context, projectID, name string) (*domain.Document, error) {
	args := m.Called(ctx, projectID, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentStore) UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockDocumentStore) UpdatePageCount(ctx context.Context, id string, pageCount int) error {
	args := m.Called(ctx, id, pageCount)
	return args.Error(0)
}

func (m *MockDocumentStore) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockDocumentStore) MarkStaleProcessing(ctx context.Context, maxAge time.Duration) (int64, error) {
	args := m.Called(ctx, maxAge)
	return args.Get(0).(int64), args.Error(1)
}

// MockChunkStore is a mock implementation of ChunkStore
type MockChunkStore struct {
	mock.Mock
}

func (m *MockChunkStore) Insert(ctx context.Context, c *domain.Chunk) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *MockChunkStore) QueryNearest(ctx context.Context, projectID string, vector []float32, k int) ([]*domain.Chunk, error) {
	args := m.Called(ctx, projectID, vector, k)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Chunk), args.Error(1)
}

func (m *MockChunkStore) QueryByPage(ctx context.Context, projectID string, docIDs []string, pages []int) ([]*domain.Chunk, error) {
	args := m.Called(ctx, projectID, docIDs, pages)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Chunk), args.Error(1)
}

func (m *MockChunkStore) QueryByChunkIDs(ctx context.Context, projectID string, chunkIDs []string) ([]*domain.Chunk, error) {
	args := m.Called(ctx, projectID, chunkIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Chunk), args.Error(1)
}

func (m *MockChunkStore) ListBySourceType(ctx context.Context, projectID string, sourceType domain.SourceType) ([]*domain.Chunk, error) {
	args := m.Called(ctx, projectID, sourceType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Chunk), args.Error(1)
}

func (m *MockChunkStore) CountByProject(ctx context.Context, projectID string) (int64, error) {
	args := m.Called(ctx, projectID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockChunkStore) DeleteByDocument(ctx context.Context, documentID string) error {
	args := m.Called(ctx, documentID)
	return args.Error(0)
}

// MockChatStore is a mock implementation of ChatStore
type MockChatStore struct {
	mock.Mock
}

func (m *MockChatStore) Create(ctx context.Context, msg *domain.ChatMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockChatStore) ListByProject(ctx context.Context, projectID string) ([]*domain.ChatMessage, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.ChatMessage), args.Error(1)
}

func (m *MockChatStore) ListRecent(ctx context.Context, projectID string, limit int) ([]*domain.ChatMessage, error) {
	args := m.Called(ctx, projectID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.ChatMessage), args.Error(1)
}

func (m *MockChatStore) DeleteByProject(ctx context.Context, projectID string) error {
	args := m.Called(ctx, projectID)
	return args.Error(0)
}

// MockEmailSettingsStore is a mock implementation of EmailSettingsStore
type MockEmailSettingsStore struct {
	mock.Mock
}

func (m *MockEmailSettingsStore) Upsert(ctx context.Context, s *domain.EmailSettings) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *MockEmailSettingsStore) GetByProject(ctx context.Context, projectID string) (*domain.EmailSettings, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.EmailSettings), args.Error(1)
}

func (m *MockEmailSettingsStore) Delete(ctx context.Context, projectID string) error {
	args := m.Called(ctx, projectID)
	return args.Error(0)
}

// MockEmbedder is a mock implementation of Embedder
type MockEmbedder struct {
	mock.Mock
}

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

func (m *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

// MockSegmenter is a mock implementation of Segmenter
type MockSegmenter struct {
	mock.Mock
}

func (m *MockSegmenter) Segment(raw []byte, name, declaredMime string) ([]segment.Piece, int, error) {
	args := m.Called(raw, name, declaredMime)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]segment.Piece), args.Int(1), args.Error(2)
}

// MockPageFetcher is a mock implementation of PageFetcher
type MockPageFetcher struct {
	mock.Mock
}

func (m *MockPageFetcher) Fetch(ctx context.Context, rawURL string) ([]segment.Piece, string, string, error) {
	args := m.Called(ctx, rawURL)
	if args.Get(0) == nil {
		return nil, args.String(1), args.String(2), args.Error(3)
	}
	return args.Get(0).([]segment.Piece), args.String(1), args.String(2), args.Error(3)
}

// MockMailSource is a mock implementation of MailSource
type MockMailSource struct {
	mock.Mock
}

func (m *MockMailSource) FetchMessages(ctx context.Context, settings *domain.EmailSettings, password string) ([]domain.MailMessage, error) {
	args := m.Called(ctx, settings, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.MailMessage), args.Error(1)
}

// MockSecretSealer is a mock implementation of SecretSealer
type MockSecretSealer struct {
	mock.Mock
}

func (m *MockSecretSealer) Seal(plaintext string) (string, string, error) {
	args := m.Called(plaintext)
	return args.String(0), args.String(1), args.Error(2)
}

func (m *MockSecretSealer) Open(sealed, salt string) (string, error) {
	args := m.Called(sealed, salt)
	return args.String(0), args.Error(1)
}

// MockArchiver is a mock implementation of Archiver
type MockArchiver struct {
	mock.Mock
}

func (m *MockArchiver) Store(ctx context.Context, key string, data []byte, contentType string) error {
	args := m.Called(ctx, key, data, contentType)
	return args.Error(0)
}

// MockLLMClient is a mock implementation of llm.Client
type MockLLMClient struct {
	mock.Mock
}

func (m *MockLLMClient) Complete(ctx context.Context, messages []llm.Message, params llm.Params) (string, error) {
	args := m.Called(ctx, messages, params)
	return args.String(0), args.Error(1)
}

// MockTxRunner runs the transaction callback directly against the given
// stores, recording whether a transaction was opened.
type MockTxRunner struct {
	documents DocumentStore
	chunks    ChunkStore
	calls     int
	failWith  error
}

func NewMockTxRunner(documents DocumentStore, chunks ChunkStore) *MockTxRunner {
	return &MockTxRunner{documents: documents, chunks: chunks}
}

func (m *MockTxRunner) WithTx(ctx context.Context, fn func(repos TxRepositories) error) error {
	m.calls++
	if m.failWith != nil {
		return m.failWith
	}
	return fn(m)
}

func (m *MockTxRunner) Documents() DocumentStore { return m.documents }
func (m *MockTxRunner) Chunks() ChunkStore       { return m.chunks }

// MockUUIDGen returns a fixed sequence of ids.
type MockUUIDGen struct {
	uuids []string
	index int
}

func NewMockUUIDGen(uuids ...string) *MockUUIDGen {
	return &MockUUIDGen{uuids: uuids}
}

func (m *MockUUIDGen) NewString() string {
	if m.index >= len(m.uuids) {
		return "default-uuid"
	}
	id := m.uuids[m.index]
	m.index++
	return id
}
