package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/kaikaijiang/Instant-RAG/internal/budget"
	"github.com/kaikaijiang/Instant-RAG/internal/domain"
	"github.com/kaikaijiang/Instant-RAG/internal/extract"
	"github.com/kaikaijiang/Instant-RAG/internal/llm"
	"github.com/kaikaijiang/Instant-RAG/internal/telemetry"
)

// NoDocumentsAnswer is returned without a model call when the project has no
// retrievable chunks.
const NoDocumentsAnswer = "I don't have any relevant information to answer your question. Please upload some documents first."

const systemPrompt = `You are a helpful assistant answering user questions based on retrieved context chunks from documents.

Each chunk ends with a citation marker in the format:
[CITATION::CHUNK_ID: <chunk_id>]

Some chunks may not be relevant to the user's question. You must decide whether to use the context or rely on your general knowledge.

Your task:
1. Analyze the user's question carefully.
2. Review the context chunks and determine if any are relevant to answering the question.
3. Answer using the relevant chunks, and list the chunk ids you used.
- Do NOT include raw [CITATION::CHUNK_ID: ...] markers in the reply_text.

Respond with a single JSON object of this exact shape:
{"reply_text": "Your full answer (formatted with newlines)", "citation": ["<chunk_id>", ...]}`

// ChatConfig tunes retrieval and the model call.
type ChatConfig struct {
	Model         string
	Temperature   float32
	MaxTokens     int
	TopP          float32
	TopK          int
	TopKChunks    int
	ContextBudget int
}

// ChatAnswer is the assembled response for one question.
type ChatAnswer struct {
	ReplyText string
	Citations []domain.Citation
	Images    []string
	DocNames  []string
}

// ChatService wires retrieval, the model call, answer extraction, and
// citation post-processing into one request cycle.
type ChatService struct {
	chunks   ChunkStore
	chats    ChatStore
	embedder Embedder
	model    llm.Client
	cfg      ChatConfig
	uuidGen  UUIDGenerator
}

func NewChatService(chunks ChunkStore, chats ChatStore, embedder Embedder, model llm.Client, cfg ChatConfig) *ChatService {
	if cfg.TopKChunks <= 0 {
		cfg.TopKChunks = 5
	}
	if cfg.ContextBudget <= 0 {
		cfg.ContextBudget = budget.DefaultMaxTokens
	}
	return &ChatService{
		chunks:   chunks,
		chats:    chats,
		embedder: embedder,
		model:    model,
		cfg:      cfg,
		uuidGen:  &DefaultUUIDGenerator{},
	}
}

// NewChatServiceWithUUIDGen creates a ChatService with a custom UUID
// generator (for testing).
func NewChatServiceWithUUIDGen(chunks ChunkStore, chats ChatStore, embedder Embedder, model llm.Client, cfg ChatConfig, uuidGen UUIDGenerator) *ChatService {
	s := NewChatService(chunks, chats, embedder, model, cfg)
	s.uuidGen = uuidGen
	return s
}

// Ask answers a question against the project's chunks and records both turns
// in the chat history. topK overrides the configured retrieval depth when
// positive.
func (s *ChatService) Ask(ctx context.Context, projectID, question string, topK int) (*ChatAnswer, error) {
	ctx, span := telemetry.StartSpan(ctx, "ChatService.Ask", telemetry.SpanAttributes{
		ProjectID: projectID,
		Operation: "ask",
	})
	defer span.End()

	if question == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "question must not be empty")
	}

	answer, err := s.answer(ctx, projectID, question, topK)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	s.record(ctx, projectID, domain.ChatRoleUser, question, nil, nil)
	s.record(ctx, projectID, domain.ChatRoleAssistant, answer.ReplyText, answer.Citations, answer.Images)

	return answer, nil
}

func (s *ChatService) answer(ctx context.Context, projectID, question string, topK int) (*ChatAnswer, error) {
	if topK <= 0 {
		topK = s.cfg.TopKChunks
	}

	vector, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}

	textChunks, err := s.chunks.QueryNearest(ctx, projectID, vector, topK)
	if err != nil {
		return nil, err
	}

	// Pull in the screenshot chunks sharing a page with any text hit. The
	// second read depends on the first's results. Pairs are deduplicated so
	// several hits on one page yield its screenshot once.
	type pagePair struct {
		docID string
		page  int
	}
	seen := make(map[pagePair]struct{})
	var docIDs []string
	var pages []int
	for _, c := range textChunks {
		if c.PageNumber == nil {
			continue
		}
		pair := pagePair{docID: c.DocumentID, page: *c.PageNumber}
		if _, ok := seen[pair]; ok {
			continue
		}
		seen[pair] = struct{}{}
		docIDs = append(docIDs, c.DocumentID)
		pages = append(pages, *c.PageNumber)
	}
	imageChunks, err := s.chunks.QueryByPage(ctx, projectID, docIDs, pages)
	if err != nil {
		return nil, err
	}

	if len(textChunks) == 0 && len(imageChunks) == 0 {
		return &ChatAnswer{ReplyText: NoDocumentsAnswer, Citations: []domain.Citation{}}, nil
	}

	citations := make([]domain.Citation, 0, len(textChunks)+len(imageChunks))
	entries := make([]budget.Entry, 0, len(textChunks))
	for _, c := range textChunks {
		citations = append(citations, domain.Citation{
			ChunkID:    c.ChunkID,
			DocName:    c.DocName,
			PageNumber: c.PageNumber,
			SourceType: c.Type,
		})
		entries = append(entries, budget.Entry{ChunkID: c.ChunkID, Text: c.Text})
	}

	var imageCitations []domain.Citation
	for _, c := range imageChunks {
		if len(c.Images) == 0 {
			continue
		}
		citation := domain.Citation{
			ChunkID:    c.ChunkID,
			DocName:    c.DocName,
			PageNumber: c.PageNumber,
			SourceType: c.Type,
			Images:     c.Images,
		}
		citations = append(citations, citation)
		imageCitations = append(imageCitations, citation)
	}

	contextText, used := budget.Build(entries, s.cfg.ContextBudget)
	log.Printf("chat: assembled context of ~%d tokens from %d text chunks", used, len(entries))

	prompt := systemPrompt + "\n\nContext:\n" + contextText +
		fmt.Sprintf("\n\nUser Question: %s\n\nRespond with a JSON object that fully matches the schema above.", question)

	raw, err := s.model.Complete(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, llm.Params{
		Model:       s.cfg.Model,
		Temperature: s.cfg.Temperature,
		MaxTokens:   s.cfg.MaxTokens,
		TopP:        s.cfg.TopP,
		TopK:        s.cfg.TopK,
	})
	if err != nil {
		return nil, fmt.Errorf("model call failed: %w", err)
	}

	parsed := extract.Extract(raw)
	if parsed == nil {
		// Degraded fallback: the raw output verbatim, no cited chunks.
		return &ChatAnswer{ReplyText: raw, Citations: citations}, nil
	}

	images, docNames := correlateCitations(parsed.Citations, citations, imageCitations)
	return &ChatAnswer{
		ReplyText: parsed.ReplyText,
		Citations: citations,
		Images:    images,
		DocNames:  docNames,
	}, nil
}

// History returns the project's chat history, oldest first. A positive limit
// returns only the most recent messages; zero returns everything.
func (s *ChatService) History(ctx context.Context, projectID string, limit int) ([]*domain.ChatMessage, error) {
	if limit > 0 {
		return s.chats.ListRecent(ctx, projectID, limit)
	}
	return s.chats.ListByProject(ctx, projectID)
}

// ClearHistory drops the project's chat history.
func (s *ChatService) ClearHistory(ctx context.Context, projectID string) error {
	return s.chats.DeleteByProject(ctx, projectID)
}

func (s *ChatService) record(ctx context.Context, projectID string, role domain.ChatRole, content string, citations []domain.Citation, images []string) {
	msg := &domain.ChatMessage{
		ID:        s.uuidGen.NewString(),
		ProjectID: projectID,
		Role:      role,
		Content:   content,
		Citations: citations,
		Images:    images,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.chats.Create(ctx, msg); err != nil {
		log.Printf("chat: failed to record %s message: %v", role, err)
	}
}

// correlateCitations maps the model's cited chunk ids back onto screenshot
// images and document names. The screenshot sibling of every cited chunk is
// derived by id, so the page image re-enters the answer even though the
// model never saw its chunk id.
func correlateCitations(citedIDs []string, citations, imageCitations []domain.Citation) (images, docNames []string) {
	idSeen := make(map[string]struct{})
	nameSeen := make(map[string]struct{})

	for _, cited := range citedIDs {
		derived := domain.ScreenshotChunkID(cited)
		if derived == "" {
			log.Printf("chat: unexpected citation format: %s", cited)
		} else if _, ok := idSeen[derived]; !ok {
			idSeen[derived] = struct{}{}
			for _, citation := range imageCitations {
				if citation.ChunkID == derived && len(citation.Images) > 0 {
					images = append(images, citation.Images[0].Base64)
					break
				}
			}
		}

		for _, citation := range citations {
			if citation.ChunkID != cited {
				continue
			}
			if _, ok := nameSeen[citation.DocName]; !ok {
				nameSeen[citation.DocName] = struct{}{}
				docNames = append(docNames, citation.DocName)
			}
		}
	}
	return images, docNames
}
