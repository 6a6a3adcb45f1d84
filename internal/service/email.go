package service

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/kaikaijiang/Instant-RAG/internal/domain"
	"github.com/kaikaijiang/Instant-RAG/internal/llm"
	"github.com/kaikaijiang/Instant-RAG/internal/segment"
	"github.com/kaikaijiang/Instant-RAG/internal/telemetry"
)

// emailCollectionName is the synthetic document every project's email chunks
// hang off.
const emailCollectionName = "Email Collection"

var (
	signatureRes = []*regexp.Regexp{
		regexp.MustCompile(`(?is)--\s*\n.*`),
		regexp.MustCompile(`(?is)Sent from my .*`),
		regexp.MustCompile(`(?is)Get Outlook for .*`),
		regexp.MustCompile(`(?is)________________________________.*`),
		regexp.MustCompile(`(?is)On .* wrote:.*`),
		regexp.MustCompile(`(?is)From:.*Sent:.*To:.*Subject:.*`),
	}
	disclaimerRes = []*regexp.Regexp{
		regexp.MustCompile(`(?is)CONFIDENTIALITY NOTICE:.*`),
		regexp.MustCompile(`(?is)This email and any files.*`),
		regexp.MustCompile(`(?is)This message is confidential.*`),
		regexp.MustCompile(`(?is)The information contained in this.*`),
		regexp.MustCompile(`(?is)DISCLAIMER:.*`),
	}
	blankRunRe = regexp.MustCompile(`\n\s*\n\s*\n+`)
	htmlTagRe  = regexp.MustCompile(`<[^>]+>`)
	urlRe      = regexp.MustCompile(`https?://\S+`)
	spaceRunRe = regexp.MustCompile(` +`)
)

// CleanEmailBody strips signature blocks, disclaimers, HTML tags, and URLs
// from a raw message body.
func CleanEmailBody(body string) string {
	if body == "" {
		return ""
	}

	cleaned := body
	for _, re := range signatureRes {
		cleaned = re.ReplaceAllString(cleaned, "")
	}
	cleaned = blankRunRe.ReplaceAllString(cleaned, "\n\n")
	for _, re := range disclaimerRes {
		cleaned = re.ReplaceAllString(cleaned, "")
	}
	cleaned = htmlTagRe.ReplaceAllString(cleaned, "")
	cleaned = urlRe.ReplaceAllString(cleaned, "[URL]")
	cleaned = spaceRunRe.ReplaceAllString(cleaned, " ")
	return strings.TrimSpace(cleaned)
}

// EmailSettingsInput carries the plaintext password exactly once, from the
// API layer to the sealer.
type EmailSettingsInput struct {
	ProjectID       string
	ImapServer      string
	EmailAddress    string
	Password        string
	SenderFilter    string
	SubjectKeywords string
	StartDate       string
	EndDate         string
}

// EmailService manages mail settings and turns fetched messages into
// embedded summary chunks.
type EmailService struct {
	settings  EmailSettingsStore
	documents DocumentStore
	chunks    ChunkStore
	embedder  Embedder
	model     llm.Client
	sealer    SecretSealer
	source    MailSource
	chunker   *segment.TokenChunker
	uuidGen   UUIDGenerator
}

func NewEmailService(
	settings EmailSettingsStore,
	documents DocumentStore,
	chunks ChunkStore,
	embedder Embedder,
	model llm.Client,
	sealer SecretSealer,
	source MailSource,
) *EmailService {
	return &EmailService{
		settings:  settings,
		documents: documents,
		chunks:    chunks,
		embedder:  embedder,
		model:     model,
		sealer:    sealer,
		source:    source,
		chunker:   segment.NewTokenChunker(),
		uuidGen:   &DefaultUUIDGenerator{},
	}
}

// NewEmailServiceWithUUIDGen creates an EmailService with a custom UUID
// generator (for testing).
func NewEmailServiceWithUUIDGen(
	settings EmailSettingsStore,
	documents DocumentStore,
	chunks ChunkStore,
	embedder Embedder,
	model llm.Client,
	sealer SecretSealer,
	source MailSource,
	uuidGen UUIDGenerator,
) *EmailService {
	s := NewEmailService(settings, documents, chunks, embedder, model, sealer, source)
	s.uuidGen = uuidGen
	return s
}

// SaveSettings seals the password and stores the project's mail settings.
func (s *EmailService) SaveSettings(ctx context.Context, input EmailSettingsInput) error {
	if input.Password == "" {
		return domain.NewDomainError(domain.ErrCodeValidation, "email password must not be empty")
	}

	sealed, salt, err := s.sealer.Seal(input.Password)
	if err != nil {
		return fmt.Errorf("failed to seal email password: %w", err)
	}

	return s.settings.Upsert(ctx, &domain.EmailSettings{
		ProjectID:       input.ProjectID,
		ImapServer:      input.ImapServer,
		EmailAddress:    input.EmailAddress,
		PasswordSealed:  sealed,
		PasswordSalt:    salt,
		SenderFilter:    input.SenderFilter,
		SubjectKeywords: input.SubjectKeywords,
		StartDate:       input.StartDate,
		EndDate:         input.EndDate,
	})
}

// GetSettings returns the project's settings without the sealed password.
func (s *EmailService) GetSettings(ctx context.Context, projectID string) (*domain.EmailSettings, error) {
	settings, err := s.settings.GetByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	sanitized := *settings
	sanitized.PasswordSealed = ""
	sanitized.PasswordSalt = ""
	return &sanitized, nil
}

// IngestMail fetches the project's messages, summarizes each one, and stores
// the summaries as embedded email chunks. A failure on one message skips it;
// the rest proceed.
func (s *EmailService) IngestMail(ctx context.Context, projectID string) ([]domain.EmailSummary, error) {
	ctx, span := telemetry.StartSpan(ctx, "EmailService.IngestMail", telemetry.SpanAttributes{
		ProjectID: projectID,
		Operation: "ingest_mail",
	})
	defer span.End()

	settings, err := s.settings.GetByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	password, err := s.sealer.Open(settings.PasswordSealed, settings.PasswordSalt)
	if err != nil {
		return nil, fmt.Errorf("failed to open sealed email password: %w", err)
	}

	messages, err := s.source.FetchMessages(ctx, settings, password)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	collection, err := s.ensureCollection(ctx, projectID)
	if err != nil {
		return nil, err
	}

	var summaries []domain.EmailSummary
	for _, msg := range messages {
		summary, err := s.summarizeMessage(ctx, collection, msg)
		if err != nil {
			log.Printf("email: failed to summarize message %s: %v", msg.ID, err)
			telemetry.CaptureError(ctx, err)
			continue
		}
		summaries = append(summaries, *summary)
	}
	return summaries, nil
}

// ListSummaries returns the project's stored email summaries.
func (s *EmailService) ListSummaries(ctx context.Context, projectID string) ([]domain.EmailSummary, error) {
	chunks, err := s.chunks.ListBySourceType(ctx, projectID, domain.SourceTypeEmail)
	if err != nil {
		return nil, err
	}

	summaries := make([]domain.EmailSummary, 0, len(chunks))
	for _, c := range chunks {
		summaries = append(summaries, domain.EmailSummary{
			ID:      c.ID,
			Subject: c.DocName,
			Summary: c.Text,
		})
	}
	return summaries, nil
}

func (s *EmailService) summarizeMessage(ctx context.Context, collection *domain.Document, msg domain.MailMessage) (*domain.EmailSummary, error) {
	body := CleanEmailBody(msg.Body)
	preview := body
	if chunks := s.chunker.Chunk(body); len(chunks) > 0 {
		preview = chunks[0]
	}

	summary := s.summarize(ctx, msg, preview)

	chunk := &domain.Chunk{
		ID:         s.uuidGen.NewString(),
		ProjectID:  collection.ProjectID,
		DocumentID: collection.ID,
		ChunkID:    fmt.Sprintf("email_%s", msg.ID),
		Text:       summary,
		DocName:    msg.Subject,
		Type:       domain.SourceTypeEmail,
		CreatedAt:  time.Now().UTC(),
	}

	vector, err := s.embedder.Embed(ctx, summary)
	if err != nil {
		// Stored without an embedding the summary is still listable,
		// just not retrievable by similarity.
		log.Printf("email: failed to embed summary for %s: %v", msg.ID, err)
	} else {
		chunk.Embedding = vector
	}

	if err := s.chunks.Insert(ctx, chunk); err != nil {
		return nil, err
	}

	return &domain.EmailSummary{
		ID:      chunk.ID,
		Subject: msg.Subject,
		Summary: summary,
	}, nil
}

// summarize asks the model for a short summary and falls back to a plain
// templated one when the model is unavailable.
func (s *EmailService) summarize(ctx context.Context, msg domain.MailMessage, preview string) string {
	fallback := fmt.Sprintf("Email from %s with subject '%s' received on %s. Content preview: %s",
		msg.Sender, msg.Subject, msg.Date.Format("2006-01-02"), preview)

	if s.model == nil {
		return fallback
	}

	prompt := fmt.Sprintf(
		"Summarize the following email in two or three sentences. Keep names, dates, and action items.\n\nFrom: %s\nSubject: %s\nDate: %s\n\n%s",
		msg.Sender, msg.Subject, msg.Date.Format("2006-01-02"), preview,
	)
	reply, err := s.model.Complete(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, llm.Params{})
	if err != nil || reply == "" {
		log.Printf("email: summarization model call failed, using plain summary: %v", err)
		return fallback
	}
	return reply
}

func (s *EmailService) ensureCollection(ctx context.Context, projectID string) (*domain.Document, error) {
	existing, err := s.documents.FindByName(ctx, projectID, emailCollectionName)
	if err == nil {
		return existing, nil
	}

	doc := domain.NewDocument(s.uuidGen.NewString(), projectID, emailCollectionName, "application/email", 0, domain.SourceTypeEmail)
	doc.Status = domain.DocumentStatusCompleted
	if err := s.documents.Create(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}
