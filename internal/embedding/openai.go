package embedding

import (
	"context"
	"errors"

	openai "github.com/sashabaranov/go-openai"
)

// DefaultModel produces 384-wide vectors when the request asks for reduced
// dimensions, which text-embedding-3-small supports.
const DefaultModel = openai.SmallEmbedding3

// ErrNoAPIKey is returned when the OpenAI API key is missing.
var ErrNoAPIKey = errors.New("OpenAI API key not set")

// OpenAIBackend generates embeddings through the OpenAI embeddings API.
type OpenAIBackend struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

// NewOpenAIBackend builds a backend for the given key and model; an empty
// model selects DefaultModel.
func NewOpenAIBackend(apiKey string, model openai.EmbeddingModel) (*OpenAIBackend, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	if model == "" {
		model = DefaultModel
	}
	return &OpenAIBackend{
		client: openai.NewClient(apiKey),
		model:  model,
	}, nil
}

// Open is a no-op; the HTTP client needs no warm-up.
func (b *OpenAIBackend) Open(_ context.Context) error {
	return nil
}

// CreateEmbeddings requests one vector per input text at the reduced width.
func (b *OpenAIBackend) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := b.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      texts,
		Model:      b.model,
		Dimensions: Dimensions,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) != len(texts) {
		return nil, errors.New("embedding response is missing data")
	}

	vectors := make([][]float32, len(resp.Data))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(vectors) {
			return nil, errors.New("embedding response index out of range")
		}
		vectors[item.Index] = item.Embedding
	}
	return vectors, nil
}
