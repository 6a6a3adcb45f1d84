// Package llm abstracts the chat-completion backends used for answering and
// summarization. Adapters translate a common request into provider calls and
// return the raw text reply; answer parsing happens upstream.
package llm

import (
	"context"
	"errors"
)

// Role names follow the OpenAI chat convention; the Gemini adapter maps them.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrEmptyResponse is returned when a backend completes without any text.
var ErrEmptyResponse = errors.New("model returned an empty response")

// Message is one turn of a chat-completion request.
type Message struct {
	Role    string
	Content string
}

// Params tunes a completion. Zero values mean provider defaults. TopK is
// honored only by backends that support it.
type Params struct {
	Model       string
	Temperature float32
	MaxTokens   int
	TopP        float32
	TopK        int
}

// Client is a chat-completion backend.
type Client interface {
	Complete(ctx context.Context, messages []Message, params Params) (string, error)
}
