package domain

import "time"

// ChatRole identifies the sender of a chat message.
type ChatRole string

const (
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
)

// Citation points an answer back at a source chunk. Citations are transient:
// rebuilt from chunk metadata on every query, never stored independently.
type Citation struct {
	ChunkID    string       `json:"chunk_id"`
	DocName    string       `json:"doc_name"`
	PageNumber *int         `json:"page_number"`
	SourceType SourceType   `json:"source_type"`
	Images     []ChunkImage `json:"images_base64,omitempty"`
}

// ChatMessage is one persisted turn of a project's chat history.
type ChatMessage struct {
	ID        string
	ProjectID string
	Role      ChatRole
	Content   string
	Citations []Citation
	Images    []string // screenshot payloads surfaced with the answer
	CreatedAt time.Time
}

// ValidateChatRole checks a role value coming in from the API layer.
func ValidateChatRole(r ChatRole) error {
	switch r {
	case ChatRoleUser, ChatRoleAssistant:
		return nil
	}
	return ErrInvalidChatRole
}
