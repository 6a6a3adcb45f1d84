package domain

import (
	"fmt"
	"strings"
	"time"
)

// SourceType identifies the kind of source a chunk was derived from.
type SourceType string

const (
	SourceTypePDF      SourceType = "pdf"
	SourceTypeMarkdown SourceType = "markdown"
	SourceTypeText     SourceType = "text"
	SourceTypeDocx     SourceType = "docx"
	SourceTypeImage    SourceType = "image"
	SourceTypeWeb      SourceType = "web"
	SourceTypeEmail    SourceType = "email"
	SourceTypeUnknown  SourceType = "unknown"
)

// ChunkImage is one image payload attached to a chunk, base64-encoded with
// its data-URI prefix already applied.
type ChunkImage struct {
	ID       string `json:"id"`
	Base64   string `json:"base64"`
	MimeType string `json:"mime_type"`
}

// Chunk is the atomic retrievable unit. Regular text chunks carry a
// 384-dimensional unit embedding; whole-page screenshot chunks carry a nil
// embedding and are reached only through page correlation at retrieval time.
type Chunk struct {
	ID         string
	ProjectID  string
	DocumentID string
	ChunkID    string
	Text       string
	Embedding  []float32 // nil for screenshot chunks
	PageNumber *int      // nil for unpaginated sources
	DocName    string
	Type       SourceType
	Images     []ChunkImage
	CreatedAt  time.Time
}

// IsImageChunk reports whether the chunk is retrievable only by page
// correlation rather than by similarity.
func (c *Chunk) IsImageChunk() bool {
	return c.Embedding == nil && len(c.Images) > 0
}

// ValidateChunk checks the construction invariants of a chunk before it is
// handed to the store.
func ValidateChunk(c *Chunk) error {
	if c == nil {
		return fmt.Errorf("chunk cannot be nil")
	}
	if c.ProjectID == "" {
		return fmt.Errorf("chunk ProjectID is required")
	}
	if c.DocumentID == "" {
		return fmt.Errorf("chunk DocumentID is required")
	}
	if c.ChunkID == "" {
		return fmt.Errorf("chunk ChunkID is required")
	}
	if strings.TrimSpace(c.Text) == "" {
		return ErrEmptyChunkText
	}
	if !isValidSourceType(c.Type) {
		return ErrInvalidSourceType
	}
	if c.PageNumber != nil && *c.PageNumber < 1 {
		return fmt.Errorf("chunk PageNumber must be 1-based, got %d", *c.PageNumber)
	}
	return nil
}

func isValidSourceType(t SourceType) bool {
	switch t {
	case SourceTypePDF, SourceTypeMarkdown, SourceTypeText, SourceTypeDocx,
		SourceTypeImage, SourceTypeWeb, SourceTypeEmail:
		return true
	}
	return false
}

// ScreenshotChunkID derives the screenshot sibling id for a text chunk id by
// replacing the suffix after the last underscore with "screenshot". Returns
// the empty string when the id has no underscore.
func ScreenshotChunkID(chunkID string) string {
	idx := strings.LastIndex(chunkID, "_")
	if idx < 0 {
		return ""
	}
	return chunkID[:idx+1] + "screenshot"
}
