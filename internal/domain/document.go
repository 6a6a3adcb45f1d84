package domain

import (
	"fmt"
	"time"
)

// DocumentStatus tracks the ingestion lifecycle of a document.
type DocumentStatus string

const (
	DocumentStatusPending    DocumentStatus = "pending"
	DocumentStatusProcessing DocumentStatus = "processing"
	DocumentStatusCompleted  DocumentStatus = "completed"
	DocumentStatusError      DocumentStatus = "error"
)

// Document is one ingested unit: an uploaded file, a web page, or a
// synthetic email-collection container.
type Document struct {
	ID          string
	ProjectID   string
	Name        string
	Size        int64
	MimeType    string
	SourceType  SourceType
	Status      DocumentStatus
	PageCount   int
	UploadedAt  time.Time
	ProcessedAt *time.Time
}

// NewDocument creates a Document in the pending state.
func NewDocument(id, projectID, name, mimeType string, size int64, sourceType SourceType) *Document {
	return &Document{
		ID:         id,
		ProjectID:  projectID,
		Name:       name,
		Size:       size,
		MimeType:   mimeType,
		SourceType: sourceType,
		Status:     DocumentStatusPending,
		UploadedAt: time.Now().UTC(),
	}
}

// ValidateDocument validates a Document instance
func ValidateDocument(d *Document) error {
	if d == nil {
		return fmt.Errorf("document cannot be nil")
	}
	if d.ID == "" {
		return fmt.Errorf("document ID is required")
	}
	if d.ProjectID == "" {
		return fmt.Errorf("document ProjectID is required")
	}
	if d.Name == "" {
		return fmt.Errorf("document Name is required")
	}
	if !isValidDocumentStatus(d.Status) {
		return ErrInvalidDocumentStatus
	}
	return nil
}

func isValidDocumentStatus(s DocumentStatus) bool {
	switch s {
	case DocumentStatusPending, DocumentStatusProcessing,
		DocumentStatusCompleted, DocumentStatusError:
		return true
	}
	return false
}
