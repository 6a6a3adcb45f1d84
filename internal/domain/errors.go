package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeAlreadyExists    = "ALREADY_EXISTS"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeInternalError    = "INTERNAL_ERROR"
	ErrCodeInvalidOperation = "INVALID_OPERATION"
	ErrCodeBackendFailure   = "BACKEND_FAILURE"
)

// Validation errors
var (
	ErrInvalidSourceType     = NewDomainError(ErrCodeValidation, "invalid source type")
	ErrInvalidDocumentStatus = NewDomainError(ErrCodeValidation, "invalid document status")
	ErrInvalidChatRole       = NewDomainError(ErrCodeValidation, "invalid chat role")
	ErrInvalidURL            = NewDomainError(ErrCodeValidation, "invalid URL format")
	ErrEmptyChunkText        = NewDomainError(ErrCodeValidation, "chunk text cannot be empty")
	ErrMissingRequiredField  = NewDomainError(ErrCodeValidation, "missing required field")
)

// Not found errors
var (
	ErrProjectNotFound       = NewDomainError(ErrCodeNotFound, "project not found")
	ErrDocumentNotFound      = NewDomainError(ErrCodeNotFound, "document not found")
	ErrEmailSettingsNotFound = NewDomainError(ErrCodeNotFound, "email settings not found")
)

// Backend errors: embedding, language-model, or store unavailability is
// fatal for the request that hit it, never retried inside the core.
var (
	ErrEmbeddingBackend = NewDomainError(ErrCodeBackendFailure, "embedding backend unavailable")
	ErrModelBackend     = NewDomainError(ErrCodeBackendFailure, "language model backend unavailable")
)
