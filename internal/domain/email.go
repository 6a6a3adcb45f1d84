package domain

import (
	"fmt"
	"time"
)

// EmailSettings holds the per-project mail account configuration. The
// password is sealed before it reaches the repository; the plaintext never
// leaves the email service.
type EmailSettings struct {
	ProjectID       string
	ImapServer      string
	EmailAddress    string
	PasswordSealed  string
	PasswordSalt    string
	SenderFilter    string
	SubjectKeywords string
	StartDate       string
	EndDate         string
	UpdatedAt       time.Time
}

// ValidateEmailSettings validates an EmailSettings instance
func ValidateEmailSettings(s *EmailSettings) error {
	if s == nil {
		return fmt.Errorf("email settings cannot be nil")
	}
	if s.ProjectID == "" {
		return fmt.Errorf("email settings ProjectID is required")
	}
	if s.ImapServer == "" {
		return fmt.Errorf("email settings ImapServer is required")
	}
	if s.EmailAddress == "" {
		return fmt.Errorf("email settings EmailAddress is required")
	}
	return nil
}

// MailMessage is one raw message record produced by a mail source. The core
// never speaks IMAP itself; a MailSource hands it decoded records.
type MailMessage struct {
	ID      string
	Subject string
	Sender  string
	Date    time.Time
	Body    string
}

// EmailSummary is the per-message summary surfaced to the API, backed by an
// email-typed chunk.
type EmailSummary struct {
	ID      string `json:"id"`
	Subject string `json:"subject"`
	Summary string `json:"summary"`
}
