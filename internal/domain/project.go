package domain

import (
	"fmt"
	"time"
)

// Project is the isolation boundary: it owns documents, chunks, chat
// history, and email settings. Deleting a project cascades to all of them.
type Project struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// ValidateProject validates a Project instance
func ValidateProject(p *Project) error {
	if p == nil {
		return fmt.Errorf("project cannot be nil")
	}
	if p.ID == "" {
		return fmt.Errorf("project ID is required")
	}
	if p.Name == "" {
		return fmt.Errorf("project Name is required")
	}
	return nil
}
