package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kaikaijiang/Instant-RAG/internal/domain"
)

type EmailSettingsRepository struct {
	db dbtx
}

func NewEmailSettingsRepository(pool *pgxpool.Pool) *EmailSettingsRepository {
	return &EmailSettingsRepository{db: pool}
}

func NewEmailSettingsRepositoryWithTx(tx dbtx) *EmailSettingsRepository {
	return &EmailSettingsRepository{db: tx}
}

// Upsert writes the project's mail settings, replacing any previous row. The
// password arrives already sealed.
func (r *EmailSettingsRepository) Upsert(ctx context.Context, s *domain.EmailSettings) error {
	if err := domain.ValidateEmailSettings(s); err != nil {
		return err
	}

	s.UpdatedAt = time.Now().UTC()
	_, err := r.db.Exec(ctx,
		`INSERT INTO email_settings (project_id, imap_server, email_address, password_sealed, password_salt, sender_filter, subject_keywords, start_date, end_date, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (project_id) DO UPDATE SET
		   imap_server = EXCLUDED.imap_server,
		   email_address = EXCLUDED.email_address,
		   password_sealed = EXCLUDED.password_sealed,
		   password_salt = EXCLUDED.password_salt,
		   sender_filter = EXCLUDED.sender_filter,
		   subject_keywords = EXCLUDED.subject_keywords,
		   start_date = EXCLUDED.start_date,
		   end_date = EXCLUDED.end_date,
		   updated_at = EXCLUDED.updated_at`,
		s.ProjectID, s.ImapServer, s.EmailAddress, s.PasswordSealed, s.PasswordSalt,
		nullableString(s.SenderFilter), nullableString(s.SubjectKeywords),
		nullableString(s.StartDate), nullableString(s.EndDate), s.UpdatedAt,
	)
	return err
}

func (r *EmailSettingsRepository) GetByProject(ctx context.Context, projectID string) (*domain.EmailSettings, error) {
	var s domain.EmailSettings
	var senderFilter, subjectKeywords, startDate, endDate *string
	err := r.db.QueryRow(ctx,
		`SELECT project_id, imap_server, email_address, password_sealed, password_salt, sender_filter, subject_keywords, start_date, end_date, updated_at
		 FROM email_settings WHERE project_id = $1`,
		projectID,
	).Scan(&s.ProjectID, &s.ImapServer, &s.EmailAddress, &s.PasswordSealed, &s.PasswordSalt,
		&senderFilter, &subjectKeywords, &startDate, &endDate, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrEmailSettingsNotFound
		}
		return nil, err
	}
	if senderFilter != nil {
		s.SenderFilter = *senderFilter
	}
	if subjectKeywords != nil {
		s.SubjectKeywords = *subjectKeywords
	}
	if startDate != nil {
		s.StartDate = *startDate
	}
	if endDate != nil {
		s.EndDate = *endDate
	}
	return &s, nil
}

func (r *EmailSettingsRepository) Delete(ctx context.Context, projectID string) error {
	cmdTag, err := r.db.Exec(ctx,
		`DELETE FROM email_settings WHERE project_id = $1`,
		projectID,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrEmailSettingsNotFound
	}
	return nil
}
