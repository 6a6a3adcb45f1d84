package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kaikaijiang/Instant-RAG/internal/domain"
)

type ChatRepository struct {
	db dbtx
}

func NewChatRepository(pool *pgxpool.Pool) *ChatRepository {
	return &ChatRepository{db: pool}
}

func NewChatRepositoryWithTx(tx dbtx) *ChatRepository {
	return &ChatRepository{db: tx}
}

func (r *ChatRepository) Create(ctx context.Context, m *domain.ChatMessage) error {
	if err := domain.ValidateChatRole(m.Role); err != nil {
		return err
	}

	var citations any
	if len(m.Citations) > 0 {
		encoded, err := json.Marshal(m.Citations)
		if err != nil {
			return err
		}
		citations = encoded
	}

	var images any
	if len(m.Images) > 0 {
		encoded, err := json.Marshal(m.Images)
		if err != nil {
			return err
		}
		images = encoded
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO chat_messages (id, project_id, role, content, citations, images, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		m.ID, m.ProjectID, m.Role, m.Content, citations, images, m.CreatedAt,
	)
	return err
}

// ListByProject returns the project's chat history, oldest first.
func (r *ChatRepository) ListByProject(ctx context.Context, projectID string) ([]*domain.ChatMessage, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, project_id, role, content, citations, images, created_at
		 FROM chat_messages WHERE project_id = $1 ORDER BY created_at, id`,
		projectID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChatRows(rows)
}

// ListRecent returns the newest limit messages, oldest first, for building
// the conversation context of the next model call.
func (r *ChatRepository) ListRecent(ctx context.Context, projectID string, limit int) ([]*domain.ChatMessage, error) {
	if limit <= 0 {
		limit = 6
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, project_id, role, content, citations, images, created_at
		 FROM (
		   SELECT id, project_id, role, content, citations, images, created_at
		   FROM chat_messages WHERE project_id = $1
		   ORDER BY created_at DESC, id DESC LIMIT $2
		 ) recent
		 ORDER BY created_at, id`,
		projectID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChatRows(rows)
}

func (r *ChatRepository) DeleteByProject(ctx context.Context, projectID string) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM chat_messages WHERE project_id = $1`,
		projectID,
	)
	return err
}

func scanChatRows(rows pgx.Rows) ([]*domain.ChatMessage, error) {
	var results []*domain.ChatMessage
	for rows.Next() {
		var m domain.ChatMessage
		var citations, images []byte
		if err := rows.Scan(&m.ID, &m.ProjectID, &m.Role, &m.Content, &citations, &images, &m.CreatedAt); err != nil {
			return nil, err
		}
		if len(citations) > 0 {
			if err := json.Unmarshal(citations, &m.Citations); err != nil {
				return nil, err
			}
		}
		if len(images) > 0 {
			if err := json.Unmarshal(images, &m.Images); err != nil {
				return nil, err
			}
		}
		results = append(results, &m)
	}
	return results, rows.Err()
}
