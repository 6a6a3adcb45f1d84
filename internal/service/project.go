package service

import (
	"context"
	"time"

	"github.com/kaikaijiang/Instant-RAG/internal/domain"
	"github.com/kaikaijiang/Instant-RAG/internal/pagination"
	"github.com/kaikaijiang/Instant-RAG/internal/telemetry"
)

// ProjectService handles business logic for projects.
type ProjectService struct {
	projects ProjectStore
	uuidGen  UUIDGenerator
}

func NewProjectService(projects ProjectStore) *ProjectService {
	return &ProjectService{
		projects: projects,
		uuidGen:  &DefaultUUIDGenerator{},
	}
}

// NewProjectServiceWithUUIDGen creates a ProjectService with a custom UUID
// generator (for testing).
func NewProjectServiceWithUUIDGen(projects ProjectStore, uuidGen UUIDGenerator) *ProjectService {
	return &ProjectService{projects: projects, uuidGen: uuidGen}
}

func (s *ProjectService) Create(ctx context.Context, name string) (*domain.Project, error) {
	ctx, span := telemetry.StartSpan(ctx, "ProjectService.Create", telemetry.SpanAttributes{
		Operation: "create",
	})
	defer span.End()

	project := &domain.Project{
		ID:        s.uuidGen.NewString(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	if err := domain.ValidateProject(project); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid project", err)
	}

	if err := s.projects.Create(ctx, project); err != nil {
		span.SetError(err)
		return nil, err
	}
	return project, nil
}

func (s *ProjectService) Get(ctx context.Context, id string) (*domain.Project, error) {
	return s.projects.GetByID(ctx, id)
}

func (s *ProjectService) List(ctx context.Context) ([]*domain.Project, error) {
	return s.projects.List(ctx)
}

// ListPage returns one keyset page of projects, newest first, plus the cursor
// for the next page.
func (s *ProjectService) ListPage(ctx context.Context, cursor string, limit int) (*pagination.PageResult[*domain.Project], error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	decoded, err := pagination.DecodeCursor(cursor)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid cursor", err)
	}

	projects, err := s.projects.ListPage(ctx, decoded, limit)
	if err != nil {
		return nil, err
	}
	if projects == nil {
		projects = []*domain.Project{}
	}

	next := pagination.CreateNextCursor(projects, limit,
		func(p *domain.Project) string { return p.ID },
		func(p *domain.Project) time.Time { return p.CreatedAt },
	)
	return &pagination.PageResult[*domain.Project]{
		Items:   projects,
		Cursor:  next,
		HasMore: next != "",
	}, nil
}

// Delete removes a project and, through the store's cascade, everything it
// owns: documents, chunks, chat history, email settings.
func (s *ProjectService) Delete(ctx context.Context, id string) error {
	ctx, span := telemetry.StartSpan(ctx, "ProjectService.Delete", telemetry.SpanAttributes{
		ProjectID: id,
		Operation: "delete",
	})
	defer span.End()

	if err := s.projects.Delete(ctx, id); err != nil {
		span.SetError(err)
		return err
	}
	return nil
}
