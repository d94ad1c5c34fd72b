package app

import (
	"context"
	"fmt"
	"strings"

	"raise-service/internal/compliance"
	"raise-service/internal/domain"
)

const (
	ProjectActive   = "active"
	ProjectComplete = "complete"
)

// ProjectInput describes a new compliance project.
type ProjectInput struct {
	Name        string
	Description string
	AIUseCase   string
}

// DecisionInput is a decision logged against a checkpoint.
type DecisionInput struct {
	Checkpoint  string
	Description string
	Notes       string
	ProofType   string
	ProofValue  string
}

// ProjectService manages compliance projects and their checkpoints.
type ProjectService struct {
	projects ProjectRepository
	catalog  *compliance.Catalog
	metrics  *Metrics
	options
}

func NewProjectService(projects ProjectRepository, catalog *compliance.Catalog, metrics *Metrics, opts ...Option) *ProjectService {
	return &ProjectService{
		projects: projects,
		catalog:  catalog,
		metrics:  metrics,
		options:  buildOptions(opts),
	}
}

func (s *ProjectService) UseCases() []compliance.UseCase {
	return s.catalog.UseCases()
}

// CreateProject generates the checkpoint list for the project's use case.
func (s *ProjectService) CreateProject(ctx context.Context, in ProjectInput) (domain.Project, error) {
	if strings.TrimSpace(in.Name) == "" {
		return domain.Project{}, &domain.ValidationError{Fields: []string{"name"}}
	}
	id, err := s.newID()
	if err != nil {
		return domain.Project{}, fmt.Errorf("generate project id: %w", err)
	}
	p := domain.Project{
		ID:          id,
		Name:        in.Name,
		Description: in.Description,
		AIUseCase:   in.AIUseCase,
		Status:      ProjectActive,
		CreatedAt:   s.now(),
		Checkpoints: s.catalog.Generate(in.AIUseCase),
		Decisions:   []domain.Decision{},
	}
	if err := s.projects.CreateProject(ctx, p); err != nil {
		return domain.Project{}, err
	}
	s.logger.Info("project created", "project", id, "use_case", in.AIUseCase, "checkpoints", len(p.Checkpoints))
	return p, nil
}

func (s *ProjectService) GetProject(ctx context.Context, id string) (domain.Project, error) {
	return s.projects.GetProject(ctx, id)
}

func (s *ProjectService) ListProjects(ctx context.Context) ([]domain.Project, error) {
	return s.projects.ListProjects(ctx)
}

// ToggleCheckpoint flips a checkpoint's completion flag.
func (s *ProjectService) ToggleCheckpoint(ctx context.Context, id, checkpointID string) (domain.Project, error) {
	p, err := s.projects.UpdateProject(ctx, id, func(p *domain.Project) error {
		cp := p.Checkpoint(checkpointID)
		if cp == nil {
			return fmt.Errorf("%w: %q", domain.ErrCheckpointNotFound, checkpointID)
		}
		if cp.Completed {
			cp.Completed = false
			cp.CompletedAt = nil
		} else {
			now := s.now()
			cp.Completed = true
			cp.CompletedAt = &now
		}
		p.Status = projectStatus(*p)
		return nil
	})
	if err != nil {
		return p, err
	}
	s.logger.Info("checkpoint toggled", "project", id, "checkpoint", checkpointID, "completion", compliance.Completion(p))
	return p, nil
}

// LogDecision appends a decision and completes its checkpoint if needed.
func (s *ProjectService) LogDecision(ctx context.Context, id string, in DecisionInput) (domain.Decision, error) {
	if strings.TrimSpace(in.Description) == "" {
		return domain.Decision{}, &domain.ValidationError{Fields: []string{"description"}}
	}
	decisionID, err := s.newID()
	if err != nil {
		return domain.Decision{}, fmt.Errorf("generate decision id: %w", err)
	}

	var d domain.Decision
	_, err = s.projects.UpdateProject(ctx, id, func(p *domain.Project) error {
		cp := p.Checkpoint(in.Checkpoint)
		if cp == nil {
			return fmt.Errorf("%w: %q", domain.ErrCheckpointNotFound, in.Checkpoint)
		}
		now := s.now()
		d = domain.Decision{
			ID:          decisionID,
			Checkpoint:  in.Checkpoint,
			Description: in.Description,
			Notes:       in.Notes,
			ProofType:   in.ProofType,
			ProofValue:  in.ProofValue,
			LoggedAt:    now,
		}
		p.Decisions = append(p.Decisions, d)
		if !cp.Completed {
			cp.Completed = true
			cp.CompletedAt = &now
		}
		p.Status = projectStatus(*p)
		return nil
	})
	if err != nil {
		return domain.Decision{}, err
	}
	s.metrics.decision()
	s.logger.Info("decision logged", "project", id, "checkpoint", in.Checkpoint)
	return d, nil
}

func (s *ProjectService) Report(ctx context.Context, id string) (compliance.Report, error) {
	p, err := s.projects.GetProject(ctx, id)
	if err != nil {
		return compliance.Report{}, err
	}
	return compliance.BuildReport(p), nil
}

func projectStatus(p domain.Project) string {
	if len(p.Checkpoints) == 0 {
		return ProjectActive
	}
	for _, cp := range p.Checkpoints {
		if !cp.Completed {
			return ProjectActive
		}
	}
	return ProjectComplete
}
