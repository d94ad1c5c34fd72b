package app

import (
	"context"

	"raise-service/internal/domain"
)

// ConsentRepository stores research consent records keyed by participant code.
type ConsentRepository interface {
	// CreateConsent fails with domain.ErrDuplicateRecord when the code exists.
	CreateConsent(ctx context.Context, c domain.Consent) error
	GetConsent(ctx context.Context, code string) (domain.Consent, error)
	// UpdateConsent applies fn atomically and returns the stored result.
	UpdateConsent(ctx context.Context, code string, fn func(*domain.Consent) error) (domain.Consent, error)
}

// SessionRepository stores traversal sessions keyed by session code.
type SessionRepository interface {
	CreateSession(ctx context.Context, s domain.TraversalSession) error
	GetSession(ctx context.Context, code string) (domain.TraversalSession, error)
	UpdateSession(ctx context.Context, code string, fn func(*domain.TraversalSession) error) (domain.TraversalSession, error)
}

// ProjectRepository stores compliance projects keyed by id.
type ProjectRepository interface {
	CreateProject(ctx context.Context, p domain.Project) error
	GetProject(ctx context.Context, id string) (domain.Project, error)
	UpdateProject(ctx context.Context, id string, fn func(*domain.Project) error) (domain.Project, error)
	// ListProjects returns projects newest first.
	ListProjects(ctx context.Context) ([]domain.Project, error)
}

// Store bundles the three repositories a backend provides.
type Store interface {
	ConsentRepository
	SessionRepository
	ProjectRepository
}
