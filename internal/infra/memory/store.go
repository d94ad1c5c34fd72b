package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"raise-service/internal/domain"
)

// Store is an in-memory implementation of the consent, session and project
// repositories. Records are copied in and out so callers never share state.
type Store struct {
	consents *table[domain.Consent]
	sessions *table[domain.TraversalSession]
	projects *table[domain.Project]
}

func NewStore() *Store {
	return &Store{
		consents: newTable(domain.ErrConsentNotFound, cloneConsent),
		sessions: newTable(domain.ErrSessionNotFound, cloneSession),
		projects: newTable(domain.ErrProjectNotFound, domain.Project.Clone),
	}
}

func (s *Store) CreateConsent(_ context.Context, c domain.Consent) error {
	return s.consents.create(c.ParticipantCode, c)
}

func (s *Store) GetConsent(_ context.Context, code string) (domain.Consent, error) {
	return s.consents.get(code)
}

func (s *Store) UpdateConsent(_ context.Context, code string, fn func(*domain.Consent) error) (domain.Consent, error) {
	return s.consents.update(code, fn)
}

func (s *Store) CreateSession(_ context.Context, sess domain.TraversalSession) error {
	return s.sessions.create(sess.Code, sess)
}

func (s *Store) GetSession(_ context.Context, code string) (domain.TraversalSession, error) {
	return s.sessions.get(code)
}

func (s *Store) UpdateSession(_ context.Context, code string, fn func(*domain.TraversalSession) error) (domain.TraversalSession, error) {
	return s.sessions.update(code, fn)
}

func (s *Store) CreateProject(_ context.Context, p domain.Project) error {
	return s.projects.create(p.ID, p)
}

func (s *Store) GetProject(_ context.Context, id string) (domain.Project, error) {
	return s.projects.get(id)
}

func (s *Store) UpdateProject(_ context.Context, id string, fn func(*domain.Project) error) (domain.Project, error) {
	return s.projects.update(id, fn)
}

// ListProjects returns projects newest first, ties broken by id.
func (s *Store) ListProjects(_ context.Context) ([]domain.Project, error) {
	out := s.projects.all()
	SortProjects(out)
	return out, nil
}

// SortProjects orders projects newest first, ties broken by id.
func SortProjects(ps []domain.Project) {
	slices.SortFunc(ps, func(a, b domain.Project) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
}

type table[T any] struct {
	mu       sync.RWMutex
	rows     map[string]T
	notFound error
	clone    func(T) T
}

func newTable[T any](notFound error, clone func(T) T) *table[T] {
	return &table[T]{rows: make(map[string]T), notFound: notFound, clone: clone}
}

func (t *table[T]) create(key string, v T) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.rows[key]; ok {
		return fmt.Errorf("%w: %q", domain.ErrDuplicateRecord, key)
	}
	t.rows[key] = t.clone(v)
	return nil
}

func (t *table[T]) get(key string) (T, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.rows[key]
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %q", t.notFound, key)
	}
	return t.clone(v), nil
}

// update runs fn on a private copy and stores it only when fn succeeds.
func (t *table[T]) update(key string, fn func(*T) error) (T, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var zero T
	v, ok := t.rows[key]
	if !ok {
		return zero, fmt.Errorf("%w: %q", t.notFound, key)
	}
	v = t.clone(v)
	if err := fn(&v); err != nil {
		return zero, err
	}
	t.rows[key] = v
	return t.clone(v), nil
}

func (t *table[T]) all() []T {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]T, 0, len(t.rows))
	for _, v := range t.rows {
		out = append(out, t.clone(v))
	}
	return out
}

func cloneConsent(c domain.Consent) domain.Consent {
	if c.WithdrawnAt != nil {
		at := *c.WithdrawnAt
		c.WithdrawnAt = &at
	}
	return c
}

func cloneSession(s domain.TraversalSession) domain.TraversalSession {
	if s.CompletedAt != nil {
		at := *s.CompletedAt
		s.CompletedAt = &at
	}
	s.Responses = slices.Clone(s.Responses)
	return s
}
