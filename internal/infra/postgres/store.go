package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"raise-service/internal/domain"
)

// Store persists consent, session and project records as JSONB documents.
// Tables are created by the migrations package.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) CreateConsent(ctx context.Context, c domain.Consent) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO consents (participant_code, status, data) VALUES ($1, $2, $3)
		 ON CONFLICT (participant_code) DO NOTHING`,
		c.ParticipantCode, string(c.Status), raw)
	if err != nil {
		return fmt.Errorf("insert consent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: consent %q", domain.ErrDuplicateRecord, c.ParticipantCode)
	}
	return nil
}

func (s *Store) GetConsent(ctx context.Context, code string) (domain.Consent, error) {
	return load[domain.Consent](ctx, s.pool,
		`SELECT data FROM consents WHERE participant_code=$1`, code, domain.ErrConsentNotFound)
}

func (s *Store) UpdateConsent(ctx context.Context, code string, fn func(*domain.Consent) error) (domain.Consent, error) {
	return modify(ctx, s.pool,
		`SELECT data FROM consents WHERE participant_code=$1 FOR UPDATE`,
		code, domain.ErrConsentNotFound, fn,
		func(tx pgx.Tx, c domain.Consent, raw []byte) error {
			_, err := tx.Exec(ctx,
				`UPDATE consents SET status=$2, data=$3, updated_at=now() WHERE participant_code=$1`,
				code, string(c.Status), raw)
			return err
		})
}

func (s *Store) CreateSession(ctx context.Context, sess domain.TraversalSession) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO traversal_sessions (session_code, participant_code, data) VALUES ($1, NULLIF($2, ''), $3)
		 ON CONFLICT (session_code) DO NOTHING`,
		sess.Code, sess.ParticipantCode, raw)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: session %q", domain.ErrDuplicateRecord, sess.Code)
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, code string) (domain.TraversalSession, error) {
	return load[domain.TraversalSession](ctx, s.pool,
		`SELECT data FROM traversal_sessions WHERE session_code=$1`, code, domain.ErrSessionNotFound)
}

func (s *Store) UpdateSession(ctx context.Context, code string, fn func(*domain.TraversalSession) error) (domain.TraversalSession, error) {
	return modify(ctx, s.pool,
		`SELECT data FROM traversal_sessions WHERE session_code=$1 FOR UPDATE`,
		code, domain.ErrSessionNotFound, fn,
		func(tx pgx.Tx, _ domain.TraversalSession, raw []byte) error {
			_, err := tx.Exec(ctx,
				`UPDATE traversal_sessions SET data=$2, updated_at=now() WHERE session_code=$1`, code, raw)
			return err
		})
}

func (s *Store) CreateProject(ctx context.Context, p domain.Project) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO projects (id, data, created_at) VALUES ($1, $2, $3) ON CONFLICT (id) DO NOTHING`,
		p.ID, raw, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: project %q", domain.ErrDuplicateRecord, p.ID)
	}
	return nil
}

func (s *Store) GetProject(ctx context.Context, id string) (domain.Project, error) {
	return load[domain.Project](ctx, s.pool, `SELECT data FROM projects WHERE id=$1`, id, domain.ErrProjectNotFound)
}

func (s *Store) UpdateProject(ctx context.Context, id string, fn func(*domain.Project) error) (domain.Project, error) {
	return modify(ctx, s.pool,
		`SELECT data FROM projects WHERE id=$1 FOR UPDATE`,
		id, domain.ErrProjectNotFound, fn,
		func(tx pgx.Tx, _ domain.Project, raw []byte) error {
			_, err := tx.Exec(ctx, `UPDATE projects SET data=$2, updated_at=now() WHERE id=$1`, id, raw)
			return err
		})
}

func (s *Store) ListProjects(ctx context.Context) ([]domain.Project, error) {
	rows, err := s.pool.Query(ctx, `SELECT data FROM projects ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	out := []domain.Project{}
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var p domain.Project
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("unmarshal project: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func load[T any](ctx context.Context, q querier, query, key string, notFound error) (T, error) {
	var v T
	var raw []byte
	err := q.QueryRow(ctx, query, key).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return v, fmt.Errorf("%w: %q", notFound, key)
	}
	if err != nil {
		return v, fmt.Errorf("load %q: %w", key, err)
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("unmarshal %q: %w", key, err)
	}
	return v, nil
}

// modify locks the row, applies fn and writes the document back in one
// transaction. Nothing is written when fn fails.
func modify[T any](ctx context.Context, pool *pgxpool.Pool, selectForUpdate, key string, notFound error,
	fn func(*T) error, write func(pgx.Tx, T, []byte) error) (T, error) {
	var result T
	err := pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		v, err := load[T](ctx, tx, selectForUpdate, key, notFound)
		if err != nil {
			return err
		}
		if err := fn(&v); err != nil {
			return err
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return err
		}
		if err := write(tx, v, raw); err != nil {
			return err
		}
		result = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}
