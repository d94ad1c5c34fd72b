package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"raise-service/internal/domain"
)

const maxTxRetries = 10

// Store keeps consent, session and project records as JSON documents.
// Keys:
//
//	raise:consent:{code}   consent record
//	raise:session:{code}   traversal session (expires after ttl when ttl > 0)
//	raise:project:{id}     project record
//	raise:projects         sorted set of project ids scored by creation time
type Store struct {
	client *redis.Client
	ttl    time.Duration
	sf     singleflight.Group
}

func NewStore(client *redis.Client, sessionTTL time.Duration) *Store {
	return &Store{client: client, ttl: sessionTTL}
}

func (s *Store) CreateConsent(ctx context.Context, c domain.Consent) error {
	return create(ctx, s.client, consentKey(c.ParticipantCode), c, 0)
}

func (s *Store) GetConsent(ctx context.Context, code string) (domain.Consent, error) {
	return get[domain.Consent](ctx, s.client, consentKey(code), domain.ErrConsentNotFound)
}

func (s *Store) UpdateConsent(ctx context.Context, code string, fn func(*domain.Consent) error) (domain.Consent, error) {
	return update(ctx, s.client, consentKey(code), domain.ErrConsentNotFound, 0, fn)
}

func (s *Store) CreateSession(ctx context.Context, sess domain.TraversalSession) error {
	return create(ctx, s.client, sessionKey(sess.Code), sess, s.ttl)
}

func (s *Store) GetSession(ctx context.Context, code string) (domain.TraversalSession, error) {
	return get[domain.TraversalSession](ctx, s.client, sessionKey(code), domain.ErrSessionNotFound)
}

func (s *Store) UpdateSession(ctx context.Context, code string, fn func(*domain.TraversalSession) error) (domain.TraversalSession, error) {
	return update(ctx, s.client, sessionKey(code), domain.ErrSessionNotFound, s.ttl, fn)
}

func (s *Store) CreateProject(ctx context.Context, p domain.Project) error {
	if err := create(ctx, s.client, projectKey(p.ID), p, 0); err != nil {
		return err
	}
	return s.client.ZAdd(ctx, projectIndexKey, redis.Z{
		Score:  float64(p.CreatedAt.UnixNano()),
		Member: p.ID,
	}).Err()
}

func (s *Store) GetProject(ctx context.Context, id string) (domain.Project, error) {
	return get[domain.Project](ctx, s.client, projectKey(id), domain.ErrProjectNotFound)
}

func (s *Store) UpdateProject(ctx context.Context, id string, fn func(*domain.Project) error) (domain.Project, error) {
	return update(ctx, s.client, projectKey(id), domain.ErrProjectNotFound, 0, fn)
}

// ListProjects returns projects newest first. Concurrent callers share one
// round trip.
func (s *Store) ListProjects(ctx context.Context) ([]domain.Project, error) {
	result, err, _ := s.sf.Do(projectIndexKey, func() (interface{}, error) {
		ids, err := s.client.ZRevRange(ctx, projectIndexKey, 0, -1).Result()
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			return []domain.Project{}, nil
		}
		keys := make([]string, len(ids))
		for i, id := range ids {
			keys[i] = projectKey(id)
		}
		raws, err := s.client.MGet(ctx, keys...).Result()
		if err != nil {
			return nil, err
		}
		out := make([]domain.Project, 0, len(raws))
		for i, raw := range raws {
			str, ok := raw.(string)
			if !ok {
				continue
			}
			var p domain.Project
			if err := json.Unmarshal([]byte(str), &p); err != nil {
				return nil, fmt.Errorf("decode %s: %w", keys[i], err)
			}
			out = append(out, p)
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	shared := result.([]domain.Project)
	out := make([]domain.Project, len(shared))
	for i, p := range shared {
		out[i] = p.Clone()
	}
	return out, nil
}

const projectIndexKey = "raise:projects"

func consentKey(code string) string { return "raise:consent:" + code }
func sessionKey(code string) string { return "raise:session:" + code }
func projectKey(id string) string   { return "raise:project:" + id }

func create[T any](ctx context.Context, client *redis.Client, key string, v T, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	ok, err := client.SetNX(ctx, key, raw, ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %q", domain.ErrDuplicateRecord, key)
	}
	return nil
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func get[T any](ctx context.Context, client getter, key string, notFound error) (T, error) {
	var v T
	raw, err := client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return v, fmt.Errorf("%w: %q", notFound, key)
	}
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("decode %s: %w", key, err)
	}
	return v, nil
}

// update is an optimistic read-modify-write under WATCH, retried when another
// client changes the key between read and write.
func update[T any](ctx context.Context, client *redis.Client, key string, notFound error, ttl time.Duration, fn func(*T) error) (T, error) {
	var result T
	txf := func(tx *redis.Tx) error {
		v, err := get[T](ctx, tx, key, notFound)
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
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if ttl > 0 {
				pipe.Set(ctx, key, raw, ttl)
			} else {
				pipe.Set(ctx, key, raw, redis.KeepTTL)
			}
			return nil
		})
		if err == nil {
			result = v
		}
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			var zero T
			return zero, err
		}
		return result, nil
	}
	var zero T
	return zero, fmt.Errorf("update %s: too much contention", key)
}
