package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"raise-service/internal/domain"
)

// ProjectSource is the backing project store (e.g. Postgres).
type ProjectSource interface {
	CreateProject(ctx context.Context, p domain.Project) error
	GetProject(ctx context.Context, id string) (domain.Project, error)
	UpdateProject(ctx context.Context, id string, fn func(*domain.Project) error) (domain.Project, error)
	ListProjects(ctx context.Context) ([]domain.Project, error)
}

// ProjectCache caches project reads with a TTL to avoid repeated DB hits.
// Writes go straight to the source and refresh the cached entry.
type ProjectCache struct {
	source ProjectSource
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	mu    sync.RWMutex
	rnd   *rand.Rand
	cache map[string]cachedProject
}

type cachedProject struct {
	project   domain.Project
	expiresAt time.Time
}

func NewProjectCache(source ProjectSource, ttl time.Duration) *ProjectCache {
	return &ProjectCache{
		source: source,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedProject),
	}
}

func (c *ProjectCache) CreateProject(ctx context.Context, p domain.Project) error {
	if err := c.source.CreateProject(ctx, p); err != nil {
		return err
	}
	c.store(p)
	return nil
}

func (c *ProjectCache) GetProject(ctx context.Context, id string) (domain.Project, error) {
	if p, ok := c.lookup(id); ok {
		return p, nil
	}

	result, err, _ := c.sf.Do(id, func() (interface{}, error) {
		if p, ok := c.lookup(id); ok {
			return p, nil
		}
		p, err := c.source.GetProject(ctx, id)
		if err != nil {
			return domain.Project{}, err
		}
		c.store(p)
		return p, nil
	})
	if err != nil {
		return domain.Project{}, err
	}
	return result.(domain.Project).Clone(), nil
}

func (c *ProjectCache) UpdateProject(ctx context.Context, id string, fn func(*domain.Project) error) (domain.Project, error) {
	p, err := c.source.UpdateProject(ctx, id, fn)
	if err != nil {
		c.evict(id)
		return p, err
	}
	c.store(p)
	return p, nil
}

// ListProjects always reads the source; concurrent callers share one load.
func (c *ProjectCache) ListProjects(ctx context.Context) ([]domain.Project, error) {
	result, err, _ := c.sf.Do("\x00list", func() (interface{}, error) {
		return c.source.ListProjects(ctx)
	})
	if err != nil {
		return nil, err
	}
	ps := result.([]domain.Project)
	out := make([]domain.Project, len(ps))
	for i, p := range ps {
		out[i] = p.Clone()
	}
	return out, nil
}

func (c *ProjectCache) lookup(id string) (domain.Project, bool) {
	now := c.clock()
	c.mu.RLock()
	defer c.mu.RUnlock()
	if entry, ok := c.cache[id]; ok && entry.expiresAt.After(now) {
		return entry.project.Clone(), true
	}
	return domain.Project{}, false
}

func (c *ProjectCache) store(p domain.Project) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[p.ID] = cachedProject{
		project:   p.Clone(),
		expiresAt: c.clock().Add(c.ttlWithJitterLocked()),
	}
}

func (c *ProjectCache) evict(id string) {
	c.mu.Lock()
	delete(c.cache, id)
	c.mu.Unlock()
}

func (c *ProjectCache) ttlWithJitterLocked() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// up to 10% jitter spreads expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
