// Package compliance generates project checkpoints from an AI use case and
// summarises checkpoint progress.
package compliance

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"raise-service/internal/domain"
)

// BaseSet is the checkpoint set every project receives.
const BaseSet = "base"

// UseCase maps a use-case tag onto the checkpoint sets it adds to the base set.
type UseCase struct {
	Key   string   `json:"key" yaml:"key"`
	Label string   `json:"label" yaml:"label"`
	Sets  []string `json:"-" yaml:"sets"`
}

type CatalogDefinition struct {
	Sets     map[string][]domain.Checkpoint `yaml:"sets"`
	UseCases []UseCase                      `yaml:"use_cases"`
}

// Catalog is the immutable checkpoint lookup table.
type Catalog struct {
	sets     map[string][]domain.Checkpoint
	useCases []UseCase
	byKey    map[string]UseCase
}

func NewCatalog(def CatalogDefinition) (*Catalog, error) {
	c := &Catalog{
		sets:  make(map[string][]domain.Checkpoint, len(def.Sets)),
		byKey: make(map[string]UseCase, len(def.UseCases)),
	}
	for name, cps := range def.Sets {
		c.sets[name] = slices.Clone(cps)
	}

	var errs []error
	if len(c.sets[BaseSet]) == 0 {
		errs = append(errs, errors.New("base checkpoint set is empty"))
	}
	for _, uc := range def.UseCases {
		if _, dup := c.byKey[uc.Key]; dup {
			errs = append(errs, fmt.Errorf("duplicate use case %q", uc.Key))
			continue
		}
		for _, set := range uc.Sets {
			if _, ok := c.sets[set]; !ok {
				errs = append(errs, fmt.Errorf("use case %q references unknown set %q", uc.Key, set))
			}
		}
		uc.Sets = slices.Clone(uc.Sets)
		c.byKey[uc.Key] = uc
		c.useCases = append(c.useCases, uc)
	}
	for _, uc := range c.useCases {
		seen := map[string]bool{}
		for _, cp := range c.Generate(uc.Key) {
			if seen[cp.ID] {
				errs = append(errs, fmt.Errorf("use case %q yields checkpoint %q twice", uc.Key, cp.ID))
			}
			seen[cp.ID] = true
		}
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid checkpoint catalog: %w", errors.Join(errs...))
	}
	return c, nil
}

// Generate returns fresh, incomplete checkpoints for useCase: the base set
// followed by the use case's additions. Unknown use cases get the base set.
func (c *Catalog) Generate(useCase string) []domain.Checkpoint {
	out := slices.Clone(c.sets[BaseSet])
	if uc, ok := c.byKey[useCase]; ok {
		for _, set := range uc.Sets {
			out = append(out, c.sets[set]...)
		}
	}
	for i := range out {
		out[i].Completed = false
		out[i].CompletedAt = nil
	}
	return out
}

func (c *Catalog) UseCases() []UseCase {
	return slices.Clone(c.useCases)
}

// CategoryProgress is checkpoint completion within one category.
type CategoryProgress struct {
	Category   string `json:"category"`
	Completed  int    `json:"completed"`
	Total      int    `json:"total"`
	Percentage int    `json:"percentage"`
}

// Report summarises a project's compliance state.
type Report struct {
	ProjectID  string              `json:"project_id"`
	Completed  int                 `json:"completed"`
	Total      int                 `json:"total"`
	Percentage int                 `json:"percentage"`
	Categories []CategoryProgress  `json:"categories"`
	Pending    []domain.Checkpoint `json:"pending"`
	Decisions  int                 `json:"decisions"`
}

// BuildReport groups checkpoints by category in first-seen order.
func BuildReport(p domain.Project) Report {
	r := Report{
		ProjectID:  p.ID,
		Total:      len(p.Checkpoints),
		Categories: []CategoryProgress{},
		Pending:    []domain.Checkpoint{},
		Decisions:  len(p.Decisions),
	}
	index := map[string]int{}
	for _, cp := range p.Checkpoints {
		i, ok := index[cp.Category]
		if !ok {
			i = len(r.Categories)
			index[cp.Category] = i
			r.Categories = append(r.Categories, CategoryProgress{Category: cp.Category})
		}
		r.Categories[i].Total++
		if cp.Completed {
			r.Completed++
			r.Categories[i].Completed++
		} else {
			r.Pending = append(r.Pending, cp)
		}
	}
	r.Percentage = Completion(p)
	for i := range r.Categories {
		r.Categories[i].Percentage = percent(r.Categories[i].Completed, r.Categories[i].Total)
	}
	return r
}

// Completion is the share of completed checkpoints, rounded half-up.
func Completion(p domain.Project) int {
	done := 0
	for _, cp := range p.Checkpoints {
		if cp.Completed {
			done++
		}
	}
	return percent(done, len(p.Checkpoints))
}

func percent(n, d int) int {
	if d == 0 {
		return 0
	}
	return int(math.Floor(float64(n)*100/float64(d) + 0.5))
}
