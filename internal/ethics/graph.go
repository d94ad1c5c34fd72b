// Package ethics implements the decision graph engine: a deterministic walk of
// answers through question nodes to a terminal risk classification, plus the
// document templates attached to terminals.
//
// A Graph is built once from a Definition, validated, and never mutated
// afterwards, so it is safe for unlimited concurrent readers.
package ethics

import (
	"errors"
	"fmt"
	"slices"

	"raise-service/internal/domain"
)

// ErrInvalidGraph wraps every reference-data defect found by NewGraph.
var ErrInvalidGraph = errors.New("invalid decision graph")

// NodeKind distinguishes question nodes from terminal leaves.
type NodeKind uint8

const (
	KindUnknown NodeKind = iota
	KindQuestion
	KindTerminal
)

func (k NodeKind) String() string {
	switch k {
	case KindQuestion:
		return "question"
	case KindTerminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// InputKind is how a question collects its answer.
type InputKind string

const (
	InputSelect  InputKind = "select"
	InputBoolean InputKind = "boolean"
)

// RiskLevel is ordered low < medium < high.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Rank orders risk levels; unknown levels rank 0.
func (r RiskLevel) Rank() int {
	switch r {
	case RiskLow:
		return 1
	case RiskMedium:
		return 2
	case RiskHigh:
		return 3
	}
	return 0
}

// Severity is ordered recommended < important < critical.
type Severity string

const (
	SeverityRecommended Severity = "recommended"
	SeverityImportant   Severity = "important"
	SeverityCritical    Severity = "critical"
)

func (s Severity) Rank() int {
	switch s {
	case SeverityRecommended:
		return 1
	case SeverityImportant:
		return 2
	case SeverityCritical:
		return 3
	}
	return 0
}

// Option is one answer choice; Next names the node it leads to.
type Option struct {
	Value domain.Value `json:"value" yaml:"value"`
	Label string       `json:"label" yaml:"label"`
	Next  string       `json:"next" yaml:"next"`
}

// Question is a non-terminal node of the graph.
type Question struct {
	Key      string    `json:"key" yaml:"key"`
	Prompt   string    `json:"question" yaml:"question"`
	HelpText string    `json:"help_text" yaml:"help_text"`
	Input    InputKind `json:"type" yaml:"type"`
	Options  []Option  `json:"options" yaml:"options"`
}

// Consideration is a piece of remediation guidance on a terminal.
type Consideration struct {
	Severity Severity `json:"severity" yaml:"severity"`
	Title    string   `json:"title" yaml:"title"`
	Guidance string   `json:"guidance" yaml:"guidance"`
}

// SafePathStep is one ordered step towards compliant use.
type SafePathStep struct {
	Step         int    `json:"step" yaml:"step"`
	Title        string `json:"title" yaml:"title"`
	Description  string `json:"description" yaml:"description"`
	Template     string `json:"template,omitempty" yaml:"template"`
	TimeEstimate string `json:"time_estimate,omitempty" yaml:"time_estimate"`
}

type SafePath struct {
	Title       string         `json:"title" yaml:"title"`
	Description string         `json:"description" yaml:"description"`
	Steps       []SafePathStep `json:"steps" yaml:"steps"`
}

// Terminal is a leaf carrying the risk classification.
type Terminal struct {
	Key            string          `json:"key" yaml:"key"`
	RiskLevel      RiskLevel       `json:"risk_level" yaml:"risk_level"`
	Title          string          `json:"title" yaml:"title"`
	Summary        string          `json:"summary" yaml:"summary"`
	SafePath       *SafePath       `json:"safe_path,omitempty" yaml:"safe_path"`
	Considerations []Consideration `json:"considerations" yaml:"considerations"`
	Templates      []string        `json:"templates" yaml:"templates"`
}

// Scenario is a research use case offered at the start of the walk.
type Scenario struct {
	Key         string `json:"key" yaml:"key"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Category    string `json:"category" yaml:"category"`
}

// Definition is the raw reference data a Graph is built from.
type Definition struct {
	Start     string               `yaml:"start"`
	Scenarios []Scenario           `yaml:"scenarios"`
	Questions []Question           `yaml:"questions"`
	Terminals []Terminal           `yaml:"terminals"`
	Templates []TemplateDefinition `yaml:"templates"`
}

// Graph is the immutable, validated decision graph.
type Graph struct {
	start         string
	questionOrder []string
	terminalOrder []string
	questions     map[string]Question
	terminals     map[string]Terminal
	templates     map[string]*Template
	templateOrder []string
	scenarios     []Scenario
}

// NewGraph validates def and builds the graph. All defects are reported
// together, wrapped in ErrInvalidGraph.
func NewGraph(def Definition) (*Graph, error) {
	g := &Graph{
		start:     def.Start,
		questions: make(map[string]Question, len(def.Questions)),
		terminals: make(map[string]Terminal, len(def.Terminals)),
		templates: make(map[string]*Template, len(def.Templates)),
		scenarios: slices.Clone(def.Scenarios),
	}

	var errs []error
	for _, q := range def.Questions {
		if q.Key == "" {
			errs = append(errs, errors.New("question with empty key"))
			continue
		}
		if _, dup := g.questions[q.Key]; dup {
			errs = append(errs, fmt.Errorf("duplicate question %q", q.Key))
			continue
		}
		q.Options = slices.Clone(q.Options)
		g.questions[q.Key] = q
		g.questionOrder = append(g.questionOrder, q.Key)
	}
	for _, t := range def.Terminals {
		if t.Key == "" {
			errs = append(errs, errors.New("terminal with empty key"))
			continue
		}
		if _, dup := g.terminals[t.Key]; dup {
			errs = append(errs, fmt.Errorf("duplicate terminal %q", t.Key))
			continue
		}
		if _, clash := g.questions[t.Key]; clash {
			errs = append(errs, fmt.Errorf("key %q is both a question and a terminal", t.Key))
			continue
		}
		t.Considerations = slices.Clone(t.Considerations)
		t.Templates = slices.Clone(t.Templates)
		g.terminals[t.Key] = t
		g.terminalOrder = append(g.terminalOrder, t.Key)
	}
	for _, td := range def.Templates {
		if _, dup := g.templates[td.Key]; dup {
			errs = append(errs, fmt.Errorf("duplicate template %q", td.Key))
			continue
		}
		tpl := compileTemplate(td)
		g.templates[td.Key] = tpl
		g.templateOrder = append(g.templateOrder, td.Key)
	}

	if _, ok := g.questions[g.start]; !ok {
		errs = append(errs, fmt.Errorf("start node %q is not a question", g.start))
	}
	errs = append(errs, g.checkQuestions()...)
	errs = append(errs, g.checkTerminals()...)
	if err := g.checkAcyclic(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidGraph, errors.Join(errs...))
	}
	return g, nil
}

func (g *Graph) checkQuestions() []error {
	var errs []error
	for _, key := range g.questionOrder {
		q := g.questions[key]
		if len(q.Options) == 0 {
			errs = append(errs, fmt.Errorf("question %q has no options", key))
		}
		if q.Input != InputSelect && q.Input != InputBoolean {
			errs = append(errs, fmt.Errorf("question %q has unknown input type %q", key, q.Input))
		}
		for i, opt := range q.Options {
			if opt.Value.IsZero() {
				errs = append(errs, fmt.Errorf("question %q option %d has no value", key, i))
			}
			if q.Input == InputBoolean && opt.Value.Kind() != domain.KindBool {
				errs = append(errs, fmt.Errorf("boolean question %q option %d is %s", key, i, opt.Value.Kind()))
			}
			for _, prev := range q.Options[:i] {
				if prev.Value.Equal(opt.Value) {
					errs = append(errs, fmt.Errorf("question %q repeats option value %s", key, opt.Value))
				}
			}
			if g.Kind(opt.Next) == KindUnknown {
				errs = append(errs, fmt.Errorf("question %q option %s points to missing node %q", key, opt.Value, opt.Next))
			}
		}
	}
	return errs
}

func (g *Graph) checkTerminals() []error {
	var errs []error
	for _, key := range g.terminalOrder {
		t := g.terminals[key]
		if t.RiskLevel.Rank() == 0 {
			errs = append(errs, fmt.Errorf("terminal %q has unknown risk level %q", key, t.RiskLevel))
		}
		for _, c := range t.Considerations {
			if c.Severity.Rank() == 0 {
				errs = append(errs, fmt.Errorf("terminal %q consideration %q has unknown severity %q", key, c.Title, c.Severity))
			}
		}
	}
	return errs
}

// checkAcyclic runs a three-colour DFS from every question node.
func (g *Graph) checkAcyclic() error {
	const (
		white = iota
		grey
		black
	)
	colour := make(map[string]int, len(g.questions))
	var visit func(key string) error
	visit = func(key string) error {
		if _, ok := g.questions[key]; !ok {
			return nil
		}
		switch colour[key] {
		case grey:
			return fmt.Errorf("cycle through %q", key)
		case black:
			return nil
		}
		colour[key] = grey
		for _, opt := range g.questions[key].Options {
			if err := visit(opt.Next); err != nil {
				return err
			}
		}
		colour[key] = black
		return nil
	}
	for _, key := range g.questionOrder {
		if colour[key] == white {
			if err := visit(key); err != nil {
				return err
			}
		}
	}
	return nil
}

// Kind reports which namespace key belongs to.
func (g *Graph) Kind(key string) NodeKind {
	if _, ok := g.questions[key]; ok {
		return KindQuestion
	}
	if _, ok := g.terminals[key]; ok {
		return KindTerminal
	}
	return KindUnknown
}

// StartKey is the designated first question.
func (g *Graph) StartKey() string { return g.start }

// Start returns the first question.
func (g *Graph) Start() Question {
	return g.questions[g.start].clone()
}

// Node returns the question node for key.
func (g *Graph) Node(key string) (Question, error) {
	q, ok := g.questions[key]
	if !ok {
		return Question{}, fmt.Errorf("%w: %q", domain.ErrNodeNotFound, key)
	}
	return q.clone(), nil
}

// Terminal returns the terminal node for key.
func (g *Graph) Terminal(key string) (Terminal, error) {
	t, ok := g.terminals[key]
	if !ok {
		return Terminal{}, fmt.Errorf("%w: %q", domain.ErrNodeNotFound, key)
	}
	return t.clone(), nil
}

// Questions lists question nodes in declaration order.
func (g *Graph) Questions() []Question {
	out := make([]Question, 0, len(g.questionOrder))
	for _, key := range g.questionOrder {
		out = append(out, g.questions[key].clone())
	}
	return out
}

// Terminals lists terminal nodes in declaration order.
func (g *Graph) Terminals() []Terminal {
	out := make([]Terminal, 0, len(g.terminalOrder))
	for _, key := range g.terminalOrder {
		out = append(out, g.terminals[key].clone())
	}
	return out
}

// Scenarios lists the research scenarios.
func (g *Graph) Scenarios() []Scenario {
	return slices.Clone(g.scenarios)
}

// DanglingTemplates lists terminal template references with no template.
// They are dropped at evaluation time, so they are reported but not rejected.
func (g *Graph) DanglingTemplates() []string {
	var out []string
	for _, key := range g.terminalOrder {
		for _, ref := range g.terminals[key].Templates {
			if _, ok := g.templates[ref]; !ok {
				out = append(out, key+"->"+ref)
			}
		}
	}
	return out
}

func (q Question) clone() Question {
	q.Options = slices.Clone(q.Options)
	return q
}

func (t Terminal) clone() Terminal {
	t.Considerations = slices.Clone(t.Considerations)
	t.Templates = slices.Clone(t.Templates)
	if t.SafePath != nil {
		sp := *t.SafePath
		sp.Steps = slices.Clone(sp.Steps)
		t.SafePath = &sp
	}
	return t
}
