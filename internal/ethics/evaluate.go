package ethics

import (
	"fmt"

	"raise-service/internal/domain"
)

// Step is one question visited during a walk. Answer is the zero Value
// (serialised as null) when the caller never answered that node.
type Step struct {
	Node   string       `json:"node"`
	Answer domain.Value `json:"answer"`
}

// Evaluation is the outcome of walking a full answer set. When Complete is
// false the walk stopped before a terminal and the terminal fields are empty.
type Evaluation struct {
	Complete           bool              `json:"complete"`
	TerminalKey        string            `json:"terminal_key,omitempty"`
	RiskLevel          RiskLevel         `json:"risk_level,omitempty"`
	Title              string            `json:"title,omitempty"`
	Summary            string            `json:"summary,omitempty"`
	SafePath           *SafePath         `json:"safe_path,omitempty"`
	Considerations     []Consideration   `json:"considerations,omitempty"`
	Templates          []string          `json:"templates,omitempty"`
	Path               []Step            `json:"path"`
	AvailableTemplates []TemplateSummary `json:"available_templates"`
}

// Evaluate walks answers from the start node. Options are matched in
// declaration order using strict Value equality; the first match wins. A
// missing or unmatched answer halts the walk and yields an incomplete result.
func (g *Graph) Evaluate(answers domain.Answers) Evaluation {
	current := g.start
	var path []Step

	for {
		q, ok := g.questions[current]
		if !ok {
			break
		}
		answer := answers[current]
		path = append(path, Step{Node: current, Answer: answer})

		next := ""
		if opt, found := q.match(answer); found {
			next = opt.Next
		}
		current = next
	}

	result := Evaluation{
		Path:               path,
		AvailableTemplates: []TemplateSummary{},
	}
	t, ok := g.terminals[current]
	if !ok {
		return result
	}
	t = t.clone()
	result.Complete = true
	result.TerminalKey = t.Key
	result.RiskLevel = t.RiskLevel
	result.Title = t.Title
	result.Summary = t.Summary
	result.SafePath = t.SafePath
	result.Considerations = t.Considerations
	result.Templates = t.Templates
	for _, ref := range t.Templates {
		if tpl, ok := g.templates[ref]; ok {
			result.AvailableTemplates = append(result.AvailableTemplates, tpl.Summary())
		}
	}
	return result
}

// Next performs a single transition. ok is false when no option of the node
// matches answer.
func (g *Graph) Next(key string, answer domain.Value) (next string, kind NodeKind, ok bool, err error) {
	q, found := g.questions[key]
	if !found {
		return "", KindUnknown, false, fmt.Errorf("%w: %q", domain.ErrNodeNotFound, key)
	}
	opt, matched := q.match(answer)
	if !matched {
		return "", KindUnknown, false, nil
	}
	return opt.Next, g.Kind(opt.Next), true, nil
}

// Label returns the label of the option matching answer on node key, or ""
// when either is unknown.
func (g *Graph) Label(key string, answer domain.Value) string {
	q, ok := g.questions[key]
	if !ok {
		return ""
	}
	if opt, ok := q.match(answer); ok {
		return opt.Label
	}
	return ""
}

func (q Question) match(answer domain.Value) (Option, bool) {
	if answer.IsZero() {
		return Option{}, false
	}
	for _, opt := range q.Options {
		if opt.Value.Equal(answer) {
			return opt, true
		}
	}
	return Option{}, false
}
