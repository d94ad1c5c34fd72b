// Package assessment grades assessment answers against a fixed question bank
// and derives a readiness verdict.
package assessment

import (
	"errors"
	"fmt"
	"slices"

	"raise-service/internal/domain"
)

// ErrInvalidBank wraps every defect found in a question bank definition.
var ErrInvalidBank = errors.New("invalid question bank")

// QuestionType selects how a question is scored.
type QuestionType string

const (
	TypeBehavioral QuestionType = "behavioral"
	TypeKnowledge  QuestionType = "knowledge"
	TypeScenario   QuestionType = "scenario"
	TypeSelfReport QuestionType = "self_report"
)

type Option struct {
	Value   domain.Value `json:"value" yaml:"value"`
	Label   string       `json:"label" yaml:"label"`
	Correct bool         `json:"correct,omitempty" yaml:"correct"`
}

type Question struct {
	ID          string        `json:"id" yaml:"id"`
	Type        QuestionType  `json:"type" yaml:"type"`
	Prompt      string        `json:"question" yaml:"question"`
	Category    string        `json:"category" yaml:"category"`
	Options     []Option      `json:"options" yaml:"options"`
	BestAnswer  *domain.Value `json:"best_answer,omitempty" yaml:"best_answer"`
	Explanation string        `json:"explanation,omitempty" yaml:"explanation"`
	ScoringNote string        `json:"scoring_note,omitempty" yaml:"scoring_note"`
}

type Category struct {
	Key         string `json:"key" yaml:"key"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
}

// BankDefinition is the raw reference data for a Bank.
type BankDefinition struct {
	Questions  []Question `yaml:"questions"`
	Categories []Category `yaml:"categories"`
}

// Bank is an immutable, validated question bank.
type Bank struct {
	questions  []Question
	categories []Category
	// answer key: the correct option value for knowledge questions and the
	// best answer for scenario questions.
	key map[string]domain.Value
}

// NewBank validates def: ids are unique, knowledge questions have exactly one
// correct option, and scenario best answers match exactly one option.
func NewBank(def BankDefinition) (*Bank, error) {
	b := &Bank{
		categories: slices.Clone(def.Categories),
		key:        make(map[string]domain.Value),
	}
	seen := make(map[string]bool, len(def.Questions))
	var errs []error
	for _, q := range def.Questions {
		if q.ID == "" || seen[q.ID] {
			errs = append(errs, fmt.Errorf("missing or duplicate question id %q", q.ID))
			continue
		}
		seen[q.ID] = true

		switch q.Type {
		case TypeKnowledge:
			var correct []domain.Value
			for _, opt := range q.Options {
				if opt.Correct {
					correct = append(correct, opt.Value)
				}
			}
			if len(correct) != 1 {
				errs = append(errs, fmt.Errorf("knowledge question %q has %d correct options", q.ID, len(correct)))
				continue
			}
			b.key[q.ID] = correct[0]
		case TypeScenario:
			if q.BestAnswer == nil {
				errs = append(errs, fmt.Errorf("scenario question %q has no best answer", q.ID))
				continue
			}
			matches := 0
			for _, opt := range q.Options {
				if opt.Value.Equal(*q.BestAnswer) {
					matches++
				}
			}
			if matches != 1 {
				errs = append(errs, fmt.Errorf("scenario question %q best answer matches %d options", q.ID, matches))
				continue
			}
			b.key[q.ID] = *q.BestAnswer
		case TypeBehavioral, TypeSelfReport:
		default:
			errs = append(errs, fmt.Errorf("question %q has unknown type %q", q.ID, q.Type))
			continue
		}
		b.questions = append(b.questions, q.clone())
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidBank, errors.Join(errs...))
	}
	return b, nil
}

// Questions returns the bank in declaration order.
func (b *Bank) Questions() []Question {
	out := make([]Question, len(b.questions))
	for i, q := range b.questions {
		out[i] = q.clone()
	}
	return out
}

func (b *Bank) Categories() []Category {
	return slices.Clone(b.categories)
}

func (q Question) clone() Question {
	q.Options = slices.Clone(q.Options)
	if q.BestAnswer != nil {
		v := *q.BestAnswer
		q.BestAnswer = &v
	}
	return q
}
