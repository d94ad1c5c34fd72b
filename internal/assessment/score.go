package assessment

import (
	"math"

	"raise-service/internal/domain"
)

// Readiness verdicts and their colour tags.
const (
	ReadinessWellPrepared = "Well Prepared"
	ReadinessModerateGaps = "Moderate Gaps"
	ReadinessSignificant  = "Significant Training Needed"

	ColorGreen  = "green"
	ColorYellow = "yellow"
	ColorRed    = "red"

	wellPreparedAt = 80
	moderateAt     = 60
)

const (
	overconfidenceMessage  = "Your self-assessment suggests strong confidence, but knowledge checks indicate gaps. This is common - consider targeted training."
	underconfidenceMessage = "You rated yourself lower than your actual knowledge demonstrates. You may be more prepared than you think."
)

// Thresholds configure the self-perception comparison.
type Thresholds struct {
	// A self rating >= OverconfidentSelf with overall < OverconfidentBelow is overconfidence.
	OverconfidentSelf  int64
	OverconfidentBelow int
	// A self rating <= UnderconfidentSelf with overall >= UnderconfidentAtLeast is underconfidence.
	UnderconfidentSelf    int64
	UnderconfidentAtLeast int
}

// DefaultThresholds are the editorial defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		OverconfidentSelf:     4,
		OverconfidentBelow:    60,
		UnderconfidentSelf:    2,
		UnderconfidentAtLeast: 80,
	}
}

type Gap struct {
	Category    string `json:"category"`
	Question    string `json:"question"`
	Explanation string `json:"explanation"`
}

type CategoryScore struct {
	Correct    int `json:"correct"`
	Total      int `json:"total"`
	Percentage int `json:"percentage"`
}

// Result is the graded assessment. Overall, readiness and self perception
// are absent when nothing gradable (or no self rating) was answered.
type Result struct {
	KnowledgeScore      int                      `json:"knowledge_score"`
	KnowledgeTotal      int                      `json:"knowledge_total"`
	KnowledgePercentage int                      `json:"knowledge_percentage"`
	ScenarioScore       int                      `json:"scenario_score"`
	ScenarioTotal       int                      `json:"scenario_total"`
	ScenarioPercentage  int                      `json:"scenario_percentage"`
	SelfPerception      *int64                   `json:"self_perception,omitempty"`
	OverallPercentage   *int                     `json:"overall_percentage,omitempty"`
	ReadinessLevel      string                   `json:"readiness_level,omitempty"`
	ReadinessColor      string                   `json:"readiness_color,omitempty"`
	PerceptionGap       *string                  `json:"perception_gap"`
	CategoryScores      map[string]CategoryScore `json:"category_scores"`
	Gaps                []Gap                    `json:"gaps"`
	Strengths           []string                 `json:"strengths"`
}

// Scorer grades answer sets against a Bank.
type Scorer struct {
	bank       *Bank
	thresholds Thresholds
}

type ScorerOption func(*Scorer)

func WithThresholds(t Thresholds) ScorerOption {
	return func(s *Scorer) { s.thresholds = t }
}

func NewScorer(bank *Bank, opts ...ScorerOption) *Scorer {
	s := &Scorer{bank: bank, thresholds: DefaultThresholds()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Bank exposes the question bank the scorer grades against.
func (s *Scorer) Bank() *Bank { return s.bank }

// Score grades answers in a single pass over the bank. Questions without an
// answer are skipped; behavioural questions are informational only.
func (s *Scorer) Score(answers domain.Answers) Result {
	res := Result{
		CategoryScores: map[string]CategoryScore{},
		Gaps:           []Gap{},
		Strengths:      []string{},
	}

	for _, q := range s.bank.questions {
		answer, ok := answers[q.ID]
		if !ok {
			continue
		}

		switch q.Type {
		case TypeKnowledge, TypeScenario:
			correct := answer.Equal(s.bank.key[q.ID])
			cat := res.CategoryScores[q.Category]
			cat.Total++
			if q.Type == TypeKnowledge {
				res.KnowledgeTotal++
			} else {
				res.ScenarioTotal++
			}
			if correct {
				cat.Correct++
				if q.Type == TypeKnowledge {
					res.KnowledgeScore++
				} else {
					res.ScenarioScore++
					res.Strengths = append(res.Strengths, q.Category)
				}
			} else {
				res.Gaps = append(res.Gaps, Gap{Category: q.Category, Question: q.Prompt, Explanation: q.Explanation})
			}
			res.CategoryScores[q.Category] = cat
		case TypeSelfReport:
			if v, ok := answer.AsInt(); ok {
				res.SelfPerception = &v
			}
		}
	}

	res.KnowledgePercentage = percent(res.KnowledgeScore, res.KnowledgeTotal)
	res.ScenarioPercentage = percent(res.ScenarioScore, res.ScenarioTotal)
	for k, cat := range res.CategoryScores {
		cat.Percentage = percent(cat.Correct, cat.Total)
		res.CategoryScores[k] = cat
	}

	correct := res.KnowledgeScore + res.ScenarioScore
	total := res.KnowledgeTotal + res.ScenarioTotal
	if total > 0 {
		ratio := float64(correct) * 100 / float64(total)
		res.ReadinessLevel, res.ReadinessColor = readiness(ratio)
		overall := roundHalfUp(ratio)
		res.OverallPercentage = &overall
		res.PerceptionGap = s.perceptionGap(res.SelfPerception, overall)
	}
	return res
}

func (s *Scorer) perceptionGap(self *int64, overall int) *string {
	if self == nil {
		return nil
	}
	t := s.thresholds
	var msg string
	switch {
	case *self >= t.OverconfidentSelf && overall < t.OverconfidentBelow:
		msg = overconfidenceMessage
	case *self <= t.UnderconfidentSelf && overall >= t.UnderconfidentAtLeast:
		msg = underconfidenceMessage
	default:
		return nil
	}
	return &msg
}

func readiness(ratio float64) (string, string) {
	switch {
	case ratio >= wellPreparedAt:
		return ReadinessWellPrepared, ColorGreen
	case ratio >= moderateAt:
		return ReadinessModerateGaps, ColorYellow
	default:
		return ReadinessSignificant, ColorRed
	}
}

// percent is n/d as a whole percentage rounded half-up, or 0 when d is 0.
func percent(n, d int) int {
	if d == 0 {
		return 0
	}
	return roundHalfUp(float64(n) * 100 / float64(d))
}

func roundHalfUp(f float64) int {
	return int(math.Floor(f + 0.5))
}
