package app

import (
	"github.com/charmbracelet/log"

	"raise-service/internal/assessment"
	"raise-service/internal/domain"
	"raise-service/internal/ethics"
	"raise-service/internal/logging"
)

// GuidanceService exposes the read-only engines: the decision graph, the
// document templates and the assessment scorer.
type GuidanceService struct {
	graph   *ethics.Graph
	scorer  *assessment.Scorer
	metrics *Metrics
	log     *log.Logger
}

func NewGuidanceService(graph *ethics.Graph, scorer *assessment.Scorer, metrics *Metrics, logger *log.Logger) *GuidanceService {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &GuidanceService{graph: graph, scorer: scorer, metrics: metrics, log: logger}
}

func (s *GuidanceService) Graph() *ethics.Graph { return s.graph }

func (s *GuidanceService) Start() ethics.Question {
	return s.graph.Start()
}

// Node returns the question or terminal behind key.
func (s *GuidanceService) Node(key string) (NodeView, error) {
	switch s.graph.Kind(key) {
	case ethics.KindQuestion:
		q, err := s.graph.Node(key)
		return NodeView{Kind: ethics.KindQuestion.String(), Question: &q}, err
	case ethics.KindTerminal:
		t, err := s.graph.Terminal(key)
		return NodeView{Kind: ethics.KindTerminal.String(), Terminal: &t}, err
	}
	_, err := s.graph.Node(key)
	return NodeView{}, err
}

// NodeView is a question or a terminal, tagged by Kind.
type NodeView struct {
	Kind     string           `json:"kind"`
	Question *ethics.Question `json:"question,omitempty"`
	Terminal *ethics.Terminal `json:"terminal,omitempty"`
}

func (s *GuidanceService) Scenarios() []ethics.Scenario {
	return s.graph.Scenarios()
}

func (s *GuidanceService) Evaluate(answers domain.Answers) ethics.Evaluation {
	ev := s.graph.Evaluate(answers)
	s.metrics.evaluation(ev.TerminalKey, string(ev.RiskLevel))
	if ev.Complete {
		s.log.Info("path evaluated", "terminal", ev.TerminalKey, "risk", ev.RiskLevel, "steps", len(ev.Path))
	} else {
		last := ev.Path[len(ev.Path)-1].Node
		s.log.Debug("path incomplete", "node", last, "steps", len(ev.Path))
	}
	return ev
}

// Next is a single transition used by the guided walk.
func (s *GuidanceService) Next(key string, answer domain.Value) (string, ethics.NodeKind, bool, error) {
	return s.graph.Next(key, answer)
}

// Mermaid renders the graph, highlighting the walk of answers when given.
func (s *GuidanceService) Mermaid(answers domain.Answers) string {
	if len(answers) == 0 {
		return s.graph.Mermaid(nil, "")
	}
	ev := s.graph.Evaluate(answers)
	return s.graph.Mermaid(ev.Path, ev.TerminalKey)
}

func (s *GuidanceService) Templates() []ethics.TemplateSummary {
	return s.graph.Templates()
}

func (s *GuidanceService) Template(key string) (ethics.Template, error) {
	return s.graph.Template(key)
}

func (s *GuidanceService) Render(key string, fields map[string]string) (ethics.Document, error) {
	doc, err := s.graph.Render(key, fields)
	if err != nil {
		return doc, err
	}
	s.metrics.document(key)
	s.log.Info("document rendered", "template", key, "fields", len(fields))
	return doc, nil
}

// AssessmentQuestions is the public view of the question bank.
type AssessmentQuestions struct {
	Questions  []assessment.Question `json:"questions"`
	Categories []assessment.Category `json:"categories"`
}

// Questions returns the bank without the answer key.
func (s *GuidanceService) Questions() AssessmentQuestions {
	qs := s.scorer.Bank().Questions()
	for i := range qs {
		qs[i].BestAnswer = nil
		for j := range qs[i].Options {
			qs[i].Options[j].Correct = false
		}
	}
	return AssessmentQuestions{Questions: qs, Categories: s.scorer.Bank().Categories()}
}

func (s *GuidanceService) Score(answers domain.Answers) assessment.Result {
	res := s.scorer.Score(answers)
	s.metrics.assessment(res.ReadinessLevel)
	s.log.Info("assessment scored", "readiness", res.ReadinessLevel, "gaps", len(res.Gaps))
	return res
}
