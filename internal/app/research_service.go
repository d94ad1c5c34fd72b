package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"raise-service/internal/domain"
	"raise-service/internal/ethics"
	"raise-service/internal/logging"
)

const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// Option configures the stateful services.
type Option func(*options)

type options struct {
	now    func() time.Time
	newID  func() (string, error)
	logger *log.Logger
}

// WithClock is for deterministic timestamps in tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithIDGenerator replaces nanoid code generation.
func WithIDGenerator(gen func() (string, error)) Option {
	return func(o *options) { o.newID = gen }
}

func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}

func buildOptions(opts []Option) options {
	o := options{
		now:    func() time.Time { return time.Now().UTC() },
		newID:  func() (string, error) { return gonanoid.Generate(codeAlphabet, 12) },
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// ConsentInput is a participant's consent submission.
type ConsentInput struct {
	ParticipantCode         string
	Declined                bool
	ConsentToDataCollection bool
	ConsentToLongitudinal   bool
	Role                    string
	DepartmentCategory      string
}

// ResearchService records consent and traversal sessions for research use.
type ResearchService struct {
	consents ConsentRepository
	sessions SessionRepository
	graph    *ethics.Graph
	metrics  *Metrics
	options
}

func NewResearchService(consents ConsentRepository, sessions SessionRepository, graph *ethics.Graph, metrics *Metrics, opts ...Option) *ResearchService {
	return &ResearchService{
		consents: consents,
		sessions: sessions,
		graph:    graph,
		metrics:  metrics,
		options:  buildOptions(opts),
	}
}

// SubmitConsent stores a new consent record, generating a participant code
// when none is supplied.
func (s *ResearchService) SubmitConsent(ctx context.Context, in ConsentInput) (domain.Consent, error) {
	code := in.ParticipantCode
	if code == "" {
		var err error
		if code, err = s.newID(); err != nil {
			return domain.Consent{}, fmt.Errorf("generate participant code: %w", err)
		}
	}
	status := domain.ConsentConsented
	if in.Declined {
		status = domain.ConsentDeclined
	}
	c := domain.Consent{
		ParticipantCode:         code,
		Status:                  status,
		ConsentToDataCollection: in.ConsentToDataCollection,
		ConsentToLongitudinal:   in.ConsentToLongitudinal,
		Role:                    in.Role,
		DepartmentCategory:      in.DepartmentCategory,
		ConsentedAt:             s.now(),
	}
	if err := s.consents.CreateConsent(ctx, c); err != nil {
		return domain.Consent{}, err
	}
	s.logger.Info("consent recorded", "participant", code, "status", status)
	return c, nil
}

func (s *ResearchService) GetConsent(ctx context.Context, code string) (domain.Consent, error) {
	return s.consents.GetConsent(ctx, code)
}

// WithdrawConsent marks the record withdrawn. Withdrawing twice keeps the
// first withdrawal time.
func (s *ResearchService) WithdrawConsent(ctx context.Context, code string) (domain.Consent, error) {
	c, err := s.consents.UpdateConsent(ctx, code, func(c *domain.Consent) error {
		if c.Status == domain.ConsentWithdrawn {
			return nil
		}
		now := s.now()
		c.Status = domain.ConsentWithdrawn
		c.WithdrawnAt = &now
		return nil
	})
	if err != nil {
		return c, err
	}
	s.logger.Info("consent withdrawn", "participant", code)
	return c, nil
}

// StartSession opens a traversal session. The participant link is kept only
// for an existing, active consent.
func (s *ResearchService) StartSession(ctx context.Context, participantCode, initialScenario string) (domain.TraversalSession, error) {
	code, err := s.newID()
	if err != nil {
		return domain.TraversalSession{}, fmt.Errorf("generate session code: %w", err)
	}

	linked := ""
	if participantCode != "" {
		c, err := s.consents.GetConsent(ctx, participantCode)
		switch {
		case err == nil && c.Status == domain.ConsentConsented:
			linked = participantCode
		case err != nil && !errors.Is(err, domain.ErrConsentNotFound):
			return domain.TraversalSession{}, err
		}
	}

	sess := domain.TraversalSession{
		Code:            code,
		ParticipantCode: linked,
		InitialScenario: initialScenario,
		StartedAt:       s.now(),
		Responses:       []domain.Response{},
	}
	if err := s.sessions.CreateSession(ctx, sess); err != nil {
		return domain.TraversalSession{}, err
	}
	s.metrics.session("started")
	s.logger.Info("session started", "session", code, "linked", linked != "")
	return sess, nil
}

// RecordResponse appends an answer to an open session. An empty label is
// resolved from the graph.
func (s *ResearchService) RecordResponse(ctx context.Context, code, nodeKey string, answer domain.Value, label string) (domain.Response, error) {
	if s.graph.Kind(nodeKey) != ethics.KindQuestion {
		return domain.Response{}, fmt.Errorf("%w: %q", domain.ErrNodeNotFound, nodeKey)
	}
	if label == "" {
		label = s.graph.Label(nodeKey, answer)
	}

	var resp domain.Response
	_, err := s.sessions.UpdateSession(ctx, code, func(sess *domain.TraversalSession) error {
		if sess.IsComplete {
			return domain.ErrSessionComplete
		}
		resp = domain.Response{
			NodeKey:     nodeKey,
			AnswerValue: answer.Text(),
			AnswerLabel: label,
			Order:       len(sess.Responses) + 1,
			RespondedAt: s.now(),
		}
		sess.Responses = append(sess.Responses, resp)
		return nil
	})
	if err != nil {
		return domain.Response{}, err
	}
	s.logger.Debug("response recorded", "session", code, "node", nodeKey, "order", resp.Order)
	return resp, nil
}

// CompleteSession closes the session at terminalKey, copying its risk level.
func (s *ResearchService) CompleteSession(ctx context.Context, code, terminalKey string) (domain.TraversalSession, error) {
	t, err := s.graph.Terminal(terminalKey)
	if err != nil {
		return domain.TraversalSession{}, err
	}
	sess, err := s.sessions.UpdateSession(ctx, code, func(sess *domain.TraversalSession) error {
		if sess.IsComplete {
			return domain.ErrSessionComplete
		}
		now := s.now()
		sess.TerminalNode = t.Key
		sess.RiskLevel = string(t.RiskLevel)
		sess.CompletedAt = &now
		sess.IsComplete = true
		return nil
	})
	if err != nil {
		return sess, err
	}
	s.metrics.session("completed")
	s.logger.Info("session completed", "session", code, "terminal", t.Key, "risk", t.RiskLevel)
	return sess, nil
}

func (s *ResearchService) GetSession(ctx context.Context, code string) (domain.TraversalSession, error) {
	return s.sessions.GetSession(ctx, code)
}
