package app

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"raise-service/internal/assessment"
	"raise-service/internal/domain"
	"raise-service/internal/infra/memory"
	"raise-service/internal/reference"
)

var fixedNow = time.Date(2026, 10, 1, 9, 30, 0, 0, time.UTC)

func sequentialIDs() func() (string, error) {
	n := 0
	return func() (string, error) {
		n++
		return fmt.Sprintf("ID%03d", n), nil
	}
}

func testOptions() []Option {
	return []Option{
		WithClock(func() time.Time { return fixedNow }),
		WithIDGenerator(sequentialIDs()),
	}
}

func TestGuidanceServiceEvaluateRecordsMetrics(t *testing.T) {
	data := reference.MustLoad()
	metrics := NewMetrics(prometheus.NewRegistry())
	svc := NewGuidanceService(data.Graph, assessment.NewScorer(data.Bank), metrics, nil)

	ev := svc.Evaluate(domain.Answers{
		"start":         domain.String("grant_writing"),
		"funder_policy": domain.String("unknown"),
	})
	require.True(t, ev.Complete)
	assert.Equal(t, "terminal_grant", ev.TerminalKey)

	svc.Evaluate(domain.Answers{})

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.evaluations.WithLabelValues("terminal_grant", "medium")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.evaluations.WithLabelValues("incomplete", "none")))
}

func TestGuidanceServiceNode(t *testing.T) {
	data := reference.MustLoad()
	svc := NewGuidanceService(data.Graph, assessment.NewScorer(data.Bank), nil, nil)

	view, err := svc.Node("irb_status")
	require.NoError(t, err)
	assert.Equal(t, "question", view.Kind)
	require.NotNil(t, view.Question)
	assert.Nil(t, view.Terminal)

	view, err = svc.Node("terminal_low_risk")
	require.NoError(t, err)
	assert.Equal(t, "terminal", view.Kind)
	require.NotNil(t, view.Terminal)

	_, err = svc.Node("nowhere")
	assert.ErrorIs(t, err, domain.ErrNodeNotFound)
}

func TestGuidanceServiceQuestionsHideAnswerKey(t *testing.T) {
	data := reference.MustLoad()
	svc := NewGuidanceService(data.Graph, assessment.NewScorer(data.Bank), nil, nil)

	qs := svc.Questions()
	require.NotEmpty(t, qs.Questions)
	for _, q := range qs.Questions {
		assert.Nil(t, q.BestAnswer, q.ID)
		for _, opt := range q.Options {
			assert.False(t, opt.Correct, q.ID)
		}
	}

	res := svc.Score(domain.Answers{"ferpa_knowledge": domain.Int(1)})
	assert.Equal(t, 1, res.KnowledgeScore, "scoring still uses the key")
}

func TestGuidanceServiceRenderAndMermaid(t *testing.T) {
	data := reference.MustLoad()
	svc := NewGuidanceService(data.Graph, assessment.NewScorer(data.Bank), nil, nil)

	doc, err := svc.Render("disclosure_statement", map[string]string{"ai_tool": "ChatGPT"})
	require.NoError(t, err)
	assert.Contains(t, doc.Content, "**AI Tool(s) Used:** ChatGPT")
	assert.Contains(t, doc.Content, "{{ai_version}}")

	_, err = svc.Render("nope", nil)
	assert.True(t, domain.IsNotFound(err))

	chart := svc.Mermaid(domain.Answers{"start": domain.String("code_generation"), "code_context": domain.String("internal")})
	assert.Contains(t, chart, "class terminal_code_internal current;")
	assert.NotContains(t, svc.Mermaid(nil), "current;")
}

func newResearch(t *testing.T) (*ResearchService, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	return NewResearchService(store, store, reference.MustLoad().Graph, nil, testOptions()...), store
}

func TestSubmitAndWithdrawConsent(t *testing.T) {
	svc, _ := newResearch(t)
	ctx := context.Background()

	c, err := svc.SubmitConsent(ctx, ConsentInput{ConsentToDataCollection: true, Role: "faculty"})
	require.NoError(t, err)
	assert.Equal(t, "ID001", c.ParticipantCode)
	assert.Equal(t, domain.ConsentConsented, c.Status)
	assert.Equal(t, fixedNow, c.ConsentedAt)

	_, err = svc.SubmitConsent(ctx, ConsentInput{ParticipantCode: "ID001"})
	assert.ErrorIs(t, err, domain.ErrDuplicateRecord)

	w, err := svc.WithdrawConsent(ctx, "ID001")
	require.NoError(t, err)
	assert.Equal(t, domain.ConsentWithdrawn, w.Status)
	require.NotNil(t, w.WithdrawnAt)

	again, err := svc.WithdrawConsent(ctx, "ID001")
	require.NoError(t, err)
	assert.Equal(t, *w.WithdrawnAt, *again.WithdrawnAt)

	_, err = svc.WithdrawConsent(ctx, "nobody")
	assert.ErrorIs(t, err, domain.ErrConsentNotFound)
}

func TestStartSessionLinksOnlyActiveConsent(t *testing.T) {
	svc, _ := newResearch(t)
	ctx := context.Background()

	active, err := svc.SubmitConsent(ctx, ConsentInput{ConsentToDataCollection: true})
	require.NoError(t, err)
	declined, err := svc.SubmitConsent(ctx, ConsentInput{Declined: true})
	require.NoError(t, err)

	s1, err := svc.StartSession(ctx, active.ParticipantCode, "qualitative_analysis")
	require.NoError(t, err)
	assert.Equal(t, active.ParticipantCode, s1.ParticipantCode)
	assert.Equal(t, "qualitative_analysis", s1.InitialScenario)

	s2, err := svc.StartSession(ctx, declined.ParticipantCode, "")
	require.NoError(t, err)
	assert.Empty(t, s2.ParticipantCode)

	s3, err := svc.StartSession(ctx, "unknown", "")
	require.NoError(t, err)
	assert.Empty(t, s3.ParticipantCode)
}

func TestSessionResponsesAndCompletion(t *testing.T) {
	svc, _ := newResearch(t)
	ctx := context.Background()

	sess, err := svc.StartSession(ctx, "", "")
	require.NoError(t, err)

	r1, err := svc.RecordResponse(ctx, sess.Code, "start", domain.String("qualitative_analysis"), "")
	require.NoError(t, err)
	assert.Equal(t, 1, r1.Order)
	assert.Equal(t, "Analyze qualitative data (interviews, transcripts)", r1.AnswerLabel)

	r2, err := svc.RecordResponse(ctx, sess.Code, "human_subjects", domain.Bool(true), "custom label")
	require.NoError(t, err)
	assert.Equal(t, 2, r2.Order)
	assert.Equal(t, "true", r2.AnswerValue)
	assert.Equal(t, "custom label", r2.AnswerLabel)

	_, err = svc.RecordResponse(ctx, sess.Code, "terminal_high_risk", domain.Bool(true), "")
	assert.ErrorIs(t, err, domain.ErrNodeNotFound)

	_, err = svc.CompleteSession(ctx, sess.Code, "human_subjects")
	assert.ErrorIs(t, err, domain.ErrNodeNotFound)

	done, err := svc.CompleteSession(ctx, sess.Code, "terminal_high_risk")
	require.NoError(t, err)
	assert.True(t, done.IsComplete)
	assert.Equal(t, "high", done.RiskLevel)
	require.NotNil(t, done.CompletedAt)
	assert.Len(t, done.Responses, 2)

	_, err = svc.RecordResponse(ctx, sess.Code, "irb_status", domain.String("none"), "")
	assert.ErrorIs(t, err, domain.ErrSessionComplete)
	_, err = svc.CompleteSession(ctx, sess.Code, "terminal_high_risk")
	assert.ErrorIs(t, err, domain.ErrSessionComplete)

	_, err = svc.RecordResponse(ctx, "missing", "start", domain.String("x"), "")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func newProjects(t *testing.T) *ProjectService {
	t.Helper()
	return NewProjectService(memory.NewStore(), reference.MustLoad().Catalog, nil, testOptions()...)
}

func TestCreateProjectGeneratesCheckpoints(t *testing.T) {
	svc := newProjects(t)
	ctx := context.Background()

	p, err := svc.CreateProject(ctx, ProjectInput{Name: "Interview study", AIUseCase: "qualitative"})
	require.NoError(t, err)
	assert.Equal(t, ProjectActive, p.Status)

	var ids []string
	for _, cp := range p.Checkpoints {
		ids = append(ids, cp.ID)
		assert.False(t, cp.Completed)
	}
	assert.Equal(t, []string{"irb", "data_classification", "ai_disclosure"}, ids[:3])
	assert.Greater(t, len(ids), 3)

	other, err := svc.CreateProject(ctx, ProjectInput{Name: "Misc", AIUseCase: "something_else"})
	require.NoError(t, err)
	assert.Len(t, other.Checkpoints, 3)

	_, err = svc.CreateProject(ctx, ProjectInput{Name: "  "})
	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestLogDecisionCompletesCheckpoint(t *testing.T) {
	svc := newProjects(t)
	ctx := context.Background()

	p, err := svc.CreateProject(ctx, ProjectInput{Name: "Survey", AIUseCase: "other"})
	require.NoError(t, err)

	d, err := svc.LogDecision(ctx, p.ID, DecisionInput{Checkpoint: "irb", Description: "IRB confirmed exempt", ProofType: "url", ProofValue: "https://irb.example.edu/123"})
	require.NoError(t, err)
	assert.Equal(t, "irb", d.Checkpoint)

	_, err = svc.LogDecision(ctx, p.ID, DecisionInput{Checkpoint: "irb", Description: "Follow-up note"})
	require.NoError(t, err)

	got, err := svc.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, got.Decisions, 2)
	assert.True(t, got.Checkpoint("irb").Completed)
	assert.Equal(t, fixedNow, *got.Checkpoint("irb").CompletedAt)

	_, err = svc.LogDecision(ctx, p.ID, DecisionInput{Checkpoint: "nope", Description: "x"})
	assert.ErrorIs(t, err, domain.ErrCheckpointNotFound)
	_, err = svc.LogDecision(ctx, "missing", DecisionInput{Checkpoint: "irb", Description: "x"})
	assert.ErrorIs(t, err, domain.ErrProjectNotFound)

	report, err := svc.Report(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Completed)
	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 33, report.Percentage)
	assert.Equal(t, 2, report.Decisions)
}

func TestToggleCheckpointUpdatesStatus(t *testing.T) {
	svc := newProjects(t)
	ctx := context.Background()

	p, err := svc.CreateProject(ctx, ProjectInput{Name: "Tiny", AIUseCase: "other"})
	require.NoError(t, err)

	for _, cp := range p.Checkpoints {
		p, err = svc.ToggleCheckpoint(ctx, p.ID, cp.ID)
		require.NoError(t, err)
	}
	assert.Equal(t, ProjectComplete, p.Status)

	p, err = svc.ToggleCheckpoint(ctx, p.ID, "irb")
	require.NoError(t, err)
	assert.Equal(t, ProjectActive, p.Status)
	assert.False(t, p.Checkpoint("irb").Completed)
	assert.Nil(t, p.Checkpoint("irb").CompletedAt)

	list, err := svc.ListProjects(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.True(t, strings.HasPrefix(list[0].ID, "ID"))
}
