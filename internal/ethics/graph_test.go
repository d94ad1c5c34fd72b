package ethics

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"raise-service/internal/domain"
)

func testDefinition() Definition {
	return Definition{
		Start: "start",
		Scenarios: []Scenario{
			{Key: "survey", Name: "Survey analysis", Category: "research"},
		},
		Questions: []Question{
			{
				Key:    "start",
				Prompt: "What are you doing?",
				Input:  InputSelect,
				Options: []Option{
					{Value: domain.String("survey"), Label: "Survey analysis", Next: "consented"},
					{Value: domain.String("notes"), Label: "Personal notes", Next: "done_low"},
				},
			},
			{
				Key:    "consented",
				Prompt: "Did participants consent?",
				Input:  InputBoolean,
				Options: []Option{
					{Value: domain.Bool(true), Label: "Yes", Next: "done_low"},
					{Value: domain.Bool(false), Label: "No", Next: "done_high"},
				},
			},
		},
		Terminals: []Terminal{
			{
				Key:       "done_low",
				RiskLevel: RiskLow,
				Title:     "Low risk",
				Considerations: []Consideration{
					{Severity: SeverityRecommended, Title: "Keep notes"},
				},
				Templates: []string{"log"},
			},
			{
				Key:       "done_high",
				RiskLevel: RiskHigh,
				Title:     "High risk",
				SafePath: &SafePath{
					Title: "Get consent",
					Steps: []SafePathStep{{Step: 1, Title: "Amend protocol", Template: "amendment"}},
				},
				Templates: []string{"amendment", "missing_one", "log"},
			},
		},
		Templates: []TemplateDefinition{
			{Key: "log", Name: "Usage log", Description: "Track usage", Content: "Tool: {{tool}}\nDate: {{date}}\nTool again: {{tool}}"},
			{Key: "amendment", Name: "Amendment", Content: "Protocol {{protocol_number}} amendment by {{pi_name}}."},
		},
	}
}

func mustGraph(t *testing.T, def Definition) *Graph {
	t.Helper()
	g, err := NewGraph(def)
	require.NoError(t, err)
	return g
}

func TestEvaluateEmptyAnswers(t *testing.T) {
	g := mustGraph(t, testDefinition())

	ev := g.Evaluate(domain.Answers{})

	assert.False(t, ev.Complete)
	require.Len(t, ev.Path, 1)
	assert.Equal(t, "start", ev.Path[0].Node)
	assert.True(t, ev.Path[0].Answer.IsZero())
	assert.Empty(t, ev.TerminalKey)
	assert.NotNil(t, ev.AvailableTemplates)
	assert.Empty(t, ev.AvailableTemplates)
}

func TestEvaluateReachesTerminal(t *testing.T) {
	g := mustGraph(t, testDefinition())

	ev := g.Evaluate(domain.Answers{
		"start":     domain.String("survey"),
		"consented": domain.Bool(false),
		"unrelated": domain.Int(7),
	})

	require.True(t, ev.Complete)
	assert.Equal(t, "done_high", ev.TerminalKey)
	assert.Equal(t, RiskHigh, ev.RiskLevel)
	assert.Equal(t, "High risk", ev.Title)
	require.NotNil(t, ev.SafePath)
	assert.Equal(t, "Amend protocol", ev.SafePath.Steps[0].Title)
	assert.Equal(t, []Step{
		{Node: "start", Answer: domain.String("survey")},
		{Node: "consented", Answer: domain.Bool(false)},
	}, ev.Path)
	assert.Equal(t, []string{"amendment", "missing_one", "log"}, ev.Templates)

	keys := make([]string, 0, len(ev.AvailableTemplates))
	for _, s := range ev.AvailableTemplates {
		keys = append(keys, s.Key)
	}
	assert.Equal(t, []string{"amendment", "log"}, keys, "dangling references are dropped")
}

func TestEvaluateIsIdempotent(t *testing.T) {
	g := mustGraph(t, testDefinition())
	answers := domain.Answers{"start": domain.String("survey"), "consented": domain.Bool(true)}

	first := g.Evaluate(answers)
	second := g.Evaluate(answers)
	assert.Equal(t, first, second)

	first.Templates[0] = "mutated"
	assert.Equal(t, "log", g.Evaluate(answers).Templates[0])
}

func TestEvaluateIsStrictAboutTypes(t *testing.T) {
	g := mustGraph(t, testDefinition())

	ev := g.Evaluate(domain.Answers{
		"start":     domain.String("survey"),
		"consented": domain.String("true"),
	})

	assert.False(t, ev.Complete)
	require.Len(t, ev.Path, 2)
	assert.Equal(t, "consented", ev.Path[1].Node)
	assert.Equal(t, domain.String("true"), ev.Path[1].Answer)
}

func TestEvaluateUnmatchedAnswerStops(t *testing.T) {
	g := mustGraph(t, testDefinition())

	ev := g.Evaluate(domain.Answers{"start": domain.String("other")})

	assert.False(t, ev.Complete)
	assert.Len(t, ev.Path, 1)
}

func TestEvaluateConcurrentReaders(t *testing.T) {
	g := mustGraph(t, testDefinition())
	answers := domain.Answers{"start": domain.String("survey"), "consented": domain.Bool(false)}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if ev := g.Evaluate(answers); ev.TerminalKey != "done_high" {
					t.Errorf("unexpected terminal %q", ev.TerminalKey)
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestNext(t *testing.T) {
	g := mustGraph(t, testDefinition())

	next, kind, ok, err := g.Next("start", domain.String("survey"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "consented", next)
	assert.Equal(t, KindQuestion, kind)

	next, kind, ok, err = g.Next("consented", domain.Bool(true))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "done_low", next)
	assert.Equal(t, KindTerminal, kind)

	_, _, ok, err = g.Next("consented", domain.Int(1))
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, _, err = g.Next("done_low", domain.Bool(true))
	assert.ErrorIs(t, err, domain.ErrNodeNotFound)
}

func TestLookups(t *testing.T) {
	g := mustGraph(t, testDefinition())

	assert.Equal(t, "start", g.StartKey())
	assert.Equal(t, "start", g.Start().Key)
	assert.Equal(t, KindQuestion, g.Kind("consented"))
	assert.Equal(t, KindTerminal, g.Kind("done_low"))
	assert.Equal(t, KindUnknown, g.Kind("nope"))
	assert.Equal(t, "terminal", KindTerminal.String())

	q, err := g.Node("consented")
	require.NoError(t, err)
	assert.Equal(t, InputBoolean, q.Input)

	_, err = g.Node("done_low")
	assert.True(t, domain.IsNotFound(err))
	_, err = g.Terminal("start")
	assert.True(t, domain.IsNotFound(err))

	term, err := g.Terminal("done_high")
	require.NoError(t, err)
	term.SafePath.Steps[0].Title = "changed"
	again, _ := g.Terminal("done_high")
	assert.Equal(t, "Amend protocol", again.SafePath.Steps[0].Title)

	assert.Len(t, g.Questions(), 2)
	assert.Len(t, g.Terminals(), 2)
	assert.Len(t, g.Scenarios(), 1)
	assert.Equal(t, []string{"done_high->missing_one"}, g.DanglingTemplates())

	assert.Equal(t, "No", g.Label("consented", domain.Bool(false)))
	assert.Empty(t, g.Label("consented", domain.String("false")))
	assert.Empty(t, g.Label("nope", domain.Bool(false)))
}

func TestNewGraphRejectsDefects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Definition)
		want   string
	}{
		{
			name: "cycle",
			mutate: func(d *Definition) {
				d.Questions[1].Options[0].Next = "start"
			},
			want: "cycle",
		},
		{
			name: "missing next",
			mutate: func(d *Definition) {
				d.Questions[0].Options[1].Next = "nowhere"
			},
			want: `missing node "nowhere"`,
		},
		{
			name: "question terminal clash",
			mutate: func(d *Definition) {
				d.Terminals[0].Key = "consented"
			},
			want: "both a question and a terminal",
		},
		{
			name: "start is not a question",
			mutate: func(d *Definition) {
				d.Start = "done_low"
			},
			want: "start node",
		},
		{
			name: "boolean question with string option",
			mutate: func(d *Definition) {
				d.Questions[1].Options[0].Value = domain.String("yes")
			},
			want: "boolean question",
		},
		{
			name: "repeated option value",
			mutate: func(d *Definition) {
				d.Questions[0].Options[1].Value = domain.String("survey")
			},
			want: "repeats option value",
		},
		{
			name: "unknown risk level",
			mutate: func(d *Definition) {
				d.Terminals[0].RiskLevel = "extreme"
			},
			want: "unknown risk level",
		},
		{
			name: "unknown severity",
			mutate: func(d *Definition) {
				d.Terminals[0].Considerations[0].Severity = "meh"
			},
			want: "unknown severity",
		},
		{
			name: "duplicate template",
			mutate: func(d *Definition) {
				d.Templates = append(d.Templates, d.Templates[0])
			},
			want: "duplicate template",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := testDefinition()
			tt.mutate(&def)

			_, err := NewGraph(def)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidGraph))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestMermaid(t *testing.T) {
	g := mustGraph(t, testDefinition())

	plain := g.Mermaid(nil, "")
	assert.True(t, strings.HasPrefix(plain, "graph TD\n"))
	assert.Contains(t, plain, `start(("start"))`)
	assert.Contains(t, plain, `consented -- "true" --> done_low`)
	assert.Contains(t, plain, "class done_high risk_high;")
	assert.NotContains(t, plain, "classDef visited")

	ev := g.Evaluate(domain.Answers{"start": domain.String("survey"), "consented": domain.Bool(true)})
	overlay := g.Mermaid(ev.Path, ev.TerminalKey)
	assert.Contains(t, overlay, "class start visited;")
	assert.Contains(t, overlay, "class consented visited;")
	assert.Contains(t, overlay, "class done_low current;")
}
