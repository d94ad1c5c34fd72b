package ethics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"raise-service/internal/domain"
)

func TestRenderWithoutValuesKeepsBody(t *testing.T) {
	g := mustGraph(t, testDefinition())

	doc, err := g.Render("log", nil)
	require.NoError(t, err)
	assert.Equal(t, "Usage log", doc.Name)
	assert.Equal(t, "Tool: {{tool}}\nDate: {{date}}\nTool again: {{tool}}", doc.Content)
}

func TestRenderReplacesEveryOccurrence(t *testing.T) {
	g := mustGraph(t, testDefinition())

	doc, err := g.Render("log", map[string]string{
		"tool":  "ChatGPT",
		"date":  "2026-10-01",
		"extra": "ignored",
	})
	require.NoError(t, err)
	assert.Equal(t, "Tool: ChatGPT\nDate: 2026-10-01\nTool again: ChatGPT", doc.Content)
	assert.NotContains(t, doc.Content, "{{")
}

func TestRenderPartialValues(t *testing.T) {
	g := mustGraph(t, testDefinition())

	doc, err := g.Render("amendment", map[string]string{"pi_name": "Dr. Okafor"})
	require.NoError(t, err)
	assert.Equal(t, "Protocol {{protocol_number}} amendment by Dr. Okafor.", doc.Content)
}

func TestRenderDoesNotRescanSubstitutions(t *testing.T) {
	g := mustGraph(t, testDefinition())

	doc, err := g.Render("amendment", map[string]string{
		"protocol_number": "{{pi_name}}",
		"pi_name":         "Lee",
	})
	require.NoError(t, err)
	assert.Equal(t, "Protocol {{pi_name}} amendment by Lee.", doc.Content)
}

func TestRenderUnknownTemplate(t *testing.T) {
	g := mustGraph(t, testDefinition())

	_, err := g.Render("missing_one", nil)
	assert.ErrorIs(t, err, domain.ErrTemplateNotFound)

	_, err = g.Template("missing_one")
	assert.True(t, domain.IsNotFound(err))
}

func TestTemplateDetail(t *testing.T) {
	g := mustGraph(t, testDefinition())

	tpl, err := g.Template("log")
	require.NoError(t, err)
	assert.Equal(t, []string{"tool", "date"}, tpl.Fields)
	assert.Equal(t, "Track usage", tpl.Description)

	list := g.Templates()
	require.Len(t, list, 2)
	assert.Equal(t, "log", list[0].Key)
	assert.Equal(t, "amendment", list[1].Key)
}
