package ethics

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"raise-service/internal/domain"
)

var placeholderPattern = regexp.MustCompile(`\{\{([A-Za-z0-9_]+)\}\}`)

// TemplateDefinition is a document template as declared in reference data.
type TemplateDefinition struct {
	Key         string `yaml:"key"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Content     string `yaml:"content"`
}

// Template is a compiled document template. Its body is split once into
// literal text and {{field}} placeholders.
type Template struct {
	Key         string   `json:"key"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Content     string   `json:"content"`
	Fields      []string `json:"fields"`

	segments []segment
}

type segment struct {
	text  string
	field string
}

// TemplateSummary is the listing view of a template.
type TemplateSummary struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Document is a rendered template.
type Document struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

func compileTemplate(def TemplateDefinition) *Template {
	tpl := &Template{
		Key:         def.Key,
		Name:        def.Name,
		Description: def.Description,
		Content:     def.Content,
		Fields:      []string{},
	}
	last := 0
	for _, loc := range placeholderPattern.FindAllStringSubmatchIndex(def.Content, -1) {
		if loc[0] > last {
			tpl.segments = append(tpl.segments, segment{text: def.Content[last:loc[0]]})
		}
		field := def.Content[loc[2]:loc[3]]
		tpl.segments = append(tpl.segments, segment{text: def.Content[loc[0]:loc[1]], field: field})
		if !slices.Contains(tpl.Fields, field) {
			tpl.Fields = append(tpl.Fields, field)
		}
		last = loc[1]
	}
	if last < len(def.Content) {
		tpl.segments = append(tpl.segments, segment{text: def.Content[last:]})
	}
	return tpl
}

func (t *Template) Summary() TemplateSummary {
	return TemplateSummary{Key: t.Key, Name: t.Name, Description: t.Description}
}

// render substitutes placeholders in a single pass. Placeholders without a
// value are kept verbatim, and substituted values are never re-scanned.
func (t *Template) render(values map[string]string) string {
	var sb strings.Builder
	sb.Grow(len(t.Content))
	for _, seg := range t.segments {
		if seg.field != "" {
			if v, ok := values[seg.field]; ok {
				sb.WriteString(v)
				continue
			}
		}
		sb.WriteString(seg.text)
	}
	return sb.String()
}

// Templates lists every template in declaration order.
func (g *Graph) Templates() []TemplateSummary {
	out := make([]TemplateSummary, 0, len(g.templateOrder))
	for _, key := range g.templateOrder {
		out = append(out, g.templates[key].Summary())
	}
	return out
}

// Template returns the full template for key.
func (g *Graph) Template(key string) (Template, error) {
	tpl, ok := g.templates[key]
	if !ok {
		return Template{}, fmt.Errorf("%w: %q", domain.ErrTemplateNotFound, key)
	}
	out := *tpl
	out.Fields = slices.Clone(tpl.Fields)
	out.segments = nil
	return out, nil
}

// Render fills the template's placeholders from values. Values for fields the
// template does not declare are ignored.
func (g *Graph) Render(key string, values map[string]string) (Document, error) {
	tpl, ok := g.templates[key]
	if !ok {
		return Document{}, fmt.Errorf("%w: %q", domain.ErrTemplateNotFound, key)
	}
	return Document{Name: tpl.Name, Content: tpl.render(values)}, nil
}
