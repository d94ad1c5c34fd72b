package ethics

import (
	"fmt"
	"strings"
)

// Mermaid renders the graph as a Mermaid flowchart. Questions are drawn as
// input parallelograms, the start node as a circle and terminals as rounded
// boxes coloured by risk. When path is non-empty the visited nodes and the
// reached terminal are highlighted.
func (g *Graph) Mermaid(path []Step, reached string) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, key := range g.questionOrder {
		q := g.questions[key]
		opener, closer := "[/", "/]"
		if key == g.start {
			opener, closer = "((", "))"
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", mermaidID(key), opener, key, closer)
		for _, opt := range q.Options {
			label := strings.ReplaceAll(opt.Value.Text(), "\"", "'")
			fmt.Fprintf(&sb, "    %s -- \"%s\" --> %s\n", mermaidID(key), label, mermaidID(opt.Next))
		}
	}
	for _, key := range g.terminalOrder {
		t := g.terminals[key]
		fmt.Fprintf(&sb, "    %s(\"%s\")\n", mermaidID(key), key)
		fmt.Fprintf(&sb, "    class %s risk_%s;\n", mermaidID(key), t.RiskLevel)
	}

	sb.WriteString("\n    classDef risk_low fill:#dcfce7,stroke:#16a34a,color:#000;\n")
	sb.WriteString("    classDef risk_medium fill:#fef9c3,stroke:#ca8a04,color:#000;\n")
	sb.WriteString("    classDef risk_high fill:#fee2e2,stroke:#dc2626,color:#000;\n")

	if len(path) > 0 {
		sb.WriteString("\n    %% Path overlay\n")
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current stroke:#fbc02d,stroke-width:4px;\n")
		seen := make(map[string]bool, len(path))
		for _, step := range path {
			if seen[step.Node] {
				continue
			}
			seen[step.Node] = true
			fmt.Fprintf(&sb, "    class %s visited;\n", mermaidID(step.Node))
		}
		if reached != "" {
			fmt.Fprintf(&sb, "    class %s current;\n", mermaidID(reached))
		}
	}
	return sb.String()
}

func mermaidID(key string) string {
	r := strings.NewReplacer(".", "_", "-", "_", "/", "_", "\\", "_")
	return r.Replace(key)
}
