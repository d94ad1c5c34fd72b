package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"raise-service/internal/assessment"
	"raise-service/internal/config"
	"raise-service/internal/domain"
	"raise-service/internal/reference"
)

// NewEvaluateCmd walks the decision graph for a file of answers.
func NewEvaluateCmd() *cobra.Command {
	var answersPath string
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate a decision path and print the result as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := reference.Load()
			if err != nil {
				return err
			}
			answers, err := readAnswers(cmd.InOrStdin(), answersPath)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), data.Graph.Evaluate(answers))
		},
	}
	cmd.Flags().StringVar(&answersPath, "answers", "-", "JSON object of node answers (- for stdin)")
	return cmd
}

// NewScoreCmd grades a file of assessment answers.
func NewScoreCmd(configPath *string) *cobra.Command {
	var answersPath string
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score readiness assessment answers and print the result as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			data, err := reference.Load()
			if err != nil {
				return err
			}
			answers, err := readAnswers(cmd.InOrStdin(), answersPath)
			if err != nil {
				return err
			}
			scorer := assessment.NewScorer(data.Bank, assessment.WithThresholds(cfg.Assessment.Thresholds()))
			return printJSON(cmd.OutOrStdout(), scorer.Score(answers))
		},
	}
	cmd.Flags().StringVar(&answersPath, "answers", "-", "JSON object of question answers (- for stdin)")
	return cmd
}

// NewGraphCmd prints the decision graph as a Mermaid flowchart.
func NewGraphCmd() *cobra.Command {
	var pathFile string
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Print the decision graph as Mermaid, optionally highlighting a walk",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := reference.Load()
			if err != nil {
				return err
			}
			if pathFile == "" {
				_, err = fmt.Fprint(cmd.OutOrStdout(), data.Graph.Mermaid(nil, ""))
				return err
			}
			answers, err := readAnswers(cmd.InOrStdin(), pathFile)
			if err != nil {
				return err
			}
			ev := data.Graph.Evaluate(answers)
			_, err = fmt.Fprint(cmd.OutOrStdout(), data.Graph.Mermaid(ev.Path, ev.TerminalKey))
			return err
		},
	}
	cmd.Flags().StringVar(&pathFile, "path", "", "JSON answers whose walk is highlighted")
	return cmd
}

// NewRenderCmd fills a document template.
func NewRenderCmd() *cobra.Command {
	var (
		fieldsPath string
		pretty     bool
	)
	cmd := &cobra.Command{
		Use:   "render TEMPLATE",
		Short: "Render a document template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := reference.Load()
			if err != nil {
				return err
			}
			fields := map[string]string{}
			if fieldsPath != "" {
				if err := readJSON(cmd.InOrStdin(), fieldsPath, &fields); err != nil {
					return err
				}
			}
			doc, err := data.Graph.Render(args[0], fields)
			if err != nil {
				return err
			}
			out := doc.Content
			if pretty {
				r, err := glamour.NewTermRenderer(glamour.WithAutoStyle())
				if err != nil {
					return err
				}
				if out, err = r.Render(doc.Content); err != nil {
					return err
				}
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
			return err
		},
	}
	cmd.Flags().StringVar(&fieldsPath, "fields", "", "JSON object of placeholder values (- for stdin)")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "render markdown for the terminal")
	return cmd
}

// NewValidateCmd loads the embedded reference data and reports its size.
func NewValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the embedded reference data",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := reference.Load()
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "scenarios:  %d\n", len(data.Graph.Scenarios()))
			fmt.Fprintf(w, "questions:  %d\n", len(data.Graph.Questions()))
			fmt.Fprintf(w, "terminals:  %d\n", len(data.Graph.Terminals()))
			fmt.Fprintf(w, "templates:  %d\n", len(data.Graph.Templates()))
			fmt.Fprintf(w, "assessment: %d questions, %d categories\n", len(data.Bank.Questions()), len(data.Bank.Categories()))
			fmt.Fprintf(w, "use cases:  %d\n", len(data.Catalog.UseCases()))
			for _, ref := range data.Graph.DanglingTemplates() {
				fmt.Fprintf(w, "warning: template reference %s has no definition\n", ref)
			}
			return nil
		},
	}
}

func readAnswers(stdin io.Reader, path string) (domain.Answers, error) {
	answers := domain.Answers{}
	if err := readJSON(stdin, path, &answers); err != nil {
		return nil, err
	}
	return answers, nil
}

func readJSON(stdin io.Reader, path string, dst interface{}) error {
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}
	if err := json.NewDecoder(r).Decode(dst); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
