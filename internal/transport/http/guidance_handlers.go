package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"raise-service/internal/domain"
)

type answersRequest struct {
	Answers domain.Answers `json:"answers"`
}

type generateRequest struct {
	TemplateKey string            `json:"template_key" validate:"required"`
	Fields      map[string]string `json:"fields"`
}

func (a *api) ethicsStart(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.guidance.Start())
}

func (a *api) ethicsNode(w http.ResponseWriter, r *http.Request) {
	view, err := a.guidance.Node(chi.URLParam(r, "key"))
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *api) ethicsEvaluate(w http.ResponseWriter, r *http.Request) {
	var req answersRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, a.guidance.Evaluate(req.Answers))
}

func (a *api) ethicsScenarios(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.guidance.Scenarios())
}

func (a *api) ethicsGraph(w http.ResponseWriter, _ *http.Request) {
	writeMermaid(w, a.guidance.Mermaid(nil))
}

// ethicsGraphPath renders the flowchart with the walk for the posted answers
// highlighted.
func (a *api) ethicsGraphPath(w http.ResponseWriter, r *http.Request) {
	var req answersRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	writeMermaid(w, a.guidance.Mermaid(req.Answers))
}

func writeMermaid(w http.ResponseWriter, chart string) {
	w.Header().Set("Content-Type", "text/vnd.mermaid; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(chart))
}

func (a *api) templateList(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.guidance.Templates())
}

func (a *api) templateDetail(w http.ResponseWriter, r *http.Request) {
	tpl, err := a.guidance.Template(chi.URLParam(r, "key"))
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, tpl)
}

func (a *api) documentGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	doc, err := a.guidance.Render(req.TemplateKey, req.Fields)
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (a *api) assessmentQuestions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.guidance.Questions())
}

func (a *api) assessmentSubmit(w http.ResponseWriter, r *http.Request) {
	var req answersRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, a.guidance.Score(req.Answers))
}
