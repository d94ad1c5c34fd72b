package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"raise-service/internal/app"
)

type projectRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description"`
	AIUseCase   string `json:"ai_use_case" validate:"required"`
}

type decisionRequest struct {
	Checkpoint  string `json:"checkpoint" validate:"required"`
	Description string `json:"description" validate:"required"`
	Notes       string `json:"notes"`
	ProofType   string `json:"proof_type" validate:"omitempty,oneof=url file"`
	ProofValue  string `json:"proof_value"`
}

func (a *api) useCases(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.projects.UseCases())
}

func (a *api) listProjects(w http.ResponseWriter, r *http.Request) {
	list, err := a.projects.ListProjects(r.Context())
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *api) createProject(w http.ResponseWriter, r *http.Request) {
	var req projectRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	p, err := a.projects.CreateProject(r.Context(), app.ProjectInput{
		Name:        req.Name,
		Description: req.Description,
		AIUseCase:   req.AIUseCase,
	})
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (a *api) getProject(w http.ResponseWriter, r *http.Request) {
	p, err := a.projects.GetProject(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *api) toggleCheckpoint(w http.ResponseWriter, r *http.Request) {
	p, err := a.projects.ToggleCheckpoint(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "cp"))
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *api) logDecision(w http.ResponseWriter, r *http.Request) {
	var req decisionRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	d, err := a.projects.LogDecision(r.Context(), chi.URLParam(r, "id"), app.DecisionInput{
		Checkpoint:  req.Checkpoint,
		Description: req.Description,
		Notes:       req.Notes,
		ProofType:   req.ProofType,
		ProofValue:  req.ProofValue,
	})
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func (a *api) projectReport(w http.ResponseWriter, r *http.Request) {
	report, err := a.projects.Report(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
