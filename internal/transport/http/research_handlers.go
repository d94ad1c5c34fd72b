package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"raise-service/internal/app"
	"raise-service/internal/domain"
)

type consentRequest struct {
	ParticipantCode         string `json:"participant_code" validate:"omitempty,max=64"`
	Status                  string `json:"status" validate:"omitempty,oneof=consented declined"`
	ConsentToDataCollection bool   `json:"consent_to_data_collection"`
	ConsentToLongitudinal   bool   `json:"consent_to_longitudinal"`
	Role                    string `json:"role" validate:"max=100"`
	DepartmentCategory      string `json:"department_category" validate:"max=100"`
}

type startSessionRequest struct {
	ParticipantCode string `json:"participant_code"`
	InitialScenario string `json:"initial_scenario"`
}

type responseRequest struct {
	SessionCode string       `json:"session_code" validate:"required"`
	NodeKey     string       `json:"node_key" validate:"required"`
	AnswerValue domain.Value `json:"answer_value"`
	AnswerLabel string       `json:"answer_label"`
}

type completeRequest struct {
	SessionCode  string `json:"session_code" validate:"required"`
	TerminalNode string `json:"terminal_node" validate:"required"`
}

func (a *api) submitConsent(w http.ResponseWriter, r *http.Request) {
	var req consentRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	c, err := a.research.SubmitConsent(r.Context(), app.ConsentInput{
		ParticipantCode:         req.ParticipantCode,
		Declined:                req.Status == string(domain.ConsentDeclined),
		ConsentToDataCollection: req.ConsentToDataCollection,
		ConsentToLongitudinal:   req.ConsentToLongitudinal,
		Role:                    req.Role,
		DepartmentCategory:      req.DepartmentCategory,
	})
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (a *api) getConsent(w http.ResponseWriter, r *http.Request) {
	c, err := a.research.GetConsent(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (a *api) withdrawConsent(w http.ResponseWriter, r *http.Request) {
	c, err := a.research.WithdrawConsent(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (a *api) startSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	sess, err := a.research.StartSession(r.Context(), req.ParticipantCode, req.InitialScenario)
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (a *api) recordResponse(w http.ResponseWriter, r *http.Request) {
	var req responseRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	if req.AnswerValue.IsZero() {
		writeError(w, r, a.logger, &domain.ValidationError{Fields: []string{"answer_value"}})
		return
	}
	resp, err := a.research.RecordResponse(r.Context(), req.SessionCode, req.NodeKey, req.AnswerValue, req.AnswerLabel)
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (a *api) completeSession(w http.ResponseWriter, r *http.Request) {
	var req completeRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	sess, err := a.research.CompleteSession(r.Context(), req.SessionCode, req.TerminalNode)
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (a *api) getSession(w http.ResponseWriter, r *http.Request) {
	sess, err := a.research.GetSession(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}
