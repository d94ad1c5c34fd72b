package domain

import (
	"slices"
	"time"
)

// ConsentStatus tracks a participant's research consent.
type ConsentStatus string

const (
	ConsentConsented ConsentStatus = "consented"
	ConsentDeclined  ConsentStatus = "declined"
	ConsentWithdrawn ConsentStatus = "withdrawn"
)

// Consent records research participation consent for IRB compliance.
type Consent struct {
	ParticipantCode         string        `json:"participant_code"`
	Status                  ConsentStatus `json:"status"`
	ConsentToDataCollection bool          `json:"consent_to_data_collection"`
	ConsentToLongitudinal   bool          `json:"consent_to_longitudinal"`
	Role                    string        `json:"role,omitempty"`
	DepartmentCategory      string        `json:"department_category,omitempty"`
	ConsentedAt             time.Time     `json:"consented_at"`
	WithdrawnAt             *time.Time    `json:"withdrawn_at,omitempty"`
}

// Response is a single answer recorded during a traversal session.
type Response struct {
	NodeKey     string    `json:"node_key"`
	AnswerValue string    `json:"answer_value"`
	AnswerLabel string    `json:"answer_label,omitempty"`
	Order       int       `json:"response_order"`
	RespondedAt time.Time `json:"responded_at"`
}

// TraversalSession is one walk of a user through the decision graph.
type TraversalSession struct {
	Code            string     `json:"session_code"`
	ParticipantCode string     `json:"participant_code,omitempty"`
	InitialScenario string     `json:"initial_scenario,omitempty"`
	TerminalNode    string     `json:"terminal_node,omitempty"`
	RiskLevel       string     `json:"risk_level,omitempty"`
	StartedAt       time.Time  `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	IsComplete      bool       `json:"is_complete"`
	Responses       []Response `json:"responses"`
}

// Checkpoint is a compliance task generated for a project.
type Checkpoint struct {
	ID          string     `json:"id" yaml:"id"`
	Label       string     `json:"label" yaml:"label"`
	Category    string     `json:"category" yaml:"category"`
	AssignedTo  string     `json:"assigned_to" yaml:"assigned_to"`
	What        string     `json:"what" yaml:"what"`
	Why         string     `json:"why" yaml:"why"`
	How         string     `json:"how" yaml:"how"`
	Completed   bool       `json:"completed" yaml:"-"`
	CompletedAt *time.Time `json:"completed_at,omitempty" yaml:"-"`
}

// Decision is an append-only audit entry logged against a checkpoint.
type Decision struct {
	ID          string    `json:"id"`
	Checkpoint  string    `json:"checkpoint"`
	Description string    `json:"description"`
	Notes       string    `json:"notes,omitempty"`
	ProofType   string    `json:"proof_type,omitempty"`
	ProofValue  string    `json:"proof_value,omitempty"`
	LoggedAt    time.Time `json:"logged_at"`
}

// Project is a compliance project for one AI use case.
type Project struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	AIUseCase   string       `json:"ai_use_case"`
	Status      string       `json:"status"`
	CreatedAt   time.Time    `json:"created_at"`
	Checkpoints []Checkpoint `json:"checkpoints"`
	Decisions   []Decision   `json:"decisions"`
}

// Checkpoint returns a pointer to the checkpoint with the given id.
func (p *Project) Checkpoint(id string) *Checkpoint {
	for i := range p.Checkpoints {
		if p.Checkpoints[i].ID == id {
			return &p.Checkpoints[i]
		}
	}
	return nil
}

// Clone returns a copy that shares no slices or timestamps with p.
func (p Project) Clone() Project {
	p.Checkpoints = slices.Clone(p.Checkpoints)
	for i := range p.Checkpoints {
		if at := p.Checkpoints[i].CompletedAt; at != nil {
			c := *at
			p.Checkpoints[i].CompletedAt = &c
		}
	}
	p.Decisions = slices.Clone(p.Decisions)
	return p
}
