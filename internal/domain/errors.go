package domain

import (
	"errors"
	"strings"
)

var (
	// ErrNodeNotFound is returned for an unknown decision graph key.
	ErrNodeNotFound = errors.New("node not found")
	// ErrTemplateNotFound is returned for an unknown document template key.
	ErrTemplateNotFound = errors.New("template not found")
	// ErrConsentNotFound indicates no consent record exists for a participant code.
	ErrConsentNotFound = errors.New("consent not found")
	// ErrSessionNotFound is returned when a traversal session has not been started.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionComplete is returned when a response is recorded on a finished session.
	ErrSessionComplete = errors.New("session already complete")
	// ErrProjectNotFound indicates the project id is unknown.
	ErrProjectNotFound = errors.New("project not found")
	// ErrCheckpointNotFound indicates a checkpoint id is not part of the project.
	ErrCheckpointNotFound = errors.New("checkpoint not found")
	// ErrDuplicateRecord is returned when creating a record whose key already exists.
	ErrDuplicateRecord = errors.New("record already exists")
	// ErrInvalidValue is returned when an answer is not an integer, boolean or string scalar.
	ErrInvalidValue = errors.New("invalid answer value")
)

// ValidationError reports malformed input that was rejected before reaching an engine.
type ValidationError struct {
	Fields []string
	Err    error
}

func (e *ValidationError) Error() string {
	msg := "validation failed"
	if len(e.Fields) > 0 {
		msg += ": " + strings.Join(e.Fields, ", ")
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ValidationError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is one of the not-found sentinels.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNodeNotFound) ||
		errors.Is(err, ErrTemplateNotFound) ||
		errors.Is(err, ErrConsentNotFound) ||
		errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, ErrProjectNotFound) ||
		errors.Is(err, ErrCheckpointNotFound)
}
