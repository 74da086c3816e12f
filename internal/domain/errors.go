package domain

import (
	"fmt"
	"strings"
)

// ForbiddenError indicates the identity lacks the capability for Action.
type ForbiddenError struct {
	Action string
}

func (e ForbiddenError) Error() string {
	return fmt.Sprintf("not allowed to %s", e.Action)
}

// FieldIssue names one invalid field on one record.
type FieldIssue struct {
	Entity   string `json:"entity"`
	RecordID string `json:"record_id,omitempty"`
	Field    string `json:"field"`
	Message  string `json:"message"`
}

// ValidationError is returned for malformed input. It carries every issue found,
// not just the first.
type ValidationError struct {
	Issues []FieldIssue `json:"issues"`
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Issues) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(e.Issues))
	for _, is := range e.Issues {
		if is.RecordID != "" {
			parts = append(parts, fmt.Sprintf("%s %s: %s %s", is.Entity, is.RecordID, is.Field, is.Message))
		} else {
			parts = append(parts, fmt.Sprintf("%s: %s %s", is.Entity, is.Field, is.Message))
		}
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add appends an issue.
func (e *ValidationError) Add(entity, recordID, field, message string) {
	e.Issues = append(e.Issues, FieldIssue{Entity: entity, RecordID: recordID, Field: field, Message: message})
}

// Merge appends the issues of other, which may be nil.
func (e *ValidationError) Merge(other *ValidationError) {
	if other == nil {
		return
	}
	e.Issues = append(e.Issues, other.Issues...)
}

// OrNil returns nil when no issues were collected so callers can return it as an error.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Issues) == 0 {
		return nil
	}
	return e
}
