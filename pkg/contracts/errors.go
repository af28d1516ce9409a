package contracts

import (
	"fmt"
	"time"
)

// ValidationError rejects a malformed write: unknown action type, missing
// or malformed payload field, or an UNDO targeting a different finding.
// The write is never partially applied.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// NotFoundError rejects a write referencing a clause, finding, or decision
// that does not exist.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// AuthorizationError rejects a write the acting user may not perform:
// an escalation-lock violation or an unapproved escalation assignee.
type AuthorizationError struct {
	Reason string
}

func (e *AuthorizationError) Error() string { return e.Reason }

// ConflictWarning annotates (never rejects) a write whose caller last saw
// the clause before someone else modified it. The write always succeeds.
type ConflictWarning struct {
	ClauseID       string    `json:"clause_id"`
	CallerLastSeen time.Time `json:"caller_last_seen"`
	ModifiedAt     time.Time `json:"modified_at"`
	Message        string    `json:"message"`
}
