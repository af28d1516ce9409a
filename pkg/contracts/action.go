package contracts

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ActionType is the closed set of reviewer actions recorded against a
// clause or finding.
type ActionType string

const (
	ActionAcceptDeviation ActionType = "ACCEPT_DEVIATION"
	ActionApplyFallback   ActionType = "APPLY_FALLBACK"
	ActionEditManual      ActionType = "EDIT_MANUAL"
	ActionEscalate        ActionType = "ESCALATE"
	ActionAddNote         ActionType = "ADD_NOTE"
	ActionUndo            ActionType = "UNDO"
	ActionRevert          ActionType = "REVERT"
)

// KnownAction reports whether t is a member of the closed action set.
func KnownAction(t ActionType) bool {
	switch t {
	case ActionAcceptDeviation, ActionApplyFallback, ActionEditManual,
		ActionEscalate, ActionAddNote, ActionUndo, ActionRevert:
		return true
	}
	return false
}

// TextBearing reports whether t carries replacement text that participates
// in effective-text replay.
func (t ActionType) TextBearing() bool {
	return t == ActionApplyFallback || t == ActionEditManual
}

// StatusBearing reports whether t determines a finding's status on replay.
func (t ActionType) StatusBearing() bool {
	switch t {
	case ActionAcceptDeviation, ActionApplyFallback, ActionEditManual, ActionEscalate:
		return true
	}
	return false
}

// Payload is the sealed per-action payload union. Each action type has
// exactly one payload shape; malformed payloads are rejected at the
// boundary, never carried as loose maps.
type Payload interface {
	Kind() ActionType
	Validate() error
}

// AcceptDeviationPayload records acceptance of a detected deviation as-is.
type AcceptDeviationPayload struct {
	Comment string `json:"comment,omitempty"`
}

func (AcceptDeviationPayload) Kind() ActionType { return ActionAcceptDeviation }
func (AcceptDeviationPayload) Validate() error  { return nil }

// ApplyFallbackPayload replaces the clause text with playbook fallback text.
type ApplyFallbackPayload struct {
	ReplacementText string `json:"replacement_text"`
	Source          string `json:"source"`
	RuleID          string `json:"rule_id"`
}

func (ApplyFallbackPayload) Kind() ActionType { return ActionApplyFallback }

func (p ApplyFallbackPayload) Validate() error {
	if p.ReplacementText == "" {
		return &ValidationError{Field: "replacement_text", Reason: "required for APPLY_FALLBACK"}
	}
	if p.Source == "" {
		return &ValidationError{Field: "source", Reason: "required for APPLY_FALLBACK"}
	}
	if p.RuleID == "" {
		return &ValidationError{Field: "rule_id", Reason: "required for APPLY_FALLBACK"}
	}
	return nil
}

// EditManualPayload replaces the clause text with reviewer-authored text.
type EditManualPayload struct {
	ReplacementText string `json:"replacement_text"`
}

func (EditManualPayload) Kind() ActionType { return ActionEditManual }

func (p EditManualPayload) Validate() error {
	if p.ReplacementText == "" {
		return &ValidationError{Field: "replacement_text", Reason: "required for EDIT_MANUAL"}
	}
	return nil
}

// EscalatePayload hands the finding to a named assignee for approval.
type EscalatePayload struct {
	Reason     string `json:"reason"`
	Comment    string `json:"comment"`
	AssigneeID string `json:"assignee_id"`
}

func (EscalatePayload) Kind() ActionType { return ActionEscalate }

func (p EscalatePayload) Validate() error {
	if p.Reason == "" {
		return &ValidationError{Field: "reason", Reason: "required for ESCALATE"}
	}
	if p.Comment == "" {
		return &ValidationError{Field: "comment", Reason: "required for ESCALATE"}
	}
	if p.AssigneeID == "" {
		return &ValidationError{Field: "assignee_id", Reason: "required for ESCALATE"}
	}
	return nil
}

// AddNotePayload attaches a free-form note; notes never change status.
type AddNotePayload struct {
	NoteText string `json:"note_text"`
}

func (AddNotePayload) Kind() ActionType { return ActionAddNote }

func (p AddNotePayload) Validate() error {
	if p.NoteText == "" {
		return &ValidationError{Field: "note_text", Reason: "required for ADD_NOTE"}
	}
	return nil
}

// UndoPayload withdraws the effect of a prior decision on the same finding.
type UndoPayload struct {
	UndoneDecisionID string `json:"undone_decision_id"`
}

func (UndoPayload) Kind() ActionType { return ActionUndo }

func (p UndoPayload) Validate() error {
	if p.UndoneDecisionID == "" {
		return &ValidationError{Field: "undone_decision_id", Reason: "required for UNDO"}
	}
	return nil
}

// RevertPayload carries nothing: a REVERT discards the effect of every
// decision before it for effective-state purposes.
type RevertPayload struct{}

func (RevertPayload) Kind() ActionType { return ActionRevert }
func (RevertPayload) Validate() error  { return nil }

// DecodePayload unmarshals raw JSON into the payload shape for the given
// action type and validates it. Unknown fields are rejected.
func DecodePayload(action ActionType, raw json.RawMessage) (Payload, error) {
	if len(raw) == 0 {
		raw = json.RawMessage(`{}`)
	}
	var p Payload
	switch action {
	case ActionAcceptDeviation:
		p = &AcceptDeviationPayload{}
	case ActionApplyFallback:
		p = &ApplyFallbackPayload{}
	case ActionEditManual:
		p = &EditManualPayload{}
	case ActionEscalate:
		p = &EscalatePayload{}
	case ActionAddNote:
		p = &AddNotePayload{}
	case ActionUndo:
		p = &UndoPayload{}
	case ActionRevert:
		p = &RevertPayload{}
	default:
		return nil, &ValidationError{Field: "action", Reason: fmt.Sprintf("unknown action type %q", action)}
	}
	if err := strictUnmarshal(raw, p); err != nil {
		return nil, &ValidationError{Field: "payload", Reason: err.Error()}
	}
	if err := derefPayload(p).Validate(); err != nil {
		return nil, err
	}
	return derefPayload(p), nil
}

func strictUnmarshal(raw json.RawMessage, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// derefPayload returns the value form so payload comparisons and JSON
// round-trips behave identically regardless of construction path.
func derefPayload(p Payload) Payload {
	switch v := p.(type) {
	case *AcceptDeviationPayload:
		return *v
	case *ApplyFallbackPayload:
		return *v
	case *EditManualPayload:
		return *v
	case *EscalatePayload:
		return *v
	case *AddNotePayload:
		return *v
	case *UndoPayload:
		return *v
	case *RevertPayload:
		return *v
	}
	return p
}
