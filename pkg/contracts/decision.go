package contracts

import (
	"encoding/json"
	"time"
)

// Subject identifies what a decision acts on: a specific finding, or the
// clause itself for pre-migration legacy records. It is a two-variant
// value, not a nullable finding ID.
type Subject struct {
	findingID string
	legacy    bool
}

// FindingRef returns a Subject addressing one finding.
func FindingRef(findingID string) Subject {
	return Subject{findingID: findingID}
}

// LegacyRef returns the Subject used by pre-migration decisions that were
// recorded before findings existed.
func LegacyRef() Subject {
	return Subject{legacy: true}
}

// FindingID returns the finding ID and true when the subject is a finding.
func (s Subject) FindingID() (string, bool) {
	if s.legacy {
		return "", false
	}
	return s.findingID, true
}

// IsLegacy reports whether the subject is a pre-migration legacy reference.
func (s Subject) IsLegacy() bool { return s.legacy }

// SameFinding reports whether both subjects address the same finding.
func (s Subject) SameFinding(other Subject) bool {
	if s.legacy || other.legacy {
		return s.legacy == other.legacy
	}
	return s.findingID == other.findingID
}

// Decision is one immutable, user-attributed action in a clause's
// append-only log. Decisions are never mutated or deleted; undoing and
// reverting are themselves new decisions.
type Decision struct {
	ID        string     `json:"id"`
	ClauseID  string     `json:"clause_id"`
	FindingID string     `json:"finding_id,omitempty"`
	Legacy    bool       `json:"legacy,omitempty"`
	UserID    string     `json:"user_id"`
	Action    ActionType `json:"action"`
	Payload   Payload    `json:"payload"`
	Timestamp time.Time  `json:"timestamp"`

	// Seq is a monotonic per-clause sequence number; it breaks wall-clock
	// timestamp ties so replay order is deterministic.
	Seq uint64 `json:"seq"`

	// ContentHash and PrevHash chain the decision to its predecessor
	// within the clause, making the append-only log tamper-evident.
	ContentHash string `json:"content_hash"`
	PrevHash    string `json:"prev_hash"`
}

// UnmarshalJSON decodes the payload into its action-specific shape. The
// zero-payload case (absent or null) is left to validation.
func (d *Decision) UnmarshalJSON(data []byte) error {
	type alias Decision
	aux := struct {
		*alias
		Payload json.RawMessage `json:"payload"`
	}{alias: (*alias)(d)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if len(aux.Payload) > 0 && string(aux.Payload) != "null" {
		p, err := DecodePayload(d.Action, aux.Payload)
		if err != nil {
			return err
		}
		d.Payload = p
	}
	return nil
}

// Subject reconstructs the decision's subject variant.
func (d Decision) Subject() Subject {
	if d.Legacy {
		return LegacyRef()
	}
	return FindingRef(d.FindingID)
}
