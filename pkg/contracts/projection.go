package contracts

import "time"

// FindingStatus is the replayed status of a single finding.
type FindingStatus string

const (
	FindingPending         FindingStatus = "PENDING"
	FindingAccepted        FindingStatus = "ACCEPTED"
	FindingResolvedFallback FindingStatus = "RESOLVED_APPLIED_FALLBACK"
	FindingResolvedManual  FindingStatus = "RESOLVED_MANUAL_EDIT"
	FindingEscalated       FindingStatus = "ESCALATED"
)

// ClauseStatus aggregates finding statuses into one clause-level status.
type ClauseStatus string

const (
	ClauseNoDeviation       ClauseStatus = "NO_DEVIATION"
	ClauseDeviationDetected ClauseStatus = "DEVIATION_DETECTED"
	ClauseEscalated         ClauseStatus = "ESCALATED"
	ClauseAccepted          ClauseStatus = "ACCEPTED"
	ClauseResolvedFallback  ClauseStatus = "RESOLVED_APPLIED_FALLBACK"
	ClauseResolvedManual    ClauseStatus = "RESOLVED_MANUAL_EDIT"
	// ClauseResolvedMixed covers clauses whose findings are all resolved
	// but not uniformly (one accepted, one edited, ...).
	ClauseResolvedMixed ClauseStatus = "RESOLVED_MIXED"
)

// SegmentType classifies one tracked-change diff segment.
type SegmentType string

const (
	SegmentEqual  SegmentType = "equal"
	SegmentInsert SegmentType = "insert"
	SegmentDelete SegmentType = "delete"
)

// TrackedChange is one redline segment. Concatenating insert+equal segments
// reconstructs the effective text; delete+equal reconstructs the original.
type TrackedChange struct {
	Type SegmentType `json:"type"`
	Text string      `json:"text"`
}

// Note is one reviewer annotation on a finding. Notes accumulate in log
// order and are removed only by their own explicit UNDO.
type Note struct {
	DecisionID string    `json:"decision_id"`
	Author     string    `json:"author"`
	Text       string    `json:"text"`
	Timestamp  time.Time `json:"timestamp"`
}

// EscalationInfo carries the metadata of the escalation currently holding
// a finding.
type EscalationInfo struct {
	Reason      string    `json:"reason"`
	Comment     string    `json:"comment"`
	AssigneeID  string    `json:"assignee_id"`
	EscalatedBy string    `json:"escalated_by"`
	EscalatedAt time.Time `json:"escalated_at"`
}

// FindingProjection is the replayed state of one finding.
type FindingProjection struct {
	FindingID  string          `json:"finding_id"`
	Status     FindingStatus   `json:"status"`
	Escalation *EscalationInfo `json:"escalation,omitempty"`
	Notes      []Note          `json:"notes,omitempty"`
}

// ProjectionResult is the materialized state of a clause: a pure function
// of (original text, ordered decision log). It is derived on demand, never
// persisted, and disposable beyond the cache entry that holds it.
type ProjectionResult struct {
	ClauseID        string                        `json:"clause_id"`
	OriginalText    string                        `json:"original_text"`
	EffectiveText   string                        `json:"effective_text"`
	EffectiveStatus ClauseStatus                  `json:"effective_status"`
	TrackedChanges  []TrackedChange               `json:"tracked_changes,omitempty"`
	Findings        map[string]FindingProjection  `json:"findings"`
	DecisionCount   int                           `json:"decision_count"`
	LastDecisionAt  *time.Time                    `json:"last_decision_at,omitempty"`
}

// ActiveTextChange describes one clause whose text is currently modified by
// a non-undone, post-revert decision. Consumed by redline export.
type ActiveTextChange struct {
	ClauseID        string    `json:"clause_id"`
	OriginalText    string    `json:"original_text"`
	ReplacementText string    `json:"replacement_text"`
	Author          string    `json:"author"`
	Timestamp       time.Time `json:"timestamp"`
}
