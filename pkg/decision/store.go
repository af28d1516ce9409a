// Package decision implements the append-only decision store. Decisions
// are never mutated or deleted; undoing and reverting are themselves new
// records. Each record carries a per-clause monotonic sequence number and
// an RFC 8785 content hash chained to its predecessor.
package decision

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"golang.org/x/text/unicode/norm"

	"github.com/lexroom/redline/pkg/canonicalize"
	"github.com/lexroom/redline/pkg/clause"
	"github.com/lexroom/redline/pkg/contracts"
)

// genesisHash anchors the first decision of every clause chain.
const genesisHash = "genesis"

// AppendRequest describes one decision to record.
type AppendRequest struct {
	ClauseID string
	Subject  contracts.Subject
	UserID   string
	Action   contracts.ActionType
	Payload  contracts.Payload
}

// Store is the append-only decision log.
type Store interface {
	// Append validates, sequences, and records one decision, then bumps
	// the owning clause's LastModifiedAt. Fails with ValidationError on a
	// malformed payload and NotFoundError on a missing clause, finding,
	// or undo target.
	Append(ctx context.Context, req AppendRequest) (contracts.Decision, error)

	// List returns the clause's decisions ascending by (timestamp, seq).
	// Pure read: stable, deterministic, restartable.
	List(ctx context.Context, clauseID string) ([]contracts.Decision, error)

	// Get returns one decision by ID.
	Get(ctx context.Context, decisionID string) (contracts.Decision, error)

	// VerifyChain recomputes the clause's content-hash chain and fails if
	// any stored record was altered.
	VerifyChain(ctx context.Context, clauseID string) error
}

// validate performs every check that does not require store internals.
// getDecision resolves UNDO targets from the same store.
func validate(ctx context.Context, clauses clause.Store, getDecision func(context.Context, string) (contracts.Decision, error), req AppendRequest) error {
	if req.UserID == "" {
		return &contracts.ValidationError{Field: "user_id", Reason: "required"}
	}
	if !contracts.KnownAction(req.Action) {
		return &contracts.ValidationError{Field: "action", Reason: "unknown action type " + string(req.Action)}
	}
	if req.Payload == nil {
		return &contracts.ValidationError{Field: "payload", Reason: "required"}
	}
	if req.Payload.Kind() != req.Action {
		return &contracts.ValidationError{Field: "payload", Reason: "payload shape does not match action " + string(req.Action)}
	}
	if err := req.Payload.Validate(); err != nil {
		return err
	}

	if _, err := clauses.GetClause(ctx, req.ClauseID); err != nil {
		return err
	}
	if findingID, ok := req.Subject.FindingID(); ok {
		f, err := clauses.GetFinding(ctx, findingID)
		if err != nil {
			return err
		}
		if f.ClauseID != req.ClauseID {
			return &contracts.ValidationError{Field: "finding_id", Reason: "finding belongs to a different clause"}
		}
	}

	if p, ok := req.Payload.(contracts.UndoPayload); ok {
		target, err := getDecision(ctx, p.UndoneDecisionID)
		if err != nil {
			return err
		}
		if target.ClauseID != req.ClauseID {
			return &contracts.ValidationError{Field: "undone_decision_id", Reason: "target decision belongs to a different clause"}
		}
		if target.Action == contracts.ActionUndo {
			return &contracts.ValidationError{Field: "undone_decision_id", Reason: "an UNDO cannot be undone"}
		}
		if !target.Subject().SameFinding(req.Subject) {
			return &contracts.ValidationError{Field: "undone_decision_id", Reason: "target decision belongs to a different finding"}
		}
	}
	return nil
}

// normalizePayload canonicalizes user-supplied text to NFC so effective
// text, diffs, and equality checks operate on one Unicode form.
func normalizePayload(p contracts.Payload) contracts.Payload {
	switch v := p.(type) {
	case contracts.ApplyFallbackPayload:
		v.ReplacementText = norm.NFC.String(v.ReplacementText)
		return v
	case contracts.EditManualPayload:
		v.ReplacementText = norm.NFC.String(v.ReplacementText)
		return v
	case contracts.AddNotePayload:
		v.NoteText = norm.NFC.String(v.NoteText)
		return v
	}
	return p
}

// chainRecord is the hashed subset of a decision. Timestamps are excluded:
// the chain must survive storage round-trips that lose sub-second
// precision.
type chainRecord struct {
	ID        string               `json:"id"`
	ClauseID  string               `json:"clause_id"`
	FindingID string               `json:"finding_id,omitempty"`
	Legacy    bool                 `json:"legacy,omitempty"`
	UserID    string               `json:"user_id"`
	Action    contracts.ActionType `json:"action"`
	Payload   contracts.Payload    `json:"payload"`
	Seq       uint64               `json:"seq"`
	PrevHash  string               `json:"prev_hash"`
}

func contentHash(d contracts.Decision) (string, error) {
	return canonicalize.CanonicalHash(chainRecord{
		ID:        d.ID,
		ClauseID:  d.ClauseID,
		FindingID: d.FindingID,
		Legacy:    d.Legacy,
		UserID:    d.UserID,
		Action:    d.Action,
		Payload:   d.Payload,
		Seq:       d.Seq,
		PrevHash:  d.PrevHash,
	})
}

// verifyLog checks an ordered decision list against its hash chain.
func verifyLog(clauseID string, log []contracts.Decision) error {
	prev := genesisHash
	for _, d := range log {
		if d.PrevHash != prev {
			return &ChainError{ClauseID: clauseID, Seq: d.Seq, Reason: "chain broken: prev hash mismatch"}
		}
		computed, err := contentHash(d)
		if err != nil {
			return err
		}
		if computed != d.ContentHash {
			return &ChainError{ClauseID: clauseID, Seq: d.Seq, Reason: "content hash mismatch"}
		}
		prev = d.ContentHash
	}
	return nil
}

// ChainError reports a broken decision hash chain.
type ChainError struct {
	ClauseID string
	Seq      uint64
	Reason   string
}

func (e *ChainError) Error() string {
	return fmt.Sprintf("decision chain for clause %s invalid at seq %d: %s", e.ClauseID, e.Seq, e.Reason)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *contracts.NotFoundError
	return errors.As(err, &nf)
}

// ordered sorts a log ascending by seq, the authoritative per-clause
// order. Timestamps are assigned under the same append lock but their
// textual form is not guaranteed to sort chronologically.
func ordered(log []contracts.Decision) []contracts.Decision {
	out := make([]contracts.Decision, len(log))
	copy(out, log)
	sortDecisions(out)
	return out
}

func sortDecisions(log []contracts.Decision) {
	sort.SliceStable(log, func(i, j int) bool {
		return log[i].Seq < log[j].Seq
	})
}
