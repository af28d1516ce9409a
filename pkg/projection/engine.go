// Package projection replays a clause's append-only decision log into its
// effective state: text, per-finding statuses, clause status, and tracked
// changes.
//
// Project is a pure function of its inputs. It performs no I/O and holds no
// state, so it is safe to recompute concurrently and its output is safe to
// cache.
package projection

import (
	"sort"

	"github.com/lexroom/redline/pkg/contracts"
	"github.com/lexroom/redline/pkg/redline"
)

// Project computes the materialized state of a clause from its ordered
// decision log. The replay rules:
//
//  1. Every UNDO's target joins the undone set (UNDOs themselves are never
//     undoable).
//  2. Decisions at or before the last REVERT are excluded from effective
//     state (but stay in history).
//  3. Effective text is the replacement text of the last non-undone
//     text-bearing decision after the revert boundary, else the original.
//  4. Each finding's status is the last non-undone status-bearing decision
//     on that finding after the boundary; notes accumulate independently
//     and leave only by their own UNDO.
//  5. Clause status aggregates finding statuses with precedence
//     ESCALATED > DEVIATION_DETECTED > uniform resolved > NO_DEVIATION.
func Project(clause contracts.Clause, findings []contracts.Finding, decisions []contracts.Decision) contracts.ProjectionResult {
	log := orderedCopy(decisions)

	undone := undoneSet(log)
	window := log[revertBoundary(log)+1:]

	result := contracts.ProjectionResult{
		ClauseID:      clause.ID,
		OriginalText:  clause.OriginalText,
		EffectiveText: effectiveText(clause.OriginalText, window, undone),
		Findings:      make(map[string]contracts.FindingProjection, len(findings)),
		DecisionCount: len(log),
	}
	if len(log) > 0 {
		ts := log[len(log)-1].Timestamp
		result.LastDecisionAt = &ts
	}

	for _, f := range findings {
		result.Findings[f.ID] = projectFinding(f.ID, log, window, undone)
	}
	result.EffectiveStatus = clauseStatus(result.Findings)

	if result.EffectiveText != result.OriginalText {
		result.TrackedChanges = redline.Diff(result.OriginalText, result.EffectiveText)
	}
	return result
}

// ActiveTextDecision returns the decision currently determining the
// clause's effective text: the last non-undone, post-revert text-bearing
// decision. ok is false when the original text stands.
func ActiveTextDecision(decisions []contracts.Decision) (contracts.Decision, bool) {
	log := orderedCopy(decisions)
	undone := undoneSet(log)
	window := log[revertBoundary(log)+1:]

	for i := len(window) - 1; i >= 0; i-- {
		d := window[i]
		if d.Action.TextBearing() && !undone[d.ID] {
			return d, true
		}
	}
	return contracts.Decision{}, false
}

// ReplacementText extracts the replacement text from a text-bearing
// decision's payload.
func ReplacementText(d contracts.Decision) (string, bool) {
	switch p := d.Payload.(type) {
	case contracts.ApplyFallbackPayload:
		return p.ReplacementText, true
	case contracts.EditManualPayload:
		return p.ReplacementText, true
	}
	return "", false
}

// orderedCopy sorts by seq, the authoritative per-clause append order.
// Wall-clock timestamps can disagree with it under clock skew.
func orderedCopy(decisions []contracts.Decision) []contracts.Decision {
	log := make([]contracts.Decision, len(decisions))
	copy(log, decisions)
	sort.SliceStable(log, func(i, j int) bool {
		return log[i].Seq < log[j].Seq
	})
	return log
}

func undoneSet(log []contracts.Decision) map[string]bool {
	undone := make(map[string]bool)
	for _, d := range log {
		if p, ok := d.Payload.(contracts.UndoPayload); ok && d.Action == contracts.ActionUndo {
			undone[p.UndoneDecisionID] = true
		}
	}
	return undone
}

// revertBoundary returns the index of the last REVERT in log, or -1.
func revertBoundary(log []contracts.Decision) int {
	boundary := -1
	for i, d := range log {
		if d.Action == contracts.ActionRevert {
			boundary = i
		}
	}
	return boundary
}

func effectiveText(original string, window []contracts.Decision, undone map[string]bool) string {
	for i := len(window) - 1; i >= 0; i-- {
		d := window[i]
		if !d.Action.TextBearing() || undone[d.ID] {
			continue
		}
		if text, ok := ReplacementText(d); ok {
			return text
		}
	}
	return original
}

func projectFinding(findingID string, log, window []contracts.Decision, undone map[string]bool) contracts.FindingProjection {
	fp := contracts.FindingProjection{
		FindingID: findingID,
		Status:    contracts.FindingPending,
	}

	for _, d := range window {
		if d.Legacy || d.FindingID != findingID || undone[d.ID] || !d.Action.StatusBearing() {
			continue
		}
		fp.Escalation = nil
		switch d.Action {
		case contracts.ActionAcceptDeviation:
			fp.Status = contracts.FindingAccepted
		case contracts.ActionApplyFallback:
			fp.Status = contracts.FindingResolvedFallback
		case contracts.ActionEditManual:
			fp.Status = contracts.FindingResolvedManual
		case contracts.ActionEscalate:
			fp.Status = contracts.FindingEscalated
			if p, ok := d.Payload.(contracts.EscalatePayload); ok {
				fp.Escalation = &contracts.EscalationInfo{
					Reason:      p.Reason,
					Comment:     p.Comment,
					AssigneeID:  p.AssigneeID,
					EscalatedBy: d.UserID,
					EscalatedAt: d.Timestamp,
				}
			}
		}
	}

	// Notes accumulate across the whole log, surviving reverts and later
	// status changes; only their own UNDO removes them.
	for _, d := range log {
		if d.Legacy || d.FindingID != findingID || d.Action != contracts.ActionAddNote || undone[d.ID] {
			continue
		}
		if p, ok := d.Payload.(contracts.AddNotePayload); ok {
			fp.Notes = append(fp.Notes, contracts.Note{
				DecisionID: d.ID,
				Author:     d.UserID,
				Text:       p.NoteText,
				Timestamp:  d.Timestamp,
			})
		}
	}
	return fp
}

func clauseStatus(findings map[string]contracts.FindingProjection) contracts.ClauseStatus {
	if len(findings) == 0 {
		return contracts.ClauseNoDeviation
	}

	var anyEscalated, anyPending bool
	resolved := make(map[contracts.FindingStatus]int)
	for _, fp := range findings {
		switch fp.Status {
		case contracts.FindingEscalated:
			anyEscalated = true
		case contracts.FindingPending:
			anyPending = true
		default:
			resolved[fp.Status]++
		}
	}

	switch {
	case anyEscalated:
		return contracts.ClauseEscalated
	case anyPending:
		return contracts.ClauseDeviationDetected
	case len(resolved) > 1:
		return contracts.ClauseResolvedMixed
	}

	for status := range resolved {
		switch status {
		case contracts.FindingAccepted:
			return contracts.ClauseAccepted
		case contracts.FindingResolvedFallback:
			return contracts.ClauseResolvedFallback
		case contracts.FindingResolvedManual:
			return contracts.ClauseResolvedManual
		}
	}
	return contracts.ClauseNoDeviation
}
