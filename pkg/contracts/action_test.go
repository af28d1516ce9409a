package contracts

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePayload(t *testing.T) {
	p, err := DecodePayload(ActionApplyFallback, json.RawMessage(
		`{"replacement_text": "capped at fees", "source": "playbook", "rule_id": "r-1"}`))
	require.NoError(t, err)
	fallback, ok := p.(ApplyFallbackPayload)
	require.True(t, ok, "payloads decode to value forms")
	assert.Equal(t, "capped at fees", fallback.ReplacementText)
	assert.Equal(t, ActionApplyFallback, p.Kind())

	// Empty raw decodes to the zero payload for payload-free actions.
	p, err = DecodePayload(ActionRevert, nil)
	require.NoError(t, err)
	assert.Equal(t, RevertPayload{}, p)
}

func TestDecodePayloadRejections(t *testing.T) {
	var invalid *ValidationError

	_, err := DecodePayload("DELETE_CLAUSE", json.RawMessage(`{}`))
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "action", invalid.Field)

	// Unknown fields are rejected, so a payload cannot smuggle one
	// action's fields under another action.
	_, err = DecodePayload(ActionEditManual, json.RawMessage(`{"note_text": "hi"}`))
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "payload", invalid.Field)

	// Shape-valid but semantically empty payloads fail Validate.
	_, err = DecodePayload(ActionEditManual, json.RawMessage(`{"replacement_text": ""}`))
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "replacement_text", invalid.Field)

	_, err = DecodePayload(ActionUndo, json.RawMessage(`{}`))
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "undone_decision_id", invalid.Field)
}

func TestActionClassification(t *testing.T) {
	assert.True(t, ActionApplyFallback.TextBearing())
	assert.True(t, ActionEditManual.TextBearing())
	assert.False(t, ActionAddNote.TextBearing())
	assert.False(t, ActionEscalate.TextBearing())

	assert.True(t, ActionAcceptDeviation.StatusBearing())
	assert.True(t, ActionEscalate.StatusBearing())
	assert.False(t, ActionAddNote.StatusBearing())
	assert.False(t, ActionUndo.StatusBearing())
	assert.False(t, ActionRevert.StatusBearing())

	assert.True(t, KnownAction(ActionRevert))
	assert.False(t, KnownAction("DELETE_CLAUSE"))
}

func TestSubjectVariants(t *testing.T) {
	f := FindingRef("f-1")
	id, ok := f.FindingID()
	require.True(t, ok)
	assert.Equal(t, "f-1", id)
	assert.False(t, f.IsLegacy())

	l := LegacyRef()
	_, ok = l.FindingID()
	assert.False(t, ok)
	assert.True(t, l.IsLegacy())

	assert.True(t, FindingRef("f-1").SameFinding(FindingRef("f-1")))
	assert.False(t, FindingRef("f-1").SameFinding(FindingRef("f-2")))
	assert.True(t, LegacyRef().SameFinding(LegacyRef()))
	assert.False(t, LegacyRef().SameFinding(FindingRef("f-1")))
}

func TestDecisionJSONRoundTrip(t *testing.T) {
	original := Decision{
		ID:        "d-1",
		ClauseID:  "cl-1",
		FindingID: "f-1",
		UserID:    "u-1",
		Action:    ActionEscalate,
		Payload: EscalatePayload{
			Reason:     "liability_cap",
			Comment:    "needs signoff",
			AssigneeID: "u-counsel",
		},
		Timestamp:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Seq:         3,
		ContentHash: "sha256:abc",
		PrevHash:    "sha256:def",
	}

	raw, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded Decision
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, original, decoded, "payload decodes back to its typed value form")
}
