package redline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexroom/redline/pkg/contracts"
)

func TestDiffIdenticalTextsProduceNoSegments(t *testing.T) {
	assert.Nil(t, Diff("Liability shall not exceed $1,000,000.", "Liability shall not exceed $1,000,000."))
	assert.Nil(t, Diff("", ""))
}

func TestDiffSimpleReplacement(t *testing.T) {
	original := "Liability shall not exceed $1,000,000."
	effective := "Liability shall not exceed $5,000,000."

	segments := Diff(original, effective)
	require.NotEmpty(t, segments)

	o, e := Reconstruct(segments)
	assert.Equal(t, original, o)
	assert.Equal(t, effective, e)

	// A one-character substitution must not dissolve the shared text.
	var equal int
	for _, s := range segments {
		if s.Type == contracts.SegmentEqual {
			equal += len(s.Text)
		}
	}
	assert.Equal(t, len(original)-1, equal)
}

func TestDiffRoundTripTable(t *testing.T) {
	cases := []struct {
		name      string
		original  string
		effective string
	}{
		{"insert only", "", "entirely new clause text"},
		{"delete only", "clause text to be removed", ""},
		{"prefix insert", "shall survive termination.", "The obligations shall survive termination."},
		{"suffix delete", "Payment due in thirty (30) days.", "Payment due in thirty"},
		{"interleaved", "abcabba", "cbabac"},
		{"unicode", "Vergütung: 1.000 €", "Vergütung: 5.000 €"},
		{"repeated runs", "aaaa", "aabaa"},
		{"disjoint", "xxxx", "yyyy"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			segments := Diff(tc.original, tc.effective)
			o, e := Reconstruct(segments)
			assert.Equal(t, tc.original, o)
			assert.Equal(t, tc.effective, e)
		})
	}
}

func TestDiffDeterministic(t *testing.T) {
	first := Diff("abcabba", "cbabac")
	second := Diff("abcabba", "cbabac")
	assert.Equal(t, first, second)
}

func TestDiffSegmentsNeverEmptyAndNeverAdjacentSameType(t *testing.T) {
	segments := Diff("The Supplier shall indemnify the Customer.", "The Supplier will indemnify and hold harmless the Customer.")
	for i, s := range segments {
		assert.NotEmpty(t, s.Text, "segment %d empty", i)
		if i > 0 {
			assert.NotEqual(t, segments[i-1].Type, s.Type, "segments %d and %d share a type", i-1, i)
		}
	}
}

func TestDiffDeleteBeforeInsertWithinReplacement(t *testing.T) {
	segments := Diff("net 30", "net 45")
	var kinds []contracts.SegmentType
	for _, s := range segments {
		kinds = append(kinds, s.Type)
	}
	assert.Equal(t, []contracts.SegmentType{contracts.SegmentEqual, contracts.SegmentDelete, contracts.SegmentInsert}, kinds)
}
