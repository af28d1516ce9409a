// Package redline computes tracked-change diffs between a clause's
// original text and its effective text.
//
// Contract: concatenating insert+equal segments reconstructs the effective
// text exactly; concatenating delete+equal segments reconstructs the
// original text exactly.
package redline

import (
	"strings"

	"github.com/lexroom/redline/pkg/contracts"
)

// Diff computes a minimal ordered insert/delete/equal segment sequence
// between original and effective using Myers' O(ND) algorithm over runes.
// Returns nil when the texts are identical.
func Diff(original, effective string) []contracts.TrackedChange {
	if original == effective {
		return nil
	}

	a := []rune(original)
	b := []rune(effective)

	// Trim the common prefix and suffix before running Myers; legal text
	// edits are typically localized within a long clause.
	prefix := 0
	for prefix < len(a) && prefix < len(b) && a[prefix] == b[prefix] {
		prefix++
	}
	suffix := 0
	for suffix < len(a)-prefix && suffix < len(b)-prefix &&
		a[len(a)-1-suffix] == b[len(b)-1-suffix] {
		suffix++
	}

	ops := shortestEdit(a[prefix:len(a)-suffix], b[prefix:len(b)-suffix])

	var segments []contracts.TrackedChange
	if prefix > 0 {
		segments = append(segments, contracts.TrackedChange{Type: contracts.SegmentEqual, Text: string(a[:prefix])})
	}
	segments = append(segments, coalesce(ops)...)
	if suffix > 0 {
		segments = append(segments, contracts.TrackedChange{Type: contracts.SegmentEqual, Text: string(a[len(a)-suffix:])})
	}
	return mergeAdjacent(segments)
}

// Reconstruct rebuilds (original, effective) from a segment sequence.
func Reconstruct(segments []contracts.TrackedChange) (original, effective string) {
	var o, e strings.Builder
	for _, s := range segments {
		switch s.Type {
		case contracts.SegmentEqual:
			o.WriteString(s.Text)
			e.WriteString(s.Text)
		case contracts.SegmentDelete:
			o.WriteString(s.Text)
		case contracts.SegmentInsert:
			e.WriteString(s.Text)
		}
	}
	return o.String(), e.String()
}

type editOp struct {
	kind contracts.SegmentType
	r    rune
}

// shortestEdit runs the Myers greedy algorithm and backtracks the edit
// path into per-rune operations in forward order.
func shortestEdit(a, b []rune) []editOp {
	n, m := len(a), len(b)
	switch {
	case n == 0 && m == 0:
		return nil
	case n == 0:
		return runOps(contracts.SegmentInsert, b)
	case m == 0:
		return runOps(contracts.SegmentDelete, a)
	}

	max := n + m
	off := max
	v := make([]int, 2*max+2)
	var trace [][]int
	found := -1

search:
	for d := 0; d <= max; d++ {
		snapshot := make([]int, len(v))
		copy(snapshot, v)
		trace = append(trace, snapshot)

		for k := -d; k <= d; k += 2 {
			var x int
			if k == -d || (k != d && v[off+k-1] < v[off+k+1]) {
				x = v[off+k+1]
			} else {
				x = v[off+k-1] + 1
			}
			y := x - k
			for x < n && y < m && a[x] == b[y] {
				x++
				y++
			}
			v[off+k] = x
			if x >= n && y >= m {
				found = d
				break search
			}
		}
	}

	// Backtrack from (n, m) through the recorded V states. Ops come out
	// reversed and are flipped at the end.
	ops := make([]editOp, 0, n+m)
	x, y := n, m
	for d := found; d > 0; d-- {
		prev := trace[d]
		k := x - y
		var prevK int
		if k == -d || (k != d && prev[off+k-1] < prev[off+k+1]) {
			prevK = k + 1
		} else {
			prevK = k - 1
		}
		prevX := prev[off+prevK]
		prevY := prevX - prevK

		for x > prevX && y > prevY {
			ops = append(ops, editOp{contracts.SegmentEqual, a[x-1]})
			x--
			y--
		}
		if x == prevX {
			ops = append(ops, editOp{contracts.SegmentInsert, b[y-1]})
			y--
		} else {
			ops = append(ops, editOp{contracts.SegmentDelete, a[x-1]})
			x--
		}
	}
	for x > 0 && y > 0 {
		ops = append(ops, editOp{contracts.SegmentEqual, a[x-1]})
		x--
		y--
	}

	for i, j := 0, len(ops)-1; i < j; i, j = i+1, j-1 {
		ops[i], ops[j] = ops[j], ops[i]
	}
	return ops
}

func runOps(kind contracts.SegmentType, rs []rune) []editOp {
	ops := make([]editOp, len(rs))
	for i, r := range rs {
		ops[i] = editOp{kind, r}
	}
	return ops
}

// coalesce folds per-rune ops into segments. Within each maximal run of
// non-equal ops, deletions are emitted before insertions so a replacement
// renders as "strike old, add new".
func coalesce(ops []editOp) []contracts.TrackedChange {
	var segments []contracts.TrackedChange
	i := 0
	for i < len(ops) {
		if ops[i].kind == contracts.SegmentEqual {
			var sb strings.Builder
			for i < len(ops) && ops[i].kind == contracts.SegmentEqual {
				sb.WriteRune(ops[i].r)
				i++
			}
			segments = append(segments, contracts.TrackedChange{Type: contracts.SegmentEqual, Text: sb.String()})
			continue
		}
		var del, ins strings.Builder
		for i < len(ops) && ops[i].kind != contracts.SegmentEqual {
			if ops[i].kind == contracts.SegmentDelete {
				del.WriteRune(ops[i].r)
			} else {
				ins.WriteRune(ops[i].r)
			}
			i++
		}
		if del.Len() > 0 {
			segments = append(segments, contracts.TrackedChange{Type: contracts.SegmentDelete, Text: del.String()})
		}
		if ins.Len() > 0 {
			segments = append(segments, contracts.TrackedChange{Type: contracts.SegmentInsert, Text: ins.String()})
		}
	}
	return segments
}

func mergeAdjacent(segments []contracts.TrackedChange) []contracts.TrackedChange {
	if len(segments) < 2 {
		return segments
	}
	merged := segments[:1]
	for _, s := range segments[1:] {
		last := &merged[len(merged)-1]
		if s.Type == last.Type {
			last.Text += s.Text
			continue
		}
		merged = append(merged, s)
	}
	return merged
}
