// Package conflict implements the optimistic-concurrency check. It never
// blocks or rejects a write: conflicts are informational, attached to an
// otherwise successful response.
package conflict

import (
	"fmt"
	"time"

	"github.com/lexroom/redline/pkg/contracts"
)

// Detector compares a caller's last-seen timestamp against the clause's
// current modification time.
type Detector struct {
	clock     func() time.Time
	warnAfter time.Duration
}

func NewDetector() *Detector {
	return &Detector{clock: time.Now}
}

// WithClock overrides the clock for deterministic testing.
func (d *Detector) WithClock(clock func() time.Time) *Detector {
	d.clock = clock
	return d
}

// WithWarnWindow suppresses warnings for modifications older than window.
// A reviewer resuming work on a clause nobody has touched recently is not
// racing anyone. Zero keeps the default of warning on any stale snapshot.
func (d *Detector) WithWarnWindow(window time.Duration) *Detector {
	d.warnAfter = window
	return d
}

// Check returns a warning when the clause changed after the caller last
// saw it, nil otherwise. A nil lastSeen means the caller did not present a
// snapshot and no check is performed.
func (d *Detector) Check(clause contracts.Clause, lastSeen *time.Time) *contracts.ConflictWarning {
	if lastSeen == nil {
		return nil
	}
	if !clause.LastModifiedAt.After(*lastSeen) {
		return nil
	}
	if d.warnAfter > 0 && d.clock().Sub(clause.LastModifiedAt) > d.warnAfter {
		return nil
	}
	return &contracts.ConflictWarning{
		ClauseID:       clause.ID,
		CallerLastSeen: lastSeen.UTC(),
		ModifiedAt:     clause.LastModifiedAt.UTC(),
		Message: fmt.Sprintf("clause %s was modified at %s, after the state you loaded at %s; your change was applied on top",
			clause.ID, clause.LastModifiedAt.UTC().Format(time.RFC3339), lastSeen.UTC().Format(time.RFC3339)),
	}
}
