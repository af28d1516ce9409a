package conflict

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexroom/redline/pkg/contracts"
)

func TestCheckNoSnapshotPresented(t *testing.T) {
	d := NewDetector()
	c := contracts.Clause{ID: "cl-1", LastModifiedAt: time.Now()}
	assert.Nil(t, d.Check(c, nil))
}

func TestCheckFreshSnapshot(t *testing.T) {
	d := NewDetector()
	t1 := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	c := contracts.Clause{ID: "cl-1", LastModifiedAt: t1}

	assert.Nil(t, d.Check(c, &t1), "seeing exactly the current state is not a conflict")

	later := t1.Add(time.Minute)
	assert.Nil(t, d.Check(c, &later))
}

func TestCheckStaleSnapshotWarns(t *testing.T) {
	d := NewDetector()
	t0 := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	t1 := t0.Add(90 * time.Second)
	c := contracts.Clause{ID: "cl-1", LastModifiedAt: t1}

	w := d.Check(c, &t0)
	require.NotNil(t, w)
	assert.Equal(t, "cl-1", w.ClauseID)
	assert.Equal(t, t0, w.CallerLastSeen)
	assert.Equal(t, t1, w.ModifiedAt)
	assert.NotEmpty(t, w.Message)
}

func TestCheckWarnWindowSuppressesOldModifications(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	d := NewDetector().
		WithClock(func() time.Time { return now }).
		WithWarnWindow(10 * time.Minute)

	lastSeen := now.Add(-2 * time.Hour)

	// Modified an hour ago: stale, but outside the window, so nobody is
	// plausibly still mid-edit.
	old := contracts.Clause{ID: "cl-1", LastModifiedAt: now.Add(-time.Hour)}
	assert.Nil(t, d.Check(old, &lastSeen))

	// Modified a minute ago: inside the window, still warns.
	recent := contracts.Clause{ID: "cl-1", LastModifiedAt: now.Add(-time.Minute)}
	w := d.Check(recent, &lastSeen)
	require.NotNil(t, w)
	assert.Equal(t, "cl-1", w.ClauseID)
}

func TestCheckZeroWarnWindowWarnsOnAnyStaleSnapshot(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	d := NewDetector().WithClock(func() time.Time { return now })

	lastSeen := now.Add(-48 * time.Hour)
	c := contracts.Clause{ID: "cl-1", LastModifiedAt: now.Add(-24 * time.Hour)}
	require.NotNil(t, d.Check(c, &lastSeen))
}
