// Package cache provides the projection cache: a read-through store of
// materialized clause projections keyed by clause ID, with write-through
// invalidation on decision append.
package cache

import (
	"context"
	"time"

	"github.com/lexroom/redline/pkg/contracts"
)

// DefaultTTL bounds how long a cached projection may be served without
// recomputation, independent of invalidation.
const DefaultTTL = 5 * time.Minute

// Cache stores computed projections keyed by clause ID.
//
// A miss is never an error: implementations return (zero, false, nil) and the
// caller recomputes. Backend failures on reads are also reported as misses so
// that a degraded cache can never block decision traffic.
type Cache interface {
	// Get returns the cached projection for the clause, if present and fresh.
	Get(ctx context.Context, clauseID string) (contracts.ProjectionResult, bool, error)

	// Set stores the projection for the clause, replacing any existing entry.
	Set(ctx context.Context, clauseID string, result contracts.ProjectionResult) error

	// Invalidate removes the entry for the clause. Removing an absent entry
	// is not an error.
	Invalidate(ctx context.Context, clauseID string) error
}
