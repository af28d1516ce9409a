// Package clause provides read access to clauses and findings, and the
// single write this engine performs on them: bumping LastModifiedAt when a
// decision is appended. Clause/finding CRUD itself belongs to an external
// collaborator.
package clause

import (
	"context"
	"time"

	"github.com/lexroom/redline/pkg/contracts"
)

// Store is the persistence collaborator consumed by the decision store and
// the review service.
type Store interface {
	GetClause(ctx context.Context, clauseID string) (contracts.Clause, error)
	GetFinding(ctx context.Context, findingID string) (contracts.Finding, error)
	ListFindings(ctx context.Context, clauseID string) ([]contracts.Finding, error)
	ListClausesByContract(ctx context.Context, contractID string) ([]contracts.Clause, error)

	// Touch bumps the clause's LastModifiedAt. Called once per appended
	// decision, under the decision store's append ordering.
	Touch(ctx context.Context, clauseID string, at time.Time) error
}

// Seeder is implemented by stores that can ingest clause/finding rows on
// behalf of the external CRUD collaborator (dev mode, tests, migrations).
type Seeder interface {
	PutClause(ctx context.Context, c contracts.Clause) error
	PutFinding(ctx context.Context, f contracts.Finding) error
}
