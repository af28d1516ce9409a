package clause

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/lexroom/redline/pkg/contracts"

	_ "github.com/lib/pq"
)

// PostgresStore persists clauses and findings in PostgreSQL for shared
// deployments. Schema migration is owned by the deployment, matching the
// DDL in migrate().
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	s := &PostgresStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS clauses (
		clause_id TEXT PRIMARY KEY,
		contract_id TEXT NOT NULL,
		heading TEXT,
		original_text TEXT NOT NULL,
		current_text TEXT,
		last_modified_at TIMESTAMPTZ
	);
	CREATE TABLE IF NOT EXISTS findings (
		finding_id TEXT PRIMARY KEY,
		clause_id TEXT NOT NULL,
		risk_level TEXT,
		fallback_text TEXT,
		excerpt TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_findings_clause ON findings(clause_id);
	CREATE INDEX IF NOT EXISTS idx_clauses_contract ON clauses(contract_id);`
	_, err := s.db.ExecContext(context.Background(), query)
	return err
}

func (s *PostgresStore) PutClause(ctx context.Context, c contracts.Clause) error {
	query := `
	INSERT INTO clauses (clause_id, contract_id, heading, original_text, current_text, last_modified_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (clause_id) DO UPDATE SET
		current_text = EXCLUDED.current_text,
		last_modified_at = EXCLUDED.last_modified_at`
	_, err := s.db.ExecContext(ctx, query,
		c.ID, c.ContractID, c.Heading, norm.NFC.String(c.OriginalText), c.CurrentText, c.LastModifiedAt)
	if err != nil {
		return fmt.Errorf("failed to persist clause: %w", err)
	}
	return nil
}

func (s *PostgresStore) PutFinding(ctx context.Context, f contracts.Finding) error {
	query := `
	INSERT INTO findings (finding_id, clause_id, risk_level, fallback_text, excerpt)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (finding_id) DO NOTHING`
	_, err := s.db.ExecContext(ctx, query, f.ID, f.ClauseID, f.RiskLevel, f.FallbackText, f.Excerpt)
	if err != nil {
		return fmt.Errorf("failed to persist finding: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetClause(ctx context.Context, clauseID string) (contracts.Clause, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT clause_id, contract_id, heading, original_text, current_text, last_modified_at
		FROM clauses WHERE clause_id = $1`, clauseID)
	return scanClause(row, clauseID)
}

func (s *PostgresStore) GetFinding(ctx context.Context, findingID string) (contracts.Finding, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT finding_id, clause_id, risk_level, fallback_text, excerpt
		FROM findings WHERE finding_id = $1`, findingID)
	return scanFinding(row, findingID)
}

func (s *PostgresStore) ListFindings(ctx context.Context, clauseID string) ([]contracts.Finding, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT finding_id, clause_id, risk_level, fallback_text, excerpt
		FROM findings WHERE clause_id = $1 ORDER BY finding_id`, clauseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list findings: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return collectFindings(rows)
}

func (s *PostgresStore) ListClausesByContract(ctx context.Context, contractID string) ([]contracts.Clause, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT clause_id, contract_id, heading, original_text, current_text, last_modified_at
		FROM clauses WHERE contract_id = $1 ORDER BY clause_id`, contractID)
	if err != nil {
		return nil, fmt.Errorf("failed to list clauses: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return collectClauses(rows)
}

func (s *PostgresStore) Touch(ctx context.Context, clauseID string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE clauses SET last_modified_at = $1 WHERE clause_id = $2`, at, clauseID)
	if err != nil {
		return fmt.Errorf("failed to touch clause: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return &contracts.NotFoundError{Kind: "clause", ID: clauseID}
	}
	return nil
}
