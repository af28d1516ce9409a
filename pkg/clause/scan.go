package clause

import (
	"database/sql"
	"fmt"

	"github.com/lexroom/redline/pkg/contracts"
)

func scanClause(row *sql.Row, clauseID string) (contracts.Clause, error) {
	var c contracts.Clause
	var heading, current sql.NullString
	var modified sql.NullTime
	err := row.Scan(&c.ID, &c.ContractID, &heading, &c.OriginalText, &current, &modified)
	if err == sql.ErrNoRows {
		return contracts.Clause{}, &contracts.NotFoundError{Kind: "clause", ID: clauseID}
	}
	if err != nil {
		return contracts.Clause{}, fmt.Errorf("failed to get clause: %w", err)
	}
	c.Heading = heading.String
	c.CurrentText = current.String
	if modified.Valid {
		c.LastModifiedAt = modified.Time.UTC()
	}
	return c, nil
}

func scanFinding(row *sql.Row, findingID string) (contracts.Finding, error) {
	var f contracts.Finding
	var fallback, excerpt sql.NullString
	err := row.Scan(&f.ID, &f.ClauseID, &f.RiskLevel, &fallback, &excerpt)
	if err == sql.ErrNoRows {
		return contracts.Finding{}, &contracts.NotFoundError{Kind: "finding", ID: findingID}
	}
	if err != nil {
		return contracts.Finding{}, fmt.Errorf("failed to get finding: %w", err)
	}
	f.FallbackText = fallback.String
	f.Excerpt = excerpt.String
	return f, nil
}

func collectFindings(rows *sql.Rows) ([]contracts.Finding, error) {
	var out []contracts.Finding
	for rows.Next() {
		var f contracts.Finding
		var fallback, excerpt sql.NullString
		if err := rows.Scan(&f.ID, &f.ClauseID, &f.RiskLevel, &fallback, &excerpt); err != nil {
			return nil, fmt.Errorf("failed to scan finding: %w", err)
		}
		f.FallbackText = fallback.String
		f.Excerpt = excerpt.String
		out = append(out, f)
	}
	return out, rows.Err()
}

func collectClauses(rows *sql.Rows) ([]contracts.Clause, error) {
	var out []contracts.Clause
	for rows.Next() {
		var c contracts.Clause
		var heading, current sql.NullString
		var modified sql.NullTime
		if err := rows.Scan(&c.ID, &c.ContractID, &heading, &c.OriginalText, &current, &modified); err != nil {
			return nil, fmt.Errorf("failed to scan clause: %w", err)
		}
		c.Heading = heading.String
		c.CurrentText = current.String
		if modified.Valid {
			c.LastModifiedAt = modified.Time.UTC()
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ensure interface conformance
var (
	_ Store  = (*MemoryStore)(nil)
	_ Seeder = (*MemoryStore)(nil)
	_ Store  = (*SQLiteStore)(nil)
	_ Seeder = (*SQLiteStore)(nil)
	_ Store  = (*PostgresStore)(nil)
	_ Seeder = (*PostgresStore)(nil)
)
