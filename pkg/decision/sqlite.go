package decision

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lexroom/redline/pkg/clause"
	"github.com/lexroom/redline/pkg/contracts"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists the decision log in SQLite. Timestamps are stored
// as RFC 3339 nano strings so chain hashes survive the round-trip
// bit-exactly; log order comes from the per-clause sequence, since the
// textual timestamp trims trailing zeros and does not sort chronologically.
type SQLiteStore struct {
	db      *sql.DB
	clauses clause.Store
	clock   func() time.Time
}

func NewSQLiteStore(db *sql.DB, clauses clause.Store) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db, clauses: clauses, clock: time.Now}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// WithClock overrides the clock for deterministic testing.
func (s *SQLiteStore) WithClock(clock func() time.Time) *SQLiteStore {
	s.clock = clock
	return s
}

func (s *SQLiteStore) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS decisions (
		decision_id TEXT PRIMARY KEY,
		clause_id TEXT NOT NULL,
		finding_id TEXT,
		legacy INTEGER NOT NULL DEFAULT 0,
		user_id TEXT NOT NULL,
		action TEXT NOT NULL,
		payload TEXT NOT NULL,
		ts TEXT NOT NULL,
		seq INTEGER NOT NULL,
		content_hash TEXT NOT NULL,
		prev_hash TEXT NOT NULL,
		UNIQUE (clause_id, seq)
	);
	CREATE INDEX IF NOT EXISTS idx_decisions_clause ON decisions(clause_id, seq);`
	_, err := s.db.ExecContext(context.Background(), query)
	return err
}

func (s *SQLiteStore) Append(ctx context.Context, req AppendRequest) (contracts.Decision, error) {
	if err := validate(ctx, s.clauses, s.Get, req); err != nil {
		return contracts.Decision{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return contracts.Decision{}, fmt.Errorf("failed to begin append: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var lastSeq uint64
	var prevHash sql.NullString
	err = tx.QueryRowContext(ctx, `
		SELECT seq, content_hash FROM decisions
		WHERE clause_id = ? ORDER BY seq DESC LIMIT 1`, req.ClauseID).Scan(&lastSeq, &prevHash)
	if err != nil && err != sql.ErrNoRows {
		return contracts.Decision{}, fmt.Errorf("failed to read chain head: %w", err)
	}

	now := s.clock().UTC()
	findingID, _ := req.Subject.FindingID()
	d := contracts.Decision{
		ID:        uuid.New().String(),
		ClauseID:  req.ClauseID,
		FindingID: findingID,
		Legacy:    req.Subject.IsLegacy(),
		UserID:    req.UserID,
		Action:    req.Action,
		Payload:   normalizePayload(req.Payload),
		Timestamp: now,
		Seq:       lastSeq + 1,
		PrevHash:  genesisHash,
	}
	if prevHash.Valid {
		d.PrevHash = prevHash.String
	}
	d.ContentHash, err = contentHash(d)
	if err != nil {
		return contracts.Decision{}, err
	}

	rawPayload, err := json.Marshal(d.Payload)
	if err != nil {
		return contracts.Decision{}, fmt.Errorf("failed to marshal payload: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO decisions (decision_id, clause_id, finding_id, legacy, user_id, action, payload, ts, seq, content_hash, prev_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.ClauseID, nullable(d.FindingID), boolToInt(d.Legacy), d.UserID, string(d.Action),
		string(rawPayload), d.Timestamp.Format(time.RFC3339Nano), d.Seq, d.ContentHash, d.PrevHash)
	if err != nil {
		return contracts.Decision{}, fmt.Errorf("failed to insert decision: %w", err)
	}
	// Bump the clause inside the same transaction so the decision and its
	// LastModifiedAt marker commit or roll back together.
	if _, err := tx.ExecContext(ctx,
		`UPDATE clauses SET last_modified_at = ? WHERE clause_id = ?`, now, req.ClauseID); err != nil {
		return contracts.Decision{}, fmt.Errorf("failed to touch clause: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return contracts.Decision{}, fmt.Errorf("failed to commit decision: %w", err)
	}
	return d, nil
}

func (s *SQLiteStore) List(ctx context.Context, clauseID string) ([]contracts.Decision, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT decision_id, clause_id, finding_id, legacy, user_id, action, payload, ts, seq, content_hash, prev_hash
		FROM decisions WHERE clause_id = ? ORDER BY seq`, clauseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list decisions: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return collectDecisions(rows)
}

func (s *SQLiteStore) Get(ctx context.Context, decisionID string) (contracts.Decision, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT decision_id, clause_id, finding_id, legacy, user_id, action, payload, ts, seq, content_hash, prev_hash
		FROM decisions WHERE decision_id = ?`, decisionID)
	if err != nil {
		return contracts.Decision{}, fmt.Errorf("failed to get decision: %w", err)
	}
	defer func() { _ = rows.Close() }()

	decisions, err := collectDecisions(rows)
	if err != nil {
		return contracts.Decision{}, err
	}
	if len(decisions) == 0 {
		return contracts.Decision{}, &contracts.NotFoundError{Kind: "decision", ID: decisionID}
	}
	return decisions[0], nil
}

func (s *SQLiteStore) VerifyChain(ctx context.Context, clauseID string) error {
	log, err := s.List(ctx, clauseID)
	if err != nil {
		return err
	}
	return verifyLog(clauseID, log)
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// collectDecisions scans rows shared by the SQLite and Postgres stores.
func collectDecisions(rows *sql.Rows) ([]contracts.Decision, error) {
	var out []contracts.Decision
	for rows.Next() {
		var d contracts.Decision
		var findingID sql.NullString
		var legacy int
		var action, payload, ts string
		if err := rows.Scan(&d.ID, &d.ClauseID, &findingID, &legacy, &d.UserID, &action,
			&payload, &ts, &d.Seq, &d.ContentHash, &d.PrevHash); err != nil {
			return nil, fmt.Errorf("failed to scan decision: %w", err)
		}
		d.FindingID = findingID.String
		d.Legacy = legacy != 0
		d.Action = contracts.ActionType(action)

		parsed, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("failed to parse decision timestamp: %w", err)
		}
		d.Timestamp = parsed.UTC()

		d.Payload, err = contracts.DecodePayload(d.Action, json.RawMessage(payload))
		if err != nil {
			return nil, fmt.Errorf("failed to decode stored payload: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

var _ Store = (*SQLiteStore)(nil)
