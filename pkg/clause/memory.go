package clause

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/lexroom/redline/pkg/contracts"
)

// MemoryStore is a mutex-guarded in-memory Store for dev mode and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	clauses  map[string]contracts.Clause
	findings map[string]contracts.Finding
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		clauses:  make(map[string]contracts.Clause),
		findings: make(map[string]contracts.Finding),
	}
}

func (s *MemoryStore) PutClause(ctx context.Context, c contracts.Clause) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	// Baseline text is canonicalized once at ingestion so diffing and
	// equality checks operate on NFC strings.
	c.OriginalText = norm.NFC.String(c.OriginalText)
	s.clauses[c.ID] = c
	return nil
}

func (s *MemoryStore) PutFinding(ctx context.Context, f contracts.Finding) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.findings[f.ID] = f
	return nil
}

func (s *MemoryStore) GetClause(ctx context.Context, clauseID string) (contracts.Clause, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.clauses[clauseID]
	if !ok {
		return contracts.Clause{}, &contracts.NotFoundError{Kind: "clause", ID: clauseID}
	}
	return c, nil
}

func (s *MemoryStore) GetFinding(ctx context.Context, findingID string) (contracts.Finding, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.findings[findingID]
	if !ok {
		return contracts.Finding{}, &contracts.NotFoundError{Kind: "finding", ID: findingID}
	}
	return f, nil
}

func (s *MemoryStore) ListFindings(ctx context.Context, clauseID string) ([]contracts.Finding, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []contracts.Finding
	for _, f := range s.findings {
		if f.ClauseID == clauseID {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) ListClausesByContract(ctx context.Context, contractID string) ([]contracts.Clause, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []contracts.Clause
	for _, c := range s.clauses {
		if c.ContractID == contractID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) Touch(ctx context.Context, clauseID string, at time.Time) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clauses[clauseID]
	if !ok {
		return &contracts.NotFoundError{Kind: "clause", ID: clauseID}
	}
	c.LastModifiedAt = at
	s.clauses[clauseID] = c
	return nil
}
