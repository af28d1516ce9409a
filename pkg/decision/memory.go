package decision

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lexroom/redline/pkg/clause"
	"github.com/lexroom/redline/pkg/contracts"
)

// MemoryStore is a mutex-guarded in-memory Store for dev mode and tests.
type MemoryStore struct {
	mu      sync.Mutex
	clauses clause.Store
	logs    map[string][]contracts.Decision
	byID    map[string]contracts.Decision
	seq     map[string]uint64
	clock   func() time.Time
}

func NewMemoryStore(clauses clause.Store) *MemoryStore {
	return &MemoryStore{
		clauses: clauses,
		logs:    make(map[string][]contracts.Decision),
		byID:    make(map[string]contracts.Decision),
		seq:     make(map[string]uint64),
		clock:   time.Now,
	}
}

// WithClock overrides the clock for deterministic testing.
func (s *MemoryStore) WithClock(clock func() time.Time) *MemoryStore {
	s.clock = clock
	return s
}

func (s *MemoryStore) Append(ctx context.Context, req AppendRequest) (contracts.Decision, error) {
	if err := validate(ctx, s.clauses, s.Get, req); err != nil {
		return contracts.Decision{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock().UTC()
	s.seq[req.ClauseID]++

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
		Seq:       s.seq[req.ClauseID],
		PrevHash:  genesisHash,
	}
	if log := s.logs[req.ClauseID]; len(log) > 0 {
		d.PrevHash = log[len(log)-1].ContentHash
	}

	hash, err := contentHash(d)
	if err != nil {
		return contracts.Decision{}, err
	}
	d.ContentHash = hash

	s.logs[req.ClauseID] = append(s.logs[req.ClauseID], d)
	s.byID[d.ID] = d

	if err := s.clauses.Touch(ctx, req.ClauseID, now); err != nil {
		return contracts.Decision{}, err
	}
	return d, nil
}

func (s *MemoryStore) List(ctx context.Context, clauseID string) ([]contracts.Decision, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	return ordered(s.logs[clauseID]), nil
}

func (s *MemoryStore) Get(ctx context.Context, decisionID string) (contracts.Decision, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.byID[decisionID]
	if !ok {
		return contracts.Decision{}, &contracts.NotFoundError{Kind: "decision", ID: decisionID}
	}
	return d, nil
}

func (s *MemoryStore) VerifyChain(ctx context.Context, clauseID string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	return verifyLog(clauseID, s.logs[clauseID])
}

var _ Store = (*MemoryStore)(nil)
