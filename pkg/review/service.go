// Package review orchestrates one decision write or projection read end to
// end: permission gate, append-only decision store, projection replay,
// write-through cache, conflict warning and audit trail.
package review

import (
	"context"
	"log/slog"
	"time"

	"github.com/lexroom/redline/pkg/audit"
	"github.com/lexroom/redline/pkg/cache"
	"github.com/lexroom/redline/pkg/clause"
	"github.com/lexroom/redline/pkg/conflict"
	"github.com/lexroom/redline/pkg/contracts"
	"github.com/lexroom/redline/pkg/decision"
	"github.com/lexroom/redline/pkg/observability"
	"github.com/lexroom/redline/pkg/permission"
	"github.com/lexroom/redline/pkg/projection"
)

// Service wires the review engine's collaborators behind one API surface.
type Service struct {
	clauses   clause.Store
	decisions decision.Store
	gate      *permission.Gate
	cache     cache.Cache
	detector  *conflict.Detector
	audit     audit.Logger
	metrics   *observability.EngineMetrics
	logger    *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithAudit sets the audit sink. Default: discard.
func WithAudit(a audit.Logger) Option {
	return func(s *Service) { s.audit = a }
}

// WithMetrics sets the engine metrics. Default: no-op instruments.
func WithMetrics(m *observability.EngineMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the structured logger. Default: slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates the review service.
func NewService(
	clauses clause.Store,
	decisions decision.Store,
	gate *permission.Gate,
	projections cache.Cache,
	detector *conflict.Detector,
	opts ...Option,
) *Service {
	s := &Service{
		clauses:   clauses,
		decisions: decisions,
		gate:      gate,
		cache:     projections,
		detector:  detector,
		audit:     audit.Nop{},
		metrics:   &observability.EngineMetrics{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DecisionRequest is one decision write attempt.
type DecisionRequest struct {
	ClauseID string
	Subject  contracts.Subject
	UserID   string
	Role     permission.Role
	Action   contracts.ActionType
	Payload  contracts.Payload

	// LastSeen is the caller's snapshot of the clause's last modification,
	// used for the informational conflict warning. Nil skips the check.
	LastSeen *time.Time
}

// DecisionResult is the outcome of an accepted decision.
type DecisionResult struct {
	Decision   contracts.Decision         `json:"decision"`
	Projection contracts.ProjectionResult `json:"projection"`

	// Conflict is advisory. The decision above was applied regardless.
	Conflict *contracts.ConflictWarning `json:"conflict,omitempty"`
}

// ApplyDecision authorizes and appends one decision, then returns the
// clause's recomputed projection. A concurrent-edit warning never blocks
// the write; it rides along in the result.
func (s *Service) ApplyDecision(ctx context.Context, req DecisionRequest) (DecisionResult, error) {
	cl, err := s.clauses.GetClause(ctx, req.ClauseID)
	if err != nil {
		return DecisionResult{}, err
	}

	// The escalation lock is read from the clause's current projection.
	before, err := s.decisions.List(ctx, req.ClauseID)
	if err != nil {
		return DecisionResult{}, err
	}
	findings, err := s.clauses.ListFindings(ctx, req.ClauseID)
	if err != nil {
		return DecisionResult{}, err
	}
	current := projection.Project(cl, findings, before)

	if err := s.gate.Authorize(ctx, req.UserID, req.Role, req.Subject, req.Action, req.Payload, current.Findings); err != nil {
		return DecisionResult{}, err
	}

	// Compare against the pre-append modification time: the caller's
	// snapshot cannot be stale relative to the write we are about to do.
	warning := s.detector.Check(cl, req.LastSeen)

	d, err := s.decisions.Append(ctx, decision.AppendRequest{
		ClauseID: req.ClauseID,
		Subject:  req.Subject,
		UserID:   req.UserID,
		Action:   req.Action,
		Payload:  req.Payload,
	})
	if err != nil {
		return DecisionResult{}, err
	}
	s.metrics.RecordDecision(ctx, string(req.Action))

	if err := s.cache.Invalidate(ctx, req.ClauseID); err != nil {
		s.logger.WarnContext(ctx, "projection cache invalidation failed",
			"clause_id", req.ClauseID, "error", err)
	}

	result, err := s.recompute(ctx, cl, findings)
	if err != nil {
		return DecisionResult{}, err
	}

	if err := s.audit.Record(ctx, audit.EventMutation, "decision.append", "clause/"+req.ClauseID,
		map[string]interface{}{
			"decision_id": d.ID,
			"action":      string(req.Action),
			"seq":         d.Seq,
		}); err != nil {
		s.logger.WarnContext(ctx, "audit record failed", "decision_id", d.ID, "error", err)
	}

	s.logger.InfoContext(ctx, "decision applied",
		"clause_id", req.ClauseID,
		"decision_id", d.ID,
		"action", string(req.Action),
		"user_id", req.UserID,
		"conflict", warning != nil,
	)

	return DecisionResult{Decision: d, Projection: result, Conflict: warning}, nil
}

// GetProjection returns the clause's materialized state, serving from the
// cache when possible.
func (s *Service) GetProjection(ctx context.Context, clauseID string) (contracts.ProjectionResult, error) {
	if cached, ok, err := s.cache.Get(ctx, clauseID); err == nil && ok {
		s.metrics.RecordCache(ctx, true)
		return cached, nil
	}
	s.metrics.RecordCache(ctx, false)

	cl, err := s.clauses.GetClause(ctx, clauseID)
	if err != nil {
		return contracts.ProjectionResult{}, err
	}
	findings, err := s.clauses.ListFindings(ctx, clauseID)
	if err != nil {
		return contracts.ProjectionResult{}, err
	}
	return s.recompute(ctx, cl, findings)
}

// recompute replays the clause's log and refreshes the cache entry.
func (s *Service) recompute(ctx context.Context, cl contracts.Clause, findings []contracts.Finding) (contracts.ProjectionResult, error) {
	decisions, err := s.decisions.List(ctx, cl.ID)
	if err != nil {
		return contracts.ProjectionResult{}, err
	}

	start := time.Now()
	result := projection.Project(cl, findings, decisions)
	s.metrics.RecordProjection(ctx, time.Since(start))

	if err := s.cache.Set(ctx, cl.ID, result); err != nil {
		s.logger.WarnContext(ctx, "projection cache write failed", "clause_id", cl.ID, "error", err)
	}
	return result, nil
}

// GetHistory returns the clause's full decision log, oldest first.
// Undone and reverted decisions are included; the log never forgets.
func (s *Service) GetHistory(ctx context.Context, clauseID string) ([]contracts.Decision, error) {
	if _, err := s.clauses.GetClause(ctx, clauseID); err != nil {
		return nil, err
	}
	return s.decisions.List(ctx, clauseID)
}

// GetActiveTextChanges returns, for every clause of the contract whose
// effective text currently differs from its original, the decision that
// determines it. Consumed by document export.
func (s *Service) GetActiveTextChanges(ctx context.Context, contractID string) ([]contracts.ActiveTextChange, error) {
	clauses, err := s.clauses.ListClausesByContract(ctx, contractID)
	if err != nil {
		return nil, err
	}

	changes := make([]contracts.ActiveTextChange, 0, len(clauses))
	for _, cl := range clauses {
		decisions, err := s.decisions.List(ctx, cl.ID)
		if err != nil {
			return nil, err
		}
		d, ok := projection.ActiveTextDecision(decisions)
		if !ok {
			continue
		}
		replacement, ok := projection.ReplacementText(d)
		if !ok || replacement == cl.OriginalText {
			continue
		}
		changes = append(changes, contracts.ActiveTextChange{
			ClauseID:        cl.ID,
			OriginalText:    cl.OriginalText,
			ReplacementText: replacement,
			Author:          d.UserID,
			Timestamp:       d.Timestamp,
		})
	}
	return changes, nil
}

// VerifyChain checks the integrity of the clause's decision log.
func (s *Service) VerifyChain(ctx context.Context, clauseID string) error {
	if _, err := s.clauses.GetClause(ctx, clauseID); err != nil {
		return err
	}
	return s.decisions.VerifyChain(ctx, clauseID)
}
