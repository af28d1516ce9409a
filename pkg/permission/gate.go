// Package permission decides whether a user may act on a finding. The only
// restriction beyond authentication is the escalation lock: once a finding
// is ESCALATED, it belongs to the assignee (and administrators) until a
// status-bearing decision releases it. Escalating additionally requires
// the assignee to hold an approval-capable role.
package permission

import (
	"context"
	"fmt"

	"github.com/lexroom/redline/pkg/contracts"
)

// Role describes what a user may do, as reported by the external identity
// collaborator.
type Role struct {
	Name       string `json:"name"`
	Admin      bool   `json:"admin"`
	CanApprove bool   `json:"can_approve"`
}

// RoleDirectory resolves a user's role. Backed by the external user
// service in production and by StaticDirectory in dev mode and tests.
type RoleDirectory interface {
	Lookup(ctx context.Context, userID string) (Role, error)
}

// StaticDirectory is a fixed userID -> Role map.
type StaticDirectory map[string]Role

func (d StaticDirectory) Lookup(ctx context.Context, userID string) (Role, error) {
	_ = ctx
	role, ok := d[userID]
	if !ok {
		return Role{}, &contracts.NotFoundError{Kind: "user", ID: userID}
	}
	return role, nil
}

// Gate authorizes decision writes against the clause's current projection.
type Gate struct {
	directory      RoleDirectory
	allowedReasons []string
}

type GateOption func(*Gate)

// WithAllowedReasons restricts escalation reasons to the given list.
// An empty list permits any reason.
func WithAllowedReasons(reasons []string) GateOption {
	return func(g *Gate) { g.allowedReasons = reasons }
}

func NewGate(directory RoleDirectory, opts ...GateOption) *Gate {
	g := &Gate{directory: directory}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Authorize allows or denies one decision attempt. statuses is the
// current per-finding projection of the clause; the gate reads lock state
// from it rather than keeping state of its own.
//
// The lock is an application-level invariant, not a storage lock: two
// actors racing at the boundary both get their decisions appended, replay
// orders them, and the loser learns via a conflict warning.
func (g *Gate) Authorize(
	ctx context.Context,
	userID string,
	role Role,
	subject contracts.Subject,
	action contracts.ActionType,
	payload contracts.Payload,
	statuses map[string]contracts.FindingProjection,
) error {
	if findingID, ok := subject.FindingID(); ok {
		if err := g.checkLock(userID, role, findingID, statuses); err != nil {
			return err
		}
	}

	if action == contracts.ActionEscalate {
		p, ok := payload.(contracts.EscalatePayload)
		if !ok {
			return &contracts.ValidationError{Field: "payload", Reason: "ESCALATE requires an escalation payload"}
		}
		if err := g.checkReason(p.Reason); err != nil {
			return err
		}
		return g.checkAssignee(ctx, p.AssigneeID)
	}
	return nil
}

// checkReason enforces the profile's escalation reason allowlist, if one
// is configured.
func (g *Gate) checkReason(reason string) error {
	if len(g.allowedReasons) == 0 {
		return nil
	}
	for _, r := range g.allowedReasons {
		if r == reason {
			return nil
		}
	}
	return &contracts.ValidationError{
		Field:  "payload.reason",
		Reason: fmt.Sprintf("escalation reason %q is not permitted by the active review profile", reason),
	}
}

// checkLock denies any action on an ESCALATED finding unless the actor is
// the lock holder or an administrator.
func (g *Gate) checkLock(userID string, role Role, findingID string, statuses map[string]contracts.FindingProjection) error {
	fp, ok := statuses[findingID]
	if !ok || fp.Status != contracts.FindingEscalated || fp.Escalation == nil {
		return nil
	}
	if role.Admin || fp.Escalation.AssigneeID == userID {
		return nil
	}
	return &contracts.AuthorizationError{
		Reason: fmt.Sprintf("finding %s is escalated to %s; only the assignee or an administrator may act on it",
			findingID, fp.Escalation.AssigneeID),
	}
}

// checkAssignee verifies the escalation target can approve. The check runs
// against the assignee's role at escalate time, not at later decisions.
func (g *Gate) checkAssignee(ctx context.Context, assigneeID string) error {
	role, err := g.directory.Lookup(ctx, assigneeID)
	if err != nil {
		return err
	}
	if role.Admin || role.CanApprove {
		return nil
	}
	return &contracts.AuthorizationError{
		Reason: fmt.Sprintf("assignee %s does not hold an approval-capable role", assigneeID),
	}
}
