package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexroom/redline/pkg/auth"
	"github.com/lexroom/redline/pkg/cache"
	"github.com/lexroom/redline/pkg/clause"
	"github.com/lexroom/redline/pkg/conflict"
	"github.com/lexroom/redline/pkg/contracts"
	"github.com/lexroom/redline/pkg/decision"
	"github.com/lexroom/redline/pkg/permission"
	"github.com/lexroom/redline/pkg/review"
)

// asUser injects a principal the way the JWT middleware would.
func asUser(userID string, role permission.Role, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := auth.WithPrincipal(r.Context(), auth.Principal{UserID: userID, Role: role})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func newTestServer(t *testing.T, opts ...ServerOption) *Server {
	t.Helper()
	ctx := context.Background()

	clauses := clause.NewMemoryStore()
	require.NoError(t, clauses.PutClause(ctx, contracts.Clause{
		ID:           "cl-1",
		ContractID:   "ct-1",
		Heading:      "Limitation of Liability",
		OriginalText: "Liability is unlimited.",
	}))
	require.NoError(t, clauses.PutFinding(ctx, contracts.Finding{
		ID:           "f-1",
		ClauseID:     "cl-1",
		RiskLevel:    contracts.RiskHigh,
		FallbackText: "Liability is capped at fees paid.",
	}))

	decisions := decision.NewMemoryStore(clauses)
	gate := permission.NewGate(permission.StaticDirectory{
		"u-counsel": {Name: "senior_counsel", CanApprove: true},
	})
	service := review.NewService(clauses, decisions, gate, cache.NewMemoryCache(), conflict.NewDetector())
	return NewServer(service, opts...)
}

func doJSON(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestApplyDecisionEndpoint(t *testing.T) {
	s := newTestServer(t)
	handler := asUser("u-reviewer", permission.Role{Name: "reviewer"}, s.Routes())

	rec := doJSON(t, handler, http.MethodPost, "/v1/clauses/cl-1/decisions", `{
		"finding_id": "f-1",
		"action": "APPLY_FALLBACK",
		"payload": {"replacement_text": "Liability is capped at fees paid.", "source": "playbook", "rule_id": "rule-7"}
	}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var result review.DecisionResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "cl-1", result.Decision.ClauseID)
	assert.Equal(t, "u-reviewer", result.Decision.UserID)
	assert.Equal(t, uint64(1), result.Decision.Seq)
	assert.Equal(t, "Liability is capped at fees paid.", result.Projection.EffectiveText)
	assert.Nil(t, result.Conflict)

	// Projection read reflects the write.
	rec = doJSON(t, handler, http.MethodGet, "/v1/clauses/cl-1/projection", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var proj contracts.ProjectionResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &proj))
	assert.Equal(t, "Liability is capped at fees paid.", proj.EffectiveText)
	assert.Equal(t, contracts.FindingResolvedFallback, proj.Findings["f-1"].Status)
}

func TestApplyDecisionEndpointRejections(t *testing.T) {
	s := newTestServer(t)
	handler := asUser("u-reviewer", permission.Role{Name: "reviewer"}, s.Routes())

	cases := []struct {
		name string
		path string
		body string
		code int
	}{
		{
			"malformed json", "/v1/clauses/cl-1/decisions",
			`{"action": `, http.StatusBadRequest,
		},
		{
			"unknown action", "/v1/clauses/cl-1/decisions",
			`{"action": "DELETE_CLAUSE", "payload": {}}`, http.StatusBadRequest,
		},
		{
			"unknown envelope field", "/v1/clauses/cl-1/decisions",
			`{"action": "REVERT", "payload": {}, "performed_by": "x"}`, http.StatusBadRequest,
		},
		{
			"payload shape mismatch", "/v1/clauses/cl-1/decisions",
			`{"finding_id": "f-1", "action": "EDIT_MANUAL", "payload": {"note_text": "hi"}}`, http.StatusBadRequest,
		},
		{
			"missing clause", "/v1/clauses/cl-missing/decisions",
			`{"action": "REVERT", "payload": {}}`, http.StatusNotFound,
		},
		{
			"missing finding", "/v1/clauses/cl-1/decisions",
			`{"finding_id": "f-missing", "action": "ACCEPT_DEVIATION", "payload": {}}`, http.StatusNotFound,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, handler, http.MethodPost, tc.path, tc.body)
			assert.Equal(t, tc.code, rec.Code, rec.Body.String())
			assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

			var problem ProblemDetail
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
			assert.Equal(t, tc.code, problem.Status)
		})
	}
}

func TestApplyDecisionEndpointEscalationLock(t *testing.T) {
	s := newTestServer(t)
	routes := s.Routes()

	rec := doJSON(t, asUser("u-reviewer", permission.Role{Name: "reviewer"}, routes),
		http.MethodPost, "/v1/clauses/cl-1/decisions", `{
			"finding_id": "f-1",
			"action": "ESCALATE",
			"payload": {"reason": "liability_cap", "comment": "needs signoff", "assignee_id": "u-counsel"}
		}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// A different reviewer is locked out with 403.
	rec = doJSON(t, asUser("u-other", permission.Role{Name: "reviewer"}, routes),
		http.MethodPost, "/v1/clauses/cl-1/decisions", `{
			"finding_id": "f-1",
			"action": "ACCEPT_DEVIATION",
			"payload": {}
		}`)
	assert.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())

	// The assignee may act.
	rec = doJSON(t, asUser("u-counsel", permission.Role{Name: "senior_counsel", CanApprove: true}, routes),
		http.MethodPost, "/v1/clauses/cl-1/decisions", `{
			"finding_id": "f-1",
			"action": "ACCEPT_DEVIATION",
			"payload": {"comment": "approved"}
		}`)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestApplyDecisionEndpointConflictWarning(t *testing.T) {
	s := newTestServer(t)
	handler := asUser("u-reviewer", permission.Role{Name: "reviewer"}, s.Routes())

	rec := doJSON(t, handler, http.MethodPost, "/v1/clauses/cl-1/decisions", `{
		"finding_id": "f-1",
		"action": "ADD_NOTE",
		"payload": {"note_text": "first pass"}
	}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	stale := time.Now().Add(-time.Hour).UTC().Format(time.RFC3339)
	rec = doJSON(t, handler, http.MethodPost, "/v1/clauses/cl-1/decisions", `{
		"finding_id": "f-1",
		"action": "ADD_NOTE",
		"payload": {"note_text": "second pass"},
		"last_seen": "`+stale+`"
	}`)
	require.Equal(t, http.StatusCreated, rec.Code, "a conflict warning must not block the write")

	var result review.DecisionResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.NotNil(t, result.Conflict)
	assert.Equal(t, "cl-1", result.Conflict.ClauseID)
}

func TestHistoryAndIntegrityEndpoints(t *testing.T) {
	s := newTestServer(t)
	handler := asUser("u-reviewer", permission.Role{Name: "reviewer"}, s.Routes())

	doJSON(t, handler, http.MethodPost, "/v1/clauses/cl-1/decisions", `{
		"finding_id": "f-1",
		"action": "ADD_NOTE",
		"payload": {"note_text": "reviewed"}
	}`)

	rec := doJSON(t, handler, http.MethodGet, "/v1/clauses/cl-1/decisions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var history struct {
		ClauseID  string               `json:"clause_id"`
		Decisions []contracts.Decision `json:"decisions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	require.Len(t, history.Decisions, 1)
	assert.Equal(t, contracts.ActionAddNote, history.Decisions[0].Action)

	rec = doJSON(t, handler, http.MethodGet, "/v1/clauses/cl-1/integrity", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var integrity struct {
		Intact bool `json:"intact"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &integrity))
	assert.True(t, integrity.Intact)

	rec = doJSON(t, handler, http.MethodGet, "/v1/clauses/cl-missing/integrity", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTextChangesEndpoint(t *testing.T) {
	s := newTestServer(t)
	handler := asUser("u-reviewer", permission.Role{Name: "reviewer"}, s.Routes())

	doJSON(t, handler, http.MethodPost, "/v1/clauses/cl-1/decisions", `{
		"finding_id": "f-1",
		"action": "EDIT_MANUAL",
		"payload": {"replacement_text": "Liability is capped at 2x fees."}
	}`)

	rec := doJSON(t, handler, http.MethodGet, "/v1/contracts/ct-1/text-changes", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		ContractID string                       `json:"contract_id"`
		Changes    []contracts.ActiveTextChange `json:"changes"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Changes, 1)
	assert.Equal(t, "Liability is capped at 2x fees.", body.Changes[0].ReplacementText)
	assert.Equal(t, "u-reviewer", body.Changes[0].Author)
}

func TestUnauthenticatedDecisionWrite(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s.Routes(), http.MethodPost, "/v1/clauses/cl-1/decisions",
		`{"action": "REVERT", "payload": {}}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestIdempotencyMiddlewareReplaysDecisionWrite(t *testing.T) {
	s := newTestServer(t)
	handler := asUser("u-reviewer", permission.Role{Name: "reviewer"},
		Chain(s.Routes(), IdempotencyMiddleware(NewIdempotencyStore(time.Minute))))

	body := `{
		"finding_id": "f-1",
		"action": "ADD_NOTE",
		"payload": {"note_text": "once only"}
	}`

	first := httptest.NewRequest(http.MethodPost, "/v1/clauses/cl-1/decisions", strings.NewReader(body))
	first.Header.Set("Idempotency-Key", "key-1")
	rec1 := httptest.NewRecorder()
	handler.ServeHTTP(rec1, first)
	require.Equal(t, http.StatusCreated, rec1.Code)

	second := httptest.NewRequest(http.MethodPost, "/v1/clauses/cl-1/decisions", strings.NewReader(body))
	second.Header.Set("Idempotency-Key", "key-1")
	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, second)
	require.Equal(t, http.StatusCreated, rec2.Code)
	assert.Equal(t, rec1.Body.String(), rec2.Body.String(), "retry replays the cached response")

	// Only one decision was appended.
	rec := doJSON(t, handler, http.MethodGet, "/v1/clauses/cl-1/decisions", "")
	var history struct {
		Decisions []contracts.Decision `json:"decisions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	assert.Len(t, history.Decisions, 1)
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s.Routes(), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestEscalateFillsDefaultAssignee(t *testing.T) {
	s := newTestServer(t, WithDefaultAssignee("u-counsel"))
	handler := asUser("u-reviewer", permission.Role{Name: "reviewer"}, s.Routes())

	rec := doJSON(t, handler, http.MethodPost, "/v1/clauses/cl-1/decisions", `{
		"finding_id": "f-1",
		"action": "ESCALATE",
		"payload": {"reason": "liability_cap", "comment": "needs partner review"}
	}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var result review.DecisionResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	payload, ok := result.Decision.Payload.(contracts.EscalatePayload)
	require.True(t, ok)
	assert.Equal(t, "u-counsel", payload.AssigneeID)
	assert.Equal(t, contracts.FindingEscalated, result.Projection.Findings["f-1"].Status)
}

func TestEscalateExplicitAssigneeWinsOverDefault(t *testing.T) {
	s := newTestServer(t, WithDefaultAssignee("u-nobody"))
	handler := asUser("u-reviewer", permission.Role{Name: "reviewer"}, s.Routes())

	rec := doJSON(t, handler, http.MethodPost, "/v1/clauses/cl-1/decisions", `{
		"finding_id": "f-1",
		"action": "ESCALATE",
		"payload": {"reason": "liability_cap", "comment": "needs partner review", "assignee_id": "u-counsel"}
	}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var result review.DecisionResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	payload, ok := result.Decision.Payload.(contracts.EscalatePayload)
	require.True(t, ok)
	assert.Equal(t, "u-counsel", payload.AssigneeID)
}

func TestEscalateWithoutAssigneeAndNoDefaultRejected(t *testing.T) {
	s := newTestServer(t)
	handler := asUser("u-reviewer", permission.Role{Name: "reviewer"}, s.Routes())

	rec := doJSON(t, handler, http.MethodPost, "/v1/clauses/cl-1/decisions", `{
		"finding_id": "f-1",
		"action": "ESCALATE",
		"payload": {"reason": "liability_cap", "comment": "needs partner review"}
	}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
}
