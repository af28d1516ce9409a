package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/lexroom/redline/pkg/auth"
	"github.com/lexroom/redline/pkg/contracts"
	"github.com/lexroom/redline/pkg/review"
)

// Server routes HTTP requests into the review service.
type Server struct {
	service         *review.Service
	defaultAssignee string
}

type ServerOption func(*Server)

// WithDefaultAssignee fills assignee_id on ESCALATE requests that omit
// it, per the active review profile's escalation routing.
func WithDefaultAssignee(userID string) ServerOption {
	return func(s *Server) { s.defaultAssignee = userID }
}

// NewServer creates the HTTP surface over the review service.
func NewServer(service *review.Service, opts ...ServerOption) *Server {
	s := &Server{service: service}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes registers all endpoints on a fresh mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/clauses/{clauseID}/decisions", s.handleApplyDecision)
	mux.HandleFunc("GET /v1/clauses/{clauseID}/projection", s.handleGetProjection)
	mux.HandleFunc("GET /v1/clauses/{clauseID}/decisions", s.handleGetHistory)
	mux.HandleFunc("GET /v1/clauses/{clauseID}/integrity", s.handleVerifyChain)
	mux.HandleFunc("GET /v1/contracts/{contractID}/text-changes", s.handleGetTextChanges)
	mux.HandleFunc("GET /health", s.handleHealth)
	return mux
}

// decisionRequestBody is the wire shape of one decision write.
type decisionRequestBody struct {
	FindingID string          `json:"finding_id,omitempty"`
	Action    string          `json:"action"`
	Payload   json.RawMessage `json:"payload"`
	LastSeen  *time.Time      `json:"last_seen,omitempty"`
}

func (s *Server) handleApplyDecision(w http.ResponseWriter, r *http.Request) {
	principal, err := auth.GetPrincipal(r.Context())
	if err != nil {
		WriteError(w, r, http.StatusUnauthorized, "Unauthorized", "Authentication required")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var raw interface{}
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		WriteBadRequest(w, r, "Invalid request body")
		return
	}
	if err := compiledDecisionSchema.Validate(raw); err != nil {
		WriteBadRequest(w, r, "Request does not match the decision schema: "+err.Error())
		return
	}

	encoded, err := json.Marshal(raw)
	if err != nil {
		WriteInternal(w, r, err)
		return
	}
	var body decisionRequestBody
	if err := json.Unmarshal(encoded, &body); err != nil {
		WriteBadRequest(w, r, "Invalid request body")
		return
	}

	body.Payload, err = s.applyEscalationDefault(contracts.ActionType(body.Action), body.Payload)
	if err != nil {
		WriteInternal(w, r, err)
		return
	}
	payload, err := contracts.DecodePayload(contracts.ActionType(body.Action), body.Payload)
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}
	subject := contracts.LegacyRef()
	if body.FindingID != "" {
		subject = contracts.FindingRef(body.FindingID)
	}

	result, err := s.service.ApplyDecision(r.Context(), review.DecisionRequest{
		ClauseID: r.PathValue("clauseID"),
		Subject:  subject,
		UserID:   principal.UserID,
		Role:     principal.Role,
		Action:   contracts.ActionType(body.Action),
		Payload:  payload,
		LastSeen: body.LastSeen,
	})
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// applyEscalationDefault fills assignee_id on an ESCALATE payload that
// omits it, before payload validation runs. A no-op unless the server is
// configured with a default assignee.
func (s *Server) applyEscalationDefault(action contracts.ActionType, raw json.RawMessage) (json.RawMessage, error) {
	if s.defaultAssignee == "" || action != contracts.ActionEscalate {
		return raw, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		// Malformed payloads are rejected downstream with a proper
		// validation error.
		return raw, nil
	}
	if assignee, ok := fields["assignee_id"]; ok && string(assignee) != `""` {
		return raw, nil
	}
	encoded, err := json.Marshal(s.defaultAssignee)
	if err != nil {
		return nil, err
	}
	fields["assignee_id"] = encoded
	return json.Marshal(fields)
}

func (s *Server) handleGetProjection(w http.ResponseWriter, r *http.Request) {
	result, err := s.service.GetProjection(r.Context(), r.PathValue("clauseID"))
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	decisions, err := s.service.GetHistory(r.Context(), r.PathValue("clauseID"))
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"clause_id": r.PathValue("clauseID"),
		"decisions": decisions,
	})
}

func (s *Server) handleVerifyChain(w http.ResponseWriter, r *http.Request) {
	clauseID := r.PathValue("clauseID")
	if err := s.service.VerifyChain(r.Context(), clauseID); err != nil {
		var notFound *contracts.NotFoundError
		if errors.As(err, &notFound) {
			WriteNotFound(w, r, notFound.Error())
			return
		}
		// A broken chain is not an internal fault; report it as state.
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"clause_id": clauseID,
			"intact":    false,
			"detail":    err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"clause_id": clauseID,
		"intact":    true,
	})
}

func (s *Server) handleGetTextChanges(w http.ResponseWriter, r *http.Request) {
	changes, err := s.service.GetActiveTextChanges(r.Context(), r.PathValue("contractID"))
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"contract_id": r.PathValue("contractID"),
		"changes":     changes,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
