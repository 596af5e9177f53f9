// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/okian/vigil/internal/domain/session"
)

// AdminDependencies defines the interface for admin scoring operations.
type AdminDependencies interface {
	EvaluateSession(ctx context.Context, sessionID string) (session.AcademicEvaluation, error)
	ScoreResponse(ctx context.Context, sessionID, responseID string, score int) (session.AcademicEvaluation, error)
}

// AdminHandler handles admin scoring requests.
type AdminHandler struct {
	deps AdminDependencies
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(deps AdminDependencies) *AdminHandler {
	return &AdminHandler{deps: deps}
}

type evaluateRequest struct {
	SessionID string `json:"session_id"`
}

// HandleEvaluate handles POST /admin/evaluate requests.
func (h *AdminHandler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	const op = "api.admin_evaluate"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req evaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind("missing session_id", ErrBadRequest))
		return
	}

	evaluation, err := h.deps.EvaluateSession(r.Context(), req.SessionID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, evaluation)
}

type scoreRequest struct {
	SessionID  string `json:"session_id"`
	ResponseID string `json:"response_id"`
	Score      int    `json:"score"`
}

func (r scoreRequest) validate() error {
	switch {
	case strings.TrimSpace(r.SessionID) == "":
		return NewKind("missing session_id", ErrBadRequest)
	case strings.TrimSpace(r.ResponseID) == "":
		return NewKind("missing response_id", ErrBadRequest)
	case r.Score < 0:
		return NewKind("score must not be negative", ErrBadRequest)
	}
	return nil
}

// HandleScore handles POST /admin/score requests for subjective review.
func (h *AdminHandler) HandleScore(w http.ResponseWriter, r *http.Request) {
	const op = "api.admin_score"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req scoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	evaluation, err := h.deps.ScoreResponse(r.Context(), req.SessionID, req.ResponseID, req.Score)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, evaluation)
}
