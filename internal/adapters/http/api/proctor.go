// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/okian/vigil/internal/domain/session"
)

// ProctorDependencies defines the interface for proctor operations.
type ProctorDependencies interface {
	SubmitVerdict(ctx context.Context, sessionID string, verdict session.VerdictStatus, decidedBy, remarks string) error
	ListReviewQueue(ctx context.Context) ([]*session.Session, error)
}

// ProctorHandler handles proctor requests.
type ProctorHandler struct {
	deps ProctorDependencies
}

// NewProctorHandler creates a new proctor handler.
func NewProctorHandler(deps ProctorDependencies) *ProctorHandler {
	return &ProctorHandler{deps: deps}
}

type verdictRequest struct {
	SessionID string `json:"session_id"`
	Verdict   string `json:"verdict"`
	DecidedBy string `json:"decided_by"`
	Remarks   string `json:"remarks,omitempty"`
}

func (r verdictRequest) validate() error {
	switch {
	case strings.TrimSpace(r.SessionID) == "":
		return NewKind("missing session_id", ErrBadRequest)
	case r.Verdict != string(session.VerdictCleared) && r.Verdict != string(session.VerdictInvalidated):
		return NewKind("verdict must be CLEARED or INVALIDATED", ErrBadRequest)
	}
	return nil
}

// HandleVerdict handles POST /proctor/verdict requests.
func (h *ProctorHandler) HandleVerdict(w http.ResponseWriter, r *http.Request) {
	const op = "api.proctor_verdict"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req verdictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	err := h.deps.SubmitVerdict(r.Context(), req.SessionID, session.VerdictStatus(req.Verdict), req.DecidedBy, req.Remarks)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ackResponse{Status: "verdict recorded"})
}

// HandleReviewQueue handles GET /proctor/review requests.
func (h *ProctorHandler) HandleReviewQueue(w http.ResponseWriter, r *http.Request) {
	const op = "api.proctor_review"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	sessions, err := h.deps.ListReviewQueue(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	if sessions == nil {
		sessions = []*session.Session{}
	}
	writeJSON(w, http.StatusOK, sessions)
}
