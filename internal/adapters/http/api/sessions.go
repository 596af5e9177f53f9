// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/okian/vigil/internal/app"
	"github.com/okian/vigil/internal/domain/session"
)

// SessionDependencies defines the interface for session lifecycle operations.
type SessionDependencies interface {
	StartSession(ctx context.Context, examID, candidateID string) (*session.Session, bool, error)
	SubmitSession(ctx context.Context, sessionID string, responses []session.Response) error
	TerminateSession(ctx context.Context, sessionID string) error
	GetSnapshot(ctx context.Context, sessionID string) (app.Snapshot, error)
	CandidateStatus(ctx context.Context, sessionID string) (app.CandidateResult, error)
}

// SessionsHandler handles session lifecycle requests.
type SessionsHandler struct {
	deps SessionDependencies
}

// NewSessionsHandler creates a new sessions handler.
func NewSessionsHandler(deps SessionDependencies) *SessionsHandler {
	return &SessionsHandler{deps: deps}
}

type startRequest struct {
	ExamID      string `json:"exam_id"`
	CandidateID string `json:"candidate_id"`
}

func (r startRequest) validate() error {
	switch {
	case strings.TrimSpace(r.ExamID) == "":
		return NewKind("missing exam_id", ErrBadRequest)
	case strings.TrimSpace(r.CandidateID) == "":
		return NewKind("missing candidate_id", ErrBadRequest)
	}
	return nil
}

type startResponse struct {
	Session *session.Session `json:"session"`
	Resumed bool             `json:"resumed"`
}

// HandleStart handles POST /sessions/start requests. Starting is
// idempotent: a duplicate start while in progress returns the existing
// session unchanged.
func (h *SessionsHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	const op = "api.start_session"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	sess, created, err := h.deps.StartSession(r.Context(), req.ExamID, req.CandidateID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, startResponse{Session: sess, Resumed: !created})
}

type submitRequest struct {
	SessionID string          `json:"session_id"`
	Responses []responseInput `json:"responses"`
}

type responseInput struct {
	QuestionID string `json:"question_id"`
	Answer     string `json:"answer"`
}

func (r submitRequest) validate() error {
	if strings.TrimSpace(r.SessionID) == "" {
		return NewKind("missing session_id", ErrBadRequest)
	}
	for _, resp := range r.Responses {
		if strings.TrimSpace(resp.QuestionID) == "" {
			return NewKind("missing question_id in response", ErrBadRequest)
		}
	}
	return nil
}

type ackResponse struct {
	Status string `json:"status"`
}

// HandleSubmit handles POST /sessions/submit requests.
func (h *SessionsHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit_session"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	responses := make([]session.Response, len(req.Responses))
	for i, in := range req.Responses {
		responses[i] = session.Response{QuestionID: in.QuestionID, Answer: in.Answer}
	}
	if err := h.deps.SubmitSession(r.Context(), req.SessionID, responses); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ackResponse{Status: "submitted"})
}

// HandleSession dispatches the /sessions/{id}[...] routes:
// GET /sessions/{id}, GET /sessions/{id}/status, POST /sessions/{id}/terminate.
func (h *SessionsHandler) HandleSession(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/sessions/")
	id, rest, _ := strings.Cut(path, "/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}

	switch {
	case rest == "" && r.Method == http.MethodGet:
		snapshot, err := h.deps.GetSnapshot(r.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, snapshot)
	case rest == "status" && r.Method == http.MethodGet:
		result, err := h.deps.CandidateStatus(r.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	case rest == "terminate" && r.Method == http.MethodPost:
		if err := h.deps.TerminateSession(r.Context(), id); err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ackResponse{Status: "terminated"})
	default:
		http.NotFound(w, r)
	}
}
