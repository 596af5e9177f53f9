// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/vigil/internal/adapters/repository"
	"github.com/okian/vigil/internal/app"
	"github.com/okian/vigil/internal/domain/grading"
	"github.com/okian/vigil/internal/domain/session"
	"github.com/okian/vigil/internal/domain/signal"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the service implementation.
type Dependencies interface {
	StartSession(ctx context.Context, examID, candidateID string) (*session.Session, bool, error)
	SubmitSession(ctx context.Context, sessionID string, responses []session.Response) error
	TerminateSession(ctx context.Context, sessionID string) error

	IngestClientEvent(ctx context.Context, sessionID string, eventType session.EventType, details map[string]any) (string, error)
	IngestFrame(ctx context.Context, sessionID, imageBase64 string) (bool, []signal.Trigger, error)

	SubmitVerdict(ctx context.Context, sessionID string, verdict session.VerdictStatus, decidedBy, remarks string) error
	ListReviewQueue(ctx context.Context) ([]*session.Session, error)

	EvaluateSession(ctx context.Context, sessionID string) (session.AcademicEvaluation, error)
	ScoreResponse(ctx context.Context, sessionID, responseID string, score int) (session.AcademicEvaluation, error)

	GetSnapshot(ctx context.Context, sessionID string) (app.Snapshot, error)
	CandidateStatus(ctx context.Context, sessionID string) (app.CandidateResult, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
	sessionsHandler  *SessionsHandler
	integrityHandler *IntegrityHandler
	proctorHandler   *ProctorHandler
	adminHandler     *AdminHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:    NewHealthHandler(),
		statsHandler:     NewStatsHandler(statsProvider),
		sessionsHandler:  NewSessionsHandler(deps),
		integrityHandler: NewIntegrityHandler(deps),
		proctorHandler:   NewProctorHandler(deps),
		adminHandler:     NewAdminHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.Handle("/metrics", s.healthHandler.MetricsHandler())
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("/sessions/start", MetricsMiddleware(s.sessionsHandler.HandleStart, "sessions_start"))
	mux.HandleFunc("/sessions/submit", MetricsMiddleware(s.sessionsHandler.HandleSubmit, "sessions_submit"))
	mux.HandleFunc("/sessions/", MetricsMiddleware(s.sessionsHandler.HandleSession, "sessions"))

	mux.HandleFunc("/integrity/event", MetricsMiddleware(s.integrityHandler.HandleClientEvent, "integrity_event"))
	mux.HandleFunc("/integrity/frame", MetricsMiddleware(s.integrityHandler.HandleFrame, "integrity_frame"))

	mux.HandleFunc("/proctor/verdict", MetricsMiddleware(s.proctorHandler.HandleVerdict, "proctor_verdict"))
	mux.HandleFunc("/proctor/review", MetricsMiddleware(s.proctorHandler.HandleReviewQueue, "proctor_review"))

	mux.HandleFunc("/admin/evaluate", MetricsMiddleware(s.adminHandler.HandleEvaluate, "admin_evaluate"))
	mux.HandleFunc("/admin/score", MetricsMiddleware(s.adminHandler.HandleScore, "admin_score"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeDomainError translates service/domain errors to HTTP statuses.
// State conflicts carry their reason string verbatim so operator UIs can
// explain the rejection.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound),
		errors.Is(err, repository.ErrExamNotFound),
		errors.Is(err, grading.ErrResponseNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, repository.ErrAlreadySubmitted),
		errors.Is(err, repository.ErrSessionTerminated),
		errors.Is(err, session.ErrAlreadySubmitted),
		errors.Is(err, session.ErrNotInProgress),
		errors.Is(err, session.ErrNotSubmitted),
		errors.Is(err, session.ErrAlreadyEvaluated),
		errors.Is(err, session.ErrNotEvaluated),
		errors.Is(err, session.ErrVerdictFinal),
		errors.Is(err, session.ErrAlreadyFinalized):
		writeError(w, http.StatusConflict, "state_conflict", err)
	case errors.Is(err, session.ErrInvalidVerdict),
		errors.Is(err, app.ErrInvalidEventType):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, app.ErrTransient):
		writeError(w, http.StatusServiceUnavailable, "transient", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}
