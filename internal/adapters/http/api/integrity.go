// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/okian/vigil/internal/domain/session"
	"github.com/okian/vigil/internal/domain/signal"
)

// IntegrityDependencies defines the interface for integrity ingestion.
type IntegrityDependencies interface {
	IngestClientEvent(ctx context.Context, sessionID string, eventType session.EventType, details map[string]any) (string, error)
	IngestFrame(ctx context.Context, sessionID, imageBase64 string) (bool, []signal.Trigger, error)
}

// IntegrityHandler handles integrity event and frame requests.
type IntegrityHandler struct {
	deps IntegrityDependencies
}

// NewIntegrityHandler creates a new integrity handler.
func NewIntegrityHandler(deps IntegrityDependencies) *IntegrityHandler {
	return &IntegrityHandler{deps: deps}
}

type clientEventRequest struct {
	SessionID string         `json:"session_id"`
	EventType string         `json:"event_type"`
	Details   map[string]any `json:"details,omitempty"`
}

func (r clientEventRequest) validate() error {
	switch {
	case strings.TrimSpace(r.SessionID) == "":
		return NewKind("missing session_id", ErrBadRequest)
	case strings.TrimSpace(r.EventType) == "":
		return NewKind("missing event_type", ErrBadRequest)
	}
	return nil
}

type eventAckResponse struct {
	Status  string `json:"status"`
	EventID string `json:"event_id"`
}

// HandleClientEvent handles POST /integrity/event requests for
// browser-reported events (TAB_SWITCH, FOCUS_LOSS).
func (h *IntegrityHandler) HandleClientEvent(w http.ResponseWriter, r *http.Request) {
	const op = "api.integrity_event"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req clientEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	id, err := h.deps.IngestClientEvent(r.Context(), req.SessionID, session.EventType(req.EventType), req.Details)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, eventAckResponse{Status: "logged", EventID: id})
}

type frameRequest struct {
	SessionID string `json:"session_id"`
	Image     string `json:"image"`
}

func (r frameRequest) validate() error {
	switch {
	case strings.TrimSpace(r.SessionID) == "":
		return NewKind("missing session_id", ErrBadRequest)
	case r.Image == "":
		return NewKind("missing image", ErrBadRequest)
	}
	return nil
}

type frameAckResponse struct {
	Accepted  bool     `json:"accepted"`
	Triggered []string `json:"triggered,omitempty"`
}

// HandleFrame handles POST /integrity/frame requests. A rate-limited
// sample is acknowledged as accepted=false; the candidate sees no error
// since frames are sampled redundantly.
func (h *IntegrityHandler) HandleFrame(w http.ResponseWriter, r *http.Request) {
	const op = "api.integrity_frame"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req frameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	accepted, triggers, err := h.deps.IngestFrame(r.Context(), req.SessionID, req.Image)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	resp := frameAckResponse{Accepted: accepted}
	for _, t := range triggers {
		resp.Triggered = append(resp.Triggered, string(t.Kind))
	}
	writeJSON(w, http.StatusOK, resp)
}
