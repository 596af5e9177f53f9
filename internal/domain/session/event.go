package session

import (
	"time"

	"github.com/google/uuid"
)

// EventType identifies an integrity event kind, client-reported or
// signal-derived.
type EventType string

// Integrity event types.
const (
	EventTabSwitch       EventType = "TAB_SWITCH"
	EventFocusLoss       EventType = "FOCUS_LOSS"
	EventNoFace          EventType = "NO_FACE"
	EventMultipleFace    EventType = "MULTIPLE_FACE"
	EventLookingAway     EventType = "LOOKING_AWAY"
	EventPoseUnavailable EventType = "POSE_UNAVAILABLE"
)

// EventSource distinguishes client-reported from signal-derived events.
type EventSource string

// Event sources.
const (
	SourceClient EventSource = "CLIENT"
	SourceSignal EventSource = "SIGNAL"
)

// ClientEventTypes are the kinds candidates may report directly.
var ClientEventTypes = map[EventType]bool{
	EventTabSwitch: true,
	EventFocusLoss: true,
}

// Event is one immutable ledger entry attached to a session.
type Event struct {
	ID        string         `json:"id"`
	SessionID string         `json:"session_id"`
	Type      EventType      `json:"type"`
	Source    EventSource    `json:"source"`
	Timestamp time.Time      `json:"timestamp"`
	Evidence  string         `json:"evidence,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// NewEvent mints a ledger entry.
func NewEvent(sessionID string, t EventType, source EventSource, at time.Time, metadata map[string]any) Event {
	return Event{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Type:      t,
		Source:    source,
		Timestamp: at,
		Metadata:  metadata,
	}
}
