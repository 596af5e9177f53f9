// Package repository defines the session store interface and errors.
//
// The store owns consistency of the session aggregate: every write is a
// version check-and-set against the aggregate's current version, never a
// blind overwrite, and session creation is a conditional insert against
// the uniqueness of (candidate, exam).
package repository

import (
	"context"

	"github.com/okian/vigil/internal/domain/session"
)

// Store provides read/write access to exam sessions, the integrity event
// ledger, and the minimal exam catalog.
type Store interface {
	// RegisterExam adds or replaces a catalog entry.
	RegisterExam(ctx context.Context, exam session.Exam) error

	// Exam returns a catalog entry. Returns ErrExamNotFound if unknown.
	Exam(ctx context.Context, examID string) (session.Exam, error)

	// CreateOrResume conditionally inserts fresh, keyed on its
	// (candidate, exam) pair. When a session for the pair already exists:
	// IN_PROGRESS returns the existing session with created=false,
	// SUBMITTED returns ErrAlreadySubmitted, TERMINATED returns
	// ErrSessionTerminated. The check and insert are atomic.
	CreateOrResume(ctx context.Context, fresh *session.Session) (s *session.Session, created bool, err error)

	// Get returns a private copy of the session; mutations to it are not
	// visible until written back through Update.
	Get(ctx context.Context, id string) (*session.Session, error)

	// Update writes the session back iff its version still matches the
	// stored one, then bumps the version. Returns ErrVersionConflict on a
	// stale write.
	Update(ctx context.Context, s *session.Session) error

	// AppendEvent appends an immutable event to the session's ledger and
	// to the session's ordered event-reference list. Returns the event id.
	AppendEvent(ctx context.Context, ev session.Event) (string, error)

	// ListEvents returns the session's events in insertion order.
	ListEvents(ctx context.Context, sessionID string) ([]session.Event, error)

	// ListForReview returns submitted sessions still awaiting an
	// integrity verdict.
	ListForReview(ctx context.Context) ([]*session.Session, error)

	// CountActive returns the number of in-progress sessions.
	CountActive(ctx context.Context) int
}
