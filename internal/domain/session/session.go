// Package session contains the exam-session aggregate: lifecycle state,
// the two evaluation tracks, the embedded detector state, and the frozen
// final outcome. One session is one candidate's single attempt at one exam.
package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/okian/vigil/internal/domain/signal"
)

// LifecycleStatus governs whether responses and events may still be appended.
type LifecycleStatus string

// Lifecycle states. IN_PROGRESS is the only non-terminal state.
const (
	InProgress LifecycleStatus = "IN_PROGRESS"
	Submitted  LifecycleStatus = "SUBMITTED"
	Terminated LifecycleStatus = "TERMINATED"
)

// EvalStatus tracks academic scoring progress.
type EvalStatus string

// Academic evaluation states.
const (
	EvalPending   EvalStatus = "PENDING"
	EvalCompleted EvalStatus = "COMPLETED"
)

// ReviewStatus tracks subjective-review progress within the academic track.
type ReviewStatus string

// Subjective review states.
const (
	ReviewNotRequired ReviewStatus = "NOT_REQUIRED"
	ReviewPending     ReviewStatus = "PENDING"
	ReviewCompleted   ReviewStatus = "COMPLETED"
)

// VerdictStatus is the integrity track's state.
type VerdictStatus string

// Integrity verdict states. CLEARED and INVALIDATED are terminal.
const (
	VerdictUnderReview VerdictStatus = "UNDER_REVIEW"
	VerdictCleared     VerdictStatus = "CLEARED"
	VerdictInvalidated VerdictStatus = "INVALIDATED"
)

// FinalOutcome is the session's frozen overall result. Empty means unset.
type FinalOutcome string

// Final outcomes.
const (
	OutcomeUnset       FinalOutcome = ""
	OutcomeEvaluated   FinalOutcome = "EVALUATED"
	OutcomeInvalidated FinalOutcome = "INVALIDATED"
)

// CandidateStatus is the coarse status exposed to candidates.
type CandidateStatus string

// Candidate-facing statuses.
const (
	CandidateUnderReview CandidateStatus = "UNDER_REVIEW"
	CandidateEvaluated   CandidateStatus = "EVALUATED"
	CandidateInvalidated CandidateStatus = "INVALIDATED"
)

// AcademicEvaluation is the academic scoring track.
type AcademicEvaluation struct {
	Score        int          `json:"score"`
	TotalMarks   int          `json:"total_marks"`
	Status       EvalStatus   `json:"status"`
	ReviewStatus ReviewStatus `json:"review_status"`
}

// Terminal reports whether the academic track has reached a terminal state:
// scoring completed and no subjective review outstanding.
func (a AcademicEvaluation) Terminal() bool {
	return a.Status == EvalCompleted && a.ReviewStatus != ReviewPending
}

// IntegrityVerdict is the human integrity track.
type IntegrityVerdict struct {
	Status    VerdictStatus `json:"status"`
	DecidedBy string        `json:"decided_by,omitempty"`
	DecidedAt time.Time     `json:"decided_at,omitempty"`
	Remarks   string        `json:"remarks,omitempty"`
}

// Terminal reports whether a verdict has been rendered.
func (v IntegrityVerdict) Terminal() bool {
	return v.Status == VerdictCleared || v.Status == VerdictInvalidated
}

// Response is one submitted answer.
type Response struct {
	ID              string `json:"id"`
	QuestionID      string `json:"question_id"`
	Answer          string `json:"answer"`
	Score           int    `json:"score"`
	MarkedForReview bool   `json:"marked_for_review"`
	Reviewed        bool   `json:"reviewed"`
}

// Session is the central aggregate: one record per candidate x exam attempt.
// All evaluation state hangs off it, and every mutation goes through a
// version-checked store write.
type Session struct {
	ID          string `json:"id"`
	ExamID      string `json:"exam_id"`
	CandidateID string `json:"candidate_id"`

	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	SubmittedTime time.Time `json:"submitted_time,omitempty"`

	Lifecycle LifecycleStatus `json:"lifecycle"`

	Responses []Response         `json:"responses,omitempty"`
	Academic  AcademicEvaluation `json:"academic_evaluation"`
	Verdict   IntegrityVerdict   `json:"integrity_verdict"`

	// Detector is owned exclusively by the signal rule engine via the
	// ingestion path; nothing else writes it.
	Detector     signal.State `json:"detector"`
	LastSampleAt time.Time    `json:"last_sample_at,omitempty"`

	Outcome FinalOutcome `json:"final_outcome,omitempty"`

	// EventIDs preserves ledger insertion order, which is the display order.
	EventIDs []string `json:"event_ids,omitempty"`

	// Version guards every store write (optimistic concurrency).
	Version uint64 `json:"version"`
}

// New creates an in-progress session for the given exam attempt.
func New(examID, candidateID string, now time.Time, duration time.Duration) *Session {
	return &Session{
		ID:          uuid.New().String(),
		ExamID:      examID,
		CandidateID: candidateID,
		StartTime:   now,
		EndTime:     now.Add(duration),
		Lifecycle:   InProgress,
		Academic: AcademicEvaluation{
			Status:       EvalPending,
			ReviewStatus: ReviewNotRequired,
		},
		Verdict:  IntegrityVerdict{Status: VerdictUnderReview},
		Detector: signal.NewState(),
	}
}

// Submit transitions the session to SUBMITTED exactly once, attaching the
// full response set.
func (s *Session) Submit(now time.Time, responses []Response) error {
	switch s.Lifecycle {
	case Submitted:
		return ErrAlreadySubmitted
	case Terminated:
		return ErrNotInProgress
	}

	for i := range responses {
		if responses[i].ID == "" {
			responses[i].ID = uuid.New().String()
		}
	}
	s.Responses = responses
	s.Lifecycle = Submitted
	s.SubmittedTime = now
	return nil
}

// Terminate is the operator-initiated irreversible stop.
func (s *Session) Terminate(now time.Time) error {
	if s.Lifecycle != InProgress {
		return ErrNotInProgress
	}
	s.Lifecycle = Terminated
	s.EndTime = now
	return nil
}

// ExpireIfDue applies a submit-equivalent transition when the exam deadline
// has passed and the session is still in progress. Returns true if the
// session was expired. This is the lazy server-side check that closes the
// gap left by trusting the client timer alone.
func (s *Session) ExpireIfDue(now time.Time) bool {
	if s.Lifecycle != InProgress || now.Before(s.EndTime) {
		return false
	}
	s.Lifecycle = Submitted
	s.SubmittedTime = s.EndTime
	return true
}

// AcceptsEvents reports whether integrity events may still be appended.
func (s *Session) AcceptsEvents() bool {
	return s.Lifecycle == InProgress
}

// ApplyVerdict records the human integrity verdict exactly once.
func (s *Session) ApplyVerdict(status VerdictStatus, decidedBy, remarks string, now time.Time) error {
	if status != VerdictCleared && status != VerdictInvalidated {
		return ErrInvalidVerdict
	}
	if s.Outcome != OutcomeUnset {
		return ErrAlreadyFinalized
	}
	if s.Verdict.Terminal() {
		return ErrVerdictFinal
	}
	s.Verdict = IntegrityVerdict{
		Status:    status,
		DecidedBy: decidedBy,
		DecidedAt: now,
		Remarks:   remarks,
	}
	return nil
}

// Status derives the coarse candidate-facing status.
func (s *Session) Status() CandidateStatus {
	switch s.Outcome {
	case OutcomeInvalidated:
		return CandidateInvalidated
	case OutcomeEvaluated:
		return CandidateEvaluated
	}
	return CandidateUnderReview
}
