// Package app provides the core business service that implements the
// dependencies required by the HTTP API: session lifecycle, signal
// ingestion, verdicts, scoring, and finalization.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/vigil/internal/adapters/inference"
	"github.com/okian/vigil/internal/adapters/repository"
	"github.com/okian/vigil/internal/domain/grading"
	"github.com/okian/vigil/internal/domain/reconcile"
	"github.com/okian/vigil/internal/domain/session"
	"github.com/okian/vigil/internal/domain/signal"
	"github.com/okian/vigil/pkg/logger"
	"github.com/okian/vigil/pkg/metrics"
)

// Default service configuration constants.
const (
	defaultSampleInterval = 1500 * time.Millisecond
	defaultRetryLimit     = 3
)

// Service implements the API dependencies for the proctoring engine. All
// session mutations go through the store's version check-and-set; a small
// bounded retry loop absorbs concurrency conflicts.
type Service struct {
	mu sync.RWMutex

	// Core components
	store    repository.Store
	observer inference.Observer
	detector *signal.Detector

	// Configuration
	sampleInterval time.Duration
	retryLimit     int

	// State
	started bool

	// Clock indirection keeps streak/cooldown behavior testable.
	now func() time.Time

	// Logging
	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		sampleInterval: defaultSampleInterval,
		retryLimit:     defaultRetryLimit,
		now:            time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes any components not injected via options.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}
	if s.store == nil {
		s.store = repository.NewMemStore()
	}
	if s.detector == nil {
		s.detector = signal.New()
	}
	if s.observer == nil {
		s.observer = inference.New()
	}

	s.started = true
	s.logger.Info(ctx, "proctoring service started",
		logger.Duration("sampleInterval", s.sampleInterval),
		logger.Int("retryLimit", s.retryLimit),
	)
	return nil
}

// Stop shuts the service down.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	s.started = false
	s.logger.Info(context.Background(), "proctoring service stopped")
}

// RegisterExam adds an exam to the catalog.
func (s *Service) RegisterExam(ctx context.Context, exam session.Exam) error {
	return s.store.RegisterExam(ctx, exam)
}

// StartSession starts or resumes the candidate's attempt at an exam. The
// insert is conditional on the (candidate, exam) pair; a retried start
// while in progress returns the existing session unchanged.
func (s *Service) StartSession(ctx context.Context, examID, candidateID string) (*session.Session, bool, error) {
	exam, err := s.store.Exam(ctx, examID)
	if err != nil {
		return nil, false, err
	}

	fresh := session.New(examID, candidateID, s.now(), exam.Duration)
	sess, created, err := s.store.CreateOrResume(ctx, fresh)
	if err != nil {
		return nil, false, err
	}

	if created {
		metrics.RecordSessionStarted()
		metrics.UpdateActiveSessions(s.store.CountActive(ctx))
		s.logger.Info(ctx, "session started",
			logger.String("sessionID", sess.ID),
			logger.String("examID", examID),
			logger.String("candidateID", candidateID),
			logger.Time("endTime", sess.EndTime),
		)
		return sess, true, nil
	}

	// Resumed attempt past its deadline: close it now and report the
	// attempt as spent.
	if sess.ExpireIfDue(s.now()) {
		if err := s.store.Update(ctx, sess); err != nil && !errors.Is(err, repository.ErrVersionConflict) {
			return nil, false, err
		}
		metrics.RecordSessionExpired()
		return nil, false, repository.ErrAlreadySubmitted
	}
	return sess, false, nil
}

// SubmitSession transitions the session to SUBMITTED exactly once,
// attaching the full response set. Deadline expiry is not applied here:
// the submit itself is the deadline-driven transition.
func (s *Service) SubmitSession(ctx context.Context, sessionID string, responses []session.Response) error {
	_, err := s.mutate(ctx, sessionID, false, func(sess *session.Session) error {
		return sess.Submit(s.now(), responses)
	})
	if err != nil {
		return err
	}
	metrics.RecordSessionSubmitted()
	metrics.UpdateActiveSessions(s.store.CountActive(ctx))
	return nil
}

// TerminateSession is the proctor's irreversible stop of an in-progress
// session.
func (s *Service) TerminateSession(ctx context.Context, sessionID string) error {
	_, err := s.mutate(ctx, sessionID, true, func(sess *session.Session) error {
		return sess.Terminate(s.now())
	})
	if err != nil {
		return err
	}
	metrics.RecordSessionTerminated()
	metrics.UpdateActiveSessions(s.store.CountActive(ctx))
	return nil
}

// IngestClientEvent appends a candidate-reported browser event to the
// session's ledger. Permitted only while the session is in progress.
func (s *Service) IngestClientEvent(ctx context.Context, sessionID string, eventType session.EventType, details map[string]any) (string, error) {
	if !session.ClientEventTypes[eventType] {
		return "", ErrInvalidEventType
	}

	sess, err := s.loadInProgress(ctx, sessionID)
	if err != nil {
		return "", err
	}

	ev := session.NewEvent(sess.ID, eventType, session.SourceClient, s.now(), details)
	id, err := s.store.AppendEvent(ctx, ev)
	if err != nil {
		return "", err
	}
	metrics.RecordClientEvent(string(eventType))
	return id, nil
}

// IngestFrame runs one captured frame through inference and the rule
// engine. Returns accepted=false when the sample was dropped by rate
// limiting, which is a successful no-op, not an error.
func (s *Service) IngestFrame(ctx context.Context, sessionID, imageBase64 string) (bool, []signal.Trigger, error) {
	// Lifecycle gate and rate limit are checked against the session as
	// read at the top of the request.
	sess, err := s.loadInProgress(ctx, sessionID)
	if err != nil {
		return false, nil, err
	}
	if s.rateLimited(sess) {
		metrics.RecordFrameDropped()
		return false, nil, nil
	}

	// Blocking inference round trip; no lock is held across it. Failure
	// leaves the detector state untouched.
	obs, err := s.observer.Observe(ctx, imageBase64)
	if err != nil {
		return false, nil, fmt.Errorf("%w: %w", ErrTransient, err)
	}

	var triggers []signal.Trigger
	var escalated bool
	var lastErr error
	for attempt := 0; attempt < s.retryLimit; attempt++ {
		if attempt > 0 {
			metrics.RecordStoreRetry()
			sess, err = s.loadInProgress(ctx, sessionID)
			if err != nil {
				return false, nil, err
			}
			// A concurrently accepted sample moves the rate-limit
			// window; this one may now be excess.
			if s.rateLimited(sess) {
				metrics.RecordFrameDropped()
				return false, nil, nil
			}
		}

		now := s.now()
		prior := sess.Detector
		next, trg := s.detector.Evaluate(prior, obs, now)
		sess.Detector = next
		sess.LastSampleAt = now
		if err := s.store.Update(ctx, sess); err != nil {
			if errors.Is(err, repository.ErrVersionConflict) {
				lastErr = err
				continue
			}
			return false, nil, err
		}
		triggers = trg
		escalated = prior.Status == signal.AutoCleared && next.Status == signal.UnderReview
		lastErr = nil
		break
	}
	if lastErr != nil {
		return false, nil, fmt.Errorf("%w: %w", ErrTransient, lastErr)
	}

	// The accepted sample's state write is durable; ledger appends share
	// the request's single lifecycle check from above.
	for _, t := range triggers {
		ev := session.NewEvent(sessionID, eventTypeFor(t.Kind), session.SourceSignal, t.At,
			map[string]any{"streak_frames": t.StreakFrames})
		if _, err := s.store.AppendEvent(ctx, ev); err != nil {
			return true, triggers, err
		}
		metrics.RecordSignalEvent(string(t.Kind))
	}
	if escalated {
		metrics.RecordEscalation()
		s.logger.Warn(ctx, "session escalated to human review",
			logger.String("sessionID", sessionID),
		)
	}
	metrics.RecordFrameIngested()
	return true, triggers, nil
}

// SubmitVerdict records the proctor's integrity verdict and finalizes the
// session when the academic track is already terminal.
func (s *Service) SubmitVerdict(ctx context.Context, sessionID string, verdict session.VerdictStatus, decidedBy, remarks string) error {
	sess, err := s.mutate(ctx, sessionID, true, func(sess *session.Session) error {
		if err := sess.ApplyVerdict(verdict, decidedBy, remarks, s.now()); err != nil {
			return err
		}
		reconcile.TryFinalize(sess)
		return nil
	})
	if err != nil {
		return err
	}
	s.recordFinalized(ctx, sess)
	return nil
}

// EvaluateSession auto-scores a submitted session's responses.
func (s *Service) EvaluateSession(ctx context.Context, sessionID string) (session.AcademicEvaluation, error) {
	sess, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return session.AcademicEvaluation{}, err
	}
	exam, err := s.store.Exam(ctx, sess.ExamID)
	if err != nil {
		return session.AcademicEvaluation{}, err
	}

	sess, err = s.mutate(ctx, sessionID, true, func(sess *session.Session) error {
		if err := grading.Evaluate(sess, exam); err != nil {
			return err
		}
		reconcile.TryFinalize(sess)
		return nil
	})
	if err != nil {
		return session.AcademicEvaluation{}, err
	}
	s.recordFinalized(ctx, sess)
	return sess.Academic, nil
}

// ScoreResponse records a human score for a marked-for-review response
// and finalizes the session when this completes the academic track.
func (s *Service) ScoreResponse(ctx context.Context, sessionID, responseID string, score int) (session.AcademicEvaluation, error) {
	sess, err := s.mutate(ctx, sessionID, true, func(sess *session.Session) error {
		if err := grading.ScoreResponse(sess, responseID, score); err != nil {
			return err
		}
		reconcile.TryFinalize(sess)
		return nil
	})
	if err != nil {
		return session.AcademicEvaluation{}, err
	}
	s.recordFinalized(ctx, sess)
	return sess.Academic, nil
}

// Snapshot bundles a session with its ordered event ledger for display.
type Snapshot struct {
	Session *session.Session `json:"session"`
	Events  []session.Event  `json:"events"`
}

// GetSnapshot returns the session and its events in chronological order.
func (s *Service) GetSnapshot(ctx context.Context, sessionID string) (Snapshot, error) {
	sess, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return Snapshot{}, err
	}
	events, err := s.store.ListEvents(ctx, sessionID)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Session: sess, Events: events}, nil
}

// CandidateResult is the candidate-facing view of a session.
type CandidateResult struct {
	Status     session.CandidateStatus `json:"status"`
	Score      int                     `json:"score,omitempty"`
	TotalMarks int                     `json:"total_marks,omitempty"`
}

// CandidateStatus derives the coarse candidate-facing status; the score
// is disclosed only once the session is EVALUATED.
func (s *Service) CandidateStatus(ctx context.Context, sessionID string) (CandidateResult, error) {
	sess, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return CandidateResult{}, err
	}
	res := CandidateResult{Status: sess.Status()}
	if res.Status == session.CandidateEvaluated {
		res.Score = sess.Academic.Score
		res.TotalMarks = sess.Academic.TotalMarks
	}
	return res, nil
}

// ListReviewQueue returns submitted sessions awaiting a verdict.
func (s *Service) ListReviewQueue(ctx context.Context) ([]*session.Session, error) {
	return s.store.ListForReview(ctx)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":          s.started,
		"retryLimit":       s.retryLimit,
		"sampleIntervalMs": s.sampleInterval.Milliseconds(),
	}
	if s.started {
		active := s.store.CountActive(context.Background())
		stats["activeSessions"] = active
		metrics.UpdateActiveSessions(active)
	}
	return stats
}

// rateLimited reports whether a frame arrived before the minimum sample
// interval elapsed since the last accepted observation.
func (s *Service) rateLimited(sess *session.Session) bool {
	if sess.LastSampleAt.IsZero() {
		return false
	}
	return s.now().Sub(sess.LastSampleAt) < s.sampleInterval
}

// loadInProgress fetches a session, applies the lazy deadline check, and
// enforces the in-progress gate used by the ingestion paths.
func (s *Service) loadInProgress(ctx context.Context, sessionID string) (*session.Session, error) {
	sess, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.ExpireIfDue(s.now()) {
		metrics.RecordSessionExpired()
		if err := s.store.Update(ctx, sess); err != nil && !errors.Is(err, repository.ErrVersionConflict) {
			return nil, err
		}
		return nil, session.ErrNotInProgress
	}
	if !sess.AcceptsEvents() {
		return nil, session.ErrNotInProgress
	}
	return sess, nil
}

// mutate runs a read-modify-write cycle with a bounded retry on version
// conflicts. Domain errors from fn abort without retry; conflicts retry
// against a fresh read.
func (s *Service) mutate(ctx context.Context, sessionID string, applyExpiry bool, fn func(*session.Session) error) (*session.Session, error) {
	var lastErr error
	for attempt := 0; attempt < s.retryLimit; attempt++ {
		if attempt > 0 {
			metrics.RecordStoreRetry()
		}
		sess, err := s.store.Get(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if applyExpiry && sess.ExpireIfDue(s.now()) {
			metrics.RecordSessionExpired()
		}
		if err := fn(sess); err != nil {
			return nil, err
		}
		if err := s.store.Update(ctx, sess); err != nil {
			if errors.Is(err, repository.ErrVersionConflict) {
				lastErr = err
				continue
			}
			return nil, err
		}
		return sess, nil
	}
	return nil, fmt.Errorf("%w: %w", ErrTransient, lastErr)
}

// recordFinalized emits metrics and a log line when a mutation froze the
// session's outcome.
func (s *Service) recordFinalized(ctx context.Context, sess *session.Session) {
	if sess == nil || sess.Outcome == session.OutcomeUnset {
		return
	}
	metrics.RecordSessionFinalized(string(sess.Outcome))
	s.logger.Info(ctx, "session finalized",
		logger.String("sessionID", sess.ID),
		logger.String("outcome", string(sess.Outcome)),
	)
}

// eventTypeFor maps a signal kind to its ledger event type.
func eventTypeFor(k signal.Kind) session.EventType {
	switch k {
	case signal.KindNoFace:
		return session.EventNoFace
	case signal.KindMultipleFace:
		return session.EventMultipleFace
	case signal.KindLookingAway:
		return session.EventLookingAway
	case signal.KindPoseUnavailable:
		return session.EventPoseUnavailable
	}
	return session.EventType(k)
}
