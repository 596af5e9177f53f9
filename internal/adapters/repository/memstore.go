package repository

import (
	"context"
	"sync"
	"time"

	"github.com/okian/vigil/internal/domain/session"
	"github.com/okian/vigil/pkg/metrics"
)

// MemStore is the in-memory Store implementation. A single mutex
// serializes writes, which gives the same guarantees as a per-document
// conditional update against an external database: the version check and
// the write are atomic, and creation is atomic with the uniqueness check.
type MemStore struct {
	mu sync.RWMutex

	exams    map[string]session.Exam
	sessions map[string]*session.Session // by session id
	byPair   map[pairKey]string          // (candidate, exam) -> session id
	events   map[string][]session.Event  // session id -> ledger, insertion order
}

type pairKey struct {
	candidateID string
	examID      string
}

// NewMemStore creates an empty in-memory store.
func NewMemStore(opts ...Option) *MemStore {
	m := &MemStore{
		exams:    make(map[string]session.Exam),
		sessions: make(map[string]*session.Session),
		byPair:   make(map[pairKey]string),
		events:   make(map[string][]session.Event),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// RegisterExam adds or replaces a catalog entry.
func (m *MemStore) RegisterExam(_ context.Context, exam session.Exam) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exams[exam.ID] = exam
	return nil
}

// Exam returns a catalog entry.
func (m *MemStore) Exam(_ context.Context, examID string) (session.Exam, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	exam, ok := m.exams[examID]
	if !ok {
		return session.Exam{}, ErrExamNotFound
	}
	return exam, nil
}

// CreateOrResume atomically resolves the (candidate, exam) pair to a
// session: the existing in-progress one, a rejection, or a fresh insert.
func (m *MemStore) CreateOrResume(_ context.Context, fresh *session.Session) (*session.Session, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := pairKey{candidateID: fresh.CandidateID, examID: fresh.ExamID}
	if id, ok := m.byPair[key]; ok {
		existing := m.sessions[id]
		switch existing.Lifecycle {
		case session.Submitted:
			return nil, false, ErrAlreadySubmitted
		case session.Terminated:
			return nil, false, ErrSessionTerminated
		}
		return clone(existing), false, nil
	}

	m.sessions[fresh.ID] = clone(fresh)
	m.byPair[key] = fresh.ID
	return clone(fresh), true, nil
}

// Get returns a private copy of the session.
func (m *MemStore) Get(_ context.Context, id string) (*session.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(s), nil
}

// Update performs the version check-and-set write.
func (m *MemStore) Update(_ context.Context, s *session.Session) error {
	start := time.Now()
	defer func() {
		metrics.RecordStoreUpdateLatency(float64(time.Since(start).Milliseconds()))
	}()

	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.sessions[s.ID]
	if !ok {
		return ErrNotFound
	}
	if cur.Version != s.Version {
		metrics.RecordStoreConflict()
		return ErrVersionConflict
	}

	next := clone(s)
	next.Version++
	m.sessions[s.ID] = next
	s.Version = next.Version
	return nil
}

// AppendEvent appends to the ledger and the session's ordered reference
// list. The version bump makes any in-flight stale Update fail its CAS
// rather than silently drop the reference.
func (m *MemStore) AppendEvent(_ context.Context, ev session.Event) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[ev.SessionID]
	if !ok {
		return "", ErrNotFound
	}

	m.events[ev.SessionID] = append(m.events[ev.SessionID], ev)
	s.EventIDs = append(s.EventIDs, ev.ID)
	s.Version++
	return ev.ID, nil
}

// ListEvents returns the ledger in insertion order.
func (m *MemStore) ListEvents(_ context.Context, sessionID string) ([]session.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.sessions[sessionID]; !ok {
		return nil, ErrNotFound
	}
	ledger := m.events[sessionID]
	out := make([]session.Event, len(ledger))
	copy(out, ledger)
	return out, nil
}

// ListForReview returns submitted sessions awaiting a verdict.
func (m *MemStore) ListForReview(_ context.Context) ([]*session.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*session.Session
	for _, s := range m.sessions {
		if s.Lifecycle == session.Submitted && !s.Verdict.Terminal() {
			out = append(out, clone(s))
		}
	}
	return out, nil
}

// CountActive returns the number of in-progress sessions.
func (m *MemStore) CountActive(_ context.Context) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, s := range m.sessions {
		if s.Lifecycle == session.InProgress {
			n++
		}
	}
	return n
}

// clone deep-copies a session so callers never share mutable state with
// the stored aggregate.
func clone(s *session.Session) *session.Session {
	c := *s
	if s.Responses != nil {
		c.Responses = make([]session.Response, len(s.Responses))
		copy(c.Responses, s.Responses)
	}
	if s.EventIDs != nil {
		c.EventIDs = make([]string, len(s.EventIDs))
		copy(c.EventIDs, s.EventIDs)
	}
	return &c
}
