// Package reconcile contains the finalizer that merges the academic and
// integrity evaluation tracks into a session's single frozen outcome.
package reconcile

import (
	"github.com/okian/vigil/internal/domain/session"
)

// TryFinalize sets the session's final outcome the first time both
// evaluation tracks are terminal. It is idempotent and returns true only
// when it changed the session. Callers should invoke it after every
// mutation to either track rather than predicting finality themselves.
func TryFinalize(s *session.Session) bool {
	if s == nil {
		return false
	}
	if s.Outcome != session.OutcomeUnset {
		return false
	}
	if !s.Verdict.Terminal() {
		return false
	}
	if !s.Academic.Terminal() {
		return false
	}

	if s.Verdict.Status == session.VerdictCleared {
		s.Outcome = session.OutcomeEvaluated
	} else {
		s.Outcome = session.OutcomeInvalidated
	}
	return true
}
