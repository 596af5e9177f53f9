// Package grading scores submitted responses: MCQ answers automatically,
// subjective and coding answers via human review completion.
package grading

import (
	"strconv"

	"github.com/okian/vigil/internal/domain/session"
)

// Evaluate auto-scores a submitted session against its exam. MCQ answers
// matching the correct option earn the question's marks; SUBJECTIVE and
// CODING answers are marked for review and leave the review track PENDING.
func Evaluate(s *session.Session, exam session.Exam) error {
	if s.Lifecycle != session.Submitted {
		return session.ErrNotSubmitted
	}
	if s.Academic.Status == session.EvalCompleted {
		return session.ErrAlreadyEvaluated
	}

	questions := make(map[string]session.Question, len(exam.Questions))
	for _, q := range exam.Questions {
		questions[q.ID] = q
	}

	score := 0
	hasSubjective := false
	for i := range s.Responses {
		r := &s.Responses[i]
		q, ok := questions[r.QuestionID]
		if !ok {
			continue
		}
		switch q.Type {
		case session.QuestionMCQ:
			if picked, err := strconv.Atoi(r.Answer); err == nil && picked == q.CorrectOption {
				r.Score = q.Marks
				score += q.Marks
			}
		case session.QuestionSubjective, session.QuestionCoding:
			hasSubjective = true
			r.MarkedForReview = true
		}
	}

	review := session.ReviewCompleted
	if hasSubjective {
		review = session.ReviewPending
	}
	s.Academic = session.AcademicEvaluation{
		Score:        score,
		TotalMarks:   exam.TotalMarks(),
		Status:       session.EvalCompleted,
		ReviewStatus: review,
	}
	return nil
}

// ScoreResponse records a human score for one marked-for-review response,
// re-totals the session score, and completes the review track once every
// marked response has been scored. A score of zero is a valid review.
func ScoreResponse(s *session.Session, responseID string, score int) error {
	if s.Outcome != session.OutcomeUnset {
		return session.ErrAlreadyFinalized
	}
	if s.Academic.Status != session.EvalCompleted {
		return session.ErrNotEvaluated
	}

	var target *session.Response
	for i := range s.Responses {
		if s.Responses[i].ID == responseID {
			target = &s.Responses[i]
			break
		}
	}
	if target == nil {
		return ErrResponseNotFound
	}

	target.Score = score
	target.Reviewed = true

	total := 0
	allReviewed := true
	for _, r := range s.Responses {
		total += r.Score
		if r.MarkedForReview && !r.Reviewed {
			allReviewed = false
		}
	}
	s.Academic.Score = total
	if allReviewed && s.Academic.ReviewStatus == session.ReviewPending {
		s.Academic.ReviewStatus = session.ReviewCompleted
	}
	return nil
}
