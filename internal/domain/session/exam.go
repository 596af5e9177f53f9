package session

import "time"

// QuestionType identifies how a question is scored.
type QuestionType string

// Question types. MCQ answers are scored automatically; SUBJECTIVE and
// CODING answers are marked for human review.
const (
	QuestionMCQ        QuestionType = "MCQ"
	QuestionSubjective QuestionType = "SUBJECTIVE"
	QuestionCoding     QuestionType = "CODING"
)

// Question is the grading-relevant slice of an exam question. Authoring
// and publishing live elsewhere; the engine only needs marks and answers.
type Question struct {
	ID            string       `json:"id"`
	Type          QuestionType `json:"type"`
	Marks         int          `json:"marks"`
	CorrectOption int          `json:"correct_option,omitempty"`
}

// Exam is the minimal catalog entry sessions bind to.
type Exam struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	Duration  time.Duration `json:"duration"`
	Questions []Question    `json:"questions"`
}

// TotalMarks sums the marks of all questions.
func (e Exam) TotalMarks() int {
	total := 0
	for _, q := range e.Questions {
		total += q.Marks
	}
	return total
}
