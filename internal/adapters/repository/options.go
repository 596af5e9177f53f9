package repository

import "github.com/okian/vigil/internal/domain/session"

// Option applies a configuration option to the MemStore.
type Option func(*MemStore)

// WithExams seeds the catalog at construction.
func WithExams(exams ...session.Exam) Option {
	return func(m *MemStore) {
		for _, exam := range exams {
			m.exams[exam.ID] = exam
		}
	}
}
