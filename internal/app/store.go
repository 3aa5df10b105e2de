package app

import (
	"context"

	"klasquiz-service/internal/domain"
)

// Store is the persistence boundary of the quiz backend. Postgres
// implements it with bun and pgx; the memory variant backs tests and
// runs the server without a database configured.
type Store interface {
	TeacherStore
	ClassStore
	QuestionStore
	SessionStore
	ResultStore
}

// TeacherStore persists docent accounts.
type TeacherStore interface {
	// CreateTeacher returns domain.ErrEmailTaken on a known email.
	CreateTeacher(ctx context.Context, naam, email, passwordHash string) (int64, error)
	TeacherByEmail(ctx context.Context, email string) (*domain.Teacher, error)
}

// ClassStore persists classes and their students.
type ClassStore interface {
	CreateClass(ctx context.Context, docentID int64, naam, klascode, vak string) (*domain.Class, error)
	// ClassOwnedBy returns domain.ErrNotFound when the class does not
	// exist or is owned by another docent.
	ClassOwnedBy(ctx context.Context, klasID, docentID int64) (*domain.Class, error)
	ClassByCode(ctx context.Context, klascode string) (*domain.Class, error)
	// DeleteClassCascade removes the class with all dependent students,
	// lists, questions, sessions, and results in one transaction.
	DeleteClassCascade(ctx context.Context, klasID int64) error

	CreateStudent(ctx context.Context, klasID int64, naam string) (int64, error)
	StudentInClass(ctx context.Context, leerlingID, klasID int64) (*domain.Student, error)
	StudentsByClass(ctx context.Context, klasID int64) ([]domain.Student, error)
	DeleteStudent(ctx context.Context, leerlingID, klasID int64) error
	DeleteStudentsByClass(ctx context.Context, klasID int64) error
}

// QuestionStore persists question lists and questions.
type QuestionStore interface {
	CreateQuestionList(ctx context.Context, klasID int64, naam string) (int64, error)
	// QuestionListByID includes the owning docent id joined from klassen.
	QuestionListByID(ctx context.Context, lijstID int64) (*domain.QuestionList, error)
	QuestionListInClass(ctx context.Context, lijstID, klasID int64) (bool, error)
	QuestionListsByClass(ctx context.Context, klasID int64) ([]domain.QuestionList, error)
	UpdateQuestionList(ctx context.Context, lijstID int64, naam string) error
	DeleteQuestionListCascade(ctx context.Context, lijstID int64) error

	AddQuestion(ctx context.Context, q *domain.Question) error
	QuestionByID(ctx context.Context, vraagID int64) (*domain.Question, error)
	QuestionsByList(ctx context.Context, lijstID int64) ([]domain.Question, error)
	UpdateQuestion(ctx context.Context, vraagID int64, vraag, antwoord string) error
	DeleteQuestionCascade(ctx context.Context, vraagID int64) error
	// RandomUnaskedQuestion picks uniformly among questions of the list
	// whose ids are not in asked. Returns (nil, nil) when none remain.
	RandomUnaskedQuestion(ctx context.Context, klasID, lijstID int64, asked []int64) (*domain.Question, error)
}

// SessionStore persists quiz sessions.
type SessionStore interface {
	// StartSession atomically deactivates all sessions of the class and
	// inserts the new active one.
	StartSession(ctx context.Context, klasID, docentID, lijstID int64) (int64, error)
	SessionByID(ctx context.Context, sessieID int64) (*domain.Session, error)
	SessionWithClass(ctx context.Context, sessieID int64) (*domain.Session, *domain.Class, error)
	// ActiveSessionForClass returns domain.ErrNotFound when none is active.
	ActiveSessionForClass(ctx context.Context, klasID int64) (*domain.Session, error)
	SetCurrentQuestion(ctx context.Context, sessieID, vraagID int64) error
	ClearCurrentQuestion(ctx context.Context, sessieID int64) error
	StopSession(ctx context.Context, sessieID int64) error
	// AskedQuestionIDs derives the asked-set from distinct question ids
	// referenced by results of the session.
	AskedQuestionIDs(ctx context.Context, sessieID int64) ([]int64, error)
}

// ResultStore persists answer records and serves the snapshot projections.
type ResultStore interface {
	// InsertResult returns domain.ErrDuplicateResult when a result for the
	// same (sessie, vraag, leerling) tuple already exists.
	InsertResult(ctx context.Context, r *domain.Result) error
	ResultByID(ctx context.Context, resultaatID int64) (*domain.Result, error)
	// ResultFor returns domain.ErrNotFound when the tuple has no result.
	ResultFor(ctx context.Context, sessieID, vraagID, leerlingID int64) (*domain.Result, error)
	GradeResult(ctx context.Context, resultaatID int64, status string, points int) error
	DeleteResultsForQuestion(ctx context.Context, sessieID, vraagID int64) error
	DeleteStudentResults(ctx context.Context, sessieID, leerlingID int64) error

	ScoreboardRows(ctx context.Context, sessieID, klasID int64) ([]domain.ScoreboardEntry, error)
	RecentAnswers(ctx context.Context, sessieID int64, limit int) ([]domain.RecentAnswer, error)
	PendingCount(ctx context.Context, sessieID int64) (int, error)
	AnswerCount(ctx context.Context, sessieID, vraagID int64) (int, error)
	AnsweredStudentCount(ctx context.Context, sessieID, vraagID int64) (int, error)
	StudentScore(ctx context.Context, sessieID, leerlingID int64) (int, error)
	StudentAnswerCount(ctx context.Context, sessieID, leerlingID int64) (int, error)
	StudentRecentAnswers(ctx context.Context, sessieID, leerlingID int64, limit int) ([]domain.StudentAnswer, error)
	SessionResults(ctx context.Context, sessieID int64) ([]domain.ExportRow, error)
}

// AnswerKey resolves the correct answer for a question, typically through
// a cache (Redis or in-memory) in front of the store.
type AnswerKey interface {
	// CorrectAnswer returns ok=false when the question is unknown.
	CorrectAnswer(ctx context.Context, lijstID, vraagID int64) (string, bool, error)
	// Invalidate evicts the cached answer key of a list so question
	// edits grade against fresh data.
	Invalidate(ctx context.Context, lijstID int64) error
}
