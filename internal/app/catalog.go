package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"klasquiz-service/internal/domain"
)

// CatalogService covers the docent-facing CRUD around the session
// engine: classes, students, question lists, and questions. Ownership is
// always checked before a mutation. Question edits evict the list's
// cached answer key so a running session grades against fresh data.
type CatalogService struct {
	store   Store
	answers AnswerKey
}

func NewCatalogService(store Store, answers AnswerKey) *CatalogService {
	return &CatalogService{store: store, answers: answers}
}

// newKlascode generates a 6-character uppercase join code.
func newKlascode() (string, error) {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate klascode: %w", err)
	}
	return strings.ToUpper(hex.EncodeToString(b)[:6]), nil
}

// CreateClass creates a class with a fresh join code.
func (c *CatalogService) CreateClass(ctx context.Context, docentID int64, naam, vak string) (*domain.Class, error) {
	if strings.TrimSpace(naam) == "" {
		return nil, domain.ErrInvalidInput
	}
	code, err := newKlascode()
	if err != nil {
		return nil, err
	}
	return c.store.CreateClass(ctx, docentID, naam, code, vak)
}

// ClassDetails bundles a class with its students and question lists.
type ClassDetails struct {
	Klas          *domain.Class         `json:"klas"`
	Leerlingen    []domain.Student      `json:"leerlingen"`
	Vragenlijsten []domain.QuestionList `json:"vragenlijsten"`
}

// ClassDetails loads a class the docent owns together with its roster
// and question lists.
func (c *CatalogService) ClassDetails(ctx context.Context, docentID, klasID int64) (*ClassDetails, error) {
	klas, err := c.store.ClassOwnedBy(ctx, klasID, docentID)
	if err != nil {
		return nil, err
	}
	leerlingen, err := c.store.StudentsByClass(ctx, klasID)
	if err != nil {
		return nil, err
	}
	lijsten, err := c.store.QuestionListsByClass(ctx, klasID)
	if err != nil {
		return nil, err
	}
	return &ClassDetails{Klas: klas, Leerlingen: leerlingen, Vragenlijsten: lijsten}, nil
}

// DeleteClass removes a class and everything under it in one transaction.
func (c *CatalogService) DeleteClass(ctx context.Context, docentID, klasID int64) error {
	if _, err := c.store.ClassOwnedBy(ctx, klasID, docentID); err != nil {
		return err
	}
	return c.store.DeleteClassCascade(ctx, klasID)
}

// DeleteStudents clears the roster of a class the docent owns.
func (c *CatalogService) DeleteStudents(ctx context.Context, docentID, klasID int64) error {
	if _, err := c.store.ClassOwnedBy(ctx, klasID, docentID); err != nil {
		return err
	}
	return c.store.DeleteStudentsByClass(ctx, klasID)
}

// JoinClass redeems a join code, creating an anonymous student identity.
func (c *CatalogService) JoinClass(ctx context.Context, klascode, naam string) (*domain.Student, error) {
	code := strings.ToUpper(strings.TrimSpace(klascode))
	naam = strings.TrimSpace(naam)
	if code == "" || naam == "" {
		return nil, domain.ErrInvalidInput
	}
	klas, err := c.store.ClassByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	id, err := c.store.CreateStudent(ctx, klas.ID, naam)
	if err != nil {
		return nil, err
	}
	return &domain.Student{ID: id, KlasID: klas.ID, Naam: naam}, nil
}

// CreateQuestionList adds a list to a class the docent owns.
func (c *CatalogService) CreateQuestionList(ctx context.Context, docentID, klasID int64, naam string) (int64, error) {
	if strings.TrimSpace(naam) == "" {
		return 0, domain.ErrInvalidInput
	}
	if _, err := c.store.ClassOwnedBy(ctx, klasID, docentID); err != nil {
		return 0, err
	}
	return c.store.CreateQuestionList(ctx, klasID, naam)
}

// ownedList loads a question list and verifies the docent owns its class.
func (c *CatalogService) ownedList(ctx context.Context, docentID, lijstID int64) (*domain.QuestionList, error) {
	lijst, err := c.store.QuestionListByID(ctx, lijstID)
	if err != nil {
		return nil, err
	}
	if lijst.DocentID != docentID {
		return nil, domain.ErrUnauthorized
	}
	return lijst, nil
}

// ListWithQuestions bundles a question list with its questions.
type ListWithQuestions struct {
	domain.QuestionList
	Vragen []domain.Question `json:"vragen"`
}

func (c *CatalogService) QuestionListWithQuestions(ctx context.Context, docentID, lijstID int64) (*ListWithQuestions, error) {
	lijst, err := c.ownedList(ctx, docentID, lijstID)
	if err != nil {
		return nil, err
	}
	vragen, err := c.store.QuestionsByList(ctx, lijstID)
	if err != nil {
		return nil, err
	}
	return &ListWithQuestions{QuestionList: *lijst, Vragen: vragen}, nil
}

func (c *CatalogService) RenameQuestionList(ctx context.Context, docentID, lijstID int64, naam string) error {
	if strings.TrimSpace(naam) == "" {
		return domain.ErrInvalidInput
	}
	if _, err := c.ownedList(ctx, docentID, lijstID); err != nil {
		return err
	}
	return c.store.UpdateQuestionList(ctx, lijstID, naam)
}

// DeleteQuestionList removes a list with its questions and their results.
func (c *CatalogService) DeleteQuestionList(ctx context.Context, docentID, lijstID int64) error {
	if _, err := c.ownedList(ctx, docentID, lijstID); err != nil {
		return err
	}
	if err := c.store.DeleteQuestionListCascade(ctx, lijstID); err != nil {
		return err
	}
	return c.answers.Invalidate(ctx, lijstID)
}

// AddQuestion appends a question to a list the docent owns.
func (c *CatalogService) AddQuestion(ctx context.Context, docentID, lijstID int64, vraag, antwoord string) (int64, error) {
	if strings.TrimSpace(vraag) == "" || strings.TrimSpace(antwoord) == "" {
		return 0, domain.ErrInvalidInput
	}
	lijst, err := c.ownedList(ctx, docentID, lijstID)
	if err != nil {
		return 0, err
	}
	q := &domain.Question{KlasID: lijst.KlasID, VragenlijstID: lijstID, Vraag: vraag, Antwoord: antwoord}
	if err := c.store.AddQuestion(ctx, q); err != nil {
		return 0, err
	}
	if err := c.answers.Invalidate(ctx, lijstID); err != nil {
		return 0, err
	}
	return q.ID, nil
}

// UpdateQuestion replaces a question's prompt and correct answer.
func (c *CatalogService) UpdateQuestion(ctx context.Context, docentID, vraagID int64, vraag, antwoord string) error {
	if strings.TrimSpace(vraag) == "" || strings.TrimSpace(antwoord) == "" {
		return domain.ErrInvalidInput
	}
	q, err := c.checkQuestionOwner(ctx, docentID, vraagID)
	if err != nil {
		return err
	}
	if err := c.store.UpdateQuestion(ctx, vraagID, vraag, antwoord); err != nil {
		return err
	}
	return c.answers.Invalidate(ctx, q.VragenlijstID)
}

// DeleteQuestion removes a question and its results.
func (c *CatalogService) DeleteQuestion(ctx context.Context, docentID, vraagID int64) error {
	q, err := c.checkQuestionOwner(ctx, docentID, vraagID)
	if err != nil {
		return err
	}
	if err := c.store.DeleteQuestionCascade(ctx, vraagID); err != nil {
		return err
	}
	return c.answers.Invalidate(ctx, q.VragenlijstID)
}

func (c *CatalogService) checkQuestionOwner(ctx context.Context, docentID, vraagID int64) (*domain.Question, error) {
	q, err := c.store.QuestionByID(ctx, vraagID)
	if err != nil {
		return nil, err
	}
	_, err = c.store.ClassOwnedBy(ctx, q.KlasID, docentID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}
	return q, nil
}
