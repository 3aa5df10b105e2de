package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"klasquiz-service/internal/domain"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
)

// pgUniqueViolation is the SQLSTATE for unique constraint violations.
const pgUniqueViolation = "23505"

// Store implements app.Store on Postgres. Mutations and transactional
// cascades go through bun; the snapshot projections read through a pgx
// pool (queries.go).
type Store struct {
	db   *bun.DB
	pool *pgxpool.Pool
}

func NewStore(db *bun.DB, pool *pgxpool.Pool) *Store {
	return &Store{db: db, pool: pool}
}

func mapNoRows(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr pgdriver.Error
	return errors.As(err, &pgErr) && pgErr.Field('C') == pgUniqueViolation
}

// --- teachers ---

func (s *Store) CreateTeacher(ctx context.Context, naam, email, passwordHash string) (int64, error) {
	t := &domain.Teacher{Naam: naam, Email: email, PasswordHash: passwordHash}
	if _, err := s.db.NewInsert().Model(t).Returning("id").Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return 0, domain.ErrEmailTaken
		}
		return 0, fmt.Errorf("create teacher: %w", err)
	}
	return t.ID, nil
}

func (s *Store) TeacherByEmail(ctx context.Context, email string) (*domain.Teacher, error) {
	t := new(domain.Teacher)
	err := s.db.NewSelect().Model(t).Where("email = ?", email).Scan(ctx)
	if err != nil {
		return nil, mapNoRows(err)
	}
	return t, nil
}

// --- classes & students ---

func (s *Store) CreateClass(ctx context.Context, docentID int64, naam, klascode, vak string) (*domain.Class, error) {
	k := &domain.Class{DocentID: docentID, Naam: naam, Klascode: klascode, Vak: vak}
	if _, err := s.db.NewInsert().Model(k).Returning("*").Exec(ctx); err != nil {
		return nil, fmt.Errorf("create class: %w", err)
	}
	return k, nil
}

func (s *Store) ClassOwnedBy(ctx context.Context, klasID, docentID int64) (*domain.Class, error) {
	k := new(domain.Class)
	err := s.db.NewSelect().Model(k).
		Where("k.id = ?", klasID).
		Where("k.docent_id = ?", docentID).
		Scan(ctx)
	if err != nil {
		return nil, mapNoRows(err)
	}
	return k, nil
}

func (s *Store) ClassByCode(ctx context.Context, klascode string) (*domain.Class, error) {
	k := new(domain.Class)
	err := s.db.NewSelect().Model(k).Where("klascode = ?", klascode).Scan(ctx)
	if err != nil {
		return nil, mapNoRows(err)
	}
	return k, nil
}

// DeleteClassCascade removes the class and everything under it in one
// transaction; any failure rolls the whole cascade back.
func (s *Store) DeleteClassCascade(ctx context.Context, klasID int64) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM resultaten WHERE sessie_id IN (SELECT id FROM sessies WHERE klas_id = ?)`, klasID); err != nil {
			return err
		}
		for _, q := range []string{
			`DELETE FROM sessies WHERE klas_id = ?`,
			`DELETE FROM vragen WHERE klas_id = ?`,
			`DELETE FROM leerlingen WHERE klas_id = ?`,
			`DELETE FROM vragenlijsten WHERE klas_id = ?`,
			`DELETE FROM klassen WHERE id = ?`,
		} {
			if _, err := tx.ExecContext(ctx, q, klasID); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) CreateStudent(ctx context.Context, klasID int64, naam string) (int64, error) {
	l := &domain.Student{KlasID: klasID, Naam: naam}
	if _, err := s.db.NewInsert().Model(l).Returning("id").Exec(ctx); err != nil {
		return 0, fmt.Errorf("create student: %w", err)
	}
	return l.ID, nil
}

func (s *Store) StudentInClass(ctx context.Context, leerlingID, klasID int64) (*domain.Student, error) {
	l := new(domain.Student)
	err := s.db.NewSelect().Model(l).
		Where("l.id = ?", leerlingID).
		Where("l.klas_id = ?", klasID).
		Scan(ctx)
	if err != nil {
		return nil, mapNoRows(err)
	}
	return l, nil
}

func (s *Store) StudentsByClass(ctx context.Context, klasID int64) ([]domain.Student, error) {
	var out []domain.Student
	err := s.db.NewSelect().Model(&out).
		Where("klas_id = ?", klasID).
		Order("naam ASC").
		Scan(ctx)
	return out, err
}

func (s *Store) DeleteStudent(ctx context.Context, leerlingID, klasID int64) error {
	_, err := s.db.NewDelete().Model((*domain.Student)(nil)).
		Where("id = ?", leerlingID).
		Where("klas_id = ?", klasID).
		Exec(ctx)
	return err
}

func (s *Store) DeleteStudentsByClass(ctx context.Context, klasID int64) error {
	_, err := s.db.NewDelete().Model((*domain.Student)(nil)).
		Where("klas_id = ?", klasID).
		Exec(ctx)
	return err
}

// --- question lists & questions ---

func (s *Store) CreateQuestionList(ctx context.Context, klasID int64, naam string) (int64, error) {
	vl := &domain.QuestionList{KlasID: klasID, Naam: naam}
	if _, err := s.db.NewInsert().Model(vl).Returning("id").Exec(ctx); err != nil {
		return 0, fmt.Errorf("create question list: %w", err)
	}
	return vl.ID, nil
}

func (s *Store) QuestionListByID(ctx context.Context, lijstID int64) (*domain.QuestionList, error) {
	vl := new(domain.QuestionList)
	err := s.db.NewSelect().Model(vl).
		ColumnExpr("vl.*").
		ColumnExpr("k.docent_id AS docent_id").
		ColumnExpr("k.naam AS klasnaam").
		Join("JOIN klassen AS k ON k.id = vl.klas_id").
		Where("vl.id = ?", lijstID).
		Scan(ctx)
	if err != nil {
		return nil, mapNoRows(err)
	}
	return vl, nil
}

func (s *Store) QuestionListInClass(ctx context.Context, lijstID, klasID int64) (bool, error) {
	return s.db.NewSelect().Model((*domain.QuestionList)(nil)).
		Where("id = ?", lijstID).
		Where("klas_id = ?", klasID).
		Exists(ctx)
}

func (s *Store) QuestionListsByClass(ctx context.Context, klasID int64) ([]domain.QuestionList, error) {
	var out []domain.QuestionList
	err := s.db.NewSelect().Model(&out).
		Column("vl.id", "vl.klas_id", "vl.naam", "vl.created_at").
		Where("klas_id = ?", klasID).
		Order("id DESC").
		Scan(ctx)
	return out, err
}

func (s *Store) UpdateQuestionList(ctx context.Context, lijstID int64, naam string) error {
	_, err := s.db.NewUpdate().Model((*domain.QuestionList)(nil)).
		Set("naam = ?", naam).
		Where("id = ?", lijstID).
		Exec(ctx)
	return err
}

func (s *Store) DeleteQuestionListCascade(ctx context.Context, lijstID int64) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM resultaten WHERE vraag_id IN (SELECT id FROM vragen WHERE vragenlijst_id = ?)`, lijstID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM vragen WHERE vragenlijst_id = ?`, lijstID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM vragenlijsten WHERE id = ?`, lijstID)
		return err
	})
}

func (s *Store) AddQuestion(ctx context.Context, q *domain.Question) error {
	if _, err := s.db.NewInsert().Model(q).Returning("id").Exec(ctx); err != nil {
		return fmt.Errorf("add question: %w", err)
	}
	return nil
}

func (s *Store) QuestionByID(ctx context.Context, vraagID int64) (*domain.Question, error) {
	q := new(domain.Question)
	err := s.db.NewSelect().Model(q).Where("v.id = ?", vraagID).Scan(ctx)
	if err != nil {
		return nil, mapNoRows(err)
	}
	return q, nil
}

func (s *Store) QuestionsByList(ctx context.Context, lijstID int64) ([]domain.Question, error) {
	var out []domain.Question
	err := s.db.NewSelect().Model(&out).
		Where("vragenlijst_id = ?", lijstID).
		Order("id DESC").
		Scan(ctx)
	return out, err
}

func (s *Store) UpdateQuestion(ctx context.Context, vraagID int64, vraag, antwoord string) error {
	_, err := s.db.NewUpdate().Model((*domain.Question)(nil)).
		Set("vraag = ?", vraag).
		Set("antwoord = ?", antwoord).
		Where("id = ?", vraagID).
		Exec(ctx)
	return err
}

func (s *Store) DeleteQuestionCascade(ctx context.Context, vraagID int64) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM resultaten WHERE vraag_id = ?`, vraagID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM vragen WHERE id = ?`, vraagID)
		return err
	})
}

// --- sessions ---

// StartSession deactivates any running session for the class and inserts
// the new active one atomically; the one-active-session-per-class
// invariant holds because both statements share the transaction.
func (s *Store) StartSession(ctx context.Context, klasID, docentID, lijstID int64) (int64, error) {
	sess := &domain.Session{KlasID: klasID, DocentID: docentID, VragenlijstID: lijstID, Actief: true}
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.ExecContext(ctx, `UPDATE sessies SET actief = FALSE WHERE klas_id = ?`, klasID); err != nil {
			return err
		}
		_, err := tx.NewInsert().Model(sess).Returning("id").Exec(ctx)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("start session: %w", err)
	}
	return sess.ID, nil
}

func (s *Store) SessionByID(ctx context.Context, sessieID int64) (*domain.Session, error) {
	sess := new(domain.Session)
	err := s.db.NewSelect().Model(sess).Where("s.id = ?", sessieID).Scan(ctx)
	if err != nil {
		return nil, mapNoRows(err)
	}
	return sess, nil
}

func (s *Store) SessionWithClass(ctx context.Context, sessieID int64) (*domain.Session, *domain.Class, error) {
	sess, err := s.SessionByID(ctx, sessieID)
	if err != nil {
		return nil, nil, err
	}
	k := new(domain.Class)
	if err := s.db.NewSelect().Model(k).Where("k.id = ?", sess.KlasID).Scan(ctx); err != nil {
		return nil, nil, mapNoRows(err)
	}
	return sess, k, nil
}

func (s *Store) ActiveSessionForClass(ctx context.Context, klasID int64) (*domain.Session, error) {
	sess := new(domain.Session)
	err := s.db.NewSelect().Model(sess).
		Where("klas_id = ?", klasID).
		Where("actief").
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, mapNoRows(err)
	}
	return sess, nil
}

func (s *Store) SetCurrentQuestion(ctx context.Context, sessieID, vraagID int64) error {
	_, err := s.db.NewUpdate().Model((*domain.Session)(nil)).
		Set("current_question_id = ?", vraagID).
		Set("question_start_time = CURRENT_TIMESTAMP").
		Where("id = ?", sessieID).
		Exec(ctx)
	return err
}

func (s *Store) ClearCurrentQuestion(ctx context.Context, sessieID int64) error {
	_, err := s.db.NewUpdate().Model((*domain.Session)(nil)).
		Set("current_question_id = NULL").
		Set("question_start_time = NULL").
		Where("id = ?", sessieID).
		Exec(ctx)
	return err
}

func (s *Store) StopSession(ctx context.Context, sessieID int64) error {
	_, err := s.db.NewUpdate().Model((*domain.Session)(nil)).
		Set("actief = FALSE").
		Set("current_question_id = NULL").
		Set("question_start_time = NULL").
		Where("id = ?", sessieID).
		Exec(ctx)
	return err
}

// --- results (mutations; projections live in queries.go) ---

func (s *Store) InsertResult(ctx context.Context, r *domain.Result) error {
	if _, err := s.db.NewInsert().Model(r).Returning("id, created_at").Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateResult
		}
		return fmt.Errorf("insert result: %w", err)
	}
	return nil
}

func (s *Store) ResultByID(ctx context.Context, resultaatID int64) (*domain.Result, error) {
	r := new(domain.Result)
	err := s.db.NewSelect().Model(r).Where("r.id = ?", resultaatID).Scan(ctx)
	if err != nil {
		return nil, mapNoRows(err)
	}
	return r, nil
}

func (s *Store) ResultFor(ctx context.Context, sessieID, vraagID, leerlingID int64) (*domain.Result, error) {
	r := new(domain.Result)
	err := s.db.NewSelect().Model(r).
		Where("sessie_id = ?", sessieID).
		Where("vraag_id = ?", vraagID).
		Where("leerling_id = ?", leerlingID).
		Scan(ctx)
	if err != nil {
		return nil, mapNoRows(err)
	}
	return r, nil
}

func (s *Store) GradeResult(ctx context.Context, resultaatID int64, status string, points int) error {
	res, err := s.db.NewUpdate().Model((*domain.Result)(nil)).
		Set("status = ?", status).
		Set("points = ?", points).
		Where("id = ?", resultaatID).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteResultsForQuestion(ctx context.Context, sessieID, vraagID int64) error {
	_, err := s.db.NewDelete().Model((*domain.Result)(nil)).
		Where("sessie_id = ?", sessieID).
		Where("vraag_id = ?", vraagID).
		Exec(ctx)
	return err
}

func (s *Store) DeleteStudentResults(ctx context.Context, sessieID, leerlingID int64) error {
	_, err := s.db.NewDelete().Model((*domain.Result)(nil)).
		Where("sessie_id = ?", sessieID).
		Where("leerling_id = ?", leerlingID).
		Exec(ctx)
	return err
}
