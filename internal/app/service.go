package app

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"

	"klasquiz-service/internal/domain"
)

// SubmitOutcome is the structured, non-error result of an answer
// submission. A duplicate submission yields Success=false rather than an
// error.
type SubmitOutcome struct {
	Success    bool   `json:"success"`
	AutoGraded bool   `json:"auto_graded,omitempty"`
	Status     string `json:"status,omitempty"`
	Message    string `json:"message,omitempty"`
}

// SessionService drives the lifecycle of live quiz sessions: question
// dispatch, answer collection, auto-grading, and fan-out of refreshed
// snapshots to all viewers.
type SessionService struct {
	store    Store
	answers  AnswerKey
	hub      *Hub
	presence *PresenceTracker

	// Serializes snapshot build + publish so subscribers observe
	// broadcasts in mutation commit order.
	bmu sync.Mutex
}

func NewSessionService(store Store, answers AnswerKey, hub *Hub, presence *PresenceTracker) *SessionService {
	return &SessionService{store: store, answers: answers, hub: hub, presence: presence}
}

// Hub exposes the broadcast hub for transport-level subscriptions.
func (s *SessionService) Hub() *Hub { return s.hub }

// Presence exposes the presence tracker.
func (s *SessionService) Presence() *PresenceTracker { return s.presence }

// StartSession creates a new active session for the class, deactivating
// any previous one. Fails with ErrUnauthorized when the docent does not
// own the class and ErrInvalidReference when the question list belongs to
// another class.
func (s *SessionService) StartSession(ctx context.Context, docentID, klasID, lijstID int64) (int64, error) {
	if _, err := s.store.ClassOwnedBy(ctx, klasID, docentID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return 0, domain.ErrUnauthorized
		}
		return 0, err
	}
	ok, err := s.store.QuestionListInClass(ctx, lijstID, klasID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, domain.ErrInvalidReference
	}
	return s.store.StartSession(ctx, klasID, docentID, lijstID)
}

// ownedActiveSession loads a session and checks docent ownership and the
// active flag.
func (s *SessionService) ownedActiveSession(ctx context.Context, docentID, sessieID int64) (*domain.Session, error) {
	sess, err := s.store.SessionByID(ctx, sessieID)
	if err != nil {
		return nil, err
	}
	if sess.DocentID != docentID {
		return nil, domain.ErrUnauthorized
	}
	if !sess.Actief {
		return nil, domain.ErrNotFound
	}
	return sess, nil
}

// SendNextQuestion picks a question the session has not asked yet,
// uniformly at random, marks it current, and resets any stale results
// for it. noMore=true (without error or state change) signals the list
// is exhausted.
func (s *SessionService) SendNextQuestion(ctx context.Context, docentID, sessieID int64) (vraagID int64, noMore bool, err error) {
	sess, err := s.ownedActiveSession(ctx, docentID, sessieID)
	if err != nil {
		return 0, false, err
	}

	asked, err := s.store.AskedQuestionIDs(ctx, sessieID)
	if err != nil {
		return 0, false, err
	}
	q, err := s.store.RandomUnaskedQuestion(ctx, sess.KlasID, sess.VragenlijstID, asked)
	if err != nil {
		return 0, false, err
	}
	if q == nil {
		return 0, true, nil
	}

	if err := s.store.SetCurrentQuestion(ctx, sessieID, q.ID); err != nil {
		return 0, false, err
	}
	// Drop leftovers from a previous partial round for this question.
	if err := s.store.DeleteResultsForQuestion(ctx, sessieID, q.ID); err != nil {
		return 0, false, err
	}

	s.broadcast(ctx, sessieID)
	return q.ID, false, nil
}

// ClearCurrentQuestion unsets the current question without touching the
// results already collected for the round.
func (s *SessionService) ClearCurrentQuestion(ctx context.Context, docentID, sessieID int64) error {
	if _, err := s.ownedActiveSession(ctx, docentID, sessieID); err != nil {
		return err
	}
	if err := s.store.ClearCurrentQuestion(ctx, sessieID); err != nil {
		return err
	}
	s.broadcast(ctx, sessieID)
	return nil
}

// StopSession deactivates the session and clears the current question.
// Terminal: no further dispatch is possible afterwards.
func (s *SessionService) StopSession(ctx context.Context, docentID, sessieID int64) error {
	sess, err := s.store.SessionByID(ctx, sessieID)
	if err != nil {
		return err
	}
	if sess.DocentID != docentID {
		return domain.ErrUnauthorized
	}
	if err := s.store.StopSession(ctx, sessieID); err != nil {
		return err
	}
	s.broadcast(ctx, sessieID)
	return nil
}

// SubmitAnswer records and auto-grades a student's answer. Open to
// anonymous callers; the session must be active and the answer must not
// be blank. A duplicate submission for the same (sessie, vraag,
// leerling) tuple is reported as a non-fatal outcome and leaves the
// existing result untouched.
func (s *SessionService) SubmitAnswer(ctx context.Context, sessieID, leerlingID, vraagID int64, antwoord string) (SubmitOutcome, error) {
	antwoord = strings.TrimSpace(antwoord)
	if antwoord == "" {
		return SubmitOutcome{}, domain.ErrInvalidInput
	}

	sess, err := s.store.SessionByID(ctx, sessieID)
	if err != nil {
		return SubmitOutcome{}, err
	}
	if !sess.Actief {
		return SubmitOutcome{}, domain.ErrNotFound
	}

	if _, err := s.store.ResultFor(ctx, sessieID, vraagID, leerlingID); err == nil {
		return SubmitOutcome{Success: false, Message: "already answered"}, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return SubmitOutcome{}, err
	}

	status := domain.StatusUnknown
	points := 0
	correct, known, err := s.answers.CorrectAnswer(ctx, sess.VragenlijstID, vraagID)
	if err != nil {
		return SubmitOutcome{}, err
	}
	if known {
		status, points = AutoGrade(antwoord, correct)
	}

	res := &domain.Result{
		SessieID:      sessieID,
		LeerlingID:    leerlingID,
		VraagID:       vraagID,
		AntwoordGiven: antwoord,
		Status:        status,
		Points:        points,
	}
	if err := s.store.InsertResult(ctx, res); err != nil {
		if errors.Is(err, domain.ErrDuplicateResult) {
			return SubmitOutcome{Success: false, Message: "already answered"}, nil
		}
		return SubmitOutcome{}, err
	}

	s.broadcast(ctx, sessieID)
	return SubmitOutcome{Success: true, AutoGraded: status == domain.StatusCorrect, Status: status}, nil
}

// GradeAnswer applies a teacher override: the given status wins
// unconditionally and points are recomputed from the fixed table.
func (s *SessionService) GradeAnswer(ctx context.Context, docentID, resultaatID int64, status string) error {
	if !ValidGradeStatus(status) {
		return domain.ErrInvalidInput
	}
	res, err := s.store.ResultByID(ctx, resultaatID)
	if err != nil {
		return err
	}
	sess, err := s.store.SessionByID(ctx, res.SessieID)
	if err != nil {
		return err
	}
	if sess.DocentID != docentID {
		return domain.ErrUnauthorized
	}
	if err := s.store.GradeResult(ctx, resultaatID, status, PointsFor(status)); err != nil {
		return err
	}
	s.broadcast(ctx, res.SessieID)
	return nil
}

// RemoveStudentFromSession deletes a student's results for the session
// and the student itself, then refreshes all viewers.
func (s *SessionService) RemoveStudentFromSession(ctx context.Context, docentID, sessieID, leerlingID int64) error {
	sess, err := s.store.SessionByID(ctx, sessieID)
	if err != nil {
		return err
	}
	if sess.DocentID != docentID {
		return domain.ErrUnauthorized
	}
	if err := s.store.DeleteStudentResults(ctx, sessieID, leerlingID); err != nil {
		return err
	}
	if err := s.store.DeleteStudent(ctx, leerlingID, sess.KlasID); err != nil {
		return err
	}
	s.broadcast(ctx, sessieID)
	return nil
}

// UpdatePresence records a student heartbeat and, when the class has an
// active session, refreshes its viewers.
func (s *SessionService) UpdatePresence(ctx context.Context, leerlingID, klasID int64, status string) {
	s.presence.Update(leerlingID, status)
	if klasID == 0 {
		return
	}
	sess, err := s.store.ActiveSessionForClass(ctx, klasID)
	if err != nil {
		return
	}
	s.broadcast(ctx, sess.ID)
}

// Snapshot returns the full session view for the owning docent.
func (s *SessionService) Snapshot(ctx context.Context, docentID, sessieID int64) (*domain.Snapshot, error) {
	sess, err := s.store.SessionByID(ctx, sessieID)
	if err != nil {
		return nil, err
	}
	if sess.DocentID != docentID {
		return nil, domain.ErrUnauthorized
	}
	return s.BuildSnapshot(ctx, sessieID)
}

// Scoreboard returns the session scoreboard for the owning docent.
func (s *SessionService) Scoreboard(ctx context.Context, docentID, sessieID int64) ([]domain.ScoreboardEntry, error) {
	sess, err := s.store.SessionByID(ctx, sessieID)
	if err != nil {
		return nil, err
	}
	if sess.DocentID != docentID {
		return nil, domain.ErrUnauthorized
	}
	return s.store.ScoreboardRows(ctx, sessieID, sess.KlasID)
}

// RecentAnswers returns the recent-answers feed for the owning docent.
func (s *SessionService) RecentAnswers(ctx context.Context, docentID, sessieID int64) ([]domain.RecentAnswer, error) {
	if _, err := s.ownedSession(ctx, docentID, sessieID); err != nil {
		return nil, err
	}
	return s.store.RecentAnswers(ctx, sessieID, recentAnswersCap)
}

// CurrentAnswerCount reports how many answers the current question has
// received; zero when no question is pending.
func (s *SessionService) CurrentAnswerCount(ctx context.Context, docentID, sessieID int64) (int, error) {
	sess, err := s.ownedSession(ctx, docentID, sessieID)
	if err != nil {
		return 0, err
	}
	if sess.CurrentQuestionID == nil {
		return 0, nil
	}
	return s.store.AnswerCount(ctx, sessieID, *sess.CurrentQuestionID)
}

// ExportResults returns all session results in submission order for the
// CSV export.
func (s *SessionService) ExportResults(ctx context.Context, docentID, sessieID int64) ([]domain.ExportRow, error) {
	if _, err := s.ownedSession(ctx, docentID, sessieID); err != nil {
		return nil, err
	}
	return s.store.SessionResults(ctx, sessieID)
}

// SessionForStream authorizes a live-stream subscription: a token-less
// caller gets the student role; a docent token must match the owner.
func (s *SessionService) SessionForStream(ctx context.Context, sessieID int64, docentID *int64) (Role, error) {
	sess, err := s.store.SessionByID(ctx, sessieID)
	if err != nil {
		return RoleStudent, err
	}
	if docentID == nil {
		return RoleStudent, nil
	}
	if sess.DocentID != *docentID {
		return RoleStudent, domain.ErrUnauthorized
	}
	return RoleTeacher, nil
}

// StudentState builds the polling view for one student: active session,
// current question, own score and answers. The correct answer is only
// revealed once every student in the class has answered.
func (s *SessionService) StudentState(ctx context.Context, leerlingID, klasID int64) (*domain.StudentState, error) {
	if _, err := s.store.StudentInClass(ctx, leerlingID, klasID); err != nil {
		return nil, err
	}
	sess, err := s.store.ActiveSessionForClass(ctx, klasID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return &domain.StudentState{SessionEnded: true}, nil
		}
		return nil, err
	}

	state := &domain.StudentState{SessionID: sess.ID, CurrentQuestionID: sess.CurrentQuestionID}

	if state.Score, err = s.store.StudentScore(ctx, sess.ID, leerlingID); err != nil {
		return nil, err
	}
	if state.AnswerCount, err = s.store.StudentAnswerCount(ctx, sess.ID, leerlingID); err != nil {
		return nil, err
	}
	if state.RecentAnswers, err = s.store.StudentRecentAnswers(ctx, sess.ID, leerlingID, recentAnswersCap); err != nil {
		return nil, err
	}

	if sess.CurrentQuestionID == nil {
		return state, nil
	}
	q, err := s.store.QuestionByID(ctx, *sess.CurrentQuestionID)
	if err != nil {
		return nil, err
	}
	state.QuestionText = &q.Vraag
	if _, err := s.store.ResultFor(ctx, sess.ID, q.ID, leerlingID); err == nil {
		state.AlreadyAnswered = true
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	students, err := s.store.StudentsByClass(ctx, klasID)
	if err != nil {
		return nil, err
	}
	answered, err := s.store.AnsweredStudentCount(ctx, sess.ID, q.ID)
	if err != nil {
		return nil, err
	}
	state.AllAnswered = answered >= len(students)
	if state.AllAnswered {
		state.CorrectAnswer = &q.Antwoord
	}
	return state, nil
}

func (s *SessionService) ownedSession(ctx context.Context, docentID, sessieID int64) (*domain.Session, error) {
	sess, err := s.store.SessionByID(ctx, sessieID)
	if err != nil {
		return nil, err
	}
	if sess.DocentID != docentID {
		return nil, domain.ErrUnauthorized
	}
	return sess, nil
}

// broadcast pushes a fresh snapshot to all viewers of the session.
// Failures are logged and never surfaced to the triggering request.
func (s *SessionService) broadcast(ctx context.Context, sessieID int64) {
	s.bmu.Lock()
	defer s.bmu.Unlock()
	snap, err := s.BuildSnapshot(ctx, sessieID)
	if err != nil {
		log.Printf("broadcast session %d: %v", sessieID, err)
		return
	}
	s.hub.Publish(sessieID, snap)
}
